// ABOUTME: Entry point for the easeway coordinator
// ABOUTME: Serves execution contexts and offers small client commands against a running instance

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"

	"github.com/2389/easeway/internal/client"
	"github.com/2389/easeway/internal/config"
	"github.com/2389/easeway/internal/gateway"
	"github.com/2389/easeway/internal/protocol"
)

// Version is set at build time.
var version = "dev"

const banner = `
  ___  __ _ ___  ___ __      ____ _ _   _
 / _ \/ _' / __|/ _ \\ \ /\ / / _' | | | |
|  __/ (_| \__ \  __/ \ V  V / (_| | |_| |
 \___|\__,_|___/\___|  \_/\_/ \__,_|\__, |
                                    |___/
`

// requestTimeout bounds the client subcommands.
const requestTimeout = 10 * time.Second

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: easeway-coordinator <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve                    Start the coordinator")
		fmt.Println("  init                     Write a default config file")
		fmt.Println("  health                   Check coordinator health")
		fmt.Println("  contexts                 List open execution contexts")
		fmt.Println("  send TYPE [PAYLOAD]      Send one message over gRPC and print the response")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "init":
		err = runInit()
	case "health":
		err = runHealth(ctx)
	case "contexts":
		err = runContexts(ctx)
	case "send":
		err = runSend(ctx, os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads the config file, falling back to defaults when none exists.
func loadConfig() (*config.Config, string, error) {
	configPath := config.DefaultPath()
	if _, err := os.Stat(configPath); errors.Is(err, os.ErrNotExist) {
		cfg := config.Default()
		cfg.ApplyEnv()
		return cfg, "(defaults)", cfg.Validate()
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, "", fmt.Errorf("loading config: %w", err)
	}
	return cfg, configPath, nil
}

func runServe(ctx context.Context) error {
	// Print banner
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, configPath, err := loadConfig()
	if err != nil {
		return err
	}

	logger := setupLogger(cfg.Logging)

	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	green.Print("    ▶ ")
	fmt.Printf("Config:    %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("Storage:   %s %s\n", cfg.Storage.Backend, cfg.Storage.Path)
	if cfg.Tailscale.Enabled {
		green.Print("    ▶ ")
		fmt.Printf("Tailscale: ")
		cyan.Print(cfg.Tailscale.Hostname)
		if cfg.Tailscale.Ephemeral {
			gray.Print(" (ephemeral)")
		}
		fmt.Println()
	} else {
		green.Print("    ▶ ")
		fmt.Printf("gRPC:      %s\n", cfg.Server.GRPCAddr)
		green.Print("    ▶ ")
		fmt.Printf("HTTP:      %s\n", cfg.Server.HTTPAddr)
	}
	if cfg.Storage.Backend == config.BackendMemory {
		yellow.Println("    ! memory backend: state is lost on exit")
	}
	fmt.Println()

	logger.Info("starting easeway coordinator",
		"config", configPath,
		"version", version,
	)

	gw, err := gateway.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating coordinator: %w", err)
	}

	return gw.Run(ctx)
}

func runInit() error {
	configPath := config.DefaultPath()
	if err := config.WriteDefault(configPath); err != nil {
		return err
	}
	color.New(color.FgGreen).Printf("  ✓ Created config: %s\n", configPath)
	return nil
}

// httpGet fetches path from the configured HTTP address.
func httpGet(ctx context.Context, path string) (int, []byte, error) {
	cfg, _, err := loadConfig()
	if err != nil {
		return 0, nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	url := fmt.Sprintf("http://%s%s", cfg.Server.HTTPAddr, path)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("reading response: %w", err)
	}
	return resp.StatusCode, body, nil
}

func runHealth(ctx context.Context) error {
	status, _, err := httpGet(ctx, "/health")
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	if status != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", status)
	}
	fmt.Println("healthy")
	return nil
}

func runContexts(ctx context.Context) error {
	status, body, err := httpGet(ctx, "/api/contexts")
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("listing contexts: status %d", status)
	}
	fmt.Println(string(body))
	return nil
}

func runSend(ctx context.Context, args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return errors.New("usage: send TYPE [PAYLOAD_JSON]")
	}

	env := protocol.Envelope{Type: protocol.MessageType(args[0])}
	if len(args) == 2 {
		if !json.Valid([]byte(args[1])) {
			return fmt.Errorf("payload is not valid JSON: %s", args[1])
		}
		env.Payload = json.RawMessage(args[1])
	}

	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	c, err := client.Dial(cfg.Server.GRPCAddr, nil, client.WithContextID("cli"))
	if err != nil {
		return err
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	reply, err := c.Send(ctx, env)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(reply, "", "  ")
	if err != nil {
		return fmt.Errorf("formatting response: %w", err)
	}
	fmt.Println(string(out))
	if !reply.Success {
		return errors.New(reply.Error)
	}
	return nil
}

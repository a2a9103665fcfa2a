// ABOUTME: Best-effort fan-out of one push to every matching open execution context
// ABOUTME: Per-target failures are isolated and reported as outcomes, never as errors

package broadcast

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/2389/easeway/internal/peer"
	"github.com/2389/easeway/internal/protocol"
)

// Directory lists addressable contexts and delivers to one of them.
// *peer.Manager satisfies it.
type Directory interface {
	List() []peer.Info
	Push(ctx context.Context, id string, msg protocol.Outbound) error
}

// Outcome is the delivery result for one target.
type Outcome struct {
	TargetID string
	Err      error
}

// Delivered reports whether the push reached the target.
func (o Outcome) Delivered() bool { return o.Err == nil }

// Option configures a Broadcaster.
type Option func(*Broadcaster)

// WithObserver registers fn to be called with every outcome.
func WithObserver(fn func(msg protocol.Outbound, o Outcome)) Option {
	return func(b *Broadcaster) { b.observe = fn }
}

// Broadcaster fans pushes out to a Directory.
type Broadcaster struct {
	dir     Directory
	logger  *slog.Logger
	observe func(protocol.Outbound, Outcome)
}

// New creates a Broadcaster. Pass nil logger for default.
func New(dir Directory, logger *slog.Logger, opts ...Option) *Broadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	b := &Broadcaster{
		dir:    dir,
		logger: logger.With("component", "broadcaster"),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Broadcast delivers msg to every target accepted by filter and waits for all
// attempts. Each target is tried independently; a hung target only delays its own outcome.
func (b *Broadcaster) Broadcast(ctx context.Context, filter Filter, msg protocol.Outbound) []Outcome {
	var targets []peer.Info
	for _, info := range b.dir.List() {
		if filter(info) {
			targets = append(targets, info)
		}
	}
	if len(targets) == 0 {
		b.logger.Debug("no targets for broadcast", "type", msg.Type)
		return nil
	}

	outcomes := make([]Outcome, len(targets))
	var wg sync.WaitGroup
	for i, target := range targets {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			outcomes[i] = b.deliver(ctx, id, msg)
		}(i, target.ID)
	}
	wg.Wait()

	delivered := 0
	for _, o := range outcomes {
		if o.Delivered() {
			delivered++
		}
	}
	b.logger.Debug("broadcast complete",
		"type", msg.Type,
		"targets", len(outcomes),
		"delivered", delivered,
	)
	return outcomes
}

// deliver pushes to one target, turning panics into a failed outcome.
func (b *Broadcaster) deliver(ctx context.Context, id string, msg protocol.Outbound) (o Outcome) {
	o.TargetID = id
	defer func() {
		if r := recover(); r != nil {
			o.Err = fmt.Errorf("delivery panicked: %v", r)
		}
		if o.Err != nil {
			b.logger.Debug("delivery failed", "conn_id", id, "type", msg.Type, "error", o.Err)
		}
		if b.observe != nil {
			b.observe(msg, o)
		}
	}()

	o.Err = b.dir.Push(ctx, id, msg)
	return o
}

// Dispatch runs Broadcast in the background so the caller's reply is not held up.
// The returned channel yields the outcomes once and is then closed.
// The caller's cancellation does not stop delivery.
func (b *Broadcaster) Dispatch(ctx context.Context, filter Filter, msg protocol.Outbound) <-chan []Outcome {
	out := make(chan []Outcome, 1)
	ctx = context.WithoutCancel(ctx)
	go func() {
		defer close(out)
		out <- b.Broadcast(ctx, filter, msg)
	}()
	return out
}

// ABOUTME: Wire envelopes shared by every transport
// ABOUTME: Request {type,payload}, response {success,data,error}, and background pushes

package protocol

import (
	"encoding/json"

	"github.com/2389/easeway/internal/prefs"
)

// Envelope is the raw inbound form of a message from an execution context.
type Envelope struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`

	// RequestID optionally identifies a one-shot call so transport retries can be detected.
	RequestID string `json:"requestId,omitempty"`
}

// Response is the uniform reply to a one-shot message.
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// MarshalJSON always writes data on success, as null when there is none,
// so "no record" reads as an explicit null rather than a missing field.
func (r Response) MarshalJSON() ([]byte, error) {
	if !r.Success {
		return json.Marshal(struct {
			Success bool   `json:"success"`
			Error   string `json:"error"`
		}{false, r.Error})
	}
	return json.Marshal(struct {
		Success bool `json:"success"`
		Data    any  `json:"data"`
	}{true, r.Data})
}

// OK wraps data in a success envelope.
func OK(data any) Response {
	return Response{Success: true, Data: data}
}

// Fail wraps an error message in a failure envelope.
func Fail(msg string) Response {
	return Response{Success: false, Error: msg}
}

// Settings is the global configuration blob. Its contents are opaque to the coordinator.
type Settings map[string]any

// SettingsSnapshot is what an execution context needs to apply its features:
// the global settings plus the active user's override for the page's domain.
type SettingsSnapshot struct {
	Settings           Settings      `json:"settings"`
	WebsitePreferences *prefs.Record `json:"websitePreferences"`
}

// Outbound is a background-to-context push.
type Outbound struct {
	Type    MessageType `json:"type"`
	Payload any         `json:"payload"`
}

// SettingsUpdate is pushed to every context when the global settings change.
// Per-site preferences are left as the context already has them.
type SettingsUpdate struct {
	Settings Settings `json:"settings"`
}

// ApplySettingsUpdate builds an APPLY_ACCESSIBILITY_FEATURES push carrying settings only.
func ApplySettingsUpdate(s Settings) Outbound {
	return Outbound{Type: TypeApplyAccessibilityFeatures, Payload: SettingsUpdate{Settings: s}}
}

// ApplyFeatures builds an APPLY_ACCESSIBILITY_FEATURES push.
func ApplyFeatures(snap SettingsSnapshot) Outbound {
	return Outbound{Type: TypeApplyAccessibilityFeatures, Payload: snap}
}

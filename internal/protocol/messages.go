// ABOUTME: Closed set of message variants, one struct per type tag
// ABOUTME: One-shot requests and connection pushes are disjoint interfaces

package protocol

import (
	"encoding/json"

	"github.com/2389/easeway/internal/prefs"
	"github.com/2389/easeway/internal/stats"
)

// MessageType is the type tag of an envelope.
type MessageType string

// One-shot request types.
const (
	TypeSyncSettings          MessageType = "SYNC_SETTINGS"
	TypeSyncStats             MessageType = "SYNC_STATS"
	TypeApplySettings         MessageType = "APPLY_SETTINGS"
	TypeGetWebsitePreferences MessageType = "GET_WEBSITE_PREFERENCES"
	TypeSetWebsitePreferences MessageType = "SET_WEBSITE_PREFERENCES"
	TypeFeatureUsed           MessageType = "FEATURE_USED"
	TypeRequestSettings       MessageType = "REQUEST_SETTINGS"
	TypeUpdateStatistics      MessageType = "UPDATE_STATISTICS"
	TypeSetActiveUser         MessageType = "SET_ACTIVE_USER"
	TypeGetActiveUser         MessageType = "GET_ACTIVE_USER"
	TypeLogout                MessageType = "LOGOUT"
	TypeClearData             MessageType = "CLEAR_DATA"
)

// Connection push types (context to background).
const (
	TypePageLoaded         MessageType = "PAGE_LOADED"
	TypeFeatureActivated   MessageType = "FEATURE_ACTIVATED"
	TypeFeatureDeactivated MessageType = "FEATURE_DEACTIVATED"
	TypeLogError           MessageType = "LOG_ERROR"
)

// Background push types (background to context).
const (
	TypeApplyAccessibilityFeatures MessageType = "APPLY_ACCESSIBILITY_FEATURES"
)

// Request is a decoded one-shot message. The set of implementations is closed.
type Request interface {
	Type() MessageType
	request()
}

// Push is a decoded context-originated connection message. The set is closed.
type Push interface {
	Type() MessageType
	push()
}

type SyncSettings struct {
	Settings Settings `json:"settings" validate:"required"`
}

type SyncStats struct {
	UserID string `json:"userId" validate:"required"`
}

type ApplySettings struct {
	Settings Settings `json:"settings" validate:"required"`
}

type GetWebsitePreferences struct {
	UserID string `json:"userId" validate:"required"`
	Domain string `json:"domain" validate:"required"`
}

// SetWebsitePreferences carries a record that names its own userId and domain.
// Missing identifiers are rejected by the preference store, not here.
type SetWebsitePreferences struct {
	Preferences *prefs.Record `json:"preferences" validate:"required"`
}

// FeatureUsed increments a counter. Count defaults to 1 when omitted.
type FeatureUsed struct {
	UserID      string   `json:"userId" validate:"required"`
	FeatureName string   `json:"featureName" validate:"required"`
	Count       *float64 `json:"count,omitempty"`
}

// Increment returns the count as an int64, or 1 when omitted.
// check has already bounded Count to [0, 2^63).
func (f *FeatureUsed) Increment() int64 {
	if f.Count == nil {
		return 1
	}
	return int64(*f.Count)
}

type RequestSettings struct {
	URL string `json:"url,omitempty"`
}

type UpdateStatistics struct {
	UserID string         `json:"userId" validate:"required"`
	Stats  *stats.Partial `json:"stats" validate:"required"`
}

// SetActiveUser records a session. UserID may be omitted when the token carries a subject.
type SetActiveUser struct {
	Token     string `json:"token" validate:"required"`
	UserID    string `json:"userId,omitempty"`
	ProfileID string `json:"profileId,omitempty"`
}

type GetActiveUser struct{}

type Logout struct{}

type ClearData struct{}

func (*SyncSettings) Type() MessageType          { return TypeSyncSettings }
func (*SyncStats) Type() MessageType             { return TypeSyncStats }
func (*ApplySettings) Type() MessageType         { return TypeApplySettings }
func (*GetWebsitePreferences) Type() MessageType { return TypeGetWebsitePreferences }
func (*SetWebsitePreferences) Type() MessageType { return TypeSetWebsitePreferences }
func (*FeatureUsed) Type() MessageType           { return TypeFeatureUsed }
func (*RequestSettings) Type() MessageType       { return TypeRequestSettings }
func (*UpdateStatistics) Type() MessageType      { return TypeUpdateStatistics }
func (*SetActiveUser) Type() MessageType         { return TypeSetActiveUser }
func (*GetActiveUser) Type() MessageType         { return TypeGetActiveUser }
func (*Logout) Type() MessageType                { return TypeLogout }
func (*ClearData) Type() MessageType             { return TypeClearData }

func (*SyncSettings) request()          {}
func (*SyncStats) request()             {}
func (*ApplySettings) request()         {}
func (*GetWebsitePreferences) request() {}
func (*SetWebsitePreferences) request() {}
func (*FeatureUsed) request()           {}
func (*RequestSettings) request()       {}
func (*UpdateStatistics) request()      {}
func (*SetActiveUser) request()         {}
func (*GetActiveUser) request()         {}
func (*Logout) request()                {}
func (*ClearData) request()             {}

type PageLoaded struct {
	URL   string `json:"url"`
	Title string `json:"title,omitempty"`
}

type FeatureActivated struct {
	FeatureName string `json:"featureName"`
}

type FeatureDeactivated struct {
	FeatureName string `json:"featureName"`
}

// LogError reports a failure inside an execution context. Context is free-form.
type LogError struct {
	Error   string          `json:"error"`
	Context json.RawMessage `json:"context,omitempty"`
}

func (*PageLoaded) Type() MessageType         { return TypePageLoaded }
func (*FeatureActivated) Type() MessageType   { return TypeFeatureActivated }
func (*FeatureDeactivated) Type() MessageType { return TypeFeatureDeactivated }
func (*LogError) Type() MessageType           { return TypeLogError }

func (*PageLoaded) push()         {}
func (*FeatureActivated) push()   {}
func (*FeatureDeactivated) push() {}
func (*LogError) push()           {}

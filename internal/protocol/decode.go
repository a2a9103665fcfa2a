// ABOUTME: Decoding of raw envelopes into the closed request and push variants
// ABOUTME: Validates required payload fields with go-playground/validator struct tags

package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrUnknownType is matched by errors.Is on every UnknownTypeError.
var ErrUnknownType = errors.New("unknown message type")

// UnknownTypeError reports a type tag outside the recognised set.
type UnknownTypeError struct {
	Type MessageType
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("Unknown message type: %s", e.Type)
}

func (e *UnknownTypeError) Is(target error) bool {
	return target == ErrUnknownType
}

// ValidationError reports a missing or malformed payload field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("Missing required field: %s", e.Field)
	}
	return fmt.Sprintf("Invalid field %s: %s", e.Field, e.Reason)
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report JSON names so errors match what the sender wrote.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// maxCount is 2^63, the first float64 that does not fit in an int64.
const maxCount float64 = 1 << 63

// checker is implemented by variants with rules struct tags cannot express.
type checker interface {
	check() error
}

func (f *FeatureUsed) check() error {
	if f.Count == nil {
		return nil
	}
	c := *f.Count
	if c < 0 || c != math.Trunc(c) || c >= maxCount {
		return &ValidationError{Field: "count", Reason: "must be a non-negative integer"}
	}
	return nil
}

func newRequest(t MessageType) (Request, bool) {
	switch t {
	case TypeSyncSettings:
		return &SyncSettings{}, true
	case TypeSyncStats:
		return &SyncStats{}, true
	case TypeApplySettings:
		return &ApplySettings{}, true
	case TypeGetWebsitePreferences:
		return &GetWebsitePreferences{}, true
	case TypeSetWebsitePreferences:
		return &SetWebsitePreferences{}, true
	case TypeFeatureUsed:
		return &FeatureUsed{}, true
	case TypeRequestSettings:
		return &RequestSettings{}, true
	case TypeUpdateStatistics:
		return &UpdateStatistics{}, true
	case TypeSetActiveUser:
		return &SetActiveUser{}, true
	case TypeGetActiveUser:
		return &GetActiveUser{}, true
	case TypeLogout:
		return &Logout{}, true
	case TypeClearData:
		return &ClearData{}, true
	}
	return nil, false
}

func newPush(t MessageType) (Push, bool) {
	switch t {
	case TypePageLoaded:
		return &PageLoaded{}, true
	case TypeFeatureActivated:
		return &FeatureActivated{}, true
	case TypeFeatureDeactivated:
		return &FeatureDeactivated{}, true
	case TypeLogError:
		return &LogError{}, true
	}
	return nil, false
}

// IsRequestType reports whether t names a one-shot request.
func IsRequestType(t MessageType) bool {
	_, ok := newRequest(t)
	return ok
}

// DecodeRequest turns an envelope into its request variant.
// Unknown tags return *UnknownTypeError; bad payloads return *ValidationError or a decode error.
func DecodeRequest(env Envelope) (Request, error) {
	req, ok := newRequest(env.Type)
	if !ok {
		return nil, &UnknownTypeError{Type: env.Type}
	}
	if err := decodeInto(env, req); err != nil {
		return nil, err
	}
	return req, nil
}

// DecodePush turns a connection envelope into its push variant.
func DecodePush(env Envelope) (Push, error) {
	p, ok := newPush(env.Type)
	if !ok {
		return nil, &UnknownTypeError{Type: env.Type}
	}
	if err := decodeInto(env, p); err != nil {
		return nil, err
	}
	return p, nil
}

func decodeInto(env Envelope, dst any) error {
	if len(env.Payload) > 0 && string(env.Payload) != "null" {
		if err := json.Unmarshal(env.Payload, dst); err != nil {
			return fmt.Errorf("invalid payload for %s: %w", env.Type, err)
		}
	}

	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			if fe.Tag() == "required" {
				return &ValidationError{Field: fe.Field()}
			}
			return &ValidationError{Field: fe.Field(), Reason: fmt.Sprintf("failed %s check", fe.Tag())}
		}
		return fmt.Errorf("validating %s: %w", env.Type, err)
	}

	if c, ok := dst.(checker); ok {
		return c.check()
	}
	return nil
}

package embedding

import (
	"errors"
	"fmt"

	"github.com/hyperjump/vecta/pkg/utils"
)

// Load errors.
var (
	// ErrFacilityUnavailable means the model-loading facility never became available
	// within the polling budget.
	ErrFacilityUnavailable = errors.New("model loading facility unavailable")
	// ErrAlreadyInProgress means another model load was running; loads are not queued.
	ErrAlreadyInProgress = errors.New("model loading already in progress")
	// ErrLoadFailed means the facility reported an error while loading the model.
	ErrLoadFailed = errors.New("model load failed")
)

// Embedding errors.
var (
	ErrModelNotReady   = errors.New("model not ready")
	ErrEmptyInput      = errors.New("no text units to embed")
	ErrEmptyUnit       = errors.New("empty text found in batch")
	ErrInvalidOutput   = errors.New("invalid embedding result")
	ErrInferenceFailed = errors.New("inference failed")
	ErrMismatch        = errors.New("embedding count does not match text unit count")
)

// LoadError describes a failed EnsureReady call. Kind is one of the load errors above.
type LoadError struct {
	Model  string
	Kind   error
	Reason string
}

func (e *LoadError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("load %s: %v", e.Model, e.Kind)
	}
	return fmt.Sprintf("load %s: %v: %s", e.Model, e.Kind, e.Reason)
}

// Unwrap returns the error kind so errors.Is matches the sentinels.
func (e *LoadError) Unwrap() error {
	return e.Kind
}

// UnitError identifies the text unit that caused an Embed call to fail.
type UnitError struct {
	Index int
	Text  string
	Kind  error
	Err   error // underlying cause, may be nil
}

func (e *UnitError) Error() string {
	msg := fmt.Sprintf("%v for text %d %q", e.Kind, e.Index, utils.Truncate(e.Text, 60))
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *UnitError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Package embedding manages embedding models (loading, caching, inference) and runs
// batched text-to-vector conversion.
package embedding

import (
	"context"
	"sync/atomic"
)

// Pooling strategies understood by inference functions.
const (
	PoolingMean = "mean"
	PoolingCLS  = "cls"
)

// InferenceOptions control how per-token model output collapses into one vector.
type InferenceOptions struct {
	Pooling   string `json:"pooling"`
	Normalize bool   `json:"normalize"`
}

// DefaultInferenceOptions requests mean-pooled, L2-normalized vectors.
func DefaultInferenceOptions() InferenceOptions {
	return InferenceOptions{Pooling: PoolingMean, Normalize: true}
}

// InferenceOutput is what an inference function yields: the vector and its declared length.
type InferenceOutput struct {
	Data []float32
	Size int
}

// InferenceFunc embeds one text with a loaded model.
type InferenceFunc func(ctx context.Context, text string, opts InferenceOptions) (*InferenceOutput, error)

// LoadProgress is an intermediate status emitted by a facility while it loads a model.
// HasPercent is false for status-only updates.
type LoadProgress struct {
	Percent    float64
	HasPercent bool
	Status     string
}

// Facility turns a model name into a runnable inference function.
type Facility interface {
	Load(ctx context.Context, model string, progress func(LoadProgress)) (InferenceFunc, error)
}

// FacilityFunc adapts a function to Facility.
type FacilityFunc func(ctx context.Context, model string, progress func(LoadProgress)) (InferenceFunc, error)

// Load calls f.
func (f FacilityFunc) Load(ctx context.Context, model string, progress func(LoadProgress)) (InferenceFunc, error) {
	return f(ctx, model, progress)
}

// Locator finds the facility, reporting false while it is not available yet.
type Locator interface {
	Locate() (Facility, bool)
}

// FacilitySlot is a Locator whose facility is installed later, for example once
// the inference runtime has been found on disk.
type FacilitySlot struct {
	v atomic.Pointer[facilityBox]
}

type facilityBox struct{ f Facility }

// NewFacilitySlot returns a slot, pre-filled when f is non-nil.
func NewFacilitySlot(f Facility) *FacilitySlot {
	s := &FacilitySlot{}
	if f != nil {
		s.Install(f)
	}
	return s
}

// Install makes f available to Locate. Installing again replaces the facility.
func (s *FacilitySlot) Install(f Facility) {
	s.v.Store(&facilityBox{f: f})
}

// Locate returns the installed facility, if any.
func (s *FacilitySlot) Locate() (Facility, bool) {
	b := s.v.Load()
	if b == nil || b.f == nil {
		return nil, false
	}
	return b.f, true
}

package embedding

import (
	"context"
	"sync"
	"time"
)

type recordingSink struct {
	mu     sync.Mutex
	events []ProgressEvent
}

func (s *recordingSink) Report(e ProgressEvent) {
	s.mu.Lock()
	s.events = append(s.events, e)
	s.mu.Unlock()
}

func (s *recordingSink) phase(p Phase) []ProgressEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []ProgressEvent
	for _, e := range s.events {
		if e.Phase == p {
			out = append(out, e)
		}
	}
	return out
}

// fakeClock fires every timer immediately and counts how many were requested.
type fakeClock struct {
	mu      sync.Mutex
	calls   int
	onAfter func(n int)
	block   bool
}

func (c *fakeClock) After(time.Duration) <-chan time.Time {
	c.mu.Lock()
	c.calls++
	n, cb, block := c.calls, c.onAfter, c.block
	c.mu.Unlock()
	if cb != nil {
		cb(n)
	}
	ch := make(chan time.Time, 1)
	if !block {
		ch <- time.Time{}
	}
	return ch
}

func (c *fakeClock) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// countingFacility loads any model, counting loads, and embeds text as a one-value
// vector holding its length.
type countingFacility struct {
	mu    sync.Mutex
	loads map[string]int
}

func newCountingFacility() *countingFacility {
	return &countingFacility{loads: make(map[string]int)}
}

func (f *countingFacility) Load(ctx context.Context, model string, progress func(LoadProgress)) (InferenceFunc, error) {
	f.mu.Lock()
	f.loads[model]++
	f.mu.Unlock()
	return func(ctx context.Context, text string, opts InferenceOptions) (*InferenceOutput, error) {
		return &InferenceOutput{Data: []float32{float32(len(text))}, Size: 1}, nil
	}, nil
}

func (f *countingFacility) count(model string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loads[model]
}

package embedding

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestLoader_CachedModelFastPath(t *testing.T) {
	fac := newCountingFacility()
	l := NewLoader(NewFacilitySlot(fac))
	ctx := context.Background()

	h1, err := l.EnsureReady(ctx, "model-a")
	if err != nil {
		t.Fatal(err)
	}
	h2, err := l.EnsureReady(ctx, "model-a")
	if err != nil {
		t.Fatal(err)
	}
	if h1 != h2 {
		t.Error("expected the same handle for a cached model")
	}
	if n := fac.count("model-a"); n != 1 {
		t.Errorf("facility loads = %d, want 1", n)
	}
	if !h1.Ready() || h1.State() != StateReady || h1.Name() != "model-a" {
		t.Errorf("handle = %+v", h1)
	}
	if l.Current() != h1 {
		t.Error("loaded model should be current")
	}
}

func TestLoader_CurrentFollowsLastRequest(t *testing.T) {
	l := NewLoader(NewFacilitySlot(newCountingFacility()))
	ctx := context.Background()
	a, _ := l.EnsureReady(ctx, "a")
	b, _ := l.EnsureReady(ctx, "b")
	if l.Current() != b {
		t.Error("b should be current after loading it")
	}
	if again, _ := l.EnsureReady(ctx, "a"); again != a || l.Current() != a {
		t.Error("cached a should become current again")
	}
}

func TestLoader_RejectsConcurrentLoad(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	fac := FacilityFunc(func(ctx context.Context, model string, progress func(LoadProgress)) (InferenceFunc, error) {
		if model == "A" {
			close(started)
			<-release
		}
		return func(context.Context, string, InferenceOptions) (*InferenceOutput, error) {
			return &InferenceOutput{Data: []float32{1}, Size: 1}, nil
		}, nil
	})
	l := NewLoader(NewFacilitySlot(fac))
	ctx := context.Background()

	type result struct {
		h   *ModelHandle
		err error
	}
	done := make(chan result, 1)
	go func() {
		h, err := l.EnsureReady(ctx, "A")
		done <- result{h, err}
	}()
	<-started

	if got := l.Loading(); got != "A" {
		t.Errorf("Loading() = %q, want A", got)
	}
	if st := l.Status("A"); st.State != StateLoading {
		t.Errorf("Status(A) = %v, want loading", st.State)
	}

	for _, model := range []string{"B", "A"} {
		h, err := l.EnsureReady(ctx, model)
		if !errors.Is(err, ErrAlreadyInProgress) {
			t.Errorf("EnsureReady(%s) error = %v, want ErrAlreadyInProgress", model, err)
		}
		if h != nil {
			t.Errorf("EnsureReady(%s) returned a handle while rejected", model)
		}
	}

	close(release)
	res := <-done
	if res.err != nil {
		t.Fatalf("in-flight load of A failed: %v", res.err)
	}
	if !res.h.Ready() {
		t.Error("A should be ready")
	}
	if l.Loading() != "" {
		t.Error("load flag should be cleared")
	}
	if _, err := l.EnsureReady(ctx, "B"); err != nil {
		t.Errorf("B should load once A finished: %v", err)
	}
	if st := l.Status("B"); st.State != StateUnloaded && st.State != StateReady {
		t.Errorf("rejected request must not mark B failed: %v", st.State)
	}
}

func TestLoader_LoadFailedLeavesCacheUntouched(t *testing.T) {
	fail := true
	fac := FacilityFunc(func(ctx context.Context, model string, progress func(LoadProgress)) (InferenceFunc, error) {
		if fail {
			return nil, errors.New("weights not found")
		}
		return func(context.Context, string, InferenceOptions) (*InferenceOutput, error) {
			return &InferenceOutput{Data: []float32{1}, Size: 1}, nil
		}, nil
	})
	l := NewLoader(NewFacilitySlot(fac))
	ctx := context.Background()

	_, err := l.EnsureReady(ctx, "broken")
	if !errors.Is(err, ErrLoadFailed) {
		t.Fatalf("error = %v, want ErrLoadFailed", err)
	}
	var le *LoadError
	if !errors.As(err, &le) || le.Model != "broken" || le.Reason != "weights not found" {
		t.Errorf("LoadError = %+v", le)
	}
	st := l.Status("broken")
	if st.State != StateFailed || st.Reason == "" {
		t.Errorf("Status = %+v, want failed with reason", st)
	}
	if l.Current() != nil {
		t.Error("failed load must not become current")
	}

	fail = false
	h, err := l.EnsureReady(ctx, "broken")
	if err != nil {
		t.Fatalf("retry after failure: %v", err)
	}
	if !h.Ready() || l.Status("broken").State != StateReady {
		t.Error("retry should leave the model ready")
	}
}

func TestLoader_NilInferenceFunction(t *testing.T) {
	fac := FacilityFunc(func(context.Context, string, func(LoadProgress)) (InferenceFunc, error) {
		return nil, nil
	})
	_, err := NewLoader(NewFacilitySlot(fac)).EnsureReady(context.Background(), "m")
	if !errors.Is(err, ErrLoadFailed) {
		t.Errorf("error = %v, want ErrLoadFailed", err)
	}
}

func TestLoader_FacilityUnavailable(t *testing.T) {
	clock := &fakeClock{}
	l := NewLoader(NewFacilitySlot(nil), WithClock(clock), WithPolling(5, 100*time.Millisecond))

	_, err := l.EnsureReady(context.Background(), "m")
	if !errors.Is(err, ErrFacilityUnavailable) {
		t.Fatalf("error = %v, want ErrFacilityUnavailable", err)
	}
	if clock.count() != 5 {
		t.Errorf("waited %d times, want 5", clock.count())
	}
	if l.Loading() != "" {
		t.Error("load flag should be cleared after giving up")
	}
}

func TestLoader_FacilityInstalledWhilePolling(t *testing.T) {
	slot := NewFacilitySlot(nil)
	fac := newCountingFacility()
	clock := &fakeClock{onAfter: func(n int) {
		if n == 3 {
			slot.Install(fac)
		}
	}}
	l := NewLoader(slot, WithClock(clock), WithPolling(50, time.Second))

	h, err := l.EnsureReady(context.Background(), "m")
	if err != nil {
		t.Fatal(err)
	}
	if !h.Ready() {
		t.Error("expected ready handle")
	}
	if clock.count() != 3 {
		t.Errorf("waited %d times, want 3", clock.count())
	}
}

func TestLoader_PollingStopsOnContextCancel(t *testing.T) {
	clock := &fakeClock{block: true}
	l := NewLoader(NewFacilitySlot(nil), WithClock(clock))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := l.EnsureReady(ctx, "m")
	if !errors.Is(err, ErrFacilityUnavailable) {
		t.Fatalf("error = %v", err)
	}
	if !strings.Contains(err.Error(), "canceled") {
		t.Errorf("error should mention cancellation: %v", err)
	}
}

func TestLoader_ReportsLoadingProgress(t *testing.T) {
	fac := FacilityFunc(func(ctx context.Context, model string, progress func(LoadProgress)) (InferenceFunc, error) {
		progress(LoadProgress{Status: "initiate"})
		progress(LoadProgress{Percent: 33.4, HasPercent: true, Status: "download"})
		progress(LoadProgress{Percent: 66.6, HasPercent: true})
		return func(context.Context, string, InferenceOptions) (*InferenceOutput, error) {
			return &InferenceOutput{Data: []float32{1}, Size: 1}, nil
		}, nil
	})
	sink := &recordingSink{}
	l := NewLoader(NewFacilitySlot(fac), WithProgressSink(sink))
	if _, err := l.EnsureReady(context.Background(), "m"); err != nil {
		t.Fatal(err)
	}
	events := sink.phase(PhaseLoading)
	want := []ProgressEvent{
		{PhaseLoading, 0, "Loading m..."},
		{PhaseLoading, 33, "download"},
		{PhaseLoading, 67, "Loading..."},
		{PhaseLoading, 100, "Model loaded successfully"},
	}
	if len(events) != len(want) {
		t.Fatalf("events = %v, want %v", events, want)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Errorf("event %d = %+v, want %+v", i, events[i], want[i])
		}
	}

	// Cached path emits nothing.
	if _, err := l.EnsureReady(context.Background(), "m"); err != nil {
		t.Fatal(err)
	}
	if n := len(sink.phase(PhaseLoading)); n != len(want) {
		t.Errorf("cached lookup emitted events: %d", n-len(want))
	}
}

func TestLoader_Models(t *testing.T) {
	fac := FacilityFunc(func(ctx context.Context, model string, progress func(LoadProgress)) (InferenceFunc, error) {
		if model == "bad" {
			return nil, errors.New("boom")
		}
		return func(context.Context, string, InferenceOptions) (*InferenceOutput, error) {
			return &InferenceOutput{Data: []float32{1}, Size: 1}, nil
		}, nil
	})
	l := NewLoader(NewFacilitySlot(fac))
	ctx := context.Background()
	_, _ = l.EnsureReady(ctx, "zeta")
	_, _ = l.EnsureReady(ctx, "bad")
	_, _ = l.EnsureReady(ctx, "alpha")

	models := l.Models()
	if len(models) != 3 {
		t.Fatalf("Models() = %+v", models)
	}
	if models[0].Name != "alpha" || models[1].Name != "bad" || models[2].Name != "zeta" {
		t.Errorf("Models() not sorted: %+v", models)
	}
	if !models[0].Current || models[2].Current {
		t.Errorf("alpha should be current: %+v", models)
	}
	if models[1].State != StateFailed || models[1].Reason == "" {
		t.Errorf("bad should be failed: %+v", models[1])
	}
	if st := l.Status("never"); st.State != StateUnloaded {
		t.Errorf("Status(never) = %v", st.State)
	}
}

func TestFacilitySlot(t *testing.T) {
	s := NewFacilitySlot(nil)
	if _, ok := s.Locate(); ok {
		t.Error("empty slot should not locate a facility")
	}
	f := NewHashFacility(4)
	s.Install(f)
	got, ok := s.Locate()
	if !ok || got != Facility(f) {
		t.Error("installed facility not located")
	}
}

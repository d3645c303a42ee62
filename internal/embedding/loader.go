package embedding

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultPollAttempts and DefaultPollInterval bound the wait for the facility (about 5s).
	DefaultPollAttempts = 50
	DefaultPollInterval = 100 * time.Millisecond
)

// Loader resolves model names to ready handles. It caches every model it loads for
// the life of the process and allows at most one load at a time; a second load
// while one is running is rejected rather than queued.
type Loader struct {
	locator      Locator
	sink         ProgressSink
	clock        Clock
	pollAttempts int
	pollInterval time.Duration
	logger       *zap.Logger

	mu       sync.Mutex
	cache    map[string]*ModelHandle
	failures map[string]string
	current  string
	loading  string // model being loaded; empty when idle
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithProgressSink sets where loading progress is reported.
func WithProgressSink(s ProgressSink) LoaderOption {
	return func(l *Loader) {
		if s != nil {
			l.sink = s
		}
	}
}

// WithClock sets the clock used between facility polls.
func WithClock(c Clock) LoaderOption {
	return func(l *Loader) {
		if c != nil {
			l.clock = c
		}
	}
}

// WithPolling sets how many times, and how often, the loader re-checks for the facility.
func WithPolling(attempts int, interval time.Duration) LoaderOption {
	return func(l *Loader) {
		if attempts >= 0 {
			l.pollAttempts = attempts
		}
		if interval > 0 {
			l.pollInterval = interval
		}
	}
}

// WithLoaderLogger sets a logger for load lifecycle events.
func WithLoaderLogger(logger *zap.Logger) LoaderOption {
	return func(l *Loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// NewLoader creates a loader that obtains its facility from locator.
func NewLoader(locator Locator, opts ...LoaderOption) *Loader {
	l := &Loader{
		locator:      locator,
		sink:         NopSink{},
		clock:        RealClock(),
		pollAttempts: DefaultPollAttempts,
		pollInterval: DefaultPollInterval,
		logger:       zap.NewNop(),
		cache:        make(map[string]*ModelHandle),
		failures:     make(map[string]string),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// EnsureReady returns a ready handle for model, loading it through the facility on
// first use. Cached models return immediately. While any load is running, every
// other call that needs a load fails with ErrAlreadyInProgress.
func (l *Loader) EnsureReady(ctx context.Context, model string) (*ModelHandle, error) {
	l.mu.Lock()
	if h, ok := l.cache[model]; ok {
		l.current = model
		l.mu.Unlock()
		return h, nil
	}
	if l.loading != "" {
		inFlight := l.loading
		l.mu.Unlock()
		l.logger.Debug("model load rejected", zap.String("model", model), zap.String("in_flight", inFlight))
		return nil, &LoadError{Model: model, Kind: ErrAlreadyInProgress, Reason: inFlight + " is loading"}
	}
	l.loading = model
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		l.loading = ""
		l.mu.Unlock()
	}()

	started := time.Now()
	infer, err := l.load(ctx, model)
	if err != nil {
		l.mu.Lock()
		l.failures[model] = err.Error()
		l.mu.Unlock()
		l.logger.Warn("model load failed", zap.String("model", model), zap.Error(err))
		return nil, err
	}

	h := NewModelHandle(model, infer)
	l.mu.Lock()
	l.cache[model] = h
	delete(l.failures, model)
	l.current = model
	l.mu.Unlock()

	l.report(100, "Model loaded successfully")
	l.logger.Info("model loaded", zap.String("model", model), zap.Duration("elapsed", time.Since(started)))
	return h, nil
}

func (l *Loader) load(ctx context.Context, model string) (InferenceFunc, error) {
	facility, err := l.waitForFacility(ctx)
	if err != nil {
		return nil, &LoadError{Model: model, Kind: ErrFacilityUnavailable, Reason: err.Error()}
	}

	l.report(0, fmt.Sprintf("Loading %s...", model))
	infer, err := facility.Load(ctx, model, func(p LoadProgress) {
		if !p.HasPercent {
			return
		}
		status := p.Status
		if status == "" {
			status = "Loading..."
		}
		l.report(math.Round(p.Percent), status)
	})
	if err != nil {
		return nil, &LoadError{Model: model, Kind: ErrLoadFailed, Reason: err.Error()}
	}
	if infer == nil {
		return nil, &LoadError{Model: model, Kind: ErrLoadFailed, Reason: "facility returned no inference function"}
	}
	return infer, nil
}

// waitForFacility checks for the facility once, then up to pollAttempts more times
// at pollInterval.
func (l *Loader) waitForFacility(ctx context.Context) (Facility, error) {
	for attempt := 0; ; attempt++ {
		if l.locator != nil {
			if f, ok := l.locator.Locate(); ok {
				return f, nil
			}
		}
		if attempt >= l.pollAttempts {
			return nil, fmt.Errorf("not available after %d checks", attempt+1)
		}
		if attempt == 0 {
			l.logger.Debug("waiting for model loading facility",
				zap.Int("attempts", l.pollAttempts), zap.Duration("interval", l.pollInterval))
		}
		select {
		case <-l.clock.After(l.pollInterval):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (l *Loader) report(percent float64, message string) {
	l.sink.Report(ProgressEvent{Phase: PhaseLoading, Percent: clampPercent(percent), Message: message})
}

// Current returns the most recently requested ready model, or nil.
func (l *Loader) Current() *ModelHandle {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cache[l.current]
}

// Loading returns the name of the model being loaded, or "" when idle.
func (l *Loader) Loading() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loading
}

// Status reports the lifecycle state of model.
func (l *Loader) Status(model string) ModelStatus {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.statusLocked(model)
}

func (l *Loader) statusLocked(model string) ModelStatus {
	st := ModelStatus{Name: model, Current: model != "" && model == l.current}
	switch {
	case l.cache[model] != nil:
		st.State = StateReady
	case l.loading == model && model != "":
		st.State = StateLoading
	case l.failures[model] != "":
		st.State = StateFailed
		st.Reason = l.failures[model]
	default:
		st.State = StateUnloaded
	}
	return st
}

// Models lists every model the loader has cached, is loading, or failed to load,
// sorted by name.
func (l *Loader) Models() []ModelStatus {
	l.mu.Lock()
	defer l.mu.Unlock()
	names := make(map[string]struct{}, len(l.cache)+len(l.failures)+1)
	for n := range l.cache {
		names[n] = struct{}{}
	}
	for n := range l.failures {
		names[n] = struct{}{}
	}
	if l.loading != "" {
		names[l.loading] = struct{}{}
	}
	out := make([]ModelStatus, 0, len(names))
	for n := range names {
		out = append(out, l.statusLocked(n))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

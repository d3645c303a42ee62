// Package progress renders progress events as terminal bars or log lines and keeps
// the latest ones for status endpoints.
package progress

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"

	"github.com/hyperjump/vecta/internal/embedding"
)

// BarSink draws one terminal progress bar per phase.
type BarSink struct {
	w io.Writer

	mu    sync.Mutex
	bar   *progressbar.ProgressBar
	phase embedding.Phase
}

// NewBarSink returns a sink drawing to w, or to stderr when w is nil.
func NewBarSink(w io.Writer) *BarSink {
	if w == nil {
		w = os.Stderr
	}
	return &BarSink{w: w}
}

// Report moves the bar for the event's phase, starting a new bar when the phase changes.
func (s *BarSink) Report(e embedding.ProgressEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bar == nil || s.phase != e.Phase {
		s.finishLocked()
		s.bar = progressbar.NewOptions(100,
			progressbar.OptionSetDescription("  "+e.Message),
			progressbar.OptionSetWriter(s.w),
			progressbar.OptionSetPredictTime(false),
			progressbar.OptionClearOnFinish(),
		)
		s.phase = e.Phase
	}
	s.bar.Describe("  " + e.Message)
	_ = s.bar.Set(int(e.Percent))
	if e.Percent >= 100 && isFinal(e) {
		s.finishLocked()
	}
}

// Close finishes any bar still on screen.
func (s *BarSink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finishLocked()
}

func (s *BarSink) finishLocked() {
	if s.bar != nil {
		_ = s.bar.Finish()
		s.bar = nil
	}
}

// isFinal reports whether e is the last event its phase emits. Embedding reaches 100%
// once for the last batch and again on completion; only the latter closes the bar.
func isFinal(e embedding.ProgressEvent) bool {
	if e.Phase != embedding.PhaseEmbedding {
		return true
	}
	return strings.HasPrefix(e.Message, "Generated")
}

// Recorder keeps the most recent event of each phase.
type Recorder struct {
	mu     sync.RWMutex
	last   map[embedding.Phase]embedding.ProgressEvent
	latest *embedding.ProgressEvent
}

// NewRecorder returns an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{last: make(map[embedding.Phase]embedding.ProgressEvent)}
}

// Report records e.
func (r *Recorder) Report(e embedding.ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.last[e.Phase] = e
	r.latest = &e
}

// Snapshot returns the last event per phase, loading before embedding.
func (r *Recorder) Snapshot() []embedding.ProgressEvent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]embedding.ProgressEvent, 0, 2)
	for _, p := range []embedding.Phase{embedding.PhaseLoading, embedding.PhaseEmbedding} {
		if e, ok := r.last[p]; ok {
			out = append(out, e)
		}
	}
	return out
}

// Latest returns the most recent event of any phase.
func (r *Recorder) Latest() (embedding.ProgressEvent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.latest == nil {
		return embedding.ProgressEvent{}, false
	}
	return *r.latest, true
}

// LogSink writes events to a zap logger at debug level.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink returns a sink logging to logger.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Report logs e.
func (s *LogSink) Report(e embedding.ProgressEvent) {
	s.logger.Debug("progress",
		zap.String("phase", string(e.Phase)),
		zap.Float64("percent", e.Percent),
		zap.String("message", e.Message))
}

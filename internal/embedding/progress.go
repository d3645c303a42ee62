package embedding

import "fmt"

// Phase is the pipeline stage a progress event belongs to.
type Phase string

const (
	PhaseLoading   Phase = "loading"
	PhaseEmbedding Phase = "embedding"
)

// ProgressEvent reports how far a phase has got. Percent is in [0, 100].
type ProgressEvent struct {
	Phase   Phase   `json:"phase"`
	Percent float64 `json:"percent"`
	Message string  `json:"message"`
}

func (e ProgressEvent) String() string {
	return fmt.Sprintf("%s %.0f%% %s", e.Phase, e.Percent, e.Message)
}

// ProgressSink consumes progress events. Report must not block for long; events are
// fire-and-forget and carry no acknowledgement.
type ProgressSink interface {
	Report(event ProgressEvent)
}

// SinkFunc adapts a function to ProgressSink.
type SinkFunc func(ProgressEvent)

// Report calls f(event).
func (f SinkFunc) Report(event ProgressEvent) { f(event) }

// NopSink discards every event.
type NopSink struct{}

// Report does nothing.
func (NopSink) Report(ProgressEvent) {}

// MultiSink fans an event out to several sinks in order.
type MultiSink []ProgressSink

// Report forwards event to every non-nil sink.
func (m MultiSink) Report(event ProgressEvent) {
	for _, s := range m {
		if s != nil {
			s.Report(event)
		}
	}
}

func clampPercent(p float64) float64 {
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	default:
		return p
	}
}

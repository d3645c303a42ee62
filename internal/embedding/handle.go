package embedding

import "context"

// LoadState is the lifecycle state of a model.
type LoadState int

const (
	StateUnloaded LoadState = iota
	StateLoading
	StateReady
	StateFailed
)

func (s LoadState) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "unloaded"
	}
}

// MarshalText encodes the state by name.
func (s LoadState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name. Unknown names decode as unloaded.
func (s *LoadState) UnmarshalText(text []byte) error {
	switch string(text) {
	case "loading":
		*s = StateLoading
	case "ready":
		*s = StateReady
	case "failed":
		*s = StateFailed
	default:
		*s = StateUnloaded
	}
	return nil
}

// ModelHandle is a loaded model: its name and the inference function the facility
// produced for it.
type ModelHandle struct {
	name  string
	infer InferenceFunc
	state LoadState
}

// NewModelHandle wraps an inference function as a Ready handle.
func NewModelHandle(name string, infer InferenceFunc) *ModelHandle {
	state := StateReady
	if infer == nil {
		state = StateUnloaded
	}
	return &ModelHandle{name: name, infer: infer, state: state}
}

// Name returns the model name.
func (h *ModelHandle) Name() string { return h.name }

// State returns the handle's load state.
func (h *ModelHandle) State() LoadState { return h.state }

// Ready reports whether the handle can run inference.
func (h *ModelHandle) Ready() bool {
	return h != nil && h.state == StateReady && h.infer != nil
}

// Infer runs the model on a single text.
func (h *ModelHandle) Infer(ctx context.Context, text string, opts InferenceOptions) (*InferenceOutput, error) {
	if !h.Ready() {
		return nil, ErrModelNotReady
	}
	return h.infer(ctx, text, opts)
}

// ModelStatus is a point-in-time view of one model's lifecycle.
type ModelStatus struct {
	Name    string    `json:"name"`
	State   LoadState `json:"state"`
	Current bool      `json:"current"`
	Reason  string    `json:"reason,omitempty"`
}

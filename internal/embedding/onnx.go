//go:build cgo
// +build cgo

package embedding

import (
	"context"
	"fmt"
	"os"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/hyperjump/vecta/pkg/utils"
)

// ONNXConfig describes how the ONNX facility finds and runs models.
type ONNXConfig struct {
	ModelDir   string
	Dimensions int
	MaxTokens  int
	OutputName string // token-level output, e.g. "last_hidden_state"
}

// InitRuntime initializes the ONNX Runtime environment from the shared library at
// libPath (the platform default when empty). Calling it again is a no-op.
func InitRuntime(libPath string) error {
	if ort.IsInitialized() {
		return nil
	}
	if libPath != "" {
		ort.SetSharedLibraryPath(libPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("failed to initialize ONNX runtime: %w", err)
	}
	return nil
}

// ONNXFacility loads BERT-style sentence models with ONNX Runtime. It requires CGO
// and the onnxruntime shared library.
type ONNXFacility struct {
	cfg       ONNXConfig
	tokenizer Tokenizer

	mu       sync.Mutex
	sessions []*onnxSession
}

// NewONNXFacility creates the facility. InitRuntime must have succeeded first.
func NewONNXFacility(cfg ONNXConfig) (*ONNXFacility, error) {
	if !ort.IsInitialized() {
		return nil, fmt.Errorf("ONNX runtime not initialized")
	}
	if cfg.Dimensions <= 0 || cfg.MaxTokens <= 2 {
		return nil, fmt.Errorf("invalid ONNX config: dimensions=%d max_tokens=%d", cfg.Dimensions, cfg.MaxTokens)
	}
	if cfg.OutputName == "" {
		cfg.OutputName = "last_hidden_state"
	}
	return &ONNXFacility{cfg: cfg, tokenizer: &SimpleTokenizer{}}, nil
}

// Load opens <ModelDir>/<model>/model.onnx and returns its inference function.
func (f *ONNXFacility) Load(ctx context.Context, model string, progress func(LoadProgress)) (InferenceFunc, error) {
	report := func(pct float64, status string) {
		if progress != nil {
			progress(LoadProgress{Percent: pct, HasPercent: true, Status: status})
		}
	}
	report(0, "Resolving model")
	path, err := ModelPath(f.cfg.ModelDir, model)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("model file: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	report(40, "Creating session")
	s, err := newONNXSession(path, f.cfg, f.tokenizer)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.sessions = append(f.sessions, s)
	f.mu.Unlock()
	report(100, "Session ready")
	return s.infer, nil
}

// Close destroys every session the facility created.
func (f *ONNXFacility) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	var first error
	for _, s := range f.sessions {
		if err := s.destroy(); err != nil && first == nil {
			first = err
		}
	}
	f.sessions = nil
	return first
}

// onnxSession holds one model session and its pre-allocated tensors; Run reads the
// input tensors and writes the output tensor in place.
type onnxSession struct {
	cfg       ONNXConfig
	tokenizer Tokenizer

	mu                  sync.Mutex
	session             *ort.AdvancedSession
	inputIDsTensor      *ort.Tensor[int64]
	attentionMaskTensor *ort.Tensor[int64]
	tokenTypeIDsTensor  *ort.Tensor[int64]
	outputTensor        *ort.Tensor[float32]
}

func newONNXSession(modelPath string, cfg ONNXConfig, tokenizer Tokenizer) (*onnxSession, error) {
	s := &onnxSession{cfg: cfg, tokenizer: tokenizer}
	inputIDs, attentionMask, tokenTypeIDs := tokenizer.Tokenize("", cfg.MaxTokens)
	shape := ort.NewShape(1, int64(cfg.MaxTokens))

	var err error
	if s.inputIDsTensor, err = ort.NewTensor(shape, inputIDs); err != nil {
		return nil, fmt.Errorf("failed to create input_ids tensor: %w", err)
	}
	if s.attentionMaskTensor, err = ort.NewTensor(shape, attentionMask); err != nil {
		_ = s.destroy()
		return nil, fmt.Errorf("failed to create attention_mask tensor: %w", err)
	}
	if s.tokenTypeIDsTensor, err = ort.NewTensor(shape, tokenTypeIDs); err != nil {
		_ = s.destroy()
		return nil, fmt.Errorf("failed to create token_type_ids tensor: %w", err)
	}
	outputData := make([]float32, cfg.MaxTokens*cfg.Dimensions)
	if s.outputTensor, err = ort.NewTensor(ort.NewShape(1, int64(cfg.MaxTokens), int64(cfg.Dimensions)), outputData); err != nil {
		_ = s.destroy()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}

	s.session, err = ort.NewAdvancedSession(
		modelPath,
		[]string{"input_ids", "attention_mask", "token_type_ids"},
		[]string{cfg.OutputName},
		[]ort.ArbitraryTensor{s.inputIDsTensor, s.attentionMaskTensor, s.tokenTypeIDsTensor},
		[]ort.ArbitraryTensor{s.outputTensor},
		nil,
	)
	if err != nil {
		_ = s.destroy()
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}
	return s, nil
}

func (s *onnxSession) infer(ctx context.Context, text string, opts InferenceOptions) (*InferenceOutput, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return nil, fmt.Errorf("session closed")
	}

	inputIDs, attentionMask, tokenTypeIDs := s.tokenizer.Tokenize(text, s.cfg.MaxTokens)
	copy(s.inputIDsTensor.GetData(), inputIDs)
	copy(s.attentionMaskTensor.GetData(), attentionMask)
	copy(s.tokenTypeIDsTensor.GetData(), tokenTypeIDs)

	if err := s.session.Run(); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	hidden := s.outputTensor.GetData()
	var vec []float32
	switch opts.Pooling {
	case "", PoolingMean:
		vec = utils.MeanPool(hidden, attentionMask, s.cfg.MaxTokens, s.cfg.Dimensions)
	case PoolingCLS:
		vec = make([]float32, s.cfg.Dimensions)
		copy(vec, hidden[:s.cfg.Dimensions])
	default:
		return nil, fmt.Errorf("unsupported pooling %q", opts.Pooling)
	}
	if vec == nil {
		return nil, fmt.Errorf("model produced no token output")
	}
	if opts.Normalize {
		utils.NormalizeL2(vec)
	}
	return &InferenceOutput{Data: vec, Size: len(vec)}, nil
}

func (s *onnxSession) destroy() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var err error
	if s.session != nil {
		err = s.session.Destroy()
		s.session = nil
	}
	if s.inputIDsTensor != nil {
		_ = s.inputIDsTensor.Destroy()
	}
	if s.attentionMaskTensor != nil {
		_ = s.attentionMaskTensor.Destroy()
	}
	if s.tokenTypeIDsTensor != nil {
		_ = s.tokenTypeIDsTensor.Destroy()
	}
	if s.outputTensor != nil {
		_ = s.outputTensor.Destroy()
	}
	s.inputIDsTensor, s.attentionMaskTensor, s.tokenTypeIDsTensor, s.outputTensor = nil, nil, nil, nil
	return err
}

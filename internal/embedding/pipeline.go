package embedding

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hyperjump/vecta/internal/chunk"
	"github.com/hyperjump/vecta/pkg/utils"
)

// DefaultBatchSize is the number of units inferred together when none is configured.
const DefaultBatchSize = 8

// Pipeline converts text units to vectors with a loaded model. Batches run one
// after another; the units of a batch are inferred concurrently.
type Pipeline struct {
	sink      ProgressSink
	batchSize int
	options   InferenceOptions
	logger    *zap.Logger
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithPipelineSink sets where embedding progress is reported.
func WithPipelineSink(s ProgressSink) PipelineOption {
	return func(p *Pipeline) {
		if s != nil {
			p.sink = s
		}
	}
}

// WithDefaultBatchSize sets the batch size used when a call does not override it.
func WithDefaultBatchSize(n int) PipelineOption {
	return func(p *Pipeline) {
		if n > 0 {
			p.batchSize = n
		}
	}
}

// WithDefaultInferenceOptions sets pooling and normalization used when a call does not override them.
func WithDefaultInferenceOptions(opts InferenceOptions) PipelineOption {
	return func(p *Pipeline) {
		if opts.Pooling != "" {
			p.options = opts
		}
	}
}

// WithPipelineLogger sets a logger for batch-level debug output.
func WithPipelineLogger(logger *zap.Logger) PipelineOption {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewPipeline creates a pipeline.
func NewPipeline(opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		sink:      NopSink{},
		batchSize: DefaultBatchSize,
		options:   DefaultInferenceOptions(),
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// BatchSize returns the default batch size.
func (p *Pipeline) BatchSize() int { return p.batchSize }

type embedCall struct {
	batchSize int
	options   InferenceOptions
}

// EmbedOption overrides pipeline defaults for one Embed call.
type EmbedOption func(*embedCall)

// WithBatchSize overrides the batch size. Values below 1 are ignored.
func WithBatchSize(n int) EmbedOption {
	return func(c *embedCall) {
		if n > 0 {
			c.batchSize = n
		}
	}
}

// WithPooling overrides the pooling strategy.
func WithPooling(pooling string) EmbedOption {
	return func(c *embedCall) {
		if pooling != "" {
			c.options.Pooling = pooling
		}
	}
}

// WithNormalize overrides L2 normalization.
func WithNormalize(normalize bool) EmbedOption {
	return func(c *embedCall) { c.options.Normalize = normalize }
}

// Embed returns one vector per unit, in unit order. Any failure aborts the whole
// call and no vectors are returned.
func (p *Pipeline) Embed(ctx context.Context, units []chunk.TextUnit, handle *ModelHandle, opts ...EmbedOption) ([][]float32, error) {
	if len(units) == 0 {
		return nil, ErrEmptyInput
	}
	if !handle.Ready() {
		name := "<nil>"
		if handle != nil {
			name = handle.Name()
		}
		return nil, fmt.Errorf("%w: %s", ErrModelNotReady, name)
	}
	call := embedCall{batchSize: p.batchSize, options: p.options}
	for _, opt := range opts {
		opt(&call)
	}

	total := len(units)
	started := time.Now()
	vectors := make([][]float32, 0, total)
	dims := 0
	p.report(0, fmt.Sprintf("Processing 0/%d texts", total))

	for start := 0; start < total; start += call.batchSize {
		end := start + call.batchSize
		if end > total {
			end = total
		}
		batch := units[start:end]
		out, err := p.runBatch(ctx, batch, handle, call.options, &dims)
		if err != nil {
			p.logger.Debug("embedding batch failed",
				zap.String("model", handle.Name()), zap.Int("batch_start", start), zap.Error(err))
			return nil, err
		}
		vectors = append(vectors, out...)
		p.report(float64(end)/float64(total)*100, fmt.Sprintf("Processing %d/%d texts", end, total))
	}

	if len(vectors) != total {
		return nil, fmt.Errorf("%w: %d vectors for %d texts", ErrMismatch, len(vectors), total)
	}
	p.report(100, fmt.Sprintf("Generated %d embeddings successfully", len(vectors)))
	p.logger.Debug("embedding complete",
		zap.String("model", handle.Name()),
		zap.Int("texts", total),
		zap.Int("dimensions", dims),
		zap.Duration("elapsed", time.Since(started)))
	return vectors, nil
}

// runBatch infers every unit of batch concurrently and returns vectors in batch order.
// dims carries the vector length across batches; zero means not yet known.
func (p *Pipeline) runBatch(ctx context.Context, batch []chunk.TextUnit, handle *ModelHandle, opts InferenceOptions, dims *int) ([][]float32, error) {
	for _, u := range batch {
		if strings.TrimSpace(u.Text) == "" {
			return nil, &UnitError{Index: u.Index, Text: u.Text, Kind: ErrEmptyUnit}
		}
	}

	outputs := make([]*InferenceOutput, len(batch))
	errs := make([]error, len(batch))
	var g errgroup.Group
	for i, u := range batch {
		i, u := i, u
		g.Go(func() error {
			out, err := handle.Infer(ctx, strings.TrimSpace(u.Text), opts)
			outputs[i], errs[i] = out, err
			return err
		})
	}
	_ = g.Wait()

	// Report the first failure in unit order, not completion order.
	vectors := make([][]float32, len(batch))
	for i, u := range batch {
		if errs[i] != nil {
			return nil, &UnitError{Index: u.Index, Text: u.Text, Kind: ErrInferenceFailed, Err: errs[i]}
		}
		vec, err := validateOutput(outputs[i], *dims)
		if err != nil {
			return nil, &UnitError{Index: u.Index, Text: u.Text, Kind: ErrInvalidOutput, Err: err}
		}
		if *dims == 0 {
			*dims = len(vec)
		}
		vectors[i] = vec
	}
	return vectors, nil
}

// validateOutput checks that out is a well-formed vector of length dims (any length
// when dims is zero) and returns a private copy of its data.
func validateOutput(out *InferenceOutput, dims int) ([]float32, error) {
	switch {
	case out == nil:
		return nil, fmt.Errorf("no output")
	case len(out.Data) == 0:
		return nil, fmt.Errorf("empty vector")
	case out.Size != len(out.Data):
		return nil, fmt.Errorf("declared size %d but got %d values", out.Size, len(out.Data))
	case dims != 0 && len(out.Data) != dims:
		return nil, fmt.Errorf("got %d dimensions, expected %d", len(out.Data), dims)
	case !utils.AllFinite(out.Data):
		return nil, fmt.Errorf("vector contains NaN or Inf")
	}
	vec := make([]float32, len(out.Data))
	copy(vec, out.Data)
	return vec, nil
}

func (p *Pipeline) report(percent float64, message string) {
	p.sink.Report(ProgressEvent{Phase: PhaseEmbedding, Percent: clampPercent(percent), Message: message})
}

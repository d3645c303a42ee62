package embedding

import (
	"context"
	"fmt"
	"math"

	"github.com/hyperjump/vecta/pkg/utils"
)

// HashFacility produces deterministic vectors derived from a hash of the text, so the
// same text always gets the same embedding. It serves tests and machines without an
// inference runtime.
type HashFacility struct {
	dimensions int
}

// NewHashFacility returns a facility whose models produce vectors of the given dimensions.
func NewHashFacility(dimensions int) *HashFacility {
	if dimensions <= 0 {
		dimensions = 384
	}
	return &HashFacility{dimensions: dimensions}
}

// Dimensions returns the vector length.
func (f *HashFacility) Dimensions() int { return f.dimensions }

// Load returns an inference function for model. Every model name is accepted; the
// name seeds the hash so different models give different vectors.
func (f *HashFacility) Load(ctx context.Context, model string, progress func(LoadProgress)) (InferenceFunc, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if progress != nil {
		progress(LoadProgress{Percent: 100, HasPercent: true, Status: "ready"})
	}
	seed := HashString(model)
	return func(ctx context.Context, text string, opts InferenceOptions) (*InferenceOutput, error) {
		switch opts.Pooling {
		case "", PoolingMean, PoolingCLS:
		default:
			return nil, fmt.Errorf("unsupported pooling %q", opts.Pooling)
		}
		h := HashString(text) ^ seed
		emb := make([]float32, f.dimensions)
		for i := range emb {
			emb[i] = float32(math.Sin(float64(h*(i+1)))*0.1 + 0.01)
		}
		if opts.Normalize {
			utils.NormalizeL2(emb)
		}
		return &InferenceOutput{Data: emb, Size: len(emb)}, nil
	}, nil
}

package embedding

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// InferenceCache memoises inference results keyed by model, options and text.
// It is bounded by capacity (least recently used entries go first) and, when ttl
// is positive, entries expire after ttl.
type InferenceCache struct {
	cache   *ttlcache.Cache[string, []float32]
	started bool
}

// NewInferenceCache creates a cache holding at most capacity vectors.
func NewInferenceCache(capacity int, ttl time.Duration) *InferenceCache {
	opts := []ttlcache.Option[string, []float32]{
		ttlcache.WithDisableTouchOnHit[string, []float32](),
	}
	if capacity > 0 {
		opts = append(opts, ttlcache.WithCapacity[string, []float32](uint64(capacity)))
	}
	if ttl > 0 {
		opts = append(opts, ttlcache.WithTTL[string, []float32](ttl))
	}
	c := &InferenceCache{cache: ttlcache.New[string, []float32](opts...)}
	if ttl > 0 {
		go c.cache.Start()
		c.started = true
	}
	return c
}

// CacheKey builds the cache key for one inference call.
func CacheKey(model, text string, opts InferenceOptions) string {
	var b strings.Builder
	b.Grow(len(model) + len(text) + 16)
	b.WriteString(model)
	b.WriteByte(0)
	b.WriteString(opts.Pooling)
	b.WriteByte(0)
	b.WriteString(strconv.FormatBool(opts.Normalize))
	b.WriteByte(0)
	b.WriteString(text)
	return b.String()
}

// Get returns a copy of the cached vector for key.
func (c *InferenceCache) Get(key string) ([]float32, bool) {
	item := c.cache.Get(key)
	if item == nil {
		return nil, false
	}
	v := item.Value()
	out := make([]float32, len(v))
	copy(out, v)
	return out, true
}

// Set stores a copy of vec under key.
func (c *InferenceCache) Set(key string, vec []float32) {
	v := make([]float32, len(vec))
	copy(v, vec)
	c.cache.Set(key, v, ttlcache.DefaultTTL)
}

// Len returns the number of cached vectors.
func (c *InferenceCache) Len() int {
	return c.cache.Len()
}

// Close stops the expiration loop.
func (c *InferenceCache) Close() {
	if c.started {
		c.cache.Stop()
		c.started = false
	}
}

// CachingFacility wraps f so the inference functions it loads consult cache before
// running the model. Only well-formed results are stored.
func CachingFacility(f Facility, cache *InferenceCache) Facility {
	return FacilityFunc(func(ctx context.Context, model string, progress func(LoadProgress)) (InferenceFunc, error) {
		infer, err := f.Load(ctx, model, progress)
		if err != nil || infer == nil {
			return infer, err
		}
		return func(ctx context.Context, text string, opts InferenceOptions) (*InferenceOutput, error) {
			key := CacheKey(model, text, opts)
			if vec, ok := cache.Get(key); ok {
				return &InferenceOutput{Data: vec, Size: len(vec)}, nil
			}
			out, err := infer(ctx, text, opts)
			if err != nil {
				return nil, err
			}
			if out != nil && len(out.Data) > 0 && out.Size == len(out.Data) {
				cache.Set(key, out.Data)
			}
			return out, nil
		}, nil
	})
}

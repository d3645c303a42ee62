package main

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/vecta/internal/chunk"
	"github.com/hyperjump/vecta/internal/config"
	"github.com/hyperjump/vecta/internal/embedding"
	"github.com/hyperjump/vecta/internal/manager"
	"github.com/hyperjump/vecta/internal/ortenv"
	"github.com/hyperjump/vecta/internal/progress"
)

// Components holds initialized services.
type Components struct {
	Slot      *embedding.FacilitySlot
	Recorder  *progress.Recorder
	Manager   *manager.Manager
	Backend   string
	cache     *embedding.InferenceCache
	onnx      *embedding.ONNXFacility
	installer *ortenv.Installer
}

// Close releases the inference runtime and background goroutines.
func (c *Components) Close() {
	if c.installer != nil {
		c.installer.Stop()
	}
	if c.onnx != nil {
		_ = c.onnx.Close()
	}
	if c.cache != nil {
		c.cache.Close()
	}
}

// initializeComponents wires the facility slot, loader, pipeline and manager.
// Progress goes to a recorder and the debug log, plus any extra sinks.
func initializeComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger, sinks ...embedding.ProgressSink) (*Components, error) {
	c := &Components{
		Slot:     embedding.NewFacilitySlot(nil),
		Recorder: progress.NewRecorder(),
	}
	if cfg.Embedding.CacheSize > 0 {
		ttl := time.Duration(cfg.Embedding.CacheTTLMinutes) * time.Minute
		c.cache = embedding.NewInferenceCache(cfg.Embedding.CacheSize, ttl)
	}
	wrap := func(f embedding.Facility) embedding.Facility {
		if c.cache == nil {
			return f
		}
		return embedding.CachingFacility(f, c.cache)
	}

	switch cfg.Embedding.Backend {
	case config.BackendHash:
		c.Slot.Install(wrap(embedding.NewHashFacility(cfg.Embedding.Dimensions)))
		c.Backend = config.BackendHash
	case config.BackendONNX, "":
		if err := c.startONNX(ctx, cfg, logger, wrap); err != nil {
			logger.Warn("ONNX backend unavailable, using hash embeddings", zap.Error(err))
			c.Slot.Install(wrap(embedding.NewHashFacility(cfg.Embedding.Dimensions)))
			c.Backend = config.BackendHash
		} else {
			c.Backend = config.BackendONNX
		}
	default:
		return nil, errors.New("unknown embedding backend: " + cfg.Embedding.Backend)
	}
	logger.Info("embedding backend", zap.String("backend", c.Backend), zap.String("default_model", cfg.Embedding.DefaultModel))

	sink := embedding.MultiSink{c.Recorder, progress.NewLogSink(logger)}
	for _, s := range sinks {
		sink = append(sink, s)
	}

	loader := embedding.NewLoader(c.Slot,
		embedding.WithProgressSink(sink),
		embedding.WithPolling(cfg.Loader.PollAttempts, time.Duration(cfg.Loader.PollIntervalMs)*time.Millisecond),
		embedding.WithLoaderLogger(logger),
	)
	pipeline := embedding.NewPipeline(
		embedding.WithPipelineSink(sink),
		embedding.WithDefaultBatchSize(cfg.Embedding.BatchSize),
		embedding.WithDefaultInferenceOptions(embedding.InferenceOptions{
			Pooling:   cfg.Embedding.Pooling,
			Normalize: cfg.Embedding.NormalizeOrDefault(),
		}),
		embedding.WithPipelineLogger(logger),
	)
	c.Manager = manager.New(loader, pipeline, chunk.NewPolicy(cfg.Chunking.DefaultStrategy),
		manager.WithDefaultModel(cfg.Embedding.DefaultModel),
		manager.WithLogger(logger),
	)
	return c, nil
}

// startONNX installs the ONNX facility now, or once the runtime library appears.
func (c *Components) startONNX(ctx context.Context, cfg *config.Config, logger *zap.Logger, wrap func(embedding.Facility) embedding.Facility) error {
	lib := cfg.Embedding.RuntimeLibrary
	build := func() (embedding.Facility, error) {
		if err := embedding.InitRuntime(lib); err != nil {
			return nil, err
		}
		f, err := embedding.NewONNXFacility(embedding.ONNXConfig{
			ModelDir:   cfg.Embedding.ModelDir,
			Dimensions: cfg.Embedding.Dimensions,
			MaxTokens:  cfg.Embedding.MaxTokens,
			OutputName: cfg.Embedding.OutputName,
		})
		if err != nil {
			return nil, err
		}
		c.onnx = f
		return wrap(f), nil
	}
	c.installer = ortenv.NewInstaller(c.Slot, lib, build, ortenv.WithLogger(logger))
	if err := c.installer.Start(ctx); err != nil {
		c.installer = nil
		return err
	}
	return nil
}

// Package manager ties model loading, chunking and batched inference into the
// request/response flow callers use to turn raw text into embedded documents.
package manager

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/vecta/internal/chunk"
	"github.com/hyperjump/vecta/internal/embedding"
	"github.com/hyperjump/vecta/internal/models"
)

const (
	msgNoChunks       = "No valid text chunks found after tokenization"
	msgMismatch       = "Embedding generation failed - mismatch in text chunks and embeddings"
	statusMismatch    = "Error: Embedding generation failed"
	statusLoadPrefix  = "Model loading error: "
	statusErrorPrefix = "Error: "
)

// Manager owns the model cache (through its loader), the pipeline and the chunk policy.
type Manager struct {
	loader       *embedding.Loader
	pipeline     *embedding.Pipeline
	policy       *chunk.Policy
	defaultModel string
	now          func() time.Time
	logger       *zap.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithDefaultModel sets the model used when a request names none.
func WithDefaultModel(name string) Option {
	return func(m *Manager) { m.defaultModel = name }
}

// WithNow sets the time source used for document ids.
func WithNow(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithLogger sets a logger for request-level events.
func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// New creates a manager. A nil policy splits with the whole strategy by default.
func New(loader *embedding.Loader, pipeline *embedding.Pipeline, policy *chunk.Policy, opts ...Option) *Manager {
	if pipeline == nil {
		pipeline = embedding.NewPipeline()
	}
	if policy == nil {
		policy = chunk.NewPolicy("")
	}
	m := &Manager{
		loader:   loader,
		pipeline: pipeline,
		policy:   policy,
		now:      time.Now,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// DefaultModel returns the model used when a request names none.
func (m *Manager) DefaultModel() string { return m.defaultModel }

// Policy returns the chunk policy.
func (m *Manager) Policy() *chunk.Policy { return m.policy }

// Generate loads the requested model, splits the text and embeds every unit. It
// never returns a Go error: failures come back as a response with Error, Status and
// Severity set. A request with no text, or no model and no default, is a no-update.
func (m *Manager) Generate(ctx context.Context, req models.GenerateRequest) *models.GenerateResponse {
	model := m.modelName(req.Model)
	if strings.TrimSpace(req.Text) == "" || model == "" {
		return &models.GenerateResponse{NoUpdate: true}
	}

	handle, err := m.loader.EnsureReady(ctx, model)
	if err != nil {
		m.logger.Warn("generate: model not loaded", zap.String("model", model), zap.Error(err))
		return failure(model, err, err.Error(), statusLoadPrefix+err.Error())
	}

	units, ok := m.policy.Split(req.Text, req.Strategy)
	if !ok {
		return failure(model, embedding.ErrEmptyInput, msgNoChunks, statusErrorPrefix+msgNoChunks)
	}

	vectors, err := m.pipeline.Embed(ctx, units, handle, embedOptions(req)...)
	switch {
	case errors.Is(err, embedding.ErrMismatch):
		return failure(model, err, msgMismatch, statusMismatch)
	case err != nil:
		m.logger.Warn("generate: embedding failed", zap.String("model", model), zap.Error(err))
		return failure(model, err, err.Error(), statusErrorPrefix+err.Error())
	case len(vectors) != len(units):
		return failure(model, embedding.ErrMismatch, msgMismatch, statusMismatch)
	}

	docs := m.documents(units, vectors, req)
	m.logger.Info("generated embeddings",
		zap.String("model", model),
		zap.String("strategy", string(m.policy.Resolve(req.Strategy))),
		zap.Int("documents", len(docs)))
	return &models.GenerateResponse{
		Result:   &models.GenerateResult{Documents: docs, Embeddings: vectors},
		Status:   fmt.Sprintf("Generated embeddings for %d text chunks using %s", len(docs), model),
		Severity: models.SeveritySuccess,
		Model:    model,
	}
}

func (m *Manager) documents(units []chunk.TextUnit, vectors [][]float32, req models.GenerateRequest) []models.Document {
	category := req.Category
	if category == "" {
		category = models.DefaultCategory
	}
	subcategory := req.Subcategory
	if subcategory == "" {
		subcategory = models.DefaultSubcategory
	}
	ts := m.now().UnixMilli()
	docs := make([]models.Document, len(units))
	for i, u := range units {
		docs[i] = models.Document{
			ID:          fmt.Sprintf("text_input_%d_%d", ts, i),
			Text:        u.Text,
			Embedding:   vectors[i],
			Category:    category,
			Subcategory: subcategory,
			Tags:        []string{},
		}
	}
	return docs
}

func embedOptions(req models.GenerateRequest) []embedding.EmbedOption {
	var opts []embedding.EmbedOption
	if req.Pooling != "" {
		opts = append(opts, embedding.WithPooling(req.Pooling))
	}
	if req.Normalize != nil {
		opts = append(opts, embedding.WithNormalize(*req.Normalize))
	}
	if req.BatchSize > 0 {
		opts = append(opts, embedding.WithBatchSize(req.BatchSize))
	}
	return opts
}

func failure(model string, err error, msg, status string) *models.GenerateResponse {
	return &models.GenerateResponse{
		Error:    msg,
		Status:   status,
		Severity: models.SeverityDanger,
		Model:    model,
		Err:      err,
	}
}

func (m *Manager) modelName(name string) string {
	if name = strings.TrimSpace(name); name != "" {
		return name
	}
	return m.defaultModel
}

// Warm loads model (or the default model) without embedding anything.
func (m *Manager) Warm(ctx context.Context, model string) (*embedding.ModelHandle, error) {
	name := m.modelName(model)
	if name == "" {
		return nil, errors.New("no model named and no default model configured")
	}
	return m.loader.EnsureReady(ctx, name)
}

// Models lists known models. The default model is always included, even before it loads.
func (m *Manager) Models() []embedding.ModelStatus {
	list := m.loader.Models()
	if m.defaultModel == "" {
		return list
	}
	for _, st := range list {
		if st.Name == m.defaultModel {
			return list
		}
	}
	out := append(list, m.loader.Status(m.defaultModel))
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Chunk splits text the same way Generate would, without loading a model.
func (m *Manager) Chunk(text, strategy string) ([]chunk.TextUnit, chunk.Strategy) {
	units, _ := m.policy.Split(text, strategy)
	return units, m.policy.Resolve(strategy)
}

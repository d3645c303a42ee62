package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/hyperjump/vecta/internal/embedding"
	"github.com/hyperjump/vecta/internal/models"
)

const maxBodyBytes = 16 << 20

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req models.GenerateRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("generate request",
		zap.String("model", req.Model), zap.String("strategy", req.Strategy), zap.Int("text_len", len(req.Text)))

	resp := s.manager.Generate(r.Context(), req)
	switch {
	case resp.NoUpdate:
		w.WriteHeader(http.StatusNoContent)
	case resp.Failed():
		s.respondJSON(w, statusFor(resp.Err), resp)
	default:
		s.respondJSON(w, http.StatusOK, resp)
	}
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"default_model": s.manager.DefaultModel(),
		"models":        s.manager.Models(),
	})
}

type loadModelRequest struct {
	Model string `json:"model"`
}

func (s *Server) handleLoadModel(w http.ResponseWriter, r *http.Request) {
	var req loadModelRequest
	if err := decodeBody(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	h, err := s.manager.Warm(r.Context(), req.Model)
	if err != nil {
		s.logger.Warn("model load request failed", zap.String("model", req.Model), zap.Error(err))
		s.respondError(w, statusFor(err), err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"model": h.Name(), "state": h.State().String()})
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	events := []embedding.ProgressEvent{}
	if s.recorder != nil {
		events = s.recorder.Snapshot()
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"events": events})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// statusFor maps an embedding error kind to an HTTP status.
func statusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, embedding.ErrAlreadyInProgress):
		return http.StatusConflict
	case errors.Is(err, embedding.ErrFacilityUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, embedding.ErrEmptyInput), errors.Is(err, embedding.ErrEmptyUnit):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}

// Package httpapi exposes the runner over HTTP:
//
//	POST /analyze        {"requisito": "...", "id": "...", "contexto": "..."}
//	POST /batch_analyze  {"requisitos": [{...}, ...]}
//	GET  /health
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/johnayoung/req-analyzer/internal/agent"
	"github.com/johnayoung/req-analyzer/internal/consensus"
	"github.com/johnayoung/req-analyzer/internal/logging"
	"github.com/johnayoung/req-analyzer/internal/output"
	"github.com/johnayoung/req-analyzer/internal/runner"
)

const (
	maxBodyBytes = 1 << 20
	maxBatchSize = 100
)

// Evaluator is the part of runner.Runner the handler needs.
type Evaluator interface {
	EvaluateRequirement(ctx context.Context, req agent.Requirement) (consensus.Result, error)
	Dimensions() []string
}

// RequirementIn is one requirement in a request body.
type RequirementIn struct {
	Requisito string `json:"requisito"`
	ID        string `json:"id,omitempty"`
	Contexto  string `json:"contexto,omitempty"`
}

// BatchIn is the body of POST /batch_analyze.
type BatchIn struct {
	Requisitos []RequirementIn `json:"requisitos"`
}

// ErrorBody describes a failure.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type analyzeResponse struct {
	Status  string        `json:"status"`
	Message string        `json:"message,omitempty"`
	Data    output.Result `json:"data"`
}

type errorResponse struct {
	Status string    `json:"status"`
	Error  ErrorBody `json:"error"`
}

type batchItem struct {
	ID     string         `json:"id"`
	Status string         `json:"status"`
	Data   *output.Result `json:"data,omitempty"`
	Error  *ErrorBody     `json:"error,omitempty"`
}

type batchResponse struct {
	Status  string      `json:"status"`
	Count   int         `json:"count"`
	Results []batchItem `json:"results"`
}

// Handler serves the analyzer API.
type Handler struct {
	eval   Evaluator
	logger *slog.Logger
	mux    *http.ServeMux
}

// NewHandler creates a Handler backed by eval.
func NewHandler(eval Evaluator, logger *slog.Logger) *Handler {
	h := &Handler{
		eval:   eval,
		logger: logging.Component(logger, "http"),
		mux:    http.NewServeMux(),
	}
	h.mux.HandleFunc("POST /analyze", h.Analyze)
	h.mux.HandleFunc("POST /batch_analyze", h.BatchAnalyze)
	h.mux.HandleFunc("GET /health", h.Health)
	return h
}

// ServeHTTP logs every request and dispatches it.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	h.mux.ServeHTTP(rec, r)
	h.logger.Info("request",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.Int("status", rec.status),
		slog.Duration("duration", time.Since(start)),
	)
}

// Analyze evaluates a single requirement.
func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	var in RequirementIn
	if err := decode(w, r, &in); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Status: "error", Error: ErrorBody{Code: "invalid_body", Message: err.Error()}})
		return
	}

	res, err := h.eval.EvaluateRequirement(r.Context(), in.requirement())
	if err != nil {
		status, body := h.classify(err)
		writeJSON(w, status, errorResponse{Status: "error", Error: body})
		return
	}

	writeJSON(w, http.StatusOK, analyzeResponse{
		Status:  "success",
		Message: "requirement analyzed",
		Data:    output.FromResult(res),
	})
}

// BatchAnalyze evaluates requirements one after another. Each item reports
// its own outcome; the response is 200 as long as the body is valid.
func (h *Handler) BatchAnalyze(w http.ResponseWriter, r *http.Request) {
	var in BatchIn
	if err := decode(w, r, &in); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Status: "error", Error: ErrorBody{Code: "invalid_body", Message: err.Error()}})
		return
	}
	switch {
	case len(in.Requisitos) == 0:
		writeJSON(w, http.StatusBadRequest, errorResponse{Status: "error", Error: ErrorBody{Code: "validation_error", Message: "requisitos is empty"}})
		return
	case len(in.Requisitos) > maxBatchSize:
		writeJSON(w, http.StatusBadRequest, errorResponse{Status: "error", Error: ErrorBody{
			Code:    "validation_error",
			Message: fmt.Sprintf("at most %d requisitos per batch", maxBatchSize),
		}})
		return
	}

	results := make([]batchItem, 0, len(in.Requisitos))
	for _, item := range in.Requisitos {
		req := item.requirement()
		if req.ID == "" {
			req.ID = uuid.NewString()
		}

		res, err := h.eval.EvaluateRequirement(r.Context(), req)
		if err != nil {
			_, body := h.classify(err)
			results = append(results, batchItem{ID: req.ID, Status: "error", Error: &body})
			continue
		}
		out := output.FromResult(res)
		results = append(results, batchItem{ID: req.ID, Status: "success", Data: &out})
	}

	writeJSON(w, http.StatusOK, batchResponse{Status: "completed", Count: len(results), Results: results})
}

// Health reports liveness and the configured dimensions.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "healthy",
		"dimensions": h.eval.Dimensions(),
	})
}

// classify maps an evaluation error to an HTTP status and error body.
func (h *Handler) classify(err error) (int, ErrorBody) {
	var nas *runner.NoAgentsSucceededError
	switch {
	case errors.Is(err, runner.ErrValidation):
		return http.StatusBadRequest, ErrorBody{Code: "validation_error", Message: err.Error()}
	case errors.As(err, &nas):
		h.logger.Warn("no agents succeeded", slog.Any("error", err))
		if nas.Transient() {
			return http.StatusServiceUnavailable, ErrorBody{Code: "service_unavailable", Message: err.Error()}
		}
		return http.StatusBadGateway, ErrorBody{Code: "invalid_response", Message: err.Error()}
	default:
		h.logger.Error("evaluation failed", slog.Any("error", err))
		return http.StatusInternalServerError, ErrorBody{Code: "internal_error", Message: "internal error"}
	}
}

func (in RequirementIn) requirement() agent.Requirement {
	return agent.Requirement{ID: in.ID, Text: in.Requisito, Context: in.Contexto}
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// Package handlers provides HTTP handlers for VQE runs.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/vqe/internal/modules/ansatz"
	"github.com/aristath/vqe/internal/modules/cost"
	"github.com/aristath/vqe/internal/modules/optimizers"
	"github.com/aristath/vqe/internal/modules/runs"
)

// RunService is the part of runs.Service the handlers use.
type RunService interface {
	Run(ctx context.Context, req runs.Request, observer cost.Observer) (*runs.Run, error)
	Get(ctx context.Context, id string) (*runs.Run, error)
	List(ctx context.Context, limit int) ([]*runs.Run, error)
}

// Handler handles run HTTP requests
type Handler struct {
	service RunService
	log     zerolog.Logger
}

// NewHandler creates a new runs handler
func NewHandler(service RunService, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "runs").Logger(),
	}
}

// HistoryResponse is the evaluation history of one run.
type HistoryResponse struct {
	ID         string      `json:"id"`
	Energies   []float64   `json:"energies"`
	Parameters [][]float64 `json:"parameters"`
}

// HandleCreateRun handles POST /api/runs
func (h *Handler) HandleCreateRun(w http.ResponseWriter, r *http.Request) {
	var req runs.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Error().Err(err).Msg("Failed to decode request body")
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	run, err := h.service.Run(r.Context(), req, nil)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, envelope(run))
}

// HandleListRuns handles GET /api/runs
func (h *Handler) HandleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			http.Error(w, "limit must be a non-negative integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	list, err := h.service.List(r.Context(), limit)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list runs")
		http.Error(w, "Failed to list runs", http.StatusInternalServerError)
		return
	}
	if list == nil {
		list = []*runs.Run{}
	}

	h.writeJSON(w, http.StatusOK, envelope(map[string]interface{}{
		"runs":  list,
		"count": len(list),
	}))
}

// HandleGetRun handles GET /api/runs/{id}
func (h *Handler) HandleGetRun(w http.ResponseWriter, r *http.Request) {
	run, ok := h.lookup(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, envelope(run))
}

// HandleGetHistory handles GET /api/runs/{id}/history
func (h *Handler) HandleGetHistory(w http.ResponseWriter, r *http.Request) {
	run, ok := h.lookup(w, r)
	if !ok {
		return
	}

	resp := HistoryResponse{
		ID:         run.ID,
		Energies:   make([]float64, len(run.History)),
		Parameters: make([][]float64, len(run.History)),
	}
	for i, rec := range run.History {
		resp.Energies[i] = rec.Energy
		resp.Parameters[i] = rec.Parameters
	}
	h.writeJSON(w, http.StatusOK, envelope(resp))
}

func (h *Handler) lookup(w http.ResponseWriter, r *http.Request) (*runs.Run, bool) {
	id := chi.URLParam(r, "id")
	run, err := h.service.Get(r.Context(), id)
	if errors.Is(err, runs.ErrNotFound) {
		http.Error(w, "Run not found", http.StatusNotFound)
		return nil, false
	}
	if err != nil {
		h.log.Error().Err(err).Str("id", id).Msg("Failed to load run")
		http.Error(w, "Failed to load run", http.StatusInternalServerError)
		return nil, false
	}
	return run, true
}

// writeError maps a service error to a status code. Request problems are
// the caller's fault; anything else is ours.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	if isClientError(err) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.log.Error().Err(err).Msg("Run request failed")
	http.Error(w, "Failed to execute run", http.StatusInternalServerError)
}

func isClientError(err error) bool {
	var unknown *optimizers.UnknownMethodError
	return errors.Is(err, runs.ErrInvalidRequest) ||
		errors.Is(err, ansatz.ErrParameterShape) ||
		errors.As(err, &unknown)
}

func envelope(data interface{}) map[string]interface{} {
	return map[string]interface{}{
		"data": data,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

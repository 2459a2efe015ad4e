package api

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/opensource-telco/shrike/internal/domain"
	"github.com/opensource-telco/shrike/internal/pipeline"
	"github.com/opensource-telco/shrike/internal/rules"
)

// Handler holds dependencies for API handlers.
type Handler struct {
	scorer  *pipeline.Scorer
	store   domain.ResultStore
	cache   domain.Cache
	engine  *rules.Engine
	version string
}

// NewHandler creates a new API handler.
func NewHandler(scorer *pipeline.Scorer, store domain.ResultStore, cache domain.Cache, engine *rules.Engine, version string) *Handler {
	return &Handler{
		scorer:  scorer,
		store:   store,
		cache:   cache,
		engine:  engine,
		version: version,
	}
}

// decodeBatch reads a batch from the request body. JSON bodies carry
// the {header, rows} shape directly; text/csv bodies are parsed row by
// row with the first record as header.
func decodeBatch(r *http.Request) (*domain.Batch, error) {
	contentType := r.Header.Get("Content-Type")

	if strings.HasPrefix(contentType, "text/csv") {
		reader := csv.NewReader(r.Body)
		reader.FieldsPerRecord = -1 // ragged rows surface as schema errors, not parse errors

		rows, err := reader.ReadAll()
		if err != nil {
			return nil, &domain.SchemaError{Reason: "malformed CSV: " + err.Error()}
		}
		if len(rows) == 0 {
			return nil, &domain.SchemaError{Reason: "empty CSV body"}
		}
		return &domain.Batch{Header: rows[0], Rows: rows[1:]}, nil
	}

	var batch domain.Batch
	if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
		return nil, &domain.SchemaError{Reason: "invalid JSON request body"}
	}
	return &batch, nil
}

// Score handles POST /score: synchronous batch scoring.
func (h *Handler) Score(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	batch, err := decodeBatch(r)
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := h.scorer.ScoreBatch(r.Context(), batch)
	if err != nil {
		writeError(w, err)
		return
	}

	slog.Debug("score request complete",
		"result_id", result.ID,
		"rows", result.Summary.Total,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	writeJSON(w, http.StatusOK, result)
}

// ScoreAsync handles POST /score/async: the batch is validated, queued
// on the event bus and scored by the worker.
func (h *Handler) ScoreAsync(w http.ResponseWriter, r *http.Request) {
	batch, err := decodeBatch(r)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.scorer.SubmitBatch(r.Context(), batch); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"status": "queued",
		"rows":   len(batch.Rows),
	})
}

// ListResults handles GET /results.
func (h *Handler) ListResults(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.scorer.ListResults(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	if summaries == nil {
		summaries = []*domain.ResultSummary{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"results": summaries,
		"count":   len(summaries),
	})
}

// GetResult handles GET /results/{id}.
func (h *Handler) GetResult(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	result, err := h.scorer.GetResult(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// DeleteResult handles DELETE /results/{id}.
func (h *Handler) DeleteResult(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.scorer.PurgeResult(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status": "deleted",
		"id":     id,
	})
}

// GetResultFlags handles GET /results/{id}/flags: runs the loaded
// review rules over the stored result and returns the matches.
func (h *Handler) GetResultFlags(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	result, err := h.scorer.GetResult(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	flags := h.engine.Evaluate(result)
	if flags == nil {
		flags = []domain.Flag{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"result_id": id,
		"flags":     flags,
		"count":     len(flags),
	})
}

// ListReviewRules returns the rules currently loaded in the engine.
func (h *Handler) ListReviewRules(w http.ResponseWriter, r *http.Request) {
	loaded := h.engine.GetLoadedRules()

	writeJSON(w, http.StatusOK, map[string]any{
		"rules": loaded,
		"count": len(loaded),
	})
}

// CreateReviewRuleRequest is the request body for creating a review rule.
type CreateReviewRuleRequest struct {
	ID          string `json:"id,omitempty"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Expression  string `json:"expression"`
	Enabled     bool   `json:"enabled"`
}

// CreateReviewRule validates, persists and loads a new review rule.
func (h *Handler) CreateReviewRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateReviewRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.Name == "" || req.Expression == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "name and expression are required",
		})
		return
	}

	rule := &domain.ReviewRule{
		ID:          req.ID,
		Name:        req.Name,
		Description: req.Description,
		Expression:  req.Expression,
		Enabled:     req.Enabled,
		CreatedAt:   time.Now().UTC(),
	}
	if rule.ID == "" {
		rule.ID = uuid.New().String()
	}

	// Reject bad CEL before anything is persisted
	if err := h.engine.ValidateRule(rule); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid rule expression: " + err.Error(),
		})
		return
	}

	if err := h.store.SaveReviewRule(ctx, rule); err != nil {
		slog.Error("failed to save review rule", "id", rule.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save rule",
		})
		return
	}

	if rule.Enabled {
		if err := h.engine.LoadRule(rule); err != nil {
			slog.Error("failed to load review rule", "id", rule.ID, "error", err)
		}
	}

	slog.Info("review rule created", "id", rule.ID, "name", rule.Name)
	writeJSON(w, http.StatusCreated, rule)
}

// DeleteReviewRule removes a rule from the store and the engine.
func (h *Handler) DeleteReviewRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	if err := h.store.DeleteReviewRule(ctx, id); err != nil {
		writeError(w, err)
		return
	}

	h.engine.UnloadRule(id)

	slog.Info("review rule deleted", "id", id)
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "deleted",
		"id":     id,
	})
}

// ReloadReviewRules reloads all rules from the store into the engine.
// This enables hot-reloading without server restart.
func (h *Handler) ReloadReviewRules(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	stored, err := h.store.ListReviewRules(ctx)
	if err != nil {
		slog.Error("failed to list review rules", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load rules from store",
		})
		return
	}

	if err := h.engine.ReloadRules(stored); err != nil {
		slog.Error("failed to reload review rules", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to reload rules: " + err.Error(),
		})
		return
	}

	slog.Info("review rules reloaded", "count", len(stored))
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "rules reloaded successfully",
		"count":   len(stored),
	})
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	if h.store != nil {
		if err := h.store.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

// writeError maps domain errors to HTTP status codes: schema problems
// are the client's fault, configuration problems are ours, and a
// missing record is 404.
func writeError(w http.ResponseWriter, err error) {
	var schemaErr *domain.SchemaError
	var configErr *domain.ConfigError

	switch {
	case errors.As(err, &schemaErr):
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":           schemaErr.Error(),
			"missing_columns": schemaErr.MissingColumns,
		})
	case errors.As(err, &configErr):
		slog.Error("configuration error", "error", configErr)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": configErr.Error(),
		})
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "not found",
		})
	default:
		slog.Error("request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "internal server error",
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

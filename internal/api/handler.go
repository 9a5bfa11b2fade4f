package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/ingest"
	"github.com/opensource-finance/kestrel/internal/pipeline"
	"github.com/opensource-finance/kestrel/internal/repository"
)

// runCacheTTL bounds how long a completed run snapshot is served from cache.
const runCacheTTL = 15 * time.Minute

// Handler holds dependencies for API handlers.
type Handler struct {
	repo     domain.Repository
	cache    domain.Cache
	bus      domain.EventBus
	pipeline domain.PipelineConfig
	version  string
}

// NewHandler creates a new API handler.
func NewHandler(repo domain.Repository, cache domain.Cache, bus domain.EventBus, pipelineCfg domain.PipelineConfig, version string) *Handler {
	return &Handler{
		repo:     repo,
		cache:    cache,
		bus:      bus,
		pipeline: pipelineCfg,
		version:  version,
	}
}

// IngestRequest is the request body for POST /transactions.
type IngestRequest struct {
	Transactions []domain.TransactionRequest `json:"transactions"`
}

// IngestResponse is the response for POST /transactions.
type IngestResponse struct {
	Accepted   int                       `json:"accepted"`
	Validation *ingest.ValidationSummary `json:"validation"`
}

// IngestTransactions handles POST /transactions requests. The batch is
// validated and persisted as canonical transactions; re-submitted IDs
// overwrite rather than duplicate.
func (h *Handler) IngestTransactions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if len(req.Transactions) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "transactions array is required",
		})
		return
	}

	txs := make([]*domain.Transaction, 0, len(req.Transactions))
	for i := range req.Transactions {
		tx, err := req.Transactions[i].ToTransaction()
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "invalid transaction: " + err.Error(),
			})
			return
		}
		txs = append(txs, tx)
	}

	summary, err := ingest.Validate(txs)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}

	if err := h.repo.SaveTransactions(ctx, txs); err != nil {
		slog.Error("failed to save transactions", "count", len(txs), "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save transactions",
		})
		return
	}

	writeJSON(w, http.StatusCreated, IngestResponse{
		Accepted:   len(txs),
		Validation: summary,
	})
}

// RunRequest is the request body for POST /runs.
type RunRequest struct {
	SnapshotDate string `json:"snapshotDate,omitempty"`
	WindowDays   int    `json:"windowDays,omitempty"`

	// Async publishes a run request for a worker instead of executing
	// inline.
	Async bool `json:"async,omitempty"`
}

// RunResponse is the response for POST /runs.
type RunResponse struct {
	Run      *domain.Run `json:"run,omitempty"`
	Status   string      `json:"status"`
	Metadata struct {
		TraceID string `json:"traceId"`
		TotalMs int64  `json:"totalMs"`
		Version string `json:"version"`
	} `json:"metadata"`
}

// CreateRun handles POST /runs requests. A run reads the canonical
// transaction set, executes every pipeline stage, and persists the result
// as an immutable snapshot.
func (h *Handler) CreateRun(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	traceID := GetTraceID(ctx)

	var req RunRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "invalid JSON request body",
			})
			return
		}
	}

	cfg := h.pipeline
	if req.SnapshotDate != "" {
		snapshot, err := domain.ParseDate(req.SnapshotDate)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "invalid snapshotDate: " + err.Error(),
			})
			return
		}
		cfg = cfg.WithSnapshot(snapshot)
	}
	if req.WindowDays != 0 {
		cfg.WindowDays = req.WindowDays
	}

	if req.Async {
		payload, _ := json.Marshal(domain.RunRequest{
			SnapshotDate: req.SnapshotDate,
			WindowDays:   req.WindowDays,
			RequestID:    uuid.New().String(),
		})
		if err := h.bus.Publish(ctx, domain.TopicRunRequested, payload); err != nil {
			slog.Error("failed to publish run request", "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "failed to queue run",
			})
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{
			"status": "queued",
		})
		return
	}

	txs, err := h.repo.ListTransactions(ctx)
	if err != nil {
		slog.Error("failed to load transactions", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load transactions",
		})
		return
	}
	if len(txs) == 0 {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{
			"error": "no transactions ingested",
		})
		return
	}

	result, err := pipeline.Run(ctx, txs, cfg)
	if err != nil {
		slog.Error("pipeline run failed", "error", err)
		status := http.StatusInternalServerError
		if errors.Is(err, domain.ErrInvalidSnapshot) || errors.Is(err, domain.ErrEmptyCohort) || errors.Is(err, domain.ErrInvalidConfiguration) {
			status = http.StatusUnprocessableEntity
		}
		writeJSON(w, status, map[string]string{
			"error": err.Error(),
		})
		return
	}
	result.Run.Metadata.TraceID = traceID

	if err := h.repo.SaveRunResult(ctx, result); err != nil {
		slog.Error("failed to save run result", "run_id", result.Run.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save run result",
		})
		return
	}

	if h.cache != nil {
		if err := h.cache.SetRunResult(ctx, result.Run.ID, result, runCacheTTL); err != nil {
			slog.Warn("failed to cache run result", "run_id", result.Run.ID, "error", err)
		}
	}

	h.publishRunEvents(r, result)

	resp := RunResponse{
		Run:    &result.Run,
		Status: "completed",
	}
	resp.Metadata.TraceID = traceID
	resp.Metadata.TotalMs = time.Since(start).Milliseconds()
	resp.Metadata.Version = h.version

	writeJSON(w, http.StatusCreated, resp)
}

// publishRunEvents announces run completion and any high-priority decisions.
func (h *Handler) publishRunEvents(r *http.Request, result *domain.RunResult) {
	if h.bus == nil {
		return
	}
	ctx := r.Context()

	payload, _ := json.Marshal(result.Run)
	if err := h.bus.Publish(ctx, domain.TopicRunCompleted, payload); err != nil {
		slog.Warn("failed to publish run completed event", "run_id", result.Run.ID, "error", err)
	}

	for _, d := range result.Decisions {
		if d.Action.ActionPriority != domain.PriorityHigh {
			continue
		}
		decisionPayload, _ := json.Marshal(d)
		if err := h.bus.Publish(ctx, domain.TopicDecisionHighPriority, decisionPayload); err != nil {
			slog.Warn("failed to publish high priority decision",
				"run_id", result.Run.ID,
				"customer_id", d.CustomerID,
				"error", err,
			)
			break
		}
	}
}

// ListRuns handles GET /runs requests.
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := h.repo.ListRuns(r.Context())
	if err != nil {
		slog.Error("failed to list runs", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list runs",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"runs":  runs,
		"count": len(runs),
	})
}

// GetRun handles GET /runs/{id} requests.
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "id")

	run, err := h.repo.GetRun(r.Context(), runID)
	if err != nil {
		h.writeRepoError(w, runID, err)
		return
	}

	writeJSON(w, http.StatusOK, run)
}

// GetFeatures handles GET /runs/{id}/features requests.
func (h *Handler) GetFeatures(w http.ResponseWriter, r *http.Request) {
	result, ok := h.loadRunResult(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"runId":    result.Run.ID,
		"features": result.Features,
		"count":    len(result.Features),
	})
}

// GetSegments handles GET /runs/{id}/segments requests.
func (h *Handler) GetSegments(w http.ResponseWriter, r *http.Request) {
	result, ok := h.loadRunResult(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"runId":    result.Run.ID,
		"segments": result.Segments,
		"count":    len(result.Segments),
	})
}

// GetRisk handles GET /runs/{id}/risk requests.
func (h *Handler) GetRisk(w http.ResponseWriter, r *http.Request) {
	result, ok := h.loadRunResult(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"runId": result.Run.ID,
		"risk":  result.Risk,
		"count": len(result.Risk),
	})
}

// GetDecisions handles GET /runs/{id}/decisions requests.
func (h *Handler) GetDecisions(w http.ResponseWriter, r *http.Request) {
	result, ok := h.loadRunResult(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"runId":     result.Run.ID,
		"decisions": result.Decisions,
		"count":     len(result.Decisions),
	})
}

// GetCustomer handles GET /runs/{id}/customers/{customerID} requests.
// Absence is distinct from zero-valued results: unknown customers get 404.
func (h *Handler) GetCustomer(w http.ResponseWriter, r *http.Request) {
	customerID := chi.URLParam(r, "customerID")

	result, ok := h.loadRunResult(w, r)
	if !ok {
		return
	}

	view, found := result.Customer(customerID)
	if !found {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "customer has no records in this run",
		})
		return
	}

	writeJSON(w, http.StatusOK, view)
}

// DeleteRun handles DELETE /runs/{id} requests.
func (h *Handler) DeleteRun(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	runID := chi.URLParam(r, "id")

	if err := h.repo.DeleteRun(ctx, runID); err != nil {
		h.writeRepoError(w, runID, err)
		return
	}

	if h.cache != nil {
		_ = h.cache.Delete(ctx, "run:"+runID)
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status": "deleted",
	})
}

// GetTransaction handles GET /transactions/{id} requests.
func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	txID := chi.URLParam(r, "id")

	tx, err := h.repo.GetTransaction(r.Context(), txID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "transaction not found",
			})
			return
		}
		slog.Error("failed to get transaction", "id", txID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to get transaction",
		})
		return
	}

	writeJSON(w, http.StatusOK, tx)
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	// Check repository health
	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	// Check cache health
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

// loadRunResult fetches a run snapshot, consulting the cache first.
func (h *Handler) loadRunResult(w http.ResponseWriter, r *http.Request) (*domain.RunResult, bool) {
	ctx := r.Context()
	runID := chi.URLParam(r, "id")

	if h.cache != nil {
		if cached, err := h.cache.GetRunResult(ctx, runID); err == nil && cached != nil {
			return cached, true
		}
	}

	result, err := h.repo.GetRunResult(ctx, runID)
	if err != nil {
		h.writeRepoError(w, runID, err)
		return nil, false
	}

	if h.cache != nil {
		if err := h.cache.SetRunResult(ctx, runID, result, runCacheTTL); err != nil {
			slog.Warn("failed to cache run result", "run_id", runID, "error", err)
		}
	}

	return result, true
}

func (h *Handler) writeRepoError(w http.ResponseWriter, runID string, err error) {
	if errors.Is(err, repository.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "run not found",
		})
		return
	}
	slog.Error("repository error", "run_id", runID, "error", err)
	writeJSON(w, http.StatusInternalServerError, map[string]string{
		"error": "internal repository error",
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

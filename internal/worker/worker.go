// Package worker provides async run processing off the event bus.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/pipeline"
)

// Worker executes pipeline runs requested over the EventBus.
type Worker struct {
	bus      domain.EventBus
	repo     domain.Repository
	cache    domain.Cache
	pipeline domain.PipelineConfig

	subscriptions []domain.Subscription
	ctx           context.Context
	cancel        context.CancelFunc
}

// runCacheTTL bounds how long a completed run snapshot is kept in cache.
const runCacheTTL = 15 * time.Minute

// NewWorker creates a new async run worker.
func NewWorker(bus domain.EventBus, repo domain.Repository, cache domain.Cache, pipelineCfg domain.PipelineConfig) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:      bus,
		repo:     repo,
		cache:    cache,
		pipeline: pipelineCfg,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start subscribes to run request events.
func (w *Worker) Start() error {
	sub, err := w.bus.Subscribe(w.ctx, domain.TopicRunRequested, w.handleRunRequest)
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("run worker started", "topic", domain.TopicRunRequested)
	return nil
}

// handleRunRequest executes one requested pipeline run end to end.
func (w *Worker) handleRunRequest(ctx context.Context, msg *domain.Message) error {
	start := time.Now()

	var req domain.RunRequest
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		slog.Error("failed to parse run request",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	cfg := w.pipeline
	if req.SnapshotDate != "" {
		snapshot, err := domain.ParseDate(req.SnapshotDate)
		if err != nil {
			return w.publishFailure(ctx, req, err)
		}
		cfg = cfg.WithSnapshot(snapshot)
	}
	if req.WindowDays != 0 {
		cfg.WindowDays = req.WindowDays
	}

	slog.Debug("processing run request",
		"request_id", req.RequestID,
		"window_days", cfg.WindowDays,
	)

	txs, err := w.repo.ListTransactions(ctx)
	if err != nil {
		slog.Error("failed to load transactions",
			"request_id", req.RequestID,
			"error", err,
		)
		return w.publishFailure(ctx, req, err)
	}

	result, err := pipeline.Run(ctx, txs, cfg)
	if err != nil {
		slog.Error("pipeline run failed",
			"request_id", req.RequestID,
			"error", err,
		)
		return w.publishFailure(ctx, req, err)
	}

	if err := w.repo.SaveRunResult(ctx, result); err != nil {
		slog.Error("failed to save run result",
			"run_id", result.Run.ID,
			"error", err,
		)
		return w.publishFailure(ctx, req, err)
	}

	if w.cache != nil {
		if err := w.cache.SetRunResult(ctx, result.Run.ID, result, runCacheTTL); err != nil {
			slog.Warn("failed to cache run result",
				"run_id", result.Run.ID,
				"error", err,
			)
		}
	}

	runPayload, _ := json.Marshal(result.Run)
	if err := w.bus.Publish(ctx, domain.TopicRunCompleted, runPayload); err != nil {
		slog.Error("failed to publish run completed",
			"run_id", result.Run.ID,
			"error", err,
		)
	}

	w.publishHighPriorityDecisions(ctx, result)

	slog.Info("run processed",
		"run_id", result.Run.ID,
		"request_id", req.RequestID,
		"customer_count", result.Run.CustomerCount,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return nil
}

// publishHighPriorityDecisions announces decisions that need human
// follow-up before the next scheduled run.
func (w *Worker) publishHighPriorityDecisions(ctx context.Context, result *domain.RunResult) {
	for _, d := range result.Decisions {
		if d.Action.ActionPriority != domain.PriorityHigh {
			continue
		}
		payload, _ := json.Marshal(d)
		if err := w.bus.Publish(ctx, domain.TopicDecisionHighPriority, payload); err != nil {
			slog.Error("failed to publish high priority decision",
				"run_id", result.Run.ID,
				"customer_id", d.CustomerID,
				"error", err,
			)
			return
		}
	}
}

// runFailure is the payload published on TopicRunFailed.
type runFailure struct {
	RequestID string `json:"requestId,omitempty"`
	Error     string `json:"error"`
}

func (w *Worker) publishFailure(ctx context.Context, req domain.RunRequest, cause error) error {
	payload, _ := json.Marshal(runFailure{
		RequestID: req.RequestID,
		Error:     cause.Error(),
	})
	if err := w.bus.Publish(ctx, domain.TopicRunFailed, payload); err != nil {
		slog.Error("failed to publish run failure",
			"request_id", req.RequestID,
			"error", err,
		)
	}
	return cause
}

// Stop gracefully stops the worker.
func (w *Worker) Stop() error {
	w.cancel()

	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	slog.Info("run worker stopped")
	return nil
}

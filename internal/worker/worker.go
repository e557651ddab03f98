// Package worker provides async appeal processing for the Pro tier.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/opensource-health/heron/internal/domain"
	"github.com/opensource-health/heron/internal/pipeline"
)

// Worker consumes appeal events from the EventBus and resolves them,
// optionally re-running the adjudication pipeline for the appealed claim.
type Worker struct {
	bus         domain.EventBus
	repo        domain.Repository
	adjudicator *pipeline.Adjudicator
	cfg         domain.AdjudicationConfig

	subscriptions []domain.Subscription
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
}

// Config holds worker configuration.
type Config struct {
	// TenantIDs is the list of tenants to process (empty = all via the
	// global subscription)
	TenantIDs []string
}

// NewWorker creates a new async appeal worker.
func NewWorker(bus domain.EventBus, repo domain.Repository, adjudicator *pipeline.Adjudicator, cfg domain.AdjudicationConfig) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:         bus,
		repo:        repo,
		adjudicator: adjudicator,
		cfg:         cfg,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start begins processing appeals for the given tenants.
func (w *Worker) Start(cfg Config) error {
	if len(cfg.TenantIDs) == 0 {
		return w.startGlobalWorker()
	}

	for _, tenantID := range cfg.TenantIDs {
		if err := w.startTenantWorker(tenantID); err != nil {
			slog.Error("failed to start worker for tenant",
				"tenant_id", tenantID,
				"error", err,
			)
			continue
		}
	}

	slog.Info("appeal workers started",
		"tenant_count", len(cfg.TenantIDs),
	)

	return nil
}

// startGlobalWorker starts a worker that processes all tenants (for testing/dev).
func (w *Worker) startGlobalWorker() error {
	// Subscribe using a special "global" tenant ID
	// In production, you'd want to subscribe with wildcards or JetStream
	sub, err := w.bus.Subscribe(w.ctx, "_global", domain.TopicClaimAppealed, w.handleMessage)
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("global appeal worker started")
	return nil
}

// startTenantWorker starts a worker for a specific tenant.
func (w *Worker) startTenantWorker(tenantID string) error {
	sub, err := w.bus.Subscribe(w.ctx, tenantID, domain.TopicClaimAppealed, func(ctx context.Context, msg *domain.Message) error {
		return w.processAppeal(ctx, tenantID, msg)
	})
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("tenant appeal worker started",
		"tenant_id", tenantID,
		"topic", domain.TopicClaimAppealed,
	)

	return nil
}

// handleMessage handles messages from the global subscription.
func (w *Worker) handleMessage(ctx context.Context, msg *domain.Message) error {
	return w.processAppeal(ctx, msg.TenantID, msg)
}

// processAppeal resolves a filed appeal. When ReadjudicateOnAppeal is
// set, the claim is run through the full pipeline again and the appeal
// records the fresh outcome. Otherwise the appeal stays UNDER_REVIEW
// for a human examiner.
func (w *Worker) processAppeal(ctx context.Context, tenantID string, msg *domain.Message) error {
	start := time.Now()

	var ev pipeline.AppealEvent
	if err := json.Unmarshal(msg.Payload, &ev); err != nil {
		slog.Error("failed to parse appeal event",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	slog.Debug("processing appeal",
		"appeal_id", ev.AppealID,
		"claim_id", ev.ClaimID,
		"tenant_id", tenantID,
	)

	if !w.cfg.ReadjudicateOnAppeal {
		slog.Info("appeal queued for manual review",
			"appeal_id", ev.AppealID,
			"claim_id", ev.ClaimID,
			"tenant_id", tenantID,
		)
		return nil
	}

	claim, err := w.adjudicator.Readjudicate(ctx, tenantID, ev.ClaimID)
	if err != nil {
		slog.Error("re-adjudication failed",
			"appeal_id", ev.AppealID,
			"claim_id", ev.ClaimID,
			"error", err,
		)
		return err
	}

	resolution := fmt.Sprintf("re-adjudicated: claim is now %s", claim.Status)
	if claim.Decision != nil && claim.Decision.ApprovedAmount > 0 {
		resolution = fmt.Sprintf("re-adjudicated: claim is now %s, approved amount %.2f",
			claim.Status, claim.Decision.ApprovedAmount)
	}

	if err := w.repo.ResolveAppeal(ctx, tenantID, ev.AppealID, resolution); err != nil {
		slog.Error("failed to resolve appeal",
			"appeal_id", ev.AppealID,
			"error", err,
		)
		return err
	}

	slog.Info("appeal processed",
		"appeal_id", ev.AppealID,
		"claim_id", ev.ClaimID,
		"tenant_id", tenantID,
		"status", claim.Status,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return nil
}

// Stop gracefully stops all workers.
func (w *Worker) Stop() error {
	w.cancel()

	// Unsubscribe all
	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	w.wg.Wait()

	slog.Info("appeal workers stopped")
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
	}
}

// Package pipeline orchestrates claim adjudication: extraction, the
// rule stages, fraud assessment, and the final decision.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/opensource-health/heron/internal/decision"
	"github.com/opensource-health/heron/internal/domain"
	"github.com/opensource-health/heron/internal/extract"
	"github.com/opensource-health/heron/internal/fraud"
	"github.com/opensource-health/heron/internal/history"
	"github.com/opensource-health/heron/internal/policy"
	"github.com/opensource-health/heron/internal/repository"
	"github.com/opensource-health/heron/internal/rules"
)

var tracer = otel.Tracer("heron-pipeline")

// ClaimEvent is the payload published on claim lifecycle topics.
type ClaimEvent struct {
	ClaimID        string  `json:"claimId"`
	MemberID       string  `json:"memberId"`
	Status         string  `json:"status"`
	ClaimAmount    float64 `json:"claimAmount"`
	ApprovedAmount float64 `json:"approvedAmount,omitempty"`
	FraudScore     float64 `json:"fraudScore,omitempty"`
}

// AppealEvent is the payload published when an appeal is filed.
type AppealEvent struct {
	AppealID string `json:"appealId"`
	ClaimID  string `json:"claimId"`
	MemberID string `json:"memberId"`
	Reason   string `json:"reason"`
}

// Adjudicator runs the adjudication pipeline. Stage order: extraction
// (with timeout), eligibility (short-circuits on failure), then fraud
// concurrent with coverage and limits, then the decision combinator.
type Adjudicator struct {
	repo      domain.Repository
	policy    *policy.Service
	extractor extract.Extractor
	engine    *fraud.Engine
	history   *history.Service
	bus       domain.EventBus
	cfg       domain.AdjudicationConfig
	logger    *slog.Logger
}

// New creates an adjudicator. Bus may be nil (events are skipped).
func New(
	repo domain.Repository,
	policySvc *policy.Service,
	extractor extract.Extractor,
	engine *fraud.Engine,
	historySvc *history.Service,
	bus domain.EventBus,
	cfg domain.AdjudicationConfig,
	logger *slog.Logger,
) *Adjudicator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Adjudicator{
		repo:      repo,
		policy:    policySvc,
		extractor: extractor,
		engine:    engine,
		history:   historySvc,
		bus:       bus,
		cfg:       cfg,
		logger:    logger,
	}
}

// Submit validates, persists and adjudicates a new claim.
func (a *Adjudicator) Submit(ctx context.Context, tenantID string, input *domain.ClaimInput) (*domain.Claim, error) {
	ctx, span := tracer.Start(ctx, "pipeline.Submit",
		trace.WithAttributes(
			attribute.String("tenant.id", tenantID),
			attribute.String("member.id", input.MemberID),
			attribute.Float64("claim.amount", input.ClaimAmount),
		),
	)
	defer span.End()

	if err := validateInput(input); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	claim := &domain.Claim{
		ClaimID:   newClaimID(now),
		TenantID:  tenantID,
		Input:     *input,
		Status:    domain.StatusPending,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}

	// The claim is saved before history signals are computed, so the
	// history counts include the claim itself.
	if err := a.repo.SaveClaim(ctx, tenantID, claim); err != nil {
		return nil, fmt.Errorf("saving claim: %w", err)
	}
	span.SetAttributes(attribute.String("claim.id", claim.ClaimID))

	a.publish(ctx, tenantID, domain.TopicClaimSubmitted, &ClaimEvent{
		ClaimID:     claim.ClaimID,
		MemberID:    input.MemberID,
		Status:      domain.StatusPending,
		ClaimAmount: input.ClaimAmount,
	})

	if err := a.adjudicate(ctx, tenantID, claim); err != nil {
		return nil, err
	}
	return claim, nil
}

// Readjudicate re-runs the pipeline for a stored claim, for appeal
// processing.
func (a *Adjudicator) Readjudicate(ctx context.Context, tenantID, claimID string) (*domain.Claim, error) {
	claim, err := a.repo.GetClaim(ctx, tenantID, claimID)
	if err != nil {
		return nil, err
	}
	if err := a.adjudicate(ctx, tenantID, claim); err != nil {
		return nil, err
	}
	return claim, nil
}

// Appeal files an appeal against a rejected or partially approved claim
// and moves it to UNDER_APPEAL.
func (a *Adjudicator) Appeal(ctx context.Context, tenantID, claimID string, req *domain.AppealRequest) (*domain.Appeal, error) {
	if req == nil || strings.TrimSpace(req.Reason) == "" {
		return nil, fmt.Errorf("%w: appeal reason is required", domain.ErrValidation)
	}

	claim, err := a.repo.GetClaim(ctx, tenantID, claimID)
	if err != nil {
		return nil, err
	}
	if !claim.Appealable() {
		return nil, fmt.Errorf("%w: claim %s in status %s cannot be appealed",
			domain.ErrInvalidState, claimID, claim.Status)
	}

	now := time.Now().UTC()
	appeal := &domain.Appeal{
		AppealID:            newAppealID(now),
		ClaimID:             claimID,
		TenantID:            tenantID,
		Reason:              req.Reason,
		AdditionalDocuments: req.AdditionalDocuments,
		Status:              domain.AppealStatusUnderReview,
		CreatedAt:           now,
	}
	if err := a.repo.SaveAppeal(ctx, tenantID, appeal); err != nil {
		return nil, fmt.Errorf("saving appeal: %w", err)
	}

	if err := a.repo.UpdateClaimStatus(ctx, tenantID, claimID, domain.StatusUnderAppeal, claim.Version); err != nil {
		return nil, fmt.Errorf("marking claim under appeal: %w", err)
	}

	a.publish(ctx, tenantID, domain.TopicClaimAppealed, &AppealEvent{
		AppealID: appeal.AppealID,
		ClaimID:  claimID,
		MemberID: claim.Input.MemberID,
		Reason:   req.Reason,
	})
	return appeal, nil
}

// adjudicate runs the stages for a saved claim and persists the outcome.
func (a *Adjudicator) adjudicate(ctx context.Context, tenantID string, claim *domain.Claim) error {
	ctx, span := tracer.Start(ctx, "pipeline.adjudicate",
		trace.WithAttributes(attribute.String("claim.id", claim.ClaimID)),
	)
	defer span.End()

	now := time.Now().UTC()
	input := &claim.Input

	terms, err := a.policy.Terms(ctx, tenantID)
	if err != nil {
		return err
	}

	extracted := extract.ExtractWithTimeout(ctx, a.extractor, input, a.cfg.ExtractionTimeout, a.logger)
	claim.Extracted = extracted

	diagnosis := input.Diagnosis
	if extracted.Diagnosis != "" {
		diagnosis = extracted.Diagnosis
	}
	hospital := input.HospitalName
	if extracted.HospitalName != "" {
		hospital = extracted.HospitalName
	}

	eligibility := rules.CheckEligibility(input, diagnosis, terms, now)

	var (
		coverage domain.CoverageResult
		limits   domain.LimitsResult
		assess   domain.FraudAssessment
		network  bool
	)

	if eligibility.Eligible {
		// Fraud runs concurrently with coverage and limits; the stages
		// do not feed each other.
		fraudDone := make(chan domain.FraudAssessment, 1)
		go func() {
			fraudDone <- a.assessFraud(ctx, tenantID, claim, extracted, terms, now)
		}()

		coverage = rules.ValidateCoverage(rules.CoverageInput{
			Category:        input.Category,
			Diagnosis:       diagnosis,
			Treatments:      extracted.Treatments,
			Procedures:      extracted.Procedures,
			Medicines:       extracted.Medicines,
			Tests:           extracted.Tests,
			ClaimAmount:     input.ClaimAmount,
			Bill:            input.Documents.Bill,
			HasPrescription: extracted.HasPrescription,
			HasBill:         extracted.HasBill,
			Degraded:        extracted.Degraded,
		}, terms)

		network = policy.IsNetworkHospital(terms, hospital)

		ytd, err := a.repo.SumApprovedYTD(ctx, tenantID, input.MemberID, now.Year())
		if err != nil {
			return fmt.Errorf("loading member utilization: %w", err)
		}

		limits = rules.ApplyLimits(rules.LimitsInput{
			ClaimAmount:     input.ClaimAmount,
			ExcludedAmount:  coverage.ExcludedAmount,
			Category:        coverage.Category,
			NetworkHospital: network,
			PreviousYTD:     ytd,
		}, terms)

		assess = <-fraudDone
	}

	record := decision.Combine(decision.Input{
		ClaimAmount:          input.ClaimAmount,
		CashlessRequest:      input.CashlessRequest,
		NetworkHospital:      network,
		ExtractionConfidence: extracted.Confidence,
		Eligibility:          eligibility,
		Coverage:             coverage,
		Limits:               limits,
		Fraud:                assess,
		PerClaimLimit:        terms.PerClaimLimit,
	}, now)

	claim.Decision = record
	claim.Status = record.Decision

	if err := a.persistDecision(ctx, tenantID, claim); err != nil {
		return err
	}

	span.SetAttributes(
		attribute.String("claim.decision", record.Decision),
		attribute.Float64("claim.approved", record.ApprovedAmount),
	)

	a.publish(ctx, tenantID, domain.TopicClaimDecided, &ClaimEvent{
		ClaimID:        claim.ClaimID,
		MemberID:       input.MemberID,
		Status:         record.Decision,
		ClaimAmount:    input.ClaimAmount,
		ApprovedAmount: record.ApprovedAmount,
		FraudScore:     record.FraudScore,
	})
	if record.Decision == domain.StatusManualReview {
		a.publish(ctx, tenantID, domain.TopicClaimReview, &ClaimEvent{
			ClaimID:     claim.ClaimID,
			MemberID:    input.MemberID,
			Status:      record.Decision,
			ClaimAmount: input.ClaimAmount,
			FraudScore:  record.FraudScore,
		})
	}
	return nil
}

// assessFraud computes history signals and runs the rule engine. Signal
// failures degrade to a neutral assessment; fraud never blocks a
// decision.
func (a *Adjudicator) assessFraud(ctx context.Context, tenantID string, claim *domain.Claim, extracted *domain.ExtractedDocumentData, terms *domain.PolicyTerms, now time.Time) domain.FraudAssessment {
	signals, err := a.history.Signals(ctx, tenantID, claim, extracted, terms, now)
	if err != nil {
		a.logger.Warn("fraud signals unavailable, skipping assessment",
			"claim_id", claim.ClaimID, "error", err)
		return domain.FraudAssessment{}
	}
	return a.engine.Assess(ctx, signals)
}

// persistDecision writes the decision with optimistic concurrency,
// retrying once against the stored version on conflict.
func (a *Adjudicator) persistDecision(ctx context.Context, tenantID string, claim *domain.Claim) error {
	err := a.repo.UpdateClaimDecision(ctx, tenantID, claim, claim.Version)
	if err == nil {
		claim.Version++
		return nil
	}
	if !errors.Is(err, repository.ErrVersionConflict) {
		return fmt.Errorf("persisting decision: %w", err)
	}

	current, gerr := a.repo.GetClaim(ctx, tenantID, claim.ClaimID)
	if gerr != nil {
		return fmt.Errorf("persisting decision: %w", err)
	}
	a.logger.Warn("decision write conflicted, retrying",
		"claim_id", claim.ClaimID, "expected", claim.Version, "stored", current.Version)

	if err := a.repo.UpdateClaimDecision(ctx, tenantID, claim, current.Version); err != nil {
		return fmt.Errorf("persisting decision after retry: %w", err)
	}
	claim.Version = current.Version + 1
	return nil
}

func (a *Adjudicator) publish(ctx context.Context, tenantID, topic string, event any) {
	if a.bus == nil {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}
	if err := a.bus.Publish(ctx, tenantID, topic, payload); err != nil {
		a.logger.Warn("event publish failed", "topic", topic, "error", err)
	}
}

func validateInput(input *domain.ClaimInput) error {
	switch {
	case input == nil:
		return fmt.Errorf("%w: claim input is required", domain.ErrValidation)
	case strings.TrimSpace(input.MemberID) == "":
		return fmt.Errorf("%w: member_id is required", domain.ErrValidation)
	case strings.TrimSpace(input.MemberName) == "":
		return fmt.Errorf("%w: member_name is required", domain.ErrValidation)
	case strings.TrimSpace(input.TreatmentDate) == "":
		return fmt.Errorf("%w: treatment_date is required", domain.ErrValidation)
	case input.ClaimAmount <= 0:
		return fmt.Errorf("%w: claim_amount must be positive", domain.ErrValidation)
	}
	return nil
}

func newClaimID(now time.Time) string {
	return fmt.Sprintf("CLM_%d_%s", now.Unix(), uuid.New().String()[:8])
}

func newAppealID(now time.Time) string {
	return fmt.Sprintf("APL_%d_%s", now.Unix(), uuid.New().String()[:8])
}

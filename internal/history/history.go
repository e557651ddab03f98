// Package history derives member claim-history signals for fraud
// evaluation.
package history

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/opensource-health/heron/internal/domain"
	"github.com/opensource-health/heron/internal/fraud"
)

// frequencyWindow is the trailing window for the claim-frequency signal.
const frequencyWindow = 30 * 24 * time.Hour

// Service assembles the fraud activation from the member's persisted
// claim history. Counts include the claim under adjudication, which is
// saved before signals are computed.
type Service struct {
	repo   domain.Repository
	logger *slog.Logger
}

// NewService creates a new history service.
func NewService(repo domain.Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:   repo,
		logger: logger,
	}
}

// Signals computes the fraud activation for a saved claim.
func (s *Service) Signals(ctx context.Context, tenantID string, claim *domain.Claim, extracted *domain.ExtractedDocumentData, terms *domain.PolicyTerms, now time.Time) (*domain.FraudSignals, error) {
	input := claim.Input

	sameDay, err := s.repo.CountClaimsOnDate(ctx, tenantID, input.MemberID, input.TreatmentDate)
	if err != nil {
		return nil, fmt.Errorf("failed to count same-day claims: %w", err)
	}

	windowCount, err := s.repo.CountClaimsSince(ctx, tenantID, input.MemberID, now.Add(-frequencyWindow))
	if err != nil {
		return nil, fmt.Errorf("failed to count claims in window: %w", err)
	}

	ytd, err := s.repo.SumApprovedYTD(ctx, tenantID, input.MemberID, now.Year())
	if err != nil {
		return nil, fmt.Errorf("failed to sum approved claims: %w", err)
	}

	duplicates, err := s.repo.CountDuplicateClaims(ctx, tenantID, input.MemberID, input.ClaimAmount, input.TreatmentDate)
	if err != nil {
		return nil, fmt.Errorf("failed to count duplicate claims: %w", err)
	}

	diagnosis := input.Diagnosis
	if extracted.Diagnosis != "" {
		diagnosis = extracted.Diagnosis
	}

	signals := &domain.FraudSignals{
		Amount:        input.ClaimAmount,
		PerClaimLimit: terms.PerClaimLimit,
		AnnualLimit:   terms.AnnualLimit,
		YTDTotal:      ytd,

		SameDayCount: sameDay,
		WindowCount:  windowCount,

		MedicineCount:    int64(len(extracted.Medicines)),
		RoundAmountCount: fraud.CountRoundAmounts(extracted.ConsultationFee, extracted.PharmacyAmount, extracted.DiagnosticAmount),

		// The count includes the saved claim itself, so a second row is
		// a real duplicate.
		DuplicateMatch: duplicates >= 2,

		WeekendNonEmergency: fraud.WeekendNonEmergency(input.TreatmentDate, diagnosis),
	}

	if terms.AnnualLimit > 0 {
		signals.Utilization = (ytd + input.ClaimAmount) / terms.AnnualLimit
	}

	// Document-derived checks are suppressed when extraction degraded:
	// absent fields must not read as fraud.
	if extracted.Degraded {
		signals.HasValidRegistration = true
		signals.DatesConsistent = true
	} else {
		signals.HasValidRegistration = fraud.ValidateRegistration(extracted.DoctorRegistration, now)
		signals.DatesConsistent = fraud.DatesConsistent(extracted.PrescriptionDate, extracted.BillDate, input.TreatmentDate)
	}

	return signals, nil
}

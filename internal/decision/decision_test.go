package decision

import (
	"strings"
	"testing"
	"time"

	"github.com/opensource-health/heron/internal/domain"
)

func cleanInput() Input {
	return Input{
		ClaimAmount:          1500,
		ExtractionConfidence: 0.85,
		PerClaimLimit:        5000,
		Eligibility:          domain.EligibilityResult{Eligible: true, Confidence: 0.95},
		Coverage: domain.CoverageResult{
			Category:      domain.CategoryConsultation,
			CoveredAmount: 1500,
			Confidence:    0.95,
		},
		Limits: domain.LimitsResult{
			EligibleAmount: 1500,
			CappedAmount:   1500,
			Copay:          150,
			ApprovedAmount: 1350,
			Confidence:     0.98,
		},
	}
}

func TestCombine(t *testing.T) {
	now := time.Now().UTC()

	t.Run("CleanApproval", func(t *testing.T) {
		record := Combine(cleanInput(), now)
		if record.Decision != domain.StatusApproved {
			t.Fatalf("expected APPROVED, got %s (%s)", record.Decision, record.Notes)
		}
		if record.ApprovedAmount != 1350 {
			t.Errorf("expected approved 1350, got %.2f", record.ApprovedAmount)
		}
		if record.Deductions.Copay != 150 {
			t.Errorf("expected copay deduction 150, got %.2f", record.Deductions.Copay)
		}
		// mean(0.85, 0.95, 0.95, 0.98) with no fraud discount
		if record.Confidence != 0.93 {
			t.Errorf("expected confidence 0.93, got %.2f", record.Confidence)
		}
		if record.CashlessApproved {
			t.Error("no cashless request, should not be cashless approved")
		}
	})

	t.Run("CopayPushesBelowEightyPercent", func(t *testing.T) {
		in := cleanInput()
		in.ClaimAmount = 3500
		in.Coverage.CoveredAmount = 3500
		in.Limits = domain.LimitsResult{
			EligibleAmount: 3500,
			CappedAmount:   2000,
			Copay:          200,
			ApprovedAmount: 1800,
			OverLimit:      1500,
			Reasons:        []string{domain.ReasonSubLimitExceeded},
			Confidence:     0.98,
		}

		record := Combine(in, now)
		if record.Decision != domain.StatusPartial {
			t.Fatalf("expected PARTIAL at 51%% of claim, got %s", record.Decision)
		}
		if record.Deductions.OverLimit != 1500 {
			t.Errorf("expected over-limit deduction 1500, got %.2f", record.Deductions.OverLimit)
		}
	})

	t.Run("WaitingPeriodRejects", func(t *testing.T) {
		in := cleanInput()
		in.Eligibility = domain.EligibilityResult{
			Eligible:             false,
			Reasons:              []string{domain.ReasonWaitingPeriod},
			WaitingDaysRemaining: 21,
			Confidence:           0.98,
		}
		in.Coverage = domain.CoverageResult{}
		in.Limits = domain.LimitsResult{}

		record := Combine(in, now)
		if record.Decision != domain.StatusRejected {
			t.Fatalf("expected REJECTED, got %s", record.Decision)
		}
		if record.ApprovedAmount != 0 {
			t.Errorf("expected approved 0, got %.2f", record.ApprovedAmount)
		}
		if record.Confidence != 1.0 {
			t.Errorf("expected deterministic rejection confidence 1.0, got %.2f", record.Confidence)
		}
		if len(record.NextSteps) == 0 || !strings.Contains(record.NextSteps[0], "21 days") {
			t.Errorf("expected waiting-period guidance, got %v", record.NextSteps)
		}
	})

	t.Run("FraudReviewOverridesApproval", func(t *testing.T) {
		in := cleanInput()
		in.Limits.NetworkDiscount = 300
		in.Fraud = domain.FraudAssessment{
			Score:           0.45,
			Flags:           []string{domain.FlagDuplicateClaim, domain.FlagMultipleClaimsSameDay},
			RecommendReview: true,
			RulesEvaluated:  11,
		}

		record := Combine(in, now)
		if record.Decision != domain.StatusManualReview {
			t.Fatalf("expected MANUAL_REVIEW, got %s", record.Decision)
		}
		// The computed amounts are preserved for the reviewer.
		if record.ApprovedAmount != 1350 {
			t.Errorf("expected approved amount preserved, got %.2f", record.ApprovedAmount)
		}
		if record.NetworkDiscount != 300 {
			t.Errorf("expected network discount preserved, got %.2f", record.NetworkDiscount)
		}
		if !strings.Contains(record.Notes, domain.FlagDuplicateClaim) {
			t.Errorf("expected flags in notes, got %q", record.Notes)
		}
	})

	t.Run("EligibilityRejectionBeatsFraudReview", func(t *testing.T) {
		in := cleanInput()
		in.Eligibility = domain.EligibilityResult{
			Eligible:   false,
			Reasons:    []string{domain.ReasonWaitingPeriod},
			Confidence: 0.98,
		}
		in.Fraud = domain.FraudAssessment{Score: 0.5, RecommendReview: true}

		record := Combine(in, now)
		if record.Decision != domain.StatusRejected {
			t.Fatalf("expected eligibility REJECTED to take precedence, got %s", record.Decision)
		}
	})

	t.Run("FraudReviewBeatsLimitRejection", func(t *testing.T) {
		// A suspicious claim over the per-claim limit goes to a human
		// instead of being auto-rejected.
		in := cleanInput()
		in.Limits = domain.LimitsResult{
			EligibleAmount: 6000,
			Reasons:        []string{domain.ReasonPerClaimExceeded},
			OverLimit:      6000,
			Confidence:     0.98,
		}
		in.Fraud = domain.FraudAssessment{Score: 0.40, RecommendReview: true}

		record := Combine(in, now)
		if record.Decision != domain.StatusManualReview {
			t.Fatalf("expected MANUAL_REVIEW to take precedence, got %s", record.Decision)
		}
	})

	t.Run("FraudReviewBeatsCoverageRejection", func(t *testing.T) {
		in := cleanInput()
		in.Coverage.Reasons = []string{domain.ReasonPreAuthMissing}
		in.Fraud = domain.FraudAssessment{Score: 0.5, RecommendReview: true}

		record := Combine(in, now)
		if record.Decision != domain.StatusManualReview {
			t.Fatalf("expected MANUAL_REVIEW to take precedence, got %s", record.Decision)
		}
	})

	t.Run("PartialExclusion", func(t *testing.T) {
		in := cleanInput()
		in.ClaimAmount = 4800
		in.Coverage = domain.CoverageResult{
			Category:       domain.CategoryDental,
			CoveredAmount:  3000,
			ExcludedAmount: 1800,
			ExcludedItems: []domain.RejectedItem{
				{Item: "teeth whitening", Reason: "cosmetic", Amount: 1800},
			},
			Reasons:    []string{domain.ReasonCosmeticProcedure},
			Confidence: 0.92,
		}
		in.Limits = domain.LimitsResult{
			EligibleAmount: 3000,
			CappedAmount:   3000,
			Copay:          300,
			ApprovedAmount: 2700,
			Confidence:     0.98,
		}

		record := Combine(in, now)
		if record.Decision != domain.StatusPartial {
			t.Fatalf("expected PARTIAL, got %s", record.Decision)
		}
		if !strings.Contains(record.Notes, "teeth whitening") {
			t.Errorf("expected excluded item named in notes, got %q", record.Notes)
		}
		if record.Deductions.ExcludedItems != 1800 {
			t.Errorf("expected excluded deduction 1800, got %.2f", record.Deductions.ExcludedItems)
		}
	})

	t.Run("FullyExcludedRejects", func(t *testing.T) {
		in := cleanInput()
		in.Coverage = domain.CoverageResult{
			Category:       domain.CategoryConsultation,
			ExcludedAmount: 2000,
			ExcludedItems: []domain.RejectedItem{
				{Item: "diet plan", Reason: "weight_loss", Amount: 2000},
			},
			Reasons:       []string{domain.ReasonServiceNotCovered},
			FullyExcluded: true,
			Confidence:    0.92,
		}
		in.Limits = domain.LimitsResult{}

		record := Combine(in, now)
		if record.Decision != domain.StatusRejected {
			t.Fatalf("expected REJECTED, got %s", record.Decision)
		}
		if record.ApprovedAmount != 0 {
			t.Errorf("expected approved 0, got %.2f", record.ApprovedAmount)
		}
	})

	t.Run("CashlessApproval", func(t *testing.T) {
		in := cleanInput()
		in.CashlessRequest = true
		in.NetworkHospital = true
		in.Limits.NetworkDiscount = 300

		record := Combine(in, now)
		if !record.CashlessApproved {
			t.Error("expected cashless approval for network hospital")
		}
		if record.NetworkDiscount != 300 {
			t.Errorf("expected network discount recorded, got %.2f", record.NetworkDiscount)
		}
		if len(record.NextSteps) == 0 || !strings.Contains(record.NextSteps[0], "Cashless") {
			t.Errorf("expected cashless guidance, got %v", record.NextSteps)
		}
	})

	t.Run("CashlessDeniedOffNetwork", func(t *testing.T) {
		in := cleanInput()
		in.CashlessRequest = true
		in.NetworkHospital = false

		record := Combine(in, now)
		if record.CashlessApproved {
			t.Error("off-network claim should not be cashless approved")
		}
	})

	t.Run("FraudFlagsSurfaceAsReasons", func(t *testing.T) {
		in := cleanInput()
		in.Fraud = domain.FraudAssessment{
			Score: 0.25,
			Flags: []string{domain.FlagInvalidRegistration},
		}

		record := Combine(in, now)
		// Advisory only: claim still approved.
		if record.Decision != domain.StatusApproved {
			t.Fatalf("expected APPROVED with advisory flag, got %s", record.Decision)
		}
		found := false
		for _, r := range record.RejectionReasons {
			if r == domain.ReasonDoctorRegInvalid {
				found = true
			}
		}
		if !found {
			t.Errorf("expected DOCTOR_REG_INVALID reason, got %v", record.RejectionReasons)
		}
		// 0.9325 * (1 - 0.25*0.5)
		if record.Confidence != 0.82 {
			t.Errorf("expected fraud-discounted confidence 0.82, got %.2f", record.Confidence)
		}
	})

	t.Run("NothingApprovableRejects", func(t *testing.T) {
		in := cleanInput()
		in.Coverage.CoveredAmount = 1000
		in.Limits = domain.LimitsResult{
			Reasons:    []string{domain.ReasonAnnualLimitExceeded},
			Confidence: 0.98,
		}

		record := Combine(in, now)
		if record.Decision != domain.StatusRejected {
			t.Fatalf("expected REJECTED with no approvable amount, got %s", record.Decision)
		}
	})

	t.Run("DegradedExtractionLowersConfidence", func(t *testing.T) {
		in := cleanInput()
		in.ExtractionConfidence = 0.60

		record := Combine(in, now)
		// mean(0.60, 0.95, 0.95, 0.98) = 0.87
		if record.Confidence != 0.87 {
			t.Errorf("expected confidence 0.87, got %.2f", record.Confidence)
		}
	})

	t.Run("LargerClaimNeverMoreConfident", func(t *testing.T) {
		// An MRI claim below the pre-auth threshold passes coverage
		// clean; above it the stage reports a finding. More amount must
		// mean the same or more scrutiny, never less.
		small := cleanInput()
		small.ClaimAmount = 9000
		small.ExtractionConfidence = 0.60
		small.Coverage.Confidence = 0.95

		large := small
		large.ClaimAmount = 11000
		large.Coverage.Reasons = []string{domain.ReasonPreAuthMissing}
		large.Coverage.Confidence = 0.92

		smallRecord := Combine(small, now)
		largeRecord := Combine(large, now)
		if largeRecord.Confidence > smallRecord.Confidence {
			t.Errorf("confidence rose with amount: %.2f at 9000 vs %.2f at 11000",
				smallRecord.Confidence, largeRecord.Confidence)
		}
	})
}

package rules

import (
	"testing"
	"time"

	"github.com/opensource-health/heron/internal/domain"
	"github.com/opensource-health/heron/internal/policy"
)

func TestCheckEligibility(t *testing.T) {
	terms := policy.DefaultTerms()
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	t.Run("LongStandingMemberEligible", func(t *testing.T) {
		input := &domain.ClaimInput{
			MemberJoinDate: "2024-01-01",
			TreatmentDate:  "2025-06-10",
		}

		result := CheckEligibility(input, "viral fever", terms, now)
		if !result.Eligible {
			t.Errorf("expected eligible, got reasons %v", result.Reasons)
		}
		if result.Confidence != 0.95 {
			t.Errorf("expected confidence 0.95, got %.2f", result.Confidence)
		}
	})

	t.Run("PolicyStatus", func(t *testing.T) {
		tests := []struct {
			name   string
			status string
			reason string
		}{
			{"InactiveRejects", domain.PolicyInactive, domain.ReasonPolicyInactive},
			{"LapsedRejects", "lapsed", domain.ReasonPolicyInactive},
			{"NotCoveredRejects", domain.PolicyNotCovered, domain.ReasonMemberNotCovered},
			{"ActivePasses", domain.PolicyActive, ""},
			{"CaseInsensitive", "ACTIVE", ""},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				input := &domain.ClaimInput{
					MemberJoinDate: "2024-01-01",
					TreatmentDate:  "2025-06-10",
					PolicyStatus:   tt.status,
				}

				result := CheckEligibility(input, "viral fever", terms, now)
				if tt.reason == "" {
					if !result.Eligible {
						t.Errorf("expected eligible for status %q, got %v", tt.status, result.Reasons)
					}
					return
				}
				if result.Eligible {
					t.Fatalf("expected ineligible for status %q", tt.status)
				}
				if len(result.Reasons) != 1 || result.Reasons[0] != tt.reason {
					t.Errorf("expected %s, got %v", tt.reason, result.Reasons)
				}
				if result.Confidence != 1.0 {
					t.Errorf("expected confidence 1.0, got %.2f", result.Confidence)
				}
			})
		}
	})

	t.Run("InitialWaitingPeriod", func(t *testing.T) {
		input := &domain.ClaimInput{
			MemberJoinDate: "2025-06-01",
			TreatmentDate:  "2025-06-10",
		}

		result := CheckEligibility(input, "viral fever", terms, now)
		if result.Eligible {
			t.Fatal("expected ineligible within initial waiting period")
		}
		if len(result.Reasons) != 1 || result.Reasons[0] != domain.ReasonWaitingPeriod {
			t.Errorf("expected WAITING_PERIOD, got %v", result.Reasons)
		}
		// 30-day wait, 9 days elapsed
		if result.WaitingDaysRemaining != 21 {
			t.Errorf("expected 21 days remaining, got %d", result.WaitingDaysRemaining)
		}
	})

	t.Run("ConditionWaitingPeriod", func(t *testing.T) {
		tests := []struct {
			name      string
			diagnosis string
			joinDate  string
			eligible  bool
		}{
			{"DiabetesWithin90Days", "Type 2 Diabetes", "2025-04-01", false},
			{"DiabetesAfter90Days", "Type 2 Diabetes", "2024-06-01", true},
			{"HypertensionKeyword", "high blood pressure follow-up", "2025-05-01", false},
			{"JointReplacementLongWait", "knee replacement surgery", "2024-01-01", false},
			{"JointPainNotReplacement", "joint pain", "2024-06-01", true},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				input := &domain.ClaimInput{
					MemberJoinDate: tt.joinDate,
					TreatmentDate:  "2025-06-10",
				}
				result := CheckEligibility(input, tt.diagnosis, terms, now)
				if result.Eligible != tt.eligible {
					t.Errorf("diagnosis %q join %s: expected eligible=%v, got %v (reasons %v)",
						tt.diagnosis, tt.joinDate, tt.eligible, result.Eligible, result.Reasons)
				}
			})
		}
	})

	t.Run("MissingJoinDateDefaultsToLongStanding", func(t *testing.T) {
		input := &domain.ClaimInput{
			TreatmentDate: "2025-06-10",
		}

		result := CheckEligibility(input, "fever", terms, now)
		if !result.Eligible {
			t.Errorf("expected eligible for member without join date, got %v", result.Reasons)
		}
	})

	t.Run("InvalidTreatmentDate", func(t *testing.T) {
		input := &domain.ClaimInput{
			TreatmentDate: "10-06-2025",
		}

		result := CheckEligibility(input, "fever", terms, now)
		if result.Eligible {
			t.Fatal("expected ineligible for invalid date")
		}
		if result.Reasons[0] != domain.ReasonInvalidDate {
			t.Errorf("expected INVALID_DATE, got %v", result.Reasons)
		}
		if result.Confidence != 1.0 {
			t.Errorf("expected confidence 1.0, got %.2f", result.Confidence)
		}
	})

	t.Run("InvalidJoinDate", func(t *testing.T) {
		input := &domain.ClaimInput{
			MemberJoinDate: "not-a-date",
			TreatmentDate:  "2025-06-10",
		}

		result := CheckEligibility(input, "fever", terms, now)
		if result.Eligible || result.Reasons[0] != domain.ReasonInvalidDate {
			t.Errorf("expected INVALID_DATE, got eligible=%v reasons=%v", result.Eligible, result.Reasons)
		}
	})
}

// Package rules implements the deterministic adjudication stages:
// eligibility, coverage, and limits. Stage failures are decisions
// expressed as reason codes, never errors.
package rules

import (
	"strings"
	"time"

	"github.com/opensource-health/heron/internal/domain"
)

const dateLayout = "2006-01-02"

// CheckEligibility verifies policy status and waiting periods. A failed
// check short-circuits the rest of the pipeline.
//
// Enrollment: an empty or "active" status passes; "not_covered" rejects
// with MEMBER_NOT_COVERED; any other state (inactive, lapsed, suspended)
// rejects with POLICY_INACTIVE.
//
// Waiting periods: the initial period applies to every claim; condition
// periods apply when a ConditionKeywords entry matches the diagnosis.
// A missing join date is treated as one year of tenure (long-standing
// member). Unparseable dates reject with INVALID_DATE.
func CheckEligibility(input *domain.ClaimInput, diagnosis string, terms *domain.PolicyTerms, now time.Time) domain.EligibilityResult {
	switch strings.ToLower(strings.TrimSpace(input.PolicyStatus)) {
	case "", domain.PolicyActive:
	case domain.PolicyNotCovered:
		return domain.EligibilityResult{
			Eligible:   false,
			Reasons:    []string{domain.ReasonMemberNotCovered},
			Confidence: 1.0,
		}
	default:
		return domain.EligibilityResult{
			Eligible:   false,
			Reasons:    []string{domain.ReasonPolicyInactive},
			Confidence: 1.0,
		}
	}

	treatmentDate, err := time.Parse(dateLayout, input.TreatmentDate)
	if err != nil {
		return domain.EligibilityResult{
			Eligible:   false,
			Reasons:    []string{domain.ReasonInvalidDate},
			Confidence: 1.0,
		}
	}

	joinDate := now.AddDate(-1, 0, 0)
	if input.MemberJoinDate != "" {
		joinDate, err = time.Parse(dateLayout, input.MemberJoinDate)
		if err != nil {
			return domain.EligibilityResult{
				Eligible:   false,
				Reasons:    []string{domain.ReasonInvalidDate},
				Confidence: 1.0,
			}
		}
	}

	daysSinceJoin := int(treatmentDate.Sub(joinDate).Hours() / 24)

	initialWaiting := terms.WaitingPeriods["initial"]
	if daysSinceJoin < initialWaiting {
		return domain.EligibilityResult{
			Eligible:             false,
			Reasons:              []string{domain.ReasonWaitingPeriod},
			WaitingDaysRemaining: initialWaiting - daysSinceJoin,
			Confidence:           0.98,
		}
	}

	diagnosisLower := strings.ToLower(diagnosis)
	for condition, keywords := range terms.ConditionKeywords {
		waitingDays, ok := terms.WaitingPeriods[condition]
		if !ok {
			continue
		}
		for _, keyword := range keywords {
			if strings.Contains(diagnosisLower, keyword) && daysSinceJoin < waitingDays {
				return domain.EligibilityResult{
					Eligible:             false,
					Reasons:              []string{domain.ReasonWaitingPeriod},
					WaitingDaysRemaining: waitingDays - daysSinceJoin,
					Confidence:           0.96,
				}
			}
		}
	}

	return domain.EligibilityResult{
		Eligible:   true,
		Confidence: 0.95,
	}
}

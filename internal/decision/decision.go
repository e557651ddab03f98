// Package decision combines the stage results into the final
// adjudication outcome.
package decision

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/opensource-health/heron/internal/domain"
)

// Stage confidence defaults, used when a stage was skipped (eligibility
// short-circuit) and reported no confidence of its own.
const (
	defaultExtractionConfidence  = 0.85
	defaultEligibilityConfidence = 0.95
	defaultCoverageConfidence    = 0.92
	defaultLimitsConfidence      = 0.98
)

// Input carries everything the combinator needs from the pipeline.
type Input struct {
	ClaimAmount     float64
	CashlessRequest bool
	NetworkHospital bool

	ExtractionConfidence float64

	Eligibility domain.EligibilityResult
	Coverage    domain.CoverageResult
	Limits      domain.LimitsResult
	Fraud       domain.FraudAssessment

	// PerClaimLimit doubles as the instant-cashless ceiling.
	PerClaimLimit float64
}

// Combine applies the decision precedence: eligibility failure first,
// then the fraud review recommendation, then the remaining hard
// rejections, then partial approvals, then full approval. Only an
// eligibility failure is decided ahead of fraud; a coverage or limit
// rejection on a suspicious claim still routes to manual review so the
// rejection is confirmed by a human. Fraud signals alone never reject.
func Combine(in Input, now time.Time) *domain.DecisionRecord {
	reasons := make([]string, 0, len(in.Eligibility.Reasons)+len(in.Coverage.Reasons)+len(in.Limits.Reasons))
	reasons = append(reasons, in.Eligibility.Reasons...)
	reasons = append(reasons, in.Coverage.Reasons...)
	reasons = append(reasons, in.Limits.Reasons...)

	// Document-integrity fraud signals surface as advisory reason codes.
	for _, flag := range in.Fraud.Flags {
		switch flag {
		case domain.FlagInvalidRegistration:
			reasons = appendUnique(reasons, domain.ReasonDoctorRegInvalid)
		case domain.FlagDateMismatch:
			reasons = appendUnique(reasons, domain.ReasonDateMismatch)
		}
	}

	record := &domain.DecisionRecord{
		RejectionReasons: reasons,
		RejectedItems:    in.Coverage.ExcludedItems,
		FraudFlags:       in.Fraud.Flags,
		FraudScore:       in.Fraud.Score,
		Confidence:       blendConfidence(in),
		Stages: domain.StageResults{
			Eligibility: in.Eligibility,
			Coverage:    in.Coverage,
			Limits:      in.Limits,
			Fraud:       in.Fraud,
		},
		CreatedAt: now,
	}

	approved := in.Limits.ApprovedAmount
	hasHard := false
	for _, r := range reasons {
		if domain.HardRejectionReasons[r] {
			hasHard = true
			break
		}
	}

	switch {
	case !in.Eligibility.Eligible:
		record.Decision = domain.StatusRejected
		record.ApprovedAmount = 0
		// A waiting-period or date rejection is a deterministic rule
		// outcome; the decision carries full confidence.
		record.Confidence = 1.0
		record.Deductions = domain.Deductions{ExcludedItems: in.Coverage.ExcludedAmount}
		record.Notes, record.NextSteps = rejectionNarrative(in, reasons)

	case in.Fraud.RecommendReview:
		record.Decision = domain.StatusManualReview
		record.ApprovedAmount = approved
		record.Deductions = deductions(in)
		record.NetworkDiscount = in.Limits.NetworkDiscount
		notes := []string{"Claim flagged for manual review due to unusual patterns"}
		if len(in.Fraud.Flags) > 0 {
			shown := in.Fraud.Flags
			if len(shown) > 3 {
				shown = shown[:3]
			}
			notes = append(notes, fmt.Sprintf("Flags: %s", strings.Join(shown, ", ")))
		}
		record.Notes = strings.Join(notes, " | ")
		record.NextSteps = []string{"Your claim will be reviewed by our claims team within 3-5 business days."}

	case hasHard || in.Coverage.FullyExcluded:
		record.Decision = domain.StatusRejected
		record.ApprovedAmount = 0
		record.Deductions = domain.Deductions{ExcludedItems: in.Coverage.ExcludedAmount}
		record.Notes, record.NextSteps = rejectionNarrative(in, reasons)

	case len(in.Coverage.ExcludedItems) > 0 && in.Coverage.CoveredAmount > 0:
		record.Decision = domain.StatusPartial
		record.ApprovedAmount = approved
		record.Deductions = deductions(in)
		record.NetworkDiscount = in.Limits.NetworkDiscount
		record.Notes = fmt.Sprintf("Partial approval - excluded items: %s", itemNames(in.Coverage.ExcludedItems, 2))
		record.NextSteps = []string{
			fmt.Sprintf("%.2f approved. Some items were not covered under your policy.", approved),
		}

	case approved > 0:
		if approved >= in.ClaimAmount*0.80 {
			record.Decision = domain.StatusApproved
			record.Notes = "All checks passed. Claim approved."
		} else {
			record.Decision = domain.StatusPartial
			record.Notes = "Claim partially approved after applying deductions."
		}
		record.ApprovedAmount = approved
		record.Deductions = deductions(in)
		record.NetworkDiscount = in.Limits.NetworkDiscount
		if in.CashlessRequest && in.NetworkHospital {
			record.NextSteps = []string{"Cashless claim approved. No action needed."}
		} else {
			record.NextSteps = []string{
				fmt.Sprintf("%.2f will be reimbursed within 5-7 business days.", approved),
			}
		}

	default:
		record.Decision = domain.StatusRejected
		record.ApprovedAmount = 0
		record.Deductions = domain.Deductions{
			ExcludedItems: in.Coverage.ExcludedAmount,
			OverLimit:     in.Limits.OverLimit,
		}
		record.Notes = "Unable to approve claim - no eligible amount"
		record.NextSteps = []string{"Please contact support for assistance."}
	}

	record.CashlessApproved = in.CashlessRequest &&
		in.NetworkHospital &&
		(record.Decision == domain.StatusApproved || record.Decision == domain.StatusPartial) &&
		record.ApprovedAmount <= in.PerClaimLimit

	return record
}

func deductions(in Input) domain.Deductions {
	return domain.Deductions{
		Copay:         in.Limits.Copay,
		ExcludedItems: in.Coverage.ExcludedAmount,
		OverLimit:     in.Limits.OverLimit,
	}
}

// blendConfidence averages the stage confidences and discounts by half
// the fraud score. Missing stage confidences fall back to defaults so a
// short-circuited pipeline still reports a sane number.
func blendConfidence(in Input) float64 {
	scores := []float64{
		orDefault(in.ExtractionConfidence, defaultExtractionConfidence),
		orDefault(in.Eligibility.Confidence, defaultEligibilityConfidence),
		orDefault(in.Coverage.Confidence, defaultCoverageConfidence),
		orDefault(in.Limits.Confidence, defaultLimitsConfidence),
	}

	var sum float64
	for _, s := range scores {
		sum += s
	}
	avg := sum / float64(len(scores))

	return math.Round(avg*(1-in.Fraud.Score*0.5)*100) / 100
}

func orDefault(v, def float64) float64 {
	if v == 0 {
		return def
	}
	return v
}

func rejectionNarrative(in Input, reasons []string) (string, []string) {
	has := func(code string) bool {
		for _, r := range reasons {
			if r == code {
				return true
			}
		}
		return false
	}

	switch {
	case has(domain.ReasonPolicyInactive):
		return "Policy is not active",
			[]string{"Your policy is inactive. Please renew your policy and resubmit the claim."}
	case has(domain.ReasonMemberNotCovered):
		return "Member is not covered under this policy",
			[]string{"Please verify the member details with your insurer."}
	case has(domain.ReasonMissingDocuments):
		return "Required documents missing",
			[]string{"Please submit all required documents including prescription from a registered doctor."}
	case has(domain.ReasonWaitingPeriod):
		return "Treatment within waiting period",
			[]string{fmt.Sprintf("Your claim is not eligible during the waiting period. Please resubmit after %d days.",
				in.Eligibility.WaitingDaysRemaining)}
	case has(domain.ReasonInvalidDate):
		return "Claim dates could not be validated",
			[]string{"Please verify the treatment and enrollment dates and resubmit."}
	case has(domain.ReasonPreAuthMissing):
		return "Pre-authorization required but not obtained",
			[]string{"Pre-authorization is required for this treatment. Please obtain pre-authorization before treatment."}
	case has(domain.ReasonPerClaimExceeded):
		return fmt.Sprintf("Claim amount %.2f exceeds the per-claim limit of %.2f",
				in.ClaimAmount, in.PerClaimLimit),
			[]string{"Your claim exceeds the per-claim limit. Please contact support."}
	case has(domain.ReasonBelowMinAmount):
		return "Claim amount is below the minimum claimable amount",
			[]string{"Claims below the minimum amount cannot be processed."}
	case in.Coverage.FullyExcluded:
		return "Treatment or service is excluded from coverage",
			[]string{"This treatment or service is not covered under your policy."}
	default:
		return fmt.Sprintf("Claim rejected: %s", strings.Join(reasons, ", ")),
			[]string{"Please review the rejection reasons and contact support."}
	}
}

func itemNames(items []domain.RejectedItem, limit int) string {
	names := make([]string, 0, limit)
	for i, item := range items {
		if i == limit {
			break
		}
		names = append(names, item.Item)
	}
	return strings.Join(names, ", ")
}

func appendUnique(list []string, value string) []string {
	for _, v := range list {
		if v == value {
			return list
		}
	}
	return append(list, value)
}

package rules

import (
	"math"

	"github.com/opensource-health/heron/internal/domain"
)

// LimitsInput collects the amounts the limits stage works from.
type LimitsInput struct {
	ClaimAmount     float64
	ExcludedAmount  float64
	Category        string
	NetworkHospital bool

	// PreviousYTD is the member's approved total for the current year.
	PreviousYTD float64
}

// ApplyLimits caps the eligible amount at the policy's limits and applies
// the copay. Order: minimum amount, per-claim ceiling, annual remainder,
// category sub-limit. The per-claim ceiling and minimum are hard
// rejections; annual and sub-limit overruns cap the amount instead.
//
// The network discount is recorded for the insurer's settlement but is
// never added to the approved amount.
func ApplyLimits(in LimitsInput, terms *domain.PolicyTerms) domain.LimitsResult {
	if in.ClaimAmount < terms.MinClaimAmount {
		return domain.LimitsResult{
			EligibleAmount: in.ClaimAmount,
			Reasons:        []string{domain.ReasonBelowMinAmount},
			Confidence:     1.0,
		}
	}

	eligible := in.ClaimAmount - in.ExcludedAmount
	if eligible < 0 {
		eligible = 0
	}

	result := domain.LimitsResult{
		EligibleAmount: eligible,
		Confidence:     0.98,
	}

	if eligible > terms.PerClaimLimit {
		result.Reasons = append(result.Reasons, domain.ReasonPerClaimExceeded)
		result.OverLimit = eligible
		return result
	}

	remainingAnnual := terms.AnnualLimit - in.PreviousYTD
	if remainingAnnual < 0 {
		remainingAnnual = 0
	}
	if eligible > remainingAnnual {
		result.Reasons = append(result.Reasons, domain.ReasonAnnualLimitExceeded)
	}

	subLimit := terms.SubLimitFor(in.Category)
	if eligible > subLimit {
		result.Reasons = append(result.Reasons, domain.ReasonSubLimitExceeded)
	}

	capped := math.Min(eligible, math.Min(remainingAnnual, subLimit))
	if capped < 0 {
		capped = 0
	}

	copay := round2(capped * terms.CopayFor(in.Category))
	approved := capped - copay
	if approved < 0 {
		approved = 0
	}

	result.CappedAmount = capped
	result.Copay = copay
	result.ApprovedAmount = round2(approved)
	result.OverLimit = round2(eligible - capped)
	if in.NetworkHospital {
		result.NetworkDiscount = round2(capped * terms.NetworkDiscountPercent)
	}
	return result
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

package fraud

import "github.com/opensource-health/heron/internal/domain"

// BuiltinRules returns the default fraud signal catalogue. These are
// loaded at startup and can be overridden or extended through the
// fraud rules API; database rules with the same ID replace them.
func BuiltinRules() []*domain.FraudRuleConfig {
	return []*domain.FraudRuleConfig{
		{
			ID:          "invalid-registration",
			Name:        "Invalid doctor registration",
			Description: "Doctor registration number fails council format validation",
			Version:     "1.0.0",
			Expression:  `!has_valid_registration`,
			Flag:        domain.FlagInvalidRegistration,
			Weight:      0.25,
			Enabled:     true,
		},
		{
			ID:          "same-day-pair",
			Name:        "Second claim same day",
			Description: "Member filed a second claim on the same day",
			Version:     "1.0.0",
			Expression:  `same_day_count == 2`,
			Flag:        domain.FlagMultipleClaimsSameDay,
			Weight:      0.15,
			Enabled:     true,
		},
		{
			ID:          "same-day-burst",
			Name:        "Same-day claim burst",
			Description: "Member filed three or more claims on the same day",
			Version:     "1.0.0",
			Expression:  `same_day_count >= 3`,
			Flag:        domain.FlagMultipleClaimsSameDay,
			Weight:      0.30,
			Enabled:     true,
		},
		{
			ID:          "high-utilization",
			Name:        "Annual limit nearly exhausted",
			Description: "Claim pushes year-to-date utilization above 90% of the annual limit",
			Version:     "1.0.0",
			Expression:  `utilization > 0.9`,
			Flag:        domain.FlagHighUtilization,
			Weight:      0.10,
			Enabled:     true,
		},
		{
			ID:          "near-per-claim-limit",
			Name:        "Amount near per-claim ceiling",
			Description: "Claim amount is within 5% of the per-claim limit",
			Version:     "1.0.0",
			Expression:  `amount > per_claim_limit * 0.95`,
			Flag:        domain.FlagNearPerClaimLimit,
			Weight:      0.10,
			Enabled:     true,
		},
		{
			ID:          "excessive-medicines",
			Name:        "Excessive medicine count",
			Description: "Prescription lists more than ten medicines",
			Version:     "1.0.0",
			Expression:  `medicine_count > 10`,
			Flag:        domain.FlagExcessiveMedicines,
			Weight:      0.10,
			Enabled:     true,
		},
		{
			ID:          "round-amounts",
			Name:        "Suspiciously round bill amounts",
			Description: "Two or more bill lines are exact multiples of 500",
			Version:     "1.0.0",
			Expression:  `round_amount_count >= 2`,
			Flag:        domain.FlagRoundAmounts,
			Weight:      0.05,
			Enabled:     true,
		},
		{
			ID:          "weekend-nonemergency",
			Name:        "Weekend non-emergency treatment",
			Description: "Non-emergency treatment dated on a weekend",
			Version:     "1.0.0",
			Expression:  `weekend_nonemergency`,
			Flag:        domain.FlagWeekendNonEmergency,
			Weight:      0.05,
			Enabled:     true,
		},
		{
			ID:          "date-mismatch",
			Name:        "Document date mismatch",
			Description: "Prescription, bill and treatment dates spread over more than a week",
			Version:     "1.0.0",
			Expression:  `!dates_consistent`,
			Flag:        domain.FlagDateMismatch,
			Weight:      0.15,
			Enabled:     true,
		},
		{
			ID:          "duplicate-claim",
			Name:        "Duplicate claim",
			Description: "Another claim exists for the same member, amount and treatment date",
			Version:     "1.0.0",
			Expression:  `duplicate_match`,
			Flag:        domain.FlagDuplicateClaim,
			Weight:      0.30,
			Enabled:     true,
		},
		{
			ID:          "high-frequency",
			Name:        "High claim frequency",
			Description: "More than five claims filed in the trailing 30 days",
			Version:     "1.0.0",
			Expression:  `window_count > 5`,
			Flag:        domain.FlagHighFrequency,
			Weight:      0.10,
			Enabled:     true,
		},
	}
}

package domain

// PolicyTerms is the versioned policy document adjudication runs against.
// Stored per tenant with a seeded global default; a missing document is
// ErrPolicyLookup, never a silent fallback.
type PolicyTerms struct {
	Version string `json:"version"`

	// Monetary limits, in rupees.
	AnnualLimit    float64            `json:"annualLimit"`
	PerClaimLimit  float64            `json:"perClaimLimit"`
	MinClaimAmount float64            `json:"minClaimAmount"`
	SubLimits      map[string]float64 `json:"subLimits"`

	// CopayPercent is a fraction (0.10 = 10%) applied to the capped
	// amount. Per-category overrides win when present.
	CopayPercent   float64            `json:"copayPercent"`
	CopayOverrides map[string]float64 `json:"copayOverrides,omitempty"`

	// NetworkDiscountPercent is recorded on network-hospital claims but
	// never added to the approved amount.
	NetworkDiscountPercent float64 `json:"networkDiscountPercent"`

	// WaitingPeriods maps a condition key to days since joining. The
	// "initial" key applies to every claim; condition keys apply when a
	// ConditionKeywords entry matches the diagnosis.
	WaitingPeriods    map[string]int      `json:"waitingPeriods"`
	ConditionKeywords map[string][]string `json:"conditionKeywords"`

	// Exclusions maps an exclusion group to its diagnosis/item keywords.
	Exclusions map[string][]string `json:"exclusions"`

	// Alternative-medicine treatments are always covered under their
	// sub-limit regardless of exclusion keywords.
	AlternativeMedicineKeywords []string `json:"alternativeMedicineKeywords"`

	// Vitamins and supplements are excluded for wellness diagnoses but
	// covered when prescribed for a deficiency.
	VitaminWellnessKeywords   []string `json:"vitaminWellnessKeywords"`
	VitaminDeficiencyKeywords []string `json:"vitaminDeficiencyKeywords"`

	NetworkHospitals []string `json:"networkHospitals"`

	// Pre-authorization applies to these procedures above the threshold.
	PreAuthProcedures []string `json:"preAuthProcedures"`
	PreAuthThreshold  float64  `json:"preAuthThreshold"`
}

// SubLimitFor returns the sub-limit for a category, falling back to the
// per-claim limit when the category has no sub-limit of its own.
func (t *PolicyTerms) SubLimitFor(category string) float64 {
	if limit, ok := t.SubLimits[category]; ok {
		return limit
	}
	return t.PerClaimLimit
}

// CopayFor returns the copay fraction for a category.
func (t *PolicyTerms) CopayFor(category string) float64 {
	if pct, ok := t.CopayOverrides[category]; ok {
		return pct
	}
	return t.CopayPercent
}

package domain

// FraudRuleConfig defines one fraud signal as a boolean CEL expression
// over the FraudSignals activation. A firing rule contributes its weight
// to the fraud score and its flag to the flag list.
type FraudRuleConfig struct {
	ID          string `json:"id"`
	TenantID    string `json:"tenantId"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Version     string `json:"version,omitempty"`

	// Expression is a CEL expression producing a bool.
	Expression string `json:"expression"`

	// Flag is the lower_snake flag raised when the rule fires.
	Flag string `json:"flag"`

	Weight  float64 `json:"weight"`
	Enabled bool    `json:"enabled"`
}

// Fraud flag vocabulary (lower_snake). Closed: built-in and stored rules
// raise flags from this list.
const (
	FlagMultipleClaimsSameDay = "multiple_claims_same_day"
	FlagInvalidRegistration   = "invalid_doctor_registration"
	FlagNearPerClaimLimit     = "near_per_claim_limit"
	FlagHighUtilization       = "high_utilization"
	FlagExcessiveMedicines    = "excessive_medicines"
	FlagRoundAmounts          = "round_amounts"
	FlagWeekendNonEmergency   = "weekend_nonemergency"
	FlagDateMismatch          = "date_mismatch"
	FlagDuplicateClaim        = "duplicate_claim"
	FlagHighFrequency         = "high_frequency"
)

// FraudSignals is the activation the fraud rules evaluate against. All
// history-derived counters are computed before evaluation so rule
// expressions stay pure.
type FraudSignals struct {
	Amount        float64 `json:"amount"`
	PerClaimLimit float64 `json:"perClaimLimit"`
	AnnualLimit   float64 `json:"annualLimit"`

	// Utilization is (YTD approved + this claim) / annual limit.
	Utilization float64 `json:"utilization"`
	YTDTotal    float64 `json:"ytdTotal"`

	SameDayCount int64 `json:"sameDayCount"`
	WindowCount  int64 `json:"windowCount"`

	MedicineCount    int64 `json:"medicineCount"`
	RoundAmountCount int64 `json:"roundAmountCount"`

	HasValidRegistration bool `json:"hasValidRegistration"`
	DatesConsistent      bool `json:"datesConsistent"`
	DuplicateMatch       bool `json:"duplicateMatch"`
	WeekendNonEmergency  bool `json:"weekendNonEmergency"`
}

// FraudAssessment is the joined output of the fraud stage. Fraud alone
// never rejects a claim; a review recommendation routes it to a human.
type FraudAssessment struct {
	Score           float64  `json:"score"`
	Flags           []string `json:"flags,omitempty"`
	RecommendReview bool     `json:"recommendReview"`
	RulesEvaluated  int      `json:"rulesEvaluated"`
}

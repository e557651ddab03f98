package domain

import (
	"time"
)

// Rejection reason codes. Closed vocabulary: stage rules only ever emit
// codes from this list.
const (
	ReasonPolicyInactive      = "POLICY_INACTIVE"
	ReasonMemberNotCovered    = "MEMBER_NOT_COVERED"
	ReasonWaitingPeriod       = "WAITING_PERIOD"
	ReasonInvalidDate         = "INVALID_DATE"
	ReasonMissingDocuments    = "MISSING_DOCUMENTS"
	ReasonPreAuthMissing      = "PRE_AUTH_MISSING"
	ReasonPerClaimExceeded    = "PER_CLAIM_EXCEEDED"
	ReasonBelowMinAmount      = "BELOW_MIN_AMOUNT"
	ReasonServiceNotCovered   = "SERVICE_NOT_COVERED"
	ReasonExcludedCondition   = "EXCLUDED_CONDITION"
	ReasonCosmeticProcedure   = "COSMETIC_PROCEDURE"
	ReasonSubLimitExceeded    = "SUB_LIMIT_EXCEEDED"
	ReasonAnnualLimitExceeded = "ANNUAL_LIMIT_EXCEEDED"
	ReasonDoctorRegInvalid    = "DOCTOR_REG_INVALID"
	ReasonDateMismatch        = "DATE_MISMATCH"
)

// HardRejectionReasons are the codes that reject a claim outright
// regardless of any partial coverage.
var HardRejectionReasons = map[string]bool{
	ReasonPolicyInactive:   true,
	ReasonMemberNotCovered: true,
	ReasonWaitingPeriod:    true,
	ReasonInvalidDate:      true,
	ReasonMissingDocuments: true,
	ReasonPreAuthMissing:   true,
	ReasonPerClaimExceeded: true,
	ReasonBelowMinAmount:   true,
}

// Deductions itemizes everything subtracted from the claimed amount.
// Copay + ExcludedItems + OverLimit + approved never exceeds the claim.
type Deductions struct {
	Copay         float64 `json:"copay"`
	ExcludedItems float64 `json:"excludedItems"`
	OverLimit     float64 `json:"overLimit"`
}

// RejectedItem is a single excluded line item with the exclusion group
// or reason code that removed it.
type RejectedItem struct {
	Item   string  `json:"item"`
	Reason string  `json:"reason"`
	Amount float64 `json:"amount,omitempty"`
}

// DecisionRecord is the adjudication outcome for one claim.
type DecisionRecord struct {
	Decision       string  `json:"decision"`
	ApprovedAmount float64 `json:"approvedAmount"`

	Deductions       Deductions     `json:"deductions"`
	RejectionReasons []string       `json:"rejectionReasons,omitempty"`
	RejectedItems    []RejectedItem `json:"rejectedItems,omitempty"`

	FraudFlags []string `json:"fraudFlags,omitempty"`
	FraudScore float64  `json:"fraudScore"`

	Confidence float64 `json:"confidence"`

	CashlessApproved bool    `json:"cashlessApproved"`
	NetworkDiscount  float64 `json:"networkDiscount"`

	Notes     string   `json:"notes,omitempty"`
	NextSteps []string `json:"nextSteps,omitempty"`

	Stages StageResults `json:"stages"`

	CreatedAt time.Time `json:"createdAt"`
}

// StageResults preserves the per-stage sub-results for auditability.
type StageResults struct {
	Eligibility EligibilityResult `json:"eligibility"`
	Coverage    CoverageResult    `json:"coverage"`
	Limits      LimitsResult      `json:"limits"`
	Fraud       FraudAssessment   `json:"fraud"`
}

// EligibilityResult is the output of the eligibility stage. A failed
// eligibility check short-circuits the pipeline.
type EligibilityResult struct {
	Eligible             bool     `json:"eligible"`
	Reasons              []string `json:"reasons,omitempty"`
	WaitingDaysRemaining int      `json:"waitingDaysRemaining,omitempty"`
	Confidence           float64  `json:"confidence"`
}

// CoverageResult is the output of the coverage stage.
type CoverageResult struct {
	Category       string         `json:"category"`
	CoveredAmount  float64        `json:"coveredAmount"`
	ExcludedAmount float64        `json:"excludedAmount"`
	ExcludedItems  []RejectedItem `json:"excludedItems,omitempty"`
	Reasons        []string       `json:"reasons,omitempty"`
	FullyExcluded  bool           `json:"fullyExcluded"`
	Confidence     float64        `json:"confidence"`
}

// LimitsResult is the output of the limits stage.
type LimitsResult struct {
	EligibleAmount  float64  `json:"eligibleAmount"`
	CappedAmount    float64  `json:"cappedAmount"`
	Copay           float64  `json:"copay"`
	NetworkDiscount float64  `json:"networkDiscount"`
	ApprovedAmount  float64  `json:"approvedAmount"`
	OverLimit       float64  `json:"overLimit"`
	Reasons         []string `json:"reasons,omitempty"`
	Confidence      float64  `json:"confidence"`
}

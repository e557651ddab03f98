package domain

import (
	"time"
)

// ClaimInput is an outpatient claim as submitted by a member or TPA portal.
type ClaimInput struct {
	MemberID   string `json:"memberId"`
	MemberName string `json:"memberName"`

	// MemberJoinDate is YYYY-MM-DD. Empty means the join date is unknown
	// and the member is treated as long-standing (one year of tenure).
	MemberJoinDate string `json:"memberJoinDate,omitempty"`

	// PolicyStatus is the member's enrollment state as reported by the
	// portal. Empty means active.
	PolicyStatus string `json:"policyStatus,omitempty"`

	TreatmentDate string  `json:"treatmentDate"`
	ClaimAmount   float64 `json:"claimAmount"`

	// Category is auto-detected from the documents when empty.
	Category  string `json:"category,omitempty"`
	Diagnosis string `json:"diagnosis,omitempty"`

	HospitalName    string `json:"hospitalName,omitempty"`
	CashlessRequest bool   `json:"cashlessRequest,omitempty"`

	Documents ClaimDocuments `json:"documents"`
}

// Member enrollment states carried on ClaimInput.PolicyStatus.
const (
	PolicyActive     = "active"
	PolicyInactive   = "inactive"
	PolicyNotCovered = "not_covered"
)

// ClaimDocuments carries the submitted document payloads. Each document is
// a free-form field map; the extraction collaborator turns them into
// ExtractedDocumentData.
type ClaimDocuments struct {
	Prescription map[string]any `json:"prescription,omitempty"`
	Bill         map[string]any `json:"bill,omitempty"`
}

// Claim is the persisted claim record: the submitted input, the extraction
// snapshot, and the latest decision. Version guards concurrent decision
// writes (optimistic concurrency, single logical writer per claim).
type Claim struct {
	ClaimID  string `json:"claimId"`
	TenantID string `json:"tenantId"`

	Input     ClaimInput             `json:"input"`
	Extracted *ExtractedDocumentData `json:"extracted,omitempty"`

	Status   string          `json:"status"`
	Decision *DecisionRecord `json:"decision,omitempty"`

	Version int64 `json:"version"`

	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	ProcessedAt *time.Time `json:"processedAt,omitempty"`
}

// Claim lifecycle states. Terminal decision states double as the decision
// value on the DecisionRecord.
const (
	StatusPending      = "PENDING"
	StatusApproved     = "APPROVED"
	StatusPartial      = "PARTIAL"
	StatusRejected     = "REJECTED"
	StatusManualReview = "MANUAL_REVIEW"
	StatusUnderAppeal  = "UNDER_APPEAL"
)

// Claim categories.
const (
	CategoryConsultation = "consultation"
	CategoryDiagnostic   = "diagnostic"
	CategoryPharmacy     = "pharmacy"
	CategoryDental       = "dental"
	CategoryVision       = "vision"
	CategoryAlternative  = "alternative_medicine"
)

// Appealable reports whether the claim may be appealed in its current state.
func (c *Claim) Appealable() bool {
	return c.Status == StatusRejected || c.Status == StatusPartial
}

// Appeal is a member's request to re-examine a rejected or partial claim.
type Appeal struct {
	AppealID string `json:"appealId"`
	ClaimID  string `json:"claimId"`
	TenantID string `json:"tenantId"`

	Reason              string   `json:"reason"`
	AdditionalDocuments []string `json:"additionalDocuments,omitempty"`

	Status     string     `json:"status"`
	Resolution string     `json:"resolution,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
	ResolvedAt *time.Time `json:"resolvedAt,omitempty"`
}

// AppealRequest is the API payload for filing an appeal.
type AppealRequest struct {
	Reason              string   `json:"reason"`
	AdditionalDocuments []string `json:"additionalDocuments,omitempty"`
}

// Appeal lifecycle states.
const (
	AppealStatusUnderReview = "UNDER_REVIEW"
	AppealStatusResolved    = "RESOLVED"
)

package domain

// ExtractedDocumentData is the structured view of the submitted documents
// produced by the extraction collaborator.
type ExtractedDocumentData struct {
	DoctorName         string `json:"doctorName,omitempty"`
	DoctorRegistration string `json:"doctorRegistration,omitempty"`
	Diagnosis          string `json:"diagnosis,omitempty"`

	Medicines  []string `json:"medicines,omitempty"`
	Tests      []string `json:"tests,omitempty"`
	Procedures []string `json:"procedures,omitempty"`
	Treatments []string `json:"treatments,omitempty"`

	ConsultationFee  float64 `json:"consultationFee,omitempty"`
	DiagnosticAmount float64 `json:"diagnosticAmount,omitempty"`
	PharmacyAmount   float64 `json:"pharmacyAmount,omitempty"`
	ProcedureAmount  float64 `json:"procedureAmount,omitempty"`
	TotalBillAmount  float64 `json:"totalBillAmount,omitempty"`

	HospitalName     string `json:"hospitalName,omitempty"`
	PrescriptionDate string `json:"prescriptionDate,omitempty"`
	BillDate         string `json:"billDate,omitempty"`

	HasPrescription bool `json:"hasPrescription"`
	HasBill         bool `json:"hasBill"`

	// Confidence is the extractor's own confidence in [0,1].
	Confidence float64 `json:"confidence"`

	// Degraded is set when the collaborator timed out or failed and the
	// pipeline fell back to whatever could be read synchronously. A
	// degraded extraction never triggers a missing-documents rejection.
	Degraded bool `json:"degraded,omitempty"`
}

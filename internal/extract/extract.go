// Package extract turns submitted document payloads into structured
// claim data for the adjudication stages.
package extract

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/opensource-health/heron/internal/domain"
)

// Extractor produces structured data from a claim's documents.
type Extractor interface {
	Extract(ctx context.Context, input *domain.ClaimInput) (*domain.ExtractedDocumentData, error)
}

// DocumentExtractor reads the structured field maps submitted with the
// claim. Payloads follow the portal's prescription/bill field
// conventions; unknown fields are ignored.
type DocumentExtractor struct {
	logger *slog.Logger
}

func NewDocumentExtractor(logger *slog.Logger) *DocumentExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &DocumentExtractor{logger: logger}
}

func (e *DocumentExtractor) Extract(ctx context.Context, input *domain.ClaimInput) (*domain.ExtractedDocumentData, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	prescription := input.Documents.Prescription
	bill := input.Documents.Bill

	data := &domain.ExtractedDocumentData{
		HasPrescription: len(prescription) > 0,
		HasBill:         len(bill) > 0,
		Confidence:      0.85,
	}

	data.DoctorName = stringField(prescription, "doctor_name")
	data.DoctorRegistration = stringField(prescription, "doctor_reg", "doctor_registration")
	data.Diagnosis = stringField(prescription, "diagnosis")
	data.Medicines = listField(prescription, "medicines_prescribed", "medicines")
	data.Tests = listField(prescription, "tests_prescribed", "tests")
	data.Procedures = listField(prescription, "procedures")
	data.Treatments = listField(prescription, "treatments_advised", "treatments")
	data.PrescriptionDate = stringField(prescription, "prescription_date", "date")

	data.HospitalName = stringField(bill, "hospital_name")
	data.BillDate = stringField(bill, "bill_date", "date")
	data.ConsultationFee = floatField(bill, "consultation_fee", "doctor_fee")
	data.DiagnosticAmount = floatField(bill, "diagnostic_tests", "lab_charges")
	data.PharmacyAmount = floatField(bill, "medicines", "pharmacy_charges")
	data.ProcedureAmount = floatField(bill, "procedure_charges", "root_canal", "therapy_charges")

	data.TotalBillAmount = floatField(bill, "total_amount")
	if data.TotalBillAmount == 0 {
		data.TotalBillAmount = input.ClaimAmount
	}

	if data.Diagnosis == "" {
		data.Diagnosis = input.Diagnosis
	}
	if data.HospitalName == "" {
		data.HospitalName = input.HospitalName
	}

	return data, nil
}

// ExtractWithTimeout runs the extractor against a deadline. On timeout
// or failure it returns a degraded snapshot built from the raw input so
// adjudication can proceed; the degraded flag suppresses the
// missing-documents rejection downstream.
func ExtractWithTimeout(ctx context.Context, extractor Extractor, input *domain.ClaimInput, timeout time.Duration, logger *slog.Logger) *domain.ExtractedDocumentData {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		data *domain.ExtractedDocumentData
		err  error
	}
	done := make(chan result, 1)

	go func() {
		data, err := extractor.Extract(ctx, input)
		done <- result{data, err}
	}()

	select {
	case r := <-done:
		if r.err == nil {
			return r.data
		}
		logger.Warn("document extraction failed, continuing degraded", "error", r.err)
	case <-ctx.Done():
		logger.Warn("document extraction timed out, continuing degraded", "timeout", timeout)
	}

	return degradedData(input)
}

// degradedData is the fallback snapshot when extraction is unavailable.
func degradedData(input *domain.ClaimInput) *domain.ExtractedDocumentData {
	return &domain.ExtractedDocumentData{
		Diagnosis:       input.Diagnosis,
		HospitalName:    input.HospitalName,
		TotalBillAmount: input.ClaimAmount,
		HasPrescription: len(input.Documents.Prescription) > 0,
		HasBill:         len(input.Documents.Bill) > 0,
		Confidence:      0.60,
		Degraded:        true,
	}
}

func stringField(m map[string]any, keys ...string) string {
	for _, key := range keys {
		if v, ok := m[key]; ok {
			if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
				return strings.TrimSpace(s)
			}
		}
	}
	return ""
}

// listField accepts both []string and the []any produced by JSON decoding.
func listField(m map[string]any, keys ...string) []string {
	for _, key := range keys {
		v, ok := m[key]
		if !ok {
			continue
		}
		switch list := v.(type) {
		case []string:
			return list
		case []any:
			var out []string
			for _, item := range list {
				if s, ok := item.(string); ok {
					out = append(out, s)
				}
			}
			if len(out) > 0 {
				return out
			}
		}
	}
	return nil
}

// floatField sums the values found under keys, so split charges
// (procedure plus therapy lines) aggregate into one amount.
func floatField(m map[string]any, keys ...string) float64 {
	var total float64
	for _, key := range keys {
		if v, ok := m[key]; ok {
			total += toFloat(v)
		}
	}
	return total
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	}
	return 0
}

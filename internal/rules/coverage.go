package rules

import (
	"fmt"
	"strings"

	"github.com/opensource-health/heron/internal/domain"
)

// CoverageInput collects everything the coverage stage examines. Item
// lists come from the extraction; the bill map supplies line-item
// amounts for excluded items.
type CoverageInput struct {
	Category    string
	Diagnosis   string
	Treatments  []string
	Procedures  []string
	Medicines   []string
	Tests       []string
	ClaimAmount float64
	Bill        map[string]any

	// Extraction presence flags; a degraded extraction never triggers a
	// missing-documents rejection.
	HasPrescription bool
	HasBill         bool
	Degraded        bool
}

// ValidateCoverage partitions the claim's items into covered and excluded
// per the policy's exclusion keyword groups and pre-authorization rules,
// and resolves the claim category when it was not submitted.
func ValidateCoverage(in CoverageInput, terms *domain.PolicyTerms) domain.CoverageResult {
	result := domain.CoverageResult{}

	if !in.Degraded && (!in.HasPrescription || !in.HasBill) {
		result.Reasons = append(result.Reasons, domain.ReasonMissingDocuments)
	}

	diagnosisLower := strings.ToLower(in.Diagnosis)
	deficiency := containsAny(diagnosisLower, terms.VitaminDeficiencyKeywords)

	allItems := append(append([]string{}, in.Treatments...), in.Procedures...)
	if in.Diagnosis != "" {
		allItems = append(allItems, in.Diagnosis)
	}

	var coveredItems []string
	for _, item := range allItems {
		if item == "" {
			continue
		}
		itemLower := strings.ToLower(item)

		// Alternative medicine is covered under its sub-limit regardless
		// of exclusion keywords.
		if containsAny(itemLower, terms.AlternativeMedicineKeywords) {
			coveredItems = append(coveredItems, item)
			continue
		}

		group, excluded := matchExclusion(itemLower, diagnosisLower, deficiency, terms)
		if !excluded {
			coveredItems = append(coveredItems, item)
			continue
		}

		result.ExcludedItems = append(result.ExcludedItems, domain.RejectedItem{
			Item:   item,
			Reason: group,
			Amount: excludedItemAmount(in.Bill, itemLower),
		})
		appendUnique(&result.Reasons, exclusionReason(group, itemLower))
	}

	// Medicines: vitamins are excluded only for wellness diagnoses.
	// A doctor's prescription is otherwise taken as a medical reason.
	for _, med := range in.Medicines {
		if med == "" {
			continue
		}
		medLower := strings.ToLower(med)
		if (strings.Contains(medLower, "vitamin") || strings.Contains(medLower, "supplement")) &&
			!deficiency && containsAny(diagnosisLower, terms.VitaminWellnessKeywords) {
			result.ExcludedItems = append(result.ExcludedItems, domain.RejectedItem{
				Item:   med,
				Reason: domain.ReasonServiceNotCovered,
				Amount: excludedItemAmount(in.Bill, medLower),
			})
			appendUnique(&result.Reasons, domain.ReasonServiceNotCovered)
			continue
		}
		coveredItems = append(coveredItems, med)
	}

	// High-value imaging requires pre-authorization.
	for _, test := range in.Tests {
		if test == "" {
			continue
		}
		if preAuthRequired(test, in.ClaimAmount, terms) {
			appendUnique(&result.Reasons, domain.ReasonPreAuthMissing)
			result.ExcludedItems = append(result.ExcludedItems, domain.RejectedItem{
				Item:   test,
				Reason: domain.ReasonPreAuthMissing,
			})
			continue
		}
		coveredItems = append(coveredItems, test)
	}

	result.Category = resolveCategory(in)

	for _, item := range result.ExcludedItems {
		result.ExcludedAmount += item.Amount
	}
	if result.ExcludedAmount > in.ClaimAmount {
		result.ExcludedAmount = in.ClaimAmount
	}
	result.CoveredAmount = in.ClaimAmount - result.ExcludedAmount

	result.FullyExcluded = len(result.ExcludedItems) > 0 &&
		(len(coveredItems) == 0 || result.ExcludedAmount >= in.ClaimAmount)

	// A stage finding never raises confidence: a larger claim that trips
	// the pre-auth threshold must not look more certain than a smaller
	// one that passed clean.
	if len(result.Reasons) == 0 {
		result.Confidence = 0.95
	} else {
		result.Confidence = 0.92
	}
	return result
}

// matchExclusion checks an item against the policy's exclusion keyword
// groups. Vitamins are handled separately in the medicines pass.
func matchExclusion(itemLower, diagnosisLower string, deficiency bool, terms *domain.PolicyTerms) (string, bool) {
	if strings.Contains(itemLower, "vitamin") || strings.Contains(itemLower, "supplement") {
		if deficiency || !containsAny(diagnosisLower, terms.VitaminWellnessKeywords) {
			return "", false
		}
		return "wellness", true
	}

	for group, keywords := range terms.Exclusions {
		for _, keyword := range keywords {
			if strings.Contains(itemLower, keyword) {
				return group, true
			}
		}
	}
	return "", false
}

// exclusionReason maps an exclusion group to its rejection reason code.
func exclusionReason(group, itemLower string) string {
	switch {
	case group == "cosmetic" || strings.Contains(itemLower, "whitening"):
		return domain.ReasonCosmeticProcedure
	case group == "weight_loss" || group == "wellness":
		return domain.ReasonServiceNotCovered
	default:
		return domain.ReasonExcludedCondition
	}
}

func preAuthRequired(test string, amount float64, terms *domain.PolicyTerms) bool {
	testLower := strings.ToLower(test)
	for _, proc := range terms.PreAuthProcedures {
		if strings.Contains(testLower, proc) && amount > terms.PreAuthThreshold {
			return true
		}
	}
	return false
}

// resolveCategory returns the submitted category, or detects one from the
// claim's content: dental keywords, then alternative medicine, then
// diagnostics, then pharmacy, defaulting to consultation.
func resolveCategory(in CoverageInput) string {
	if in.Category != "" {
		return in.Category
	}

	allItems := strings.ToLower(strings.Join(append(append([]string{}, in.Treatments...), in.Procedures...), " "))
	diagnosisLower := strings.ToLower(in.Diagnosis)
	medsLower := strings.ToLower(strings.Join(in.Medicines, " "))

	switch {
	case strings.Contains(allItems, "dental") || strings.Contains(diagnosisLower, "dental") ||
		containsAny(allItems, []string{"root canal", "extraction", "filling"}):
		return domain.CategoryDental
	case containsAny(medsLower, []string{"ayur", "homeo", "unani"}) ||
		containsAny(diagnosisLower, []string{"ayur", "homeo", "unani", "panchakarma"}) ||
		strings.Contains(allItems, "panchakarma"):
		return domain.CategoryAlternative
	case len(in.Tests) > 0:
		return domain.CategoryDiagnostic
	case len(in.Medicines) > 0:
		return domain.CategoryPharmacy
	default:
		return domain.CategoryConsultation
	}
}

// excludedItemAmount resolves an excluded item's bill line amount by
// matching normalized bill keys against the item text.
func excludedItemAmount(bill map[string]any, itemLower string) float64 {
	if len(bill) == 0 {
		return 0
	}
	for key, value := range bill {
		amount := toFloat(value)
		if amount <= 0 {
			continue
		}
		keyWords := strings.Split(strings.ToLower(strings.ReplaceAll(key, "_", " ")), " ")
		for _, word := range keyWords {
			if len(word) >= 4 && strings.Contains(itemLower, word) {
				return amount
			}
		}
	}
	return 0
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
	case string:
		var f float64
		fmt.Sscanf(n, "%f", &f)
		return f
	default:
		return 0
	}
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if kw != "" && strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

func appendUnique(list *[]string, value string) {
	for _, v := range *list {
		if v == value {
			return
		}
	}
	*list = append(*list, value)
}

package policy

import "github.com/opensource-health/heron/internal/domain"

// DefaultTerms returns the standard OPD policy document seeded under the
// global tenant. Amounts are in rupees, percentages are fractions.
func DefaultTerms() *domain.PolicyTerms {
	return &domain.PolicyTerms{
		Version: "2025-01",

		AnnualLimit:    50000,
		PerClaimLimit:  5000,
		MinClaimAmount: 500,

		SubLimits: map[string]float64{
			domain.CategoryConsultation: 2000,
			domain.CategoryDiagnostic:   10000,
			domain.CategoryPharmacy:     15000,
			domain.CategoryDental:       10000,
			domain.CategoryVision:       5000,
			domain.CategoryAlternative:  8000,
		},

		CopayPercent:           0.10,
		NetworkDiscountPercent: 0.20,

		WaitingPeriods: map[string]int{
			"initial":           30,
			"pre_existing":      365,
			"diabetes":          90,
			"hypertension":      90,
			"joint_replacement": 730,
		},
		ConditionKeywords: map[string][]string{
			"diabetes":          {"diabetes", "type 2 diabetes", "type 1 diabetes"},
			"hypertension":      {"hypertension", "blood pressure", "high bp"},
			"joint_replacement": {"joint replacement", "knee replacement", "hip replacement", "arthroplasty"},
		},

		Exclusions: map[string][]string{
			"cosmetic":         {"cosmetic", "whitening", "aesthetic", "beauty", "bleaching"},
			"weight_loss":      {"weight loss", "obesity", "bariatric", "diet plan", "slimming"},
			"infertility":      {"infertility", "ivf", "fertility"},
			"experimental":     {"experimental", "unproven", "clinical trial"},
			"self_inflicted":   {"self-inflicted", "self inflicted", "suicide"},
			"adventure_sports": {"adventure sports", "bungee", "skydiving", "paragliding"},
			"alcohol_drugs":    {"alcoholism", "drug abuse", "addiction", "substance"},
		},

		AlternativeMedicineKeywords: []string{
			"ayurveda", "ayurvedic", "homeopathy", "unani", "panchakarma", "yoga therapy",
		},
		VitaminWellnessKeywords: []string{
			"wellness", "prevention", "supplement", "general health", "boost",
		},
		VitaminDeficiencyKeywords: []string{
			"deficiency", "anemia", "scurvy", "rickets", "malnutrition",
		},

		NetworkHospitals: []string{
			"Apollo Hospitals",
			"Fortis Healthcare",
			"Max Healthcare",
			"Manipal Hospitals",
			"Narayana Health",
			"Medanta",
			"Columbia Asia",
			"Care Hospitals",
		},

		PreAuthProcedures: []string{"mri", "ct scan", "pet scan"},
		PreAuthThreshold:  10000,
	}
}

package fraud

import (
	"testing"
	"time"
)

func TestValidateRegistration(t *testing.T) {
	now := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		reg   string
		valid bool
	}{
		{"Allopathic", "MH/12345/2015", true},
		{"AllopathicSixDigits", "KA/123456/2008", true},
		{"AllopathicLowercase", "mh/12345/2015", true},
		{"AllopathicWhitespace", "  DL/54321/2010  ", true},
		{"UnknownStateCode", "XX/12345/2015", false},
		{"TooFewDigits", "MH/123/2015", false},
		{"Ayurveda", "AYUR/KL/1234/2012", true},
		{"Homeopathy", "HOM/WB/456/2018", true},
		{"Dental", "TN/D/7890/2019", true},
		{"FutureYear", "MH/12345/2030", false},
		{"AncientYear", "MH/12345/1949", false},
		{"Empty", "", false},
		{"Garbage", "DR-JOHN-123", false},
		{"MissingSegments", "MH/12345", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidateRegistration(tt.reg, now); got != tt.valid {
				t.Errorf("ValidateRegistration(%q) = %v, want %v", tt.reg, got, tt.valid)
			}
		})
	}
}

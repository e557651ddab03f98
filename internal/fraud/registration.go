package fraud

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Medical council registration formats. The standard (allopathic)
// format carries a state code prefix; AYUSH councils use a system
// prefix instead, and dental councils insert a /D/ segment.
var (
	regAllopathic = regexp.MustCompile(`^([A-Z]{2})/(\d{4,6})/(\d{4})$`)
	regAyurveda   = regexp.MustCompile(`^AYUR/([A-Z]{2})/(\d{3,5})/(\d{4})$`)
	regHomeopathy = regexp.MustCompile(`^HOM/([A-Z]{2})/(\d{3,5})/(\d{4})$`)
	regDental     = regexp.MustCompile(`^([A-Z]{2})/D/(\d{3,5})/(\d{4})$`)
)

var stateCodes = map[string]bool{
	"AP": true, "AR": true, "AS": true, "BR": true, "CG": true,
	"GA": true, "GJ": true, "HR": true, "HP": true, "JH": true,
	"JK": true, "KA": true, "KL": true, "MP": true, "MH": true,
	"MN": true, "ML": true, "MZ": true, "NL": true, "OD": true,
	"PB": true, "RJ": true, "SK": true, "TN": true, "TS": true,
	"TR": true, "UP": true, "UK": true, "WB": true, "AN": true,
	"CH": true, "DN": true, "DD": true, "DL": true, "LD": true,
	"PY": true,
}

// ValidateRegistration reports whether a doctor's registration number
// matches a known medical council format with a plausible year.
func ValidateRegistration(reg string, now time.Time) bool {
	reg = strings.ToUpper(strings.TrimSpace(reg))
	if reg == "" {
		return false
	}

	if m := regAllopathic.FindStringSubmatch(reg); m != nil {
		return stateCodes[m[1]] && plausibleYear(m[3], now)
	}
	if m := regAyurveda.FindStringSubmatch(reg); m != nil {
		return plausibleYear(m[3], now)
	}
	if m := regHomeopathy.FindStringSubmatch(reg); m != nil {
		return plausibleYear(m[3], now)
	}
	if m := regDental.FindStringSubmatch(reg); m != nil {
		return plausibleYear(m[3], now)
	}
	return false
}

func plausibleYear(s string, now time.Time) bool {
	year, err := strconv.Atoi(s)
	if err != nil {
		return false
	}
	return year >= 1950 && year <= now.Year()
}

package fraud

import (
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// Diagnoses containing these terms justify weekend treatment.
var emergencyKeywords = []string{"emergency", "accident", "acute", "severe", "critical"}

// DatesConsistent reports whether the prescription, bill and treatment
// dates fall within a week of each other. Fewer than two dates is
// trivially consistent; an unparseable date is not.
func DatesConsistent(dates ...string) bool {
	var parsed []time.Time
	for _, d := range dates {
		if strings.TrimSpace(d) == "" {
			continue
		}
		t, err := time.Parse(dateLayout, strings.TrimSpace(d))
		if err != nil {
			return false
		}
		parsed = append(parsed, t)
	}

	if len(parsed) < 2 {
		return true
	}

	earliest, latest := parsed[0], parsed[0]
	for _, t := range parsed[1:] {
		if t.Before(earliest) {
			earliest = t
		}
		if t.After(latest) {
			latest = t
		}
	}
	return latest.Sub(earliest) <= 7*24*time.Hour
}

// WeekendNonEmergency reports whether the treatment date falls on a
// weekend and the diagnosis carries no emergency indication.
func WeekendNonEmergency(treatmentDate, diagnosis string) bool {
	t, err := time.Parse(dateLayout, strings.TrimSpace(treatmentDate))
	if err != nil {
		return false
	}
	if wd := t.Weekday(); wd != time.Saturday && wd != time.Sunday {
		return false
	}

	lower := strings.ToLower(diagnosis)
	for _, kw := range emergencyKeywords {
		if strings.Contains(lower, kw) {
			return false
		}
	}
	return true
}

// CountRoundAmounts counts bill lines that are non-zero exact
// multiples of 500.
func CountRoundAmounts(amounts ...float64) int64 {
	var n int64
	for _, a := range amounts {
		if a > 0 && int64(a)%500 == 0 && a == float64(int64(a)) {
			n++
		}
	}
	return n
}

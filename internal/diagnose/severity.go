package diagnose

import "strings"

// Severity is the diagnosed severity tier of a disease.
type Severity string

const (
	SeverityNone     Severity = "none"
	SeverityMild     Severity = "mild"
	SeverityModerate Severity = "moderate"
	SeveritySevere   Severity = "severe"
)

// severityByType maps disease-type substrings to a base severity. Matched
// against the lower-cased raw class label; first match wins.
var severityByType = []struct {
	token    string
	severity Severity
}{
	{"healthy", SeverityNone},
	{"rust", SeverityModerate},
	{"blight", SeveritySevere},
	{"spot", SeverityMild},
	{"leaf_curl", SeverityModerate},
	{"mosaic", SeverityModerate},
	{"mold", SeverityModerate},
}

func (s Severity) rank() int {
	switch s {
	case SeverityMild:
		return 1
	case SeverityModerate:
		return 2
	case SeveritySevere:
		return 3
	default:
		return 0
	}
}

// BaseSeverity derives the starting severity tier from the raw class label.
// Unrecognized diseases default to mild.
func BaseSeverity(rawClass string) Severity {
	lower := strings.ToLower(rawClass)
	for _, m := range severityByType {
		if strings.Contains(lower, m.token) {
			return m.severity
		}
	}
	return SeverityMild
}

// AdjustSeverity applies the confidence heuristic to a base severity: low
// confidence (< 0.6) downgrades one step toward mild, very high confidence
// (> 0.9) upgrades one step toward severe, and anything between leaves the
// base unchanged. This is a heuristic, not a calibrated rule; healthy (none)
// is never adjusted.
func AdjustSeverity(base Severity, confidence float32) Severity {
	if base == SeverityNone {
		return base
	}
	switch {
	case confidence < 0.6:
		switch base {
		case SeveritySevere:
			return SeverityModerate
		case SeverityModerate:
			return SeverityMild
		}
	case confidence > 0.9:
		switch base {
		case SeverityMild:
			return SeverityModerate
		case SeverityModerate:
			return SeveritySevere
		}
	}
	return base
}

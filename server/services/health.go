package services

import "strings"

// Health statuses reported for a normalized submission.
const (
	HealthOK   = "OK"
	HealthWarn = "WARN"
	HealthFail = "FAIL"
)

// ClassifyHealth maps a raw health string onto the three known statuses.
// Matching is case insensitive and unknown values classify as OK, so a
// new status added on the reporting side never blocks a finalization.
func ClassifyHealth(raw string) string {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case HealthFail:
		return HealthFail
	case HealthWarn:
		return HealthWarn
	default:
		return HealthOK
	}
}

// HealthFromCounts extracts and classifies the health_status entry of a
// normalizer's counts map. A missing or non-string entry classifies as OK.
func HealthFromCounts(counts map[string]interface{}) string {
	if counts == nil {
		return HealthOK
	}
	raw, _ := counts["health_status"].(string)
	return ClassifyHealth(raw)
}

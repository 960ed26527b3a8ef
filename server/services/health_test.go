package services

import "testing"

func TestClassifyHealth(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"OK", HealthOK},
		{"WARN", HealthWarn},
		{"FAIL", HealthFail},
		{"fail", HealthFail},
		{"  warn  ", HealthWarn},
		{"", HealthOK},
		// Unknown statuses classify as OK so new reporting values
		// never block a finalization.
		{"DEGRADED", HealthOK},
		{"CRITICAL", HealthOK},
	}

	for _, tt := range tests {
		if got := ClassifyHealth(tt.raw); got != tt.want {
			t.Errorf("ClassifyHealth(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestHealthFromCounts(t *testing.T) {
	if got := HealthFromCounts(nil); got != HealthOK {
		t.Errorf("HealthFromCounts(nil) = %q, want OK", got)
	}
	if got := HealthFromCounts(map[string]interface{}{}); got != HealthOK {
		t.Errorf("HealthFromCounts(empty) = %q, want OK", got)
	}
	if got := HealthFromCounts(map[string]interface{}{"health_status": "WARN"}); got != HealthWarn {
		t.Errorf("HealthFromCounts(WARN) = %q, want WARN", got)
	}
	if got := HealthFromCounts(map[string]interface{}{"health_status": 42}); got != HealthOK {
		t.Errorf("HealthFromCounts(non-string) = %q, want OK", got)
	}
}

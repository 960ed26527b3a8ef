package services

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestNotificationService_Disabled(t *testing.T) {
	svc := NewNotificationServiceWithLogger("", time.Second, testLogger())
	if svc.Enabled() {
		t.Error("service without webhook URL should be disabled")
	}
	// Must be a no-op, not a panic or a hang.
	svc.Send(context.Background(), NotificationCard{Title: "t"})
}

func TestNotificationService_SendsAdaptiveCard(t *testing.T) {
	var received map[string]interface{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &received)
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	svc := NewNotificationServiceWithLogger(ts.URL, time.Second, testLogger())
	svc.Send(context.Background(), NotificationCard{
		Title:    "Formulario REG.CKU.014 finalizado",
		Message:  "Estado de salud: OK",
		Severity: HealthOK,
		Facts: []NotificationFact{
			{Title: "Planta", Value: "Teno"},
			{Title: "Vacío", Value: ""},
		},
	})

	if received == nil {
		t.Fatal("webhook should have received a card")
	}
	raw, _ := json.Marshal(received)
	text := string(raw)
	if !strings.Contains(text, "AdaptiveCard") {
		t.Error("payload should be an Adaptive Card")
	}
	if !strings.Contains(text, "Teno") {
		t.Error("non-empty facts should be included")
	}
	if strings.Contains(text, "Vacío") {
		t.Error("facts with empty values should be dropped")
	}
	if !strings.Contains(text, "✅") {
		t.Error("OK severity should carry the check mark emoji")
	}
}

// TestNotificationService_SwallowsFailures verifies delivery problems
// never surface to the caller.
func TestNotificationService_SwallowsFailures(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer ts.Close()

	svc := NewNotificationServiceWithLogger(ts.URL, time.Second, testLogger())
	svc.Send(context.Background(), NotificationCard{Title: "t", Severity: HealthFail})

	// Unreachable endpoint too.
	ts.Close()
	svc.Send(context.Background(), NotificationCard{Title: "t", Severity: HealthFail})
}

func TestBuildAdaptiveCard_Truncation(t *testing.T) {
	card := buildAdaptiveCard(NotificationCard{
		Title:    strings.Repeat("T", 500),
		Message:  strings.Repeat("M", 3000),
		Severity: HealthWarn,
		Facts: []NotificationFact{
			{Title: "Detalle", Value: strings.Repeat("F", 2000)},
		},
	})

	raw, err := json.Marshal(card)
	if err != nil {
		t.Fatalf("marshal card: %v", err)
	}
	text := string(raw)

	if !strings.Contains(text, "TRUNCATED") {
		t.Error("oversized blocks should carry the truncation marker")
	}
	if strings.Contains(text, strings.Repeat("M", 1600)) {
		t.Error("message should be truncated to the channel limit")
	}
	if strings.Contains(text, strings.Repeat("F", 900)) {
		t.Error("fact values should be truncated to the channel limit")
	}
	if !strings.Contains(text, "⚠") {
		t.Error("WARN severity should carry the warning emoji")
	}
}

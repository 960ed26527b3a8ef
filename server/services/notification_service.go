package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"ckuserver/internal/jsonutil"
)

// Truncation limits for outgoing Teams cards.
const (
	notifyTitleMaxLen   = 200
	notifyMessageMaxLen = 1500
	notifyFactMaxLen    = 800
)

// NotificationFact is one key/value row of an Adaptive Card FactSet.
type NotificationFact struct {
	Title string `json:"title"`
	Value string `json:"value"`
}

// NotificationCard describes one message posted to the Teams channel.
type NotificationCard struct {
	Title   string
	Message string
	Facts   []NotificationFact
	// Severity picks the status emoji: OK, WARN or FAIL.
	Severity string
}

// NotificationService posts Adaptive Cards to a Teams incoming webhook.
// Delivery is strictly best effort, every failure is logged and swallowed.
type NotificationService struct {
	webhookURL string
	client     *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// NewNotificationService creates the service. An empty webhook URL turns
// the service into a no-op.
func NewNotificationService(webhookURL string, timeout time.Duration) *NotificationService {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &NotificationService{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(1), 4),
		logger:     slog.Default(),
	}
}

// NewNotificationServiceWithLogger creates the service with an explicit logger.
func NewNotificationServiceWithLogger(webhookURL string, timeout time.Duration, logger *slog.Logger) *NotificationService {
	svc := NewNotificationService(webhookURL, timeout)
	if logger != nil {
		svc.logger = logger
	}
	return svc
}

// Enabled reports whether a webhook URL is configured.
func (s *NotificationService) Enabled() bool {
	return s.webhookURL != ""
}

func severityEmoji(severity string) string {
	switch ClassifyHealth(severity) {
	case HealthFail:
		return "❌"
	case HealthWarn:
		return "⚠️"
	default:
		return "✅"
	}
}

// buildAdaptiveCard assembles the webhook body. Empty facts are dropped
// and every text block is truncated to the channel limits.
func buildAdaptiveCard(card NotificationCard) map[string]interface{} {
	title := jsonutil.CapString(fmt.Sprintf("%s %s", severityEmoji(card.Severity), card.Title), notifyTitleMaxLen)

	body := []map[string]interface{}{
		{
			"type":   "TextBlock",
			"size":   "Medium",
			"weight": "Bolder",
			"text":   title,
			"wrap":   true,
		},
	}
	if card.Message != "" {
		body = append(body, map[string]interface{}{
			"type": "TextBlock",
			"text": jsonutil.CapString(card.Message, notifyMessageMaxLen),
			"wrap": true,
		})
	}

	facts := make([]map[string]string, 0, len(card.Facts))
	for _, f := range card.Facts {
		if f.Title == "" || f.Value == "" {
			continue
		}
		facts = append(facts, map[string]string{
			"title": f.Title,
			"value": jsonutil.CapString(f.Value, notifyFactMaxLen),
		})
	}
	if len(facts) > 0 {
		body = append(body, map[string]interface{}{
			"type":  "FactSet",
			"facts": facts,
		})
	}

	return map[string]interface{}{
		"type": "message",
		"attachments": []map[string]interface{}{
			{
				"contentType": "application/vnd.microsoft.card.adaptive",
				"content": map[string]interface{}{
					"$schema": "http://adaptivecards.io/schemas/adaptive-card.json",
					"type":    "AdaptiveCard",
					"version": "1.4",
					"body":    body,
				},
			},
		},
	}
}

// Send posts the card to the webhook. Never returns an error, a failed
// delivery is logged and the pipeline continues.
func (s *NotificationService) Send(ctx context.Context, card NotificationCard) {
	if !s.Enabled() {
		return
	}
	if err := s.limiter.Wait(ctx); err != nil {
		s.logger.Warn("notification dropped, rate limiter wait aborted", "error", err)
		return
	}

	payload, err := json.Marshal(buildAdaptiveCard(card))
	if err != nil {
		s.logger.Warn("notification dropped, card marshal failed", "error", err)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(payload))
	if err != nil {
		s.logger.Warn("notification dropped, request build failed", "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Warn("notification delivery failed", "error", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		s.logger.Warn("notification rejected by webhook", "status_code", resp.StatusCode)
		return
	}

	s.logger.Debug("notification delivered", "title", card.Title)
}

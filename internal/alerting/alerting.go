package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/bher20/ebillmanager/pkg/logger"
	"github.com/shopspring/decimal"
)

// AlertConfig holds alerting configuration.
type AlertConfig struct {
	// WebhookURL is a generic webhook endpoint (Slack, Discord, or custom)
	WebhookURL string
	// WebhookType determines the payload format: "slack", "discord", or "generic"
	WebhookType string
	Enabled     bool
	// MinFailuresBeforeAlert is the threshold before sending alerts
	MinFailuresBeforeAlert int
	Timeout                time.Duration
}

// NewAlertConfig fills in defaults and detects the webhook type from the URL when unset.
func NewAlertConfig(url, webhookType string, minFailures int) AlertConfig {
	cfg := AlertConfig{
		WebhookURL:             url,
		WebhookType:            strings.ToLower(strings.TrimSpace(webhookType)),
		Enabled:                url != "",
		MinFailuresBeforeAlert: minFailures,
		Timeout:                10 * time.Second,
	}
	if cfg.MinFailuresBeforeAlert <= 0 {
		cfg.MinFailuresBeforeAlert = 1
	}
	if cfg.WebhookType == "" {
		switch {
		case strings.Contains(url, "slack.com"):
			cfg.WebhookType = "slack"
		case strings.Contains(url, "discord.com"):
			cfg.WebhookType = "discord"
		default:
			cfg.WebhookType = "generic"
		}
	}
	return cfg
}

// Alerter sends alerts to configured webhooks.
type Alerter struct {
	cfg    AlertConfig
	client *http.Client
	log    *logger.Logger
}

func NewAlerter(cfg AlertConfig, log *logger.Logger) *Alerter {
	if log == nil {
		log = logger.Nop()
	}
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		log:    log,
	}
}

// DigestAlert summarizes a billing digest run whose per-customer aggregation partly failed.
type DigestAlert struct {
	JobName      string
	TotalCount   int
	SuccessCount int
	FailedCount  int
	Duration     time.Duration
	Failures     []CustomerFailure
	Outstanding  decimal.Decimal
	Overdue      decimal.Decimal
	Timestamp    time.Time
}

type CustomerFailure struct {
	CustomerID uint   `json:"customer_id"`
	Name       string `json:"customer_name"`
	Error      string `json:"error"`
}

// SendDigestAlert posts the alert when failures reach the configured threshold.
func (a *Alerter) SendDigestAlert(ctx context.Context, alert DigestAlert) error {
	if !a.cfg.Enabled {
		a.log.Debug(ctx, "alerting: alerts disabled, skipping")
		return nil
	}
	if alert.FailedCount < a.cfg.MinFailuresBeforeAlert {
		a.log.Debug(ctx, fmt.Sprintf("alerting: %d failures below threshold (%d), skipping",
			alert.FailedCount, a.cfg.MinFailuresBeforeAlert))
		return nil
	}

	var (
		payload []byte
		err     error
	)
	switch a.cfg.WebhookType {
	case "slack":
		payload, err = buildSlackPayload(alert)
	case "discord":
		payload, err = buildDiscordPayload(alert)
	default:
		payload, err = buildGenericPayload(alert)
	}
	if err != nil {
		return fmt.Errorf("build payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	a.log.Info(ctx, fmt.Sprintf("alerting: sent digest alert for %d failed customers", alert.FailedCount))
	return nil
}

func failureLines(alert DigestAlert, bold string) string {
	var b strings.Builder
	for _, f := range alert.Failures {
		fmt.Fprintf(&b, "• %s%s (#%d)%s: %s\n", bold, f.Name, f.CustomerID, bold, f.Error)
	}
	return b.String()
}

func buildSlackPayload(alert DigestAlert) ([]byte, error) {
	emoji := ":warning:"
	if alert.FailedCount == alert.TotalCount {
		emoji = ":x:"
	}

	payload := map[string]any{
		"blocks": []map[string]any{
			{
				"type": "header",
				"text": map[string]string{
					"type": "plain_text",
					"text": fmt.Sprintf("%s Billing Digest Alert: %s", emoji, alert.JobName),
				},
			},
			{
				"type": "section",
				"fields": []map[string]string{
					{"type": "mrkdwn", "text": fmt.Sprintf("*Status:*\n%d/%d customers failed", alert.FailedCount, alert.TotalCount)},
					{"type": "mrkdwn", "text": fmt.Sprintf("*Duration:*\n%s", alert.Duration.Round(time.Millisecond))},
					{"type": "mrkdwn", "text": fmt.Sprintf("*Outstanding:*\n$%s", alert.Outstanding.StringFixed(2))},
					{"type": "mrkdwn", "text": fmt.Sprintf("*Overdue:*\n$%s", alert.Overdue.StringFixed(2))},
				},
			},
			{
				"type": "section",
				"text": map[string]string{
					"type": "mrkdwn",
					"text": "*Failed Customers:*\n" + failureLines(alert, "*"),
				},
			},
		},
	}
	return json.Marshal(payload)
}

func buildDiscordPayload(alert DigestAlert) ([]byte, error) {
	color := 16776960 // Yellow
	if alert.FailedCount == alert.TotalCount {
		color = 16711680 // Red
	}

	payload := map[string]any{
		"embeds": []map[string]any{
			{
				"title":       fmt.Sprintf("Billing Digest Alert: %s", alert.JobName),
				"description": fmt.Sprintf("%d/%d customers failed", alert.FailedCount, alert.TotalCount),
				"color":       color,
				"fields": []map[string]any{
					{"name": "Success", "value": fmt.Sprintf("%d", alert.SuccessCount), "inline": true},
					{"name": "Failed", "value": fmt.Sprintf("%d", alert.FailedCount), "inline": true},
					{"name": "Duration", "value": alert.Duration.Round(time.Millisecond).String(), "inline": true},
					{"name": "Failed Customers", "value": failureLines(alert, "**"), "inline": false},
				},
				"timestamp": alert.Timestamp.Format(time.RFC3339),
			},
		},
	}
	return json.Marshal(payload)
}

func buildGenericPayload(alert DigestAlert) ([]byte, error) {
	payload := map[string]any{
		"alert_type":    "billing_digest_failure",
		"job_name":      alert.JobName,
		"total_count":   alert.TotalCount,
		"success_count": alert.SuccessCount,
		"failed_count":  alert.FailedCount,
		"duration_ms":   alert.Duration.Milliseconds(),
		"outstanding":   alert.Outstanding.StringFixed(2),
		"overdue":       alert.Overdue.StringFixed(2),
		"timestamp":     alert.Timestamp.Format(time.RFC3339),
		"failures":      alert.Failures,
	}
	return json.Marshal(payload)
}

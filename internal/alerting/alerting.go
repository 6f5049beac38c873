package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/vinoth12345678910/Smart-Bill-Predictor/internal/metrics"
)

// Config holds alerting configuration.
type Config struct {
	// WebhookURL is a generic webhook endpoint (Slack, Discord, or custom)
	WebhookURL string
	// WebhookType determines the payload format: "slack", "discord", or "generic"
	WebhookType string
	// Enabled controls whether alerts are sent
	Enabled bool
	// MinFailuresBeforeAlert is the threshold before sending alerts
	MinFailuresBeforeAlert int
	// Timeout for HTTP requests
	Timeout time.Duration
}

// NewConfig builds a Config for the given webhook URL, auto-detecting the
// payload format from the URL. An empty URL disables alerting.
func NewConfig(webhookURL string) Config {
	cfg := Config{
		WebhookURL:             webhookURL,
		Enabled:                webhookURL != "",
		MinFailuresBeforeAlert: 1,
		Timeout:                10 * time.Second,
	}

	if strings.Contains(webhookURL, "slack.com") {
		cfg.WebhookType = "slack"
	} else if strings.Contains(webhookURL, "discord.com") {
		cfg.WebhookType = "discord"
	} else {
		cfg.WebhookType = "generic"
	}
	return cfg
}

// Alerter sends alerts to the configured webhook.
type Alerter struct {
	cfg    Config
	client *http.Client
	log    zerolog.Logger
}

// NewAlerter creates a new alerter instance.
func NewAlerter(cfg Config, logger zerolog.Logger) *Alerter {
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		log:    logger.With().Str("component", "alerting").Logger(),
	}
}

// JobAlert describes a background job run that had failures.
type JobAlert struct {
	JobName       string
	TotalSources  int
	SuccessCount  int
	FailedCount   int
	Duration      time.Duration
	FailedDetails []SourceFailure
	Timestamp     time.Time
}

// SourceFailure contains details about a failed tariff source.
type SourceFailure struct {
	Source string `json:"source"`
	Error  string `json:"error"`
}

// SendJobAlert sends an alert about job failures. Below-threshold and
// disabled alerts are skipped, not errors.
func (a *Alerter) SendJobAlert(ctx context.Context, alert JobAlert) error {
	if !a.cfg.Enabled {
		a.log.Debug().Msg("alerts disabled, skipping")
		metrics.AlertsTotal.WithLabelValues("skipped").Inc()
		return nil
	}

	if alert.FailedCount < a.cfg.MinFailuresBeforeAlert {
		a.log.Debug().
			Int("failures", alert.FailedCount).
			Int("threshold", a.cfg.MinFailuresBeforeAlert).
			Msg("failures below threshold, skipping alert")
		metrics.AlertsTotal.WithLabelValues("skipped").Inc()
		return nil
	}

	var payload []byte
	var err error

	switch a.cfg.WebhookType {
	case "slack":
		payload, err = a.buildSlackPayload(alert)
	case "discord":
		payload, err = a.buildDiscordPayload(alert)
	default:
		payload, err = a.buildGenericPayload(alert)
	}
	if err != nil {
		metrics.AlertsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("build payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", a.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		metrics.AlertsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		metrics.AlertsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		metrics.AlertsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	metrics.AlertsTotal.WithLabelValues("sent").Inc()
	a.log.Info().Int("failed_sources", alert.FailedCount).Msg("alert sent")
	return nil
}

func (a *Alerter) buildSlackPayload(alert JobAlert) ([]byte, error) {
	var failedList strings.Builder
	for _, f := range alert.FailedDetails {
		failedList.WriteString(fmt.Sprintf("• *%s*: %s\n", f.Source, f.Error))
	}

	emoji := ":warning:"
	if alert.FailedCount == alert.TotalSources {
		emoji = ":x:"
	}

	payload := map[string]interface{}{
		"blocks": []map[string]interface{}{
			{
				"type": "header",
				"text": map[string]string{
					"type": "plain_text",
					"text": fmt.Sprintf("%s Job Alert: %s", emoji, alert.JobName),
				},
			},
			{
				"type": "section",
				"fields": []map[string]string{
					{"type": "mrkdwn", "text": fmt.Sprintf("*Status:*\n%d/%d failed", alert.FailedCount, alert.TotalSources)},
					{"type": "mrkdwn", "text": fmt.Sprintf("*Duration:*\n%s", alert.Duration.Round(time.Millisecond))},
					{"type": "mrkdwn", "text": fmt.Sprintf("*Success:*\n%d", alert.SuccessCount)},
					{"type": "mrkdwn", "text": fmt.Sprintf("*Timestamp:*\n%s", alert.Timestamp.Format(time.RFC3339))},
				},
			},
			{
				"type": "section",
				"text": map[string]string{
					"type": "mrkdwn",
					"text": fmt.Sprintf("*Failed Sources:*\n%s", failedList.String()),
				},
			},
		},
	}

	return json.Marshal(payload)
}

func (a *Alerter) buildDiscordPayload(alert JobAlert) ([]byte, error) {
	var failedList strings.Builder
	for _, f := range alert.FailedDetails {
		failedList.WriteString(fmt.Sprintf("• **%s**: %s\n", f.Source, f.Error))
	}

	color := 16776960 // Yellow
	if alert.FailedCount == alert.TotalSources {
		color = 16711680 // Red
	}

	payload := map[string]interface{}{
		"embeds": []map[string]interface{}{
			{
				"title":       fmt.Sprintf("Job Alert: %s", alert.JobName),
				"description": fmt.Sprintf("%d/%d sources failed", alert.FailedCount, alert.TotalSources),
				"color":       color,
				"fields": []map[string]interface{}{
					{"name": "Success", "value": fmt.Sprintf("%d", alert.SuccessCount), "inline": true},
					{"name": "Failed", "value": fmt.Sprintf("%d", alert.FailedCount), "inline": true},
					{"name": "Duration", "value": alert.Duration.Round(time.Millisecond).String(), "inline": true},
					{"name": "Failed Sources", "value": failedList.String(), "inline": false},
				},
				"timestamp": alert.Timestamp.Format(time.RFC3339),
			},
		},
	}

	return json.Marshal(payload)
}

func (a *Alerter) buildGenericPayload(alert JobAlert) ([]byte, error) {
	payload := map[string]interface{}{
		"alert_type":     "job_failure",
		"job_name":       alert.JobName,
		"total_sources":  alert.TotalSources,
		"success_count":  alert.SuccessCount,
		"failed_count":   alert.FailedCount,
		"duration_ms":    alert.Duration.Milliseconds(),
		"timestamp":      alert.Timestamp.Format(time.RFC3339),
		"failed_details": alert.FailedDetails,
	}

	return json.Marshal(payload)
}

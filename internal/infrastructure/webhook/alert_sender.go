package webhook

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"github.com/deskline/queue-api/internal/domain/retry"
	"github.com/deskline/queue-api/internal/domain/sla"
	"github.com/deskline/queue-api/internal/utils/platformerrors"
)

const alertEvent = "conversation.sla_breached"

// AlertPayload is the JSON body posted for an SLA breach.
type AlertPayload struct {
	Event          string    `json:"event"`
	OrganizationID string    `json:"organization_id"`
	ConversationID string    `json:"conversation_id"`
	AgentID        string    `json:"agent_id,omitempty"`
	Priority       int       `json:"priority"`
	AgeSeconds     int64     `json:"age_seconds"`
	ThresholdSecs  int64     `json:"threshold_seconds"`
	DetectedAt     time.Time `json:"detected_at"`
}

// AlertSender posts SLA alerts to a fixed URL.
type AlertSender struct {
	httpClient *resty.Client
	url        string
	policy     retry.Policy
	log        zerolog.Logger
}

var _ sla.Sender = (*AlertSender)(nil)

// NewAlertSender creates a sender for url.
func NewAlertSender(url string, log zerolog.Logger) *AlertSender {
	return &AlertSender{
		httpClient: resty.New().
			SetTimeout(10*time.Second).
			SetHeader("Content-Type", "application/json").
			SetHeader("User-Agent", "deskline-queue-api/1.0"),
		url:    url,
		policy: retry.DeliveryPolicy(),
		log:    log.With().Str("component", "webhook").Logger(),
	}
}

// Send delivers alert, retrying transient failures.
func (s *AlertSender) Send(ctx context.Context, alert sla.Alert) error {
	payload := AlertPayload{
		Event:          alertEvent,
		OrganizationID: alert.OrganizationID,
		ConversationID: alert.ConversationID,
		AgentID:        alert.AgentID,
		Priority:       alert.Priority,
		AgeSeconds:     int64(alert.Age.Seconds()),
		ThresholdSecs:  int64(alert.Threshold.Seconds()),
		DetectedAt:     alert.DetectedAt,
	}

	return retry.Do(ctx, s.policy, func(ctx context.Context, attempt int) error {
		resp, err := s.httpClient.R().
			SetContext(ctx).
			SetHeader("X-Deskline-Event", alertEvent).
			SetHeader("X-Deskline-Organization-ID", alert.OrganizationID).
			SetBody(payload).
			Post(s.url)
		if err != nil {
			s.log.Warn().Err(err).Str("url", s.url).Int("attempt", attempt+1).Msg("webhook delivery failed")
			return platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeExternal,
				"webhook unreachable", err, "webhook-send")
		}
		if resp.IsError() {
			errType := platformerrors.ErrorTypeValidation
			if resp.StatusCode() >= 500 || resp.StatusCode() == 429 {
				errType = platformerrors.ErrorTypeExternal
			}
			s.log.Warn().Int("status", resp.StatusCode()).Str("url", s.url).Int("attempt", attempt+1).Msg("webhook delivery failed")
			return platformerrors.NewErrorWithContext(ctx, platformerrors.LayerInfrastructure, errType,
				"webhook rejected alert", nil, "webhook-status", map[string]any{"status": resp.StatusCode()})
		}

		s.log.Info().
			Str("conversation_id", alert.ConversationID).
			Int("status", resp.StatusCode()).
			Msg("sla alert delivered")
		return nil
	})
}

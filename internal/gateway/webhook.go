package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/locate-service/internal/config"
	"github.com/spec-kit/locate-service/internal/domain"
)

// WebhookGateway posts every notification as JSON to a configured
// endpoint, which bridges to the real email/SMS/push providers.
type WebhookGateway struct {
	url    string
	from   string
	client *http.Client
	logger *zap.Logger
}

// NewWebhookGateway builds the gateway from notification config.
func NewWebhookGateway(cfg config.NotificationConfig, logger *zap.Logger) *WebhookGateway {
	return &WebhookGateway{
		url:    cfg.WebhookURL,
		from:   cfg.EmailFrom,
		client: &http.Client{},
		logger: logger,
	}
}

type webhookPayload struct {
	Channel   string `json:"channel"`
	Recipient string `json:"recipient"`
	From      string `json:"from,omitempty"`
	Subject   string `json:"subject"`
	Body      string `json:"body"`
	Priority  string `json:"priority"`
	TicketID  string `json:"ticket_id"`
	AlertID   string `json:"alert_id"`
	SentAt    string `json:"sent_at"`
}

// Send implements Gateway.
func (g *WebhookGateway) Send(ctx context.Context, channel domain.Channel, recipient string, msg Message) (string, error) {
	if g.url == "" {
		return "", fmt.Errorf("webhook gateway not configured")
	}
	payload, err := json.Marshal(webhookPayload{
		Channel:   string(channel),
		Recipient: recipient,
		From:      g.from,
		Subject:   msg.Subject,
		Body:      msg.Body,
		Priority:  string(msg.Priority),
		TicketID:  msg.TicketID,
		AlertID:   msg.AlertID,
		SentAt:    time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("webhook returned %d", resp.StatusCode)
	}

	deliveryID := uuid.NewString()
	g.logger.Debug("webhook notification sent",
		zap.String("channel", string(channel)),
		zap.String("delivery_id", deliveryID),
	)
	return deliveryID, nil
}

// LogGateway writes notifications to the log instead of sending them.
// Used in development and as the fallback when no webhook is configured.
type LogGateway struct {
	logger *zap.Logger
}

// NewLogGateway builds the gateway.
func NewLogGateway(logger *zap.Logger) *LogGateway {
	return &LogGateway{logger: logger}
}

// Send implements Gateway.
func (g *LogGateway) Send(_ context.Context, channel domain.Channel, recipient string, msg Message) (string, error) {
	deliveryID := uuid.NewString()
	g.logger.Info("notification",
		zap.String("channel", string(channel)),
		zap.String("recipient", recipient),
		zap.String("subject", msg.Subject),
		zap.String("priority", string(msg.Priority)),
		zap.String("ticket_id", msg.TicketID),
		zap.String("delivery_id", deliveryID),
	)
	return deliveryID, nil
}

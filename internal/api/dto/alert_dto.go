package dto

import (
	"time"

	"github.com/spec-kit/locate-service/internal/domain"
)

// AlertView is one dispatch record.
type AlertView struct {
	ID        string               `json:"id"`
	TicketID  string               `json:"ticket_id"`
	Type      domain.AlertType     `json:"type"`
	Channel   domain.Channel       `json:"channel"`
	Priority  domain.AlertPriority `json:"priority"`
	Message   string               `json:"message"`
	Status    domain.AlertStatus   `json:"status"`
	Attempt   int                  `json:"attempt"`
	SentAt    *time.Time           `json:"sent_at,omitempty"`
	ReadAt    *time.Time           `json:"read_at,omitempty"`
	CreatedAt time.Time            `json:"created_at"`
}

// AcknowledgementView is one open or closed receipt chain.
type AcknowledgementView struct {
	ID                 string           `json:"id"`
	AlertID            string           `json:"alert_id"`
	TicketID           string           `json:"ticket_id"`
	Status             domain.AckStatus `json:"status"`
	Deadline           time.Time        `json:"deadline"`
	AcknowledgedAt     *time.Time       `json:"acknowledged_at,omitempty"`
	EscalatedAt        *time.Time       `json:"escalated_at,omitempty"`
	EscalationTargetID *string          `json:"escalation_target_id,omitempty"`
}

// AuditPackView is a pack's metadata; the payload downloads separately.
type AuditPackView struct {
	ID             string         `json:"id"`
	TicketID       string         `json:"ticket_id"`
	RangeFrom      time.Time      `json:"range_from"`
	RangeTo        time.Time      `json:"range_to"`
	GeneratedAt    time.Time      `json:"generated_at"`
	RetentionUntil time.Time      `json:"retention_until"`
	SHA256         string         `json:"sha256"`
	Manifest       map[string]any `json:"manifest"`
}

// GenerateAuditPackRequest payload.
type GenerateAuditPackRequest struct {
	RangeFrom time.Time `json:"range_from"`
	RangeTo   time.Time `json:"range_to"`
}

package domain

import "time"

// AlertType enumerates the trigger classes the scanner emits.
type AlertType string

const (
	AlertDeadline48H        AlertType = "DEADLINE_48H"
	AlertDeadline24H        AlertType = "DEADLINE_24H"
	AlertDeadlineToday      AlertType = "DEADLINE_TODAY"
	AlertResponseOverdue    AlertType = "RESPONSE_OVERDUE"
	AlertUpdateByApproach   AlertType = "UPDATE_BY_APPROACHING"
	AlertUpdateByToday      AlertType = "UPDATE_BY_TODAY"
	AlertExpiryApproach     AlertType = "EXPIRY_APPROACHING"
	AlertExpiredToday       AlertType = "EXPIRED_TODAY"
	AlertConflictDetected   AlertType = "CONFLICT_DETECTED"
	AlertEmergency          AlertType = "EMERGENCY"
	AlertDeliveryFailure    AlertType = "DELIVERY_FAILURE"
	AlertEscalationOverflow AlertType = "ESCALATION"
)

// AlwaysAlert reports whether the type bypasses quiet-mode suppression.
func (t AlertType) AlwaysAlert() bool {
	switch t {
	case AlertConflictDetected, AlertEmergency, AlertExpiredToday, AlertEscalationOverflow:
		return true
	}
	return false
}

// AlertPriority orders dispatch urgency.
type AlertPriority string

const (
	PriorityLow      AlertPriority = "LOW"
	PriorityNormal   AlertPriority = "NORMAL"
	PriorityHigh     AlertPriority = "HIGH"
	PriorityCritical AlertPriority = "CRITICAL"
)

// Raise returns the priority one level up, capped at CRITICAL.
func (p AlertPriority) Raise() AlertPriority {
	switch p {
	case PriorityLow:
		return PriorityNormal
	case PriorityNormal:
		return PriorityHigh
	default:
		return PriorityCritical
	}
}

// RequiresAck reports whether a human must explicitly confirm receipt.
func (t AlertType) RequiresAck(priority AlertPriority) bool {
	switch t {
	case AlertConflictDetected, AlertEmergency:
		return true
	case AlertResponseOverdue:
		return priority == PriorityCritical
	}
	// ESCALATION alerts never require an ack: the hop is terminal and
	// must not open a fresh chain.
	return false
}

// Channel enumerates delivery channels.
type Channel string

const (
	ChannelEmail Channel = "EMAIL"
	ChannelSMS   Channel = "SMS"
	ChannelPush  Channel = "PUSH"
	ChannelInApp Channel = "IN_APP"
)

// AllChannels lists every supported channel.
var AllChannels = []Channel{ChannelEmail, ChannelSMS, ChannelPush, ChannelInApp}

// AlertStatus tracks one dispatch attempt's progress.
type AlertStatus string

const (
	AlertPending   AlertStatus = "PENDING"
	AlertSent      AlertStatus = "SENT"
	AlertDelivered AlertStatus = "DELIVERED"
	AlertRead      AlertStatus = "READ"
	AlertFailed    AlertStatus = "FAILED"
)

// TicketAlert is one dispatch record per (ticket, alert type, channel,
// attempt). Rows are append-only: a retry produces a new row with the
// attempt counter bumped, never an overwrite, because these rows are the
// audit trail.
type TicketAlert struct {
	ID            string
	OrgID         string
	TicketID      string
	Type          AlertType
	Channel       Channel
	SubscriberID  string
	Attempt       int
	Priority      AlertPriority
	Message       string
	Status        AlertStatus
	DeliveryID    *string
	SentAt        *time.Time
	DeliveredAt   *time.Time
	ReadAt        *time.Time
	FailedAt      *time.Time
	FailureReason *string
	CreatedAt     time.Time
}

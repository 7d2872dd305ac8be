package domain

import "time"

// AckStatus tracks the receipt chain of an alert requiring confirmation.
type AckStatus string

const (
	AckSent         AckStatus = "SENT"
	AckDelivered    AckStatus = "DELIVERED"
	AckOpened       AckStatus = "OPENED"
	AckAcknowledged AckStatus = "ACKNOWLEDGED"
	AckEscalated    AckStatus = "ESCALATED"
)

// ackTransitions: strictly forward. ESCALATED and ACKNOWLEDGED are
// terminal; escalation never loops back into the chain.
var ackTransitions = map[AckStatus][]AckStatus{
	AckSent:         {AckDelivered, AckOpened, AckAcknowledged, AckEscalated},
	AckDelivered:    {AckOpened, AckAcknowledged, AckEscalated},
	AckOpened:       {AckAcknowledged, AckEscalated},
	AckAcknowledged: {},
	AckEscalated:    {},
}

// CanTransition reports whether the acknowledgement state change is legal.
func (s AckStatus) CanTransition(target AckStatus) bool {
	for _, allowed := range ackTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// Open reports whether the chain still awaits a human.
func (s AckStatus) Open() bool {
	return s != AckAcknowledged && s != AckEscalated
}

// AlertAcknowledgement tracks explicit human confirmation of one alert.
// Created when an ack-requiring alert is sent; closed by acknowledgement
// or by exactly one escalation hop.
type AlertAcknowledgement struct {
	ID                 string
	OrgID              string
	AlertID            string
	TicketID           string
	SubscriberID       string
	Status             AckStatus
	Deadline           time.Time
	AcknowledgedAt     *time.Time
	EscalatedAt        *time.Time
	EscalationTargetID *string
	EscalationAlertID  *string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

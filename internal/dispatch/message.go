package dispatch

import (
	"fmt"

	"github.com/spec-kit/locate-service/internal/domain"
	"github.com/spec-kit/locate-service/internal/gateway"
)

// renderMessage builds the channel-agnostic notification content for a
// trigger. The gateway collaborator owns channel-specific formatting.
func renderMessage(trigger domain.Trigger, ticket *domain.Ticket) gateway.Message {
	var subject, body string
	number := trigger.TicketID
	site := ""
	if ticket != nil {
		number = ticket.Number
		site = ticket.Site.Address
	}

	switch trigger.Type {
	case domain.AlertDeadline48H:
		subject = fmt.Sprintf("Ticket %s: legal dig date in 48 hours", number)
		body = fmt.Sprintf("Locate ticket %s at %s reaches its legal dig date in two days. Verify utility responses before digging.", number, site)
	case domain.AlertDeadline24H:
		subject = fmt.Sprintf("Ticket %s: legal dig date in 24 hours", number)
		body = fmt.Sprintf("Locate ticket %s at %s reaches its legal dig date tomorrow. Verify utility responses before digging.", number, site)
	case domain.AlertDeadlineToday:
		subject = fmt.Sprintf("Ticket %s: legal dig date is today", number)
		body = fmt.Sprintf("Locate ticket %s at %s is legally diggable today, provided all utilities have responded.", number, site)
	case domain.AlertResponseOverdue:
		subject = fmt.Sprintf("Ticket %s: utility %s response overdue", number, trigger.UtilityCode)
		body = fmt.Sprintf("Utility %s has not responded to locate ticket %s within its response window. Do not dig until resolved.", trigger.UtilityCode, number)
	case domain.AlertUpdateByApproach:
		subject = fmt.Sprintf("Ticket %s: update deadline approaching", number)
		body = fmt.Sprintf("Locate ticket %s must be updated or renewed soon to stay valid.", number)
	case domain.AlertUpdateByToday:
		subject = fmt.Sprintf("Ticket %s: update deadline is today", number)
		body = fmt.Sprintf("Locate ticket %s must be updated or renewed today to stay valid.", number)
	case domain.AlertExpiryApproach:
		subject = fmt.Sprintf("Ticket %s: expires soon", number)
		body = fmt.Sprintf("Locate ticket %s at %s is approaching expiration. Renew if work continues.", number, site)
	case domain.AlertExpiredToday:
		subject = fmt.Sprintf("Ticket %s: EXPIRED", number)
		body = fmt.Sprintf("Locate ticket %s has expired. All digging must stop until a new ticket is issued.", number)
	case domain.AlertConflictDetected:
		subject = fmt.Sprintf("Ticket %s: CONFLICT between utility responses", number)
		body = fmt.Sprintf("Utility responses on locate ticket %s at %s disagree about facilities in the dig area. Human resolution required before digging.", number, site)
	case domain.AlertEmergency:
		subject = fmt.Sprintf("Ticket %s: EMERGENCY", number)
		body = fmt.Sprintf("Emergency condition on locate ticket %s at %s.", number, site)
	case domain.AlertEscalationOverflow:
		subject = fmt.Sprintf("ESCALATED: unacknowledged alert on ticket %s", number)
		body = fmt.Sprintf("An alert on locate ticket %s was not acknowledged before its deadline and has been escalated to you.", number)
	case domain.AlertDeliveryFailure:
		subject = fmt.Sprintf("Ticket %s: alert delivery failed", number)
		body = fmt.Sprintf("A notification about locate ticket %s could not be delivered on one of your channels.", number)
	default:
		subject = fmt.Sprintf("Ticket %s: %s", number, trigger.Type)
		body = subject
	}

	return gateway.Message{
		Subject:  subject,
		Body:     body,
		Priority: trigger.Priority,
		TicketID: trigger.TicketID,
	}
}

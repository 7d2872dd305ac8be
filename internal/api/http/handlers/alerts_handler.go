package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/locate-service/internal/api/dto"
	"github.com/spec-kit/locate-service/internal/auth"
	"github.com/spec-kit/locate-service/internal/domain"
	"github.com/spec-kit/locate-service/internal/escalation"
	"github.com/spec-kit/locate-service/internal/repository"
	"github.com/spec-kit/locate-service/internal/service"
	apperrors "github.com/spec-kit/locate-service/pkg/util/errorutil"
)

// AlertsHandler serves the alert feed, delivery receipts, and
// acknowledgements.
type AlertsHandler struct {
	subscriptions *service.SubscriptionService
	tracker       *escalation.Tracker
	acks          repository.AckRepository
}

// NewAlertsHandler constructs handler.
func NewAlertsHandler(subscriptions *service.SubscriptionService, tracker *escalation.Tracker, acks repository.AckRepository) *AlertsHandler {
	return &AlertsHandler{subscriptions: subscriptions, tracker: tracker, acks: acks}
}

// Feed GET /alerts.
func (h *AlertsHandler) Feed(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	alerts, err := h.subscriptions.Feed(c.Context(), principal.OrgID(), principal.Subscriber.ID, parseInt(c.Query("limit"), 50))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": alertViews(alerts)})
}

// TicketHistory GET /tickets/:id/alerts.
func (h *AlertsHandler) TicketHistory(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	from := parseTime(c.Query("from"))
	to := parseTime(c.Query("to"))
	alerts, err := h.subscriptions.TicketAlertHistory(c.Context(), principal.OrgID(), c.Params("id"), from, to)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": alertViews(alerts)})
}

// Delivered POST /alerts/:id/delivered. Channel providers call this back.
func (h *AlertsHandler) Delivered(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	if err := h.tracker.RecordDelivered(c.Context(), principal.OrgID(), c.Params("id")); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"status": "recorded"}})
}

// Opened POST /alerts/:id/opened.
func (h *AlertsHandler) Opened(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	if err := h.tracker.RecordOpened(c.Context(), principal.OrgID(), c.Params("id")); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"status": "recorded"}})
}

// Acknowledge POST /alerts/:id/ack.
func (h *AlertsHandler) Acknowledge(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	ack, err := h.tracker.Acknowledge(c.Context(), principal.OrgID(), c.Params("id"), principal.Subscriber.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ackView(ack)})
}

// TicketAcks GET /tickets/:id/acknowledgements.
func (h *AlertsHandler) TicketAcks(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	acks, err := h.acks.ListByTicket(c.Context(), principal.OrgID(), c.Params("id"))
	if err != nil {
		return apperrors.MapError(err)
	}
	views := make([]dto.AcknowledgementView, 0, len(acks))
	for i := range acks {
		views = append(views, ackView(&acks[i]))
	}
	return c.JSON(fiber.Map{"data": views})
}

func alertViews(alerts []domain.TicketAlert) []dto.AlertView {
	views := make([]dto.AlertView, 0, len(alerts))
	for i := range alerts {
		a := &alerts[i]
		views = append(views, dto.AlertView{
			ID:        a.ID,
			TicketID:  a.TicketID,
			Type:      a.Type,
			Channel:   a.Channel,
			Priority:  a.Priority,
			Message:   a.Message,
			Status:    a.Status,
			Attempt:   a.Attempt,
			SentAt:    a.SentAt,
			ReadAt:    a.ReadAt,
			CreatedAt: a.CreatedAt,
		})
	}
	return views
}

func ackView(ack *domain.AlertAcknowledgement) dto.AcknowledgementView {
	return dto.AcknowledgementView{
		ID:                 ack.ID,
		AlertID:            ack.AlertID,
		TicketID:           ack.TicketID,
		Status:             ack.Status,
		Deadline:           ack.Deadline,
		AcknowledgedAt:     ack.AcknowledgedAt,
		EscalatedAt:        ack.EscalatedAt,
		EscalationTargetID: ack.EscalationTargetID,
	}
}

package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/locate-service/internal/api/dto"
	"github.com/spec-kit/locate-service/internal/auth"
	"github.com/spec-kit/locate-service/internal/domain"
	"github.com/spec-kit/locate-service/internal/service"
	apperrors "github.com/spec-kit/locate-service/pkg/util/errorutil"
)

// SubscriptionsHandler manages alert subscription preferences.
type SubscriptionsHandler struct {
	service *service.SubscriptionService
}

// NewSubscriptionsHandler constructs handler.
func NewSubscriptionsHandler(subscriptionService *service.SubscriptionService) *SubscriptionsHandler {
	return &SubscriptionsHandler{service: subscriptionService}
}

// Save PUT /subscriptions.
func (h *SubscriptionsHandler) Save(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.SaveSubscriptionRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	sub := &domain.AlertSubscription{
		OrgID:        principal.OrgID(),
		SubscriberID: principal.Subscriber.ID,
		Scope:        req.Scope,
		ProjectRef:   req.ProjectRef,
		AlertTypes:   req.AlertTypes,
		Channels:     req.Channels,
		Enabled:      req.Enabled,
	}
	if req.Quiet != nil {
		sub.Quiet = &domain.QuietWindow{Start: req.Quiet.Start, End: req.Quiet.End}
	}
	saved, err := h.service.Save(c.Context(), sub)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": subscriptionView(saved)})
}

// List GET /subscriptions.
func (h *SubscriptionsHandler) List(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	subs, err := h.service.List(c.Context(), principal.OrgID(), principal.Subscriber.ID)
	if err != nil {
		return err
	}
	views := make([]dto.SubscriptionResponse, 0, len(subs))
	for i := range subs {
		views = append(views, subscriptionView(&subs[i]))
	}
	return c.JSON(fiber.Map{"data": views})
}

// Delete DELETE /subscriptions/:id.
func (h *SubscriptionsHandler) Delete(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	if err := h.service.Delete(c.Context(), principal.OrgID(), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func subscriptionView(sub *domain.AlertSubscription) dto.SubscriptionResponse {
	view := dto.SubscriptionResponse{
		ID:         sub.ID,
		Scope:      sub.Scope,
		ProjectRef: sub.ProjectRef,
		AlertTypes: sub.AlertTypes,
		Channels:   sub.Channels,
		Enabled:    sub.Enabled,
		UpdatedAt:  sub.UpdatedAt,
	}
	if sub.Quiet != nil {
		view.Quiet = &dto.QuietWindowRequest{Start: sub.Quiet.Start, End: sub.Quiet.End}
	}
	return view
}

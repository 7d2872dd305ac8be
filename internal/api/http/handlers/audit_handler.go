package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/locate-service/internal/api/dto"
	"github.com/spec-kit/locate-service/internal/audit"
	"github.com/spec-kit/locate-service/internal/auth"
	"github.com/spec-kit/locate-service/internal/domain"
	apperrors "github.com/spec-kit/locate-service/pkg/util/errorutil"
)

// AuditHandler manages compliance audit packs.
type AuditHandler struct {
	generator *audit.Generator
}

// NewAuditHandler constructs handler.
func NewAuditHandler(generator *audit.Generator) *AuditHandler {
	return &AuditHandler{generator: generator}
}

// Generate POST /tickets/:id/audit-packs.
func (h *AuditHandler) Generate(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.GenerateAuditPackRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	pack, err := h.generator.Generate(c.Context(), principal.OrgID(), c.Params("id"), req.RangeFrom, req.RangeTo)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": packView(pack)})
}

// List GET /tickets/:id/audit-packs.
func (h *AuditHandler) List(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	packs, err := h.generator.ListByTicket(c.Context(), principal.OrgID(), c.Params("id"))
	if err != nil {
		return err
	}
	views := make([]dto.AuditPackView, 0, len(packs))
	for i := range packs {
		views = append(views, packView(&packs[i]))
	}
	return c.JSON(fiber.Map{"data": views})
}

// Get GET /audit-packs/:id.
func (h *AuditHandler) Get(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	pack, err := h.generator.Get(c.Context(), principal.OrgID(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": packView(pack)})
}

// Download GET /audit-packs/:id/payload streams the gzip JSON bundle.
func (h *AuditHandler) Download(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	pack, err := h.generator.Get(c.Context(), principal.OrgID(), c.Params("id"))
	if err != nil {
		return err
	}
	if !h.generator.Verify(pack) {
		return apperrors.NewInternalError(nil)
	}
	c.Set(fiber.HeaderContentType, "application/json")
	c.Set(fiber.HeaderContentEncoding, "gzip")
	c.Set("X-Content-SHA256", pack.SHA256)
	return c.Send(pack.Payload)
}

func packView(pack *domain.AuditPack) dto.AuditPackView {
	return dto.AuditPackView{
		ID:             pack.ID,
		TicketID:       pack.TicketID,
		RangeFrom:      pack.RangeFrom,
		RangeTo:        pack.RangeTo,
		GeneratedAt:    pack.GeneratedAt,
		RetentionUntil: pack.RetentionUntil,
		SHA256:         pack.SHA256,
		Manifest:       pack.Manifest,
	}
}

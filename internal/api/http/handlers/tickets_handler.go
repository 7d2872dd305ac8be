package handlers

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/locate-service/internal/api/dto"
	"github.com/spec-kit/locate-service/internal/auth"
	"github.com/spec-kit/locate-service/internal/domain"
	"github.com/spec-kit/locate-service/internal/repository"
	"github.com/spec-kit/locate-service/internal/service"
	apperrors "github.com/spec-kit/locate-service/pkg/util/errorutil"
)

// TicketsHandler manages locate ticket endpoints.
type TicketsHandler struct {
	service *service.TicketService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService) *TicketsHandler {
	return &TicketsHandler{service: ticketService}
}

// CreateTicket POST /tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	input := service.TicketCreateInput{
		Number:          req.Number,
		Address:         req.Address,
		Lat:             req.Lat,
		Lon:             req.Lon,
		Geometry:        req.Geometry,
		WorkType:        req.WorkType,
		WorkDescription: req.WorkDescription,
		ProjectRef:      req.ProjectRef,
		RequestedStart:  req.RequestedStart,
	}
	for _, u := range req.AffectedUtilities {
		input.AffectedUtilities = append(input.AffectedUtilities, service.AffectedUtility{
			Code:         u.Code,
			Name:         u.Name,
			FacilityType: u.FacilityType,
		})
	}
	ticket, err := h.service.CreateTicket(c.Context(), principal.OrgID(), input)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": ticketSummary(ticket)})
}

// ListTickets GET /tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	tickets, err := h.service.ListTickets(c.Context(), principal.OrgID(), parseTicketQuery(c))
	if err != nil {
		return err
	}
	items := make([]dto.TicketSummary, 0, len(tickets))
	for i := range tickets {
		items = append(items, ticketSummary(&tickets[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	ticket, responses, err := h.service.GetTicket(c.Context(), principal.OrgID(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketDetail(ticket, responses)})
}

// RecordResponse POST /tickets/:id/responses.
func (h *TicketsHandler) RecordResponse(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.RecordResponseRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.UtilityCode) == "" || req.Type == "" {
		return apperrors.NewValidationError("utility_code and type required", nil)
	}
	ticket, err := h.service.RecordUtilityResponse(c.Context(), principal.OrgID(), c.Params("id"), service.ResponseInput{
		UtilityCode:     req.UtilityCode,
		Type:            req.Type,
		ResponseVersion: req.ResponseVersion,
		MarkingDetails:  req.MarkingDetails,
		MarkingColor:    req.MarkingColor,
		PhotoRef:        req.PhotoRef,
		ConflictReason:  req.ConflictReason,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketSummary(ticket)})
}

// Transition POST /tickets/:id/transition.
func (h *TicketsHandler) Transition(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.TransitionRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.service.TransitionStatus(c.Context(), principal.OrgID(), c.Params("id"), req.Status, req.Reason)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketSummary(ticket)})
}

// CancelTicket POST /tickets/:id/cancel.
func (h *TicketsHandler) CancelTicket(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.TransitionRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.service.CancelTicket(c.Context(), principal.OrgID(), c.Params("id"), req.Reason)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketSummary(ticket)})
}

// RenewTicket POST /tickets/:id/renew.
func (h *TicketsHandler) RenewTicket(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	input := service.TicketCreateInput{
		RequestedStart: req.RequestedStart,
	}
	child, err := h.service.RenewTicket(c.Context(), principal.OrgID(), c.Params("id"), input)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": ticketSummary(child)})
}

// ResolveConflict POST /tickets/:id/conflicts/resolve.
func (h *TicketsHandler) ResolveConflict(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.ResolveConflictRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.service.ResolveConflict(c.Context(), principal.OrgID(), c.Params("id"),
		req.UtilityCode, domain.ResponseStatus(req.Outcome), req.Resolution, principal.Subscriber.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketSummary(ticket)})
}

// DigStatus GET /dig-status.
func (h *TicketsHandler) DigStatus(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	address := c.Query("address")
	lat := parseFloat(c.Query("lat"))
	lon := parseFloat(c.Query("lon"))
	if address == "" && (lat == nil || lon == nil) {
		return apperrors.NewValidationError("address or lat/lon required", nil)
	}
	date := time.Now()
	if parsed := parseTime(c.Query("date")); parsed != nil {
		date = *parsed
	}
	status, err := h.service.CheckDigStatus(c.Context(), principal.OrgID(), address, lat, lon, date)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.DigStatusResponse{
		CanDig:       status.CanDig,
		TicketID:     status.TicketID,
		TicketNumber: status.TicketNumber,
		Issues:       status.Issues,
	}})
}

func parseTicketQuery(c *fiber.Ctx) repository.TicketFilter {
	filter := repository.TicketFilter{}
	if statusStr := c.Query("status"); statusStr != "" {
		for _, part := range strings.Split(statusStr, ",") {
			filter.Statuses = append(filter.Statuses, domain.TicketStatus(strings.TrimSpace(part)))
		}
	}
	if project := c.Query("project_ref"); project != "" {
		filter.ProjectRef = &project
	}
	if search := c.Query("q"); search != "" {
		filter.SearchTerm = &search
	}
	if from := parseTime(c.Query("created_from")); from != nil {
		filter.CreatedFrom = from
	}
	if to := parseTime(c.Query("created_to")); to != nil {
		filter.CreatedTo = to
	}
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), 20)
	filter.Offset = (page - 1) * pageSize
	filter.Limit = pageSize
	return filter
}

func parseTime(val string) *time.Time {
	if val == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, val)
	if err != nil {
		return nil
	}
	return &t
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func parseFloat(val string) *float64 {
	if val == "" {
		return nil
	}
	parsed, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return nil
	}
	return &parsed
}

func ticketSummary(ticket *domain.Ticket) dto.TicketSummary {
	return dto.TicketSummary{
		ID:                 ticket.ID,
		Number:             ticket.Number,
		ParentTicketID:     ticket.ParentTicketID,
		Address:            ticket.Site.Address,
		WorkType:           ticket.WorkType,
		ProjectRef:         ticket.ProjectRef,
		Status:             ticket.Status,
		RiskScore:          ticket.RiskScore,
		LegalDigDate:       ticket.LegalDigDate,
		UpdateBy:           ticket.UpdateBy,
		ExpiresAt:          ticket.ExpiresAt,
		TotalUtilities:     ticket.TotalUtilities,
		RespondedUtilities: ticket.RespondedUtilities,
		CreatedAt:          ticket.CreatedAt,
		UpdatedAt:          ticket.UpdatedAt,
	}
}

func ticketDetail(ticket *domain.Ticket, responses []domain.UtilityResponse) dto.TicketDetailResponse {
	views := make([]dto.UtilityResponseView, 0, len(responses))
	for i := range responses {
		resp := &responses[i]
		views = append(views, dto.UtilityResponseView{
			UtilityCode:    resp.UtilityCode,
			UtilityName:    resp.UtilityName,
			FacilityType:   resp.FacilityType,
			Status:         resp.Status,
			ResponseType:   resp.ResponseType,
			WindowClose:    resp.WindowClose,
			MarkingDetails: resp.MarkingDetails,
			ConflictReason: resp.ConflictReason,
			RespondedAt:    resp.RespondedAt,
		})
	}
	return dto.TicketDetailResponse{
		TicketSummary:   ticketSummary(ticket),
		WorkDescription: ticket.WorkDescription,
		RequestedStart:  ticket.RequestedStart,
		ClosedAt:        ticket.ClosedAt,
		Responses:       views,
	}
}

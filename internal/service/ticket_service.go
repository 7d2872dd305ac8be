package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/locate-service/internal/calendar"
	"github.com/spec-kit/locate-service/internal/config"
	"github.com/spec-kit/locate-service/internal/domain"
	"github.com/spec-kit/locate-service/internal/repository"
	"github.com/spec-kit/locate-service/internal/risk"
	apperrors "github.com/spec-kit/locate-service/pkg/util/errorutil"
)

// ProjectContext supplies dig-site flags owned by the surrounding project
// system, not by this engine.
type ProjectContext interface {
	SiteFlags(ctx context.Context, projectRef *string) domain.SiteFlags
}

// NoProjectContext returns zero flags for every project.
type NoProjectContext struct{}

// SiteFlags implements ProjectContext.
func (NoProjectContext) SiteFlags(context.Context, *string) domain.SiteFlags {
	return domain.SiteFlags{}
}

// TriggerSink accepts alert intents. The dispatch queue implements it; a
// nil sink simply leaves detection to the next scanner sweep.
type TriggerSink interface {
	Offer(trigger domain.Trigger) bool
}

// TicketService owns the ticket and per-utility response state machines.
type TicketService struct {
	tickets   repository.TicketRepository
	responses repository.ResponseRepository
	tx        repository.TxManager
	cal       *calendar.Calendar
	reg       config.RegulatoryConfig
	projects  ProjectContext
	triggers  TriggerSink
	logger    *zap.Logger
	now       func() time.Time
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo   repository.TicketRepository
	ResponseRepo repository.ResponseRepository
	Tx           repository.TxManager
	Calendar     *calendar.Calendar
	Regulatory   config.RegulatoryConfig
	Projects     ProjectContext
	Triggers     TriggerSink
	Logger       *zap.Logger
	Now          func() time.Time
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	if deps.Projects == nil {
		deps.Projects = NoProjectContext{}
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &TicketService{
		tickets:   deps.TicketRepo,
		responses: deps.ResponseRepo,
		tx:        deps.Tx,
		cal:       deps.Calendar,
		reg:       deps.Regulatory,
		projects:  deps.Projects,
		triggers:  deps.Triggers,
		logger:    deps.Logger,
		now:       deps.Now,
	}
}

// AffectedUtility names one utility company to notify on a ticket.
type AffectedUtility struct {
	Code         string
	Name         string
	FacilityType domain.FacilityType
}

// TicketCreateInput describes a parsed one-call notice or manual entry.
type TicketCreateInput struct {
	Number            string
	Address           string
	Lat               *float64
	Lon               *float64
	Geometry          *string
	WorkType          domain.WorkType
	WorkDescription   string
	ProjectRef        *string
	RequestedStart    time.Time
	AffectedUtilities []AffectedUtility
	ParentTicketID    *string
}

// ResponseInput describes one utility's submission.
type ResponseInput struct {
	UtilityCode     string
	Type            domain.ResponseType
	ResponseVersion int
	MarkingDetails  *string
	MarkingColor    *string
	PhotoRef        *string
	ConflictReason  *string
}

// CreateTicket validates the notice, computes the statutory dates, seeds
// one response row per affected utility, and persists the ticket in
// RECEIVED status.
func (s *TicketService) CreateTicket(ctx context.Context, orgID string, input TicketCreateInput) (*domain.Ticket, error) {
	if err := validateCreate(input); err != nil {
		return nil, err
	}

	now := s.now()
	legalDig, err := s.cal.AddBusinessDays(now, s.reg.MinNoticeBusinessDays)
	if err != nil {
		return nil, apperrors.NewInvalidDateRange(err.Error())
	}
	if input.RequestedStart.After(legalDig) {
		legalDig = input.RequestedStart
	}
	expiresAt, err := s.cal.AddBusinessDays(legalDig, s.reg.ValidityWindowBusinessDays)
	if err != nil {
		return nil, apperrors.NewInvalidDateRange(err.Error())
	}
	updateByDays := s.reg.ValidityWindowBusinessDays - s.reg.UpdateByLeadBusinessDays
	if updateByDays < 0 {
		updateByDays = 0
	}
	updateBy, err := s.cal.AddBusinessDays(legalDig, updateByDays)
	if err != nil {
		return nil, apperrors.NewInvalidDateRange(err.Error())
	}

	number := strings.TrimSpace(input.Number)
	if number == "" {
		number = generateTicketNumber(now)
	}

	ticket := &domain.Ticket{
		OrgID:          orgID,
		Number:         number,
		ParentTicketID: input.ParentTicketID,
		Site: domain.DigSite{
			Address:  strings.TrimSpace(input.Address),
			Lat:      input.Lat,
			Lon:      input.Lon,
			Geometry: input.Geometry,
		},
		WorkType:        input.WorkType,
		WorkDescription: strings.TrimSpace(input.WorkDescription),
		ProjectRef:      input.ProjectRef,
		RequestedStart:  input.RequestedStart,
		LegalDigDate:    legalDig,
		UpdateBy:        updateBy,
		ExpiresAt:       expiresAt,
		Status:          domain.TicketStatusReceived,
		TotalUtilities:  len(input.AffectedUtilities),
	}

	windowClose := now.Add(time.Duration(s.reg.ResponseWindowHours) * time.Hour)
	seeded := make([]domain.UtilityResponse, 0, len(input.AffectedUtilities))
	for _, u := range input.AffectedUtilities {
		seeded = append(seeded, domain.UtilityResponse{
			OrgID:        orgID,
			UtilityCode:  strings.TrimSpace(u.Code),
			UtilityName:  strings.TrimSpace(u.Name),
			FacilityType: u.FacilityType,
			Status:       domain.ResponsePending,
			WindowOpen:   now,
			WindowClose:  windowClose,
		})
	}

	flags := s.projects.SiteFlags(ctx, ticket.ProjectRef)
	ticket.RiskScore = risk.Score(ticket, seeded, flags, now)

	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.tickets.Create(ctx, ticket); err != nil {
			return apperrors.MapError(err)
		}
		for i := range seeded {
			seeded[i].TicketID = ticket.ID
		}
		if err := s.responses.CreateBatch(ctx, seeded); err != nil {
			return apperrors.MapError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("ticket created",
		zap.String("ticket_id", ticket.ID),
		zap.String("number", ticket.Number),
		zap.Time("legal_dig_date", ticket.LegalDigDate),
		zap.Time("expires_at", ticket.ExpiresAt),
		zap.Int("utilities", ticket.TotalUtilities),
	)
	return ticket, nil
}

// RecordUtilityResponse applies one utility's submission to its response
// row and rolls the aggregate ticket state forward. Re-submitting an
// identical (utility, response version) pair is a no-op.
func (s *TicketService) RecordUtilityResponse(ctx context.Context, orgID, ticketID string, input ResponseInput) (*domain.Ticket, error) {
	if strings.TrimSpace(input.UtilityCode) == "" {
		return nil, apperrors.NewValidationError("utility_code required", nil)
	}
	if input.Type.StatusFor() == domain.ResponsePending {
		return nil, apperrors.NewValidationError("unsupported response type", map[string]any{"response_type": input.Type})
	}

	now := s.now()
	var result *domain.Ticket
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		ticket, err := s.tickets.GetByIDForUpdate(ctx, orgID, ticketID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
			}
			return apperrors.MapError(err)
		}
		if !ticket.Active() {
			return apperrors.NewInvalidTransition(string(ticket.Status), string(ticket.Status),
				map[string]any{"reason": "ticket is terminal"})
		}

		resp, err := s.responses.GetForUpdate(ctx, ticket.ID, strings.TrimSpace(input.UtilityCode))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperrors.NewNotFound("utility response", map[string]any{"utility_code": input.UtilityCode})
			}
			return apperrors.MapError(err)
		}

		if resp.ResponseType != nil && *resp.ResponseType == input.Type && resp.ResponseVersion == input.ResponseVersion {
			result = ticket
			return nil
		}

		target := input.Type.StatusFor()
		if resp.Status != target && !resp.Status.CanTransition(target) {
			return apperrors.NewInvalidTransition(string(resp.Status), string(target),
				map[string]any{"utility_code": resp.UtilityCode})
		}

		respType := input.Type
		resp.Status = target
		resp.ResponseType = &respType
		resp.ResponseVersion = input.ResponseVersion
		resp.MarkingDetails = input.MarkingDetails
		resp.MarkingColor = input.MarkingColor
		resp.PhotoRef = input.PhotoRef
		resp.RespondedAt = &now
		if target == domain.ResponseConflict {
			resp.ConflictReason = input.ConflictReason
			if resp.ConflictReason == nil {
				reason := "conflicting submission from utility"
				resp.ConflictReason = &reason
			}
		}

		all, err := s.responses.ListByTicket(ctx, ticket.ID)
		if err != nil {
			return apperrors.MapError(err)
		}
		s.applyConflictDetection(all, resp)
		if err := s.responses.Update(ctx, resp); err != nil {
			return apperrors.MapError(err)
		}
		for i := range all {
			if all[i].ID == resp.ID {
				// keep the freshly written row in the aggregate view
				all[i] = *resp
			}
		}

		if err := s.rollAggregate(ctx, ticket, all, now); err != nil {
			return err
		}
		result = ticket
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// applyConflictDetection marks the incoming response CONFLICT when it
// disagrees with an already-recorded answer on the same ticket.
func (s *TicketService) applyConflictDetection(all []domain.UtilityResponse, incoming *domain.UtilityResponse) {
	if incoming.Status == domain.ResponseConflict {
		return
	}
	for i := range all {
		other := &all[i]
		if other.ID == incoming.ID || other.ArchivedAt != nil {
			continue
		}
		if incoming.ConflictsWith(other) {
			reason := "disagrees with response from " + other.UtilityCode
			incoming.Status = domain.ResponseConflict
			incoming.ConflictReason = &reason
			return
		}
	}
}

// rollAggregate recomputes counts, derived status, and risk, persisting
// the ticket with its optimistic version guard.
func (s *TicketService) rollAggregate(ctx context.Context, ticket *domain.Ticket, all []domain.UtilityResponse, now time.Time) error {
	responded := 0
	conflict := false
	for i := range all {
		if all[i].ArchivedAt != nil {
			continue
		}
		if all[i].Status.Responded() {
			responded++
		}
		if all[i].Status == domain.ResponseConflict && all[i].ResolvedAt == nil {
			conflict = true
		}
	}
	ticket.RespondedUtilities = responded

	target := deriveStatus(ticket, all, conflict, responded)
	if target != ticket.Status {
		if !ticket.Status.CanTransition(target) {
			return apperrors.NewInvalidTransition(string(ticket.Status), string(target), nil)
		}
		prev := ticket.Status
		ticket.Status = target
		s.logger.Info("ticket status",
			zap.String("ticket_id", ticket.ID),
			zap.String("from", string(prev)),
			zap.String("to", string(target)),
		)
		if target == domain.TicketStatusConflict {
			s.offerTrigger(domain.Trigger{
				OrgID:      ticket.OrgID,
				TicketID:   ticket.ID,
				Type:       domain.AlertConflictDetected,
				Priority:   domain.PriorityCritical,
				Day:        domain.MarkerDay(now),
				DetectedAt: now,
			})
		}
	}

	flags := s.projects.SiteFlags(ctx, ticket.ProjectRef)
	ticket.RiskScore = risk.Score(ticket, all, flags, now)

	if err := s.tickets.Update(ctx, ticket); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewStaleWrite("ticket", map[string]any{"ticket_id": ticket.ID})
		}
		return apperrors.MapError(err)
	}
	return nil
}

func deriveStatus(ticket *domain.Ticket, all []domain.UtilityResponse, conflict bool, responded int) domain.TicketStatus {
	total := 0
	for i := range all {
		if all[i].ArchivedAt == nil {
			total++
		}
	}
	switch {
	case conflict:
		return domain.TicketStatusConflict
	case total > 0 && responded == total:
		return domain.TicketStatusClear
	case responded > 0:
		return domain.TicketStatusInProgress
	case ticket.Status == domain.TicketStatusReceived:
		return domain.TicketStatusPending
	default:
		return ticket.Status
	}
}

// TransitionStatus applies an explicit, caller-requested transition.
func (s *TicketService) TransitionStatus(ctx context.Context, orgID, ticketID string, target domain.TicketStatus, reason string) (*domain.Ticket, error) {
	now := s.now()
	var result *domain.Ticket
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		ticket, err := s.tickets.GetByIDForUpdate(ctx, orgID, ticketID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
			}
			return apperrors.MapError(err)
		}
		if ticket.Status == target {
			result = ticket
			return nil
		}
		if !ticket.Status.CanTransition(target) {
			return apperrors.NewInvalidTransition(string(ticket.Status), string(target),
				map[string]any{"ticket_id": ticketID, "reason": reason})
		}
		return s.finishTransition(ctx, ticket, target, now, &result)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *TicketService) finishTransition(ctx context.Context, ticket *domain.Ticket, target domain.TicketStatus, now time.Time, out **domain.Ticket) error {
	prev := ticket.Status
	ticket.Status = target
	if target.Terminal() {
		closed := now
		ticket.ClosedAt = &closed
		if err := s.responses.ArchiveByTicket(ctx, ticket.ID, now); err != nil {
			return apperrors.MapError(err)
		}
	}

	all, err := s.responses.ListByTicket(ctx, ticket.ID)
	if err != nil {
		return apperrors.MapError(err)
	}
	flags := s.projects.SiteFlags(ctx, ticket.ProjectRef)
	ticket.RiskScore = risk.Score(ticket, all, flags, now)

	if err := s.tickets.Update(ctx, ticket); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewStaleWrite("ticket", map[string]any{"ticket_id": ticket.ID})
		}
		return apperrors.MapError(err)
	}
	s.logger.Info("ticket status",
		zap.String("ticket_id", ticket.ID),
		zap.String("from", string(prev)),
		zap.String("to", string(target)),
	)
	*out = ticket
	return nil
}

// CancelTicket is the explicit cancellation path. Future trigger emission
// stops at the next scan; already-dispatched alerts are not retracted.
func (s *TicketService) CancelTicket(ctx context.Context, orgID, ticketID, reason string) (*domain.Ticket, error) {
	return s.TransitionStatus(ctx, orgID, ticketID, domain.TicketStatusCancelled, reason)
}

// RenewTicket creates a child ticket continuing the dig under a fresh
// statutory clock and marks the parent RENEWED. The chain is forward-only:
// the parent is never mutated again.
func (s *TicketService) RenewTicket(ctx context.Context, orgID, ticketID string, input TicketCreateInput) (*domain.Ticket, error) {
	parent, err := s.tickets.GetByID(ctx, orgID, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}
	if !parent.Status.CanTransition(domain.TicketStatusRenewed) {
		return nil, apperrors.NewInvalidTransition(string(parent.Status), string(domain.TicketStatusRenewed), nil)
	}

	// Inherit site and work details unless overridden.
	if strings.TrimSpace(input.Address) == "" && input.Lat == nil {
		input.Address = parent.Site.Address
		input.Lat = parent.Site.Lat
		input.Lon = parent.Site.Lon
		input.Geometry = parent.Site.Geometry
	}
	if input.WorkType == "" {
		input.WorkType = parent.WorkType
	}
	if strings.TrimSpace(input.WorkDescription) == "" {
		input.WorkDescription = parent.WorkDescription
	}
	if input.ProjectRef == nil {
		input.ProjectRef = parent.ProjectRef
	}
	if input.RequestedStart.IsZero() {
		input.RequestedStart = s.now()
	}
	input.ParentTicketID = &parent.ID

	child, err := s.CreateTicket(ctx, orgID, input)
	if err != nil {
		return nil, err
	}
	if _, err := s.TransitionStatus(ctx, orgID, parent.ID, domain.TicketStatusRenewed, "renewed as "+child.Number); err != nil {
		return nil, err
	}
	return child, nil
}

// ExpireDueTickets transitions every non-terminal ticket past its
// expiration to EXPIRED. Safe to run repeatedly; already-expired tickets
// are skipped by the query and re-checked under lock.
func (s *TicketService) ExpireDueTickets(ctx context.Context, now time.Time) (int, error) {
	due, err := s.tickets.ListExpireDue(ctx, now, 1000)
	if err != nil {
		return 0, apperrors.MapError(err)
	}
	expired := 0
	for i := range due {
		id := due[i].ID
		orgID := due[i].OrgID
		justExpired := false
		err := s.tx.InTx(ctx, func(ctx context.Context) error {
			ticket, err := s.tickets.GetByIDForUpdate(ctx, orgID, id)
			if err != nil {
				return err
			}
			if !ticket.Active() || ticket.ExpiresAt.After(now) {
				return nil
			}
			var out *domain.Ticket
			if err := s.finishTransition(ctx, ticket, domain.TicketStatusExpired, now, &out); err != nil {
				return err
			}
			justExpired = true
			expired++
			return nil
		})
		if err != nil {
			// One ticket's failure must not block the batch.
			s.logger.Error("expire ticket", zap.String("ticket_id", id), zap.Error(err))
			continue
		}
		if justExpired {
			s.offerTrigger(domain.Trigger{
				OrgID:      orgID,
				TicketID:   id,
				Type:       domain.AlertExpiredToday,
				Priority:   domain.PriorityCritical,
				Day:        domain.MarkerDay(now),
				DetectedAt: now,
			})
		}
	}
	return expired, nil
}

// DigStatus answers "can I legally dig here now".
type DigStatus struct {
	CanDig       bool
	TicketID     *string
	TicketNumber *string
	Issues       []string
}

// CheckDigStatus is a point-in-time read over active tickets covering the
// location whose validity spans the date.
func (s *TicketService) CheckDigStatus(ctx context.Context, orgID, address string, lat, lon *float64, date time.Time) (*DigStatus, error) {
	if strings.TrimSpace(address) == "" && (lat == nil || lon == nil) {
		return nil, apperrors.NewValidationError("address or coordinates required", nil)
	}
	tickets, err := s.tickets.FindCovering(ctx, orgID, address, lat, lon, date)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if len(tickets) == 0 {
		return &DigStatus{Issues: []string{"no active locate ticket covers this location"}}, nil
	}

	status := &DigStatus{}
	var best *domain.Ticket
	for i := range tickets {
		t := &tickets[i]
		if t.Status == domain.TicketStatusClear {
			best = t
			break
		}
		if best == nil {
			best = t
		}
	}
	status.TicketID = &best.ID
	status.TicketNumber = &best.Number

	switch best.Status {
	case domain.TicketStatusClear:
		if date.Before(best.LegalDigDate) {
			status.Issues = append(status.Issues, "legal dig date not yet reached")
		} else {
			status.CanDig = true
		}
	case domain.TicketStatusConflict:
		status.Issues = append(status.Issues, "unresolved utility response conflict")
	default:
		status.Issues = append(status.Issues, "utility responses incomplete")
	}
	if date.Before(best.LegalDigDate) && best.Status != domain.TicketStatusClear {
		status.Issues = append(status.Issues, "legal dig date not yet reached")
	}
	return status, nil
}

// GetTicket loads a ticket with its responses.
func (s *TicketService) GetTicket(ctx context.Context, orgID, ticketID string) (*domain.Ticket, []domain.UtilityResponse, error) {
	ticket, err := s.tickets.GetByID(ctx, orgID, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, nil, apperrors.MapError(err)
	}
	responses, err := s.responses.ListByTicket(ctx, ticket.ID)
	if err != nil {
		return nil, nil, apperrors.MapError(err)
	}
	return ticket, responses, nil
}

// ListTickets returns filtered tickets for dashboards.
func (s *TicketService) ListTickets(ctx context.Context, orgID string, filter repository.TicketFilter) ([]domain.Ticket, error) {
	tickets, err := s.tickets.ListWithFilter(ctx, orgID, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return tickets, nil
}

// ResolveConflict settles one utility's CONFLICT row to the given outcome.
// Conflicts are never auto-resolved; this is the human resolution path.
func (s *TicketService) ResolveConflict(ctx context.Context, orgID, ticketID, utilityCode string, outcome domain.ResponseStatus, resolution, resolvedBy string) (*domain.Ticket, error) {
	if outcome != domain.ResponseMarked && outcome != domain.ResponseClear {
		return nil, apperrors.NewValidationError("resolution outcome must be MARKED or CLEAR", nil)
	}
	if strings.TrimSpace(resolution) == "" {
		return nil, apperrors.NewValidationError("resolution notes required", nil)
	}

	now := s.now()
	var result *domain.Ticket
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		ticket, err := s.tickets.GetByIDForUpdate(ctx, orgID, ticketID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
			}
			return apperrors.MapError(err)
		}
		resp, err := s.responses.GetForUpdate(ctx, ticket.ID, utilityCode)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperrors.NewNotFound("utility response", map[string]any{"utility_code": utilityCode})
			}
			return apperrors.MapError(err)
		}
		if resp.Status != domain.ResponseConflict {
			return apperrors.NewInvalidTransition(string(resp.Status), string(outcome),
				map[string]any{"reason": "response is not in conflict"})
		}

		resp.Status = outcome
		resp.ConflictResolution = &resolution
		resp.ResolvedBy = &resolvedBy
		resp.ResolvedAt = &now
		if err := s.responses.Update(ctx, resp); err != nil {
			return apperrors.MapError(err)
		}

		all, err := s.responses.ListByTicket(ctx, ticket.ID)
		if err != nil {
			return apperrors.MapError(err)
		}
		if err := s.rollAggregate(ctx, ticket, all, now); err != nil {
			return err
		}
		result = ticket
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *TicketService) offerTrigger(trigger domain.Trigger) {
	if s.triggers == nil {
		return
	}
	if !s.triggers.Offer(trigger) {
		s.logger.Warn("trigger queue full; sweep will pick it up",
			zap.String("ticket_id", trigger.TicketID),
			zap.String("alert_type", string(trigger.Type)),
		)
	}
}

func validateCreate(input TicketCreateInput) error {
	missing := map[string]any{}
	if strings.TrimSpace(input.Address) == "" && (input.Lat == nil || input.Lon == nil) {
		missing["location"] = "address or coordinates required"
	}
	if strings.TrimSpace(input.WorkDescription) == "" {
		missing["work_description"] = "required"
	}
	if input.RequestedStart.IsZero() {
		missing["requested_start"] = "required"
	}
	if len(input.AffectedUtilities) == 0 {
		missing["affected_utilities"] = "at least one required"
	}
	if len(missing) > 0 {
		return apperrors.NewValidationError("incomplete ticket input", missing)
	}
	return nil
}

func generateTicketNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:8]
	return "W" + now.Format("20060102") + "-" + suffix
}

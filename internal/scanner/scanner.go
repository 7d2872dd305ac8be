package scanner

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/locate-service/internal/calendar"
	"github.com/spec-kit/locate-service/internal/config"
	"github.com/spec-kit/locate-service/internal/domain"
	"github.com/spec-kit/locate-service/internal/observability"
	"github.com/spec-kit/locate-service/internal/repository"
)

const sweepLockName = "trigger-sweep"

// Sink accepts triggers for dispatch. The dispatch queue satisfies it.
type Sink interface {
	Offer(trigger domain.Trigger) bool
}

// Locker guards the sweep against concurrent instances and caches
// same-day dedup checks. Redis backs it in production; both operations
// fail open because Postgres markers remain authoritative.
type Locker interface {
	AcquireSweepLock(ctx context.Context, name string, ttl time.Duration) bool
	ReleaseSweepLock(ctx context.Context, name string)
	SeenToday(ctx context.Context, orgID, ticketID, alertType string, day time.Time) bool
	CacheSeen(ctx context.Context, orgID, ticketID, alertType string, day time.Time)
}

// Scanner walks active tickets and overdue utility responses on an
// interval and emits normalized triggers for anything that crossed a
// deadline boundary. It never sends notifications itself.
type Scanner struct {
	tickets   repository.TicketRepository
	responses repository.ResponseRepository
	markers   repository.MarkerRepository
	locker    Locker
	calendar  *calendar.Calendar
	sink      Sink
	cfg       config.ScannerConfig
	logger    *zap.Logger
	metrics   *observability.Metrics
	now       func() time.Time
}

// Dependencies bundles collaborators for the scanner.
type Dependencies struct {
	TicketRepo   repository.TicketRepository
	ResponseRepo repository.ResponseRepository
	MarkerRepo   repository.MarkerRepository
	Locker       Locker
	Calendar     *calendar.Calendar
	Sink         Sink
	Config       config.ScannerConfig
	Logger       *zap.Logger
	Metrics      *observability.Metrics
	Now          func() time.Time
}

// New constructs a scanner.
func New(deps Dependencies) *Scanner {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Scanner{
		tickets:   deps.TicketRepo,
		responses: deps.ResponseRepo,
		markers:   deps.MarkerRepo,
		locker:    deps.Locker,
		calendar:  deps.Calendar,
		sink:      deps.Sink,
		cfg:       deps.Config,
		logger:    deps.Logger,
		metrics:   deps.Metrics,
		now:       deps.Now,
	}
}

// Run sweeps immediately, then on every tick until the context ends.
func (s *Scanner) Run(ctx context.Context) {
	s.Sweep(ctx)
	ticker := time.NewTicker(s.cfg.SweepInterval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep runs one full pass. Re-running within the same day is harmless:
// the dedup markers collapse repeated detections into one alert per
// (ticket, alert type, day).
func (s *Scanner) Sweep(ctx context.Context) {
	lockTTL := time.Duration(s.cfg.LockTTLSeconds) * time.Second
	if s.locker != nil {
		if !s.locker.AcquireSweepLock(ctx, sweepLockName, lockTTL) {
			s.logger.Debug("sweep already running elsewhere")
			return
		}
		defer s.locker.ReleaseSweepLock(ctx, sweepLockName)
	}

	now := s.now()
	s.sweepTickets(ctx, now)
	s.sweepOverdueResponses(ctx, now)
	s.sweepExpiredToday(ctx, now)
}

func (s *Scanner) sweepTickets(ctx context.Context, now time.Time) {
	batch := s.cfg.BatchSize
	if batch <= 0 {
		batch = 500
	}
	for offset := 0; ; offset += batch {
		tickets, err := s.tickets.ListActive(ctx, batch, offset)
		if err != nil {
			s.logger.Error("sweep: list active tickets", zap.Error(err))
			return
		}
		for i := range tickets {
			s.scanTicket(ctx, &tickets[i], now)
		}
		if len(tickets) < batch {
			return
		}
	}
}

// scanTicket derives deadline triggers for one ticket from its three
// regulatory dates.
func (s *Scanner) scanTicket(ctx context.Context, ticket *domain.Ticket, now time.Time) {
	emit := func(alertType domain.AlertType, priority domain.AlertPriority) {
		s.offer(ctx, domain.Trigger{
			OrgID:      ticket.OrgID,
			TicketID:   ticket.ID,
			Type:       alertType,
			Priority:   priority,
			Day:        domain.MarkerDay(now),
			DetectedAt: now,
		})
	}

	switch calendarDays(now, ticket.LegalDigDate) {
	case 2:
		emit(domain.AlertDeadline48H, domain.PriorityHigh)
	case 1:
		emit(domain.AlertDeadline24H, domain.PriorityHigh)
	case 0:
		emit(domain.AlertDeadlineToday, domain.PriorityCritical)
	}

	// The approach warning fires one business day out, so a Monday
	// deadline warns on Friday rather than over the weekend.
	if du := calendarDays(now, ticket.UpdateBy); du == 0 {
		emit(domain.AlertUpdateByToday, domain.PriorityHigh)
	} else if du > 0 && sameDay(s.calendar.NextBusinessDay(now), ticket.UpdateBy) {
		emit(domain.AlertUpdateByApproach, domain.PriorityNormal)
	}

	switch calendarDays(now, ticket.ExpiresAt) {
	case 2, 1:
		emit(domain.AlertExpiryApproach, domain.PriorityNormal)
	}

	// Conflict alerts fire inline when a response flips the ticket, but a
	// full dispatch queue drops that trigger. Re-emitting here makes the
	// sweep the recovery path; the marker collapses the common case.
	if ticket.Status == domain.TicketStatusConflict {
		emit(domain.AlertConflictDetected, domain.PriorityCritical)
	}
}

// sweepExpiredToday re-emits expiry alerts for tickets the expiry sweep
// closed today, covering triggers lost to a full queue. Expired tickets
// are terminal and so invisible to the active-ticket walk.
func (s *Scanner) sweepExpiredToday(ctx context.Context, now time.Time) {
	batch := s.cfg.BatchSize
	if batch <= 0 {
		batch = 500
	}
	expired, err := s.tickets.ListExpiredOn(ctx, now, batch)
	if err != nil {
		s.logger.Error("sweep: list expired tickets", zap.Error(err))
		return
	}
	for i := range expired {
		ticket := &expired[i]
		s.offer(ctx, domain.Trigger{
			OrgID:      ticket.OrgID,
			TicketID:   ticket.ID,
			Type:       domain.AlertExpiredToday,
			Priority:   domain.PriorityCritical,
			Day:        domain.MarkerDay(now),
			DetectedAt: now,
		})
	}
}

func (s *Scanner) sweepOverdueResponses(ctx context.Context, now time.Time) {
	batch := s.cfg.BatchSize
	if batch <= 0 {
		batch = 500
	}
	overdue, err := s.responses.ListOverdue(ctx, now, batch)
	if err != nil {
		s.logger.Error("sweep: list overdue responses", zap.Error(err))
		return
	}
	for i := range overdue {
		resp := &overdue[i]
		priority := domain.PriorityHigh
		// A silent utility on or past the legal dig date blocks work
		// right now, which warrants an acknowledged alert.
		if ticket, err := s.tickets.GetByID(ctx, resp.OrgID, resp.TicketID); err == nil {
			if calendarDays(now, ticket.LegalDigDate) <= 0 {
				priority = domain.PriorityCritical
			}
		}
		s.offer(ctx, domain.Trigger{
			OrgID:       resp.OrgID,
			TicketID:    resp.TicketID,
			Type:        domain.AlertResponseOverdue,
			Priority:    priority,
			UtilityCode: resp.UtilityCode,
			Day:         domain.MarkerDay(now),
			DetectedAt:  now,
		})
	}
}

// offer emits a trigger unless today's marker already exists. The redis
// cache only short-circuits positives the Postgres markers table has
// already confirmed; a cache miss always falls through to Postgres.
func (s *Scanner) offer(ctx context.Context, trigger domain.Trigger) {
	if s.locker != nil && s.locker.SeenToday(ctx, trigger.OrgID, trigger.TicketID, trigger.MarkerType(), trigger.Day) {
		return
	}
	sent, err := s.markers.Sent(ctx, trigger.OrgID, trigger.TicketID, trigger.MarkerType(), trigger.Day)
	if err != nil {
		s.logger.Error("sweep: marker check", zap.Error(err))
		return
	}
	if sent {
		if s.locker != nil {
			s.locker.CacheSeen(ctx, trigger.OrgID, trigger.TicketID, trigger.MarkerType(), trigger.Day)
		}
		return
	}
	if !s.sink.Offer(trigger) {
		s.logger.Warn("sweep: trigger queue full",
			zap.String("ticket_id", trigger.TicketID),
			zap.String("alert_type", string(trigger.Type)),
		)
		return
	}
	s.metrics.RecordTrigger(string(trigger.Type))
}

func sameDay(a, b time.Time) bool {
	return domain.MarkerDay(a).Equal(domain.MarkerDay(b.In(a.Location())))
}

// calendarDays counts whole calendar days from now's date to t's date,
// negative when t is in the past.
func calendarDays(now, t time.Time) int {
	a := domain.MarkerDay(now)
	b := domain.MarkerDay(t.In(now.Location()))
	return int(b.Sub(a).Hours() / 24)
}

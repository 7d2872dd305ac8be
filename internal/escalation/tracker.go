package escalation

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/locate-service/internal/config"
	"github.com/spec-kit/locate-service/internal/domain"
	"github.com/spec-kit/locate-service/internal/observability"
	"github.com/spec-kit/locate-service/internal/repository"
	apperrors "github.com/spec-kit/locate-service/pkg/util/errorutil"
)

const sweepLockName = "escalation-sweep"

// DirectDispatcher sends one alert straight to a named subscriber,
// bypassing subscription resolution. The dispatch package implements it.
type DirectDispatcher interface {
	DispatchTo(ctx context.Context, trigger domain.Trigger, subscriberID string) (*domain.TicketAlert, error)
}

// Locker serializes the escalation sweep across instances.
type Locker interface {
	AcquireSweepLock(ctx context.Context, name string, ttl time.Duration) bool
	ReleaseSweepLock(ctx context.Context, name string)
}

// Tracker owns acknowledgement chains: it opens them when ack-requiring
// alerts go out, advances them on delivery receipts, and escalates the
// ones nobody confirmed in time. Each chain escalates at most one hop.
type Tracker struct {
	acks        repository.AckRepository
	alerts      repository.AlertRepository
	subscribers repository.SubscriberRepository
	dispatcher  DirectDispatcher
	locker      Locker
	cfg         config.EscalationConfig
	logger      *zap.Logger
	metrics     *observability.Metrics
	now         func() time.Time
}

// Dependencies bundles collaborators for the tracker.
type Dependencies struct {
	AckRepo        repository.AckRepository
	AlertRepo      repository.AlertRepository
	SubscriberRepo repository.SubscriberRepository
	Dispatcher     DirectDispatcher
	Locker         Locker
	Config         config.EscalationConfig
	Logger         *zap.Logger
	Metrics        *observability.Metrics
	Now            func() time.Time
}

// New constructs a tracker.
func New(deps Dependencies) *Tracker {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Tracker{
		acks:        deps.AckRepo,
		alerts:      deps.AlertRepo,
		subscribers: deps.SubscriberRepo,
		dispatcher:  deps.Dispatcher,
		locker:      deps.Locker,
		cfg:         deps.Config,
		logger:      deps.Logger,
		metrics:     deps.Metrics,
		now:         deps.Now,
	}
}

// OpenChain creates the acknowledgement record for a just-sent alert.
// Critical alerts get the short deadline. Satisfies dispatch.AckOpener.
func (t *Tracker) OpenChain(ctx context.Context, alert *domain.TicketAlert) error {
	subscriber, err := t.subscribers.GetByID(ctx, alert.SubscriberID)
	if err != nil {
		return apperrors.MapError(err)
	}
	deadline := t.now().Add(t.cfg.DeadlineFor(alert.Priority == domain.PriorityCritical))
	ack := &domain.AlertAcknowledgement{
		OrgID:              alert.OrgID,
		AlertID:            alert.ID,
		TicketID:           alert.TicketID,
		SubscriberID:       alert.SubscriberID,
		Status:             domain.AckSent,
		Deadline:           deadline,
		EscalationTargetID: subscriber.EscalationTargetID,
	}
	if err := t.acks.Create(ctx, ack); err != nil {
		return apperrors.MapError(err)
	}
	return nil
}

// RecordDelivered processes a channel delivery receipt. Missing or
// already-advanced chains are not errors; receipts arrive out of order.
func (t *Tracker) RecordDelivered(ctx context.Context, orgID, alertID string) error {
	now := t.now()
	if err := t.alerts.MarkDelivered(ctx, orgID, alertID, now); err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return apperrors.MapError(err)
	}
	t.advanceChain(ctx, orgID, alertID, domain.AckDelivered, now)
	return nil
}

// RecordOpened processes an open/read receipt.
func (t *Tracker) RecordOpened(ctx context.Context, orgID, alertID string) error {
	now := t.now()
	if err := t.alerts.MarkRead(ctx, orgID, alertID, now); err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return apperrors.MapError(err)
	}
	t.advanceChain(ctx, orgID, alertID, domain.AckOpened, now)
	return nil
}

func (t *Tracker) advanceChain(ctx context.Context, orgID, alertID string, to domain.AckStatus, at time.Time) {
	ack, err := t.acks.GetByAlert(ctx, orgID, alertID)
	if err != nil {
		return // alert never required an ack
	}
	if !ack.Status.CanTransition(to) {
		return
	}
	if err := t.acks.Advance(ctx, ack.ID, ack.Status, to, at); err != nil && !errors.Is(err, pgx.ErrNoRows) {
		t.logger.Error("advance ack chain", zap.String("ack_id", ack.ID), zap.Error(err))
	}
}

// Acknowledge closes a chain on explicit human confirmation. Only the
// subscriber the alert was addressed to may acknowledge it.
func (t *Tracker) Acknowledge(ctx context.Context, orgID, alertID, subscriberID string) (*domain.AlertAcknowledgement, error) {
	ack, err := t.acks.GetByAlert(ctx, orgID, alertID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if ack.SubscriberID != subscriberID {
		return nil, apperrors.NewForbidden("alert is addressed to another subscriber")
	}
	if !ack.Status.CanTransition(domain.AckAcknowledged) {
		return nil, apperrors.NewInvalidTransition(string(ack.Status), string(domain.AckAcknowledged), nil)
	}
	now := t.now()
	if err := t.acks.Advance(ctx, ack.ID, ack.Status, domain.AckAcknowledged, now); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewInvalidTransition(string(ack.Status), string(domain.AckAcknowledged), nil)
		}
		return nil, apperrors.MapError(err)
	}
	ack.Status = domain.AckAcknowledged
	ack.AcknowledgedAt = &now
	return ack, nil
}

// Run sweeps for overdue chains on an interval until the context ends.
func (t *Tracker) Run(ctx context.Context) {
	ticker := time.NewTicker(t.cfg.SweepInterval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.Sweep(ctx)
		}
	}
}

// Sweep escalates every chain past its deadline. The guarded
// MarkEscalated update closes each chain at most once even when the
// sweep overlaps a concurrent acknowledgement.
func (t *Tracker) Sweep(ctx context.Context) {
	if t.locker != nil {
		if !t.locker.AcquireSweepLock(ctx, sweepLockName, t.cfg.SweepInterval()) {
			return
		}
		defer t.locker.ReleaseSweepLock(ctx, sweepLockName)
	}

	now := t.now()
	overdue, err := t.acks.ListOverdue(ctx, now, 200)
	if err != nil {
		t.logger.Error("escalation sweep: list overdue", zap.Error(err))
		return
	}
	for i := range overdue {
		t.escalate(ctx, &overdue[i], now)
	}
}

func (t *Tracker) escalate(ctx context.Context, ack *domain.AlertAcknowledgement, now time.Time) {
	target := t.resolveTarget(ctx, ack)
	if target == "" {
		t.logger.Warn("escalation: no target configured",
			zap.String("ack_id", ack.ID),
			zap.String("subscriber_id", ack.SubscriberID),
		)
		return
	}

	alert, err := t.alerts.GetByID(ctx, ack.OrgID, ack.AlertID)
	if err != nil {
		t.logger.Error("escalation: load alert", zap.String("alert_id", ack.AlertID), zap.Error(err))
		return
	}

	trigger := domain.Trigger{
		OrgID:      ack.OrgID,
		TicketID:   ack.TicketID,
		Type:       domain.AlertEscalationOverflow,
		Priority:   alert.Priority.Raise(),
		Day:        domain.MarkerDay(now),
		DetectedAt: now,
	}
	escAlert, err := t.dispatcher.DispatchTo(ctx, trigger, target)
	if err != nil {
		// Chain stays open; the next sweep retries.
		t.logger.Error("escalation: dispatch", zap.String("ack_id", ack.ID), zap.Error(err))
		return
	}

	if err := t.acks.MarkEscalated(ctx, ack.ID, target, escAlert.ID, now); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Acknowledged between sweep listing and the claim.
			return
		}
		t.logger.Error("escalation: mark escalated", zap.String("ack_id", ack.ID), zap.Error(err))
		return
	}
	t.metrics.RecordEscalation()
	t.logger.Info("escalated unacknowledged alert",
		zap.String("ack_id", ack.ID),
		zap.String("ticket_id", ack.TicketID),
		zap.String("target_id", target),
	)
}

// resolveTarget prefers the target captured when the chain opened, then
// the subscriber's current setting.
func (t *Tracker) resolveTarget(ctx context.Context, ack *domain.AlertAcknowledgement) string {
	if ack.EscalationTargetID != nil && *ack.EscalationTargetID != "" {
		return *ack.EscalationTargetID
	}
	subscriber, err := t.subscribers.GetByID(ctx, ack.SubscriberID)
	if err != nil || subscriber.EscalationTargetID == nil {
		return ""
	}
	return *subscriber.EscalationTargetID
}

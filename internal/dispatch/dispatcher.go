package dispatch

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/locate-service/internal/config"
	"github.com/spec-kit/locate-service/internal/domain"
	"github.com/spec-kit/locate-service/internal/gateway"
	"github.com/spec-kit/locate-service/internal/observability"
	"github.com/spec-kit/locate-service/internal/repository"
	apperrors "github.com/spec-kit/locate-service/pkg/util/errorutil"
)

// AckOpener creates an acknowledgement chain for a sent alert. The
// escalation tracker implements it; decoupled by interface so the
// dispatcher does not import the tracker.
type AckOpener interface {
	OpenChain(ctx context.Context, alert *domain.TicketAlert) error
}

// RateLimiter counts sends per channel within a rolling window. The redis
// client implements it; a nil limiter disables the cap.
type RateLimiter interface {
	IncrChannelWindow(ctx context.Context, channel string, window time.Duration) (int64, error)
}

// Dispatcher fans one trigger out to every eligible (subscriber, channel)
// unit and drives the gateway sends with bounded retries.
type Dispatcher struct {
	tickets       repository.TicketRepository
	subscriptions repository.SubscriptionRepository
	subscribers   repository.SubscriberRepository
	alerts        repository.AlertRepository
	markers       repository.MarkerRepository
	gateway       gateway.Gateway
	acks          AckOpener
	limiter       RateLimiter
	cfg           config.DispatchConfig
	logger        *zap.Logger
	metrics       *observability.Metrics
	now           func() time.Time

	semaphores map[domain.Channel]chan struct{}
	sleep      func(ctx context.Context, d time.Duration)
}

// DispatcherDependencies bundles collaborators for the dispatcher.
type DispatcherDependencies struct {
	TicketRepo       repository.TicketRepository
	SubscriptionRepo repository.SubscriptionRepository
	SubscriberRepo   repository.SubscriberRepository
	AlertRepo        repository.AlertRepository
	MarkerRepo       repository.MarkerRepository
	Gateway          gateway.Gateway
	Acks             AckOpener
	Limiter          RateLimiter
	Config           config.DispatchConfig
	Logger           *zap.Logger
	Metrics          *observability.Metrics
	Now              func() time.Time
}

// NewDispatcher constructs the dispatcher.
func NewDispatcher(deps DispatcherDependencies) *Dispatcher {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	perChannel := deps.Config.PerChannelConcurrency
	if perChannel <= 0 {
		perChannel = 4
	}
	semaphores := make(map[domain.Channel]chan struct{}, len(domain.AllChannels))
	for _, ch := range domain.AllChannels {
		semaphores[ch] = make(chan struct{}, perChannel)
	}
	return &Dispatcher{
		tickets:       deps.TicketRepo,
		subscriptions: deps.SubscriptionRepo,
		subscribers:   deps.SubscriberRepo,
		alerts:        deps.AlertRepo,
		markers:       deps.MarkerRepo,
		gateway:       gateway.WithTimeout(deps.Gateway, deps.Config.GatewayTimeout()),
		acks:          deps.Acks,
		limiter:       deps.Limiter,
		cfg:           deps.Config,
		logger:        deps.Logger,
		metrics:       deps.Metrics,
		now:           deps.Now,
		semaphores:    semaphores,
		sleep: func(ctx context.Context, d time.Duration) {
			timer := time.NewTimer(d)
			defer timer.Stop()
			select {
			case <-ctx.Done():
			case <-timer.C:
			}
		},
	}
}

// SetAckOpener wires the acknowledgement tracker in after construction.
// The tracker also depends on the dispatcher for its escalation sends, so
// one side has to connect late.
func (d *Dispatcher) SetAckOpener(acks AckOpener) {
	d.acks = acks
}

// HandleTrigger processes one trigger end to end. Unit failures are
// isolated: one subscriber's or channel's failure never blocks the rest.
func (d *Dispatcher) HandleTrigger(ctx context.Context, trigger domain.Trigger) {
	now := d.now()

	ticket, err := d.tickets.GetByID(ctx, trigger.OrgID, trigger.TicketID)
	if err != nil {
		d.logger.Error("dispatch: load ticket", zap.String("ticket_id", trigger.TicketID), zap.Error(err))
		return
	}
	// Cancellation halts emission; expiry alerts still go out for a
	// just-expired ticket.
	if !ticket.Active() && trigger.Type != domain.AlertExpiredToday {
		return
	}

	units := d.resolveUnits(ctx, trigger, ticket, now)
	if len(units) == 0 {
		return
	}

	// Claim today's marker before fanning out. The insert's unique index
	// arbitrates between the inline trigger and the sweep's re-emission:
	// exactly one worker wins, the loser drops the trigger. The claim is
	// released again if every channel fails, so the next sweep retries.
	claimed, err := d.markers.Claim(ctx, trigger.OrgID, trigger.TicketID, trigger.MarkerType(), trigger.Day)
	if err != nil {
		d.logger.Error("dispatch: marker claim", zap.Error(err))
		return
	}
	if !claimed {
		return
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		delivered int
		ackOpened = make(map[string]bool, len(units))
	)
	for _, unit := range units {
		wg.Add(1)
		go func(u dispatchUnit) {
			defer wg.Done()
			alert, err := d.runUnit(ctx, trigger, u, renderMessage(trigger, ticket))
			if err != nil || alert == nil {
				return
			}
			mu.Lock()
			delivered++
			first := !ackOpened[u.subscriber.ID]
			ackOpened[u.subscriber.ID] = true
			mu.Unlock()
			if !trigger.Type.RequiresAck(trigger.Priority) || d.acks == nil || !first {
				return
			}
			if err := d.acks.OpenChain(ctx, alert); err != nil {
				d.logger.Error("dispatch: open ack chain", zap.String("alert_id", alert.ID), zap.Error(err))
			}
		}(unit)
	}
	wg.Wait()

	if delivered == 0 {
		if err := d.markers.Release(ctx, trigger.OrgID, trigger.TicketID, trigger.MarkerType(), trigger.Day); err != nil {
			d.logger.Error("dispatch: marker release", zap.Error(err))
		}
	}
}

type dispatchUnit struct {
	subscriber *domain.Subscriber
	channel    domain.Channel
}

// resolveUnits expands a trigger into (subscriber, channel) pairs honoring
// scope, opt-in, quiet windows, and role channel defaults.
func (d *Dispatcher) resolveUnits(ctx context.Context, trigger domain.Trigger, ticket *domain.Ticket, now time.Time) []dispatchUnit {
	subs, err := d.subscriptions.ListEnabled(ctx, trigger.OrgID)
	if err != nil {
		d.logger.Error("dispatch: list subscriptions", zap.Error(err))
		return nil
	}

	var projectRef *string
	if ticket != nil {
		projectRef = ticket.ProjectRef
	}

	seen := make(map[string]bool)
	var units []dispatchUnit
	for i := range subs {
		sub := &subs[i]
		if !sub.WantsType(trigger.Type) || !sub.Covers(projectRef) {
			continue
		}
		if sub.Quiet != nil && sub.Quiet.Contains(now) && !trigger.Type.AlwaysAlert() {
			continue
		}

		subscriber, err := d.subscribers.GetByID(ctx, sub.SubscriberID)
		if err != nil {
			d.logger.Warn("dispatch: load subscriber", zap.String("subscriber_id", sub.SubscriberID), zap.Error(err))
			continue
		}
		if !subscriber.IsActive {
			continue
		}

		channels := sub.Channels
		if len(channels) == 0 {
			channels = subscriber.Role.DefaultChannels()
		}
		for _, ch := range channels {
			key := subscriber.ID + "|" + string(ch)
			if seen[key] || subscriber.Recipient(ch) == "" {
				continue
			}
			seen[key] = true
			units = append(units, dispatchUnit{subscriber: subscriber, channel: ch})
		}
	}
	return units
}

// runUnit performs the persist-then-send protocol for one unit with
// bounded retries. The alert row is written before the gateway call so a
// crash mid-dispatch never produces an unrecorded external send.
func (d *Dispatcher) runUnit(ctx context.Context, trigger domain.Trigger, unit dispatchUnit, msg gateway.Message) (*domain.TicketAlert, error) {
	sem := d.semaphores[unit.channel]
	select {
	case sem <- struct{}{}:
		defer func() { <-sem }()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if err := d.waitForChannelSlot(ctx, unit.channel); err != nil {
		return nil, err
	}

	maxAttempts := d.cfg.MaxRetries
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		alert := &domain.TicketAlert{
			OrgID:        trigger.OrgID,
			TicketID:     trigger.TicketID,
			Type:         trigger.Type,
			Channel:      unit.channel,
			SubscriberID: unit.subscriber.ID,
			Attempt:      attempt,
			Priority:     trigger.Priority,
			Message:      msg.Subject,
			Status:       domain.AlertPending,
		}
		if err := d.alerts.Create(ctx, alert); err != nil {
			return nil, apperrors.MapError(err)
		}
		msg.AlertID = alert.ID

		deliveryID, sendErr := d.gateway.Send(ctx, unit.channel, unit.subscriber.Recipient(unit.channel), msg)
		now := d.now()
		if sendErr == nil {
			if err := d.alerts.MarkSent(ctx, alert.ID, deliveryID, now); err != nil {
				return nil, apperrors.MapError(err)
			}
			alert.Status = domain.AlertSent
			alert.DeliveryID = &deliveryID
			alert.SentAt = &now
			d.metrics.RecordDispatch(string(unit.channel), "sent")
			return alert, nil
		}

		lastErr = sendErr
		if err := d.alerts.MarkFailed(ctx, alert.ID, sendErr.Error(), now); err != nil && !errors.Is(err, pgx.ErrNoRows) {
			d.logger.Error("dispatch: mark failed", zap.String("alert_id", alert.ID), zap.Error(err))
		}
		d.metrics.RecordDispatch(string(unit.channel), "failed")
		d.logger.Warn("dispatch attempt failed",
			zap.String("ticket_id", trigger.TicketID),
			zap.String("channel", string(unit.channel)),
			zap.Int("attempt", attempt),
			zap.Error(sendErr),
		)

		if attempt < maxAttempts {
			backoff := d.cfg.RetryBackoff() * time.Duration(1<<(attempt-1))
			d.sleep(ctx, backoff)
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
		}
	}

	d.recordPermanentFailure(ctx, trigger, unit, lastErr)
	return nil, apperrors.NewDispatchFailure(string(unit.channel), lastErr.Error())
}

// waitForChannelSlot blocks until the per-channel rolling-minute counter
// has room. Counter errors fail open: losing the cap beats losing the
// alert.
func (d *Dispatcher) waitForChannelSlot(ctx context.Context, ch domain.Channel) error {
	limit := int64(d.cfg.ChannelRatePerMinute)
	if d.limiter == nil || limit <= 0 {
		return nil
	}
	for {
		count, err := d.limiter.IncrChannelWindow(ctx, string(ch), time.Minute)
		if err != nil {
			d.logger.Warn("dispatch: rate counter unavailable", zap.String("channel", string(ch)), zap.Error(err))
			return nil
		}
		if count <= limit {
			return nil
		}
		d.metrics.RecordDispatch(string(ch), "throttled")
		d.sleep(ctx, time.Second)
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// recordPermanentFailure surfaces an exhausted unit to the subscriber's
// in-app feed so delivery failures are never silently dropped.
func (d *Dispatcher) recordPermanentFailure(ctx context.Context, trigger domain.Trigger, unit dispatchUnit, cause error) {
	if unit.channel == domain.ChannelInApp {
		// The feed itself failed; nothing further to surface to.
		return
	}
	reason := "unknown"
	if cause != nil {
		reason = cause.Error()
	}
	now := d.now()
	notice := &domain.TicketAlert{
		OrgID:        trigger.OrgID,
		TicketID:     trigger.TicketID,
		Type:         domain.AlertDeliveryFailure,
		Channel:      domain.ChannelInApp,
		SubscriberID: unit.subscriber.ID,
		Attempt:      1,
		Priority:     domain.PriorityNormal,
		Message:      "delivery on " + string(unit.channel) + " failed: " + reason,
		Status:       domain.AlertPending,
	}
	if err := d.alerts.Create(ctx, notice); err != nil {
		d.logger.Error("dispatch: record delivery failure", zap.Error(err))
		return
	}
	if err := d.alerts.MarkSent(ctx, notice.ID, "in-app", now); err != nil {
		d.logger.Error("dispatch: mark delivery failure", zap.Error(err))
	}
}

// DispatchTo sends one alert directly to a named subscriber, bypassing
// subscription resolution. The escalation tracker uses it to reach the
// escalation target. Returns the sent alert for chain linkage.
func (d *Dispatcher) DispatchTo(ctx context.Context, trigger domain.Trigger, subscriberID string) (*domain.TicketAlert, error) {
	subscriber, err := d.subscribers.GetByID(ctx, subscriberID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	ticket, err := d.tickets.GetByID(ctx, trigger.OrgID, trigger.TicketID)
	if err != nil {
		ticket = nil
	}
	msg := renderMessage(trigger, ticket)

	var firstErr error
	var sent *domain.TicketAlert
	for _, ch := range subscriber.Role.DefaultChannels() {
		if subscriber.Recipient(ch) == "" {
			continue
		}
		alert, err := d.runUnit(ctx, trigger, dispatchUnit{subscriber: subscriber, channel: ch}, msg)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if sent == nil {
			sent = alert
		}
	}
	if sent == nil {
		if firstErr == nil {
			firstErr = apperrors.NewDispatchFailure("all", "no reachable channel for subscriber")
		}
		return nil, firstErr
	}
	return sent, nil
}

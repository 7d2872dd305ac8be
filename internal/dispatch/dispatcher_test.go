package dispatch

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/spec-kit/locate-service/internal/config"
	"github.com/spec-kit/locate-service/internal/domain"
)

var dispatchNow = time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)

type dispatcherFixture struct {
	dispatcher  *Dispatcher
	tickets     *stubTicketRepo
	subs        *stubSubscriptionRepo
	subscribers *stubSubscriberRepo
	alerts      *fakeAlertRepo
	markers     *fakeMarkerRepo
	gateway     *scriptedGateway
	acks        *fakeAckOpener
}

func newDispatcherFixture() *dispatcherFixture {
	phone := "+13045550100"
	device := "device-token-1"

	f := &dispatcherFixture{
		tickets: &stubTicketRepo{tickets: map[string]*domain.Ticket{
			"tkt-1": {
				ID: "tkt-1", OrgID: "org-1", Number: "W20240301-ABCD1234",
				Status:       domain.TicketStatusPending,
				LegalDigDate: dispatchNow.AddDate(0, 0, 2),
				UpdateBy:     dispatchNow.AddDate(0, 0, 15),
				ExpiresAt:    dispatchNow.AddDate(0, 0, 17),
			},
		}},
		subscribers: &stubSubscriberRepo{subscribers: map[string]*domain.Subscriber{
			"sub-field": {
				ID: "sub-field", OrgID: "org-1", Email: "crew@example.com",
				Phone: &phone, DeviceToken: &device,
				Role: domain.RoleField, IsActive: true,
			},
			"sub-office": {
				ID: "sub-office", OrgID: "org-1", Email: "office@example.com",
				Role: domain.RoleOffice, IsActive: true,
			},
		}},
		subs:    &stubSubscriptionRepo{},
		alerts:  &fakeAlertRepo{},
		markers: &fakeMarkerRepo{},
		gateway: &scriptedGateway{},
		acks:    &fakeAckOpener{},
	}
	f.dispatcher = NewDispatcher(DispatcherDependencies{
		TicketRepo:       f.tickets,
		SubscriptionRepo: f.subs,
		SubscriberRepo:   f.subscribers,
		AlertRepo:        f.alerts,
		MarkerRepo:       f.markers,
		Gateway:          f.gateway,
		Acks:             f.acks,
		Config: config.DispatchConfig{
			Workers:               1,
			PerChannelConcurrency: 2,
			MaxRetries:            2,
		},
		Now: func() time.Time { return dispatchNow },
	})
	return f
}

func subscription(subscriberID string, mutate ...func(*domain.AlertSubscription)) domain.AlertSubscription {
	sub := domain.AlertSubscription{
		ID:           "subn-" + subscriberID,
		OrgID:        "org-1",
		SubscriberID: subscriberID,
		Scope:        domain.ScopeOrg,
		Enabled:      true,
	}
	for _, m := range mutate {
		m(&sub)
	}
	return sub
}

func routineTrigger(t domain.AlertType, p domain.AlertPriority) domain.Trigger {
	return domain.Trigger{
		OrgID:      "org-1",
		TicketID:   "tkt-1",
		Type:       t,
		Priority:   p,
		Day:        domain.MarkerDay(dispatchNow),
		DetectedAt: dispatchNow,
	}
}

func TestRunUnitWaitsForChannelRateSlot(t *testing.T) {
	t.Parallel()
	f := newDispatcherFixture()
	f.subs.enabled = []domain.AlertSubscription{subscription("sub-office")}

	// First poll finds the minute window saturated; the second has room.
	limiter := &scriptedLimiter{counts: []int64{2, 1}}
	f.dispatcher.limiter = limiter
	f.dispatcher.cfg.ChannelRatePerMinute = 1
	var slept []time.Duration
	f.dispatcher.sleep = func(_ context.Context, d time.Duration) { slept = append(slept, d) }

	f.dispatcher.HandleTrigger(context.Background(), routineTrigger(domain.AlertDeadline48H, domain.PriorityHigh))

	if got := len(f.gateway.sent()); got != 1 {
		t.Fatalf("gateway sends = %d, want 1", got)
	}
	if limiter.calls != 2 {
		t.Errorf("rate counter polls = %d, want 2", limiter.calls)
	}
	if len(slept) != 1 || slept[0] != time.Second {
		t.Errorf("throttle sleeps = %v, want one of 1s", slept)
	}
}

func TestRunUnitRateCounterFailsOpen(t *testing.T) {
	t.Parallel()
	f := newDispatcherFixture()
	f.subs.enabled = []domain.AlertSubscription{subscription("sub-office")}

	f.dispatcher.limiter = &scriptedLimiter{err: errGatewayDown}
	f.dispatcher.cfg.ChannelRatePerMinute = 1

	f.dispatcher.HandleTrigger(context.Background(), routineTrigger(domain.AlertDeadline48H, domain.PriorityHigh))

	// A broken counter must not block delivery.
	if got := len(f.gateway.sent()); got != 1 {
		t.Fatalf("gateway sends = %d, want 1", got)
	}
}

func TestHandleTriggerFanOut(t *testing.T) {
	t.Parallel()
	f := newDispatcherFixture()
	f.subs.enabled = []domain.AlertSubscription{subscription("sub-field")}

	f.dispatcher.HandleTrigger(context.Background(), routineTrigger(domain.AlertDeadline48H, domain.PriorityHigh))

	// Field role defaults are SMS and PUSH.
	sends := f.gateway.sent()
	if len(sends) != 2 {
		t.Fatalf("gateway sends = %d, want 2", len(sends))
	}
	channels := map[domain.Channel]bool{}
	for _, s := range sends {
		channels[s.channel] = true
	}
	if !channels[domain.ChannelSMS] || !channels[domain.ChannelPush] {
		t.Errorf("sent on %v, want SMS and PUSH", channels)
	}

	if got := len(f.alerts.byStatus(domain.AlertSent)); got != 2 {
		t.Errorf("SENT alert rows = %d, want 2", got)
	}

	marked, _ := f.markers.Sent(context.Background(), "org-1", "tkt-1",
		string(domain.AlertDeadline48H), domain.MarkerDay(dispatchNow))
	if !marked {
		t.Error("dedup marker not written after successful send")
	}
	// A routine HIGH deadline warning needs no acknowledgement.
	if f.acks.count() != 0 {
		t.Errorf("ack chains opened = %d, want 0", f.acks.count())
	}
}

func TestHandleTriggerSkipsInactiveSubscriber(t *testing.T) {
	t.Parallel()
	f := newDispatcherFixture()
	f.subscribers.subscribers["sub-field"].IsActive = false
	f.subs.enabled = []domain.AlertSubscription{subscription("sub-field")}

	f.dispatcher.HandleTrigger(context.Background(), routineTrigger(domain.AlertDeadline48H, domain.PriorityHigh))

	if got := len(f.gateway.sent()); got != 0 {
		t.Errorf("gateway sends = %d for deactivated subscriber, want 0", got)
	}
}

func TestHandleTriggerScopeFilter(t *testing.T) {
	t.Parallel()
	f := newDispatcherFixture()
	other := "PRJ-OTHER"
	f.subs.enabled = []domain.AlertSubscription{
		subscription("sub-field", func(s *domain.AlertSubscription) {
			s.Scope = domain.ScopeProject
			s.ProjectRef = &other
		}),
	}

	// The ticket carries no project ref, so a project-scoped subscription
	// does not cover it.
	f.dispatcher.HandleTrigger(context.Background(), routineTrigger(domain.AlertDeadline48H, domain.PriorityHigh))

	if got := len(f.gateway.sent()); got != 0 {
		t.Errorf("gateway sends = %d outside subscription scope, want 0", got)
	}
}

func TestHandleTriggerQuietWindow(t *testing.T) {
	t.Parallel()
	f := newDispatcherFixture()
	f.subs.enabled = []domain.AlertSubscription{
		subscription("sub-field", func(s *domain.AlertSubscription) {
			s.Quiet = &domain.QuietWindow{Start: "11:00", End: "13:00"}
		}),
	}

	f.dispatcher.HandleTrigger(context.Background(), routineTrigger(domain.AlertDeadline48H, domain.PriorityHigh))
	if got := len(f.gateway.sent()); got != 0 {
		t.Fatalf("routine trigger sent %d messages inside quiet window, want 0", got)
	}

	// CONFLICT_DETECTED bypasses quiet suppression.
	f.dispatcher.HandleTrigger(context.Background(), routineTrigger(domain.AlertConflictDetected, domain.PriorityCritical))
	if got := len(f.gateway.sent()); got == 0 {
		t.Error("critical conflict alert suppressed by quiet window")
	}
}

func TestHandleTriggerDeduplicates(t *testing.T) {
	t.Parallel()
	f := newDispatcherFixture()
	f.subs.enabled = []domain.AlertSubscription{subscription("sub-field")}

	trigger := routineTrigger(domain.AlertDeadline48H, domain.PriorityHigh)
	f.dispatcher.HandleTrigger(context.Background(), trigger)
	first := len(f.gateway.sent())
	if first == 0 {
		t.Fatal("first trigger sent nothing")
	}

	// Same trigger again on the same day: the marker stops the fan-out.
	f.dispatcher.HandleTrigger(context.Background(), trigger)
	if got := len(f.gateway.sent()); got != first {
		t.Errorf("re-dispatch sent %d extra messages", got-first)
	}
}

func TestHandleTriggerConcurrentDuplicates(t *testing.T) {
	t.Parallel()
	f := newDispatcherFixture()
	f.subs.enabled = []domain.AlertSubscription{subscription("sub-office")}

	// The inline conflict trigger and the sweep's re-emission can land on
	// two workers at once; the marker claim lets exactly one fan out.
	trigger := routineTrigger(domain.AlertConflictDetected, domain.PriorityCritical)
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.dispatcher.HandleTrigger(context.Background(), trigger)
		}()
	}
	wg.Wait()

	// Office defaults are EMAIL and IN_APP: one winner, two channels.
	if got := len(f.gateway.sent()); got != 2 {
		t.Errorf("gateway sends = %d, want 2 from a single winner", got)
	}
	if got := len(f.alerts.byStatus(domain.AlertSent)); got != 2 {
		t.Errorf("SENT alert rows = %d, want 2", got)
	}
	if f.acks.count() != 1 {
		t.Errorf("ack chains opened = %d, want 1", f.acks.count())
	}
}

func TestHandleTriggerTerminalTicket(t *testing.T) {
	t.Parallel()
	f := newDispatcherFixture()
	f.tickets.tickets["tkt-1"].Status = domain.TicketStatusCancelled
	f.subs.enabled = []domain.AlertSubscription{subscription("sub-field")}

	f.dispatcher.HandleTrigger(context.Background(), routineTrigger(domain.AlertDeadline48H, domain.PriorityHigh))
	if got := len(f.gateway.sent()); got != 0 {
		t.Errorf("cancelled ticket sent %d messages, want 0", got)
	}

	// Expiry notices still go out for a ticket that just went terminal.
	f.tickets.tickets["tkt-1"].Status = domain.TicketStatusExpired
	f.dispatcher.HandleTrigger(context.Background(), routineTrigger(domain.AlertExpiredToday, domain.PriorityCritical))
	if got := len(f.gateway.sent()); got == 0 {
		t.Error("EXPIRED_TODAY suppressed on the expired ticket it describes")
	}
}

func TestRunUnitRetriesThenSucceeds(t *testing.T) {
	t.Parallel()
	f := newDispatcherFixture()
	f.gateway.failFirst = map[domain.Channel]int{domain.ChannelSMS: 1}
	f.subs.enabled = []domain.AlertSubscription{
		subscription("sub-field", func(s *domain.AlertSubscription) {
			s.Channels = []domain.Channel{domain.ChannelSMS}
		}),
	}

	f.dispatcher.HandleTrigger(context.Background(), routineTrigger(domain.AlertDeadline48H, domain.PriorityHigh))

	// Retry is a fresh row, never an overwrite: attempt 1 FAILED stays.
	failed := f.alerts.byStatus(domain.AlertFailed)
	if len(failed) != 1 || failed[0].Attempt != 1 {
		t.Fatalf("failed rows = %+v, want one row at attempt 1", failed)
	}
	sent := f.alerts.byStatus(domain.AlertSent)
	if len(sent) != 1 || sent[0].Attempt != 2 {
		t.Fatalf("sent rows = %+v, want one row at attempt 2", sent)
	}
	if sent[0].DeliveryID == nil {
		t.Error("sent row missing delivery id")
	}
}

func TestRunUnitPermanentFailure(t *testing.T) {
	t.Parallel()
	f := newDispatcherFixture()
	f.gateway.failFirst = map[domain.Channel]int{domain.ChannelSMS: 10}
	f.subs.enabled = []domain.AlertSubscription{
		subscription("sub-field", func(s *domain.AlertSubscription) {
			s.Channels = []domain.Channel{domain.ChannelSMS}
		}),
	}

	f.dispatcher.HandleTrigger(context.Background(), routineTrigger(domain.AlertDeadline48H, domain.PriorityHigh))

	if got := len(f.alerts.byStatus(domain.AlertFailed)); got != 2 {
		t.Errorf("failed rows = %d, want 2 (max retries)", got)
	}

	// Exhaustion surfaces as an in-app notice so the failure is visible.
	notices := f.alerts.byType(domain.AlertDeliveryFailure)
	if len(notices) != 1 {
		t.Fatalf("delivery failure notices = %d, want 1", len(notices))
	}
	n := notices[0]
	if n.Channel != domain.ChannelInApp || n.Status != domain.AlertSent || n.SubscriberID != "sub-field" {
		t.Errorf("notice = %+v, want SENT in-app notice for sub-field", n)
	}

	// Nothing was delivered, so the claimed marker is released and the
	// next sweep retries.
	marked, _ := f.markers.Sent(context.Background(), "org-1", "tkt-1",
		string(domain.AlertDeadline48H), domain.MarkerDay(dispatchNow))
	if marked {
		t.Error("dedup marker written despite permanent failure")
	}
}

func TestAckChainOpenedOncePerSubscriber(t *testing.T) {
	t.Parallel()
	f := newDispatcherFixture()
	// Office defaults are EMAIL and IN_APP, both reachable, so the same
	// subscriber succeeds on two channels.
	f.subs.enabled = []domain.AlertSubscription{subscription("sub-office")}

	f.dispatcher.HandleTrigger(context.Background(), routineTrigger(domain.AlertConflictDetected, domain.PriorityCritical))

	if got := len(f.gateway.sent()); got != 2 {
		t.Fatalf("gateway sends = %d, want 2", got)
	}
	if f.acks.count() != 1 {
		t.Errorf("ack chains opened = %d, want exactly 1 per subscriber", f.acks.count())
	}
}

func TestDispatchTo(t *testing.T) {
	t.Parallel()
	f := newDispatcherFixture()

	trigger := routineTrigger(domain.AlertEscalationOverflow, domain.PriorityCritical)
	alert, err := f.dispatcher.DispatchTo(context.Background(), trigger, "sub-field")
	if err != nil {
		t.Fatalf("DispatchTo: %v", err)
	}
	if alert.SubscriberID != "sub-field" || alert.Status != domain.AlertSent {
		t.Errorf("alert = %+v, want SENT alert for sub-field", alert)
	}
	if got := len(f.gateway.sent()); got != 2 {
		t.Errorf("gateway sends = %d, want both field default channels", got)
	}
}

func TestDispatchToUnreachableSubscriber(t *testing.T) {
	t.Parallel()
	f := newDispatcherFixture()
	// Field role without phone or device token has no reachable channel.
	f.subscribers.subscribers["sub-lost"] = &domain.Subscriber{
		ID: "sub-lost", OrgID: "org-1", Role: domain.RoleField, IsActive: true,
	}

	_, err := f.dispatcher.DispatchTo(context.Background(),
		routineTrigger(domain.AlertEscalationOverflow, domain.PriorityCritical), "sub-lost")
	if err == nil {
		t.Fatal("DispatchTo succeeded with no reachable channel")
	}
}

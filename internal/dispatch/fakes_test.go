package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/locate-service/internal/domain"
	"github.com/spec-kit/locate-service/internal/gateway"
	"github.com/spec-kit/locate-service/internal/repository"
)

// stubTicketRepo embeds the interface so only the methods the dispatcher
// touches need bodies; anything else panics loudly.
type stubTicketRepo struct {
	repository.TicketRepository
	tickets map[string]*domain.Ticket
}

func (s *stubTicketRepo) GetByID(_ context.Context, orgID, id string) (*domain.Ticket, error) {
	t, ok := s.tickets[id]
	if !ok || t.OrgID != orgID {
		return nil, pgx.ErrNoRows
	}
	copied := *t
	return &copied, nil
}

type stubSubscriptionRepo struct {
	repository.SubscriptionRepository
	enabled []domain.AlertSubscription
}

func (s *stubSubscriptionRepo) ListEnabled(context.Context, string) ([]domain.AlertSubscription, error) {
	return s.enabled, nil
}

type stubSubscriberRepo struct {
	repository.SubscriberRepository
	subscribers map[string]*domain.Subscriber
}

func (s *stubSubscriberRepo) GetByID(_ context.Context, id string) (*domain.Subscriber, error) {
	sub, ok := s.subscribers[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *sub
	return &copied, nil
}

type fakeAlertRepo struct {
	mu     sync.Mutex
	seq    int
	alerts []*domain.TicketAlert
}

func (r *fakeAlertRepo) Create(_ context.Context, alert *domain.TicketAlert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	alert.ID = fmt.Sprintf("alert-%d", r.seq)
	alert.CreatedAt = time.Now()
	copied := *alert
	r.alerts = append(r.alerts, &copied)
	return nil
}

func (r *fakeAlertRepo) GetByID(_ context.Context, orgID, id string) (*domain.TicketAlert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.alerts {
		if a.ID == id && a.OrgID == orgID {
			copied := *a
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeAlertRepo) MarkSent(_ context.Context, id, deliveryID string, at time.Time) error {
	return r.advance(id, domain.AlertPending, func(a *domain.TicketAlert) {
		a.Status = domain.AlertSent
		a.DeliveryID = &deliveryID
		a.SentAt = &at
	})
}

func (r *fakeAlertRepo) MarkFailed(_ context.Context, id, reason string, at time.Time) error {
	return r.advance(id, domain.AlertPending, func(a *domain.TicketAlert) {
		a.Status = domain.AlertFailed
		a.FailureReason = &reason
		a.FailedAt = &at
	})
}

func (r *fakeAlertRepo) MarkDelivered(_ context.Context, _, id string, at time.Time) error {
	return r.advance(id, domain.AlertSent, func(a *domain.TicketAlert) {
		a.Status = domain.AlertDelivered
		a.DeliveredAt = &at
	})
}

func (r *fakeAlertRepo) MarkRead(_ context.Context, _, id string, at time.Time) error {
	return r.advance(id, domain.AlertDelivered, func(a *domain.TicketAlert) {
		a.Status = domain.AlertRead
		a.ReadAt = &at
	})
}

func (r *fakeAlertRepo) advance(id string, from domain.AlertStatus, apply func(*domain.TicketAlert)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.alerts {
		if a.ID == id && a.Status == from {
			apply(a)
			return nil
		}
	}
	return pgx.ErrNoRows
}

func (r *fakeAlertRepo) ListByTicket(_ context.Context, orgID, ticketID string, _, _ *time.Time) ([]domain.TicketAlert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.TicketAlert
	for _, a := range r.alerts {
		if a.OrgID == orgID && a.TicketID == ticketID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (r *fakeAlertRepo) ListFeed(_ context.Context, orgID, subscriberID string, _ int) ([]domain.TicketAlert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.TicketAlert
	for _, a := range r.alerts {
		if a.OrgID == orgID && a.SubscriberID == subscriberID && a.Channel == domain.ChannelInApp {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (r *fakeAlertRepo) byStatus(status domain.AlertStatus) []domain.TicketAlert {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.TicketAlert
	for _, a := range r.alerts {
		if a.Status == status {
			out = append(out, *a)
		}
	}
	return out
}

func (r *fakeAlertRepo) byType(t domain.AlertType) []domain.TicketAlert {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.TicketAlert
	for _, a := range r.alerts {
		if a.Type == t {
			out = append(out, *a)
		}
	}
	return out
}

type fakeMarkerRepo struct {
	mu   sync.Mutex
	sent map[string]bool
}

func markerKey(orgID, ticketID, alertType string, day time.Time) string {
	return orgID + "|" + ticketID + "|" + alertType + "|" + day.Format("2006-01-02")
}

func (r *fakeMarkerRepo) Sent(_ context.Context, orgID, ticketID, alertType string, day time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sent[markerKey(orgID, ticketID, alertType, day)], nil
}

func (r *fakeMarkerRepo) Claim(_ context.Context, orgID, ticketID, alertType string, day time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := markerKey(orgID, ticketID, alertType, day)
	if r.sent[key] {
		return false, nil
	}
	if r.sent == nil {
		r.sent = map[string]bool{}
	}
	r.sent[key] = true
	return true, nil
}

func (r *fakeMarkerRepo) Release(_ context.Context, orgID, ticketID, alertType string, day time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sent, markerKey(orgID, ticketID, alertType, day))
	return nil
}

type sendRecord struct {
	channel   domain.Channel
	recipient string
	subject   string
}

// scriptedGateway fails the first failFirst sends on a channel, then
// succeeds.
type scriptedGateway struct {
	mu        sync.Mutex
	seq       int
	failFirst map[domain.Channel]int
	sends     []sendRecord
}

var errGatewayDown = errors.New("provider unavailable")

func (g *scriptedGateway) Send(_ context.Context, channel domain.Channel, recipient string, msg gateway.Message) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failFirst[channel] > 0 {
		g.failFirst[channel]--
		return "", errGatewayDown
	}
	g.seq++
	g.sends = append(g.sends, sendRecord{channel: channel, recipient: recipient, subject: msg.Subject})
	return fmt.Sprintf("dlv-%d", g.seq), nil
}

func (g *scriptedGateway) sent() []sendRecord {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]sendRecord(nil), g.sends...)
}

// scriptedLimiter returns the scripted counts in order, then 1 forever.
type scriptedLimiter struct {
	mu     sync.Mutex
	counts []int64
	calls  int
	err    error
}

func (l *scriptedLimiter) IncrChannelWindow(_ context.Context, _ string, _ time.Duration) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	if l.err != nil {
		return 0, l.err
	}
	if len(l.counts) == 0 {
		return 1, nil
	}
	count := l.counts[0]
	l.counts = l.counts[1:]
	return count, nil
}

type fakeAckOpener struct {
	mu     sync.Mutex
	opened []domain.TicketAlert
}

func (f *fakeAckOpener) OpenChain(_ context.Context, alert *domain.TicketAlert) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opened = append(f.opened, *alert)
	return nil
}

func (f *fakeAckOpener) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.opened)
}

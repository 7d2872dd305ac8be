package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/locate-service/internal/domain"
	"github.com/spec-kit/locate-service/internal/repository"
)

// fakeTx runs the function directly; the in-memory repositories have no
// transaction semantics to coordinate.
type fakeTx struct{}

func (fakeTx) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type fakeSink struct {
	mu       sync.Mutex
	triggers []domain.Trigger
	full     bool
}

func (s *fakeSink) Offer(trigger domain.Trigger) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.full {
		return false
	}
	s.triggers = append(s.triggers, trigger)
	return true
}

func (s *fakeSink) byType(t domain.AlertType) []domain.Trigger {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Trigger
	for _, tr := range s.triggers {
		if tr.Type == t {
			out = append(out, tr)
		}
	}
	return out
}

type fakeTicketRepo struct {
	mu      sync.Mutex
	seq     int
	tickets map[string]domain.Ticket
}

func newFakeTicketRepo() *fakeTicketRepo {
	return &fakeTicketRepo{tickets: map[string]domain.Ticket{}}
}

func (r *fakeTicketRepo) Create(_ context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	ticket.ID = fmt.Sprintf("tkt-%d", r.seq)
	ticket.Version = 1
	r.tickets[ticket.ID] = *ticket
	return nil
}

func (r *fakeTicketRepo) get(orgID, id string) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tickets[id]
	if !ok || t.OrgID != orgID {
		return nil, pgx.ErrNoRows
	}
	copied := t
	return &copied, nil
}

func (r *fakeTicketRepo) GetByID(_ context.Context, orgID, id string) (*domain.Ticket, error) {
	return r.get(orgID, id)
}

func (r *fakeTicketRepo) GetByIDForUpdate(_ context.Context, orgID, id string) (*domain.Ticket, error) {
	return r.get(orgID, id)
}

func (r *fakeTicketRepo) GetByNumber(_ context.Context, orgID, number string) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tickets {
		if t.OrgID == orgID && t.Number == number {
			copied := t
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeTicketRepo) Update(_ context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.tickets[ticket.ID]
	if !ok || stored.Version != ticket.Version {
		return pgx.ErrNoRows
	}
	ticket.Version++
	r.tickets[ticket.ID] = *ticket
	return nil
}

func (r *fakeTicketRepo) ListWithFilter(_ context.Context, orgID string, _ repository.TicketFilter) ([]domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Ticket
	for _, t := range r.tickets {
		if t.OrgID == orgID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r *fakeTicketRepo) ListActive(_ context.Context, limit, offset int) ([]domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Ticket
	for _, t := range r.tickets {
		if t.Active() {
			out = append(out, t)
		}
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeTicketRepo) ListExpireDue(_ context.Context, now time.Time, limit int) ([]domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Ticket
	for _, t := range r.tickets {
		if t.Active() && !t.ExpiresAt.After(now) {
			out = append(out, t)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *fakeTicketRepo) ListExpiredOn(_ context.Context, day time.Time, limit int) ([]domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Ticket
	for _, t := range r.tickets {
		if t.Status == domain.TicketStatusExpired && domain.MarkerDay(t.ExpiresAt).Equal(domain.MarkerDay(day)) {
			out = append(out, t)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *fakeTicketRepo) FindCovering(_ context.Context, orgID, address string, _, _ *float64, date time.Time) ([]domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Ticket
	for _, t := range r.tickets {
		if t.OrgID != orgID || !t.Active() {
			continue
		}
		if address != "" && !strings.EqualFold(t.Site.Address, address) {
			continue
		}
		if date.After(t.ExpiresAt) {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

type fakeResponseRepo struct {
	mu        sync.Mutex
	seq       int
	responses []domain.UtilityResponse
}

func (r *fakeResponseRepo) CreateBatch(_ context.Context, responses []domain.UtilityResponse) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range responses {
		r.seq++
		responses[i].ID = fmt.Sprintf("resp-%d", r.seq)
		r.responses = append(r.responses, responses[i])
	}
	return nil
}

func (r *fakeResponseRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.UtilityResponse, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.UtilityResponse
	for _, resp := range r.responses {
		if resp.TicketID == ticketID {
			out = append(out, resp)
		}
	}
	return out, nil
}

func (r *fakeResponseRepo) GetForUpdate(_ context.Context, ticketID, utilityCode string) (*domain.UtilityResponse, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, resp := range r.responses {
		if resp.TicketID == ticketID && resp.UtilityCode == utilityCode {
			copied := resp
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeResponseRepo) Update(_ context.Context, response *domain.UtilityResponse) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.responses {
		if r.responses[i].ID == response.ID {
			r.responses[i] = *response
			return nil
		}
	}
	return pgx.ErrNoRows
}

func (r *fakeResponseRepo) ArchiveByTicket(_ context.Context, ticketID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.responses {
		if r.responses[i].TicketID == ticketID && r.responses[i].ArchivedAt == nil {
			archived := at
			r.responses[i].ArchivedAt = &archived
		}
	}
	return nil
}

func (r *fakeResponseRepo) ListOverdue(_ context.Context, now time.Time, limit int) ([]domain.UtilityResponse, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.UtilityResponse
	for _, resp := range r.responses {
		if resp.ArchivedAt == nil && resp.Overdue(now) {
			out = append(out, resp)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

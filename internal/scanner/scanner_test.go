package scanner

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/locate-service/internal/calendar"
	"github.com/spec-kit/locate-service/internal/config"
	"github.com/spec-kit/locate-service/internal/domain"
	"github.com/spec-kit/locate-service/internal/repository"
)

// Friday morning; the following Monday is the next business day.
var sweepNow = time.Date(2024, time.March, 1, 9, 0, 0, 0, time.UTC)

var farFuture = time.Date(2024, time.June, 3, 9, 0, 0, 0, time.UTC)

type stubTickets struct {
	active  []domain.Ticket
	expired []domain.Ticket
	byID    map[string]*domain.Ticket
}

func (s *stubTickets) ListActive(_ context.Context, _, offset int) ([]domain.Ticket, error) {
	if offset > 0 {
		return nil, nil
	}
	return s.active, nil
}

func (s *stubTickets) GetByID(_ context.Context, _, id string) (*domain.Ticket, error) {
	if t, ok := s.byID[id]; ok {
		return t, nil
	}
	return nil, pgx.ErrNoRows
}

func (s *stubTickets) Create(context.Context, *domain.Ticket) error { return nil }
func (s *stubTickets) GetByIDForUpdate(context.Context, string, string) (*domain.Ticket, error) {
	return nil, pgx.ErrNoRows
}
func (s *stubTickets) GetByNumber(context.Context, string, string) (*domain.Ticket, error) {
	return nil, pgx.ErrNoRows
}
func (s *stubTickets) Update(context.Context, *domain.Ticket) error { return nil }
func (s *stubTickets) ListWithFilter(context.Context, string, repository.TicketFilter) ([]domain.Ticket, error) {
	return nil, nil
}
func (s *stubTickets) ListExpireDue(context.Context, time.Time, int) ([]domain.Ticket, error) {
	return nil, nil
}
func (s *stubTickets) ListExpiredOn(context.Context, time.Time, int) ([]domain.Ticket, error) {
	return s.expired, nil
}
func (s *stubTickets) FindCovering(context.Context, string, string, *float64, *float64, time.Time) ([]domain.Ticket, error) {
	return nil, nil
}

type stubResponses struct {
	overdue []domain.UtilityResponse
}

func (s *stubResponses) ListOverdue(context.Context, time.Time, int) ([]domain.UtilityResponse, error) {
	return s.overdue, nil
}
func (s *stubResponses) CreateBatch(context.Context, []domain.UtilityResponse) error { return nil }
func (s *stubResponses) ListByTicket(context.Context, string) ([]domain.UtilityResponse, error) {
	return nil, nil
}
func (s *stubResponses) GetForUpdate(context.Context, string, string) (*domain.UtilityResponse, error) {
	return nil, pgx.ErrNoRows
}
func (s *stubResponses) Update(context.Context, *domain.UtilityResponse) error    { return nil }
func (s *stubResponses) ArchiveByTicket(context.Context, string, time.Time) error { return nil }

type stubMarkers struct {
	mu   sync.Mutex
	sent map[string]bool
}

func markerKey(orgID, ticketID, alertType string, day time.Time) string {
	return orgID + "|" + ticketID + "|" + alertType + "|" + day.Format("2006-01-02")
}

func (m *stubMarkers) Sent(_ context.Context, orgID, ticketID, alertType string, day time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sent[markerKey(orgID, ticketID, alertType, day)], nil
}

func (m *stubMarkers) Claim(_ context.Context, orgID, ticketID, alertType string, day time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := markerKey(orgID, ticketID, alertType, day)
	if m.sent[key] {
		return false, nil
	}
	if m.sent == nil {
		m.sent = map[string]bool{}
	}
	m.sent[key] = true
	return true, nil
}

func (m *stubMarkers) Release(_ context.Context, orgID, ticketID, alertType string, day time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sent, markerKey(orgID, ticketID, alertType, day))
	return nil
}

type captureSink struct {
	mu       sync.Mutex
	triggers []domain.Trigger
	full     bool
}

func (s *captureSink) Offer(trigger domain.Trigger) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.full {
		return false
	}
	s.triggers = append(s.triggers, trigger)
	return true
}

func (s *captureSink) find(ticketID string, t domain.AlertType) *domain.Trigger {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.triggers {
		if s.triggers[i].TicketID == ticketID && s.triggers[i].Type == t {
			return &s.triggers[i]
		}
	}
	return nil
}

func (s *captureSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.triggers)
}

type stubLocker struct {
	denied   bool
	acquired int
}

func (l *stubLocker) AcquireSweepLock(context.Context, string, time.Duration) bool {
	l.acquired++
	return !l.denied
}
func (l *stubLocker) ReleaseSweepLock(context.Context, string)                    {}
func (l *stubLocker) SeenToday(context.Context, string, string, string, time.Time) bool {
	return false
}
func (l *stubLocker) CacheSeen(context.Context, string, string, string, time.Time) {}

func newScanner(tickets *stubTickets, responses *stubResponses, markers *stubMarkers, sink *captureSink) *Scanner {
	return New(Dependencies{
		TicketRepo:   tickets,
		ResponseRepo: responses,
		MarkerRepo:   markers,
		Calendar:     calendar.New(calendar.NewStatutoryHolidays(calendar.JurisdictionWV, nil)),
		Sink:         sink,
		Config:       config.ScannerConfig{SweepIntervalMinutes: 15, BatchSize: 500, LockTTLSeconds: 60},
		Now:          func() time.Time { return sweepNow },
	})
}

func deadlineTicket(id string, legalDig time.Time) domain.Ticket {
	return domain.Ticket{
		ID:           id,
		OrgID:        "org-1",
		Status:       domain.TicketStatusPending,
		LegalDigDate: legalDig,
		UpdateBy:     farFuture,
		ExpiresAt:    farFuture,
	}
}

func TestSweepDeadlineTriggers(t *testing.T) {
	t.Parallel()

	tickets := &stubTickets{active: []domain.Ticket{
		deadlineTicket("t48", sweepNow.AddDate(0, 0, 2)),
		deadlineTicket("t24", sweepNow.AddDate(0, 0, 1)),
		deadlineTicket("t0", sweepNow),
		deadlineTicket("t7", sweepNow.AddDate(0, 0, 7)),
	}}
	sink := &captureSink{}
	sc := newScanner(tickets, &stubResponses{}, &stubMarkers{}, sink)

	sc.Sweep(context.Background())

	tests := []struct {
		ticketID string
		alert    domain.AlertType
		priority domain.AlertPriority
	}{
		{"t48", domain.AlertDeadline48H, domain.PriorityHigh},
		{"t24", domain.AlertDeadline24H, domain.PriorityHigh},
		{"t0", domain.AlertDeadlineToday, domain.PriorityCritical},
	}
	for _, tt := range tests {
		got := sink.find(tt.ticketID, tt.alert)
		if got == nil {
			t.Errorf("no %s trigger for %s", tt.alert, tt.ticketID)
			continue
		}
		if got.Priority != tt.priority {
			t.Errorf("%s priority = %s, want %s", tt.alert, got.Priority, tt.priority)
		}
		if !got.Day.Equal(domain.MarkerDay(sweepNow)) {
			t.Errorf("%s day = %v, want %v", tt.alert, got.Day, domain.MarkerDay(sweepNow))
		}
	}
	if sink.count() != 3 {
		t.Errorf("emitted %d triggers, want 3", sink.count())
	}
}

func TestSweepUpdateByTriggers(t *testing.T) {
	t.Parallel()

	today := deadlineTicket("due-today", farFuture)
	today.UpdateBy = sweepNow

	// Deadline on Monday, swept on Friday: warns across the weekend.
	monday := deadlineTicket("due-monday", farFuture)
	monday.UpdateBy = time.Date(2024, time.March, 4, 17, 0, 0, 0, time.UTC)

	// Deadline on Tuesday is not yet the next business day from Friday.
	tuesday := deadlineTicket("due-tuesday", farFuture)
	tuesday.UpdateBy = time.Date(2024, time.March, 5, 17, 0, 0, 0, time.UTC)

	sink := &captureSink{}
	sc := newScanner(&stubTickets{active: []domain.Ticket{today, monday, tuesday}},
		&stubResponses{}, &stubMarkers{}, sink)

	sc.Sweep(context.Background())

	if got := sink.find("due-today", domain.AlertUpdateByToday); got == nil {
		t.Error("no UPDATE_BY_TODAY trigger")
	} else if got.Priority != domain.PriorityHigh {
		t.Errorf("UPDATE_BY_TODAY priority = %s, want HIGH", got.Priority)
	}
	if got := sink.find("due-monday", domain.AlertUpdateByApproach); got == nil {
		t.Error("no UPDATE_BY_APPROACHING trigger for Monday deadline on Friday sweep")
	} else if got.Priority != domain.PriorityNormal {
		t.Errorf("UPDATE_BY_APPROACHING priority = %s, want NORMAL", got.Priority)
	}
	if got := sink.find("due-tuesday", domain.AlertUpdateByApproach); got != nil {
		t.Error("UPDATE_BY_APPROACHING fired two business days early")
	}
}

func TestSweepExpiryTriggers(t *testing.T) {
	t.Parallel()

	twoOut := deadlineTicket("exp-2", farFuture)
	twoOut.ExpiresAt = sweepNow.AddDate(0, 0, 2)
	oneOut := deadlineTicket("exp-1", farFuture)
	oneOut.ExpiresAt = sweepNow.AddDate(0, 0, 1)
	threeOut := deadlineTicket("exp-3", farFuture)
	threeOut.ExpiresAt = sweepNow.AddDate(0, 0, 3)

	sink := &captureSink{}
	sc := newScanner(&stubTickets{active: []domain.Ticket{twoOut, oneOut, threeOut}},
		&stubResponses{}, &stubMarkers{}, sink)

	sc.Sweep(context.Background())

	for _, id := range []string{"exp-2", "exp-1"} {
		got := sink.find(id, domain.AlertExpiryApproach)
		if got == nil {
			t.Errorf("no EXPIRY_APPROACHING trigger for %s", id)
			continue
		}
		if got.Priority != domain.PriorityNormal {
			t.Errorf("%s priority = %s, want NORMAL", id, got.Priority)
		}
	}
	if got := sink.find("exp-3", domain.AlertExpiryApproach); got != nil {
		t.Error("EXPIRY_APPROACHING fired three days early")
	}
}

func TestSweepOverdueResponses(t *testing.T) {
	t.Parallel()

	blocked := deadlineTicket("blocked", sweepNow.AddDate(0, 0, -1))
	waiting := deadlineTicket("waiting", sweepNow.AddDate(0, 0, 5))

	tickets := &stubTickets{
		byID: map[string]*domain.Ticket{"blocked": &blocked, "waiting": &waiting},
	}
	responses := &stubResponses{overdue: []domain.UtilityResponse{
		{TicketID: "blocked", OrgID: "org-1", UtilityCode: "GAS01",
			Status: domain.ResponsePending, WindowClose: sweepNow.Add(-time.Hour)},
		{TicketID: "waiting", OrgID: "org-1", UtilityCode: "ELE01",
			Status: domain.ResponsePending, WindowClose: sweepNow.Add(-time.Hour)},
	}}
	sink := &captureSink{}
	sc := newScanner(tickets, responses, &stubMarkers{}, sink)

	sc.Sweep(context.Background())

	got := sink.find("blocked", domain.AlertResponseOverdue)
	if got == nil {
		t.Fatal("no RESPONSE_OVERDUE trigger for blocked ticket")
	}
	if got.Priority != domain.PriorityCritical {
		t.Errorf("priority past legal dig date = %s, want CRITICAL", got.Priority)
	}
	if got.UtilityCode != "GAS01" {
		t.Errorf("UtilityCode = %s, want GAS01", got.UtilityCode)
	}

	got = sink.find("waiting", domain.AlertResponseOverdue)
	if got == nil {
		t.Fatal("no RESPONSE_OVERDUE trigger for waiting ticket")
	}
	if got.Priority != domain.PriorityHigh {
		t.Errorf("priority before legal dig date = %s, want HIGH", got.Priority)
	}
}

func TestSweepSkipsMarkedTriggers(t *testing.T) {
	t.Parallel()

	ticket := deadlineTicket("t0", sweepNow)
	markers := &stubMarkers{}
	_, _ = markers.Claim(context.Background(), "org-1", "t0",
		string(domain.AlertDeadlineToday), domain.MarkerDay(sweepNow))

	sink := &captureSink{}
	sc := newScanner(&stubTickets{active: []domain.Ticket{ticket}}, &stubResponses{}, markers, sink)

	sc.Sweep(context.Background())

	if sink.count() != 0 {
		t.Errorf("emitted %d triggers for already-alerted ticket, want 0", sink.count())
	}
}

func TestSweepPerUtilityOverdueMarkers(t *testing.T) {
	t.Parallel()

	ticket := deadlineTicket("t1", sweepNow.AddDate(0, 0, 5))
	tickets := &stubTickets{byID: map[string]*domain.Ticket{"t1": &ticket}}
	responses := &stubResponses{overdue: []domain.UtilityResponse{
		{TicketID: "t1", OrgID: "org-1", UtilityCode: "GAS01",
			Status: domain.ResponsePending, WindowClose: sweepNow.Add(-time.Hour)},
		{TicketID: "t1", OrgID: "org-1", UtilityCode: "ELE01",
			Status: domain.ResponsePending, WindowClose: sweepNow.Add(-time.Hour)},
	}}

	// One utility was already alerted today; its marker carries the code.
	markers := &stubMarkers{}
	_, _ = markers.Claim(context.Background(), "org-1", "t1",
		"RESPONSE_OVERDUE:GAS01", domain.MarkerDay(sweepNow))

	sink := &captureSink{}
	sc := newScanner(tickets, responses, markers, sink)

	sc.Sweep(context.Background())

	if sink.count() != 1 {
		t.Fatalf("emitted %d triggers, want 1", sink.count())
	}
	if got := sink.find("t1", domain.AlertResponseOverdue); got == nil || got.UtilityCode != "ELE01" {
		t.Error("the un-alerted utility's overdue trigger was not emitted")
	}
}

func TestSweepReemitsUnresolvedConflict(t *testing.T) {
	t.Parallel()

	conflicted := deadlineTicket("tc", farFuture)
	conflicted.Status = domain.TicketStatusConflict
	sink := &captureSink{}
	markers := &stubMarkers{}
	sc := newScanner(&stubTickets{active: []domain.Ticket{conflicted}}, &stubResponses{}, markers, sink)

	sc.Sweep(context.Background())

	got := sink.find("tc", domain.AlertConflictDetected)
	if got == nil {
		t.Fatal("no conflict trigger for a ticket stuck in CONFLICT")
	}
	if got.Priority != domain.PriorityCritical {
		t.Errorf("priority = %s, want %s", got.Priority, domain.PriorityCritical)
	}

	// Once today's alert is on record the sweep stays quiet.
	_, _ = markers.Claim(context.Background(), "org-1", "tc", string(domain.AlertConflictDetected), domain.MarkerDay(sweepNow))
	before := sink.count()
	sc.Sweep(context.Background())
	if sink.count() != before {
		t.Error("marked conflict was re-emitted")
	}
}

func TestSweepReemitsExpiredToday(t *testing.T) {
	t.Parallel()

	expired := deadlineTicket("te", farFuture)
	expired.Status = domain.TicketStatusExpired
	expired.ExpiresAt = sweepNow.Add(-2 * time.Hour)
	sink := &captureSink{}
	markers := &stubMarkers{}
	sc := newScanner(&stubTickets{expired: []domain.Ticket{expired}}, &stubResponses{}, markers, sink)

	sc.Sweep(context.Background())

	got := sink.find("te", domain.AlertExpiredToday)
	if got == nil {
		t.Fatal("no expiry trigger for a ticket that expired today")
	}
	if got.Priority != domain.PriorityCritical {
		t.Errorf("priority = %s, want %s", got.Priority, domain.PriorityCritical)
	}

	_, _ = markers.Claim(context.Background(), "org-1", "te", string(domain.AlertExpiredToday), domain.MarkerDay(sweepNow))
	before := sink.count()
	sc.Sweep(context.Background())
	if sink.count() != before {
		t.Error("marked expiry was re-emitted")
	}
}

func TestSweepToleratesFullQueue(t *testing.T) {
	t.Parallel()

	ticket := deadlineTicket("t0", sweepNow)
	sink := &captureSink{full: true}
	sc := newScanner(&stubTickets{active: []domain.Ticket{ticket}}, &stubResponses{}, &stubMarkers{}, sink)

	// Must not panic or error; the next sweep re-detects the trigger.
	sc.Sweep(context.Background())

	if sink.count() != 0 {
		t.Errorf("full queue accepted %d triggers", sink.count())
	}
}

func TestSweepSkipsWhenLockHeld(t *testing.T) {
	t.Parallel()

	ticket := deadlineTicket("t0", sweepNow)
	sink := &captureSink{}
	sc := newScanner(&stubTickets{active: []domain.Ticket{ticket}}, &stubResponses{}, &stubMarkers{}, sink)
	locker := &stubLocker{denied: true}
	sc.locker = locker

	sc.Sweep(context.Background())

	if locker.acquired != 1 {
		t.Errorf("lock acquisitions = %d, want 1", locker.acquired)
	}
	if sink.count() != 0 {
		t.Errorf("swept %d triggers while lock was held elsewhere", sink.count())
	}
}

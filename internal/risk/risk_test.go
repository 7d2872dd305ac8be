package risk

import (
	"testing"
	"time"

	"github.com/spec-kit/locate-service/internal/domain"
)

var scoreNow = time.Date(2024, time.March, 8, 12, 0, 0, 0, time.UTC)

func pendingResponse(facility domain.FacilityType, windowClose time.Time) domain.UtilityResponse {
	return domain.UtilityResponse{
		FacilityType: facility,
		Status:       domain.ResponsePending,
		WindowOpen:   windowClose.AddDate(0, 0, -2),
		WindowClose:  windowClose,
	}
}

func answeredResponse(facility domain.FacilityType, status domain.ResponseStatus) domain.UtilityResponse {
	respondedAt := scoreNow.AddDate(0, 0, -1)
	return domain.UtilityResponse{
		FacilityType: facility,
		Status:       status,
		WindowOpen:   scoreNow.AddDate(0, 0, -3),
		WindowClose:  scoreNow.AddDate(0, 0, -1),
		RespondedAt:  &respondedAt,
	}
}

func TestScoreComponents(t *testing.T) {
	t.Parallel()

	future := scoreNow.AddDate(0, 0, 1)
	past := scoreNow.AddDate(0, 0, -1)

	tests := []struct {
		name      string
		ticket    domain.Ticket
		responses []domain.UtilityResponse
		site      domain.SiteFlags
		want      int
	}{
		{
			name:   "baseline excavation, all answered clear",
			ticket: domain.Ticket{Status: domain.TicketStatusInProgress, WorkType: domain.WorkTypeExcavation},
			responses: []domain.UtilityResponse{
				answeredResponse(domain.FacilityWater, domain.ResponseClear),
			},
			want: 0,
		},
		{
			name:   "hazardous utility present",
			ticket: domain.Ticket{Status: domain.TicketStatusInProgress, WorkType: domain.WorkTypeExcavation},
			responses: []domain.UtilityResponse{
				answeredResponse(domain.FacilityGas, domain.ResponseMarked),
			},
			want: 20,
		},
		{
			name:   "conflict status on ticket",
			ticket: domain.Ticket{Status: domain.TicketStatusConflict, WorkType: domain.WorkTypeExcavation},
			want:   25,
		},
		{
			name:   "unresolved conflict response",
			ticket: domain.Ticket{Status: domain.TicketStatusInProgress, WorkType: domain.WorkTypeExcavation},
			responses: []domain.UtilityResponse{
				answeredResponse(domain.FacilitySewer, domain.ResponseConflict),
			},
			want: 25,
		},
		{
			name:   "one overdue response",
			ticket: domain.Ticket{Status: domain.TicketStatusInProgress, WorkType: domain.WorkTypeExcavation},
			responses: []domain.UtilityResponse{
				pendingResponse(domain.FacilityTelecom, past),
			},
			want: 10,
		},
		{
			name:   "overdue responses cap at thirty",
			ticket: domain.Ticket{Status: domain.TicketStatusInProgress, WorkType: domain.WorkTypeExcavation},
			responses: []domain.UtilityResponse{
				pendingResponse(domain.FacilityWater, past),
				pendingResponse(domain.FacilitySewer, past),
				pendingResponse(domain.FacilityTelecom, past),
				pendingResponse(domain.FacilityOther, past),
			},
			want: 30,
		},
		{
			name:   "pending but window still open is not overdue",
			ticket: domain.Ticket{Status: domain.TicketStatusInProgress, WorkType: domain.WorkTypeExcavation},
			responses: []domain.UtilityResponse{
				pendingResponse(domain.FacilityWater, future),
			},
			want: 0,
		},
		{
			name:   "high risk work type",
			ticket: domain.Ticket{Status: domain.TicketStatusInProgress, WorkType: domain.WorkTypeBlasting},
			want:   15,
		},
		{
			name:   "urban and limited access",
			ticket: domain.Ticket{Status: domain.TicketStatusInProgress, WorkType: domain.WorkTypeExcavation},
			site:   domain.SiteFlags{Urban: true, LimitedAccess: true},
			want:   10,
		},
		{
			name:   "everything stacks and clamps at one hundred",
			ticket: domain.Ticket{Status: domain.TicketStatusConflict, WorkType: domain.WorkTypeBlasting},
			responses: []domain.UtilityResponse{
				answeredResponse(domain.FacilityGas, domain.ResponseMarked),
				pendingResponse(domain.FacilityElectric, past),
				pendingResponse(domain.FacilityWater, past),
				pendingResponse(domain.FacilitySewer, past),
				pendingResponse(domain.FacilityTelecom, past),
			},
			// 20 + 25 + 30 (overdue capped) + 15 + 5 + 5.
			site: domain.SiteFlags{Urban: true, LimitedAccess: true},
			want: 100,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := Score(&tt.ticket, tt.responses, tt.site, scoreNow)
			if got != tt.want {
				t.Errorf("Score() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestScoreIgnoresArchivedAndResolved(t *testing.T) {
	t.Parallel()

	past := scoreNow.AddDate(0, 0, -1)

	archived := pendingResponse(domain.FacilityGas, past)
	archived.ArchivedAt = &past

	resolved := answeredResponse(domain.FacilitySewer, domain.ResponseConflict)
	resolved.ResolvedAt = &past

	ticket := domain.Ticket{Status: domain.TicketStatusInProgress, WorkType: domain.WorkTypeExcavation}

	if got := Score(&ticket, []domain.UtilityResponse{archived}, domain.SiteFlags{}, scoreNow); got != 0 {
		t.Errorf("archived response scored %d, want 0", got)
	}
	if got := Score(&ticket, []domain.UtilityResponse{resolved}, domain.SiteFlags{}, scoreNow); got != 0 {
		t.Errorf("resolved conflict scored %d, want 0", got)
	}
}

func TestScoreDeterministic(t *testing.T) {
	t.Parallel()

	ticket := domain.Ticket{Status: domain.TicketStatusConflict, WorkType: domain.WorkTypeBoring}
	responses := []domain.UtilityResponse{
		answeredResponse(domain.FacilityGas, domain.ResponseMarked),
		pendingResponse(domain.FacilityWater, scoreNow.AddDate(0, 0, -1)),
	}
	site := domain.SiteFlags{Urban: true}

	first := Score(&ticket, responses, site, scoreNow)
	for i := 0; i < 5; i++ {
		if got := Score(&ticket, responses, site, scoreNow); got != first {
			t.Fatalf("Score() = %d on repeat, want %d", got, first)
		}
	}
}

package domain

import "testing"

func TestTicketStatusCanTransition(t *testing.T) {
	t.Parallel()

	tests := []struct {
		from TicketStatus
		to   TicketStatus
		want bool
	}{
		{TicketStatusReceived, TicketStatusPending, true},
		{TicketStatusPending, TicketStatusInProgress, true},
		{TicketStatusInProgress, TicketStatusClear, true},
		{TicketStatusClear, TicketStatusConflict, true},
		{TicketStatusConflict, TicketStatusClear, true},
		{TicketStatusClear, TicketStatusRenewed, true},
		{TicketStatusPending, TicketStatusExpired, true},
		// Illegal moves.
		{TicketStatusReceived, TicketStatusClear, false},
		{TicketStatusClear, TicketStatusPending, false},
		{TicketStatusExpired, TicketStatusPending, false},
		{TicketStatusCancelled, TicketStatusInProgress, false},
		{TicketStatusRenewed, TicketStatusClear, false},
		{TicketStatusConflict, TicketStatusInProgress, false},
	}
	for _, tt := range tests {
		if got := tt.from.CanTransition(tt.to); got != tt.want {
			t.Errorf("CanTransition(%s -> %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestTicketStatusTerminal(t *testing.T) {
	t.Parallel()

	terminal := map[TicketStatus]bool{
		TicketStatusReceived:   false,
		TicketStatusPending:    false,
		TicketStatusInProgress: false,
		TicketStatusClear:      false,
		TicketStatusConflict:   false,
		TicketStatusExpired:    true,
		TicketStatusCancelled:  true,
		TicketStatusRenewed:    true,
	}
	for status, want := range terminal {
		if got := status.Terminal(); got != want {
			t.Errorf("Terminal(%s) = %v, want %v", status, got, want)
		}
	}
}

func TestWorkTypeHighRisk(t *testing.T) {
	t.Parallel()

	high := []WorkType{WorkTypeBoring, WorkTypeTrenching, WorkTypeDemolition, WorkTypeBlasting}
	for _, w := range high {
		if !w.HighRisk() {
			t.Errorf("HighRisk(%s) = false, want true", w)
		}
	}
	low := []WorkType{WorkTypeExcavation, WorkTypeGrading, WorkTypeOther}
	for _, w := range low {
		if w.HighRisk() {
			t.Errorf("HighRisk(%s) = true, want false", w)
		}
	}
}

package domain

import (
	"testing"
	"time"
)

func TestResponseStatusCanTransition(t *testing.T) {
	t.Parallel()

	tests := []struct {
		from ResponseStatus
		to   ResponseStatus
		want bool
	}{
		{ResponsePending, ResponseMarked, true},
		{ResponsePending, ResponseClear, true},
		{ResponsePending, ResponseConflict, true},
		{ResponseMarked, ResponseConflict, true},
		{ResponseClear, ResponseConflict, true},
		// Conflict resolution settles back to a definite answer.
		{ResponseConflict, ResponseMarked, true},
		{ResponseConflict, ResponseClear, true},
		// A recorded answer never reverts to pending or flips directly.
		{ResponseMarked, ResponsePending, false},
		{ResponseMarked, ResponseClear, false},
		{ResponseClear, ResponseMarked, false},
		{ResponseConflict, ResponsePending, false},
	}
	for _, tt := range tests {
		if got := tt.from.CanTransition(tt.to); got != tt.want {
			t.Errorf("CanTransition(%s -> %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestResponseTypeStatusFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		rt   ResponseType
		want ResponseStatus
	}{
		{ResponseTypeMarked, ResponseMarked},
		{ResponseTypeClear, ResponseClear},
		{ResponseTypeConflict, ResponseConflict},
		{ResponseTypeUnmarkable, ResponseConflict},
		{ResponseTypeNotDone, ResponsePending},
	}
	for _, tt := range tests {
		if got := tt.rt.StatusFor(); got != tt.want {
			t.Errorf("StatusFor(%s) = %s, want %s", tt.rt, got, tt.want)
		}
	}
}

func TestResponseOverdue(t *testing.T) {
	t.Parallel()

	close := time.Date(2024, time.March, 4, 17, 0, 0, 0, time.UTC)
	tests := []struct {
		name   string
		status ResponseStatus
		now    time.Time
		want   bool
	}{
		{name: "pending past window", status: ResponsePending, now: close.Add(time.Hour), want: true},
		{name: "pending inside window", status: ResponsePending, now: close.Add(-time.Hour), want: false},
		{name: "answered past window", status: ResponseMarked, now: close.Add(time.Hour), want: false},
	}
	for _, tt := range tests {
		resp := &UtilityResponse{Status: tt.status, WindowClose: close}
		if got := resp.Overdue(tt.now); got != tt.want {
			t.Errorf("%s: Overdue = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestConflictsWith(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		a, b  UtilityResponse
		want  bool
	}{
		{
			name: "explicit conflict always conflicts",
			a:    UtilityResponse{Status: ResponseConflict, FacilityType: FacilityWater},
			b:    UtilityResponse{Status: ResponseMarked, FacilityType: FacilityGas},
			want: true,
		},
		{
			name: "clear vs marked same facility class",
			a:    UtilityResponse{Status: ResponseClear, FacilityType: FacilityGas},
			b:    UtilityResponse{Status: ResponseMarked, FacilityType: FacilityGas},
			want: true,
		},
		{
			name: "clear vs marked different facility class",
			a:    UtilityResponse{Status: ResponseClear, FacilityType: FacilityWater},
			b:    UtilityResponse{Status: ResponseMarked, FacilityType: FacilityGas},
			want: false,
		},
		{
			name: "pending never conflicts",
			a:    UtilityResponse{Status: ResponsePending, FacilityType: FacilityGas},
			b:    UtilityResponse{Status: ResponseMarked, FacilityType: FacilityGas},
			want: false,
		},
		{
			name: "two marked agree",
			a:    UtilityResponse{Status: ResponseMarked, FacilityType: FacilityGas},
			b:    UtilityResponse{Status: ResponseMarked, FacilityType: FacilityGas},
			want: false,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.a.ConflictsWith(&tt.b); got != tt.want {
				t.Errorf("ConflictsWith = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFacilityHazardous(t *testing.T) {
	t.Parallel()

	if !FacilityGas.Hazardous() || !FacilityElectric.Hazardous() {
		t.Error("gas and electric facilities must be hazardous")
	}
	if FacilityWater.Hazardous() || FacilityTelecom.Hazardous() {
		t.Error("water and telecom facilities must not be hazardous")
	}
}

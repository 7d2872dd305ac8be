package domain

import "time"

// FacilityType classifies the utility owner's buried facilities.
type FacilityType string

const (
	FacilityGas      FacilityType = "GAS"
	FacilityElectric FacilityType = "ELECTRIC"
	FacilityWater    FacilityType = "WATER"
	FacilitySewer    FacilityType = "SEWER"
	FacilityTelecom  FacilityType = "TELECOM"
	FacilityOther    FacilityType = "OTHER"
)

// Hazardous reports whether a facility strike is life-threatening.
func (f FacilityType) Hazardous() bool {
	return f == FacilityGas || f == FacilityElectric
}

// ResponseStatus enumerates per-utility response states on a ticket.
type ResponseStatus string

const (
	ResponsePending  ResponseStatus = "PENDING"
	ResponseMarked   ResponseStatus = "MARKED"
	ResponseClear    ResponseStatus = "CLEAR"
	ResponseConflict ResponseStatus = "CONFLICT"
)

// responseTransitions: forward only, except conflict resolution which may
// settle a CONFLICT back to MARKED or CLEAR once a human resolves it.
var responseTransitions = map[ResponseStatus][]ResponseStatus{
	ResponsePending:  {ResponseMarked, ResponseClear, ResponseConflict},
	ResponseMarked:   {ResponseConflict},
	ResponseClear:    {ResponseConflict},
	ResponseConflict: {ResponseMarked, ResponseClear},
}

// CanTransition reports whether the response status change is legal.
func (s ResponseStatus) CanTransition(target ResponseStatus) bool {
	for _, allowed := range responseTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// Responded reports whether the utility has answered at all.
func (s ResponseStatus) Responded() bool {
	return s != ResponsePending
}

// ResponseType is what the utility reported, as submitted.
type ResponseType string

const (
	ResponseTypeMarked     ResponseType = "MARKED"
	ResponseTypeClear      ResponseType = "CLEAR_NO_FACILITIES"
	ResponseTypeNotDone    ResponseType = "NOT_COMPLETE"
	ResponseTypeConflict   ResponseType = "CONFLICT"
	ResponseTypeUnmarkable ResponseType = "CANNOT_MARK"
)

// StatusFor maps a submitted response type onto the response state machine.
func (rt ResponseType) StatusFor() ResponseStatus {
	switch rt {
	case ResponseTypeMarked:
		return ResponseMarked
	case ResponseTypeClear:
		return ResponseClear
	case ResponseTypeConflict, ResponseTypeUnmarkable:
		return ResponseConflict
	default:
		return ResponsePending
	}
}

// UtilityResponse is one utility company's answer slot on a ticket. One row
// exists per notified utility from ticket creation; utilities fill it in.
type UtilityResponse struct {
	ID                 string
	TicketID           string
	OrgID              string
	UtilityCode        string
	UtilityName        string
	FacilityType       FacilityType
	Status             ResponseStatus
	ResponseType       *ResponseType
	ResponseVersion    int
	WindowOpen         time.Time
	WindowClose        time.Time
	MarkingDetails     *string
	MarkingColor       *string
	PhotoRef           *string
	ConflictReason     *string
	ConflictResolution *string
	ResolvedBy         *string
	ResolvedAt         *time.Time
	RespondedAt        *time.Time
	ArchivedAt         *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Overdue reports whether the utility missed its response window.
func (r *UtilityResponse) Overdue(now time.Time) bool {
	return !r.Status.Responded() && now.After(r.WindowClose)
}

// ConflictsWith reports whether two answers on the same dig site disagree.
// An explicit CONFLICT answer always conflicts. A CLEAR vs MARKED split
// counts only when both utilities own the same facility class: two owners
// of the same kind of line disagreeing about presence in the dig area.
func (r *UtilityResponse) ConflictsWith(other *UtilityResponse) bool {
	if !r.Status.Responded() || !other.Status.Responded() {
		return false
	}
	if r.Status == ResponseConflict || other.Status == ResponseConflict {
		return true
	}
	if r.FacilityType != other.FacilityType {
		return false
	}
	return (r.Status == ResponseClear && other.Status == ResponseMarked) ||
		(r.Status == ResponseMarked && other.Status == ResponseClear)
}

package domain

import "time"

// TicketStatus enumerates lifecycle states for locate tickets.
type TicketStatus string

const (
	TicketStatusReceived   TicketStatus = "RECEIVED"
	TicketStatusPending    TicketStatus = "PENDING"
	TicketStatusInProgress TicketStatus = "IN_PROGRESS"
	TicketStatusClear      TicketStatus = "CLEAR"
	TicketStatusConflict   TicketStatus = "CONFLICT"
	TicketStatusExpired    TicketStatus = "EXPIRED"
	TicketStatusCancelled  TicketStatus = "CANCELLED"
	TicketStatusRenewed    TicketStatus = "RENEWED"
)

// ticketTransitions is the authoritative state graph. Any transition not
// listed here is illegal regardless of caller.
var ticketTransitions = map[TicketStatus][]TicketStatus{
	TicketStatusReceived:   {TicketStatusPending, TicketStatusInProgress, TicketStatusConflict, TicketStatusExpired, TicketStatusCancelled, TicketStatusRenewed},
	TicketStatusPending:    {TicketStatusInProgress, TicketStatusClear, TicketStatusConflict, TicketStatusExpired, TicketStatusCancelled, TicketStatusRenewed},
	TicketStatusInProgress: {TicketStatusClear, TicketStatusConflict, TicketStatusExpired, TicketStatusCancelled, TicketStatusRenewed},
	TicketStatusClear:      {TicketStatusConflict, TicketStatusExpired, TicketStatusCancelled, TicketStatusRenewed},
	TicketStatusConflict:   {TicketStatusClear, TicketStatusExpired, TicketStatusCancelled, TicketStatusRenewed},
	TicketStatusExpired:    {},
	TicketStatusCancelled:  {},
	TicketStatusRenewed:    {},
}

// CanTransition reports whether moving a ticket from one status to another
// is allowed by the state graph.
func (s TicketStatus) CanTransition(target TicketStatus) bool {
	for _, allowed := range ticketTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// Terminal reports whether the status admits no further transitions.
func (s TicketStatus) Terminal() bool {
	return len(ticketTransitions[s]) == 0
}

// WorkType classifies the planned excavation work.
type WorkType string

const (
	WorkTypeExcavation WorkType = "EXCAVATION"
	WorkTypeBoring     WorkType = "BORING"
	WorkTypeTrenching  WorkType = "TRENCHING"
	WorkTypeDemolition WorkType = "DEMOLITION"
	WorkTypeBlasting   WorkType = "BLASTING"
	WorkTypeGrading    WorkType = "GRADING"
	WorkTypeOther      WorkType = "OTHER"
)

// HighRisk reports whether the work type carries elevated strike risk.
func (w WorkType) HighRisk() bool {
	switch w {
	case WorkTypeBoring, WorkTypeTrenching, WorkTypeDemolition, WorkTypeBlasting:
		return true
	}
	return false
}

// DigSite is the location portion of a ticket. Either Address or
// coordinates must be present; Geometry is an optional polygon in WKT.
type DigSite struct {
	Address  string
	Lat      *float64
	Lon      *float64
	Geometry *string
}

// SiteFlags carries project context the risk scorer consumes but the
// ticket store does not own.
type SiteFlags struct {
	Urban         bool
	LimitedAccess bool
}

// Ticket is the aggregate for one one-call locate notification.
type Ticket struct {
	ID                 string
	OrgID              string
	Number             string
	ParentTicketID     *string
	Site               DigSite
	WorkType           WorkType
	WorkDescription    string
	ProjectRef         *string
	RequestedStart     time.Time
	LegalDigDate       time.Time
	UpdateBy           time.Time
	ExpiresAt          time.Time
	Status             TicketStatus
	RiskScore          int
	TotalUtilities     int
	RespondedUtilities int
	Version            int
	CreatedAt          time.Time
	UpdatedAt          time.Time
	ClosedAt           *time.Time
}

// Active reports whether the ticket still participates in sweeps.
func (t *Ticket) Active() bool {
	return !t.Status.Terminal()
}

package dto

import (
	"time"

	"github.com/spec-kit/locate-service/internal/domain"
)

// AffectedUtilityRequest names one utility company to notify.
type AffectedUtilityRequest struct {
	Code         string              `json:"code"`
	Name         string              `json:"name"`
	FacilityType domain.FacilityType `json:"facility_type"`
}

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Number            string                   `json:"number,omitempty"`
	Address           string                   `json:"address"`
	Lat               *float64                 `json:"lat,omitempty"`
	Lon               *float64                 `json:"lon,omitempty"`
	Geometry          *string                  `json:"geometry,omitempty"`
	WorkType          domain.WorkType          `json:"work_type"`
	WorkDescription   string                   `json:"work_description"`
	ProjectRef        *string                  `json:"project_ref,omitempty"`
	RequestedStart    time.Time                `json:"requested_start"`
	AffectedUtilities []AffectedUtilityRequest `json:"affected_utilities"`
}

// RecordResponseRequest is one utility's submission on a ticket.
type RecordResponseRequest struct {
	UtilityCode     string              `json:"utility_code"`
	Type            domain.ResponseType `json:"type"`
	ResponseVersion int                 `json:"response_version"`
	MarkingDetails  *string             `json:"marking_details,omitempty"`
	MarkingColor    *string             `json:"marking_color,omitempty"`
	PhotoRef        *string             `json:"photo_ref,omitempty"`
	ConflictReason  *string             `json:"conflict_reason,omitempty"`
}

// TransitionRequest asks for an explicit status change.
type TransitionRequest struct {
	Status domain.TicketStatus `json:"status"`
	Reason string              `json:"reason"`
}

// ResolveConflictRequest settles a conflicted utility response.
type ResolveConflictRequest struct {
	UtilityCode string `json:"utility_code"`
	Outcome     string `json:"outcome"`
	Resolution  string `json:"resolution"`
}

// TicketSummary response.
type TicketSummary struct {
	ID                 string              `json:"id"`
	Number             string              `json:"number"`
	ParentTicketID     *string             `json:"parent_ticket_id,omitempty"`
	Address            string              `json:"address"`
	WorkType           domain.WorkType     `json:"work_type"`
	ProjectRef         *string             `json:"project_ref,omitempty"`
	Status             domain.TicketStatus `json:"status"`
	RiskScore          int                 `json:"risk_score"`
	LegalDigDate       time.Time           `json:"legal_dig_date"`
	UpdateBy           time.Time           `json:"update_by"`
	ExpiresAt          time.Time           `json:"expires_at"`
	TotalUtilities     int                 `json:"total_utilities"`
	RespondedUtilities int                 `json:"responded_utilities"`
	CreatedAt          time.Time           `json:"created_at"`
	UpdatedAt          time.Time           `json:"updated_at"`
}

// UtilityResponseView is one utility's answer slot.
type UtilityResponseView struct {
	UtilityCode    string               `json:"utility_code"`
	UtilityName    string               `json:"utility_name"`
	FacilityType   domain.FacilityType  `json:"facility_type"`
	Status         domain.ResponseStatus `json:"status"`
	ResponseType   *domain.ResponseType `json:"response_type,omitempty"`
	WindowClose    time.Time            `json:"window_close"`
	MarkingDetails *string              `json:"marking_details,omitempty"`
	ConflictReason *string              `json:"conflict_reason,omitempty"`
	RespondedAt    *time.Time           `json:"responded_at,omitempty"`
}

// TicketDetailResponse provides full ticket info.
type TicketDetailResponse struct {
	TicketSummary
	WorkDescription string                `json:"work_description"`
	RequestedStart  time.Time             `json:"requested_start"`
	ClosedAt        *time.Time            `json:"closed_at,omitempty"`
	Responses       []UtilityResponseView `json:"responses"`
}

// DigStatusResponse answers a can-I-dig query.
type DigStatusResponse struct {
	CanDig       bool     `json:"can_dig"`
	TicketID     *string  `json:"ticket_id,omitempty"`
	TicketNumber *string  `json:"ticket_number,omitempty"`
	Issues       []string `json:"issues"`
}

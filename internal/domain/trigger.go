package domain

import "time"

// Trigger is a normalized alert intent emitted by the scanner and consumed
// by the dispatch workers. Triggers carry no mutable ticket state; the
// dispatcher re-reads whatever it needs.
type Trigger struct {
	OrgID       string
	TicketID    string
	Type        AlertType
	Priority    AlertPriority
	UtilityCode string // set for RESPONSE_OVERDUE triggers
	Day         time.Time
	DetectedAt  time.Time
}

// MarkerType is the alert-type component of the dedup marker key.
// RESPONSE_OVERDUE triggers fold the utility code in so each utility's
// overdue state dedups independently.
func (t Trigger) MarkerType() string {
	if t.UtilityCode != "" {
		return string(t.Type) + ":" + t.UtilityCode
	}
	return string(t.Type)
}

// MarkerDay normalizes a timestamp to the calendar day used for the
// once-per-day dedup marker.
func MarkerDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

package domain

import "time"

// AuditPack is an immutable compliance export for one ticket over a date
// range. Once generated it is never modified; regeneration produces a new
// pack and may only extend, never shorten, the retention window.
type AuditPack struct {
	ID             string
	OrgID          string
	TicketID       string
	RangeFrom      time.Time
	RangeTo        time.Time
	GeneratedAt    time.Time
	RetentionUntil time.Time
	Manifest       map[string]any
	Payload        []byte
	SHA256         string
	CreatedAt      time.Time
}

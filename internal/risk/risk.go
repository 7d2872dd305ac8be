// Package risk scores locate tickets on a 0-100 scale. The scorer is a
// pure function of its inputs and is recomputed synchronously on every
// state-relevant ticket mutation rather than cached.
package risk

import (
	"time"

	"github.com/spec-kit/locate-service/internal/domain"
)

const (
	weightHazardousUtility = 20
	weightConflict         = 25
	weightOverdueEach      = 10
	overdueCap             = 30
	weightHighRiskWork     = 15
	weightUrban            = 5
	weightLimitedAccess    = 5
)

// Score computes the ticket's risk. Same inputs always produce the same
// score; now is passed explicitly so overdue detection is deterministic.
func Score(ticket *domain.Ticket, responses []domain.UtilityResponse, site domain.SiteFlags, now time.Time) int {
	score := 0

	hazardous := false
	conflict := ticket.Status == domain.TicketStatusConflict
	overdue := 0
	for i := range responses {
		r := &responses[i]
		if r.ArchivedAt != nil {
			continue
		}
		if r.FacilityType.Hazardous() {
			hazardous = true
		}
		if r.Status == domain.ResponseConflict && r.ResolvedAt == nil {
			conflict = true
		}
		if r.Overdue(now) {
			overdue += weightOverdueEach
		}
	}

	if hazardous {
		score += weightHazardousUtility
	}
	if conflict {
		score += weightConflict
	}
	if overdue > overdueCap {
		overdue = overdueCap
	}
	score += overdue

	if ticket.WorkType.HighRisk() {
		score += weightHighRiskWork
	}
	if site.Urban {
		score += weightUrban
	}
	if site.LimitedAccess {
		score += weightLimitedAccess
	}

	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}
	return score
}

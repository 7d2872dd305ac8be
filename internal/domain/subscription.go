package domain

import (
	"fmt"
	"time"
)

// SubscriptionScope bounds which tickets a subscription covers.
type SubscriptionScope string

const (
	ScopeOrg     SubscriptionScope = "ORG"
	ScopeProject SubscriptionScope = "PROJECT"
	ScopeUser    SubscriptionScope = "USER"
)

// QuietWindow is a local-time window during which routine alerts are
// suppressed. Start and End are "HH:MM"; the window may wrap midnight.
type QuietWindow struct {
	Start string
	End   string
}

// Validate checks both bounds parse as HH:MM clock times.
func (q QuietWindow) Validate() error {
	if _, err := minutesOfDay(q.Start); err != nil {
		return fmt.Errorf("quiet window start: %w", err)
	}
	if _, err := minutesOfDay(q.End); err != nil {
		return fmt.Errorf("quiet window end: %w", err)
	}
	return nil
}

// Contains reports whether the clock time of t falls inside the window.
func (q QuietWindow) Contains(t time.Time) bool {
	start, err := minutesOfDay(q.Start)
	if err != nil {
		return false
	}
	end, err := minutesOfDay(q.End)
	if err != nil {
		return false
	}
	cur := t.Hour()*60 + t.Minute()
	if start <= end {
		return cur >= start && cur < end
	}
	// wraps midnight, e.g. 21:00-06:00
	return cur >= start || cur < end
}

func minutesOfDay(hhmm string) (int, error) {
	var h, m int
	if _, err := fmt.Sscanf(hhmm, "%d:%d", &h, &m); err != nil {
		return 0, err
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid clock time %q", hhmm)
	}
	return h*60 + m, nil
}

// AlertSubscription is one subscriber's notification preferences for a
// scope. Empty Channels means "use the role defaults"; empty AlertTypes
// means "all types".
type AlertSubscription struct {
	ID           string
	OrgID        string
	SubscriberID string
	Scope        SubscriptionScope
	ProjectRef   *string
	AlertTypes   []AlertType
	Channels     []Channel
	Quiet        *QuietWindow
	Enabled      bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// WantsType reports whether the subscription opts into the alert type.
func (s *AlertSubscription) WantsType(t AlertType) bool {
	if len(s.AlertTypes) == 0 {
		return true
	}
	for _, at := range s.AlertTypes {
		if at == t {
			return true
		}
	}
	return false
}

// Covers reports whether the subscription's scope matches a ticket's
// project reference.
func (s *AlertSubscription) Covers(projectRef *string) bool {
	switch s.Scope {
	case ScopeProject:
		return s.ProjectRef != nil && projectRef != nil && *s.ProjectRef == *projectRef
	default:
		return true
	}
}

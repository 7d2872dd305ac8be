package domain

import "time"

// SubscriberRole drives default channel selection and API authorization.
type SubscriberRole string

const (
	RoleField      SubscriberRole = "FIELD"
	RoleOffice     SubscriberRole = "OFFICE"
	RoleSupervisor SubscriberRole = "SUPERVISOR"
	RoleAdmin      SubscriberRole = "ADMIN"
)

// DefaultChannels returns the channel bias for a role. Field crews get
// interruptive channels, office roles get mailbox-style ones. Individual
// subscriptions override these.
func (r SubscriberRole) DefaultChannels() []Channel {
	switch r {
	case RoleField:
		return []Channel{ChannelSMS, ChannelPush}
	default:
		return []Channel{ChannelEmail, ChannelInApp}
	}
}

// Subscriber is a notification recipient and API principal. Supervisors
// named by EscalationTargetID receive escalated alerts.
type Subscriber struct {
	ID                 string
	OrgID              string
	Email              string
	Name               string
	Phone              *string
	DeviceToken        *string
	Role               SubscriberRole
	PasswordHash       string
	EscalationTargetID *string
	IsActive           bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Recipient returns the channel-specific address for this subscriber, or
// "" when the subscriber has no endpoint on that channel.
func (s *Subscriber) Recipient(ch Channel) string {
	switch ch {
	case ChannelEmail:
		return s.Email
	case ChannelSMS:
		if s.Phone != nil {
			return *s.Phone
		}
	case ChannelPush:
		if s.DeviceToken != nil {
			return *s.DeviceToken
		}
	case ChannelInApp:
		return s.ID
	}
	return ""
}

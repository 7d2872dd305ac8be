package dto

import (
	"time"

	"github.com/spec-kit/locate-service/internal/domain"
)

// RegisterRequest payload.
type RegisterRequest struct {
	OrgID    string                `json:"org_id"`
	Name     string                `json:"name"`
	Email    string                `json:"email"`
	Password string                `json:"password"`
	Role     domain.SubscriberRole `json:"role"`
}

// LoginRequest payload.
type LoginRequest struct {
	OrgID    string `json:"org_id"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse carries a signed token.
type AuthResponse struct {
	Token      string            `json:"token"`
	ExpiresAt  time.Time         `json:"expires_at"`
	Subscriber SubscriberSummary `json:"subscriber"`
}

// SubscriberSummary response.
type SubscriberSummary struct {
	ID    string                `json:"id"`
	OrgID string                `json:"org_id"`
	Email string                `json:"email"`
	Name  string                `json:"name"`
	Role  domain.SubscriberRole `json:"role"`
}

// PasswordResetRequest payload.
type PasswordResetRequest struct {
	OrgID string `json:"org_id"`
	Email string `json:"email"`
}

// PasswordResetConfirmRequest payload.
type PasswordResetConfirmRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

// ChangePasswordRequest payload.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// QuietWindowRequest is a local-time suppression window.
type QuietWindowRequest struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// SaveSubscriptionRequest payload.
type SaveSubscriptionRequest struct {
	Scope      domain.SubscriptionScope `json:"scope"`
	ProjectRef *string                  `json:"project_ref,omitempty"`
	AlertTypes []domain.AlertType       `json:"alert_types"`
	Channels   []domain.Channel         `json:"channels"`
	Quiet      *QuietWindowRequest      `json:"quiet,omitempty"`
	Enabled    bool                     `json:"enabled"`
}

// SubscriptionResponse view.
type SubscriptionResponse struct {
	ID         string                   `json:"id"`
	Scope      domain.SubscriptionScope `json:"scope"`
	ProjectRef *string                  `json:"project_ref,omitempty"`
	AlertTypes []domain.AlertType       `json:"alert_types"`
	Channels   []domain.Channel         `json:"channels"`
	Quiet      *QuietWindowRequest      `json:"quiet,omitempty"`
	Enabled    bool                     `json:"enabled"`
	UpdatedAt  time.Time                `json:"updated_at"`
}

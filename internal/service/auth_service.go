package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/locate-service/internal/auth"
	"github.com/spec-kit/locate-service/internal/config"
	"github.com/spec-kit/locate-service/internal/domain"
	"github.com/spec-kit/locate-service/internal/repository"
	apperrors "github.com/spec-kit/locate-service/pkg/util/errorutil"
)

// AuthService coordinates registration, login, and credential recovery
// for subscribers.
type AuthService struct {
	subscribers repository.SubscriberRepository
	resets      repository.PasswordResetRepository
	tokenMgr    *auth.TokenManager
	bcryptCost  int
	resetTTL    time.Duration
	now         func() time.Time
}

// AuthDependencies encapsulates repo requirements for the auth service.
type AuthDependencies struct {
	SubscriberRepo    repository.SubscriberRepository
	PasswordResetRepo repository.PasswordResetRepository
	Now               func() time.Time
}

// NewAuthService builds the service.
func NewAuthService(cfg config.Config, deps AuthDependencies) *AuthService {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &AuthService{
		subscribers: deps.SubscriberRepo,
		resets:      deps.PasswordResetRepo,
		tokenMgr:    auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes),
		bcryptCost:  cfg.Auth.BcryptCost,
		resetTTL:    time.Duration(cfg.Auth.PasswordResetTTLMinutes) * time.Minute,
		now:         deps.Now,
	}
}

// Register creates a new subscriber account in an org.
func (s *AuthService) Register(ctx context.Context, orgID, name, email, password string, role domain.SubscriberRole) (*domain.Subscriber, string, time.Time, error) {
	if _, err := s.subscribers.GetByEmail(ctx, orgID, email); err == nil {
		return nil, "", time.Time{}, apperrors.NewConflict("email already registered", nil)
	} else if err != nil && err != pgx.ErrNoRows {
		return nil, "", time.Time{}, apperrors.MapError(err)
	}

	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, "", time.Time{}, apperrors.NewInternalError(err)
	}

	subscriber := &domain.Subscriber{
		OrgID:        orgID,
		Email:        email,
		Name:         name,
		Role:         role,
		PasswordHash: hash,
		IsActive:     true,
	}
	if err := s.subscribers.Create(ctx, subscriber); err != nil {
		return nil, "", time.Time{}, apperrors.MapError(err)
	}

	token, exp, err := s.tokenMgr.GenerateToken(subscriber)
	if err != nil {
		return nil, "", time.Time{}, apperrors.NewInternalError(err)
	}
	return subscriber, token, exp, nil
}

// Login authenticates a subscriber by org, email, and password. Email is
// unique per org, not globally.
func (s *AuthService) Login(ctx context.Context, orgID, email, password string) (*domain.Subscriber, string, time.Time, error) {
	subscriber, err := s.subscribers.GetByEmail(ctx, orgID, email)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, "", time.Time{}, apperrors.NewUnauthorized("invalid credentials")
		}
		return nil, "", time.Time{}, apperrors.MapError(err)
	}
	if !subscriber.IsActive {
		return nil, "", time.Time{}, apperrors.NewUnauthorized("subscriber deactivated")
	}
	if err := auth.ComparePassword(subscriber.PasswordHash, password); err != nil {
		return nil, "", time.Time{}, apperrors.NewUnauthorized("invalid credentials")
	}
	token, exp, err := s.tokenMgr.GenerateToken(subscriber)
	if err != nil {
		return nil, "", time.Time{}, apperrors.NewInternalError(err)
	}
	return subscriber, token, exp, nil
}

// RequestPasswordReset persists a one-time reset token. Returns the token
// so the caller can hand it to the notification layer.
func (s *AuthService) RequestPasswordReset(ctx context.Context, orgID, email string) (*repository.PasswordResetToken, error) {
	subscriber, err := s.subscribers.GetByEmail(ctx, orgID, email)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	token := &repository.PasswordResetToken{
		SubscriberID: subscriber.ID,
		Token:        uuid.NewString(),
		ExpiresAt:    s.now().Add(s.resetTTL),
	}
	if err := s.resets.Create(ctx, token); err != nil {
		return nil, apperrors.MapError(err)
	}
	return token, nil
}

// ConfirmPasswordReset validates the reset token and updates the password.
func (s *AuthService) ConfirmPasswordReset(ctx context.Context, tokenStr, newPassword string) error {
	token, err := s.resets.GetByToken(ctx, tokenStr)
	if err != nil {
		return apperrors.MapError(err)
	}
	now := s.now()
	if token.UsedAt != nil || now.After(token.ExpiresAt) {
		return apperrors.NewUnauthorized("token expired or used")
	}

	hash, err := auth.HashPassword(newPassword, s.bcryptCost)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	if err := s.subscribers.UpdatePassword(ctx, token.SubscriberID, hash); err != nil {
		return apperrors.MapError(err)
	}
	return apperrors.MapError(s.resets.MarkUsed(ctx, token.ID, now))
}

// ChangePassword verifies the current password before updating.
func (s *AuthService) ChangePassword(ctx context.Context, subscriberID, currentPassword, newPassword string) error {
	subscriber, err := s.subscribers.GetByID(ctx, subscriberID)
	if err != nil {
		return apperrors.MapError(err)
	}
	if err := auth.ComparePassword(subscriber.PasswordHash, currentPassword); err != nil {
		return apperrors.NewUnauthorized("invalid credentials")
	}
	hash, err := auth.HashPassword(newPassword, s.bcryptCost)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	return apperrors.MapError(s.subscribers.UpdatePassword(ctx, subscriberID, hash))
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}

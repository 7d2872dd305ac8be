package handlers

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/locate-service/internal/api/dto"
	"github.com/spec-kit/locate-service/internal/auth"
	"github.com/spec-kit/locate-service/internal/domain"
	"github.com/spec-kit/locate-service/internal/service"
	apperrors "github.com/spec-kit/locate-service/pkg/util/errorutil"
)

// AuthHandler manages subscriber registration and login.
type AuthHandler struct {
	service *service.AuthService
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{service: authService}
}

// Register POST /auth/register.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.OrgID == "" || req.Email == "" || req.Name == "" || len(req.Password) < 8 {
		return apperrors.NewValidationError("org_id, name, email, and a password of 8+ characters required", nil)
	}
	role := req.Role
	if role == "" {
		role = domain.RoleOffice
	}
	subscriber, token, exp, err := h.service.Register(c.Context(), req.OrgID, req.Name, req.Email, req.Password, role)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": authResponse(subscriber, token, exp)})
}

// Login POST /auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.OrgID == "" || req.Email == "" || req.Password == "" {
		return apperrors.NewValidationError("org_id, email, password required", nil)
	}
	subscriber, token, exp, err := h.service.Login(c.Context(), req.OrgID, req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": authResponse(subscriber, token, exp)})
}

// RequestPasswordReset POST /auth/password/reset/request.
func (h *AuthHandler) RequestPasswordReset(c *fiber.Ctx) error {
	var req dto.PasswordResetRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.OrgID == "" || req.Email == "" {
		return apperrors.NewValidationError("org_id and email required", nil)
	}
	// Token delivery is out-of-band; an unknown email returns the same
	// accepted response so the endpoint cannot be used for enumeration.
	if _, err := h.service.RequestPasswordReset(c.Context(), req.OrgID, req.Email); err != nil {
		if apperrors.ToDomainError(err).HTTPStatus < 500 {
			return c.JSON(fiber.Map{"data": fiber.Map{"status": "accepted"}})
		}
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"status": "accepted"}})
}

// ConfirmPasswordReset POST /auth/password/reset/confirm.
func (h *AuthHandler) ConfirmPasswordReset(c *fiber.Ctx) error {
	var req dto.PasswordResetConfirmRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.Token) == "" || len(req.NewPassword) < 8 {
		return apperrors.NewValidationError("token and a password of 8+ characters required", nil)
	}
	if err := h.service.ConfirmPasswordReset(c.Context(), req.Token, req.NewPassword); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"status": "password updated"}})
}

// ChangePassword POST /auth/password/change.
func (h *AuthHandler) ChangePassword(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.ChangePasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.CurrentPassword == "" || len(req.NewPassword) < 8 {
		return apperrors.NewValidationError("current password and a new password of 8+ characters required", nil)
	}
	if err := h.service.ChangePassword(c.Context(), principal.Subscriber.ID, req.CurrentPassword, req.NewPassword); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"status": "password updated"}})
}

func authResponse(subscriber *domain.Subscriber, token string, exp time.Time) dto.AuthResponse {
	return dto.AuthResponse{
		Token:     token,
		ExpiresAt: exp,
		Subscriber: dto.SubscriberSummary{
			ID:    subscriber.ID,
			OrgID: subscriber.OrgID,
			Email: subscriber.Email,
			Name:  subscriber.Name,
			Role:  subscriber.Role,
		},
	}
}

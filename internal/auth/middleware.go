package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/locate-service/internal/domain"
	"github.com/spec-kit/locate-service/internal/repository"
	apperrors "github.com/spec-kit/locate-service/pkg/util/errorutil"
)

const principalKey = "auth_principal"

// Principal represents the authenticated caller.
type Principal struct {
	Subscriber *domain.Subscriber
}

// OrgID is the tenant scope of every query the caller may run.
func (p *Principal) OrgID() string {
	return p.Subscriber.OrgID
}

// AuthMiddleware validates bearer tokens and loads principals.
type AuthMiddleware struct {
	tokens      *TokenManager
	subscribers repository.SubscriberRepository
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(tokens *TokenManager, subscribers repository.SubscriberRepository) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, subscribers: subscribers}
}

// Handle enforces authentication for protected routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return apperrors.NewUnauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return apperrors.NewUnauthorized("invalid authorization header")
	}

	claims, err := m.tokens.ParseToken(parts[1])
	if err != nil {
		return apperrors.NewUnauthorized("invalid token")
	}

	subscriber, err := m.subscribers.GetByID(c.Context(), claims.SubscriberID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return apperrors.NewUnauthorized("subscriber not found")
		}
		return apperrors.MapError(err)
	}
	if !subscriber.IsActive {
		return apperrors.NewUnauthorized("subscriber deactivated")
	}

	c.Locals(principalKey, &Principal{Subscriber: subscriber})
	return c.Next()
}

// PrincipalFromContext retrieves the authenticated entity.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok
}

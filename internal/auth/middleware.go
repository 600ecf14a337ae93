package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	apperrors "github.com/spec-kit/expense-whatsapp/pkg/util"
)

// ServiceAuthMiddleware protects the internal worker-trigger route.
type ServiceAuthMiddleware struct {
	tokens *TokenManager
}

// NewServiceAuthMiddleware constructs middleware.
func NewServiceAuthMiddleware(tokens *TokenManager) *ServiceAuthMiddleware {
	return &ServiceAuthMiddleware{tokens: tokens}
}

// Handle enforces a valid service bearer token.
func (m *ServiceAuthMiddleware) Handle(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return apperrors.NewUnauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return apperrors.NewUnauthorized("invalid authorization header")
	}

	if _, err := m.tokens.ParseServiceToken(parts[1]); err != nil {
		return apperrors.NewUnauthorized("invalid token")
	}
	return c.Next()
}

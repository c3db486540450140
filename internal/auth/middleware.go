package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/blog-service/internal/domain"
	"github.com/spec-kit/blog-service/internal/revocation"
	apperrors "github.com/spec-kit/blog-service/pkg/util/errorutil"
)

const principalKey = "auth_principal"

// Principal represents the authenticated caller, taken from verified token
// claims. The token is self-contained; no store lookup happens per request.
type Principal struct {
	AccountID int64
	Namespace domain.Namespace
	Username  string
	Email     string
	Role      string
	Token     string
}

// AuthMiddleware validates bearer tokens and loads principals.
type AuthMiddleware struct {
	tokens *TokenManager
	cache  *revocation.Cache
	logger *zap.Logger
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(tokens *TokenManager, cache *revocation.Cache, logger *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, cache: cache, logger: logger}
}

// Handle enforces authentication for protected routes. Signature, expiry
// and revocation failures are indistinguishable to the caller.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return apperrors.NewUnauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return apperrors.NewUnauthorized("invalid authorization header")
	}
	tokenStr := parts[1]

	claims, err := m.tokens.ParseToken(tokenStr)
	if err != nil {
		m.logger.Debug("bearer token rejected", zap.String("cause", "parse"), zap.Error(err))
		return apperrors.NewUnauthorized("invalid token")
	}

	if m.cache.IsRevoked(c.UserContext(), tokenStr) {
		m.logger.Debug("bearer token rejected",
			zap.String("cause", "revoked"),
			zap.Int64("account_id", claims.SubjectID))
		return apperrors.NewUnauthorized("invalid token")
	}

	c.Locals(principalKey, &Principal{
		AccountID: claims.SubjectID,
		Namespace: claims.Namespace,
		Username:  claims.Username,
		Email:     claims.Email,
		Role:      claims.Role,
		Token:     tokenStr,
	})
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

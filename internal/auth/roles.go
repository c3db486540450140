package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/blog-service/internal/domain"
	apperrors "github.com/spec-kit/blog-service/pkg/util/errorutil"
)

// HasRole reports whether role is among the allowed labels. An empty allow
// list accepts any role. Pure function, no I/O.
func HasRole(role string, allowed ...string) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, candidate := range allowed {
		if role == candidate {
			return true
		}
	}
	return false
}

// RequireNamespace ensures the principal belongs to the given namespace.
func RequireNamespace(ns domain.Namespace) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok || principal.Namespace != ns {
			return apperrors.NewForbidden("insufficient privileges")
		}
		return c.Next()
	}
}

// RequireRole ensures the principal carries one of the allowed role labels.
func RequireRole(allowed ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		if !HasRole(principal.Role, allowed...) {
			return apperrors.NewForbidden("insufficient role")
		}
		return c.Next()
	}
}

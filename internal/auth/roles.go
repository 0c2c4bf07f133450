package auth

import (
	"fmt"

	"github.com/gofiber/fiber/v2"

	apperrors "github.com/spec-kit/modcenter/pkg/util/errorutil"
)

// Role is the privilege level of an API client.
type Role string

const (
	// RoleBot is the chat command layer.
	RoleBot Role = "BOT"
	// RoleAdmin may change guild configuration and the moderator roster.
	RoleAdmin Role = "ADMIN"
)

// ParseRole validates a configured or token-carried role.
func ParseRole(v string) (Role, error) {
	switch r := Role(v); r {
	case RoleBot, RoleAdmin:
		return r, nil
	}
	return "", fmt.Errorf("unknown role %q", v)
}

// RequireRole ensures the principal has one of the allowed roles. ADMIN
// passes every check.
func RequireRole(allowed ...Role) fiber.Handler {
	allowedSet := make(map[Role]struct{}, len(allowed))
	for _, role := range allowed {
		allowedSet[role] = struct{}{}
	}

	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		if principal.Role == RoleAdmin || len(allowedSet) == 0 {
			return c.Next()
		}
		if _, exists := allowedSet[principal.Role]; !exists {
			return apperrors.NewForbidden("insufficient role")
		}
		return c.Next()
	}
}

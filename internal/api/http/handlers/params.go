package handlers

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/modcenter/internal/auth"
	apperrors "github.com/spec-kit/modcenter/pkg/util/errorutil"
)

func ticketIDParam(c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.NewValidationError("invalid ticket id", map[string]any{"id": c.Params("id")})
	}
	return id, nil
}

// actorOrPrincipal falls back to the calling client when the body names no actor.
func actorOrPrincipal(c *fiber.Ctx, actorID string) string {
	if actorID = strings.TrimSpace(actorID); actorID != "" {
		return actorID
	}
	if principal, ok := auth.PrincipalFromContext(c); ok {
		return principal.ClientID
	}
	return ""
}

// requiredActor rejects a blank actor for operations that must name a human.
func requiredActor(actorID string) (string, error) {
	if actorID = strings.TrimSpace(actorID); actorID == "" {
		return "", apperrors.NewValidationError("actor_id required", nil)
	}
	return actorID, nil
}

func parseBody(c *fiber.Ctx, out any) error {
	if len(c.Body()) == 0 {
		return nil
	}
	if err := c.BodyParser(out); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	return nil
}

func optionalString(v string) *string {
	if v = strings.TrimSpace(v); v == "" {
		return nil
	}
	return &v
}

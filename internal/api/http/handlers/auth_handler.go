package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/modcenter/internal/api/dto"
	"github.com/spec-kit/modcenter/internal/service"
	apperrors "github.com/spec-kit/modcenter/pkg/util/errorutil"
)

// AuthHandler issues access tokens to API clients.
type AuthHandler struct {
	service *service.AuthService
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{service: authService}
}

// Token POST /auth/token.
func (h *AuthHandler) Token(c *fiber.Ctx) error {
	var req dto.TokenRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	issued, err := h.service.IssueToken(c.UserContext(), strings.TrimSpace(req.ClientID), req.ClientSecret)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.AuthResponse{
		Token:     issued.AccessToken,
		ExpiresAt: issued.ExpiresAt,
		Role:      string(issued.Role),
	}})
}

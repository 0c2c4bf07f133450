package handlers

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/modcenter/internal/api/dto"
	"github.com/spec-kit/modcenter/internal/domain"
	"github.com/spec-kit/modcenter/internal/service"
	apperrors "github.com/spec-kit/modcenter/pkg/util/errorutil"
)

const defaultStatsDays = 7

// ModeratorsHandler exposes the moderator roster, workload metrics and the
// guild read models.
type ModeratorsHandler struct {
	moderators *service.ModeratorService
	collector  *service.MetricsCollector
	burnout    *service.BurnoutDetector
	audit      *service.AuditLogger
}

// NewModeratorsHandler constructs handler.
func NewModeratorsHandler(moderators *service.ModeratorService, collector *service.MetricsCollector, burnout *service.BurnoutDetector, audit *service.AuditLogger) *ModeratorsHandler {
	return &ModeratorsHandler{moderators: moderators, collector: collector, burnout: burnout, audit: audit}
}

// List GET /v1/guilds/:guildID/moderators.
func (h *ModeratorsHandler) List(c *fiber.Ctx) error {
	profiles, err := h.moderators.ListModerators(c.UserContext(), c.Params("guildID"))
	if err != nil {
		return err
	}
	items := make([]dto.ModeratorResponse, 0, len(profiles))
	for i := range profiles {
		items = append(items, dto.NewModeratorResponse(&profiles[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Add POST /v1/guilds/:guildID/moderators.
func (h *ModeratorsHandler) Add(c *fiber.Ctx) error {
	var req dto.AddModeratorRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	profile, err := h.moderators.AddModerator(c.UserContext(), c.Params("guildID"), actorOrPrincipal(c, req.ActorID), req.UserID)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewModeratorResponse(profile)})
}

// Remove DELETE /v1/guilds/:guildID/moderators/:userID.
func (h *ModeratorsHandler) Remove(c *fiber.Ctx) error {
	err := h.moderators.RemoveModerator(c.UserContext(), c.Params("guildID"), actorOrPrincipal(c, c.Query("actor_id")), c.Params("userID"))
	if errors.Is(err, service.ErrAlreadyRemoved) {
		return c.JSON(fiber.Map{"data": fiber.Map{"removed": false}})
	}
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"removed": true}})
}

// SetStatus PATCH /v1/guilds/:guildID/moderators/:userID/status.
func (h *ModeratorsHandler) SetStatus(c *fiber.Ctx) error {
	var req dto.ModeratorStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	status, err := domain.ParseModStatus(req.Status)
	if err != nil {
		return apperrors.NewValidationError("unknown moderator status", map[string]any{"status": req.Status})
	}
	profile, err := h.moderators.SetStatus(c.UserContext(), c.Params("guildID"), actorOrPrincipal(c, req.ActorID), c.Params("userID"), status)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewModeratorResponse(profile)})
}

// SetOptOut PATCH /v1/guilds/:guildID/moderators/:userID/opt-out.
func (h *ModeratorsHandler) SetOptOut(c *fiber.Ctx) error {
	var req dto.OptOutRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	profile, err := h.moderators.SetOptOut(c.UserContext(), c.Params("guildID"), actorOrPrincipal(c, req.ActorID), c.Params("userID"), req.OptedOut)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewModeratorResponse(profile)})
}

// Stats GET /v1/guilds/:guildID/moderators/:userID/stats?days=.
func (h *ModeratorsHandler) Stats(c *fiber.Ctx) error {
	days := c.QueryInt("days", defaultStatsDays)
	if days < 0 {
		return apperrors.NewValidationError("days must not be negative", nil)
	}
	stats, err := h.collector.GetModStats(c.UserContext(), c.Params("userID"), c.Params("guildID"), days)
	if err != nil {
		return err
	}
	if stats == nil {
		return c.JSON(fiber.Map{"data": nil})
	}
	return c.JSON(fiber.Map{"data": dto.NewStatsResponse(*stats)})
}

// Reputation GET /v1/guilds/:guildID/moderators/:userID/reputation.
func (h *ModeratorsHandler) Reputation(c *fiber.Ctx) error {
	score, stats, err := h.moderators.Reputation(c.UserContext(), c.Params("guildID"), c.Params("userID"))
	if err != nil {
		return err
	}
	body := fiber.Map{
		"user_id":    c.Params("userID"),
		"reputation": dto.NewReputationResponse(score),
	}
	if stats != nil {
		body["stats"] = dto.NewStatsResponse(*stats)
	}
	return c.JSON(fiber.Map{"data": body})
}

// CheckBurnout POST /v1/guilds/:guildID/moderators/:userID/burnout-check.
func (h *ModeratorsHandler) CheckBurnout(c *fiber.Ctx) error {
	level, err := h.burnout.CheckBurnout(c.UserContext(), c.Params("userID"), c.Params("guildID"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.BurnoutResponse{Level: level}})
}

// RecordReopen POST /v1/guilds/:guildID/moderators/:userID/reopens.
func (h *ModeratorsHandler) RecordReopen(c *fiber.Ctx) error {
	var req dto.ActorRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if err := h.moderators.RecordReopen(c.UserContext(), c.Params("guildID"), actorOrPrincipal(c, req.ActorID), c.Params("userID")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// RecordResolution POST /v1/guilds/:guildID/moderators/:userID/resolutions.
func (h *ModeratorsHandler) RecordResolution(c *fiber.Ctx) error {
	var req dto.ResolutionRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	level, err := h.collector.TrackTicketResolution(c.UserContext(), c.Params("userID"), c.Params("guildID"), req.DurationSeconds)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.BurnoutResponse{Level: level}})
}

// Leaderboard GET /v1/guilds/:guildID/leaderboard.
func (h *ModeratorsHandler) Leaderboard(c *fiber.Ctx) error {
	board, err := h.moderators.Leaderboard(c.UserContext(), c.Params("guildID"))
	if err != nil {
		return err
	}
	items := make([]dto.LeaderboardEntryResponse, 0, len(board))
	for i, entry := range board {
		items = append(items, dto.LeaderboardEntryResponse{
			Rank:       i + 1,
			UserID:     entry.UserID,
			Status:     entry.Status,
			Reputation: dto.NewReputationResponse(entry.Reputation),
		})
	}
	return c.JSON(fiber.Map{"data": items})
}

// Dashboard GET /v1/guilds/:guildID/dashboard.
func (h *ModeratorsHandler) Dashboard(c *fiber.Ctx) error {
	snap, err := h.moderators.Dashboard(c.UserContext(), c.Params("guildID"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewDashboardResponse(snap)})
}

// AuditLogs GET /v1/guilds/:guildID/audit-logs?limit=&offset=.
func (h *ModeratorsHandler) AuditLogs(c *fiber.Ctx) error {
	entries, err := h.audit.GetLogs(c.UserContext(), c.Params("guildID"), c.QueryInt("limit", service.DefaultAuditPageSize), c.QueryInt("offset", 0))
	if err != nil {
		return err
	}
	items := make([]dto.AuditEntryResponse, 0, len(entries))
	for _, e := range entries {
		items = append(items, dto.NewAuditEntryResponse(e))
	}
	return c.JSON(fiber.Map{"data": items})
}

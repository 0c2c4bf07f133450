package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/modcenter/internal/api/dto"
	"github.com/spec-kit/modcenter/internal/domain"
	"github.com/spec-kit/modcenter/internal/service"
	apperrors "github.com/spec-kit/modcenter/pkg/util/errorutil"
)

// TicketsHandler exposes guild ticket configuration, the ticket lifecycle and
// moderator assignment.
type TicketsHandler struct {
	service *service.TicketService
	engine  *service.AssignmentEngine
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService, engine *service.AssignmentEngine) *TicketsHandler {
	return &TicketsHandler{service: ticketService, engine: engine}
}

// PutConfig PUT /v1/guilds/:guildID/ticket-config.
func (h *TicketsHandler) PutConfig(c *fiber.Ctx) error {
	var req dto.TicketConfigRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	cfg, err := h.service.ConfigureGuild(c.UserContext(), c.Params("guildID"), actorOrPrincipal(c, req.ActorID), req.SupportRoleID, req.CategoryID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketConfigResponse(cfg)})
}

// GetConfig GET /v1/guilds/:guildID/ticket-config.
func (h *TicketsHandler) GetConfig(c *fiber.Ctx) error {
	cfg, err := h.service.GetGuildConfig(c.UserContext(), c.Params("guildID"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketConfigResponse(cfg)})
}

// CreateTicket POST /v1/guilds/:guildID/tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	guildID := c.Params("guildID")
	if strings.TrimSpace(req.OwnerID) == "" {
		return apperrors.NewValidationError("owner_id required", nil)
	}

	existing, err := h.service.GetOpenTicketByUser(c.UserContext(), guildID, req.OwnerID)
	if err != nil {
		return err
	}
	if existing != nil {
		return apperrors.NewConflict("user already has an open ticket", map[string]any{
			"ticket_id":  existing.ID,
			"channel_id": existing.ChannelID,
		})
	}

	ticket, err := h.service.CreateTicket(c.UserContext(), service.TicketCreateInput{
		GuildID:       guildID,
		OwnerID:       req.OwnerID,
		OwnerUsername: req.OwnerUsername,
		CategoryID:    req.CategoryID,
		Subject:       req.Subject,
		Description:   req.Description,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// GetOpenTicket GET /v1/guilds/:guildID/tickets/open?user_id=.
func (h *TicketsHandler) GetOpenTicket(c *fiber.Ctx) error {
	userID := strings.TrimSpace(c.Query("user_id"))
	if userID == "" {
		return apperrors.NewValidationError("user_id required", nil)
	}
	ticket, err := h.service.GetOpenTicketByUser(c.UserContext(), c.Params("guildID"), userID)
	if err != nil {
		return err
	}
	if ticket == nil {
		return c.JSON(fiber.Map{"data": nil})
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// ListActive GET /v1/guilds/:guildID/tickets.
func (h *TicketsHandler) ListActive(c *fiber.Ctx) error {
	tickets, err := h.service.ListActiveTickets(c.UserContext(), c.Params("guildID"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponses(tickets)})
}

// GetByChannel GET /v1/channels/:channelID/ticket.
func (h *TicketsHandler) GetByChannel(c *fiber.Ctx) error {
	ticket, err := h.service.GetTicketByChannel(c.UserContext(), c.Params("channelID"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// GetTicket GET /v1/tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	id, err := ticketIDParam(c)
	if err != nil {
		return err
	}
	ticket, err := h.service.GetTicket(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// ListEvents GET /v1/tickets/:id/events.
func (h *TicketsHandler) ListEvents(c *fiber.Ctx) error {
	id, err := ticketIDParam(c)
	if err != nil {
		return err
	}
	trail, err := h.service.ListEvents(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketEventResponses(trail)})
}

// Claim POST /v1/tickets/:id/claim.
func (h *TicketsHandler) Claim(c *fiber.Ctx) error {
	id, err := ticketIDParam(c)
	if err != nil {
		return err
	}
	var req dto.ActorRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	actorID, err := requiredActor(req.ActorID)
	if err != nil {
		return err
	}
	ticket, err := h.service.ClaimTicket(c.UserContext(), id, actorID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// Close POST /v1/tickets/:id/close.
func (h *TicketsHandler) Close(c *fiber.Ctx) error {
	return h.actorTransition(c, h.service.CloseTicket)
}

// Archive POST /v1/tickets/:id/archive.
func (h *TicketsHandler) Archive(c *fiber.Ctx) error {
	return h.actorTransition(c, h.service.ArchiveTicket)
}

// Transfer POST /v1/tickets/:id/transfer.
func (h *TicketsHandler) Transfer(c *fiber.Ctx) error {
	id, err := ticketIDParam(c)
	if err != nil {
		return err
	}
	var req dto.TransferTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	actorID, err := requiredActor(req.ActorID)
	if err != nil {
		return err
	}
	ticket, err := h.service.TransferTicket(c.UserContext(), id, actorID, req.ModeratorID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// AutoAssign POST /v1/tickets/:id/auto-assign.
func (h *TicketsHandler) AutoAssign(c *fiber.Ctx) error {
	id, err := ticketIDParam(c)
	if err != nil {
		return err
	}
	ticket, err := h.engine.AutoAssign(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// Suggest GET /v1/guilds/:guildID/assignment/suggest?category_id=.
func (h *TicketsHandler) Suggest(c *fiber.Ctx) error {
	modID, err := h.engine.FindBestModerator(c.UserContext(), c.Params("guildID"), optionalString(c.Query("category_id")))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.SuggestionResponse{ModeratorID: modID}})
}

// Assign POST /v1/guilds/:guildID/tickets/:id/assign.
func (h *TicketsHandler) Assign(c *fiber.Ctx) error {
	id, err := ticketIDParam(c)
	if err != nil {
		return err
	}
	var req dto.AssignTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.engine.AssignTicket(c.UserContext(), id, req.ModeratorID, c.Params("guildID"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

type ticketTransition func(ctx context.Context, ticketID int64, actorID string) (*domain.Ticket, error)

func (h *TicketsHandler) actorTransition(c *fiber.Ctx, op ticketTransition) error {
	id, err := ticketIDParam(c)
	if err != nil {
		return err
	}
	var req dto.ActorRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	ticket, err := op(c.UserContext(), id, actorOrPrincipal(c, req.ActorID))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

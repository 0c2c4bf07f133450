package dto

import (
	"time"

	"github.com/spec-kit/modcenter/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	OwnerID       string `json:"owner_id"`
	OwnerUsername string `json:"owner_username"`
	CategoryID    string `json:"category_id"`
	Subject       string `json:"subject"`
	Description   string `json:"description"`
}

// ActorRequest names the chat user performing a lifecycle action.
type ActorRequest struct {
	ActorID string `json:"actor_id"`
}

// TransferTicketRequest payload.
type TransferTicketRequest struct {
	ActorID     string `json:"actor_id"`
	ModeratorID string `json:"moderator_id"`
}

// AssignTicketRequest payload.
type AssignTicketRequest struct {
	ModeratorID string `json:"moderator_id"`
}

// TicketConfigRequest payload.
type TicketConfigRequest struct {
	ActorID       string  `json:"actor_id"`
	SupportRoleID *string `json:"support_role_id"`
	CategoryID    *string `json:"category_id"`
}

// TicketResponse renders a ticket.
type TicketResponse struct {
	ID          int64               `json:"id"`
	GuildID     string              `json:"guild_id"`
	ChannelID   string              `json:"channel_id"`
	OwnerID     string              `json:"owner_id"`
	CategoryID  string              `json:"category_id"`
	Subject     string              `json:"subject"`
	Description string              `json:"description"`
	Status      domain.TicketStatus `json:"status"`
	ClaimedBy   *string             `json:"claimed_by"`
	CreatedAt   time.Time           `json:"created_at"`
	ClosedAt    *time.Time          `json:"closed_at"`
}

// TicketEventResponse renders one event trail entry.
type TicketEventResponse struct {
	ID        int64               `json:"id"`
	ActorID   string              `json:"actor_id"`
	Action    domain.TicketAction `json:"action"`
	CreatedAt time.Time           `json:"created_at"`
}

// TicketConfigResponse renders a guild configuration.
type TicketConfigResponse struct {
	GuildID       string    `json:"guild_id"`
	SupportRoleID *string   `json:"support_role_id"`
	CategoryID    *string   `json:"category_id"`
	Ready         bool      `json:"ready"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// SuggestionResponse is the outcome of a moderator search; ModeratorID is
// null when no moderator is available.
type SuggestionResponse struct {
	ModeratorID *string `json:"moderator_id"`
}

// NewTicketResponse maps a domain ticket.
func NewTicketResponse(t *domain.Ticket) TicketResponse {
	return TicketResponse{
		ID:          t.ID,
		GuildID:     t.GuildID,
		ChannelID:   t.ChannelID,
		OwnerID:     t.OwnerID,
		CategoryID:  t.CategoryID,
		Subject:     t.Subject,
		Description: t.Description,
		Status:      t.Status,
		ClaimedBy:   t.ClaimedBy,
		CreatedAt:   t.CreatedAt,
		ClosedAt:    t.ClosedAt,
	}
}

// NewTicketResponses maps a slice of tickets.
func NewTicketResponses(tickets []domain.Ticket) []TicketResponse {
	out := make([]TicketResponse, 0, len(tickets))
	for i := range tickets {
		out = append(out, NewTicketResponse(&tickets[i]))
	}
	return out
}

// NewTicketEventResponses maps an event trail.
func NewTicketEventResponses(trail []domain.TicketEvent) []TicketEventResponse {
	out := make([]TicketEventResponse, 0, len(trail))
	for _, e := range trail {
		out = append(out, TicketEventResponse{ID: e.ID, ActorID: e.ActorID, Action: e.Action, CreatedAt: e.CreatedAt})
	}
	return out
}

// NewTicketConfigResponse maps a guild configuration.
func NewTicketConfigResponse(cfg *domain.TicketConfig) TicketConfigResponse {
	return TicketConfigResponse{
		GuildID:       cfg.GuildID,
		SupportRoleID: cfg.SupportRoleID,
		CategoryID:    cfg.CategoryID,
		Ready:         cfg.Ready(),
		UpdatedAt:     cfg.UpdatedAt,
	}
}

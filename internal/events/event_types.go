package events

import (
	"time"

	"github.com/spec-kit/modcenter/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated     EventType = "ticket_created"
	EventTicketClaimed     EventType = "ticket_claimed"
	EventTicketAssigned    EventType = "ticket_assigned"
	EventTicketTransferred EventType = "ticket_transferred"
	EventTicketClosed      EventType = "ticket_closed"
	EventTicketArchived    EventType = "ticket_archived"
	EventBurnoutDetected   EventType = "burnout_detected"
	EventConfigUpdated     EventType = "ticket_config_updated"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	GuildID   string    `json:"guild_id"`
	TicketID  int64     `json:"ticket_id,omitempty"`
	ActorID   string    `json:"actor_id"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	OwnerID    string `json:"owner_id"`
	ChannelID  string `json:"channel_id"`
	CategoryID string `json:"category_id"`
	Subject    string `json:"subject"`
}

// TicketAssignedPayload is shared by claim, auto-assign and transfer events.
type TicketAssignedPayload struct {
	ModeratorID string                  `json:"moderator_id"`
	PreviousID  *string                 `json:"previous_id,omitempty"`
	Reason      domain.AssignmentReason `json:"reason"`
}

// TicketClosedPayload payload.
type TicketClosedPayload struct {
	ClaimedBy         *string `json:"claimed_by,omitempty"`
	ResolutionSeconds int64   `json:"resolution_seconds"`
}

// ConfigUpdatedPayload payload.
type ConfigUpdatedPayload struct {
	SupportRoleID *string `json:"support_role_id,omitempty"`
	CategoryID    *string `json:"category_id,omitempty"`
}

// BurnoutDetectedPayload is emitted when a check classifies a moderator HIGH.
type BurnoutDetectedPayload struct {
	ModeratorID string              `json:"moderator_id"`
	Score       int                 `json:"score"`
	Level       domain.BurnoutLevel `json:"level"`
}

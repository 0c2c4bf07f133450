package domain

import (
	"errors"
	"fmt"
	"time"
)

// ErrUnknownEnum is returned when a persisted enum value is not recognized.
var ErrUnknownEnum = errors.New("domain: unknown enum value")

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen     TicketStatus = "OPEN"
	TicketStatusClaimed  TicketStatus = "CLAIMED"
	TicketStatusClosed   TicketStatus = "CLOSED"
	TicketStatusArchived TicketStatus = "ARCHIVED"
)

// ParseTicketStatus converts a stored value into a TicketStatus.
func ParseTicketStatus(v string) (TicketStatus, error) {
	switch s := TicketStatus(v); s {
	case TicketStatusOpen, TicketStatusClaimed, TicketStatusClosed, TicketStatusArchived:
		return s, nil
	}
	return "", fmt.Errorf("%w: ticket status %q", ErrUnknownEnum, v)
}

// Active reports whether the ticket still counts against its owner's open-ticket limit.
func (s TicketStatus) Active() bool {
	return s == TicketStatusOpen || s == TicketStatusClaimed
}

// Ticket is one support request scoped to a guild.
type Ticket struct {
	ID          int64
	GuildID     string
	ChannelID   string
	OwnerID     string
	CategoryID  string
	Subject     string
	Description string
	Status      TicketStatus
	ClaimedBy   *string
	CreatedAt   time.Time
	ClosedAt    *time.Time
}

// ResolutionSeconds returns the whole seconds between creation and closure.
func (t *Ticket) ResolutionSeconds() int64 {
	if t.ClosedAt == nil {
		return 0
	}
	d := t.ClosedAt.Sub(t.CreatedAt)
	if d < 0 {
		return 0
	}
	return int64(d / time.Second)
}

// TicketConfig is the per-guild ticket support configuration.
type TicketConfig struct {
	GuildID       string
	SupportRoleID *string
	CategoryID    *string
	UpdatedAt     time.Time
}

// Ready reports whether ticket creation is possible for the guild.
func (c *TicketConfig) Ready() bool {
	return c != nil && c.SupportRoleID != nil && *c.SupportRoleID != ""
}

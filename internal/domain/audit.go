package domain

import "time"

// AuditAction names a moderation or administrative action.
type AuditAction string

const (
	AuditTicketConfigUpdated     AuditAction = "TICKET_CONFIG_UPDATED"
	AuditTicketCreated           AuditAction = "TICKET_CREATED"
	AuditTicketClaimed           AuditAction = "TICKET_CLAIMED"
	AuditTicketAutoAssigned      AuditAction = "TICKET_AUTO_ASSIGNED"
	AuditTicketTransferred       AuditAction = "TICKET_TRANSFERRED"
	AuditTicketClosed            AuditAction = "TICKET_CLOSED"
	AuditTicketArchived          AuditAction = "TICKET_ARCHIVED"
	AuditModeratorAdded          AuditAction = "MODERATOR_ADDED"
	AuditModeratorRemoved        AuditAction = "MODERATOR_REMOVED"
	AuditModeratorStatusChanged  AuditAction = "MODERATOR_STATUS_CHANGED"
	AuditModeratorOptOutChanged  AuditAction = "MODERATOR_OPT_OUT_CHANGED"
	AuditModeratorReopenRecorded AuditAction = "MODERATOR_REOPEN_RECORDED"
)

// AuditEntry is an append-only record of an action.
type AuditEntry struct {
	ID        int64
	GuildID   string
	ActorID   string
	Action    AuditAction
	TargetID  *string
	Details   map[string]any
	CreatedAt time.Time
}

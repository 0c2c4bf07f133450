package domain

import (
	"fmt"
	"time"
)

// ModStatus is the operator-controlled availability of a moderator.
type ModStatus string

const (
	ModStatusActive  ModStatus = "ACTIVE"
	ModStatusBusy    ModStatus = "BUSY"
	ModStatusIdle    ModStatus = "IDLE"
	ModStatusOffline ModStatus = "OFFLINE"
)

// ParseModStatus converts a stored value into a ModStatus.
func ParseModStatus(v string) (ModStatus, error) {
	switch s := ModStatus(v); s {
	case ModStatusActive, ModStatusBusy, ModStatusIdle, ModStatusOffline:
		return s, nil
	}
	return "", fmt.Errorf("%w: moderator status %q", ErrUnknownEnum, v)
}

// ModeratorProfile is one moderator enrolled in a guild's program.
type ModeratorProfile struct {
	GuildID      string
	UserID       string
	Status       ModStatus
	OptedOut     bool
	BurnoutScore int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ModeratorMetrics aggregates a moderator's work for one calendar day.
type ModeratorMetrics struct {
	ModID           string
	GuildID         string
	Date            time.Time
	TicketsResolved int
	// AvgResponseTime is in seconds.
	AvgResponseTime      float64
	TotalResponseSeconds int64
	ReopenCount          int
}

// AssignmentReason records why a moderator holds a ticket.
type AssignmentReason string

const (
	AssignmentReasonAuto   AssignmentReason = "AUTO"
	AssignmentReasonClaim  AssignmentReason = "CLAIM"
	AssignmentReasonManual AssignmentReason = "MANUAL"
)

// ParseAssignmentReason converts a stored value into an AssignmentReason.
func ParseAssignmentReason(v string) (AssignmentReason, error) {
	switch r := AssignmentReason(v); r {
	case AssignmentReasonAuto, AssignmentReasonClaim, AssignmentReasonManual:
		return r, nil
	}
	return "", fmt.Errorf("%w: assignment reason %q", ErrUnknownEnum, v)
}

// TicketAssignment is a routing decision; it is active while UnassignedAt is nil.
type TicketAssignment struct {
	ID           int64
	TicketID     int64
	ModID        string
	GuildID      string
	Reason       AssignmentReason
	AssignedAt   time.Time
	UnassignedAt *time.Time
}

// Candidate is a moderator profile annotated with its current open workload.
type Candidate struct {
	Profile           ModeratorProfile
	ActiveAssignments int
}

// Day truncates t to the UTC calendar day used to key metrics rows.
func Day(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

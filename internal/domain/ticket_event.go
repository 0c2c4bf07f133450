package domain

import (
	"fmt"
	"time"
)

// TicketAction tags an entry in a ticket's event trail.
type TicketAction string

const (
	TicketActionCreated     TicketAction = "CREATED"
	TicketActionClaimed     TicketAction = "CLAIMED"
	TicketActionTransferred TicketAction = "TRANSFERRED"
	TicketActionClosed      TicketAction = "CLOSED"
	TicketActionReopened    TicketAction = "REOPENED"
	TicketActionDeleted     TicketAction = "DELETED"
)

// ParseTicketAction converts a stored value into a TicketAction.
func ParseTicketAction(v string) (TicketAction, error) {
	switch a := TicketAction(v); a {
	case TicketActionCreated, TicketActionClaimed, TicketActionTransferred,
		TicketActionClosed, TicketActionReopened, TicketActionDeleted:
		return a, nil
	}
	return "", fmt.Errorf("%w: ticket action %q", ErrUnknownEnum, v)
}

// TicketEvent is an immutable audit trail entry owned by its ticket.
type TicketEvent struct {
	ID        int64
	TicketID  int64
	ActorID   string
	Action    TicketAction
	CreatedAt time.Time
}

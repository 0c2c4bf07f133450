package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/modcenter/internal/domain"
)

// TicketEventRepository reads the append-only ticket event trail. Events are
// written by TicketRepository inside the transition transaction.
type TicketEventRepository interface {
	ListByTicket(ctx context.Context, ticketID int64) ([]domain.TicketEvent, error)
}

type ticketEventRepository struct {
	pool *pgxpool.Pool
}

// NewTicketEventRepository builds repository.
func NewTicketEventRepository(pool *pgxpool.Pool) TicketEventRepository {
	return &ticketEventRepository{pool: pool}
}

func (r *ticketEventRepository) ListByTicket(ctx context.Context, ticketID int64) ([]domain.TicketEvent, error) {
	const query = `
        SELECT id, ticket_id, actor_id, action, created_at
        FROM ticket_events WHERE ticket_id=$1 ORDER BY id ASC`
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.TicketEvent
	for rows.Next() {
		var (
			event  domain.TicketEvent
			action string
		)
		if err := rows.Scan(
			&event.ID,
			&event.TicketID,
			&event.ActorID,
			&action,
			&event.CreatedAt,
		); err != nil {
			return nil, err
		}
		if event.Action, err = domain.ParseTicketAction(action); err != nil {
			return nil, err
		}
		result = append(result, event)
	}
	return result, rows.Err()
}

func insertEvent(ctx context.Context, tx pgx.Tx, ticketID int64, actorID string, action domain.TicketAction) error {
	const query = `INSERT INTO ticket_events (ticket_id, actor_id, action) VALUES ($1,$2,$3)`
	if _, err := tx.Exec(ctx, query, ticketID, actorID, string(action)); err != nil {
		return fmt.Errorf("insert ticket event: %w", err)
	}
	return nil
}

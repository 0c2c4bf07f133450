package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/modcenter/internal/domain"
)

// AssignmentRepository reads ticket assignments. Rows are written by
// TicketRepository as part of claim, transfer and close.
type AssignmentRepository interface {
	CountActive(ctx context.Context, guildID, modID string) (int, error)
	ListByTicket(ctx context.Context, ticketID int64) ([]domain.TicketAssignment, error)
}

type assignmentRepository struct {
	pool *pgxpool.Pool
}

// NewAssignmentRepository builds repository.
func NewAssignmentRepository(pool *pgxpool.Pool) AssignmentRepository {
	return &assignmentRepository{pool: pool}
}

func (r *assignmentRepository) CountActive(ctx context.Context, guildID, modID string) (int, error) {
	const query = `
        SELECT COUNT(*) FROM ticket_assignments
        WHERE guild_id=$1 AND mod_id=$2 AND unassigned_at IS NULL`
	var count int
	if err := r.pool.QueryRow(ctx, query, guildID, modID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *assignmentRepository) ListByTicket(ctx context.Context, ticketID int64) ([]domain.TicketAssignment, error) {
	const query = `
        SELECT id, ticket_id, mod_id, guild_id, reason, assigned_at, unassigned_at
        FROM ticket_assignments WHERE ticket_id=$1 ORDER BY id ASC`
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.TicketAssignment
	for rows.Next() {
		var (
			a      domain.TicketAssignment
			reason string
		)
		if err := rows.Scan(
			&a.ID,
			&a.TicketID,
			&a.ModID,
			&a.GuildID,
			&reason,
			&a.AssignedAt,
			&a.UnassignedAt,
		); err != nil {
			return nil, err
		}
		if a.Reason, err = domain.ParseAssignmentReason(reason); err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	return result, rows.Err()
}

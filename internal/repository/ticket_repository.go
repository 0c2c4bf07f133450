package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/modcenter/internal/domain"
)

// ClaimParams describes an OPEN -> CLAIMED transition.
type ClaimParams struct {
	TicketID int64
	// GuildID, when set, must match the ticket's guild.
	GuildID string
	ModID   string
	ActorID string
	Reason  domain.AssignmentReason
}

// TransferParams describes a hand-over of a CLAIMED ticket.
type TransferParams struct {
	TicketID int64
	ActorID  string
	ModID    string
	At       time.Time
}

// TicketRepository encapsulates ticket persistence. Every status change is a
// conditional update executed in one transaction with its event and assignment
// writes.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id int64) (*domain.Ticket, error)
	GetByChannel(ctx context.Context, channelID string) (*domain.Ticket, error)
	GetOpenByOwner(ctx context.Context, guildID, ownerID string) (*domain.Ticket, error)
	ListActive(ctx context.Context, guildID string) ([]domain.Ticket, error)
	CountActive(ctx context.Context, guildID string) (int, error)
	Claim(ctx context.Context, params ClaimParams) (*domain.Ticket, error)
	Transfer(ctx context.Context, params TransferParams) (*domain.Ticket, error)
	Close(ctx context.Context, id int64, closerID string) (*domain.Ticket, error)
	Archive(ctx context.Context, id int64) (*domain.Ticket, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `id, guild_id, channel_id, owner_id, category_id, subject, description,
               status, claimed_by, created_at, closed_at`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (guild_id, channel_id, owner_id, category_id, subject, description, status)
        VALUES ($1,$2,$3,$4,$5,$6,'OPEN')
        RETURNING id, status, created_at`

	return withTx(ctx, r.pool, func(tx pgx.Tx) error {
		var status string
		if err := tx.QueryRow(ctx, query,
			ticket.GuildID,
			ticket.ChannelID,
			ticket.OwnerID,
			ticket.CategoryID,
			ticket.Subject,
			ticket.Description,
		).Scan(&ticket.ID, &status, &ticket.CreatedAt); err != nil {
			return fmt.Errorf("insert ticket: %w", err)
		}
		ticket.Status = domain.TicketStatus(status)
		return insertEvent(ctx, tx, ticket.ID, ticket.OwnerID, domain.TicketActionCreated)
	})
}

func (r *ticketRepository) GetByID(ctx context.Context, id int64) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1`
	return scanTicket(r.pool.QueryRow(ctx, query, id))
}

func (r *ticketRepository) GetByChannel(ctx context.Context, channelID string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE channel_id=$1 ORDER BY id DESC LIMIT 1`
	return scanTicket(r.pool.QueryRow(ctx, query, channelID))
}

func (r *ticketRepository) GetOpenByOwner(ctx context.Context, guildID, ownerID string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + `
        FROM tickets
        WHERE guild_id=$1 AND owner_id=$2 AND status IN ('OPEN','CLAIMED')
        ORDER BY created_at DESC LIMIT 1`
	return scanTicket(r.pool.QueryRow(ctx, query, guildID, ownerID))
}

func (r *ticketRepository) ListActive(ctx context.Context, guildID string) ([]domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + `
        FROM tickets
        WHERE guild_id=$1 AND status IN ('OPEN','CLAIMED')
        ORDER BY created_at ASC, id ASC`
	rows, err := r.pool.Query(ctx, query, guildID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}

func (r *ticketRepository) CountActive(ctx context.Context, guildID string) (int, error) {
	const query = `SELECT COUNT(*) FROM tickets WHERE guild_id=$1 AND status IN ('OPEN','CLAIMED')`
	var count int
	if err := r.pool.QueryRow(ctx, query, guildID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *ticketRepository) Claim(ctx context.Context, params ClaimParams) (*domain.Ticket, error) {
	query := `
        UPDATE tickets SET status='CLAIMED', claimed_by=$2
        WHERE id=$1 AND status='OPEN' AND ($3 = '' OR guild_id=$3)
        RETURNING ` + ticketColumns

	var ticket *domain.Ticket
	err := withTx(ctx, r.pool, func(tx pgx.Tx) error {
		var err error
		ticket, err = scanTicket(tx.QueryRow(ctx, query, params.TicketID, params.ModID, params.GuildID))
		if errors.Is(err, pgx.ErrNoRows) {
			return transitionMiss(ctx, tx, params.TicketID, params.GuildID)
		}
		if err != nil {
			return fmt.Errorf("claim ticket: %w", err)
		}
		if err := insertEvent(ctx, tx, ticket.ID, params.ActorID, domain.TicketActionClaimed); err != nil {
			return err
		}
		return insertAssignment(ctx, tx, ticket.ID, params.ModID, ticket.GuildID, params.Reason)
	})
	if err != nil {
		return nil, err
	}
	return ticket, nil
}

func (r *ticketRepository) Transfer(ctx context.Context, params TransferParams) (*domain.Ticket, error) {
	query := `
        UPDATE tickets SET claimed_by=$2
        WHERE id=$1 AND status='CLAIMED'
        RETURNING ` + ticketColumns

	var ticket *domain.Ticket
	err := withTx(ctx, r.pool, func(tx pgx.Tx) error {
		var err error
		ticket, err = scanTicket(tx.QueryRow(ctx, query, params.TicketID, params.ModID))
		if errors.Is(err, pgx.ErrNoRows) {
			return transitionMiss(ctx, tx, params.TicketID, "")
		}
		if err != nil {
			return fmt.Errorf("transfer ticket: %w", err)
		}
		if err := unassignTicket(ctx, tx, ticket.ID, params.At); err != nil {
			return err
		}
		if err := insertAssignment(ctx, tx, ticket.ID, params.ModID, ticket.GuildID, domain.AssignmentReasonManual); err != nil {
			return err
		}
		return insertEvent(ctx, tx, ticket.ID, params.ActorID, domain.TicketActionTransferred)
	})
	if err != nil {
		return nil, err
	}
	return ticket, nil
}

// Close stamps closed_at from the database clock, the same clock that set
// created_at, so resolution times never mix clocks.
func (r *ticketRepository) Close(ctx context.Context, id int64, closerID string) (*domain.Ticket, error) {
	query := `
        UPDATE tickets SET status='CLOSED', closed_at=COALESCE(closed_at, NOW())
        WHERE id=$1 AND status IN ('OPEN','CLAIMED')
        RETURNING ` + ticketColumns

	var ticket *domain.Ticket
	err := withTx(ctx, r.pool, func(tx pgx.Tx) error {
		var err error
		ticket, err = scanTicket(tx.QueryRow(ctx, query, id))
		if errors.Is(err, pgx.ErrNoRows) {
			return transitionMiss(ctx, tx, id, "")
		}
		if err != nil {
			return fmt.Errorf("close ticket: %w", err)
		}
		if err := insertEvent(ctx, tx, ticket.ID, closerID, domain.TicketActionClosed); err != nil {
			return err
		}
		return unassignTicket(ctx, tx, ticket.ID, *ticket.ClosedAt)
	})
	if err != nil {
		return nil, err
	}
	return ticket, nil
}

func (r *ticketRepository) Archive(ctx context.Context, id int64) (*domain.Ticket, error) {
	query := `
        UPDATE tickets SET status='ARCHIVED'
        WHERE id=$1 AND status='CLOSED'
        RETURNING ` + ticketColumns

	var ticket *domain.Ticket
	err := withTx(ctx, r.pool, func(tx pgx.Tx) error {
		var err error
		ticket, err = scanTicket(tx.QueryRow(ctx, query, id))
		if errors.Is(err, pgx.ErrNoRows) {
			return transitionMiss(ctx, tx, id, "")
		}
		if err != nil {
			return fmt.Errorf("archive ticket: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ticket, nil
}

// transitionMiss tells a missing ticket (pgx.ErrNoRows) apart from one that
// exists in another state (ErrStatusConflict).
func transitionMiss(ctx context.Context, tx pgx.Tx, id int64, guildID string) error {
	const query = `SELECT EXISTS (SELECT 1 FROM tickets WHERE id=$1 AND ($2 = '' OR guild_id=$2))`
	var exists bool
	if err := tx.QueryRow(ctx, query, id, guildID).Scan(&exists); err != nil {
		return fmt.Errorf("check ticket: %w", err)
	}
	if !exists {
		return pgx.ErrNoRows
	}
	return ErrStatusConflict
}

func unassignTicket(ctx context.Context, tx pgx.Tx, ticketID int64, at time.Time) error {
	const query = `UPDATE ticket_assignments SET unassigned_at=$2 WHERE ticket_id=$1 AND unassigned_at IS NULL`
	if _, err := tx.Exec(ctx, query, ticketID, at); err != nil {
		return fmt.Errorf("unassign ticket: %w", err)
	}
	return nil
}

// insertAssignment records a routing decision. CLAIM rows are only written when
// the claimer has a moderator profile; other reasons require one.
func insertAssignment(ctx context.Context, tx pgx.Tx, ticketID int64, modID, guildID string, reason domain.AssignmentReason) error {
	const required = `
        INSERT INTO ticket_assignments (ticket_id, mod_id, guild_id, reason)
        VALUES ($1,$2,$3,$4)`
	const optional = `
        INSERT INTO ticket_assignments (ticket_id, mod_id, guild_id, reason)
        SELECT $1::bigint, $2::text, $3::text, $4::text
        WHERE EXISTS (SELECT 1 FROM moderator_profiles WHERE guild_id=$3 AND user_id=$2)`

	query := required
	if reason == domain.AssignmentReasonClaim {
		query = optional
	}
	if _, err := tx.Exec(ctx, query, ticketID, modID, guildID, string(reason)); err != nil {
		if pgCode(err) == pgForeignKeyViolation {
			return fmt.Errorf("insert assignment: %w", ErrUnknownModerator)
		}
		return fmt.Errorf("insert assignment: %w", err)
	}
	return nil
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var (
		ticket domain.Ticket
		status string
	)
	if err := row.Scan(
		&ticket.ID,
		&ticket.GuildID,
		&ticket.ChannelID,
		&ticket.OwnerID,
		&ticket.CategoryID,
		&ticket.Subject,
		&ticket.Description,
		&status,
		&ticket.ClaimedBy,
		&ticket.CreatedAt,
		&ticket.ClosedAt,
	); err != nil {
		return nil, err
	}
	parsed, err := domain.ParseTicketStatus(status)
	if err != nil {
		return nil, err
	}
	ticket.Status = parsed
	return &ticket, nil
}

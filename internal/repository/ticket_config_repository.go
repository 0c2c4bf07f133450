package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/modcenter/internal/domain"
)

// TicketConfigRepository persists per-guild ticket configuration.
type TicketConfigRepository interface {
	Get(ctx context.Context, guildID string) (*domain.TicketConfig, error)
	Upsert(ctx context.Context, cfg *domain.TicketConfig) error
}

type ticketConfigRepository struct {
	pool *pgxpool.Pool
}

// NewTicketConfigRepository builds repository.
func NewTicketConfigRepository(pool *pgxpool.Pool) TicketConfigRepository {
	return &ticketConfigRepository{pool: pool}
}

func (r *ticketConfigRepository) Get(ctx context.Context, guildID string) (*domain.TicketConfig, error) {
	const query = `SELECT guild_id, support_role_id, category_id, updated_at FROM ticket_configs WHERE guild_id=$1`
	var cfg domain.TicketConfig
	if err := r.pool.QueryRow(ctx, query, guildID).Scan(
		&cfg.GuildID,
		&cfg.SupportRoleID,
		&cfg.CategoryID,
		&cfg.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (r *ticketConfigRepository) Upsert(ctx context.Context, cfg *domain.TicketConfig) error {
	const query = `
        INSERT INTO ticket_configs (guild_id, support_role_id, category_id, updated_at)
        VALUES ($1,$2,$3,NOW())
        ON CONFLICT (guild_id) DO UPDATE SET
            support_role_id = EXCLUDED.support_role_id,
            category_id = EXCLUDED.category_id,
            updated_at = NOW()
        RETURNING updated_at`
	return r.pool.QueryRow(ctx, query, cfg.GuildID, cfg.SupportRoleID, cfg.CategoryID).Scan(&cfg.UpdatedAt)
}

package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/modcenter/internal/domain"
)

// AuditRepository stores the append-only moderation audit log.
type AuditRepository interface {
	Create(ctx context.Context, entry *domain.AuditEntry) error
	List(ctx context.Context, guildID string, limit, offset int) ([]domain.AuditEntry, error)
}

type auditRepository struct {
	pool *pgxpool.Pool
}

// NewAuditRepository builds repository.
func NewAuditRepository(pool *pgxpool.Pool) AuditRepository {
	return &auditRepository{pool: pool}
}

func (r *auditRepository) Create(ctx context.Context, entry *domain.AuditEntry) error {
	const query = `
        INSERT INTO mod_audit_logs (guild_id, actor_id, action, target_id, details)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id, created_at`

	var details []byte
	if entry.Details != nil {
		var err error
		if details, err = json.Marshal(entry.Details); err != nil {
			return fmt.Errorf("encode audit details: %w", err)
		}
	}
	return r.pool.QueryRow(ctx, query,
		entry.GuildID,
		entry.ActorID,
		string(entry.Action),
		entry.TargetID,
		details,
	).Scan(&entry.ID, &entry.CreatedAt)
}

func (r *auditRepository) List(ctx context.Context, guildID string, limit, offset int) ([]domain.AuditEntry, error) {
	const query = `
        SELECT id, guild_id, actor_id, action, target_id, details, created_at
        FROM mod_audit_logs WHERE guild_id=$1
        ORDER BY created_at DESC, id DESC
        LIMIT $2 OFFSET $3`
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := r.pool.Query(ctx, query, guildID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.AuditEntry
	for rows.Next() {
		var (
			entry   domain.AuditEntry
			action  string
			details []byte
		)
		if err := rows.Scan(
			&entry.ID,
			&entry.GuildID,
			&entry.ActorID,
			&action,
			&entry.TargetID,
			&details,
			&entry.CreatedAt,
		); err != nil {
			return nil, err
		}
		entry.Action = domain.AuditAction(action)
		if len(details) > 0 {
			if err := json.Unmarshal(details, &entry.Details); err != nil {
				return nil, fmt.Errorf("decode audit details: %w", err)
			}
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}

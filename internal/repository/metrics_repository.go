package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/modcenter/internal/domain"
)

// MetricsRepository stores per-day moderator metrics keyed by
// (mod_id, guild_id, date).
type MetricsRepository interface {
	RecordResolution(ctx context.Context, modID, guildID string, day time.Time, seconds int64) error
	RecordReopen(ctx context.Context, modID, guildID string, day time.Time) error
	GetDaily(ctx context.Context, modID, guildID string, day time.Time) (*domain.ModeratorMetrics, error)
	ListSince(ctx context.Context, modID, guildID string, since time.Time) ([]domain.ModeratorMetrics, error)
	ListGuildDay(ctx context.Context, guildID string, day time.Time) ([]domain.ModeratorMetrics, error)
}

type metricsRepository struct {
	pool *pgxpool.Pool
}

// NewMetricsRepository builds repository.
func NewMetricsRepository(pool *pgxpool.Pool) MetricsRepository {
	return &metricsRepository{pool: pool}
}

const metricsColumns = `mod_id, guild_id, date, tickets_resolved, avg_response_time, total_response_seconds, reopen_count`

// RecordResolution increments the day's resolved count and keeps the average
// as total seconds over resolved tickets.
func (r *metricsRepository) RecordResolution(ctx context.Context, modID, guildID string, day time.Time, seconds int64) error {
	const query = `
        INSERT INTO moderator_metrics (mod_id, guild_id, date, tickets_resolved, avg_response_time, total_response_seconds)
        VALUES ($1,$2,$3,1,$4,$5)
        ON CONFLICT (mod_id, guild_id, date) DO UPDATE SET
            tickets_resolved = moderator_metrics.tickets_resolved + 1,
            total_response_seconds = moderator_metrics.total_response_seconds + EXCLUDED.total_response_seconds,
            avg_response_time = (moderator_metrics.total_response_seconds + EXCLUDED.total_response_seconds)::float8
                / (moderator_metrics.tickets_resolved + 1)`
	_, err := r.pool.Exec(ctx, query, modID, guildID, day, float64(seconds), seconds)
	return profileRequired(err)
}

func (r *metricsRepository) RecordReopen(ctx context.Context, modID, guildID string, day time.Time) error {
	const query = `
        INSERT INTO moderator_metrics (mod_id, guild_id, date, reopen_count)
        VALUES ($1,$2,$3,1)
        ON CONFLICT (mod_id, guild_id, date) DO UPDATE SET
            reopen_count = moderator_metrics.reopen_count + 1`
	_, err := r.pool.Exec(ctx, query, modID, guildID, day)
	return profileRequired(err)
}

// profileRequired reports writes for moderators without a profile as
// ErrUnknownModerator.
func profileRequired(err error) error {
	if pgCode(err) == pgForeignKeyViolation {
		return ErrUnknownModerator
	}
	return err
}

func (r *metricsRepository) GetDaily(ctx context.Context, modID, guildID string, day time.Time) (*domain.ModeratorMetrics, error) {
	query := `SELECT ` + metricsColumns + ` FROM moderator_metrics WHERE mod_id=$1 AND guild_id=$2 AND date=$3`
	var m domain.ModeratorMetrics
	if err := r.pool.QueryRow(ctx, query, modID, guildID, day).Scan(
		&m.ModID,
		&m.GuildID,
		&m.Date,
		&m.TicketsResolved,
		&m.AvgResponseTime,
		&m.TotalResponseSeconds,
		&m.ReopenCount,
	); err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *metricsRepository) ListSince(ctx context.Context, modID, guildID string, since time.Time) ([]domain.ModeratorMetrics, error) {
	query := `SELECT ` + metricsColumns + `
        FROM moderator_metrics WHERE mod_id=$1 AND guild_id=$2 AND date >= $3 ORDER BY date ASC`
	return r.list(ctx, query, modID, guildID, since)
}

func (r *metricsRepository) ListGuildDay(ctx context.Context, guildID string, day time.Time) ([]domain.ModeratorMetrics, error) {
	query := `SELECT ` + metricsColumns + ` FROM moderator_metrics WHERE guild_id=$1 AND date=$2 ORDER BY mod_id`
	return r.list(ctx, query, guildID, day)
}

func (r *metricsRepository) list(ctx context.Context, query string, args ...any) ([]domain.ModeratorMetrics, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.ModeratorMetrics
	for rows.Next() {
		var m domain.ModeratorMetrics
		if err := rows.Scan(
			&m.ModID,
			&m.GuildID,
			&m.Date,
			&m.TicketsResolved,
			&m.AvgResponseTime,
			&m.TotalResponseSeconds,
			&m.ReopenCount,
		); err != nil {
			return nil, err
		}
		result = append(result, m)
	}
	return result, rows.Err()
}

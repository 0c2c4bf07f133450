package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/modcenter/internal/domain"
)

// ModeratorRepository handles persistence for moderator profiles.
type ModeratorRepository interface {
	Create(ctx context.Context, profile *domain.ModeratorProfile) error
	Get(ctx context.Context, guildID, userID string) (*domain.ModeratorProfile, error)
	List(ctx context.Context, guildID string) ([]domain.ModeratorProfile, error)
	ListAll(ctx context.Context) ([]domain.ModeratorProfile, error)
	ListCandidates(ctx context.Context, guildID string) ([]domain.Candidate, error)
	UpdateBurnoutScore(ctx context.Context, guildID, userID string, score int) error
	UpdateStatus(ctx context.Context, guildID, userID string, status domain.ModStatus) error
	SetOptOut(ctx context.Context, guildID, userID string, optedOut bool) error
	Delete(ctx context.Context, guildID, userID string) error
}

type moderatorRepository struct {
	pool *pgxpool.Pool
}

// NewModeratorRepository instantiates the repository.
func NewModeratorRepository(pool *pgxpool.Pool) ModeratorRepository {
	return &moderatorRepository{pool: pool}
}

const profileColumns = `guild_id, user_id, status, opted_out, burnout_score, created_at, updated_at`

func (r *moderatorRepository) Create(ctx context.Context, profile *domain.ModeratorProfile) error {
	const query = `
        INSERT INTO moderator_profiles (guild_id, user_id, status, opted_out)
        VALUES ($1,$2,$3,$4)
        RETURNING burnout_score, created_at, updated_at`

	if profile.Status == "" {
		profile.Status = domain.ModStatusActive
	}
	err := r.pool.QueryRow(ctx, query,
		profile.GuildID,
		profile.UserID,
		string(profile.Status),
		profile.OptedOut,
	).Scan(&profile.BurnoutScore, &profile.CreatedAt, &profile.UpdatedAt)
	if pgCode(err) == pgUniqueViolation {
		return ErrDuplicate
	}
	return err
}

func (r *moderatorRepository) Get(ctx context.Context, guildID, userID string) (*domain.ModeratorProfile, error) {
	query := `SELECT ` + profileColumns + ` FROM moderator_profiles WHERE guild_id=$1 AND user_id=$2`
	return scanProfile(r.pool.QueryRow(ctx, query, guildID, userID))
}

func (r *moderatorRepository) List(ctx context.Context, guildID string) ([]domain.ModeratorProfile, error) {
	query := `SELECT ` + profileColumns + ` FROM moderator_profiles WHERE guild_id=$1 ORDER BY created_at, user_id`
	return r.list(ctx, query, guildID)
}

func (r *moderatorRepository) ListAll(ctx context.Context) ([]domain.ModeratorProfile, error) {
	query := `SELECT ` + profileColumns + ` FROM moderator_profiles ORDER BY guild_id, created_at, user_id`
	return r.list(ctx, query)
}

func (r *moderatorRepository) list(ctx context.Context, query string, args ...any) ([]domain.ModeratorProfile, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.ModeratorProfile
	for rows.Next() {
		profile, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *profile)
	}
	return result, rows.Err()
}

// ListCandidates returns ACTIVE, non-opted-out moderators with their open
// assignment counts, in a stable order (enrollment time, then user id).
func (r *moderatorRepository) ListCandidates(ctx context.Context, guildID string) ([]domain.Candidate, error) {
	const query = `
        SELECT p.guild_id, p.user_id, p.status, p.opted_out, p.burnout_score, p.created_at, p.updated_at,
               COUNT(a.id)
        FROM moderator_profiles p
        LEFT JOIN ticket_assignments a
            ON a.guild_id=p.guild_id AND a.mod_id=p.user_id AND a.unassigned_at IS NULL
        WHERE p.guild_id=$1 AND p.status='ACTIVE' AND NOT p.opted_out
        GROUP BY p.guild_id, p.user_id
        ORDER BY p.created_at, p.user_id`

	rows, err := r.pool.Query(ctx, query, guildID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Candidate
	for rows.Next() {
		var (
			c      domain.Candidate
			status string
		)
		if err := rows.Scan(
			&c.Profile.GuildID,
			&c.Profile.UserID,
			&status,
			&c.Profile.OptedOut,
			&c.Profile.BurnoutScore,
			&c.Profile.CreatedAt,
			&c.Profile.UpdatedAt,
			&c.ActiveAssignments,
		); err != nil {
			return nil, err
		}
		if c.Profile.Status, err = domain.ParseModStatus(status); err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

func (r *moderatorRepository) UpdateBurnoutScore(ctx context.Context, guildID, userID string, score int) error {
	const query = `UPDATE moderator_profiles SET burnout_score=$3, updated_at=NOW() WHERE guild_id=$1 AND user_id=$2`
	return r.exec(ctx, query, guildID, userID, score)
}

func (r *moderatorRepository) UpdateStatus(ctx context.Context, guildID, userID string, status domain.ModStatus) error {
	const query = `UPDATE moderator_profiles SET status=$3, updated_at=NOW() WHERE guild_id=$1 AND user_id=$2`
	return r.exec(ctx, query, guildID, userID, string(status))
}

func (r *moderatorRepository) SetOptOut(ctx context.Context, guildID, userID string, optedOut bool) error {
	const query = `UPDATE moderator_profiles SET opted_out=$3, updated_at=NOW() WHERE guild_id=$1 AND user_id=$2`
	return r.exec(ctx, query, guildID, userID, optedOut)
}

func (r *moderatorRepository) exec(ctx context.Context, query string, args ...any) error {
	cmd, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// Delete removes the moderator's metrics and assignments before the profile.
func (r *moderatorRepository) Delete(ctx context.Context, guildID, userID string) error {
	return withTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM moderator_metrics WHERE guild_id=$1 AND mod_id=$2`, guildID, userID); err != nil {
			return fmt.Errorf("delete metrics: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM ticket_assignments WHERE guild_id=$1 AND mod_id=$2`, guildID, userID); err != nil {
			return fmt.Errorf("delete assignments: %w", err)
		}
		cmd, err := tx.Exec(ctx, `DELETE FROM moderator_profiles WHERE guild_id=$1 AND user_id=$2`, guildID, userID)
		if err != nil {
			return fmt.Errorf("delete profile: %w", err)
		}
		if cmd.RowsAffected() == 0 {
			return pgx.ErrNoRows
		}
		return nil
	})
}

func scanProfile(row pgx.Row) (*domain.ModeratorProfile, error) {
	var (
		profile domain.ModeratorProfile
		status  string
	)
	if err := row.Scan(
		&profile.GuildID,
		&profile.UserID,
		&status,
		&profile.OptedOut,
		&profile.BurnoutScore,
		&profile.CreatedAt,
		&profile.UpdatedAt,
	); err != nil {
		return nil, err
	}
	parsed, err := domain.ParseModStatus(status)
	if err != nil {
		return nil, err
	}
	profile.Status = parsed
	return &profile, nil
}

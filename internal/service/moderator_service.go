package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/spec-kit/modcenter/internal/cache"
	"github.com/spec-kit/modcenter/internal/domain"
	"github.com/spec-kit/modcenter/internal/repository"
	apperrors "github.com/spec-kit/modcenter/pkg/util/errorutil"
)

// ModeratorService administers a guild's moderator program and serves its
// read models.
type ModeratorService struct {
	moderators     repository.ModeratorRepository
	tickets        repository.TicketRepository
	metrics        repository.MetricsRepository
	collector      *MetricsCollector
	burnout        *BurnoutDetector
	audit          *AuditLogger
	cache          *cache.Cache
	logger         *zap.Logger
	now            func() time.Time
	leaderboardTTL time.Duration
	boards         singleflight.Group
}

// ModeratorDependencies bundles collaborators for the moderator service.
type ModeratorDependencies struct {
	ModeratorRepo  repository.ModeratorRepository
	TicketRepo     repository.TicketRepository
	MetricsRepo    repository.MetricsRepository
	Collector      *MetricsCollector
	Burnout        *BurnoutDetector
	Audit          *AuditLogger
	Cache          *cache.Cache
	Logger         *zap.Logger
	Now            func() time.Time
	LeaderboardTTL time.Duration
}

// NewModeratorService builds the service.
func NewModeratorService(deps ModeratorDependencies) *ModeratorService {
	return &ModeratorService{
		moderators:     deps.ModeratorRepo,
		tickets:        deps.TicketRepo,
		metrics:        deps.MetricsRepo,
		collector:      deps.Collector,
		burnout:        deps.Burnout,
		audit:          deps.Audit,
		cache:          deps.Cache,
		logger:         loggerOrNop(deps.Logger),
		now:            clockOrNow(deps.Now),
		leaderboardTTL: deps.LeaderboardTTL,
	}
}

// AddModerator enrolls userID as an ACTIVE moderator.
func (s *ModeratorService) AddModerator(ctx context.Context, guildID, actorID, userID string) (*domain.ModeratorProfile, error) {
	if strings.TrimSpace(guildID) == "" || strings.TrimSpace(userID) == "" {
		return nil, apperrors.NewValidationError("guild id and user id are required", nil)
	}
	profile := &domain.ModeratorProfile{GuildID: guildID, UserID: userID, Status: domain.ModStatusActive}
	if err := s.moderators.Create(ctx, profile); err != nil {
		return nil, mapStoreError(err, "moderator", map[string]any{"guild_id": guildID, "user_id": userID})
	}
	s.invalidateLeaderboard(ctx, guildID)
	s.audit.LogAction(ctx, guildID, actorID, domain.AuditModeratorAdded, &userID, nil)
	return profile, nil
}

// RemoveModerator deletes the profile with its metrics and assignments. When
// there is no profile it returns ErrAlreadyRemoved.
func (s *ModeratorService) RemoveModerator(ctx context.Context, guildID, actorID, userID string) error {
	err := s.moderators.Delete(ctx, guildID, userID)
	if errors.Is(err, pgx.ErrNoRows) {
		s.logger.Warn("moderator already removed", zap.String("guild_id", guildID), zap.String("user_id", userID))
		return ErrAlreadyRemoved
	}
	if err != nil {
		return mapStoreError(err, "moderator", map[string]any{"guild_id": guildID, "user_id": userID})
	}
	s.invalidateLeaderboard(ctx, guildID)
	s.audit.LogAction(ctx, guildID, actorID, domain.AuditModeratorRemoved, &userID, nil)
	return nil
}

// SetStatus changes a moderator's availability.
func (s *ModeratorService) SetStatus(ctx context.Context, guildID, actorID, userID string, status domain.ModStatus) (*domain.ModeratorProfile, error) {
	if _, err := domain.ParseModStatus(string(status)); err != nil {
		return nil, apperrors.NewValidationError("unknown moderator status", map[string]any{"status": status})
	}
	if err := s.moderators.UpdateStatus(ctx, guildID, userID, status); err != nil {
		return nil, mapStoreError(err, "moderator", map[string]any{"guild_id": guildID, "user_id": userID})
	}
	s.invalidateLeaderboard(ctx, guildID)
	s.audit.LogAction(ctx, guildID, actorID, domain.AuditModeratorStatusChanged, &userID, map[string]any{"status": status})
	return s.GetModerator(ctx, guildID, userID)
}

// SetOptOut toggles whether the moderator is offered auto-assignments.
func (s *ModeratorService) SetOptOut(ctx context.Context, guildID, actorID, userID string, optedOut bool) (*domain.ModeratorProfile, error) {
	if err := s.moderators.SetOptOut(ctx, guildID, userID, optedOut); err != nil {
		return nil, mapStoreError(err, "moderator", map[string]any{"guild_id": guildID, "user_id": userID})
	}
	s.audit.LogAction(ctx, guildID, actorID, domain.AuditModeratorOptOutChanged, &userID, map[string]any{"opted_out": optedOut})
	return s.GetModerator(ctx, guildID, userID)
}

// GetModerator fetches one profile.
func (s *ModeratorService) GetModerator(ctx context.Context, guildID, userID string) (*domain.ModeratorProfile, error) {
	profile, err := s.moderators.Get(ctx, guildID, userID)
	if err != nil {
		return nil, mapStoreError(err, "moderator", map[string]any{"guild_id": guildID, "user_id": userID})
	}
	return profile, nil
}

// ListModerators returns every profile in the guild in enrollment order.
func (s *ModeratorService) ListModerators(ctx context.Context, guildID string) ([]domain.ModeratorProfile, error) {
	profiles, err := s.moderators.List(ctx, guildID)
	if err != nil {
		return nil, mapStoreError(err, "moderators", map[string]any{"guild_id": guildID})
	}
	return profiles, nil
}

// RecordReopen counts a reopened ticket against userID.
func (s *ModeratorService) RecordReopen(ctx context.Context, guildID, actorID, userID string) error {
	if _, err := s.GetModerator(ctx, guildID, userID); err != nil {
		return err
	}
	if err := s.collector.TrackReopen(ctx, userID, guildID); err != nil {
		return err
	}
	s.audit.LogAction(ctx, guildID, actorID, domain.AuditModeratorReopenRecorded, &userID, nil)
	return nil
}

// Reputation computes the moderator's score over the stats window. A
// moderator without recent metrics scores as if all stats were zero.
func (s *ModeratorService) Reputation(ctx context.Context, guildID, userID string) (domain.ReputationScore, *domain.ModeratorStats, error) {
	if _, err := s.GetModerator(ctx, guildID, userID); err != nil {
		return domain.ReputationScore{}, nil, err
	}
	stats, err := s.collector.GetModStats(ctx, userID, guildID, 0)
	if err != nil {
		return domain.ReputationScore{}, nil, err
	}
	if stats == nil {
		stats = &domain.ModeratorStats{}
	}
	return CalculateReputation(*stats), stats, nil
}

// Leaderboard ranks the guild's moderators by reputation, highest first. Equal
// totals keep enrollment order. Results may be served from cache.
func (s *ModeratorService) Leaderboard(ctx context.Context, guildID string) ([]domain.LeaderboardEntry, error) {
	key := cache.LeaderboardKey(guildID)
	var cached []domain.LeaderboardEntry
	if found, err := s.cache.GetJSON(ctx, key, &cached); err != nil {
		s.logger.Warn("read leaderboard cache", zap.String("guild_id", guildID), zap.Error(err))
	} else if found {
		return cached, nil
	}

	// concurrent misses for one guild share a single computation, which must
	// not fail for everyone when the caller that started it goes away
	flightCtx := context.WithoutCancel(ctx)
	result, err, _ := s.boards.Do(guildID, func() (any, error) {
		return s.buildLeaderboard(flightCtx, guildID)
	})
	if err != nil {
		return nil, err
	}
	entries := result.([]domain.LeaderboardEntry)

	if err := s.cache.SetJSON(ctx, key, entries, s.leaderboardTTL); err != nil {
		s.logger.Warn("write leaderboard cache", zap.String("guild_id", guildID), zap.Error(err))
	}
	return entries, nil
}

func (s *ModeratorService) buildLeaderboard(ctx context.Context, guildID string) ([]domain.LeaderboardEntry, error) {
	profiles, err := s.ListModerators(ctx, guildID)
	if err != nil {
		return nil, err
	}
	entries := make([]domain.LeaderboardEntry, 0, len(profiles))
	for _, p := range profiles {
		stats, err := s.collector.GetModStats(ctx, p.UserID, guildID, 0)
		if err != nil {
			return nil, err
		}
		if stats == nil {
			stats = &domain.ModeratorStats{}
		}
		entries = append(entries, domain.LeaderboardEntry{
			UserID:     p.UserID,
			Status:     p.Status,
			Reputation: CalculateReputation(*stats),
		})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Reputation.Total > entries[j].Reputation.Total
	})
	return entries, nil
}

// Dashboard summarizes the guild's current moderation workload.
func (s *ModeratorService) Dashboard(ctx context.Context, guildID string) (*domain.DashboardSnapshot, error) {
	details := map[string]any{"guild_id": guildID}
	active, err := s.tickets.CountActive(ctx, guildID)
	if err != nil {
		return nil, mapStoreError(err, "tickets", details)
	}
	profiles, err := s.ListModerators(ctx, guildID)
	if err != nil {
		return nil, err
	}
	today, err := s.metrics.ListGuildDay(ctx, guildID, domain.Day(s.now()))
	if err != nil {
		return nil, mapStoreError(err, "moderator metrics", details)
	}

	snapshot := &domain.DashboardSnapshot{
		GuildID:         guildID,
		ActiveTickets:   active,
		ModeratorsTotal: len(profiles),
	}
	highest := 0
	for _, p := range profiles {
		if p.Status != domain.ModStatusOffline {
			snapshot.ModeratorsAvailable++
		}
		highest = max(highest, p.BurnoutScore)
	}
	snapshot.BurnoutRisk = ClassifyBurnout(highest, s.burnout.Thresholds(guildID))

	var (
		resolved int
		seconds  int64
	)
	for _, m := range today {
		resolved += m.TicketsResolved
		seconds += m.TotalResponseSeconds
	}
	if resolved > 0 {
		snapshot.AvgResponseSeconds = float64(seconds) / float64(resolved)
	}
	return snapshot, nil
}

func (s *ModeratorService) invalidateLeaderboard(ctx context.Context, guildID string) {
	if err := s.cache.Delete(ctx, cache.LeaderboardKey(guildID)); err != nil {
		s.logger.Warn("invalidate leaderboard cache", zap.String("guild_id", guildID), zap.Error(err))
	}
}

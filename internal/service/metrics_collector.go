package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/modcenter/internal/domain"
	"github.com/spec-kit/modcenter/internal/repository"
	apperrors "github.com/spec-kit/modcenter/pkg/util/errorutil"
)

// DefaultStatsWindowDays is the rolling window used when none is requested.
const DefaultStatsWindowDays = 7

// MetricsCollector records per-day moderator work and derives rolling stats.
type MetricsCollector struct {
	metrics     repository.MetricsRepository
	assignments repository.AssignmentRepository
	burnout     *BurnoutDetector
	windowDays  int
	logger      *zap.Logger
	now         func() time.Time
}

// MetricsDependencies bundles collaborators for the collector.
type MetricsDependencies struct {
	MetricsRepo    repository.MetricsRepository
	AssignmentRepo repository.AssignmentRepository
	Burnout        *BurnoutDetector
	WindowDays     int
	Logger         *zap.Logger
	Now            func() time.Time
}

// NewMetricsCollector builds the collector.
func NewMetricsCollector(deps MetricsDependencies) *MetricsCollector {
	window := deps.WindowDays
	if window <= 0 {
		window = DefaultStatsWindowDays
	}
	return &MetricsCollector{
		metrics:     deps.MetricsRepo,
		assignments: deps.AssignmentRepo,
		burnout:     deps.Burnout,
		windowDays:  window,
		logger:      loggerOrNop(deps.Logger),
		now:         clockOrNow(deps.Now),
	}
}

// TrackTicketResolution adds one resolution to today's row and then re-runs
// the burnout check. The write completes before the check reads the row.
func (c *MetricsCollector) TrackTicketResolution(ctx context.Context, modID, guildID string, durationSeconds int64) (domain.BurnoutLevel, error) {
	if durationSeconds < 0 {
		return "", apperrors.NewValidationError("duration must not be negative", map[string]any{"duration_seconds": durationSeconds})
	}
	details := map[string]any{"guild_id": guildID, "moderator_id": modID}
	if err := c.metrics.RecordResolution(ctx, modID, guildID, domain.Day(c.now()), durationSeconds); err != nil {
		return "", mapStoreError(err, "moderator metrics", details)
	}
	return c.burnout.CheckBurnout(ctx, modID, guildID)
}

// TrackReopen increments today's reopen count, creating the row if needed.
func (c *MetricsCollector) TrackReopen(ctx context.Context, modID, guildID string) error {
	if err := c.metrics.RecordReopen(ctx, modID, guildID, domain.Day(c.now())); err != nil {
		return mapStoreError(err, "moderator metrics", map[string]any{"guild_id": guildID, "moderator_id": modID})
	}
	return nil
}

// GetModStats aggregates the last days calendar days, today included. It
// returns nil when the moderator has no rows in the window.
func (c *MetricsCollector) GetModStats(ctx context.Context, modID, guildID string, days int) (*domain.ModeratorStats, error) {
	if days <= 0 {
		days = c.windowDays
	}
	details := map[string]any{"guild_id": guildID, "moderator_id": modID}
	since := domain.Day(c.now()).AddDate(0, 0, -(days - 1))

	rows, err := c.metrics.ListSince(ctx, modID, guildID, since)
	if err != nil {
		return nil, mapStoreError(err, "moderator metrics", details)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	var (
		resolved, reopens int
		totalSeconds      int64
	)
	for _, row := range rows {
		resolved += row.TicketsResolved
		reopens += row.ReopenCount
		totalSeconds += row.TotalResponseSeconds
	}

	stats := &domain.ModeratorStats{TicketsResolved: resolved}
	if resolved > 0 {
		stats.ReopenRate = float64(reopens) / float64(resolved)
		stats.AvgResponseTime = float64(totalSeconds) / float64(resolved)
	}

	active, err := c.assignments.CountActive(ctx, guildID, modID)
	if err != nil {
		return nil, mapStoreError(err, "assignments", details)
	}
	stats.ActiveTickets = active
	return stats, nil
}

package service

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/modcenter/internal/config"
	"github.com/spec-kit/modcenter/internal/domain"
	"github.com/spec-kit/modcenter/internal/events"
	"github.com/spec-kit/modcenter/internal/observability"
	"github.com/spec-kit/modcenter/internal/repository"
)

// BurnoutDetector scores a moderator's current day against the guild's
// burnout thresholds and persists the score on the profile.
type BurnoutDetector struct {
	moderators repository.ModeratorRepository
	metrics    repository.MetricsRepository
	thresholds config.BurnoutConfig
	dispatcher events.Dispatcher
	telemetry  *observability.Metrics
	logger     *zap.Logger
	now        func() time.Time
}

// BurnoutDependencies bundles collaborators for the detector.
type BurnoutDependencies struct {
	ModeratorRepo repository.ModeratorRepository
	MetricsRepo   repository.MetricsRepository
	Thresholds    config.BurnoutConfig
	Dispatcher    events.Dispatcher
	Telemetry     *observability.Metrics
	Logger        *zap.Logger
	Now           func() time.Time
}

// NewBurnoutDetector builds the detector.
func NewBurnoutDetector(deps BurnoutDependencies) *BurnoutDetector {
	return &BurnoutDetector{
		moderators: deps.ModeratorRepo,
		metrics:    deps.MetricsRepo,
		thresholds: deps.Thresholds,
		dispatcher: deps.Dispatcher,
		telemetry:  deps.Telemetry,
		logger:     loggerOrNop(deps.Logger),
		now:        clockOrNow(deps.Now),
	}
}

// BurnoutScore is the additive 0-100 score for one day of metrics.
func BurnoutScore(m domain.ModeratorMetrics, t config.BurnoutThresholds) int {
	score := 0
	if m.TicketsResolved > t.MaxTicketsDaily {
		score += t.TicketsWeight
	}
	if m.AvgResponseTime > float64(t.MaxResponseSeconds) {
		score += t.ResponseWeight
	}
	if m.ReopenCount > t.MaxReopensDaily {
		score += t.ReopenWeight
	}
	return min(max(score, 0), 100)
}

// ClassifyBurnout maps a score onto a level.
func ClassifyBurnout(score int, t config.BurnoutThresholds) domain.BurnoutLevel {
	switch {
	case score > t.HighAbove:
		return domain.BurnoutHigh
	case score > t.MediumAbove:
		return domain.BurnoutMedium
	default:
		return domain.BurnoutLow
	}
}

// Thresholds returns the rules in force for guildID.
func (d *BurnoutDetector) Thresholds(guildID string) config.BurnoutThresholds {
	return d.thresholds.ForGuild(guildID)
}

// CheckBurnout classifies today's workload. Without a metrics row for today
// the moderator is LOW and nothing is written; otherwise the score is stored
// on the profile and a missing profile fails the call.
func (d *BurnoutDetector) CheckBurnout(ctx context.Context, modID, guildID string) (domain.BurnoutLevel, error) {
	details := map[string]any{"guild_id": guildID, "moderator_id": modID}

	today, err := d.metrics.GetDaily(ctx, modID, guildID, domain.Day(d.now()))
	if errors.Is(err, pgx.ErrNoRows) {
		d.telemetry.RecordBurnout(ctx, string(domain.BurnoutLow))
		return domain.BurnoutLow, nil
	}
	if err != nil {
		return "", mapStoreError(err, "moderator metrics", details)
	}

	thresholds := d.thresholds.ForGuild(guildID)
	score := BurnoutScore(*today, thresholds)
	if err := d.moderators.UpdateBurnoutScore(ctx, guildID, modID, score); err != nil {
		return "", mapStoreError(err, "moderator", details)
	}

	level := ClassifyBurnout(score, thresholds)
	d.telemetry.RecordBurnout(ctx, string(level))
	d.logger.Debug("burnout checked",
		zap.String("guild_id", guildID),
		zap.String("moderator_id", modID),
		zap.Int("score", score),
		zap.String("level", string(level)))

	if level == domain.BurnoutHigh {
		publishEvent(ctx, d.dispatcher, d.now, events.Event{
			Type:    events.EventBurnoutDetected,
			GuildID: guildID,
			ActorID: modID,
			Payload: events.BurnoutDetectedPayload{ModeratorID: modID, Score: score, Level: level},
		})
	}
	return level, nil
}

// Refresh re-scores a moderator for the periodic sweep. Unlike CheckBurnout it
// also resets the stored score to 0 when today has no metrics row, so a score
// earned on an earlier day does not outlive that day.
func (d *BurnoutDetector) Refresh(ctx context.Context, modID, guildID string) (domain.BurnoutLevel, error) {
	details := map[string]any{"guild_id": guildID, "moderator_id": modID}

	_, err := d.metrics.GetDaily(ctx, modID, guildID, domain.Day(d.now()))
	if errors.Is(err, pgx.ErrNoRows) {
		if err := d.moderators.UpdateBurnoutScore(ctx, guildID, modID, 0); err != nil {
			return "", mapStoreError(err, "moderator", details)
		}
		d.telemetry.RecordBurnout(ctx, string(domain.BurnoutLow))
		return domain.BurnoutLow, nil
	}
	if err != nil {
		return "", mapStoreError(err, "moderator metrics", details)
	}
	return d.CheckBurnout(ctx, modID, guildID)
}

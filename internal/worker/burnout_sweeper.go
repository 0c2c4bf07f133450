package worker

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spec-kit/modcenter/internal/domain"
)

const defaultSweepConcurrency = 8

// ProfileLister lists every moderator profile across guilds.
type ProfileLister interface {
	ListAll(ctx context.Context) ([]domain.ModeratorProfile, error)
}

// BurnoutRefresher re-scores one moderator, resetting stale scores.
type BurnoutRefresher interface {
	Refresh(ctx context.Context, modID, guildID string) (domain.BurnoutLevel, error)
}

// BurnoutSweeper periodically refreshes every moderator's burnout score so a
// score drops back to 0 once a new day starts without new metrics.
type BurnoutSweeper struct {
	profiles    ProfileLister
	refresher   BurnoutRefresher
	interval    time.Duration
	concurrency int
	logger      *zap.Logger
}

// NewBurnoutSweeper builds a sweeper. A non-positive interval disables Run.
func NewBurnoutSweeper(profiles ProfileLister, refresher BurnoutRefresher, interval time.Duration, concurrency int, logger *zap.Logger) *BurnoutSweeper {
	if concurrency <= 0 {
		concurrency = defaultSweepConcurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BurnoutSweeper{
		profiles:    profiles,
		refresher:   refresher,
		interval:    interval,
		concurrency: concurrency,
		logger:      logger,
	}
}

// Run sweeps on every tick until ctx is canceled.
func (s *BurnoutSweeper) Run(ctx context.Context) {
	if s.interval <= 0 {
		s.logger.Info("burnout sweep disabled")
		return
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			checked, err := s.Sweep(ctx)
			if err != nil {
				s.logger.Warn("burnout sweep failed", zap.Error(err))
				continue
			}
			s.logger.Debug("burnout sweep complete", zap.Int("moderators", checked))
		}
	}
}

// Sweep checks every profile once and returns how many checks succeeded.
// Individual failures are logged and do not stop the sweep.
func (s *BurnoutSweeper) Sweep(ctx context.Context) (int, error) {
	profiles, err := s.profiles.ListAll(ctx)
	if err != nil {
		return 0, err
	}

	results := make([]bool, len(profiles))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, p := range profiles {
		g.Go(func() error {
			if _, err := s.refresher.Refresh(gctx, p.UserID, p.GuildID); err != nil {
				s.logger.Warn("burnout refresh failed",
					zap.String("guild_id", p.GuildID),
					zap.String("moderator_id", p.UserID),
					zap.Error(err))
				return nil
			}
			results[i] = true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	checked := 0
	for _, ok := range results {
		if ok {
			checked++
		}
	}
	return checked, ctx.Err()
}

package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/modcenter/internal/config"
	"github.com/spec-kit/modcenter/internal/domain"
	"github.com/spec-kit/modcenter/internal/events"
	apperrors "github.com/spec-kit/modcenter/pkg/util/errorutil"
)

func TestBurnoutScore(t *testing.T) {
	thresholds := config.DefaultBurnoutThresholds()
	cases := []struct {
		name    string
		metrics domain.ModeratorMetrics
		score   int
		level   domain.BurnoutLevel
	}{
		{name: "idle", metrics: domain.ModeratorMetrics{}, score: 0, level: domain.BurnoutLow},
		{name: "at limits", metrics: domain.ModeratorMetrics{TicketsResolved: 15, AvgResponseTime: 600, ReopenCount: 2}, score: 0, level: domain.BurnoutLow},
		{name: "slow only", metrics: domain.ModeratorMetrics{AvgResponseTime: 601}, score: 30, level: domain.BurnoutLow},
		{name: "overloaded", metrics: domain.ModeratorMetrics{TicketsResolved: 16}, score: 50, level: domain.BurnoutMedium},
		{name: "overloaded and reopened", metrics: domain.ModeratorMetrics{TicketsResolved: 16, ReopenCount: 3}, score: 70, level: domain.BurnoutMedium},
		{name: "everything", metrics: domain.ModeratorMetrics{TicketsResolved: 16, AvgResponseTime: 700, ReopenCount: 3}, score: 100, level: domain.BurnoutHigh},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			score := BurnoutScore(tc.metrics, thresholds)
			assert.Equal(t, tc.score, score)
			assert.Equal(t, tc.level, ClassifyBurnout(score, thresholds))
		})
	}
}

func TestBurnoutScoreIsClamped(t *testing.T) {
	thresholds := config.DefaultBurnoutThresholds()
	thresholds.TicketsWeight = 90
	thresholds.ResponseWeight = 90
	assert.Equal(t, 100, BurnoutScore(domain.ModeratorMetrics{TicketsResolved: 99, AvgResponseTime: 9999}, thresholds))

	thresholds.TicketsWeight = -50
	assert.Equal(t, 0, BurnoutScore(domain.ModeratorMetrics{TicketsResolved: 99}, thresholds))
}

func TestCheckBurnoutWithoutMetricsIsLow(t *testing.T) {
	h := newHarness(t)
	h.addModerator(t, "mod-a")

	level, err := h.burnout.CheckBurnout(context.Background(), "mod-a", testGuild)
	require.NoError(t, err)
	assert.Equal(t, domain.BurnoutLow, level)

	profile, err := h.store.Moderators().Get(context.Background(), testGuild, "mod-a")
	require.NoError(t, err)
	assert.Equal(t, 0, profile.BurnoutScore)
}

func TestCheckBurnoutPersistsScore(t *testing.T) {
	h := newHarness(t)
	h.record(events.EventBurnoutDetected)
	h.addModerator(t, "mod-a")
	h.addModerator(t, "mod-b")

	h.store.SeedMetrics(domain.ModeratorMetrics{ModID: "mod-a", GuildID: testGuild, Date: h.clock.Now(), TicketsResolved: 16})
	level, err := h.burnout.CheckBurnout(context.Background(), "mod-a", testGuild)
	require.NoError(t, err)
	assert.Equal(t, domain.BurnoutMedium, level)

	h.store.SeedMetrics(domain.ModeratorMetrics{ModID: "mod-b", GuildID: testGuild, Date: h.clock.Now(), TicketsResolved: 16, AvgResponseTime: 700, ReopenCount: 3})
	level, err = h.burnout.CheckBurnout(context.Background(), "mod-b", testGuild)
	require.NoError(t, err)
	assert.Equal(t, domain.BurnoutHigh, level)

	a, err := h.store.Moderators().Get(context.Background(), testGuild, "mod-a")
	require.NoError(t, err)
	assert.Equal(t, 50, a.BurnoutScore)
	b, err := h.store.Moderators().Get(context.Background(), testGuild, "mod-b")
	require.NoError(t, err)
	assert.Equal(t, 100, b.BurnoutScore)

	published := h.events()
	require.Len(t, published, 1)
	payload, ok := published[0].Payload.(events.BurnoutDetectedPayload)
	require.True(t, ok)
	assert.Equal(t, "mod-b", payload.ModeratorID)
	assert.Equal(t, 100, payload.Score)
	assert.NotEmpty(t, published[0].ID)
}

func TestCheckBurnoutReadsOnlyToday(t *testing.T) {
	h := newHarness(t)
	h.addModerator(t, "mod-a")
	yesterday := h.clock.Now().AddDate(0, 0, -1)
	h.store.SeedMetrics(domain.ModeratorMetrics{ModID: "mod-a", GuildID: testGuild, Date: yesterday, TicketsResolved: 40})

	level, err := h.burnout.CheckBurnout(context.Background(), "mod-a", testGuild)
	require.NoError(t, err)
	assert.Equal(t, domain.BurnoutLow, level)
}

func TestCheckBurnoutMissingProfile(t *testing.T) {
	h := newHarness(t)
	h.store.SeedMetrics(domain.ModeratorMetrics{ModID: "ghost", GuildID: testGuild, Date: h.clock.Now(), TicketsResolved: 20})

	_, err := h.burnout.CheckBurnout(context.Background(), "ghost", testGuild)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestCheckBurnoutUsesGuildOverride(t *testing.T) {
	h := newHarness(t)
	strict := config.DefaultBurnoutThresholds()
	strict.MaxTicketsDaily = 2
	strict.TicketsWeight = 80
	h.thresholds.GuildOverrides = map[string]config.BurnoutThresholds{testGuild: strict}
	h.build()
	h.addModerator(t, "mod-a")
	h.store.SeedMetrics(domain.ModeratorMetrics{ModID: "mod-a", GuildID: testGuild, Date: h.clock.Now(), TicketsResolved: 3})

	level, err := h.burnout.CheckBurnout(context.Background(), "mod-a", testGuild)
	require.NoError(t, err)
	assert.Equal(t, domain.BurnoutHigh, level)
	assert.Equal(t, strict, h.burnout.Thresholds(testGuild))
	assert.Equal(t, config.DefaultBurnoutThresholds(), h.burnout.Thresholds("other"))
}

func TestRefreshResetsScoreFromEarlierDay(t *testing.T) {
	h := newHarness(t)
	h.configure(t)
	h.addModerator(t, "stale")
	h.addModerator(t, "fresh")
	ctx := context.Background()

	h.store.SeedMetrics(domain.ModeratorMetrics{ModID: "stale", GuildID: testGuild, Date: h.clock.Now(), TicketsResolved: 16, AvgResponseTime: 700, ReopenCount: 3})
	level, err := h.burnout.CheckBurnout(ctx, "stale", testGuild)
	require.NoError(t, err)
	require.Equal(t, domain.BurnoutHigh, level)

	h.clock.Advance(48 * time.Hour)
	ticket := h.openTicket(t, "owner-1")
	_, err = h.engine.AssignTicket(ctx, ticket.ID, "fresh", testGuild)
	require.NoError(t, err)

	best, err := h.engine.FindBestModerator(ctx, testGuild, nil)
	require.NoError(t, err)
	require.NotNil(t, best)
	assert.Equal(t, "fresh", *best)

	level, err = h.burnout.Refresh(ctx, "stale", testGuild)
	require.NoError(t, err)
	assert.Equal(t, domain.BurnoutLow, level)

	profile, err := h.store.Moderators().Get(ctx, testGuild, "stale")
	require.NoError(t, err)
	assert.Equal(t, 0, profile.BurnoutScore)

	best, err = h.engine.FindBestModerator(ctx, testGuild, nil)
	require.NoError(t, err)
	require.NotNil(t, best)
	assert.Equal(t, "stale", *best)
}

func TestRefreshWithTodaysMetricsKeepsScore(t *testing.T) {
	h := newHarness(t)
	h.addModerator(t, "mod-a")

	h.store.SeedMetrics(domain.ModeratorMetrics{ModID: "mod-a", GuildID: testGuild, Date: h.clock.Now(), TicketsResolved: 16})
	level, err := h.burnout.Refresh(context.Background(), "mod-a", testGuild)
	require.NoError(t, err)
	assert.Equal(t, domain.BurnoutMedium, level)

	profile, err := h.store.Moderators().Get(context.Background(), testGuild, "mod-a")
	require.NoError(t, err)
	assert.Equal(t, 50, profile.BurnoutScore)
}

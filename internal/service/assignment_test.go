package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/modcenter/internal/domain"
	"github.com/spec-kit/modcenter/internal/events"
	"github.com/spec-kit/modcenter/internal/repository"
	apperrors "github.com/spec-kit/modcenter/pkg/util/errorutil"
)

func setBurnout(t *testing.T, h *harness, userID string, score int) {
	t.Helper()
	require.NoError(t, h.store.Moderators().UpdateBurnoutScore(context.Background(), testGuild, userID, score))
}

func TestFindBestModeratorEmptyPool(t *testing.T) {
	h := newHarness(t)
	best, err := h.engine.FindBestModerator(context.Background(), testGuild, nil)
	require.NoError(t, err)
	assert.Nil(t, best)
}

func TestFindBestModeratorSkipsUnavailable(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.addModerator(t, "offline")
	h.addModerator(t, "opted")
	_, err := h.moderators.SetStatus(ctx, testGuild, "admin", "offline", domain.ModStatusOffline)
	require.NoError(t, err)
	_, err = h.moderators.SetOptOut(ctx, testGuild, "admin", "opted", true)
	require.NoError(t, err)

	best, err := h.engine.FindBestModerator(ctx, testGuild, nil)
	require.NoError(t, err)
	assert.Nil(t, best)
}

func TestFindBestModeratorPrefersLowerLoad(t *testing.T) {
	h := newHarness(t)
	h.configure(t)
	h.addModerator(t, "busy")
	h.addModerator(t, "light")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ticket := h.openTicket(t, "owner-busy-"+string(rune('a'+i)))
		_, err := h.engine.AssignTicket(ctx, ticket.ID, "busy", testGuild)
		require.NoError(t, err)
	}
	ticket := h.openTicket(t, "owner-light")
	_, err := h.engine.AssignTicket(ctx, ticket.ID, "light", testGuild)
	require.NoError(t, err)

	best, err := h.engine.FindBestModerator(ctx, testGuild, nil)
	require.NoError(t, err)
	require.NotNil(t, best)
	assert.Equal(t, "light", *best)
}

func TestFindBestModeratorTieGoesToFirst(t *testing.T) {
	h := newHarness(t)
	h.addModerator(t, "first")
	h.addModerator(t, "second")

	best, err := h.engine.FindBestModerator(context.Background(), testGuild, nil)
	require.NoError(t, err)
	require.NotNil(t, best)
	assert.Equal(t, "first", *best)
}

func TestFindBestModeratorExcludesBurnedOut(t *testing.T) {
	h := newHarness(t)
	h.addModerator(t, "tired")
	h.addModerator(t, "fresh")
	setBurnout(t, h, "tired", 70)

	best, err := h.engine.FindBestModerator(context.Background(), testGuild, nil)
	require.NoError(t, err)
	require.NotNil(t, best)
	assert.Equal(t, "fresh", *best)
}

func TestFindBestModeratorFallsBackWhenAllBurnedOut(t *testing.T) {
	h := newHarness(t)
	h.addModerator(t, "tired-a")
	h.addModerator(t, "tired-b")
	setBurnout(t, h, "tired-a", 90)
	setBurnout(t, h, "tired-b", 75)

	best, err := h.engine.FindBestModerator(context.Background(), testGuild, nil)
	require.NoError(t, err)
	require.NotNil(t, best)
	assert.Equal(t, "tired-a", *best)
}

func TestFindBestModeratorCustomScorer(t *testing.T) {
	h := newHarness(t)
	h.addModerator(t, "a")
	h.addModerator(t, "b")
	engine := NewAssignmentEngine(AssignmentDependencies{
		ModeratorRepo: h.store.Moderators(),
		TicketRepo:    h.store.Tickets(),
		Thresholds:    h.thresholds,
		Scorer: func(c domain.Candidate) float64 {
			if c.Profile.UserID == "b" {
				return 1
			}
			return 0
		},
	})

	best, err := engine.FindBestModerator(context.Background(), testGuild, nil)
	require.NoError(t, err)
	require.NotNil(t, best)
	assert.Equal(t, "b", *best)
}

func TestFindBestModeratorStoreFailure(t *testing.T) {
	h := newHarness(t)
	h.store.Fail("moderators.ListCandidates", errors.New("connection reset"))

	_, err := h.engine.FindBestModerator(context.Background(), testGuild, nil)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInternal))
}

func TestAssignTicketClaimsAtomically(t *testing.T) {
	h := newHarness(t)
	h.record(events.EventTicketAssigned)
	h.configure(t)
	h.addModerator(t, "mod-a")
	ticket := h.openTicket(t, "owner")

	assigned, err := h.engine.AssignTicket(context.Background(), ticket.ID, "mod-a", testGuild)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusClaimed, assigned.Status)
	require.NotNil(t, assigned.ClaimedBy)
	assert.Equal(t, "mod-a", *assigned.ClaimedBy)

	rows := h.store.AssignmentsFor(ticket.ID)
	require.Len(t, rows, 1)
	assert.Equal(t, domain.AssignmentReasonAuto, rows[0].Reason)
	assert.Nil(t, rows[0].UnassignedAt)

	trail := h.store.EventsFor(ticket.ID)
	require.Len(t, trail, 2)
	assert.Equal(t, domain.TicketActionClaimed, trail[1].Action)
	assert.Len(t, h.events(), 1)
}

func TestAssignTicketUnknownModeratorLeavesTicketOpen(t *testing.T) {
	h := newHarness(t)
	h.configure(t)
	ticket := h.openTicket(t, "owner")

	_, err := h.engine.AssignTicket(context.Background(), ticket.ID, "nobody", testGuild)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	current, err := h.tickets.GetTicket(context.Background(), ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusOpen, current.Status)
	assert.Nil(t, current.ClaimedBy)
	assert.Empty(t, h.store.AssignmentsFor(ticket.ID))
	assert.Len(t, h.store.EventsFor(ticket.ID), 1)
}

func TestAssignTicketRejectsNonOpen(t *testing.T) {
	h := newHarness(t)
	h.configure(t)
	h.addModerator(t, "mod-a")
	ticket := h.openTicket(t, "owner")
	ctx := context.Background()

	_, err := h.engine.AssignTicket(ctx, ticket.ID, "mod-a", testGuild)
	require.NoError(t, err)
	_, err = h.engine.AssignTicket(ctx, ticket.ID, "mod-a", testGuild)
	assert.ErrorIs(t, err, apperrors.ErrStateConflict)

	_, err = h.engine.AssignTicket(ctx, 9999, "mod-a", testGuild)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = h.engine.AssignTicket(ctx, ticket.ID, "mod-a", "other-guild")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestAutoAssign(t *testing.T) {
	h := newHarness(t)
	h.configure(t)
	ctx := context.Background()
	ticket := h.openTicket(t, "owner")

	_, err := h.engine.AutoAssign(ctx, ticket.ID)
	assert.ErrorIs(t, err, apperrors.ErrConflict)

	h.addModerator(t, "mod-a")
	assigned, err := h.engine.AutoAssign(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, "mod-a", *assigned.ClaimedBy)

	_, err = h.engine.AutoAssign(ctx, ticket.ID)
	assert.ErrorIs(t, err, apperrors.ErrStateConflict)
}

func TestLoadScore(t *testing.T) {
	assert.Equal(t, 100.0, LoadScore(domain.Candidate{}))
	assert.Equal(t, 40.0, LoadScore(domain.Candidate{ActiveAssignments: 3}))
}

func TestMapStoreError(t *testing.T) {
	assert.NoError(t, mapStoreError(nil, "x", nil))
	assert.ErrorIs(t, mapStoreError(repository.ErrStatusConflict, "ticket", nil), apperrors.ErrStateConflict)
	assert.ErrorIs(t, mapStoreError(repository.ErrDuplicate, "moderator", nil), apperrors.ErrConflict)
	assert.ErrorIs(t, mapStoreError(repository.ErrUnknownModerator, "ticket", nil), apperrors.ErrNotFound)
}

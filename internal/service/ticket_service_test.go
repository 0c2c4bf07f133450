package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/modcenter/internal/domain"
	"github.com/spec-kit/modcenter/internal/events"
	apperrors "github.com/spec-kit/modcenter/pkg/util/errorutil"
)

func TestCreateTicketRequiresConfig(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	input := TicketCreateInput{GuildID: testGuild, OwnerID: "owner", CategoryID: "support"}

	_, err := h.tickets.CreateTicket(ctx, input)
	assert.ErrorIs(t, err, apperrors.ErrNotConfigured)

	category := "cat"
	_, err = h.tickets.ConfigureGuild(ctx, testGuild, "admin", nil, &category)
	require.NoError(t, err)
	_, err = h.tickets.CreateTicket(ctx, input)
	assert.ErrorIs(t, err, apperrors.ErrNotConfigured)
	assert.Empty(t, h.gateway.Created)
}

func TestCreateTicket(t *testing.T) {
	h := newHarness(t)
	h.record(events.EventTicketCreated)
	h.configure(t)

	ticket, err := h.tickets.CreateTicket(context.Background(), TicketCreateInput{
		GuildID:       testGuild,
		OwnerID:       "owner-1",
		OwnerUsername: "Jane Doe",
		CategoryID:    "Billing",
		Subject:       "refund",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusOpen, ticket.Status)
	assert.Equal(t, "chan-1", ticket.ChannelID)
	assert.Nil(t, ticket.ClaimedBy)

	require.Len(t, h.gateway.Created, 1)
	spec := h.gateway.Created[0]
	assert.Equal(t, "billing-janedoe", spec.Name)
	assert.Equal(t, "role-support", spec.SupportRoleID)
	assert.Equal(t, "cat-parent", spec.ParentID)
	assert.Equal(t, "bot", spec.BotUserID)

	trail, err := h.tickets.ListEvents(context.Background(), ticket.ID)
	require.NoError(t, err)
	require.Len(t, trail, 1)
	assert.Equal(t, domain.TicketActionCreated, trail[0].Action)
	assert.Equal(t, "owner-1", trail[0].ActorID)
	assert.Len(t, h.events(), 1)
}

func TestCreateTicketValidation(t *testing.T) {
	h := newHarness(t)
	h.configure(t)
	_, err := h.tickets.CreateTicket(context.Background(), TicketCreateInput{GuildID: testGuild, CategoryID: "x"})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	_, err = h.tickets.CreateTicket(context.Background(), TicketCreateInput{GuildID: testGuild, OwnerID: "o"})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestCreateTicketRemovesChannelWhenInsertFails(t *testing.T) {
	h := newHarness(t)
	h.configure(t)
	h.store.Fail("tickets.Create", errors.New("disk full"))

	_, err := h.tickets.CreateTicket(context.Background(), TicketCreateInput{GuildID: testGuild, OwnerID: "o", CategoryID: "c"})
	require.Error(t, err)
	assert.Equal(t, []string{"chan-1"}, h.gateway.DeletedChannels())
}

func TestCreateTicketGatewayFailure(t *testing.T) {
	h := newHarness(t)
	h.configure(t)
	h.gateway.CreateErr = errors.New("platform down")

	_, err := h.tickets.CreateTicket(context.Background(), TicketCreateInput{GuildID: testGuild, OwnerID: "o", CategoryID: "c"})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInternal))
	open, err := h.tickets.GetOpenTicketByUser(context.Background(), testGuild, "o")
	require.NoError(t, err)
	assert.Nil(t, open)
}

func TestClaimTicket(t *testing.T) {
	h := newHarness(t)
	h.configure(t)
	ticket := h.openTicket(t, "owner")
	ctx := context.Background()

	claimed, err := h.tickets.ClaimTicket(ctx, ticket.ID, "helper")
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusClaimed, claimed.Status)
	assert.Equal(t, "helper", *claimed.ClaimedBy)

	grants := h.gateway.GrantsSnapshot()
	require.Len(t, grants, 1)
	assert.Equal(t, "helper", grants[0].UserID)
	assert.Empty(t, h.store.AssignmentsFor(ticket.ID), "claimer without a profile gets no assignment row")

	_, err = h.tickets.ClaimTicket(ctx, ticket.ID, "other")
	assert.ErrorIs(t, err, apperrors.ErrStateConflict)

	_, err = h.tickets.ClaimTicket(ctx, 404, "helper")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestClaimTicketByModeratorRecordsAssignment(t *testing.T) {
	h := newHarness(t)
	h.configure(t)
	h.addModerator(t, "mod-a")
	ticket := h.openTicket(t, "owner")

	_, err := h.tickets.ClaimTicket(context.Background(), ticket.ID, "mod-a")
	require.NoError(t, err)
	rows := h.store.AssignmentsFor(ticket.ID)
	require.Len(t, rows, 1)
	assert.Equal(t, domain.AssignmentReasonClaim, rows[0].Reason)
}

func TestClaimTicketSurvivesGrantFailure(t *testing.T) {
	h := newHarness(t)
	h.configure(t)
	ticket := h.openTicket(t, "owner")
	h.gateway.GrantErr = errors.New("missing permission")

	claimed, err := h.tickets.ClaimTicket(context.Background(), ticket.ID, "helper")
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusClaimed, claimed.Status)
}

func TestConcurrentClaimsHaveOneWinner(t *testing.T) {
	h := newHarness(t)
	h.configure(t)
	ticket := h.openTicket(t, "owner")

	const claimers = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		winners   []string
		conflicts int
	)
	for i := 0; i < claimers; i++ {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := h.tickets.ClaimTicket(context.Background(), ticket.ID, id)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				winners = append(winners, id)
			case errors.Is(err, apperrors.ErrStateConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(fmt.Sprintf("claimer-%d", i))
	}
	wg.Wait()

	require.Len(t, winners, 1)
	assert.Equal(t, claimers-1, conflicts)
	current, err := h.tickets.GetTicket(context.Background(), ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, winners[0], *current.ClaimedBy)
	assert.Len(t, h.store.EventsFor(ticket.ID), 2)
}

func TestTransferTicket(t *testing.T) {
	h := newHarness(t)
	h.record(events.EventTicketTransferred)
	h.configure(t)
	h.addModerator(t, "mod-a")
	h.addModerator(t, "mod-b")
	ticket := h.openTicket(t, "owner")
	ctx := context.Background()

	_, err := h.tickets.TransferTicket(ctx, ticket.ID, "admin", "mod-b")
	assert.ErrorIs(t, err, apperrors.ErrStateConflict, "open tickets cannot be transferred")

	_, err = h.tickets.ClaimTicket(ctx, ticket.ID, "mod-a")
	require.NoError(t, err)

	_, err = h.tickets.TransferTicket(ctx, ticket.ID, "admin", "mod-a")
	assert.ErrorIs(t, err, apperrors.ErrConflict)

	_, err = h.tickets.TransferTicket(ctx, ticket.ID, "admin", "stranger")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	moved, err := h.tickets.TransferTicket(ctx, ticket.ID, "admin", "mod-b")
	require.NoError(t, err)
	assert.Equal(t, "mod-b", *moved.ClaimedBy)
	assert.Equal(t, domain.TicketStatusClaimed, moved.Status)

	rows := h.store.AssignmentsFor(ticket.ID)
	require.Len(t, rows, 2)
	assert.NotNil(t, rows[0].UnassignedAt)
	assert.Equal(t, "mod-b", rows[1].ModID)
	assert.Equal(t, domain.AssignmentReasonManual, rows[1].Reason)

	published := h.events()
	require.Len(t, published, 1)
	payload := published[0].Payload.(events.TicketAssignedPayload)
	require.NotNil(t, payload.PreviousID)
	assert.Equal(t, "mod-a", *payload.PreviousID)
}

func TestCloseTicketTracksModeratorResolution(t *testing.T) {
	h := newHarness(t)
	h.configure(t)
	h.addModerator(t, "mod-a")
	ticket := h.openTicket(t, "owner")
	ctx := context.Background()
	_, err := h.tickets.ClaimTicket(ctx, ticket.ID, "mod-a")
	require.NoError(t, err)

	h.clock.Advance(10 * time.Minute)
	closed, err := h.tickets.CloseTicket(ctx, ticket.ID, "mod-a")
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusClosed, closed.Status)
	require.NotNil(t, closed.ClosedAt)
	assert.Equal(t, int64(600), closed.ResolutionSeconds())

	row, err := h.store.Metrics().GetDaily(ctx, "mod-a", testGuild, domain.Day(h.clock.Now()))
	require.NoError(t, err)
	assert.Equal(t, 1, row.TicketsResolved)
	assert.Equal(t, int64(600), row.TotalResponseSeconds)

	rows := h.store.AssignmentsFor(ticket.ID)
	require.Len(t, rows, 1)
	assert.NotNil(t, rows[0].UnassignedAt)

	assert.Empty(t, h.gateway.DeletedChannels())
	h.runScheduled()
	assert.Equal(t, []string{ticket.ChannelID}, h.gateway.DeletedChannels())

	_, err = h.tickets.CloseTicket(ctx, ticket.ID, "mod-a")
	assert.ErrorIs(t, err, apperrors.ErrStateConflict)
}

func TestCloseTicketByNonModeratorSkipsMetrics(t *testing.T) {
	h := newHarness(t)
	h.configure(t)
	ticket := h.openTicket(t, "owner")

	closed, err := h.tickets.CloseTicket(context.Background(), ticket.ID, "owner")
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusClosed, closed.Status)

	rows, err := h.store.Metrics().ListGuildDay(context.Background(), testGuild, h.clock.Now())
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestCloseTicketSurvivesMetricsFailure(t *testing.T) {
	h := newHarness(t)
	h.configure(t)
	h.addModerator(t, "mod-a")
	ticket := h.openTicket(t, "owner")
	h.store.Fail("metrics.RecordResolution", errors.New("timeout"))

	closed, err := h.tickets.CloseTicket(context.Background(), ticket.ID, "mod-a")
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusClosed, closed.Status)

	current, err := h.tickets.GetTicket(context.Background(), ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusClosed, current.Status)
}

func TestCloseTicketSurvivesChannelDeleteFailure(t *testing.T) {
	h := newHarness(t)
	h.configure(t)
	ticket := h.openTicket(t, "owner")
	h.gateway.DeleteErr = errors.New("gone")

	_, err := h.tickets.CloseTicket(context.Background(), ticket.ID, "owner")
	require.NoError(t, err)
	assert.NotPanics(t, h.runScheduled)
}

func TestArchiveTicket(t *testing.T) {
	h := newHarness(t)
	h.configure(t)
	ticket := h.openTicket(t, "owner")
	ctx := context.Background()

	_, err := h.tickets.ArchiveTicket(ctx, ticket.ID, "admin")
	assert.ErrorIs(t, err, apperrors.ErrStateConflict)

	_, err = h.tickets.CloseTicket(ctx, ticket.ID, "owner")
	require.NoError(t, err)
	archived, err := h.tickets.ArchiveTicket(ctx, ticket.ID, "admin")
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusArchived, archived.Status)

	_, err = h.tickets.ClaimTicket(ctx, ticket.ID, "helper")
	assert.ErrorIs(t, err, apperrors.ErrStateConflict)
}

func TestTicketLookups(t *testing.T) {
	h := newHarness(t)
	h.configure(t)
	ctx := context.Background()

	none, err := h.tickets.GetOpenTicketByUser(ctx, testGuild, "owner")
	require.NoError(t, err)
	assert.Nil(t, none)

	first := h.openTicket(t, "owner")
	h.clock.Advance(time.Second)
	second := h.openTicket(t, "other")

	open, err := h.tickets.GetOpenTicketByUser(ctx, testGuild, "owner")
	require.NoError(t, err)
	require.NotNil(t, open)
	assert.Equal(t, first.ID, open.ID)

	byChannel, err := h.tickets.GetTicketByChannel(ctx, second.ChannelID)
	require.NoError(t, err)
	assert.Equal(t, second.ID, byChannel.ID)

	_, err = h.tickets.GetTicketByChannel(ctx, "missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = h.tickets.CloseTicket(ctx, first.ID, "owner")
	require.NoError(t, err)
	active, err := h.tickets.ListActiveTickets(ctx, testGuild)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, second.ID, active[0].ID)

	none, err = h.tickets.GetOpenTicketByUser(ctx, testGuild, "owner")
	require.NoError(t, err)
	assert.Nil(t, none)

	_, err = h.tickets.ListEvents(ctx, 9999)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestConfigureGuildTrimsBlankValues(t *testing.T) {
	h := newHarness(t)
	role, blank := "  role-1 ", "   "
	cfg, err := h.tickets.ConfigureGuild(context.Background(), testGuild, "admin", &role, &blank)
	require.NoError(t, err)
	require.NotNil(t, cfg.SupportRoleID)
	assert.Equal(t, "role-1", *cfg.SupportRoleID)
	assert.Nil(t, cfg.CategoryID)

	stored, err := h.tickets.GetGuildConfig(context.Background(), testGuild)
	require.NoError(t, err)
	assert.True(t, stored.Ready())

	_, err = h.tickets.GetGuildConfig(context.Background(), "unknown")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

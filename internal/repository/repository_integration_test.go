package repository_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/modcenter/internal/domain"
	"github.com/spec-kit/modcenter/internal/repository"
	"github.com/spec-kit/modcenter/internal/testutil"
)

var testPool *pgxpool.Pool

func TestMain(m *testing.M) {
	if os.Getenv("MODCENTER_SKIP_INTEGRATION") != "" {
		os.Exit(m.Run())
	}
	ctx := context.Background()
	container, err := testutil.StartPostgres(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "postgres container unavailable, integration tests skipped: %v\n", err)
		os.Exit(m.Run())
	}
	testPool, err = container.NewPool(ctx)
	if err != nil {
		container.Terminate()
		fmt.Fprintf(os.Stderr, "postgres setup failed: %v\n", err)
		os.Exit(1)
	}
	code := m.Run()
	testPool.Close()
	container.Terminate()
	os.Exit(code)
}

func requirePool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testPool == nil {
		t.Skip("postgres not available")
	}
	return testPool
}

func seedTicket(t *testing.T, repo repository.TicketRepository, guildID, ownerID string) *domain.Ticket {
	t.Helper()
	ticket := &domain.Ticket{
		GuildID:    guildID,
		ChannelID:  "chan-" + ownerID,
		OwnerID:    ownerID,
		CategoryID: "general",
		Subject:    "help",
	}
	require.NoError(t, repo.Create(context.Background(), ticket))
	return ticket
}

func seedModerator(t *testing.T, repo repository.ModeratorRepository, guildID, userID string) {
	t.Helper()
	require.NoError(t, repo.Create(context.Background(), &domain.ModeratorProfile{GuildID: guildID, UserID: userID}))
}

func TestAutoAssignWithoutProfileRollsBack(t *testing.T) {
	pool := requirePool(t)
	ctx := context.Background()
	tickets := repository.NewTicketRepository(pool)
	trail := repository.NewTicketEventRepository(pool)
	guild := "rollback-guild"

	ticket := seedTicket(t, tickets, guild, "owner")
	_, err := tickets.Claim(ctx, repository.ClaimParams{
		TicketID: ticket.ID,
		GuildID:  guild,
		ModID:    "ghost",
		ActorID:  "ghost",
		Reason:   domain.AssignmentReasonAuto,
	})
	require.ErrorIs(t, err, repository.ErrUnknownModerator)

	stored, err := tickets.GetByID(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusOpen, stored.Status)
	assert.Nil(t, stored.ClaimedBy)

	events, err := trail.ListByTicket(ctx, ticket.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, domain.TicketActionCreated, events[0].Action)
}

func TestClaimWithoutProfileSkipsAssignment(t *testing.T) {
	pool := requirePool(t)
	ctx := context.Background()
	tickets := repository.NewTicketRepository(pool)
	assignments := repository.NewAssignmentRepository(pool)
	guild := "claim-guild"

	ticket := seedTicket(t, tickets, guild, "owner")
	claimed, err := tickets.Claim(ctx, repository.ClaimParams{
		TicketID: ticket.ID,
		ModID:    "helper",
		ActorID:  "helper",
		Reason:   domain.AssignmentReasonClaim,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusClaimed, claimed.Status)

	rows, err := assignments.ListByTicket(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestConcurrentClaimsHaveOneWinner(t *testing.T) {
	pool := requirePool(t)
	ctx := context.Background()
	tickets := repository.NewTicketRepository(pool)
	moderators := repository.NewModeratorRepository(pool)
	guild := "race-guild"

	ticket := seedTicket(t, tickets, guild, "owner")
	const claimers = 8
	for i := 0; i < claimers; i++ {
		seedModerator(t, moderators, guild, fmt.Sprintf("mod-%d", i))
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		wins      int
		conflicts int
	)
	for i := 0; i < claimers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			modID := fmt.Sprintf("mod-%d", i)
			_, err := tickets.Claim(ctx, repository.ClaimParams{TicketID: ticket.ID, ModID: modID, ActorID: modID, Reason: domain.AssignmentReasonClaim})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, repository.ErrStatusConflict):
				conflicts++
			default:
				t.Errorf("unexpected claim error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, claimers-1, conflicts)

	rows, err := repository.NewAssignmentRepository(pool).ListByTicket(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestTransitionMisses(t *testing.T) {
	pool := requirePool(t)
	ctx := context.Background()
	tickets := repository.NewTicketRepository(pool)
	guild := "transition-guild"

	ticket := seedTicket(t, tickets, guild, "owner")
	_, err := tickets.Archive(ctx, ticket.ID)
	assert.ErrorIs(t, err, repository.ErrStatusConflict)

	closed, err := tickets.Close(ctx, ticket.ID, "owner")
	require.NoError(t, err)
	require.NotNil(t, closed.ClosedAt)

	_, err = tickets.Close(ctx, ticket.ID, "owner")
	assert.ErrorIs(t, err, repository.ErrStatusConflict)

	_, err = tickets.Close(ctx, 1<<40, "owner")
	assert.ErrorIs(t, err, pgx.ErrNoRows)

	_, err = tickets.Claim(ctx, repository.ClaimParams{TicketID: ticket.ID, GuildID: "elsewhere", ModID: "m", ActorID: "m", Reason: domain.AssignmentReasonClaim})
	assert.ErrorIs(t, err, pgx.ErrNoRows)
}

func TestCloseUsesCreationClock(t *testing.T) {
	pool := requirePool(t)
	ctx := context.Background()
	tickets := repository.NewTicketRepository(pool)
	assignments := repository.NewAssignmentRepository(pool)
	guild := "clock-guild"

	seedModerator(t, repository.NewModeratorRepository(pool), guild, "mod-a")
	ticket := seedTicket(t, tickets, guild, "owner")
	_, err := tickets.Claim(ctx, repository.ClaimParams{
		TicketID: ticket.ID,
		GuildID:  guild,
		ModID:    "mod-a",
		ActorID:  "mod-a",
		Reason:   domain.AssignmentReasonClaim,
	})
	require.NoError(t, err)

	closed, err := tickets.Close(ctx, ticket.ID, "mod-a")
	require.NoError(t, err)
	require.NotNil(t, closed.ClosedAt)
	assert.False(t, closed.ClosedAt.Before(closed.CreatedAt))
	assert.Equal(t, int64(closed.ClosedAt.Sub(closed.CreatedAt)/time.Second), closed.ResolutionSeconds())

	rows, err := assignments.ListByTicket(ctx, ticket.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.NotNil(t, rows[0].UnassignedAt)
	assert.True(t, rows[0].UnassignedAt.Equal(*closed.ClosedAt))
}

func TestMetricsUpsertAccumulates(t *testing.T) {
	pool := requirePool(t)
	ctx := context.Background()
	moderators := repository.NewModeratorRepository(pool)
	metrics := repository.NewMetricsRepository(pool)
	guild := "metrics-guild"
	day := domain.Day(time.Now())

	seedModerator(t, moderators, guild, "mod-a")
	require.NoError(t, metrics.RecordResolution(ctx, "mod-a", guild, day, 100))
	require.NoError(t, metrics.RecordResolution(ctx, "mod-a", guild, day, 300))
	require.NoError(t, metrics.RecordReopen(ctx, "mod-a", guild, day))

	row, err := metrics.GetDaily(ctx, "mod-a", guild, day)
	require.NoError(t, err)
	assert.Equal(t, 2, row.TicketsResolved)
	assert.Equal(t, int64(400), row.TotalResponseSeconds)
	assert.InDelta(t, 200.0, row.AvgResponseTime, 1e-9)
	assert.Equal(t, 1, row.ReopenCount)

	err = metrics.RecordResolution(ctx, "ghost", guild, day, 10)
	assert.ErrorIs(t, err, repository.ErrUnknownModerator)
	err = metrics.RecordReopen(ctx, "ghost", guild, day)
	assert.ErrorIs(t, err, repository.ErrUnknownModerator)
}

func TestModeratorProfileLifecycle(t *testing.T) {
	pool := requirePool(t)
	ctx := context.Background()
	moderators := repository.NewModeratorRepository(pool)
	metrics := repository.NewMetricsRepository(pool)
	guild := "profile-guild"

	seedModerator(t, moderators, guild, "mod-a")
	err := moderators.Create(ctx, &domain.ModeratorProfile{GuildID: guild, UserID: "mod-a"})
	assert.ErrorIs(t, err, repository.ErrDuplicate)

	require.NoError(t, moderators.UpdateBurnoutScore(ctx, guild, "mod-a", 42))
	require.NoError(t, metrics.RecordReopen(ctx, "mod-a", guild, domain.Day(time.Now())))

	profile, err := moderators.Get(ctx, guild, "mod-a")
	require.NoError(t, err)
	assert.Equal(t, 42, profile.BurnoutScore)

	require.NoError(t, moderators.Delete(ctx, guild, "mod-a"))
	assert.ErrorIs(t, moderators.Delete(ctx, guild, "mod-a"), pgx.ErrNoRows)
	rows, err := metrics.ListSince(ctx, "mod-a", guild, time.Time{})
	require.NoError(t, err)
	assert.Empty(t, rows)
}

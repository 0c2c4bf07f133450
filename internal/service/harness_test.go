package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/modcenter/internal/cache"
	"github.com/spec-kit/modcenter/internal/config"
	"github.com/spec-kit/modcenter/internal/domain"
	"github.com/spec-kit/modcenter/internal/events"
	"github.com/spec-kit/modcenter/internal/testutil"
)

const testGuild = "guild-1"

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock() *testClock {
	return &testClock{t: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type harness struct {
	store      *testutil.Store
	gateway    *testutil.Gateway
	dispatcher events.Dispatcher
	clock      *testClock
	thresholds config.BurnoutConfig

	burnout    *BurnoutDetector
	collector  *MetricsCollector
	engine     *AssignmentEngine
	tickets    *TicketService
	moderators *ModeratorService
	audit      *AuditLogger

	mu        sync.Mutex
	scheduled []func()
	published []events.Event
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		store:      testutil.NewStore(),
		gateway:    &testutil.Gateway{},
		dispatcher: events.NewInMemoryDispatcher(nil),
		clock:      newTestClock(),
		thresholds: config.DefaultBurnoutConfig(),
	}
	h.store.Now = h.clock.Now
	h.build()
	return h
}

func (h *harness) build() {
	logger := zap.NewNop()
	h.burnout = NewBurnoutDetector(BurnoutDependencies{
		ModeratorRepo: h.store.Moderators(),
		MetricsRepo:   h.store.Metrics(),
		Thresholds:    h.thresholds,
		Dispatcher:    h.dispatcher,
		Logger:        logger,
		Now:           h.clock.Now,
	})
	h.collector = NewMetricsCollector(MetricsDependencies{
		MetricsRepo:    h.store.Metrics(),
		AssignmentRepo: h.store.Assignments(),
		Burnout:        h.burnout,
		Logger:         logger,
		Now:            h.clock.Now,
	})
	h.engine = NewAssignmentEngine(AssignmentDependencies{
		ModeratorRepo: h.store.Moderators(),
		TicketRepo:    h.store.Tickets(),
		Thresholds:    h.thresholds,
		Dispatcher:    h.dispatcher,
		Logger:        logger,
		Now:           h.clock.Now,
	})
	h.tickets = NewTicketService(TicketDependencies{
		TicketRepo:       h.store.Tickets(),
		EventRepo:        h.store.Events(),
		ConfigRepo:       h.store.Configs(),
		ModeratorRepo:    h.store.Moderators(),
		MetricsCollector: h.collector,
		Gateway:          h.gateway,
		Cache:            cache.New(nil),
		Dispatcher:       h.dispatcher,
		Logger:           logger,
		Now:              h.clock.Now,
		AfterFunc: func(_ time.Duration, f func()) {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.scheduled = append(h.scheduled, f)
		},
		BotUserID: "bot",
	})
	h.audit = NewAuditLogger(h.store.Audit(), logger)
	h.moderators = NewModeratorService(ModeratorDependencies{
		ModeratorRepo: h.store.Moderators(),
		TicketRepo:    h.store.Tickets(),
		MetricsRepo:   h.store.Metrics(),
		Collector:     h.collector,
		Burnout:       h.burnout,
		Audit:         h.audit,
		Cache:         cache.New(nil),
		Logger:        logger,
		Now:           h.clock.Now,
	})
}

// record captures every published event of the given types.
func (h *harness) record(types ...events.EventType) {
	for _, et := range types {
		h.dispatcher.Subscribe(et, func(_ context.Context, e events.Event) error {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.published = append(h.published, e)
			return nil
		})
	}
}

func (h *harness) events() []events.Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]events.Event(nil), h.published...)
}

func (h *harness) runScheduled() {
	h.mu.Lock()
	pending := h.scheduled
	h.scheduled = nil
	h.mu.Unlock()
	for _, f := range pending {
		f()
	}
}

func (h *harness) addModerator(t *testing.T, userID string) {
	t.Helper()
	_, err := h.moderators.AddModerator(context.Background(), testGuild, "admin", userID)
	require.NoError(t, err)
	// keep enrollment order deterministic
	h.clock.Advance(time.Second)
}

func (h *harness) configure(t *testing.T) {
	t.Helper()
	role, category := "role-support", "cat-parent"
	_, err := h.tickets.ConfigureGuild(context.Background(), testGuild, "admin", &role, &category)
	require.NoError(t, err)
}

func (h *harness) openTicket(t *testing.T, ownerID string) *domain.Ticket {
	t.Helper()
	ticket, err := h.tickets.CreateTicket(context.Background(), TicketCreateInput{
		GuildID:       testGuild,
		OwnerID:       ownerID,
		OwnerUsername: ownerID,
		CategoryID:    "support",
		Subject:       "help",
	})
	require.NoError(t, err)
	return ticket
}

// Package testutil provides in-memory repositories, a recording platform
// gateway and a Postgres container for tests.
//
// Store mirrors the conditional-update semantics of the pgx repositories:
// missing rows surface as pgx.ErrNoRows and lost status races as
// repository.ErrStatusConflict.
package testutil

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/modcenter/internal/domain"
	"github.com/spec-kit/modcenter/internal/repository"
)

// Store is a mutex-guarded in-memory database.
type Store struct {
	mu sync.Mutex

	// Now stamps created_at columns. Defaults to time.Now.
	Now func() time.Time

	failures map[string]error

	nextTicketID int64
	nextEventID  int64
	nextAssignID int64
	nextAuditID  int64
	profileSeq   int64

	tickets     map[int64]*domain.Ticket
	events      []domain.TicketEvent
	assignments []domain.TicketAssignment
	configs     map[string]domain.TicketConfig
	profiles    map[string]*profileRow
	metrics     map[string]*domain.ModeratorMetrics
	audit       []domain.AuditEntry
}

type profileRow struct {
	profile domain.ModeratorProfile
	seq     int64
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		failures: make(map[string]error),
		tickets:  make(map[int64]*domain.Ticket),
		configs:  make(map[string]domain.TicketConfig),
		profiles: make(map[string]*profileRow),
		metrics:  make(map[string]*domain.ModeratorMetrics),
	}
}

// Fail makes every later call of op return err until cleared with a nil err.
// Ops are named "<repo>.<Method>", e.g. "metrics.RecordResolution".
func (s *Store) Fail(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, op)
		return
	}
	s.failures[op] = err
}

func (s *Store) failure(op string) error {
	return s.failures[op]
}

func (s *Store) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Tickets returns the ticket repository view.
func (s *Store) Tickets() repository.TicketRepository { return ticketStore{s} }

// Events returns the ticket event repository view.
func (s *Store) Events() repository.TicketEventRepository { return eventStore{s} }

// Configs returns the ticket config repository view.
func (s *Store) Configs() repository.TicketConfigRepository { return configStore{s} }

// Moderators returns the moderator profile repository view.
func (s *Store) Moderators() repository.ModeratorRepository { return moderatorStore{s} }

// Metrics returns the daily metrics repository view.
func (s *Store) Metrics() repository.MetricsRepository { return metricsStore{s} }

// Assignments returns the assignment repository view.
func (s *Store) Assignments() repository.AssignmentRepository { return assignmentStore{s} }

// Audit returns the audit log repository view.
func (s *Store) Audit() repository.AuditRepository { return auditStore{s} }

// AssignmentsFor returns every assignment row recorded for a ticket.
func (s *Store) AssignmentsFor(ticketID int64) []domain.TicketAssignment {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.TicketAssignment
	for _, a := range s.assignments {
		if a.TicketID == ticketID {
			out = append(out, a)
		}
	}
	return out
}

// EventsFor returns the event trail of a ticket.
func (s *Store) EventsFor(ticketID int64) []domain.TicketEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.eventsFor(ticketID)
}

// AuditEntries returns every audit row in insertion order.
func (s *Store) AuditEntries() []domain.AuditEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.AuditEntry(nil), s.audit...)
}

// SeedMetrics overwrites the metrics row for (modID, guildID, day).
func (s *Store) SeedMetrics(m domain.ModeratorMetrics) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m.Date = domain.Day(m.Date)
	s.metrics[metricsKey(m.ModID, m.GuildID, m.Date)] = &m
}

func (s *Store) eventsFor(ticketID int64) []domain.TicketEvent {
	var out []domain.TicketEvent
	for _, e := range s.events {
		if e.TicketID == ticketID {
			out = append(out, e)
		}
	}
	return out
}

func (s *Store) appendEvent(ticketID int64, actorID string, action domain.TicketAction) {
	s.nextEventID++
	s.events = append(s.events, domain.TicketEvent{
		ID:        s.nextEventID,
		TicketID:  ticketID,
		ActorID:   actorID,
		Action:    action,
		CreatedAt: s.now(),
	})
}

func (s *Store) hasProfile(guildID, userID string) bool {
	_, ok := s.profiles[profileKey(guildID, userID)]
	return ok
}

func (s *Store) appendAssignment(ticketID int64, modID, guildID string, reason domain.AssignmentReason) {
	s.nextAssignID++
	s.assignments = append(s.assignments, domain.TicketAssignment{
		ID:         s.nextAssignID,
		TicketID:   ticketID,
		ModID:      modID,
		GuildID:    guildID,
		Reason:     reason,
		AssignedAt: s.now(),
	})
}

func (s *Store) unassign(ticketID int64, at time.Time) {
	for i := range s.assignments {
		if s.assignments[i].TicketID == ticketID && s.assignments[i].UnassignedAt == nil {
			stamp := at
			s.assignments[i].UnassignedAt = &stamp
		}
	}
}

func profileKey(guildID, userID string) string {
	return guildID + "\x00" + userID
}

func metricsKey(modID, guildID string, day time.Time) string {
	return modID + "\x00" + guildID + "\x00" + day.Format(time.DateOnly)
}

func copyTicket(t *domain.Ticket) *domain.Ticket {
	out := *t
	if t.ClaimedBy != nil {
		v := *t.ClaimedBy
		out.ClaimedBy = &v
	}
	if t.ClosedAt != nil {
		v := *t.ClosedAt
		out.ClosedAt = &v
	}
	return &out
}

type ticketStore struct{ s *Store }

func (r ticketStore) Create(_ context.Context, ticket *domain.Ticket) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("tickets.Create"); err != nil {
		return err
	}
	r.s.nextTicketID++
	ticket.ID = r.s.nextTicketID
	ticket.Status = domain.TicketStatusOpen
	ticket.CreatedAt = r.s.now()
	ticket.ClaimedBy = nil
	ticket.ClosedAt = nil
	r.s.tickets[ticket.ID] = copyTicket(ticket)
	r.s.appendEvent(ticket.ID, ticket.OwnerID, domain.TicketActionCreated)
	return nil
}

func (r ticketStore) GetByID(_ context.Context, id int64) (*domain.Ticket, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("tickets.GetByID"); err != nil {
		return nil, err
	}
	t, ok := r.s.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return copyTicket(t), nil
}

func (r ticketStore) GetByChannel(_ context.Context, channelID string) (*domain.Ticket, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var found *domain.Ticket
	for _, t := range r.s.tickets {
		if t.ChannelID == channelID && (found == nil || t.ID > found.ID) {
			found = t
		}
	}
	if found == nil {
		return nil, pgx.ErrNoRows
	}
	return copyTicket(found), nil
}

func (r ticketStore) GetOpenByOwner(_ context.Context, guildID, ownerID string) (*domain.Ticket, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var found *domain.Ticket
	for _, t := range r.s.tickets {
		if t.GuildID == guildID && t.OwnerID == ownerID && t.Status.Active() && (found == nil || t.ID > found.ID) {
			found = t
		}
	}
	if found == nil {
		return nil, pgx.ErrNoRows
	}
	return copyTicket(found), nil
}

func (r ticketStore) ListActive(_ context.Context, guildID string) ([]domain.Ticket, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.Ticket
	for _, t := range r.s.tickets {
		if t.GuildID == guildID && t.Status.Active() {
			out = append(out, *copyTicket(t))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r ticketStore) CountActive(ctx context.Context, guildID string) (int, error) {
	active, err := r.ListActive(ctx, guildID)
	return len(active), err
}

func (r ticketStore) Claim(_ context.Context, params repository.ClaimParams) (*domain.Ticket, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("tickets.Claim"); err != nil {
		return nil, err
	}
	t, ok := r.s.tickets[params.TicketID]
	if !ok || (params.GuildID != "" && t.GuildID != params.GuildID) {
		return nil, pgx.ErrNoRows
	}
	if t.Status != domain.TicketStatusOpen {
		return nil, repository.ErrStatusConflict
	}
	withProfile := r.s.hasProfile(t.GuildID, params.ModID)
	if params.Reason != domain.AssignmentReasonClaim && !withProfile {
		return nil, repository.ErrUnknownModerator
	}

	modID := params.ModID
	t.Status = domain.TicketStatusClaimed
	t.ClaimedBy = &modID
	r.s.appendEvent(t.ID, params.ActorID, domain.TicketActionClaimed)
	if withProfile {
		r.s.appendAssignment(t.ID, params.ModID, t.GuildID, params.Reason)
	}
	return copyTicket(t), nil
}

func (r ticketStore) Transfer(_ context.Context, params repository.TransferParams) (*domain.Ticket, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tickets[params.TicketID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	if t.Status != domain.TicketStatusClaimed {
		return nil, repository.ErrStatusConflict
	}
	if !r.s.hasProfile(t.GuildID, params.ModID) {
		return nil, repository.ErrUnknownModerator
	}

	modID := params.ModID
	t.ClaimedBy = &modID
	r.s.unassign(t.ID, params.At)
	r.s.appendAssignment(t.ID, params.ModID, t.GuildID, domain.AssignmentReasonManual)
	r.s.appendEvent(t.ID, params.ActorID, domain.TicketActionTransferred)
	return copyTicket(t), nil
}

func (r ticketStore) Close(_ context.Context, id int64, closerID string) (*domain.Ticket, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("tickets.Close"); err != nil {
		return nil, err
	}
	t, ok := r.s.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	if !t.Status.Active() {
		return nil, repository.ErrStatusConflict
	}
	t.Status = domain.TicketStatusClosed
	if t.ClosedAt == nil {
		stamp := r.s.now()
		t.ClosedAt = &stamp
	}
	r.s.appendEvent(t.ID, closerID, domain.TicketActionClosed)
	r.s.unassign(t.ID, *t.ClosedAt)
	return copyTicket(t), nil
}

func (r ticketStore) Archive(_ context.Context, id int64) (*domain.Ticket, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	if t.Status != domain.TicketStatusClosed {
		return nil, repository.ErrStatusConflict
	}
	t.Status = domain.TicketStatusArchived
	return copyTicket(t), nil
}

type eventStore struct{ s *Store }

func (r eventStore) ListByTicket(_ context.Context, ticketID int64) ([]domain.TicketEvent, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.eventsFor(ticketID), nil
}

type configStore struct{ s *Store }

func (r configStore) Get(_ context.Context, guildID string) (*domain.TicketConfig, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("configs.Get"); err != nil {
		return nil, err
	}
	cfg, ok := r.s.configs[guildID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &cfg, nil
}

func (r configStore) Upsert(_ context.Context, cfg *domain.TicketConfig) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cfg.UpdatedAt = r.s.now()
	r.s.configs[cfg.GuildID] = *cfg
	return nil
}

type moderatorStore struct{ s *Store }

func (r moderatorStore) Create(_ context.Context, profile *domain.ModeratorProfile) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := profileKey(profile.GuildID, profile.UserID)
	if _, exists := r.s.profiles[key]; exists {
		return repository.ErrDuplicate
	}
	if profile.Status == "" {
		profile.Status = domain.ModStatusActive
	}
	profile.BurnoutScore = 0
	profile.CreatedAt = r.s.now()
	profile.UpdatedAt = profile.CreatedAt
	r.s.profileSeq++
	r.s.profiles[key] = &profileRow{profile: *profile, seq: r.s.profileSeq}
	return nil
}

func (r moderatorStore) Get(_ context.Context, guildID, userID string) (*domain.ModeratorProfile, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("moderators.Get"); err != nil {
		return nil, err
	}
	row, ok := r.s.profiles[profileKey(guildID, userID)]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	profile := row.profile
	return &profile, nil
}

func (r moderatorStore) sorted(guildID string) []*profileRow {
	var rows []*profileRow
	for _, row := range r.s.profiles {
		if guildID == "" || row.profile.GuildID == guildID {
			rows = append(rows, row)
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].profile.GuildID != rows[j].profile.GuildID {
			return rows[i].profile.GuildID < rows[j].profile.GuildID
		}
		return rows[i].seq < rows[j].seq
	})
	return rows
}

func (r moderatorStore) List(_ context.Context, guildID string) ([]domain.ModeratorProfile, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.ModeratorProfile
	for _, row := range r.sorted(guildID) {
		out = append(out, row.profile)
	}
	return out, nil
}

func (r moderatorStore) ListAll(ctx context.Context) ([]domain.ModeratorProfile, error) {
	return r.List(ctx, "")
}

func (r moderatorStore) ListCandidates(_ context.Context, guildID string) ([]domain.Candidate, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("moderators.ListCandidates"); err != nil {
		return nil, err
	}
	var out []domain.Candidate
	for _, row := range r.sorted(guildID) {
		if row.profile.Status != domain.ModStatusActive || row.profile.OptedOut {
			continue
		}
		load := 0
		for _, a := range r.s.assignments {
			if a.GuildID == guildID && a.ModID == row.profile.UserID && a.UnassignedAt == nil {
				load++
			}
		}
		out = append(out, domain.Candidate{Profile: row.profile, ActiveAssignments: load})
	}
	return out, nil
}

func (r moderatorStore) update(guildID, userID string, fn func(*domain.ModeratorProfile)) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	row, ok := r.s.profiles[profileKey(guildID, userID)]
	if !ok {
		return pgx.ErrNoRows
	}
	fn(&row.profile)
	row.profile.UpdatedAt = r.s.now()
	return nil
}

func (r moderatorStore) UpdateBurnoutScore(_ context.Context, guildID, userID string, score int) error {
	return r.update(guildID, userID, func(p *domain.ModeratorProfile) { p.BurnoutScore = score })
}

func (r moderatorStore) UpdateStatus(_ context.Context, guildID, userID string, status domain.ModStatus) error {
	return r.update(guildID, userID, func(p *domain.ModeratorProfile) { p.Status = status })
}

func (r moderatorStore) SetOptOut(_ context.Context, guildID, userID string, optedOut bool) error {
	return r.update(guildID, userID, func(p *domain.ModeratorProfile) { p.OptedOut = optedOut })
}

func (r moderatorStore) Delete(_ context.Context, guildID, userID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := profileKey(guildID, userID)
	if _, ok := r.s.profiles[key]; !ok {
		return pgx.ErrNoRows
	}
	for k, m := range r.s.metrics {
		if m.GuildID == guildID && m.ModID == userID {
			delete(r.s.metrics, k)
		}
	}
	kept := r.s.assignments[:0]
	for _, a := range r.s.assignments {
		if a.GuildID != guildID || a.ModID != userID {
			kept = append(kept, a)
		}
	}
	r.s.assignments = kept
	delete(r.s.profiles, key)
	return nil
}

type metricsStore struct{ s *Store }

func (r metricsStore) upsert(op, modID, guildID string, day time.Time, fn func(*domain.ModeratorMetrics)) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure(op); err != nil {
		return err
	}
	if !r.s.hasProfile(guildID, modID) {
		return repository.ErrUnknownModerator
	}
	key := metricsKey(modID, guildID, day)
	row, ok := r.s.metrics[key]
	if !ok {
		row = &domain.ModeratorMetrics{ModID: modID, GuildID: guildID, Date: domain.Day(day)}
		r.s.metrics[key] = row
	}
	fn(row)
	return nil
}

func (r metricsStore) RecordResolution(_ context.Context, modID, guildID string, day time.Time, seconds int64) error {
	return r.upsert("metrics.RecordResolution", modID, guildID, day, func(m *domain.ModeratorMetrics) {
		m.TicketsResolved++
		m.TotalResponseSeconds += seconds
		m.AvgResponseTime = float64(m.TotalResponseSeconds) / float64(m.TicketsResolved)
	})
}

func (r metricsStore) RecordReopen(_ context.Context, modID, guildID string, day time.Time) error {
	return r.upsert("metrics.RecordReopen", modID, guildID, day, func(m *domain.ModeratorMetrics) {
		m.ReopenCount++
	})
}

func (r metricsStore) GetDaily(_ context.Context, modID, guildID string, day time.Time) (*domain.ModeratorMetrics, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("metrics.GetDaily"); err != nil {
		return nil, err
	}
	row, ok := r.s.metrics[metricsKey(modID, guildID, day)]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	out := *row
	return &out, nil
}

func (r metricsStore) ListSince(_ context.Context, modID, guildID string, since time.Time) ([]domain.ModeratorMetrics, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.ModeratorMetrics
	for _, row := range r.s.metrics {
		if row.ModID == modID && row.GuildID == guildID && !row.Date.Before(since) {
			out = append(out, *row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (r metricsStore) ListGuildDay(_ context.Context, guildID string, day time.Time) ([]domain.ModeratorMetrics, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.ModeratorMetrics
	for _, row := range r.s.metrics {
		if row.GuildID == guildID && row.Date.Equal(domain.Day(day)) {
			out = append(out, *row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ModID < out[j].ModID })
	return out, nil
}

type assignmentStore struct{ s *Store }

func (r assignmentStore) CountActive(_ context.Context, guildID, modID string) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	count := 0
	for _, a := range r.s.assignments {
		if a.GuildID == guildID && a.ModID == modID && a.UnassignedAt == nil {
			count++
		}
	}
	return count, nil
}

func (r assignmentStore) ListByTicket(_ context.Context, ticketID int64) ([]domain.TicketAssignment, error) {
	return r.s.AssignmentsFor(ticketID), nil
}

type auditStore struct{ s *Store }

func (r auditStore) Create(_ context.Context, entry *domain.AuditEntry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("audit.Create"); err != nil {
		return err
	}
	r.s.nextAuditID++
	entry.ID = r.s.nextAuditID
	entry.CreatedAt = r.s.now()
	r.s.audit = append(r.s.audit, *entry)
	return nil
}

func (r auditStore) List(_ context.Context, guildID string, limit, offset int) ([]domain.AuditEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if limit <= 0 {
		limit = 50
	}
	var out []domain.AuditEntry
	for i := len(r.s.audit) - 1; i >= 0; i-- {
		if r.s.audit[i].GuildID == guildID {
			out = append(out, r.s.audit[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// TicketIDString formats a ticket id the way audit rows store targets.
func TicketIDString(id int64) string {
	return strconv.FormatInt(id, 10)
}

package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/modcenter/internal/config"
	"github.com/spec-kit/modcenter/internal/domain"
	"github.com/spec-kit/modcenter/internal/events"
	"github.com/spec-kit/modcenter/internal/observability"
	"github.com/spec-kit/modcenter/internal/repository"
	apperrors "github.com/spec-kit/modcenter/pkg/util/errorutil"
)

// CandidateScorer ranks an eligible candidate; higher wins. It is the hook for
// weighting assignment by reputation, which the default scorer ignores.
type CandidateScorer func(domain.Candidate) float64

// LoadScore prefers moderators with fewer open assignments: 100 - 20*load.
func LoadScore(c domain.Candidate) float64 {
	return 100 - float64(c.ActiveAssignments)*20
}

// AssignmentEngine routes tickets to moderators.
type AssignmentEngine struct {
	moderators repository.ModeratorRepository
	tickets    repository.TicketRepository
	thresholds config.BurnoutConfig
	scorer     CandidateScorer
	dispatcher events.Dispatcher
	telemetry  *observability.Metrics
	logger     *zap.Logger
	now        func() time.Time
}

// AssignmentDependencies bundles collaborators for the engine.
type AssignmentDependencies struct {
	ModeratorRepo repository.ModeratorRepository
	TicketRepo    repository.TicketRepository
	Thresholds    config.BurnoutConfig
	// Scorer defaults to LoadScore.
	Scorer     CandidateScorer
	Dispatcher events.Dispatcher
	Telemetry  *observability.Metrics
	Logger     *zap.Logger
	Now        func() time.Time
}

// NewAssignmentEngine creates the engine.
func NewAssignmentEngine(deps AssignmentDependencies) *AssignmentEngine {
	scorer := deps.Scorer
	if scorer == nil {
		scorer = LoadScore
	}
	return &AssignmentEngine{
		moderators: deps.ModeratorRepo,
		tickets:    deps.TicketRepo,
		thresholds: deps.Thresholds,
		scorer:     scorer,
		dispatcher: deps.Dispatcher,
		telemetry:  deps.Telemetry,
		logger:     loggerOrNop(deps.Logger),
		now:        clockOrNow(deps.Now),
	}
}

// FindBestModerator picks a moderator for a new ticket, or nil when the guild
// has no ACTIVE, non-opted-out moderators. Candidates at or above the burnout
// cutoff are skipped unless every candidate is, in which case the first
// candidate is returned anyway. Ties go to the earliest candidate.
// categoryID is accepted for future expertise routing and is not used yet.
func (e *AssignmentEngine) FindBestModerator(ctx context.Context, guildID string, categoryID *string) (*string, error) {
	candidates, err := e.moderators.ListCandidates(ctx, guildID)
	if err != nil {
		return nil, mapStoreError(err, "moderators", map[string]any{"guild_id": guildID})
	}
	if len(candidates) == 0 {
		e.telemetry.RecordAssignment(ctx, "none")
		return nil, nil
	}

	cutoff := e.thresholds.ForGuild(guildID).AssignmentCutoff
	eligible := make([]domain.Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Profile.BurnoutScore < cutoff {
			eligible = append(eligible, c)
		}
	}
	if len(eligible) == 0 {
		fallback := candidates[0].Profile.UserID
		e.logger.Warn("all assignment candidates over burnout cutoff; using fallback",
			zap.String("guild_id", guildID),
			zap.String("moderator_id", fallback),
			zap.Int("candidates", len(candidates)))
		e.telemetry.RecordAssignment(ctx, "fallback")
		return &fallback, nil
	}

	best := eligible[0]
	bestScore := e.scorer(best)
	for _, c := range eligible[1:] {
		if score := e.scorer(c); score > bestScore {
			best, bestScore = c, score
		}
	}
	e.telemetry.RecordAssignment(ctx, "selected")
	userID := best.Profile.UserID
	return &userID, nil
}

// AssignTicket claims an OPEN ticket for modID in one transaction: the status
// change, the CLAIMED event and the AUTO assignment commit together or not at
// all.
func (e *AssignmentEngine) AssignTicket(ctx context.Context, ticketID int64, modID, guildID string) (*domain.Ticket, error) {
	details := map[string]any{"ticket_id": ticketID, "guild_id": guildID, "moderator_id": modID}
	ticket, err := e.tickets.Claim(ctx, repository.ClaimParams{
		TicketID: ticketID,
		GuildID:  guildID,
		ModID:    modID,
		ActorID:  modID,
		Reason:   domain.AssignmentReasonAuto,
	})
	if err != nil {
		return nil, mapStoreError(err, "ticket", details)
	}

	e.telemetry.RecordTransition(ctx, string(ticket.Status))
	e.logger.Info("ticket assigned",
		zap.Int64("ticket_id", ticket.ID),
		zap.String("guild_id", guildID),
		zap.String("moderator_id", modID))
	e.publish(ctx, events.Event{
		Type:     events.EventTicketAssigned,
		GuildID:  guildID,
		TicketID: ticket.ID,
		ActorID:  modID,
		Payload:  events.TicketAssignedPayload{ModeratorID: modID, Reason: domain.AssignmentReasonAuto},
	})
	return ticket, nil
}

// AutoAssign finds the best moderator for an OPEN ticket and assigns it.
func (e *AssignmentEngine) AutoAssign(ctx context.Context, ticketID int64) (*domain.Ticket, error) {
	details := map[string]any{"ticket_id": ticketID}
	ticket, err := e.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, mapStoreError(err, "ticket", details)
	}
	if ticket.Status != domain.TicketStatusOpen {
		return nil, apperrors.NewStateConflict("ticket is not open", map[string]any{"ticket_id": ticketID, "status": ticket.Status})
	}
	category := ticket.CategoryID
	modID, err := e.FindBestModerator(ctx, ticket.GuildID, &category)
	if err != nil {
		return nil, err
	}
	if modID == nil {
		return nil, apperrors.NewConflict("no moderator available", map[string]any{"guild_id": ticket.GuildID})
	}
	return e.AssignTicket(ctx, ticketID, *modID, ticket.GuildID)
}

func (e *AssignmentEngine) publish(ctx context.Context, event events.Event) {
	publishEvent(ctx, e.dispatcher, e.now, event)
}

func publishEvent(ctx context.Context, dispatcher events.Dispatcher, now func() time.Time, event events.Event) {
	if dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = now()
	}
	_ = dispatcher.Publish(ctx, event)
}

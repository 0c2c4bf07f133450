package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/modcenter/internal/cache"
	"github.com/spec-kit/modcenter/internal/domain"
	"github.com/spec-kit/modcenter/internal/events"
	"github.com/spec-kit/modcenter/internal/observability"
	"github.com/spec-kit/modcenter/internal/platform"
	"github.com/spec-kit/modcenter/internal/repository"
	apperrors "github.com/spec-kit/modcenter/pkg/util/errorutil"
)

const sideEffectTimeout = 15 * time.Second

// TicketService coordinates the ticket lifecycle: OPEN -> CLAIMED -> CLOSED,
// with ARCHIVED reachable from CLOSED.
type TicketService struct {
	tickets     repository.TicketRepository
	events      repository.TicketEventRepository
	configs     repository.TicketConfigRepository
	moderators  repository.ModeratorRepository
	collector   *MetricsCollector
	gateway     platform.Gateway
	cache       *cache.Cache
	dispatcher  events.Dispatcher
	telemetry   *observability.Metrics
	logger      *zap.Logger
	now         func() time.Time
	afterFunc   func(time.Duration, func())
	botUserID   string
	deleteDelay time.Duration
	configTTL   time.Duration
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo       repository.TicketRepository
	EventRepo        repository.TicketEventRepository
	ConfigRepo       repository.TicketConfigRepository
	ModeratorRepo    repository.ModeratorRepository
	MetricsCollector *MetricsCollector
	Gateway          platform.Gateway
	Cache            *cache.Cache
	Dispatcher       events.Dispatcher
	Telemetry        *observability.Metrics
	Logger           *zap.Logger
	Now              func() time.Time
	// AfterFunc schedules delayed side effects; defaults to time.AfterFunc.
	AfterFunc          func(time.Duration, func())
	BotUserID          string
	ChannelDeleteDelay time.Duration
	ConfigCacheTTL     time.Duration
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	GuildID       string
	OwnerID       string
	OwnerUsername string
	CategoryID    string
	Subject       string
	Description   string
}

// NewTicketService builds the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	after := deps.AfterFunc
	if after == nil {
		after = func(d time.Duration, f func()) { time.AfterFunc(d, f) }
	}
	return &TicketService{
		tickets:     deps.TicketRepo,
		events:      deps.EventRepo,
		configs:     deps.ConfigRepo,
		moderators:  deps.ModeratorRepo,
		collector:   deps.MetricsCollector,
		gateway:     deps.Gateway,
		cache:       deps.Cache,
		dispatcher:  deps.Dispatcher,
		telemetry:   deps.Telemetry,
		logger:      loggerOrNop(deps.Logger),
		now:         clockOrNow(deps.Now),
		afterFunc:   after,
		botUserID:   deps.BotUserID,
		deleteDelay: deps.ChannelDeleteDelay,
		configTTL:   deps.ConfigCacheTTL,
	}
}

// ConfigureGuild stores the guild's support role and parent category.
func (s *TicketService) ConfigureGuild(ctx context.Context, guildID, actorID string, supportRoleID, categoryID *string) (*domain.TicketConfig, error) {
	if strings.TrimSpace(guildID) == "" {
		return nil, apperrors.NewValidationError("guild id is required", nil)
	}
	cfg := &domain.TicketConfig{
		GuildID:       guildID,
		SupportRoleID: trimmedOrNil(supportRoleID),
		CategoryID:    trimmedOrNil(categoryID),
	}
	if err := s.configs.Upsert(ctx, cfg); err != nil {
		return nil, mapStoreError(err, "ticket config", map[string]any{"guild_id": guildID})
	}
	if err := s.cache.Delete(ctx, cache.GuildConfigKey(guildID)); err != nil {
		s.logger.Warn("invalidate guild config cache", zap.String("guild_id", guildID), zap.Error(err))
	}
	s.publish(ctx, events.Event{
		Type:    events.EventConfigUpdated,
		GuildID: guildID,
		ActorID: actorID,
		Payload: events.ConfigUpdatedPayload{SupportRoleID: cfg.SupportRoleID, CategoryID: cfg.CategoryID},
	})
	return cfg, nil
}

// GetGuildConfig reads the guild's configuration through the cache.
func (s *TicketService) GetGuildConfig(ctx context.Context, guildID string) (*domain.TicketConfig, error) {
	key := cache.GuildConfigKey(guildID)
	var cached domain.TicketConfig
	if found, err := s.cache.GetJSON(ctx, key, &cached); err != nil {
		s.logger.Warn("read guild config cache", zap.String("guild_id", guildID), zap.Error(err))
	} else if found {
		return &cached, nil
	}

	cfg, err := s.configs.Get(ctx, guildID)
	if err != nil {
		return nil, mapStoreError(err, "ticket config", map[string]any{"guild_id": guildID})
	}
	if err := s.cache.SetJSON(ctx, key, cfg, s.configTTL); err != nil {
		s.logger.Warn("write guild config cache", zap.String("guild_id", guildID), zap.Error(err))
	}
	return cfg, nil
}

// CreateTicket opens a private channel and persists an OPEN ticket with its
// CREATED event. Callers check GetOpenTicketByUser first; this method does not
// enforce the one-open-ticket rule.
func (s *TicketService) CreateTicket(ctx context.Context, input TicketCreateInput) (*domain.Ticket, error) {
	if strings.TrimSpace(input.GuildID) == "" || strings.TrimSpace(input.OwnerID) == "" {
		return nil, apperrors.NewValidationError("guild id and owner id are required", nil)
	}
	if strings.TrimSpace(input.CategoryID) == "" {
		return nil, apperrors.NewValidationError("category is required", nil)
	}

	cfg, err := s.GetGuildConfig(ctx, input.GuildID)
	if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}
	if !cfg.Ready() {
		return nil, apperrors.NewNotConfigured("ticket system not configured for this guild", map[string]any{"guild_id": input.GuildID})
	}

	username := input.OwnerUsername
	if strings.TrimSpace(username) == "" {
		username = input.OwnerID
	}
	spec := platform.ChannelSpec{
		GuildID:       input.GuildID,
		Name:          platform.ChannelName(input.CategoryID, username),
		OwnerID:       input.OwnerID,
		SupportRoleID: *cfg.SupportRoleID,
		BotUserID:     s.botUserID,
		Topic:         input.Subject,
	}
	if cfg.CategoryID != nil {
		spec.ParentID = *cfg.CategoryID
	}
	channelID, err := s.gateway.CreatePrivateChannel(ctx, spec)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	ticket := &domain.Ticket{
		GuildID:     input.GuildID,
		ChannelID:   channelID,
		OwnerID:     input.OwnerID,
		CategoryID:  input.CategoryID,
		Subject:     input.Subject,
		Description: input.Description,
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		if delErr := s.gateway.DeleteChannel(ctx, input.GuildID, channelID); delErr != nil {
			s.logger.Warn("remove orphaned ticket channel",
				zap.String("guild_id", input.GuildID),
				zap.String("channel_id", channelID),
				zap.Error(delErr))
		}
		return nil, mapStoreError(err, "ticket", nil)
	}

	s.telemetry.RecordTransition(ctx, string(ticket.Status))
	s.logger.Info("ticket created",
		zap.Int64("ticket_id", ticket.ID),
		zap.String("guild_id", ticket.GuildID),
		zap.String("owner_id", ticket.OwnerID))
	s.publish(ctx, events.Event{
		Type:     events.EventTicketCreated,
		GuildID:  ticket.GuildID,
		TicketID: ticket.ID,
		ActorID:  ticket.OwnerID,
		Payload: events.TicketCreatedPayload{
			OwnerID:    ticket.OwnerID,
			ChannelID:  ticket.ChannelID,
			CategoryID: ticket.CategoryID,
			Subject:    ticket.Subject,
		},
	})
	return ticket, nil
}

// ClaimTicket moves an OPEN ticket to CLAIMED for claimerID and grants the
// claimer channel access. A failed grant is logged; the claim stands.
func (s *TicketService) ClaimTicket(ctx context.Context, ticketID int64, claimerID string) (*domain.Ticket, error) {
	if strings.TrimSpace(claimerID) == "" {
		return nil, apperrors.NewValidationError("claimer id is required", nil)
	}
	ticket, err := s.tickets.Claim(ctx, repository.ClaimParams{
		TicketID: ticketID,
		ModID:    claimerID,
		ActorID:  claimerID,
		Reason:   domain.AssignmentReasonClaim,
	})
	if err != nil {
		return nil, mapStoreError(err, "ticket", map[string]any{"ticket_id": ticketID})
	}

	s.grantAccess(ctx, ticket, claimerID)
	s.telemetry.RecordTransition(ctx, string(ticket.Status))
	s.logger.Info("ticket claimed", zap.Int64("ticket_id", ticket.ID), zap.String("claimer_id", claimerID))
	s.publish(ctx, events.Event{
		Type:     events.EventTicketClaimed,
		GuildID:  ticket.GuildID,
		TicketID: ticket.ID,
		ActorID:  claimerID,
		Payload:  events.TicketAssignedPayload{ModeratorID: claimerID, Reason: domain.AssignmentReasonClaim},
	})
	return ticket, nil
}

// TransferTicket hands a CLAIMED ticket to moderatorID, who must have a
// moderator profile in the guild.
func (s *TicketService) TransferTicket(ctx context.Context, ticketID int64, actorID, moderatorID string) (*domain.Ticket, error) {
	if strings.TrimSpace(moderatorID) == "" {
		return nil, apperrors.NewValidationError("moderator id is required", nil)
	}
	details := map[string]any{"ticket_id": ticketID, "moderator_id": moderatorID}
	current, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, mapStoreError(err, "ticket", details)
	}
	if current.ClaimedBy != nil && *current.ClaimedBy == moderatorID {
		return nil, apperrors.NewConflict("ticket already held by this moderator", details)
	}

	ticket, err := s.tickets.Transfer(ctx, repository.TransferParams{
		TicketID: ticketID,
		ActorID:  actorID,
		ModID:    moderatorID,
		At:       s.now(),
	})
	if err != nil {
		return nil, mapStoreError(err, "ticket", details)
	}

	s.grantAccess(ctx, ticket, moderatorID)
	s.logger.Info("ticket transferred",
		zap.Int64("ticket_id", ticket.ID),
		zap.String("actor_id", actorID),
		zap.String("moderator_id", moderatorID))
	s.publish(ctx, events.Event{
		Type:     events.EventTicketTransferred,
		GuildID:  ticket.GuildID,
		TicketID: ticket.ID,
		ActorID:  actorID,
		Payload: events.TicketAssignedPayload{
			ModeratorID: moderatorID,
			PreviousID:  current.ClaimedBy,
			Reason:      domain.AssignmentReasonManual,
		},
	})
	return ticket, nil
}

// CloseTicket closes an OPEN or CLAIMED ticket. Metrics tracking and channel
// deletion run afterwards on a best-effort basis and never undo the close.
func (s *TicketService) CloseTicket(ctx context.Context, ticketID int64, closerID string) (*domain.Ticket, error) {
	if strings.TrimSpace(closerID) == "" {
		return nil, apperrors.NewValidationError("closer id is required", nil)
	}
	ticket, err := s.tickets.Close(ctx, ticketID, closerID)
	if err != nil {
		return nil, mapStoreError(err, "ticket", map[string]any{"ticket_id": ticketID})
	}

	s.telemetry.RecordTransition(ctx, string(ticket.Status))
	s.logger.Info("ticket closed", zap.Int64("ticket_id", ticket.ID), zap.String("closer_id", closerID))

	s.trackResolution(ctx, ticket, closerID)
	s.scheduleChannelDelete(ticket)

	s.publish(ctx, events.Event{
		Type:     events.EventTicketClosed,
		GuildID:  ticket.GuildID,
		TicketID: ticket.ID,
		ActorID:  closerID,
		Payload: events.TicketClosedPayload{
			ClaimedBy:         ticket.ClaimedBy,
			ResolutionSeconds: ticket.ResolutionSeconds(),
		},
	})
	return ticket, nil
}

// ArchiveTicket moves a CLOSED ticket to ARCHIVED.
func (s *TicketService) ArchiveTicket(ctx context.Context, ticketID int64, actorID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.Archive(ctx, ticketID)
	if err != nil {
		return nil, mapStoreError(err, "ticket", map[string]any{"ticket_id": ticketID})
	}
	s.telemetry.RecordTransition(ctx, string(ticket.Status))
	s.publish(ctx, events.Event{
		Type:     events.EventTicketArchived,
		GuildID:  ticket.GuildID,
		TicketID: ticket.ID,
		ActorID:  actorID,
	})
	return ticket, nil
}

// GetTicket fetches a ticket by id.
func (s *TicketService) GetTicket(ctx context.Context, ticketID int64) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, mapStoreError(err, "ticket", map[string]any{"ticket_id": ticketID})
	}
	return ticket, nil
}

// GetTicketByChannel fetches the ticket bound to a chat channel.
func (s *TicketService) GetTicketByChannel(ctx context.Context, channelID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByChannel(ctx, channelID)
	if err != nil {
		return nil, mapStoreError(err, "ticket", map[string]any{"channel_id": channelID})
	}
	return ticket, nil
}

// GetOpenTicketByUser returns the user's OPEN or CLAIMED ticket in the guild,
// or nil when there is none.
func (s *TicketService) GetOpenTicketByUser(ctx context.Context, guildID, userID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetOpenByOwner(ctx, guildID, userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, mapStoreError(err, "ticket", nil)
	}
	return ticket, nil
}

// ListActiveTickets returns the guild's OPEN and CLAIMED tickets, oldest first.
func (s *TicketService) ListActiveTickets(ctx context.Context, guildID string) ([]domain.Ticket, error) {
	tickets, err := s.tickets.ListActive(ctx, guildID)
	if err != nil {
		return nil, mapStoreError(err, "tickets", map[string]any{"guild_id": guildID})
	}
	return tickets, nil
}

// ListEvents returns a ticket's event trail in insertion order.
func (s *TicketService) ListEvents(ctx context.Context, ticketID int64) ([]domain.TicketEvent, error) {
	if _, err := s.GetTicket(ctx, ticketID); err != nil {
		return nil, err
	}
	trail, err := s.events.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, mapStoreError(err, "ticket events", map[string]any{"ticket_id": ticketID})
	}
	return trail, nil
}

// trackResolution attributes the resolution to the closer when they are an
// enrolled moderator.
func (s *TicketService) trackResolution(ctx context.Context, ticket *domain.Ticket, closerID string) {
	if s.collector == nil {
		return
	}
	fields := []zap.Field{
		zap.Int64("ticket_id", ticket.ID),
		zap.String("guild_id", ticket.GuildID),
		zap.String("moderator_id", closerID),
	}
	if _, err := s.moderators.Get(ctx, ticket.GuildID, closerID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			s.logger.Debug("closer is not an enrolled moderator; skipping metrics", fields...)
		} else {
			s.logger.Error("error tracking metrics", append(fields, zap.Error(err))...)
		}
		return
	}
	if _, err := s.collector.TrackTicketResolution(ctx, closerID, ticket.GuildID, ticket.ResolutionSeconds()); err != nil {
		s.logger.Error("error tracking metrics", append(fields, zap.Error(err))...)
	}
}

func (s *TicketService) scheduleChannelDelete(ticket *domain.Ticket) {
	guildID, channelID := ticket.GuildID, ticket.ChannelID
	s.afterFunc(s.deleteDelay, func() {
		ctx, cancel := context.WithTimeout(context.Background(), sideEffectTimeout)
		defer cancel()
		if err := s.gateway.DeleteChannel(ctx, guildID, channelID); err != nil {
			s.logger.Warn("delete ticket channel",
				zap.String("guild_id", guildID),
				zap.String("channel_id", channelID),
				zap.Error(err))
		}
	})
}

func (s *TicketService) grantAccess(ctx context.Context, ticket *domain.Ticket, userID string) {
	if err := s.gateway.GrantChannelAccess(ctx, ticket.GuildID, ticket.ChannelID, userID); err != nil {
		s.logger.Warn("grant channel access",
			zap.Int64("ticket_id", ticket.ID),
			zap.String("channel_id", ticket.ChannelID),
			zap.String("user_id", userID),
			zap.Error(err))
	}
}

func (s *TicketService) publish(ctx context.Context, event events.Event) {
	publishEvent(ctx, s.dispatcher, s.now, event)
}

func trimmedOrNil(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

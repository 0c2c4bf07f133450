package service

import (
	"context"
	"strconv"

	"go.uber.org/zap"

	"github.com/spec-kit/modcenter/internal/domain"
	"github.com/spec-kit/modcenter/internal/events"
	"github.com/spec-kit/modcenter/internal/repository"
	apperrors "github.com/spec-kit/modcenter/pkg/util/errorutil"
)

// DefaultAuditPageSize bounds GetLogs when no limit is given.
const DefaultAuditPageSize = 50

const maxAuditPageSize = 200

// AuditLogger writes the append-only moderation audit log. Write failures are
// logged and never surface to the caller.
type AuditLogger struct {
	repo   repository.AuditRepository
	logger *zap.Logger
}

// NewAuditLogger creates the logger.
func NewAuditLogger(repo repository.AuditRepository, logger *zap.Logger) *AuditLogger {
	return &AuditLogger{repo: repo, logger: loggerOrNop(logger)}
}

// LogAction appends an entry.
func (a *AuditLogger) LogAction(ctx context.Context, guildID, actorID string, action domain.AuditAction, targetID *string, details map[string]any) {
	if a == nil {
		return
	}
	entry := &domain.AuditEntry{
		GuildID:  guildID,
		ActorID:  actorID,
		Action:   action,
		TargetID: targetID,
		Details:  details,
	}
	if err := a.repo.Create(ctx, entry); err != nil {
		a.logger.Error("failed to write audit log",
			zap.String("guild_id", guildID),
			zap.String("action", string(action)),
			zap.Error(err))
	}
}

// GetLogs returns the guild's entries, newest first.
func (a *AuditLogger) GetLogs(ctx context.Context, guildID string, limit, offset int) ([]domain.AuditEntry, error) {
	if limit <= 0 {
		limit = DefaultAuditPageSize
	}
	if limit > maxAuditPageSize {
		limit = maxAuditPageSize
	}
	if offset < 0 {
		return nil, apperrors.NewValidationError("offset must not be negative", nil)
	}
	entries, err := a.repo.List(ctx, guildID, limit, offset)
	if err != nil {
		return nil, mapStoreError(err, "audit logs", map[string]any{"guild_id": guildID})
	}
	return entries, nil
}

// RegisterHandlers subscribes the audit log to ticket lifecycle events.
func (a *AuditLogger) RegisterHandlers(dispatcher events.Dispatcher) {
	if dispatcher == nil {
		return
	}
	dispatcher.Subscribe(events.EventConfigUpdated, a.handle(domain.AuditTicketConfigUpdated))
	dispatcher.Subscribe(events.EventTicketCreated, a.handle(domain.AuditTicketCreated))
	dispatcher.Subscribe(events.EventTicketClaimed, a.handle(domain.AuditTicketClaimed))
	dispatcher.Subscribe(events.EventTicketAssigned, a.handle(domain.AuditTicketAutoAssigned))
	dispatcher.Subscribe(events.EventTicketTransferred, a.handle(domain.AuditTicketTransferred))
	dispatcher.Subscribe(events.EventTicketClosed, a.handle(domain.AuditTicketClosed))
	dispatcher.Subscribe(events.EventTicketArchived, a.handle(domain.AuditTicketArchived))
}

func (a *AuditLogger) handle(action domain.AuditAction) events.EventHandler {
	return func(ctx context.Context, event events.Event) error {
		var target *string
		if event.TicketID != 0 {
			id := strconv.FormatInt(event.TicketID, 10)
			target = &id
		}
		details := map[string]any{"event_id": event.ID}
		if event.Payload != nil {
			details["payload"] = event.Payload
		}
		a.LogAction(ctx, event.GuildID, event.ActorID, action, target, details)
		return nil
	}
}

package platform

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// LogGateway records side effects in the log only. It backs local runs
// without a bot gateway.
type LogGateway struct {
	logger *zap.Logger
}

// NewLogGateway builds a LogGateway.
func NewLogGateway(logger *zap.Logger) *LogGateway {
	return &LogGateway{logger: logger}
}

func (g *LogGateway) CreatePrivateChannel(_ context.Context, spec ChannelSpec) (string, error) {
	channelID := "local-" + uuid.NewString()
	g.logger.Info("create private channel",
		zap.String("guild_id", spec.GuildID),
		zap.String("name", spec.Name),
		zap.String("owner_id", spec.OwnerID),
		zap.String("channel_id", channelID))
	return channelID, nil
}

func (g *LogGateway) GrantChannelAccess(_ context.Context, guildID, channelID, userID string) error {
	g.logger.Info("grant channel access",
		zap.String("guild_id", guildID),
		zap.String("channel_id", channelID),
		zap.String("user_id", userID))
	return nil
}

func (g *LogGateway) DeleteChannel(_ context.Context, guildID, channelID string) error {
	g.logger.Info("delete channel", zap.String("guild_id", guildID), zap.String("channel_id", channelID))
	return nil
}

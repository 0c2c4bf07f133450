// Package platform is the narrow boundary to the chat-platform bot gateway:
// private ticket channels and per-user access grants.
package platform

import (
	"context"
	"regexp"
	"strings"
)

// ChannelSpec describes a private ticket channel. Only the owner, the support
// role and the bot may see it.
type ChannelSpec struct {
	GuildID       string `json:"guild_id"`
	Name          string `json:"name"`
	ParentID      string `json:"parent_id,omitempty"`
	OwnerID       string `json:"owner_id"`
	SupportRoleID string `json:"support_role_id"`
	BotUserID     string `json:"bot_user_id,omitempty"`
	Topic         string `json:"topic,omitempty"`
}

// Gateway performs chat-platform side effects.
type Gateway interface {
	CreatePrivateChannel(ctx context.Context, spec ChannelSpec) (string, error)
	GrantChannelAccess(ctx context.Context, guildID, channelID, userID string) error
	DeleteChannel(ctx context.Context, guildID, channelID string) error
}

const maxChannelName = 32

var channelNameStrip = regexp.MustCompile(`[^a-z0-9-]`)

// ChannelName builds "<category>-<username>" lowercased, restricted to
// [a-z0-9-] and capped at 32 characters.
func ChannelName(category, username string) string {
	name := channelNameStrip.ReplaceAllString(strings.ToLower(category+"-"+username), "")
	if len(name) > maxChannelName {
		name = name[:maxChannelName]
	}
	return name
}

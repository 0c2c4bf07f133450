package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/spec-kit/modcenter/internal/platform"
)

// Grant is one recorded GrantChannelAccess call.
type Grant struct {
	GuildID   string
	ChannelID string
	UserID    string
}

// Gateway records platform calls and can be told to fail them.
type Gateway struct {
	mu sync.Mutex

	CreateErr error
	GrantErr  error
	DeleteErr error

	Created []platform.ChannelSpec
	Grants  []Grant
	Deleted []string

	next int
}

var _ platform.Gateway = (*Gateway)(nil)

// CreatePrivateChannel records spec and returns "chan-<n>".
func (g *Gateway) CreatePrivateChannel(_ context.Context, spec platform.ChannelSpec) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.CreateErr != nil {
		return "", g.CreateErr
	}
	g.next++
	g.Created = append(g.Created, spec)
	return fmt.Sprintf("chan-%d", g.next), nil
}

// GrantChannelAccess records the grant.
func (g *Gateway) GrantChannelAccess(_ context.Context, guildID, channelID, userID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.GrantErr != nil {
		return g.GrantErr
	}
	g.Grants = append(g.Grants, Grant{GuildID: guildID, ChannelID: channelID, UserID: userID})
	return nil
}

// DeleteChannel records the channel id.
func (g *Gateway) DeleteChannel(_ context.Context, _ string, channelID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.DeleteErr != nil {
		return g.DeleteErr
	}
	g.Deleted = append(g.Deleted, channelID)
	return nil
}

// DeletedChannels returns a snapshot of deleted channel ids.
func (g *Gateway) DeletedChannels() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.Deleted...)
}

// GrantsSnapshot returns a snapshot of recorded grants.
func (g *Gateway) GrantsSnapshot() []Grant {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]Grant(nil), g.Grants...)
}

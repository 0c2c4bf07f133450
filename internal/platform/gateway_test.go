package platform

import (
	"context"
	"net"
	"sync"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/modcenter/internal/config"
)

func TestChannelName(t *testing.T) {
	cases := map[string]struct {
		category, username, want string
	}{
		"lowercases":      {"Support", "Alice", "support-alice"},
		"strips symbols":  {"Bug Report", "bob_the.builder!", "bugreport-bobthebuilder"},
		"keeps dashes":    {"billing", "x-y-z", "billing-x-y-z"},
		"caps at 32":      {"appeals", "averyveryverylongusername12345", "appeals-averyveryverylongusernam"},
		"drops non-ascii": {"général", "Zoë", "gnral-zo"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			got := ChannelName(tc.category, tc.username)
			assert.Equal(t, tc.want, got)
			assert.LessOrEqual(t, len(got), 32)
		})
	}
}

type gatewayServer struct {
	mu       sync.Mutex
	auth     []string
	channels []ChannelSpec
	grants   []string
	deleted  []string
}

func startGatewayServer(t *testing.T, srv *gatewayServer) string {
	t.Helper()
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Post("/guilds/:guild/channels", func(c *fiber.Ctx) error {
		var spec ChannelSpec
		if err := c.BodyParser(&spec); err != nil {
			return fiber.ErrBadRequest
		}
		srv.mu.Lock()
		srv.auth = append(srv.auth, c.Get(fiber.HeaderAuthorization))
		srv.channels = append(srv.channels, spec)
		srv.mu.Unlock()
		if spec.Name == "reject" {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "missing permissions"})
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"id": "chan-" + c.Params("guild")})
	})
	app.Post("/guilds/:guild/channels/:channel/permissions", func(c *fiber.Ctx) error {
		var req grantAccessRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.ErrBadRequest
		}
		srv.mu.Lock()
		srv.grants = append(srv.grants, c.Params("channel")+":"+req.UserID)
		srv.mu.Unlock()
		return c.SendStatus(fiber.StatusNoContent)
	})
	app.Delete("/guilds/:guild/channels/:channel", func(c *fiber.Ctx) error {
		srv.mu.Lock()
		srv.deleted = append(srv.deleted, c.Params("channel"))
		srv.mu.Unlock()
		return c.SendStatus(fiber.StatusNoContent)
	})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = app.Listener(ln) }()
	t.Cleanup(func() { _ = app.Shutdown() })
	return "http://" + ln.Addr().String()
}

func TestHTTPGateway(t *testing.T) {
	srv := &gatewayServer{}
	base := startGatewayServer(t, srv)
	gw := NewHTTPGateway(config.PlatformConfig{GatewayURL: base + "/", GatewayToken: "tok", TimeoutSeconds: 2}, zap.NewNop())
	ctx := context.Background()

	id, err := gw.CreatePrivateChannel(ctx, ChannelSpec{GuildID: "g1", Name: "support-alice", OwnerID: "u1", SupportRoleID: "r1"})
	require.NoError(t, err)
	assert.Equal(t, "chan-g1", id)

	require.NoError(t, gw.GrantChannelAccess(ctx, "g1", id, "mod-1"))
	require.NoError(t, gw.DeleteChannel(ctx, "g1", id))

	_, err = gw.CreatePrivateChannel(ctx, ChannelSpec{GuildID: "g1", Name: "reject"})
	assert.ErrorContains(t, err, "status 403")

	srv.mu.Lock()
	defer srv.mu.Unlock()
	require.Len(t, srv.channels, 2)
	assert.Equal(t, "r1", srv.channels[0].SupportRoleID)
	assert.Equal(t, "Bearer tok", srv.auth[0])
	assert.Equal(t, []string{"chan-g1:mod-1"}, srv.grants)
	assert.Equal(t, []string{"chan-g1"}, srv.deleted)
}

func TestHTTPGatewayCanceledContext(t *testing.T) {
	gw := NewHTTPGateway(config.PlatformConfig{GatewayURL: "http://127.0.0.1:1"}, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, gw.DeleteChannel(ctx, "g", "c"), context.Canceled)
}

func TestNewFallsBackToLogGateway(t *testing.T) {
	gw := New(config.PlatformConfig{}, zap.NewNop())
	require.IsType(t, &LogGateway{}, gw)

	id, err := gw.CreatePrivateChannel(context.Background(), ChannelSpec{GuildID: "g", Name: "n"})
	require.NoError(t, err)
	assert.Contains(t, id, "local-")
	assert.NoError(t, gw.GrantChannelAccess(context.Background(), "g", id, "u"))
	assert.NoError(t, gw.DeleteChannel(context.Background(), "g", id))
}

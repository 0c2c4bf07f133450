package platform

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/modcenter/internal/config"
)

// HTTPGateway calls the bot gateway's REST surface with fiber's client agent.
type HTTPGateway struct {
	baseURL string
	token   string
	timeout time.Duration
	logger  *zap.Logger
}

// NewHTTPGateway builds a gateway client for cfg.GatewayURL.
func NewHTTPGateway(cfg config.PlatformConfig, logger *zap.Logger) *HTTPGateway {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPGateway{
		baseURL: strings.TrimRight(cfg.GatewayURL, "/"),
		token:   cfg.GatewayToken,
		timeout: timeout,
		logger:  logger,
	}
}

// New returns the HTTP gateway when a URL is configured and the logging
// gateway otherwise.
func New(cfg config.PlatformConfig, logger *zap.Logger) Gateway {
	if cfg.GatewayURL == "" {
		logger.Warn("PLATFORM_GATEWAY_URL not provided; chat-platform side effects are only logged")
		return NewLogGateway(logger)
	}
	return NewHTTPGateway(cfg, logger)
}

type createChannelResponse struct {
	ID string `json:"id"`
}

type grantAccessRequest struct {
	UserID string `json:"user_id"`
}

func (g *HTTPGateway) CreatePrivateChannel(ctx context.Context, spec ChannelSpec) (string, error) {
	body, err := g.do(ctx, fiber.Post(g.url("guilds", spec.GuildID, "channels")).JSON(spec))
	if err != nil {
		return "", fmt.Errorf("create channel: %w", err)
	}
	var resp createChannelResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("create channel: decode response: %w", err)
	}
	if resp.ID == "" {
		return "", errors.New("create channel: gateway returned no channel id")
	}
	return resp.ID, nil
}

func (g *HTTPGateway) GrantChannelAccess(ctx context.Context, guildID, channelID, userID string) error {
	agent := fiber.Post(g.url("guilds", guildID, "channels", channelID, "permissions")).
		JSON(grantAccessRequest{UserID: userID})
	if _, err := g.do(ctx, agent); err != nil {
		return fmt.Errorf("grant channel access: %w", err)
	}
	return nil
}

func (g *HTTPGateway) DeleteChannel(ctx context.Context, guildID, channelID string) error {
	if _, err := g.do(ctx, fiber.Delete(g.url("guilds", guildID, "channels", channelID))); err != nil {
		return fmt.Errorf("delete channel: %w", err)
	}
	return nil
}

func (g *HTTPGateway) url(parts ...string) string {
	escaped := make([]string, len(parts))
	for i, p := range parts {
		escaped[i] = url.PathEscape(p)
	}
	return g.baseURL + "/" + strings.Join(escaped, "/")
}

func (g *HTTPGateway) do(ctx context.Context, agent *fiber.Agent) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		fiber.ReleaseAgent(agent)
		return nil, err
	}
	timeout := g.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}
	if g.token != "" {
		agent.Set(fiber.HeaderAuthorization, "Bearer "+g.token)
	}
	code, body, errs := agent.Timeout(timeout).Bytes()
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	if code < 200 || code >= 300 {
		g.logger.Warn("platform gateway rejected request", zap.Int("status", code), zap.ByteString("body", body))
		return nil, fmt.Errorf("gateway returned status %d", code)
	}
	return body, nil
}

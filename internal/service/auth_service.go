package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/modcenter/internal/auth"
	"github.com/spec-kit/modcenter/internal/config"
	apperrors "github.com/spec-kit/modcenter/pkg/util/errorutil"
)

// IssuedToken is a signed access token for an API client.
type IssuedToken struct {
	AccessToken string
	ExpiresAt   time.Time
	Role        auth.Role
}

type registeredClient struct {
	secretHash string
	role       auth.Role
}

// AuthService exchanges client credentials for access tokens.
type AuthService struct {
	clients  map[string]registeredClient
	tokenMgr *auth.TokenManager
	logger   *zap.Logger
}

// NewAuthService builds the service from the configured clients. Clients with
// an unknown role or no secret hash are skipped.
func NewAuthService(cfg config.AuthConfig, tokens *auth.TokenManager, logger *zap.Logger) *AuthService {
	logger = loggerOrNop(logger)
	clients := make(map[string]registeredClient, len(cfg.Clients))
	for _, c := range cfg.Clients {
		role, err := auth.ParseRole(c.Role)
		if err != nil || c.SecretHash == "" {
			logger.Warn("skip api client", zap.String("client_id", c.ID), zap.String("role", c.Role))
			continue
		}
		clients[c.ID] = registeredClient{secretHash: c.SecretHash, role: role}
	}
	return &AuthService{clients: clients, tokenMgr: tokens, logger: logger}
}

// IssueToken verifies the client secret and signs a token carrying its role.
func (s *AuthService) IssueToken(_ context.Context, clientID, secret string) (*IssuedToken, error) {
	clientID = strings.TrimSpace(clientID)
	if clientID == "" || secret == "" {
		return nil, apperrors.NewValidationError("client_id and client_secret are required", nil)
	}
	client, ok := s.clients[clientID]
	if !ok {
		return nil, apperrors.NewUnauthorized("invalid client credentials")
	}
	if err := auth.CompareSecret(client.secretHash, secret); err != nil {
		s.logger.Info("rejected client credentials", zap.String("client_id", clientID))
		return nil, apperrors.NewUnauthorized("invalid client credentials")
	}
	token, exp, err := s.tokenMgr.GenerateToken(clientID, client.role)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return &IssuedToken{AccessToken: token, ExpiresAt: exp, Role: client.role}, nil
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}

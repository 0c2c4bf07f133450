package dto

import (
	"time"

	"github.com/spec-kit/modcenter/internal/domain"
)

// AddModeratorRequest payload.
type AddModeratorRequest struct {
	ActorID string `json:"actor_id"`
	UserID  string `json:"user_id"`
}

// ModeratorStatusRequest payload.
type ModeratorStatusRequest struct {
	ActorID string `json:"actor_id"`
	Status  string `json:"status"`
}

// OptOutRequest payload.
type OptOutRequest struct {
	ActorID  string `json:"actor_id"`
	OptedOut bool   `json:"opted_out"`
}

// ResolutionRequest reports a resolved ticket for metrics.
type ResolutionRequest struct {
	DurationSeconds int64 `json:"duration_seconds"`
}

// ModeratorResponse renders a moderator profile.
type ModeratorResponse struct {
	GuildID      string           `json:"guild_id"`
	UserID       string           `json:"user_id"`
	Status       domain.ModStatus `json:"status"`
	OptedOut     bool             `json:"opted_out"`
	BurnoutScore int              `json:"burnout_score"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// StatsResponse renders rolling moderator statistics.
type StatsResponse struct {
	TicketsResolved int     `json:"tickets_resolved"`
	AvgResponseTime float64 `json:"avg_response_time"`
	ReopenRate      float64 `json:"reopen_rate"`
	ActiveTickets   int     `json:"active_tickets"`
}

// ReputationResponse renders a reputation score.
type ReputationResponse struct {
	Total          int     `json:"total"`
	Consistency    float64 `json:"consistency"`
	Reliability    float64 `json:"reliability"`
	Sustainability float64 `json:"sustainability"`
	Responsiveness float64 `json:"responsiveness"`
}

// LeaderboardEntryResponse is one ranked moderator.
type LeaderboardEntryResponse struct {
	Rank       int                `json:"rank"`
	UserID     string             `json:"user_id"`
	Status     domain.ModStatus   `json:"status"`
	Reputation ReputationResponse `json:"reputation"`
}

// BurnoutResponse reports a classification.
type BurnoutResponse struct {
	Level domain.BurnoutLevel `json:"level"`
}

// DashboardResponse renders a guild snapshot.
type DashboardResponse struct {
	GuildID             string              `json:"guild_id"`
	ActiveTickets       int                 `json:"active_tickets"`
	ModeratorsAvailable int                 `json:"moderators_available"`
	ModeratorsTotal     int                 `json:"moderators_total"`
	BurnoutRisk         domain.BurnoutLevel `json:"burnout_risk"`
	AvgResponseSeconds  float64             `json:"avg_response_seconds"`
}

// AuditEntryResponse renders an audit row.
type AuditEntryResponse struct {
	ID        int64              `json:"id"`
	ActorID   string             `json:"actor_id"`
	Action    domain.AuditAction `json:"action"`
	TargetID  *string            `json:"target_id"`
	Details   map[string]any     `json:"details,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
}

// NewModeratorResponse maps a profile.
func NewModeratorResponse(p *domain.ModeratorProfile) ModeratorResponse {
	return ModeratorResponse{
		GuildID:      p.GuildID,
		UserID:       p.UserID,
		Status:       p.Status,
		OptedOut:     p.OptedOut,
		BurnoutScore: p.BurnoutScore,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
}

// NewStatsResponse maps stats.
func NewStatsResponse(s domain.ModeratorStats) StatsResponse {
	return StatsResponse{
		TicketsResolved: s.TicketsResolved,
		AvgResponseTime: s.AvgResponseTime,
		ReopenRate:      s.ReopenRate,
		ActiveTickets:   s.ActiveTickets,
	}
}

// NewReputationResponse maps a score.
func NewReputationResponse(r domain.ReputationScore) ReputationResponse {
	return ReputationResponse{
		Total:          r.Total,
		Consistency:    r.Consistency,
		Reliability:    r.Reliability,
		Sustainability: r.Sustainability,
		Responsiveness: r.Responsiveness,
	}
}

// NewDashboardResponse maps a snapshot.
func NewDashboardResponse(s *domain.DashboardSnapshot) DashboardResponse {
	return DashboardResponse{
		GuildID:             s.GuildID,
		ActiveTickets:       s.ActiveTickets,
		ModeratorsAvailable: s.ModeratorsAvailable,
		ModeratorsTotal:     s.ModeratorsTotal,
		BurnoutRisk:         s.BurnoutRisk,
		AvgResponseSeconds:  s.AvgResponseSeconds,
	}
}

// NewAuditEntryResponse maps an audit row.
func NewAuditEntryResponse(e domain.AuditEntry) AuditEntryResponse {
	return AuditEntryResponse{
		ID:        e.ID,
		ActorID:   e.ActorID,
		Action:    e.Action,
		TargetID:  e.TargetID,
		Details:   e.Details,
		CreatedAt: e.CreatedAt,
	}
}

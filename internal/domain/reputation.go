package domain

import "fmt"

// BurnoutLevel classifies a burnout score.
type BurnoutLevel string

const (
	BurnoutLow    BurnoutLevel = "LOW"
	BurnoutMedium BurnoutLevel = "MEDIUM"
	BurnoutHigh   BurnoutLevel = "HIGH"
)

// ParseBurnoutLevel converts a stored value into a BurnoutLevel.
func ParseBurnoutLevel(v string) (BurnoutLevel, error) {
	switch l := BurnoutLevel(v); l {
	case BurnoutLow, BurnoutMedium, BurnoutHigh:
		return l, nil
	}
	return "", fmt.Errorf("%w: burnout level %q", ErrUnknownEnum, v)
}

// ModeratorStats are rolling statistics over a window of daily metrics.
type ModeratorStats struct {
	TicketsResolved int
	// AvgResponseTime is in seconds.
	AvgResponseTime float64
	// ReopenRate is a 0-1 fraction.
	ReopenRate    float64
	ActiveTickets int
}

// ReputationScore is derived on demand and never persisted.
type ReputationScore struct {
	Total          int
	Consistency    float64
	Reliability    float64
	Sustainability float64
	Responsiveness float64
}

// LeaderboardEntry pairs a moderator with its computed reputation.
type LeaderboardEntry struct {
	UserID     string
	Status     ModStatus
	Reputation ReputationScore
}

// DashboardSnapshot summarizes a guild's moderation workload.
type DashboardSnapshot struct {
	GuildID             string
	ActiveTickets       int
	ModeratorsAvailable int
	ModeratorsTotal     int
	BurnoutRisk         BurnoutLevel
	AvgResponseSeconds  float64
}

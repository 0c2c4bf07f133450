package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// BurnoutThresholds are the rules used to score a moderator's day.
type BurnoutThresholds struct {
	MaxTicketsDaily    int `yaml:"max_tickets_daily"`
	MaxResponseSeconds int `yaml:"max_response_seconds"`
	MaxReopensDaily    int `yaml:"max_reopens_daily"`
	TicketsWeight      int `yaml:"tickets_weight"`
	ResponseWeight     int `yaml:"response_weight"`
	ReopenWeight       int `yaml:"reopen_weight"`
	HighAbove          int `yaml:"high_above"`
	MediumAbove        int `yaml:"medium_above"`
	AssignmentCutoff   int `yaml:"assignment_cutoff"`
}

// BurnoutConfig holds the default thresholds and per-guild overrides.
type BurnoutConfig struct {
	Defaults       BurnoutThresholds
	GuildOverrides map[string]BurnoutThresholds
}

// DefaultBurnoutThresholds returns the built-in rule set.
func DefaultBurnoutThresholds() BurnoutThresholds {
	return BurnoutThresholds{
		MaxTicketsDaily:    15,
		MaxResponseSeconds: 600,
		MaxReopensDaily:    2,
		TicketsWeight:      50,
		ResponseWeight:     30,
		ReopenWeight:       20,
		HighAbove:          70,
		MediumAbove:        30,
		AssignmentCutoff:   70,
	}
}

// DefaultBurnoutConfig returns a config with no guild overrides.
func DefaultBurnoutConfig() BurnoutConfig {
	return BurnoutConfig{Defaults: DefaultBurnoutThresholds()}
}

// ForGuild returns the thresholds that apply to guildID.
func (c BurnoutConfig) ForGuild(guildID string) BurnoutThresholds {
	if o, ok := c.GuildOverrides[guildID]; ok {
		return o
	}
	return c.Defaults
}

// LoadBurnoutOverrides parses a YAML file of per-guild thresholds. Fields left
// out of a guild entry keep their value from defaults.
func LoadBurnoutOverrides(path string, defaults BurnoutThresholds) (map[string]BurnoutThresholds, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read burnout overrides: %w", err)
	}
	return ParseBurnoutOverrides(content, defaults)
}

// ParseBurnoutOverrides decodes override YAML content on top of defaults.
func ParseBurnoutOverrides(content []byte, defaults BurnoutThresholds) (map[string]BurnoutThresholds, error) {
	var raw struct {
		Guilds map[string]yaml.Node `yaml:"guilds"`
	}
	if err := yaml.Unmarshal(content, &raw); err != nil {
		return nil, fmt.Errorf("parse burnout overrides: %w", err)
	}
	result := make(map[string]BurnoutThresholds, len(raw.Guilds))
	for guildID, node := range raw.Guilds {
		thresholds := defaults
		if err := node.Decode(&thresholds); err != nil {
			return nil, fmt.Errorf("parse burnout overrides for guild %s: %w", guildID, err)
		}
		result[guildID] = thresholds
	}
	return result, nil
}

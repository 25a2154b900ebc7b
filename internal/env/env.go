// Package env builds the bot configuration from the process environment.
//
// A .env file in the working directory is loaded first when present; values
// already set in the environment win over the file.
package env

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config is constructed once in main and handed to the components that need it.
type Config struct {
	DiscordToken string `envconfig:"DISCORD_TOKEN" required:"true"`
	// GuildID scopes command registration; empty registers globally.
	GuildID string `envconfig:"GUILD_ID"`

	DBPath   string `envconfig:"DB_PATH" default:"./data/tsgsbot.db"`
	Timezone string `envconfig:"TIMEZONE" default:"UTC"`

	SessionTTL           time.Duration `envconfig:"SESSION_TTL" default:"30m"`
	SessionSweepInterval time.Duration `envconfig:"SESSION_SWEEP_INTERVAL" default:"5m"`

	// HTTPPort serves /status, /metrics and /ws. Zero disables the server.
	HTTPPort int `envconfig:"HTTP_PORT" default:"8080"`

	InviteURL          string `envconfig:"INVITE_URL" default:"https://discord.gg/Cddu5aJ"`
	ReportsChannelID   string `envconfig:"REPORTS_CHANNEL_ID"`
	SupporterRoleID    string `envconfig:"SUPPORTER_ROLE_ID"`
	VerifyCode         string `envconfig:"VERIFY_CODE"`
	GiveawayPingRoleID string `envconfig:"GIVEAWAY_PING_ROLE_ID"`
	// AuditChannelID receives a copy of every command audit line when set.
	AuditChannelID   string  `envconfig:"AUDIT_CHANNEL_ID"`
	ReactionPageRate float64 `envconfig:"REACTION_PAGE_RATE" default:"2"`

	DebugMode bool   `envconfig:"DEBUG_MODE" default:"false"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`

	// StartedAt is set by Load and reported by /status.
	StartedAt time.Time `ignored:"true"`

	location *time.Location
}

var loadDotEnv = func() error {
	if _, err := os.Stat(".env"); err != nil {
		return nil
	}
	return godotenv.Load()
}

// Load reads .env (if any) and the environment into a validated Config.
func Load() (*Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	cfg.StartedAt = time.Now()
	return &cfg, nil
}

// Validate checks ranges and resolves the time zone.
func (c *Config) Validate() error {
	if c.DiscordToken == "" {
		return fmt.Errorf("DISCORD_TOKEN cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be > 0")
	}
	if c.SessionSweepInterval <= 0 {
		return fmt.Errorf("SESSION_SWEEP_INTERVAL must be > 0")
	}
	if c.HTTPPort < 0 || c.HTTPPort > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 0 and 65535")
	}
	if c.ReactionPageRate <= 0 {
		return fmt.Errorf("REACTION_PAGE_RATE must be > 0")
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return fmt.Errorf("unknown TIMEZONE %q: %w", c.Timezone, err)
	}
	c.location = loc
	return nil
}

// Location returns the zone used to interpret user-entered dates.
func (c *Config) Location() *time.Location {
	if c.location == nil {
		return time.UTC
	}
	return c.location
}

// Debug reports whether verbose logging was requested.
func (c *Config) Debug() bool {
	return c.DebugMode || c.LogLevel == "debug"
}

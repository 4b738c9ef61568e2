package config

import (
	"context"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/shikidmsh-rgb/mochibot/pkg/log"
)

type AppConfig struct {
	RuntimePath string `env:"MOCHI_RUNTIME_PATH" envDefault:".mochibot"`

	// Transport
	EnableTelegram bool `env:"ENABLE_TELEGRAM" envDefault:"true"`

	// Owner (0 = auto-detect on first inbound message)
	OwnerID int64 `env:"OWNER_USER_ID" envDefault:"0"`

	// Context Management
	ContextWindowSize int `env:"CONTEXT_WINDOW_SIZE" envDefault:"20"`

	// All time-of-day computations use this fixed local offset.
	TimezoneOffsetHours int `env:"TIMEZONE_OFFSET_HOURS" envDefault:"0"`
}

func NewAppConfig(ctx context.Context) *AppConfig {
	c := &AppConfig{}
	if err := env.Parse(c); err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse App config")
	}
	return c
}

func (c AppConfig) GetDatabasePath() string {
	return filepath.Join(resolveRuntimePath(c.RuntimePath), "mochibot.db")
}

func (c AppConfig) GetPromptsPath() string {
	return filepath.Join(resolveRuntimePath(c.RuntimePath), "prompts")
}

func (c AppConfig) Location() *time.Location {
	return time.FixedZone("local", c.TimezoneOffsetHours*3600)
}

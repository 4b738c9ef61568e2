package config

import (
	"context"

	"github.com/caarlos0/env/v11"
	"github.com/shikidmsh-rgb/mochibot/pkg/log"
)

type MemoryConfig struct {
	// Layer-1 budget audited nightly; content is never rewritten here.
	CoreMemoryMaxTokens int `env:"CORE_MEMORY_MAX_TOKENS" envDefault:"800"`
	// Below this many total items, deduplication is skipped entirely.
	DedupMinItems int `env:"MEMORY_DEDUP_MIN_ITEMS" envDefault:"5"`
	// Local hour at which nightly maintenance runs.
	MaintenanceHour int `env:"MAINTENANCE_HOUR" envDefault:"3"`
}

func NewMemoryConfig(ctx context.Context) *MemoryConfig {
	c := &MemoryConfig{}
	if err := env.Parse(c); err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse Memory config")
	}
	return c
}

package config

import (
	"context"

	"github.com/caarlos0/env/v11"
	"github.com/shikidmsh-rgb/mochibot/pkg/log"
)

// HeartbeatConfig tunes the observe/think/act loop. Report hours of -1
// disable the scheduled report.
type HeartbeatConfig struct {
	IntervalMinutes          int `env:"HEARTBEAT_INTERVAL_MINUTES" envDefault:"20"`
	AwakeHourStart           int `env:"AWAKE_HOUR_START" envDefault:"7"`
	AwakeHourEnd             int `env:"AWAKE_HOUR_END" envDefault:"23"`
	ForceSleepHour           int `env:"FORCE_SLEEP_HOUR" envDefault:"1"`
	ForceWakeHour            int `env:"FORCE_WAKE_HOUR" envDefault:"8"`
	MaxDailyProactive        int `env:"MAX_DAILY_PROACTIVE" envDefault:"10"`
	ProactiveCooldownSeconds int `env:"PROACTIVE_COOLDOWN_SECONDS" envDefault:"1800"`
	ThinkFallbackMinutes     int `env:"THINK_FALLBACK_MINUTES" envDefault:"60"`
	MorningReportHour        int `env:"MORNING_REPORT_HOUR" envDefault:"-1"`
	EveningReportHour        int `env:"EVENING_REPORT_HOUR" envDefault:"-1"`
}

func NewHeartbeatConfig(ctx context.Context) *HeartbeatConfig {
	c := &HeartbeatConfig{}
	if err := env.Parse(c); err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse Heartbeat config")
	}
	return c
}

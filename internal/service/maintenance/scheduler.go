package maintenance

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/shikidmsh-rgb/mochibot/internal/config"
	"github.com/shikidmsh-rgb/mochibot/internal/service/memory"
	"github.com/shikidmsh-rgb/mochibot/internal/service/state"
	"github.com/shikidmsh-rgb/mochibot/pkg/log"
)

// Scheduler runs the nightly memory maintenance at the configured local
// hour and hands the one-line summary to the heartbeat via the runtime
// mailbox.
type Scheduler struct {
	cfg     *config.MemoryConfig
	engine  *memory.Engine
	runtime *state.Runtime
	loc     *time.Location
	cron    *cron.Cron
}

func NewScheduler(cfg *config.MemoryConfig, engine *memory.Engine, runtime *state.Runtime, loc *time.Location) *Scheduler {
	return &Scheduler{
		cfg:     cfg,
		engine:  engine,
		runtime: runtime,
		loc:     loc,
	}
}

// Start registers the nightly job. Implements srv.Service.
func (s *Scheduler) Start(ctx context.Context) error {
	logger := log.FromCtx(ctx)

	s.cron = cron.New(cron.WithLocation(s.loc))
	spec := fmt.Sprintf("0 %d * * *", s.cfg.MaintenanceHour)
	if _, err := s.cron.AddFunc(spec, func() { s.run(ctx) }); err != nil {
		return fmt.Errorf("register maintenance job: %w", err)
	}
	s.cron.Start()

	logger.Info().Int("hour", s.cfg.MaintenanceHour).Msg("maintenance scheduler started")
	return nil
}

func (s *Scheduler) Shutdown(ctx context.Context) error {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
	return nil
}

func (s *Scheduler) run(ctx context.Context) {
	logger := log.FromCtx(ctx)

	ownerID := s.runtime.OwnerID()
	if ownerID == 0 {
		logger.Debug().Msg("no owner set yet, maintenance skipped")
		return
	}

	result := s.engine.RunMaintenance(ctx, ownerID)
	s.runtime.SetMaintenanceSummary(Summarize(result))
}

// Summarize renders the maintenance result as the single line the
// heartbeat surfaces to the owner.
func Summarize(r memory.MaintenanceResult) string {
	core := r.CoreAudit.Status
	if core == "" {
		core = "unknown"
	}
	return fmt.Sprintf(
		"Nightly maintenance: extracted %d memories, merged %d duplicates, core memory %s.",
		r.Extracted, r.Deduplicated, core,
	)
}

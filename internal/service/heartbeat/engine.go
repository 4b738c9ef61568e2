package heartbeat

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shikidmsh-rgb/mochibot/internal/config"
	"github.com/shikidmsh-rgb/mochibot/internal/core"
	"github.com/shikidmsh-rgb/mochibot/internal/service/observer"
	"github.com/shikidmsh-rgb/mochibot/internal/service/state"
	"github.com/shikidmsh-rgb/mochibot/pkg/log"
)

type State string

const (
	StateSleeping State = "SLEEPING"
	StateAwake    State = "AWAKE"
)

// Stats is a read-only snapshot of the engine for status reporting.
type Stats struct {
	State          State     `json:"state"`
	StateChangedAt time.Time `json:"state_changed_at"`
	LastThinkAt    time.Time `json:"last_think_at"`
	ProactiveToday int       `json:"proactive_today"`
	ProactiveLimit int       `json:"proactive_limit"`
}

// Engine is the observe → think → act loop. All loop state lives here and
// is mutated only from the tick path; the mutex exists for ForceWake and
// the Stats accessor, which other goroutines call.
type Engine struct {
	cfg *config.HeartbeatConfig

	messages  core.MessagesRepository
	todos     core.TodosRepository
	reminders core.RemindersRepository
	memory    core.MemoryRepository
	hbLog     core.HeartbeatLogRepository
	usage     core.UsageRepository

	collectors *observer.Registry
	ai         core.AIProvider
	prompts    core.Prompts
	sender     core.Sender
	runtime    *state.Runtime

	now func() time.Time

	mu                sync.Mutex
	state             State
	stateChangedAt    time.Time
	lastThinkAt       time.Time
	lastProactiveAt   time.Time
	proactiveToday    int
	proactiveDate     string
	morningReportDate string
	eveningReportDate string

	stopOnce sync.Once
	stop     chan struct{}
}

type Deps struct {
	Messages  core.MessagesRepository
	Todos     core.TodosRepository
	Reminders core.RemindersRepository
	Memory    core.MemoryRepository
	HBLog     core.HeartbeatLogRepository
	Usage     core.UsageRepository

	Collectors *observer.Registry
	AI         core.AIProvider
	Prompts    core.Prompts
	Sender     core.Sender
	Runtime    *state.Runtime
}

func NewEngine(cfg *config.HeartbeatConfig, deps Deps, loc *time.Location) *Engine {
	e := &Engine{
		cfg:        cfg,
		messages:   deps.Messages,
		todos:      deps.Todos,
		reminders:  deps.Reminders,
		memory:     deps.Memory,
		hbLog:      deps.HBLog,
		usage:      deps.Usage,
		collectors: deps.Collectors,
		ai:         deps.AI,
		prompts:    deps.Prompts,
		sender:     deps.Sender,
		runtime:    deps.Runtime,
		now:        func() time.Time { return time.Now().In(loc) },
		stop:       make(chan struct{}),
	}
	e.state = initialState(e.now().Hour(), cfg.AwakeHourStart, cfg.AwakeHourEnd)
	e.stateChangedAt = e.now()
	return e
}

func initialState(hour, awakeStart, awakeEnd int) State {
	if awakeStart <= hour && hour < awakeEnd {
		return StateAwake
	}
	return StateSleeping
}

// Start runs the tick loop until shutdown. Implements srv.Service.
func (e *Engine) Start(ctx context.Context) error {
	logger := log.FromCtx(ctx)
	interval := time.Duration(e.cfg.IntervalMinutes) * time.Minute

	logger.Info().
		Int("interval_minutes", e.cfg.IntervalMinutes).
		Int("awake_start", e.cfg.AwakeHourStart).
		Int("awake_end", e.cfg.AwakeHourEnd).
		Str("state", string(e.State())).
		Msg("heartbeat started")

	for {
		e.tick(ctx)

		select {
		case <-ctx.Done():
			return nil
		case <-e.stop:
			return nil
		case <-time.After(interval):
		}
	}
}

func (e *Engine) Shutdown(ctx context.Context) error {
	e.stopOnce.Do(func() { close(e.stop) })
	return nil
}

// tick is one full pass. Any failure inside is contained: a bad tick must
// never take the loop down.
func (e *Engine) tick(ctx context.Context) {
	logger := log.FromCtx(ctx)
	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Msg("heartbeat tick panicked")
			e.logHeartbeat(ctx, "error", truncate(fmt.Sprint(r), 200))
		}
	}()

	ownerID := e.runtime.OwnerID()
	if ownerID == 0 {
		logger.Debug().Msg("no owner set yet, heartbeat paused")
		return
	}

	now := e.now()
	e.updateState(ctx, now)

	if e.State() == StateSleeping {
		e.logHeartbeat(ctx, "sleeping", "")
		return
	}

	// Cheap, no LLM. Both reports and think consume the same snapshot.
	obs := e.observe(ctx, ownerID, now)

	if reportType := e.reportDue(now); reportType != "" {
		e.sendReport(ctx, reportType, ownerID, obs)
	}

	if e.shouldThink(obs, now) {
		action := e.think(ctx, obs)
		if action != nil {
			e.act(ctx, action, ownerID)
		} else {
			e.logHeartbeat(ctx, "think_no_action", "")
		}
	} else {
		e.logHeartbeat(ctx, "observe_only", "")
	}
}

func (e *Engine) updateState(ctx context.Context, now time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()

	hour := now.Hour()
	next := e.state

	switch e.state {
	case StateSleeping:
		if hour == e.cfg.ForceWakeHour || (e.cfg.AwakeHourStart <= hour && hour < e.cfg.AwakeHourEnd) {
			next = StateAwake
		}
	case StateAwake:
		if hour == e.cfg.ForceSleepHour || hour < e.cfg.AwakeHourStart {
			next = StateSleeping
		}
	}

	if next != e.state {
		log.FromCtx(ctx).Info().
			Str("from", string(e.state)).
			Str("to", string(next)).
			Msg("heartbeat state transition")
		e.state = next
		e.stateChangedAt = now
	}
}

// SetSender registers the delivery transport. The transport is built
// after the engine (it needs the engine for force-wake), so wiring calls
// this before Start.
func (e *Engine) SetSender(s core.Sender) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sender = s
}

// ForceWake transitions SLEEPING → AWAKE immediately. Called by the
// transport when the owner sends a message outside the awake window.
func (e *Engine) ForceWake(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == StateSleeping {
		log.FromCtx(ctx).Info().Msg("forced wake: owner activity detected")
		e.state = StateAwake
		e.stateChangedAt = e.now()
	}
}

func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Stats{
		State:          e.state,
		StateChangedAt: e.stateChangedAt,
		LastThinkAt:    e.lastThinkAt,
		ProactiveToday: e.proactiveToday,
		ProactiveLimit: e.cfg.MaxDailyProactive,
	}
}

func (e *Engine) logHeartbeat(ctx context.Context, action, summary string) {
	if err := e.hbLog.Log(ctx, string(e.State()), action, summary); err != nil {
		log.FromCtx(ctx).Warn().Err(err).Str("action", action).Msg("failed to log heartbeat")
	}
}

func (e *Engine) logUsage(ctx context.Context, res core.ChatResult, purpose string) {
	rec := core.UsageRecord{
		PromptTokens:     res.Usage.PromptTokens,
		CompletionTokens: res.Usage.CompletionTokens,
		TotalTokens:      res.Usage.TotalTokens,
		Model:            res.Model,
		Purpose:          purpose,
	}
	if err := e.usage.Log(ctx, rec); err != nil {
		log.FromCtx(ctx).Warn().Err(err).Str("purpose", purpose).Msg("failed to log usage")
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

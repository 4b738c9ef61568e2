package main

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"

	"github.com/shikidmsh-rgb/mochibot/internal/config"
	"github.com/shikidmsh-rgb/mochibot/internal/providers/llm"
	"github.com/shikidmsh-rgb/mochibot/internal/service/agent"
	"github.com/shikidmsh-rgb/mochibot/internal/service/heartbeat"
	"github.com/shikidmsh-rgb/mochibot/internal/service/maintenance"
	"github.com/shikidmsh-rgb/mochibot/internal/service/memory"
	"github.com/shikidmsh-rgb/mochibot/internal/service/observer"
	"github.com/shikidmsh-rgb/mochibot/internal/service/prompt"
	"github.com/shikidmsh-rgb/mochibot/internal/service/reminder"
	"github.com/shikidmsh-rgb/mochibot/internal/service/skill"
	"github.com/shikidmsh-rgb/mochibot/internal/service/state"
	"github.com/shikidmsh-rgb/mochibot/internal/storage/sqlite"
	"github.com/shikidmsh-rgb/mochibot/internal/transport/telegram"
	"github.com/shikidmsh-rgb/mochibot/pkg/log"
	"github.com/shikidmsh-rgb/mochibot/pkg/srv"
)

func NewServices(ctx context.Context) []srv.Service {
	logger := log.FromCtx(ctx)
	services := make([]srv.Service, 0)

	if err := initEnv(ctx, config.GetRuntimePath()); err != nil {
		logger.Fatal().Err(err).Msg("failed to init env")
	}

	// Configuration
	appCfg := config.NewAppConfig(ctx)
	hbCfg := config.NewHeartbeatConfig(ctx)
	memCfg := config.NewMemoryConfig(ctx)
	chatCfg := config.NewChatLLMConfig(ctx)
	thinkCfg := config.NewThinkLLMConfig(ctx, chatCfg)
	loc := appCfg.Location()

	// Storage
	db, err := sqlite.NewDB(ctx, appCfg.GetDatabasePath())
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize storage")
	}
	services = append(services, srv.NewCleanup(db.Close))

	messagesRepo := sqlite.NewMessagesRepo(db, loc)
	memoryRepo := sqlite.NewMemoryRepo(db, loc)
	remindersRepo := sqlite.NewRemindersRepo(db, loc)
	todosRepo := sqlite.NewTodosRepo(db, loc)
	habitsRepo := sqlite.NewHabitsRepo(db, loc)
	hbLogRepo := sqlite.NewHeartbeatLogRepo(db, loc)
	usageRepo := sqlite.NewUsageRepo(db, loc)

	// LLM providers: chat for conversations, think for background work.
	chatAI, err := llm.NewProvider(ctx, chatCfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize chat LLM provider")
	}
	thinkAI, err := llm.NewProvider(ctx, thinkCfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize think LLM provider")
	}

	prompts := prompt.NewLoader(appCfg.GetPromptsPath())
	runtime := state.NewRuntime(appCfg.OwnerID)

	// Skills
	skills := skill.NewRegistry()
	skills.Register(ctx, skill.NewReminderSkill(remindersRepo, loc))
	skills.Register(ctx, skill.NewTodoSkill(todosRepo))
	skills.Register(ctx, skill.NewMemorySkill(memoryRepo))
	skills.Register(ctx, skill.NewHabitSkill(habitsRepo, loc))

	// Observation collectors
	collectors := observer.NewRegistry(loc)
	collectors.Register(ctx, observer.NewTimeContext(messagesRepo, nowIn(loc)))
	collectors.Register(ctx, observer.NewActivity(messagesRepo, nowIn(loc)))
	collectors.Register(ctx, observer.NewConversation(messagesRepo, nowIn(loc)))
	collectors.Register(ctx, observer.NewHabit(habitsRepo, nowIn(loc)))
	collectors.Register(ctx, observer.NewWeather())

	// Heartbeat
	engine := heartbeat.NewEngine(hbCfg, heartbeat.Deps{
		Messages:   messagesRepo,
		Todos:      todosRepo,
		Reminders:  remindersRepo,
		Memory:     memoryRepo,
		HBLog:      hbLogRepo,
		Usage:      usageRepo,
		Collectors: collectors,
		AI:         thinkAI,
		Prompts:    prompts,
		Runtime:    runtime,
	}, loc)
	services = append(services, engine)

	// Memory engine + nightly maintenance
	memEngine := memory.NewEngine(memCfg, messagesRepo, memoryRepo, usageRepo, thinkAI, prompts, memory.NewTiktokenCounter())
	services = append(services, maintenance.NewScheduler(memCfg, memEngine, runtime, loc))

	// Conversational core
	ag := agent.NewAgent(appCfg, hbCfg, chatAI, messagesRepo, memoryRepo, usageRepo, prompts, skills)

	// Transport
	if appCfg.EnableTelegram {
		tgCfg := config.NewTelegramConfig(ctx)
		bot, err := telegram.NewBot(ctx, tgCfg, ag, engine, runtime, hbLogRepo, usageRepo)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to initialize telegram bot")
		}
		services = append(services, bot)

		sender := bot.Sender()
		engine.SetSender(sender)
		services = append(services, reminder.NewChecker(remindersRepo, sender, loc))
	} else {
		logger.Warn().Msg("telegram disabled: proactive delivery and reminders are off")
	}

	return services
}

func nowIn(loc *time.Location) func() time.Time {
	return func() time.Time { return time.Now().In(loc) }
}

func initEnv(ctx context.Context, runtimePath string) error {
	logger := log.FromCtx(ctx)
	envFile := filepath.Join(runtimePath, ".env")

	if _, err := os.Stat(envFile); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	if err := godotenv.Load(envFile); err != nil {
		logger.Warn().Err(err).Str("path", envFile).Msg("failed to load .env file")
		return err
	}

	logger.Debug().Str("path", envFile).Msg("loaded .env file")
	return nil
}

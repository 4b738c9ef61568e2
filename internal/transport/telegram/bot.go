package telegram

import (
	"context"
	"fmt"
	"time"

	tele "gopkg.in/telebot.v3"

	"github.com/shikidmsh-rgb/mochibot/internal/config"
	"github.com/shikidmsh-rgb/mochibot/internal/core"
	"github.com/shikidmsh-rgb/mochibot/internal/service/agent"
	"github.com/shikidmsh-rgb/mochibot/internal/service/heartbeat"
	"github.com/shikidmsh-rgb/mochibot/internal/service/state"
	"github.com/shikidmsh-rgb/mochibot/pkg/log"
)

const baseContextKey = "base_context"

// Bot is the Telegram transport. It is owner-only: when no owner is
// configured, the first inbound sender is claimed as the owner; everyone
// else is ignored.
type Bot struct {
	bot     *tele.Bot
	agent   *agent.Agent
	engine  *heartbeat.Engine
	runtime *state.Runtime
	hbLog   core.HeartbeatLogRepository
	usage   core.UsageRepository
}

func NewBot(
	ctx context.Context,
	cfg *config.TelegramConfig,
	ag *agent.Agent,
	engine *heartbeat.Engine,
	runtime *state.Runtime,
	hbLog core.HeartbeatLogRepository,
	usage core.UsageRepository,
) (*Bot, error) {
	pref := tele.Settings{
		Token:  cfg.Token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	}

	b, err := tele.NewBot(pref)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	bot := &Bot{
		bot:     b,
		agent:   ag,
		engine:  engine,
		runtime: runtime,
		hbLog:   hbLog,
		usage:   usage,
	}

	b.Use(func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			c.Set(baseContextKey, ctx)
			return next(c)
		}
	})

	// Owner gate. A zero runtime owner means "unclaimed": the first human
	// to message becomes the owner for the process lifetime and beyond.
	b.Use(func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			senderID := c.Sender().ID
			if bot.runtime.OwnerID() == 0 {
				if bot.runtime.ClaimOwner(senderID) {
					log.FromCtx(ctx).Info().Int64("owner_id", senderID).Msg("owner auto-detected")
				}
			}
			if senderID != bot.runtime.OwnerID() {
				return nil // silently ignore non-owners
			}
			return next(c)
		}
	})

	b.Handle("/start", bot.handleStart)
	b.Handle("/help", bot.handleHelp)
	b.Handle("/status", bot.handleStatus)
	b.Handle("/heartbeat", bot.handleHeartbeat)
	b.Handle("/cost", bot.handleCost)
	b.Handle(tele.OnText, bot.handleMessage)

	return bot, nil
}

// Sender returns the proactive delivery implementation backed by this bot.
func (b *Bot) Sender() *Sender {
	return NewSender(b.bot)
}

func (b *Bot) Start(ctx context.Context) error {
	log.FromCtx(ctx).Info().Msg("starting telegram bot")
	b.bot.Start()
	return nil
}

func (b *Bot) Shutdown(ctx context.Context) error {
	b.bot.Stop()
	return nil
}

func (b *Bot) handleMessage(c tele.Context) error {
	ctx := c.Get(baseContextKey).(context.Context)
	logger := log.FromCtx(ctx)

	// An inbound message while sleeping wakes the heartbeat so context
	// for this conversation isn't dropped.
	b.engine.ForceWake(ctx)

	_ = c.Notify(tele.Typing)

	reply := b.agent.Run(ctx, c.Sender().ID, c.Chat().ID, c.Text())
	if err := NewSender(b.bot).Send(ctx, c.Chat().ID, reply); err != nil {
		logger.Error().Err(err).Msg("failed to send reply")
	}
	return nil
}

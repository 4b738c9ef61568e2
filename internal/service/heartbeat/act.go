package heartbeat

import (
	"context"
	"fmt"
	"strings"

	"github.com/shikidmsh-rgb/mochibot/internal/core"
	"github.com/shikidmsh-rgb/mochibot/pkg/log"
)

// act executes the think decision. Notify runs through the daily cap and
// cooldown gates in that order; either rejection is expected control flow,
// not an error.
func (e *Engine) act(ctx context.Context, action *Action, ownerID int64) {
	logger := log.FromCtx(ctx)

	switch action.Type {
	case "nothing", "":
		e.logHeartbeat(ctx, "nothing", "")

	case "notify":
		e.notify(ctx, action.Content, ownerID)

	case "save_memory":
		if action.Content == "" {
			return
		}
		item := core.MemoryItem{
			OwnerID:    ownerID,
			Category:   "observation",
			Content:    action.Content,
			Importance: 1,
			Source:     "heartbeat",
		}
		if _, err := e.memory.SaveItem(ctx, item); err != nil {
			logger.Error().Err(err).Msg("failed to save observation memory")
			return
		}
		e.logHeartbeat(ctx, "save_memory", truncate(action.Content, 100))

	default:
		logger.Warn().Str("type", action.Type).Msg("unknown action type")
		e.logHeartbeat(ctx, "unknown", fmt.Sprintf("%+v", action))
	}
}

func (e *Engine) notify(ctx context.Context, content string, ownerID int64) {
	logger := log.FromCtx(ctx)
	now := e.now()

	e.mu.Lock()
	today := now.Format("2006-01-02")
	if today != e.proactiveDate {
		e.proactiveToday = 0
		e.proactiveDate = today
	}

	if e.proactiveToday >= e.cfg.MaxDailyProactive {
		e.mu.Unlock()
		logger.Info().Int("limit", e.cfg.MaxDailyProactive).Msg("daily proactive limit reached")
		e.logHeartbeat(ctx, "rate_limited", "")
		return
	}

	if !e.lastProactiveAt.IsZero() {
		elapsed := now.Sub(e.lastProactiveAt).Seconds()
		if elapsed < float64(e.cfg.ProactiveCooldownSeconds) {
			remaining := float64(e.cfg.ProactiveCooldownSeconds) - elapsed
			e.mu.Unlock()
			logger.Info().Float64("remaining_seconds", remaining).Msg("proactive cooldown active")
			e.logHeartbeat(ctx, "cooldown", "")
			return
		}
	}
	e.mu.Unlock()

	if content == "" || e.sender == nil {
		e.logHeartbeat(ctx, "notify_skipped", "no sender or empty content")
		return
	}

	if err := e.sender.Send(ctx, ownerID, content); err != nil {
		logger.Error().Err(err).Msg("proactive send failed")
		e.logHeartbeat(ctx, "notify_failed", truncate(err.Error(), 100))
		return
	}

	e.mu.Lock()
	e.lastProactiveAt = now
	e.proactiveToday++
	count := e.proactiveToday
	e.mu.Unlock()

	if _, err := e.messages.AddMessage(ctx, ownerID, core.RoleAssistant, content); err != nil {
		logger.Warn().Err(err).Msg("failed to persist proactive message")
	}
	e.logHeartbeat(ctx, "notify", truncate(content, 100))
	logger.Info().
		Int("sent_today", count).
		Int("limit", e.cfg.MaxDailyProactive).
		Msg("proactive message sent")

	// The summary was delivered: stop resurfacing it on later ticks.
	if strings.Contains(strings.ToLower(content), "maintenance") {
		e.runtime.ClearMaintenanceSummary()
	}
}

package heartbeat

import (
	"context"
	"math"
	"time"

	"github.com/shikidmsh-rgb/mochibot/internal/service/observer"
	"github.com/shikidmsh-rgb/mochibot/pkg/log"
)

const (
	coreMemoryPreviewChars = 200
	reminderLookahead      = 2 * time.Hour
)

// observe assembles the world snapshot for this tick. Pure data, no
// judgment, no LLM. Individual query failures degrade to a missing field
// rather than aborting the snapshot.
func (e *Engine) observe(ctx context.Context, ownerID int64, now time.Time) map[string]any {
	logger := log.FromCtx(ctx)

	obs := map[string]any{
		"timestamp":   now.Format(time.RFC3339),
		"hour":        now.Hour(),
		"weekday":     now.Weekday().String(),
		"state":       string(e.State()),
		"time_of_day": observer.TimeOfDay(now.Hour()),
	}

	last, ok, err := e.messages.LastUserMessageTime(ctx, ownerID)
	switch {
	case err != nil:
		logger.Warn().Err(err).Msg("observe: last user message time")
		obs["silence_hours"] = nil
	case ok:
		obs["silence_hours"] = math.Round(now.Sub(last).Hours()*10) / 10
	default:
		obs["silence_hours"] = nil
	}

	if count, err := e.messages.CountUserMessagesToday(ctx, ownerID, now.Format("2006-01-02")); err != nil {
		logger.Warn().Err(err).Msg("observe: messages today")
	} else {
		obs["messages_today"] = count
	}

	if count, err := e.todos.ActiveCount(ctx, ownerID); err != nil {
		logger.Warn().Err(err).Msg("observe: active todos")
	} else if count > 0 {
		obs["active_todos"] = count
	}

	if upcoming, err := e.reminders.Upcoming(ctx, ownerID, now.Add(reminderLookahead)); err != nil {
		logger.Warn().Err(err).Msg("observe: upcoming reminders")
	} else if len(upcoming) > 0 {
		items := make([]map[string]any, 0, len(upcoming))
		for _, r := range upcoming {
			items = append(items, map[string]any{
				"message":   r.Message,
				"remind_at": r.RemindAt.Format(time.RFC3339),
			})
		}
		obs["upcoming_reminders"] = items
	}

	if core, err := e.memory.CoreMemory(ctx, ownerID); err != nil {
		logger.Warn().Err(err).Msg("observe: core memory")
	} else if core != "" {
		obs["core_memory_preview"] = truncate(core, coreMemoryPreviewChars)
	}

	obs["user_status"] = e.runtime.UserStatus()

	if summary := e.runtime.MaintenanceSummary(); summary != "" {
		obs["maintenance_summary"] = summary
	}

	if data := e.collectors.CollectAll(ctx, ownerID); len(data) > 0 {
		obs["observers"] = data
	}

	return obs
}

package skill

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shikidmsh-rgb/mochibot/internal/core"
	"github.com/shikidmsh-rgb/mochibot/pkg/log"
)

// HabitSkill tracks daily habits and their streaks.
type HabitSkill struct {
	habits core.HabitsRepository
	now    func() time.Time
}

func NewHabitSkill(habits core.HabitsRepository, loc *time.Location) *HabitSkill {
	return &HabitSkill{
		habits: habits,
		now:    func() time.Time { return time.Now().In(loc) },
	}
}

func (s *HabitSkill) Name() string { return "habit" }

func (s *HabitSkill) Tools() []core.Tool {
	return []core.Tool{{
		Type: "function",
		Function: core.Function{
			Name:        "manage_habit",
			Description: "Track the owner's daily habits: add one, log today's completion, or list streaks.",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"action": {"type": "string", "enum": ["add", "log", "list"], "description": "What to do"},
					"name": {"type": "string", "description": "Habit name (add, log)"},
					"description": {"type": "string", "description": "Optional description (add)"}
				},
				"required": ["action"]
			}`),
		},
	}}
}

func (s *HabitSkill) Execute(ctx context.Context, inv Invocation) Result {
	logger := log.FromCtx(ctx)

	switch stringArg(inv.Args, "action") {
	case "add":
		name := stringArg(inv.Args, "name")
		if name == "" {
			return fail("Need a habit name.")
		}
		if _, err := s.habits.Create(ctx, inv.OwnerID, name, stringArg(inv.Args, "description")); err != nil {
			logger.Error().Err(err).Msg("create habit failed")
			return fail("Couldn't add the habit.")
		}
		return ok("Habit %q added. Log it daily to build a streak!", name)

	case "log":
		name := stringArg(inv.Args, "name")
		if name == "" {
			return fail("Need a habit name to log.")
		}
		logged, err := s.habits.Log(ctx, inv.OwnerID, name)
		if err != nil {
			logger.Error().Err(err).Msg("log habit failed")
			return fail("Couldn't log %q.", name)
		}
		if !logged {
			return fail("No habit named %q.", name)
		}
		return ok("Logged %q for today.", name)

	case "list", "":
		overview, err := s.habits.Overview(ctx, inv.OwnerID, s.now().Format("2006-01-02"))
		if err != nil {
			logger.Error().Err(err).Msg("habit overview failed")
			return fail("Couldn't load habits.")
		}
		if len(overview) == 0 {
			return ok("No habits tracked yet.")
		}
		var sb strings.Builder
		fmt.Fprintf(&sb, "%d habits:\n", len(overview))
		for _, h := range overview {
			mark := "⬜"
			if h.LoggedToday {
				mark = "✅"
			}
			fmt.Fprintf(&sb, "- %s %s — %d day streak\n", mark, h.Name, h.StreakDays)
		}
		return ok("%s", strings.TrimRight(sb.String(), "\n"))
	}
	return fail("Unknown action: %s", stringArg(inv.Args, "action"))
}

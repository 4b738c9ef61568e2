package observer

import (
	"context"
	"fmt"
	"time"

	"github.com/shikidmsh-rgb/mochibot/internal/core"
)

// Habit reports the owner's tracked habits: streaks and what is still due
// today. Empty when no habits are tracked.
type Habit struct {
	habits core.HabitsRepository
	now    func() time.Time
}

func NewHabit(habits core.HabitsRepository, now func() time.Time) *Habit {
	return &Habit{habits: habits, now: now}
}

func (h *Habit) Meta() Meta {
	return Meta{
		Name:            "habits",
		IntervalMinutes: 60,
		Enabled:         true,
	}
}

func (h *Habit) Observe(ctx context.Context, ownerID int64) (Snapshot, error) {
	today := h.now().Format("2006-01-02")
	overview, err := h.habits.Overview(ctx, ownerID, today)
	if err != nil {
		return nil, fmt.Errorf("habits overview: %w", err)
	}
	if len(overview) == 0 {
		return nil, nil
	}

	items := make([]map[string]any, 0, len(overview))
	var dueToday []string
	for _, o := range overview {
		item := map[string]any{
			"name":         o.Name,
			"streak_days":  o.StreakDays,
			"logged_today": o.LoggedToday,
		}
		if o.LastLogged != "" {
			item["last_logged"] = o.LastLogged
		}
		items = append(items, item)
		if !o.LoggedToday {
			dueToday = append(dueToday, o.Name)
		}
	}

	snap := Snapshot{"habits": items}
	if len(dueToday) > 0 {
		snap["due_today"] = dueToday
	}
	return snap, nil
}

package observer

import (
	"context"
	"fmt"
	"time"

	"github.com/shikidmsh-rgb/mochibot/internal/core"
)

// TimeContext reports the current local time in pieces the think model can
// reason about directly, plus how long the owner has been silent.
type TimeContext struct {
	messages core.MessagesRepository
	now      func() time.Time
}

func NewTimeContext(messages core.MessagesRepository, now func() time.Time) *TimeContext {
	return &TimeContext{messages: messages, now: now}
}

func (t *TimeContext) Meta() Meta {
	return Meta{
		Name:            "time_context",
		IntervalMinutes: 1,
		Enabled:         true,
	}
}

func (t *TimeContext) Observe(ctx context.Context, ownerID int64) (Snapshot, error) {
	now := t.now()

	snap := Snapshot{
		"date":        now.Format("2006-01-02"),
		"weekday":     now.Weekday().String(),
		"hour":        now.Hour(),
		"minute":      now.Minute(),
		"time_of_day": TimeOfDay(now.Hour()),
		"is_weekend":  now.Weekday() == time.Saturday || now.Weekday() == time.Sunday,
	}

	last, ok, err := t.messages.LastUserMessageTime(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("last user message time: %w", err)
	}
	if ok {
		silence := now.Sub(last)
		snap["silence_minutes"] = int(silence.Minutes())
		snap["silence_hours"] = roundHours(silence)
	}
	return snap, nil
}

// TimeOfDay maps an hour to one of the fixed coarse labels shared by the
// observation snapshot.
func TimeOfDay(hour int) string {
	switch {
	case hour < 5:
		return "late_night"
	case hour < 9:
		return "early_morning"
	case hour < 12:
		return "morning"
	case hour < 14:
		return "lunch"
	case hour < 18:
		return "afternoon"
	case hour < 21:
		return "evening"
	default:
		return "night"
	}
}

func roundHours(d time.Duration) float64 {
	return float64(int(d.Minutes()/6)) / 10
}

package observer

import (
	"context"
	"fmt"
	"time"

	"github.com/shikidmsh-rgb/mochibot/internal/core"
)

const (
	// activeDayMessages is the floor above which a day counts as active.
	activeDayMessages = 3
	// quietRatio marks today as unusually quiet when message volume drops
	// below this fraction of the recent daily average.
	quietRatio = 0.3
)

// Activity watches the owner's messaging rhythm over the last week and
// derives signals the heartbeat uses to decide whether reaching out makes
// sense.
type Activity struct {
	messages core.MessagesRepository
	now      func() time.Time
}

func NewActivity(messages core.MessagesRepository, now func() time.Time) *Activity {
	return &Activity{messages: messages, now: now}
}

func (a *Activity) Meta() Meta {
	return Meta{
		Name:            "activity_pattern",
		IntervalMinutes: 30,
		Enabled:         true,
	}
}

func (a *Activity) Observe(ctx context.Context, ownerID int64) (Snapshot, error) {
	counts, err := a.messages.DailyUserCounts(ctx, ownerID, 7)
	if err != nil {
		return nil, fmt.Errorf("daily user counts: %w", err)
	}
	if len(counts) == 0 {
		return nil, nil
	}

	today := counts[len(counts)-1].Count
	yesterday := 0
	if len(counts) >= 2 {
		yesterday = counts[len(counts)-2].Count
	}

	// Baseline over past days with any activity, so silent stretches from
	// before the owner started chatting don't drag the average down.
	past := counts[:len(counts)-1]
	activeSum, activeDays := 0, 0
	for _, c := range past {
		if c.Count > 0 {
			activeSum += c.Count
			activeDays++
		}
	}
	avg := 0.0
	if activeDays > 0 {
		avg = float64(activeSum) / float64(activeDays)
	}

	snap := Snapshot{
		"messages_today":     today,
		"messages_yesterday": yesterday,
		"daily_avg":          roundHalf(avg),
	}

	var signals []string
	if yesterday >= activeDayMessages && today == 0 {
		signals = append(signals, "silent_after_active_day")
	}
	if avg > 0 && float64(today) < avg*quietRatio {
		if today == 0 {
			signals = append(signals, "unusually_quiet")
		} else {
			signals = append(signals, "below_average_activity")
		}
	}
	if days := silentDays(counts); days >= 2 {
		signals = append(signals, fmt.Sprintf("silent_%d_days", days))
	}
	if avg > 0 && float64(today) > avg*2 {
		signals = append(signals, "high_engagement_today")
	}
	if len(signals) > 0 {
		snap["signals"] = signals
	}
	return snap, nil
}

// silentDays counts trailing zero-count days including today.
func silentDays(counts []core.DailyCount) int {
	n := 0
	for i := len(counts) - 1; i >= 0; i-- {
		if counts[i].Count > 0 {
			break
		}
		n++
	}
	return n
}


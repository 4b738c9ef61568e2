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

// ReminderSkill manages one-off reminders through a single tool.
type ReminderSkill struct {
	reminders core.RemindersRepository
	loc       *time.Location
	now       func() time.Time
}

func NewReminderSkill(reminders core.RemindersRepository, loc *time.Location) *ReminderSkill {
	return &ReminderSkill{
		reminders: reminders,
		loc:       loc,
		now:       func() time.Time { return time.Now().In(loc) },
	}
}

func (s *ReminderSkill) Name() string { return "reminder" }

func (s *ReminderSkill) Tools() []core.Tool {
	return []core.Tool{{
		Type: "function",
		Function: core.Function{
			Name:        "manage_reminder",
			Description: "Create, list, or delete reminders for the owner.",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"action": {"type": "string", "enum": ["create", "list", "delete"], "description": "What to do"},
					"message": {"type": "string", "description": "Reminder text (create)"},
					"remind_at": {"type": "string", "description": "Local time, YYYY-MM-DD HH:MM (create)"},
					"reminder_id": {"type": "integer", "description": "Reminder id (delete)"}
				},
				"required": ["action"]
			}`),
		},
	}}
}

func (s *ReminderSkill) Execute(ctx context.Context, inv Invocation) Result {
	switch stringArg(inv.Args, "action") {
	case "create":
		message := stringArg(inv.Args, "message")
		rawAt := stringArg(inv.Args, "remind_at")
		if message == "" || rawAt == "" {
			return fail("Need both message and remind_at.")
		}
		remindAt, err := parseLocalTime(rawAt, s.loc)
		if err != nil {
			return fail("Couldn't understand time %q — use YYYY-MM-DD HH:MM.", rawAt)
		}
		id, err := s.reminders.Create(ctx, inv.OwnerID, inv.ChatID, message, remindAt)
		if err != nil {
			log.FromCtx(ctx).Error().Err(err).Msg("create reminder failed")
			return fail("Couldn't save the reminder.")
		}
		return ok("Reminder #%d set for %s: %s", id, remindAt.Format("2006-01-02 15:04"), message)

	case "list", "":
		pending, err := s.reminders.Upcoming(ctx, inv.OwnerID, s.now().AddDate(10, 0, 0))
		if err != nil {
			log.FromCtx(ctx).Error().Err(err).Msg("list reminders failed")
			return fail("Couldn't load reminders.")
		}
		if len(pending) == 0 {
			return ok("No pending reminders.")
		}
		var sb strings.Builder
		fmt.Fprintf(&sb, "%d reminders:\n", len(pending))
		for _, r := range pending {
			fmt.Fprintf(&sb, "- #%d [%s] %s\n", r.ID, r.RemindAt.Format("2006-01-02 15:04"), r.Message)
		}
		return ok("%s", strings.TrimRight(sb.String(), "\n"))

	case "delete":
		id, found := intArg(inv.Args, "reminder_id")
		if !found {
			return fail("Need reminder_id to delete.")
		}
		if err := s.reminders.MarkFired(ctx, id); err != nil {
			log.FromCtx(ctx).Error().Err(err).Msg("delete reminder failed")
			return fail("Couldn't delete reminder #%d.", id)
		}
		return ok("Reminder #%d deleted.", id)
	}
	return fail("Unknown action: %s", stringArg(inv.Args, "action"))
}

// parseLocalTime accepts the formats models actually produce.
func parseLocalTime(raw string, loc *time.Location) (time.Time, error) {
	formats := []string{
		"2006-01-02 15:04",
		"2006-01-02T15:04",
		"2006-01-02 15:04:05",
		time.RFC3339,
	}
	for _, f := range formats {
		if t, err := time.ParseInLocation(f, raw, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time format: %q", raw)
}

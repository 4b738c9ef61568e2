package telegram

import (
	"context"
	"fmt"
	"strings"

	tele "gopkg.in/telebot.v3"

	"github.com/shikidmsh-rgb/mochibot/internal/core"
	"github.com/shikidmsh-rgb/mochibot/internal/service/heartbeat"
)

const heartbeatSummaryLimit = 800

func (b *Bot) handleStart(c tele.Context) error {
	return c.Send("Hey! I'm your MochiBot companion. Just talk to me like you would a friend. 🍡")
}

func (b *Bot) handleHelp(c tele.Context) error {
	return c.Send("I'm an AI companion that remembers our conversations and checks in on you.\n\n" +
		"Just chat naturally, I'll remember important things and remind you when needed.\n\n" +
		"Commands:\n" +
		"/start - Say hi\n" +
		"/help - This message\n" +
		"/status - Check my heartbeat status\n" +
		"/heartbeat - Last heartbeat time and output\n" +
		"/cost - LLM token usage summary")
}

func (b *Bot) handleStatus(c tele.Context) error {
	return c.Send(formatStatus(b.engine.Stats()))
}

func (b *Bot) handleHeartbeat(c tele.Context) error {
	ctx := c.Get(baseContextKey).(context.Context)
	entry, ok, err := b.hbLog.Last(ctx)
	if err != nil {
		return c.Send("Couldn't read the heartbeat log right now.")
	}
	if !ok {
		return c.Send("💓 No heartbeat log found yet.")
	}
	return c.Send(formatHeartbeat(entry))
}

func (b *Bot) handleCost(c tele.Context) error {
	ctx := c.Get(baseContextKey).(context.Context)
	summary, err := b.usage.Summary(ctx)
	if err != nil {
		return c.Send("Couldn't read the usage log right now.")
	}
	return c.Send(formatCost(summary))
}

func formatStatus(stats heartbeat.Stats) string {
	lastThink := "never"
	if !stats.LastThinkAt.IsZero() {
		lastThink = stats.LastThinkAt.Format("2006-01-02 15:04")
	}
	return fmt.Sprintf("State: %s\nProactive today: %d/%d\nLast think: %s",
		stats.State, stats.ProactiveToday, stats.ProactiveLimit, lastThink)
}

func formatHeartbeat(entry core.HeartbeatEntry) string {
	summary := entry.Summary
	if summary == "" {
		summary = "(none)"
	}
	if r := []rune(summary); len(r) > heartbeatSummaryLimit {
		summary = string(r[:heartbeatSummaryLimit]) + "...(truncated)"
	}
	action := entry.Action
	if action == "" {
		action = "(none)"
	}
	when := "?"
	if !entry.CreatedAt.IsZero() {
		when = entry.CreatedAt.Format("2006-01-02 15:04:05")
	}
	return fmt.Sprintf("💓 Last Heartbeat\nTime: %s\nState: %s  |  Action: %s\n\nSummary:\n%s",
		when, entry.State, action, summary)
}

func formatCost(s core.UsageSummary) string {
	var sb strings.Builder
	sb.WriteString("📊 LLM Usage\n\n")
	fmt.Fprintf(&sb, "Today: %s tokens (%d calls)\n", comma(s.Today.TotalTokens), s.Today.Calls)
	fmt.Fprintf(&sb, "  prompt: %s\n", comma(s.Today.PromptTokens))
	fmt.Fprintf(&sb, "  completion: %s\n\n", comma(s.Today.CompletionTokens))
	fmt.Fprintf(&sb, "This month: %s tokens (%d calls)\n", comma(s.Month.TotalTokens), s.Month.Calls)
	fmt.Fprintf(&sb, "  prompt: %s\n", comma(s.Month.PromptTokens))
	fmt.Fprintf(&sb, "  completion: %s", comma(s.Month.CompletionTokens))

	if len(s.ByModel) > 0 {
		sb.WriteString("\n\nBy model (this month):")
		for _, m := range s.ByModel {
			fmt.Fprintf(&sb, "\n  %s: %s tokens (%d calls)", m.Model, comma(m.TotalTokens), m.Calls)
		}
	}
	if len(s.ByPurpose) > 0 {
		sb.WriteString("\n\nBy purpose (this month):")
		for _, p := range s.ByPurpose {
			fmt.Fprintf(&sb, "\n  %s: %s tokens", p.Purpose, comma(p.TotalTokens))
		}
	}
	return sb.String()
}

// comma renders 1234567 as "1,234,567".
func comma(n int) string {
	s := fmt.Sprintf("%d", n)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	for i := len(s) - 3; i > 0; i -= 3 {
		s = s[:i] + "," + s[i:]
	}
	if neg {
		return "-" + s
	}
	return s
}

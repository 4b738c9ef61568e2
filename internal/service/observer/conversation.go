package observer

import (
	"context"
	"fmt"
	"time"

	"github.com/shikidmsh-rgb/mochibot/internal/core"
)

const (
	conversationWindow  = 20
	conversationExcerpt = 200
)

// Conversation surfaces the recent dialogue so the think model knows what
// was already said and doesn't repeat itself.
type Conversation struct {
	messages core.MessagesRepository
	now      func() time.Time
}

func NewConversation(messages core.MessagesRepository, now func() time.Time) *Conversation {
	return &Conversation{messages: messages, now: now}
}

func (c *Conversation) Meta() Meta {
	return Meta{
		Name:            "recent_conversation",
		IntervalMinutes: 5,
		Enabled:         true,
	}
}

func (c *Conversation) Observe(ctx context.Context, ownerID int64) (Snapshot, error) {
	msgs, err := c.messages.GetRecent(ctx, ownerID, conversationWindow)
	if err != nil {
		return nil, fmt.Errorf("recent messages: %w", err)
	}
	if len(msgs) == 0 {
		return nil, nil
	}

	now := c.now()
	lines := make([]map[string]any, 0, len(msgs))
	var lastUser string
	for _, m := range msgs {
		content := m.Content
		if len([]rune(content)) > conversationExcerpt {
			content = string([]rune(content)[:conversationExcerpt]) + "..."
		}
		lines = append(lines, map[string]any{
			"role":    m.Role,
			"content": content,
			"ago":     relativeTime(now.Sub(m.CreatedAt)),
		})
		if m.Role == core.RoleUser {
			lastUser = content
		}
	}

	snap := Snapshot{"messages": lines}
	if lastUser != "" {
		snap["last_user_message"] = lastUser
	}
	return snap, nil
}

func relativeTime(d time.Duration) string {
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}

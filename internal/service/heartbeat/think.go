package heartbeat

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/shikidmsh-rgb/mochibot/internal/core"
	"github.com/shikidmsh-rgb/mochibot/internal/service/observer"
	"github.com/shikidmsh-rgb/mochibot/pkg/log"
)

// Action is the decision the think model returns.
type Action struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

// shouldThink is the cost gate: the LLM only runs on the first tick, past
// the fallback ceiling, or when the observation carries a delta worth
// reacting to.
func (e *Engine) shouldThink(obs map[string]any, now time.Time) bool {
	e.mu.Lock()
	lastThink := e.lastThinkAt
	e.mu.Unlock()

	if lastThink.IsZero() {
		return true
	}

	if now.Sub(lastThink) >= time.Duration(e.cfg.ThinkFallbackMinutes)*time.Minute {
		return true
	}

	if _, ok := obs["maintenance_summary"]; ok {
		return true
	}

	if _, ok := obs["upcoming_reminders"]; ok {
		return true
	}

	if observers, ok := obs["observers"].(map[string]observer.Snapshot); ok {
		if pattern, ok := observers["activity_pattern"]; ok {
			if signals, ok := pattern["signals"].([]string); ok && len(signals) > 0 {
				return true
			}
		}
	}

	return false
}

// think asks the LLM for a decision. The last-think timestamp moves at
// invocation, not on successful parse, so a model returning garbage can't
// put the engine into a tight retry loop.
func (e *Engine) think(ctx context.Context, obs map[string]any) *Action {
	logger := log.FromCtx(ctx)

	e.mu.Lock()
	e.lastThinkAt = e.now()
	e.mu.Unlock()

	prompt := e.prompts.GetWithPersona("think_system", "Think")
	if prompt == "" {
		logger.Warn().Msg("think_system prompt not found")
		return nil
	}

	obsText, err := json.MarshalIndent(obs, "", "  ")
	if err != nil {
		logger.Error().Err(err).Msg("failed to serialize observation")
		return nil
	}

	history := []core.Message{
		{Role: core.RoleSystem, Content: prompt},
		{Role: core.RoleUser, Content: "Current observation:\n" + string(obsText)},
	}

	res, err := e.ai.Chat(ctx, history, nil, core.ChatOptions{Temperature: 0.5, MaxTokens: 512})
	if err != nil {
		logger.Error().Err(err).Msg("think call failed")
		return nil
	}
	e.logUsage(ctx, res, "heartbeat_think")

	action := parseAction(res.Message.Content)
	if action == nil {
		logger.Warn().Msg("think response was not valid JSON")
	}
	return action
}

// parseAction decodes a model response leniently: a strict parse first,
// then a best-effort parse of the outermost brace-delimited substring.
func parseAction(raw string) *Action {
	var action Action
	if err := json.Unmarshal([]byte(raw), &action); err == nil {
		return &action
	}

	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return nil
	}
	if err := json.Unmarshal([]byte(raw[start:end+1]), &action); err != nil {
		return nil
	}
	return &action
}

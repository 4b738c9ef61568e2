package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shikidmsh-rgb/mochibot/internal/config"
	"github.com/shikidmsh-rgb/mochibot/internal/core"
	"github.com/shikidmsh-rgb/mochibot/internal/service/skill"
	"github.com/shikidmsh-rgb/mochibot/pkg/log"
)

const (
	maxToolRounds = 5
	// apologyReply is the floor: the owner always gets some text back.
	apologyReply = "I got a bit tangled up. Could you try again?"
)

// Agent is the conversational core: one inbound message in, one reply out,
// with bounded tool-call rounds in between.
type Agent struct {
	appCfg *config.AppConfig
	hbCfg  *config.HeartbeatConfig

	ai       core.AIProvider
	messages core.MessagesRepository
	memory   core.MemoryRepository
	usage    core.UsageRepository
	prompts  core.Prompts
	skills   *skill.Registry

	now func() time.Time
}

func NewAgent(
	appCfg *config.AppConfig,
	hbCfg *config.HeartbeatConfig,
	ai core.AIProvider,
	messages core.MessagesRepository,
	memory core.MemoryRepository,
	usage core.UsageRepository,
	prompts core.Prompts,
	skills *skill.Registry,
) *Agent {
	loc := appCfg.Location()
	return &Agent{
		appCfg:   appCfg,
		hbCfg:    hbCfg,
		ai:       ai,
		messages: messages,
		memory:   memory,
		usage:    usage,
		prompts:  prompts,
		skills:   skills,
		now:      func() time.Time { return time.Now().In(loc) },
	}
}

// Run processes one owner message and returns the reply. It never returns
// empty text: any failure degrades to the apology floor.
func (a *Agent) Run(ctx context.Context, ownerID, chatID int64, input string) string {
	logger := log.FromCtx(ctx)

	if _, err := a.messages.AddMessage(ctx, ownerID, core.RoleUser, input); err != nil {
		logger.Error().Err(err).Msg("failed to save user message")
	}

	history, err := a.messages.GetRecent(ctx, ownerID, a.appCfg.ContextWindowSize)
	if err != nil {
		logger.Error().Err(err).Msg("failed to fetch history")
		return apologyReply
	}

	messages := []core.Message{{Role: core.RoleSystem, Content: a.buildSystemPrompt(ctx, ownerID)}}
	for _, m := range history {
		messages = append(messages, core.Message{Role: m.Role, Content: m.Content})
	}

	tools := a.skills.Tools()

	var last core.ChatResult
	for round := 0; round < maxToolRounds; round++ {
		res, err := a.ai.Chat(ctx, messages, tools, core.ChatOptions{Temperature: 0.7})
		if err != nil {
			logger.Error().Err(err).Msg("chat call failed")
			return a.saveReply(ctx, ownerID, apologyReply)
		}
		last = res
		a.logUsage(ctx, res, len(res.Message.ToolCalls))

		if len(res.Message.ToolCalls) == 0 {
			reply := strings.TrimSpace(res.Message.Content)
			if reply == "" {
				reply = apologyReply
			}
			return a.saveReply(ctx, ownerID, reply)
		}

		messages = append(messages, res.Message)
		for _, tc := range res.Message.ToolCalls {
			// Tool name only at info level; arguments may carry personal data.
			logger.Info().Str("tool", tc.Function.Name).Msg("tool call")

			result := a.skills.Execute(ctx, skill.Invocation{
				OwnerID:  ownerID,
				ChatID:   chatID,
				ToolName: tc.Function.Name,
				Args:     parseToolArgs(tc.Function.Arguments),
			})
			messages = append(messages, core.Message{
				Role:       core.RoleTool,
				Content:    result.Output,
				ToolCallID: tc.ID,
			})
		}
	}

	// Tool rounds exhausted: return whatever text we have.
	reply := strings.TrimSpace(last.Message.Content)
	if reply == "" {
		reply = apologyReply
	}
	return a.saveReply(ctx, ownerID, reply)
}

// buildSystemPrompt assembles persona, the current local time, the bot's
// awareness of its own heartbeat, and core memory.
func (a *Agent) buildSystemPrompt(ctx context.Context, ownerID int64) string {
	logger := log.FromCtx(ctx)

	var parts []string
	if personality := a.prompts.GetWithPersona("system_chat", "Chat"); personality != "" {
		parts = append(parts, personality)
	}

	// Current time lets relative reminders ("in 5 minutes") resolve.
	now := a.now()
	parts = append(parts, fmt.Sprintf(
		"## Current time\nRight now it is **%s** (UTC%+d).",
		now.Format("2006-01-02 15:04:05"), a.appCfg.TimezoneOffsetHours,
	))

	parts = append(parts, fmt.Sprintf(
		"## Your background process\n"+
			"You have a heartbeat loop that runs every %d minutes while you're awake "+
			"(%d:00–%d:00). It observes context (time, conversation patterns, etc.) and "+
			"sometimes decides to proactively reach out — a check-in, a nudge, or a "+
			"thoughtful message. You don't always send something; you stay quiet when "+
			"nothing worth noting has changed. If the user asks whether you'll reach "+
			"out on your own, the answer is yes.",
		a.hbCfg.IntervalMinutes, a.hbCfg.AwakeHourStart, a.hbCfg.AwakeHourEnd,
	))

	if coreMemory, err := a.memory.CoreMemory(ctx, ownerID); err != nil {
		logger.Warn().Err(err).Msg("failed to load core memory for system prompt")
	} else if coreMemory != "" {
		parts = append(parts, "## What you know about the user\n"+coreMemory)
	}

	if len(parts) == 0 {
		return "You are a friendly AI companion."
	}
	return strings.Join(parts, "\n\n")
}

func (a *Agent) saveReply(ctx context.Context, ownerID int64, reply string) string {
	if _, err := a.messages.AddMessage(ctx, ownerID, core.RoleAssistant, reply); err != nil {
		log.FromCtx(ctx).Error().Err(err).Msg("failed to save assistant message")
	}
	return reply
}

func (a *Agent) logUsage(ctx context.Context, res core.ChatResult, toolCalls int) {
	rec := core.UsageRecord{
		PromptTokens:     res.Usage.PromptTokens,
		CompletionTokens: res.Usage.CompletionTokens,
		TotalTokens:      res.Usage.TotalTokens,
		ToolCalls:        toolCalls,
		Model:            res.Model,
		Purpose:          "chat",
	}
	if err := a.usage.Log(ctx, rec); err != nil {
		log.FromCtx(ctx).Warn().Err(err).Msg("failed to log usage")
	}
}

func parseToolArgs(raw string) map[string]any {
	args := make(map[string]any)
	if raw == "" {
		return args
	}
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return map[string]any{}
	}
	return args
}

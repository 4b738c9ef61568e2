package skill

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shikidmsh-rgb/mochibot/internal/core"
	"github.com/shikidmsh-rgb/mochibot/pkg/log"
)

const recallLimit = 15

// MemorySkill lets the chat model save and recall Layer-2 items and
// rewrite the Layer-1 core summary. The chat model owns core memory
// content; the nightly audit only measures it.
type MemorySkill struct {
	memory core.MemoryRepository
}

func NewMemorySkill(memory core.MemoryRepository) *MemorySkill {
	return &MemorySkill{memory: memory}
}

func (s *MemorySkill) Name() string { return "memory" }

func (s *MemorySkill) Tools() []core.Tool {
	return []core.Tool{
		{
			Type: "function",
			Function: core.Function{
				Name:        "save_memory",
				Description: "Save a durable fact about the owner.",
				Parameters: json.RawMessage(`{
					"type": "object",
					"properties": {
						"content": {"type": "string", "description": "Self-contained fact to remember"},
						"category": {"type": "string", "description": "preference, fact, project, or event"}
					},
					"required": ["content"]
				}`),
			},
		},
		{
			Type: "function",
			Function: core.Function{
				Name:        "recall_memory",
				Description: "Search saved memories about the owner.",
				Parameters: json.RawMessage(`{
					"type": "object",
					"properties": {
						"query": {"type": "string", "description": "Text to search for"},
						"category": {"type": "string", "description": "Optional category filter"}
					}
				}`),
			},
		},
		{
			Type: "function",
			Function: core.Function{
				Name:        "update_core_memory",
				Description: "Replace the always-present core memory summary about the owner.",
				Parameters: json.RawMessage(`{
					"type": "object",
					"properties": {
						"content": {"type": "string", "description": "The full new core memory text"}
					},
					"required": ["content"]
				}`),
			},
		},
	}
}

func (s *MemorySkill) Execute(ctx context.Context, inv Invocation) Result {
	logger := log.FromCtx(ctx)

	switch inv.ToolName {
	case "save_memory":
		content := stringArg(inv.Args, "content")
		if content == "" {
			return fail("Nothing to save.")
		}
		category := stringArg(inv.Args, "category")
		if category == "" {
			category = "general"
		}
		item := core.MemoryItem{
			OwnerID:    inv.OwnerID,
			Category:   category,
			Content:    content,
			Importance: 1,
			Source:     "chat",
		}
		id, err := s.memory.SaveItem(ctx, item)
		if err != nil {
			logger.Error().Err(err).Msg("save memory failed")
			return fail("Couldn't save that.")
		}
		preview := content
		if len([]rune(preview)) > 50 {
			preview = string([]rune(preview)[:50])
		}
		return ok("Saved memory #%d: %s", id, preview)

	case "recall_memory":
		items, err := s.memory.Recall(ctx, inv.OwnerID, stringArg(inv.Args, "query"), stringArg(inv.Args, "category"), recallLimit)
		if err != nil {
			logger.Error().Err(err).Msg("recall failed")
			return fail("Couldn't search memories.")
		}
		if len(items) == 0 {
			return ok("No matching memories found.")
		}
		var sb strings.Builder
		fmt.Fprintf(&sb, "Found %d memories:\n", len(items))
		for _, m := range items {
			fmt.Fprintf(&sb, "- [%s] %s\n", m.Category, m.Content)
		}
		return ok("%s", strings.TrimRight(sb.String(), "\n"))

	case "update_core_memory":
		content := stringArg(inv.Args, "content")
		if content == "" {
			return fail("Empty core memory update.")
		}
		if err := s.memory.UpsertCoreMemory(ctx, inv.OwnerID, content); err != nil {
			logger.Error().Err(err).Msg("core memory update failed")
			return fail("Couldn't update core memory.")
		}
		return ok("Core memory updated.")
	}
	return fail("Unknown tool: %s", inv.ToolName)
}

package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shikidmsh-rgb/mochibot/internal/config"
	"github.com/shikidmsh-rgb/mochibot/internal/core"
	"github.com/shikidmsh-rgb/mochibot/pkg/log"
)

// TokenCounter measures text against the core-memory budget.
type TokenCounter interface {
	Count(text string) (int, error)
}

// AuditResult is the Layer-1 budget check outcome. The audit never
// rewrites content.
type AuditResult struct {
	Status     string `json:"status"` // empty | ok | over_budget
	Tokens     int    `json:"tokens"`
	OverBudget bool   `json:"over_budget"`
}

// MaintenanceResult aggregates the three nightly phases.
type MaintenanceResult struct {
	Extracted    int         `json:"extracted"`
	Deduplicated int         `json:"deduplicated"`
	CoreAudit    AuditResult `json:"core_audit"`
}

// Engine runs the three-layer memory cycle: raw messages (L3) are distilled
// into memory items (L2), near-duplicate items are merged, and the core
// summary (L1) is audited against its token budget.
type Engine struct {
	cfg      *config.MemoryConfig
	messages core.MessagesRepository
	memory   core.MemoryRepository
	usage    core.UsageRepository
	ai       core.AIProvider
	prompts  core.Prompts
	tokens   TokenCounter
}

func NewEngine(
	cfg *config.MemoryConfig,
	messages core.MessagesRepository,
	memory core.MemoryRepository,
	usage core.UsageRepository,
	ai core.AIProvider,
	prompts core.Prompts,
	tokens TokenCounter,
) *Engine {
	return &Engine{
		cfg:      cfg,
		messages: messages,
		memory:   memory,
		usage:    usage,
		ai:       ai,
		prompts:  prompts,
		tokens:   tokens,
	}
}

type extractedItem struct {
	Content    string `json:"content"`
	Category   string `json:"category"`
	Importance int    `json:"importance"`
}

// Extract distills unprocessed messages into Layer-2 items. The watermark
// advances past the batch whether or not the model output parsed: an
// unparseable batch must not be reprocessed forever.
func (e *Engine) Extract(ctx context.Context, ownerID int64) (int, error) {
	logger := log.FromCtx(ctx)

	batch, err := e.messages.GetUnprocessed(ctx, ownerID)
	if err != nil {
		return 0, fmt.Errorf("fetch unprocessed messages: %w", err)
	}
	if len(batch) == 0 {
		return 0, nil
	}

	prompt := e.prompts.Get("memory_extract")
	if prompt == "" {
		logger.Warn().Msg("memory_extract prompt not found, skipping extraction")
		return 0, nil
	}

	var sb strings.Builder
	for _, m := range batch {
		fmt.Fprintf(&sb, "[%s] %s: %s\n", m.CreatedAt.Format("2006-01-02 15:04"), m.Role, m.Content)
	}

	history := []core.Message{
		{Role: core.RoleSystem, Content: prompt},
		{Role: core.RoleUser, Content: sb.String()},
	}
	res, err := e.ai.Chat(ctx, history, nil, core.ChatOptions{Temperature: 0.3, MaxTokens: 1024})
	if err != nil {
		// The batch stays unprocessed: nothing was consumed.
		return 0, fmt.Errorf("extraction call: %w", err)
	}
	e.logUsage(ctx, res, "memory_extract")

	count := 0
	var items []extractedItem
	if err := json.Unmarshal([]byte(res.Message.Content), &items); err != nil {
		logger.Warn().Msg("failed to parse memory extraction result")
	} else {
		for _, it := range items {
			if it.Content == "" {
				continue
			}
			if it.Category == "" {
				it.Category = "general"
			}
			if it.Importance == 0 {
				it.Importance = 1
			}
			item := core.MemoryItem{
				OwnerID:    ownerID,
				Category:   it.Category,
				Content:    it.Content,
				Importance: it.Importance,
				Source:     "extracted",
			}
			if _, err := e.memory.SaveItem(ctx, item); err != nil {
				logger.Error().Err(err).Msg("failed to save extracted memory")
				continue
			}
			count++
		}
	}

	upTo := batch[len(batch)-1].ID
	if err := e.messages.MarkProcessed(ctx, ownerID, upTo); err != nil {
		return count, fmt.Errorf("advance extraction watermark: %w", err)
	}

	logger.Info().
		Int("extracted", count).
		Int("messages", len(batch)).
		Int64("up_to_id", upTo).
		Msg("memory extraction complete")
	return count, nil
}

type mergeOp struct {
	Keep          *int64  `json:"keep"`
	Delete        []int64 `json:"delete"`
	MergedContent *string `json:"merged_content"`
}

// Deduplicate merges near-duplicate Layer-2 items per category. A category
// whose model response fails to parse is skipped; the others still run.
func (e *Engine) Deduplicate(ctx context.Context, ownerID int64) (int, error) {
	logger := log.FromCtx(ctx)

	items, err := e.memory.AllItems(ctx, ownerID)
	if err != nil {
		return 0, fmt.Errorf("fetch memory items: %w", err)
	}
	if len(items) < e.cfg.DedupMinItems {
		return 0, nil
	}

	prompt := e.prompts.Get("memory_dedup")
	if prompt == "" {
		logger.Warn().Msg("memory_dedup prompt not found, skipping dedup")
		return 0, nil
	}

	byCategory := make(map[string][]core.MemoryItem)
	var order []string
	for _, item := range items {
		if _, seen := byCategory[item.Category]; !seen {
			order = append(order, item.Category)
		}
		byCategory[item.Category] = append(byCategory[item.Category], item)
	}

	totalMerged := 0
	for _, cat := range order {
		catItems := byCategory[cat]
		if len(catItems) < 2 {
			continue
		}

		var sb strings.Builder
		for _, m := range catItems {
			fmt.Fprintf(&sb, "[id=%d] (importance=%d) %s\n", m.ID, m.Importance, m.Content)
		}

		history := []core.Message{
			{Role: core.RoleSystem, Content: prompt},
			{Role: core.RoleUser, Content: fmt.Sprintf("Category: %s\n\n%s", cat, sb.String())},
		}
		res, err := e.ai.Chat(ctx, history, nil, core.ChatOptions{Temperature: 0.2, MaxTokens: 1024})
		if err != nil {
			logger.Warn().Err(err).Str("category", cat).Msg("dedup call failed, category skipped")
			continue
		}
		e.logUsage(ctx, res, "memory_dedup")

		var ops []mergeOp
		if err := json.Unmarshal([]byte(res.Message.Content), &ops); err != nil {
			logger.Warn().Str("category", cat).Msg("failed to parse dedup result, category skipped")
			continue
		}

		for _, op := range ops {
			if op.Keep == nil || op.MergedContent == nil || len(op.Delete) == 0 {
				continue
			}
			if err := e.memory.MergeItems(ctx, *op.Keep, op.Delete, *op.MergedContent); err != nil {
				logger.Error().Err(err).Int64("keep", *op.Keep).Msg("merge failed")
				continue
			}
			totalMerged += len(op.Delete)
		}
	}

	logger.Info().Int("merged", totalMerged).Msg("memory deduplication complete")
	return totalMerged, nil
}

// Audit measures the Layer-1 summary against the token budget. Advisory
// only: content ownership belongs to the conversational core.
func (e *Engine) Audit(ctx context.Context, ownerID int64) (AuditResult, error) {
	logger := log.FromCtx(ctx)

	content, err := e.memory.CoreMemory(ctx, ownerID)
	if err != nil {
		return AuditResult{}, fmt.Errorf("fetch core memory: %w", err)
	}
	if strings.TrimSpace(content) == "" {
		return AuditResult{Status: "empty"}, nil
	}

	tokens, err := e.tokens.Count(content)
	if err != nil {
		return AuditResult{}, fmt.Errorf("count core memory tokens: %w", err)
	}

	over := tokens > e.cfg.CoreMemoryMaxTokens
	if over {
		logger.Warn().
			Int("tokens", tokens).
			Int("budget", e.cfg.CoreMemoryMaxTokens).
			Msg("core memory over budget, needs trimming")
		return AuditResult{Status: "over_budget", Tokens: tokens, OverBudget: true}, nil
	}

	logger.Info().
		Int("tokens", tokens).
		Int("budget", e.cfg.CoreMemoryMaxTokens).
		Msg("core memory within budget")
	return AuditResult{Status: "ok", Tokens: tokens}, nil
}

// RunMaintenance runs the full nightly cycle. Each phase is fault-isolated:
// one failing never blocks the others.
func (e *Engine) RunMaintenance(ctx context.Context, ownerID int64) MaintenanceResult {
	logger := log.FromCtx(ctx)
	logger.Info().Int64("owner_id", ownerID).Msg("starting memory maintenance")

	var result MaintenanceResult

	if n, err := e.Extract(ctx, ownerID); err != nil {
		logger.Error().Err(err).Msg("memory extraction failed")
	} else {
		result.Extracted = n
	}

	if n, err := e.Deduplicate(ctx, ownerID); err != nil {
		logger.Error().Err(err).Msg("memory deduplication failed")
	} else {
		result.Deduplicated = n
	}

	if audit, err := e.Audit(ctx, ownerID); err != nil {
		logger.Error().Err(err).Msg("core memory audit failed")
	} else {
		result.CoreAudit = audit
	}

	logger.Info().
		Int("extracted", result.Extracted).
		Int("deduplicated", result.Deduplicated).
		Str("core_status", result.CoreAudit.Status).
		Msg("memory maintenance complete")
	return result
}

func (e *Engine) logUsage(ctx context.Context, res core.ChatResult, purpose string) {
	rec := core.UsageRecord{
		PromptTokens:     res.Usage.PromptTokens,
		CompletionTokens: res.Usage.CompletionTokens,
		TotalTokens:      res.Usage.TotalTokens,
		Model:            res.Model,
		Purpose:          purpose,
	}
	if err := e.usage.Log(ctx, rec); err != nil {
		log.FromCtx(ctx).Warn().Err(err).Str("purpose", purpose).Msg("failed to log usage")
	}
}

package memory

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shikidmsh-rgb/mochibot/internal/config"
	"github.com/shikidmsh-rgb/mochibot/internal/core"
)

type fakeMessages struct {
	unprocessed []core.StoredMessage
	watermarks  []int64
}

func (f *fakeMessages) AddMessage(ctx context.Context, ownerID int64, role, content string) (int64, error) {
	return 0, nil
}

func (f *fakeMessages) GetRecent(ctx context.Context, ownerID int64, limit int) ([]core.StoredMessage, error) {
	return nil, nil
}

func (f *fakeMessages) LastUserMessageTime(ctx context.Context, ownerID int64) (time.Time, bool, error) {
	return time.Time{}, false, nil
}

func (f *fakeMessages) CountUserMessagesToday(ctx context.Context, ownerID int64, today string) (int, error) {
	return 0, nil
}

func (f *fakeMessages) DailyUserCounts(ctx context.Context, ownerID int64, days int) ([]core.DailyCount, error) {
	return nil, nil
}

func (f *fakeMessages) GetUnprocessed(ctx context.Context, ownerID int64) ([]core.StoredMessage, error) {
	return f.unprocessed, nil
}

func (f *fakeMessages) MarkProcessed(ctx context.Context, ownerID, upToID int64) error {
	f.watermarks = append(f.watermarks, upToID)
	// Everything up to the watermark is now consumed.
	var remaining []core.StoredMessage
	for _, m := range f.unprocessed {
		if m.ID > upToID {
			remaining = append(remaining, m)
		}
	}
	f.unprocessed = remaining
	return nil
}

type fakeMemoryRepo struct {
	items  []core.MemoryItem
	core   string
	nextID int64
	merges []string
}

func (f *fakeMemoryRepo) SaveItem(ctx context.Context, item core.MemoryItem) (int64, error) {
	f.nextID++
	item.ID = f.nextID
	f.items = append(f.items, item)
	return item.ID, nil
}

func (f *fakeMemoryRepo) AllItems(ctx context.Context, ownerID int64) ([]core.MemoryItem, error) {
	return f.items, nil
}

func (f *fakeMemoryRepo) Recall(ctx context.Context, ownerID int64, query, category string, limit int) ([]core.MemoryItem, error) {
	return nil, nil
}

func (f *fakeMemoryRepo) DeleteItems(ctx context.Context, ids []int64) (int, error) {
	return 0, nil
}

func (f *fakeMemoryRepo) MergeItems(ctx context.Context, keepID int64, deleteIDs []int64, mergedContent string) error {
	deleted := make(map[int64]bool, len(deleteIDs))
	for _, id := range deleteIDs {
		deleted[id] = true
	}
	var remaining []core.MemoryItem
	for _, item := range f.items {
		if deleted[item.ID] {
			continue
		}
		if item.ID == keepID {
			item.Content = mergedContent
		}
		remaining = append(remaining, item)
	}
	f.items = remaining
	f.merges = append(f.merges, mergedContent)
	return nil
}

func (f *fakeMemoryRepo) CoreMemory(ctx context.Context, ownerID int64) (string, error) {
	return f.core, nil
}

func (f *fakeMemoryRepo) UpsertCoreMemory(ctx context.Context, ownerID int64, content string) error {
	f.core = content
	return nil
}

type fakeUsage struct {
	purposes []string
}

func (f *fakeUsage) Log(ctx context.Context, rec core.UsageRecord) error {
	f.purposes = append(f.purposes, rec.Purpose)
	return nil
}

func (f *fakeUsage) Summary(ctx context.Context) (core.UsageSummary, error) {
	return core.UsageSummary{}, nil
}

// fakeAI answers by matching a substring of the user message, so dedup
// tests can script per-category responses.
type fakeAI struct {
	byNeedle map[string]string
	fallback string
	err      error
	calls    int
}

func (f *fakeAI) Chat(ctx context.Context, history []core.Message, tools []core.Tool, opts core.ChatOptions) (core.ChatResult, error) {
	f.calls++
	if f.err != nil {
		return core.ChatResult{}, f.err
	}
	content := f.fallback
	if len(history) > 0 {
		user := history[len(history)-1].Content
		for needle, reply := range f.byNeedle {
			if strings.Contains(user, needle) {
				content = reply
				break
			}
		}
	}
	return core.ChatResult{
		Message: core.Message{Role: core.RoleAssistant, Content: content},
		Usage:   core.Usage{PromptTokens: 20, CompletionTokens: 10, TotalTokens: 30},
		Model:   "test-model",
	}, nil
}

type fakePrompts struct{}

func (fakePrompts) Get(name string) string                  { return "prompt: " + name }
func (fakePrompts) GetWithPersona(name, persona string) string { return "prompt: " + name }

type fixedCounter struct {
	tokens int
	err    error
}

func (f fixedCounter) Count(text string) (int, error) { return f.tokens, f.err }

func newTestEngine(messages *fakeMessages, repo *fakeMemoryRepo, ai *fakeAI, counter TokenCounter) (*Engine, *fakeUsage) {
	cfg := &config.MemoryConfig{
		CoreMemoryMaxTokens: 800,
		DedupMinItems:       5,
		MaintenanceHour:     3,
	}
	usage := &fakeUsage{}
	return NewEngine(cfg, messages, repo, usage, ai, fakePrompts{}, counter), usage
}

func batch(n int) []core.StoredMessage {
	msgs := make([]core.StoredMessage, 0, n)
	for i := 1; i <= n; i++ {
		role := core.RoleUser
		if i%2 == 0 {
			role = core.RoleAssistant
		}
		msgs = append(msgs, core.StoredMessage{
			ID:        int64(i),
			OwnerID:   1,
			Role:      role,
			Content:   "message",
			CreatedAt: time.Date(2026, 3, 9, 12, i, 0, 0, time.UTC),
		})
	}
	return msgs
}

func TestExtractNothingToDo(t *testing.T) {
	messages := &fakeMessages{}
	ai := &fakeAI{}
	engine, _ := newTestEngine(messages, &fakeMemoryRepo{}, ai, fixedCounter{})

	n, err := engine.Extract(context.Background(), 1)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, ai.calls, "no LLM call without unprocessed messages")
	assert.Empty(t, messages.watermarks)
}

func TestExtractSavesItemsAndAdvancesWatermark(t *testing.T) {
	messages := &fakeMessages{unprocessed: batch(4)}
	repo := &fakeMemoryRepo{}
	ai := &fakeAI{fallback: `[
		{"content": "User is training for a half marathon", "category": "project", "importance": 2},
		{"content": "User dislikes early meetings"}
	]`}
	engine, usage := newTestEngine(messages, repo, ai, fixedCounter{})

	n, err := engine.Extract(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, repo.items, 2)
	assert.Equal(t, "extracted", repo.items[0].Source)
	assert.Equal(t, "project", repo.items[0].Category)
	assert.Equal(t, "general", repo.items[1].Category, "missing category defaults")
	assert.Equal(t, 1, repo.items[1].Importance, "missing importance defaults")
	assert.Equal(t, []int64{4}, messages.watermarks)
	assert.Equal(t, []string{"memory_extract"}, usage.purposes)
}

func TestExtractParseFailureStillAdvancesWatermark(t *testing.T) {
	messages := &fakeMessages{unprocessed: batch(3)}
	repo := &fakeMemoryRepo{}
	ai := &fakeAI{fallback: "I couldn't find anything structured to say."}
	engine, _ := newTestEngine(messages, repo, ai, fixedCounter{})

	n, err := engine.Extract(context.Background(), 1)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, repo.items)
	assert.Equal(t, []int64{3}, messages.watermarks,
		"unparseable batch must still count as processed")
}

func TestExtractIdempotent(t *testing.T) {
	messages := &fakeMessages{unprocessed: batch(5)}
	repo := &fakeMemoryRepo{}
	ai := &fakeAI{fallback: `[{"content": "User likes tea"}]`}
	engine, _ := newTestEngine(messages, repo, ai, fixedCounter{})
	ctx := context.Background()

	n, err := engine.Extract(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = engine.Extract(ctx, 1)
	require.NoError(t, err)
	assert.Zero(t, n, "second pass with no new messages extracts nothing")
	assert.Len(t, repo.items, 1)
	assert.Equal(t, 1, ai.calls)
}

func TestExtractTransportErrorLeavesWatermark(t *testing.T) {
	messages := &fakeMessages{unprocessed: batch(3)}
	ai := &fakeAI{err: errors.New("connection refused")}
	engine, _ := newTestEngine(messages, &fakeMemoryRepo{}, ai, fixedCounter{})

	_, err := engine.Extract(context.Background(), 1)
	require.Error(t, err)
	assert.Empty(t, messages.watermarks, "nothing consumed on transport failure")
}

func dedupItems() []core.MemoryItem {
	return []core.MemoryItem{
		{ID: 1, OwnerID: 1, Category: "preference", Content: "User likes green tea", Importance: 1},
		{ID: 2, OwnerID: 1, Category: "preference", Content: "User enjoys drinking green tea", Importance: 2},
		{ID: 3, OwnerID: 1, Category: "preference", Content: "User hates loud bars", Importance: 1},
		{ID: 4, OwnerID: 1, Category: "fact", Content: "User lives in Lisbon", Importance: 2},
		{ID: 5, OwnerID: 1, Category: "fact", Content: "User is based in Lisbon", Importance: 1},
		{ID: 6, OwnerID: 1, Category: "event", Content: "Dentist appointment in April", Importance: 1},
	}
}

func TestDeduplicateSkipsSparseUsers(t *testing.T) {
	repo := &fakeMemoryRepo{items: dedupItems()[:3], nextID: 3}
	ai := &fakeAI{fallback: "[]"}
	engine, _ := newTestEngine(&fakeMessages{}, repo, ai, fixedCounter{})

	n, err := engine.Deduplicate(context.Background(), 1)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, ai.calls, "below the minimum no LLM call is made")
}

func TestDeduplicateMergesPerCategory(t *testing.T) {
	repo := &fakeMemoryRepo{items: dedupItems(), nextID: 6}
	ai := &fakeAI{
		byNeedle: map[string]string{
			"Category: preference": `[{"keep": 1, "delete": [2], "merged_content": "User likes green tea"}]`,
			"Category: fact":       `[{"keep": 4, "delete": [5], "merged_content": "User lives in Lisbon"}]`,
		},
		fallback: "[]",
	}
	engine, usage := newTestEngine(&fakeMessages{}, repo, ai, fixedCounter{})

	n, err := engine.Deduplicate(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Len(t, repo.items, 4)
	// Single-item category never reaches the LLM.
	assert.Equal(t, 2, ai.calls)
	assert.Equal(t, []string{"memory_dedup", "memory_dedup"}, usage.purposes)
}

func TestDeduplicateParseFailureIsolatedPerCategory(t *testing.T) {
	repo := &fakeMemoryRepo{items: dedupItems(), nextID: 6}
	ai := &fakeAI{
		byNeedle: map[string]string{
			"Category: preference": "not json, sorry",
			"Category: fact":       `[{"keep": 4, "delete": [5], "merged_content": "User lives in Lisbon"}]`,
		},
	}
	engine, _ := newTestEngine(&fakeMessages{}, repo, ai, fixedCounter{})

	n, err := engine.Deduplicate(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "the parseable category still merges")
	assert.Len(t, repo.items, 5)
}

func TestDeduplicateIgnoresMalformedOps(t *testing.T) {
	repo := &fakeMemoryRepo{items: dedupItems(), nextID: 6}
	ai := &fakeAI{fallback: `[{"keep": 1}, {"delete": [2]}, {}]`}
	engine, _ := newTestEngine(&fakeMessages{}, repo, ai, fixedCounter{})

	n, err := engine.Deduplicate(context.Background(), 1)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Len(t, repo.items, 6)
}

func TestAuditEmpty(t *testing.T) {
	repo := &fakeMemoryRepo{core: "   "}
	engine, _ := newTestEngine(&fakeMessages{}, repo, &fakeAI{}, fixedCounter{tokens: 999})

	result, err := engine.Audit(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, AuditResult{Status: "empty", Tokens: 0, OverBudget: false}, result)
}

func TestAuditOverBudgetNeverRewrites(t *testing.T) {
	repo := &fakeMemoryRepo{core: "a long core memory"}
	engine, _ := newTestEngine(&fakeMessages{}, repo, &fakeAI{}, fixedCounter{tokens: 950})

	result, err := engine.Audit(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, AuditResult{Status: "over_budget", Tokens: 950, OverBudget: true}, result)
	assert.Equal(t, "a long core memory", repo.core, "audit is advisory only")
}

func TestAuditWithinBudget(t *testing.T) {
	repo := &fakeMemoryRepo{core: "short"}
	engine, _ := newTestEngine(&fakeMessages{}, repo, &fakeAI{}, fixedCounter{tokens: 42})

	result, err := engine.Audit(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, AuditResult{Status: "ok", Tokens: 42, OverBudget: false}, result)
}

func TestRunMaintenanceIsolatesPhaseFailures(t *testing.T) {
	// The LLM is down: extract and dedup fail or no-op, but the audit
	// still reports.
	messages := &fakeMessages{unprocessed: batch(3)}
	repo := &fakeMemoryRepo{items: dedupItems(), nextID: 6, core: "core"}
	ai := &fakeAI{err: errors.New("LLM down")}
	engine, _ := newTestEngine(messages, repo, ai, fixedCounter{tokens: 100})

	result := engine.RunMaintenance(context.Background(), 1)
	assert.Zero(t, result.Extracted)
	assert.Zero(t, result.Deduplicated)
	assert.Equal(t, "ok", result.CoreAudit.Status)
}

func TestRunMaintenanceAggregates(t *testing.T) {
	messages := &fakeMessages{unprocessed: batch(2)}
	repo := &fakeMemoryRepo{items: dedupItems(), nextID: 6, core: "core"}
	ai := &fakeAI{
		byNeedle: map[string]string{
			"Category: preference": `[{"keep": 1, "delete": [2], "merged_content": "User likes green tea"}]`,
			"message":              `[{"content": "User likes tea"}]`,
		},
		fallback: "[]",
	}
	engine, _ := newTestEngine(messages, repo, ai, fixedCounter{tokens: 100})

	result := engine.RunMaintenance(context.Background(), 1)
	assert.Equal(t, 1, result.Extracted)
	assert.Equal(t, 1, result.Deduplicated)
	assert.Equal(t, "ok", result.CoreAudit.Status)
}

package skill

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shikidmsh-rgb/mochibot/internal/core"
)

type fakeTodos struct {
	todos  []core.Todo
	nextID int64
	done   []int64
}

func (f *fakeTodos) Create(ctx context.Context, ownerID int64, task, category string) (int64, error) {
	f.nextID++
	f.todos = append(f.todos, core.Todo{ID: f.nextID, OwnerID: ownerID, Task: task, Category: category})
	return f.nextID, nil
}

func (f *fakeTodos) List(ctx context.Context, ownerID int64, includeDone bool) ([]core.Todo, error) {
	return f.todos, nil
}

func (f *fakeTodos) ActiveCount(ctx context.Context, ownerID int64) (int, error) {
	return len(f.todos), nil
}

func (f *fakeTodos) Complete(ctx context.Context, id int64) error {
	f.done = append(f.done, id)
	return nil
}

type fakeReminders struct {
	pending []core.Reminder
	nextID  int64
	fired   []int64
	created []core.Reminder
}

func (f *fakeReminders) Create(ctx context.Context, ownerID, chatID int64, message string, remindAt time.Time) (int64, error) {
	f.nextID++
	f.created = append(f.created, core.Reminder{ID: f.nextID, OwnerID: ownerID, ChatID: chatID, Message: message, RemindAt: remindAt})
	return f.nextID, nil
}

func (f *fakeReminders) Due(ctx context.Context, now time.Time) ([]core.Reminder, error) {
	return nil, nil
}

func (f *fakeReminders) Upcoming(ctx context.Context, ownerID int64, until time.Time) ([]core.Reminder, error) {
	return f.pending, nil
}

func (f *fakeReminders) MarkFired(ctx context.Context, id int64) error {
	f.fired = append(f.fired, id)
	return nil
}

type fakeMemory struct {
	items  []core.MemoryItem
	nextID int64
	core   string
}

func (f *fakeMemory) SaveItem(ctx context.Context, item core.MemoryItem) (int64, error) {
	f.nextID++
	item.ID = f.nextID
	f.items = append(f.items, item)
	return f.nextID, nil
}

func (f *fakeMemory) AllItems(ctx context.Context, ownerID int64) ([]core.MemoryItem, error) {
	return f.items, nil
}

func (f *fakeMemory) Recall(ctx context.Context, ownerID int64, query, category string, limit int) ([]core.MemoryItem, error) {
	return f.items, nil
}

func (f *fakeMemory) DeleteItems(ctx context.Context, ids []int64) (int, error) { return 0, nil }

func (f *fakeMemory) MergeItems(ctx context.Context, keepID int64, deleteIDs []int64, mergedContent string) error {
	return nil
}

func (f *fakeMemory) CoreMemory(ctx context.Context, ownerID int64) (string, error) {
	return f.core, nil
}

func (f *fakeMemory) UpsertCoreMemory(ctx context.Context, ownerID int64, content string) error {
	f.core = content
	return nil
}

func TestRegistryDispatch(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry()
	r.Register(ctx, NewTodoSkill(&fakeTodos{}))
	r.Register(ctx, NewMemorySkill(&fakeMemory{}))

	res := r.Execute(ctx, Invocation{
		OwnerID:  1,
		ToolName: "manage_todo",
		Args:     map[string]any{"action": "add", "task": "buy milk"},
	})
	assert.True(t, res.Success)
	assert.Contains(t, res.Output, "buy milk")

	res = r.Execute(ctx, Invocation{ToolName: "no_such_tool"})
	assert.False(t, res.Success)
	assert.Contains(t, res.Output, "Unknown tool")
}

type crashingSkill struct{}

func (crashingSkill) Name() string { return "crashing" }

func (crashingSkill) Tools() []core.Tool {
	return []core.Tool{{Type: "function", Function: core.Function{Name: "crash"}}}
}

func (crashingSkill) Execute(ctx context.Context, inv Invocation) Result {
	panic("nil map write")
}

func TestExecuteRecoversPanic(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry()
	r.Register(ctx, crashingSkill{})

	res := r.Execute(ctx, Invocation{ToolName: "crash"})
	assert.False(t, res.Success)
	assert.Contains(t, res.Output, "crashed")
	assert.Contains(t, res.Output, "nil map write")
}

func TestRegistryToolsAggregates(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry()
	r.Register(ctx, NewTodoSkill(&fakeTodos{}))
	r.Register(ctx, NewMemorySkill(&fakeMemory{}))

	tools := r.Tools()
	require.Len(t, tools, 4)
	names := make(map[string]bool)
	for _, tool := range tools {
		names[tool.Function.Name] = true
	}
	assert.True(t, names["manage_todo"])
	assert.True(t, names["save_memory"])
	assert.True(t, names["recall_memory"])
	assert.True(t, names["update_core_memory"])
}

func TestTodoSkillLifecycle(t *testing.T) {
	ctx := context.Background()
	todos := &fakeTodos{}
	s := NewTodoSkill(todos)

	res := s.Execute(ctx, Invocation{OwnerID: 1, ToolName: "manage_todo",
		Args: map[string]any{"action": "add", "task": "water plants"}})
	assert.True(t, res.Success)

	res = s.Execute(ctx, Invocation{OwnerID: 1, ToolName: "manage_todo",
		Args: map[string]any{"action": "list"}})
	assert.Contains(t, res.Output, "water plants")

	res = s.Execute(ctx, Invocation{OwnerID: 1, ToolName: "manage_todo",
		Args: map[string]any{"action": "complete", "todo_id": float64(1)}})
	assert.True(t, res.Success)
	assert.Equal(t, []int64{1}, todos.done)

	res = s.Execute(ctx, Invocation{OwnerID: 1, ToolName: "manage_todo",
		Args: map[string]any{"action": "add"}})
	assert.False(t, res.Success, "add without task fails")
}

func TestReminderSkillCreateParsesLocalTime(t *testing.T) {
	ctx := context.Background()
	loc := time.FixedZone("local", 2*3600)
	repo := &fakeReminders{}
	s := NewReminderSkill(repo, loc)

	res := s.Execute(ctx, Invocation{OwnerID: 1, ChatID: 42, ToolName: "manage_reminder",
		Args: map[string]any{"action": "create", "message": "stretch", "remind_at": "2026-04-01 09:30"}})
	require.True(t, res.Success)
	require.Len(t, repo.created, 1)
	assert.Equal(t, int64(42), repo.created[0].ChatID)
	assert.Equal(t, 9, repo.created[0].RemindAt.Hour())
	assert.Equal(t, loc, repo.created[0].RemindAt.Location())

	res = s.Execute(ctx, Invocation{OwnerID: 1, ToolName: "manage_reminder",
		Args: map[string]any{"action": "create", "message": "x", "remind_at": "next tuesday-ish"}})
	assert.False(t, res.Success)
}

func TestReminderSkillDelete(t *testing.T) {
	repo := &fakeReminders{}
	s := NewReminderSkill(repo, time.UTC)

	res := s.Execute(context.Background(), Invocation{OwnerID: 1, ToolName: "manage_reminder",
		Args: map[string]any{"action": "delete", "reminder_id": "3"}})
	assert.True(t, res.Success)
	assert.Equal(t, []int64{3}, repo.fired)
}

func TestMemorySkillSaveAndCore(t *testing.T) {
	ctx := context.Background()
	repo := &fakeMemory{}
	s := NewMemorySkill(repo)

	res := s.Execute(ctx, Invocation{OwnerID: 1, ToolName: "save_memory",
		Args: map[string]any{"content": "Owner plays bass on weekends"}})
	assert.True(t, res.Success)
	require.Len(t, repo.items, 1)
	assert.Equal(t, "general", repo.items[0].Category)
	assert.Equal(t, "chat", repo.items[0].Source)

	res = s.Execute(ctx, Invocation{OwnerID: 1, ToolName: "update_core_memory",
		Args: map[string]any{"content": "Owner: bass player, weekend gigs."}})
	assert.True(t, res.Success)
	assert.Equal(t, "Owner: bass player, weekend gigs.", repo.core)

	res = s.Execute(ctx, Invocation{OwnerID: 1, ToolName: "save_memory", Args: map[string]any{}})
	assert.False(t, res.Success)
}

func TestIntArgAcceptsNumberAndString(t *testing.T) {
	n, found := intArg(map[string]any{"id": float64(7)}, "id")
	assert.True(t, found)
	assert.Equal(t, int64(7), n)

	n, found = intArg(map[string]any{"id": "12"}, "id")
	assert.True(t, found)
	assert.Equal(t, int64(12), n)

	_, found = intArg(map[string]any{"id": "twelve"}, "id")
	assert.False(t, found)

	_, found = intArg(map[string]any{}, "id")
	assert.False(t, found)
}

package core

import (
	"context"
	"time"
)

// ExtractionMarker prefixes the synthetic system rows that record how far
// memory extraction has progressed. They live in the messages table but are
// not dialogue.
const ExtractionMarker = "[memory_extracted]"

type StoredMessage struct {
	ID        int64     `json:"id"`
	OwnerID   int64     `json:"owner_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// MemoryItem is a Layer-2 memory record: a durable fact extracted from
// conversation or saved by the heartbeat.
type MemoryItem struct {
	ID         int64     `json:"id"`
	OwnerID    int64     `json:"owner_id"`
	Category   string    `json:"category"`
	Content    string    `json:"content"`
	Importance int       `json:"importance"`
	Source     string    `json:"source"`
	Processed  bool      `json:"processed"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type Reminder struct {
	ID       int64     `json:"id"`
	OwnerID  int64     `json:"owner_id"`
	ChatID   int64     `json:"chat_id"`
	Message  string    `json:"message"`
	RemindAt time.Time `json:"remind_at"`
	Fired    bool      `json:"fired"`
}

type Todo struct {
	ID        int64     `json:"id"`
	OwnerID   int64     `json:"owner_id"`
	Task      string    `json:"task"`
	Done      bool      `json:"done"`
	Category  string    `json:"category"`
	CreatedAt time.Time `json:"created_at"`
}

// HabitOverview is one active habit with its streak status.
type HabitOverview struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	StreakDays  int    `json:"streak_days"`
	LastLogged  string `json:"last_logged,omitempty"`
	LoggedToday bool   `json:"logged_today"`
}

type DailyCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

type UsageRecord struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	ToolCalls        int
	Model            string
	Purpose          string
}

// UsageWindow aggregates LLM spend over a time range.
type UsageWindow struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	Calls            int
}

type ModelUsage struct {
	Model       string
	TotalTokens int
	Calls       int
}

type PurposeUsage struct {
	Purpose     string
	TotalTokens int
}

// UsageSummary backs the /cost command. Breakdowns cover the current
// month and are sorted by total tokens, highest first.
type UsageSummary struct {
	Today     UsageWindow
	Month     UsageWindow
	ByModel   []ModelUsage
	ByPurpose []PurposeUsage
}

// HeartbeatEntry is one row of the heartbeat audit trail.
type HeartbeatEntry struct {
	State     string
	Action    string
	Summary   string
	CreatedAt time.Time
}

type MessagesRepository interface {
	AddMessage(ctx context.Context, ownerID int64, role, content string) (int64, error)
	GetRecent(ctx context.Context, ownerID int64, limit int) ([]StoredMessage, error)
	LastUserMessageTime(ctx context.Context, ownerID int64) (time.Time, bool, error)
	CountUserMessagesToday(ctx context.Context, ownerID int64, today string) (int, error)
	DailyUserCounts(ctx context.Context, ownerID int64, days int) ([]DailyCount, error)
	// GetUnprocessed returns messages after the latest extraction marker,
	// oldest first.
	GetUnprocessed(ctx context.Context, ownerID int64) ([]StoredMessage, error)
	// MarkProcessed appends an extraction marker covering ids up to upToID.
	MarkProcessed(ctx context.Context, ownerID, upToID int64) error
}

type MemoryRepository interface {
	SaveItem(ctx context.Context, item MemoryItem) (int64, error)
	AllItems(ctx context.Context, ownerID int64) ([]MemoryItem, error)
	Recall(ctx context.Context, ownerID int64, query, category string, limit int) ([]MemoryItem, error)
	DeleteItems(ctx context.Context, ids []int64) (int, error)
	// MergeItems rewrites the kept item's content and deletes the rest.
	MergeItems(ctx context.Context, keepID int64, deleteIDs []int64, mergedContent string) error
	CoreMemory(ctx context.Context, ownerID int64) (string, error)
	UpsertCoreMemory(ctx context.Context, ownerID int64, content string) error
}

type RemindersRepository interface {
	Create(ctx context.Context, ownerID, chatID int64, message string, remindAt time.Time) (int64, error)
	Due(ctx context.Context, now time.Time) ([]Reminder, error)
	Upcoming(ctx context.Context, ownerID int64, until time.Time) ([]Reminder, error)
	MarkFired(ctx context.Context, id int64) error
}

type TodosRepository interface {
	Create(ctx context.Context, ownerID int64, task, category string) (int64, error)
	List(ctx context.Context, ownerID int64, includeDone bool) ([]Todo, error)
	ActiveCount(ctx context.Context, ownerID int64) (int, error)
	Complete(ctx context.Context, id int64) error
}

type HabitsRepository interface {
	Create(ctx context.Context, ownerID int64, name, description string) (int64, error)
	Log(ctx context.Context, ownerID int64, name string) (bool, error)
	Overview(ctx context.Context, ownerID int64, today string) ([]HabitOverview, error)
}

type HeartbeatLogRepository interface {
	Log(ctx context.Context, state, action, summary string) error
	Last(ctx context.Context) (HeartbeatEntry, bool, error)
}

type UsageRepository interface {
	Log(ctx context.Context, rec UsageRecord) error
	Summary(ctx context.Context) (UsageSummary, error)
}

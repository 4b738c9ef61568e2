package skill

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shikidmsh-rgb/mochibot/internal/core"
	"github.com/shikidmsh-rgb/mochibot/pkg/log"
)

// TodoSkill manages the owner's todo list.
type TodoSkill struct {
	todos core.TodosRepository
}

func NewTodoSkill(todos core.TodosRepository) *TodoSkill {
	return &TodoSkill{todos: todos}
}

func (s *TodoSkill) Name() string { return "todo" }

func (s *TodoSkill) Tools() []core.Tool {
	return []core.Tool{{
		Type: "function",
		Function: core.Function{
			Name:        "manage_todo",
			Description: "Add, list, or complete todos for the owner.",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"action": {"type": "string", "enum": ["add", "list", "complete"], "description": "What to do"},
					"task": {"type": "string", "description": "Task description (add)"},
					"category": {"type": "string", "description": "Optional category (add)"},
					"todo_id": {"type": "integer", "description": "Todo id (complete)"}
				},
				"required": ["action"]
			}`),
		},
	}}
}

func (s *TodoSkill) Execute(ctx context.Context, inv Invocation) Result {
	switch stringArg(inv.Args, "action") {
	case "add":
		task := stringArg(inv.Args, "task")
		if task == "" {
			return fail("Need a task description.")
		}
		id, err := s.todos.Create(ctx, inv.OwnerID, task, stringArg(inv.Args, "category"))
		if err != nil {
			log.FromCtx(ctx).Error().Err(err).Msg("create todo failed")
			return fail("Couldn't save the todo.")
		}
		return ok("Todo #%d added: %s", id, task)

	case "list", "":
		todos, err := s.todos.List(ctx, inv.OwnerID, false)
		if err != nil {
			log.FromCtx(ctx).Error().Err(err).Msg("list todos failed")
			return fail("Couldn't load todos.")
		}
		if len(todos) == 0 {
			return ok("No pending todos. All clear!")
		}
		var sb strings.Builder
		fmt.Fprintf(&sb, "%d todos:\n", len(todos))
		for _, t := range todos {
			fmt.Fprintf(&sb, "- ⬜ #%d %s\n", t.ID, t.Task)
		}
		return ok("%s", strings.TrimRight(sb.String(), "\n"))

	case "complete":
		id, found := intArg(inv.Args, "todo_id")
		if !found {
			return fail("Need todo_id.")
		}
		if err := s.todos.Complete(ctx, id); err != nil {
			log.FromCtx(ctx).Error().Err(err).Msg("complete todo failed")
			return fail("Couldn't complete todo #%d.", id)
		}
		return ok("Todo #%d completed!", id)
	}
	return fail("Unknown action: %s", stringArg(inv.Args, "action"))
}

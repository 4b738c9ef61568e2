package skill

import (
	"context"
	"fmt"

	"github.com/shikidmsh-rgb/mochibot/internal/core"
	"github.com/shikidmsh-rgb/mochibot/pkg/log"
)

// Invocation carries everything a skill needs to run a tool call. Skills
// don't know or care who triggered them.
type Invocation struct {
	OwnerID  int64
	ChatID   int64
	ToolName string
	Args     map[string]any
}

// Result is what a skill hands back to the model.
type Result struct {
	Output  string
	Success bool
}

func ok(format string, a ...any) Result {
	return Result{Output: fmt.Sprintf(format, a...), Success: true}
}

func fail(format string, a ...any) Result {
	return Result{Output: fmt.Sprintf(format, a...)}
}

// Skill exposes one or more tools to the conversational core.
type Skill interface {
	Name() string
	Tools() []core.Tool
	Execute(ctx context.Context, inv Invocation) Result
}

// Registry is the static skill table. Skills register once at startup;
// there is no discovery step.
type Registry struct {
	skills []Skill
	byTool map[string]Skill
}

func NewRegistry() *Registry {
	return &Registry{byTool: make(map[string]Skill)}
}

func (r *Registry) Register(ctx context.Context, s Skill) {
	r.skills = append(r.skills, s)
	var names []string
	for _, t := range s.Tools() {
		r.byTool[t.Function.Name] = s
		names = append(names, t.Function.Name)
	}
	log.FromCtx(ctx).Info().
		Str("skill", s.Name()).
		Strs("tools", names).
		Msg("skill registered")
}

// Tools returns every registered tool schema for the LLM tools array.
func (r *Registry) Tools() []core.Tool {
	var tools []core.Tool
	for _, s := range r.skills {
		tools = append(tools, s.Tools()...)
	}
	return tools
}

// Execute dispatches a tool call to its skill. Failures come back as
// unsuccessful results, never as panics into the chat loop.
func (r *Registry) Execute(ctx context.Context, inv Invocation) (res Result) {
	logger := log.FromCtx(ctx)

	s, found := r.byTool[inv.ToolName]
	if !found {
		logger.Warn().Str("tool", inv.ToolName).Msg("unknown tool requested")
		return fail("Unknown tool: %s", inv.ToolName)
	}

	logger.Info().Str("skill", s.Name()).Str("tool", inv.ToolName).Msg("skill triggered")
	defer func() {
		if rec := recover(); rec != nil {
			logger.Error().Interface("panic", rec).Str("skill", s.Name()).Msg("skill panicked")
			res = fail("Tool %s crashed: %v", inv.ToolName, rec)
		}
	}()
	return s.Execute(ctx, inv)
}

func stringArg(args map[string]any, key string) string {
	v, _ := args[key].(string)
	return v
}

// intArg accepts both JSON numbers and numeric strings; models emit both.
func intArg(args map[string]any, key string) (int64, bool) {
	switch v := args[key].(type) {
	case float64:
		return int64(v), true
	case int64:
		return v, true
	case string:
		var n int64
		if _, err := fmt.Sscanf(v, "%d", &n); err == nil {
			return n, true
		}
	}
	return 0, false
}

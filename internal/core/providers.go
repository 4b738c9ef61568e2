package core

import "context"

type AIProvider interface {
	Chat(ctx context.Context, history []Message, tools []Tool, opts ChatOptions) (ChatResult, error)
}

// Sender delivers text to the owner through the active transport.
type Sender interface {
	Send(ctx context.Context, ownerID int64, text string) error
}

// Prompts serves prompt templates by name. Persona is a personality.md
// section ("Chat", "Think", "Report") prepended to the template.
type Prompts interface {
	Get(name string) string
	GetWithPersona(name, persona string) string
}

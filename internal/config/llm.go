package config

import (
	"context"

	"github.com/caarlos0/env/v11"
	"github.com/shikidmsh-rgb/mochibot/pkg/log"
)

// LLMConfig describes one chat-completion endpoint.
type LLMConfig struct {
	Provider string
	APIKey   string
	Model    string
	BaseURL  string
}

type chatEnv struct {
	Provider string `env:"CHAT_PROVIDER" envDefault:"openai"`
	APIKey   string `env:"CHAT_API_KEY"`
	Model    string `env:"CHAT_MODEL,required,notEmpty"`
	BaseURL  string `env:"CHAT_BASE_URL"`
}

type thinkEnv struct {
	Provider string `env:"THINK_PROVIDER"`
	APIKey   string `env:"THINK_API_KEY"`
	Model    string `env:"THINK_MODEL"`
	BaseURL  string `env:"THINK_BASE_URL"`
}

func NewChatLLMConfig(ctx context.Context) *LLMConfig {
	c := &chatEnv{}
	if err := env.Parse(c); err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse Chat LLM config")
	}
	return &LLMConfig{Provider: c.Provider, APIKey: c.APIKey, Model: c.Model, BaseURL: c.BaseURL}
}

// NewThinkLLMConfig returns the think-model config. Unset fields fall back
// to the chat model so a single configured endpoint serves both purposes.
func NewThinkLLMConfig(ctx context.Context, chat *LLMConfig) *LLMConfig {
	c := &thinkEnv{}
	if err := env.Parse(c); err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse Think LLM config")
	}
	out := &LLMConfig{Provider: c.Provider, APIKey: c.APIKey, Model: c.Model, BaseURL: c.BaseURL}
	if out.Provider == "" {
		out.Provider = chat.Provider
	}
	if out.APIKey == "" {
		out.APIKey = chat.APIKey
	}
	if out.Model == "" {
		out.Model = chat.Model
	}
	if out.BaseURL == "" {
		out.BaseURL = chat.BaseURL
	}
	return out
}

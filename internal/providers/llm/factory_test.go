package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shikidmsh-rgb/mochibot/internal/config"
)

func TestNewProvider(t *testing.T) {
	tests := []struct {
		name     string
		provider string
		baseURL  string
		wantErr  bool
	}{
		{name: "openai", provider: "openai"},
		{name: "openrouter", provider: "openrouter"},
		{name: "ollama", provider: "ollama", baseURL: "http://localhost:11434"},
		{name: "custom", provider: "custom", baseURL: "http://llm.internal:8080"},
		{name: "custom without base url", provider: "custom", wantErr: true},
		{name: "unknown", provider: "carrier-pigeon", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewProvider(context.Background(), &config.LLMConfig{
				Provider: tt.provider,
				APIKey:   "key",
				Model:    "model",
				BaseURL:  tt.baseURL,
			})
			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, p)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, p)
		})
	}
}

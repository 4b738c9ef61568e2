package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/shikidmsh-rgb/mochibot/internal/core"
	"github.com/shikidmsh-rgb/mochibot/pkg/retry"
)

type OpenAICompatible struct {
	baseProvider
	authHeader   string
	authPrefix   string
	extraHeaders map[string]string
	retrier      *retry.Retrier
}

type OpenAICompatibleConfig struct {
	BaseURL      string
	APIKey       string
	Model        string
	AuthHeader   string // e.g., "Authorization"
	AuthPrefix   string // e.g., "Bearer "
	ExtraHeaders map[string]string
}

func NewOpenAICompatible(cfg OpenAICompatibleConfig) *OpenAICompatible {
	return &OpenAICompatible{
		baseProvider: newBaseProvider(cfg.BaseURL, cfg.APIKey, cfg.Model),
		authHeader:   cfg.AuthHeader,
		authPrefix:   cfg.AuthPrefix,
		extraHeaders: cfg.ExtraHeaders,
		retrier:      retry.NewDefaultRetrier(),
	}
}

func (o *OpenAICompatible) Chat(ctx context.Context, history []core.Message, tools []core.Tool, opts core.ChatOptions) (core.ChatResult, error) {
	payload := map[string]any{
		"model":    o.model,
		"messages": history,
	}
	if len(tools) > 0 {
		payload["tools"] = tools
		payload["tool_choice"] = "auto"
	}
	if opts.Temperature > 0 {
		payload["temperature"] = opts.Temperature
	}
	if opts.MaxTokens > 0 {
		payload["max_tokens"] = opts.MaxTokens
	}

	headers := make(map[string]string)
	if o.authHeader != "" && o.apiKey != "" {
		headers[o.authHeader] = o.authPrefix + o.apiKey
	}
	for k, v := range o.extraHeaders {
		headers[k] = v
	}

	var result core.ChatResult
	err := o.retrier.Do(ctx, func() error {
		resp, err := o.doRequest(ctx, http.MethodPost, "/v1/chat/completions", payload, headers)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		result, err = parseOpenAIResponse(resp)
		return err
	})
	if err != nil {
		return core.ChatResult{}, err
	}
	if result.Model == "" {
		result.Model = o.model
	}
	return result, nil
}

func parseOpenAIResponse(resp *http.Response) (core.ChatResult, error) {
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return core.ChatResult{}, fmt.Errorf("read body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return core.ChatResult{}, fmt.Errorf("http %d: %s", resp.StatusCode, string(data))
	}

	var parsed struct {
		Model   string `json:"model"`
		Choices []struct {
			Message core.Message `json:"message"`
		} `json:"choices"`
		Usage core.Usage `json:"usage"`
	}
	if err := json.Unmarshal(data, &parsed); err != nil {
		return core.ChatResult{}, fmt.Errorf("decode: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return core.ChatResult{}, fmt.Errorf("empty choices: %s", string(data))
	}

	return core.ChatResult{
		Message: parsed.Choices[0].Message,
		Usage:   parsed.Usage,
		Model:   parsed.Model,
	}, nil
}

// Package providers wraps the OpenAI-compatible chat completion API used
// for keyword-triggered question answering.
package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/nextlevelbuilder/chatclaw/internal/config"
)

// OpenAIProvider talks to any OpenAI-compatible endpoint (OpenAI, Groq,
// OpenRouter, DeepSeek, VLLM, etc.). Responses are non-streaming: the
// answer is pasted into a chat box in one piece anyway.
type OpenAIProvider struct {
	apiKey       string
	apiBase      string
	model        string
	maxTokens    int
	temperature  float64
	systemPrompt string
	client       *http.Client
	retryConfig  RetryConfig
}

func NewOpenAIProvider(cfg config.AIConfig) *OpenAIProvider {
	apiBase := cfg.APIBase
	if apiBase == "" {
		apiBase = "https://api.openai.com/v1"
	}
	apiBase = strings.TrimRight(apiBase, "/")

	return &OpenAIProvider{
		apiKey:       cfg.APIKey,
		apiBase:      apiBase,
		model:        cfg.Model,
		maxTokens:    cfg.MaxTokens,
		temperature:  cfg.Temperature,
		systemPrompt: cfg.SystemPrompt,
		client:       &http.Client{Timeout: 120 * time.Second},
		retryConfig:  DefaultRetryConfig(),
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Ask sends one question under the configured system prompt and returns
// the trimmed answer.
func (p *OpenAIProvider) Ask(ctx context.Context, question string) (string, error) {
	return p.AskWith(ctx, p.systemPrompt, question, p.maxTokens, p.temperature)
}

// AskWith is Ask with an explicit system prompt and generation limits.
func (p *OpenAIProvider) AskWith(ctx context.Context, systemPrompt, userPrompt string, maxTokens int, temperature float64) (string, error) {
	msgs := make([]chatMessage, 0, 2)
	if systemPrompt != "" {
		msgs = append(msgs, chatMessage{Role: "system", Content: systemPrompt})
	}
	msgs = append(msgs, chatMessage{Role: "user", Content: userPrompt})

	body := chatRequest{
		Model:       p.model,
		Messages:    msgs,
		MaxTokens:   maxTokens,
		Temperature: temperature,
	}

	return RetryDo(ctx, p.retryConfig, func() (string, error) {
		respBody, err := p.doRequest(ctx, body)
		if err != nil {
			return "", err
		}
		defer respBody.Close()

		var resp chatResponse
		if err := json.NewDecoder(respBody).Decode(&resp); err != nil {
			return "", fmt.Errorf("openai: decode response: %w", err)
		}
		if resp.Error != nil {
			return "", fmt.Errorf("openai: %s", resp.Error.Message)
		}
		if len(resp.Choices) == 0 {
			return "", fmt.Errorf("openai: empty choices")
		}
		answer := strings.TrimSpace(resp.Choices[0].Message.Content)
		if answer == "" {
			return "", fmt.Errorf("openai: empty answer (finish_reason=%s)", resp.Choices[0].FinishReason)
		}
		return answer, nil
	})
}

func (p *OpenAIProvider) doRequest(ctx context.Context, body chatRequest) (io.ReadCloser, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("openai: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", p.apiBase+"/chat/completions", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("openai: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("openai: request failed: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, &HTTPError{
			Status:     resp.StatusCode,
			Body:       string(respBody),
			RetryAfter: ParseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}
	return resp.Body, nil
}

// Package llm contains clients for the language-model decision services.
// Each client takes a fully built prompt and returns the raw model reply;
// envelope extraction happens downstream in the directive package.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/danya2271/LocalLLMTradingBot/internal/core"
	apphttp "github.com/danya2271/LocalLLMTradingBot/pkg/http"
)

// OllamaClient talks to a local Ollama server via its chat API.
type OllamaClient struct {
	client *apphttp.Client
	model  string
	logger core.ILogger
}

// NewOllamaClient creates a decision client backed by a local Ollama server
func NewOllamaClient(baseURL, model string, timeout time.Duration, logger core.ILogger) *OllamaClient {
	return &OllamaClient{
		client: apphttp.NewClient(baseURL, timeout),
		model:  model,
		logger: logger.WithField("component", "ollama_client"),
	}
}

// Name returns the provider name
func (c *OllamaClient) Name() string {
	return "ollama"
}

// Decide sends the prompt and returns the raw model reply
func (c *OllamaClient) Decide(ctx context.Context, prompt string) (string, error) {
	reqBody := map[string]interface{}{
		"model": c.model,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
		"stream": false,
	}

	start := time.Now()
	respBody, err := c.client.Post(ctx, "/api/chat", reqBody)
	if err != nil {
		return "", fmt.Errorf("ollama chat request failed: %w", err)
	}

	var resp struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	}
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return "", fmt.Errorf("failed to parse ollama response: %w", err)
	}
	if resp.Message.Content == "" {
		return "", fmt.Errorf("ollama returned an empty reply")
	}

	c.logger.Debug("Received model reply",
		"model", c.model,
		"elapsed", time.Since(start).String(),
		"chars", len(resp.Message.Content))
	return resp.Message.Content, nil
}

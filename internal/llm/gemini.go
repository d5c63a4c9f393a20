package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/danya2271/LocalLLMTradingBot/internal/core"
	apphttp "github.com/danya2271/LocalLLMTradingBot/pkg/http"
)

// fallbackReply is returned when the Gemini API is unreachable, so the cycle
// still receives a valid envelope and pauses instead of aborting.
const fallbackReply = `{"reasoning":"API Error","actions":["WAIT[60]"]}`

const defaultGeminiBaseURL = "https://generativelanguage.googleapis.com"

// GeminiClient talks to the Google Gemini generateContent API.
type GeminiClient struct {
	client *apphttp.Client
	model  string
	apiKey string
	logger core.ILogger
}

// NewGeminiClient creates a decision client backed by the Gemini API. An
// empty baseURL selects the production endpoint.
func NewGeminiClient(baseURL, model, apiKey string, timeout time.Duration, logger core.ILogger) *GeminiClient {
	if baseURL == "" {
		baseURL = defaultGeminiBaseURL
	}
	return &GeminiClient{
		client: apphttp.NewClient(baseURL, timeout),
		model:  model,
		apiKey: apiKey,
		logger: logger.WithField("component", "gemini_client"),
	}
}

// Name returns the provider name
func (c *GeminiClient) Name() string {
	return "gemini"
}

// Decide sends the prompt and returns the raw model reply. API failures
// degrade to a wait envelope rather than an error.
func (c *GeminiClient) Decide(ctx context.Context, prompt string) (string, error) {
	reqBody := map[string]interface{}{
		"contents": []map[string]interface{}{
			{"parts": []map[string]string{{"text": prompt}}},
		},
	}

	path := fmt.Sprintf("/v1beta/models/%s:generateContent?key=%s", c.model, c.apiKey)
	respBody, err := c.client.Post(ctx, path, reqBody)
	if err != nil {
		c.logger.Error("Gemini request failed, degrading to wait", "error", err)
		return fallbackReply, nil
	}

	var resp struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.Unmarshal(respBody, &resp); err != nil {
		c.logger.Error("Failed to parse Gemini response, degrading to wait", "error", err)
		return fallbackReply, nil
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		c.logger.Error("Gemini returned no candidates, degrading to wait")
		return fallbackReply, nil
	}

	return resp.Candidates[0].Content.Parts[0].Text, nil
}

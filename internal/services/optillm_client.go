package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// OptiLLMClient is an HTTP implementation of the GenerationClient interface,
// speaking the OpenAI-compatible chat-completions dialect of an OptiLLM proxy.
type OptiLLMClient struct {
	url          string
	apiKey       string
	defaultModel string
	httpClient   *http.Client
}

// NewOptiLLMClient creates a new OptiLLMClient.
func NewOptiLLMClient(url, apiKey, defaultModel string, timeout time.Duration) *OptiLLMClient {
	if defaultModel == "" {
		defaultModel = "gpt-4o"
	}
	return &OptiLLMClient{
		url:          url,
		apiKey:       apiKey,
		defaultModel: defaultModel,
		httpClient:   &http.Client{Timeout: timeout},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Complete runs a prompt through the proxy. Techniques are applied by the
// proxy itself, selected through the model slug ("moa&cot_reflection-gpt-4o").
func (c *OptiLLMClient) Complete(ctx context.Context, model string, techniques []string, prompt string) (string, error) {
	if model == "" {
		model = c.defaultModel
	}
	slug := model
	if len(techniques) > 0 {
		slug = strings.Join(techniques, "&") + "-" + model
	}

	body, err := json.Marshal(chatCompletionRequest{
		Model:    slug,
		Messages: []chatMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url+"/v1/chat/completions", bytes.NewBuffer(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("generation request failed: %w", err)
	}
	defer resp.Body.Close()

	var completion chatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		return "", fmt.Errorf("failed to decode generation response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		if completion.Error != nil {
			return "", fmt.Errorf("generation failed: %s (status %d)", completion.Error.Message, resp.StatusCode)
		}
		return "", fmt.Errorf("generation failed: status code %d", resp.StatusCode)
	}
	if len(completion.Choices) == 0 || completion.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("generation returned an empty response")
	}

	return completion.Choices[0].Message.Content, nil
}

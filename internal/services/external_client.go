package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// GPTZeroClient is an HTTP implementation of the DetectorClient interface.
// API docs: https://gptzero.me/docs/api-reference
type GPTZeroClient struct {
	url        string
	apiKey     string
	httpClient *http.Client
}

// NewGPTZeroClient creates a new GPTZeroClient.
func NewGPTZeroClient(url, apiKey string) *GPTZeroClient {
	return &GPTZeroClient{
		url:        url,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}
}

type gptZeroRequest struct {
	Document string `json:"document"`
	Version  string `json:"version"`
}

type gptZeroResponse struct {
	Documents []struct {
		CompletelyGeneratedProb float64 `json:"completely_generated_prob"`
		AverageGeneratedProb    float64 `json:"average_generated_prob"`
		Class                   string  `json:"class"`
		SentenceCount           int     `json:"sentence_count"`
	} `json:"documents"`
}

// Score classifies text and returns a structured likelihood summary.
func (c *GPTZeroClient) Score(ctx context.Context, text string) (*DetectionResult, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("gptzero api key not configured")
	}

	body, err := json.Marshal(gptZeroRequest{Document: text, Version: "2024-01-09"})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url+"/v2/predict/text", bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("detection request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("detection failed: status code %d", resp.StatusCode)
	}

	var parsed gptZeroResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode detection response: %w", err)
	}
	if len(parsed.Documents) == 0 {
		return nil, fmt.Errorf("detection returned no documents")
	}

	doc := parsed.Documents[0]
	return &DetectionResult{
		AIProbability:    doc.CompletelyGeneratedProb,
		OverallClass:     doc.Class,
		AverageGenerated: doc.AverageGeneratedProb,
		SentenceCount:    doc.SentenceCount,
	}, nil
}

// HTTPHumanizerClient is an HTTP implementation of the HumanizerClient
// interface against an external humanization service. Runs can take minutes,
// so the client timeout is configured separately from other collaborators.
type HTTPHumanizerClient struct {
	url        string
	apiKey     string
	httpClient *http.Client
}

// NewHTTPHumanizerClient creates a new HTTPHumanizerClient.
func NewHTTPHumanizerClient(url, apiKey string, timeout time.Duration) *HTTPHumanizerClient {
	return &HTTPHumanizerClient{
		url:        url,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type humanizeRequest struct {
	Text       string         `json:"text"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

type humanizeResponse struct {
	HumanizedText string `json:"humanized_text"`
	Error         string `json:"error,omitempty"`
}

// Transform rewrites text to read more naturally while preserving content.
func (c *HTTPHumanizerClient) Transform(ctx context.Context, text string, parameters map[string]any) (string, error) {
	body, err := json.Marshal(humanizeRequest{Text: text, Parameters: parameters})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url+"/humanize", bytes.NewBuffer(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("humanization request failed: %w", err)
	}
	defer resp.Body.Close()

	var parsed humanizeResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("failed to decode humanization response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		if parsed.Error != "" {
			return "", fmt.Errorf("humanization failed: %s (status %d)", parsed.Error, resp.StatusCode)
		}
		return "", fmt.Errorf("humanization failed: status code %d", resp.StatusCode)
	}
	if parsed.HumanizedText == "" {
		return "", fmt.Errorf("humanization returned empty text")
	}

	return parsed.HumanizedText, nil
}

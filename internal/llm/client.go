package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/steadfast-labs/coverdocs/internal/models"
)

// HandshakeError is a non-success answer to the completion request
// before any streaming started. Nothing has been written downstream yet
// when it is returned.
type HandshakeError struct {
	StatusCode int
	Body       string
}

func (e *HandshakeError) Error() string {
	return fmt.Sprintf("inference backend returned status %d: %s", e.StatusCode, e.Body)
}

// Client talks to the OpenAI-compatible inference backend. Shared across
// requests; it keeps no per-request state.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	logger     *logrus.Logger
}

func NewClient(baseURL, apiKey, model string, logger *logrus.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		httpClient: &http.Client{
			// Generous: covers the whole token stream, not one read.
			Timeout: 300 * time.Second,
		},
		logger: logger,
	}
}

// OpenStream issues the streaming completion request and hands back the
// raw event-stream body once the handshake succeeded. The caller owns
// closing the body.
func (c *Client) OpenStream(ctx context.Context, messages []models.ChatMessage) (io.ReadCloser, error) {
	resp, err := c.post(ctx, chatCompletionRequest{
		Model:    c.model,
		Messages: messages,
		Stream:   true,
	})
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// Complete runs one non-streamed completion. Only used for the startup
// model warm-up.
func (c *Client) Complete(ctx context.Context, messages []models.ChatMessage) (string, error) {
	resp, err := c.post(ctx, chatCompletionRequest{
		Model:    c.model,
		Messages: messages,
		Stream:   false,
	})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var completion chatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		return "", fmt.Errorf("failed to decode completion response: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("completion response carried no choices")
	}
	return completion.Choices[0].Message.Content, nil
}

func (c *Client) post(ctx context.Context, payload chatCompletionRequest) (*http.Response, error) {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal completion request: %w", err)
	}

	url := c.baseURL + "/v1/chat/completions"
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	c.logger.WithFields(logrus.Fields{
		"url":      url,
		"model":    payload.Model,
		"stream":   payload.Stream,
		"messages": len(payload.Messages),
	}).Debug("Making inference backend request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("inference request failed: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, &HandshakeError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	return resp, nil
}

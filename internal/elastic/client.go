package elastic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// APIError is a non-2xx answer from the search backend. Callers use the
// status code and body to tell retryable conditions (timeouts, model
// warm-up) from hard failures.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("search backend returned status %d: %s", e.StatusCode, e.Body)
}

// IsIndexMissing reports whether the failure was caused by the target
// index not existing yet.
func (e *APIError) IsIndexMissing() bool {
	return e.StatusCode == http.StatusNotFound && strings.Contains(e.Body, "index_not_found_exception")
}

// IsRetryable reports whether the caller should be told to retry: request
// timeouts and model warm-up both heal on their own.
func (e *APIError) IsRetryable() bool {
	switch e.StatusCode {
	case http.StatusRequestTimeout, http.StatusTooManyRequests, http.StatusServiceUnavailable:
		return true
	}
	return strings.Contains(e.Body, "model_not_ready") ||
		strings.Contains(e.Body, "timed out while waiting for model")
}

// IsTimeout reports whether err is a transport-level timeout reaching the
// search backend: the shared http.Client deadline or a context deadline
// expiring before the backend answered. Those never produce an APIError
// (there is no response) but are just as retryable as a server-signaled
// timeout.
func IsTimeout(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *logrus.Logger
}

func NewClient(baseURL, apiKey string, logger *logrus.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		logger: logger,
	}
}

// Search runs a composed query against an index.
func (c *Client) Search(ctx context.Context, index string, body map[string]interface{}) (*SearchResponse, error) {
	var response SearchResponse
	endpoint := fmt.Sprintf("/%s/_search", url.PathEscape(index))
	if err := c.makeRequest(ctx, "POST", endpoint, body, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

// Index writes one document. The backend assigns the document ID.
func (c *Client) Index(ctx context.Context, index string, doc interface{}) error {
	var response IndexResponse
	endpoint := fmt.Sprintf("/%s/_doc", url.PathEscape(index))
	if err := c.makeRequest(ctx, "POST", endpoint, doc, &response); err != nil {
		return err
	}
	c.logger.WithFields(logrus.Fields{
		"index":  index,
		"doc_id": response.ID,
		"result": response.Result,
	}).Debug("Document indexed")
	return nil
}

// ClusterHealth probes the cluster health endpoint.
func (c *Client) ClusterHealth(ctx context.Context) (*ClusterHealth, error) {
	var health ClusterHealth
	if err := c.makeRequest(ctx, "GET", "/_cluster/health", nil, &health); err != nil {
		return nil, err
	}
	return &health, nil
}

func (c *Client) makeRequest(ctx context.Context, method, endpoint string, payload interface{}, result interface{}) error {
	fullURL := c.baseURL + endpoint

	var body io.Reader
	var contentLength int

	if payload != nil {
		jsonData, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal payload: %w", err)
		}
		body = bytes.NewBuffer(jsonData)
		contentLength = len(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if c.apiKey != "" {
		req.Header.Set("Authorization", "ApiKey "+c.apiKey)
	}
	req.Header.Set("Content-Type", "application/json")

	c.logger.WithFields(logrus.Fields{
		"method":   method,
		"url":      fullURL,
		"has_body": payload != nil,
		"size":     contentLength,
	}).Debug("Making search backend request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	c.logger.WithFields(logrus.Fields{
		"status_code":   resp.StatusCode,
		"method":        method,
		"url":           fullURL,
		"response_size": len(responseBody),
	}).Debug("Search backend response received")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Body: string(responseBody)}
	}

	if result != nil && len(responseBody) > 0 {
		if err := json.Unmarshal(responseBody, result); err != nil {
			return fmt.Errorf("failed to unmarshal response: %w", err)
		}
	}

	return nil
}

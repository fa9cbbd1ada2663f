package elastic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Search(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "/policy-docs/_search", r.URL.Path)
		assert.Equal(t, "ApiKey test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Contains(t, body, "retriever")

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"took": 12,
			"hits": {
				"total": {"value": 2, "relation": "eq"},
				"hits": [
					{"_id": "doc-1", "_score": 1.5, "_source": {"title": "Flood coverage"}, "highlight": {"content": ["<em>flood</em> damage"]}},
					{"_id": "doc-2", "_score": 0.9, "_source": {"title": "Fire coverage"}}
				]
			}
		}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key", logrus.New())

	resp, err := client.Search(context.Background(), "policy-docs", map[string]interface{}{
		"retriever": map[string]interface{}{},
	})
	require.NoError(t, err)
	assert.Equal(t, 12, resp.Took)
	assert.Equal(t, 2, resp.Hits.Total.Value)
	require.Len(t, resp.Hits.Hits, 2)
	assert.Equal(t, "doc-1", resp.Hits.Hits[0].ID)
	assert.Equal(t, []string{"<em>flood</em> damage"}, resp.Hits.Hits[0].Highlight["content"])
	assert.Nil(t, resp.Hits.Hits[1].Highlight)
}

func TestClient_Index(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "/search-usage/_doc", r.URL.Path)

		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"_index": "search-usage", "_id": "abc", "result": "created"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key", logrus.New())

	err := client.Index(context.Background(), "search-usage", map[string]interface{}{
		"event_type": "query",
	})
	require.NoError(t, err)
}

func TestClient_ClusterHealth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "GET", r.Method)
		assert.Equal(t, "/_cluster/health", r.URL.Path)

		w.Write([]byte(`{"cluster_name": "docs", "status": "yellow", "number_of_nodes": 1}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "", logrus.New())

	health, err := client.ClusterHealth(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "yellow", health.Status)
	assert.Equal(t, 1, health.NumberOfNodes)
}

func TestClient_NoAPIKeyOmitsAuthHeader(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		w.Write([]byte(`{"status": "green"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "", logrus.New())
	_, err := client.ClusterHealth(context.Background())
	require.NoError(t, err)
}

func TestClient_ErrorHandling(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error": {"type": "index_not_found_exception", "reason": "no such index"}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key", logrus.New())

	err := client.Index(context.Background(), "missing", map[string]interface{}{})
	require.Error(t, err)

	apiErr, ok := err.(*APIError)
	require.True(t, ok)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.True(t, apiErr.IsIndexMissing())
	assert.False(t, apiErr.IsRetryable())
}

func TestIsTimeout_TransportDeadline(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte(`{"took": 1, "hits": {"total": {"value": 0}, "hits": []}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "", logrus.New())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := client.Search(ctx, "policy-docs", map[string]interface{}{})
	require.Error(t, err)
	assert.True(t, IsTimeout(err), "a hung backend must classify as a timeout")

	// No response was received, so there is no APIError to inspect.
	var apiErr *APIError
	assert.False(t, errors.As(err, &apiErr))
}

func TestIsTimeout_OtherErrors(t *testing.T) {
	assert.False(t, IsTimeout(nil))
	assert.False(t, IsTimeout(errors.New("parse failure")))
	assert.False(t, IsTimeout(&APIError{StatusCode: 500, Body: "boom"}))
	assert.True(t, IsTimeout(context.DeadlineExceeded))
	assert.True(t, IsTimeout(fmt.Errorf("request failed: %w", context.DeadlineExceeded)))
}

func TestAPIError_IsRetryable(t *testing.T) {
	tests := []struct {
		name      string
		err       APIError
		retryable bool
	}{
		{"service unavailable", APIError{StatusCode: 503, Body: "unavailable"}, true},
		{"request timeout", APIError{StatusCode: 408, Body: ""}, true},
		{"model warming up", APIError{StatusCode: 500, Body: `{"error": "model_not_ready"}`}, true},
		{"inference timeout", APIError{StatusCode: 500, Body: "timed out while waiting for model deployment"}, true},
		{"plain server error", APIError{StatusCode: 500, Body: "parse failure"}, false},
		{"bad request", APIError{StatusCode: 400, Body: "invalid query"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.retryable, tt.err.IsRetryable())
		})
	}
}

package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/steadfast-labs/coverdocs/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_OpenStream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req chatCompletionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.Stream)
		assert.Equal(t, "gpt-4o-mini", req.Model)
		require.Len(t, req.Messages, 1)

		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte("data: {\"choices\":[{\"delta\":{\"content\":\"hi\"}}]}\n\ndata: [DONE]\n"))
	}))
	defer server.Close()

	logger, _ := test.NewNullLogger()
	client := NewClient(server.URL, "test-key", "gpt-4o-mini", logger)

	body, err := client.OpenStream(context.Background(), []models.ChatMessage{
		{Role: "user", Content: "hello"},
	})
	require.NoError(t, err)
	defer body.Close()

	raw, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "delta")
}

func TestClient_OpenStream_HandshakeFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error": "invalid api key"}`))
	}))
	defer server.Close()

	logger, _ := test.NewNullLogger()
	client := NewClient(server.URL, "bad-key", "gpt-4o-mini", logger)

	_, err := client.OpenStream(context.Background(), []models.ChatMessage{
		{Role: "user", Content: "hello"},
	})
	require.Error(t, err)

	var hsErr *HandshakeError
	require.ErrorAs(t, err, &hsErr)
	assert.Equal(t, http.StatusUnauthorized, hsErr.StatusCode)
	assert.Contains(t, hsErr.Body, "invalid api key")
}

func TestClient_Complete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatCompletionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.False(t, req.Stream)

		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"role": "assistant", "content": "pong"}},
			},
		})
	}))
	defer server.Close()

	logger, _ := test.NewNullLogger()
	client := NewClient(server.URL, "test-key", "gpt-4o-mini", logger)

	answer, err := client.Complete(context.Background(), []models.ChatMessage{
		{Role: "user", Content: "ping"},
	})
	require.NoError(t, err)
	assert.Equal(t, "pong", answer)
}

func TestCompletionService_StreamRelaysTokens(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)

		// Deliberately fragment a line across two writes.
		io.WriteString(w, "data: {\"choices\":[{\"delta\":{\"con")
		flusher.Flush()
		io.WriteString(w, "tent\":\"Flood\"}}]}\n")
		io.WriteString(w, "data: not-json-at-all\n")
		io.WriteString(w, "data: {\"choices\":[{\"delta\":{\"content\":\" damage\"}}]}\n")
		io.WriteString(w, "data: [DONE]\n")
	}))
	defer server.Close()

	logger, _ := test.NewNullLogger()
	svc := NewCompletionService(NewClient(server.URL, "test-key", "gpt-4o-mini", logger), logger)

	var out bytes.Buffer
	err := svc.Stream(context.Background(), []models.ChatMessage{{Role: "user", Content: "q"}}, &out)
	require.NoError(t, err)
	assert.Equal(t, "Flood damage", out.String())
}

func TestCompletionService_StreamRejectsEmptyMessages(t *testing.T) {
	logger, _ := test.NewNullLogger()
	svc := NewCompletionService(NewClient("http://unused", "k", "m", logger), logger)

	var out bytes.Buffer
	err := svc.Stream(context.Background(), nil, &out)
	require.Error(t, err)
	assert.Zero(t, out.Len(), "nothing may be written downstream")
}

func TestCompletionService_HandshakeFailureWritesNothing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("backend down"))
	}))
	defer server.Close()

	logger, _ := test.NewNullLogger()
	svc := NewCompletionService(NewClient(server.URL, "test-key", "gpt-4o-mini", logger), logger)

	var out bytes.Buffer
	err := svc.Stream(context.Background(), []models.ChatMessage{{Role: "user", Content: "q"}}, &out)
	require.Error(t, err)
	assert.Zero(t, out.Len())
}

// failingWriter errors after the first write, like a disconnected client.
type failingWriter struct {
	writes int
}

func (f *failingWriter) Write(p []byte) (int, error) {
	f.writes++
	if f.writes > 1 {
		return 0, io.ErrClosedPipe
	}
	return len(p), nil
}

func TestCompletionService_StopsOnClientDisconnect(t *testing.T) {
	served := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer close(served)
		for i := 0; i < 10; i++ {
			io.WriteString(w, "data: {\"choices\":[{\"delta\":{\"content\":\"x\"}}]}\n")
		}
	}))
	defer server.Close()

	logger, _ := test.NewNullLogger()
	svc := NewCompletionService(NewClient(server.URL, "test-key", "gpt-4o-mini", logger), logger)

	w := &failingWriter{}
	err := svc.Stream(context.Background(), []models.ChatMessage{{Role: "user", Content: "q"}}, w)
	require.NoError(t, err, "disconnect mid-stream is not an error")
	<-served
	assert.LessOrEqual(t, w.writes, 2, "relay must stop writing once the client is gone")
}

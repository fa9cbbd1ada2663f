package llm

import "github.com/steadfast-labs/coverdocs/internal/models"

// chatCompletionRequest is the wire request for the inference backend's
// OpenAI-compatible chat completions endpoint.
type chatCompletionRequest struct {
	Model    string               `json:"model"`
	Messages []models.ChatMessage `json:"messages"`
	Stream   bool                 `json:"stream"`
}

// streamEvent is one `data:` payload of the upstream event stream. Only
// the incremental delta content is consumed; everything else is dropped.
type streamEvent struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// chatCompletionResponse is the non-streamed response shape, used only by
// the startup warm-up call.
type chatCompletionResponse struct {
	Choices []struct {
		Message models.ChatMessage `json:"message"`
	} `json:"choices"`
}

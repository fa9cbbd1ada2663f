package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/steadfast-labs/coverdocs/internal/llm"
	"github.com/steadfast-labs/coverdocs/internal/models"
	"github.com/steadfast-labs/coverdocs/pkg/utils"
)

type ChatHandler struct {
	completionService *llm.CompletionService
	logger            *logrus.Logger
}

func NewChatHandler(completionService *llm.CompletionService, logger *logrus.Logger) *ChatHandler {
	return &ChatHandler{
		completionService: completionService,
		logger:            logger,
	}
}

// HandleChatCompletion processes POST /api/chat-completion. On success
// the response body is a raw plain-text token stream, chunked as tokens
// arrive; JSON error envelopes are only possible before the first byte
// is written.
func (h *ChatHandler) HandleChatCompletion(c *gin.Context) {
	var req models.ChatCompletionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request format", err)
		return
	}

	if len(req.Messages) == 0 {
		utils.ErrorResponse(c, http.StatusBadRequest, "Messages must be a non-empty list", nil)
		return
	}
	for _, msg := range req.Messages {
		if !models.ValidChatRole(msg.Role) {
			utils.ErrorResponse(c, http.StatusBadRequest, "Invalid message role: "+msg.Role, nil)
			return
		}
	}

	c.Header("Content-Type", "text/plain; charset=utf-8")
	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")

	if err := h.completionService.Stream(c.Request.Context(), req.Messages, c.Writer); err != nil {
		// Handshake failed, nothing streamed yet; a JSON error is still
		// possible.
		h.logger.WithError(err).Error("Chat completion failed")
		c.Header("Content-Type", "application/json; charset=utf-8")
		utils.ErrorResponse(c, http.StatusInternalServerError, "Completion failed", err)
		return
	}
}

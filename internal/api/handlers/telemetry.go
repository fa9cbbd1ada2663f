package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/steadfast-labs/coverdocs/internal/models"
	"github.com/steadfast-labs/coverdocs/internal/telemetry"
	"github.com/steadfast-labs/coverdocs/pkg/utils"
)

// TelemetryHandler exposes the two client-initiated telemetry endpoints.
// Both always report success; recording is best-effort by contract and
// a lost event must never surface in the browser.
type TelemetryHandler struct {
	recorder *telemetry.Recorder
	logger   *logrus.Logger
}

func NewTelemetryHandler(recorder *telemetry.Recorder, logger *logrus.Logger) *TelemetryHandler {
	return &TelemetryHandler{
		recorder: recorder,
		logger:   logger,
	}
}

// HandleAccess processes POST /api/telemetry/access.
func (h *TelemetryHandler) HandleAccess(c *gin.Context) {
	var event models.AccessEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		h.logger.WithError(err).Debug("Malformed access event body, recording envelope only")
	}

	h.recorder.Record(telemetry.KindAccess, telemetry.RequestInfoFromGin(c), map[string]interface{}{
		"viewport_width":  event.ViewportWidth,
		"viewport_height": event.ViewportHeight,
		"page_title":      event.PageTitle,
	})

	utils.SuccessResponse(c, http.StatusOK, "", nil)
}

// HandleClick processes POST /api/telemetry/click.
func (h *TelemetryHandler) HandleClick(c *gin.Context) {
	var event models.ClickEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		h.logger.WithError(err).Debug("Malformed click event body, recording envelope only")
	}

	h.recorder.Record(telemetry.KindClick, telemetry.RequestInfoFromGin(c), map[string]interface{}{
		"document_id":      event.DocumentID,
		"document_title":   event.DocumentTitle,
		"position":         event.Position,
		"query_text":       event.QueryText,
		"time_to_click_ms": event.TimeToClickMs,
	})

	utils.SuccessResponse(c, http.StatusOK, "", nil)
}

package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/steadfast-labs/coverdocs/internal/elastic"
	"github.com/steadfast-labs/coverdocs/internal/models"
	"github.com/steadfast-labs/coverdocs/internal/services"
	"github.com/steadfast-labs/coverdocs/internal/telemetry"
	"github.com/steadfast-labs/coverdocs/pkg/utils"
)

const maxQueryLength = 2000

type SearchHandler struct {
	searchService *services.SearchService
	logger        *logrus.Logger
}

func NewSearchHandler(searchService *services.SearchService, logger *logrus.Logger) *SearchHandler {
	return &SearchHandler{
		searchService: searchService,
		logger:        logger,
	}
}

// HandleSearch processes POST /api/search. The response body is the
// search result itself, not the usual envelope; the frontend consumes it
// directly.
func (h *SearchHandler) HandleSearch(c *gin.Context) {
	var req models.SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request format", err)
		return
	}

	query := strings.TrimSpace(req.Query)
	if query == "" {
		utils.ErrorResponse(c, http.StatusBadRequest, "Query cannot be empty", nil)
		return
	}
	if len(query) > maxQueryLength {
		utils.ErrorResponse(c, http.StatusBadRequest, "Query too long (max 2000 characters)", nil)
		return
	}

	info := telemetry.RequestInfoFromGin(c)

	h.logger.WithFields(logrus.Fields{
		"query":      query,
		"session_id": info.SessionID,
		"size":       req.Size,
	}).Info("Processing search request")

	response, err := h.searchService.Search(c.Request.Context(), info, query, req.Filters, req.Size)
	if err != nil {
		h.respondSearchError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// respondSearchError distinguishes warm-up/timeout conditions the client
// should retry from hard upstream failures. Timeouts come in two shapes:
// a status the backend signals and a transport deadline expiring with no
// response at all. Both get the retryable 503.
func (h *SearchHandler) respondSearchError(c *gin.Context, err error) {
	var apiErr *elastic.APIError
	if (errors.As(err, &apiErr) && apiErr.IsRetryable()) || elastic.IsTimeout(err) {
		utils.RetryableErrorResponse(c, http.StatusServiceUnavailable,
			"Search backend is temporarily unavailable, retry shortly", err)
		return
	}
	utils.ErrorResponse(c, http.StatusInternalServerError, "Search failed", err)
}

// HandleFacets serves GET /api/facets.
func (h *SearchHandler) HandleFacets(c *gin.Context) {
	facets, err := h.searchService.Facets(c.Request.Context())
	if err != nil {
		h.respondSearchError(c, err)
		return
	}

	c.JSON(http.StatusOK, facets)
}

package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/steadfast-labs/coverdocs/internal/elastic"
	"github.com/steadfast-labs/coverdocs/internal/models"
	"github.com/steadfast-labs/coverdocs/internal/query"
	"github.com/steadfast-labs/coverdocs/internal/telemetry"
	"github.com/steadfast-labs/coverdocs/pkg/utils"
)

const (
	DefaultResultCount = 10
	MaxResultCount     = 50

	searchCacheTTL = 5 * time.Minute
)

// ResponseCache is the read-through cache for search responses and
// facet aggregations. *database.Cache is the Redis implementation; any
// error from a getter is treated as a miss.
type ResponseCache interface {
	GetCachedSearchResponse(ctx context.Context, key string, result interface{}) error
	CacheSearchResponse(ctx context.Context, key string, response interface{}, expiration time.Duration) error
	GetCachedFacets(ctx context.Context, result interface{}) error
	CacheFacets(ctx context.Context, facets interface{}, expiration time.Duration) error
}

// SearchService composes templated queries, relays them to the search
// backend and normalizes the hits. Every search, successful or not,
// produces exactly one query telemetry event.
type SearchService struct {
	client   *elastic.Client
	template *query.Template
	recorder *telemetry.Recorder
	cache    ResponseCache
	index    string
	logger   *logrus.Logger
}

func NewSearchService(
	client *elastic.Client,
	template *query.Template,
	recorder *telemetry.Recorder,
	cache ResponseCache,
	index string,
	logger *logrus.Logger,
) *SearchService {
	return &SearchService{
		client:   client,
		template: template,
		recorder: recorder,
		cache:    cache,
		index:    index,
		logger:   logger,
	}
}

// Search runs one relayed search. rawQuery must be non-empty; the HTTP
// layer rejects empty queries before calling here. size is clamped to
// [1, MaxResultCount] with DefaultResultCount for zero/negative input.
func (s *SearchService) Search(ctx context.Context, info telemetry.RequestInfo, rawQuery string, filters models.FilterSet, size int) (*models.SearchResponse, error) {
	if size <= 0 {
		size = DefaultResultCount
	}
	if size > MaxResultCount {
		size = MaxResultCount
	}

	start := time.Now()

	response, cached, err := s.execute(ctx, rawQuery, filters, size)
	elapsed := time.Since(start)

	payload := map[string]interface{}{
		"query_text": rawQuery,
		"filters":    filters,
		"took_ms":    elapsed.Milliseconds(),
		"cache_hit":  cached,
	}
	if err != nil {
		payload["error_occurred"] = true
		payload["error_message"] = err.Error()
	} else {
		payload["results_count"] = len(response.Results)
	}
	s.recorder.Record(telemetry.KindQuery, info, payload)

	if err != nil {
		s.logger.WithError(err).WithField("query", rawQuery).Error("Search failed")
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"query":         rawQuery,
		"results_count": len(response.Results),
		"took_ms":       elapsed.Milliseconds(),
		"cache_hit":     cached,
	}).Info("Search completed")

	response.Filters = filters
	return response, nil
}

func (s *SearchService) execute(ctx context.Context, rawQuery string, filters models.FilterSet, size int) (*models.SearchResponse, bool, error) {
	cacheKey := s.cacheKey(rawQuery, filters, size)

	if s.cache != nil {
		var cached models.SearchResponse
		if err := s.cache.GetCachedSearchResponse(ctx, cacheKey, &cached); err == nil {
			return &cached, true, nil
		}
	}

	composed, err := s.template.Build(rawQuery, filters)
	if err != nil {
		return nil, false, fmt.Errorf("failed to compose query: %w", err)
	}
	composed["size"] = size

	result, err := s.client.Search(ctx, s.index, composed)
	if err != nil {
		return nil, false, err
	}

	response := &models.SearchResponse{
		Total:   result.Hits.Total.Value,
		Results: mapHits(result.Hits.Hits),
		Took:    result.Took,
	}

	if s.cache != nil {
		if err := s.cache.CacheSearchResponse(ctx, cacheKey, response, searchCacheTTL); err != nil {
			s.logger.WithError(err).Warn("Failed to cache search response")
		}
	}

	return response, false, nil
}

func (s *SearchService) cacheKey(rawQuery string, filters models.FilterSet, size int) string {
	raw, _ := json.Marshal(struct {
		Query   string           `json:"q"`
		Filters models.FilterSet `json:"f"`
		Size    int              `json:"s"`
	}{rawQuery, filters, size})
	return utils.MD5Hash(string(raw))
}

func mapHits(hits []elastic.Hit) []models.SearchResult {
	results := make([]models.SearchResult, 0, len(hits))
	for _, hit := range hits {
		highlight := hit.Highlight
		if highlight == nil {
			highlight = map[string][]string{}
		}
		results = append(results, models.SearchResult{
			ID:        hit.ID,
			Score:     hit.Score,
			Source:    hit.Source,
			Highlight: highlight,
		})
	}
	return results
}

// WarmUp fires one minimal templated search so the semantic model is
// loaded before the first real user query arrives.
func (s *SearchService) WarmUp(ctx context.Context) error {
	composed, err := s.template.Build("warm up", models.FilterSet{})
	if err != nil {
		return err
	}
	composed["size"] = 1

	if _, err := s.client.Search(ctx, s.index, composed); err != nil {
		return err
	}
	return nil
}

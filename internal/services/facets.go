package services

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/steadfast-labs/coverdocs/internal/elastic"
	"github.com/steadfast-labs/coverdocs/internal/models"
)

const (
	facetBucketSize = 25
	facetsCacheTTL  = 5 * time.Minute
)

// Vendor prefixes and product names used to collapse noisy creator-tool
// version strings into a single display value.
var (
	creatorToolVendors  = []string{"Adobe", "Microsoft"}
	creatorToolProducts = []string{"Acrobat", "Word", "Excel", "PowerPoint", "InDesign"}
)

// Facets aggregates the top values per filterable field. creator_tool
// buckets get their version suffixes collapsed away before counting.
func (s *SearchService) Facets(ctx context.Context) (*models.FacetsResponse, error) {
	if s.cache != nil {
		var cached models.FacetsResponse
		if err := s.cache.GetCachedFacets(ctx, &cached); err == nil {
			return &cached, nil
		}
	}

	body := map[string]interface{}{
		"size": 0,
		"aggs": map[string]interface{}{
			"author":       termsAgg("author.keyword"),
			"content_type": termsAgg("content_type.keyword"),
			"creator_tool": termsAgg("creator_tool.keyword"),
		},
	}

	result, err := s.client.Search(ctx, s.index, body)
	if err != nil {
		return nil, err
	}

	response := &models.FacetsResponse{
		Facets: map[string][]models.FacetBucket{
			"author":       mapBuckets(result.Aggregations["author"].Buckets),
			"content_type": mapBuckets(result.Aggregations["content_type"].Buckets),
			"creator_tool": collapseCreatorTools(result.Aggregations["creator_tool"].Buckets),
		},
	}

	if s.cache != nil {
		if err := s.cache.CacheFacets(ctx, response, facetsCacheTTL); err != nil {
			s.logger.WithError(err).Warn("Failed to cache facets")
		}
	}

	return response, nil
}

func termsAgg(field string) map[string]interface{} {
	return map[string]interface{}{
		"terms": map[string]interface{}{
			"field": field,
			"size":  facetBucketSize,
		},
	}
}

func mapBuckets(buckets []elastic.Bucket) []models.FacetBucket {
	out := make([]models.FacetBucket, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, models.FacetBucket{Value: b.Key, Count: b.DocCount})
	}
	return out
}

// collapseCreatorTools re-aggregates buckets after normalizing values
// such as "Adobe Acrobat Pro DC 2021" and "Adobe Acrobat 11.0" down to
// "Adobe Acrobat", summing the collapsed counts.
func collapseCreatorTools(buckets []elastic.Bucket) []models.FacetBucket {
	counts := make(map[string]int)
	order := make([]string, 0, len(buckets))

	for _, b := range buckets {
		value := normalizeCreatorTool(b.Key)
		if _, seen := counts[value]; !seen {
			order = append(order, value)
		}
		counts[value] += b.DocCount
	}

	out := make([]models.FacetBucket, 0, len(order))
	for _, value := range order {
		out = append(out, models.FacetBucket{Value: value, Count: counts[value]})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Count > out[j].Count
	})
	return out
}

func normalizeCreatorTool(value string) string {
	words := strings.Fields(value)
	if len(words) < 2 {
		return value
	}

	for _, vendor := range creatorToolVendors {
		if words[0] == vendor {
			return words[0] + " " + words[1]
		}
	}
	for _, product := range creatorToolProducts {
		if strings.Contains(value, product) {
			return words[0] + " " + words[1]
		}
	}
	return value
}

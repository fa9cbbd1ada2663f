package query

import (
	"encoding/json"
	"testing"

	"github.com/steadfast-labs/coverdocs/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTemplate = `{
	"retriever": {
		"standard": {
			"query": {
				"semantic": {
					"field": "content",
					"query": "%QUERY%"
				}
			}
		}
	},
	"highlight": {
		"fields": {"content": {"number_of_fragments": 3}}
	}
}`

func mustParse(t *testing.T) *Template {
	t.Helper()
	tmpl, err := Parse(testTemplate)
	require.NoError(t, err)
	return tmpl
}

// matchedText digs the substituted user query back out of a composed query.
func matchedText(t *testing.T, composed map[string]interface{}, filtered bool) string {
	t.Helper()
	q := composed["retriever"].(map[string]interface{})["standard"].(map[string]interface{})["query"].(map[string]interface{})
	if filtered {
		q = q["bool"].(map[string]interface{})["must"].(map[string]interface{})
	}
	return q["semantic"].(map[string]interface{})["query"].(string)
}

func TestParse_Validation(t *testing.T) {
	_, err := Parse(`{"query": "no placeholder"}`)
	assert.ErrorContains(t, err, "missing")

	_, err = Parse(`{"a": "%QUERY%", "b": "%QUERY%"}`)
	assert.ErrorContains(t, err, "exactly one")

	_, err = Parse(`{"query": "%QUERY%"`)
	assert.ErrorContains(t, err, "not valid JSON")
}

func TestBuild_EscapesHostileQueryText(t *testing.T) {
	tmpl := mustParse(t)

	queries := []string{
		`what is covered under flood damage?`,
		`he said "covered"`,
		`C:\Users\policy\docs`,
		"line one\nline two",
		"tab\there \"and\" back\\slash",
		`"}], "injected": {"match_all": {}}`,
	}

	for _, q := range queries {
		composed, err := tmpl.Build(q, models.FilterSet{})
		require.NoError(t, err, "query %q", q)
		assert.Equal(t, q, matchedText(t, composed, false), "round-trip of %q", q)
	}
}

func TestBuild_NoFiltersLeavesTemplateUnmodified(t *testing.T) {
	tmpl := mustParse(t)

	composed, err := tmpl.Build("flood damage", models.FilterSet{})
	require.NoError(t, err)

	var want map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(testTemplate), &want))
	want["retriever"].(map[string]interface{})["standard"].(map[string]interface{})["query"].(map[string]interface{})["semantic"].(map[string]interface{})["query"] = "flood damage"

	assert.Equal(t, want, composed)
	assert.NotContains(t, mustJSON(t, composed), Placeholder)
}

func TestBuild_FilterClauseCounts(t *testing.T) {
	tmpl := mustParse(t)

	tests := []struct {
		name    string
		filters models.FilterSet
		clauses int
	}{
		{"one field", models.FilterSet{Author: []string{"Smith"}}, 1},
		{"two fields", models.FilterSet{Author: []string{"Smith"}, ContentType: []string{"pdf", "docx"}}, 2},
		{"all fields", models.FilterSet{
			Author:      []string{"Smith", "Jones"},
			ContentType: []string{"pdf"},
			CreatorTool: []string{"Adobe Acrobat"},
		}, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			composed, err := tmpl.Build("flood", tt.filters)
			require.NoError(t, err)

			boolQuery := composed["retriever"].(map[string]interface{})["standard"].(map[string]interface{})["query"].(map[string]interface{})["bool"].(map[string]interface{})
			filter := boolQuery["filter"].([]interface{})
			assert.Len(t, filter, tt.clauses)

			// The original semantic match survives under must.
			assert.Equal(t, "flood", matchedText(t, composed, true))
		})
	}
}

func TestBuild_FilterClauseValues(t *testing.T) {
	tmpl := mustParse(t)

	composed, err := tmpl.Build("flood", models.FilterSet{
		ContentType: []string{"pdf", "docx"},
	})
	require.NoError(t, err)

	boolQuery := composed["retriever"].(map[string]interface{})["standard"].(map[string]interface{})["query"].(map[string]interface{})["bool"].(map[string]interface{})
	filter := boolQuery["filter"].([]interface{})
	require.Len(t, filter, 1)

	terms := filter[0].(map[string]interface{})["terms"].(map[string]interface{})
	assert.Equal(t, []interface{}{"pdf", "docx"}, terms["content_type.keyword"])
}

func TestBuild_EmptyFilterListsAddNoClause(t *testing.T) {
	tmpl := mustParse(t)

	composed, err := tmpl.Build("flood", models.FilterSet{Author: []string{}})
	require.NoError(t, err)

	// Nothing non-empty supplied, so no bool wrapper at all.
	q := composed["retriever"].(map[string]interface{})["standard"].(map[string]interface{})["query"].(map[string]interface{})
	assert.Contains(t, q, "semantic")
	assert.NotContains(t, q, "bool")
}

func mustJSON(t *testing.T, v interface{}) string {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return string(data)
}

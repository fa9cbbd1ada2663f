package query

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/steadfast-labs/coverdocs/internal/models"
)

// Placeholder is the token the query template carries exactly once in
// place of the user's query text.
const Placeholder = "%QUERY%"

// Template is the immutable search query template, loaded once at startup
// and shared read-only across requests.
type Template struct {
	raw string
}

// Load reads and validates the template file. The placeholder must appear
// exactly once and the document must be well-formed JSON.
func Load(path string) (*Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read query template: %w", err)
	}
	return Parse(string(data))
}

// Parse validates raw template text. Split out from Load for tests.
func Parse(raw string) (*Template, error) {
	if !json.Valid([]byte(raw)) {
		return nil, fmt.Errorf("query template is not valid JSON")
	}

	switch n := strings.Count(raw, Placeholder); n {
	case 1:
		// ok
	case 0:
		return nil, fmt.Errorf("query template is missing the %s placeholder", Placeholder)
	default:
		return nil, fmt.Errorf("query template contains the %s placeholder %d times, want exactly one", Placeholder, n)
	}

	return &Template{raw: raw}, nil
}

// Build substitutes rawQuery into the template and splices filter clauses
// into the retriever. The user text is JSON-string escaped before
// substitution so quotes, backslashes and control characters stay data
// and cannot alter the query structure.
func (t *Template) Build(rawQuery string, filters models.FilterSet) (map[string]interface{}, error) {
	escaped, err := json.Marshal(rawQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to escape query text: %w", err)
	}

	// json.Marshal yields a quoted JSON string; the placeholder already
	// sits inside quotes in the template.
	substituted := strings.Replace(t.raw, Placeholder, string(escaped[1:len(escaped)-1]), 1)

	var composed map[string]interface{}
	if err := json.Unmarshal([]byte(substituted), &composed); err != nil {
		// Should be unreachable with correct escaping; a failure here is
		// a template defect, not a bad request.
		return nil, fmt.Errorf("composed query failed to reparse: %w", err)
	}

	if filters.IsEmpty() {
		return composed, nil
	}

	if err := spliceFilters(composed, filters); err != nil {
		return nil, err
	}

	return composed, nil
}

// spliceFilters replaces the retriever's match clause with a bool query:
// the original semantic match under "must", one terms clause per
// non-empty filter field under "filter".
func spliceFilters(composed map[string]interface{}, filters models.FilterSet) error {
	retriever, ok := composed["retriever"].(map[string]interface{})
	if !ok {
		return fmt.Errorf("query template has no retriever object")
	}
	standard, ok := retriever["standard"].(map[string]interface{})
	if !ok {
		return fmt.Errorf("query template retriever has no standard section")
	}
	match, ok := standard["query"]
	if !ok {
		return fmt.Errorf("query template retriever has no query clause")
	}

	var termClauses []interface{}
	for _, field := range filters.Fields() {
		values := make([]interface{}, len(field.Values))
		for i, v := range field.Values {
			values[i] = v
		}
		termClauses = append(termClauses, map[string]interface{}{
			"terms": map[string]interface{}{
				field.Name + ".keyword": values,
			},
		})
	}

	standard["query"] = map[string]interface{}{
		"bool": map[string]interface{}{
			"must":   match,
			"filter": termClauses,
		},
	}

	return nil
}

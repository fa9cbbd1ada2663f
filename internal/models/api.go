package models

import "encoding/json"

// FilterSet carries the facet filters a search request may constrain on.
// Fields are AND'ed together; values within one field are OR'ed. Empty
// lists mean no constraint on that field.
type FilterSet struct {
	Author      []string `json:"author,omitempty"`
	ContentType []string `json:"content_type,omitempty"`
	CreatorTool []string `json:"creator_tool,omitempty"`
}

// IsEmpty reports whether no field carries any value.
func (f FilterSet) IsEmpty() bool {
	return len(f.Author) == 0 && len(f.ContentType) == 0 && len(f.CreatorTool) == 0
}

// Fields returns the non-empty filter fields in their fixed field order.
func (f FilterSet) Fields() []FilterField {
	var fields []FilterField
	if len(f.Author) > 0 {
		fields = append(fields, FilterField{Name: "author", Values: f.Author})
	}
	if len(f.ContentType) > 0 {
		fields = append(fields, FilterField{Name: "content_type", Values: f.ContentType})
	}
	if len(f.CreatorTool) > 0 {
		fields = append(fields, FilterField{Name: "creator_tool", Values: f.CreatorTool})
	}
	return fields
}

type FilterField struct {
	Name   string
	Values []string
}

type SearchRequest struct {
	Query   string    `json:"query" binding:"required"`
	Filters FilterSet `json:"filters"`
	Size    int       `json:"size"`
}

type SearchResponse struct {
	Total   int            `json:"total"`
	Results []SearchResult `json:"results"`
	Took    int            `json:"took"`
	Filters FilterSet      `json:"filters"`
}

// SearchResult is one normalized backend hit. Source stays an opaque
// key/value bag; the backend owns its document schema.
type SearchResult struct {
	ID        string              `json:"id"`
	Score     float64             `json:"score"`
	Source    json.RawMessage     `json:"source"`
	Highlight map[string][]string `json:"highlight"`
}

// ChatMessage is one role-tagged entry of a conversation forwarded to
// the inference backend.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ValidChatRole reports whether role is one the inference backend accepts.
func ValidChatRole(role string) bool {
	switch role {
	case "system", "user", "assistant":
		return true
	}
	return false
}

type ChatCompletionRequest struct {
	Messages []ChatMessage `json:"messages"`
}

type FacetBucket struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

type FacetsResponse struct {
	Facets map[string][]FacetBucket `json:"facets"`
}

// AccessEvent is the client-reported payload of an access telemetry event.
type AccessEvent struct {
	ViewportWidth  int    `json:"viewport_width"`
	ViewportHeight int    `json:"viewport_height"`
	PageTitle      string `json:"page_title"`
}

// ClickEvent is the client-reported payload of a result-click telemetry event.
type ClickEvent struct {
	DocumentID    string `json:"document_id"`
	DocumentTitle string `json:"document_title"`
	Position      int    `json:"position"`
	QueryText     string `json:"query_text"`
	TimeToClickMs int    `json:"time_to_click_ms"`
}

type HealthResponse struct {
	Status    string            `json:"status"`
	Service   string            `json:"service"`
	Timestamp string            `json:"timestamp"`
	Cluster   map[string]string `json:"cluster,omitempty"`
	Services  map[string]string `json:"services"`
}

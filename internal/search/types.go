// Package search runs faceted full-text queries against the search index.
//
// A query is a handful of request parameters: free text q, a sort order, a
// date, and equality filters on type, category and is_public. One query reads
// the matching rows and, from the same snapshot, the total count and every
// facet with its toggle link.
package search

// Sort orders.
const (
	SortRelevance = "relevance"
	SortNewest    = "newest"
	SortOldest    = "oldest"
)

// Sorts lists every sort order in the order sort links are shown.
var Sorts = []string{SortRelevance, SortNewest, SortOldest}

// Result limits.
const (
	LimitWithQuery = 100
	LimitBrowse    = 40
)

// Record is one row of the search index.
type Record struct {
	Type      string  `json:"type"`
	Key       string  `json:"key"`
	Title     string  `json:"title"`
	Timestamp string  `json:"timestamp,omitempty"`
	Category  *int64  `json:"category,omitempty"`
	IsPublic  int64   `json:"is_public"`
	Search1   *string `json:"search_1,omitempty"`
	Search2   *string `json:"search_2,omitempty"`
	Search3   *string `json:"search_3,omitempty"`
	Rank      float64 `json:"rank,omitempty"`
}

// Fields returns the record as a map keyed by index column name, with
// absent values as nil. Templates see records this way.
func (r Record) Fields() map[string]any {
	f := map[string]any{
		"type":      r.Type,
		"key":       r.Key,
		"title":     r.Title,
		"timestamp": r.Timestamp,
		"category":  nil,
		"is_public": r.IsPublic,
		"search_1":  nil,
		"search_2":  nil,
		"search_3":  nil,
	}
	if r.Category != nil {
		f["category"] = *r.Category
	}
	if r.Search1 != nil {
		f["search_1"] = *r.Search1
	}
	if r.Search2 != nil {
		f["search_2"] = *r.Search2
	}
	if r.Search3 != nil {
		f["search_3"] = *r.Search3
	}
	return f
}

// FacetValue is one bucket of a facet.
type FacetValue struct {
	Value     string `json:"value"`
	Label     string `json:"label"`
	Count     int    `json:"count"`
	Selected  bool   `json:"selected"`
	ToggleURL string `json:"toggle_url"`
}

// Facet is the value distribution of one dimension over the matching rows.
type Facet struct {
	Name   string       `json:"name"`
	Param  string       `json:"param"`
	Values []FacetValue `json:"values"`
}

// SortLink switches the current query to another sort order.
type SortLink struct {
	Sort string `json:"sort"`
	URL  string `json:"url"`
}

// Page is the outcome of one query.
type Page struct {
	Params    Params     `json:"-"`
	Sort      string     `json:"sort"`
	Count     int        `json:"count"`
	Limit     int        `json:"limit"`
	Results   []Record   `json:"results"`
	Facets    []Facet    `json:"facets"`
	SortLinks []SortLink `json:"sort_links"`

	// Escaped is set when q was retried as literal text.
	Escaped bool `json:"escaped,omitempty"`
}

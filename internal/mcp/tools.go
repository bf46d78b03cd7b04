package mcp

// SearchInput defines the input schema for the search tool.
type SearchInput struct {
	Query    string `json:"query,omitempty" jsonschema:"full-text query; supports phrases, NOT, OR and prefix* syntax; empty browses the timeline"`
	Sort     string `json:"sort,omitempty" jsonschema:"relevance, newest or oldest; defaults to relevance with a query and newest without"`
	Type     string `json:"type,omitempty" jsonschema:"restrict to one record type, e.g. emails.db/emails"`
	Category string `json:"category,omitempty" jsonschema:"restrict to one category id: 1 created, 2 saved, 3 received"`
	IsPublic string `json:"is_public,omitempty" jsonschema:"restrict to public (1) or private (0) records"`
	Date     string `json:"date,omitempty" jsonschema:"restrict to one day, YYYY-MM-DD"`
	Limit    int    `json:"limit,omitempty" jsonschema:"maximum number of results, default 10"`
}

// SearchOutput defines the output schema for the search tool.
type SearchOutput struct {
	Count   int            `json:"count" jsonschema:"total number of matching records"`
	Sort    string         `json:"sort" jsonschema:"the sort order applied"`
	Escaped bool           `json:"escaped,omitempty" jsonschema:"true if the query was re-run with its syntax escaped"`
	Results []ResultOutput `json:"results" jsonschema:"matching records in order"`
	Facets  []FacetOutput  `json:"facets" jsonschema:"value counts over all matching records"`
}

// ResultOutput is one rendered record.
type ResultOutput struct {
	Type      string `json:"type" jsonschema:"record type, source/table"`
	Key       string `json:"key" jsonschema:"record key within its type"`
	Title     string `json:"title,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Category  int64  `json:"category,omitempty"`
	IsPublic  bool   `json:"is_public"`
	Output    string `json:"output" jsonschema:"the rendered HTML fragment"`
	Error     string `json:"error,omitempty" jsonschema:"render failure shown in debug mode"`
}

// FacetOutput is the value counts of one facet.
type FacetOutput struct {
	Name   string             `json:"name"`
	Values []FacetValueOutput `json:"values"`
}

// FacetValueOutput is one facet value.
type FacetValueOutput struct {
	Value    string `json:"value"`
	Label    string `json:"label,omitempty"`
	Count    int    `json:"count"`
	Selected bool   `json:"selected,omitempty"`
}

// IndexStatusInput defines the input schema for the index_status tool (no parameters).
type IndexStatusInput struct{}

// IndexStatusOutput defines the output schema for the index_status tool.
type IndexStatusOutput struct {
	Path      string            `json:"path"`
	Tokenizer string            `json:"tokenizer"`
	Total     int64             `json:"total"`
	SizeBytes int64             `json:"size_bytes"`
	Types     []TypeCountOutput `json:"types"`
}

// TypeCountOutput is the number of records of one type.
type TypeCountOutput struct {
	Type  string `json:"type"`
	Count int64  `json:"count"`
}

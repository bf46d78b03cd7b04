package search

import (
	"net/url"
	"strings"
)

// Request parameter names.
const (
	ParamQuery    = "q"
	ParamSort     = "sort"
	ParamDate     = "timestamp__date"
	ParamType     = "type"
	ParamCategory = "category"
	ParamIsPublic = "is_public"
)

// paramOrder is the order parameters appear in generated links.
var paramOrder = []string{ParamQuery, ParamSort, ParamDate, ParamType, ParamCategory, ParamIsPublic}

// Params are the recognised request parameters. Empty means absent.
type Params struct {
	Q        string
	RawSort  string
	Date     string
	Type     string
	Category string
	IsPublic string
}

// ParseParams reads the recognised parameters from a query string. Only the
// first value of each counts; anything else is ignored.
func ParseParams(v url.Values) Params {
	return Params{
		Q:        strings.TrimSpace(v.Get(ParamQuery)),
		RawSort:  strings.TrimSpace(v.Get(ParamSort)),
		Date:     strings.TrimSpace(v.Get(ParamDate)),
		Type:     v.Get(ParamType),
		Category: strings.TrimSpace(v.Get(ParamCategory)),
		IsPublic: strings.TrimSpace(v.Get(ParamIsPublic)),
	}
}

// Sort returns the effective sort order. Relevance needs free text; without
// it, and for unknown values, the order is newest first, or relevance when
// q is set.
func (p Params) Sort() string {
	switch p.RawSort {
	case SortNewest, SortOldest:
		return p.RawSort
	case SortRelevance:
		if p.Q != "" {
			return SortRelevance
		}
		return SortNewest
	}
	if p.Q != "" {
		return SortRelevance
	}
	return SortNewest
}

// Limit is the maximum number of rows returned.
func (p Params) Limit() int {
	if p.Q != "" {
		return LimitWithQuery
	}
	return LimitBrowse
}

// Get returns the value of a parameter by request name.
func (p Params) Get(name string) string {
	switch name {
	case ParamQuery:
		return p.Q
	case ParamSort:
		return p.RawSort
	case ParamDate:
		return p.Date
	case ParamType:
		return p.Type
	case ParamCategory:
		return p.Category
	case ParamIsPublic:
		return p.IsPublic
	}
	return ""
}

// With returns a copy of p with one parameter set. An empty value clears it.
func (p Params) With(name, value string) Params {
	switch name {
	case ParamQuery:
		p.Q = value
	case ParamSort:
		p.RawSort = value
	case ParamDate:
		p.Date = value
	case ParamType:
		p.Type = value
	case ParamCategory:
		p.Category = value
	case ParamIsPublic:
		p.IsPublic = value
	}
	return p
}

// Encode renders the set parameters as a query string starting with "?".
// first, if set, is written before the others; the rest follow the fixed
// link order.
func (p Params) Encode(first string) string {
	var b strings.Builder
	write := func(name string) {
		v := p.Get(name)
		if v == "" {
			return
		}
		if b.Len() > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(name))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(v))
	}

	if first != "" {
		write(first)
	}
	for _, name := range paramOrder {
		if name != first {
			write(name)
		}
	}
	return "?" + b.String()
}

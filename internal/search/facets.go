package search

import (
	"sort"
	"strconv"
)

// facetDef names a facet and the request parameter that filters on it.
type facetDef struct {
	name    string
	param   string
	numeric bool
}

// facetDefs in display order.
var facetDefs = []facetDef{
	{name: "type", param: ParamType},
	{name: "category", param: ParamCategory, numeric: true},
	{name: "is_public", param: ParamIsPublic, numeric: true},
	{name: "timestamp", param: ParamDate},
}

// buildFacets turns aggregate buckets into facets with labels, selection and
// toggle links. A selected value with no matching rows is still listed so
// the filter can be removed.
func buildFacets(p Params, buckets []bucket, categoryNames map[string]string) []Facet {
	byFacet := make(map[string][]bucket)
	for _, b := range buckets {
		byFacet[b.facet] = append(byFacet[b.facet], b)
	}

	facets := make([]Facet, 0, len(facetDefs))
	for _, def := range facetDefs {
		bs := byFacet[def.name]
		sortBuckets(bs, def.numeric)

		current := p.Get(def.param)
		facet := Facet{Name: def.name, Param: def.param, Values: make([]FacetValue, 0, len(bs))}
		seen := false
		for _, b := range bs {
			selected := current != "" && sameValue(current, b.value, def.numeric)
			seen = seen || selected
			facet.Values = append(facet.Values, facetValue(p, def, b.value, b.count, selected, categoryNames))
		}
		if current != "" && !seen {
			facet.Values = append(facet.Values, facetValue(p, def, current, 0, true, categoryNames))
		}
		facets = append(facets, facet)
	}
	return facets
}

func facetValue(p Params, def facetDef, value string, count int, selected bool, categoryNames map[string]string) FacetValue {
	label := value
	if def.name == "category" {
		if name, ok := categoryNames[value]; ok {
			label = name
		}
	}
	return FacetValue{
		Value:     value,
		Label:     label,
		Count:     count,
		Selected:  selected,
		ToggleURL: ToggleURL(p, def.param, value, selected),
	}
}

// ToggleURL links to the current query with param set to value, or with the
// param removed when the value is already selected.
func ToggleURL(p Params, param, value string, selected bool) string {
	if selected {
		return p.With(param, "").Encode("")
	}
	return p.With(param, value).Encode(param)
}

// sortBuckets orders by count descending, then by value: numerically for
// numeric facets, lexically otherwise.
func sortBuckets(bs []bucket, numeric bool) {
	sort.SliceStable(bs, func(i, j int) bool {
		if bs[i].count != bs[j].count {
			return bs[i].count > bs[j].count
		}
		if numeric {
			a, errA := strconv.ParseFloat(bs[i].value, 64)
			b, errB := strconv.ParseFloat(bs[j].value, 64)
			if errA == nil && errB == nil && a != b {
				return a < b
			}
		}
		return bs[i].value < bs[j].value
	})
}

// sameValue compares a request value with a bucket value; "1" and "01"
// select the same numeric bucket.
func sameValue(param, value string, numeric bool) bool {
	if param == value {
		return true
	}
	if !numeric {
		return false
	}
	a, errA := strconv.ParseFloat(param, 64)
	b, errB := strconv.ParseFloat(value, 64)
	return errA == nil && errB == nil && a == b
}

// sortLinks lists the sort orders other than the active one. Relevance is
// only offered with free text.
func sortLinks(p Params, active string) []SortLink {
	links := make([]SortLink, 0, len(Sorts))
	for _, s := range Sorts {
		if s == active || (s == SortRelevance && p.Q == "") {
			continue
		}
		links = append(links, SortLink{Sort: s, URL: p.With(ParamSort, s).Encode(ParamSort)})
	}
	return links
}

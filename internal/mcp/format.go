package mcp

import (
	"fmt"
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/Aman-CERP/amanbeta/internal/assemble"
	"github.com/Aman-CERP/amanbeta/internal/search"
)

const (
	defaultLimit = 10
	maxLimit     = search.LimitWithQuery
)

var stripTags = bluemonday.StrictPolicy()

// ToSearchOutput converts an assembled response, keeping at most limit results.
func ToSearchOutput(resp *assemble.Response, limit int) SearchOutput {
	limit = clampLimit(limit, defaultLimit, 1, maxLimit)

	out := SearchOutput{
		Count:   resp.Count,
		Sort:    resp.Sort,
		Escaped: resp.Escaped,
		Results: make([]ResultOutput, 0, min(limit, len(resp.Results))),
		Facets:  make([]FacetOutput, 0, len(resp.Facets)),
	}
	for i, r := range resp.Results {
		if i == limit {
			break
		}
		ro := ResultOutput{
			Type:      r.Type,
			Key:       r.Key,
			Title:     r.Title,
			Timestamp: r.Timestamp,
			IsPublic:  r.IsPublic != 0,
			Output:    r.Output,
			Error:     r.Error,
		}
		if r.Category != nil {
			ro.Category = *r.Category
		}
		out.Results = append(out.Results, ro)
	}
	for _, f := range resp.Facets {
		fo := FacetOutput{Name: f.Name, Values: make([]FacetValueOutput, 0, len(f.Values))}
		for _, v := range f.Values {
			fo.Values = append(fo.Values, FacetValueOutput{
				Value:    v.Value,
				Label:    v.Label,
				Count:    v.Count,
				Selected: v.Selected,
			})
		}
		out.Facets = append(out.Facets, fo)
	}
	return out
}

// FormatSearchResults formats search output as markdown.
func FormatSearchResults(query string, out SearchOutput) string {
	if len(out.Results) == 0 {
		if query == "" {
			return "No records indexed"
		}
		return fmt.Sprintf("No results found for \"%s\"", query)
	}

	var sb strings.Builder
	if query == "" {
		sb.WriteString("## Timeline\n\n")
	} else {
		fmt.Fprintf(&sb, "## Search Results for \"%s\"\n\n", query)
	}
	fmt.Fprintf(&sb, "Showing %d of %d result", len(out.Results), out.Count)
	if out.Count != 1 {
		sb.WriteString("s")
	}
	fmt.Fprintf(&sb, ", sorted by %s", out.Sort)
	if out.Escaped {
		sb.WriteString(" (query syntax escaped)")
	}
	sb.WriteString("\n\n")

	for i, r := range out.Results {
		formatResult(&sb, i+1, r)
	}

	for _, f := range out.Facets {
		if len(f.Values) == 0 {
			continue
		}
		parts := make([]string, len(f.Values))
		for j, v := range f.Values {
			label := v.Value
			if v.Label != "" && v.Label != v.Value {
				label = v.Label
			}
			parts[j] = fmt.Sprintf("%s (%d)", label, v.Count)
		}
		fmt.Fprintf(&sb, "**%s:** %s\n", f.Name, strings.Join(parts, ", "))
	}
	return sb.String()
}

func formatResult(sb *strings.Builder, num int, r ResultOutput) {
	fmt.Fprintf(sb, "### %d. %s\n", num, r.Title)
	fmt.Fprintf(sb, "`%s` key `%s`", r.Type, r.Key)
	if r.Timestamp != "" {
		fmt.Fprintf(sb, " at %s", r.Timestamp)
	}
	sb.WriteString("\n\n")

	if text := plainText(r.Output); text != "" {
		sb.WriteString(text)
		sb.WriteString("\n\n")
	}
	if r.Error != "" {
		fmt.Fprintf(sb, "> render error: %s\n\n", r.Error)
	}
}

// plainText strips markup from a rendered fragment.
func plainText(fragment string) string {
	return strings.TrimSpace(html.UnescapeString(stripTags.Sanitize(fragment)))
}

// clampLimit ensures limit is within bounds.
func clampLimit(limit, defaultVal, lo, hi int) int {
	if limit <= 0 {
		return defaultVal
	}
	if limit < lo {
		return lo
	}
	if limit > hi {
		return hi
	}
	return limit
}

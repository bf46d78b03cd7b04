package ui

import (
	"encoding/json"
	"fmt"
	"io"
)

// TypeCount is the number of records of one type in the index.
type TypeCount struct {
	Type  string `json:"type"`
	Count int64  `json:"count"`
}

// IndexInfo summarises an index database for `amanbeta index info`.
type IndexInfo struct {
	Path      string      `json:"path"`
	Tokenizer string      `json:"tokenizer"`
	Total     int64       `json:"total"`
	SizeBytes int64       `json:"size_bytes"`
	Types     []TypeCount `json:"types"`
	// Unmapped lists indexed types with no rule in the mapping document.
	Unmapped []string `json:"unmapped,omitempty"`
}

// InfoRenderer prints index summaries.
type InfoRenderer struct {
	out    io.Writer
	styles Styles
}

// NewInfoRenderer creates an index info renderer.
func NewInfoRenderer(out io.Writer, noColor bool) *InfoRenderer {
	return &InfoRenderer{out: out, styles: GetStyles(noColor)}
}

// Render prints info as text.
func (r *InfoRenderer) Render(info IndexInfo) error {
	_, _ = fmt.Fprintf(r.out, "%s\n\n", r.styles.Header.Render("Index: "+info.Path))

	tok := info.Tokenizer
	if tok == "" {
		tok = "(no full-text table)"
	}
	_, _ = fmt.Fprintf(r.out, "  Tokenizer: %s\n", tok)
	_, _ = fmt.Fprintf(r.out, "  Records:   %d\n", info.Total)
	_, _ = fmt.Fprintf(r.out, "  Size:      %s\n", FormatBytes(info.SizeBytes))

	if len(info.Types) > 0 {
		_, _ = fmt.Fprintln(r.out)
		_, _ = fmt.Fprintln(r.out, "  Types:")
		for _, tc := range info.Types {
			_, _ = fmt.Fprintf(r.out, "    %-40s %d\n", tc.Type, tc.Count)
		}
	}

	for _, t := range info.Unmapped {
		_, _ = fmt.Fprintf(r.out, "  %s\n", r.styles.Warning.Render("no mapping rule for "+t))
	}
	return nil
}

// RenderJSON prints info as indented JSON.
func (r *InfoRenderer) RenderJSON(info IndexInfo) error {
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(info)
}

// FormatBytes formats bytes to human-readable format.
func FormatBytes(bytes int64) string {
	const (
		KB = 1024
		MB = 1024 * KB
		GB = 1024 * MB
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}

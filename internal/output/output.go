// Package output provides consistent CLI output: status lines and search
// results as text or JSON.
package output

import (
	"encoding/json"
	"fmt"
	"html"
	"io"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/Aman-CERP/amanbeta/internal/assemble"
	"github.com/Aman-CERP/amanbeta/internal/ui"
)

// Writer provides formatted output for CLI.
type Writer struct {
	out    io.Writer
	styles ui.Styles
}

// New creates a new output Writer. Color is used only on terminals and never
// when NO_COLOR is set.
func New(out io.Writer) *Writer {
	return &Writer{out: out, styles: ui.GetStyles(!ui.IsTTY(out))}
}

// Status prints a status message with an icon.
// Errors from writing are intentionally ignored for console output.
func (w *Writer) Status(icon, msg string) {
	if icon != "" {
		_, _ = fmt.Fprintf(w.out, "%s %s\n", icon, msg)
	} else {
		_, _ = fmt.Fprintf(w.out, "   %s\n", msg)
	}
}

// Statusf prints a formatted status message with an icon.
func (w *Writer) Statusf(icon, format string, args ...any) {
	w.Status(icon, fmt.Sprintf(format, args...))
}

// Success prints a success message with checkmark.
func (w *Writer) Success(msg string) {
	w.Status(w.styles.Success.Render("✓"), msg)
}

// Successf prints a formatted success message.
func (w *Writer) Successf(format string, args ...any) {
	w.Success(fmt.Sprintf(format, args...))
}

// Warning prints a warning message.
func (w *Writer) Warning(msg string) {
	w.Status(w.styles.Warning.Render("!"), msg)
}

// Warningf prints a formatted warning message.
func (w *Writer) Warningf(format string, args ...any) {
	w.Warning(fmt.Sprintf(format, args...))
}

// Error prints an error message.
func (w *Writer) Error(msg string) {
	w.Status(w.styles.Error.Render("✗"), msg)
}

// Errorf prints a formatted error message.
func (w *Writer) Errorf(format string, args ...any) {
	w.Error(fmt.Sprintf(format, args...))
}

// Newline prints an empty line.
func (w *Writer) Newline() {
	_, _ = fmt.Fprintln(w.out)
}

// JSON prints v as indented JSON.
func (w *Writer) JSON(v any) error {
	enc := json.NewEncoder(w.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

var stripTags = bluemonday.StrictPolicy()

// Results prints a search response as text: a summary line, each result with
// its rendered output stripped of markup, then the facets.
func (w *Writer) Results(resp *assemble.Response) {
	summary := fmt.Sprintf("%d result", resp.Count)
	if resp.Count != 1 {
		summary += "s"
	}
	if resp.Q != "" {
		summary += fmt.Sprintf(" for %q", resp.Q)
	}
	summary += ", " + resp.Sort
	_, _ = fmt.Fprintln(w.out, w.styles.Header.Render(summary))
	if resp.Escaped {
		w.Warning("query syntax was not valid, searched for the words literally")
	}
	w.Newline()

	for _, r := range resp.Results {
		_, _ = fmt.Fprintf(w.out, "%s  %s\n",
			w.styles.Title.Render(r.Title),
			w.styles.Type.Render(r.Type+" "+r.Key))
		if r.Timestamp != "" {
			_, _ = fmt.Fprintf(w.out, "  %s\n", w.styles.Dim.Render(r.Timestamp))
		}
		for _, line := range strings.Split(PlainText(r.Output), "\n") {
			if line = strings.TrimSpace(line); line != "" {
				_, _ = fmt.Fprintf(w.out, "  %s\n", line)
			}
		}
		if r.Error != "" {
			_, _ = fmt.Fprintf(w.out, "  %s\n", w.styles.Error.Render(r.Error))
		}
		w.Newline()
	}

	for _, f := range resp.Facets {
		if len(f.Values) == 0 {
			continue
		}
		parts := make([]string, len(f.Values))
		for i, v := range f.Values {
			label := v.Value
			if v.Label != "" {
				label = v.Label
			}
			part := fmt.Sprintf("%s (%d)", label, v.Count)
			if v.Selected {
				part = w.styles.Active.Render("[" + part + "]")
			}
			parts[i] = part
		}
		_, _ = fmt.Fprintf(w.out, "%s %s\n",
			w.styles.Label.Render(f.Name+":"),
			w.styles.Facet.Render(strings.Join(parts, ", ")))
	}
}

// PlainText strips markup from a rendered fragment.
func PlainText(fragment string) string {
	return strings.TrimSpace(html.UnescapeString(stripTags.Sanitize(fragment)))
}

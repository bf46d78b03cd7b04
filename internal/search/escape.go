package search

import "strings"

// EscapeFTS rewrites free text so the full-text engine reads every
// whitespace-separated token as a literal string: each token is wrapped in
// double quotes with embedded quotes doubled. Operators such as NOT or a
// leading # lose their meaning.
func EscapeFTS(q string) string {
	tokens := strings.Fields(q)
	for i, tok := range tokens {
		tokens[i] = `"` + strings.ReplaceAll(tok, `"`, `""`) + `"`
	}
	return strings.Join(tokens, " ")
}

// ftsErrorMarkers identify errors raised by the FTS5 query parser.
var ftsErrorMarkers = []string{
	"fts5:",
	"unterminated string",
	"malformed match expression",
	"no such column",
	"unknown special query",
}

// isFTSSyntax reports whether err came from parsing a MATCH expression.
func isFTSSyntax(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, m := range ftsErrorMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}

// Package render turns search results into HTML fragments using the display
// templates of the mapping document.
//
// Templates are Go text/template documents. The record fields are available
// at the top level ({{ .title }}, {{ .timestamp }}) and the display_sql row
// under .display. The output is sanitized, so templates may emit markup but
// never scripts.
package render

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html"
	"strings"
	"text/template"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/sync/singleflight"
)

// DefaultCacheSize is the number of compiled templates kept.
const DefaultCacheSize = 128

// TemplateRenderer renders display templates. It is safe for concurrent use.
type TemplateRenderer struct {
	cache  *lru.Cache[string, *template.Template]
	group  singleflight.Group
	policy *bluemonday.Policy
}

// New creates a renderer caching up to size compiled templates.
func New(size int) (*TemplateRenderer, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[string, *template.Template](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create template cache: %w", err)
	}
	return &TemplateRenderer{
		cache:  cache,
		policy: bluemonday.UGCPolicy(),
	}, nil
}

// Render renders one result of typeName. An empty display template renders
// the data as indented JSON inside <pre>.
func (r *TemplateRenderer) Render(typeName, display string, data map[string]any) (string, error) {
	if display == "" {
		return Fallback(data)
	}

	tmpl, err := r.compiled(typeName, display)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("execute display template: %w", err)
	}
	return r.policy.Sanitize(buf.String()), nil
}

// compiled returns the parsed template, parsing each distinct one once.
func (r *TemplateRenderer) compiled(typeName, display string) (*template.Template, error) {
	key := typeName + "\x00" + display
	if tmpl, ok := r.cache.Get(key); ok {
		return tmpl, nil
	}

	v, err, _ := r.group.Do(key, func() (any, error) {
		if tmpl, ok := r.cache.Get(key); ok {
			return tmpl, nil
		}
		tmpl, err := template.New(typeName).Parse(display)
		if err != nil {
			return nil, fmt.Errorf("parse display template: %w", err)
		}
		r.cache.Add(key, tmpl)
		return tmpl, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*template.Template), nil
}

// Len reports how many compiled templates are cached.
func (r *TemplateRenderer) Len() int {
	return r.cache.Len()
}

// Fallback renders data as HTML-escaped, indented JSON inside <pre>.
func Fallback(data map[string]any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(data); err != nil {
		return "", fmt.Errorf("encode record: %w", err)
	}
	return "<pre>" + html.EscapeString(strings.TrimSuffix(buf.String(), "\n")) + "</pre>", nil
}

// Package mapping loads the mapping document that projects source rows into
// the search index.
//
// The document maps a source database id to record types, each with a rule:
//
//	emails.db:
//	  emails:
//	    sql: select id as key, subject as title, date as timestamp, body as search_1 from emails
//	    display_sql: select * from emails where id = :key
//	    display: "<p>{{ .display.subject }}</p>"
//
// It is read fresh for every index run and every query; rules have no
// identity beyond their position in the document.
package mapping

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	berrors "github.com/Aman-CERP/amanbeta/internal/errors"
)

// Rule projects one record type of one source.
type Rule struct {
	// SQL selects rows from the source. It must yield key and title columns and
	// may yield timestamp, category, is_public and search_1..3.
	SQL string `json:"sql" yaml:"sql"`

	// DisplaySQL fetches extra display data for one result. It may reference
	// :key and :q.
	DisplaySQL string `json:"display_sql,omitempty" yaml:"display_sql,omitempty"`

	// Display is the template rendering one result.
	Display string `json:"display,omitempty" yaml:"display,omitempty"`
}

// Rules maps source id to record type to rule.
type Rules map[string]map[string]Rule

// Parse decodes a mapping document, trying JSON first and then YAML.
// Nothing is returned unless the whole document is valid.
func Parse(content []byte) (Rules, error) {
	var rules Rules
	jsonErr := json.Unmarshal(content, &rules)
	if jsonErr != nil {
		rules = nil
		if yamlErr := yaml.Unmarshal(content, &rules); yamlErr != nil {
			return nil, berrors.ConfigError("mapping document is neither JSON nor YAML", yamlErr).
				WithDetail("json_error", jsonErr.Error())
		}
	}

	if len(bytes.TrimSpace(content)) == 0 || rules == nil {
		return nil, berrors.ConfigError("mapping document is empty", nil)
	}
	if err := rules.Validate(); err != nil {
		return nil, err
	}
	return rules, nil
}

// Load reads and parses the mapping document at path. "-" reads stdin.
func Load(path string) (Rules, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, berrors.New(berrors.ErrCodeConfigNotFound,
			fmt.Sprintf("failed to read mapping document %s", path), err)
	}
	return Parse(data)
}

// Validate checks that every rule has a source id, a record type and SQL.
func (r Rules) Validate() error {
	for source, types := range r {
		if strings.TrimSpace(source) == "" {
			return berrors.ConfigError("mapping document has an empty source id", nil)
		}
		if len(types) == 0 {
			return berrors.ConfigError(fmt.Sprintf("source %s has no record types", source), nil)
		}
		for recordType, rule := range types {
			if strings.TrimSpace(recordType) == "" || strings.Contains(recordType, "/") {
				return berrors.ConfigError(
					fmt.Sprintf("source %s has an invalid record type %q", source, recordType), nil)
			}
			if strings.TrimSpace(rule.SQL) == "" {
				return berrors.ConfigError(
					fmt.Sprintf("rule %s has no sql", TypeName(source, recordType)), nil)
			}
		}
	}
	return nil
}

// Sources returns the source ids in sorted order.
func (r Rules) Sources() []string {
	sources := make([]string, 0, len(r))
	for s := range r {
		sources = append(sources, s)
	}
	sort.Strings(sources)
	return sources
}

// RecordTypes returns the record types of source in sorted order.
func (r Rules) RecordTypes(source string) []string {
	types := make([]string, 0, len(r[source]))
	for t := range r[source] {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Lookup resolves an index type string ("<source>/<record-type>") to its rule.
// Source ids may contain slashes; the record type never does.
func (r Rules) Lookup(typeName string) (Rule, bool) {
	source, recordType, ok := SplitType(typeName)
	if !ok {
		return Rule{}, false
	}
	rule, ok := r[source][recordType]
	return rule, ok
}

// Count returns the total number of rules.
func (r Rules) Count() int {
	n := 0
	for _, types := range r {
		n += len(types)
	}
	return n
}

// TypeName builds the index type string for a rule.
func TypeName(source, recordType string) string {
	return source + "/" + recordType
}

// SplitType splits an index type string into source id and record type.
func SplitType(typeName string) (source, recordType string, ok bool) {
	i := strings.LastIndex(typeName, "/")
	if i <= 0 || i == len(typeName)-1 {
		return "", "", false
	}
	return typeName[:i], typeName[i+1:], true
}

// SourcePath returns the filesystem path of a source id. Relative ids are
// taken relative to dir, or the working directory when dir is empty.
func SourcePath(source, dir string) string {
	if filepath.IsAbs(source) || dir == "" {
		return source
	}
	return filepath.Join(dir, source)
}

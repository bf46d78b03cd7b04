// Package ui renders index-run progress and index summaries on the terminal.
package ui

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
)

// Stage is a step of an index run.
type Stage int

const (
	// StageSchema creates or migrates the index schema.
	StageSchema Stage = iota
	// StageIndexing runs the mapping rules against their sources.
	StageIndexing
	// StageOptimize merges full-text segments and vacuums the index.
	StageOptimize
	// StageComplete indicates the run is finished.
	StageComplete
)

// String returns the human-readable stage name.
func (s Stage) String() string {
	switch s {
	case StageSchema:
		return "Schema"
	case StageIndexing:
		return "Indexing"
	case StageOptimize:
		return "Optimize"
	case StageComplete:
		return "Complete"
	default:
		return "Unknown"
	}
}

// Icon returns the short stage tag for plain text output.
func (s Stage) Icon() string {
	switch s {
	case StageSchema:
		return "SCHEMA"
	case StageIndexing:
		return "INDEX"
	case StageOptimize:
		return "OPTIMIZE"
	case StageComplete:
		return "DONE"
	default:
		return "???"
	}
}

// ProgressEvent is a progress update. During indexing, Item is the record
// type whose rule just finished and Rows how many rows it wrote.
type ProgressEvent struct {
	Stage   Stage
	Current int
	Total   int
	Item    string
	Rows    int64
	Message string
}

// ErrorEvent is a failure or warning during a run.
type ErrorEvent struct {
	Item   string
	Err    error
	IsWarn bool
}

// StageTimings tracks duration for each stage.
type StageTimings struct {
	Schema   time.Duration
	Index    time.Duration
	Optimize time.Duration
}

// CompletionStats contains final run statistics.
type CompletionStats struct {
	Sources  int
	Rules    int
	Rows     int64
	Duration time.Duration
	Errors   int
	Warnings int
	Stages   StageTimings
}

// Renderer displays index-run progress.
type Renderer interface {
	// Start initializes the renderer.
	Start(ctx context.Context) error

	// UpdateProgress updates progress display.
	UpdateProgress(event ProgressEvent)

	// AddError adds an error to display.
	AddError(event ErrorEvent)

	// Complete marks rendering as complete with summary.
	Complete(stats CompletionStats)

	// Stop stops the renderer and cleans up.
	Stop() error
}

// Config configures the UI renderer.
type Config struct {
	Output     io.Writer
	ForcePlain bool
	NoColor    bool
	// Title is shown in the TUI header, usually the index path.
	Title string
}

// ConfigOption is a function that modifies Config.
type ConfigOption func(*Config)

// WithForcePlain forces plain text output.
func WithForcePlain(force bool) ConfigOption {
	return func(c *Config) {
		c.ForcePlain = force
	}
}

// WithNoColor disables color output.
func WithNoColor(noColor bool) ConfigOption {
	return func(c *Config) {
		c.NoColor = noColor
	}
}

// WithTitle sets the TUI header title.
func WithTitle(title string) ConfigOption {
	return func(c *Config) {
		c.Title = title
	}
}

// NewConfig creates a new Config with the given output and options.
func NewConfig(output io.Writer, opts ...ConfigOption) Config {
	cfg := Config{Output: output}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// NewRenderer picks the TUI for interactive terminals and plain text for CI,
// pipes, or --no-tui.
func NewRenderer(cfg Config) Renderer {
	if cfg.ForcePlain || !IsTTY(cfg.Output) || DetectCI() {
		return NewPlainRenderer(cfg)
	}

	tui, err := NewTUIRenderer(cfg)
	if err != nil {
		return NewPlainRenderer(cfg)
	}
	return tui
}

// IsTTY checks if output is a terminal.
func IsTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok || f == nil {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// DetectNoColor checks if NO_COLOR environment variable is set.
func DetectNoColor() bool {
	_, exists := os.LookupEnv("NO_COLOR")
	return exists
}

// DetectCI checks if running in a CI environment.
func DetectCI() bool {
	for _, v := range []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL", "TRAVIS"} {
		if _, exists := os.LookupEnv(v); exists {
			return true
		}
	}
	return false
}

// NopRenderer discards all progress. Used by library callers and tests.
type NopRenderer struct{}

// Start implements Renderer.
func (NopRenderer) Start(context.Context) error { return nil }

// UpdateProgress implements Renderer.
func (NopRenderer) UpdateProgress(ProgressEvent) {}

// AddError implements Renderer.
func (NopRenderer) AddError(ErrorEvent) {}

// Complete implements Renderer.
func (NopRenderer) Complete(CompletionStats) {}

// Stop implements Renderer.
func (NopRenderer) Stop() error { return nil }

var _ Renderer = NopRenderer{}

package ui

import (
	"sync"
	"time"
)

// recentRules is how many finished rules the TUI lists.
const recentRules = 5

// ruleRow is one finished mapping rule.
type ruleRow struct {
	Type string
	Rows int64
}

// runState accumulates the events of one index run for the TUI. It is safe
// for concurrent use: the indexer writes, the bubbletea loop reads.
type runState struct {
	mu       sync.RWMutex
	stage    Stage
	message  string
	done     int
	total    int
	rows     int64
	rules    []ruleRow
	started  time.Time
	warnings []ErrorEvent
	errors   []ErrorEvent
}

// runSnapshot is a consistent copy of runState.
type runSnapshot struct {
	Stage    Stage
	Message  string
	Done     int
	Total    int
	Rows     int64
	Recent   []ruleRow
	Elapsed  time.Duration
	Warnings int
	Errors   []ErrorEvent
}

// Fraction is the share of rules finished, between 0 and 1.
func (s runSnapshot) Fraction() float64 {
	if s.Total <= 0 {
		return 0
	}
	return min(float64(s.Done)/float64(s.Total), 1)
}

func newRunState() *runState {
	return &runState{stage: StageSchema, started: time.Now()}
}

// apply records a progress event. An indexing event with an Item marks that
// rule as finished.
func (s *runState) apply(ev ProgressEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ev.Stage != s.stage {
		s.stage = ev.Stage
		s.message = ""
	}
	if ev.Message != "" {
		s.message = ev.Message
	}
	if ev.Stage != StageIndexing {
		return
	}
	s.done, s.total = ev.Current, ev.Total
	if ev.Item != "" {
		s.rows += ev.Rows
		s.rules = append(s.rules, ruleRow{Type: ev.Item, Rows: ev.Rows})
	}
}

func (s *runState) addError(ev ErrorEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ev.IsWarn {
		s.warnings = append(s.warnings, ev)
		return
	}
	s.errors = append(s.errors, ev)
}

func (s *runState) snapshot() runSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	recent := s.rules
	if len(recent) > recentRules {
		recent = recent[len(recent)-recentRules:]
	}
	return runSnapshot{
		Stage:    s.stage,
		Message:  s.message,
		Done:     s.done,
		Total:    s.total,
		Rows:     s.rows,
		Recent:   append([]ruleRow(nil), recent...),
		Elapsed:  time.Since(s.started),
		Warnings: len(s.warnings),
		Errors:   append([]ErrorEvent(nil), s.errors...),
	}
}

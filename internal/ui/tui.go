package ui

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// TUIRenderer draws an index run with bubbletea: the stage chain, a bar over
// the mapping rules, and the last few rules with their row counts.
type TUIRenderer struct {
	mu      sync.Mutex
	cfg     Config
	state   *runState
	model   *runModel
	program *tea.Program
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewTUIRenderer creates a TUI renderer. It fails when output is not a TTY.
func NewTUIRenderer(cfg Config) (*TUIRenderer, error) {
	if !IsTTY(cfg.Output) {
		return nil, fmt.Errorf("output is not a TTY")
	}
	state := newRunState()
	return &TUIRenderer{
		cfg:   cfg,
		state: state,
		model: newRunModel(state, cfg.Title, GetStyles(cfg.NoColor)),
		done:  make(chan struct{}),
	}, nil
}

// Start implements Renderer.
func (r *TUIRenderer) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.program != nil {
		return nil
	}
	ctx, r.cancel = context.WithCancel(ctx)

	opts := []tea.ProgramOption{tea.WithContext(ctx)}
	if f, ok := r.cfg.Output.(*os.File); ok {
		opts = append(opts, tea.WithOutput(f))
	}
	r.program = tea.NewProgram(r.model, opts...)

	go func() {
		defer close(r.done)
		_, _ = r.program.Run()
	}()
	return nil
}

// UpdateProgress implements Renderer.
func (r *TUIRenderer) UpdateProgress(event ProgressEvent) {
	r.state.apply(event)
	r.send(refreshMsg{})
}

// AddError implements Renderer.
func (r *TUIRenderer) AddError(event ErrorEvent) {
	r.state.addError(event)
	r.send(refreshMsg{})
}

// Complete implements Renderer.
func (r *TUIRenderer) Complete(stats CompletionStats) {
	r.state.apply(ProgressEvent{Stage: StageComplete})
	r.send(completeMsg(stats))
}

func (r *TUIRenderer) send(msg tea.Msg) {
	r.mu.Lock()
	p := r.program
	r.mu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}

// Stop implements Renderer. It waits briefly for the final frame.
func (r *TUIRenderer) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.program == nil {
		return nil
	}
	r.program.Quit()
	select {
	case <-r.done:
	case <-time.After(2 * time.Second):
	}
	r.cancel()
	return nil
}

type refreshMsg struct{}
type completeMsg CompletionStats

// runModel is the bubbletea model. All run data lives in state.
type runModel struct {
	state    *runState
	title    string
	styles   Styles
	spinner  spinner.Model
	bar      progress.Model
	width    int
	quitting bool
	summary  *CompletionStats
}

func newRunModel(state *runState, title string, styles Styles) *runModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.Active

	return &runModel{
		state:   state,
		title:   title,
		styles:  styles,
		spinner: sp,
		bar: progress.New(
			progress.WithSolidFill(ColorLime),
			progress.WithWidth(40),
			progress.WithoutPercentage(),
		),
		width: 80,
	}
}

// Init implements tea.Model.
func (m *runModel) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update implements tea.Model.
func (m *runModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if k := msg.String(); k == "ctrl+c" || k == "q" {
			m.quitting = true
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.bar.Width = max(msg.Width-24, 20)
	case completeMsg:
		stats := CompletionStats(msg)
		m.summary = &stats
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View implements tea.Model.
func (m *runModel) View() string {
	switch {
	case m.quitting:
		return "Cancelled.\n"
	case m.summary != nil:
		return m.viewSummary(*m.summary)
	}

	snap := m.state.snapshot()
	width := max(m.width-4, 40)

	body := []string{m.viewStages(snap.Stage), m.viewBar(snap)}
	if len(snap.Recent) > 0 {
		body = append(body, m.styles.Border.Render(strings.Repeat("─", width)))
		body = append(body, m.viewRules(snap.Recent, width)...)
	}
	if n := len(snap.Errors); n > 0 {
		last := snap.Errors[n-1]
		body = append(body, m.styles.Error.Render(truncate(fmt.Sprintf("✗ %s: %v", last.Item, last.Err), width)))
	}

	header := "amanbeta index"
	if m.title != "" {
		header += " • " + m.title
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		m.styles.Header.Render(header),
		m.styles.Panel.Width(width).Render(strings.Join(body, "\n")),
		m.viewFooter(snap),
	) + "\n"
}

func (m *runModel) viewStages(current Stage) string {
	parts := make([]string, 0, 3)
	for _, s := range []Stage{StageSchema, StageIndexing, StageOptimize} {
		switch {
		case s < current:
			parts = append(parts, m.styles.Success.Render("● "+s.String()))
		case s == current:
			parts = append(parts, m.styles.Active.Render(m.spinner.View()+" "+s.String()))
		default:
			parts = append(parts, m.styles.Dim.Render("○ "+s.String()))
		}
	}
	return strings.Join(parts, m.styles.Dim.Render(" → "))
}

func (m *runModel) viewBar(snap runSnapshot) string {
	if snap.Stage != StageIndexing || snap.Total == 0 {
		msg := snap.Message
		if msg == "" {
			msg = snap.Stage.String()
		}
		return m.styles.Dim.Render(msg + "...")
	}
	return fmt.Sprintf("%s  %s",
		m.bar.ViewAs(snap.Fraction()),
		m.styles.Label.Render(fmt.Sprintf("%d / %d rules", snap.Done, snap.Total)))
}

// viewRules lists finished rules, type left and row count right-aligned.
func (m *runModel) viewRules(rules []ruleRow, width int) []string {
	lines := make([]string, len(rules))
	for i, r := range rules {
		count := fmt.Sprintf("%d rows", r.Rows)
		name := truncate(r.Type, max(width-len(count)-4, 10))
		pad := max(width-lipgloss.Width(name)-len(count)-2, 1)
		lines[i] = m.styles.Type.Render(name) + strings.Repeat(" ", pad) + m.styles.Dim.Render(count)
	}
	return lines
}

func (m *runModel) viewFooter(snap runSnapshot) string {
	parts := []string{
		m.styles.Dim.Render(formatDuration(snap.Elapsed)),
		m.styles.Label.Render(fmt.Sprintf("%d rows", snap.Rows)),
	}
	if snap.Warnings > 0 {
		parts = append(parts, m.styles.Warning.Render(fmt.Sprintf("⚠ %d warnings", snap.Warnings)))
	}
	parts = append(parts, m.styles.Dim.Render("q to quit"))
	return strings.Join(parts, m.styles.Dim.Render("  │  "))
}

func (m *runModel) viewSummary(stats CompletionStats) string {
	row := func(label string, v any) string {
		return fmt.Sprintf("%-10s %s", m.styles.Label.Render(label), m.styles.Active.Render(fmt.Sprint(v)))
	}
	lines := []string{
		m.styles.Success.Render("✓ Index complete"),
		"",
		row("Sources:", stats.Sources),
		row("Rules:", stats.Rules),
		row("Rows:", stats.Rows),
		row("Duration:", formatDuration(stats.Duration)),
	}
	if stats.Stages.Index > 0 {
		lines = append(lines, m.styles.Dim.Render(fmt.Sprintf("schema %s, rules %s, optimize %s",
			formatDuration(stats.Stages.Schema),
			formatDuration(stats.Stages.Index),
			formatDuration(stats.Stages.Optimize))))
	}
	if stats.Warnings > 0 {
		lines = append(lines, m.styles.Warning.Render(fmt.Sprintf("⚠ %d warnings", stats.Warnings)))
	}
	if stats.Errors > 0 {
		lines = append(lines, m.styles.Error.Render(fmt.Sprintf("✗ %d errors", stats.Errors)))
	}
	return m.styles.Panel.Width(max(m.width-4, 40)).Render(strings.Join(lines, "\n")) + "\n"
}

// formatDuration formats a duration in a human-friendly way.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	d = d.Round(time.Second)
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		if s := int(d.Seconds()) % 60; s != 0 {
			return fmt.Sprintf("%dm %ds", int(d.Minutes()), s)
		}
		return fmt.Sprintf("%dm", int(d.Minutes()))
	default:
		return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
	}
}

// truncate shortens s from the left to at most n runes.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 3 {
		return "..."
	}
	return "..." + string(r[len(r)-n+3:])
}

var _ Renderer = (*TUIRenderer)(nil)

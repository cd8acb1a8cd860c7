// Package progress renders the indexing command's progress display: a
// live bar when stdout is a terminal, plain line-per-update output
// otherwise, trimmed to the single-stage bounded-parallelism indexing
// loop this tool drives.
package progress

import (
	"fmt"
	"io"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// Event is one progress update posted by the indexing driver.
type Event struct {
	Done    int
	Total   int
	Current string
	Failed  int
}

// Summary is the final tally printed when indexing completes.
type Summary struct {
	Indexed  int
	Skipped  int
	Failed   int
	Duration time.Duration
}

// Renderer displays indexing progress.
type Renderer interface {
	Start()
	Update(Event)
	Warn(path string, err error)
	Finish(Summary)
}

// New picks a TTY-driven bubbletea renderer when out is a terminal,
// falling back to plain line output otherwise (pipes, CI, --no-tui).
func New(out io.Writer, forcePlain bool) Renderer {
	if !forcePlain {
		if f, ok := out.(interface{ Fd() uintptr }); ok && isatty.IsTerminal(f.Fd()) {
			return newTUIRenderer(out)
		}
	}
	return newPlainRenderer(out)
}

// --- plain renderer ---------------------------------------------------

type plainRenderer struct {
	mu  sync.Mutex
	out io.Writer
}

func newPlainRenderer(out io.Writer) *plainRenderer {
	return &plainRenderer{out: out}
}

func (r *plainRenderer) Start() {}

func (r *plainRenderer) Update(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.out, "[%d/%d] %s\n", e.Done, e.Total, e.Current)
}

func (r *plainRenderer) Warn(path string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.out, "WARN: %s: %v\n", path, err)
}

func (r *plainRenderer) Finish(s Summary) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.out, "indexed %d, skipped %d, failed %d in %s\n",
		s.Indexed, s.Skipped, s.Failed, s.Duration.Round(10*time.Millisecond))
}

// --- TUI renderer -------------------------------------------------------

var (
	barFilled = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	barEmpty  = lipgloss.NewStyle().Foreground(lipgloss.Color("238"))
	dimStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	warnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
)

type tuiRenderer struct {
	program *tea.Program
	done    chan struct{}
}

func newTUIRenderer(out io.Writer) *tuiRenderer {
	m := &progressModel{}
	program := tea.NewProgram(m, tea.WithOutput(out), tea.WithoutSignalHandler())
	return &tuiRenderer{program: program, done: make(chan struct{})}
}

func (r *tuiRenderer) Start() {
	go func() {
		defer close(r.done)
		_, _ = r.program.Run()
	}()
}

func (r *tuiRenderer) Update(e Event) {
	r.program.Send(updateMsg(e))
}

func (r *tuiRenderer) Warn(path string, err error) {
	r.program.Send(warnMsg{path: path, err: err})
}

func (r *tuiRenderer) Finish(s Summary) {
	r.program.Send(finishMsg(s))
	<-r.done
}

type updateMsg Event
type warnMsg struct {
	path string
	err  error
}
type finishMsg Summary

type progressModel struct {
	event    Event
	warnings []string
	summary  *Summary
}

func (m *progressModel) Init() tea.Cmd { return nil }

func (m *progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch v := msg.(type) {
	case updateMsg:
		m.event = Event(v)
	case warnMsg:
		m.warnings = append(m.warnings, fmt.Sprintf("%s: %v", v.path, v.err))
	case finishMsg:
		s := Summary(v)
		m.summary = &s
		return m, tea.Quit
	}
	return m, nil
}

func (m *progressModel) View() string {
	if m.summary != nil {
		return fmt.Sprintf("indexed %d, skipped %d, failed %d in %s\n",
			m.summary.Indexed, m.summary.Skipped, m.summary.Failed,
			m.summary.Duration.Round(10*time.Millisecond))
	}

	const width = 30
	filled := 0
	if m.event.Total > 0 {
		filled = width * m.event.Done / m.event.Total
	}
	if filled > width {
		filled = width
	}
	bar := barFilled.Render(repeat("█", filled)) + barEmpty.Render(repeat("░", width-filled))

	line := fmt.Sprintf("%s %d/%d %s", bar, m.event.Done, m.event.Total, dimStyle.Render(m.event.Current))
	if len(m.warnings) > 0 {
		line += "\n" + warnStyle.Render(fmt.Sprintf("%d warning(s)", len(m.warnings)))
	}
	return line
}

func repeat(s string, n int) string {
	if n <= 0 {
		return ""
	}
	out := make([]byte, 0, len(s)*n)
	for i := 0; i < n; i++ {
		out = append(out, s...)
	}
	return string(out)
}

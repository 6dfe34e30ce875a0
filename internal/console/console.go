// Package console renders mission view models for a terminal.
package console

import (
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/gosuri/uitable"

	"github.com/roverops/missionctl/internal/mission"
	v1 "github.com/roverops/missionctl/pkg/apis/mission/v1"
)

type styles struct {
	title  lipgloss.Style
	muted  lipgloss.Style
	levels map[v1.LogLevel]lipgloss.Style
	status map[v1.MissionStatus]lipgloss.Style
	plain  lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	fg := func(c string) lipgloss.Style { return r.NewStyle().Foreground(lipgloss.Color(c)) }
	return styles{
		title: r.NewStyle().Bold(true),
		muted: fg("8"),
		levels: map[v1.LogLevel]lipgloss.Style{
			v1.LogLevelInfo:    fg("12"),
			v1.LogLevelWarning: fg("11"),
			v1.LogLevelError:   fg("9").Bold(true),
			v1.LogLevelSuccess: fg("10"),
		},
		status: map[v1.MissionStatus]lipgloss.Style{
			v1.MissionStatusComplete: fg("10").Bold(true),
			v1.MissionStatusError:    fg("9").Bold(true),
			v1.MissionStatusAborted:  fg("11").Bold(true),
		},
		plain: r.NewStyle(),
	}
}

func (s styles) level(l v1.LogLevel) lipgloss.Style {
	if st, ok := s.levels[l]; ok {
		return st
	}
	return s.plain
}

func (s styles) forStatus(st v1.MissionStatus) lipgloss.Style {
	if style, ok := s.status[st]; ok {
		return style
	}
	return s.title
}

// Renderer writes a running log of a mission: a header when a mission
// appears, a progress line when status or step changes, every new log
// entry, and a summary once the mission ends.
type Renderer struct {
	w      io.Writer
	styles styles
	grid   bool

	mu        sync.Mutex
	missionID string
	logs      int
	progress  string
	finished  bool
}

// Option customizes a Renderer.
type Option func(*Renderer)

// WithGrid includes the grid in the final summary.
func WithGrid(enabled bool) Option {
	return func(r *Renderer) { r.grid = enabled }
}

// NewRenderer creates a Renderer writing to w. Colors follow w's terminal
// capabilities.
func NewRenderer(w io.Writer, opts ...Option) *Renderer {
	r := &Renderer{
		w:      w,
		styles: newStyles(lipgloss.NewRenderer(w)),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Render writes what changed since the previous call. It fits
// mission.Reconciler.Subscribe.
func (r *Renderer) Render(vm mission.ViewModel) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if vm.MissionID != r.missionID {
		r.missionID = vm.MissionID
		r.logs = 0
		r.progress = ""
		r.finished = false
		if vm.MissionID != "" {
			fmt.Fprintln(r.w, r.styles.title.Render("Mission "+vm.MissionID)+" "+r.styles.muted.Render(vm.Goal))
		}
	}

	if p := progressLine(vm); p != r.progress {
		r.progress = p
		fmt.Fprintln(r.w, r.styles.forStatus(vm.Status).Render(p))
	}

	if r.logs > len(vm.Logs) {
		r.logs = 0
	}
	for _, e := range vm.Logs[r.logs:] {
		fmt.Fprintln(r.w, r.FormatLog(e))
	}
	r.logs = len(vm.Logs)

	if vm.Done() && !r.finished {
		r.finished = true
		fmt.Fprint(r.w, r.summary(vm))
	}
}

// FormatLog renders one log entry on a single line.
func (r *Renderer) FormatLog(e mission.LogEntry) string {
	ts := e.Timestamp
	if i := strings.IndexByte(ts, 'T'); i >= 0 {
		ts = ts[i+1:]
	}
	if i := strings.IndexByte(ts, '.'); i >= 0 {
		ts = ts[:i]
	}
	level := r.styles.level(e.Level).Render(string(e.Level))
	if pad := 7 - len(e.Level); pad > 0 {
		level += strings.Repeat(" ", pad)
	}
	return fmt.Sprintf("%s %s %-10s %s", r.styles.muted.Render(ts), level, e.Agent, e.Message)
}

// Summary renders the mission table, the agent table and, if enabled, the
// grid.
func (r *Renderer) Summary(vm mission.ViewModel) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.summary(vm)
}

func (r *Renderer) summary(vm mission.ViewModel) string {
	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(MissionTable(vm))
	b.WriteString("\n\n")
	if agents := AgentTable(vm); agents != "" {
		b.WriteString(agents)
		b.WriteString("\n\n")
	}
	if r.grid {
		b.WriteString(RenderGrid(vm))
		b.WriteString("\n")
	}
	return b.String()
}

// MissionTable renders the headline fields of vm.
func MissionTable(vm mission.ViewModel) string {
	t := uitable.New()
	t.MaxColWidth = 80
	t.Wrap = true

	t.AddRow("MISSION:", vm.MissionID)
	t.AddRow("GOAL:", vm.Goal)
	t.AddRow("STATUS:", vm.Status)
	t.AddRow("STEPS:", fmt.Sprintf("%d/%d", vm.StepsCompleted, vm.TotalSteps))
	if vm.RoverPosition != nil {
		t.AddRow("POSITION:", formatPosition(*vm.RoverPosition))
	}
	t.AddRow("WAYPOINTS:", len(vm.Path))
	t.AddRow("LOGS:", len(vm.Logs))
	return t.String()
}

// AgentTable renders the per-agent status of vm, or "" when none is known.
func AgentTable(vm mission.ViewModel) string {
	if len(vm.AgentStates) == 0 {
		return ""
	}

	agents := make([]string, 0, len(vm.AgentStates))
	for a := range vm.AgentStates {
		agents = append(agents, string(a))
	}
	slices.Sort(agents)

	t := uitable.New()
	t.AddRow("AGENT", "STATUS")
	for _, a := range agents {
		t.AddRow(a, vm.AgentStates[v1.AgentType(a)])
	}
	return t.String()
}

func progressLine(vm mission.ViewModel) string {
	line := fmt.Sprintf("[%s] step %d/%d", vm.Status, vm.CurrentStep, vm.TotalSteps)
	if vm.RoverPosition != nil {
		line += " at " + formatPosition(*vm.RoverPosition)
	}
	return line
}

func formatPosition(p v1.Position) string {
	return fmt.Sprintf("(%d, %d)", p.X, p.Y)
}

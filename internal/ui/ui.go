// Package ui renders CLI progress and results on a terminal.
package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	phaseStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#E5C07B"))
	runningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#E5C07B"))
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#98C379"))
	failStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B"))
	boxStyle     = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444444")).
			Padding(0, 1)
)

// AgentStatus represents the current state of one agent.
type AgentStatus int

const (
	StatusPending AgentStatus = iota
	StatusRunning
	StatusComplete
	StatusFailed
)

// AgentState holds the progress of a single agent.
type AgentState struct {
	Dimension string
	Status    AgentStatus
	StartTime time.Time
	EndTime   time.Time
	Score     int
	Error     error
}

// Progress displays live per-agent progress.
type Progress struct {
	mu        sync.Mutex
	w         io.Writer
	agents    map[string]*AgentState
	order     []string
	startTime time.Time
	ticker    *time.Ticker
	done      chan struct{}
	quiet     bool
	rendered  bool
}

// NewProgress creates a progress display for the given dimensions.
func NewProgress(w io.Writer, dimensions []string, quiet bool) *Progress {
	p := &Progress{
		w:         w,
		agents:    make(map[string]*AgentState),
		order:     dimensions,
		startTime: time.Now(),
		done:      make(chan struct{}),
		quiet:     quiet,
	}
	for _, d := range dimensions {
		p.agents[d] = &AgentState{Dimension: d, Status: StatusPending}
	}
	return p
}

// Start begins the refresh loop.
func (p *Progress) Start() {
	if p.quiet {
		return
	}

	p.ticker = time.NewTicker(100 * time.Millisecond)
	go func() {
		for {
			select {
			case <-p.ticker.C:
				p.render()
			case <-p.done:
				return
			}
		}
	}()

	p.render()
}

// Stop ends the display and clears it.
func (p *Progress) Stop() {
	if p.quiet {
		return
	}

	close(p.done)
	if p.ticker != nil {
		p.ticker.Stop()
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.rendered {
		p.clearLines(len(p.order) + 2)
	}
}

// AgentStarted marks an agent as running.
func (p *Progress) AgentStarted(dimension string) {
	p.update(dimension, func(s *AgentState) {
		s.Status = StatusRunning
		s.StartTime = time.Now()
	})
}

// AgentCompleted marks an agent as finished with a score.
func (p *Progress) AgentCompleted(dimension string, score int) {
	p.update(dimension, func(s *AgentState) {
		s.Status = StatusComplete
		s.EndTime = time.Now()
		s.Score = score
	})
}

// AgentFailed marks an agent as failed.
func (p *Progress) AgentFailed(dimension string, err error) {
	p.update(dimension, func(s *AgentState) {
		s.Status = StatusFailed
		s.EndTime = time.Now()
		s.Error = err
	})
}

// State returns a copy of the state of one agent.
func (p *Progress) State(dimension string) (AgentState, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.agents[dimension]
	if !ok {
		return AgentState{}, false
	}
	return *s, true
}

func (p *Progress) update(dimension string, fn func(*AgentState)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if s, ok := p.agents[dimension]; ok {
		fn(s)
	}
}

func (p *Progress) render() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.rendered {
		p.clearLines(len(p.order) + 2)
	}
	p.rendered = true

	fmt.Fprintf(p.w, "%s %s\n",
		titleStyle.Render(fmt.Sprintf("⚡ Evaluating %d dimensions", len(p.order))),
		dimStyle.Render(fmt.Sprintf("(%.1fs)", time.Since(p.startTime).Seconds())))
	for _, d := range p.order {
		fmt.Fprintln(p.w, agentLine(p.agents[d], time.Now()))
	}
	fmt.Fprintln(p.w)
}

func agentLine(s *AgentState, now time.Time) string {
	var icon, status string
	style := dimStyle

	switch s.Status {
	case StatusPending:
		icon, status = "○", "pending"
	case StatusRunning:
		style = runningStyle
		icon = spinner(now)
		status = fmt.Sprintf("evaluating... %.1fs", now.Sub(s.StartTime).Seconds())
	case StatusComplete:
		style = okStyle
		icon = "✓"
		status = fmt.Sprintf("score %d in %.1fs", s.Score, s.EndTime.Sub(s.StartTime).Seconds())
	case StatusFailed:
		style = failStyle
		icon = "✗"
		status = "failed: " + truncate(fmt.Sprint(s.Error), 60)
	}

	return fmt.Sprintf("  %s %-15s %s", style.Render(icon), truncate(s.Dimension, 15), style.Render(status))
}

func (p *Progress) clearLines(n int) {
	for i := 0; i < n; i++ {
		fmt.Fprint(p.w, "\033[A\033[K")
	}
}

func spinner(t time.Time) string {
	frames := []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}
	return frames[int(t.UnixMilli()/100)%len(frames)]
}

// truncate shortens s to at most max runes on one line.
func truncate(s string, max int) string {
	s = strings.TrimSpace(strings.ReplaceAll(s, "\n", " "))
	r := []rune(s)
	if len(r) > max {
		return string(r[:max-1]) + "…"
	}
	return s
}

// PrintHeader prints the requirement under evaluation.
func PrintHeader(w io.Writer, requirement string) {
	body := titleStyle.Render("Requirement Analyzer") + "\n" + dimStyle.Render(truncate(requirement, 70))
	fmt.Fprintf(w, "\n%s\n\n", boxStyle.Render(body))
}

// PrintPhase prints a phase header.
func PrintPhase(w io.Writer, phase string) {
	fmt.Fprintln(w, phaseStyle.Render("▸ "+phase))
}

// PrintSuccess prints a success message.
func PrintSuccess(w io.Writer, msg string) {
	fmt.Fprintln(w, okStyle.Render("✓ "+msg))
}

// PrintError prints an error message.
func PrintError(w io.Writer, msg string) {
	fmt.Fprintln(w, failStyle.Render("✗ "+msg))
}

// scoreStyle colours a 0-100 score by verdict band.
func scoreStyle(score int) lipgloss.Style {
	switch {
	case score < 35:
		return failStyle
	case score <= 70:
		return runningStyle
	default:
		return okStyle
	}
}

// PrintDimension prints one agent's judgment.
func PrintDimension(w io.Writer, dimension string, score int, rationale string, issues, suggestions []string) {
	lines := []string{
		titleStyle.Render(strings.ToUpper(dimension)) + "  " + scoreStyle(score).Render(fmt.Sprintf("%d/100", score)),
	}
	if rationale != "" {
		lines = append(lines, dimStyle.Render(rationale))
	}
	for _, i := range issues {
		lines = append(lines, failStyle.Render("• ")+i)
	}
	for _, s := range suggestions {
		lines = append(lines, okStyle.Render("→ ")+s)
	}
	fmt.Fprintln(w, boxStyle.Render(strings.Join(lines, "\n")))
}

// PrintVerdict prints the overall score and verdict.
func PrintVerdict(w io.Writer, score int, verdict string) {
	style := scoreStyle(score).Bold(true)
	fmt.Fprintf(w, "\n%s %s\n", style.Render(fmt.Sprintf("Overall %d/100", score)), dimStyle.Render("("+verdict+")"))
}

// PrintList prints a titled bullet list; it prints nothing for an empty list.
func PrintList(w io.Writer, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(w, "\n%s\n", phaseStyle.Render(title))
	for _, it := range items {
		fmt.Fprintf(w, "  • %s\n", it)
	}
}

// PrintSummary prints a summary of the run.
func PrintSummary(w io.Writer, total, succeeded, failed int, elapsed time.Duration) {
	fmt.Fprintf(w, "\n%s\n", dimStyle.Render("─── Summary ───"))
	fmt.Fprintf(w, "Dimensions evaluated: %d (%s, %s)\n",
		total,
		okStyle.Render(fmt.Sprintf("%d succeeded", succeeded)),
		failStyle.Render(fmt.Sprintf("%d failed", failed)))
	fmt.Fprintf(w, "Total time: %.1fs\n", elapsed.Seconds())
}

// IsTerminal checks if the given file is a terminal.
func IsTerminal(f *os.File) bool {
	stat, err := f.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) != 0
}

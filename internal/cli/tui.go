package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/matzehuels/stampforge/pkg/pipeline"
)

// Stage list styles
var (
	stageRunningStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	stageDoneStyle    = lipgloss.NewStyle().Foreground(colorWhite)
	stagePendingStyle = lipgloss.NewStyle().Foreground(colorDim)
	stageFailedStyle  = lipgloss.NewStyle().Foreground(colorRed)
)

// =============================================================================
// Messages
// =============================================================================

type stageStartMsg struct{ stage string }

type stageDoneMsg struct {
	stage    string
	duration time.Duration
	err      error
}

type convertDoneMsg struct {
	result *pipeline.Result
	err    error
}

type tickMsg struct{}

// =============================================================================
// Hooks bridge
// =============================================================================

// sender is the part of *tea.Program the hooks need.
type sender interface {
	Send(msg tea.Msg)
}

// stageHooks forwards pipeline events into a bubbletea program.
type stageHooks struct {
	p sender
}

func (h stageHooks) OnStageStart(_ context.Context, stage string) {
	h.p.Send(stageStartMsg{stage: stage})
}

func (h stageHooks) OnStageComplete(_ context.Context, stage string, d time.Duration, err error) {
	h.p.Send(stageDoneMsg{stage: stage, duration: d, err: err})
}

func (h stageHooks) OnConvertComplete(context.Context, string, int, time.Duration, error) {}

// =============================================================================
// ConvertModel - live stage view
// =============================================================================

type stageState int

const (
	statePending stageState = iota
	stateRunning
	stateDone
	stateFailed
)

type stageRow struct {
	name     string
	state    stageState
	duration time.Duration
}

// ConvertModel shows the progress of a single conversion stage by stage.
type ConvertModel struct {
	Input  string
	Stages []stageRow
	Result *pipeline.Result
	Err    error

	frame  int
	cancel context.CancelFunc
}

// NewConvertModel creates a model listing every pipeline stage as pending.
// cancel is called when the user aborts.
func NewConvertModel(input string, cancel context.CancelFunc) ConvertModel {
	rows := make([]stageRow, len(pipeline.Stages))
	for i, s := range pipeline.Stages {
		rows[i] = stageRow{name: s}
	}
	return ConvertModel{Input: input, Stages: rows, cancel: cancel}
}

func tick() tea.Cmd {
	return tea.Tick(80*time.Millisecond, func(time.Time) tea.Msg { return tickMsg{} })
}

func (m ConvertModel) Init() tea.Cmd {
	return tick()
}

func (m ConvertModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			if m.cancel != nil {
				m.cancel()
			}
		}
	case tickMsg:
		m.frame++
		return m, tick()
	case stageStartMsg:
		m.setState(msg.stage, stateRunning, 0)
	case stageDoneMsg:
		state := stateDone
		if msg.err != nil {
			state = stateFailed
		}
		m.setState(msg.stage, state, msg.duration)
	case convertDoneMsg:
		m.Result, m.Err = msg.result, msg.err
		return m, tea.Quit
	}
	return m, nil
}

func (m *ConvertModel) setState(stage string, state stageState, d time.Duration) {
	for i := range m.Stages {
		if m.Stages[i].name == stage {
			m.Stages[i].state = state
			m.Stages[i].duration = d
			return
		}
	}
}

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

func (m ConvertModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Converting "))
	b.WriteString(StyleHighlight.Render(m.Input))
	b.WriteString("\n\n")

	for _, row := range m.Stages {
		var icon, line string
		switch row.state {
		case statePending:
			icon, line = " ", stagePendingStyle.Render(row.name)
		case stateRunning:
			icon = styleIconSpinner.Render(spinnerFrames[m.frame%len(spinnerFrames)])
			line = stageRunningStyle.Render(row.name)
		case stateDone:
			icon = styleIconSuccess.Render(iconSuccess)
			line = stageDoneStyle.Render(fmt.Sprintf("%-12s", row.name)) +
				StyleDim.Render(row.duration.Round(time.Millisecond).String())
		case stateFailed:
			icon, line = styleIconError.Render(iconError), stageFailedStyle.Render(row.name)
		}
		fmt.Fprintf(&b, "  %s %s\n", icon, line)
	}

	if m.Result == nil && m.Err == nil {
		b.WriteString("\n")
		b.WriteString(StyleDim.Render("  q to cancel"))
	}
	b.WriteString("\n")
	return b.String()
}

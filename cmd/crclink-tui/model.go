package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dd0wney/crclink/pkg/app"
	"github.com/dd0wney/crclink/pkg/console"
	"github.com/dd0wney/crclink/pkg/logging"
	"github.com/dd0wney/crclink/pkg/selection"
	"github.com/dd0wney/crclink/pkg/session"
	"github.com/dd0wney/crclink/pkg/simulation"
	"github.com/dd0wney/crclink/pkg/topology"
)

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF00FF"))

	canvasStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#00FFFF"))

	panelStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#00FF00")).
			Padding(0, 1).
			MarginRight(1)

	logStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("#666666"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")).
			Width(12)

	failureStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(lipgloss.Color("#FF0000")).
			Bold(true).
			Padding(0, 1)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF0000")).
			Bold(true)

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFF00"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00FF00")).
			Bold(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888"))
)

// consolePing is the command broadcast by the console key
const consolePing = "ping"

type field int

const (
	fieldData field = iota
	fieldKey
	fieldErrorCount
	fieldDelay
	fieldLoss
	fieldCount
)

var fieldLabels = [fieldCount]string{"data", "key", "error count", "delay (s)", "loss (%)"}

// effectMsg carries a resolved effect back into the event loop
type effectMsg struct{ msg session.Msg }

type frameMsg console.Frame

type consoleClosedMsg struct{ err error }

type tickMsg time.Time

type refreshMsg time.Time

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func refreshCmd(after time.Duration) tea.Cmd {
	return tea.Tick(after, func(t time.Time) tea.Msg {
		return refreshMsg(t)
	})
}

func waitFrame(frames <-chan console.Frame, c *console.Client) tea.Cmd {
	return func() tea.Msg {
		f, ok := <-frames
		if !ok {
			return consoleClosedMsg{err: c.Err()}
		}
		return frameMsg(f)
	}
}

// press tracks a mouse button held down on the canvas
type press struct {
	id     topology.NodeID
	onNode bool
	origin topology.Position
	moved  bool
}

type model struct {
	ctx       context.Context
	app       *app.App
	state     session.State
	grid      grid
	inputs    []textinput.Model
	focus     field
	errorType simulation.ErrorType
	press     *press
	log       viewport.Model
	help      help.Model
	keys      keyMap
	width     int
	height    int
	logLines  int
}

func newModel(ctx context.Context, a *app.App) model {
	defaults := a.Config.Simulation

	placeholders := [fieldCount]string{
		"1011001",
		defaults.Key,
		fmt.Sprintf("%d", defaults.ErrorCount),
		fmt.Sprintf("%g", defaults.Delay),
		fmt.Sprintf("%g", defaults.PacketLossPercentage),
	}

	inputs := make([]textinput.Model, fieldCount)
	for i := range inputs {
		ti := textinput.New()
		ti.Prompt = ""
		ti.Placeholder = placeholders[i]
		ti.CharLimit = 64
		ti.Width = 24
		inputs[i] = ti
	}
	inputs[fieldData].CharLimit = 256

	state := a.NewState()
	return model{
		ctx:       ctx,
		app:       a,
		state:     state,
		grid:      newGrid(state.Canvas.Bounds),
		inputs:    inputs,
		focus:     -1,
		errorType: defaults.ErrorType,
		log:       viewport.New(gridCols+2, 6),
		help:      help.New(),
		keys:      keys,
	}
}

func (m model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		textinput.Blink,
		tickCmd(),
		refreshCmd(0),
	}
	if c := m.app.Console; c != nil {
		cmds = append(cmds, waitFrame(c.Frames(), c))
	}
	return tea.Batch(cmds...)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.resizeLog()
		return m, nil

	case tickMsg:
		m.app.Metrics.UpdateSystemMetrics(m.app.Started)
		return m, tickCmd()

	case refreshMsg:
		var cmds []tea.Cmd
		if !m.state.RefreshPending() {
			cmds = append(cmds, m.dispatch(session.RequestRefresh{}))
		}
		if interval := m.app.Config.Refresh.Interval; interval > 0 {
			cmds = append(cmds, refreshCmd(interval))
		}
		return m, tea.Batch(cmds...)

	case effectMsg:
		cmd := m.dispatch(msg.msg)
		return m, cmd

	case frameMsg:
		cmd := m.dispatch(session.ConsoleMessage{Frame: console.Frame(msg)})
		return m, tea.Batch(cmd, waitFrame(m.app.Console.Frames(), m.app.Console))

	case consoleClosedMsg:
		text := "connection closed"
		if msg.err != nil {
			text += ": " + msg.err.Error()
		}
		cmd := m.dispatch(session.ConsoleMessage{Frame: console.Frame{Error: text}})
		return m, cmd

	case tea.MouseMsg:
		cmd := m.mouse(msg)
		return m, cmd

	case tea.KeyMsg:
		if m.focus >= 0 {
			cmd := m.formKey(msg)
			return m, cmd
		}
		cmd := m.hotkey(msg)
		return m, cmd
	}

	return m, nil
}

func (m *model) hotkey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return tea.Quit
	case key.Matches(msg, m.keys.Start):
		return m.dispatch(m.app.Start(m.formInput()))
	case key.Matches(msg, m.keys.Refresh):
		return m.dispatch(session.RequestRefresh{})
	case key.Matches(msg, m.keys.Ensure):
		return m.dispatch(session.RequestEnsureNodes{})
	case key.Matches(msg, m.keys.Failure):
		return m.dispatch(session.RequestToggleFailure{})
	case key.Matches(msg, m.keys.ShutdownSource):
		return m.dispatch(session.RequestShutdown{Role: selection.RoleSource})
	case key.Matches(msg, m.keys.ShutdownDest):
		return m.dispatch(session.RequestShutdown{Role: selection.RoleDestination})
	case key.Matches(msg, m.keys.ErrorType):
		m.errorType = m.errorType.Next()
	case key.Matches(msg, m.keys.Console):
		return m.dispatch(session.SendConsoleCommand{Command: consolePing, Target: console.TargetAll})
	case key.Matches(msg, m.keys.Focus):
		return m.focusField(fieldData)
	case key.Matches(msg, m.keys.FocusPrev):
		return m.focusField(fieldLoss)
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		m.resizeLog()
	case key.Matches(msg, m.keys.LogUp), key.Matches(msg, m.keys.LogDown):
		var cmd tea.Cmd
		m.log, cmd = m.log.Update(msg)
		return cmd
	}
	return nil
}

func (m *model) formKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case msg.Type == tea.KeyCtrlC:
		return tea.Quit
	case key.Matches(msg, m.keys.Blur):
		return m.focusField(-1)
	case key.Matches(msg, m.keys.Focus):
		return m.focusField((m.focus + 1) % fieldCount)
	case key.Matches(msg, m.keys.FocusPrev):
		return m.focusField((m.focus + fieldCount - 1) % fieldCount)
	case key.Matches(msg, m.keys.Submit):
		m.focusField(-1)
		return m.dispatch(m.app.Start(m.formInput()))
	}

	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	return cmd
}

// focusField moves input focus; -1 returns the keyboard to hotkeys
func (m *model) focusField(f field) tea.Cmd {
	for i := range m.inputs {
		m.inputs[i].Blur()
	}
	m.focus = f
	if f < 0 {
		return nil
	}
	return m.inputs[f].Focus()
}

func (m *model) formInput() app.FormInput {
	return app.FormInput{
		Data:       m.inputs[fieldData].Value(),
		Key:        m.inputs[fieldKey].Value(),
		ErrorCount: m.inputs[fieldErrorCount].Value(),
		Delay:      m.inputs[fieldDelay].Value(),
		PacketLoss: m.inputs[fieldLoss].Value(),
		ErrorType:  m.errorType,
	}
}

// mouse turns canvas gestures into session messages. A press and release
// without motion is a click; motion while holding a node drags it.
func (m *model) mouse(msg tea.MouseMsg) tea.Cmd {
	if msg.Button != tea.MouseButtonLeft && msg.Action != tea.MouseActionRelease {
		return nil
	}

	switch msg.Action {
	case tea.MouseActionPress:
		col, row, ok := m.grid.screen(msg.X, msg.Y)
		if !ok {
			return nil
		}
		pos := m.grid.position(col, row)
		id, onNode := m.state.Canvas.HitTest(m.state.Registry, pos)
		m.press = &press{id: id, onNode: onNode, origin: pos}
		return nil

	case tea.MouseActionMotion:
		if m.press == nil || !m.press.onNode {
			return nil
		}
		col, row, _ := m.grid.screen(msg.X, msg.Y)
		pos := m.grid.position(col, row)
		if pos == m.press.origin && !m.press.moved {
			return nil
		}
		m.press.moved = true
		return m.dispatch(session.MoveNode{ID: m.press.id, X: pos.X, Y: pos.Y})

	case tea.MouseActionRelease:
		p := m.press
		m.press = nil
		switch {
		case p == nil:
			return nil
		case p.moved:
			return m.dispatch(session.CommitPosition{ID: p.id})
		default:
			return m.dispatch(session.ClickAt{Position: p.origin})
		}
	}
	return nil
}

// dispatch applies msg and schedules its effects
func (m *model) dispatch(msg session.Msg) tea.Cmd {
	var effects []session.Effect
	m.state, effects = m.app.Core.Update(m.state, msg)
	m.app.Observe(m.state)
	m.syncLog()

	cmds := make([]tea.Cmd, 0, len(effects))
	for _, e := range effects {
		cmds = append(cmds, m.run(e))
	}
	return tea.Batch(cmds...)
}

func (m *model) run(e session.Effect) tea.Cmd {
	ctx, runner := m.ctx, m.app.Runner
	return func() tea.Msg {
		if out := runner.Run(ctx, e); out != nil {
			return effectMsg{msg: out}
		}
		return nil
	}
}

func (m *model) syncLog() {
	if len(m.state.Log) == m.logLines && m.logLines < m.app.Config.Log.MaxLines {
		return
	}
	m.logLines = len(m.state.Log)

	lines := m.state.Lines()
	rendered := make([]string, len(lines))
	for i, l := range lines {
		rendered[i] = levelStyle(l.Level).Render(l.String())
	}
	m.log.SetContent(strings.Join(rendered, "\n"))
}

func levelStyle(l logging.Level) lipgloss.Style {
	switch l {
	case logging.ErrorLevel:
		return errorStyle
	case logging.WarnLevel:
		return warnStyle
	default:
		return lipgloss.NewStyle()
	}
}

func (m *model) resizeLog() {
	used := 1 + gridRows + 2 + 1 + (int(fieldCount) + 3) + 2 + 1
	if m.help.ShowAll {
		used += 3
	}
	m.log.Height = max(m.height-used, 3)
	m.log.Width = max(m.width-2, gridCols)
}

func (m model) View() string {
	if m.width == 0 {
		return "Initializing..."
	}

	var s strings.Builder

	title := titleStyle.Render("CRC Link console") + "  " + helpStyle.Render(m.app.Client.BaseURL())
	if m.state.FailureMode {
		title += "  " + failureStyle.Render("FAILURE MODE")
	}
	s.WriteString(title)
	s.WriteString("\n")

	s.WriteString(canvasStyle.Render(m.grid.render(m.state)))
	s.WriteString("\n")
	s.WriteString(m.renderStatus())
	s.WriteString("\n")

	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		panelStyle.Render(m.renderForm()),
		panelStyle.Render(m.renderResult()),
	))
	s.WriteString("\n")

	s.WriteString(logStyle.Render(m.log.View()))
	s.WriteString("\n")
	s.WriteString(helpStyle.Render(m.help.View(m.keys)))

	return s.String()
}

func (m model) renderStatus() string {
	sel := m.state.Selection.Selection()
	parts := []string{fmt.Sprintf("%d nodes", m.state.Registry.Len()), sel.State().String()}
	if id, ok := sel.Source(); ok {
		parts = append(parts, "source "+id.String())
	}
	if id, ok := sel.Destination(); ok {
		parts = append(parts, "destination "+id.String())
	}

	switch {
	case m.state.RefreshPending():
		parts = append(parts, "refreshing")
	case m.state.LastRefreshErr != nil:
		parts = append(parts, errorStyle.Render("collaborator unreachable"))
	case !m.state.LastRefresh.IsZero():
		parts = append(parts, "refreshed "+m.state.LastRefresh.Local().Format("15:04:05"))
	}
	if m.state.SimulationPending() {
		parts = append(parts, warnStyle.Render("simulating"))
	}
	return strings.Join(parts, " · ")
}

func (m model) renderForm() string {
	var s strings.Builder
	s.WriteString(titleStyle.Render("Transmission"))
	for i, in := range m.inputs {
		s.WriteString("\n")
		s.WriteString(labelStyle.Render(fieldLabels[i]))
		s.WriteString(in.View())
	}
	s.WriteString("\n")
	s.WriteString(labelStyle.Render("error type"))
	s.WriteString(string(m.errorType))
	return s.String()
}

func (m model) renderResult() string {
	var s strings.Builder
	s.WriteString(titleStyle.Render("Latest result"))

	res, req := m.state.LatestResult, m.state.LastRequest
	if res == nil || req == nil {
		s.WriteString("\n")
		s.WriteString(helpStyle.Render("no transmission yet"))
		return s.String()
	}

	verdict := simulation.Interpret(*res)
	verdictText := string(verdict)
	switch verdict {
	case simulation.VerdictClean, simulation.VerdictDetected:
		verdictText = successStyle.Render(verdictText)
	default:
		verdictText = errorStyle.Render(verdictText)
	}

	rows := [][2]string{
		{"route", fmt.Sprintf("%d -> %d", req.SourceID, req.DestinationID)},
		{"verdict", verdictText},
		{"delay", fmt.Sprintf("%.2fs", res.Delay)},
	}
	if !res.PacketLost {
		rows = append(rows,
			[2]string{"codeword", res.OriginalCodeword},
			[2]string{"remainder", res.CRCRemainder},
			[2]string{"received", res.ErrorInjectedCodeword},
			[2]string{"verified", fmt.Sprintf("%t", res.CRCVerification)},
		)
	} else if res.Error != "" {
		rows = append(rows, [2]string{"note", res.Error})
	}

	for _, r := range rows {
		s.WriteString("\n")
		s.WriteString(labelStyle.Render(r[0]))
		s.WriteString(r[1])
	}
	return s.String()
}

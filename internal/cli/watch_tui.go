package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/SeamusWaldron/qiyicube_ble_library"
)

// eventBuffer is the number of cube events queued for the view.
const eventBuffer = 256

// maxShownMoves limits the move list in the view.
const maxShownMoves = 24

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	solvedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39"))

	moveStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("82"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	netStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("241")).
			Padding(0, 1)
)

type watchModel struct {
	ctx     context.Context
	cancel  context.CancelFunc
	watcher *watcher
	events  chan tea.Msg
	spinner spinner.Model

	connected  bool
	device     qiyicube.Device
	hasState   bool
	state      qiyicube.CubeState
	battery    int
	moves      []qiyicube.Move
	moveCount  int
	solveCount int
	syncing    bool

	err      error
	quitting bool
}

func newWatchModel(ctx context.Context, w *watcher) *watchModel {
	ctx, cancel := context.WithCancel(ctx)
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = statusStyle

	m := &watchModel{
		ctx:     ctx,
		cancel:  cancel,
		watcher: w,
		events:  make(chan tea.Msg, eventBuffer),
		spinner: s,
		battery: -1,
	}
	w.emit = m.enqueue
	return m
}

// enqueue is called from the cube callbacks. Events are dropped when the
// view falls behind.
func (m *watchModel) enqueue(msg tea.Msg) {
	select {
	case m.events <- msg:
	default:
		m.watcher.log.Warn("view queue full, event dropped")
	}
}

func (m *watchModel) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		m.connectCmd(),
		m.listenForEvents(),
	)
}

func (m *watchModel) connectCmd() tea.Cmd {
	return func() tea.Msg {
		cube, err := m.watcher.connect(m.ctx)
		if err != nil {
			return connectErrMsg{err: err}
		}
		return connectedMsg{device: cube.Device()}
	}
}

func (m *watchModel) listenForEvents() tea.Cmd {
	return func() tea.Msg {
		select {
		case msg := <-m.events:
			return msg
		case <-m.ctx.Done():
			return nil
		}
	}
}

func (m *watchModel) syncCmd() tea.Cmd {
	return func() tea.Msg {
		m.watcher.mu.Lock()
		cube := m.watcher.cube
		m.watcher.mu.Unlock()
		if cube == nil {
			return syncDoneMsg{err: qiyicube.ErrNotConnected}
		}
		return syncDoneMsg{err: cube.RequestSync(m.ctx)}
	}
}

func (m *watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			m.quitting = true
			m.cancel()
			return m, tea.Quit

		case "s":
			if m.connected && !m.syncing {
				m.syncing = true
				return m, m.syncCmd()
			}

		case "c":
			m.moves = nil
		}

	case spinner.TickMsg:
		if m.connected || m.err != nil {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case connectedMsg:
		m.connected = true
		m.device = msg.device
		m.err = nil

	case connectErrMsg:
		m.err = fmt.Errorf("connection failed: %w", msg.err)

	case syncDoneMsg:
		m.syncing = false
		if msg.err != nil {
			m.err = fmt.Errorf("sync failed: %w", msg.err)
		}

	case stateMsg:
		m.hasState = true
		m.state = msg.state
		m.battery = msg.battery
		return m, m.listenForEvents()

	case moveMsg:
		m.moveCount++
		m.moves = append(m.moves, msg.move)
		if len(m.moves) > maxShownMoves {
			m.moves = m.moves[len(m.moves)-maxShownMoves:]
		}
		return m, m.listenForEvents()

	case solvedMsg:
		m.solveCount++
		return m, m.listenForEvents()

	case disconnectedMsg:
		m.connected = false
		if msg.err != nil {
			m.err = fmt.Errorf("disconnected: %w", msg.err)
			m.watcher.log.Warn("cube disconnected", zap.Error(msg.err))
		}
		return m, m.listenForEvents()
	}

	return m, nil
}

func (m *watchModel) View() string {
	if m.quitting {
		return "Goodbye!\n"
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("QiYi Smart Cube"))
	b.WriteString("\n\n")

	switch {
	case m.connected:
		status := fmt.Sprintf("Connected: %s", m.device.Name)
		if m.battery >= 0 {
			status += fmt.Sprintf(" (Battery: %d%%)", m.battery)
		}
		b.WriteString(statusStyle.Render(status))
	case m.err == nil:
		b.WriteString(fmt.Sprintf("%s Connecting to %s...", m.spinner.View(), m.watcher.address))
	default:
		b.WriteString(statusStyle.Render("Not connected"))
	}
	b.WriteString("\n\n")

	if m.hasState {
		b.WriteString(netStyle.Render(renderNet(m.state)))
		b.WriteString("\n")
		if m.state.IsSolved() {
			b.WriteString(solvedStyle.Render("SOLVED"))
			b.WriteString("\n")
		}
	}

	b.WriteString(fmt.Sprintf("Moves: %d   Solves: %d\n", m.moveCount, m.solveCount))
	if len(m.moves) > 0 {
		b.WriteString(moveStyle.Render(qiyicube.FormatMoves(m.moves)))
		b.WriteString("\n")
	}

	if m.watcher.rec != nil && m.watcher.rec.SessionID() != "" {
		b.WriteString(statusStyle.Render(fmt.Sprintf("Recording session %s", shortID(m.watcher.rec.SessionID()))))
		b.WriteString("\n")
	}

	if m.err != nil {
		b.WriteString("\n")
		b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(helpStyle.Render("s: sync solved • c: clear moves • q: quit"))
	b.WriteString("\n")

	return b.String()
}

// renderNet draws the cube as an unfolded net:
//
//	   U
//	L  F  R  B
//	   D
func renderNet(s qiyicube.CubeState) string {
	row := func(f qiyicube.Face, r int) string {
		face := s.Face(f)
		var sb strings.Builder
		for c := 0; c < 3; c++ {
			sb.WriteString(face[r*3+c].Emoji())
		}
		return sb.String()
	}
	// Three emoji are six cells wide, plus the gap.
	indent := strings.Repeat(" ", 7)

	var lines []string
	for r := 0; r < 3; r++ {
		lines = append(lines, indent+row(qiyicube.FaceU, r))
	}
	for r := 0; r < 3; r++ {
		lines = append(lines, strings.Join([]string{
			row(qiyicube.FaceL, r),
			row(qiyicube.FaceF, r),
			row(qiyicube.FaceR, r),
			row(qiyicube.FaceB, r),
		}, " "))
	}
	for r := 0; r < 3; r++ {
		lines = append(lines, indent+row(qiyicube.FaceD, r))
	}
	return strings.Join(lines, "\n")
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func runTUI(ctx context.Context, w *watcher) error {
	model := newWatchModel(ctx, w)
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	final, err := p.Run()
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	if fm, ok := final.(*watchModel); ok && fm.err != nil && !fm.connected {
		return fm.err
	}
	return nil
}

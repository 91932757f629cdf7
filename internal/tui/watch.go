// internal/tui/watch.go
//
// The townwatch viewer. It follows bubbletea's Elm loop:
//
// 1. Model: the viewer state (event lines, governor snapshot)
// 2. Update: folds key presses and stream messages into new state
// 3. View: renders the event log plus a status bar
//
// The viewer never touches the simulation directly; it reads released
// events from a channel and steers playback through the governor's
// control surface.

package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kgang/agenttown/internal/governor"
	"github.com/kgang/agenttown/internal/narrative"
	"github.com/kgang/agenttown/internal/town"
)

const (
	maxLines              = 500
	statusRefreshInterval = 250 * time.Millisecond
)

// Controller is the slice of the governor the viewer drives.
type Controller interface {
	Pause()
	Resume()
	Stop()
	SpeedUp()
	SlowDown()
	Status() governor.Snapshot
}

type eventMsg town.Event

type streamClosedMsg struct{}

type statusTickMsg time.Time

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	pausedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
	doneStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("82"))
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("238"))
)

// Watch is the viewer model.
type Watch struct {
	events   <-chan town.Event
	governor Controller
	renderer *narrative.Renderer

	viewport viewport.Model
	lines    []string
	snapshot governor.Snapshot
	closed   bool
	ready    bool
	width    int
	height   int
}

// NewWatch builds the viewer. The renderer may be nil; raw operations are
// shown instead of narration.
func NewWatch(events <-chan town.Event, gov Controller, renderer *narrative.Renderer) *Watch {
	return &Watch{
		events:   events,
		governor: gov,
		renderer: renderer,
		snapshot: gov.Status(),
	}
}

// Init starts the event stream reader and the status ticker.
func (w *Watch) Init() tea.Cmd {
	return tea.Batch(w.waitForEvent(), statusTick())
}

func (w *Watch) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		evt, ok := <-w.events
		if !ok {
			return streamClosedMsg{}
		}
		return eventMsg(evt)
	}
}

func statusTick() tea.Cmd {
	return tea.Tick(statusRefreshInterval, func(t time.Time) tea.Msg {
		return statusTickMsg(t)
	})
}

// Update folds one message into the model.
func (w *Watch) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		w.width = msg.Width
		w.height = msg.Height
		headerHeight := 1
		footerHeight := 2
		if !w.ready {
			w.viewport = viewport.New(msg.Width, msg.Height-headerHeight-footerHeight)
			w.ready = true
		} else {
			w.viewport.Width = msg.Width
			w.viewport.Height = msg.Height - headerHeight - footerHeight
		}
		w.refreshViewport()
		return w, nil

	case tea.KeyMsg:
		return w.handleKey(msg)

	case eventMsg:
		w.appendEvent(town.Event(msg))
		return w, w.waitForEvent()

	case streamClosedMsg:
		w.closed = true
		w.snapshot = w.governor.Status()
		return w, nil

	case statusTickMsg:
		w.snapshot = w.governor.Status()
		return w, statusTick()
	}

	var cmd tea.Cmd
	w.viewport, cmd = w.viewport.Update(msg)
	return w, cmd
}

func (w *Watch) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		w.governor.Stop()
		return w, tea.Quit
	case " ":
		if w.snapshot.Status == governor.StatusPaused {
			w.governor.Resume()
		} else {
			w.governor.Pause()
		}
		w.snapshot = w.governor.Status()
		return w, nil
	case "+", "=":
		w.governor.SpeedUp()
		w.snapshot = w.governor.Status()
		return w, nil
	case "-", "_":
		w.governor.SlowDown()
		w.snapshot = w.governor.Status()
		return w, nil
	}
	var cmd tea.Cmd
	w.viewport, cmd = w.viewport.Update(msg)
	return w, cmd
}

func (w *Watch) appendEvent(evt town.Event) {
	line := evt.Operation
	if w.renderer != nil {
		line = w.renderer.Render(evt)
	}
	w.lines = append(w.lines, line)
	if len(w.lines) > maxLines {
		w.lines = w.lines[len(w.lines)-maxLines:]
	}
	w.refreshViewport()
}

func (w *Watch) refreshViewport() {
	if !w.ready {
		return
	}
	w.viewport.SetContent(strings.Join(w.lines, "\n"))
	w.viewport.GotoBottom()
}

// View renders the full screen.
func (w *Watch) View() string {
	if !w.ready {
		return "starting townwatch..."
	}
	header := titleStyle.Render("townwatch")
	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		w.viewport.View(),
		w.statusLine(),
		helpStyle.Render("space pause/resume · +/- speed · q quit"),
	)
}

func (w *Watch) statusLine() string {
	snap := w.snapshot
	state := string(snap.Status)
	style := statusStyle
	switch {
	case w.closed:
		state = "complete"
		style = doneStyle
	case snap.Status == governor.StatusPaused:
		style = pausedStyle
	}
	return style.Render(fmt.Sprintf(
		"%s · speed %.2fx · phase %d (%s) · %d events",
		state, snap.Speed, snap.PhaseIndex, town.DaypartAt(snap.PhaseIndex), snap.TotalEvents,
	))
}

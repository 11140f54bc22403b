package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/wasmbridge/callbridge"
	"github.com/wasmbridge/callbridge/dispatch"
	"github.com/wasmbridge/callbridge/registry"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	liveStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	staleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	registryStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type monitorModel struct {
	err      error
	bridge   *callbridge.Bridge
	guest    *callbridge.Guest
	events   chan string
	lines    []string
	viewport viewport.Model
	notifyID registry.Identity
	ready    bool
}

type bridgeUpMsg struct {
	err      error
	bridge   *callbridge.Bridge
	guest    *callbridge.Guest
	events   chan string
	notifyID registry.Identity
}

type feedMsg string

type actionMsg struct {
	err  error
	line string
}

func newMonitorModel(wasmFile string) *monitorModel {
	m := &monitorModel{}
	m.setup(wasmFile)
	return m
}

func (m *monitorModel) setup(wasmFile string) {
	ctx := context.Background()
	events := make(chan string, 64)

	bridge, err := callbridge.New(ctx, &callbridge.Config{
		Tap: func(e dispatch.TapEvent) {
			line := fmt.Sprintf("dispatch  [%s] identity=%d", e.Code, e.Identity)
			if e.Stale {
				line = staleStyle.Render(line + "  stale, dropped")
			} else {
				line = liveStyle.Render(line)
			}
			select {
			case events <- line:
			default:
			}
		},
	})
	if err != nil {
		m.err = err
		return
	}

	bridge.Registry().Subscribe(registry.ObserverFunc(func(e registry.Event) {
		line := registryStyle.Render(
			fmt.Sprintf("registry  %s identity=%d async=%v", e.Type, e.Identity, e.Async))
		select {
		case events <- line:
		default:
		}
	}))

	wasm, err := loadWasm(wasmFile)
	if err != nil {
		bridge.Close(ctx)
		m.err = err
		return
	}
	guest, err := bridge.LoadGuest(ctx, wasm, "demo")
	if err != nil {
		bridge.Close(ctx)
		m.err = err
		return
	}

	notifyID, err := bridge.OnMessage(func(string) {})
	if err != nil {
		bridge.Close(ctx)
		m.err = err
		return
	}

	m.bridge = bridge
	m.guest = guest
	m.events = events
	m.notifyID = notifyID
}

func (m *monitorModel) Init() tea.Cmd {
	if m.err != nil {
		return nil
	}
	return m.listen
}

func (m *monitorModel) listen() tea.Msg {
	return feedMsg(<-m.events)
}

func (m *monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-4)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - 4
		}
		m.refresh()

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			if m.bridge != nil {
				m.bridge.Close(context.Background())
			}
			return m, tea.Quit

		case "t":
			return m, m.call("tick")
		case "n":
			return m, m.notify()
		case "c":
			return m, m.change()
		case "r":
			m.bridge.Release(m.notifyID)
		case "m":
			id, err := m.bridge.OnMessage(func(string) {})
			if err != nil {
				m.err = err
				return m, nil
			}
			m.notifyID = id
		case "up", "k":
			m.viewport.LineUp(1)
		case "down", "j":
			m.viewport.LineDown(1)
		}

	case feedMsg:
		m.lines = append(m.lines, string(msg))
		m.refresh()
		return m, m.listen

	case actionMsg:
		if msg.err != nil {
			m.err = msg.err
		} else if msg.line != "" {
			m.lines = append(m.lines, msg.line)
			m.refresh()
		}
	}

	return m, nil
}

func (m *monitorModel) refresh() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(strings.Join(m.lines, "\n"))
	m.viewport.GotoBottom()
}

// call drives a niladic-payload trampoline with a fresh identity.
func (m *monitorModel) call(export string) tea.Cmd {
	return func() tea.Msg {
		id, err := m.bridge.OnTick(func() {})
		if err != nil {
			return actionMsg{err: err}
		}
		defer m.bridge.Release(id)
		if _, err := m.guest.Call(context.Background(), export, uint64(id)); err != nil {
			return actionMsg{err: err}
		}
		return actionMsg{}
	}
}

// notify drives the text trampoline with the monitor's long-lived
// identity; after r it shows the stale drop path.
func (m *monitorModel) notify() tea.Cmd {
	id := m.notifyID
	return func() tea.Msg {
		if _, err := m.guest.Call(context.Background(), "notify", uint64(id), textHello); err != nil {
			return actionMsg{err: err}
		}
		return actionMsg{}
	}
}

func (m *monitorModel) change() tea.Cmd {
	return func() tea.Msg {
		var got string
		id, err := m.bridge.OnChange(func(op int32, db, table string, rowid int64) {
			got = fmt.Sprintf("closure   op=%d %s.%s rowid=%d", op, db, table, rowid)
		})
		if err != nil {
			return actionMsg{err: err}
		}
		defer m.bridge.Release(id)
		rowid := int64(-123456789012345)
		_, err = m.guest.Call(context.Background(), "change",
			uint64(id), 23, textMain, textUsers, uint64(rowid))
		if err != nil {
			return actionMsg{err: err}
		}
		return actionMsg{line: got}
	}
}

func (m *monitorModel) View() string {
	if m.err != nil {
		return errorStyle.Render(fmt.Sprintf("Error: %v\n\nPress q to quit.", m.err))
	}
	if !m.ready {
		return "Starting bridge..."
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("Callback Monitor"))
	b.WriteString(fmt.Sprintf("  live identities: %d\n", m.bridge.Registry().Len()))
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("t tick • n notify • c change • r release • m re-register • ↑/↓ scroll • q quit"))
	return b.String()
}

func runInteractive(wasmFile string) error {
	p := tea.NewProgram(newMonitorModel(wasmFile), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

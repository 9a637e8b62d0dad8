// Package ui is the terminal front end of a participant: the call buttons
// and what the call is doing.
package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dkeye/Consult/internal/adapters/preview"
	"github.com/dkeye/Consult/internal/app/call"
	"github.com/dkeye/Consult/internal/domain"
)

const statsInterval = time.Second

// Caller is the part of call.Controller the UI drives.
type Caller interface {
	Start(ctx context.Context) error
	HangUp(ctx context.Context) error
	ToggleAudioMute() bool
	ToggleVideoMute() bool
	State() call.State
	Controls() domain.Controls
	Updates() <-chan call.State
}

type StateMsg call.State
type ErrorMsg struct{ Err error }
type statsMsg []preview.Stream

type Model struct {
	ctx    context.Context
	caller Caller
	remote func() []preview.Stream

	State   call.State
	Streams []preview.Stream
	Err     error

	keys    keyMap
	help    help.Model
	spinner spinner.Model
}

// NewModel builds the UI for one controller. remote may be nil.
func NewModel(ctx context.Context, caller Caller, remote func() []preview.Stream) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(colorWarn)

	m := Model{
		ctx:     ctx,
		caller:  caller,
		remote:  remote,
		State:   caller.State(),
		keys:    newKeyMap(),
		help:    help.New(),
		spinner: s,
	}
	m.keys.apply(caller.Controls())
	return m
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitState(m.caller.Updates()), m.pollStats())
}

func waitState(ch <-chan call.State) tea.Cmd {
	return func() tea.Msg {
		st, ok := <-ch
		if !ok {
			return nil
		}
		return StateMsg(st)
	}
}

func (m Model) pollStats() tea.Cmd {
	if m.remote == nil {
		return nil
	}
	return tea.Tick(statsInterval, func(time.Time) tea.Msg { return statsMsg(m.remote()) })
}

func (m Model) run(fn func(context.Context) error) tea.Cmd {
	return func() tea.Msg {
		if err := fn(m.ctx); err != nil {
			return ErrorMsg{Err: err}
		}
		return nil
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Sequence(m.run(m.caller.HangUp), tea.Quit)
		case key.Matches(msg, m.keys.Start):
			m.Err = nil
			return m, m.run(m.caller.Start)
		case key.Matches(msg, m.keys.HangUp):
			return m, m.run(m.caller.HangUp)
		case key.Matches(msg, m.keys.MuteAudio):
			m.caller.ToggleAudioMute()
			m.refresh(m.caller.State())
		case key.Matches(msg, m.keys.MuteVideo):
			m.caller.ToggleVideoMute()
			m.refresh(m.caller.State())
		}

	case StateMsg:
		m.refresh(call.State(msg))
		return m, waitState(m.caller.Updates())

	case statsMsg:
		m.Streams = msg
		return m, m.pollStats()

	case ErrorMsg:
		m.Err = msg.Err

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) refresh(st call.State) {
	m.State = st
	m.keys.apply(domain.ControlsFor(st.Phase))
}

func onOff(muted bool) string {
	if muted {
		return "muted"
	}
	return "on"
}

func (m Model) View() string {
	st := m.State
	phase := phaseStyle(st.Phase.Active(), st.Phase == domain.PhaseConnected).Render(st.Phase.String())
	if st.Phase == domain.PhaseStarting || st.Phase == domain.PhaseNegotiating {
		phase = m.spinner.View() + " " + phase
	}

	rows := []string{
		titleStyle.Render("Consult · " + string(st.Room)),
		lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render("call"), phase),
	}
	if st.Role != domain.RoleUnknown {
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render("role"), valueStyle.Render(st.Role.String())))
	}
	if st.Phase.Active() {
		rows = append(rows,
			lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render("mic"), valueStyle.Render(onOff(st.AudioMuted))),
			lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render("camera"), valueStyle.Render(onOff(st.VideoMuted))),
		)
	}
	for _, s := range m.Streams {
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top,
			labelStyle.Render("peer "+s.Kind),
			valueStyle.Render(fmt.Sprintf("%d pkts, %d B", s.Packets, s.Bytes))))
	}
	if err := m.err(); err != nil {
		rows = append(rows, errorStyle.Render(err.Error()))
	}
	rows = append(rows, "", m.help.View(m.keys))
	return containerStyle.Render(strings.Join(rows, "\n"))
}

func (m Model) err() error {
	if m.Err != nil {
		return m.Err
	}
	return m.State.Err
}

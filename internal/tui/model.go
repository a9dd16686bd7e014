// Package tui is the full-screen terminal front end: a scrolling transcript
// rendered from a chat.Feed, a status line and a single-line input.
package tui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/bitop-dev/chat"
)

// Welcome is the first transcript line of a new conversation.
const Welcome = "Welcome to the chat TUI! Type your message below."

// Conversation is the part of chat.Session the front end drives.
type Conversation interface {
	Submit(ctx context.Context, text string) error
	Busy() bool
	Cancel()
}

type (
	feedUpdatedMsg struct{}
	submitErrMsg   struct{ err error }
)

type keymap struct {
	Send   key.Binding
	Quit   key.Binding
	Cancel key.Binding
}

func defaultKeymap() keymap {
	return keymap{
		Send:   key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "send")),
		Quit:   key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "quit")),
		Cancel: key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "cancel/quit")),
	}
}

// scrollKeys keeps the viewport off printable keys so typing never scrolls.
func scrollKeys() viewport.KeyMap {
	return viewport.KeyMap{
		PageUp:   key.NewBinding(key.WithKeys("pgup"), key.WithHelp("pgup", "scroll up")),
		PageDown: key.NewBinding(key.WithKeys("pgdown"), key.WithHelp("pgdn", "scroll down")),
		Up:       key.NewBinding(key.WithKeys("ctrl+up")),
		Down:     key.NewBinding(key.WithKeys("ctrl+down")),
	}
}

type Model struct {
	ctx  context.Context
	conv Conversation
	feed *chat.Feed

	transcript viewport.Model
	input      textinput.Model
	spinner    spinner.Model
	keys       keymap

	width  int
	status string
	notice string
	follow bool
}

func New(ctx context.Context, conv Conversation, feed *chat.Feed) Model {
	in := textinput.New()
	in.Focus()
	in.Prompt = "> "
	in.CharLimit = 4096

	vp := viewport.New(0, 0)
	vp.KeyMap = scrollKeys()

	sp := spinner.New()
	sp.Spinner = spinner.Points
	sp.Style = statusStyle

	return Model{
		ctx:        ctx,
		conv:       conv,
		feed:       feed,
		transcript: vp,
		input:      in,
		spinner:    sp,
		keys:       defaultKeymap(),
		follow:     true,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick, func() tea.Msg { return feedUpdatedMsg{} })
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.transcript.Width = msg.Width
		m.transcript.Height = max(msg.Height-3, 1)
		m.input.Width = max(msg.Width-len(m.input.Prompt)-1, 1)
		m.refresh()
		return m, nil

	case feedUpdatedMsg:
		m.refresh()
		return m, waitForFeed(m.feed)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case submitErrMsg:
		m.notice = msg.err.Error()
		return m, nil

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.transcript, cmd = m.transcript.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Cancel):
			if m.conv.Busy() {
				m.conv.Cancel()
				return m, nil
			}
			return m, tea.Quit

		case key.Matches(msg, m.keys.Quit):
			if m.conv.Busy() {
				return m, nil
			}
			return m, tea.Quit

		case key.Matches(msg, m.transcript.KeyMap.PageUp, m.transcript.KeyMap.PageDown,
			m.transcript.KeyMap.Up, m.transcript.KeyMap.Down):
			var cmd tea.Cmd
			m.transcript, cmd = m.transcript.Update(msg)
			m.follow = m.transcript.AtBottom()
			return m, cmd

		case key.Matches(msg, m.keys.Send):
			if m.conv.Busy() {
				return m, nil
			}
			line := strings.TrimSpace(m.input.Value())
			if line == "" {
				return m, nil
			}
			m.input.Reset()
			m.notice = ""
			m.follow = true
			if err := m.conv.Submit(m.ctx, line); err != nil {
				return m, func() tea.Msg { return submitErrMsg{err: err} }
			}
			return m, nil
		}

		if m.conv.Busy() {
			return m, nil
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) View() string {
	return m.transcript.View() + "\n" + m.statusLine() + "\n" + m.input.View()
}

func (m Model) statusLine() string {
	switch {
	case m.notice != "":
		return errorStyle.Render(m.notice)
	case m.status != "":
		return m.spinner.View() + " " + statusStyle.Render(m.status)
	}
	return helpStyle.Render("enter send • pgup/pgdn scroll • esc quit")
}

// refresh re-renders the transcript from the feed, keeping the view pinned to
// the bottom unless the user scrolled away.
func (m *Model) refresh() {
	entries, status := m.feed.Snapshot()
	m.status = status
	m.transcript.SetContent(Render(entries, m.width))
	if m.follow {
		m.transcript.GotoBottom()
	}
}

func waitForFeed(feed *chat.Feed) tea.Cmd {
	return func() tea.Msg {
		<-feed.Updates()
		return feedUpdatedMsg{}
	}
}

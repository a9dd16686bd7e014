package tui

import (
	"context"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/bitop-dev/chat"
)

type fakeConversation struct {
	busy      bool
	submitted []string
	cancelled int
	err       error
}

func (f *fakeConversation) Submit(_ context.Context, text string) error {
	if f.err != nil {
		return f.err
	}
	f.submitted = append(f.submitted, text)
	return nil
}

func (f *fakeConversation) Busy() bool { return f.busy }
func (f *fakeConversation) Cancel()    { f.cancelled++ }

func typeText(t *testing.T, m Model, s string) Model {
	t.Helper()
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
	return next.(Model)
}

func press(t *testing.T, m Model, k tea.KeyType) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(tea.KeyMsg{Type: k})
	return next.(Model), cmd
}

func TestSubmitOnEnter(t *testing.T) {
	conv := &fakeConversation{}
	m := New(context.Background(), conv, chat.NewFeed())

	m = typeText(t, m, "  list files  ")
	m, _ = press(t, m, tea.KeyEnter)

	if len(conv.submitted) != 1 || conv.submitted[0] != "list files" {
		t.Fatalf("submitted = %q", conv.submitted)
	}
	if m.input.Value() != "" {
		t.Fatalf("input not cleared: %q", m.input.Value())
	}
}

func TestBlankInputIsIgnored(t *testing.T) {
	conv := &fakeConversation{}
	m := New(context.Background(), conv, chat.NewFeed())
	m = typeText(t, m, "   ")
	press(t, m, tea.KeyEnter)
	if len(conv.submitted) != 0 {
		t.Fatalf("blank input submitted: %q", conv.submitted)
	}
}

func TestBusyBlocksInput(t *testing.T) {
	conv := &fakeConversation{busy: true}
	m := New(context.Background(), conv, chat.NewFeed())

	m = typeText(t, m, "hello")
	if m.input.Value() != "" {
		t.Fatalf("typing accepted while busy: %q", m.input.Value())
	}
	m, cmd := press(t, m, tea.KeyEsc)
	if cmd != nil {
		t.Fatalf("esc should not quit while busy")
	}
	press(t, m, tea.KeyCtrlC)
	if conv.cancelled != 1 {
		t.Fatalf("ctrl+c should cancel the running turn")
	}
}

func TestSubmitErrorShownAsNotice(t *testing.T) {
	conv := &fakeConversation{err: chat.ErrTurnInProgress}
	m := New(context.Background(), conv, chat.NewFeed())
	m = typeText(t, m, "hi")
	m, cmd := press(t, m, tea.KeyEnter)
	if cmd == nil {
		t.Fatalf("expected error command")
	}
	next, _ := m.Update(cmd())
	m = next.(Model)
	if !strings.Contains(m.View(), chat.ErrTurnInProgress.Error()) {
		t.Fatalf("notice missing from view:\n%s", m.View())
	}
}

func TestFeedUpdateRefreshesTranscript(t *testing.T) {
	feed := chat.NewFeed(chat.Entry{Role: chat.RoleSystem, Content: Welcome})
	m := New(context.Background(), &fakeConversation{}, feed)
	next, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 20})
	m = next.(Model)

	feed.AppendEntry(chat.Entry{Role: chat.RoleUser, Content: "hi"})
	feed.SetStatus(chat.StatusThinking)
	next, cmd := m.Update(feedUpdatedMsg{})
	m = next.(Model)
	if cmd == nil {
		t.Fatalf("expected a follow-up wait command")
	}

	view := m.View()
	for _, want := range []string{Welcome, "user: ", "hi", chat.StatusThinking} {
		if !strings.Contains(view, want) {
			t.Fatalf("view missing %q:\n%s", want, view)
		}
	}
}

func TestRenderLabels(t *testing.T) {
	out := Render([]chat.Entry{
		{Role: chat.RoleUser, Content: "a"},
		{Role: chat.RoleAssistant, Content: "b"},
		{Role: chat.RoleTool, Name: "read_file", Content: "output: c"},
		{Role: chat.RoleSystem, Content: "Error: d"},
	}, 0)
	for _, want := range []string{"user: a", "assistant: b", "tool(read_file): output: c", "system: Error: d"} {
		if !strings.Contains(out, want) {
			t.Fatalf("render missing %q:\n%s", want, out)
		}
	}
	if got := strings.Count(out, "\n"); got != 3 {
		t.Fatalf("expected 4 lines, got %d newlines", got)
	}
}

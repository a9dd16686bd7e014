package chat

import "sync"

const (
	StatusThinking = "Thinking..."
)

// StatusExecuting returns the status shown while a tool runs.
func StatusExecuting(tool string) string { return "Executing " + tool + "..." }

// Entry is one display line of the transcript.
type Entry struct {
	Role    Role
	Name    string
	Content string
}

// Sink receives UI-visible updates from a turn, in the order they happen.
type Sink interface {
	// AppendEntry adds a new transcript entry.
	AppendEntry(e Entry)
	// AppendText extends the content of the most recent entry.
	AppendText(text string)
	// SetStatus replaces the status line. "" clears it.
	SetStatus(status string)
}

// Feed is the shared transcript and status of one conversation. All access
// goes through a single mutex; every update also posts a coalesced
// notification on Updates.
type Feed struct {
	mu      sync.Mutex
	entries []Entry
	status  string

	updates chan struct{}
}

var _ Sink = (*Feed)(nil)

func NewFeed(initial ...Entry) *Feed {
	return &Feed{
		entries: append([]Entry(nil), initial...),
		updates: make(chan struct{}, 1),
	}
}

func (f *Feed) AppendEntry(e Entry) {
	f.mu.Lock()
	f.entries = append(f.entries, e)
	f.mu.Unlock()
	f.notify()
}

func (f *Feed) AppendText(text string) {
	if text == "" {
		return
	}
	f.mu.Lock()
	if n := len(f.entries); n > 0 {
		f.entries[n-1].Content += text
	} else {
		f.entries = append(f.entries, Entry{Role: RoleAssistant, Content: text})
	}
	f.mu.Unlock()
	f.notify()
}

func (f *Feed) SetStatus(status string) {
	f.mu.Lock()
	changed := f.status != status
	f.status = status
	f.mu.Unlock()
	if changed {
		f.notify()
	}
}

// Snapshot returns a copy of the transcript and the current status.
func (f *Feed) Snapshot() ([]Entry, string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Entry(nil), f.entries...), f.status
}

func (f *Feed) Status() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

// Updates delivers a value after one or more changes. Several changes between
// receives collapse into one notification.
func (f *Feed) Updates() <-chan struct{} { return f.updates }

func (f *Feed) notify() {
	select {
	case f.updates <- struct{}{}:
	default:
	}
}

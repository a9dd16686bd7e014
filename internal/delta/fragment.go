// Package delta turns a streamed chat-completion response into fragments and
// reassembles tool calls from their streamed pieces.
package delta

// Fragment is one decoded piece of a streamed response: Content, ToolCall or
// End. The set is closed.
type Fragment interface {
	isFragment()
}

// Content carries a piece of assistant narrative text.
type Content struct {
	Text string
}

func (Content) isFragment() {}

// ToolCall carries a piece of one tool invocation. Index identifies the call
// within the response; the remaining fields are empty when absent.
type ToolCall struct {
	Index int

	ID   string
	Type string

	// Name and Arguments are pieces; they are concatenated in arrival order.
	Name      string
	Arguments string
}

func (ToolCall) isFragment() {}

// Empty reports whether the fragment carries no data beyond its index.
func (f ToolCall) Empty() bool {
	return f.ID == "" && f.Type == "" && f.Name == "" && f.Arguments == ""
}

// End marks the end of the stream. Implicit is set when the stream reached EOF
// without an explicit [DONE] payload.
type End struct {
	Implicit bool
}

func (End) isFragment() {}

package chat

import (
	"fmt"
	"sync"
)

// History is the append-only message sequence of one conversation.
//
// Every tool message must answer the next outstanding call of the most recent
// assistant message with tool calls, in call order, and no other message may
// be appended while calls are outstanding.
type History struct {
	mu       sync.RWMutex
	messages []Message

	// pending holds the calls of the latest assistant message that have not
	// been answered yet, in order.
	pending []ToolCall
}

func NewHistory(seed ...Message) (*History, error) {
	h := &History{messages: make([]Message, 0, 16)}
	for _, m := range seed {
		if err := h.Append(m); err != nil {
			return nil, err
		}
	}
	return h, nil
}

// Append validates m against the history and adds a copy of it.
func (h *History) Append(m Message) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.validateLocked(m); err != nil {
		return err
	}

	m = m.clone()
	h.messages = append(h.messages, m)

	switch m.Role {
	case RoleAssistant:
		if len(m.ToolCalls) > 0 {
			h.pending = append([]ToolCall(nil), m.ToolCalls...)
		}
	case RoleTool:
		h.pending = h.pending[1:]
	}
	return nil
}

func (h *History) validateLocked(m Message) error {
	fail := func(reason string) error {
		return &StructureError{Index: len(h.messages), Role: m.Role, ToolCallID: m.ToolCallID, Reason: reason}
	}

	if !m.Role.Valid() {
		return fail("unknown role")
	}
	if len(m.ToolCalls) > 0 && m.Role != RoleAssistant {
		return fail("only assistant messages may carry tool calls")
	}
	if m.Role != RoleTool && (m.ToolCallID != "" || m.Name != "") {
		return fail("tool_call_id and name are only valid on tool messages")
	}
	if m.Content == nil && !(m.Role == RoleAssistant && len(m.ToolCalls) > 0) {
		return fail("content may only be absent on an assistant message with tool calls")
	}

	if m.Role == RoleTool {
		if len(h.pending) == 0 {
			return fail("no outstanding tool call from a preceding assistant message")
		}
		if next := h.pending[0]; next.ID != m.ToolCallID {
			return fail(fmt.Sprintf("expected result for tool call %q", next.ID))
		}
		return nil
	}

	if len(h.pending) > 0 {
		return fail(fmt.Sprintf("previous assistant message still has %d unanswered tool call(s)", len(h.pending)))
	}
	return nil
}

// Snapshot returns a deep copy of the messages.
func (h *History) Snapshot() []Message {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Message, len(h.messages))
	for i, m := range h.messages {
		out[i] = m.clone()
	}
	return out
}

func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.messages)
}

// Last returns a copy of the most recent message.
func (h *History) Last() (Message, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.messages) == 0 {
		return Message{}, false
	}
	return h.messages[len(h.messages)-1].clone(), true
}

// Pending returns the tool calls still awaiting a result, in order.
func (h *History) Pending() []ToolCall {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]ToolCall(nil), h.pending...)
}

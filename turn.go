package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/bitop-dev/chat/internal/delta"
)

const DefaultMaxRounds = 10

type State int

const (
	StateIdle State = iota
	StateAwaitingResponse
	StateExecutingTools
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingResponse:
		return "awaiting_response"
	case StateExecutingTools:
		return "executing_tools"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Terminal reports whether no further transitions can happen.
func (s State) Terminal() bool { return s == StateDone || s == StateFailed }

// Round is one completion request and the tool results it produced.
type Round struct {
	Number int

	Assistant   Message
	ToolResults []Message
}

type RoundFinishEvent struct {
	Round Round
}

type StateChangeEvent struct {
	Round int
	From  State
	To    State
}

// ToolCallDeltaEvent reports one streamed tool-call fragment as it arrives.
// ToolCallID and ToolName are the values accumulated so far for the index.
type ToolCallDeltaEvent struct {
	Round          int
	Index          int
	ToolCallID     string
	ToolName       string
	ArgumentsDelta string
}

type Options struct {
	Model string

	// MaxRounds bounds the tool-execution rounds of one turn. Zero means
	// DefaultMaxRounds.
	MaxRounds int

	// RequestTimeout bounds each completion request including reading its
	// stream. Zero disables it.
	RequestTimeout time.Duration

	// Logger receives skip-logging for malformed payloads and arguments.
	// Nil discards.
	Logger *slog.Logger

	OnStateChange        func(event StateChangeEvent)
	OnToolCallDelta      func(event ToolCallDeltaEvent)
	OnRoundFinish        func(event RoundFinishEvent)
	OnArgumentParseError func(err *ArgumentParseError)
}

// TurnResult describes a finished turn. Err is the TransportError,
// RoundLimitError or StructureError that made it fail.
type TurnResult struct {
	State  State
	Rounds []Round
	Text   string
	Err    error
}

// Orchestrator drives turns against one History. It runs at most one turn at a
// time; callers that need to enforce that use Session.
type Orchestrator struct {
	backend Backend
	gateway Gateway
	history *History
	sink    Sink
	opts    Options
	log     *slog.Logger

	mu    sync.RWMutex
	tools []ToolDefinition
}

// NewOrchestrator wires a turn loop. gateway and sink may be nil: tool calls
// then resolve to an in-band "not available" result and updates are dropped.
func NewOrchestrator(backend Backend, gateway Gateway, history *History, sink Sink, opts Options) *Orchestrator {
	if history == nil {
		history = &History{}
	}
	if sink == nil {
		sink = discardSink{}
	}
	if opts.MaxRounds <= 0 {
		opts.MaxRounds = DefaultMaxRounds
	}
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Orchestrator{
		backend: backend,
		gateway: gateway,
		history: history,
		sink:    sink,
		opts:    opts,
		log:     log,
	}
}

func (o *Orchestrator) History() *History { return o.history }

// LoadTools asks the gateway for its tools. On failure the orchestrator keeps
// running without tools and the error is returned for display.
func (o *Orchestrator) LoadTools(ctx context.Context) error {
	if o.gateway == nil {
		return nil
	}
	defs, err := o.gateway.ListTools(ctx)
	if err != nil {
		o.log.Warn("failed to list tools; continuing without tools", "err", err)
		o.SetTools(nil)
		return err
	}
	o.SetTools(defs)
	o.log.Debug("loaded tools", "count", len(defs))
	return nil
}

func (o *Orchestrator) SetTools(defs []ToolDefinition) {
	o.mu.Lock()
	o.tools = append([]ToolDefinition(nil), defs...)
	o.mu.Unlock()
}

func (o *Orchestrator) Tools() []ToolDefinition {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return append([]ToolDefinition(nil), o.tools...)
}

// BeginTurn appends the user's text and loops completion requests and tool
// executions until the model answers without tool calls or the turn fails.
// The returned error is non-nil exactly when the result state is StateFailed.
func (o *Orchestrator) BeginTurn(ctx context.Context, userText string) (*TurnResult, error) {
	if o.backend == nil {
		err := errors.New("backend is required")
		return &TurnResult{State: StateFailed, Err: err}, err
	}

	res := &TurnResult{State: StateIdle}
	if err := o.history.Append(User(userText)); err != nil {
		return o.fail(res, err, false)
	}
	o.sink.AppendEntry(Entry{Role: RoleUser, Content: userText})

	for round := 0; ; round++ {
		o.transition(res, round, StateAwaitingResponse)
		o.sink.SetStatus(StatusThinking)

		text, calls, err := o.streamRound(ctx, round)
		if err != nil {
			return o.fail(res, err, true)
		}

		assistant := Assistant(text, calls...)
		if err := o.history.Append(assistant); err != nil {
			return o.fail(res, err, false)
		}
		r := Round{Number: round, Assistant: assistant.clone()}

		if len(calls) == 0 {
			res.Rounds = append(res.Rounds, r)
			o.finishRound(r)
			res.Text = text
			o.sink.SetStatus("")
			o.transition(res, round, StateDone)
			return res, nil
		}

		o.transition(res, round, StateExecutingTools)
		results, err := o.executeCalls(ctx, calls)
		r.ToolResults = results
		res.Rounds = append(res.Rounds, r)
		o.finishRound(r)
		if err != nil {
			return o.fail(res, err, !IsStructure(err))
		}

		if round+1 >= o.opts.MaxRounds {
			return o.fail(res, &RoundLimitError{Limit: o.opts.MaxRounds}, true)
		}
	}
}

// streamRound issues one completion request and consumes its stream.
func (o *Orchestrator) streamRound(ctx context.Context, round int) (string, []ToolCall, error) {
	reqCtx, cancel := applyTimeout(ctx, o.opts.RequestTimeout)
	defer cancel()

	req := CompletionRequest{
		Model:    o.opts.Model,
		Messages: o.history.Snapshot(),
		Tools:    o.Tools(),
	}
	body, err := o.backend.Stream(reqCtx, req)
	if err != nil {
		return "", nil, asTransportError(err)
	}
	defer body.Close()

	p := delta.NewParser(body)
	p.OnSkip = func(e *delta.DecodeError) {
		o.log.Debug("skipping malformed stream payload", "round", round, "payload", e.Payload, "err", e.Cause)
	}
	asm := delta.NewAssembler()

	var text strings.Builder
	for p.Next() {
		switch f := p.Fragment().(type) {
		case delta.Content:
			if text.Len() == 0 {
				o.sink.AppendEntry(Entry{Role: RoleAssistant, Content: f.Text})
			} else {
				o.sink.AppendText(f.Text)
			}
			text.WriteString(f.Text)
		case delta.ToolCall:
			if f.Empty() {
				continue
			}
			asm.Add(f)
			if o.opts.OnToolCallDelta != nil {
				o.opts.OnToolCallDelta(ToolCallDeltaEvent{
					Round:          round,
					Index:          f.Index,
					ToolCallID:     asm.ID(f.Index),
					ToolName:       asm.Name(f.Index),
					ArgumentsDelta: f.Arguments,
				})
			}
		case delta.End:
			if f.Implicit {
				o.log.Debug("stream ended without [DONE]", "round", round)
			}
		default:
			o.log.Warn("ignoring unknown stream fragment", "round", round, "type", fmt.Sprintf("%T", f))
		}
	}
	if err := p.Err(); err != nil {
		return "", nil, asTransportError(err)
	}

	var calls []ToolCall
	for _, c := range asm.Finish() {
		calls = append(calls, ToolCall{
			ID:       c.ID,
			Type:     c.Type,
			Function: FunctionCall{Name: c.Name, Arguments: c.Arguments},
		})
	}
	return text.String(), calls, nil
}

// executeCalls runs calls sequentially and appends one tool message per call.
// After cancellation the remaining calls are answered in-band so the history
// stays well-formed, and the cancellation is returned.
func (o *Orchestrator) executeCalls(ctx context.Context, calls []ToolCall) ([]Message, error) {
	results := make([]Message, 0, len(calls))
	for i, call := range calls {
		if err := ctx.Err(); err != nil {
			for _, rest := range calls[i:] {
				m, aerr := o.appendToolResult(rest, "tool call cancelled: "+err.Error())
				if aerr != nil {
					return results, aerr
				}
				results = append(results, m)
			}
			return results, asTransportError(err)
		}

		name := call.Function.Name
		o.sink.SetStatus(StatusExecuting(name))

		args := o.decodeArguments(call)
		out := o.execute(ctx, name, args)

		m, err := o.appendToolResult(call, out)
		if err != nil {
			return results, err
		}
		results = append(results, m)
	}
	return results, nil
}

func (o *Orchestrator) execute(ctx context.Context, name string, args any) string {
	if o.gateway == nil {
		return gatewayUnavailable
	}
	out, err := o.gateway.Execute(ctx, name, args)
	if err != nil {
		o.log.Debug("tool execution failed", "tool", name, "err", err)
		return err.Error()
	}
	return out
}

// decodeArguments parses the call's arguments. Blank or malformed arguments
// become nil.
func (o *Orchestrator) decodeArguments(call ToolCall) any {
	raw := bytes.TrimSpace([]byte(call.Function.Arguments))
	if len(raw) == 0 {
		return nil
	}
	var v any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	err := dec.Decode(&v)
	if err == nil {
		if _, terr := dec.Token(); terr != io.EOF {
			err = errors.New("trailing data after JSON value")
		}
	}
	if err != nil {
		perr := &ArgumentParseError{
			ToolName:   call.Function.Name,
			ToolCallID: call.ID,
			Arguments:  call.Function.Arguments,
			Cause:      err,
		}
		o.log.Warn("tool arguments are not valid JSON; calling with null", "tool", perr.ToolName, "tool_call_id", perr.ToolCallID, "err", err)
		if o.opts.OnArgumentParseError != nil {
			o.opts.OnArgumentParseError(perr)
		}
		return nil
	}
	return v
}

func (o *Orchestrator) appendToolResult(call ToolCall, text string) (Message, error) {
	m := ToolResult(call.ID, call.Function.Name, text)
	if err := o.history.Append(m); err != nil {
		return Message{}, err
	}
	o.sink.AppendEntry(Entry{Role: RoleTool, Name: call.Function.Name, Content: "output: " + text})
	return m, nil
}

// fail ends the turn. When diagnose is set a system message describing err is
// appended to the history and the feed.
func (o *Orchestrator) fail(res *TurnResult, err error, diagnose bool) (*TurnResult, error) {
	round := len(res.Rounds)
	if diagnose {
		msg := "Error: " + err.Error()
		if aerr := o.history.Append(System(msg)); aerr != nil {
			o.log.Error("failed to record turn failure", "err", aerr)
		}
		o.sink.AppendEntry(Entry{Role: RoleSystem, Content: msg})
	} else {
		o.log.Error("turn aborted", "err", err)
	}
	o.sink.SetStatus("")
	res.Err = err
	o.transition(res, round, StateFailed)
	return res, err
}

func (o *Orchestrator) transition(res *TurnResult, round int, to State) {
	from := res.State
	res.State = to
	if o.opts.OnStateChange != nil && from != to {
		o.opts.OnStateChange(StateChangeEvent{Round: round, From: from, To: to})
	}
}

func (o *Orchestrator) finishRound(r Round) {
	if o.opts.OnRoundFinish != nil {
		o.opts.OnRoundFinish(RoundFinishEvent{Round: r})
	}
}

func applyTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

type discardSink struct{}

func (discardSink) AppendEntry(Entry) {}
func (discardSink) AppendText(string) {}
func (discardSink) SetStatus(string)  {}

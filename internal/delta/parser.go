package delta

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/tidwall/gjson"

	"github.com/bitop-dev/chat/internal/sse"
)

const donePayload = "[DONE]"

// DecodeError describes a payload line that was skipped because it did not
// decode into the expected chunk shape.
type DecodeError struct {
	Payload string
	Cause   error
}

func (e *DecodeError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("decode stream payload %q: %v", e.Payload, e.Cause)
}

func (e *DecodeError) Unwrap() error { return e.Cause }

// StreamError is a backend error object delivered inside the stream.
type StreamError struct {
	Code    string
	Type    string
	Message string
}

func (e *StreamError) Error() string {
	if e == nil {
		return ""
	}
	if e.Code != "" {
		return fmt.Sprintf("stream error (%s): %s", e.Code, e.Message)
	}
	return "stream error: " + e.Message
}

type chunk struct {
	Choices []struct {
		Delta struct {
			Content   *string `json:"content,omitempty"`
			ToolCalls []struct {
				Index    int    `json:"index"`
				ID       string `json:"id,omitempty"`
				Type     string `json:"type,omitempty"`
				Function *struct {
					Name      string `json:"name,omitempty"`
					Arguments string `json:"arguments,omitempty"`
				} `json:"function,omitempty"`
			} `json:"tool_calls,omitempty"`
		} `json:"delta"`
	} `json:"choices"`
}

// Parser is a pull-based sequence of fragments read from one response body.
// It is consumed exactly once: after End or an error, Next returns false.
type Parser struct {
	dec *sse.Decoder

	// OnSkip, when set, is called for every payload skipped as malformed.
	OnSkip func(err *DecodeError)

	pending []Fragment
	cur     Fragment
	ended   bool
	err     error
}

func NewParser(r io.Reader) *Parser {
	return &Parser{dec: sse.NewDecoder(r)}
}

// Next advances to the next fragment.
func (p *Parser) Next() bool {
	if p.err != nil {
		return false
	}
	for len(p.pending) == 0 {
		if p.ended {
			return false
		}
		p.fill()
		if p.err != nil {
			return false
		}
	}
	p.cur = p.pending[0]
	p.pending = p.pending[1:]
	return true
}

// Fragment returns the current fragment.
func (p *Parser) Fragment() Fragment { return p.cur }

// Err returns the transport or in-stream error that stopped the parser.
func (p *Parser) Err() error { return p.err }

func (p *Parser) fill() {
	if !p.dec.Next() {
		if err := p.dec.ExpectNoError(); err != nil {
			p.err = err
			return
		}
		p.ended = true
		p.pending = append(p.pending, End{Implicit: true})
		return
	}

	data := bytes.TrimSpace(p.dec.Data())
	if len(data) == 0 {
		return
	}
	if string(data) == donePayload {
		p.ended = true
		p.pending = append(p.pending, End{})
		return
	}

	var c chunk
	if err := json.Unmarshal(data, &c); err != nil {
		if p.OnSkip != nil {
			p.OnSkip(&DecodeError{Payload: string(data), Cause: err})
		}
		return
	}
	if e := gjson.GetBytes(data, "error"); e.IsObject() {
		if msg := e.Get("message").String(); msg != "" {
			p.err = &StreamError{Code: e.Get("code").String(), Type: e.Get("type").String(), Message: msg}
			return
		}
	}
	if len(c.Choices) == 0 {
		return
	}

	d := c.Choices[0].Delta
	if d.Content != nil && *d.Content != "" {
		p.pending = append(p.pending, Content{Text: *d.Content})
	}
	for _, tc := range d.ToolCalls {
		f := ToolCall{Index: tc.Index, ID: tc.ID, Type: tc.Type}
		if tc.Function != nil {
			f.Name = tc.Function.Name
			f.Arguments = tc.Function.Arguments
		}
		p.pending = append(p.pending, f)
	}
}

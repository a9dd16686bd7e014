package delta

import (
	"errors"
	"io"
	"reflect"
	"strings"
	"testing"
	"testing/iotest"
)

// chunkReader returns the given chunks one Read at a time.
type chunkReader struct {
	chunks []string
}

func (r *chunkReader) Read(p []byte) (int, error) {
	if len(r.chunks) == 0 {
		return 0, io.EOF
	}
	n := copy(p, r.chunks[0])
	r.chunks[0] = r.chunks[0][n:]
	if r.chunks[0] == "" {
		r.chunks = r.chunks[1:]
	}
	return n, nil
}

func drain(t *testing.T, p *Parser) []Fragment {
	t.Helper()
	var out []Fragment
	for p.Next() {
		out = append(out, p.Fragment())
	}
	return out
}

func TestParser_ContentAndToolCalls(t *testing.T) {
	in := strings.Join([]string{
		`data: {"choices":[{"delta":{"content":"Hel"}}]}`,
		`data: {"choices":[{"delta":{"content":"lo"}}]}`,
		`data: {"choices":[{"delta":{"tool_calls":[{"index":1,"id":"call_b","type":"function","function":{"name":"b","arguments":"{}"}},{"index":0,"id":"call_a","function":{"name":"a"}}]}}]}`,
		`data: [DONE]`,
		`data: {"choices":[{"delta":{"content":"ignored after done"}}]}`,
		"",
	}, "\n")

	got := drain(t, NewParser(strings.NewReader(in)))
	want := []Fragment{
		Content{Text: "Hel"},
		Content{Text: "lo"},
		ToolCall{Index: 1, ID: "call_b", Type: "function", Name: "b", Arguments: "{}"},
		ToolCall{Index: 0, ID: "call_a", Name: "a"},
		End{},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("fragments=%#v", got)
	}
}

func TestParser_MalformedLineSkipped(t *testing.T) {
	in := strings.Join([]string{
		`data: {"choices":[{"delta":{"content":"a"}}]}`,
		`data: {not json`,
		`: keep-alive`,
		`event: message`,
		`data: {"choices":[{"delta":{"content":"b"}}]}`,
		`data: [DONE]`,
	}, "\n")

	p := NewParser(strings.NewReader(in))
	var skipped []*DecodeError
	p.OnSkip = func(err *DecodeError) { skipped = append(skipped, err) }

	var text strings.Builder
	for p.Next() {
		if c, ok := p.Fragment().(Content); ok {
			text.WriteString(c.Text)
		}
	}
	if err := p.Err(); err != nil {
		t.Fatal(err)
	}
	if text.String() != "ab" {
		t.Fatalf("text=%q", text.String())
	}
	if len(skipped) != 1 || skipped[0].Payload != "{not json" {
		t.Fatalf("skipped=%v", skipped)
	}
}

func TestParser_EmptyChoicesAndEmptyDeltaYieldNothing(t *testing.T) {
	in := strings.Join([]string{
		`data: {"choices":[]}`,
		`data: {"choices":[{"delta":{}}]}`,
		`data: {"choices":[{"delta":{"content":""}}]}`,
		`data: [DONE]`,
	}, "\n")

	got := drain(t, NewParser(strings.NewReader(in)))
	if !reflect.DeepEqual(got, []Fragment{End{}}) {
		t.Fatalf("fragments=%#v", got)
	}
}

func TestParser_PayloadSplitAcrossChunks(t *testing.T) {
	r := &chunkReader{chunks: []string{
		`data: {"choices":[{"delta":{"con`,
		`tent":"x"}}]}` + "\ndata: {\"choices\":[{\"delta\":{\"content\":\"y\"}}]}\nda",
		"ta: [DO",
		"NE]\n",
	}}

	got := drain(t, NewParser(r))
	want := []Fragment{Content{Text: "x"}, Content{Text: "y"}, End{}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("fragments=%#v", got)
	}
}

func TestParser_OneByteReads(t *testing.T) {
	in := `data: {"choices":[{"delta":{"tool_calls":[{"index":0,"function":{"arguments":"{\"p\":1}"}}]}}]}` + "\n" + "data: [DONE]\n"

	got := drain(t, NewParser(iotest.OneByteReader(strings.NewReader(in))))
	want := []Fragment{ToolCall{Index: 0, Arguments: `{"p":1}`}, End{}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("fragments=%#v", got)
	}
}

func TestParser_EOFWithoutDoneEndsImplicitly(t *testing.T) {
	in := `data: {"choices":[{"delta":{"content":"hi"}}]}`

	got := drain(t, NewParser(strings.NewReader(in)))
	want := []Fragment{Content{Text: "hi"}, End{Implicit: true}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("fragments=%#v", got)
	}
}

func TestParser_ReadErrorStops(t *testing.T) {
	boom := errors.New("connection reset")
	r := io.MultiReader(
		strings.NewReader(`data: {"choices":[{"delta":{"content":"partial"}}]}`+"\n"),
		iotest.ErrReader(boom),
	)
	p := NewParser(r)

	got := drain(t, p)
	if !reflect.DeepEqual(got, []Fragment{Content{Text: "partial"}}) {
		t.Fatalf("fragments=%#v", got)
	}
	if !errors.Is(p.Err(), boom) {
		t.Fatalf("Err=%v", p.Err())
	}
	if p.Next() {
		t.Fatalf("Next after error")
	}
}

func TestParser_InStreamErrorPayload(t *testing.T) {
	in := strings.Join([]string{
		`data: {"choices":[{"delta":{"content":"a"}}]}`,
		`data: {"error":{"message":"overloaded","type":"server_error","code":"overloaded"}}`,
		`data: {"choices":[{"delta":{"content":"b"}}]}`,
	}, "\n")
	p := NewParser(strings.NewReader(in))

	got := drain(t, p)
	if !reflect.DeepEqual(got, []Fragment{Content{Text: "a"}}) {
		t.Fatalf("fragments=%#v", got)
	}
	var se *StreamError
	if !errors.As(p.Err(), &se) {
		t.Fatalf("Err=%v", p.Err())
	}
	if se.Code != "overloaded" || se.Message != "overloaded" {
		t.Fatalf("stream error=%#v", se)
	}
}

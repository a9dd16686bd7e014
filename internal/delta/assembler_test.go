package delta

import (
	"reflect"
	"testing"
)

func TestAssembler_SortsByIndexRegardlessOfArrival(t *testing.T) {
	a := NewAssembler()
	a.Add(ToolCall{Index: 2, ID: "c", Name: "third"})
	a.Add(ToolCall{Index: 0, ID: "a", Name: "first"})
	a.Add(ToolCall{Index: 1, ID: "b", Name: "second"})
	a.Add(ToolCall{Index: 0, Arguments: "{}"})

	got := a.Finish()
	if len(got) != 3 {
		t.Fatalf("calls=%d", len(got))
	}
	for i, c := range got {
		if c.Index != i {
			t.Fatalf("calls[%d].Index=%d", i, c.Index)
		}
	}
	if got[0].ID != "a" || got[0].Arguments != "{}" || got[2].Name != "third" {
		t.Fatalf("calls=%#v", got)
	}
}

func TestAssembler_Defaults(t *testing.T) {
	a := NewAssembler()
	a.Add(ToolCall{Index: 5})

	got := a.Finish()
	want := []Call{{Index: 5, Type: "function"}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("calls=%#v", got)
	}
}

func TestAssembler_IDAndTypeReplaceNameAndArgsAppend(t *testing.T) {
	a := NewAssembler()
	a.Add(ToolCall{Index: 0, ID: "call_1", Type: "function", Name: "list_"})
	a.Add(ToolCall{Index: 0, Name: "directory", Arguments: `{"path":`})
	a.Add(ToolCall{Index: 0, ID: "call_2", Type: "custom", Arguments: `"/tmp"}`})

	got := a.Finish()
	want := []Call{{Index: 0, ID: "call_2", Type: "custom", Name: "list_directory", Arguments: `{"path":"/tmp"}`}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("calls=%#v", got)
	}
}

func TestAssembler_SplittingPiecesIsAssociative(t *testing.T) {
	const name = "read_file"
	const args = `{"path":"/etc/hosts","limit":20}`

	whole := NewAssembler()
	whole.Add(ToolCall{Index: 0, ID: "x", Name: name, Arguments: args})

	for _, size := range []int{1, 2, 3, 7} {
		split := NewAssembler()
		split.Add(ToolCall{Index: 0, ID: "x"})
		for _, piece := range pieces(name, size) {
			split.Add(ToolCall{Index: 0, Name: piece})
		}
		for _, piece := range pieces(args, size) {
			split.Add(ToolCall{Index: 0, Arguments: piece})
		}
		if !reflect.DeepEqual(split.Finish(), whole.Finish()) {
			t.Fatalf("size %d: %#v != %#v", size, split.Finish(), whole.Finish())
		}
	}
}

func TestAssembler_InterleavedIndices(t *testing.T) {
	a := NewAssembler()
	frags := []ToolCall{
		{Index: 1, ID: "b", Name: "sh"},
		{Index: 0, ID: "a", Name: "re"},
		{Index: 1, Name: "ell", Arguments: `{"cmd":`},
		{Index: 0, Name: "ad", Arguments: `{"path":"x"}`},
		{Index: 1, Arguments: `"ls"}`},
	}
	for _, f := range frags {
		a.Add(f)
	}

	got := a.Finish()
	if len(got) != 2 || a.Len() != 2 {
		t.Fatalf("calls=%#v", got)
	}
	if got[0].Name != "read" || got[0].Arguments != `{"path":"x"}` {
		t.Fatalf("calls[0]=%#v", got[0])
	}
	if got[1].Name != "shell" || got[1].Arguments != `{"cmd":"ls"}` {
		t.Fatalf("calls[1]=%#v", got[1])
	}
}

func TestAssembler_EmptyFragmentOnKnownIndexChangesNothing(t *testing.T) {
	a := NewAssembler()
	a.Add(ToolCall{Index: 0, ID: "a", Name: "n", Arguments: "{}"})
	before := a.Finish()

	a.Add(ToolCall{Index: 0})
	if !reflect.DeepEqual(a.Finish(), before) {
		t.Fatalf("empty fragment changed state: %#v", a.Finish())
	}
	if a.ID(0) != "a" || a.Name(0) != "n" {
		t.Fatalf("ID=%q Name=%q", a.ID(0), a.Name(0))
	}
}

func TestAssembler_NoFragments(t *testing.T) {
	if got := NewAssembler().Finish(); got != nil {
		t.Fatalf("calls=%#v", got)
	}
}

func pieces(s string, size int) []string {
	var out []string
	for len(s) > 0 {
		n := size
		if n > len(s) {
			n = len(s)
		}
		out = append(out, s[:n])
		s = s[n:]
	}
	return out
}

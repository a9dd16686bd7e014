package delta

import (
	"sort"
	"strings"
)

const defaultCallType = "function"

// Call is a fully assembled tool call.
type Call struct {
	Index     int
	ID        string
	Type      string
	Name      string
	Arguments string
}

type callAgg struct {
	id   string
	typ  string
	name strings.Builder
	args strings.Builder
}

// Assembler merges ToolCall fragments keyed by index. One assembler serves a
// single streamed response.
type Assembler struct {
	byIndex map[int]*callAgg
}

func NewAssembler() *Assembler {
	return &Assembler{byIndex: map[int]*callAgg{}}
}

// Add merges f into the record for f.Index. IDs and types replace the stored
// value; name and argument pieces are appended.
func (a *Assembler) Add(f ToolCall) {
	agg, ok := a.byIndex[f.Index]
	if !ok {
		agg = &callAgg{typ: defaultCallType}
		a.byIndex[f.Index] = agg
	}
	if f.ID != "" {
		agg.id = f.ID
	}
	if f.Type != "" {
		agg.typ = f.Type
	}
	agg.name.WriteString(f.Name)
	agg.args.WriteString(f.Arguments)
}

// Len returns the number of distinct indices seen so far.
func (a *Assembler) Len() int { return len(a.byIndex) }

// Name returns the name accumulated so far for index i.
func (a *Assembler) Name(i int) string {
	if agg, ok := a.byIndex[i]; ok {
		return agg.name.String()
	}
	return ""
}

// ID returns the id known so far for index i.
func (a *Assembler) ID(i int) string {
	if agg, ok := a.byIndex[i]; ok {
		return agg.id
	}
	return ""
}

// Finish returns one call per observed index, sorted ascending by index.
func (a *Assembler) Finish() []Call {
	if len(a.byIndex) == 0 {
		return nil
	}
	indices := make([]int, 0, len(a.byIndex))
	for i := range a.byIndex {
		indices = append(indices, i)
	}
	sort.Ints(indices)

	out := make([]Call, 0, len(indices))
	for _, i := range indices {
		agg := a.byIndex[i]
		out = append(out, Call{
			Index:     i,
			ID:        agg.id,
			Type:      agg.typ,
			Name:      agg.name.String(),
			Arguments: agg.args.String(),
		})
	}
	return out
}

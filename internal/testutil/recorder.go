package testutil

import (
	"fmt"
	"strings"

	"github.com/roach88/sieve/internal/filter"
	"github.com/roach88/sieve/internal/ir"
)

// Call is one recorded QueryAdapter invocation. Group and relation calls
// carry the calls made on their nested adapter.
type Call struct {
	Line   string
	Nested []Call
}

// Recorder is a filter.QueryAdapter that records every call as text.
//
// The trace is deterministic, which makes it suitable for golden files:
//
//	where(name, =, "bob", and)
//	group(or) {
//	  where(age, >, 18, or)
//	}
//
// Recorder accepts every field. Set Fail to make the next matching call
// return an error.
type Recorder struct {
	entity filter.Entity
	calls  []Call

	// Fail, when non-nil, is consulted before each call; a non-nil result
	// is returned instead of recording.
	Fail func(kind, name string) error
}

// NewRecorder creates a recorder for entity.
func NewRecorder(entity filter.Entity) *Recorder {
	return &Recorder{entity: entity}
}

// Calls returns the top-level recorded calls.
func (r *Recorder) Calls() []Call {
	return r.calls
}

// Len returns the number of top-level calls.
func (r *Recorder) Len() int {
	return len(r.calls)
}

// Entity implements filter.QueryAdapter.
func (r *Recorder) Entity() filter.Entity {
	return r.entity
}

// Where implements filter.QueryAdapter.
func (r *Recorder) Where(field string, op filter.Operator, value ir.IRValue, boolean filter.Boolean) error {
	if err := r.fail("where", field); err != nil {
		return err
	}
	r.calls = append(r.calls, Call{Line: fmt.Sprintf("where(%s, %s, %s, %s)", field, op, render(value), boolean)})
	return nil
}

// WhereIn implements filter.QueryAdapter.
func (r *Recorder) WhereIn(field string, values ir.IRArray, boolean filter.Boolean) error {
	if err := r.fail("whereIn", field); err != nil {
		return err
	}
	r.calls = append(r.calls, Call{Line: fmt.Sprintf("whereIn(%s, %s, %s)", field, render(values), boolean)})
	return nil
}

// WhereNotIn implements filter.QueryAdapter.
func (r *Recorder) WhereNotIn(field string, values ir.IRArray, boolean filter.Boolean) error {
	if err := r.fail("whereNotIn", field); err != nil {
		return err
	}
	r.calls = append(r.calls, Call{Line: fmt.Sprintf("whereNotIn(%s, %s, %s)", field, render(values), boolean)})
	return nil
}

// WhereGroup implements filter.QueryAdapter.
func (r *Recorder) WhereGroup(boolean filter.Boolean, build func(filter.QueryAdapter) error) error {
	if err := r.fail("group", string(boolean)); err != nil {
		return err
	}
	nested := &Recorder{entity: r.entity, Fail: r.Fail}
	if err := build(nested); err != nil {
		return err
	}
	r.calls = append(r.calls, Call{Line: fmt.Sprintf("group(%s)", boolean), Nested: nested.calls})
	return nil
}

// HasRelation implements filter.QueryAdapter. The nested recorder's entity
// is the resolved relation when the current entity resolves it.
func (r *Recorder) HasRelation(relation string, cmp filter.Operator, count int, boolean filter.Boolean, build func(filter.QueryAdapter) error) error {
	if err := r.fail("has", relation); err != nil {
		return err
	}
	var related filter.Entity = PlainEntity{EntityName: relation}
	if resolver, ok := r.entity.(filter.RelationResolver); ok {
		if e, ok := resolver.ResolvedRelation(relation); ok {
			related = e
		}
	}
	nested := &Recorder{entity: related, Fail: r.Fail}
	if err := build(nested); err != nil {
		return err
	}
	r.calls = append(r.calls, Call{
		Line:   fmt.Sprintf("has(%s, %s, %d, %s)", relation, cmp, count, boolean),
		Nested: nested.calls,
	})
	return nil
}

// Trace renders the recorded calls, one per line, nested calls indented.
func (r *Recorder) Trace() string {
	var b strings.Builder
	writeCalls(&b, r.calls, 0)
	return b.String()
}

func writeCalls(b *strings.Builder, calls []Call, depth int) {
	indent := strings.Repeat("  ", depth)
	for _, c := range calls {
		b.WriteString(indent)
		b.WriteString(c.Line)
		if c.Nested != nil || strings.HasPrefix(c.Line, "group(") || strings.HasPrefix(c.Line, "has(") {
			b.WriteString(" {\n")
			writeCalls(b, c.Nested, depth+1)
			b.WriteString(indent)
			b.WriteString("}")
		}
		b.WriteString("\n")
	}
}

func (r *Recorder) fail(kind, name string) error {
	if r.Fail == nil {
		return nil
	}
	return r.Fail(kind, name)
}

func render(v ir.IRValue) string {
	data, err := ir.MarshalJSONValue(v)
	if err != nil {
		return fmt.Sprintf("<%v>", err)
	}
	return string(data)
}

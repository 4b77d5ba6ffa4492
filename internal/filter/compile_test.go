package filter_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sieve/internal/filter"
	"github.com/roach88/sieve/internal/ir"
	"github.com/roach88/sieve/internal/testutil"
)

func compileTrace(t *testing.T, entity filter.Entity, src string) string {
	t.Helper()
	rec := testutil.NewRecorder(entity)
	require.NoError(t, filter.NewCompiler(0).Apply(rec, parse(t, src)))
	return rec.Trace()
}

func TestApply_ShorthandEquality(t *testing.T) {
	trace := compileTrace(t, usersEntity(), `{"name":"bob"}`)
	assert.Equal(t, "where(name, =, \"bob\", and)\n", trace)
}

func TestApply_Operators(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"neq", `{"age":{"neq":3}}`, "where(age, !=, 3, and)\n"},
		{"symbolic", `{"age":{"<=":3}}`, "where(age, <=, 3, and)\n"},
		{"range", `{"age":{"gte":18,"lt":65}}`, "where(age, >=, 18, and)\nwhere(age, <, 65, and)\n"},
		{"like", `{"name":{"like":"b_b"}}`, "where(name, like, \"b_b\", and)\n"},
		{"startswith", `{"name":{"startswith":"bo"}}`, "where(name, like, \"bo%\", and)\n"},
		{"contains", `{"name":{"contains":"o"}}`, "where(name, like, \"%o%\", and)\n"},
		{"endswith number", `{"name":{"endswith":5}}`, "where(name, like, \"%5\", and)\n"},
		{"in", `{"status":{"in":["x",2,"y"]}}`, "whereIn(status, [\"x\",2,\"y\"], and)\n"},
		{"nin", `{"status":{"nin":["x"]}}`, "whereNotIn(status, [\"x\"], and)\n"},
		{"float", `{"age":{"gt":1.5}}`, "where(age, >, 1.5, and)\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, compileTrace(t, usersEntity(), tt.input))
		})
	}
}

func TestApply_HoistingIsOrderIndependent(t *testing.T) {
	want := "where(a, =, 1, and)\n" +
		"group(or) {\n" +
		"  where(b, =, 2, or)\n" +
		"  where(c, =, 3, or)\n" +
		"}\n"

	assert.Equal(t, want, compileTrace(t, usersEntity(), `{"a":1,"or":[{"b":2},{"c":3}]}`))
	assert.Equal(t, want, compileTrace(t, usersEntity(), `{"or":[{"b":2},{"c":3}],"a":1}`))
}

func TestApply_NestedGroups(t *testing.T) {
	trace := compileTrace(t, usersEntity(), `{"or":[{"a":1,"and":[{"b":2},{"c":3}]},{"name":"x"}]}`)

	want := "group(or) {\n" +
		"  where(a, =, 1, or)\n" +
		"  group(and) {\n" +
		"    where(b, =, 2, and)\n" +
		"    where(c, =, 3, and)\n" +
		"  }\n" +
		"  where(name, =, \"x\", or)\n" +
		"}\n"
	assert.Equal(t, want, trace)
}

func TestApply_LogicalObjectOperand(t *testing.T) {
	trace := compileTrace(t, usersEntity(), `{"or":{"a":1,"b":2}}`)

	want := "group(or) {\n" +
		"  where(a, =, 1, or)\n" +
		"  where(b, =, 2, or)\n" +
		"}\n"
	assert.Equal(t, want, trace)
}

func TestApply_FieldLevelLogicalKeepsField(t *testing.T) {
	trace := compileTrace(t, usersEntity(), `{"age":{"or":[{"lt":5},65,{"gt":90}]}}`)

	want := "group(or) {\n" +
		"  where(age, <, 5, or)\n" +
		"  where(age, =, 65, or)\n" +
		"  where(age, >, 90, or)\n" +
		"}\n"
	assert.Equal(t, want, trace)
}

func TestApply_RelationTraversal(t *testing.T) {
	trace := compileTrace(t, usersEntity(), `{"orders:status":{"eq":"paid"}}`)

	want := "has(orders, >=, 1, and) {\n" +
		"  where(status, =, \"paid\", and)\n" +
		"}\n"
	assert.Equal(t, want, trace)
}

func TestApply_MultiHopRelation(t *testing.T) {
	entity := testutil.NewSearchableEntity("users", "orders:items:sku")
	trace := compileTrace(t, entity, `{"or":[{"orders:items:sku":{"in":["A1","B2"]}}]}`)

	want := "group(or) {\n" +
		"  has(orders, >=, 1, or) {\n" +
		"    has(items, >=, 1, and) {\n" +
		"      whereIn(sku, [\"A1\",\"B2\"], and)\n" +
		"    }\n" +
		"  }\n" +
		"}\n"
	assert.Equal(t, want, trace)
}

func TestApply_RejectsBeforeEmitting(t *testing.T) {
	inputs := []string{
		`{"name":"ok","d":"v"}`,
		`{"name":"ok","age":{"foo":1}}`,
		`{"name":"ok","status":{"in":"x"}}`,
	}
	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			rec := testutil.NewRecorder(usersEntity())
			err := filter.NewCompiler(0).Apply(rec, parse(t, in))
			require.Error(t, err)
			assert.Equal(t, 0, rec.Len())
		})
	}
}

func TestApply_NonSearchableAcceptsAnyKey(t *testing.T) {
	entity := testutil.PlainEntity{EntityName: "logs"}
	assert.Equal(t, "where(anything, =, \"x\", and)\n", compileTrace(t, entity, `{"anything":"x"}`))
}

func TestApply_NonSearchableStillChecksOperators(t *testing.T) {
	rec := testutil.NewRecorder(testutil.PlainEntity{EntityName: "logs"})
	err := filter.NewCompiler(0).Apply(rec, parse(t, `{"level":{"foo":1}}`))
	require.Error(t, err)
	assert.True(t, errors.Is(err, filter.ErrInvalidOperator))
}

func TestApply_DepthGuard(t *testing.T) {
	var v ir.IRValue = ir.NewIRObjectFromPairs(ir.O("a", ir.IRInt(1)))
	for i := 0; i < 20; i++ {
		v = ir.NewIRObjectFromPairs(ir.O("and", ir.IRArray{v}))
	}

	rec := testutil.NewRecorder(testutil.PlainEntity{EntityName: "logs"})
	err := filter.NewCompiler(32).Apply(rec, v.(ir.IRObject))
	require.Error(t, err)
	assert.True(t, errors.Is(err, filter.ErrDepthExceeded))
	assert.Equal(t, 0, rec.Len())

	ve, _ := filter.AsValidationError(err)
	assert.Equal(t, "The filter exceeds the maximum nesting depth of 32.", ve.Message)

	rec = testutil.NewRecorder(testutil.PlainEntity{EntityName: "logs"})
	assert.NoError(t, filter.NewCompiler(64).Apply(rec, v.(ir.IRObject)))
}

func TestApplyOnQuery_WrapsInGroup(t *testing.T) {
	rec := testutil.NewRecorder(usersEntity())
	require.NoError(t, filter.NewCompiler(0).ApplyOnQuery(rec, parse(t, `{"name":"bob","age":{"gt":1}}`)))

	want := "group(and) {\n" +
		"  where(name, =, \"bob\", and)\n" +
		"  where(age, >, 1, and)\n" +
		"}\n"
	assert.Equal(t, want, rec.Trace())
}

func TestApplyOnQuery_ValidationBeforeGroup(t *testing.T) {
	rec := testutil.NewRecorder(usersEntity())
	err := filter.NewCompiler(0).ApplyOnQuery(rec, parse(t, `{"d":"v"}`))
	require.Error(t, err)
	assert.Equal(t, 0, rec.Len())
}

func TestApply_AdapterUnknownFieldIsDisallowed(t *testing.T) {
	rec := testutil.NewRecorder(testutil.PlainEntity{EntityName: "logs"})
	rec.Fail = func(kind, name string) error {
		if name == "ghost" {
			return fmt.Errorf("column lookup: %w", filter.ErrUnknownField)
		}
		return nil
	}

	err := filter.NewCompiler(0).Apply(rec, parse(t, `{"level":"x","ghost":1}`))
	require.Error(t, err)
	ve, ok := filter.AsValidationError(err)
	require.True(t, ok)
	assert.Equal(t, "ghost", ve.Field)
	assert.Equal(t, filter.CodeDisallowedKey, ve.Code)
}

func TestApply_AdapterUnknownRelationIsDisallowed(t *testing.T) {
	rec := testutil.NewRecorder(testutil.PlainEntity{EntityName: "logs"})
	rec.Fail = func(kind, name string) error {
		if kind == "has" {
			return filter.ErrUnknownRelation
		}
		return nil
	}

	err := filter.NewCompiler(0).Apply(rec, parse(t, `{"or":[{"host:name":"x"}]}`))
	ve, ok := filter.AsValidationError(err)
	require.True(t, ok)
	assert.Equal(t, "or.0.host:name", ve.Field)
	assert.Equal(t, "The host:name search key is not allowed.", ve.Message)
}

func TestApply_AdapterErrorWrapped(t *testing.T) {
	boom := errors.New("boom")
	rec := testutil.NewRecorder(testutil.PlainEntity{EntityName: "logs"})
	rec.Fail = func(kind, name string) error { return boom }

	err := filter.NewCompiler(0).Apply(rec, parse(t, `{"level":"x"}`))
	require.Error(t, err)
	assert.True(t, errors.Is(err, boom))
	_, ok := filter.AsValidationError(err)
	assert.False(t, ok)
}

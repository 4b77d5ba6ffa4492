package queryir_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sieve/internal/filter"
	"github.com/roach88/sieve/internal/ir"
	"github.com/roach88/sieve/internal/queryir"
	"github.com/roach88/sieve/internal/testutil"
)

func compile(t *testing.T, src queryir.Source, filters string) *queryir.Builder {
	t.Helper()
	obj, err := ir.UnmarshalJSONObject([]byte(filters), filter.DefaultMaxDepth)
	require.NoError(t, err)
	b := queryir.NewBuilder(src)
	require.NoError(t, filter.NewCompiler(0).Apply(b, obj))
	return b
}

func TestBuilder_ResolvesColumns(t *testing.T) {
	users, _, _ := testutil.ShopSources()
	b := compile(t, users, `{"mail":{"endswith":"@x.io"},"age":{"in":[1,2]}}`)

	assert.Equal(t, []queryir.Clause{
		{Boolean: filter.And, Predicate: queryir.Comparison{Column: "email", Operator: filter.OpLike, Value: ir.IRString("%@x.io")}},
		{Boolean: filter.And, Predicate: queryir.Membership{Column: "age", Values: ir.IRArray{ir.IRInt(1), ir.IRInt(2)}}},
	}, b.Clauses())
}

func TestBuilder_GroupsAndRelations(t *testing.T) {
	users, orders, _ := testutil.ShopSources()
	b := compile(t, users, `{"or":[{"name":"a"},{"orders:status":{"nin":["void"]}}]}`)

	require.Len(t, b.Clauses(), 1)
	group, ok := b.Clauses()[0].Predicate.(queryir.Group)
	require.True(t, ok)
	assert.Equal(t, filter.Or, b.Clauses()[0].Boolean)
	require.Len(t, group.Clauses, 2)

	exists, ok := group.Clauses[1].Predicate.(queryir.Exists)
	require.True(t, ok)
	assert.Equal(t, filter.Or, group.Clauses[1].Boolean)
	assert.Equal(t, "orders", exists.Link.Name)
	assert.Same(t, orders, exists.Link.Target)
	assert.Equal(t, filter.OpGte, exists.Comparator)
	assert.Equal(t, 1, exists.Count)
	assert.Equal(t, []queryir.Clause{
		{Boolean: filter.And, Predicate: queryir.Membership{Column: "status", Values: ir.IRArray{ir.IRString("void")}, Negated: true}},
	}, exists.Clauses)
}

func TestBuilder_UnknownFieldIsDisallowed(t *testing.T) {
	users, _, _ := testutil.ShopSources()
	obj, err := ir.UnmarshalJSONObject([]byte(`{"password":"x"}`), 32)
	require.NoError(t, err)

	b := queryir.NewBuilder(users)
	err = filter.NewCompiler(0).Apply(b, obj)
	require.Error(t, err)
	assert.True(t, errors.Is(err, filter.ErrDisallowedKey))
}

func TestBuilder_UnknownRelation(t *testing.T) {
	users, _, _ := testutil.ShopSources()
	b := queryir.NewBuilder(users)

	err := b.HasRelation("friends", filter.OpGte, 1, filter.And, func(filter.QueryAdapter) error { return nil })
	require.Error(t, err)
	assert.True(t, errors.Is(err, filter.ErrUnknownRelation))
	assert.Empty(t, b.Clauses())
}

func TestBuilder_RejectsNonComparison(t *testing.T) {
	users, _, _ := testutil.ShopSources()
	b := queryir.NewBuilder(users)
	assert.Error(t, b.Where("name", filter.OpIn, ir.IRString("x"), filter.And))
}

func TestBuilder_Select(t *testing.T) {
	users, _, _ := testutil.ShopSources()
	b := compile(t, users, `{"name":"a"}`)

	sel := b.Select()
	assert.Equal(t, "users", sel.From)
	assert.Equal(t, "id", sel.PrimaryKey)
	assert.Len(t, sel.Where, 1)
	assert.Zero(t, sel.Limit)
}

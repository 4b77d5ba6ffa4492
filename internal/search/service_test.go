package search_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sieve/internal/auth"
	"github.com/roach88/sieve/internal/filter"
	"github.com/roach88/sieve/internal/ir"
	"github.com/roach88/sieve/internal/logger"
	"github.com/roach88/sieve/internal/querysql"
	"github.com/roach88/sieve/internal/schema"
	"github.com/roach88/sieve/internal/search"
	"github.com/roach88/sieve/internal/store"
)

func newService(t *testing.T, opts ...search.Option) *search.Service {
	t.Helper()
	catalog, err := schema.LoadDir("../../schema", nil)
	require.NoError(t, err)

	db, err := store.OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.InstallDemo(context.Background(), true))

	opts = append([]search.Option{search.WithExecutor(db), search.WithGuests(true)}, opts...)
	svc, err := search.NewService(catalog, querysql.SQLite, opts...)
	require.NoError(t, err)
	return svc
}

func parse(t *testing.T, s string) ir.IRObject {
	t.Helper()
	obj, err := ir.UnmarshalJSONObject([]byte(s), filter.DefaultMaxDepth)
	require.NoError(t, err)
	return obj
}

func ids(rows []ir.IRObject) []int64 {
	out := make([]int64, 0, len(rows))
	for _, row := range rows {
		if id, ok := row.Get("id"); ok {
			if n, ok := id.(ir.IRInt); ok {
				out = append(out, int64(n))
			}
		}
	}
	return out
}

func TestService_CompileAndCache(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	stmt, err := svc.Compile(ctx, nil, "users", parse(t, `{"name":"alice"}`))
	require.NoError(t, err)
	assert.Equal(t, "SELECT users.* FROM users WHERE (users.name = ?) ORDER BY users.id ASC", stmt.SQL)
	assert.Equal(t, []any{"alice"}, stmt.Args)
	assert.Equal(t, "users", stmt.Entity)
	assert.Len(t, stmt.Hash, 64)
	assert.False(t, stmt.Cached)

	again, err := svc.Compile(ctx, nil, "users", parse(t, `{"name":"alice"}`))
	require.NoError(t, err)
	assert.True(t, again.Cached)
	assert.Equal(t, stmt.Hash, again.Hash)
	assert.Equal(t, stmt.SQL, again.SQL)
}

func TestService_CacheKeepsNormalizationFormsApart(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	composed := "caf\u00e9"
	decomposed := "cafe\u0301"

	first, err := svc.Compile(ctx, nil, "users", ir.NewIRObjectFromPairs(ir.O("name", ir.IRString(composed))))
	require.NoError(t, err)
	second, err := svc.Compile(ctx, nil, "users", ir.NewIRObjectFromPairs(ir.O("name", ir.IRString(decomposed))))
	require.NoError(t, err)

	assert.Equal(t, []any{composed}, first.Args)
	assert.Equal(t, []any{decomposed}, second.Args)
	assert.NotEqual(t, first.Hash, second.Hash)
	assert.False(t, second.Cached)
	assert.Empty(t, first.Warnings)
	require.Len(t, second.Warnings, 1)
	assert.Contains(t, second.Warnings[0], "not NFC normalized")
}

func TestService_Search(t *testing.T) {
	tests := []struct {
		name   string
		entity string
		filter string
		want   []int64
	}{
		{"equality", "users", `{"name":"bob"}`, []int64{2}},
		{"no filter", "users", `{}`, []int64{1, 2, 3, 4}},
		{"range", "users", `{"age":{"gte":18,"lt":40}}`, []int64{1, 4}},
		{"or group", "users", `{"name":"bob","or":[{"age":{"gt":50}}]}`, []int64{2, 3}},
		{"relation", "users", `{"orders:status":"paid"}`, []int64{1, 3}},
		{"two hops", "users", `{"orders:items:sku":{"in":["A1"]}}`, []int64{1, 3}},
		{"suffix", "users", `{"mail":{"endswith":"@example.com"}}`, []int64{1, 3}},
		{"resolved relation", "orders", `{"items:qty":{"gte":2}}`, []int64{10, 12}},
		{"nin", "orders", `{"status":{"nin":["paid","void"]}}`, []int64{12}},
		{"empty in", "orders", `{"status":{"in":[]}}`, []int64{}},
	}

	svc := newService(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := svc.Search(context.Background(), nil, tt.entity, parse(t, tt.filter), search.Page{})
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(res.Rows))
		})
	}
}

func TestService_Paging(t *testing.T) {
	svc := newService(t, search.WithLimits(2, 3))
	ctx := context.Background()

	res, err := svc.Search(ctx, nil, "users", parse(t, `{}`), search.Page{})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, ids(res.Rows))
	assert.Contains(t, res.Statement.SQL, "LIMIT 2")

	res, err = svc.Search(ctx, nil, "users", parse(t, `{}`), search.Page{Limit: 10, Offset: 1})
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 3, 4}, ids(res.Rows))
	assert.Contains(t, res.Statement.SQL, "LIMIT 3 OFFSET 1")
}

func TestService_Warnings(t *testing.T) {
	svc := newService(t)
	stmt, err := svc.Compile(context.Background(), nil, "users", parse(t, `{"name":{"contains":"a"}}`))
	require.NoError(t, err)
	require.Len(t, stmt.Warnings, 1)
	assert.Contains(t, stmt.Warnings[0], "leading wildcard")
}

func TestService_Rejected(t *testing.T) {
	var buf bytes.Buffer
	svc := newService(t, search.WithLogger(logger.NewBufferedTestLogger(&buf)))
	ctx := context.Background()

	for range 2 {
		_, err := svc.Compile(ctx, nil, "users", parse(t, `{"password":"x"}`))
		require.Error(t, err)
		assert.True(t, errors.Is(err, filter.ErrDisallowedKey))
	}
	assert.Contains(t, buf.String(), `"field":"password"`)
	assert.Contains(t, buf.String(), `"code":"E202"`)

	_, err := svc.Search(ctx, nil, "users", parse(t, `{"name":{"between":[1,2]}}`), search.Page{})
	assert.True(t, errors.Is(err, filter.ErrInvalidOperator))

	err = svc.Validate(ctx, nil, "users", parse(t, `{"age":{"in":"x"}}`))
	assert.True(t, errors.Is(err, filter.ErrInvalidValueShape))
	assert.NoError(t, svc.Validate(ctx, nil, "users", parse(t, `{"age":{"in":[1]}}`)))
}

func TestService_MaxDepth(t *testing.T) {
	svc := newService(t, search.WithMaxDepth(2))
	_, err := svc.Compile(context.Background(), nil, "users", parse(t, `{"or":[{"and":[{"name":"a"}]}]}`))
	assert.True(t, errors.Is(err, filter.ErrDepthExceeded))
}

func TestService_UnknownEntity(t *testing.T) {
	svc := newService(t)
	_, err := svc.Compile(context.Background(), nil, "secrets", parse(t, `{}`))
	assert.True(t, errors.Is(err, search.ErrUnknownEntity))
}

func TestService_Access(t *testing.T) {
	svc := newService(t, search.WithGuests(false))
	ctx := context.Background()
	f := parse(t, `{"name":"bob"}`)

	_, err := svc.Search(ctx, nil, "users", f, search.Page{})
	assert.ErrorIs(t, err, auth.ErrAuthenticationRequired)

	_, err = svc.Search(ctx, auth.Principal{ID: "x", Abilities: []string{"search:orders"}}, "users", f, search.Page{})
	assert.ErrorIs(t, err, auth.ErrAuthorizationDenied)

	res, err := svc.Search(ctx, auth.Principal{ID: "x", Abilities: []string{search.AbilityFor("users")}}, "users", f, search.Page{})
	require.NoError(t, err)
	assert.Equal(t, []int64{2}, ids(res.Rows))
}

func TestService_CompileOnly(t *testing.T) {
	catalog, err := schema.LoadDir("../../schema", nil)
	require.NoError(t, err)
	svc, err := search.NewService(catalog, querysql.Postgres, search.WithGuests(true), search.WithCacheSize(0))
	require.NoError(t, err)

	stmt, err := svc.Compile(context.Background(), nil, "users", parse(t, `{"age":{"in":[1,2]}}`))
	require.NoError(t, err)
	assert.Equal(t, "SELECT users.* FROM users WHERE (users.age IN ($1,$2)) ORDER BY users.id ASC", stmt.SQL)

	_, err = svc.Search(context.Background(), nil, "users", parse(t, `{}`), search.Page{})
	assert.ErrorIs(t, err, search.ErrNoExecutor)
}

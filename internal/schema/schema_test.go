package schema_test

import (
	"errors"
	"testing"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sieve/internal/filter"
	"github.com/roach88/sieve/internal/ir"
	"github.com/roach88/sieve/internal/queryir"
	"github.com/roach88/sieve/internal/schema"
)

func TestCompileEntity_Basic(t *testing.T) {
	v := cuecontext.New().CompileString(`
		entity: users: {
			table: "app_users"
			fields: { id: "id", mail: "email" }
			defaults: ["mail"]
			relations: orders: { entity: "orders", foreign_key: "user_id", resolve: true }
		}
	`)
	require.NoError(t, v.Err())

	def, err := schema.CompileEntity(v.LookupPath(cue.ParsePath("entity.users")))
	require.NoError(t, err)

	assert.Equal(t, "users", def.Name)
	assert.Equal(t, "app_users", def.Table)
	assert.Equal(t, "id", def.PrimaryKey)
	assert.Equal(t, []schema.Field{{Name: "id", Column: "id"}, {Name: "mail", Column: "email"}}, def.Fields)
	assert.Equal(t, []string{"mail"}, def.Defaults)
	assert.Nil(t, def.Search)
	assert.Equal(t, []schema.RelationDef{
		{Name: "orders", Entity: "orders", LocalKey: "id", ForeignKey: "user_id", Resolve: true},
	}, def.Relations)
}

func TestCompileEntity_Errors(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		field string
	}{
		{"missing fields", `entity: e: { table: "e" }`, "fields"},
		{"empty fields", `entity: e: { fields: [] }`, "fields"},
		{"bad column", `entity: e: { fields: { a: "a; drop" } }`, "fields.a"},
		{"bad table", `entity: e: { table: "x y", fields: ["a"] }`, "table"},
		{"unknown default", `entity: e: { fields: ["a"], defaults: ["b"] }`, "defaults"},
		{"unknown relation in search", `entity: e: { fields: ["a"], search: ["r:a"] }`, "search"},
		{"reserved field", `entity: e: { fields: ["id", "filter"] }`, "fields.filter"},
		{"reserved mapped field", `entity: e: { fields: { limit: "lim" } }`, "fields.limit"},
		{"operator field", `entity: e: { fields: ["id", "or"] }`, "fields.or"},
		{"shorthand operator field", `entity: e: { fields: { eq: "eq_col" } }`, "fields.eq"},
		{"relation without foreign key", `entity: e: { fields: ["a"], relations: r: { entity: "x" } }`, "relations.r.foreign_key"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := cuecontext.New().CompileString(tt.src)
			require.NoError(t, v.Err())

			_, err := schema.CompileEntity(v.LookupPath(cue.ParsePath("entity.e")))
			require.Error(t, err)
			var compileErr *schema.CompileError
			require.True(t, errors.As(err, &compileErr), "got %T: %v", err, err)
			assert.Equal(t, tt.field, compileErr.Field)
		})
	}
}

func TestLoadDir_Shop(t *testing.T) {
	registry := filter.NewRegistry()
	catalog, err := schema.LoadDir("testdata/shop", registry)
	require.NoError(t, err)

	assert.Equal(t, []string{"items", "orders", "users"}, catalog.Names())
	assert.Same(t, registry, catalog.Registry())

	users, ok := catalog.Entity("users")
	require.True(t, ok)
	col, ok := users.Column("mail")
	require.True(t, ok)
	assert.Equal(t, "email", col)

	// Instance list first, then the type-level defaults.
	assert.Equal(t, []string{"mail", "name", "age", "orders:status", "orders:total", "orders:items:sku"},
		users.SearchAttributes())
	assert.Equal(t, []string{"name", "age", "orders:status", "orders:total", "orders:items:sku"},
		registry.Global("users").Names())
}

func TestLoadDir_UnknownTarget(t *testing.T) {
	_, err := schema.LoadDir("testdata/broken", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `targets unknown entity "orders"`)
}

func TestLoadDir_Missing(t *testing.T) {
	_, err := schema.LoadDir("testdata/nope", nil)
	assert.Error(t, err)
}

func TestModel_Relations(t *testing.T) {
	catalog, err := schema.LoadDir("testdata/shop", nil)
	require.NoError(t, err)
	users, _ := catalog.Entity("users")
	orders, _ := catalog.Entity("orders")
	items, _ := catalog.Entity("items")

	link, ok := users.Relation("orders")
	require.True(t, ok)
	assert.Equal(t, queryir.Link{Name: "orders", LocalKey: "id", ForeignKey: "user_id", Target: orders}, link)

	// users.orders is not resolved; orders.items is.
	_, ok = users.ResolvedRelation("orders")
	assert.False(t, ok)
	related, ok := orders.ResolvedRelation("items")
	require.True(t, ok)
	assert.Same(t, items, related)

	_, ok = users.Relation("friends")
	assert.False(t, ok)
}

func TestModel_Whitelist(t *testing.T) {
	catalog, err := schema.LoadDir("testdata/shop", nil)
	require.NoError(t, err)
	users, _ := catalog.Entity("users")
	orders, _ := catalog.Entity("orders")

	parse := func(s string) ir.IRObject {
		obj, err := ir.UnmarshalJSONObject([]byte(s), filter.DefaultMaxDepth)
		require.NoError(t, err)
		return obj
	}

	assert.NoError(t, filter.ValidateSearchKeys(users, parse(`{"mail":"a","orders:items:sku":"x"}`)))

	err = filter.ValidateSearchKeys(users, parse(`{"id":1}`))
	assert.True(t, errors.Is(err, filter.ErrDisallowedKey))

	// Resolved relation keys are checked against the related whitelist.
	assert.NoError(t, filter.ValidateSearchKeys(orders, parse(`{"items:qty":{"gt":1}}`)))
	err = filter.ValidateSearchKeys(orders, parse(`{"items:order_id":1}`))
	assert.True(t, errors.Is(err, filter.ErrDisallowedKey))
}

func TestLoadString(t *testing.T) {
	catalog, err := schema.LoadString(`
		entity: a: { fields: ["id"], relations: self: { entity: "a", foreign_key: "id" } }
	`, nil)
	require.NoError(t, err)
	a, ok := catalog.Entity("a")
	require.True(t, ok)
	link, ok := a.Relation("self")
	require.True(t, ok)
	assert.Same(t, a, link.Target)

	_, err = schema.LoadString(`other: 1`, nil)
	assert.Error(t, err)
}

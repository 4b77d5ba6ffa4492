package testutil

import "github.com/roach88/sieve/internal/queryir"

// TableSource is an in-memory queryir.Source. Field names map to columns of
// the same name unless Columns overrides them.
type TableSource struct {
	EntityName string
	TableName  string
	Fields     []string
	Columns    map[string]string
	Links      map[string]queryir.Link
}

var _ queryir.Source = (*TableSource)(nil)

// NewTableSource creates a source over table whose fields are columns of the
// same name.
func NewTableSource(table string, fields ...string) *TableSource {
	return &TableSource{
		EntityName: table,
		TableName:  table,
		Fields:     fields,
		Columns:    map[string]string{},
		Links:      map[string]queryir.Link{},
	}
}

// Link adds a relation: target.foreignKey = s.localKey.
func (s *TableSource) Link(name, localKey, foreignKey string, target queryir.Source) *TableSource {
	s.Links[name] = queryir.Link{Name: name, LocalKey: localKey, ForeignKey: foreignKey, Target: target}
	return s
}

// Name implements filter.Entity.
func (s *TableSource) Name() string { return s.EntityName }

// Table implements queryir.Source.
func (s *TableSource) Table() string { return s.TableName }

// PrimaryKey implements queryir.Source.
func (s *TableSource) PrimaryKey() string { return "id" }

// Column implements queryir.Source.
func (s *TableSource) Column(field string) (string, bool) {
	if col, ok := s.Columns[field]; ok {
		return col, true
	}
	for _, f := range s.Fields {
		if f == field {
			return f, true
		}
	}
	return "", false
}

// Relation implements queryir.Source.
func (s *TableSource) Relation(name string) (queryir.Link, bool) {
	link, ok := s.Links[name]
	return link, ok
}

// ShopSources returns users, orders and items wired as
// users -orders-> orders -items-> items.
func ShopSources() (users, orders, items *TableSource) {
	items = NewTableSource("items", "id", "order_id", "sku", "qty")
	orders = NewTableSource("orders", "id", "user_id", "status", "total").
		Link("items", "id", "order_id", items)
	users = NewTableSource("users", "id", "name", "age", "email").
		Link("orders", "id", "user_id", orders)
	users.Columns["mail"] = "email"
	return users, orders, items
}

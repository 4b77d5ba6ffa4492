package schema

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/sieve/internal/filter"
)

// ReservedFieldNames are the keys of a search request envelope
// ({"filter": {...}, "limit": n, "offset": n}). A field with one of these
// names would make a bare filter on it read as an envelope.
var ReservedFieldNames = []string{"filter", "limit", "offset"}

// identRe matches names that may appear unquoted in generated SQL.
var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Definition is the compiled, declarative form of one entity.
type Definition struct {
	Name       string
	Table      string
	PrimaryKey string
	Fields     []Field
	Defaults   []string
	Search     []string
	Relations  []RelationDef
}

// Field maps a filterable API name to a column.
type Field struct {
	Name   string
	Column string
}

// RelationDef declares a to-many relation: Entity.ForeignKey = LocalKey.
//
// Resolve makes relation-qualified keys validate against the related
// entity's whitelist instead of the owner's.
type RelationDef struct {
	Name       string
	Entity     string
	LocalKey   string
	ForeignKey string
	Resolve    bool
}

// CompileEntity parses a CUE value into a Definition.
//
// The CUE value should be the entity struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`entity: users: { fields: ["id", "name"] }`)
//	def, err := CompileEntity(v.LookupPath(cue.ParsePath("entity.users")))
func CompileEntity(v cue.Value) (*Definition, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	def := &Definition{}
	labels := v.Path().Selectors()
	if len(labels) > 0 {
		def.Name = labels[len(labels)-1].String()
	}
	if !identRe.MatchString(def.Name) {
		return nil, &CompileError{Field: "entity", Message: fmt.Sprintf("invalid entity name %q", def.Name), Pos: v.Pos()}
	}

	var err error
	if def.Table, err = optionalIdent(v, "table", def.Name); err != nil {
		return nil, err
	}
	if def.PrimaryKey, err = optionalIdent(v, "primary_key", "id"); err != nil {
		return nil, err
	}
	if def.Fields, err = parseFields(v); err != nil {
		return nil, err
	}
	if def.Relations, err = parseRelations(v); err != nil {
		return nil, err
	}
	if def.Defaults, err = parseAttributeList(v, "defaults", def); err != nil {
		return nil, err
	}
	if def.Search, err = parseAttributeList(v, "search", def); err != nil {
		return nil, err
	}
	return def, nil
}

// HasField reports whether name is a declared field.
func (d *Definition) HasField(name string) bool {
	for _, f := range d.Fields {
		if f.Name == name {
			return true
		}
	}
	return false
}

// relation returns the relation named name.
func (d *Definition) relation(name string) (RelationDef, bool) {
	for _, r := range d.Relations {
		if r.Name == name {
			return r, true
		}
	}
	return RelationDef{}, false
}

func optionalIdent(v cue.Value, path, fallback string) (string, error) {
	field := v.LookupPath(cue.ParsePath(path))
	if !field.Exists() {
		return fallback, nil
	}
	s, err := field.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	if !identRe.MatchString(s) {
		return "", &CompileError{Field: path, Message: fmt.Sprintf("invalid identifier %q", s), Pos: field.Pos()}
	}
	return s, nil
}

// parseFields accepts either a list of names (column = name) or a struct
// mapping name to column.
func parseFields(v cue.Value) ([]Field, error) {
	fieldsVal := v.LookupPath(cue.ParsePath("fields"))
	if !fieldsVal.Exists() {
		return nil, &CompileError{Field: "fields", Message: "fields is required", Pos: v.Pos()}
	}

	var fields []Field
	if fieldsVal.Kind() == cue.ListKind {
		iter, err := fieldsVal.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			name, err := iter.Value().String()
			if err != nil {
				return nil, formatCUEError(err)
			}
			fields = append(fields, Field{Name: name, Column: name})
		}
	} else {
		iter, err := fieldsVal.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			col, err := iter.Value().String()
			if err != nil {
				return nil, formatCUEError(err)
			}
			fields = append(fields, Field{Name: iter.Label(), Column: col})
		}
	}

	if len(fields) == 0 {
		return nil, &CompileError{Field: "fields", Message: "at least one field is required", Pos: fieldsVal.Pos()}
	}
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		if !identRe.MatchString(f.Column) {
			return nil, &CompileError{Field: "fields." + f.Name, Message: fmt.Sprintf("invalid column %q", f.Column), Pos: fieldsVal.Pos()}
		}
		if strings.Contains(f.Name, ":") {
			return nil, &CompileError{Field: "fields." + f.Name, Message: "field names must not contain ':'", Pos: fieldsVal.Pos()}
		}
		if slices.Contains(ReservedFieldNames, f.Name) {
			return nil, &CompileError{Field: "fields." + f.Name, Message: fmt.Sprintf("%q is reserved for search requests", f.Name), Pos: fieldsVal.Pos()}
		}
		if filter.IsOperator(f.Name) {
			return nil, &CompileError{Field: "fields." + f.Name, Message: fmt.Sprintf("%q is an operator name", f.Name), Pos: fieldsVal.Pos()}
		}
		if seen[f.Name] {
			return nil, &CompileError{Field: "fields." + f.Name, Message: "duplicate field", Pos: fieldsVal.Pos()}
		}
		seen[f.Name] = true
	}
	return fields, nil
}

func parseRelations(v cue.Value) ([]RelationDef, error) {
	relVal := v.LookupPath(cue.ParsePath("relations"))
	if !relVal.Exists() {
		return nil, nil
	}
	iter, err := relVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var rels []RelationDef
	for iter.Next() {
		name := iter.Label()
		rv := iter.Value()
		if !identRe.MatchString(name) {
			return nil, &CompileError{Field: "relations", Message: fmt.Sprintf("invalid relation name %q", name), Pos: rv.Pos()}
		}

		rel := RelationDef{Name: name}
		if rel.Entity, err = requiredString(rv, "entity", "relations."+name); err != nil {
			return nil, err
		}
		if rel.LocalKey, err = optionalIdent(rv, "local_key", "id"); err != nil {
			return nil, err
		}
		if rel.ForeignKey, err = requiredString(rv, "foreign_key", "relations."+name); err != nil {
			return nil, err
		}
		if !identRe.MatchString(rel.ForeignKey) {
			return nil, &CompileError{Field: "relations." + name + ".foreign_key", Message: fmt.Sprintf("invalid identifier %q", rel.ForeignKey), Pos: rv.Pos()}
		}
		if resolveVal := rv.LookupPath(cue.ParsePath("resolve")); resolveVal.Exists() {
			if rel.Resolve, err = resolveVal.Bool(); err != nil {
				return nil, formatCUEError(err)
			}
		}
		rels = append(rels, rel)
	}
	return rels, nil
}

func requiredString(v cue.Value, path, context string) (string, error) {
	field := v.LookupPath(cue.ParsePath(path))
	if !field.Exists() {
		return "", &CompileError{Field: context + "." + path, Message: path + " is required", Pos: v.Pos()}
	}
	s, err := field.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

// parseAttributeList reads a whitelist. Each name is a field or a
// relation-qualified key whose first segment is a declared relation.
func parseAttributeList(v cue.Value, path string, def *Definition) ([]string, error) {
	listVal := v.LookupPath(cue.ParsePath(path))
	if !listVal.Exists() {
		return nil, nil
	}
	iter, err := listVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var names []string
	for iter.Next() {
		name, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		rel, _, qualified := strings.Cut(name, ":")
		switch {
		case qualified:
			if _, ok := def.relation(rel); !ok {
				return nil, &CompileError{Field: path, Message: fmt.Sprintf("%q refers to unknown relation %q", name, rel), Pos: iter.Value().Pos()}
			}
		case !def.HasField(name):
			return nil, &CompileError{Field: path, Message: fmt.Sprintf("%q is not a declared field", name), Pos: iter.Value().Pos()}
		}
		names = append(names, name)
	}
	return names, nil
}

// CompileError is a schema error with its CUE source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError keeps the first CUE error and its position.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &CompileError{Field: "cue", Message: first.Error(), Pos: positions[0]}
	}
	return err
}

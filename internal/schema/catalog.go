package schema

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"

	"github.com/roach88/sieve/internal/filter"
	"github.com/roach88/sieve/internal/queryir"
)

// Model is a searchable entity backed by a table.
type Model struct {
	def     *Definition
	columns map[string]string
	links   map[string]*link
	attrs   *filter.Attributes
}

type link struct {
	def    RelationDef
	target *Model
}

var (
	_ filter.Searchable       = (*Model)(nil)
	_ filter.RelationResolver = (*Model)(nil)
	_ queryir.Source          = (*Model)(nil)
)

// Name implements filter.Entity.
func (m *Model) Name() string { return m.def.Name }

// Definition returns the compiled definition.
func (m *Model) Definition() *Definition { return m.def }

// Table implements queryir.Source.
func (m *Model) Table() string { return m.def.Table }

// PrimaryKey implements queryir.Source.
func (m *Model) PrimaryKey() string { return m.def.PrimaryKey }

// Column implements queryir.Source.
func (m *Model) Column(field string) (string, bool) {
	col, ok := m.columns[field]
	return col, ok
}

// Relation implements queryir.Source.
func (m *Model) Relation(name string) (queryir.Link, bool) {
	l, ok := m.links[name]
	if !ok || l.target == nil {
		return queryir.Link{}, false
	}
	return queryir.Link{
		Name:       name,
		LocalKey:   l.def.LocalKey,
		ForeignKey: l.def.ForeignKey,
		Target:     l.target,
	}, true
}

// ResolvedRelation implements filter.RelationResolver. Only relations
// declared with resolve: true are returned.
func (m *Model) ResolvedRelation(name string) (filter.Entity, bool) {
	l, ok := m.links[name]
	if !ok || !l.def.Resolve || l.target == nil {
		return nil, false
	}
	return l.target, true
}

// SearchAttributes implements filter.Searchable.
func (m *Model) SearchAttributes() []string { return m.attrs.Effective() }

// AddSearchAttribute implements filter.Searchable.
func (m *Model) AddSearchAttribute(name string) { m.attrs.Add(name) }

// Catalog indexes models by entity name.
//
// A catalog is built once at startup and is read-only afterwards.
type Catalog struct {
	registry *filter.Registry
	models   map[string]*Model
}

// NewCatalog creates an empty catalog whose type-level defaults go to
// registry.
func NewCatalog(registry *filter.Registry) *Catalog {
	if registry == nil {
		registry = filter.NewRegistry()
	}
	return &Catalog{registry: registry, models: make(map[string]*Model)}
}

// Registry returns the registry holding type-level defaults.
func (c *Catalog) Registry() *filter.Registry { return c.registry }

// Add registers def. Its defaults become the type-level whitelist; a
// non-empty search list becomes the instance overlay.
func (c *Catalog) Add(def *Definition) error {
	if _, exists := c.models[def.Name]; exists {
		return fmt.Errorf("entity %q defined twice", def.Name)
	}
	for _, name := range def.Defaults {
		c.registry.RegisterGlobal(def.Name, name)
	}

	m := &Model{
		def:     def,
		columns: make(map[string]string, len(def.Fields)),
		links:   make(map[string]*link, len(def.Relations)),
	}
	for _, f := range def.Fields {
		m.columns[f.Name] = f.Column
	}
	for _, r := range def.Relations {
		m.links[r.Name] = &link{def: r}
	}
	if len(def.Search) > 0 {
		m.attrs = filter.NewInstanceAttributes(c.registry.Global(def.Name), def.Search...)
	} else {
		m.attrs = filter.NewAttributes(c.registry.Global(def.Name))
	}
	c.models[def.Name] = m
	return nil
}

// Link resolves every relation's target entity. It must run after all
// definitions are added.
func (c *Catalog) Link() error {
	for _, name := range c.Names() {
		m := c.models[name]
		for _, r := range m.def.Relations {
			target, ok := c.models[r.Entity]
			if !ok {
				return fmt.Errorf("entity %s: relation %s targets unknown entity %q", name, r.Name, r.Entity)
			}
			m.links[r.Name].target = target
		}
	}
	return nil
}

// Entity returns the model named name.
func (c *Catalog) Entity(name string) (*Model, bool) {
	m, ok := c.models[name]
	return m, ok
}

// Names returns entity names in sorted order.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.models))
	for name := range c.models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Load compiles every entity under the top-level "entity" struct of v.
func Load(v cue.Value, registry *filter.Registry) (*Catalog, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	entities := v.LookupPath(cue.ParsePath("entity"))
	if !entities.Exists() {
		return nil, fmt.Errorf("no entities defined")
	}
	iter, err := entities.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	catalog := NewCatalog(registry)
	for iter.Next() {
		def, err := CompileEntity(iter.Value())
		if err != nil {
			return nil, fmt.Errorf("entity.%s: %w", iter.Label(), err)
		}
		if err := catalog.Add(def); err != nil {
			return nil, err
		}
	}
	if err := catalog.Link(); err != nil {
		return nil, err
	}
	return catalog, nil
}

// LoadString compiles CUE source text into a catalog.
func LoadString(src string, registry *filter.Registry) (*Catalog, error) {
	return Load(cuecontext.New().CompileString(src), registry)
}

// LoadDir loads the CUE package in dir into a catalog.
func LoadDir(dir string, registry *filter.Registry) (*Catalog, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("schema directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", dir)
	}
	matches, err := filepath.Glob(filepath.Join(dir, "*.cue"))
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("no CUE files found in %s", dir)
	}

	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, fmt.Errorf("no CUE instances loaded from %s", dir)
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, fmt.Errorf("loading CUE files: %w", inst.Err)
	}

	value := cuecontext.New().BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, fmt.Errorf("building CUE value: %w", formatCUEError(err))
	}
	return Load(value, registry)
}

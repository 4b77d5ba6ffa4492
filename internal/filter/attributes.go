package filter

import (
	"slices"
	"sync"
)

// AttributeList is an ordered, duplicate-free list of searchable names.
type AttributeList struct {
	names []string
}

// Add appends name unless it is already present.
func (l *AttributeList) Add(name string) {
	for _, n := range l.names {
		if n == name {
			return
		}
	}
	l.names = append(l.names, name)
}

// Names returns the names in insertion order. The slice is shared; callers
// must not modify it.
func (l *AttributeList) Names() []string {
	if l == nil {
		return nil
	}
	return l.names
}

// Contains reports whether name is in the list.
func (l *AttributeList) Contains(name string) bool {
	if l == nil {
		return false
	}
	for _, n := range l.names {
		if n == name {
			return true
		}
	}
	return false
}

// Registry holds the process-wide default search attributes per entity type.
//
// Lifecycle: RegisterGlobal is called during startup wiring only. Once
// filters are being compiled the registry is read-only and reads take no
// lock. Writes concurrent with compilation are a caller bug.
type Registry struct {
	globals map[string]*AttributeList
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{globals: make(map[string]*AttributeList)}
}

// RegisterGlobal appends name to the default set of entityType.
func (r *Registry) RegisterGlobal(entityType, name string) {
	r.Global(entityType).Add(name)
}

// Global returns the default set of entityType by reference, creating it on
// first use.
func (r *Registry) Global(entityType string) *AttributeList {
	list, ok := r.globals[entityType]
	if !ok {
		list = &AttributeList{}
		r.globals[entityType] = list
	}
	return list
}

// EntityTypes returns every entity type with a registered default set.
func (r *Registry) EntityTypes() []string {
	types := make([]string, 0, len(r.globals))
	for t := range r.globals {
		types = append(types, t)
	}
	return types
}

// Attributes is the search attribute storage an entity embeds.
//
// An entity either owns an instance set that overlays the global set, or
// uses the global set directly. The overlay is merged at most once.
type Attributes struct {
	global   *AttributeList
	instance *AttributeList

	once   sync.Once
	done   bool
	merged []string
}

// NewAttributes creates storage backed by global only.
func NewAttributes(global *AttributeList) *Attributes {
	if global == nil {
		global = &AttributeList{}
	}
	return &Attributes{global: global}
}

// NewInstanceAttributes creates storage with its own instance set, seeded
// with names, overlaid on global.
func NewInstanceAttributes(global *AttributeList, names ...string) *Attributes {
	a := NewAttributes(global)
	a.instance = &AttributeList{}
	for _, n := range names {
		a.instance.Add(n)
	}
	return a
}

// Add appends name to the instance set if the entity has one, else to the
// global set. Once the overlay is merged, name is appended to the merged set
// as well. Add must not run concurrently with Effective.
func (a *Attributes) Add(name string) {
	if a.instance == nil {
		a.global.Add(name)
		return
	}
	a.instance.Add(name)
	if a.done && !slices.Contains(a.merged, name) {
		a.merged = append(a.merged, name)
	}
}

// Effective returns the searchable names. With an instance set, the result
// is the instance names followed by global names not already present,
// computed once; without one, it is the global set itself.
func (a *Attributes) Effective() []string {
	if a.instance == nil {
		return a.global.Names()
	}
	a.once.Do(func() {
		merged := &AttributeList{}
		for _, n := range a.instance.Names() {
			merged.Add(n)
		}
		for _, n := range a.global.Names() {
			merged.Add(n)
		}
		a.merged = merged.Names()
		a.done = true
	})
	return a.merged
}

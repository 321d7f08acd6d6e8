package metadata

import (
	"fmt"
	"sort"
	"strings"
)

// UnknownEntityError reports a lookup for an entity name that is not
// registered. It is a programming or configuration error, never user input;
// startup validation should make it unreachable at request time.
type UnknownEntityError struct {
	Name string
}

func (e *UnknownEntityError) Error() string {
	return fmt.Sprintf("unknown entity: %s", e.Name)
}

// InvalidRegistryError carries every catalog violation found by Validate.
type InvalidRegistryError struct {
	Problems []string
}

func (e *InvalidRegistryError) Error() string {
	return fmt.Sprintf("invalid entity metadata (%d problems): %s",
		len(e.Problems), strings.Join(e.Problems, "; "))
}

// Registry is the process-wide catalog of entity metadata. It is built once
// at startup and read-only afterwards, so any number of request handlers may
// consult it concurrently without locking.
type Registry struct {
	entities   map[string]*EntityMetadata
	names      []string // sorted
	duplicates []string // duplicate entityNames seen at construction, for Validate
}

// New builds a registry from the given entries. Duplicate entity names keep
// the last entry and are reported by Validate. Entries are not copied; they
// must not be mutated after construction.
func New(entries []*EntityMetadata) *Registry {
	r := &Registry{entities: make(map[string]*EntityMetadata, len(entries))}
	for _, e := range entries {
		if _, exists := r.entities[e.EntityName]; exists {
			r.duplicates = append(r.duplicates, e.EntityName)
		}
		r.entities[e.EntityName] = e
	}
	r.names = make([]string, 0, len(r.entities))
	for name := range r.entities {
		r.names = append(r.names, name)
	}
	sort.Strings(r.names)
	return r
}

// EntityNames returns every registered entity name, sorted, duplicate-free.
func (r *Registry) EntityNames() []string {
	return append([]string(nil), r.names...)
}

// Get returns the metadata registered under name. The error is always a
// *UnknownEntityError.
func (r *Registry) Get(name string) (*EntityMetadata, error) {
	e, ok := r.entities[name]
	if !ok {
		return nil, &UnknownEntityError{Name: name}
	}
	return e, nil
}

// IsBusinessEntity reports whether name is registered with an RLS resource.
func (r *Registry) IsBusinessEntity(name string) bool {
	e, ok := r.entities[name]
	return ok && e.IsBusiness()
}

// BusinessEntityNames returns the names of all entities declaring an RLS
// resource, sorted.
func (r *Registry) BusinessEntityNames() []string {
	var names []string
	for _, name := range r.names {
		if r.entities[name].IsBusiness() {
			names = append(names, name)
		}
	}
	return names
}

// SystemEntityNames returns the names of all entities without an RLS
// resource, sorted.
func (r *Registry) SystemEntityNames() []string {
	var names []string
	for _, name := range r.names {
		if !r.entities[name].IsBusiness() {
			names = append(names, name)
		}
	}
	return names
}

// EntitiesByCategory groups entity names by their category. Every registered
// name appears under exactly one key.
func (r *Registry) EntitiesByCategory() map[Category][]string {
	groups := make(map[Category][]string)
	for _, name := range r.names {
		c := r.entities[name].Category
		groups[c] = append(groups[c], name)
	}
	return groups
}

// EntitiesWithFeature returns the names of entities whose metadata has a
// non-empty value for the named optional feature, sorted.
func (r *Registry) EntitiesWithFeature(f Feature) []string {
	var names []string
	for _, name := range r.names {
		if r.entities[name].HasFeature(f) {
			names = append(names, name)
		}
	}
	return names
}

// Check returns nil when Validate finds no problems, otherwise an
// *InvalidRegistryError carrying all of them. Run it at startup so a
// misconfigured catalog is fatal immediately instead of a 500 later.
func (r *Registry) Check() error {
	if problems := r.Validate(); len(problems) > 0 {
		return &InvalidRegistryError{Problems: problems}
	}
	return nil
}

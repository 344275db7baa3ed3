package toolengine

import "sort"

// Registry maps plugin identifiers to manifests.
type Registry struct {
	manifests map[string]*PluginManifest
}

// NewRegistry creates a registry seeded with manifests. Later duplicates
// replace earlier ones.
func NewRegistry(manifests ...PluginManifest) *Registry {
	r := &Registry{manifests: make(map[string]*PluginManifest, len(manifests))}
	for _, m := range manifests {
		r.Put(m)
	}
	return r
}

// Put inserts or replaces a manifest under its identifier.
func (r *Registry) Put(m PluginManifest) {
	dup := cloneManifest(m)
	r.manifests[m.Identifier] = &dup
}

// Delete removes a manifest. Unknown identifiers are ignored.
func (r *Registry) Delete(identifier string) {
	delete(r.manifests, identifier)
}

// Get returns a copy of a manifest by identifier. Changes to the copy do not
// reach the registry.
func (r *Registry) Get(identifier string) (*PluginManifest, bool) {
	m, ok := r.manifests[identifier]
	if !ok {
		return nil, false
	}
	dup := cloneManifest(*m)
	return &dup, true
}

// Has reports whether a manifest is registered.
func (r *Registry) Has(identifier string) bool {
	_, ok := r.manifests[identifier]
	return ok
}

// Len returns the number of registered manifests.
func (r *Registry) Len() int {
	return len(r.manifests)
}

// Replace swaps the whole manifest set.
func (r *Registry) Replace(manifests []PluginManifest) {
	r.manifests = make(map[string]*PluginManifest, len(manifests))
	for _, m := range manifests {
		r.Put(m)
	}
}

// Identifiers returns the registered identifiers in sorted order.
// It implements toolname.Catalog.
func (r *Registry) Identifiers() []string {
	ids := make([]string, 0, len(r.manifests))
	for id := range r.manifests {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// APINames implements toolname.Catalog.
func (r *Registry) APINames(identifier string) ([]string, bool) {
	m, ok := r.manifests[identifier]
	if !ok {
		return nil, false
	}
	return m.APINames(), true
}

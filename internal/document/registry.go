// internal/document/registry.go
//
// Type registry: explicit mapping from a type identifier string to the
// behaviour attached to that document type.  Callers register types in an
// init() function; repositories bind to a *Type and scope all queries to
// it.  Identifiers are never inferred from runtime reflection.
package document

import "sync"

// Type describes one logical document type.  Validate, when set, runs
// before every save of a document carrying this type identifier.
type Type struct {
	ID       string
	Validate func(*Document) error
}

var (
	mu       sync.RWMutex
	registry = map[string]*Type{}
)

// RegisterType is called from package init() functions.  Re-registering an
// identifier replaces the previous entry.
func RegisterType(t *Type) {
	mu.Lock()
	registry[t.ID] = t
	mu.Unlock()
}

// LookupType returns the registered type for an identifier, or nil.
func LookupType(id string) *Type {
	mu.RLock()
	defer mu.RUnlock()
	return registry[id]
}

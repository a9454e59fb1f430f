package nodes

import (
	"sort"
	"sync"

	"github.com/nvallejo/weft/pkg/schema"
)

// Constructor builds a node instance from its spec. Collaborators (the
// expression evaluator, the monitor, the credential vault) are captured by
// the constructor closure at registration time.
type Constructor func(spec *schema.NodeSpec) (Node, error)

// Registry maps node type identifiers to constructors. It is built
// explicitly at startup and injected into the dispatcher; there is no
// package-global instance. Registration of new types is allowed at any time,
// lookups are concurrent-safe.
type Registry struct {
	mu           sync.RWMutex
	constructors map[string]Constructor
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		constructors: make(map[string]Constructor),
	}
}

// Register adds a node type. Returns an error on duplicate type or empty
// arguments.
func (r *Registry) Register(nodeType string, ctor Constructor) error {
	if nodeType == "" {
		return schema.NewError(schema.ErrCodeValidation, "node type is empty")
	}
	if ctor == nil {
		return schema.NewError(schema.ErrCodeValidation, "node constructor is nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.constructors[nodeType]; exists {
		return schema.NewErrorf(schema.ErrCodeConflict, "node type %q already registered", nodeType)
	}

	r.constructors[nodeType] = ctor
	return nil
}

// Create instantiates a node from its spec. An unregistered type fails with
// UNKNOWN_NODE_TYPE; the dispatcher records this as a node-level error, it
// never crosses the dispatcher boundary as a crash.
func (r *Registry) Create(spec *schema.NodeSpec) (Node, error) {
	if spec == nil {
		return nil, schema.NewError(schema.ErrCodeValidation, "node spec is nil")
	}

	r.mu.RLock()
	ctor, ok := r.constructors[spec.Type]
	r.mu.RUnlock()

	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeUnknownNodeType, "node type %q not registered", spec.Type).
			WithNode(spec.ID)
	}

	return ctor(spec)
}

// Has checks if a node type is registered.
func (r *Registry) Has(nodeType string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.constructors[nodeType]
	return ok
}

// Types returns the registered type identifiers, sorted.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.constructors))
	for t := range r.constructors {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Count returns the number of registered node types.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.constructors)
}

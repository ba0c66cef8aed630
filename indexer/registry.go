package indexer

import (
	"fmt"
	"sort"
	"sync"

	"github.com/artsince/neo4j/graph"
)

// Registry maps node kinds to their indexers and dispatches graph change
// notifications to them. It implements graph.Hooks, so it can be set
// directly on a req.Context to reindex synchronously with each mutation.
// Changes to kinds without an indexer are ignored.
//
// The indexer of the changed node's kind decides which nodes went stale,
// but every stale node is regenerated by the indexer of its own kind. A
// relation index following a relationship into another kind therefore
// refreshes that kind's documents, not its own.
type Registry struct {
	mutex    sync.RWMutex
	indexers map[string]*Indexer
}

func NewRegistry() *Registry {
	return &Registry{indexers: make(map[string]*Indexer)}
}

// Register adds the indexer handling the given entity kind. Registering a
// kind twice is a configuration error.
func (r *Registry) Register(kind string, in *Indexer) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if in == nil {
		return fmt.Errorf("indexer: nil indexer for kind %q", kind)
	}
	if _, dup := r.indexers[kind]; dup {
		return fmt.Errorf("%w: %q", ErrDuplicateKind, kind)
	}
	r.indexers[kind] = in
	return nil
}

// Get returns the indexer for the kind, if one is registered.
func (r *Registry) Get(kind string) (*Indexer, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	in, present := r.indexers[kind]
	return in, present
}

// Kinds returns the registered kinds in sorted order.
func (r *Registry) Kinds() []string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var list []string
	for kind := range r.indexers {
		list = append(list, kind)
	}
	sort.Strings(list)
	return list
}

// Num returns the number of registered kinds.
func (r *Registry) Num() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return len(r.indexers)
}

// updateAll regenerates each node through the indexer of its own kind.
// Nodes of unregistered kinds are left alone.
func (r *Registry) updateAll(nodes []graph.Node) error {
	for _, node := range nodes {
		in, present := r.Get(node.Kind())
		if !present {
			continue
		}
		if err := in.UpdateIndex(node); err != nil {
			return err
		}
	}
	return nil
}

// PropertyChanged implements graph.Hooks.
func (r *Registry) PropertyChanged(n graph.Node, property string) error {
	in, present := r.Get(n.Kind())
	if !present {
		return nil
	}
	nodes, err := in.Impacted(n, in.UpdatersForProperty(property))
	if err != nil {
		return err
	}
	return r.updateAll(nodes)
}

// RelationChanged implements graph.Hooks.
func (r *Registry) RelationChanged(n graph.Node, relType string) error {
	in, present := r.Get(n.Kind())
	if !present {
		return nil
	}
	nodes, err := in.Impacted(n, in.UpdatersForRelation(relType))
	if err != nil {
		return err
	}
	return r.updateAll(nodes)
}

// NodeDeleted implements graph.Hooks.
func (r *Registry) NodeDeleted(n graph.Node) error {
	in, present := r.Get(n.Kind())
	if !present {
		return nil
	}
	return in.OnNodeDeleted(n)
}

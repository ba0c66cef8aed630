// Package memgraph is an in-memory graph store, meant for running tests
// and examples without any setup. Not for production use.
package memgraph

import (
	"sort"
	"sync"

	"github.com/artsince/neo4j/graph"
	"github.com/artsince/neo4j/x"
)

var log = x.Log("memgraph")

type record struct {
	kind    string
	deleted bool
	props   map[string]interface{}
}

// MemGraph holds nodes in a map and relationships in a slice, so traversal
// order is creation order. All operations take a single lock; handles read
// through the store, so they always observe the current state.
type MemGraph struct {
	mutex sync.RWMutex
	nodes map[string]*record
	edges []graph.Relation
}

func (mg *MemGraph) Init(args ...string) error {
	mg.mutex.Lock()
	defer mg.mutex.Unlock()
	mg.nodes = make(map[string]*record)
	mg.edges = nil
	return nil
}

func (mg *MemGraph) PutNode(kind, id string) (graph.Node, error) {
	mg.mutex.Lock()
	defer mg.mutex.Unlock()
	if _, present := mg.nodes[id]; !present {
		mg.nodes[id] = &record{
			kind:  kind,
			props: make(map[string]interface{}),
		}
	}
	return memNode{mg: mg, id: id}, nil
}

func (mg *MemGraph) Node(id string) (graph.Node, error) {
	mg.mutex.RLock()
	defer mg.mutex.RUnlock()
	if _, present := mg.nodes[id]; !present {
		return nil, graph.ErrNotFound
	}
	return memNode{mg: mg, id: id}, nil
}

func (mg *MemGraph) SetProperty(id, property string, value interface{}) error {
	mg.mutex.Lock()
	defer mg.mutex.Unlock()
	rec, present := mg.nodes[id]
	if !present {
		return graph.ErrNotFound
	}
	rec.props[property] = value
	return nil
}

func (mg *MemGraph) Properties(id string) (map[string]interface{}, error) {
	mg.mutex.RLock()
	defer mg.mutex.RUnlock()
	rec, present := mg.nodes[id]
	if !present {
		return nil, graph.ErrNotFound
	}
	props := make(map[string]interface{}, len(rec.props))
	for k, v := range rec.props {
		props[k] = v
	}
	return props, nil
}

func (mg *MemGraph) DeleteNode(id string) error {
	mg.mutex.Lock()
	defer mg.mutex.Unlock()
	rec, present := mg.nodes[id]
	if !present {
		return graph.ErrNotFound
	}
	rec.deleted = true
	return nil
}

func (mg *MemGraph) Relate(relType, fromId, toId string) error {
	mg.mutex.Lock()
	defer mg.mutex.Unlock()
	mg.edges = append(mg.edges, graph.Relation{
		RelType: relType,
		FromId:  fromId,
		ToId:    toId,
	})
	return nil
}

func (mg *MemGraph) Unrelate(relType, fromId, toId string) error {
	mg.mutex.Lock()
	defer mg.mutex.Unlock()
	for i, e := range mg.edges {
		if e.RelType == relType && e.FromId == fromId && e.ToId == toId {
			mg.edges = append(mg.edges[:i], mg.edges[i+1:]...)
			return nil
		}
	}
	return nil
}

func (mg *MemGraph) Relations(id string) ([]graph.Relation, error) {
	mg.mutex.RLock()
	defer mg.mutex.RUnlock()
	if _, present := mg.nodes[id]; !present {
		return nil, graph.ErrNotFound
	}
	var rels []graph.Relation
	for _, e := range mg.edges {
		if e.FromId == id || e.ToId == id {
			rels = append(rels, e)
		}
	}
	return rels, nil
}

func (mg *MemGraph) IsNew(id string) bool {
	mg.mutex.RLock()
	defer mg.mutex.RUnlock()
	_, present := mg.nodes[id]
	return !present
}

func (mg *MemGraph) Iterate(fromId string, num int,
	ch chan<- x.Entity) (int, x.Entity, error) {

	// Snapshot under the lock, send outside it. A consumer of ch may call
	// back into the store, so holding the lock across the sends would
	// deadlock.
	mg.mutex.RLock()
	ids := make([]string, 0, len(mg.nodes))
	for id := range mg.nodes {
		if id > fromId {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	if len(ids) > num {
		ids = ids[:num]
	}
	scanned := make([]x.Entity, 0, len(ids))
	live := make([]bool, 0, len(ids))
	for _, id := range ids {
		rec := mg.nodes[id]
		scanned = append(scanned, x.Entity{Kind: rec.kind, Id: id})
		live = append(live, !rec.deleted)
	}
	mg.mutex.RUnlock()

	var last x.Entity
	for i, ent := range scanned {
		if live[i] {
			ch <- ent
		}
		last = ent
	}
	return len(scanned), last, nil
}

type memNode struct {
	mg *MemGraph
	id string
}

func (mn memNode) Id() string { return mn.id }

func (mn memNode) Kind() string {
	mn.mg.mutex.RLock()
	defer mn.mg.mutex.RUnlock()
	rec, present := mn.mg.nodes[mn.id]
	if !present {
		return ""
	}
	return rec.kind
}

func (mn memNode) Deleted() bool {
	mn.mg.mutex.RLock()
	defer mn.mg.mutex.RUnlock()
	rec, present := mn.mg.nodes[mn.id]
	if !present {
		return true
	}
	return rec.deleted
}

func (mn memNode) Property(name string) (interface{}, error) {
	mn.mg.mutex.RLock()
	defer mn.mg.mutex.RUnlock()
	rec, present := mn.mg.nodes[mn.id]
	if !present {
		return nil, graph.ErrNotFound
	}
	val, present := rec.props[name]
	if !present {
		return nil, nil
	}
	return val, nil
}

func (mn memNode) Related(relType string, dir graph.Direction) ([]graph.Node, error) {
	mn.mg.mutex.RLock()
	defer mn.mg.mutex.RUnlock()
	var nodes []graph.Node
	for _, e := range mn.mg.edges {
		if e.RelType != relType {
			continue
		}
		switch dir {
		case graph.Outgoing:
			if e.FromId == mn.id {
				nodes = append(nodes, memNode{mg: mn.mg, id: e.ToId})
			}
		case graph.Incoming:
			if e.ToId == mn.id {
				nodes = append(nodes, memNode{mg: mn.mg, id: e.FromId})
			}
		case graph.Both:
			if e.FromId == mn.id {
				nodes = append(nodes, memNode{mg: mn.mg, id: e.ToId})
			} else if e.ToId == mn.id {
				nodes = append(nodes, memNode{mg: mn.mg, id: e.FromId})
			}
		}
	}
	return nodes, nil
}

func init() {
	log.Info("Initing memgraph")
	graph.Register("memgraph", new(MemGraph))
}

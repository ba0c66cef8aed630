// Package graph provides the property graph model and an interface for
// graph store operations, to allow for easy extensibility to support
// various backends.
package graph

import (
	"errors"
	"sync"

	"github.com/artsince/neo4j/x"
)

var log = x.Log("graph")

// ErrNotFound is returned by stores when the referenced node has no record.
var ErrNotFound = errors.New("graph: node not found")

// Direction selects which relationships of a node to follow.
type Direction int

const (
	// Outgoing follows relationships starting at the node.
	Outgoing Direction = iota
	// Incoming follows relationships ending at the node.
	Incoming
	// Both follows relationships regardless of direction, in the order
	// the store created them.
	Both
)

func (d Direction) String() string {
	switch d {
	case Outgoing:
		return "outgoing"
	case Incoming:
		return "incoming"
	case Both:
		return "both"
	}
	return "unknown"
}

// Node is a live handle to a graph node. Handles stay valid after the node
// is deleted; Deleted reports the current state on every call, so traversals
// running concurrently with deletions observe them.
type Node interface {
	Id() string

	// Kind is the node label, for e.g. "Person". Returns an empty string
	// if the node record is gone.
	Kind() string

	// Deleted reports whether the node has been removed from the graph.
	// A handle whose record cannot be read also reports true.
	Deleted() bool

	// Property returns the raw value stored under name. A property that
	// was never set yields nil with no error; errors are reserved for
	// store failures.
	Property(name string) (interface{}, error)

	// Related returns the nodes reached over relationships of relType in
	// the given direction, in the store's traversal order. The result may
	// contain deleted nodes and duplicates from parallel relationships;
	// callers are expected to deal with both.
	Related(relType string, dir Direction) ([]Node, error)
}

// All the graph CRUD operations are run via this Store interface.
// Implement this interface to add support for a graph backend.
type Store interface {
	// Init is used to initialize the store driver.
	Init(args ...string) error

	// PutNode creates a node of the given kind if the id is unused, and
	// returns a handle to it. An existing node is returned as-is.
	PutNode(kind, id string) (Node, error)

	// Node returns a handle to the node with the given id, or ErrNotFound.
	Node(id string) (Node, error)

	// SetProperty stores value under the property name on the node.
	SetProperty(id, property string, value interface{}) error

	// Properties returns a copy of all properties set on the node.
	Properties(id string) (map[string]interface{}, error)

	// DeleteNode marks the node deleted. The record is kept as a
	// tombstone, so existing handles and neighbor traversals keep
	// working; they just see a deleted node.
	DeleteNode(id string) error

	// Relate adds a relationship of relType from one node to another.
	// Calling it twice adds parallel relationships.
	Relate(relType, fromId, toId string) error

	// Unrelate removes the first matching relationship, if any.
	Unrelate(relType, fromId, toId string) error

	// Relations returns all relationships touching the node, in the
	// store's creation order, regardless of direction.
	Relations(id string) ([]Relation, error)

	// IsNew returns true if the id provided doesn't exist in the store.
	IsNew(id string) bool

	// Iterate scans nodes with ids after fromId in id order, up to num of
	// them, sending the live ones to ch. It returns the number of nodes
	// scanned and the last entity scanned, so callers can resume from
	// there. A scanned count of zero means the end was reached.
	Iterate(fromId string, num int, ch chan<- x.Entity) (int, x.Entity, error)
}

// Relation describes one relationship between two nodes.
type Relation struct {
	RelType string
	FromId  string
	ToId    string
}

// Hooks get notified after graph mutations have been committed. The store
// layer calls them once per distinct change, so implementations can keep a
// search index or any other derived data in sync.
type Hooks interface {
	// PropertyChanged is called after a property was set on the node.
	PropertyChanged(n Node, property string) error

	// RelationChanged is called on both endpoints after a relationship
	// of relType was created or removed. When a node is deleted it is
	// called on the tombstone instead, once per relationship type the
	// node had, so implementations can refresh the surviving neighbors.
	RelationChanged(n Node, relType string) error

	// NodeDeleted is called after the node was deleted and its
	// relation changes were notified.
	NodeDeleted(n Node) error
}

var (
	storesMutex sync.RWMutex
	stores      = make(map[string]Store)
)

// Register makes a store driver available by name, typically from the
// driver's init function via a blank import.
func Register(name string, s Store) {
	storesMutex.Lock()
	defer storesMutex.Unlock()
	if s == nil {
		log.WithField("driver", name).Fatal("Nil store")
		return
	}
	if _, dup := stores[name]; dup {
		log.WithField("driver", name).Fatal("Register called twice for driver")
		return
	}
	log.WithField("driver", name).Debug("Registering store driver")
	stores[name] = s
}

// Get returns the store driver registered under name.
func Get(name string) Store {
	storesMutex.RLock()
	defer storesMutex.RUnlock()
	s, present := stores[name]
	if !present {
		log.WithField("driver", name).Fatal("No store driver registered under name")
		return nil
	}
	return s
}

// Ref returns a detached handle carrying just a kind and an id. It is used
// where a node must be referenced after its record is gone, for e.g. when
// replaying a delete event. The handle reports itself deleted and has no
// properties or relationships.
func Ref(kind, id string) Node {
	return refNode{kind: kind, id: id}
}

type refNode struct {
	kind string
	id   string
}

func (r refNode) Id() string    { return r.id }
func (r refNode) Kind() string  { return r.kind }
func (r refNode) Deleted() bool { return true }

func (r refNode) Property(name string) (interface{}, error) {
	return nil, ErrNotFound
}

func (r refNode) Related(relType string, dir Direction) ([]Node, error) {
	return nil, nil
}

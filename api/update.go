// api package provides the mutation apis for graph manipulation.
package api

import (
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/artsince/neo4j/graph"
	"github.com/artsince/neo4j/req"
	"github.com/artsince/neo4j/x"
)

var log = x.Log("api")

type edge struct {
	relType string
	toId    string
}

// Update collects mutations to one node: property sets, relationship
// changes, or deleting the node. Nothing touches the store until Execute
// is called.
type Update struct {
	kind    string
	id      string
	props   map[string]interface{}
	order   []string
	relAdd  []edge
	relDel  []edge
	deleted bool
}

// NewUpdate is the main entrypoint to updates. Returns back an Update
// object pointer, to run mutation operations on. Pass an empty id to have
// Execute assign a fresh unique one.
func NewUpdate(kind, id string) *Update {
	log.WithFields(logrus.Fields{
		"func": "NewUpdate",
		"kind": kind,
		"id":   id,
	}).Debug("Called")
	n := new(Update)
	n.kind = kind
	n.id = id
	return n
}

// Set allows you to set the property and value on the current node.
// This would effectively replace any other value this property had,
// on the node this Update pointer represents.
func (n *Update) Set(property string, value interface{}) *Update {
	log.WithField(property, value).Debug("Set")
	if n.props == nil {
		n.props = make(map[string]interface{})
	}
	if _, present := n.props[property]; !present {
		n.order = append(n.order, property)
	}
	n.props[property] = value
	return n
}

// Relate adds a relationship of relType from the current node to the node
// with id toId. Relating the same pair again adds a parallel relationship.
func (n *Update) Relate(relType, toId string) *Update {
	log.WithFields(logrus.Fields{
		"rel_type": relType,
		"to_id":    toId,
	}).Debug("Relate")
	n.relAdd = append(n.relAdd, edge{relType: relType, toId: toId})
	return n
}

// Unrelate removes one relationship of relType from the current node to
// the node with id toId, if there is one.
func (n *Update) Unrelate(relType, toId string) *Update {
	log.WithFields(logrus.Fields{
		"rel_type": relType,
		"to_id":    toId,
	}).Debug("Unrelate")
	n.relDel = append(n.relDel, edge{relType: relType, toId: toId})
	return n
}

// MarkDeleted marks the current node for deletion. The store keeps the
// node as a tombstone, and the search document is dropped through the
// delete notification. Any other mutations collected on this Update are
// ignored once it is marked.
func (n *Update) MarkDeleted() *Update {
	n.deleted = true
	return n
}

// Id returns the node id this update applies to. Empty until Execute has
// assigned one.
func (n *Update) Id() string {
	return n.id
}

func (n *Update) assignId(c *req.Context) error {
	for idx := 0; ; idx++ {
		n.id = x.UniqueString(c.NumCharsUnique)
		log.WithField("id", n.id).Debug("Checking availability of new id")
		if isnew := c.Store.IsNew(n.id); isnew {
			log.WithField("id", n.id).Debug("New id available")
			return nil
		}
		if idx >= 30 {
			return errors.New("Unable to find new id")
		}
	}
}

type pair struct {
	id      string
	relType string
}

// Execute commits the collected mutations to the store, and then notifies
// c.Hooks once per distinct change: every property set, and every (node,
// relationship type) pair touched by a relationship change, on both
// endpoints. Returns any errors encountered during these steps.
func (n *Update) Execute(c *req.Context) error {
	if c.NumCharsUnique <= 0 {
		return errors.New("Invalid req.Context.NumCharsUnique")
	}
	if c.Store == nil {
		return errors.New("No store set on req.Context")
	}
	if len(n.props) == 0 && len(n.relAdd) == 0 && len(n.relDel) == 0 && !n.deleted {
		return errors.New("No mutations specified")
	}

	if len(n.id) == 0 {
		if err := n.assignId(c); err != nil {
			return err
		}
	}

	if n.deleted {
		return n.executeDelete(c)
	}

	node, err := c.Store.PutNode(n.kind, n.id)
	if err != nil {
		return err
	}

	// Commit everything first, so hooks observe the final state.
	for _, p := range n.order {
		if err := c.Store.SetProperty(n.id, p, n.props[p]); err != nil {
			return err
		}
	}
	for _, e := range n.relAdd {
		if err := c.Store.Relate(e.relType, n.id, e.toId); err != nil {
			return err
		}
	}
	for _, e := range n.relDel {
		if err := c.Store.Unrelate(e.relType, n.id, e.toId); err != nil {
			return err
		}
	}

	if c.Hooks == nil {
		return nil
	}

	log.WithField("num_props", len(n.order)).
		WithField("num_rels", len(n.relAdd)+len(n.relDel)).
		Debug("Notifying hooks")
	for _, p := range n.order {
		if err := c.Hooks.PropertyChanged(node, p); err != nil {
			return err
		}
	}

	notified := make(map[pair]bool)
	edges := append(append([]edge{}, n.relAdd...), n.relDel...)
	for _, e := range edges {
		for _, id := range []string{n.id, e.toId} {
			pr := pair{id: id, relType: e.relType}
			if notified[pr] {
				continue
			}
			notified[pr] = true
			end, err := c.Store.Node(id)
			if err != nil {
				return err
			}
			if err := c.Hooks.RelationChanged(end, e.relType); err != nil {
				return err
			}
		}
	}
	return nil
}

// executeDelete tombstones the node, then notifies a relation change on it
// for each relationship type it had, followed by exactly one delete
// notification. The tombstone keeps the relationships traversable, so a
// relation change on the deleted node reaches every former neighbor, and
// their regenerated documents no longer carry the node's values.
func (n *Update) executeDelete(c *req.Context) error {
	rels, err := c.Store.Relations(n.id)
	if err != nil && err != graph.ErrNotFound {
		return err
	}
	if err := c.Store.DeleteNode(n.id); err != nil {
		return err
	}
	if c.Hooks == nil {
		return nil
	}

	node, err := c.Store.Node(n.id)
	if err != nil {
		// The store dropped the record entirely, notify with a
		// detached reference instead.
		node = graph.Ref(n.kind, n.id)
	}

	notified := make(map[string]bool)
	for _, rel := range rels {
		if notified[rel.RelType] {
			continue
		}
		notified[rel.RelType] = true
		if err := c.Hooks.RelationChanged(node, rel.RelType); err != nil {
			return err
		}
	}
	return c.Hooks.NodeDeleted(node)
}

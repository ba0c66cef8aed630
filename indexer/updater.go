package indexer

import (
	"sort"

	"github.com/artsince/neo4j/graph"
	"github.com/artsince/neo4j/x"
)

// Updater is implemented by the index updaters attached to an Indexer.
// Each updater knows which changes it cares about, which nodes a change
// makes stale, and how to fill its part of a node's document.
type Updater interface {
	// AppliesToProperty returns true when a change of the given property
	// concerns this updater.
	AppliesToProperty(property string) bool

	// AppliesToRelation returns true when creating or removing a
	// relationship of relType concerns this updater.
	AppliesToRelation(relType string) bool

	// NodesToReindex returns the nodes whose documents go stale when n
	// changes. The list is in store traversal order and is returned
	// as-is: duplicates and deleted nodes are the caller's problem.
	NodesToReindex(n graph.Node) ([]graph.Node, error)

	// UpdateDocument fills the values this updater is responsible for
	// into n's document.
	UpdateDocument(doc x.Doc, n graph.Node) error
}

// PropertyUpdater tracks a set of properties on the node itself. A change
// to a tracked property makes only the node's own document stale.
type PropertyUpdater struct {
	properties map[string]bool
}

func NewPropertyUpdater() *PropertyUpdater {
	return &PropertyUpdater{properties: make(map[string]bool)}
}

// Add starts tracking the property. Adding it again is a no-op.
func (pu *PropertyUpdater) Add(property string) {
	pu.properties[property] = true
}

// Remove stops tracking the property. Removing an untracked property is
// a no-op.
func (pu *PropertyUpdater) Remove(property string) {
	delete(pu.properties, property)
}

// Properties returns the tracked properties in sorted order.
func (pu *PropertyUpdater) Properties() []string {
	var list []string
	for p := range pu.properties {
		list = append(list, p)
	}
	sort.Strings(list)
	return list
}

func (pu *PropertyUpdater) AppliesToProperty(property string) bool {
	return pu.properties[property]
}

func (pu *PropertyUpdater) AppliesToRelation(relType string) bool {
	return false
}

// NodesToReindex returns just the node itself.
func (pu *PropertyUpdater) NodesToReindex(n graph.Node) ([]graph.Node, error) {
	return []graph.Node{n}, nil
}

// UpdateDocument copies every tracked property of the node into the doc,
// raw value as stored, under the property name itself. Properties never
// set on the node come through as nil.
func (pu *PropertyUpdater) UpdateDocument(doc x.Doc, n graph.Node) error {
	for _, p := range pu.Properties() {
		val, err := n.Property(p)
		if err != nil {
			return err
		}
		doc.Values[p] = val
	}
	return nil
}

// RelationUpdater tracks a set of properties on the nodes related over one
// relationship type. A change to a tracked property on a node makes the
// documents of its related nodes stale, since those documents carry the
// values of their neighbors.
type RelationUpdater struct {
	base       string
	relType    string
	properties map[string]bool
}

// NewRelationUpdater returns an updater writing under the given base key,
// following relationships of relType.
func NewRelationUpdater(base, relType string) *RelationUpdater {
	return &RelationUpdater{
		base:       base,
		relType:    relType,
		properties: make(map[string]bool),
	}
}

func (ru *RelationUpdater) Base() string { return ru.base }

func (ru *RelationUpdater) RelType() string { return ru.relType }

// Add starts tracking the property. Adding it again is a no-op.
func (ru *RelationUpdater) Add(property string) {
	ru.properties[property] = true
}

// Remove stops tracking the property. Removing an untracked property is
// a no-op.
func (ru *RelationUpdater) Remove(property string) {
	delete(ru.properties, property)
}

// Properties returns the tracked properties in sorted order.
func (ru *RelationUpdater) Properties() []string {
	var list []string
	for p := range ru.properties {
		list = append(list, p)
	}
	sort.Strings(list)
	return list
}

// IndexKey returns the document key a tracked property is stored under:
// the base key, a dot, and the property name.
func (ru *RelationUpdater) IndexKey(property string) string {
	return ru.base + "." + property
}

func (ru *RelationUpdater) AppliesToProperty(property string) bool {
	return ru.properties[property]
}

func (ru *RelationUpdater) AppliesToRelation(relType string) bool {
	return relType == ru.relType
}

// NodesToReindex returns the nodes related over the relationship type, in
// both directions. The store's traversal order is preserved, and neither
// duplicates from parallel relationships nor deleted nodes are filtered.
func (ru *RelationUpdater) NodesToReindex(n graph.Node) ([]graph.Node, error) {
	return n.Related(ru.relType, graph.Both)
}

// UpdateDocument accumulates, for each tracked property, the values found
// on the live related nodes into a list under the base-prefixed key. The
// lists are reset once up front and then appended to in traversal order,
// so each holds one entry per live related node. Deleted related nodes
// are skipped, and a node which is itself deleted leaves the doc alone.
func (ru *RelationUpdater) UpdateDocument(doc x.Doc, n graph.Node) error {
	if n.Deleted() {
		return nil
	}
	related, err := n.Related(ru.relType, graph.Both)
	if err != nil {
		return err
	}
	props := ru.Properties()
	for _, p := range props {
		doc.Values[ru.IndexKey(p)] = []interface{}{}
	}
	for _, rel := range related {
		if rel.Deleted() {
			continue
		}
		for _, p := range props {
			val, err := rel.Property(p)
			if err != nil {
				return err
			}
			key := ru.IndexKey(p)
			doc.Values[key] = append(doc.Values[key].([]interface{}), val)
		}
	}
	return nil
}

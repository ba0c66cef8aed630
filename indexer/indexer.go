package indexer

import (
	"errors"
	"fmt"
	"sort"

	"github.com/artsince/neo4j/graph"
	"github.com/artsince/neo4j/search"
	"github.com/artsince/neo4j/x"
)

var log = x.Log("indexer")

var (
	// ErrRelTypeConflict is returned when a base key is registered again
	// with a different relationship type.
	ErrRelTypeConflict = errors.New("indexer: base key bound to a different relationship type")

	// ErrDuplicateKind is returned when a kind is registered twice on a
	// Registry.
	ErrDuplicateKind = errors.New("indexer: kind already registered")
)

// Indexer keeps the search documents for nodes of one kind in sync with the
// graph. It owns one property updater and one relation updater per base key,
// and submits regenerated documents to its search engine.
type Indexer struct {
	kind     string
	engine   search.Engine
	property *PropertyUpdater
	relation map[string]*RelationUpdater
}

// New returns an indexer for nodes of the given kind, writing documents to
// the given engine.
func New(kind string, engine search.Engine) *Indexer {
	if engine == nil {
		log.WithField("kind", kind).Fatal("Nil search engine")
		return nil
	}
	return &Indexer{
		kind:     kind,
		engine:   engine,
		property: NewPropertyUpdater(),
		relation: make(map[string]*RelationUpdater),
	}
}

func (in *Indexer) Kind() string { return in.kind }

// Engine returns the search engine documents are submitted to.
func (in *Indexer) Engine() search.Engine { return in.engine }

// AddPropertyIndex starts tracking changes of the property on nodes of
// this kind.
func (in *Indexer) AddPropertyIndex(property string) {
	in.property.Add(property)
}

// RemovePropertyIndex stops tracking the property.
func (in *Indexer) RemovePropertyIndex(property string) {
	in.property.Remove(property)
}

// relationUpdater returns the updater registered under base, creating it
// bound to relType on first use. A base key stays bound to the relationship
// type that created it; asking for the same base with a different type is a
// configuration error, caught here rather than silently reusing the old
// binding.
func (in *Indexer) relationUpdater(base, relType string) (*RelationUpdater, error) {
	if ru, present := in.relation[base]; present {
		if ru.RelType() != relType {
			return nil, fmt.Errorf("%w: base %q is bound to %q, got %q",
				ErrRelTypeConflict, base, ru.RelType(), relType)
		}
		return ru, nil
	}
	ru := NewRelationUpdater(base, relType)
	in.relation[base] = ru
	return ru, nil
}

// AddRelationIndex starts tracking the property on nodes related over
// relType, indexed under base dot property.
func (in *Indexer) AddRelationIndex(base, relType, property string) error {
	ru, err := in.relationUpdater(base, relType)
	if err != nil {
		return err
	}
	ru.Add(property)
	return nil
}

// RemoveRelationIndex stops tracking the property under base. The base
// binding itself is kept, even when its property set becomes empty.
func (in *Indexer) RemoveRelationIndex(base, relType, property string) error {
	ru, err := in.relationUpdater(base, relType)
	if err != nil {
		return err
	}
	ru.Remove(property)
	return nil
}

// baseKeys returns the registered base keys in sorted order, keeping
// updater iteration deterministic.
func (in *Indexer) baseKeys() []string {
	var list []string
	for base := range in.relation {
		list = append(list, base)
	}
	sort.Strings(list)
	return list
}

// UpdatersForProperty returns the updaters concerned by a change of the
// property: relation updaters in base key order first, the property
// updater last.
func (in *Indexer) UpdatersForProperty(property string) []Updater {
	var ups []Updater
	for _, base := range in.baseKeys() {
		if ru := in.relation[base]; ru.AppliesToProperty(property) {
			ups = append(ups, ru)
		}
	}
	if in.property.AppliesToProperty(property) {
		ups = append(ups, in.property)
	}
	return ups
}

// UpdatersForRelation returns the relation updaters following relType, in
// base key order.
func (in *Indexer) UpdatersForRelation(relType string) []Updater {
	var ups []Updater
	for _, base := range in.baseKeys() {
		if ru := in.relation[base]; ru.AppliesToRelation(relType) {
			ups = append(ups, ru)
		}
	}
	return ups
}

// Impacted gathers the nodes the given updaters report stale for a change
// on n, once per distinct node id, in the order they were first reported.
// Deleted nodes are dropped; their documents are removed through delete
// notifications, not refreshed.
func (in *Indexer) Impacted(n graph.Node, ups []Updater) ([]graph.Node, error) {
	var nodes []graph.Node
	seen := make(map[string]bool)
	for _, up := range ups {
		stale, err := up.NodesToReindex(n)
		if err != nil {
			return nil, err
		}
		for _, node := range stale {
			if seen[node.Id()] {
				continue
			}
			seen[node.Id()] = true
			if node.Deleted() {
				continue
			}
			nodes = append(nodes, node)
		}
	}
	return nodes, nil
}

func (in *Indexer) reindex(n graph.Node, ups []Updater) error {
	nodes, err := in.Impacted(n, ups)
	if err != nil {
		return err
	}
	for _, node := range nodes {
		if err := in.UpdateIndex(node); err != nil {
			return err
		}
	}
	return nil
}

// OnPropertyChanged refreshes the documents made stale by a change of the
// property on n: the related nodes its relation updaters report, and n
// itself when the property updater tracks the property.
func (in *Indexer) OnPropertyChanged(n graph.Node, property string) error {
	return in.reindex(n, in.UpdatersForProperty(property))
}

// OnRelationChanged refreshes the documents made stale by creating or
// removing a relationship of relType on n.
func (in *Indexer) OnRelationChanged(n graph.Node, relType string) error {
	return in.reindex(n, in.UpdatersForRelation(relType))
}

// OnNodeDeleted drops n's document from the search engine. Nothing else:
// the documents of former neighbors are refreshed through the relation
// change notifications fired alongside a delete, not from here.
func (in *Indexer) OnNodeDeleted(n graph.Node) error {
	return in.engine.Delete(in.kind, n.Id())
}

// Regenerate builds n's document from scratch: a fresh doc carrying the id,
// filled by the property updater and then every relation updater. Nothing
// is merged from the previously indexed document, so values no updater
// contributes anymore just vanish.
func (in *Indexer) Regenerate(n graph.Node) (x.Doc, error) {
	doc := x.NewDoc(in.kind, n.Id())
	if err := in.property.UpdateDocument(doc, n); err != nil {
		return doc, err
	}
	for _, base := range in.baseKeys() {
		if err := in.relation[base].UpdateDocument(doc, n); err != nil {
			return doc, err
		}
	}
	return doc, nil
}

// UpdateIndex regenerates n's document and submits it to the search engine.
func (in *Indexer) UpdateIndex(n graph.Node) error {
	doc, err := in.Regenerate(n)
	if err != nil {
		return err
	}
	log.WithField("doc", doc).Debug("Regenerated doc")
	return in.engine.Update(doc)
}

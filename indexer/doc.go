// Package indexer keeps a search index in sync with a property graph, by
// regenerating the search documents of nodes whose data went stale.
//
// An Indexer is configured per node kind with two flavors of updaters.
// Property indexes track properties on the node itself: a change reindexes
// just that node. Relation indexes track properties on the nodes related
// over one relationship type: a change reindexes the related nodes, whose
// documents carry the neighbor values under keys like "friend.name". A
// Registry bundles the indexers of all kinds and dispatches graph change
// notifications to the right one.
//
// Reindexing can run two ways, and they complement each other:
//
// Method 1:
// Hand the Registry to the store layer as its hooks, so every committed
// mutation reindexes the impacted nodes inline. Or wrap it in a Server,
// which resolves the impacted nodes on notification but runs the document
// regeneration on a bounded queue with a pool of goroutines, keeping fan-out
// heavy mutations cheap for the caller. Both give real time updates.
//
// Method 2:
// Notification driven indexing generally isn't complete. Documents can go
// stale when events are missed, or when a change on one kind feeds documents
// of another. This is fixed by the same Server looping over all nodes in the
// store, regenerating every document. Run it continuously for a fool proof
// mechanism to keep store and search data in-sync.
//
// I recommend using both the methods. Method 1 ensures real time updates
// and method 2 ensures eventual consistency.
package indexer

// This package is the initialization point for the api.
// In particular, in your init (/main) function, the flow
// is to create a req.Context and fill in required options.
// Setting the length for unique strings generated to assign
// to new nodes, the graph store mutations are run against,
// and the hooks notified once mutations are committed.
package req

import "github.com/artsince/neo4j/graph"

type Context struct {
	NumCharsUnique int // 62^num unique strings
	Store          graph.Store
	Hooks          graph.Hooks // optional, nil means nobody gets notified
}

// NewContext returns a context generating ids of numChars characters.
// Store and Hooks are to be filled in by the caller.
func NewContext(numChars int) *Context {
	return &Context{NumCharsUnique: numChars}
}

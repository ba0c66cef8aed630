package api

import (
	"net/http"

	"github.com/artsince/neo4j/req"
	"github.com/artsince/neo4j/x"
)

// Query reads one node back from the store: its properties and its
// relationships.
type Query struct {
	id string
}

// NewQuery is the entrypoint to reads, for the node with the given id.
func NewQuery(id string) *Query {
	q := new(Query)
	q.id = id
	return q
}

// RelatedResult points at one node related to the queried one.
type RelatedResult struct {
	RelType string `json:"rel_type"`
	Id      string `json:"id"`
	Kind    string `json:"kind,omitempty"`
	Deleted bool   `json:"deleted,omitempty"`
}

// Result holds the node data a Query returned.
type Result struct {
	Id        string                 `json:"id"`
	Kind      string                 `json:"kind"`
	Deleted   bool                   `json:"deleted,omitempty"`
	Props     map[string]interface{} `json:"props,omitempty"`
	Relations []RelatedResult        `json:"relations,omitempty"`
}

// Run runs the query and returns the result and error, if any.
func (q *Query) Run(c *req.Context) (*Result, error) {
	node, err := c.Store.Node(q.id)
	if err != nil {
		return nil, err
	}
	props, err := c.Store.Properties(q.id)
	if err != nil {
		return nil, err
	}
	rels, err := c.Store.Relations(q.id)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Id:      node.Id(),
		Kind:    node.Kind(),
		Deleted: node.Deleted(),
		Props:   props,
	}
	for _, rel := range rels {
		otherId := rel.ToId
		if otherId == q.id {
			otherId = rel.FromId
		}
		rr := RelatedResult{RelType: rel.RelType, Id: otherId}
		if other, err := c.Store.Node(otherId); err == nil {
			rr.Kind = other.Kind()
			rr.Deleted = other.Deleted()
		}
		result.Relations = append(result.Relations, rr)
	}
	return result, nil
}

// WriteJsonResponse writes the result as JSON to the given response
// writer, for handlers serving node reads directly.
func (r *Result) WriteJsonResponse(w http.ResponseWriter) {
	x.Reply(w, r)
}

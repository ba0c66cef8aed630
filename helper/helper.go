// Package helper provides ready-made HTTP handlers over the api package,
// so a server binary only has to mount them. Handlers reply JSON and use
// the x.Status envelope for errors.
package helper

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/artsince/neo4j/api"
	"github.com/artsince/neo4j/graph"
	"github.com/artsince/neo4j/req"
	"github.com/artsince/neo4j/search"
	"github.com/artsince/neo4j/x"
)

// Relation names one relationship change in an Entity payload.
type Relation struct {
	RelType string `json:"rel_type,omitempty"`
	ToId    string `json:"to_id,omitempty"`
}

// Entity is the JSON payload for node mutations. Leave Id empty on create
// to have a unique one assigned; the reply carries it back.
type Entity struct {
	Id       string                 `json:"id,omitempty"`
	Kind     string                 `json:"kind,omitempty"`
	Data     map[string]interface{} `json:"data,omitempty"`
	Relate   []Relation             `json:"relate,omitempty"`
	Unrelate []Relation             `json:"unrelate,omitempty"`
	Delete   bool                   `json:"delete,omitempty"`
}

type Helper struct {
	ctx    *req.Context
	engine search.Engine
}

func (h *Helper) SetContext(c *req.Context) {
	h.ctx = c
}

// SetEngine sets the search engine the Search handler queries. Optional,
// without it Search replies with an error.
func (h *Helper) SetEngine(e search.Engine) {
	h.engine = e
}

// CreateOrUpdate handles POST/PUT of an Entity payload, committing all its
// mutations in one Execute. Replies E_OK with the node id.
func (h *Helper) CreateOrUpdate(w http.ResponseWriter, r *http.Request) {
	var e Entity
	if ok := x.ParseRequest(w, r, &e); !ok {
		return
	}
	if len(e.Kind) == 0 {
		x.SetStatus(w, x.E_INVALID_REQUEST, "No kind specified")
		return
	}

	n := api.NewUpdate(e.Kind, e.Id)
	for key, val := range e.Data {
		n.Set(key, val)
	}
	for _, rel := range e.Relate {
		if len(rel.RelType) == 0 || len(rel.ToId) == 0 {
			x.SetStatus(w, x.E_INVALID_REQUEST, "Relation needs rel_type and to_id")
			return
		}
		n.Relate(rel.RelType, rel.ToId)
	}
	for _, rel := range e.Unrelate {
		if len(rel.RelType) == 0 || len(rel.ToId) == 0 {
			x.SetStatus(w, x.E_INVALID_REQUEST, "Relation needs rel_type and to_id")
			return
		}
		n.Unrelate(rel.RelType, rel.ToId)
	}
	if e.Delete {
		if len(e.Id) == 0 {
			x.SetStatus(w, x.E_INVALID_REQUEST, "No id specified")
			return
		}
		n.MarkDeleted()
	}

	if err := n.Execute(h.ctx); err != nil {
		x.SetStatus(w, x.E_ERROR, err.Error())
		return
	}
	x.SetStatus(w, x.E_OK, n.Id())
}

// Read handles GET /node/{id}, replying the node's properties and
// relationships.
func (h *Helper) Read(w http.ResponseWriter, r *http.Request) {
	id, ok := x.ParseIdFromUrl(r, "/node/")
	if !ok || len(id) == 0 {
		x.SetStatus(w, x.E_INVALID_REQUEST, "No id found in url")
		return
	}

	result, err := api.NewQuery(id).Run(h.ctx)
	if err == graph.ErrNotFound {
		x.SetStatus(w, x.E_NOT_FOUND, id)
		return
	}
	if err != nil {
		x.SetStatus(w, x.E_ERROR, err.Error())
		return
	}
	result.WriteJsonResponse(w)
}

// Search handles GET /search. Query parameters:
//
//	kind=Movie                required, the document kind
//	exact=field:value         repeatable, exact match condition
//	regex=field:pattern       repeatable, regexp match condition
//	op=or                     combine conditions with OR instead of AND
//	order=-field              sort field, '-' prefix for descending
//	limit=20                  cap the number of results
//
// Values arrive as strings; exact conditions match string-valued fields.
func (h *Helper) Search(w http.ResponseWriter, r *http.Request) {
	if h.engine == nil {
		x.SetStatus(w, x.E_ERROR, "No search engine set")
		return
	}
	params := r.URL.Query()
	kind := params.Get("kind")
	if len(kind) == 0 {
		x.SetStatus(w, x.E_MISSING_REQUIRED, "No kind specified")
		return
	}

	q := h.engine.NewQuery(kind)
	exact, regex := params["exact"], params["regex"]
	if len(exact)+len(regex) > 0 {
		var filter search.FilterQuery
		if params.Get("op") == "or" {
			filter = q.NewOrFilter()
		} else {
			filter = q.NewAndFilter()
		}
		for _, cond := range exact {
			field, value, ok := splitCondition(cond)
			if !ok {
				x.SetStatus(w, x.E_INVALID_REQUEST, "Malformed exact condition: "+cond)
				return
			}
			filter.AddExact(field, value)
		}
		for _, cond := range regex {
			field, pattern, ok := splitCondition(cond)
			if !ok {
				x.SetStatus(w, x.E_INVALID_REQUEST, "Malformed regex condition: "+cond)
				return
			}
			filter.AddRegex(field, pattern)
		}
	}
	if order := params.Get("order"); len(order) > 0 {
		q.Order(order)
	}
	if limit := params.Get("limit"); len(limit) > 0 {
		num, err := parseLimit(limit)
		if err != nil {
			x.SetStatus(w, x.E_INVALID_REQUEST, "Malformed limit: "+limit)
			return
		}
		q.Limit(num)
	}

	docs, err := q.Run()
	if err != nil {
		x.SetStatus(w, x.E_ERROR, err.Error())
		return
	}
	x.Reply(w, docs)
}

func splitCondition(cond string) (field, value string, ok bool) {
	field, value, ok = strings.Cut(cond, ":")
	if !ok || len(field) == 0 || len(value) == 0 {
		return "", "", false
	}
	return field, value, true
}

func parseLimit(s string) (int, error) {
	num, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if num <= 0 {
		return 0, errors.New("limit must be positive")
	}
	return num, nil
}

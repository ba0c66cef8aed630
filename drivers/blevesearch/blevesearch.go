// Package blevesearch is a bleve-backed search engine. It runs in-process,
// so it needs no setup like ElasticSearch does, while still persisting to
// disk when given a path. With no Init arguments the index lives in memory.
//
// The index uses the keyword analyzer, so every string field is indexed as
// a single term. Exact matches compare whole values, and regexp matches run
// against whole values; bleve anchors regexp queries, so wrap the pattern
// with .* to match inside the value.
package blevesearch

import (
	"fmt"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/artsince/neo4j/search"
	"github.com/artsince/neo4j/x"
)

var log = x.Log("blevesearch")

// Bleve implements search.Engine on a bleve index. All kinds share one
// index; documents carry a kind field and queries conjoin a term match on
// it. There is no external versioning, the last write wins.
type Bleve struct {
	index bleve.Index
}

func indexMapping() *mapping.IndexMappingImpl {
	m := bleve.NewIndexMapping()
	m.DefaultAnalyzer = keyword.Name
	return m
}

// Init opens the index at args[0], creating it if missing. With no
// arguments the index is held in memory, useful for tests and examples.
func (b *Bleve) Init(args ...string) error {
	if len(args) > 1 {
		return fmt.Errorf("blevesearch: Init expects [path], got %v", args)
	}
	var err error
	if len(args) == 0 {
		b.index, err = bleve.NewMemOnly(indexMapping())
		return err
	}
	path := args[0]
	b.index, err = bleve.Open(path)
	if err == bleve.ErrorIndexPathDoesNotExist {
		b.index, err = bleve.New(path, indexMapping())
	}
	if err != nil {
		x.LogErr(log, err).WithField("path", path).Error("While opening index")
	}
	return err
}

func key(kind, id string) string { return kind + ":" + id }

func (b *Bleve) Update(doc x.Doc) error {
	body := make(map[string]interface{}, len(doc.Values)+2)
	for k, v := range doc.Values {
		body[k] = v
	}
	body["kind"] = doc.Kind
	body["nanots"] = doc.NanoTs
	return b.index.Index(key(doc.Kind, doc.Id), body)
}

func (b *Bleve) Delete(kind, id string) error {
	return b.index.Delete(key(kind, id))
}

// Close releases the index. A disk-backed index keeps background workers
// until closed.
func (b *Bleve) Close() error {
	return b.index.Close()
}

func (b *Bleve) NewQuery(kind string) search.Query {
	return &BleveQuery{b: b, kind: kind}
}

type condition struct {
	op      string
	field   string
	value   interface{}
	pattern string
}

// BleveFilter accumulates conditions; they are turned into bleve queries
// when the query runs, so unsupported value types surface as Run errors.
type BleveFilter struct {
	isAnd      bool
	conditions []condition
}

func (bf *BleveFilter) AddExact(field string, value interface{}) search.FilterQuery {
	bf.conditions = append(bf.conditions, condition{
		op: "exact", field: field, value: value})
	return bf
}

func (bf *BleveFilter) AddRegex(field string, pattern string) search.FilterQuery {
	bf.conditions = append(bf.conditions, condition{
		op: "regex", field: field, pattern: pattern})
	return bf
}

func (c condition) query() (query.Query, error) {
	if c.op == "regex" {
		q := bleve.NewRegexpQuery(c.pattern)
		q.SetField(c.field)
		return q, nil
	}
	switch val := c.value.(type) {
	case string:
		q := bleve.NewTermQuery(val)
		q.SetField(c.field)
		return q, nil
	case bool:
		q := bleve.NewBoolFieldQuery(val)
		q.SetField(c.field)
		return q, nil
	case int, int32, int64, float32, float64:
		var f float64
		switch n := val.(type) {
		case int:
			f = float64(n)
		case int32:
			f = float64(n)
		case int64:
			f = float64(n)
		case float32:
			f = float64(n)
		case float64:
			f = n
		}
		tru := true
		q := bleve.NewNumericRangeInclusiveQuery(&f, &f, &tru, &tru)
		q.SetField(c.field)
		return q, nil
	}
	return nil, fmt.Errorf("blevesearch: unsupported value type %T", c.value)
}

type BleveQuery struct {
	b      *Bleve
	kind   string
	filter *BleveFilter
	order  string
	limit  int
}

func (bq *BleveQuery) NewAndFilter() search.FilterQuery {
	bq.filter = &BleveFilter{isAnd: true}
	return bq.filter
}

func (bq *BleveQuery) NewOrFilter() search.FilterQuery {
	bq.filter = &BleveFilter{isAnd: false}
	return bq.filter
}

func (bq *BleveQuery) Order(field string) search.Query {
	bq.order = field
	return bq
}

func (bq *BleveQuery) Limit(num int) search.Query {
	bq.limit = num
	return bq
}

func (bq *BleveQuery) Run() ([]x.Doc, error) {
	kq := bleve.NewTermQuery(bq.kind)
	kq.SetField("kind")

	var full query.Query = kq
	if bq.filter != nil && len(bq.filter.conditions) > 0 {
		var conds []query.Query
		for _, c := range bq.filter.conditions {
			q, err := c.query()
			if err != nil {
				return nil, err
			}
			conds = append(conds, q)
		}
		if bq.filter.isAnd {
			full = bleve.NewConjunctionQuery(append(conds, kq)...)
		} else {
			full = bleve.NewConjunctionQuery(bleve.NewDisjunctionQuery(conds...), kq)
		}
	}

	req := bleve.NewSearchRequest(full)
	req.Fields = []string{"*"}
	if len(bq.order) > 0 {
		req.SortBy([]string{bq.order})
	}
	if bq.limit > 0 {
		req.Size = bq.limit
	} else {
		// The default request size is 10, lift it to the index size.
		count, err := bq.b.index.DocCount()
		if err != nil {
			return nil, err
		}
		req.Size = int(count)
	}

	result, err := bq.b.index.Search(req)
	if err != nil {
		x.LogErr(log, err).Error("While running query")
		return nil, err
	}

	var docs []x.Doc
	for _, hit := range result.Hits {
		doc := x.Doc{Kind: bq.kind, Values: make(map[string]interface{})}
		for field, val := range hit.Fields {
			switch field {
			case "kind":
				continue
			case "nanots":
				if ts, ok := val.(float64); ok {
					doc.NanoTs = int64(ts)
				}
				continue
			}
			doc.Values[field] = val
		}
		if id, ok := doc.Values["id"].(string); ok {
			doc.Id = id
		} else {
			doc.Id = hit.ID[len(bq.kind)+1:]
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func init() {
	log.Info("Initing blevesearch")
	search.Register("blevesearch", new(Bleve))
}

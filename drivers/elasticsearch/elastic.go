package elasticsearch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/olivere/elastic/v7"

	"github.com/artsince/neo4j/search"
	"github.com/artsince/neo4j/x"
)

var log = x.Log("elasticsearch")

// Elastic encapsulates the elastic search client, and implements methods
// declared by search.Engine. Each kind gets its own index, named by
// lowercasing the kind under a common prefix. Indices are auto-created on
// first write with dynamic mapping, which maps strings as text with a
// .keyword subfield; exact and regexp matching on strings go through the
// keyword subfield.
type Elastic struct {
	client *elastic.Client
	prefix string
}

// Init initializes the connection to the ElasticSearch instance at
// args[0]. An optional second argument overrides the index name prefix,
// which defaults to "graph-".
func (es *Elastic) Init(args ...string) error {
	if len(args) != 1 && len(args) != 2 {
		return fmt.Errorf("elasticsearch: Init expects url [, prefix], got %v", args)
	}
	url := args[0]
	es.prefix = "graph-"
	if len(args) == 2 {
		es.prefix = args[1]
	}

	log.Debug("Initializing connection to ElasticSearch")
	var opts []elastic.ClientOptionFunc
	opts = append(opts, elastic.SetURL(url))
	opts = append(opts, elastic.SetSniff(false))
	client, err := elastic.NewClient(opts...)
	if err != nil {
		x.LogErr(log, err).Error("While creating connection with ElasticSearch")
		return err
	}
	version, err := client.ElasticsearchVersion(url)
	if err != nil {
		x.LogErr(log, err).Error("Unable to query version")
		return err
	}
	log.WithField("version", version).Debug("ElasticSearch version")

	es.client = client
	log.Debug("Connected with ElasticSearch")
	return nil
}

func (es *Elastic) index(kind string) string {
	return es.prefix + strings.ToLower(kind)
}

// Update indexes the given document, using external versioning via the
// timestamp of the document, so an older regeneration can never overwrite
// a newer one.
func (es *Elastic) Update(doc x.Doc) error {
	if doc.Id == "" || doc.Kind == "" || doc.NanoTs == 0 {
		return errors.New("Invalid document")
	}

	body := make(map[string]interface{}, len(doc.Values)+2)
	for k, v := range doc.Values {
		body[k] = v
	}
	body["kind"] = doc.Kind
	body["nanots"] = doc.NanoTs

	result, err := es.client.Index().Index(es.index(doc.Kind)).Id(doc.Id).
		VersionType("external").Version(doc.NanoTs).BodyJson(body).
		Do(context.Background())
	if err != nil {
		x.LogErr(log, err).WithField("doc", doc).Error("While indexing doc")
		return err
	}
	log.Debug("index_result", result)
	return nil
}

// Delete drops the document. A missing document is not an error.
func (es *Elastic) Delete(kind, id string) error {
	_, err := es.client.Delete().Index(es.index(kind)).Id(id).
		Do(context.Background())
	if elastic.IsNotFound(err) {
		return nil
	}
	if err != nil {
		x.LogErr(log, err).WithField("id", id).Error("While deleting doc")
		return err
	}
	return nil
}

// NewQuery creates a new query object, to return results of type kind.
func (es *Elastic) NewQuery(kind string) search.Query {
	eq := new(ElasticQuery)
	eq.kind = kind
	eq.ss = es.client.Search(es.index(kind))
	return eq
}

// ElasticQuery implements methods declared by search.Query.
type ElasticQuery struct {
	kind   string
	ss     *elastic.SearchService
	filter *ElasticFilter
}

// ElasticFilter accumulates conditions into a bool query.
type ElasticFilter struct {
	bq    *elastic.BoolQuery
	isAnd bool
}

func (eq *ElasticQuery) NewAndFilter() search.FilterQuery {
	eq.filter = &ElasticFilter{bq: elastic.NewBoolQuery(), isAnd: true}
	return eq.filter
}

func (eq *ElasticQuery) NewOrFilter() search.FilterQuery {
	eq.filter = &ElasticFilter{bq: elastic.NewBoolQuery().MinimumNumberShouldMatch(1)}
	return eq.filter
}

func (ef *ElasticFilter) add(q elastic.Query) {
	if ef.isAnd {
		ef.bq = ef.bq.Must(q)
	} else {
		ef.bq = ef.bq.Should(q)
	}
}

// AddExact uses the 'term' directive. String values are matched via the
// .keyword subfield, the analyzed text field wouldn't return exact match
// results.
func (ef *ElasticFilter) AddExact(field string, value interface{}) search.FilterQuery {
	if _, isStr := value.(string); isStr {
		field += ".keyword"
	}
	ef.add(elastic.NewTermQuery(field, value))
	return ef
}

// AddRegex uses the 'regexp' directive against the .keyword subfield.
// ElasticSearch anchors regexp queries, so wrap the pattern with .* to
// match inside the value.
func (ef *ElasticFilter) AddRegex(field string, pattern string) search.FilterQuery {
	ef.add(elastic.NewRegexpQuery(field+".keyword", pattern))
	return ef
}

// Order sorts the results for the given field. Sorting by a string field
// needs the .keyword suffix passed in by the caller, text fields aren't
// sortable.
func (eq *ElasticQuery) Order(field string) search.Query {
	if field[:1] == "-" {
		eq.ss = eq.ss.Sort(field[1:], false)
	} else {
		eq.ss = eq.ss.Sort(field, true)
	}
	return eq
}

// Limit limits the number of results to num.
func (eq *ElasticQuery) Limit(num int) search.Query {
	eq.ss = eq.ss.Size(num)
	return eq
}

// Run runs the query and returns results and error, if any.
func (eq *ElasticQuery) Run() (docs []x.Doc, rerr error) {
	if eq.filter != nil {
		eq.ss = eq.ss.Query(eq.filter.bq)
	} else {
		eq.ss = eq.ss.Query(elastic.NewMatchAllQuery())
	}
	result, err := eq.ss.Do(context.Background())
	if err != nil {
		x.LogErr(log, err).Error("While running query")
		return docs, err
	}
	if result.Hits == nil {
		log.Debug("No results found")
		return docs, nil
	}

	for _, hit := range result.Hits.Hits {
		var src map[string]interface{}
		if err := json.Unmarshal(hit.Source, &src); err != nil {
			x.LogErr(log, err).WithField("id", hit.Id).Error("While parsing source")
			return docs, err
		}
		doc := x.Doc{Kind: eq.kind, Id: hit.Id}
		if ts, ok := src["nanots"].(float64); ok {
			doc.NanoTs = int64(ts)
		}
		delete(src, "kind")
		delete(src, "nanots")
		doc.Values = src
		docs = append(docs, doc)
	}
	return docs, nil
}

func init() {
	log.Info("Initing elasticsearch")
	search.Register("elasticsearch", new(Elastic))
}

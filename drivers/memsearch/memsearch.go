// Package memsearch is an in-memory search engine, meant for running tests
// and examples without any setup. Not for production use.
package memsearch

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/artsince/neo4j/search"
	"github.com/artsince/neo4j/x"
)

var log = x.Log("memsearch")

type MemSearch struct {
	mutex sync.RWMutex
	docs  map[string]x.Doc
}

func (ms *MemSearch) Init(args ...string) error {
	ms.mutex.Lock()
	defer ms.mutex.Unlock()
	ms.docs = make(map[string]x.Doc)
	return nil
}

func (ms *MemSearch) All() []x.Doc {
	ms.mutex.RLock()
	defer ms.mutex.RUnlock()
	var dup []x.Doc
	for _, doc := range ms.docs {
		dup = append(dup, doc)
	}
	return dup
}

func (ms *MemSearch) Update(doc x.Doc) error {
	ms.mutex.Lock()
	defer ms.mutex.Unlock()
	key := doc.Kind + ":" + doc.Id
	if pdoc, present := ms.docs[key]; present {
		if pdoc.NanoTs >= doc.NanoTs {
			return errors.New("version conflict")
		}
	}
	ms.docs[key] = doc
	return nil
}

func (ms *MemSearch) Delete(kind, id string) error {
	ms.mutex.Lock()
	defer ms.mutex.Unlock()
	delete(ms.docs, kind+":"+id)
	return nil
}

func (ms *MemSearch) NewQuery(kind string) search.Query {
	ms.mutex.RLock()
	defer ms.mutex.RUnlock()
	mq := new(MemQuery)
	for _, doc := range ms.docs {
		if doc.Kind != kind {
			continue
		}
		mq.Docs = append(mq.Docs, doc)
	}
	// Map order is random; sort the snapshot so runs are deterministic.
	sort.Slice(mq.Docs, func(i, j int) bool {
		return mq.Docs[i].Id < mq.Docs[j].Id
	})
	return mq
}

type condition struct {
	op      string
	field   string
	value   interface{}
	pattern string
}

type MemFilter struct {
	isAnd      bool
	conditions []condition
}

func (mf *MemFilter) AddExact(field string, value interface{}) search.FilterQuery {
	mf.conditions = append(mf.conditions, condition{
		op: "exact", field: field, value: value})
	return mf
}

func (mf *MemFilter) AddRegex(field string, pattern string) search.FilterQuery {
	mf.conditions = append(mf.conditions, condition{
		op: "regex", field: field, pattern: pattern})
	return mf
}

func (c condition) matches(doc x.Doc) (bool, error) {
	val, present := doc.Values[c.field]
	if !present {
		return false, nil
	}
	switch c.op {
	case "exact":
		match := reflect.DeepEqual(val, c.value)
		if match {
			log.WithFields(logrus.Fields{
				"field": c.field,
				"doc":   doc.Id,
				"value": c.value,
			}).Debug("Matches")
		}
		return match, nil
	case "regex":
		re, err := regexp.Compile(c.pattern)
		if err != nil {
			return false, err
		}
		return re.MatchString(fmt.Sprintf("%v", val)), nil
	}
	return false, fmt.Errorf("memsearch: unknown condition %q", c.op)
}

func (mf *MemFilter) matches(doc x.Doc) (bool, error) {
	for _, c := range mf.conditions {
		match, err := c.matches(doc)
		if err != nil {
			return false, err
		}
		if mf.isAnd && !match {
			return false, nil
		}
		if !mf.isAnd && match {
			return true, nil
		}
	}
	// All conditions held for AND, none did for OR. An empty filter
	// matches everything either way.
	return mf.isAnd || len(mf.conditions) == 0, nil
}

type MemQuery struct {
	Docs   []x.Doc
	filter *MemFilter
	order  string
	limit  int
}

func (mq *MemQuery) NewAndFilter() search.FilterQuery {
	mq.filter = &MemFilter{isAnd: true}
	return mq.filter
}

func (mq *MemQuery) NewOrFilter() search.FilterQuery {
	mq.filter = &MemFilter{isAnd: false}
	return mq.filter
}

func (mq *MemQuery) Order(field string) search.Query {
	mq.order = field
	return mq
}

func (mq *MemQuery) Limit(num int) search.Query {
	mq.limit = num
	return mq
}

type Docs struct {
	data  []x.Doc
	field string
}

func (d Docs) Len() int      { return len(d.data) }
func (d Docs) Swap(i, j int) { d.data[i], d.data[j] = d.data[j], d.data[i] }
func (d Docs) Get(i int) (val interface{}) {
	vi, pi := d.data[i].Values[d.field]
	if !pi {
		log.WithFields(logrus.Fields{
			"field":  d.field,
			"values": d.data[i].Values,
		}).Fatal("Field not found for sorting")
		return nil
	}
	return vi
}
func (d Docs) Less(i, j int) bool {
	vi := d.Get(i)
	vj := d.Get(j)
	if reflect.TypeOf(vi) != reflect.TypeOf(vj) {
		log.WithFields(logrus.Fields{
			"vi":    vi,
			"vj":    vj,
			"field": d.field,
		}).Fatal("Different types")
		return false
	}
	switch t := vi.(type) {
	case string:
		return vi.(string) < vj.(string)
	case int:
		return vi.(int) < vj.(int)
	case int64:
		return vi.(int64) < vj.(int64)
	case float64:
		return vi.(float64) < vj.(float64)
	default:
		log.WithFields(logrus.Fields{
			"vi":         vi,
			"vj":         vj,
			"field":      d.field,
			"type_found": fmt.Sprintf("%T", t),
		}).Fatal("Invalid type")
	}

	return false
}

func (mq *MemQuery) Run() ([]x.Doc, error) {
	docs := mq.Docs
	if mq.filter != nil {
		filtered := docs[:0]
		for _, doc := range docs {
			match, err := mq.filter.matches(doc)
			if err != nil {
				return nil, err
			}
			if match {
				filtered = append(filtered, doc)
			}
		}
		docs = filtered
	}

	if len(mq.order) > 0 {
		field := mq.order
		reverse := false
		if strings.HasPrefix(field, "-") {
			reverse = true
			field = field[1:]
		}
		eligible := docs[:0]
		for _, doc := range docs {
			if _, pi := doc.Values[field]; pi {
				eligible = append(eligible, doc)
			}
		}
		docs = eligible

		sorted := Docs{data: docs, field: field}
		if reverse {
			sort.Sort(sort.Reverse(sorted))
		} else {
			sort.Sort(sorted)
		}
	}

	if mq.limit > 0 && len(docs) > mq.limit {
		docs = docs[:mq.limit]
	}
	return docs, nil
}

func init() {
	log.Info("Initing memsearch")
	search.Register("memsearch", new(MemSearch))
}

// Package search provides an interface for search engine operations, to
// allow for easy extensibility to support various engines.
package search

import (
	"sync"

	"github.com/artsince/neo4j/x"
)

var log = x.Log("search")

// All the search operations are run via this Engine interface.
// Implement this interface to add support for a search engine.
// Engines store and retrieve x.Doc documents, keyed by kind and id.
type Engine interface {
	// Init is used to initialize the search engine driver.
	Init(args ...string) error

	// Update would store the given doc, replacing any previous version of
	// it. Engines which support external versioning should use doc.NanoTs
	// for it, and reject older documents.
	Update(doc x.Doc) error

	// Delete drops the document stored under kind and id. Deleting a
	// document which isn't there is not an error.
	Delete(kind, id string) error

	// NewQuery creates a query object, to return results of type kind.
	NewQuery(kind string) Query
}

// Query retrieves documents, optionally narrowed by a filter and sorted.
type Query interface {
	// NewAndFilter returns a filter where every condition must match.
	NewAndFilter() FilterQuery

	// NewOrFilter returns a filter where at least one condition must match.
	NewOrFilter() FilterQuery

	// Order sorts the results by the given field. Prefix the field with
	// '-' to reverse the order.
	Order(field string) Query

	// Limit limits the number of results to num.
	Limit(num int) Query

	// Run runs the query and returns results and error, if any.
	Run() ([]x.Doc, error)
}

// FilterQuery accumulates conditions for the query it was created from.
type FilterQuery interface {
	// AddExact matches docs where the field holds exactly this value.
	AddExact(field string, value interface{}) FilterQuery

	// AddRegex matches docs where the field matches the pattern.
	AddRegex(field string, pattern string) FilterQuery
}

var (
	enginesMutex sync.RWMutex
	engines      = make(map[string]Engine)
)

// Register makes an engine driver available by name, typically from the
// driver's init function via a blank import.
func Register(name string, e Engine) {
	enginesMutex.Lock()
	defer enginesMutex.Unlock()
	if e == nil {
		log.WithField("driver", name).Fatal("Nil engine")
		return
	}
	if _, dup := engines[name]; dup {
		log.WithField("driver", name).Fatal("Register called twice for driver")
		return
	}
	log.WithField("driver", name).Debug("Registering search driver")
	engines[name] = e
}

// Get returns the engine driver registered under name.
func Get(name string) Engine {
	enginesMutex.RLock()
	defer enginesMutex.RUnlock()
	e, present := engines[name]
	if !present {
		log.WithField("driver", name).Fatal("No search driver registered under name")
		return nil
	}
	return e
}

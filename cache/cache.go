// Package cache stores document fingerprints, so documents which did not
// change since their last regeneration are not resubmitted to the search
// engine. Implement Cache to back it with memory, Redis, or anything else.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/artsince/neo4j/x"
)

var log = x.Log("cache")

// Cache maps document keys to fingerprints. Implementations must be safe
// for concurrent use.
type Cache interface {
	Get(key string) (string, bool)
	Set(key, value string)
	Remove(key string)
}

// Key returns the cache key for a document.
func Key(doc x.Doc) string {
	return doc.Kind + ":" + doc.Id
}

// Fingerprint returns a stable content hash over the document's kind, id
// and values. Timestamps are left out, so two regenerations of unchanged
// data fingerprint the same.
func Fingerprint(doc x.Doc) string {
	keys := make([]string, 0, len(doc.Values))
	for k := range doc.Values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := sha256.New()
	h.Write([]byte(doc.Kind))
	h.Write([]byte{0})
	h.Write([]byte(doc.Id))
	for _, k := range keys {
		h.Write([]byte{0})
		h.Write([]byte(k))
		h.Write([]byte{'='})
		if b, err := json.Marshal(doc.Values[k]); err == nil {
			h.Write(b)
		} else {
			fmt.Fprintf(h, "%v", doc.Values[k])
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

// LRU is a fixed-size in-memory cache. Suitable whenever one process owns
// the index writes.
type LRU struct {
	c *lru.Cache[string, string]
}

// NewLRU returns an in-memory cache keeping up to size fingerprints.
func NewLRU(size int) (*LRU, error) {
	c, err := lru.New[string, string](size)
	if err != nil {
		return nil, err
	}
	return &LRU{c: c}, nil
}

func (l *LRU) Get(key string) (string, bool) {
	return l.c.Get(key)
}

func (l *LRU) Set(key, value string) {
	l.c.Add(key, value)
}

func (l *LRU) Remove(key string) {
	l.c.Remove(key)
}

// Len returns the number of cached fingerprints.
func (l *LRU) Len() int {
	return l.c.Len()
}

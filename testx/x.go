// Package testx holds fixtures shared by the search engine and graph
// store tests, so every driver is checked against the same expectations.
package testx

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/artsince/neo4j/graph"
	"github.com/artsince/neo4j/search"
	"github.com/artsince/neo4j/x"
)

var movies = [...]string{
	"the matrix", "john wick", "speed",
	"heat", "the replacements", "point break",
	"the devil's advocate", "the lake house", "47 ronin",
}

func AddDocs(e search.Engine, t *testing.T) {
	for idx, name := range movies {
		var d x.Doc
		d.Id = x.UniqueString(5)
		d.Kind = "Movie"
		d.NanoTs = time.Now().UnixNano()
		m := make(map[string]interface{})
		m["name"] = name
		m["pos"] = idx
		d.Values = m

		if err := e.Update(d); err != nil {
			t.Fatalf("While updating: %v", err)
			return
		}
	}
}

func RunAndFilter(e search.Engine, t *testing.T) {
	q := e.NewQuery("Movie")
	q.NewAndFilter().AddExact("name", "speed").AddRegex("name", ".*ee.*")
	docs, err := q.Run()
	if err != nil {
		t.Fatalf("While running query: %v", err)
		return
	}
	if len(docs) != 1 {
		t.Errorf("Number of docs should be 1. Found: %v\n", len(docs))
	} else {
		val, found := docs[0].Values["name"]
		if !found {
			t.Error("Should find name")
		} else {
			if val.(string) != "speed" {
				t.Errorf("Expected speed. Found: %v\n", val.(string))
			}
		}
	}
}

var soln = [...]string{
	"47 ronin",
	"the lake house",
	"the devil's advocate",
	"the replacements",
	"john wick",
	"the matrix",
}

func RunOrFilter(e search.Engine, t *testing.T) {
	q := e.NewQuery("Movie").Order("-pos")
	q.NewOrFilter().AddRegex("name", ".*the.*").
		AddRegex("name", ".*wick.*").AddExact("name", "47 ronin")
	docs, err := q.Run()
	if err != nil {
		t.Fatalf("While running query: %v", err)
		return
	}
	if len(docs) != len(soln) {
		t.Errorf("Number of docs should be %v. Found: %v\n", len(soln), len(docs))
	} else {
		for idx, doc := range docs {
			val, found := doc.Values["name"]
			if !found {
				t.Error("Should find name")
			} else {
				if val.(string) != soln[idx] {
					t.Errorf("Expected: %v. Found: %v\n", soln[idx], val.(string))
				}
			}
		}
	}
}

// CheckGraphStore runs a store driver through the whole Store contract.
// Node ids carry a random prefix, so it can run against a store holding
// data from earlier runs.
func CheckGraphStore(t *testing.T, s graph.Store) {
	p := x.UniqueString(6) + "_"
	alice, bob, carol := p+"alice", p+"bob", p+"carol"
	movie := p + "speed"

	require.True(t, s.IsNew(alice))
	an, err := s.PutNode("Person", alice)
	require.NoError(t, err)
	require.Equal(t, alice, an.Id())
	require.Equal(t, "Person", an.Kind())
	require.False(t, an.Deleted())
	require.False(t, s.IsNew(alice))

	_, err = s.PutNode("Person", bob)
	require.NoError(t, err)
	cn, err := s.PutNode("Person", carol)
	require.NoError(t, err)
	mn, err := s.PutNode("Movie", movie)
	require.NoError(t, err)

	// Properties: set, read back, absent is nil without error.
	require.NoError(t, s.SetProperty(alice, "name", "alice"))
	require.NoError(t, s.SetProperty(alice, "city", "rome"))
	val, err := an.Property("name")
	require.NoError(t, err)
	require.Equal(t, "alice", val)
	val, err = an.Property("never_set")
	require.NoError(t, err)
	require.Nil(t, val)

	props, err := s.Properties(alice)
	require.NoError(t, err)
	require.Equal(t, "alice", props["name"])
	require.Equal(t, "rome", props["city"])

	// Relationships: both directions, traversal order, parallel edges.
	require.NoError(t, s.Relate("ACTED_IN", alice, movie))
	require.NoError(t, s.Relate("ACTED_IN", bob, movie))
	require.NoError(t, s.Relate("FRIEND", alice, bob))
	require.NoError(t, s.Relate("FRIEND", alice, bob))

	cast, err := mn.Related("ACTED_IN", graph.Incoming)
	require.NoError(t, err)
	require.Len(t, cast, 2)
	require.Equal(t, alice, cast[0].Id())
	require.Equal(t, bob, cast[1].Id())

	acted, err := an.Related("ACTED_IN", graph.Outgoing)
	require.NoError(t, err)
	require.Len(t, acted, 1)
	require.Equal(t, movie, acted[0].Id())

	both, err := mn.Related("ACTED_IN", graph.Both)
	require.NoError(t, err)
	require.Len(t, both, 2)

	friends, err := an.Related("FRIEND", graph.Outgoing)
	require.NoError(t, err)
	require.Len(t, friends, 2, "parallel relationships are kept")

	require.NoError(t, s.Unrelate("FRIEND", alice, bob))
	friends, err = an.Related("FRIEND", graph.Outgoing)
	require.NoError(t, err)
	require.Len(t, friends, 1, "unrelate drops one parallel relationship")

	rels, err := s.Relations(movie)
	require.NoError(t, err)
	require.Len(t, rels, 2)
	require.Equal(t, "ACTED_IN", rels[0].RelType)
	require.Equal(t, alice, rels[0].FromId)
	require.Equal(t, bob, rels[1].FromId)

	// Deletion leaves a tombstone.
	require.NoError(t, s.DeleteNode(carol))
	require.True(t, cn.Deleted())
	require.Equal(t, "Person", cn.Kind())
	cn2, err := s.Node(carol)
	require.NoError(t, err)
	require.True(t, cn2.Deleted())
	require.False(t, s.IsNew(carol))

	_, err = s.Node(p + "missing")
	require.Equal(t, graph.ErrNotFound, err)

	// Iterate covers live nodes only, resumable via the last scanned id.
	// The scan is drained concurrently; a store carrying nodes from earlier
	// runs can overflow any buffer.
	ch := make(chan x.Entity, 1000)
	seen := make(map[string]bool)
	done := make(chan struct{})
	go func() {
		for ent := range ch {
			seen[ent.Id] = true
		}
		close(done)
	}()
	from := ""
	for {
		num, last, err := s.Iterate(from, 100, ch)
		require.NoError(t, err)
		if num == 0 {
			break
		}
		from = last.Id
	}
	close(ch)
	<-done
	require.True(t, seen[alice])
	require.True(t, seen[bob])
	require.True(t, seen[movie])
	require.False(t, seen[carol], "deleted nodes stay out of the scan")
}

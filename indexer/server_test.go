package indexer

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/artsince/neo4j/cache"
	"github.com/artsince/neo4j/graph"
	"github.com/artsince/neo4j/metrics"
	"github.com/artsince/neo4j/x"
)

func putPerson(t *testing.T, s graph.Store, id, name string) graph.Node {
	_, err := s.PutNode("Person", id)
	require.NoError(t, err)
	require.NoError(t, s.SetProperty(id, "name", name))
	n, err := s.Node(id)
	require.NoError(t, err)
	return n
}

func TestServerDrainsQueue(t *testing.T) {
	s := testStore(t)
	putPerson(t, s, "alice", "alice")
	putPerson(t, s, "bob", "bob")
	putPerson(t, s, "carol", "carol")
	require.NoError(t, s.DeleteNode("carol"))

	eng := &recordingEngine{}
	in := New("Person", eng)
	in.AddPropertyIndex("name")
	reg := NewRegistry()
	require.NoError(t, reg.Register("Person", in))

	stats := metrics.NewWith(prometheus.NewRegistry())
	srv := NewServer(reg, s, 100, 2).WithMetrics(stats)
	srv.AddToQueue(x.Entity{Kind: "Person", Id: "alice"})
	srv.AddToQueue(x.Entity{Kind: "Person", Id: "bob"})
	srv.AddToQueue(x.Entity{Kind: "Person", Id: "carol"})   // deleted, skipped
	srv.AddToQueue(x.Entity{Kind: "Person", Id: "nobody"})  // gone, skipped
	srv.AddToQueue(x.Entity{Kind: "Genre", Id: "thriller"}) // no indexer, skipped
	srv.Finish()

	require.Len(t, eng.Updates(), 2)
	doc, found := eng.docFor("alice")
	require.True(t, found)
	require.Equal(t, "alice", doc.Values["name"])
	_, found = eng.docFor("carol")
	require.False(t, found)
	require.Equal(t, 2.0, testutil.ToFloat64(stats.DocsIndexedTotal))
	require.Equal(t, 0.0, testutil.ToFloat64(stats.IndexErrorsTotal))
}

func TestServerHooksQueueImpacted(t *testing.T) {
	s := testStore(t)
	putPerson(t, s, "alice", "alice")
	putPerson(t, s, "bob", "bob")
	require.NoError(t, s.Relate("FRIEND", "alice", "bob"))

	eng := &recordingEngine{}
	in := New("Person", eng)
	in.AddPropertyIndex("name")
	require.NoError(t, in.AddRelationIndex("friend", "FRIEND", "name"))
	reg := NewRegistry()
	require.NoError(t, reg.Register("Person", in))

	srv := NewServer(reg, s, 100, 2)

	require.NoError(t, s.SetProperty("alice", "name", "neo"))
	alice, err := s.Node("alice")
	require.NoError(t, err)
	require.NoError(t, srv.PropertyChanged(alice, "name"))

	// Untracked properties and unregistered kinds queue nothing.
	require.NoError(t, srv.PropertyChanged(alice, "shoe_size"))
	_, err = s.PutNode("Genre", "scifi")
	require.NoError(t, err)
	scifi, err := s.Node("scifi")
	require.NoError(t, err)
	require.NoError(t, srv.PropertyChanged(scifi, "name"))
	require.NoError(t, srv.RelationChanged(scifi, "HAS"))

	srv.Finish()

	require.Len(t, eng.Updates(), 2)
	bobDoc, found := eng.docFor("bob")
	require.True(t, found)
	require.Equal(t, []interface{}{"neo"}, bobDoc.Values["friend.name"])
	aliceDoc, found := eng.docFor("alice")
	require.True(t, found)
	require.Equal(t, "neo", aliceDoc.Values["name"])
}

func TestServerNodeDeletedInline(t *testing.T) {
	s := testStore(t)
	putPerson(t, s, "alice", "alice")

	eng := &recordingEngine{}
	in := New("Person", eng)
	in.AddPropertyIndex("name")
	reg := NewRegistry()
	require.NoError(t, reg.Register("Person", in))

	lru, err := cache.NewLRU(10)
	require.NoError(t, err)
	lru.Set("Person:alice", "fingerprint")

	srv := NewServer(reg, s, 100, 1).WithCache(lru)

	require.NoError(t, s.DeleteNode("alice"))
	alice, err := s.Node("alice")
	require.NoError(t, err)
	require.NoError(t, srv.NodeDeleted(alice))

	// Applied before Finish: deletes do not wait behind the queue.
	require.Equal(t, []string{"Person/alice"}, eng.Deletes())
	_, found := lru.Get("Person:alice")
	require.False(t, found)

	srv.Finish()
	require.Empty(t, eng.Updates())
}

func TestServerSkipsUnchangedDocs(t *testing.T) {
	s := testStore(t)
	putPerson(t, s, "alice", "alice")

	lru, err := cache.NewLRU(10)
	require.NoError(t, err)

	eng := &recordingEngine{}
	in := New("Person", eng)
	in.AddPropertyIndex("name")
	reg := NewRegistry()
	require.NoError(t, reg.Register("Person", in))

	// One worker, so the second queue entry sees the first one's fingerprint.
	srv := NewServer(reg, s, 100, 1).WithCache(lru)
	srv.AddToQueue(x.Entity{Kind: "Person", Id: "alice"})
	srv.AddToQueue(x.Entity{Kind: "Person", Id: "alice"})
	srv.Finish()
	require.Len(t, eng.Updates(), 1)

	// A real change fingerprints differently and goes through.
	require.NoError(t, s.SetProperty("alice", "name", "neo"))
	eng2 := &recordingEngine{}
	in2 := New("Person", eng2)
	in2.AddPropertyIndex("name")
	reg2 := NewRegistry()
	require.NoError(t, reg2.Register("Person", in2))

	srv2 := NewServer(reg2, s, 100, 1).WithCache(lru)
	srv2.AddToQueue(x.Entity{Kind: "Person", Id: "alice"})
	srv2.Finish()
	require.Len(t, eng2.Updates(), 1)
	require.Equal(t, "neo", eng2.Updates()[0].Values["name"])
}

func TestServerLoopOnce(t *testing.T) {
	s := testStore(t)
	putPerson(t, s, "alice", "alice")
	putPerson(t, s, "bob", "bob")
	putPerson(t, s, "carol", "carol")
	require.NoError(t, s.DeleteNode("carol"))
	_, err := s.PutNode("Genre", "scifi")
	require.NoError(t, err)

	eng := &recordingEngine{}
	in := New("Person", eng)
	in.AddPropertyIndex("name")
	reg := NewRegistry()
	require.NoError(t, reg.Register("Person", in))

	srv := NewServer(reg, s, 100, 2)
	srv.LoopOnce()
	srv.Finish()

	require.Len(t, eng.Updates(), 2)
	for _, id := range []string{"alice", "bob"} {
		doc, found := eng.docFor(id)
		require.True(t, found)
		require.Equal(t, id, doc.Values["name"])
	}
}

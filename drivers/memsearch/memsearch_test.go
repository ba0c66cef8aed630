package memsearch

import (
	"testing"

	"github.com/artsince/neo4j/testx"
)

func initialize(t *testing.T) *MemSearch {
	ms := new(MemSearch)
	if err := ms.Init(); err != nil {
		t.Fatalf("While initing: %v", err)
	}
	testx.AddDocs(ms, t)
	return ms
}

func TestNewAndFilter(t *testing.T) {
	ms := initialize(t)
	testx.RunAndFilter(ms, t)
}

func TestNewOrFilter(t *testing.T) {
	ms := initialize(t)
	testx.RunOrFilter(ms, t)
}

func TestDelete(t *testing.T) {
	ms := initialize(t)
	docs := ms.All()
	if len(docs) == 0 {
		t.Fatal("Expected docs")
	}
	victim := docs[0]
	if err := ms.Delete(victim.Kind, victim.Id); err != nil {
		t.Errorf("While deleting: %v", err)
	}
	if got := len(ms.All()); got != len(docs)-1 {
		t.Errorf("Expected %d docs. Found: %d", len(docs)-1, got)
	}
	// Deleting a doc which isn't there is not an error.
	if err := ms.Delete(victim.Kind, victim.Id); err != nil {
		t.Errorf("While deleting absent doc: %v", err)
	}
}

package elasticsearch

import (
	"context"
	"os"
	"testing"

	"github.com/artsince/neo4j/testx"
	"github.com/artsince/neo4j/x"
)

func initialize(t *testing.T) *Elastic {
	addr := os.Getenv("ELASTICSEARCH_PORT_9200_TCP_ADDR")
	if len(addr) == 0 {
		t.Skip("Elastic Search environment vars not set")
		return nil
	}

	es := new(Elastic)
	// A fresh prefix per run keeps leftovers from earlier runs out of
	// the result counts.
	prefix := "graphtest-" + x.UniqueString(6) + "-"
	if err := es.Init("http://"+addr, prefix); err != nil {
		t.Fatalf("While initing: %v", err)
	}
	testx.AddDocs(es, t)
	// Docs aren't searchable until the indices refresh.
	if _, err := es.client.Refresh().Do(context.Background()); err != nil {
		t.Fatalf("While refreshing: %v", err)
	}
	return es
}

func TestNewAndFilter(t *testing.T) {
	es := initialize(t)
	testx.RunAndFilter(es, t)
}

func TestNewOrFilter(t *testing.T) {
	es := initialize(t)
	testx.RunOrFilter(es, t)
}

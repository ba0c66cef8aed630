package sqlgraph

import (
	"os"
	"testing"

	"github.com/artsince/neo4j/testx"
)

func TestSqlGraphStore(t *testing.T) {
	conn := os.Getenv("POSTGRES_CONNECTION")
	if len(conn) == 0 {
		t.Skip("Postgres environment vars not set")
		return
	}

	sg := new(SqlGraph)
	if err := sg.Init(conn); err != nil {
		t.Fatalf("While initing: %v", err)
	}
	testx.CheckGraphStore(t, sg)
}

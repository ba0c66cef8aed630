package api

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	_ "github.com/artsince/neo4j/drivers/memgraph"
	"github.com/artsince/neo4j/graph"
	"github.com/artsince/neo4j/req"
)

// recordingHooks captures notifications in call order, one string per call,
// and can be told to fail a specific one.
type recordingHooks struct {
	calls    []string
	failCall string
}

func (rh *recordingHooks) PropertyChanged(n graph.Node, property string) error {
	call := "property/" + n.Id() + "/" + property
	if call == rh.failCall {
		return errors.New("hook failed")
	}
	rh.calls = append(rh.calls, call)
	return nil
}

func (rh *recordingHooks) RelationChanged(n graph.Node, relType string) error {
	rh.calls = append(rh.calls, "relation/"+n.Id()+"/"+relType)
	return nil
}

func (rh *recordingHooks) NodeDeleted(n graph.Node) error {
	rh.calls = append(rh.calls, "delete/"+n.Kind()+"/"+n.Id())
	return nil
}

func testContext(t *testing.T) (*req.Context, *recordingHooks) {
	s := graph.Get("memgraph")
	require.NoError(t, s.Init())
	rh := &recordingHooks{}
	c := req.NewContext(10)
	c.Store = s
	c.Hooks = rh
	return c, rh
}

func TestExecuteValidations(t *testing.T) {
	c, _ := testContext(t)

	err := NewUpdate("Person", "alice").Execute(c)
	require.Error(t, err, "an update without mutations is refused")

	err = NewUpdate("Person", "alice").Set("name", "alice").Execute(req.NewContext(0))
	require.Error(t, err)

	broken := req.NewContext(10)
	err = NewUpdate("Person", "alice").Set("name", "alice").Execute(broken)
	require.Error(t, err, "a context without a store is refused")

	require.NoError(t, NewUpdate("Person", "alice").Set("name", "alice").Execute(c))
}

func TestExecuteCommitsThenNotifies(t *testing.T) {
	c, rh := testContext(t)

	// observingHooks reads the store the moment it is notified, proving
	// the mutations were committed first.
	seen := make(map[string]interface{})
	c.Hooks = hookFunc(func(n graph.Node, property string) error {
		val, err := n.Property(property)
		if err != nil {
			return err
		}
		seen[property] = val
		return nil
	})

	err := NewUpdate("Person", "alice").
		Set("name", "alice").
		Set("city", "rome").
		Execute(c)
	require.NoError(t, err)
	require.Equal(t, "alice", seen["name"])
	require.Equal(t, "rome", seen["city"])

	// Back to the recorder: one notification per property, in Set order,
	// setting the same property twice notifies once.
	c.Hooks = rh
	err = NewUpdate("Person", "alice").
		Set("city", "paris").
		Set("name", "neo").
		Set("city", "london").
		Execute(c)
	require.NoError(t, err)
	require.Equal(t, []string{
		"property/alice/city",
		"property/alice/name",
	}, rh.calls)

	val, err := c.Store.Properties("alice")
	require.NoError(t, err)
	require.Equal(t, "london", val["city"], "the last Set wins")
}

// hookFunc adapts a function to graph.Hooks for property notifications.
type hookFunc func(n graph.Node, property string) error

func (f hookFunc) PropertyChanged(n graph.Node, property string) error { return f(n, property) }
func (f hookFunc) RelationChanged(n graph.Node, relType string) error  { return nil }
func (f hookFunc) NodeDeleted(n graph.Node) error                      { return nil }

func TestExecuteAssignsId(t *testing.T) {
	c, _ := testContext(t)
	c.NumCharsUnique = 12

	up := NewUpdate("Person", "").Set("name", "nobody")
	require.Empty(t, up.Id())
	require.NoError(t, up.Execute(c))
	require.Len(t, up.Id(), 12)
	require.False(t, c.Store.IsNew(up.Id()))
}

func TestExecuteRelationNotifiesBothEndpoints(t *testing.T) {
	c, rh := testContext(t)
	require.NoError(t, NewUpdate("Person", "alice").Set("name", "alice").Execute(c))
	require.NoError(t, NewUpdate("Person", "bob").Set("name", "bob").Execute(c))
	rh.calls = nil

	// Two parallel FRIEND relationships plus one KNOWS: each endpoint is
	// notified once per relationship type, not once per relationship.
	err := NewUpdate("Person", "alice").
		Relate("FRIEND", "bob").
		Relate("FRIEND", "bob").
		Relate("KNOWS", "bob").
		Execute(c)
	require.NoError(t, err)
	require.Equal(t, []string{
		"relation/alice/FRIEND",
		"relation/bob/FRIEND",
		"relation/alice/KNOWS",
		"relation/bob/KNOWS",
	}, rh.calls)

	alice, err := c.Store.Node("alice")
	require.NoError(t, err)
	friends, err := alice.Related("FRIEND", graph.Outgoing)
	require.NoError(t, err)
	require.Len(t, friends, 2, "both parallel relationships are stored")

	// Unrelate notifies the same way.
	rh.calls = nil
	require.NoError(t, NewUpdate("Person", "alice").Unrelate("FRIEND", "bob").Execute(c))
	require.Equal(t, []string{
		"relation/alice/FRIEND",
		"relation/bob/FRIEND",
	}, rh.calls)
	friends, err = alice.Related("FRIEND", graph.Outgoing)
	require.NoError(t, err)
	require.Len(t, friends, 1)
}

func TestExecuteDelete(t *testing.T) {
	c, rh := testContext(t)
	require.NoError(t, NewUpdate("Person", "alice").Set("name", "alice").Execute(c))
	require.NoError(t, NewUpdate("Person", "bob").Set("name", "bob").Execute(c))
	require.NoError(t, NewUpdate("Movie", "speed").Set("name", "Speed").Execute(c))
	err := NewUpdate("Person", "alice").
		Relate("FRIEND", "bob").
		Relate("FRIEND", "bob").
		Relate("ACTED_IN", "speed").
		Execute(c)
	require.NoError(t, err)
	rh.calls = nil

	// Deleting alice notifies a relation change on her tombstone once per
	// relationship type she had, then fires exactly one delete, in that
	// order. The tombstone is in place before any notification.
	require.NoError(t, NewUpdate("Person", "alice").MarkDeleted().Execute(c))
	require.Equal(t, []string{
		"relation/alice/FRIEND",
		"relation/alice/ACTED_IN",
		"delete/Person/alice",
	}, rh.calls)

	alice, err := c.Store.Node("alice")
	require.NoError(t, err)
	require.True(t, alice.Deleted())

	// Deleted nodes keep their relationships visible to neighbors.
	bob, err := c.Store.Node("bob")
	require.NoError(t, err)
	friends, err := bob.Related("FRIEND", graph.Incoming)
	require.NoError(t, err)
	require.Len(t, friends, 2)
	require.True(t, friends[0].Deleted())
}

func TestExecuteDeleteIgnoresOtherMutations(t *testing.T) {
	c, rh := testContext(t)
	require.NoError(t, NewUpdate("Person", "alice").Set("name", "alice").Execute(c))
	rh.calls = nil

	err := NewUpdate("Person", "alice").
		Set("name", "ghost").
		MarkDeleted().
		Execute(c)
	require.NoError(t, err)
	require.Equal(t, []string{"delete/Person/alice"}, rh.calls)

	props, err := c.Store.Properties("alice")
	require.NoError(t, err)
	require.Equal(t, "alice", props["name"], "mutations alongside a delete are dropped")
}

func TestExecuteHookErrorPropagates(t *testing.T) {
	c, rh := testContext(t)
	rh.failCall = "property/alice/city"

	err := NewUpdate("Person", "alice").
		Set("name", "alice").
		Set("city", "rome").
		Execute(c)
	require.Error(t, err)
	require.Equal(t, []string{"property/alice/name"}, rh.calls,
		"hooks before the failing one already ran")

	props, perr := c.Store.Properties("alice")
	require.NoError(t, perr)
	require.Equal(t, "rome", props["city"], "the store keeps the committed value")
}

func TestQueryRun(t *testing.T) {
	c, _ := testContext(t)
	require.NoError(t, NewUpdate("Person", "alice").Set("name", "alice").Execute(c))
	require.NoError(t, NewUpdate("Person", "bob").Set("name", "bob").Execute(c))
	require.NoError(t, NewUpdate("Person", "alice").Relate("FRIEND", "bob").Execute(c))
	require.NoError(t, NewUpdate("Person", "bob").MarkDeleted().Execute(c))

	result, err := NewQuery("alice").Run(c)
	require.NoError(t, err)
	require.Equal(t, "alice", result.Id)
	require.Equal(t, "Person", result.Kind)
	require.False(t, result.Deleted)
	require.Equal(t, "alice", result.Props["name"])
	require.Len(t, result.Relations, 1)
	require.Equal(t, "FRIEND", result.Relations[0].RelType)
	require.Equal(t, "bob", result.Relations[0].Id)
	require.True(t, result.Relations[0].Deleted)

	_, err = NewQuery("nobody").Run(c)
	require.Equal(t, graph.ErrNotFound, err)
}

package feed

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	_ "github.com/artsince/neo4j/drivers/memgraph"
	"github.com/artsince/neo4j/graph"
)

// recordingHooks captures dispatched notifications, one string per call.
type recordingHooks struct {
	mutex  sync.Mutex
	calls  []string
	failId string
}

func (rh *recordingHooks) record(call string) {
	rh.mutex.Lock()
	defer rh.mutex.Unlock()
	rh.calls = append(rh.calls, call)
}

func (rh *recordingHooks) Calls() []string {
	rh.mutex.Lock()
	defer rh.mutex.Unlock()
	out := make([]string, len(rh.calls))
	copy(out, rh.calls)
	return out
}

func (rh *recordingHooks) PropertyChanged(n graph.Node, property string) error {
	if n.Id() == rh.failId {
		return errors.New("hook failed")
	}
	rh.record("property/" + n.Kind() + "/" + n.Id() + "/" + property)
	return nil
}

func (rh *recordingHooks) RelationChanged(n graph.Node, relType string) error {
	rh.record("relation/" + n.Kind() + "/" + n.Id() + "/" + relType)
	return nil
}

func (rh *recordingHooks) NodeDeleted(n graph.Node) error {
	rh.record("delete/" + n.Kind() + "/" + n.Id())
	return nil
}

func testStore(t *testing.T) graph.Store {
	s := graph.Get("memgraph")
	require.NoError(t, s.Init())
	return s
}

func TestHooksPublish(t *testing.T) {
	ms := NewMemorySource()
	h := NewHooks(ms)

	require.NoError(t, h.PropertyChanged(graph.Ref("Person", "alice"), "name"))
	require.NoError(t, h.RelationChanged(graph.Ref("Person", "alice"), "FRIEND"))
	require.NoError(t, h.NodeDeleted(graph.Ref("Person", "bob")))

	msgs, _ := ms.Stream(context.Background())
	var events []Event
	for m := range msgs {
		events = append(events, m.Event)
	}
	require.Len(t, events, 3)

	require.Equal(t, OpProperty, events[0].Op)
	require.Equal(t, "Person", events[0].Kind)
	require.Equal(t, "alice", events[0].Id)
	require.Equal(t, "name", events[0].Property)
	require.True(t, events[0].NanoTs > 0)

	require.Equal(t, OpRelation, events[1].Op)
	require.Equal(t, "FRIEND", events[1].RelType)

	require.Equal(t, OpDelete, events[2].Op)
	require.Equal(t, "bob", events[2].Id)
}

func TestServiceAppliesEvents(t *testing.T) {
	s := testStore(t)
	_, err := s.PutNode("Person", "alice")
	require.NoError(t, err)

	ms := NewMemorySource()
	ctx := context.Background()
	events := []Event{
		{Op: OpProperty, Kind: "Person", Id: "alice", Property: "name"},
		{Op: OpRelation, Kind: "Person", Id: "alice", RelType: "FRIEND"},
		{Op: OpDelete, Kind: "Person", Id: "carol"},
		{Op: OpProperty, Kind: "Person", Id: "ghost", Property: "name"},
		{Op: "compact", Kind: "Person", Id: "alice"},
	}
	for _, ev := range events {
		require.NoError(t, ms.Publish(ctx, ev))
	}

	rec := &recordingHooks{}
	svc := NewService(ms, s, rec, 2)
	require.NoError(t, svc.Run(ctx))

	require.ElementsMatch(t, []string{
		"property/Person/alice/name",
		"relation/Person/alice/FRIEND",
		"delete/Person/carol",
	}, rec.Calls())

	// Everything commits: handled events, vanished nodes, unknown ops.
	require.Len(t, ms.Committed(), len(events))
}

func TestServiceLeavesFailedUncommitted(t *testing.T) {
	s := testStore(t)
	_, err := s.PutNode("Person", "alice")
	require.NoError(t, err)
	_, err = s.PutNode("Person", "bob")
	require.NoError(t, err)

	ms := NewMemorySource()
	ctx := context.Background()
	require.NoError(t, ms.Publish(ctx, Event{Op: OpProperty, Kind: "Person", Id: "alice", Property: "name"}))
	require.NoError(t, ms.Publish(ctx, Event{Op: OpProperty, Kind: "Person", Id: "bob", Property: "name"}))

	rec := &recordingHooks{failId: "alice"}
	svc := NewService(ms, s, rec, 1)
	require.NoError(t, svc.Run(ctx), "a failed hook is not terminal")

	committed := ms.Committed()
	require.Len(t, committed, 1)
	require.Equal(t, "bob", committed[0].Id)
}

// brokenSource reports a terminal stream error and never delivers a message.
type brokenSource struct {
	err error
}

func (bs brokenSource) Stream(ctx context.Context) (<-chan Message, <-chan error) {
	msgs := make(chan Message)
	errs := make(chan error, 1)
	errs <- bs.err
	return msgs, errs
}

func TestServiceSourceErrorTerminal(t *testing.T) {
	s := testStore(t)
	streamErr := errors.New("stream broken")

	svc := NewService(brokenSource{err: streamErr}, s, &recordingHooks{}, 2)
	err := svc.Run(context.Background())
	require.ErrorIs(t, err, streamErr)
}

func TestMemorySourceSnapshot(t *testing.T) {
	ms := NewMemorySource()
	ctx := context.Background()
	require.NoError(t, ms.Publish(ctx, Event{Op: OpDelete, Kind: "Person", Id: "a"}))
	require.NoError(t, ms.Publish(ctx, Event{Op: OpDelete, Kind: "Person", Id: "b"}))

	msgs, errs := ms.Stream(ctx)
	require.NoError(t, ms.Publish(ctx, Event{Op: OpDelete, Kind: "Person", Id: "c"}))

	var ids []string
	for m := range msgs {
		ids = append(ids, m.Event.Id)
		if m.Commit != nil {
			require.NoError(t, m.Commit(ctx))
		}
	}
	require.Equal(t, []string{"a", "b"}, ids, "streams replay the snapshot taken at call time")
	require.NoError(t, <-errs)
	require.Len(t, ms.Committed(), 2)
}

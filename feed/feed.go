// Package feed replays change events from an external stream onto
// graph.Hooks. A process serving writes publishes one event per change
// notification; a separate indexing process consumes them and keeps its
// search engine in sync, without sharing anything but the stream.
package feed

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/artsince/neo4j/graph"
	"github.com/artsince/neo4j/x"
)

var log = x.Log("feed")

// Event ops.
const (
	OpProperty = "property"
	OpRelation = "relation"
	OpDelete   = "delete"
)

// Event is one change notification on the wire.
type Event struct {
	Op       string `json:"op"`
	Kind     string `json:"kind"`
	Id       string `json:"id"`
	Property string `json:"property,omitempty"`
	RelType  string `json:"rel_type,omitempty"`
	NanoTs   int64  `json:"nano_ts"`
}

// Message pairs an event with its acknowledgement. Commit may be nil for
// sources without offsets.
type Message struct {
	Event  Event
	Commit func(ctx context.Context) error
}

// Source streams messages until the context is cancelled or the stream
// ends; both channels are closed when it does. Errors on the second
// channel are stream-level and terminal.
type Source interface {
	Stream(ctx context.Context) (<-chan Message, <-chan error)
}

// Publisher emits change events for consumers elsewhere.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Hooks implements graph.Hooks by publishing one event per notification,
// instead of handling the change locally.
type Hooks struct {
	pub Publisher
}

func NewHooks(pub Publisher) *Hooks {
	return &Hooks{pub: pub}
}

func (h *Hooks) PropertyChanged(n graph.Node, property string) error {
	return h.pub.Publish(context.Background(), Event{
		Op:       OpProperty,
		Kind:     n.Kind(),
		Id:       n.Id(),
		Property: property,
		NanoTs:   time.Now().UnixNano(),
	})
}

func (h *Hooks) RelationChanged(n graph.Node, relType string) error {
	return h.pub.Publish(context.Background(), Event{
		Op:      OpRelation,
		Kind:    n.Kind(),
		Id:      n.Id(),
		RelType: relType,
		NanoTs:  time.Now().UnixNano(),
	})
}

func (h *Hooks) NodeDeleted(n graph.Node) error {
	return h.pub.Publish(context.Background(), Event{
		Op:     OpDelete,
		Kind:   n.Kind(),
		Id:     n.Id(),
		NanoTs: time.Now().UnixNano(),
	})
}

// Service consumes a Source with a pool of workers, resolves each event
// against the store and dispatches it to hooks. An event is committed once
// its hook ran; a failed hook leaves the message uncommitted so the source
// can redeliver it.
type Service struct {
	source  Source
	store   graph.Store
	hooks   graph.Hooks
	workers int
}

func NewService(source Source, store graph.Store, hooks graph.Hooks, workers int) *Service {
	if workers <= 0 {
		workers = 1
	}
	return &Service{
		source:  source,
		store:   store,
		hooks:   hooks,
		workers: workers,
	}
}

// Run blocks until the stream ends, the context is cancelled, or the
// source reports a terminal error.
func (s *Service) Run(ctx context.Context) error {
	msgs, errs := s.source.Stream(ctx)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < s.workers; i++ {
		g.Go(func() error {
			for {
				select {
				case <-gctx.Done():
					return nil
				case msg, ok := <-msgs:
					if !ok {
						return nil
					}
					s.handle(gctx, msg)
				}
			}
		})
	}
	g.Go(func() error {
		select {
		case <-gctx.Done():
			return nil
		case err, ok := <-errs:
			if !ok {
				return nil
			}
			x.LogErr(log, err).Error("While streaming events")
			return err
		}
	})
	return g.Wait()
}

func (s *Service) handle(ctx context.Context, msg Message) {
	ev := msg.Event
	var err error
	switch ev.Op {
	case OpDelete:
		// The record may already be gone; a detached handle carries
		// enough for the delete path.
		err = s.hooks.NodeDeleted(graph.Ref(ev.Kind, ev.Id))
	case OpProperty, OpRelation:
		var node graph.Node
		node, err = s.store.Node(ev.Id)
		if err == graph.ErrNotFound {
			log.WithField("id", ev.Id).Info("Node gone, skipping event")
			s.commit(ctx, msg)
			return
		}
		if err != nil {
			break
		}
		if ev.Op == OpProperty {
			err = s.hooks.PropertyChanged(node, ev.Property)
		} else {
			err = s.hooks.RelationChanged(node, ev.RelType)
		}
	default:
		log.WithField("op", ev.Op).Warn("Unknown event op, discarding")
		s.commit(ctx, msg)
		return
	}

	if err != nil {
		// Leave uncommitted, the source redelivers.
		x.LogErr(log, err).WithField("id", ev.Id).Error("While handling event")
		return
	}
	s.commit(ctx, msg)
}

func (s *Service) commit(ctx context.Context, msg Message) {
	if msg.Commit == nil {
		return
	}
	if err := msg.Commit(ctx); err != nil {
		x.LogErr(log, err).Error("While committing offset")
	}
}

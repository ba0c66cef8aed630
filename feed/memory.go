package feed

import (
	"context"
	"sync"
)

// MemorySource holds events in memory, for tests and single-process use.
// It implements both Publisher and Source; Stream replays a snapshot of
// whatever was published before it was called.
type MemorySource struct {
	mutex     sync.Mutex
	events    []Event
	committed []Event
}

func NewMemorySource() *MemorySource {
	return new(MemorySource)
}

func (ms *MemorySource) Publish(ctx context.Context, ev Event) error {
	ms.mutex.Lock()
	defer ms.mutex.Unlock()
	ms.events = append(ms.events, ev)
	return nil
}

// Committed returns the events acknowledged by consumers so far.
func (ms *MemorySource) Committed() []Event {
	ms.mutex.Lock()
	defer ms.mutex.Unlock()
	dup := make([]Event, len(ms.committed))
	copy(dup, ms.committed)
	return dup
}

func (ms *MemorySource) Stream(ctx context.Context) (<-chan Message, <-chan error) {
	ms.mutex.Lock()
	snapshot := make([]Event, len(ms.events))
	copy(snapshot, ms.events)
	ms.mutex.Unlock()

	msgs := make(chan Message)
	errs := make(chan error, 1)
	go func() {
		defer close(msgs)
		defer close(errs)
		for _, ev := range snapshot {
			ev := ev
			m := Message{
				Event: ev,
				Commit: func(context.Context) error {
					ms.mutex.Lock()
					defer ms.mutex.Unlock()
					ms.committed = append(ms.committed, ev)
					return nil
				},
			}
			select {
			case <-ctx.Done():
				return
			case msgs <- m:
			}
		}
	}()
	return msgs, errs
}

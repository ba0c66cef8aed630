package indexer

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/artsince/neo4j/cache"
	"github.com/artsince/neo4j/graph"
	"github.com/artsince/neo4j/metrics"
	"github.com/artsince/neo4j/x"
)

// Server runs document regeneration on a bounded queue with a pool of
// goroutines, to keep store and search in-sync without doing the work on
// the caller's goroutine. It implements graph.Hooks: a change notification
// resolves the impacted nodes right away, but only queues them; workers do
// the regeneration. Delete notifications are applied inline, dropping a
// document must not wait behind queued regeneration work.
type Server struct {
	reg   *Registry
	store graph.Store
	ch    chan x.Entity
	wg    *sync.WaitGroup

	cache cache.Cache
	stats *metrics.Metrics
}

// NewServer returns back a server regenerating documents for the indexers
// registered on reg, resolving nodes from store. You can control the
// amount of memory consumed by the server via buffer of pending entities
// in the channel, and the rate of processing of these entities via
// numRoutines. Once the buffer is full, notifications block, which keeps
// fan-out storms bounded.
func NewServer(reg *Registry, store graph.Store, buffer, numRoutines int) *Server {
	if reg == nil {
		log.Fatal("No indexer registry found")
	}
	if store == nil {
		log.Fatal("No graph store found")
	}
	s := &Server{
		reg:   reg,
		store: store,
		ch:    make(chan x.Entity, buffer),
		wg:    new(sync.WaitGroup),
	}
	for i := 0; i < numRoutines; i++ {
		s.wg.Add(1)
		go s.regenerateAndIndex()
	}
	return s
}

// WithCache sets a fingerprint cache. Regenerated documents whose
// fingerprint matches the cached one are not resubmitted to the engine.
func (s *Server) WithCache(c cache.Cache) *Server {
	s.cache = c
	return s
}

// WithMetrics sets the collectors the server reports activity to.
func (s *Server) WithMetrics(m *metrics.Metrics) *Server {
	s.stats = m
	return s
}

func (s *Server) regenerateAndIndex() {
	defer s.wg.Done()

	for entity := range s.ch {
		if s.stats != nil {
			s.stats.ReindexQueueDepth.Set(float64(len(s.ch)))
		}
		in, ok := s.reg.Get(entity.Kind)
		if !ok {
			continue
		}
		node, err := s.store.Node(entity.Id)
		if err == graph.ErrNotFound {
			continue
		}
		if err != nil {
			x.LogErr(log, err).WithField("id", entity.Id).
				Error("While resolving node")
			s.countError()
			continue
		}
		if node.Deleted() {
			continue
		}

		start := time.Now()
		doc, err := in.Regenerate(node)
		if err != nil {
			x.LogErr(log, err).WithField("id", entity.Id).
				Error("While regenerating doc")
			s.countError()
			continue
		}
		log.WithField("doc", doc).Debug("Regenerated doc")

		if s.cache != nil {
			fp := cache.Fingerprint(doc)
			key := cache.Key(doc)
			if prev, found := s.cache.Get(key); found && prev == fp {
				log.WithField("id", doc.Id).Debug("Doc unchanged, skipping")
				if s.stats != nil {
					s.stats.DocsSkippedTotal.Inc()
				}
				continue
			}
			s.cache.Set(key, fp)
		}

		if err := in.Engine().Update(doc); err != nil {
			x.LogErr(log, err).WithField("doc", doc).
				Error("While updating in search engine")
			s.countError()
			continue
		}
		if s.stats != nil {
			s.stats.DocsIndexedTotal.Inc()
			s.stats.ReindexLatency.Observe(time.Since(start).Seconds())
		}
	}
}

func (s *Server) countError() {
	if s.stats != nil {
		s.stats.IndexErrorsTotal.Inc()
	}
}

// AddToQueue queues one entity for document regeneration. Blocks while the
// buffer is full.
func (s *Server) AddToQueue(e x.Entity) {
	s.ch <- e
}

// enqueue resolves the nodes the updaters report stale and queues each of
// them once.
func (s *Server) enqueue(in *Indexer, n graph.Node, ups []Updater) error {
	nodes, err := in.Impacted(n, ups)
	if err != nil {
		return err
	}
	for _, node := range nodes {
		s.AddToQueue(x.Entity{Kind: node.Kind(), Id: node.Id()})
	}
	if s.stats != nil {
		s.stats.FanoutSize.Observe(float64(len(nodes)))
		s.stats.ReindexQueueDepth.Set(float64(len(s.ch)))
	}
	return nil
}

// PropertyChanged implements graph.Hooks by queueing the impacted nodes.
func (s *Server) PropertyChanged(n graph.Node, property string) error {
	in, ok := s.reg.Get(n.Kind())
	if !ok {
		return nil
	}
	return s.enqueue(in, n, in.UpdatersForProperty(property))
}

// RelationChanged implements graph.Hooks by queueing the impacted nodes.
func (s *Server) RelationChanged(n graph.Node, relType string) error {
	in, ok := s.reg.Get(n.Kind())
	if !ok {
		return nil
	}
	return s.enqueue(in, n, in.UpdatersForRelation(relType))
}

// NodeDeleted implements graph.Hooks. The document is dropped inline.
func (s *Server) NodeDeleted(n graph.Node) error {
	in, ok := s.reg.Get(n.Kind())
	if !ok {
		return nil
	}
	if err := in.OnNodeDeleted(n); err != nil {
		s.countError()
		return err
	}
	if s.cache != nil {
		s.cache.Remove(n.Kind() + ":" + n.Id())
	}
	if s.stats != nil {
		s.stats.DocsDeletedTotal.Inc()
	}
	return nil
}

// LoopOnce would cycle over all live nodes in the store, and re-index them.
func (s *Server) LoopOnce() {
	var total uint64
	from := ""
	for {
		found, last, err := s.store.Iterate(from, 1000, s.ch)
		if err != nil {
			x.LogErr(log, err).Error("While iterating")
			return
		}
		if found == 0 {
			log.WithField("total", total).Info("Reached end of cycle")
			return
		}
		log.WithFields(logrus.Fields{
			"num_processed": found,
			"last":          last,
		}).Debug("Iteration chunk done")
		total += uint64(found)
		from = last.Id
	}
}

// InfiniteLoop would infinitely cycle over all nodes in the store, waiting
// for wait duration after each cycle.
func (s *Server) InfiniteLoop(wait time.Duration) {
	for {
		s.LoopOnce()
		log.Debug("Sleeping...")
		time.Sleep(wait)
	}
}

// Finish closes the queue and waits for the workers to drain it.
func (s *Server) Finish() {
	close(s.ch)
	s.wg.Wait()
}

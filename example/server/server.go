package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/artsince/neo4j/cache"
	"github.com/artsince/neo4j/config"
	_ "github.com/artsince/neo4j/drivers/blevesearch"
	_ "github.com/artsince/neo4j/drivers/elasticsearch"
	"github.com/artsince/neo4j/drivers/kafkafeed"
	_ "github.com/artsince/neo4j/drivers/leveldb"
	_ "github.com/artsince/neo4j/drivers/memgraph"
	_ "github.com/artsince/neo4j/drivers/memsearch"
	"github.com/artsince/neo4j/drivers/rediscache"
	_ "github.com/artsince/neo4j/drivers/sqlgraph"
	"github.com/artsince/neo4j/feed"
	"github.com/artsince/neo4j/graph"
	"github.com/artsince/neo4j/helper"
	"github.com/artsince/neo4j/indexer"
	"github.com/artsince/neo4j/metrics"
	"github.com/artsince/neo4j/req"
	"github.com/artsince/neo4j/search"
	"github.com/artsince/neo4j/x"
)

var log = x.Log("server")

// buildRegistry turns the declarative index section of the config into an
// indexer per kind.
func buildRegistry(cfg *config.Config, engine search.Engine) (*indexer.Registry, error) {
	reg := indexer.NewRegistry()
	for _, idx := range cfg.Indexes {
		in := indexer.New(idx.Kind, engine)
		for _, p := range idx.Properties {
			in.AddPropertyIndex(p)
		}
		for _, rel := range idx.Relations {
			for _, p := range rel.Properties {
				if err := in.AddRelationIndex(rel.Base, rel.RelType, p); err != nil {
					return nil, err
				}
			}
		}
		if err := reg.Register(idx.Kind, in); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

func buildCache(cfg *config.Config) (cache.Cache, error) {
	switch cfg.Cache.Kind {
	case "none":
		return nil, nil
	case "redis":
		return rediscache.New(cfg.Cache.Redis.Addr, cfg.Cache.Redis.Password,
			cfg.Cache.Redis.DB, "graph:", cfg.Cache.Redis.TTL)
	default: // "lru" and the empty default
		return cache.NewLRU(cfg.Cache.Size)
	}
}

func main() {
	configPath := flag.String("config", "", "Path to the YAML config file. "+
		"Without one the server runs fully in-process on memgraph and memsearch.")
	flag.Parse()
	fmt.Println("Running...")

	cfg, err := config.Load(*configPath)
	if err != nil {
		x.LogErr(log, err).Fatal("While loading config")
	}
	if err := cfg.Validate(); err != nil {
		x.LogErr(log, err).Fatal("While validating config")
	}
	if level, err := logrus.ParseLevel(cfg.Logging.Level); err == nil {
		logrus.SetLevel(level)
	}

	store := graph.Get(cfg.Store.Driver)
	if err := store.Init(cfg.Store.Args...); err != nil {
		x.LogErr(log, err).Fatal("While initing store")
	}
	engine := search.Get(cfg.Search.Driver)
	if err := engine.Init(cfg.Search.Args...); err != nil {
		x.LogErr(log, err).Fatal("While initing search engine")
	}

	reg, err := buildRegistry(cfg, engine)
	if err != nil {
		x.LogErr(log, err).Fatal("While building indexers")
	}
	log.WithField("kinds", reg.Kinds()).Info("Indexers registered")

	srv := indexer.NewServer(reg, store, cfg.Indexer.Buffer, cfg.Indexer.NumRoutines)
	fpCache, err := buildCache(cfg)
	if err != nil {
		x.LogErr(log, err).Fatal("While building cache")
	}
	if fpCache != nil {
		srv.WithCache(fpCache)
	}
	srv.WithMetrics(metrics.New())

	// Mutations notify the queue server, which fans out regeneration work
	// to its routines.
	c := req.NewContext(cfg.Indexer.NumCharsUnique)
	c.Store = store
	c.Hooks = srv

	help := new(helper.Helper)
	help.SetContext(c)
	help.SetEngine(engine)

	mux := http.NewServeMux()
	mux.HandleFunc("/modify", help.CreateOrUpdate)
	mux.HandleFunc("/node/", help.Read)
	mux.HandleFunc("/search", help.Search)
	mux.Handle("/metrics", metrics.Handler())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The periodic sweep re-indexes every live node, catching anything the
	// realtime notifications missed.
	if cfg.Indexer.SweepInterval > 0 {
		log.WithField("interval", cfg.Indexer.SweepInterval).Info("Starting sweep loop")
		go srv.InfiniteLoop(cfg.Indexer.SweepInterval)
	}

	// With the feed enabled, this process also consumes change events
	// published to Kafka by another writer, and indexes those too.
	if cfg.Feed.Enabled {
		source := kafkafeed.NewSource(cfg.Feed.Brokers, cfg.Feed.Topic, cfg.Feed.Group)
		defer source.Close()
		svc := feed.NewService(source, store, srv, cfg.Feed.Workers)
		go func() {
			if err := svc.Run(ctx); err != nil {
				x.LogErr(log, err).Error("Feed consumer stopped")
			}
		}()
		log.WithFields(logrus.Fields{
			"topic": cfg.Feed.Topic,
			"group": cfg.Feed.Group,
		}).Info("Consuming change feed")
	}

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: mux,
	}
	go func() {
		<-ctx.Done()
		log.Info("Shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			x.LogErr(log, err).Error("While shutting down server")
		}
	}()

	log.WithField("addr", server.Addr).Info("Server listening")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		x.LogErr(log, err).Fatal("Creating listener")
	}

	// Drain the regeneration queue before exiting.
	srv.Finish()
	log.Info("Server stopped")
}

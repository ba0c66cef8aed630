package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/artsince/neo4j/api"
	_ "github.com/artsince/neo4j/drivers/blevesearch"
	_ "github.com/artsince/neo4j/drivers/elasticsearch"
	_ "github.com/artsince/neo4j/drivers/leveldb"
	_ "github.com/artsince/neo4j/drivers/memgraph"
	_ "github.com/artsince/neo4j/drivers/memsearch"
	"github.com/artsince/neo4j/graph"
	"github.com/artsince/neo4j/indexer"
	"github.com/artsince/neo4j/req"
	"github.com/artsince/neo4j/search"
	"github.com/artsince/neo4j/x"
)

var storeType = flag.String("store", "memgraph",
	"Available stores are memgraph for in-memory, "+
		"leveldb for LevelDB. memgraph is the default.")

var searchType = flag.String("search", "memsearch",
	"Available engines are memsearch for in-memory, "+
		"blevesearch for Bleve, elasticsearch for ElasticSearch. "+
		"memsearch is the default.")

var elasticUrl = flag.String("elastic", "http://localhost:9200",
	"ElasticSearch url, used with -search=elasticsearch.")

var log = x.Log("movies")
var c *req.Context

const sep = "================================"

func initStore() graph.Store {
	var err error
	switch *storeType {
	case "memgraph":
		s := graph.Get(*storeType)
		err = s.Init()

	case "leveldb":
		var path string
		path, err = os.MkdirTemp("", "neo4jldb_")
		if err == nil {
			s := graph.Get(*storeType)
			err = s.Init(path)
		}

	default:
		log.Fatalf("Invalid store: %v", *storeType)
	}
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
	return graph.Get(*storeType)
}

func initSearch() search.Engine {
	var err error
	switch *searchType {
	case "memsearch", "blevesearch":
		// Both run in-process, with nothing to connect to.
		err = search.Get(*searchType).Init()

	case "elasticsearch":
		err = search.Get(*searchType).Init(*elasticUrl)

	default:
		log.Fatalf("Invalid search engine: %v", *searchType)
	}
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
	return search.Get(*searchType)
}

func printMovies(engine search.Engine) {
	docs, err := engine.NewQuery("Movie").Order("released").Run()
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
	fmt.Printf("\n%s\n", sep)
	for _, doc := range docs {
		fmt.Printf("%v (%v)\n", doc.Values["name"], doc.Values["released"])
	}
	fmt.Println(sep)
}

func printCast(engine search.Engine, title string) {
	q := engine.NewQuery("Person")
	q.NewAndFilter().AddRegex("movie.name", title)
	docs, err := q.Run()
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
	fmt.Printf("\n%s\n", sep)
	for _, doc := range docs {
		fmt.Printf("%v\n", doc.Values["name"])
	}
	fmt.Println(sep)
}

func docFor(engine search.Engine, kind, id string) x.Doc {
	q := engine.NewQuery(kind)
	q.NewAndFilter().AddExact("id", id)
	docs, err := q.Run()
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
	if len(docs) != 1 {
		log.Fatalf("Expected one doc for %v %v, got %v", kind, id, len(docs))
	}
	return docs[0]
}

func main() {
	fmt.Println("Running...")
	flag.Parse()

	store := initStore()
	engine := initSearch()

	// One indexer per kind. Person documents carry the person's own name,
	// the names of friends, and the titles acted in. Movie documents carry
	// the title, the release year and the cast. ACTED_IN is declared on
	// both kinds, so a change on either endpoint refreshes the documents
	// on the other.
	people := indexer.New("Person", engine)
	people.AddPropertyIndex("name")
	if err := people.AddRelationIndex("friend", "FRIEND", "name"); err != nil {
		log.Fatalf("Error: %v", err)
	}
	if err := people.AddRelationIndex("movie", "ACTED_IN", "name"); err != nil {
		log.Fatalf("Error: %v", err)
	}

	movies := indexer.New("Movie", engine)
	movies.AddPropertyIndex("name")
	movies.AddPropertyIndex("released")
	if err := movies.AddRelationIndex("actor", "ACTED_IN", "name"); err != nil {
		log.Fatalf("Error: %v", err)
	}

	reg := indexer.NewRegistry()
	if err := reg.Register("Person", people); err != nil {
		log.Fatalf("Error: %v", err)
	}
	if err := reg.Register("Movie", movies); err != nil {
		log.Fatalf("Error: %v", err)
	}

	// The registry handles every change notification synchronously, so by
	// the time Execute returns, the documents are already refreshed.
	c = req.NewContext(10)
	c.Store = store
	c.Hooks = reg

	// Let's get started. Two actors and two movies, then the
	// relationships between them.
	err := api.NewUpdate("Person", "keanu").Set("name", "Keanu Reeves").Execute(c)
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
	err = api.NewUpdate("Person", "carrie").Set("name", "Carrie-Anne Moss").Execute(c)
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
	err = api.NewUpdate("Movie", "matrix").
		Set("name", "The Matrix").Set("released", 1999).Execute(c)
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
	err = api.NewUpdate("Movie", "speed").
		Set("name", "Speed").Set("released", 1994).Execute(c)
	if err != nil {
		log.Fatalf("Error: %v", err)
	}

	err = api.NewUpdate("Person", "keanu").
		Relate("ACTED_IN", "matrix").
		Relate("ACTED_IN", "speed").
		Relate("FRIEND", "carrie").
		Execute(c)
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
	err = api.NewUpdate("Person", "carrie").Relate("ACTED_IN", "matrix").Execute(c)
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
	fmt.Print("Stored people, movies and relationships")

	// Every movie, oldest first, straight from the search engine.
	printMovies(engine)

	// The cast of The Matrix: persons whose documents carry the title
	// under movie.name.
	printCast(engine, "The Matrix")

	// Keanu goes by his full name now. The rename refreshes his own
	// document, his friends' documents, and the documents of the movies
	// he acted in.
	err = api.NewUpdate("Person", "keanu").Set("name", "Keanu Charles Reeves").Execute(c)
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
	fmt.Print("Renamed Keanu")
	printCast(engine, "The Matrix")

	matrix := docFor(engine, "Movie", "matrix")
	fmt.Printf("Cast on the movie doc: %v\n", matrix.Values["actor.name"])
	carrie := docFor(engine, "Person", "carrie")
	fmt.Printf("Carrie's friends: %v\n", carrie.Values["friend.name"])

	// Dropping Speed. The tombstone notification refreshes Keanu's
	// document, and the movie's own document is removed from the engine.
	err = api.NewUpdate("Movie", "speed").MarkDeleted().Execute(c)
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
	fmt.Print("Deleted Speed")
	printMovies(engine)

	keanu := docFor(engine, "Person", "keanu")
	fmt.Printf("Keanu's movies: %v\n", keanu.Values["movie.name"])
}

package main_test

import (
	"fmt"

	"github.com/artsince/neo4j/api"
	_ "github.com/artsince/neo4j/drivers/memgraph"
	_ "github.com/artsince/neo4j/drivers/memsearch"
	"github.com/artsince/neo4j/graph"
	"github.com/artsince/neo4j/indexer"
	"github.com/artsince/neo4j/req"
	"github.com/artsince/neo4j/search"
	"github.com/artsince/neo4j/x"
)

var log = x.Log("movies_test")

func Example() {
	s := graph.Get("memgraph")
	if err := s.Init(); err != nil {
		x.LogErr(log, err).Fatal("Initing store")
		return
	}
	engine := search.Get("memsearch")
	if err := engine.Init(); err != nil {
		x.LogErr(log, err).Fatal("Initing engine")
		return
	}

	people := indexer.New("Person", engine)
	people.AddPropertyIndex("name")
	if err := people.AddRelationIndex("friend", "FRIEND", "name"); err != nil {
		x.LogErr(log, err).Fatal("Adding index")
		return
	}
	if err := people.AddRelationIndex("movie", "ACTED_IN", "name"); err != nil {
		x.LogErr(log, err).Fatal("Adding index")
		return
	}
	movies := indexer.New("Movie", engine)
	movies.AddPropertyIndex("name")
	movies.AddPropertyIndex("released")
	if err := movies.AddRelationIndex("actor", "ACTED_IN", "name"); err != nil {
		x.LogErr(log, err).Fatal("Adding index")
		return
	}

	reg := indexer.NewRegistry()
	if err := reg.Register("Person", people); err != nil {
		x.LogErr(log, err).Fatal("Registering indexer")
		return
	}
	if err := reg.Register("Movie", movies); err != nil {
		x.LogErr(log, err).Fatal("Registering indexer")
		return
	}

	c := req.NewContext(10)
	c.Store = s
	c.Hooks = reg

	// Fixed ids, so the engine returns results in a stable order.
	err := api.NewUpdate("Person", "keanu").Set("name", "Keanu Reeves").Execute(c)
	if err != nil {
		x.LogErr(log, err).Fatal("Commiting update")
		return
	}
	err = api.NewUpdate("Person", "carrie").Set("name", "Carrie-Anne Moss").Execute(c)
	if err != nil {
		x.LogErr(log, err).Fatal("Commiting update")
		return
	}
	err = api.NewUpdate("Movie", "matrix").
		Set("name", "The Matrix").Set("released", 1999).Execute(c)
	if err != nil {
		x.LogErr(log, err).Fatal("Commiting update")
		return
	}
	err = api.NewUpdate("Movie", "speed").
		Set("name", "Speed").Set("released", 1994).Execute(c)
	if err != nil {
		x.LogErr(log, err).Fatal("Commiting update")
		return
	}
	err = api.NewUpdate("Person", "keanu").
		Relate("ACTED_IN", "matrix").
		Relate("ACTED_IN", "speed").
		Relate("FRIEND", "carrie").
		Execute(c)
	if err != nil {
		x.LogErr(log, err).Fatal("Commiting update")
		return
	}
	err = api.NewUpdate("Person", "carrie").Relate("ACTED_IN", "matrix").Execute(c)
	if err != nil {
		x.LogErr(log, err).Fatal("Commiting update")
		return
	}

	fmt.Println("Movies by release year:")
	docs, err := engine.NewQuery("Movie").Order("released").Run()
	if err != nil {
		x.LogErr(log, err).Fatal("While querying engine")
		return
	}
	for _, doc := range docs {
		fmt.Printf("%v (%v)\n", doc.Values["name"], doc.Values["released"])
	}

	fmt.Println("The Matrix cast:")
	q := engine.NewQuery("Person")
	q.NewAndFilter().AddRegex("movie.name", "The Matrix")
	docs, err = q.Run()
	if err != nil {
		x.LogErr(log, err).Fatal("While querying engine")
		return
	}
	for _, doc := range docs {
		fmt.Printf("%v\n", doc.Values["name"])
	}

	// The rename refreshes Keanu's own document, his friends' and his
	// movies' documents, all synchronously with the Execute.
	err = api.NewUpdate("Person", "keanu").Set("name", "Keanu Charles Reeves").Execute(c)
	if err != nil {
		x.LogErr(log, err).Fatal("Commiting update")
		return
	}

	fmt.Println("Cast after the rename:")
	q = engine.NewQuery("Person")
	q.NewAndFilter().AddRegex("movie.name", "The Matrix")
	docs, err = q.Run()
	if err != nil {
		x.LogErr(log, err).Fatal("While querying engine")
		return
	}
	for _, doc := range docs {
		fmt.Printf("%v\n", doc.Values["name"])
	}

	q = engine.NewQuery("Movie")
	q.NewAndFilter().AddExact("id", "matrix")
	docs, err = q.Run()
	if err != nil || len(docs) != 1 {
		x.LogErr(log, err).Fatal("While querying engine")
		return
	}
	fmt.Printf("Cast on the movie doc: %v\n", docs[0].Values["actor.name"])

	q = engine.NewQuery("Person")
	q.NewAndFilter().AddExact("id", "carrie")
	docs, err = q.Run()
	if err != nil || len(docs) != 1 {
		x.LogErr(log, err).Fatal("While querying engine")
		return
	}
	fmt.Printf("Carrie's friends: %v\n", docs[0].Values["friend.name"])

	// Deleting Speed drops its document and refreshes the surviving
	// cast, whose documents lose the title.
	err = api.NewUpdate("Movie", "speed").MarkDeleted().Execute(c)
	if err != nil {
		x.LogErr(log, err).Fatal("Commiting update")
		return
	}

	fmt.Println("Movies after deleting Speed:")
	docs, err = engine.NewQuery("Movie").Order("released").Run()
	if err != nil {
		x.LogErr(log, err).Fatal("While querying engine")
		return
	}
	for _, doc := range docs {
		fmt.Printf("%v (%v)\n", doc.Values["name"], doc.Values["released"])
	}

	q = engine.NewQuery("Person")
	q.NewAndFilter().AddExact("id", "keanu")
	docs, err = q.Run()
	if err != nil || len(docs) != 1 {
		x.LogErr(log, err).Fatal("While querying engine")
		return
	}
	fmt.Printf("Keanu's movies: %v\n", docs[0].Values["movie.name"])

	// Output:
	// Movies by release year:
	// Speed (1994)
	// The Matrix (1999)
	// The Matrix cast:
	// Carrie-Anne Moss
	// Keanu Reeves
	// Cast after the rename:
	// Carrie-Anne Moss
	// Keanu Charles Reeves
	// Cast on the movie doc: [Keanu Charles Reeves Carrie-Anne Moss]
	// Carrie's friends: [Keanu Charles Reeves]
	// Movies after deleting Speed:
	// The Matrix (1999)
	// Keanu's movies: [The Matrix]
}

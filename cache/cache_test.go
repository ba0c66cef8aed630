package cache

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/artsince/neo4j/x"
)

func TestKey(t *testing.T) {
	doc := x.NewDoc("Person", "alice")
	require.Equal(t, "Person:alice", Key(doc))
}

func TestFingerprintIgnoresTimestamps(t *testing.T) {
	a := x.NewDoc("Person", "alice")
	a.Values["name"] = "neo"
	b := x.NewDoc("Person", "alice")
	b.Values["name"] = "neo"
	require.True(t, b.NanoTs >= a.NanoTs)
	require.Equal(t, Fingerprint(a), Fingerprint(b))
}

func TestFingerprintSeesValueChanges(t *testing.T) {
	a := x.NewDoc("Person", "alice")
	a.Values["name"] = "neo"
	a.Values["friend.name"] = []interface{}{"bob"}

	b := x.NewDoc("Person", "alice")
	b.Values["name"] = "neo"
	b.Values["friend.name"] = []interface{}{"bob", "carol"}
	require.NotEqual(t, Fingerprint(a), Fingerprint(b))

	c := x.NewDoc("Person", "bob")
	c.Values["name"] = "neo"
	require.NotEqual(t, Fingerprint(a), Fingerprint(c), "the id is part of the hash")

	d := x.NewDoc("Movie", "alice")
	d.Values["name"] = "neo"
	require.NotEqual(t, Fingerprint(c), Fingerprint(d), "so is the kind")
}

func TestLRU(t *testing.T) {
	c, err := NewLRU(2)
	require.NoError(t, err)

	_, found := c.Get("Person:alice")
	require.False(t, found)

	c.Set("Person:alice", "fp1")
	v, found := c.Get("Person:alice")
	require.True(t, found)
	require.Equal(t, "fp1", v)

	c.Set("Person:alice", "fp2")
	v, _ = c.Get("Person:alice")
	require.Equal(t, "fp2", v)

	c.Set("Person:bob", "fp3")
	c.Set("Person:carol", "fp4") // evicts the least recently used entry
	require.Equal(t, 2, c.Len())

	c.Remove("Person:carol")
	_, found = c.Get("Person:carol")
	require.False(t, found)
	require.Equal(t, 1, c.Len())
}

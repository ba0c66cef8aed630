// Package leveldb stores the graph in a local leveldb file. Node records
// live under "n:" keys and relationship records under sequenced "e:" keys,
// so node scans and relationship traversals are both prefix iterations.
package leveldb

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"sync"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/filter"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/artsince/neo4j/graph"
	"github.com/artsince/neo4j/x"
)

var log = x.Log("leveldb")

type nodeRecord struct {
	Kind    string
	Deleted bool
	Props   map[string]interface{}
}

type edgeRecord struct {
	RelType string
	FromId  string
	ToId    string
}

// Leveldb implements graph.Store on a local leveldb file. Writes which
// read-modify a record are serialized with a mutex; leveldb itself handles
// concurrent reads.
type Leveldb struct {
	db    *leveldb.DB
	opt   *opt.Options
	wlock sync.Mutex
	seq   uint64
}

func (l *Leveldb) SetBloomFilter(bits int) {
	l.opt = &opt.Options{
		Filter: filter.NewBloomFilter(bits),
	}
}

func (l *Leveldb) Init(args ...string) error {
	if len(args) != 1 {
		return fmt.Errorf("leveldb: Init expects filepath, got %v", args)
	}
	var err error
	l.db, err = leveldb.OpenFile(args[0], l.opt)
	if err != nil {
		x.LogErr(log, err).Error("While opening leveldb")
		return err
	}

	// Resume the edge sequence from the last stored edge key.
	iter := l.db.NewIterator(util.BytesPrefix([]byte("e:")), nil)
	if iter.Last() {
		fmt.Sscanf(string(iter.Key()), "e:%d", &l.seq)
	}
	iter.Release()
	return iter.Error()
}

func nodeKey(id string) []byte { return []byte("n:" + id) }

func (l *Leveldb) readNode(id string) (*nodeRecord, error) {
	buf, err := l.db.Get(nodeKey(id), nil)
	if err == leveldb.ErrNotFound {
		return nil, graph.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var rec nodeRecord
	if err := gob.NewDecoder(bytes.NewReader(buf)).Decode(&rec); err != nil {
		x.LogErr(log, err).WithField("id", id).Error("While decoding node")
		return nil, err
	}
	return &rec, nil
}

func (l *Leveldb) writeNode(id string, rec *nodeRecord) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(rec); err != nil {
		x.LogErr(log, err).WithField("id", id).Error("While encoding node")
		return err
	}
	return l.db.Put(nodeKey(id), buf.Bytes(), nil)
}

func (l *Leveldb) PutNode(kind, id string) (graph.Node, error) {
	l.wlock.Lock()
	defer l.wlock.Unlock()
	has, err := l.db.Has(nodeKey(id), nil)
	if err != nil {
		return nil, err
	}
	if !has {
		rec := &nodeRecord{Kind: kind, Props: make(map[string]interface{})}
		if err := l.writeNode(id, rec); err != nil {
			return nil, err
		}
	}
	return ldbNode{l: l, id: id}, nil
}

func (l *Leveldb) Node(id string) (graph.Node, error) {
	has, err := l.db.Has(nodeKey(id), nil)
	if err != nil {
		return nil, err
	}
	if !has {
		return nil, graph.ErrNotFound
	}
	return ldbNode{l: l, id: id}, nil
}

func (l *Leveldb) SetProperty(id, property string, value interface{}) error {
	l.wlock.Lock()
	defer l.wlock.Unlock()
	rec, err := l.readNode(id)
	if err != nil {
		return err
	}
	rec.Props[property] = value
	return l.writeNode(id, rec)
}

func (l *Leveldb) Properties(id string) (map[string]interface{}, error) {
	rec, err := l.readNode(id)
	if err != nil {
		return nil, err
	}
	return rec.Props, nil
}

func (l *Leveldb) DeleteNode(id string) error {
	l.wlock.Lock()
	defer l.wlock.Unlock()
	rec, err := l.readNode(id)
	if err != nil {
		return err
	}
	rec.Deleted = true
	return l.writeNode(id, rec)
}

func (l *Leveldb) Relate(relType, fromId, toId string) error {
	l.wlock.Lock()
	defer l.wlock.Unlock()
	l.seq++
	key := []byte(fmt.Sprintf("e:%020d", l.seq))

	var buf bytes.Buffer
	rec := edgeRecord{RelType: relType, FromId: fromId, ToId: toId}
	if err := gob.NewEncoder(&buf).Encode(rec); err != nil {
		x.LogErr(log, err).Error("While encoding edge")
		return err
	}
	b := new(leveldb.Batch)
	b.Put(key, buf.Bytes())
	return l.db.Write(b, nil)
}

// forEachEdge runs fn over all stored edges in creation order, until fn
// returns false or the iterator is exhausted.
func (l *Leveldb) forEachEdge(fn func(key []byte, rec edgeRecord) bool) error {
	iter := l.db.NewIterator(util.BytesPrefix([]byte("e:")), nil)
	defer iter.Release()
	for iter.Next() {
		var rec edgeRecord
		if err := gob.NewDecoder(bytes.NewReader(iter.Value())).Decode(&rec); err != nil {
			x.LogErr(log, err).Error("While decoding edge")
			return err
		}
		key := make([]byte, len(iter.Key()))
		copy(key, iter.Key())
		if !fn(key, rec) {
			break
		}
	}
	return iter.Error()
}

func (l *Leveldb) Unrelate(relType, fromId, toId string) error {
	l.wlock.Lock()
	defer l.wlock.Unlock()
	var match []byte
	err := l.forEachEdge(func(key []byte, rec edgeRecord) bool {
		if rec.RelType == relType && rec.FromId == fromId && rec.ToId == toId {
			match = key
			return false
		}
		return true
	})
	if err != nil {
		return err
	}
	if match == nil {
		return nil
	}
	return l.db.Delete(match, nil)
}

func (l *Leveldb) Relations(id string) ([]graph.Relation, error) {
	if _, err := l.readNode(id); err != nil {
		return nil, err
	}
	var rels []graph.Relation
	err := l.forEachEdge(func(_ []byte, rec edgeRecord) bool {
		if rec.FromId == id || rec.ToId == id {
			rels = append(rels, graph.Relation(rec))
		}
		return true
	})
	return rels, err
}

func (l *Leveldb) IsNew(id string) bool {
	has, err := l.db.Has(nodeKey(id), nil)
	if err != nil {
		x.LogErr(log, err).WithField("id", id).Error("While checking key")
		return false
	}
	return !has
}

func (l *Leveldb) Iterate(fromId string, num int,
	ch chan<- x.Entity) (int, x.Entity, error) {

	iter := l.db.NewIterator(util.BytesPrefix([]byte("n:")), nil)

	var scanned []x.Entity
	var live []bool
	for len(scanned) < num && iter.Next() {
		id := string(iter.Key()[len("n:"):])
		if id <= fromId {
			continue
		}
		var rec nodeRecord
		if err := gob.NewDecoder(bytes.NewReader(iter.Value())).Decode(&rec); err != nil {
			x.LogErr(log, err).WithField("id", id).Error("While decoding node")
			iter.Release()
			return 0, x.Entity{}, err
		}
		scanned = append(scanned, x.Entity{Kind: rec.Kind, Id: id})
		live = append(live, !rec.Deleted)
	}
	iter.Release()
	if err := iter.Error(); err != nil {
		return 0, x.Entity{}, err
	}

	var last x.Entity
	for i, ent := range scanned {
		if live[i] {
			ch <- ent
		}
		last = ent
	}
	return len(scanned), last, nil
}

type ldbNode struct {
	l  *Leveldb
	id string
}

func (ln ldbNode) Id() string { return ln.id }

func (ln ldbNode) Kind() string {
	rec, err := ln.l.readNode(ln.id)
	if err != nil {
		return ""
	}
	return rec.Kind
}

func (ln ldbNode) Deleted() bool {
	rec, err := ln.l.readNode(ln.id)
	if err != nil {
		return true
	}
	return rec.Deleted
}

func (ln ldbNode) Property(name string) (interface{}, error) {
	rec, err := ln.l.readNode(ln.id)
	if err != nil {
		return nil, err
	}
	val, present := rec.Props[name]
	if !present {
		return nil, nil
	}
	return val, nil
}

func (ln ldbNode) Related(relType string, dir graph.Direction) ([]graph.Node, error) {
	var nodes []graph.Node
	err := ln.l.forEachEdge(func(_ []byte, rec edgeRecord) bool {
		if rec.RelType != relType {
			return true
		}
		switch dir {
		case graph.Outgoing:
			if rec.FromId == ln.id {
				nodes = append(nodes, ldbNode{l: ln.l, id: rec.ToId})
			}
		case graph.Incoming:
			if rec.ToId == ln.id {
				nodes = append(nodes, ldbNode{l: ln.l, id: rec.FromId})
			}
		case graph.Both:
			if rec.FromId == ln.id {
				nodes = append(nodes, ldbNode{l: ln.l, id: rec.ToId})
			} else if rec.ToId == ln.id {
				nodes = append(nodes, ldbNode{l: ln.l, id: rec.FromId})
			}
		}
		return true
	})
	return nodes, err
}

func init() {
	// Property values round-trip through gob as interface fields; composite
	// values need their concrete types registered. Scalars are predefined.
	gob.Register([]interface{}{})
	gob.Register(map[string]interface{}{})

	log.Info("Initing leveldb")
	l := new(Leveldb)
	l.SetBloomFilter(13)
	graph.Register("leveldb", l)
}

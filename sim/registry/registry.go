// Package registry provides a BearerRegistry backed by an in-memory radix-tree
// database, indexed by bearer id and by slice.
package registry

import (
	"fmt"
	"sort"

	"github.com/hashicorp/go-memdb"
	"github.com/sirupsen/logrus"

	"github.com/ring-sim/ring-sim/sim"
)

const (
	tableBearer = "bearers"
	indexID     = "id"
	indexSlice  = "slice"
)

// MemDBRegistry stores bearer metadata in go-memdb. Reads see a consistent
// snapshot; writes are serialized by memdb's write transaction.
type MemDBRegistry struct {
	db *memdb.MemDB
}

var _ sim.BearerRegistry = (*MemDBRegistry)(nil)

func schema() *memdb.DBSchema {
	return &memdb.DBSchema{
		Tables: map[string]*memdb.TableSchema{
			tableBearer: {
				Name: tableBearer,
				Indexes: map[string]*memdb.IndexSchema{
					indexID: {
						Name:    indexID,
						Unique:  true,
						Indexer: &memdb.UintFieldIndex{Field: "ID"},
					},
					indexSlice: {
						Name:    indexSlice,
						Indexer: &memdb.IntFieldIndex{Field: "Slice"},
					},
				},
			},
		},
	}
}

// New creates an empty MemDBRegistry.
func New() (*MemDBRegistry, error) {
	db, err := memdb.NewMemDB(schema())
	if err != nil {
		return nil, fmt.Errorf("creating bearer registry: %w", err)
	}
	return &MemDBRegistry{db: db}, nil
}

// Put inserts or replaces the metadata of info.ID.
func (r *MemDBRegistry) Put(info *sim.BearerInfo) error {
	txn := r.db.Txn(true)
	defer txn.Abort()
	if err := txn.Insert(tableBearer, info); err != nil {
		return fmt.Errorf("inserting bearer %d: %w", info.ID, err)
	}
	txn.Commit()
	return nil
}

func (r *MemDBRegistry) Get(id sim.BearerID) (*sim.BearerInfo, bool) {
	txn := r.db.Txn(false)
	defer txn.Abort()
	raw, err := txn.First(tableBearer, indexID, uint64(id))
	if err != nil {
		logrus.Errorf("bearer registry lookup %d: %v", id, err)
		return nil, false
	}
	if raw == nil {
		return nil, false
	}
	return raw.(*sim.BearerInfo), true
}

func (r *MemDBRegistry) Delete(id sim.BearerID) bool {
	txn := r.db.Txn(true)
	defer txn.Abort()
	n, err := txn.DeleteAll(tableBearer, indexID, uint64(id))
	if err != nil {
		logrus.Errorf("bearer registry delete %d: %v", id, err)
		return false
	}
	txn.Commit()
	return n > 0
}

// BySlice returns the bearers of slice ordered by id.
func (r *MemDBRegistry) BySlice(slice sim.SliceID) []*sim.BearerInfo {
	txn := r.db.Txn(false)
	defer txn.Abort()
	it, err := txn.Get(tableBearer, indexSlice, int(slice))
	if err != nil {
		logrus.Errorf("bearer registry query slice %d: %v", slice, err)
		return nil
	}
	return collect(it)
}

// All returns every registered bearer ordered by id.
func (r *MemDBRegistry) All() []*sim.BearerInfo {
	txn := r.db.Txn(false)
	defer txn.Abort()
	it, err := txn.Get(tableBearer, indexID)
	if err != nil {
		logrus.Errorf("bearer registry scan: %v", err)
		return nil
	}
	return collect(it)
}

func (r *MemDBRegistry) Len() int {
	txn := r.db.Txn(false)
	defer txn.Abort()
	it, err := txn.Get(tableBearer, indexID)
	if err != nil {
		logrus.Errorf("bearer registry scan: %v", err)
		return 0
	}
	n := 0
	for obj := it.Next(); obj != nil; obj = it.Next() {
		n++
	}
	return n
}

func collect(it memdb.ResultIterator) []*sim.BearerInfo {
	var out []*sim.BearerInfo
	for obj := it.Next(); obj != nil; obj = it.Next() {
		out = append(out, obj.(*sim.BearerInfo))
	}
	// varint-encoded index keys do not sort numerically
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

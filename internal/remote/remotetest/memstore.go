// Package remotetest provides an in-memory remote.DocumentStore for tests.
package remotetest

import (
	"context"
	"sort"
	"sync"

	"github.com/and161185/dolist/internal/errs"
	"github.com/and161185/dolist/internal/remote"
	"go.mongodb.org/mongo-driver/bson"
)

// Op is a recorded mutating call.
type Op struct {
	Kind       string // "set" or "delete"
	Collection string
	ID         string
}

// MemStore keeps documents as marshalled BSON, like the real store.
type MemStore struct {
	mu   sync.Mutex
	docs map[string]map[string]bson.Raw
	ops  []Op
	fail error
}

var _ remote.DocumentStore = (*MemStore)(nil)

// NewMemStore returns an empty store.
func NewMemStore() *MemStore {
	return &MemStore{docs: map[string]map[string]bson.Raw{}}
}

// Fail makes every following call return err; nil restores normal operation.
func (m *MemStore) Fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail = err
}

// Ops returns the mutating calls in order.
func (m *MemStore) Ops() []Op {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Op(nil), m.ops...)
}

// Has reports whether collection/id exists.
func (m *MemStore) Has(collection, id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.docs[collection][id]
	return ok
}

// Count returns the number of documents in collection.
func (m *MemStore) Count(collection string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.docs[collection])
}

// Lookup decodes collection/id into out and reports whether it existed.
func (m *MemStore) Lookup(collection, id string, out any) bool {
	m.mu.Lock()
	raw, ok := m.docs[collection][id]
	m.mu.Unlock()
	if !ok {
		return false
	}
	return bson.Unmarshal(raw, out) == nil
}

func (m *MemStore) Get(ctx context.Context, collection, id string) (bson.Raw, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(ctx); err != nil {
		return nil, err
	}
	raw, ok := m.docs[collection][id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return raw, nil
}

func (m *MemStore) Set(ctx context.Context, collection, id string, doc any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(ctx); err != nil {
		return err
	}
	raw, err := bson.Marshal(doc)
	if err != nil {
		return err
	}
	if m.docs[collection] == nil {
		m.docs[collection] = map[string]bson.Raw{}
	}
	m.docs[collection][id] = raw
	m.ops = append(m.ops, Op{Kind: "set", Collection: collection, ID: id})
	return nil
}

func (m *MemStore) Delete(ctx context.Context, collection, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(ctx); err != nil {
		return err
	}
	delete(m.docs[collection], id)
	m.ops = append(m.ops, Op{Kind: "delete", Collection: collection, ID: id})
	return nil
}

func (m *MemStore) Query(ctx context.Context, collection, field, value string) ([]bson.Raw, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(ctx); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(m.docs[collection]))
	for id := range m.docs[collection] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	var out []bson.Raw
	for _, id := range ids {
		raw := m.docs[collection][id]
		if v, ok := raw.Lookup(field).StringValueOK(); ok && v == value {
			out = append(out, raw)
		}
	}
	return out, nil
}

// Ping fails like every other call while a failure is set.
func (m *MemStore) Ping(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.check(ctx)
}

func (m *MemStore) check(ctx context.Context) error {
	if m.fail != nil {
		return m.fail
	}
	return ctx.Err()
}

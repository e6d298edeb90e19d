package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

// Memory is an in-memory Store. Scans iterate keys in sorted order so
// results are deterministic across runs.
type Memory struct {
	mu          sync.RWMutex
	collections map[string]map[string][]byte
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{collections: make(map[string]map[string][]byte)}
}

func (m *Memory) collection(name string) map[string][]byte {
	c, ok := m.collections[name]
	if !ok {
		c = make(map[string][]byte)
		m.collections[name] = c
	}
	return c
}

// Get implements Store.
func (m *Memory) Get(ctx context.Context, collection, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.collections[collection][key]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(doc))
	copy(out, doc)
	return out, nil
}

// Put implements Store.
func (m *Memory) Put(ctx context.Context, collection, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.put(collection, key, value)
}

func (m *Memory) put(collection, key string, value []byte) error {
	doc := make([]byte, len(value))
	copy(doc, value)
	m.collection(collection)[key] = doc
	return nil
}

// Create implements Store.
func (m *Memory) Create(ctx context.Context, collection, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.create(collection, key, value)
}

func (m *Memory) create(collection, key string, value []byte) error {
	if _, ok := m.collection(collection)[key]; ok {
		return ErrExists
	}
	return m.put(collection, key, value)
}

// Merge implements Store. The patch and the stored document must both be
// JSON objects; patch fields overwrite stored fields at the top level.
func (m *Memory) Merge(ctx context.Context, collection, key string, patch []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.merge(collection, key, patch)
}

func (m *Memory) merge(collection, key string, patch []byte) error {
	existing, ok := m.collection(collection)[key]
	if !ok {
		return m.put(collection, key, patch)
	}

	var base, overlay map[string]json.RawMessage
	if err := json.Unmarshal(existing, &base); err != nil {
		return fmt.Errorf("stored document is not an object: %w", err)
	}
	if err := json.Unmarshal(patch, &overlay); err != nil {
		return fmt.Errorf("merge patch is not an object: %w", err)
	}
	for k, v := range overlay {
		base[k] = v
	}
	merged, err := json.Marshal(base)
	if err != nil {
		return err
	}
	m.collection(collection)[key] = merged
	return nil
}

// Delete implements Store.
func (m *Memory) Delete(ctx context.Context, collection, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.collection(collection), key)
	return nil
}

// Batch implements Store. Operations apply in order under a single lock so
// readers observe either none or all of the batch.
func (m *Memory) Batch(ctx context.Context, ops []Op) error {
	if len(ops) > MaxBatchOps {
		return ErrBatchTooLarge
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, op := range ops {
		var err error
		switch op.Kind {
		case OpPut:
			err = m.put(op.Collection, op.Key, op.Value)
		case OpCreate:
			err = m.create(op.Collection, op.Key, op.Value)
		case OpMerge:
			err = m.merge(op.Collection, op.Key, op.Value)
		case OpDelete:
			delete(m.collection(op.Collection), op.Key)
		default:
			err = fmt.Errorf("unknown batch op %q", op.Kind)
		}
		if err != nil {
			return fmt.Errorf("batch op %d (%s %s/%s): %w", i, op.Kind, op.Collection, op.Key, err)
		}
	}
	return nil
}

// Scan implements Store.
func (m *Memory) Scan(ctx context.Context, collection string, fn func(key string, value []byte) error) error {
	m.mu.RLock()
	c := m.collections[collection]
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	docs := make(map[string][]byte, len(c))
	for k, v := range c {
		doc := make([]byte, len(v))
		copy(doc, v)
		docs[k] = doc
	}
	m.mu.RUnlock()

	sort.Strings(keys)
	for _, k := range keys {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(k, docs[k]); err != nil {
			return err
		}
	}
	return nil
}

// Close implements Store.
func (m *Memory) Close() error {
	return nil
}

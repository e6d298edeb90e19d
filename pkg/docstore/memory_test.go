package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
)

func TestMemoryCreateAndGet(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	if err := s.Create(ctx, "nodes", "a", []byte(`{"title":"x"}`)); err != nil {
		t.Fatal(err)
	}
	if err := s.Create(ctx, "nodes", "a", []byte(`{}`)); !errors.Is(err, ErrExists) {
		t.Errorf("second create = %v, want ErrExists", err)
	}

	doc, err := s.Get(ctx, "nodes", "a")
	if err != nil {
		t.Fatal(err)
	}
	if string(doc) != `{"title":"x"}` {
		t.Errorf("unexpected document: %s", doc)
	}

	if _, err := s.Get(ctx, "nodes", "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing key = %v, want ErrNotFound", err)
	}
}

func TestMemoryMerge(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	if err := s.Put(ctx, "nodes", "a", []byte(`{"title":"x","year":1999}`)); err != nil {
		t.Fatal(err)
	}
	if err := s.Merge(ctx, "nodes", "a", []byte(`{"year":2001,"tagline":"t"}`)); err != nil {
		t.Fatal(err)
	}

	doc, _ := s.Get(ctx, "nodes", "a")
	var got map[string]any
	if err := json.Unmarshal(doc, &got); err != nil {
		t.Fatal(err)
	}
	if got["title"] != "x" || got["year"] != float64(2001) || got["tagline"] != "t" {
		t.Errorf("merge result: %v", got)
	}

	// Merge into a vacant key behaves like create.
	if err := s.Merge(ctx, "nodes", "b", []byte(`{"title":"y"}`)); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Get(ctx, "nodes", "b"); err != nil {
		t.Errorf("merged-into-vacant key not readable: %v", err)
	}
}

func TestMemoryBatchBound(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	ops := make([]Op, MaxBatchOps+1)
	for i := range ops {
		ops[i] = Op{Kind: OpPut, Collection: "nodes", Key: "k", Value: []byte(`{}`)}
	}
	if err := s.Batch(ctx, ops); !errors.Is(err, ErrBatchTooLarge) {
		t.Errorf("oversized batch = %v, want ErrBatchTooLarge", err)
	}
	if err := s.Batch(ctx, ops[:MaxBatchOps]); err != nil {
		t.Errorf("full batch failed: %v", err)
	}
}

func TestMemoryScanOrder(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	for _, k := range []string{"c", "a", "b"} {
		if err := s.Put(ctx, "nodes", k, []byte(`{}`)); err != nil {
			t.Fatal(err)
		}
	}

	var keys []string
	err := s.Scan(ctx, "nodes", func(key string, _ []byte) error {
		keys = append(keys, key)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"a", "b", "c"}
	for i := range want {
		if keys[i] != want[i] {
			t.Fatalf("scan order = %v, want %v", keys, want)
		}
	}
}

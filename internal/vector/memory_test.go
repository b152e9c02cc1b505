package vector

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestMemoryIndex_AddSearch(t *testing.T) {
	idx, err := NewMemoryIndex(3)
	if err != nil {
		t.Fatal(err)
	}
	defer idx.Close()
	ctx := context.Background()

	vecs := [][]float32{
		{1, 0, 0},
		{0.9, 0.1, 0},
		{0, 1, 0},
	}
	if err := idx.Add(ctx, []string{"a", "b", "c"}, vecs); err != nil {
		t.Fatal(err)
	}
	if idx.Size() != 3 {
		t.Errorf("Size=%d", idx.Size())
	}

	results, err := idx.Search(ctx, []float32{1, 0, 0}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].ID != "a" || results[1].ID != "b" {
		t.Errorf("order = %s, %s", results[0].ID, results[1].ID)
	}
}

func TestMemoryIndex_tiesKeepInsertionOrder(t *testing.T) {
	idx, _ := NewMemoryIndex(2)
	ctx := context.Background()
	ids := []string{"first", "second", "third", "fourth", "fifth"}
	vecs := make([][]float32, len(ids))
	for i := range vecs {
		vecs[i] = []float32{0.6, 0.8}
	}
	if err := idx.Add(ctx, ids, vecs); err != nil {
		t.Fatal(err)
	}
	for run := 0; run < 5; run++ {
		results, _ := idx.Search(ctx, []float32{1, 0}, 5)
		for i, r := range results {
			if r.ID != ids[i] {
				t.Fatalf("run %d: position %d = %s, want %s", run, i, r.ID, ids[i])
			}
		}
	}
}

func TestMemoryIndex_SearchBounds(t *testing.T) {
	idx, _ := NewMemoryIndex(2)
	ctx := context.Background()
	if res, err := idx.Search(ctx, []float32{1, 0}, 3); err != nil || len(res) != 0 {
		t.Errorf("empty index: %v, %v", res, err)
	}
	_ = idx.Add(ctx, []string{"x"}, [][]float32{{1, 0}})
	if res, _ := idx.Search(ctx, []float32{1, 0}, 10); len(res) != 1 {
		t.Errorf("k larger than size returned %d", len(res))
	}
	if res, _ := idx.Search(ctx, []float32{1, 0}, 0); len(res) != 0 {
		t.Errorf("k=0 returned %d", len(res))
	}
	if _, err := idx.Search(ctx, []float32{1, 0, 0}, 1); err == nil {
		t.Error("expected dimension mismatch error")
	}
}

func TestMemoryIndex_AddIsAllOrNothing(t *testing.T) {
	idx, _ := NewMemoryIndex(2)
	err := idx.Add(context.Background(), []string{"ok", "bad"}, [][]float32{{1, 0}, {1, 0, 0}})
	if err == nil {
		t.Fatal("expected error")
	}
	if idx.Size() != 0 {
		t.Errorf("Size=%d after failed add", idx.Size())
	}
}

func TestMemoryIndex_Remove(t *testing.T) {
	idx, _ := NewMemoryIndex(2)
	ctx := context.Background()
	_ = idx.Add(ctx, []string{"x", "y", "z"}, [][]float32{{1, 0}, {0, 1}, {1, 0}})
	if err := idx.Remove(ctx, []string{"x"}); err != nil {
		t.Fatal(err)
	}
	if idx.Size() != 2 {
		t.Errorf("expected size 2, got %d", idx.Size())
	}
	res, _ := idx.Search(ctx, []float32{1, 0}, 1)
	if res[0].ID != "z" {
		t.Errorf("top = %s, want z", res[0].ID)
	}
	if ids := idx.IDs(); len(ids) != 2 || ids[0] != "y" || ids[1] != "z" {
		t.Errorf("IDs = %v, want [y z]", ids)
	}
}

func TestMemoryIndex_Clear(t *testing.T) {
	idx, _ := NewMemoryIndex(2)
	ctx := context.Background()
	_ = idx.Add(ctx, []string{"x"}, [][]float32{{1, 0}})
	if err := idx.Clear(ctx); err != nil {
		t.Fatal(err)
	}
	if idx.Size() != 0 {
		t.Errorf("Size=%d", idx.Size())
	}
	if res, err := idx.Search(ctx, []float32{1, 0}, 3); err != nil || len(res) != 0 {
		t.Errorf("cleared index should search empty: %v, %v", res, err)
	}
	_ = idx.Add(ctx, []string{"y"}, [][]float32{{0, 1}})
	if idx.Size() != 1 {
		t.Error("cleared index should accept new vectors")
	}
}

func TestMemoryIndex_SaveLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "vectors.bin")
	ctx := context.Background()
	idx, _ := NewMemoryIndex(3)
	_ = idx.Add(ctx, []string{"chunk-1", "chunk-2"}, [][]float32{{1, 0, 0}, {0, 0.6, 0.8}})
	if err := idx.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, _ := NewMemoryIndex(3)
	if err := loaded.Load(path); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Size() != 2 {
		t.Fatalf("Size=%d", loaded.Size())
	}
	res, _ := loaded.Search(ctx, []float32{0, 0.6, 0.8}, 1)
	if res[0].ID != "chunk-2" || res[0].Score < 0.99 {
		t.Errorf("top = %+v", res[0])
	}
	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("temp files left behind: %d entries", len(entries))
	}
}

func TestMemoryIndex_LoadMissingFile(t *testing.T) {
	idx, _ := NewMemoryIndex(2)
	if err := idx.Load(filepath.Join(t.TempDir(), "none.bin")); err != nil {
		t.Errorf("missing file should not error: %v", err)
	}
}

func TestMemoryIndex_LoadMismatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "v.bin")
	idx, _ := NewMemoryIndex(2)
	_ = idx.Add(context.Background(), []string{"a"}, [][]float32{{1, 0}})
	_ = idx.Save(path)

	other, _ := NewMemoryIndex(4)
	if err := other.Load(path); !errors.Is(err, ErrSnapshotMismatch) {
		t.Errorf("err = %v, want ErrSnapshotMismatch", err)
	}

	junk := filepath.Join(dir, "junk.bin")
	_ = os.WriteFile(junk, []byte("not a snapshot"), 0o600)
	if err := idx.Load(junk); !errors.Is(err, ErrSnapshotMismatch) {
		t.Errorf("err = %v, want ErrSnapshotMismatch", err)
	}
}

func TestMemoryIndex_LoadTruncated(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "v.bin")
	idx, _ := NewMemoryIndex(2)
	_ = idx.Add(context.Background(), []string{"a", "b"}, [][]float32{{1, 0}, {0, 1}})
	_ = idx.Save(path)
	data, _ := os.ReadFile(path)
	_ = os.WriteFile(path, data[:len(data)-3], 0o600)

	fresh, _ := NewMemoryIndex(2)
	if err := fresh.Load(path); err == nil {
		t.Fatal("expected error for truncated snapshot")
	}
	if fresh.Size() != 0 {
		t.Error("failed load should leave the index unchanged")
	}
}

func TestEncodeDecodeVector(t *testing.T) {
	v := []float32{1.5, -2.25, 0}
	got := DecodeVector(EncodeVector(v))
	if len(got) != 3 || got[0] != 1.5 || got[1] != -2.25 || got[2] != 0 {
		t.Errorf("got %v", got)
	}
}

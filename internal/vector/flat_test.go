package vector

import (
	"math"
	"os"
	"path/filepath"
	"testing"
)

func TestFlatAppendSearch(t *testing.T) {
	f := NewFlat(3)
	vecs := [][]float32{
		{1, 0, 0},
		{0.9, 0.1, 0},
		{0, 1, 0},
	}
	if err := f.Append(vecs); err != nil {
		t.Fatal(err)
	}
	if f.Size() != 3 {
		t.Errorf("Size=%d", f.Size())
	}
	hits, err := f.Search([]float32{1, 0, 0}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(hits))
	}
	if hits[0].ID != 0 {
		t.Errorf("top hit should be id 0, got %d", hits[0].ID)
	}
	if hits[1].ID != 1 {
		t.Errorf("second hit should be id 1, got %d", hits[1].ID)
	}
}

func TestFlatDimensionFromFirstAppend(t *testing.T) {
	f := NewFlat(0)
	if f.Dimensions() != 0 {
		t.Errorf("fresh Flat dimensions = %d", f.Dimensions())
	}
	if err := f.Append([][]float32{{0.5, 0.5}}); err != nil {
		t.Fatal(err)
	}
	if f.Dimensions() != 2 {
		t.Errorf("dimensions after append = %d", f.Dimensions())
	}
	if err := f.Append([][]float32{{1, 2, 3}}); err == nil {
		t.Error("expected dimension mismatch error")
	}
	if f.Size() != 1 {
		t.Errorf("failed append must not mutate, size = %d", f.Size())
	}
}

func TestFlatAppendAtomicOnMismatch(t *testing.T) {
	f := NewFlat(2)
	batch := [][]float32{{1, 0}, {1, 2, 3}}
	if err := f.Append(batch); err == nil {
		t.Fatal("expected error for mixed-dimension batch")
	}
	if f.Size() != 0 {
		t.Errorf("partial batch was appended: size = %d", f.Size())
	}
}

func TestFlatSearchClampsK(t *testing.T) {
	f := NewFlat(2)
	_ = f.Append([][]float32{{1, 0}, {0, 1}, {0.7, 0.7}})
	hits, err := f.Search([]float32{1, 0}, 100)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 3 {
		t.Errorf("expected 3 hits with k=100 over 3 vectors, got %d", len(hits))
	}
}

func TestFlatSearchEmpty(t *testing.T) {
	f := NewFlat(4)
	hits, err := f.Search([]float32{1, 0, 0, 0}, 5)
	if err != nil {
		t.Fatal(err)
	}
	if hits != nil {
		t.Errorf("empty index should return nil hits, got %v", hits)
	}
}

func TestFlatSearchTieBreakLowerID(t *testing.T) {
	f := NewFlat(2)
	// Identical vectors score identically; earlier insertion must win.
	_ = f.Append([][]float32{{0, 1}, {1, 0}, {1, 0}})
	hits, err := f.Search([]float32{1, 0}, 3)
	if err != nil {
		t.Fatal(err)
	}
	if hits[0].ID != 1 || hits[1].ID != 2 {
		t.Errorf("tie-break order wrong: got ids %d, %d", hits[0].ID, hits[1].ID)
	}
}

func TestFlatRoundTrip(t *testing.T) {
	f := NewFlat(3)
	vecs := [][]float32{
		{0.1, 0.2, 0.3},
		{0.4, 0.5, 0.6},
	}
	if err := f.Append(vecs); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "test.index")
	if err := f.WriteFile(path); err != nil {
		t.Fatal(err)
	}
	loaded, err := ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Size() != 2 || loaded.Dimensions() != 3 {
		t.Fatalf("loaded size=%d dims=%d", loaded.Size(), loaded.Dimensions())
	}
	for id := 0; id < 2; id++ {
		want, _ := f.Vector(id)
		got, ok := loaded.Vector(id)
		if !ok {
			t.Fatalf("vector %d missing after load", id)
		}
		for j := range want {
			if math.Abs(float64(want[j]-got[j])) > 1e-6 {
				t.Errorf("vector %d[%d] = %v, want %v", id, j, got[j], want[j])
			}
		}
	}
}

func TestReadFileCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.index")
	if err := os.WriteFile(path, []byte{0x01, 0x02}, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadFile(path); err == nil {
		t.Error("expected error for truncated index file")
	}
}

func TestNormalizeL2(t *testing.T) {
	v := []float32{3, 4}
	norm := NormalizeL2(v)
	if math.Abs(norm-5) > 1e-9 {
		t.Errorf("norm = %v, want 5", norm)
	}
	if math.Abs(L2Norm(v)-1) > 1e-6 {
		t.Errorf("normalized norm = %v", L2Norm(v))
	}

	zero := []float32{0, 0}
	if norm := NormalizeL2(zero); norm != 0 {
		t.Errorf("zero vector norm = %v", norm)
	}
}

func TestInnerProductMismatchedLengths(t *testing.T) {
	if got := InnerProduct([]float32{1}, []float32{1, 2}); got != 0 {
		t.Errorf("mismatched lengths should return 0, got %v", got)
	}
}

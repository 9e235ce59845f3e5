// Package vector provides an exact flat similarity structure over dense ids.
package vector

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
)

// Flat is an append-only, inner-product-searchable array of vectors. A
// vector's id is its position: vector i was the i-th appended, ids are dense
// and never reused. Flat is not safe for concurrent use; the owning index
// serializes access.
type Flat struct {
	dims    int // 0 until the first append or load fixes it
	vectors [][]float32
}

// Hit is a single search result: the dense id of a stored vector and its
// inner product with the query.
type Hit struct {
	ID    int
	Score float64
}

// NewFlat creates a flat structure. dims may be 0, in which case the
// dimension is fixed by the first appended batch.
func NewFlat(dims int) *Flat {
	if dims < 0 {
		dims = 0
	}
	return &Flat{dims: dims}
}

// Append adds vectors in order, assigning them the next dense ids. Every
// vector must match the fixed dimension; when the structure is empty and no
// dimension was set, the first vector's length becomes the dimension. On a
// dimension mismatch nothing is appended.
func (f *Flat) Append(vectors [][]float32) error {
	if len(vectors) == 0 {
		return nil
	}
	dims := f.dims
	if dims == 0 {
		dims = len(vectors[0])
		if dims == 0 {
			return fmt.Errorf("cannot append zero-length vectors")
		}
	}
	for i, v := range vectors {
		if len(v) != dims {
			return fmt.Errorf("vector %d dimension mismatch: got %d, expected %d", i, len(v), dims)
		}
	}
	f.dims = dims
	for _, v := range vectors {
		vec := make([]float32, dims)
		copy(vec, v)
		f.vectors = append(f.vectors, vec)
	}
	return nil
}

// Search scans every stored vector and returns the top-k by descending inner
// product. Exact ties rank the lower id first so output is deterministic.
// k is clamped to the number of stored vectors; an empty structure returns nil.
func (f *Flat) Search(query []float32, k int) ([]Hit, error) {
	if len(f.vectors) == 0 {
		return nil, nil
	}
	if len(query) != f.dims {
		return nil, fmt.Errorf("query dimension mismatch: got %d, expected %d", len(query), f.dims)
	}
	if k <= 0 {
		return nil, nil
	}
	hits := make([]Hit, len(f.vectors))
	for i, vec := range f.vectors {
		hits[i] = Hit{ID: i, Score: InnerProduct(query, vec)}
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})
	if k > len(hits) {
		k = len(hits)
	}
	return hits[:k], nil
}

// Vector returns the stored vector for id. The returned slice is the backing
// array; callers must not modify it.
func (f *Flat) Vector(id int) ([]float32, bool) {
	if id < 0 || id >= len(f.vectors) {
		return nil, false
	}
	return f.vectors[id], true
}

// Dimensions returns the vector dimension, or 0 if not yet fixed.
func (f *Flat) Dimensions() int {
	return f.dims
}

// Size returns the number of stored vectors.
func (f *Flat) Size() int {
	return len(f.vectors)
}

// WriteFile persists the structure to path atomically (write to a temp file
// in the same directory, then rename). Format: dimension (uint32 LE),
// count (uint32 LE), then count*dimension raw float32 values in insertion order.
func (f *Flat) WriteFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp*")
	if err != nil {
		return fmt.Errorf("create temp index file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if err := f.write(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp index file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace index file: %w", err)
	}
	return nil
}

func (f *Flat) write(w io.Writer) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(f.dims)); err != nil {
		return fmt.Errorf("write dimensions: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(f.vectors))); err != nil {
		return fmt.Errorf("write count: %w", err)
	}
	for _, vec := range f.vectors {
		if err := binary.Write(w, binary.LittleEndian, vec); err != nil {
			return fmt.Errorf("write vector: %w", err)
		}
	}
	return nil
}

// ReadFile loads a flat structure from path.
func ReadFile(path string) (*Flat, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open index file: %w", err)
	}
	defer file.Close()
	return read(file)
}

func read(r io.Reader) (*Flat, error) {
	var dims, count uint32
	if err := binary.Read(r, binary.LittleEndian, &dims); err != nil {
		return nil, fmt.Errorf("read dimensions: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, fmt.Errorf("read count: %w", err)
	}
	if dims == 0 && count > 0 {
		return nil, fmt.Errorf("corrupt index: %d vectors with zero dimension", count)
	}
	f := &Flat{dims: int(dims)}
	f.vectors = make([][]float32, 0, count)
	for i := uint32(0); i < count; i++ {
		vec := make([]float32, dims)
		if err := binary.Read(r, binary.LittleEndian, vec); err != nil {
			return nil, fmt.Errorf("read vector %d: %w", i, err)
		}
		f.vectors = append(f.vectors, vec)
	}
	return f, nil
}

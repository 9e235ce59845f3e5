package index

import "errors"

// Input validation errors, reported per chunk. A chunk rejected with one of
// these does not abort the rest of its batch.
var (
	// ErrEmptyText marks a chunk whose text is empty after trimming.
	ErrEmptyText = errors.New("chunk text is empty")
	// ErrZeroNormVector marks an embedding whose L2 norm is below minNorm
	// and cannot be normalized.
	ErrZeroNormVector = errors.New("embedding has near-zero norm")
	// ErrDimensionMismatch marks an embedding whose length disagrees with
	// the index's fixed dimension.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	// ErrInvalidK marks a query with k < 1.
	ErrInvalidK = errors.New("k must be at least 1")
)

// minNorm is the smallest L2 norm accepted for normalization.
const minNorm = 1e-12

// Package index owns the authoritative in-memory similarity index: a flat
// vector structure plus the parallel chunk store, with durable round-trip.
package index

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/finsight/docindex/internal/embedding"
	"github.com/finsight/docindex/internal/models"
	"github.com/finsight/docindex/internal/vector"
)

// DefaultBatchLimit bounds how many texts are sent to the embedding gateway
// in one call.
const DefaultBatchLimit = 32

// Index pairs an exact flat vector structure with chunk metadata. The two
// arrays move in lockstep: entry i holds the chunk whose vector has dense
// id i. Writes are serialized by a read-write lock; Query may run
// concurrently with other Query calls but never with Add.
type Index struct {
	mu         sync.RWMutex
	embedder   embedding.Embedder
	flat       *vector.Flat
	entries    []models.Chunk
	batchLimit int
	logger     *zap.Logger
}

// Option configures an Index.
type Option func(*Index)

// WithLogger sets a logger for debug events.
func WithLogger(l *zap.Logger) Option {
	return func(ix *Index) { ix.logger = l }
}

// WithBatchLimit overrides the embedding-gateway batch bound.
func WithBatchLimit(n int) Option {
	return func(ix *Index) {
		if n > 0 {
			ix.batchLimit = n
		}
	}
}

// New creates an empty index. dimensions may be 0, in which case the
// dimension is fixed by the first added batch.
func New(embedder embedding.Embedder, dimensions int, opts ...Option) *Index {
	ix := &Index{
		embedder:   embedder,
		flat:       vector.NewFlat(dimensions),
		batchLimit: DefaultBatchLimit,
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

// Reject reports a chunk that was dropped from an Add batch, by its position
// in the input slice.
type Reject struct {
	Position int
	Err      error
}

// AddResult summarizes an Add batch: how many chunks were indexed and which
// were rejected.
type AddResult struct {
	Added    int
	Rejected []Reject
}

// Add embeds and indexes a batch of chunks. The embedding gateway is called
// with at most batchLimit texts per request; a gateway failure aborts the
// whole batch with the index unmodified. Individual chunks with empty text,
// mismatched dimension, or near-zero-norm embeddings are rejected without
// aborting the rest. On success the accepted chunks occupy the next dense
// ids in insertion order.
func (ix *Index) Add(ctx context.Context, chunks []models.Chunk) (AddResult, error) {
	var res AddResult
	if len(chunks) == 0 {
		return res, nil
	}

	// Validate text before touching the gateway; rejected chunks are not embedded.
	valid := make([]int, 0, len(chunks))
	for i, ch := range chunks {
		if strings.TrimSpace(ch.Text) == "" {
			res.Rejected = append(res.Rejected, Reject{Position: i, Err: ErrEmptyText})
			continue
		}
		valid = append(valid, i)
	}
	if len(valid) == 0 {
		return res, nil
	}

	texts := make([]string, len(valid))
	for i, pos := range valid {
		texts[i] = chunks[pos].Text
	}
	vectors, err := ix.embedBatches(ctx, texts)
	if err != nil {
		return AddResult{}, &embedding.GatewayError{Err: err}
	}

	// All vectors are in hand; validate and normalize before mutating.
	dims := ix.dimensions()
	if dims == 0 {
		dims = len(vectors[0])
	}
	accepted := make([][]float32, 0, len(vectors))
	acceptedChunks := make([]models.Chunk, 0, len(vectors))
	for i, vec := range vectors {
		pos := valid[i]
		if len(vec) != dims {
			res.Rejected = append(res.Rejected, Reject{
				Position: pos,
				Err:      fmt.Errorf("%w: got %d, expected %d", ErrDimensionMismatch, len(vec), dims),
			})
			continue
		}
		if vector.L2Norm(vec) < minNorm {
			res.Rejected = append(res.Rejected, Reject{Position: pos, Err: ErrZeroNormVector})
			continue
		}
		vector.NormalizeL2(vec)
		accepted = append(accepted, vec)
		acceptedChunks = append(acceptedChunks, chunks[pos])
	}
	if len(accepted) == 0 {
		return res, nil
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	if err := ix.flat.Append(accepted); err != nil {
		return AddResult{}, fmt.Errorf("append vectors: %w", err)
	}
	ix.entries = append(ix.entries, acceptedChunks...)
	res.Added = len(accepted)
	if ix.logger != nil {
		ix.logger.Debug("chunks indexed",
			zap.Int("added", res.Added),
			zap.Int("rejected", len(res.Rejected)),
			zap.Int("total", len(ix.entries)))
	}
	return res, nil
}

// embedBatches calls the gateway in sub-batches bounded by batchLimit and
// concatenates the results. Any failure returns no vectors.
func (ix *Index) embedBatches(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += ix.batchLimit {
		end := start + ix.batchLimit
		if end > len(texts) {
			end = len(texts)
		}
		batch, err := ix.embedder.EmbedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		if len(batch) != end-start {
			return nil, fmt.Errorf("gateway returned %d vectors for %d texts", len(batch), end-start)
		}
		vectors = append(vectors, batch...)
	}
	return vectors, nil
}

// NoScoreThreshold disables threshold filtering: no real score is strictly
// below it.
const NoScoreThreshold = -2.0

// Query embeds text and returns the top-k stored chunks by cosine
// similarity, descending, ties broken by lower dense id. k is clamped to the
// index size; an empty index yields an empty result, not an error. Results
// scoring strictly below scoreThreshold are dropped after top-k selection,
// so a threshold can only shrink the result set. A gateway failure
// propagates; the query never silently degrades to empty results.
func (ix *Index) Query(ctx context.Context, text string, k int, scoreThreshold float64) ([]models.ScoredChunk, error) {
	if k < 1 {
		return nil, ErrInvalidK
	}
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}

	queryVec, err := ix.embedder.Embed(ctx, text)
	if err != nil {
		return nil, &embedding.GatewayError{Err: err}
	}
	if vector.L2Norm(queryVec) < minNorm {
		return nil, ErrZeroNormVector
	}
	vector.NormalizeL2(queryVec)

	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if len(ix.entries) == 0 {
		return []models.ScoredChunk{}, nil
	}
	hits, err := ix.flat.Search(queryVec, k)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	results := make([]models.ScoredChunk, 0, len(hits))
	for _, hit := range hits {
		if hit.Score < scoreThreshold {
			continue
		}
		results = append(results, models.ScoredChunk{
			Chunk: ix.entries[hit.ID],
			Score: hit.Score,
		})
	}
	return results, nil
}

// Stats returns current counts. A pure read used for health and monitoring.
func (ix *Index) Stats() models.IndexStats {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return models.IndexStats{
		TotalDocuments:  len(ix.entries),
		VectorDimension: ix.flat.Dimensions(),
	}
}

// Size returns the number of indexed chunks.
func (ix *Index) Size() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.entries)
}

func (ix *Index) dimensions() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.flat.Dimensions()
}

// Close releases the embedder.
func (ix *Index) Close() error {
	return ix.embedder.Close()
}

// Package retriever exposes the indexing and query facade used by ingestion
// and query-serving callers.
package retriever

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/finsight/docindex/internal/chunker"
	"github.com/finsight/docindex/internal/index"
	"github.com/finsight/docindex/internal/models"
)

// Service wires the chunker, vector index, and persistence together behind a
// small API. It is an explicit handle owned by the caller, not a package
// global; construct one per index and share it.
type Service struct {
	index    *index.Index
	chunker  *chunker.Chunker
	dir      string
	name     string
	autosave bool
	timeout  time.Duration
	defaultK int
	logger   *zap.Logger
	// saveMu serializes persistence writes; the index's own lock covers the
	// in-memory state and is released before disk I/O starts.
	saveMu sync.Mutex
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets a logger for ingestion and persistence events.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithAutosave controls write-through persistence after each successful add.
// Enabled by default; bulk ingestion can disable it and call Save once at
// the end to avoid redundant disk writes per batch.
func WithAutosave(on bool) Option {
	return func(s *Service) { s.autosave = on }
}

// WithTimeout bounds each embedding-gateway call. A timed-out call leaves
// the index unmodified. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(s *Service) { s.timeout = d }
}

// WithDefaultK sets the result count used when a query passes k <= 0.
func WithDefaultK(k int) Option {
	return func(s *Service) {
		if k > 0 {
			s.defaultK = k
		}
	}
}

// NewService creates a facade over ix, persisting under dir with the given
// index name.
func NewService(ix *index.Index, ch *chunker.Chunker, dir, name string, opts ...Option) *Service {
	s := &Service{
		index:    ix,
		chunker:  ch,
		dir:      dir,
		name:     name,
		autosave: true,
		defaultK: 5,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddTexts indexes each text as a single chunk with optional per-text
// metadata. Texts with no parent document are assigned fresh ids. Returns
// the number of chunks indexed.
func (s *Service) AddTexts(ctx context.Context, texts []string, metadata []map[string]string) (int, error) {
	if len(texts) == 0 {
		return 0, nil
	}
	if metadata != nil && len(metadata) != len(texts) {
		return 0, fmt.Errorf("metadata count %d does not match text count %d", len(metadata), len(texts))
	}
	chunks := make([]models.Chunk, len(texts))
	for i, text := range texts {
		var meta map[string]string
		if metadata != nil {
			meta = metadata[i]
		}
		chunks[i] = models.Chunk{
			Text:       text,
			DocumentID: uuid.New().String(),
			Metadata:   meta,
		}
	}
	return s.addChunks(ctx, chunks)
}

// AddDocuments chunks each document (full text plus sections) and indexes
// the result. Documents without an id are assigned one. Returns the number
// of chunks indexed.
func (s *Service) AddDocuments(ctx context.Context, docs []models.Document) (int, error) {
	var chunks []models.Chunk
	for i := range docs {
		if docs[i].ID == "" {
			docs[i].ID = uuid.New().String()
		}
		chunks = append(chunks, s.chunker.Split(docs[i])...)
	}
	return s.addChunks(ctx, chunks)
}

func (s *Service) addChunks(ctx context.Context, chunks []models.Chunk) (int, error) {
	if len(chunks) == 0 {
		return 0, nil
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	res, err := s.index.Add(ctx, chunks)
	if err != nil {
		return 0, err
	}
	if s.logger != nil {
		for _, rej := range res.Rejected {
			s.logger.Warn("chunk rejected",
				zap.Int("position", rej.Position),
				zap.Error(rej.Err))
		}
	}
	if res.Added > 0 && s.autosave {
		// A failed save is surfaced but does not undo the in-memory add; the
		// index stays authoritative until restart.
		if err := s.Save(); err != nil {
			return res.Added, fmt.Errorf("index updated but not persisted: %w", err)
		}
	}
	return res.Added, nil
}

// Query embeds text and returns the top-k chunks with scores at or above
// scoreThreshold. k <= 0 uses the configured default. Pass
// index.NoScoreThreshold to disable filtering.
func (s *Service) Query(ctx context.Context, text string, k int, scoreThreshold float64) ([]models.ScoredChunk, error) {
	if k <= 0 {
		k = s.defaultK
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.index.Query(ctx, text, k, scoreThreshold)
}

// Stats returns index counts plus the on-disk size of the persisted artifacts.
func (s *Service) Stats() models.IndexStats {
	stats := s.index.Stats()
	stats.IndexSizeBytes = index.DiskUsageBytes(s.dir, s.name)
	return stats
}

// Save persists the index. Concurrent saves are serialized.
func (s *Service) Save() error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()
	return s.index.Save(s.dir, s.name)
}

// Close releases the underlying index resources.
func (s *Service) Close() error {
	return s.index.Close()
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

package index

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/finsight/docindex/internal/embedding"
	"github.com/finsight/docindex/internal/models"
	"github.com/finsight/docindex/internal/vector"
)

// Persisted layout: {name}.index holds the binary vector data in insertion
// order, {name}_metadata.json holds the chunk records in the same order plus
// the vector dimension. Record i in the sidecar corresponds to vector i in
// the binary file; that alignment is the critical invariant.
const (
	indexSuffix    = ".index"
	metadataSuffix = "_metadata.json"
)

// IndexPath returns the binary vector file path for name under dir.
func IndexPath(dir, name string) string {
	return filepath.Join(dir, name+indexSuffix)
}

// MetadataPath returns the metadata sidecar path for name under dir.
func MetadataPath(dir, name string) string {
	return filepath.Join(dir, name+metadataSuffix)
}

// metadataFile is the sidecar schema: ordered chunk records and the vector
// dimension.
type metadataFile struct {
	VectorSize int            `json:"vector_size"`
	Chunks     []models.Chunk `json:"chunks"`
}

// Save writes the index to dir under name: the binary vector file and the
// metadata sidecar, each replaced atomically (write-to-temp-then-rename) so
// a concurrent loader never sees a half-written file. Save failures are
// returned to the caller; the in-memory index stays authoritative.
func (ix *Index) Save(dir, name string) error {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if err := ix.flat.WriteFile(IndexPath(dir, name)); err != nil {
		return fmt.Errorf("save vector index: %w", err)
	}

	meta := metadataFile{
		VectorSize: ix.flat.Dimensions(),
		Chunks:     ix.entries,
	}
	if meta.Chunks == nil {
		meta.Chunks = []models.Chunk{}
	}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	if err := writeFileAtomic(MetadataPath(dir, name), data); err != nil {
		return fmt.Errorf("save metadata: %w", err)
	}
	if ix.logger != nil {
		ix.logger.Debug("index saved",
			zap.String("dir", dir),
			zap.String("name", name),
			zap.Int("chunks", len(ix.entries)))
	}
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// LoadOrCreate reconstructs an index from dir/name, or returns a fresh empty
// index when the artifacts are missing, unreadable, or misaligned. A
// corrupted cache degrades to a rebuildable empty index with a logged
// warning; it never fails startup. dimensions seeds the empty index (0 defers
// to the first add).
func LoadOrCreate(dir, name string, embedder embedding.Embedder, dimensions int, logger *zap.Logger, opts ...Option) *Index {
	flat, chunks, err := loadArtifacts(dir, name)
	if err != nil {
		if logger != nil && !os.IsNotExist(err) {
			logger.Warn("failed to load existing index, starting empty",
				zap.String("dir", dir),
				zap.String("name", name),
				zap.Error(err))
		}
		return New(embedder, dimensions, opts...)
	}

	ix := New(embedder, 0, opts...)
	ix.flat = flat
	ix.entries = chunks
	if logger != nil {
		logger.Info("index loaded",
			zap.String("dir", dir),
			zap.String("name", name),
			zap.Int("chunks", len(chunks)),
			zap.Int("dimensions", flat.Dimensions()))
	}
	return ix
}

// loadArtifacts reads both files and verifies their alignment. Misaligned
// state is reported, never repaired: guessing which half is authoritative
// would mask data corruption.
func loadArtifacts(dir, name string) (*vector.Flat, []models.Chunk, error) {
	metaData, err := os.ReadFile(MetadataPath(dir, name))
	if err != nil {
		return nil, nil, err
	}
	var meta metadataFile
	if err := json.Unmarshal(metaData, &meta); err != nil {
		return nil, nil, fmt.Errorf("parse metadata: %w", err)
	}

	flat, err := vector.ReadFile(IndexPath(dir, name))
	if err != nil {
		return nil, nil, err
	}

	if flat.Size() != len(meta.Chunks) {
		return nil, nil, fmt.Errorf("index misaligned: %d vectors but %d metadata records", flat.Size(), len(meta.Chunks))
	}
	if flat.Size() > 0 && flat.Dimensions() != meta.VectorSize {
		return nil, nil, fmt.Errorf("index misaligned: binary dimension %d but metadata dimension %d", flat.Dimensions(), meta.VectorSize)
	}
	return flat, meta.Chunks, nil
}

// DiskUsageBytes returns the combined on-disk size of the index artifacts
// for name under dir. Missing files contribute zero.
func DiskUsageBytes(dir, name string) int64 {
	var total int64
	for _, path := range []string{IndexPath(dir, name), MetadataPath(dir, name)} {
		if info, err := os.Stat(path); err == nil {
			total += info.Size()
		}
	}
	return total
}

// Package loader ingests financial documents from disk: plain-text notes
// and JSON filing dumps produced by upstream scrapers.
package loader

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/finsight/docindex/internal/models"
	"github.com/finsight/docindex/internal/retriever"
)

// filing is the JSON shape written by the upstream SEC scraper.
type filing struct {
	Company    string            `json:"company"`
	FilingType string            `json:"filing_type"`
	FilingDate string            `json:"filing_date"`
	URL        string            `json:"url"`
	FullText   string            `json:"full_text"`
	Sections   map[string]string `json:"sections"`
}

// Loader feeds documents from an ingest directory into the retriever.
type Loader struct {
	service *retriever.Service
	logger  *zap.Logger
}

// Option configures a Loader.
type Option func(*Loader)

// WithLogger sets a logger for per-file ingest events.
func WithLogger(l *zap.Logger) Option {
	return func(ld *Loader) { ld.logger = l }
}

// NewLoader creates a loader feeding svc.
func NewLoader(svc *retriever.Service, opts ...Option) *Loader {
	ld := &Loader{service: svc}
	for _, opt := range opts {
		opt(ld)
	}
	return ld
}

// LoadFile ingests one file and returns the number of chunks indexed.
// .json files are parsed as filing dumps (full text plus sections); anything
// else is treated as a plain-text document. The document id is derived from
// the path so re-ingesting the same file targets the same document.
func (ld *Loader) LoadFile(ctx context.Context, path string) (int, error) {
	doc, err := ld.parseFile(path)
	if err != nil {
		return 0, err
	}
	added, err := ld.service.AddDocuments(ctx, []models.Document{doc})
	if err != nil {
		return 0, err
	}
	if ld.logger != nil {
		ld.logger.Debug("file ingested",
			zap.String("path", doc.Metadata["file_path"]),
			zap.Int("chunks", added))
	}
	return added, nil
}

func (ld *Loader) parseFile(path string) (models.Document, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return models.Document{}, fmt.Errorf("absolute path: %w", err)
	}
	data, err := os.ReadFile(absPath)
	if err != nil {
		return models.Document{}, fmt.Errorf("read file: %w", err)
	}
	if strings.EqualFold(filepath.Ext(absPath), ".json") {
		return filingDocument(absPath, data)
	}
	return models.Document{
		ID:   fileDocID(absPath),
		Text: string(data),
		Metadata: map[string]string{
			"source":         "file",
			"file_name":      filepath.Base(absPath),
			"file_path":      absPath,
			"processed_date": time.Now().UTC().Format(time.RFC3339),
		},
	}, nil
}

func filingDocument(absPath string, data []byte) (models.Document, error) {
	var f filing
	if err := json.Unmarshal(data, &f); err != nil {
		return models.Document{}, fmt.Errorf("parse filing %s: %w", filepath.Base(absPath), err)
	}
	meta := map[string]string{
		"source":         "sec_filing",
		"file_path":      absPath,
		"processed_date": time.Now().UTC().Format(time.RFC3339),
	}
	if f.Company != "" {
		meta["company"] = f.Company
	}
	if f.FilingType != "" {
		meta["filing_type"] = f.FilingType
	}
	if f.FilingDate != "" {
		meta["filing_date"] = f.FilingDate
	}
	if f.URL != "" {
		meta["url"] = f.URL
	}
	return models.Document{
		ID:       fileDocID(absPath),
		Text:     f.FullText,
		Sections: f.Sections,
		Metadata: meta,
	}, nil
}

// LoadDirectory reads dir (non-recursive) and ingests each regular file
// whose extension is in exts (empty = all). Unreadable or malformed files
// are skipped with a warning; the first indexing failure aborts, since it
// signals a gateway or persistence problem rather than one bad file.
// Returns files ingested and total chunks indexed.
func (ld *Loader) LoadDirectory(ctx context.Context, dir string, exts []string) (files, chunks int, err error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return 0, 0, fmt.Errorf("absolute path: %w", err)
	}
	dirEntries, err := os.ReadDir(absDir)
	if err != nil {
		return 0, 0, fmt.Errorf("read directory: %w", err)
	}
	for _, entry := range dirEntries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(absDir, entry.Name())
		if !extensionAllowed(filepath.Ext(path), exts) {
			continue
		}
		doc, parseErr := ld.parseFile(path)
		if parseErr != nil {
			if ld.logger != nil {
				ld.logger.Warn("skipping file", zap.String("path", path), zap.Error(parseErr))
			}
			continue
		}
		n, addErr := ld.service.AddDocuments(ctx, []models.Document{doc})
		if addErr != nil {
			return files, chunks, addErr
		}
		files++
		chunks += n
	}
	return files, chunks, nil
}

func extensionAllowed(ext string, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	extNorm := strings.ToLower(strings.TrimPrefix(ext, "."))
	for _, a := range allowed {
		if strings.ToLower(strings.TrimPrefix(a, ".")) == extNorm {
			return true
		}
	}
	return false
}

// fileDocID returns a stable document id for an absolute path, so
// re-ingesting a file maps to the same parent document.
func fileDocID(absPath string) string {
	hash := sha256.Sum256([]byte(filepath.Clean(absPath)))
	return "file:" + hex.EncodeToString(hash[:])
}

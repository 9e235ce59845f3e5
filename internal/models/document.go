// Package models defines core data structures for documents, chunks, and query results.
package models

// Document is one logical source document supplied by an upstream source
// (filing text, news snippet, free-text note). Sections, when present, are
// chunked independently of the full text.
type Document struct {
	ID       string            `json:"id,omitempty"`
	Text     string            `json:"text"`
	Sections map[string]string `json:"sections,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Chunk is the indexable unit of text produced by the chunker. Within the
// index, a chunk's position equals its dense id (entries[i] has id i).
type Chunk struct {
	Text          string            `json:"text"`
	DocumentID    string            `json:"document_id"`
	ChunkSequence int               `json:"chunk_sequence"`
	SectionLabel  string            `json:"section_label,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// ScoredChunk is a single query hit: the chunk plus its cosine similarity.
type ScoredChunk struct {
	Chunk Chunk   `json:"chunk"`
	Score float64 `json:"score"`
}

// IndexStats describes the current state of the index. A pure read used for
// health and monitoring.
type IndexStats struct {
	TotalDocuments  int   `json:"total_documents"`
	VectorDimension int   `json:"vector_dimension"`
	IndexSizeBytes  int64 `json:"index_size_bytes,omitempty"`
}

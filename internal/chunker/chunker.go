// Package chunker splits documents into bounded-length, overlap-free chunks.
package chunker

import (
	"sort"
	"strings"

	"github.com/finsight/docindex/internal/models"
)

// Chunker converts one logical document into indexable chunks: the full text
// is windowed with maxWordsFullText, and each section is windowed
// independently with maxWordsSection. Sections deliberately duplicate
// full-text content; the two views serve different retrieval granularities.
type Chunker struct {
	maxWordsFullText int
	maxWordsSection  int
}

// NewChunker creates a chunker with the given word-window sizes.
// Non-positive sizes fall back to the defaults (1000 full text, 500 section).
func NewChunker(maxWordsFullText, maxWordsSection int) *Chunker {
	if maxWordsFullText <= 0 {
		maxWordsFullText = 1000
	}
	if maxWordsSection <= 0 {
		maxWordsSection = 500
	}
	return &Chunker{
		maxWordsFullText: maxWordsFullText,
		maxWordsSection:  maxWordsSection,
	}
}

// Split chunks doc into an ordered list: full-text chunks first, then section
// chunks grouped by section name in lexical order (map iteration would not be
// deterministic). Empty or whitespace-only text degrades to fewer chunks,
// never an error. Each chunk carries the document's metadata map by reference.
func (c *Chunker) Split(doc models.Document) []models.Chunk {
	chunks := make([]models.Chunk, 0)
	chunks = append(chunks, windows(doc.Text, c.maxWordsFullText, doc.ID, "", doc.Metadata)...)

	names := make([]string, 0, len(doc.Sections))
	for name := range doc.Sections {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		chunks = append(chunks, windows(doc.Sections[name], c.maxWordsSection, doc.ID, name, doc.Metadata)...)
	}
	return chunks
}

// windows splits text into consecutive non-overlapping word windows of at
// most maxWords, numbering them from 0. Blank text yields no chunks.
func windows(text string, maxWords int, docID, section string, metadata map[string]string) []models.Chunk {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	chunks := make([]models.Chunk, 0, (len(words)+maxWords-1)/maxWords)
	seq := 0
	for i := 0; i < len(words); i += maxWords {
		end := i + maxWords
		if end > len(words) {
			end = len(words)
		}
		chunkText := strings.Join(words[i:end], " ")
		if strings.TrimSpace(chunkText) == "" {
			continue
		}
		chunks = append(chunks, models.Chunk{
			Text:          chunkText,
			DocumentID:    docID,
			ChunkSequence: seq,
			SectionLabel:  section,
			Metadata:      metadata,
		})
		seq++
	}
	return chunks
}

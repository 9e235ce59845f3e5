package retriever

import (
	"context"
	"testing"

	"github.com/finsight/docindex/internal/chunker"
	"github.com/finsight/docindex/internal/embedding"
	"github.com/finsight/docindex/internal/index"
	"github.com/finsight/docindex/internal/models"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	ix := index.New(embedding.NewMockEmbedder(16), 0)
	ch := chunker.NewChunker(1000, 500)
	return NewService(ix, ch, t.TempDir(), "test_docs")
}

func TestAddTextsAndQuery(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	texts := []string{
		"Apple reported record earnings this quarter.",
		"Microsoft stock price increased today.",
		"Tesla faced production challenges in China.",
	}
	metadata := []map[string]string{
		{"source": "news", "company": "Apple"},
		{"source": "news", "company": "Microsoft"},
		{"source": "news", "company": "Tesla"},
	}
	added, err := s.AddTexts(ctx, texts, metadata)
	if err != nil {
		t.Fatal(err)
	}
	if added != 3 {
		t.Fatalf("added = %d", added)
	}

	results, err := s.Query(ctx, texts[0], 2, index.NoScoreThreshold)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results", len(results))
	}
	if results[0].Chunk.Text != texts[0] {
		t.Errorf("top result = %q", results[0].Chunk.Text)
	}
	if results[0].Chunk.Metadata["company"] != "Apple" {
		t.Errorf("metadata lost: %+v", results[0].Chunk.Metadata)
	}
}

func TestAddTextsMetadataMismatch(t *testing.T) {
	s := newTestService(t)
	_, err := s.AddTexts(context.Background(), []string{"a", "b"}, []map[string]string{{"k": "v"}})
	if err == nil {
		t.Error("expected error for metadata/text count mismatch")
	}
}

func TestAddTextsEmpty(t *testing.T) {
	s := newTestService(t)
	added, err := s.AddTexts(context.Background(), nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if added != 0 {
		t.Errorf("added = %d", added)
	}
}

func TestAddDocumentsChunksSections(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	docs := []models.Document{{
		Text: "Full filing body discussing operations and outlook.",
		Sections: map[string]string{
			"Risk Factors": "Supply chain concentration remains a material risk.",
		},
		Metadata: map[string]string{"filing_type": "10-K", "company": "ACME"},
	}}
	added, err := s.AddDocuments(ctx, docs)
	if err != nil {
		t.Fatal(err)
	}
	// One full-text chunk plus one section chunk.
	if added != 2 {
		t.Fatalf("added = %d", added)
	}

	results, err := s.Query(ctx, "Supply chain concentration remains a material risk.", 1, index.NoScoreThreshold)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].Chunk.SectionLabel != "Risk Factors" {
		t.Fatalf("results = %+v", results)
	}
	if results[0].Chunk.DocumentID == "" {
		t.Error("document id should have been assigned")
	}
}

func TestWriteThroughPersistence(t *testing.T) {
	dir := t.TempDir()
	emb := embedding.NewMockEmbedder(16)
	ix := index.New(emb, 0)
	ch := chunker.NewChunker(1000, 500)
	s := NewService(ix, ch, dir, "persist_test")
	ctx := context.Background()

	if _, err := s.AddTexts(ctx, []string{"durable text"}, nil); err != nil {
		t.Fatal(err)
	}

	// A fresh service over the same directory sees the saved state.
	reloaded := index.LoadOrCreate(dir, "persist_test", emb, 0, nil)
	s2 := NewService(reloaded, ch, dir, "persist_test")
	stats := s2.Stats()
	if stats.TotalDocuments != 1 {
		t.Errorf("reloaded total = %d", stats.TotalDocuments)
	}
	if stats.IndexSizeBytes <= 0 {
		t.Errorf("index size bytes = %d", stats.IndexSizeBytes)
	}
}

func TestAutosaveDisabled(t *testing.T) {
	dir := t.TempDir()
	emb := embedding.NewMockEmbedder(16)
	ix := index.New(emb, 0)
	s := NewService(ix, chunker.NewChunker(1000, 500), dir, "bulk", WithAutosave(false))
	ctx := context.Background()

	if _, err := s.AddTexts(ctx, []string{"first"}, nil); err != nil {
		t.Fatal(err)
	}
	if index.DiskUsageBytes(dir, "bulk") != 0 {
		t.Error("autosave disabled but artifacts were written")
	}
	if err := s.Save(); err != nil {
		t.Fatal(err)
	}
	if index.DiskUsageBytes(dir, "bulk") <= 0 {
		t.Error("explicit save wrote nothing")
	}
}

func TestQueryDefaultK(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	texts := make([]string, 8)
	for i := range texts {
		texts[i] = "document number " + string(rune('a'+i))
	}
	if _, err := s.AddTexts(ctx, texts, nil); err != nil {
		t.Fatal(err)
	}
	results, err := s.Query(ctx, "document number a", 0, index.NoScoreThreshold)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 5 {
		t.Errorf("default k should yield 5 results, got %d", len(results))
	}
}

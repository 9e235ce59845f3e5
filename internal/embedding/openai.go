package embedding

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/finsight/docindex/pkg/utils"
)

const (
	openaiMaxRetries = 3
	openaiBaseDelay  = 500 * time.Millisecond
)

// OpenAIEmbedder produces embeddings through the OpenAI embeddings API.
// Batches are sent as a single request; transient failures are retried with
// exponential backoff.
type OpenAIEmbedder struct {
	client     *openai.Client
	model      string
	dimensions int
	cache      *Cache
}

// NewOpenAIEmbedder creates an OpenAI embedder for model with the requested
// output dimensions. The API key is read from OPENAI_API_KEY.
func NewOpenAIEmbedder(model string, dimensions, cacheSize int) (*OpenAIEmbedder, error) {
	key := os.Getenv("OPENAI_API_KEY")
	if key == "" {
		return nil, errors.New("OPENAI_API_KEY environment variable not set")
	}
	if model == "" {
		model = string(openai.SmallEmbedding3)
	}
	return &OpenAIEmbedder{
		client:     openai.NewClient(key),
		model:      model,
		dimensions: dimensions,
		cache:      NewCache(cacheSize),
	}, nil
}

// Embed returns the embedding for a single text, using the cache when available.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if cached, ok := e.cache.Get(text); ok {
		return cached, nil
	}
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds all texts in one API request and returns vectors in input
// order. On error no vectors are returned.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	req := openai.EmbeddingRequest{
		Model:      openai.EmbeddingModel(e.model),
		Input:      texts,
		Dimensions: e.dimensions,
	}

	var resp openai.EmbeddingResponse
	var err error
	for attempt := 0; attempt <= openaiMaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(utils.Backoff(openaiBaseDelay, attempt)):
			}
		}
		resp, err = e.client.CreateEmbeddings(ctx, req)
		if err == nil {
			break
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, fmt.Errorf("create embeddings: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: got %d for %d texts", len(resp.Data), len(texts))
	}

	vectors := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(texts) {
			return nil, fmt.Errorf("embedding index %d out of range", d.Index)
		}
		vec := make([]float32, len(d.Embedding))
		copy(vec, d.Embedding)
		vectors[d.Index] = vec
	}
	for i, v := range vectors {
		if v == nil {
			return nil, fmt.Errorf("missing embedding for text %d", i)
		}
		e.cache.Set(texts[i], v)
	}
	return vectors, nil
}

// Dimensions returns the configured embedding dimension.
func (e *OpenAIEmbedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op for the OpenAI embedder.
func (e *OpenAIEmbedder) Close() error {
	return nil
}

// Package embedding provides text embedding gateways: OpenAI, local ONNX,
// and a deterministic mock for tests.
package embedding

import "context"

// Embedder produces fixed-dimension vector embeddings for text. EmbedBatch
// returns one vector per input text, in order, or an error with no partial
// results.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}

// GatewayError marks a failure of the embedding backend (network, model, or
// timeout). The index wraps embedder errors with it so callers can
// distinguish gateway failures from input validation errors.
type GatewayError struct {
	Err error
}

func (e *GatewayError) Error() string {
	return "embedding gateway: " + e.Err.Error()
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

package embedding

import (
	"fmt"

	"github.com/finsight/docindex/internal/config"
)

// Provider names accepted by NewEmbedder.
const (
	ProviderOpenAI = "openai"
	ProviderONNX   = "onnx"
	ProviderMock   = "mock"
)

// NewEmbedder creates the embedder named by cfg.Provider.
func NewEmbedder(cfg *config.EmbeddingConfig) (Embedder, error) {
	switch cfg.Provider {
	case ProviderOpenAI, "":
		return NewOpenAIEmbedder(cfg.Model, cfg.Dimensions, cfg.CacheSize)
	case ProviderONNX:
		return NewONNXEmbedder(cfg.ModelPath, cfg.Dimensions, cfg.MaxTokens, cfg.CacheSize)
	case ProviderMock:
		return NewMockEmbedder(cfg.Dimensions), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s (supported: openai, onnx, mock)", cfg.Provider)
	}
}

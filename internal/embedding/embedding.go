package embedding

import (
	"context"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// Embedding requests are truncated to stay under the model's token limit.
const maxChars = 30000

// Embedder turns text into a fixed-size semantic vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// OpenAIEmbedder computes embeddings with the OpenAI embeddings API.
type OpenAIEmbedder struct {
	client *openai.Client
	model  openai.EmbeddingModel
	logger *zap.Logger
}

func NewOpenAIEmbedder(apiKey, model string, logger *zap.Logger) *OpenAIEmbedder {
	return &OpenAIEmbedder{
		client: openai.NewClient(apiKey),
		model:  openai.EmbeddingModel(model),
		logger: logger,
	}
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	text = prepare(text)
	if text == "" {
		return nil, nil
	}

	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: e.model,
		Input: []string{text},
	})
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("embedding response contained no data")
	}
	return resp.Data[0].Embedding, nil
}

// EmbedBatch embeds several texts in one API call. The result preserves
// input order; blank inputs get a nil vector without being sent.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	prepared := make([]string, 0, len(texts))
	indices := make([]int, 0, len(texts))
	for i, text := range texts {
		if t := prepare(text); t != "" {
			prepared = append(prepared, t)
			indices = append(indices, i)
		}
	}

	results := make([][]float32, len(texts))
	if len(prepared) == 0 {
		return results, nil
	}

	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: e.model,
		Input: prepared,
	})
	if err != nil {
		return nil, fmt.Errorf("batch embedding request failed: %w", err)
	}
	if len(resp.Data) != len(prepared) {
		return nil, fmt.Errorf("batch embedding returned %d vectors for %d inputs", len(resp.Data), len(prepared))
	}

	for j, data := range resp.Data {
		results[indices[j]] = data.Embedding
	}
	return results, nil
}

func prepare(text string) string {
	text = strings.TrimSpace(text)
	if len(text) > maxChars {
		text = text[:maxChars]
	}
	return text
}

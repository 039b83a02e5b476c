package embedding

import (
	"context"
	"errors"
	"fmt"

	goopenai "github.com/sashabaranov/go-openai"

	"document-novelty/internal/config"
	"document-novelty/internal/models"
)

// embeddingsAPI is the part of the go-openai client used here
type embeddingsAPI interface {
	CreateEmbeddings(ctx context.Context, conv goopenai.EmbeddingRequestConverter) (goopenai.EmbeddingResponse, error)
}

// OpenAINativeProvider talks to the OpenAI embeddings API directly
type OpenAINativeProvider struct {
	client    embeddingsAPI
	model     string
	batchSize int
}

func NewOpenAINativeEmbedder(llmConfig *config.LLMConfig) (*OpenAINativeProvider, error) {
	key := llmConfig.APIKey()
	if key == "" {
		return nil, errors.New("openai api key is not set")
	}
	clientConfig := goopenai.DefaultConfig(key)
	if llmConfig.BaseURL != "" {
		clientConfig.BaseURL = llmConfig.BaseURL
	}
	return &OpenAINativeProvider{
		client:    goopenai.NewClientWithConfig(clientConfig),
		model:     llmConfig.Model,
		batchSize: llmConfig.BatchSize,
	}, nil
}

func (p *OpenAINativeProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	batch := p.batchSize
	if batch <= 0 {
		batch = len(texts)
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += batch {
		end := min(start+batch, len(texts))
		vectors, err := p.embedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, models.NewProviderError(config.ProviderOpenAINative, "embed", err)
		}
		out = append(out, vectors...)
	}
	if err := validateBatch(len(texts), out); err != nil {
		return nil, models.NewProviderError(config.ProviderOpenAINative, "embed", err)
	}
	return out, nil
}

func (p *OpenAINativeProvider) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := p.client.CreateEmbeddings(ctx, goopenai.EmbeddingRequest{
		Model: goopenai.EmbeddingModel(p.model),
		Input: texts,
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("received %d embeddings for %d texts", len(resp.Data), len(texts))
	}

	// the API reports the input position of each embedding
	vectors := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(texts) || vectors[d.Index] != nil {
			return nil, fmt.Errorf("unexpected embedding index %d", d.Index)
		}
		v := make([]float32, len(d.Embedding))
		for i := range d.Embedding {
			v[i] = float32(d.Embedding[i])
		}
		vectors[d.Index] = v
	}
	return vectors, nil
}

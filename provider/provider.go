package provider

import (
	"context"
	"errors"
	"time"

	openai_provider "github.com/opsrig/rootcause/provider/openai"
)

// Client identifies an LLM provider implementation.
type Client string

const (
	OpenAI    Client = "openai"
	Anthropic Client = "anthropic"
)

// Provider is the interface all LLM implementations satisfy: chat
// completion for answer generation and embeddings for semantic ranking.
type Provider interface {
	Complete(ctx context.Context, system, user string) (string, error)
	CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error)
}

// Options configures a provider client.
type Options struct {
	APIKey          string
	CompletionModel string
	EmbeddingModel  string
	Temperature     float64
	MaxTokens       int
	Timeout         time.Duration
}

// New creates an LLM client for the given provider.
func New(client Client, opts Options) (Provider, error) {
	switch client {
	case OpenAI:
		if opts.APIKey == "" {
			return nil, errors.New("openai api key not configured")
		}
		if opts.CompletionModel == "" {
			opts.CompletionModel = "gpt-4o-mini"
		}
		if opts.EmbeddingModel == "" {
			opts.EmbeddingModel = "text-embedding-3-small"
		}
		if opts.Timeout <= 0 {
			opts.Timeout = 30 * time.Second
		}
		return openai_provider.NewClient(
			opts.APIKey,
			opts.CompletionModel,
			opts.EmbeddingModel,
			opts.Temperature,
			opts.MaxTokens,
			opts.Timeout,
		), nil
	case Anthropic:
		return nil, errors.New("anthropic client not implemented yet")
	default:
		return nil, errors.New("unsupported LLM provider")
	}
}

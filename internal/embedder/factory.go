package embedder

import (
	"fmt"
	"os"
	"strings"
)

// Config holds embedder configuration
type Config struct {
	Provider    string // jina, openai, local; empty auto-detects
	APIKey      string
	CacheSize   int
	MaxAttempts int
}

// New creates an embedder. An empty provider is resolved with DetectProvider.
func New(cfg Config) (Embedder, error) {
	var cache *Cache
	if cfg.CacheSize > 0 {
		cache = NewCache(cfg.CacheSize)
	}

	retry := DefaultRetryConfig()
	if cfg.MaxAttempts > 0 {
		retry.MaxAttempts = cfg.MaxAttempts
	}

	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if provider == "" || provider == "auto" {
		provider = DetectProvider()
	}

	var (
		emb Embedder
		err error
	)
	switch provider {
	case ProviderJina:
		emb, err = asEmbedder(NewJinaProvider(cfg.APIKey, cache, retry))
	case ProviderOpenAI:
		emb, err = asEmbedder(NewOpenAIProvider(cfg.APIKey, cache, retry))
	case ProviderLocal:
		emb, err = NewLocalProvider(cache)
	default:
		return nil, fmt.Errorf("%w: unknown provider %s", ErrUnsupportedModel, cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	return emb, nil
}

// asEmbedder keeps a failed constructor from producing a non-nil interface around a nil pointer
func asEmbedder(p *APIProvider, err error) (Embedder, error) {
	if err != nil {
		return nil, err
	}
	return p, nil
}

// DetectProvider returns the provider that would be used based on current environment.
// Priority:
// 1. SEMINDEX_EMBEDDING_PROVIDER (jina, openai, local)
// 2. API keys: JINA_API_KEY, OPENAI_API_KEY
// 3. local
func DetectProvider() string {
	provider := os.Getenv(EnvProvider)
	if provider != "" {
		return strings.ToLower(provider)
	}

	if os.Getenv(EnvJinaAPIKey) != "" {
		return ProviderJina
	}
	if os.Getenv(EnvOpenAIAPIKey) != "" {
		return ProviderOpenAI
	}

	return ProviderLocal
}

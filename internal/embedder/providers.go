package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// Provider names
const (
	ProviderJina   = "jina"
	ProviderOpenAI = "openai"
	ProviderLocal  = "local"
)

// Environment variables read by the providers
const (
	EnvProvider     = "SEMINDEX_EMBEDDING_PROVIDER"
	EnvJinaAPIKey   = "JINA_API_KEY"
	EnvOpenAIAPIKey = "OPENAI_API_KEY"
)

// Default models
const (
	DefaultJinaModel   = "jina-embeddings-v3"
	DefaultOpenAIModel = "text-embedding-3-small"
)

// API endpoints
const (
	JinaEndpoint   = "https://api.jina.ai/v1/embeddings"
	OpenAIEndpoint = "https://api.openai.com/v1/embeddings"
)

// Embedding dimensions
const (
	JinaDimension   = 1024
	OpenAIDimension = 1536
	LocalDimension  = 384
)

// MaxBatchSize is the largest number of texts sent in one API request.
// Larger batches are split and reassembled in order.
const MaxBatchSize = 100

// Backoff timing used when retries are enabled
const (
	InitialBackoffMs  = 100
	MaxBackoffMs      = 5000
	BackoffMultiplier = 2.0
)

// APIConfig describes an OpenAI-compatible embeddings endpoint
type APIConfig struct {
	Name      string // Provider name reported by Provider()
	Endpoint  string
	APIKey    string
	Model     string
	Dimension int
	BatchSize int // Texts per request; defaults to MaxBatchSize
	Retry     RetryConfig
	Timeout   time.Duration
	// ExtraBody is merged into every request body, e.g. Jina's task type
	ExtraBody map[string]interface{}
}

// APIProvider calls a remote embeddings API speaking the OpenAI request/response shape.
// Jina and OpenAI are both served by this type.
type APIProvider struct {
	cfg        APIConfig
	httpClient *http.Client
	cache      *Cache
}

// NewAPIProvider creates a remote provider; APIKey is required
func NewAPIProvider(cfg APIConfig, cache *Cache) (*APIProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: %s API key not provided", ErrInvalidInput, cfg.Name)
	}
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("%w: %s endpoint not provided", ErrInvalidInput, cfg.Name)
	}
	if cfg.Dimension <= 0 {
		return nil, fmt.Errorf("%w: dimension must be positive", ErrInvalidInput)
	}
	if cfg.BatchSize <= 0 || cfg.BatchSize > MaxBatchSize {
		cfg.BatchSize = MaxBatchSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = DefaultRetryConfig()
	}

	return &APIProvider{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		cache:      cache,
	}, nil
}

// NewJinaProvider creates a Jina AI embedding provider.
// An empty apiKey falls back to JINA_API_KEY.
func NewJinaProvider(apiKey string, cache *Cache, retry RetryConfig) (*APIProvider, error) {
	if apiKey == "" {
		apiKey = os.Getenv(EnvJinaAPIKey)
	}
	return NewAPIProvider(APIConfig{
		Name:      ProviderJina,
		Endpoint:  JinaEndpoint,
		APIKey:    apiKey,
		Model:     DefaultJinaModel,
		Dimension: JinaDimension,
		Retry:     retry,
		ExtraBody: map[string]interface{}{"task": "retrieval.passage"},
	}, cache)
}

// NewOpenAIProvider creates an OpenAI embedding provider.
// An empty apiKey falls back to OPENAI_API_KEY.
func NewOpenAIProvider(apiKey string, cache *Cache, retry RetryConfig) (*APIProvider, error) {
	if apiKey == "" {
		apiKey = os.Getenv(EnvOpenAIAPIKey)
	}
	return NewAPIProvider(APIConfig{
		Name:      ProviderOpenAI,
		Endpoint:  OpenAIEndpoint,
		APIKey:    apiKey,
		Model:     DefaultOpenAIModel,
		Dimension: OpenAIDimension,
		Retry:     retry,
	}, cache)
}

// GenerateEmbedding generates a single embedding
func (p *APIProvider) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}

	resp, err := p.GenerateBatch(ctx, BatchEmbeddingRequest{
		Texts: []string{req.Text},
		Model: req.Model,
	})
	if err != nil {
		return nil, err
	}
	return resp.Embeddings[0], nil
}

// GenerateBatch embeds every text, serving repeats from the cache and
// sending the rest in API-sized requests.
func (p *APIProvider) GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	if err := ValidateBatchRequest(req); err != nil {
		return nil, err
	}

	model := req.Model
	if model == "" {
		model = p.cfg.Model
	}

	out := make([]*Embedding, len(req.Texts))
	hashes := make([]string, len(req.Texts))
	var missing []int
	for i, text := range req.Texts {
		hashes[i] = ComputeHash(model + "\x00" + text)
		if p.cache != nil {
			if emb, ok := p.cache.Get(hashes[i]); ok {
				out[i] = emb
				continue
			}
		}
		missing = append(missing, i)
	}

	for start := 0; start < len(missing); start += p.cfg.BatchSize {
		end := start + p.cfg.BatchSize
		if end > len(missing) {
			end = len(missing)
		}
		idx := missing[start:end]
		texts := make([]string, len(idx))
		for j, i := range idx {
			texts[j] = req.Texts[i]
		}

		embeddings, err := retryWithBackoff(ctx, p.cfg.Retry, func() ([]*Embedding, error) {
			return p.callAPI(ctx, texts, model)
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrProviderFailed, p.cfg.Name, err)
		}

		for j, i := range idx {
			emb := embeddings[j]
			emb.Hash = hashes[i]
			out[i] = emb
			if p.cache != nil {
				p.cache.Set(hashes[i], emb)
			}
		}
	}

	return &BatchEmbeddingResponse{
		Embeddings: out,
		Provider:   p.cfg.Name,
		Model:      model,
	}, nil
}

type apiResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

// callAPI makes one request and orders the result by the response's index field
func (p *APIProvider) callAPI(ctx context.Context, texts []string, model string) ([]*Embedding, error) {
	reqBody := map[string]interface{}{
		"input": texts,
		"model": model,
	}
	for k, v := range p.cfg.ExtraBody {
		reqBody[k] = v
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var apiResp apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if len(apiResp.Data) != len(texts) {
		return nil, fmt.Errorf("API returned %d embeddings for %d texts", len(apiResp.Data), len(texts))
	}

	embeddings := make([]*Embedding, len(texts))
	for _, data := range apiResp.Data {
		if data.Index < 0 || data.Index >= len(texts) || embeddings[data.Index] != nil {
			return nil, fmt.Errorf("API returned invalid embedding index %d", data.Index)
		}
		if len(data.Embedding) != p.cfg.Dimension {
			return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(data.Embedding), p.cfg.Dimension)
		}
		embeddings[data.Index] = &Embedding{
			Vector:    NormalizeVector(data.Embedding),
			Dimension: len(data.Embedding),
			Provider:  p.cfg.Name,
			Model:     model,
		}
	}

	return embeddings, nil
}

// Dimension returns the embedding dimension
func (p *APIProvider) Dimension() int {
	return p.cfg.Dimension
}

// Provider returns the provider name
func (p *APIProvider) Provider() string {
	return p.cfg.Name
}

// Model returns the default model name
func (p *APIProvider) Model() string {
	return p.cfg.Model
}

// Close closes idle HTTP connections
func (p *APIProvider) Close() error {
	p.httpClient.CloseIdleConnections()
	return nil
}

package embedder

import (
	"context"
	"hash/fnv"
	"strings"
	"unicode"
)

// LocalModel names the built-in hashing model
const LocalModel = "hashed-tokens-v1"

// LocalProvider embeds text offline by hashing identifier tokens into a
// fixed number of buckets. Texts sharing vocabulary land close together,
// which is enough for keyword-flavoured code search without a network.
type LocalProvider struct {
	dimension int
	cache     *Cache
}

// NewLocalProvider creates a local hashing provider
func NewLocalProvider(cache *Cache) (*LocalProvider, error) {
	return &LocalProvider{
		dimension: LocalDimension,
		cache:     cache,
	}, nil
}

// GenerateEmbedding generates a single embedding
func (l *LocalProvider) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	hash := ComputeHash(req.Text)
	if l.cache != nil {
		if emb, ok := l.cache.Get(hash); ok {
			return emb, nil
		}
	}

	emb := &Embedding{
		Vector:    l.embed(req.Text),
		Dimension: l.dimension,
		Provider:  ProviderLocal,
		Model:     LocalModel,
		Hash:      hash,
	}

	if l.cache != nil {
		l.cache.Set(hash, emb)
	}

	return emb, nil
}

// GenerateBatch generates embeddings for multiple texts
func (l *LocalProvider) GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	if err := ValidateBatchRequest(req); err != nil {
		return nil, err
	}

	embeddings := make([]*Embedding, len(req.Texts))
	for i, text := range req.Texts {
		emb, err := l.GenerateEmbedding(ctx, EmbeddingRequest{Text: text})
		if err != nil {
			return nil, err
		}
		embeddings[i] = emb
	}

	return &BatchEmbeddingResponse{
		Embeddings: embeddings,
		Provider:   ProviderLocal,
		Model:      LocalModel,
	}, nil
}

func (l *LocalProvider) embed(text string) []float32 {
	vector := make([]float32, l.dimension)
	tokens := Tokenize(text)
	if len(tokens) == 0 {
		// Punctuation-only text still needs a unit vector.
		tokens = []string{strings.TrimSpace(text)}
	}

	for _, tok := range tokens {
		h := fnv.New64a()
		_, _ = h.Write([]byte(tok))
		sum := h.Sum64()
		bucket := int(sum % uint64(l.dimension))
		if sum&(1<<63) != 0 {
			vector[bucket]--
		} else {
			vector[bucket]++
		}
	}

	return NormalizeVector(vector)
}

// Tokenize lowercases text and splits it into identifier tokens.
// camelCase and snake_case identifiers also contribute their parts.
func Tokenize(text string) []string {
	words := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})

	var tokens []string
	for _, word := range words {
		parts := splitIdentifier(word)
		tokens = append(tokens, strings.ToLower(word))
		if len(parts) > 1 {
			for _, part := range parts {
				tokens = append(tokens, strings.ToLower(part))
			}
		}
	}
	return tokens
}

func splitIdentifier(word string) []string {
	var parts []string
	var current []rune
	flush := func() {
		if len(current) > 0 {
			parts = append(parts, string(current))
			current = current[:0]
		}
	}

	runes := []rune(word)
	for i, r := range runes {
		switch {
		case r == '_':
			flush()
			continue
		case unicode.IsUpper(r) && i > 0 && !unicode.IsUpper(runes[i-1]):
			flush()
		}
		current = append(current, r)
	}
	flush()
	return parts
}

// Dimension returns the embedding dimension
func (l *LocalProvider) Dimension() int {
	return l.dimension
}

// Provider returns the provider name
func (l *LocalProvider) Provider() string {
	return ProviderLocal
}

// Model returns the model name
func (l *LocalProvider) Model() string {
	return LocalModel
}

// Close is a no-op for the local provider
func (l *LocalProvider) Close() error {
	return nil
}

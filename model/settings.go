package model

import (
	"fmt"
	"strings"
)

// Embedding providers.
const (
	ProviderHugot  = "hugot"
	ProviderOpenAI = "openai"
)

const (
	DefaultChunkSize      = 1000
	DefaultChunkOverlap   = 200
	DefaultEmbeddingModel = "sentence-transformers/all-MiniLM-L6-v2"
	DefaultRetrievalK     = 5
	MaxRetrievalK         = 100
)

// DefaultSeparators are tried in order: paragraph, line, word, character.
var DefaultSeparators = []string{"\n\n", "\n", " ", ""}

type SearchType string

const (
	SearchTypeSimilarity SearchType = "similarity"
	SearchTypeMMR        SearchType = "mmr"
)

// ChunkingConfig controls how extracted text is split.
type ChunkingConfig struct {
	ChunkSize    int      `json:"chunk_size" yaml:"chunk_size"`
	ChunkOverlap int      `json:"chunk_overlap" yaml:"chunk_overlap"`
	Separators   []string `json:"separators" yaml:"separators"`
}

func DefaultChunkingConfig() ChunkingConfig {
	return ChunkingConfig{
		ChunkSize:    DefaultChunkSize,
		ChunkOverlap: DefaultChunkOverlap,
		Separators:   append([]string(nil), DefaultSeparators...),
	}
}

// Validate rejects configs that would make splitting degenerate.
func (c ChunkingConfig) Validate() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("%w: chunk_size must be positive, got %d", ErrInvalidChunkingConfig, c.ChunkSize)
	}
	if c.ChunkOverlap < 0 {
		return fmt.Errorf("%w: chunk_overlap must not be negative, got %d", ErrInvalidChunkingConfig, c.ChunkOverlap)
	}
	if c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("%w: chunk_overlap (%d) must be smaller than chunk_size (%d)", ErrInvalidChunkingConfig, c.ChunkOverlap, c.ChunkSize)
	}
	return nil
}

// Normalized returns a copy with the default separators when none are set
// and the empty separator as the final fallback.
func (c ChunkingConfig) Normalized() ChunkingConfig {
	out := c
	if len(c.Separators) == 0 {
		out.Separators = append([]string(nil), DefaultSeparators...)
		return out
	}
	out.Separators = make([]string, 0, len(c.Separators)+1)
	for _, sep := range c.Separators {
		if sep != "" {
			out.Separators = append(out.Separators, sep)
		}
	}
	out.Separators = append(out.Separators, "")
	return out
}

// ChunkingOverride is a partial chunking config. Unset fields keep the value
// of the config it is applied to.
type ChunkingOverride struct {
	ChunkSize    *int     `json:"chunk_size"`
	ChunkOverlap *int     `json:"chunk_overlap"`
	Separators   []string `json:"separators"`
}

// Apply returns base with the set fields of o replaced.
func (o *ChunkingOverride) Apply(base ChunkingConfig) ChunkingConfig {
	if o == nil {
		return base
	}
	if o.ChunkSize != nil {
		base.ChunkSize = *o.ChunkSize
	}
	if o.ChunkOverlap != nil {
		base.ChunkOverlap = *o.ChunkOverlap
	}
	if len(o.Separators) > 0 {
		base.Separators = append([]string(nil), o.Separators...)
	}
	return base
}

// EmbeddingConfig selects the embedding model.
type EmbeddingConfig struct {
	Provider            string `json:"provider" yaml:"provider"`
	ModelName           string `json:"model_name" yaml:"model_name"`
	Device              string `json:"device" yaml:"device"`
	NormalizeEmbeddings bool   `json:"normalize_embeddings" yaml:"normalize_embeddings"`
}

func DefaultEmbeddingConfig() EmbeddingConfig {
	return EmbeddingConfig{
		Provider:            ProviderHugot,
		ModelName:           DefaultEmbeddingModel,
		Device:              "cpu",
		NormalizeEmbeddings: true,
	}
}

func (c EmbeddingConfig) Validate() error {
	if strings.TrimSpace(c.ModelName) == "" {
		return fmt.Errorf("%w: model_name is required", ErrInvalidSettings)
	}
	switch c.Provider {
	case ProviderHugot:
		if c.Device != "" && c.Device != "cpu" {
			return fmt.Errorf("%w: provider %s only supports device cpu, got %q", ErrInvalidSettings, c.Provider, c.Device)
		}
	case ProviderOpenAI:
	default:
		return fmt.Errorf("%w: unknown embedding provider %q", ErrInvalidSettings, c.Provider)
	}
	return nil
}

// RetrievalConfig controls how many chunks are handed to the generator.
type RetrievalConfig struct {
	K              int        `json:"k" yaml:"k"`
	SearchType     SearchType `json:"search_type" yaml:"search_type"`
	ScoreThreshold *float64   `json:"score_threshold" yaml:"score_threshold"`
}

func DefaultRetrievalConfig() RetrievalConfig {
	return RetrievalConfig{
		K:          DefaultRetrievalK,
		SearchType: SearchTypeSimilarity,
	}
}

func (c RetrievalConfig) Validate() error {
	if c.K < 1 || c.K > MaxRetrievalK {
		return fmt.Errorf("%w: k must be between 1 and %d, got %d", ErrInvalidSettings, MaxRetrievalK, c.K)
	}
	if c.SearchType != SearchTypeSimilarity && c.SearchType != SearchTypeMMR {
		return fmt.Errorf("%w: search_type must be %q or %q, got %q", ErrInvalidSettings, SearchTypeSimilarity, SearchTypeMMR, c.SearchType)
	}
	if c.ScoreThreshold != nil && (*c.ScoreThreshold < 0 || *c.ScoreThreshold > 1) {
		return fmt.Errorf("%w: score_threshold must be between 0 and 1, got %v", ErrInvalidSettings, *c.ScoreThreshold)
	}
	return nil
}

// Settings is the complete runtime configuration of the pipeline.
type Settings struct {
	Chunking  ChunkingConfig  `json:"chunking" yaml:"chunking"`
	Embedding EmbeddingConfig `json:"embedding" yaml:"embedding"`
	Retrieval RetrievalConfig `json:"retrieval" yaml:"retrieval"`
}

func DefaultSettings() Settings {
	return Settings{
		Chunking:  DefaultChunkingConfig(),
		Embedding: DefaultEmbeddingConfig(),
		Retrieval: DefaultRetrievalConfig(),
	}
}

func (s Settings) Validate() error {
	if err := s.Chunking.Validate(); err != nil {
		return err
	}
	if err := s.Embedding.Validate(); err != nil {
		return err
	}
	return s.Retrieval.Validate()
}

package settings

import (
	"errors"
	"log/slog"
	"os"
	"sync"

	"github.com/siherrmann/legalrag/helper"
	"github.com/siherrmann/legalrag/model"
	"gopkg.in/yaml.v3"
)

// Load reads the settings seed file at path. Keys missing from the file keep
// their defaults, a missing file yields the defaults.
func Load(path string) (model.Settings, error) {
	settings := model.DefaultSettings()
	if path == "" {
		return settings, nil
	}

	data, err := os.ReadFile(path) // #nosec G304 -- operator supplied settings file
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return settings, nil
		}
		return settings, helper.NewError("load settings", err)
	}

	if err := yaml.Unmarshal(data, &settings); err != nil {
		return settings, helper.NewError("load settings", err)
	}
	settings.Chunking = settings.Chunking.Normalized()
	if err := settings.Validate(); err != nil {
		return settings, helper.NewError("load settings", err)
	}

	return settings, nil
}

// EmbeddingListener is called after the embedding config changed.
type EmbeddingListener func(cfg model.EmbeddingConfig) error

// Store holds the runtime settings. Updates are validated and live until the
// process exits.
type Store struct {
	mu        sync.RWMutex
	settings  model.Settings
	listeners []EmbeddingListener
	logger    *slog.Logger
}

// NewStore creates a store seeded with settings.
func NewStore(settings model.Settings, logger *slog.Logger) (*Store, error) {
	if err := settings.Validate(); err != nil {
		return nil, helper.NewError("settings store", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	settings.Chunking = settings.Chunking.Normalized()

	return &Store{
		settings: copySettings(settings),
		logger:   logger,
	}, nil
}

// Get returns a copy of all settings.
func (s *Store) Get() model.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copySettings(s.settings)
}

func (s *Store) Chunking() model.ChunkingConfig {
	return s.Get().Chunking
}

func (s *Store) Embedding() model.EmbeddingConfig {
	return s.Get().Embedding
}

func (s *Store) Retrieval() model.RetrievalConfig {
	return s.Get().Retrieval
}

// UpdateChunking replaces the default chunking config and returns the
// previous and the new one.
func (s *Store) UpdateChunking(cfg model.ChunkingConfig) (model.ChunkingConfig, model.ChunkingConfig, error) {
	if err := cfg.Validate(); err != nil {
		return model.ChunkingConfig{}, model.ChunkingConfig{}, err
	}
	cfg = cfg.Normalized()

	s.mu.Lock()
	previous := copySettings(s.settings).Chunking
	s.settings.Chunking = cfg
	s.mu.Unlock()

	s.logger.Info("Chunking configuration updated", slog.Int("chunk_size", cfg.ChunkSize), slog.Int("chunk_overlap", cfg.ChunkOverlap))
	return previous, copyChunking(cfg), nil
}

// UpdateEmbedding replaces the embedding config and notifies the listeners.
func (s *Store) UpdateEmbedding(cfg model.EmbeddingConfig) (model.EmbeddingConfig, model.EmbeddingConfig, error) {
	if err := cfg.Validate(); err != nil {
		return model.EmbeddingConfig{}, model.EmbeddingConfig{}, err
	}

	s.mu.Lock()
	previous := s.settings.Embedding
	s.settings.Embedding = cfg
	listeners := append([]EmbeddingListener(nil), s.listeners...)
	s.mu.Unlock()

	s.logger.Info("Embedding configuration updated", slog.String("previous_model", previous.ModelName), slog.String("model", cfg.ModelName))

	for _, listener := range listeners {
		if err := listener(cfg); err != nil {
			s.logger.Warn("Embedding listener failed", slog.String("error", err.Error()))
		}
	}

	return previous, cfg, nil
}

// UpdateRetrieval replaces the retrieval config.
func (s *Store) UpdateRetrieval(cfg model.RetrievalConfig) (model.RetrievalConfig, model.RetrievalConfig, error) {
	if err := cfg.Validate(); err != nil {
		return model.RetrievalConfig{}, model.RetrievalConfig{}, err
	}
	cfg = copyRetrieval(cfg)

	s.mu.Lock()
	previous := s.settings.Retrieval
	s.settings.Retrieval = cfg
	s.mu.Unlock()

	s.logger.Info("Retrieval configuration updated", slog.Int("k", cfg.K), slog.String("search_type", string(cfg.SearchType)))
	return previous, copyRetrieval(cfg), nil
}

// OnEmbeddingChange registers listener for embedding config updates.
func (s *Store) OnEmbeddingChange(listener EmbeddingListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, listener)
}

func copySettings(settings model.Settings) model.Settings {
	settings.Chunking = copyChunking(settings.Chunking)
	settings.Retrieval = copyRetrieval(settings.Retrieval)
	return settings
}

func copyChunking(cfg model.ChunkingConfig) model.ChunkingConfig {
	cfg.Separators = append([]string(nil), cfg.Separators...)
	return cfg
}

func copyRetrieval(cfg model.RetrievalConfig) model.RetrievalConfig {
	if cfg.ScoreThreshold != nil {
		threshold := *cfg.ScoreThreshold
		cfg.ScoreThreshold = &threshold
	}
	return cfg
}

package server

import (
	"math"

	"github.com/gofiber/fiber/v2"
	"github.com/siherrmann/legalrag/model"
)

// MaxSequenceLength is the token limit of the default embedding model.
const MaxSequenceLength = 256

// RebuildMinutesPerFile is the rough rebuild time of a single PDF.
const RebuildMinutesPerFile = 0.5

var alternativeModels = []string{
	"sentence-transformers/all-mpnet-base-v2 (768 dim, better quality)",
	"sentence-transformers/paraphrase-multilingual-MiniLM-L12-v2 (384 dim, multilingual)",
}

func (s *Server) getConfig(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":         "success",
		"configurations": s.settings.Get(),
	})
}

func (s *Server) getChunking(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":       "success",
		"chunk_config": s.settings.Chunking(),
		"recommendations": fiber.Map{
			"small_documents": model.ChunkingConfig{ChunkSize: 500, ChunkOverlap: 100},
			"large_documents": model.ChunkingConfig{ChunkSize: 1500, ChunkOverlap: 300},
		},
	})
}

func (s *Server) putChunking(c *fiber.Ctx) error {
	var cfg model.ChunkingConfig
	if err := c.BodyParser(&cfg); err != nil {
		return badRequest(err)
	}

	previous, current, err := s.settings.UpdateChunking(cfg)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"status":          "success",
		"message":         "Default chunking configuration updated",
		"previous_config": previous,
		"new_config":      current,
		"note":            "Existing documents not affected. Use /reprocess to update them.",
	})
}

func (s *Server) getEmbedding(c *fiber.Ctx) error {
	var dimension *int
	if s.embedder.Loaded() {
		if d, err := s.embedder.Dimension(c.UserContext()); err == nil {
			dimension = &d
		}
	}

	cfg := s.settings.Embedding()
	return c.JSON(fiber.Map{
		"status": "success",
		"embedding_config": fiber.Map{
			"provider":             cfg.Provider,
			"model_name":           cfg.ModelName,
			"device":               cfg.Device,
			"normalize_embeddings": cfg.NormalizeEmbeddings,
			"embedding_dimension":  dimension,
			"max_sequence_length":  MaxSequenceLength,
		},
		"alternative_models": alternativeModels,
	})
}

func (s *Server) putEmbedding(c *fiber.Ctx) error {
	cfg := s.settings.Embedding()
	if err := c.BodyParser(&cfg); err != nil {
		return badRequest(err)
	}

	previous, current, err := s.settings.UpdateEmbedding(cfg)
	if err != nil {
		return err
	}

	pdfs, err := s.indexer.Library().CountPDFs()
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"status":         "warning",
		"message":        "Embedding model changed successfully",
		"previous_model": previous,
		"new_model":      current,
		"action_required": fiber.Map{
			"warning":                        "Existing embeddings incompatible with new model",
			"required_action":                "Call POST /vectorstore/rebuild to regenerate all embeddings",
			"estimated_rebuild_time_minutes": estimateMinutes(pdfs),
		},
	})
}

func (s *Server) getRetrieval(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":           "success",
		"retrieval_config": s.settings.Retrieval(),
		"description": fiber.Map{
			"k":               "Number of chunks returned to LLM",
			"search_type":     "similarity (cosine) or mmr (maximal marginal relevance)",
			"score_threshold": "Minimum similarity score (null = no threshold)",
		},
	})
}

func (s *Server) putRetrieval(c *fiber.Ctx) error {
	var cfg model.RetrievalConfig
	if err := c.BodyParser(&cfg); err != nil {
		return badRequest(err)
	}
	if cfg.SearchType == "" {
		cfg.SearchType = model.SearchTypeSimilarity
	}

	previous, current, err := s.settings.UpdateRetrieval(cfg)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"status":          "success",
		"message":         "Retrieval configuration updated",
		"previous_config": previous,
		"new_config":      current,
	})
}

func estimateMinutes(files int) float64 {
	return math.Round(float64(files)*RebuildMinutesPerFile*10) / 10
}

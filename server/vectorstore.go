package server

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/siherrmann/legalrag/core/pipeline"
	"github.com/siherrmann/legalrag/model"
)

type searchRequest struct {
	Query          string   `json:"query"`
	K              *int     `json:"k"`
	ScoreThreshold *float64 `json:"score_threshold"`
}

type rebuildRequest struct {
	Confirm      bool `json:"confirm"`
	ChunkSize    *int `json:"chunk_size"`
	ChunkOverlap *int `json:"chunk_overlap"`
}

type clearRequest struct {
	Confirm string `json:"confirm"`
}

func (s *Server) stats(c *fiber.Ctx) error {
	report, err := s.indexer.Stats(c.UserContext())
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"status":            "success",
		"vectorstore_stats": report.Store,
		"documents_by_type": report.DocumentsByType,
		"health":            report.Health,
	})
}

func (s *Server) search(c *fiber.Ctx) error {
	if s.engine == nil {
		return fmt.Errorf("%w: vector store not available", model.ErrServiceUnavailable)
	}

	var req searchRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(err)
	}
	k := model.DefaultRetrievalK
	if req.K != nil {
		k = *req.K
	}

	start := time.Now()
	results, err := s.engine.Search(c.UserContext(), req.Query, k, req.ScoreThreshold)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"status":         "success",
		"query":          req.Query,
		"results_count":  len(results),
		"results":        results,
		"search_time_ms": model.Round(float64(time.Since(start).Microseconds())/1000, 2),
	})
}

func (s *Server) startRebuild(c *fiber.Ctx) error {
	var req rebuildRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(err)
	}

	var override *model.ChunkingConfig
	if req.ChunkSize != nil || req.ChunkOverlap != nil {
		cfg := s.settings.Chunking()
		if req.ChunkSize != nil {
			cfg.ChunkSize = *req.ChunkSize
		}
		if req.ChunkOverlap != nil {
			cfg.ChunkOverlap = *req.ChunkOverlap
		}
		override = &cfg
	}

	job, err := s.indexer.StartRebuild(c.UserContext(), pipeline.RebuildRequest{
		Confirm:     req.Confirm,
		ChunkConfig: override,
	})
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"status":                 model.JobStatusProcessing,
		"message":                "Vector store rebuild initiated",
		"job_id":                 job.ID,
		"pdfs_to_process":        job.TotalFiles,
		"estimated_time_minutes": estimateMinutes(job.TotalFiles),
		"status_check_url":       "/vectorstore/rebuild/" + job.ID,
		"started_at":             job.StartedAt,
	})
}

func (s *Server) listRebuilds(c *fiber.Ctx) error {
	jobs := s.indexer.Jobs().List()
	return c.JSON(fiber.Map{
		"status": "success",
		"total":  len(jobs),
		"jobs":   jobs,
	})
}

func (s *Server) rebuildStatus(c *fiber.Ctx) error {
	job, err := s.indexer.Jobs().Get(c.Params("job_id"))
	if err != nil {
		return err
	}
	return c.JSON(rebuildStatusBody(job))
}

func (s *Server) cancelRebuild(c *fiber.Ctx) error {
	job, err := s.indexer.CancelRebuild(c.Params("job_id"))
	if err != nil {
		return err
	}

	message := "Rebuild cancellation requested"
	if job.Terminal() {
		message = "Rebuild already finished"
	}
	return c.JSON(fiber.Map{
		"status":     job.Status,
		"job_id":     job.ID,
		"message":    message,
		"started_at": job.StartedAt,
	})
}

// rebuildStatusBody renders a job record for pollers.
func rebuildStatusBody(job *model.RebuildJob) fiber.Map {
	switch job.Status {
	case model.JobStatusCompleted:
		return fiber.Map{
			"status":  job.Status,
			"job_id":  job.ID,
			"message": "Vector store rebuild completed successfully",
			"final_statistics": fiber.Map{
				"pdfs_processed":     job.Processed,
				"total_chunks":       job.TotalChunks,
				"total_embeddings":   job.TotalChunks,
				"failed_files":       job.FailedFiles,
				"total_time_minutes": model.Round(job.Elapsed().Minutes(), 2),
			},
			"completed_at": job.CompletedAt,
		}
	case model.JobStatusFailed:
		return fiber.Map{
			"status":       job.Status,
			"job_id":       job.ID,
			"error":        job.Error,
			"completed_at": job.CompletedAt,
		}
	default:
		return fiber.Map{
			"status": job.Status,
			"job_id": job.ID,
			"progress": fiber.Map{
				"processed":    job.Processed,
				"total":        job.TotalFiles,
				"percentage":   job.Percentage(),
				"current_file": job.CurrentFile,
				"current_step": "generating_embeddings",
			},
			"statistics": fiber.Map{
				"total_chunks_created":       job.TotalChunks,
				"total_embeddings_generated": job.TotalChunks,
				"failed_files":               job.FailedFiles,
			},
			"elapsed_time_minutes": model.Round(job.Elapsed().Minutes(), 2),
		}
	}
}

func (s *Server) clear(c *fiber.Ctx) error {
	var req clearRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(err)
	}

	report, err := s.indexer.ClearIndex(c.UserContext(), req.Confirm)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"status":                     "success",
		"message":                    "All embeddings deleted from vector store",
		"chunks_deleted":             report.ChunksDeleted,
		"pdfs_preserved":             report.PDFsPreserved,
		"vectorstore_size_before_mb": report.SizeBeforeMB,
		"vectorstore_size_after_mb":  report.SizeAfterMB,
	})
}

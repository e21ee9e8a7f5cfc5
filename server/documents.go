package server

import (
	"fmt"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/siherrmann/legalrag/core/pipeline"
	"github.com/siherrmann/legalrag/model"
)

type deleteDocumentRequest struct {
	Filename string `json:"filename"`
	Folder   string `json:"folder"`
}

type reprocessRequest struct {
	Filename    string                  `json:"filename"`
	Folder      string                  `json:"folder"`
	ChunkConfig *model.ChunkingOverride `json:"chunk_config"`
}

func (s *Server) upload(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Failed to get file")
	}
	documentType := c.FormValue("document_type")
	if documentType == "" {
		return fiber.NewError(fiber.StatusBadRequest, "document_type is required")
	}
	override, err := s.formChunkConfig(c)
	if err != nil {
		return err
	}

	content, err := file.Open()
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to open file")
	}
	defer content.Close()

	report, err := s.indexer.Ingest(c.UserContext(), pipeline.UploadRequest{
		Filename:     file.Filename,
		DocumentType: documentType,
		Content:      content,
		ChunkConfig:  override,
	})
	if err != nil {
		return err
	}

	message := "Document uploaded and processed successfully"
	if report.Stats.Partial {
		message = "Document uploaded but only partially indexed"
	}
	resp := fiber.Map{
		"status":                  "success",
		"message":                 message,
		"filename":                report.Filename,
		"saved_path":              report.SavedPath,
		"processing_stats":        report.Stats,
		"chunk_config_used":       report.ChunkConfig,
		"chunks_replaced":         report.ChunksReplaced,
		"processing_time_seconds": report.ProcessingSeconds,
	}
	if report.Error != "" {
		resp["error"] = report.Error
	}
	return c.JSON(resp)
}

// formChunkConfig returns the default chunking config with the chunk_size
// and chunk_overlap form values applied, or nil when neither is set.
func (s *Server) formChunkConfig(c *fiber.Ctx) (*model.ChunkingConfig, error) {
	size, overlap := c.FormValue("chunk_size"), c.FormValue("chunk_overlap")
	if size == "" && overlap == "" {
		return nil, nil
	}

	cfg := s.settings.Chunking()
	if size != "" {
		value, err := strconv.Atoi(size)
		if err != nil {
			return nil, fmt.Errorf("%w: chunk_size must be an integer, got %q", model.ErrInvalidChunkingConfig, size)
		}
		cfg.ChunkSize = value
	}
	if overlap != "" {
		value, err := strconv.Atoi(overlap)
		if err != nil {
			return nil, fmt.Errorf("%w: chunk_overlap must be an integer, got %q", model.ErrInvalidChunkingConfig, overlap)
		}
		cfg.ChunkOverlap = value
	}
	return &cfg, nil
}

func (s *Server) listDocuments(c *fiber.Ctx) error {
	list, err := s.indexer.ListDocuments(c.UserContext(), c.Query("folder"))
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"status":          "success",
		"total_documents": len(list.Documents),
		"documents":       list.Documents,
		"summary":         list.Summary,
	})
}

func (s *Server) deleteDocument(c *fiber.Ctx) error {
	var req deleteDocumentRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(err)
	}
	if req.Filename == "" {
		return fiber.NewError(fiber.StatusBadRequest, "filename is required")
	}

	report, err := s.indexer.DeleteDocument(c.UserContext(), req.Filename, req.Folder)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"status":              "success",
		"message":             "Document and embeddings deleted successfully",
		"file_deleted":        report.FileDeleted,
		"chunks_removed":      report.ChunksRemoved,
		"disk_space_freed_mb": report.DiskFreedMB,
	})
}

func (s *Server) reprocess(c *fiber.Ctx) error {
	var req reprocessRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(err)
	}
	if req.Filename == "" {
		return fiber.NewError(fiber.StatusBadRequest, "filename is required")
	}

	var override *model.ChunkingConfig
	if req.ChunkConfig != nil {
		cfg := req.ChunkConfig.Apply(s.settings.Chunking())
		override = &cfg
	}

	report, err := s.indexer.Reprocess(c.UserContext(), pipeline.ReprocessRequest{
		Filename:    req.Filename,
		Folder:      req.Folder,
		ChunkConfig: override,
	})
	if err != nil {
		return err
	}

	message := "Document reprocessed with new chunking settings"
	if report.Partial {
		message = "Document reprocessed but only partially indexed"
	}
	return c.JSON(fiber.Map{
		"status":                  "success",
		"message":                 message,
		"filename":                report.Filename,
		"old_chunks_removed":      report.OldChunksRemoved,
		"new_chunks_added":        report.NewChunksAdded,
		"chunk_comparison":        report.Comparison,
		"processing_time_seconds": report.ProcessingSeconds,
	})
}

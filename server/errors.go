package server

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/siherrmann/legalrag/model"
)

// StatusCode maps an error to its HTTP status.
func StatusCode(err error) int {
	var fiberErr *fiber.Error
	switch {
	case errors.As(err, &fiberErr):
		return fiberErr.Code
	case model.IsValidationError(err):
		return fiber.StatusBadRequest
	case errors.Is(err, model.ErrDocumentNotFound), errors.Is(err, model.ErrJobNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, model.ErrRebuildInProgress), errors.Is(err, model.ErrEmbeddingModelMismatch):
		return fiber.StatusConflict
	case errors.Is(err, model.ErrServiceUnavailable):
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

func (s *Server) handleError(c *fiber.Ctx, err error) error {
	code := StatusCode(err)
	if code >= fiber.StatusInternalServerError {
		s.logger.Error("Request failed", slog.String("method", c.Method()), slog.String("path", c.Path()), slog.Int("status", code), slog.String("error", err.Error()))
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}

func badRequest(err error) error {
	return fiber.NewError(fiber.StatusBadRequest, "invalid request body: "+err.Error())
}

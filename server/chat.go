package server

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/siherrmann/legalrag/model"
)

func (s *Server) chat(c *fiber.Ctx) error {
	if s.answerer == nil {
		return fmt.Errorf("%w: Vector store not available", model.ErrServiceUnavailable)
	}

	var req model.ChatRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(err)
	}

	resp, err := s.answerer.Answer(c.UserContext(), req)
	if err != nil {
		return err
	}
	return c.JSON(resp)
}

func (s *Server) health(c *fiber.Ctx) error {
	report := s.indexer.Health(c.UserContext())
	if report.Status != "healthy" {
		return c.Status(fiber.StatusServiceUnavailable).JSON(report)
	}
	return c.JSON(report)
}

package server

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/siherrmann/legalrag/core/pipeline"
	"github.com/siherrmann/legalrag/core/retrieval"
	"github.com/siherrmann/legalrag/core/settings"
	"github.com/siherrmann/legalrag/helper"
	"github.com/siherrmann/legalrag/model"
)

// MaxUploadSize is the largest accepted request body.
const MaxUploadSize = 100 * 1024 * 1024

// Services are the collaborators behind the HTTP routes.
type Services struct {
	Indexer  *pipeline.Indexer
	Engine   *retrieval.Engine
	Answerer *retrieval.Answerer
	Settings *settings.Store
	Embedder pipeline.Embedder
}

// Server serves the chat and the admin API.
type Server struct {
	app      *fiber.App
	config   *helper.ServerConfiguration
	indexer  *pipeline.Indexer
	engine   *retrieval.Engine
	answerer *retrieval.Answerer
	settings *settings.Store
	embedder pipeline.Embedder
	logger   *slog.Logger
	now      func() time.Time
}

// NewServer creates the fiber app and registers all routes. Access logs go
// to accessLog, which may be nil.
func NewServer(config *helper.ServerConfiguration, services Services, accessLog io.Writer, logger *slog.Logger) (*Server, error) {
	if config == nil {
		return nil, helper.NewError("server", fmt.Errorf("server configuration is nil"))
	}
	if services.Indexer == nil || services.Settings == nil || services.Embedder == nil {
		return nil, helper.NewError("server", fmt.Errorf("%w: indexer, settings and embedder are required", model.ErrServiceUnavailable))
	}
	if logger == nil {
		logger = slog.Default()
	}
	if accessLog == nil {
		accessLog = io.Discard
	}

	s := &Server{
		config:   config,
		indexer:  services.Indexer,
		engine:   services.Engine,
		answerer: services.Answerer,
		settings: services.Settings,
		embedder: services.Embedder,
		logger:   logger,
		now:      time.Now,
	}

	s.app = fiber.New(fiber.Config{
		AppName:               "legalrag",
		BodyLimit:             MaxUploadSize,
		DisableStartupMessage: true,
		ErrorHandler:          s.handleError,
	})
	s.app.Use(recover.New())
	s.app.Use(cors.New())
	s.app.Use(fiberlogger.New(fiberlogger.Config{Output: accessLog}))

	s.routes()

	if !config.AuthEnabled() {
		logger.Warn("Admin credentials not configured, admin routes are unauthenticated")
	}

	return s, nil
}

func (s *Server) routes() {
	s.app.Get("/", s.root)
	s.app.Get("/health", s.health)
	s.app.Post("/chat", s.chat)
	s.app.Post("/auth/login", s.login)

	admin := s.app.Group("", s.requireAdmin)

	// documents
	admin.Post("/upload", s.upload)
	admin.Get("/documents", s.listDocuments)
	admin.Delete("/documents", s.deleteDocument)
	admin.Post("/reprocess", s.reprocess)

	// configuration
	admin.Get("/config", s.getConfig)
	admin.Get("/config/chunking", s.getChunking)
	admin.Put("/config/chunking", s.putChunking)
	admin.Get("/config/embedding", s.getEmbedding)
	admin.Put("/config/embedding", s.putEmbedding)
	admin.Get("/config/retrieval", s.getRetrieval)
	admin.Put("/config/retrieval", s.putRetrieval)

	// vector store
	admin.Get("/vectorstore/stats", s.stats)
	admin.Post("/vectorstore/search", s.search)
	admin.Post("/vectorstore/rebuild", s.startRebuild)
	admin.Get("/vectorstore/rebuild", s.listRebuilds)
	admin.Get("/vectorstore/rebuild/:job_id", s.rebuildStatus)
	admin.Post("/vectorstore/rebuild/:job_id/cancel", s.cancelRebuild)
	admin.Delete("/vectorstore/clear", s.clear)
}

// App returns the fiber app, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen serves on the configured port until Shutdown is called.
func (s *Server) Listen() error {
	addr := ":" + s.config.Port
	s.logger.Info("Server listening", slog.String("address", addr))
	return s.app.Listen(addr)
}

// Shutdown stops accepting requests and waits for running ones.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) root(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"message": "Indian Legal Assistant API is running"})
}

package legalrag

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/siherrmann/legalrag/core/jobs"
	"github.com/siherrmann/legalrag/core/library"
	"github.com/siherrmann/legalrag/core/pipeline"
	"github.com/siherrmann/legalrag/core/retrieval"
	"github.com/siherrmann/legalrag/core/settings"
	"github.com/siherrmann/legalrag/database"
	"github.com/siherrmann/legalrag/database/memory"
	"github.com/siherrmann/legalrag/helper"
	"github.com/siherrmann/legalrag/server"
)

// ShutdownTimeout bounds the wait for running requests on shutdown.
const ShutdownTimeout = 10 * time.Second

// Options configure a new Assistant. Only Config is required.
type Options struct {
	Config *helper.ServerConfiguration
	// Database selects the PostgreSQL store. Without it chunks are kept in memory.
	Database *helper.DatabaseConfiguration
	// Collection names the chunk collection, database.DefaultCollection by default.
	Collection string
	// BackendFactory loads embedding models. Defaults to hugot and openai backends.
	BackendFactory pipeline.BackendFactory
	// Generator answers chat questions. Defaults to OpenAI when a key is configured.
	Generator retrieval.Generator
	Logger    *slog.Logger
	AccessLog io.Writer
}

// Assistant owns every service of the legal assistant
type Assistant struct {
	DB         *helper.Database
	Store      pipeline.VectorStore
	Settings   *settings.Store
	Embeddings *pipeline.Embeddings
	Library    *library.Library
	Jobs       *jobs.Tracker
	Indexer    *pipeline.Indexer
	Engine     *retrieval.Engine
	Answerer   *retrieval.Answerer
	Server     *server.Server
	// Logging
	log *slog.Logger
}

// NewAssistant creates all services once. With a database configuration the
// embedding model is loaded right away, the chunks table needs its dimension.
func NewAssistant(ctx context.Context, opts Options) (*Assistant, error) {
	if opts.Config == nil {
		return nil, helper.NewError("assistant", fmt.Errorf("server configuration is nil"))
	}
	config := opts.Config

	logger := opts.Logger
	if logger == nil {
		logger = helper.NewLogger(os.Stdout, slog.LevelInfo)
	}

	initial, err := settings.Load(config.SettingsFile)
	if err != nil {
		return nil, helper.NewError("load settings", err)
	}
	settingsStore, err := settings.NewStore(initial, logger)
	if err != nil {
		return nil, helper.NewError("create settings store", err)
	}

	factory := opts.BackendFactory
	if factory == nil {
		factory = pipeline.NewBackendFactory(config.ModelDir, config.OpenAIKey, config.OpenAIBaseURL)
	}
	embeddings, err := pipeline.NewEmbeddings(settingsStore.Embedding(), factory, logger)
	if err != nil {
		return nil, helper.NewError("create embeddings", err)
	}
	settingsStore.OnEmbeddingChange(embeddings.Reconfigure)

	lib, err := library.New(config.DataDir)
	if err != nil {
		return nil, helper.NewError("open library", err)
	}

	a := &Assistant{
		Settings:   settingsStore,
		Embeddings: embeddings,
		Library:    lib,
		Jobs:       jobs.NewTracker(jobs.DefaultMaxJobs, jobs.DefaultRetention),
		log:        logger,
	}

	if err := a.openStore(ctx, opts); err != nil {
		_ = a.Close()
		return nil, err
	}

	a.Indexer, err = pipeline.NewIndexer(a.Store, embeddings, lib, settingsStore, a.Jobs, logger)
	if err != nil {
		_ = a.Close()
		return nil, helper.NewError("create indexer", err)
	}

	a.Engine, err = retrieval.NewEngine(a.Store, embeddings, settingsStore, logger)
	if err != nil {
		_ = a.Close()
		return nil, helper.NewError("create retrieval engine", err)
	}

	generator := opts.Generator
	if generator == nil {
		openAIGenerator, err := retrieval.NewOpenAIGenerator(config.OpenAIKey, config.OpenAIBaseURL, config.ChatModel, config.ChatRPS)
		if err != nil {
			logger.Warn("Answer generation disabled", slog.String("error", err.Error()))
		} else {
			generator = openAIGenerator
		}
	}
	a.Answerer = retrieval.NewAnswerer(a.Engine, generator, logger)

	a.Server, err = server.NewServer(config, server.Services{
		Indexer:  a.Indexer,
		Engine:   a.Engine,
		Answerer: a.Answerer,
		Settings: settingsStore,
		Embedder: embeddings,
	}, opts.AccessLog, logger)
	if err != nil {
		_ = a.Close()
		return nil, helper.NewError("create server", err)
	}

	return a, nil
}

func (a *Assistant) openStore(ctx context.Context, opts Options) error {
	if opts.Database == nil {
		a.Store = memory.NewStore(opts.Collection, 0)
		a.log.Info("Using in-memory vector store")
		return nil
	}

	db, err := helper.NewDatabase("legalrag", opts.Database, a.log)
	if err != nil {
		return helper.NewError("open database", err)
	}
	a.DB = db

	dimension, err := a.Embeddings.Dimension(ctx)
	if err != nil {
		return helper.NewError("embedding dimension", err)
	}

	chunks, err := database.NewChunksDBHandler(db, opts.Collection, dimension, false)
	if err != nil {
		return helper.NewError("create chunks handler", err)
	}
	a.Store = chunks

	return nil
}

// Serve runs the HTTP server until ctx is done.
func (a *Assistant) Serve(ctx context.Context) error {
	errs := make(chan error, 1)
	go func() {
		errs <- a.Server.Listen()
	}()

	select {
	case err := <-errs:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		a.log.Info("Shutting down server")
		if err := a.Server.Shutdown(shutdownCtx); err != nil {
			return helper.NewError("shutdown server", err)
		}
		return <-errs
	}
}

// Close cancels running rebuilds, waits for them and releases the model and
// the database connection.
func (a *Assistant) Close() error {
	var errs []error

	if a.Indexer != nil {
		for _, job := range a.Jobs.List() {
			if !job.Terminal() {
				if _, err := a.Indexer.CancelRebuild(job.ID); err != nil {
					errs = append(errs, err)
				}
			}
		}
		a.Indexer.Wait()
	}
	if a.Embeddings != nil {
		errs = append(errs, a.Embeddings.Close())
	}
	if a.DB != nil {
		errs = append(errs, a.DB.Close())
	}

	return errors.Join(errs...)
}

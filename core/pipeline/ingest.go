package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/siherrmann/legalrag/core/jobs"
	"github.com/siherrmann/legalrag/core/library"
	"github.com/siherrmann/legalrag/core/settings"
	"github.com/siherrmann/legalrag/helper"
	"github.com/siherrmann/legalrag/model"
)

// RebuildLockFile is created in the data directory while a rebuild runs.
const RebuildLockFile = ".rebuild.lock"

// UploadRequest is a document to add to the corpus and the index.
type UploadRequest struct {
	Filename     string
	DocumentType string
	Content      io.Reader
	// ChunkConfig overrides the default chunking config when set.
	ChunkConfig *model.ChunkingConfig
}

// ReprocessRequest re-chunks an indexed document.
type ReprocessRequest struct {
	Filename    string
	Folder      string
	ChunkConfig *model.ChunkingConfig
}

// Indexer owns the document lifecycle: upload, reprocess, delete and full
// rebuilds of the vector store.
type Indexer struct {
	Extractor  ExtractFunc
	NewChunker ChunkerFactory
	BatchSize  int

	store    VectorStore
	embedder Embedder
	library  *library.Library
	settings *settings.Store
	jobs     *jobs.Tracker
	lockPath string
	logger   *slog.Logger
	running  sync.WaitGroup
	// corpus is held for writing by a running rebuild. Uploads, reprocessing,
	// deletes and clears hold it for reading and fail while a rebuild waits
	// for it or runs.
	corpus sync.RWMutex
}

// NewIndexer creates an indexer extracting PDFs and chunking recursively.
func NewIndexer(store VectorStore, embedder Embedder, lib *library.Library, settingsStore *settings.Store, tracker *jobs.Tracker, logger *slog.Logger) (*Indexer, error) {
	if store == nil || embedder == nil || lib == nil || settingsStore == nil || tracker == nil {
		return nil, helper.NewError("indexer", fmt.Errorf("%w: store, embedder, library, settings and job tracker are required", model.ErrServiceUnavailable))
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Indexer{
		Extractor:  ExtractPDF,
		NewChunker: RecursiveChunker,
		BatchSize:  DefaultEmbedBatchSize,
		store:      store,
		embedder:   embedder,
		library:    lib,
		settings:   settingsStore,
		jobs:       tracker,
		lockPath:   filepath.Join(lib.Root(), RebuildLockFile),
		logger:     logger,
	}, nil
}

// SetExtractor sets the document extraction function
func (i *Indexer) SetExtractor(extractor ExtractFunc) {
	i.Extractor = extractor
}

// SetChunkerFactory sets the function building a chunker per chunking config
func (i *Indexer) SetChunkerFactory(factory ChunkerFactory) {
	i.NewChunker = factory
}

// Library returns the corpus the indexer works on.
func (i *Indexer) Library() *library.Library {
	return i.library
}

// Jobs returns the rebuild job tracker.
func (i *Indexer) Jobs() *jobs.Tracker {
	return i.jobs
}

// Ingest saves an uploaded PDF and indexes it. Chunks of a previous upload
// under the same name are replaced. A file whose text cannot be extracted is
// removed again. When embedding or indexing fails half way the report is
// marked partial and carries the number of chunks indexed.
func (i *Indexer) Ingest(ctx context.Context, req UploadRequest) (*model.IngestionReport, error) {
	start := time.Now()

	if !library.IsPDF(req.Filename) {
		return nil, fmt.Errorf("%w: %s", model.ErrUnsupportedFileType, req.Filename)
	}
	if req.Content == nil {
		return nil, fmt.Errorf("%w: file content is required", model.ErrInvalidRequest)
	}
	cfg, chunker, err := i.chunker(req.ChunkConfig)
	if err != nil {
		return nil, err
	}
	release, err := i.acquireCorpus()
	if err != nil {
		return nil, err
	}
	defer release()

	path, _, err := i.library.Save(req.DocumentType, req.Filename, req.Content)
	if err != nil {
		return nil, err
	}

	// The saved file replaced any earlier upload of the same name.
	replaced, err := i.store.DeleteBySource(ctx, path)
	if err != nil {
		return nil, helper.NewError("ingest", err)
	}
	if replaced > 0 {
		i.logger.Info("Replacing chunks of earlier upload", slog.String("path", path), slog.Int("chunks", replaced))
	}

	doc, err := i.Extractor(path)
	if err != nil {
		if removeErr := os.Remove(path); removeErr != nil {
			i.logger.Warn("Error removing unextractable document", slog.String("path", path), slog.String("error", removeErr.Error()))
		}
		return nil, err
	}

	report := &model.IngestionReport{
		Filename:       filepath.Base(path),
		SavedPath:      path,
		ChunkConfig:    cfg,
		ChunksReplaced: replaced,
	}

	result, err := i.pipeline(chunker).Process(ctx, path, doc.Text)
	report.Stats = processingStats(doc, result)
	report.ProcessingSeconds = model.Round(time.Since(start).Seconds(), 2)
	if err != nil {
		report.Stats.Partial = true
		report.Error = err.Error()
		i.logger.Warn("Document indexed partially", slog.String("path", path), slog.Int("chunks_created", result.ChunksCreated), slog.Int("chunks_indexed", result.ChunksIndexed), slog.String("error", err.Error()))
		return report, nil
	}

	i.logger.Info("Document indexed", slog.String("path", path), slog.Int("chunks", result.ChunksIndexed), slog.Float64("seconds", report.ProcessingSeconds))
	return report, nil
}

// Reprocess replaces the chunks of an indexed document with chunks of the
// given config.
func (i *Indexer) Reprocess(ctx context.Context, req ReprocessRequest) (*model.ReprocessReport, error) {
	start := time.Now()

	cfg, chunker, err := i.chunker(req.ChunkConfig)
	if err != nil {
		return nil, err
	}
	release, err := i.acquireCorpus()
	if err != nil {
		return nil, err
	}
	defer release()

	path, err := i.library.Find(req.Filename, req.Folder)
	if err != nil {
		return nil, err
	}

	doc, err := i.Extractor(path)
	if err != nil {
		return nil, err
	}

	oldCount, err := i.store.DeleteBySource(ctx, path)
	if err != nil {
		return nil, helper.NewError("reprocess", err)
	}

	result, err := i.pipeline(chunker).Process(ctx, path, doc.Text)
	report := &model.ReprocessReport{
		Filename:         filepath.Base(path),
		Source:           path,
		OldChunksRemoved: oldCount,
		NewChunksAdded:   result.ChunksIndexed,
		Partial:          err != nil,
		Comparison: model.ChunkComparison{
			OldConfig:        i.settings.Chunking(),
			NewConfig:        cfg,
			ChunksReducedBy:  oldCount - result.ChunksIndexed,
			PercentageChange: model.PercentageChange(oldCount, result.ChunksIndexed),
		},
		ProcessingSeconds: model.Round(time.Since(start).Seconds(), 2),
	}
	if err != nil {
		i.logger.Warn("Document reprocessed partially", slog.String("path", path), slog.Int("chunks_indexed", result.ChunksIndexed), slog.String("error", err.Error()))
		return report, nil
	}

	i.logger.Info("Document reprocessed", slog.String("path", path), slog.Int("old_chunks", oldCount), slog.Int("new_chunks", result.ChunksIndexed))
	return report, nil
}

// DeleteDocument removes a document from the index and from disk.
func (i *Indexer) DeleteDocument(ctx context.Context, filename string, folder string) (*model.DeleteReport, error) {
	release, err := i.acquireCorpus()
	if err != nil {
		return nil, err
	}
	defer release()

	path, err := i.library.Find(filename, folder)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, helper.NewError("delete document", err)
	}

	removed, err := i.store.DeleteBySource(ctx, path)
	if err != nil {
		return nil, helper.NewError("delete document", err)
	}
	if err := os.Remove(path); err != nil {
		return nil, helper.NewError("delete document", err)
	}

	i.logger.Info("Document deleted", slog.String("path", path), slog.Int("chunks", removed))
	return &model.DeleteReport{
		FileDeleted:   path,
		ChunksRemoved: removed,
		BytesFreed:    info.Size(),
		DiskFreedMB:   model.BytesToMB(info.Size()),
	}, nil
}

// ListDocuments lists the PDFs below folder with their index state.
func (i *Indexer) ListDocuments(ctx context.Context, folder string) (*model.DocumentList, error) {
	paths, err := i.library.PDFs(folder)
	if err != nil {
		return nil, err
	}

	sources, err := i.store.Sources(ctx)
	if err != nil {
		return nil, helper.NewError("list documents", err)
	}
	counts := make(map[string]int, len(sources))
	for _, source := range sources {
		counts[source.Source] = source.Chunks
	}

	total, err := i.store.Count(ctx)
	if err != nil {
		return nil, helper.NewError("list documents", err)
	}

	list := &model.DocumentList{
		Documents: make([]*model.DocumentFile, 0, len(paths)),
		Summary:   model.DocumentSummary{TotalChunks: total},
	}
	for _, path := range paths {
		doc, err := model.NewDocumentFile(path)
		if err != nil {
			// Removed while listing.
			continue
		}
		doc.ChunkCount = counts[path]
		doc.InVectorstore = doc.ChunkCount > 0
		if !doc.InVectorstore {
			list.Summary.DocumentsNotIndexed++
		}
		list.Documents = append(list.Documents, doc)
	}
	list.Summary.TotalPDFs = len(list.Documents)

	return list, nil
}

// Stats summarizes the vector store.
func (i *Indexer) Stats(ctx context.Context) (*model.StatsReport, error) {
	total, err := i.store.Count(ctx)
	if err != nil {
		return nil, helper.NewError("stats", err)
	}
	modelCounts, err := i.store.ModelCounts(ctx)
	if err != nil {
		return nil, helper.NewError("stats", err)
	}
	sources, err := i.store.Sources(ctx)
	if err != nil {
		return nil, helper.NewError("stats", err)
	}
	size, err := i.store.StorageSize(ctx)
	if err != nil {
		return nil, helper.NewError("stats", err)
	}

	byType := map[string]model.CategoryStats{}
	for _, source := range sources {
		category := library.CategorizeSource(source.Source)
		stats := byType[category]
		stats.Chunks += source.Chunks
		stats.Documents++
		byType[category] = stats
	}

	activeModel := i.embedder.Model()
	mismatch := HasForeignModel(modelCounts, activeModel)
	status := "healthy"
	if mismatch {
		status = "rebuild_required"
	}

	return &model.StatsReport{
		Store: model.StoreStats{
			CollectionName:     i.collection(),
			TotalChunks:        total,
			TotalDocuments:     len(sources),
			EmbeddingDimension: i.storeDimension(ctx),
			EmbeddingModel:     activeModel,
			EmbeddingModels:    modelCounts,
			StorageSizeMB:      model.BytesToMB(size),
			LastUpdated:        time.Now().UTC(),
		},
		DocumentsByType: byType,
		Health: model.StoreHealth{
			Status:        status,
			IndexBuilt:    total > 0,
			Queryable:     i.store.Ping(ctx) == nil,
			ModelMismatch: mismatch,
		},
	}, nil
}

// Health checks the store, the embedding model and the data directory.
func (i *Indexer) Health(ctx context.Context) *model.HealthReport {
	report := &model.HealthReport{
		Status:     "healthy",
		Timestamp:  time.Now().UTC(),
		Components: map[string]model.ComponentHealth{},
	}

	queryable := i.store.Ping(ctx) == nil
	storeHealth := model.ComponentHealth{Status: "healthy", Queryable: &queryable}
	if !queryable {
		storeHealth.Status = "unhealthy"
		report.Status = "unhealthy"
	}
	if total, err := i.store.Count(ctx); err == nil {
		report.Statistics.TotalChunks = total
	}
	if size, err := i.store.StorageSize(ctx); err == nil {
		report.Statistics.StorageUsedMB = model.BytesToMB(size)
	}
	report.Components["vectorstore"] = storeHealth

	embeddingHealth := model.ComponentHealth{Status: "loaded", Model: i.embedder.Model()}
	if !i.embedder.Loaded() {
		embeddingHealth.Status = "not_loaded"
	}
	report.Components["embedding_model"] = embeddingHealth

	dataHealth := model.ComponentHealth{Status: "accessible", Path: i.library.Root()}
	if count, err := i.library.CountPDFs(); err != nil {
		dataHealth.Status = "inaccessible"
		dataHealth.Error = err.Error()
		report.Status = "unhealthy"
	} else {
		dataHealth.PDFCount = &count
		report.Statistics.TotalPDFs = count
	}
	report.Components["data_folder"] = dataHealth

	return report
}

// ClearIndex removes every chunk from the store. The PDFs are kept. It
// requires confirm to be model.ClearConfirmation.
func (i *Indexer) ClearIndex(ctx context.Context, confirm string) (*model.ClearReport, error) {
	if confirm != model.ClearConfirmation {
		return nil, fmt.Errorf("%w: must confirm with '%s'", model.ErrConfirmationRequired, model.ClearConfirmation)
	}
	release, err := i.acquireCorpus()
	if err != nil {
		return nil, err
	}
	defer release()

	sizeBefore, err := i.store.StorageSize(ctx)
	if err != nil {
		return nil, helper.NewError("clear index", err)
	}
	dimension, err := i.embedder.Dimension(ctx)
	if err != nil {
		return nil, helper.NewError("clear index", err)
	}

	removed, err := i.store.Clear(ctx, dimension)
	if err != nil {
		return nil, helper.NewError("clear index", err)
	}

	sizeAfter, err := i.store.StorageSize(ctx)
	if err != nil {
		return nil, helper.NewError("clear index", err)
	}
	pdfs, err := i.library.CountPDFs()
	if err != nil {
		return nil, err
	}

	i.logger.Warn("Vector store cleared", slog.Int("chunks", removed))
	return &model.ClearReport{
		ChunksDeleted: removed,
		PDFsPreserved: pdfs,
		SizeBeforeMB:  model.BytesToMB(sizeBefore),
		SizeAfterMB:   model.BytesToMB(sizeAfter),
	}, nil
}

// HasForeignModel reports whether counts holds vectors of another model than
// activeModel.
func HasForeignModel(counts map[string]int, activeModel string) bool {
	for name, count := range counts {
		if name != activeModel && count > 0 {
			return true
		}
	}
	return false
}

// acquireCorpus takes the corpus for a single document change. It does not
// wait for a rebuild.
func (i *Indexer) acquireCorpus() (func(), error) {
	if !i.corpus.TryRLock() {
		return nil, model.ErrRebuildInProgress
	}
	return i.corpus.RUnlock, nil
}

func (i *Indexer) chunker(override *model.ChunkingConfig) (model.ChunkingConfig, ChunkFunc, error) {
	cfg := i.settings.Chunking()
	if override != nil {
		cfg = *override
	}
	if err := cfg.Validate(); err != nil {
		return cfg, nil, err
	}
	cfg = cfg.Normalized()

	chunker, err := i.NewChunker(cfg)
	if err != nil {
		return cfg, nil, err
	}
	return cfg, chunker, nil
}

func (i *Indexer) pipeline(chunker ChunkFunc) *Pipeline {
	p := NewPipeline(chunker, i.embedder, i.store)
	p.BatchSize = i.BatchSize
	return p
}

func (i *Indexer) collection() string {
	if c, ok := i.store.(interface{ Collection() string }); ok {
		return c.Collection()
	}
	return "default"
}

func (i *Indexer) storeDimension(ctx context.Context) int {
	if d, ok := i.store.(interface {
		Dimension(ctx context.Context) (int, error)
	}); ok {
		if dimension, err := d.Dimension(ctx); err == nil && dimension > 0 {
			return dimension
		}
	}
	if i.embedder.Loaded() {
		if dimension, err := i.embedder.Dimension(ctx); err == nil {
			return dimension
		}
	}
	return 0
}

func processingStats(doc *ExtractedDocument, result *ProcessingResult) model.ProcessingStats {
	return model.ProcessingStats{
		PagesExtracted:      doc.Pages,
		TotalCharacters:     len([]rune(doc.Text)),
		ChunksCreated:       result.ChunksCreated,
		EmbeddingsGenerated: result.EmbeddingsGenerated,
		ChunksIndexed:       result.ChunksIndexed,
		Partial:             result.Partial(),
		EmbeddingDimension:  result.EmbeddingDimension,
		EmbeddingModel:      result.EmbeddingModel,
	}
}

func isCancelled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, model.ErrRebuildCancelled)
}

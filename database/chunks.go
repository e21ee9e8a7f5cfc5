package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"github.com/siherrmann/legalrag/helper"
	"github.com/siherrmann/legalrag/model"
	loadSql "github.com/siherrmann/legalrag/sql"
)

// DefaultCollection is used when no collection name is given.
const DefaultCollection = "default"

// insertBatchSize is the number of chunks inserted per transaction.
const insertBatchSize = 64

// ChunksDBHandlerFunctions defines the interface for Chunks database operations.
type ChunksDBHandlerFunctions interface {
	Add(ctx context.Context, chunks []*model.Chunk) (int, error)
	DeleteBySource(ctx context.Context, source string) (int, error)
	CountBySource(ctx context.Context, source string) (int, error)
	SimilaritySearch(ctx context.Context, embedding []float32, k int) ([]*model.Chunk, error)
	Count(ctx context.Context) (int, error)
	ModelCounts(ctx context.Context) (map[string]int, error)
	Sources(ctx context.Context) ([]model.SourceCount, error)
	Clear(ctx context.Context, dimension int) (int, error)
	StorageSize(ctx context.Context) (int64, error)
	Ping(ctx context.Context) error
}

// ChunksDBHandler handles chunk-related database operations.
// Writers (add, delete, clear) are serialized per handler, readers share the lock.
type ChunksDBHandler struct {
	db         *helper.Database
	collection string
	mu         sync.RWMutex
	indexType  string
	indexOpts  map[string]interface{}
}

// NewChunksDBHandler creates a new chunks database handler.
// It loads chunk-related SQL functions and creates the chunks table with the
// given embedding dimension. If force is true, it will reload the SQL
// functions even if they already exist.
func NewChunksDBHandler(db *helper.Database, collection string, embeddingDim int, force bool) (*ChunksDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}
	if embeddingDim <= 0 {
		return nil, helper.NewError("embedding dimension validation", fmt.Errorf("embedding dimension must be positive, got %d", embeddingDim))
	}
	if collection == "" {
		collection = DefaultCollection
	}

	chunksDbHandler := &ChunksDBHandler{
		db:         db,
		collection: collection,
		indexType:  IndexTypeHNSW,
	}

	err := loadSql.LoadAllSql(chunksDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load chunks sql", err)
	}

	err = chunksDbHandler.CreateTable(context.Background(), embeddingDim)
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized ChunksDBHandler", slog.String("collection", collection), slog.Int("dimension", embeddingDim))

	return chunksDbHandler, nil
}

// CreateTable creates the 'chunks' table in the database.
// If the table already exists, it does not create it again.
// It also creates the counter table, indexes and triggers.
func (h *ChunksDBHandler) CreateTable(ctx context.Context, embeddingDim int) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_chunks($1);`, embeddingDim)
	if err != nil {
		return helper.NewError("init chunks", err)
	}

	h.db.Logger.Info("Checked/created table chunks")

	return nil
}

// Collection returns the collection name of the handler.
func (h *ChunksDBHandler) Collection() string {
	return h.collection
}

// Add inserts chunks in batched transactions. It returns the number of chunks
// committed; on error the chunks of the failing batch are not indexed.
func (h *ChunksDBHandler) Add(ctx context.Context, chunks []*model.Chunk) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	indexed := 0
	for start := 0; start < len(chunks); start += insertBatchSize {
		end := min(start+insertBatchSize, len(chunks))
		if err := h.insertBatch(ctx, chunks[start:end]); err != nil {
			return indexed, err
		}
		indexed += end - start
	}

	return indexed, nil
}

func (h *ChunksDBHandler) insertBatch(ctx context.Context, chunks []*model.Chunk) error {
	tx, err := h.db.Instance.BeginTx(ctx, nil)
	if err != nil {
		return helper.NewError("begin transaction", err)
	}
	defer tx.Rollback()

	for _, chunk := range chunks {
		if chunk.Source == "" {
			return helper.NewError("insert chunk", fmt.Errorf("chunk at position %d has no source", chunk.Position))
		}
		if chunk.RID == uuid.Nil {
			chunk.RID = uuid.New()
		}
		if chunk.Metadata == nil {
			chunk.Metadata = model.Metadata{}
		}
		chunk.Collection = h.collection

		row := tx.QueryRowContext(
			ctx,
			`SELECT * FROM insert_chunk($1, $2, $3, $4, $5, $6, $7, $8)`,
			chunk.RID,
			chunk.Collection,
			chunk.Source,
			chunk.Position,
			chunk.Content,
			pgvector.NewVector(chunk.Embedding),
			chunk.EmbeddingModel,
			chunk.Metadata,
		)
		err := row.Scan(&chunk.ID, &chunk.RID, &chunk.CreatedAt)
		if err != nil {
			return helper.NewError("scan", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return helper.NewError("commit", err)
	}
	return nil
}

// DeleteBySource removes all chunks of a source and returns how many were removed.
func (h *ChunksDBHandler) DeleteBySource(ctx context.Context, source string) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var removed int
	err := h.db.Instance.QueryRowContext(
		ctx,
		`SELECT delete_chunks_by_source($1, $2)`,
		h.collection,
		source,
	).Scan(&removed)
	if err != nil {
		return 0, helper.NewError("delete chunks by source", err)
	}
	return removed, nil
}

// CountBySource returns the number of chunks of a source.
func (h *ChunksDBHandler) CountBySource(ctx context.Context, source string) (int, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var count int
	err := h.db.Instance.QueryRowContext(
		ctx,
		`SELECT count_chunks_by_source($1, $2)`,
		h.collection,
		source,
	).Scan(&count)
	if err != nil {
		return 0, helper.NewError("count chunks by source", err)
	}
	return count, nil
}

// SimilaritySearch returns the k chunks closest to embedding by cosine
// distance, most similar first.
func (h *ChunksDBHandler) SimilaritySearch(ctx context.Context, embedding []float32, k int) ([]*model.Chunk, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	rows, err := h.db.Instance.QueryContext(
		ctx,
		`SELECT * FROM select_chunks_by_similarity($1, $2, $3)`,
		h.collection,
		pgvector.NewVector(embedding),
		k,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var results []*model.Chunk
	for rows.Next() {
		chunk := &model.Chunk{}
		var vector pgvector.Vector
		err := rows.Scan(
			&chunk.ID,
			&chunk.RID,
			&chunk.Collection,
			&chunk.Source,
			&chunk.Position,
			&chunk.Content,
			&vector,
			&chunk.EmbeddingModel,
			&chunk.Metadata,
			&chunk.CreatedAt,
			&chunk.Similarity,
			&chunk.Distance,
		)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}
		chunk.Embedding = vector.Slice()

		results = append(results, chunk)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return results, nil
}

// Count returns the number of chunks from the trigger maintained counters.
func (h *ChunksDBHandler) Count(ctx context.Context) (int, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var count int
	err := h.db.Instance.QueryRowContext(ctx, `SELECT count_chunks($1)`, h.collection).Scan(&count)
	if err != nil {
		return 0, helper.NewError("count chunks", err)
	}
	return count, nil
}

// ModelCounts returns the number of chunks per embedding model.
func (h *ChunksDBHandler) ModelCounts(ctx context.Context) (map[string]int, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	rows, err := h.db.Instance.QueryContext(ctx, `SELECT * FROM select_chunk_model_counts($1)`, h.collection)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var embeddingModel string
		var total int
		if err := rows.Scan(&embeddingModel, &total); err != nil {
			return nil, helper.NewError("scan", err)
		}
		counts[embeddingModel] = total
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return counts, nil
}

// Sources returns the chunk count of every indexed source.
func (h *ChunksDBHandler) Sources(ctx context.Context) ([]model.SourceCount, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	rows, err := h.db.Instance.QueryContext(ctx, `SELECT * FROM select_chunk_sources($1)`, h.collection)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var sources []model.SourceCount
	for rows.Next() {
		var source model.SourceCount
		if err := rows.Scan(&source.Source, &source.Chunks); err != nil {
			return nil, helper.NewError("scan", err)
		}
		sources = append(sources, source)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return sources, nil
}

// Clear drops the chunk tables and recreates them for the given dimension.
// It returns the number of chunks that were removed.
func (h *ChunksDBHandler) Clear(ctx context.Context, dimension int) (int, error) {
	if dimension <= 0 {
		return 0, helper.NewError("clear", fmt.Errorf("embedding dimension must be positive, got %d", dimension))
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	var removed int
	err := h.db.Instance.QueryRowContext(ctx, `SELECT drop_chunks()`).Scan(&removed)
	if err != nil {
		return 0, helper.NewError("drop chunks", err)
	}

	if err := h.CreateTable(ctx, dimension); err != nil {
		return removed, err
	}

	if h.indexType != IndexTypeHNSW || len(h.indexOpts) > 0 {
		if err := h.changeIndexType(ctx, h.indexType, h.indexOpts); err != nil {
			return removed, err
		}
	}

	h.db.Logger.Warn("Cleared chunks", slog.String("collection", h.collection), slog.Int("removed", removed), slog.Int("dimension", dimension))

	return removed, nil
}

// Dimension returns the embedding dimension of the chunks table.
func (h *ChunksDBHandler) Dimension(ctx context.Context) (int, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var dimension int
	err := h.db.Instance.QueryRowContext(ctx, `SELECT select_chunks_dimension()`).Scan(&dimension)
	if err != nil {
		return 0, helper.NewError("select chunks dimension", err)
	}
	return dimension, nil
}

// StorageSize returns the on-disk size of the chunks table including indexes.
func (h *ChunksDBHandler) StorageSize(ctx context.Context) (int64, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var size sql.NullInt64
	err := h.db.Instance.QueryRowContext(ctx, `SELECT select_chunks_size()`).Scan(&size)
	if err != nil {
		return 0, helper.NewError("select chunks size", err)
	}
	return size.Int64, nil
}

// Ping checks the database connection.
func (h *ChunksDBHandler) Ping(ctx context.Context) error {
	if err := h.db.Instance.PingContext(ctx); err != nil {
		return helper.NewError("ping", err)
	}
	return nil
}

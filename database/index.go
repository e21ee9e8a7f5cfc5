package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/siherrmann/legalrag/helper"
)

const (
	IndexTypeHNSW    = "hnsw"
	IndexTypeIVFFlat = "ivfflat"
)

// ChangeIndexType changes the vector index type between HNSW and IVFFlat
// indexType: "hnsw" or "ivfflat"
// params: optional parameters for index creation
//   - For HNSW: "m" (int, default 16), "ef_construction" (int, default 64)
//   - For IVFFlat: "lists" (int, default 100)
//
// The choice is kept and reapplied when the collection is cleared.
func (h *ChunksDBHandler) ChangeIndexType(ctx context.Context, indexType string, params map[string]interface{}) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.changeIndexType(ctx, indexType, params); err != nil {
		return err
	}
	h.indexType = indexType
	h.indexOpts = params
	return nil
}

func (h *ChunksDBHandler) changeIndexType(ctx context.Context, indexType string, params map[string]interface{}) error {
	createIndexSQL, err := indexStatement(indexType, params)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	_, err = h.db.Instance.ExecContext(ctx, `DROP INDEX IF EXISTS idx_chunks_embedding;`)
	if err != nil {
		return helper.NewError("drop index", err)
	}

	h.db.Logger.Info("Dropped existing vector index")

	_, err = h.db.Instance.ExecContext(ctx, createIndexSQL)
	if err != nil {
		return helper.NewError("create index", err)
	}

	h.db.Logger.Info("Created vector index", slog.String("type", indexType), slog.Any("params", params))

	return nil
}

func indexStatement(indexType string, params map[string]interface{}) (string, error) {
	switch indexType {
	case IndexTypeHNSW:
		m := 16
		efConstruction := 64

		if mVal, ok := params["m"].(int); ok {
			m = mVal
		}
		if efVal, ok := params["ef_construction"].(int); ok {
			efConstruction = efVal
		}

		return fmt.Sprintf(
			`CREATE INDEX idx_chunks_embedding ON chunks USING hnsw (embedding vector_cosine_ops) WITH (m = %d, ef_construction = %d);`,
			m, efConstruction,
		), nil

	case IndexTypeIVFFlat:
		lists := 100
		if listsVal, ok := params["lists"].(int); ok {
			lists = listsVal
		}

		return fmt.Sprintf(
			`CREATE INDEX idx_chunks_embedding ON chunks USING ivfflat (embedding vector_cosine_ops) WITH (lists = %d);`,
			lists,
		), nil

	default:
		return "", helper.NewError("change index type", fmt.Errorf("unsupported index type: %s (use 'hnsw' or 'ivfflat')", indexType))
	}
}

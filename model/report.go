package model

import "time"

// ProcessingStats describes what happened to a single ingested document.
type ProcessingStats struct {
	PagesExtracted      int    `json:"pages_extracted"`
	TotalCharacters     int    `json:"total_characters"`
	ChunksCreated       int    `json:"chunks_created"`
	EmbeddingsGenerated int    `json:"embeddings_generated"`
	ChunksIndexed       int    `json:"chunks_indexed"`
	Partial             bool   `json:"partial"`
	EmbeddingDimension  int    `json:"embedding_dimension"`
	EmbeddingModel      string `json:"embedding_model"`
}

// IngestionReport is returned by an upload.
type IngestionReport struct {
	Filename          string          `json:"filename"`
	SavedPath         string          `json:"saved_path"`
	Stats             ProcessingStats `json:"processing_stats"`
	ChunkConfig       ChunkingConfig  `json:"chunk_config_used"`
	ProcessingSeconds float64         `json:"processing_time_seconds"`
	// ChunksReplaced counts the chunks of an earlier upload of the same file.
	ChunksReplaced int    `json:"chunks_replaced"`
	Error          string `json:"error,omitempty"`
}

// ChunkComparison compares the chunk counts before and after a reprocess.
// PercentageChange is nil when there were no chunks before.
type ChunkComparison struct {
	OldConfig        ChunkingConfig `json:"old_config"`
	NewConfig        ChunkingConfig `json:"new_config"`
	ChunksReducedBy  int            `json:"chunks_reduced_by"`
	PercentageChange *float64       `json:"percentage_change"`
}

// ReprocessReport is returned by a reprocess.
type ReprocessReport struct {
	Filename          string          `json:"filename"`
	Source            string          `json:"source"`
	OldChunksRemoved  int             `json:"old_chunks_removed"`
	NewChunksAdded    int             `json:"new_chunks_added"`
	Partial           bool            `json:"partial"`
	Comparison        ChunkComparison `json:"chunk_comparison"`
	ProcessingSeconds float64         `json:"processing_time_seconds"`
}

// PercentageChange returns the relative change from old to new in percent
// rounded to one decimal, or nil if old is zero.
func PercentageChange(old, new int) *float64 {
	if old == 0 {
		return nil
	}
	v := Round(float64(new-old)/float64(old)*100, 1)
	return &v
}

// DeleteReport is returned when a document is removed.
type DeleteReport struct {
	FileDeleted   string  `json:"file_deleted"`
	ChunksRemoved int     `json:"chunks_removed"`
	BytesFreed    int64   `json:"bytes_freed"`
	DiskFreedMB   float64 `json:"disk_space_freed_mb"`
}

// ClearReport is returned when the whole index is wiped.
type ClearReport struct {
	ChunksDeleted int     `json:"chunks_deleted"`
	PDFsPreserved int     `json:"pdfs_preserved"`
	SizeBeforeMB  float64 `json:"size_before_mb"`
	SizeAfterMB   float64 `json:"size_after_mb"`
}

// StoreStats summarizes the vector store.
type StoreStats struct {
	CollectionName     string         `json:"collection_name"`
	TotalChunks        int            `json:"total_chunks"`
	TotalDocuments     int            `json:"total_documents"`
	EmbeddingDimension int            `json:"embedding_dimension"`
	EmbeddingModel     string         `json:"embedding_model"`
	EmbeddingModels    map[string]int `json:"embedding_models"`
	StorageSizeMB      float64        `json:"storage_size_mb"`
	LastUpdated        time.Time      `json:"last_updated"`
}

// CategoryStats counts the chunks and documents of one document category.
type CategoryStats struct {
	Chunks    int `json:"chunks"`
	Documents int `json:"documents"`
}

// StoreHealth is the health part of the stats.
type StoreHealth struct {
	Status        string `json:"status"`
	IndexBuilt    bool   `json:"index_built"`
	Queryable     bool   `json:"queryable"`
	ModelMismatch bool   `json:"model_mismatch"`
}

// StatsReport is returned by the vector store stats.
type StatsReport struct {
	Store           StoreStats               `json:"vectorstore_stats"`
	DocumentsByType map[string]CategoryStats `json:"documents_by_type"`
	Health          StoreHealth              `json:"health"`
}

// ComponentHealth is the state of one dependency.
type ComponentHealth struct {
	Status    string `json:"status"`
	Queryable *bool  `json:"queryable,omitempty"`
	Model     string `json:"model,omitempty"`
	Path      string `json:"path,omitempty"`
	PDFCount  *int   `json:"pdf_count,omitempty"`
	Error     string `json:"error,omitempty"`
}

// HealthStatistics are the totals reported by the health check.
type HealthStatistics struct {
	TotalPDFs     int     `json:"total_pdfs"`
	TotalChunks   int     `json:"total_chunks"`
	StorageUsedMB float64 `json:"storage_used_mb"`
}

// HealthReport is returned by the health check.
type HealthReport struct {
	Status     string                     `json:"status"`
	Timestamp  time.Time                  `json:"timestamp"`
	Components map[string]ComponentHealth `json:"components"`
	Statistics HealthStatistics           `json:"statistics"`
}

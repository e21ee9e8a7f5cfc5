package model

import (
	"math"
	"os"
	"path/filepath"
	"time"
)

// DocumentFile is a PDF of the corpus on disk together with its index state.
type DocumentFile struct {
	Filename      string    `json:"filename"`
	FullPath      string    `json:"full_path"`
	SizeBytes     int64     `json:"size_bytes"`
	SizeMB        float64   `json:"size_mb"`
	ModifiedDate  time.Time `json:"modified_date"`
	InVectorstore bool      `json:"in_vectorstore"`
	ChunkCount    int       `json:"chunk_count"`
}

// NewDocumentFile stats path and returns its listing entry without index state.
func NewDocumentFile(path string) (*DocumentFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	return &DocumentFile{
		Filename:     filepath.Base(path),
		FullPath:     path,
		SizeBytes:    info.Size(),
		SizeMB:       BytesToMB(info.Size()),
		ModifiedDate: info.ModTime().UTC(),
	}, nil
}

// DocumentSummary aggregates a document listing.
type DocumentSummary struct {
	TotalPDFs           int `json:"total_pdfs"`
	TotalChunks         int `json:"total_chunks"`
	DocumentsNotIndexed int `json:"documents_not_indexed"`
}

// DocumentList is the result of listing the corpus.
type DocumentList struct {
	Documents []*DocumentFile `json:"documents"`
	Summary   DocumentSummary `json:"summary"`
}

// BytesToMB converts a byte count to megabytes rounded to two decimals.
func BytesToMB(n int64) float64 {
	return Round(float64(n)/(1024*1024), 2)
}

// Round rounds v to the given number of decimal places.
func Round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

package model

import (
	"errors"
	"fmt"
)

// ClearConfirmation is the literal a caller must send to wipe the index.
const ClearConfirmation = "DELETE_ALL_EMBEDDINGS"

var (
	ErrUnsupportedFileType    = errors.New("only PDF files allowed")
	ErrInvalidChunkingConfig  = errors.New("invalid chunking configuration")
	ErrInvalidSettings        = errors.New("invalid settings")
	ErrInvalidRequest         = errors.New("invalid request")
	ErrDocumentNotFound       = errors.New("document not found")
	ErrJobNotFound            = errors.New("job not found")
	ErrConfirmationRequired   = errors.New("confirmation required")
	ErrServiceUnavailable     = errors.New("service unavailable")
	ErrEmbeddingModelMismatch = errors.New("index contains embeddings of another model, rebuild required")
	ErrRebuildInProgress      = errors.New("rebuild already in progress")
	ErrRebuildCancelled       = errors.New("rebuild cancelled")
)

// ExtractionError is returned when a document yields no usable text.
type ExtractionError struct {
	Path   string
	Reason string
	Err    error
}

func (e *ExtractionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("extract %s: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("extract %s: %s", e.Path, e.Reason)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// IsValidationError reports whether err was caused by invalid caller input.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrUnsupportedFileType) ||
		errors.Is(err, ErrInvalidChunkingConfig) ||
		errors.Is(err, ErrInvalidSettings) ||
		errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrConfirmationRequired)
}

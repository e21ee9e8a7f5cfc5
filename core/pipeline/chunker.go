package pipeline

import (
	"strings"
	"unicode/utf8"

	"github.com/siherrmann/legalrag/helper"
	"github.com/siherrmann/legalrag/model"
)

// RecursiveChunker creates a chunker that splits text by the first separator
// of cfg that occurs in it and recurses into pieces that are still too long
// with the remaining separators. Separators stay at the start of the piece
// that follows them. Neighbouring pieces are merged up to cfg.ChunkSize runes,
// carrying up to cfg.ChunkOverlap runes into the next chunk.
func RecursiveChunker(cfg model.ChunkingConfig) (ChunkFunc, error) {
	if err := cfg.Validate(); err != nil {
		return nil, helper.NewError("recursive chunker", err)
	}
	cfg = cfg.Normalized()

	splitter := &recursiveSplitter{
		size:       cfg.ChunkSize,
		overlap:    cfg.ChunkOverlap,
		separators: cfg.Separators,
	}

	return func(text string) ([]string, error) {
		if strings.TrimSpace(text) == "" {
			return []string{}, nil
		}

		chunks := []string{}
		for _, chunk := range splitter.split(text, splitter.separators) {
			chunk = strings.TrimSpace(chunk)
			if chunk != "" {
				chunks = append(chunks, chunk)
			}
		}
		return chunks, nil
	}, nil
}

type recursiveSplitter struct {
	size       int
	overlap    int
	separators []string
}

func (s *recursiveSplitter) split(text string, separators []string) []string {
	separator := separators[len(separators)-1]
	var next []string
	for i, sep := range separators {
		if sep == "" {
			separator = sep
			break
		}
		if strings.Contains(text, sep) {
			separator = sep
			next = separators[i+1:]
			break
		}
	}

	var result, pending []string
	for _, piece := range splitKeepingSeparator(text, separator) {
		if runeLen(piece) < s.size {
			pending = append(pending, piece)
			continue
		}

		if len(pending) > 0 {
			result = append(result, s.merge(pending)...)
			pending = nil
		}
		if len(next) == 0 {
			result = append(result, piece)
		} else {
			result = append(result, s.split(piece, next)...)
		}
	}
	if len(pending) > 0 {
		result = append(result, s.merge(pending)...)
	}

	return result
}

// merge joins pieces greedily into chunks of at most s.size runes. When a
// chunk is full, pieces are dropped from its front until at most s.overlap
// runes remain to start the next one.
func (s *recursiveSplitter) merge(pieces []string) []string {
	var chunks, current []string
	total := 0

	for _, piece := range pieces {
		length := runeLen(piece)
		if total+length > s.size && len(current) > 0 {
			if chunk := strings.TrimSpace(strings.Join(current, "")); chunk != "" {
				chunks = append(chunks, chunk)
			}
			for total > s.overlap || (total+length > s.size && total > 0) {
				total -= runeLen(current[0])
				current = current[1:]
			}
		}
		current = append(current, piece)
		total += length
	}

	if chunk := strings.TrimSpace(strings.Join(current, "")); chunk != "" {
		chunks = append(chunks, chunk)
	}

	return chunks
}

// splitKeepingSeparator splits text at sep and prefixes every piece but the
// first with the separator it was split at. An empty sep splits into runes.
func splitKeepingSeparator(text string, sep string) []string {
	if sep == "" {
		pieces := make([]string, 0, len(text))
		for _, r := range text {
			pieces = append(pieces, string(r))
		}
		return pieces
	}

	parts := strings.Split(text, sep)
	pieces := make([]string, 0, len(parts))
	for i, part := range parts {
		if i > 0 {
			part = sep + part
		}
		if part != "" {
			pieces = append(pieces, part)
		}
	}
	return pieces
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}

package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/siherrmann/legalrag/helper"
	"github.com/siherrmann/legalrag/model"
)

// Store is an in-process vector store using brute-force cosine similarity.
// Counters are maintained on every write so that counting never iterates the chunks.
type Store struct {
	mu          sync.RWMutex
	collection  string
	dimension   int
	nextID      int64
	chunks      []*model.Chunk
	modelCounts map[string]int
	total       int
}

// NewStore creates an empty store. A dimension of 0 is fixed by the first add.
func NewStore(collection string, dimension int) *Store {
	if collection == "" {
		collection = "default"
	}
	return &Store{
		collection:  collection,
		dimension:   dimension,
		modelCounts: map[string]int{},
	}
}

func (s *Store) Add(ctx context.Context, chunks []*model.Chunk) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return i, helper.NewError("add", err)
		}
		if chunk.Source == "" {
			return i, helper.NewError("add", fmt.Errorf("chunk at position %d has no source", chunk.Position))
		}
		if s.dimension == 0 {
			s.dimension = len(chunk.Embedding)
		}
		if len(chunk.Embedding) != s.dimension {
			return i, helper.NewError("add", fmt.Errorf("expected %d dimensions, not %d", s.dimension, len(chunk.Embedding)))
		}

		s.nextID++
		stored := *chunk
		stored.ID = s.nextID
		if stored.RID == uuid.Nil {
			stored.RID = uuid.New()
		}
		stored.Collection = s.collection
		stored.CreatedAt = time.Now().UTC()
		stored.Embedding = append([]float32(nil), chunk.Embedding...)

		chunk.ID = stored.ID
		chunk.RID = stored.RID
		chunk.Collection = stored.Collection
		chunk.CreatedAt = stored.CreatedAt

		s.chunks = append(s.chunks, &stored)
		s.modelCounts[stored.EmbeddingModel]++
		s.total++
	}

	return len(chunks), nil
}

func (s *Store) DeleteBySource(ctx context.Context, source string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.chunks[:0]
	removed := 0
	for _, chunk := range s.chunks {
		if chunk.Source == source {
			removed++
			s.modelCounts[chunk.EmbeddingModel]--
			if s.modelCounts[chunk.EmbeddingModel] == 0 {
				delete(s.modelCounts, chunk.EmbeddingModel)
			}
			continue
		}
		kept = append(kept, chunk)
	}
	for i := len(kept); i < len(s.chunks); i++ {
		s.chunks[i] = nil
	}
	s.chunks = kept
	s.total -= removed

	return removed, nil
}

func (s *Store) CountBySource(ctx context.Context, source string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, chunk := range s.chunks {
		if chunk.Source == source {
			count++
		}
	}
	return count, nil
}

// SimilaritySearch returns the k most similar chunks. Ties keep insertion order.
func (s *Store) SimilaritySearch(ctx context.Context, embedding []float32, k int) ([]*model.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if k <= 0 {
		return nil, nil
	}
	if s.dimension != 0 && len(embedding) != s.dimension {
		return nil, helper.NewError("similarity search", fmt.Errorf("expected %d dimensions, not %d", s.dimension, len(embedding)))
	}

	scored := make([]*model.Chunk, 0, len(s.chunks))
	for _, chunk := range s.chunks {
		result := *chunk
		result.Embedding = append([]float32(nil), chunk.Embedding...)
		result.Similarity = CosineSimilarity(chunk.Embedding, embedding)
		result.Distance = 1 - result.Similarity
		scored = append(scored, &result)
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Similarity > scored[j].Similarity
	})

	if k > len(scored) {
		k = len(scored)
	}
	return scored[:k], nil
}

func (s *Store) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.total, nil
}

func (s *Store) ModelCounts(ctx context.Context) (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[string]int, len(s.modelCounts))
	for m, c := range s.modelCounts {
		counts[m] = c
	}
	return counts, nil
}

func (s *Store) Sources(ctx context.Context) ([]model.SourceCount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bySource := map[string]int{}
	for _, chunk := range s.chunks {
		bySource[chunk.Source]++
	}

	sources := make([]model.SourceCount, 0, len(bySource))
	for source, count := range bySource {
		sources = append(sources, model.SourceCount{Source: source, Chunks: count})
	}
	sort.Slice(sources, func(i, j int) bool { return sources[i].Source < sources[j].Source })

	return sources, nil
}

// Clear removes all chunks and fixes the dimension for the following adds.
func (s *Store) Clear(ctx context.Context, dimension int) (int, error) {
	if dimension < 0 {
		return 0, helper.NewError("clear", fmt.Errorf("invalid dimension %d", dimension))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := s.total
	s.chunks = nil
	s.modelCounts = map[string]int{}
	s.total = 0
	s.dimension = dimension

	return removed, nil
}

// StorageSize estimates the memory held by content and embeddings.
func (s *Store) StorageSize(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var size int64
	for _, chunk := range s.chunks {
		size += int64(len(chunk.Content)) + int64(4*len(chunk.Embedding))
	}
	return size, nil
}

func (s *Store) Collection() string {
	return s.collection
}

// Dimension is the vector length accepted by the store, 0 until fixed.
func (s *Store) Dimension(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dimension, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

// CosineSimilarity returns the cosine of the angle between a and b, or 0 if
// either vector is zero or the lengths differ.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

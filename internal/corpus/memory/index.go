// Package memory implements corpus.Store as an exact cosine-similarity index
// held in process memory. Retrieval is fully deterministic for a fixed corpus,
// which makes it the canonical store for tests and small deployments.
package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/policy-navigator/backend/internal/corpus"
	"github.com/policy-navigator/backend/pkg/logger"
)

const snippetLimit = 240

type Index struct {
	embedder corpus.Embedder

	mu   sync.RWMutex
	docs []corpus.Document
	byID map[string]int
}

func NewIndex(embedder corpus.Embedder) *Index {
	return &Index{
		embedder: embedder,
		byID:     make(map[string]int),
	}
}

// Add embeds the document if needed and publishes it under the write lock, so
// readers never observe a half-written entry. The store is append-only;
// re-adding an existing ID is rejected rather than edited in place.
func (idx *Index) Add(ctx context.Context, doc corpus.Document) error {
	if doc.ID == "" {
		return fmt.Errorf("document ID is required")
	}

	if len(doc.Embedding) == 0 {
		embedding, err := idx.embedder.Embed(ctx, doc.Title+" "+doc.Text)
		if err != nil {
			return fmt.Errorf("failed to embed document %s: %w", doc.ID, err)
		}
		doc.Embedding = embedding
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if _, exists := idx.byID[doc.ID]; exists {
		return fmt.Errorf("document %s already published", doc.ID)
	}

	idx.byID[doc.ID] = len(idx.docs)
	idx.docs = append(idx.docs, doc)

	logger.Debug("Document published to corpus",
		zap.String("document_id", doc.ID),
		zap.Int("corpus_size", len(idx.docs)),
	)

	return nil
}

func (idx *Index) Retrieve(ctx context.Context, queryText string, k int) ([]corpus.Hit, error) {
	if k <= 0 {
		return []corpus.Hit{}, nil
	}

	idx.mu.RLock()
	docs := idx.docs
	idx.mu.RUnlock()

	if len(docs) == 0 {
		return []corpus.Hit{}, nil
	}

	queryEmbedding, err := idx.embedder.Embed(ctx, queryText)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	hits := make([]corpus.Hit, 0, len(docs))
	for _, doc := range docs {
		score := cosineSimilarity(queryEmbedding, doc.Embedding)
		hits = append(hits, corpus.Hit{
			DocumentID: doc.ID,
			Score:      score,
			Snippet:    snippet(doc.Text),
		})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].DocumentID < hits[j].DocumentID
	})

	if len(hits) > k {
		hits = hits[:k]
	}

	return hits, nil
}

func (idx *Index) Get(ctx context.Context, id string) (corpus.Document, bool, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	pos, ok := idx.byID[id]
	if !ok {
		return corpus.Document{}, false, nil
	}
	return idx.docs[pos], true, nil
}

func (idx *Index) Count(ctx context.Context) (int, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.docs), nil
}

// cosineSimilarity maps into [0,1]; a zero vector scores 0 against anything.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
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

	cos := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	return (cos + 1) / 2
}

func snippet(text string) string {
	text = strings.TrimSpace(text)
	if len(text) <= snippetLimit {
		return text
	}
	cut := text[:snippetLimit]
	if idx := strings.LastIndex(cut, " "); idx > 0 {
		cut = cut[:idx]
	}
	return cut + "..."
}

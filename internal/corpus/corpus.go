// Package corpus defines the append-only policy document store used for
// semantic retrieval, and the types shared by its implementations.
package corpus

import "context"

type SourceType string

const (
	SourceStatute        SourceType = "statute"
	SourceExecutiveOrder SourceType = "executive_order"
	SourceRegulation     SourceType = "regulation"
	SourceCaseLaw        SourceType = "case_law"
)

// Document is immutable once published into a store.
type Document struct {
	ID            string
	Title         string
	Text          string
	SourceType    SourceType
	EffectiveDate string
	Jurisdiction  string
	Embedding     []float32
}

// Hit is a single retrieval result. Stores return hits sorted by Score
// descending, ties broken by DocumentID ascending.
type Hit struct {
	DocumentID string
	Score      float64
	Snippet    string
}

// Embedder turns text into the vector space shared by queries and documents.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Store is the retrieval contract. Add publishes atomically: concurrent
// readers observe either the whole document or none of it. Retrieve on an
// empty store returns an empty slice, not an error.
type Store interface {
	Add(ctx context.Context, doc Document) error
	Retrieve(ctx context.Context, queryText string, k int) ([]Hit, error)
	Get(ctx context.Context, id string) (Document, bool, error)
	Count(ctx context.Context) (int, error)
}

package ingestion

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/policy-navigator/backend/internal/corpus"
	"github.com/policy-navigator/backend/internal/notify"
	"github.com/policy-navigator/backend/internal/storage/models"
	"github.com/policy-navigator/backend/internal/storage/sqlite"
)

type fakeStore struct {
	added []corpus.Document
}

func (f *fakeStore) Add(ctx context.Context, doc corpus.Document) error {
	f.added = append(f.added, doc)
	return nil
}

func (f *fakeStore) Retrieve(ctx context.Context, queryText string, k int) ([]corpus.Hit, error) {
	return []corpus.Hit{}, nil
}

func (f *fakeStore) Get(ctx context.Context, id string) (corpus.Document, bool, error) {
	for _, doc := range f.added {
		if doc.ID == id {
			return doc, true, nil
		}
	}
	return corpus.Document{}, false, nil
}

func (f *fakeStore) Count(ctx context.Context) (int, error) {
	return len(f.added), nil
}

func TestIngestPlainText(t *testing.T) {
	store := &fakeStore{}
	processor := NewProcessor(nil, store, nil, nil, nil)

	doc, err := processor.Ingest(context.Background(), Request{
		ID:            "eo-14067",
		Title:         "Executive Order 14067",
		SourceType:    "executive_order",
		EffectiveDate: "2022-03-09",
		Jurisdiction:  "federal",
		Text:          "Ensuring responsible development of digital assets.",
	})
	require.NoError(t, err)

	assert.Equal(t, "eo-14067", doc.ID)
	require.Len(t, store.added, 1)
	assert.Equal(t, corpus.SourceType("executive_order"), store.added[0].SourceType)
}

func TestIngestStripsHTML(t *testing.T) {
	store := &fakeStore{}
	processor := NewProcessor(nil, store, nil, nil, nil)

	html := `<html>
		<head><title>Section 230 Overview</title><style>body{}</style></head>
		<body>
			<nav>skip this</nav>
			<script>alert("skip")</script>
			<p>No provider shall be treated as the publisher of third-party content.</p>
			<footer>skip this too</footer>
		</body>
	</html>`

	doc, err := processor.Ingest(context.Background(), Request{HTML: html})
	require.NoError(t, err)

	assert.Equal(t, "Section 230 Overview", doc.Title)
	assert.Contains(t, doc.Text, "No provider shall be treated")
	assert.NotContains(t, doc.Text, "skip this")
	assert.NotContains(t, doc.Text, "alert")
}

func TestIngestRejectsEmptyContent(t *testing.T) {
	store := &fakeStore{}
	processor := NewProcessor(nil, store, nil, nil, nil)

	_, err := processor.Ingest(context.Background(), Request{Title: "empty"})
	assert.Error(t, err)
	assert.Empty(t, store.added)
}

func TestIngestAssignsIDWhenMissing(t *testing.T) {
	store := &fakeStore{}
	processor := NewProcessor(nil, store, nil, nil, nil)

	doc, err := processor.Ingest(context.Background(), Request{
		Title: "Untitled rule",
		Text:  "Agencies must comply with the new regulation.",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, doc.ID)
}

func TestIngestDerivesSourceType(t *testing.T) {
	tests := []struct {
		title string
		want  corpus.SourceType
	}{
		{"Executive Order 14067", corpus.SourceExecutiveOrder},
		{"Final Rule on Reporting", corpus.SourceRegulation},
		{"Health Insurance Portability and Accountability Act", corpus.SourceStatute},
		{"Court Opinion on Platform Liability", corpus.SourceCaseLaw},
		// Whole-word matching: none of these contain "act" as a word.
		{"Impact Assessment for Contact Tracing Practices", corpus.SourceRegulation},
		// Unrecognized titles stay inside the source type enum.
		{"Interagency Guidance on AI", corpus.SourceRegulation},
	}

	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			store := &fakeStore{}
			processor := NewProcessor(nil, store, nil, nil, nil)

			doc, err := processor.Ingest(context.Background(), Request{
				Title: tt.title,
				Text:  "Agencies should review the attached text.",
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, doc.SourceType)
		})
	}
}

func TestIngestRejectsSourceTypeOutsideEnum(t *testing.T) {
	store := &fakeStore{}
	processor := NewProcessor(nil, store, nil, nil, nil)

	doc, err := processor.Ingest(context.Background(), Request{
		Title:      "Interagency Guidance on AI",
		SourceType: "guidance",
		Text:       "Agencies should review the attached text.",
	})
	require.NoError(t, err)

	// The caller's out-of-enum value is discarded in favor of derivation.
	assert.Equal(t, corpus.SourceRegulation, doc.SourceType)
}

type fakeBatchEmbedder struct {
	calls int
}

func (f *fakeBatchEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls++
	embeddings := make([][]float32, len(texts))
	for i := range texts {
		embeddings[i] = []float32{1, float32(i)}
	}
	return embeddings, nil
}

func TestRestoreBatchEmbedsPersistedDocuments(t *testing.T) {
	db, err := sqlite.NewClient(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, db.InitSchema())

	for _, id := range []string{"doc-1", "doc-2"} {
		require.NoError(t, db.InsertDocument(&models.Document{
			ID:         id,
			Title:      "Title " + id,
			SourceType: "regulation",
			Text:       "Text for " + id,
			CreatedAt:  time.Now(),
		}))
	}

	store := &fakeStore{}
	embedder := &fakeBatchEmbedder{}
	processor := NewProcessor(db, store, nil, nil, embedder)

	restored, err := processor.Restore(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, restored)

	// One batch call covers all documents, and every restored document
	// arrives at the store already embedded.
	assert.Equal(t, 1, embedder.calls)
	require.Len(t, store.added, 2)
	for _, doc := range store.added {
		assert.NotEmpty(t, doc.Embedding)
	}
}

func TestIngestPublishesNotification(t *testing.T) {
	store := &fakeStore{}
	hub := notify.NewHub()
	updates := hub.Subscribe()
	defer hub.Unsubscribe(updates)

	processor := NewProcessor(nil, store, nil, hub, nil)

	_, err := processor.Ingest(context.Background(), Request{
		Title: "GDPR Overview",
		Text:  "Data controllers must document processing activities.",
	})
	require.NoError(t, err)

	select {
	case update := <-updates:
		assert.Equal(t, "GDPR Overview", update.PolicyTitle)
		assert.Equal(t, notify.UpdateIngested, update.UpdateType)
	default:
		t.Fatal("expected an ingestion notification")
	}
}

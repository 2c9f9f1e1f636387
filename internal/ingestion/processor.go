package ingestion

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/policy-navigator/backend/internal/corpus"
	"github.com/policy-navigator/backend/internal/metrics"
	"github.com/policy-navigator/backend/internal/notify"
	"github.com/policy-navigator/backend/internal/storage/models"
	"github.com/policy-navigator/backend/internal/storage/sqlite"
	"github.com/policy-navigator/backend/pkg/logger"
)

type QueryCache interface {
	InvalidateQueryCache(ctx context.Context) error
}

// BatchEmbedder embeds many texts in one round trip, used to avoid a
// per-document embedding call when restoring the corpus at startup.
type BatchEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

type Processor struct {
	db       *sqlite.Client
	store    corpus.Store
	cache    QueryCache
	hub      *notify.Hub
	embedder BatchEmbedder
}

func NewProcessor(db *sqlite.Client, store corpus.Store, cache QueryCache, hub *notify.Hub, embedder BatchEmbedder) *Processor {
	return &Processor{
		db:       db,
		store:    store,
		cache:    cache,
		hub:      hub,
		embedder: embedder,
	}
}

type Request struct {
	ID            string
	Title         string
	SourceType    string
	EffectiveDate string
	Jurisdiction  string
	Text          string
	HTML          string
}

// Ingest persists one policy document and publishes it to the retrieval
// corpus. HTML input is stripped to text first. The document only becomes
// retrievable once the corpus insert succeeds, so a query racing ingestion
// sees either the full document or nothing.
func (p *Processor) Ingest(ctx context.Context, req Request) (*corpus.Document, error) {
	text := strings.TrimSpace(req.Text)
	title := strings.TrimSpace(req.Title)

	if req.HTML != "" {
		text = cleanHTML(req.HTML)
		if title == "" {
			title = extractTitle(req.HTML)
		}
	}

	if text == "" {
		return nil, fmt.Errorf("no content extracted from document")
	}
	if title == "" {
		title = "Untitled"
	}

	id := req.ID
	if id == "" {
		id = uuid.New().String()
	}

	sourceType, ok := parseSourceType(req.SourceType)
	if !ok {
		sourceType = deriveSourceType(title, text)
	}

	doc := corpus.Document{
		ID:            id,
		Title:         title,
		Text:          text,
		SourceType:    sourceType,
		EffectiveDate: req.EffectiveDate,
		Jurisdiction:  req.Jurisdiction,
	}

	err := p.store.Add(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("failed to add document to corpus: %w", err)
	}

	if p.db != nil {
		err = p.db.InsertDocument(&models.Document{
			ID:            id,
			Title:         title,
			SourceType:    string(sourceType),
			EffectiveDate: req.EffectiveDate,
			Jurisdiction:  req.Jurisdiction,
			Text:          text,
			CreatedAt:     time.Now(),
		})
		if err != nil {
			logger.Warn("Failed to persist document", zap.String("doc_id", id), zap.Error(err))
		}
	}

	if p.cache != nil {
		if err := p.cache.InvalidateQueryCache(ctx); err != nil {
			logger.Warn("Failed to invalidate query cache", zap.Error(err))
		}
	}

	metrics.DocumentsIngested.Inc()

	if p.hub != nil {
		p.hub.Publish(notify.Update{
			PolicyTitle: title,
			UpdateType:  notify.UpdateIngested,
			Details:     fmt.Sprintf("document %s added to corpus", id),
		})
	}

	logger.Info("Document ingested",
		zap.String("doc_id", id),
		zap.String("title", title),
		zap.String("source_type", string(sourceType)),
	)

	return &doc, nil
}

// Restore republishes previously persisted documents into the corpus at
// startup without re-announcing them.
func (p *Processor) Restore(ctx context.Context) (int, error) {
	if p.db == nil {
		return 0, nil
	}

	docs, err := p.db.ListDocuments()
	if err != nil {
		return 0, fmt.Errorf("failed to load persisted documents: %w", err)
	}

	embeddings := p.restoreEmbeddings(ctx, docs)

	restored := 0
	for i, d := range docs {
		doc := corpus.Document{
			ID:            d.ID,
			Title:         d.Title,
			Text:          d.Text,
			SourceType:    corpus.SourceType(d.SourceType),
			EffectiveDate: d.EffectiveDate,
			Jurisdiction:  d.Jurisdiction,
		}
		if embeddings != nil {
			doc.Embedding = embeddings[i]
		}
		if err := p.store.Add(ctx, doc); err != nil {
			logger.Warn("Failed to restore document", zap.String("doc_id", d.ID), zap.Error(err))
			continue
		}
		restored++
	}

	logger.Info("Corpus restored from storage", zap.Int("documents", restored))
	return restored, nil
}

// restoreEmbeddings embeds every persisted document in one batch call so
// Restore avoids a round trip per document. Returns nil when no batch
// embedder is configured or the batch fails; stores then embed individually.
func (p *Processor) restoreEmbeddings(ctx context.Context, docs []*models.Document) [][]float32 {
	if p.embedder == nil || len(docs) == 0 {
		return nil
	}

	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Title + " " + d.Text
	}

	embeddings, err := p.embedder.EmbedBatch(ctx, texts)
	if err != nil || len(embeddings) != len(docs) {
		logger.Warn("Batch embedding failed during restore", zap.Error(err))
		return nil
	}

	return embeddings
}

var whitespacePattern = regexp.MustCompile(`\s+`)

func cleanHTML(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}

	doc.Find("script, style, nav, footer, header, aside").Each(func(i int, s *goquery.Selection) {
		s.Remove()
	})

	text := doc.Find("body").Text()
	text = whitespacePattern.ReplaceAllString(text, " ")

	return strings.TrimSpace(text)
}

func extractTitle(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}

	title := doc.Find("title").First().Text()
	if title == "" {
		title = doc.Find("h1").First().Text()
	}

	return strings.TrimSpace(title)
}

// parseSourceType accepts only values of the corpus source type enum; anything
// else falls through to derivation.
func parseSourceType(s string) (corpus.SourceType, bool) {
	switch st := corpus.SourceType(strings.TrimSpace(s)); st {
	case corpus.SourceStatute, corpus.SourceExecutiveOrder, corpus.SourceRegulation, corpus.SourceCaseLaw:
		return st, true
	default:
		return "", false
	}
}

var (
	executiveOrderPattern = regexp.MustCompile(`\bexecutive\s+order\b`)
	statutePattern        = regexp.MustCompile(`\b(?:act|statute|u\.s\.c)\b`)
	regulationPattern     = regexp.MustCompile(`\b(?:regulations?|rules?|c\.f\.r)\b`)
	caseLawPattern        = regexp.MustCompile(`\b(?:court|opinion|plaintiff|defendant)\b`)
)

// deriveSourceType classifies on whole words so that titles like "Impact
// Assessment" never read as statutes. Unrecognized documents default to
// regulation, keeping every derived value inside the enum.
func deriveSourceType(title, text string) corpus.SourceType {
	lower := strings.ToLower(title + " " + firstN(text, 500))

	switch {
	case executiveOrderPattern.MatchString(lower):
		return corpus.SourceExecutiveOrder
	case statutePattern.MatchString(lower):
		return corpus.SourceStatute
	case regulationPattern.MatchString(lower):
		return corpus.SourceRegulation
	case caseLawPattern.MatchString(lower):
		return corpus.SourceCaseLaw
	default:
		return corpus.SourceRegulation
	}
}

func firstN(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

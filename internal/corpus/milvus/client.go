// Package milvus implements corpus.Store on a Milvus/Zilliz collection for
// deployments whose corpus outgrows the in-memory index. Results are re-sorted
// locally so the retrieval ordering invariant holds regardless of index type.
package milvus

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.uber.org/zap"

	"github.com/policy-navigator/backend/internal/corpus"
	"github.com/policy-navigator/backend/pkg/logger"
)

const snippetLimit = 240

type Store struct {
	client         client.Client
	embedder       corpus.Embedder
	collectionName string
	vectorDim      int
}

func NewStore(endpoint, collectionName string, vectorDim int, embedder corpus.Embedder) (*Store, error) {
	c, err := client.NewGrpcClient(context.Background(), endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create milvus client: %w", err)
	}

	logger.Info("Milvus corpus store initialized",
		zap.String("endpoint", endpoint),
		zap.String("collection", collectionName),
	)

	return &Store{
		client:         c,
		embedder:       embedder,
		collectionName: collectionName,
		vectorDim:      vectorDim,
	}, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) EnsureCollection(ctx context.Context) error {
	has, err := s.client.HasCollection(ctx, s.collectionName)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}

	if has {
		return nil
	}

	schema := &entity.Schema{
		CollectionName: s.collectionName,
		Description:    "Embedded policy and regulation documents",
		Fields: []*entity.Field{
			{
				Name:       "document_id",
				DataType:   entity.FieldTypeVarChar,
				PrimaryKey: true,
				AutoID:     false,
				TypeParams: map[string]string{"max_length": "128"},
			},
			{
				Name:     "embedding",
				DataType: entity.FieldTypeFloatVector,
				TypeParams: map[string]string{
					"dim": fmt.Sprintf("%d", s.vectorDim),
				},
			},
			{
				Name:       "title",
				DataType:   entity.FieldTypeVarChar,
				TypeParams: map[string]string{"max_length": "512"},
			},
			{
				Name:       "source_type",
				DataType:   entity.FieldTypeVarChar,
				TypeParams: map[string]string{"max_length": "32"},
			},
			{
				Name:       "effective_date",
				DataType:   entity.FieldTypeVarChar,
				TypeParams: map[string]string{"max_length": "32"},
			},
			{
				Name:       "jurisdiction",
				DataType:   entity.FieldTypeVarChar,
				TypeParams: map[string]string{"max_length": "64"},
			},
			{
				Name:       "text",
				DataType:   entity.FieldTypeVarChar,
				TypeParams: map[string]string{"max_length": "65535"},
			},
		},
	}

	err = s.client.CreateCollection(ctx, schema, entity.DefaultShardNumber)
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	idx, err := entity.NewIndexIvfFlat(entity.L2, 1024)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	err = s.client.CreateIndex(ctx, s.collectionName, "embedding", idx, false)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	err = s.client.LoadCollection(ctx, s.collectionName, false)
	if err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}

	logger.Info("Collection created and loaded", zap.String("collection", s.collectionName))

	return nil
}

func (s *Store) Add(ctx context.Context, doc corpus.Document) error {
	if doc.ID == "" {
		return fmt.Errorf("document ID is required")
	}

	if len(doc.Embedding) == 0 {
		embedding, err := s.embedder.Embed(ctx, doc.Title+" "+doc.Text)
		if err != nil {
			return fmt.Errorf("failed to embed document %s: %w", doc.ID, err)
		}
		doc.Embedding = embedding
	}

	_, err := s.client.Insert(
		ctx,
		s.collectionName,
		"",
		entity.NewColumnVarChar("document_id", []string{doc.ID}),
		entity.NewColumnFloatVector("embedding", s.vectorDim, [][]float32{doc.Embedding}),
		entity.NewColumnVarChar("title", []string{doc.Title}),
		entity.NewColumnVarChar("source_type", []string{string(doc.SourceType)}),
		entity.NewColumnVarChar("effective_date", []string{doc.EffectiveDate}),
		entity.NewColumnVarChar("jurisdiction", []string{doc.Jurisdiction}),
		entity.NewColumnVarChar("text", []string{doc.Text}),
	)
	if err != nil {
		return fmt.Errorf("failed to insert document: %w", err)
	}

	// Flush before returning so a published document is visible to readers.
	err = s.client.Flush(ctx, s.collectionName, false)
	if err != nil {
		return fmt.Errorf("failed to flush: %w", err)
	}

	logger.Debug("Document published to milvus corpus", zap.String("document_id", doc.ID))

	return nil
}

func (s *Store) Retrieve(ctx context.Context, queryText string, k int) ([]corpus.Hit, error) {
	if k <= 0 {
		return []corpus.Hit{}, nil
	}

	count, err := s.Count(ctx)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return []corpus.Hit{}, nil
	}

	queryEmbedding, err := s.embedder.Embed(ctx, queryText)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	sp, _ := entity.NewIndexIvfFlatSearchParam(16)

	searchResult, err := s.client.Search(
		ctx,
		s.collectionName,
		[]string{},
		"",
		[]string{"document_id", "text"},
		[]entity.Vector{entity.FloatVector(queryEmbedding)},
		"embedding",
		entity.L2,
		k,
		sp,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	hits := make([]corpus.Hit, 0, k)
	for _, sr := range searchResult {
		idCol := sr.Fields.GetColumn("document_id")
		textCol := sr.Fields.GetColumn("text")

		for i := 0; i < sr.ResultCount; i++ {
			id, _ := idCol.Get(i)
			text, _ := textCol.Get(i)

			hits = append(hits, corpus.Hit{
				DocumentID: id.(string),
				Score:      1 / (1 + float64(sr.Scores[i])),
				Snippet:    snippet(text.(string)),
			})
		}
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

func (s *Store) Get(ctx context.Context, id string) (corpus.Document, bool, error) {
	expr := fmt.Sprintf(`document_id == "%s"`, strings.ReplaceAll(id, `"`, ""))

	results, err := s.client.Query(
		ctx,
		s.collectionName,
		[]string{},
		expr,
		[]string{"document_id", "title", "source_type", "effective_date", "jurisdiction", "text"},
	)
	if err != nil {
		return corpus.Document{}, false, fmt.Errorf("failed to query document %s: %w", id, err)
	}

	columns := make(map[string]entity.Column, len(results))
	for _, col := range results {
		columns[col.Name()] = col
	}

	idCol, ok := columns["document_id"]
	if !ok || idCol.Len() == 0 {
		return corpus.Document{}, false, nil
	}

	get := func(name string) string {
		col, ok := columns[name]
		if !ok || col.Len() == 0 {
			return ""
		}
		v, _ := col.Get(0)
		s, _ := v.(string)
		return s
	}

	return corpus.Document{
		ID:            get("document_id"),
		Title:         get("title"),
		SourceType:    corpus.SourceType(get("source_type")),
		EffectiveDate: get("effective_date"),
		Jurisdiction:  get("jurisdiction"),
		Text:          get("text"),
	}, true, nil
}

func (s *Store) Count(ctx context.Context) (int, error) {
	stats, err := s.client.GetCollectionStatistics(ctx, s.collectionName)
	if err != nil {
		return 0, fmt.Errorf("failed to get collection statistics: %w", err)
	}

	count, err := strconv.Atoi(stats["row_count"])
	if err != nil {
		return 0, fmt.Errorf("failed to parse row count: %w", err)
	}

	return count, nil
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

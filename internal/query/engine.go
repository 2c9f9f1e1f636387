// Package query orchestrates one question end to end: classify, fan out to
// the selected tools concurrently, join, and synthesize a cited answer.
package query

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/policy-navigator/backend/internal/caselaw"
	"github.com/policy-navigator/backend/internal/compliance"
	"github.com/policy-navigator/backend/internal/corpus"
	"github.com/policy-navigator/backend/internal/metrics"
	"github.com/policy-navigator/backend/internal/outcome"
	"github.com/policy-navigator/backend/internal/registry"
	"github.com/policy-navigator/backend/internal/router"
	"github.com/policy-navigator/backend/internal/storage/models"
	"github.com/policy-navigator/backend/internal/storage/sqlite"
	"github.com/policy-navigator/backend/internal/synthesis"
	"github.com/policy-navigator/backend/pkg/logger"
	"github.com/policy-navigator/backend/pkg/utils"
)

type RegistryClient interface {
	Lookup(ctx context.Context, term string) outcome.Outcome[registry.Record]
}

type CaseLawClient interface {
	Search(ctx context.Context, topic string) outcome.Outcome[[]caselaw.Result]
}

type ResponseCache interface {
	GetQuery(ctx context.Context, queryHash string, response interface{}) (bool, error)
	SetQuery(ctx context.Context, queryHash string, response interface{}, ttl time.Duration) error
}

type Engine struct {
	router      *router.Router
	store       corpus.Store
	registry    RegistryClient
	caselaw     CaseLawClient
	db          *sqlite.Client
	cache       ResponseCache
	topK        int
	toolTimeout time.Duration
	cacheTTL    time.Duration
}

type Option func(*Engine)

func WithDB(db *sqlite.Client) Option {
	return func(e *Engine) { e.db = db }
}

func WithCache(cache ResponseCache, ttl time.Duration) Option {
	return func(e *Engine) {
		e.cache = cache
		e.cacheTTL = ttl
	}
}

func WithTopK(k int) Option {
	return func(e *Engine) { e.topK = k }
}

func WithToolTimeout(d time.Duration) Option {
	return func(e *Engine) { e.toolTimeout = d }
}

func NewEngine(r *router.Router, store corpus.Store, reg RegistryClient, cl CaseLawClient, opts ...Option) *Engine {
	e := &Engine{
		router:      r,
		store:       store,
		registry:    reg,
		caselaw:     cl,
		topK:        5,
		toolTimeout: 12 * time.Second,
		cacheTTL:    10 * time.Minute,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type Request struct {
	Query   string
	Intents []router.Intent
	TopK    int
}

type Response struct {
	ID           string   `json:"id"`
	Query        string   `json:"query"`
	Intents      []string `json:"intents"`
	AnswerText   string   `json:"answer_text"`
	CitedSources []string `json:"cited_sources"`
	Confidence   float64  `json:"confidence"`
	Degraded     bool     `json:"degraded"`
	LatencyMS    int      `json:"latency_ms"`
}

// Process answers one query. Tools run concurrently, each under its own
// timeout; a tool that fails or times out degrades the answer instead of
// failing the request. Only an invalid query or a fully empty evidence set
// surfaces as an error.
func (e *Engine) Process(ctx context.Context, req Request) (*Response, error) {
	startTime := time.Now()
	queryID := uuid.New().String()

	q, err := e.router.RouteWithOverride(req.Query, req.Intents)
	if err != nil {
		metrics.QueryTotal.WithLabelValues("invalid").Inc()
		return nil, err
	}

	logger.Info("Processing query",
		zap.String("query_id", queryID),
		zap.String("query", q.Normalized),
		zap.Any("intents", q.Intents),
	)

	topK := e.topK
	if req.TopK > 0 && req.TopK <= 20 {
		topK = req.TopK
	}

	queryHash := utils.HashString(fmt.Sprintf("%s|%d", q.Normalized, topK))
	if e.cache != nil {
		var cached Response
		hit, err := e.cache.GetQuery(ctx, queryHash, &cached)
		if err != nil {
			logger.Warn("Query cache lookup failed", zap.Error(err))
		}
		if hit {
			metrics.CacheHits.WithLabelValues("query").Inc()
			cached.ID = queryID
			cached.LatencyMS = int(time.Since(startTime).Milliseconds())
			return &cached, nil
		}
		metrics.CacheMisses.WithLabelValues("query").Inc()
	}

	outputs := e.runTools(ctx, q, topK)

	// Caller cancellation discards partial results; nothing is synthesized,
	// persisted, or cached from a cancelled query.
	if err := ctx.Err(); err != nil {
		metrics.QueryTotal.WithLabelValues("cancelled").Inc()
		return nil, err
	}

	result, err := synthesis.Synthesize(q.Raw, outputs)
	if err != nil {
		if errors.Is(err, synthesis.ErrNoEvidence) {
			metrics.QueryTotal.WithLabelValues("no_evidence").Inc()
		}
		return nil, err
	}

	latency := int(time.Since(startTime).Milliseconds())

	intents := make([]string, 0, len(q.Intents))
	for _, intent := range q.Intents {
		intents = append(intents, string(intent))
	}

	response := &Response{
		ID:           queryID,
		Query:        req.Query,
		Intents:      intents,
		AnswerText:   result.AnswerText,
		CitedSources: result.CitedSources,
		Confidence:   result.Confidence,
		Degraded:     result.Degraded,
		LatencyMS:    latency,
	}

	e.record(response, outputs)

	metrics.QueryTotal.WithLabelValues("success").Inc()
	metrics.ConfidenceScore.Observe(result.Confidence)
	for _, intent := range intents {
		metrics.QueryDuration.WithLabelValues(intent).Observe(time.Since(startTime).Seconds())
	}
	if result.Degraded {
		metrics.DegradedResponses.Inc()
	}

	if e.cache != nil {
		if err := e.cache.SetQuery(ctx, queryHash, response, e.cacheTTL); err != nil {
			logger.Warn("Failed to cache query response", zap.Error(err))
		}
	}

	logger.Info("Query processed",
		zap.String("query_id", queryID),
		zap.Float64("confidence", result.Confidence),
		zap.Bool("degraded", result.Degraded),
		zap.Int("latency_ms", latency),
	)

	return response, nil
}

// runTools fans out to every tool the classification selected. Retrieval
// always runs as supporting context regardless of intent.
func (e *Engine) runTools(ctx context.Context, q router.Query, topK int) []synthesis.ToolOutput {
	var wg sync.WaitGroup
	var mu sync.Mutex
	var outputs []synthesis.ToolOutput

	collect := func(out synthesis.ToolOutput) {
		mu.Lock()
		outputs = append(outputs, out)
		mu.Unlock()

		result := "live"
		if !out.Available {
			result = "degraded"
		}
		metrics.ToolInvocations.WithLabelValues(out.Tool, result).Inc()
	}

	run := func(fn func(ctx context.Context) synthesis.ToolOutput) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			toolCtx, cancel := context.WithTimeout(ctx, e.toolTimeout)
			defer cancel()
			collect(fn(toolCtx))
		}()
	}

	run(e.runRetrieval(q, topK))

	if q.Has(router.IntentStatusCheck) {
		run(e.runRegistry(q))
	}
	if q.Has(router.IntentCaseLaw) {
		run(e.runCaseLaw(q))
	}
	if q.Has(router.IntentCompliance) {
		run(e.runCompliance(q))
	}

	wg.Wait()
	return outputs
}

func (e *Engine) runRetrieval(q router.Query, topK int) func(ctx context.Context) synthesis.ToolOutput {
	return func(ctx context.Context) synthesis.ToolOutput {
		hits, err := e.store.Retrieve(ctx, q.Normalized, topK)
		if err != nil {
			logger.Warn("Retrieval failed", zap.Error(err))
			return synthesis.UnavailableOutput(synthesis.ToolRetrieval)
		}
		metrics.RetrievalResultsCount.Observe(float64(len(hits)))
		return synthesis.RetrievalOutput(hits)
	}
}

func (e *Engine) runRegistry(q router.Query) func(ctx context.Context) synthesis.ToolOutput {
	return func(ctx context.Context) synthesis.ToolOutput {
		if ctx.Err() != nil {
			return synthesis.UnavailableOutput(synthesis.ToolRegistry)
		}
		return synthesis.RegistryOutput(e.registry.Lookup(ctx, q.Normalized))
	}
}

func (e *Engine) runCaseLaw(q router.Query) func(ctx context.Context) synthesis.ToolOutput {
	return func(ctx context.Context) synthesis.ToolOutput {
		if ctx.Err() != nil {
			return synthesis.UnavailableOutput(synthesis.ToolCaseLaw)
		}
		return synthesis.CaseLawOutput(e.caselaw.Search(ctx, q.Normalized))
	}
}

// runCompliance grounds extraction in the best-matching corpus document so
// every fact cites a real source.
func (e *Engine) runCompliance(q router.Query) func(ctx context.Context) synthesis.ToolOutput {
	return func(ctx context.Context) synthesis.ToolOutput {
		hits, err := e.store.Retrieve(ctx, q.Normalized, 1)
		if err != nil {
			logger.Warn("Compliance retrieval failed", zap.Error(err))
			return synthesis.UnavailableOutput(synthesis.ToolCompliance)
		}
		if len(hits) == 0 {
			return synthesis.ComplianceOutput(nil, "")
		}

		doc, found, err := e.store.Get(ctx, hits[0].DocumentID)
		if err != nil {
			logger.Warn("Compliance document load failed",
				zap.String("doc_id", hits[0].DocumentID),
				zap.Error(err),
			)
			return synthesis.UnavailableOutput(synthesis.ToolCompliance)
		}
		if !found {
			return synthesis.ComplianceOutput(nil, "")
		}

		facts := compliance.Extract(doc.Text)
		return synthesis.ComplianceOutput(facts, doc.ID)
	}
}

func (e *Engine) record(response *Response, outputs []synthesis.ToolOutput) {
	if e.db == nil {
		return
	}

	err := e.db.InsertQueryRecord(&models.QueryRecord{
		ID:         response.ID,
		QueryText:  response.Query,
		Intents:    response.Intents,
		AnswerText: response.AnswerText,
		Confidence: response.Confidence,
		Degraded:   response.Degraded,
		LatencyMS:  response.LatencyMS,
		CreatedAt:  time.Now(),
	})
	if err != nil {
		logger.Warn("Failed to persist query record", zap.Error(err))
		return
	}

	for _, out := range outputs {
		if out.Empty() {
			continue
		}
		for _, sourceID := range outputSources(out) {
			err := e.db.InsertQuerySource(&models.QuerySource{
				QueryID:  response.ID,
				Tool:     out.Tool,
				SourceID: sourceID,
			})
			if err != nil {
				logger.Warn("Failed to persist query source", zap.Error(err))
			}
		}
	}
}

func outputSources(out synthesis.ToolOutput) []string {
	switch out.Tool {
	case synthesis.ToolRegistry:
		return []string{out.Record.Identifier}
	case synthesis.ToolCompliance:
		if out.FactSource == "" {
			return nil
		}
		return []string{out.FactSource}
	case synthesis.ToolCaseLaw:
		sources := make([]string, 0, len(out.Cases))
		for _, c := range out.Cases {
			sources = append(sources, c.CaseName)
		}
		return sources
	case synthesis.ToolRetrieval:
		sources := make([]string, 0, len(out.Hits))
		for _, h := range out.Hits {
			sources = append(sources, h.DocumentID)
		}
		return sources
	default:
		return nil
	}
}

package query

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/policy-navigator/backend/internal/caselaw"
	"github.com/policy-navigator/backend/internal/corpus"
	"github.com/policy-navigator/backend/internal/outcome"
	"github.com/policy-navigator/backend/internal/registry"
	"github.com/policy-navigator/backend/internal/router"
	"github.com/policy-navigator/backend/internal/synthesis"
)

type fakeStore struct {
	docs  map[string]corpus.Document
	hits  []corpus.Hit
	calls atomic.Int32
}

func (f *fakeStore) Add(ctx context.Context, doc corpus.Document) error {
	if f.docs == nil {
		f.docs = map[string]corpus.Document{}
	}
	f.docs[doc.ID] = doc
	return nil
}

func (f *fakeStore) Retrieve(ctx context.Context, queryText string, k int) ([]corpus.Hit, error) {
	f.calls.Add(1)
	hits := f.hits
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func (f *fakeStore) Get(ctx context.Context, id string) (corpus.Document, bool, error) {
	doc, ok := f.docs[id]
	return doc, ok, nil
}

func (f *fakeStore) Count(ctx context.Context) (int, error) {
	return len(f.docs), nil
}

type fakeRegistry struct {
	result outcome.Outcome[registry.Record]
	calls  atomic.Int32
}

func (f *fakeRegistry) Lookup(ctx context.Context, term string) outcome.Outcome[registry.Record] {
	f.calls.Add(1)
	return f.result
}

type fakeCaseLaw struct {
	result outcome.Outcome[[]caselaw.Result]
	delay  time.Duration
	calls  atomic.Int32
}

func (f *fakeCaseLaw) Search(ctx context.Context, topic string) outcome.Outcome[[]caselaw.Result] {
	f.calls.Add(1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return outcome.UnavailableOf[[]caselaw.Result]()
		}
	}
	return f.result
}

func activeRecord() outcome.Outcome[registry.Record] {
	return outcome.LiveOf(registry.Record{
		Identifier:      "2022-05471",
		Status:          registry.StatusActive,
		PublicationDate: "2022-03-14",
		Summary:         "Executive Order 14067",
	})
}

func TestProcessRejectsEmptyQueryWithoutRunningTools(t *testing.T) {
	store := &fakeStore{}
	reg := &fakeRegistry{result: activeRecord()}
	cl := &fakeCaseLaw{result: outcome.LiveOf([]caselaw.Result{})}

	engine := NewEngine(router.New(), store, reg, cl)

	_, err := engine.Process(context.Background(), Request{Query: "   "})
	assert.ErrorIs(t, err, router.ErrInvalidQuery)

	assert.Equal(t, int32(0), store.calls.Load())
	assert.Equal(t, int32(0), reg.calls.Load())
	assert.Equal(t, int32(0), cl.calls.Load())
}

func TestProcessStatusCheck(t *testing.T) {
	store := &fakeStore{
		hits: []corpus.Hit{{DocumentID: "eo-14067", Score: 0.88, Snippet: "digital assets"}},
	}
	reg := &fakeRegistry{result: activeRecord()}
	cl := &fakeCaseLaw{}

	engine := NewEngine(router.New(), store, reg, cl)

	resp, err := engine.Process(context.Background(), Request{
		Query: "Is Executive Order 14067 still in effect?",
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"status-check"}, resp.Intents)
	assert.Equal(t, int32(1), reg.calls.Load())
	assert.Equal(t, int32(0), cl.calls.Load())
	assert.False(t, resp.Degraded)
	assert.Contains(t, resp.AnswerText, "active")
	assert.Contains(t, resp.CitedSources, "2022-05471")
	assert.Contains(t, resp.CitedSources, "eo-14067")
	assert.NotEmpty(t, resp.ID)
}

func TestProcessConfidenceIsMinOverTools(t *testing.T) {
	store := &fakeStore{
		hits: []corpus.Hit{{DocumentID: "doc-1", Score: 0.4, Snippet: "snippet"}},
	}
	reg := &fakeRegistry{result: activeRecord()}
	cl := &fakeCaseLaw{}

	engine := NewEngine(router.New(), store, reg, cl)

	resp, err := engine.Process(context.Background(), Request{
		Query: "Is the order still in effect?",
	})
	require.NoError(t, err)

	assert.Equal(t, 0.4, resp.Confidence)
}

func TestProcessSlowToolDegradesInsteadOfFailing(t *testing.T) {
	store := &fakeStore{
		hits: []corpus.Hit{{DocumentID: "doc-1", Score: 0.8, Snippet: "snippet"}},
	}
	reg := &fakeRegistry{result: activeRecord()}
	cl := &fakeCaseLaw{
		result: outcome.LiveOf([]caselaw.Result{{CaseName: "never seen"}}),
		delay:  time.Second,
	}

	engine := NewEngine(router.New(), store, reg, cl,
		WithToolTimeout(50*time.Millisecond),
	)

	resp, err := engine.Process(context.Background(), Request{
		Query: "Has this rule been challenged in court?",
	})
	require.NoError(t, err)

	assert.True(t, resp.Degraded)
	assert.NotEmpty(t, resp.AnswerText)
	assert.NotContains(t, resp.CitedSources, "never seen")
}

func TestProcessCancelledCallerDiscardsPartialResults(t *testing.T) {
	store := &fakeStore{
		hits: []corpus.Hit{{DocumentID: "doc-1", Score: 0.8, Snippet: "snippet"}},
	}
	reg := &fakeRegistry{result: activeRecord()}
	cl := &fakeCaseLaw{}

	engine := NewEngine(router.New(), store, reg, cl)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// The fakes complete instantly and ignore the context; their finished
	// outputs must still be discarded once the caller has cancelled.
	resp, err := engine.Process(ctx, Request{
		Query: "Is the order still in effect?",
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, resp)
}

func TestProcessNoEvidence(t *testing.T) {
	store := &fakeStore{}
	reg := &fakeRegistry{result: activeRecord()}
	cl := &fakeCaseLaw{}

	engine := NewEngine(router.New(), store, reg, cl)

	_, err := engine.Process(context.Background(), Request{
		Query: "Tell me about cryptocurrency policy",
	})
	assert.ErrorIs(t, err, synthesis.ErrNoEvidence)
	assert.Equal(t, int32(0), reg.calls.Load())
}

func TestProcessComplianceGroundsFactsInCorpus(t *testing.T) {
	store := &fakeStore{
		docs: map[string]corpus.Document{
			"hipaa-privacy-rule": {
				ID:    "hipaa-privacy-rule",
				Title: "HIPAA Privacy Rule",
				Text:  "Covered entities must report breaches within 72 hours or face fines up to $50,000.",
			},
		},
		hits: []corpus.Hit{{DocumentID: "hipaa-privacy-rule", Score: 0.9, Snippet: "snippet"}},
	}
	reg := &fakeRegistry{result: activeRecord()}
	cl := &fakeCaseLaw{}

	engine := NewEngine(router.New(), store, reg, cl)

	resp, err := engine.Process(context.Background(), Request{
		Query: "What are the breach reporting requirements?",
	})
	require.NoError(t, err)

	assert.Contains(t, resp.AnswerText, "72 hours")
	assert.Contains(t, resp.AnswerText, "$50,000")
	assert.Contains(t, resp.CitedSources, "hipaa-privacy-rule")
}

func TestProcessIntentOverride(t *testing.T) {
	store := &fakeStore{
		hits: []corpus.Hit{{DocumentID: "doc-1", Score: 0.8, Snippet: "snippet"}},
	}
	reg := &fakeRegistry{result: activeRecord()}
	cl := &fakeCaseLaw{result: outcome.LiveOf([]caselaw.Result{
		{CaseName: "Zeran v. America Online, Inc.", RelevanceScore: 0.9},
	})}

	engine := NewEngine(router.New(), store, reg, cl)

	resp, err := engine.Process(context.Background(), Request{
		Query:   "section 230",
		Intents: []router.Intent{router.IntentCaseLaw},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"case-law"}, resp.Intents)
	assert.Equal(t, int32(1), cl.calls.Load())
	assert.Equal(t, int32(0), reg.calls.Load())
}

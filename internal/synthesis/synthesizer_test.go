package synthesis

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/policy-navigator/backend/internal/caselaw"
	"github.com/policy-navigator/backend/internal/compliance"
	"github.com/policy-navigator/backend/internal/corpus"
	"github.com/policy-navigator/backend/internal/outcome"
	"github.com/policy-navigator/backend/internal/registry"
)

func liveRegistryOutput() ToolOutput {
	return RegistryOutput(outcome.LiveOf(registry.Record{
		Identifier:      "2022-05471",
		Status:          registry.StatusActive,
		PublicationDate: "2022-03-14",
		Summary:         "Executive Order 14067",
	}))
}

func TestSynthesizeNoEvidence(t *testing.T) {
	_, err := Synthesize("anything", []ToolOutput{
		RetrievalOutput([]corpus.Hit{}),
		CaseLawOutput(outcome.FallbackOf([]caselaw.Result{})),
	})

	assert.ErrorIs(t, err, ErrNoEvidence)
}

func TestSynthesizeUnknownStatusCountsAsEmpty(t *testing.T) {
	_, err := Synthesize("anything", []ToolOutput{
		RegistryOutput(outcome.FallbackOf(registry.Record{
			Identifier: "whatever",
			Status:     registry.StatusUnknown,
		})),
	})

	assert.ErrorIs(t, err, ErrNoEvidence)
}

func TestSynthesizeConfidenceIsMinimum(t *testing.T) {
	resp, err := Synthesize("query", []ToolOutput{
		liveRegistryOutput(),
		RetrievalOutput([]corpus.Hit{
			{DocumentID: "doc-1", Score: 0.62, Snippet: "snippet"},
		}),
	})
	require.NoError(t, err)

	assert.Equal(t, 0.62, resp.Confidence)
	assert.False(t, resp.Degraded)
}

func TestSynthesizeEmptyOutputsDoNotDragConfidence(t *testing.T) {
	resp, err := Synthesize("query", []ToolOutput{
		liveRegistryOutput(),
		CaseLawOutput(outcome.LiveOf([]caselaw.Result{})),
	})
	require.NoError(t, err)

	// The empty case-law output has zero confidence but contributes nothing.
	assert.Equal(t, 0.95, resp.Confidence)
}

func TestSynthesizeDegradedWhenAnyToolUnavailable(t *testing.T) {
	resp, err := Synthesize("query", []ToolOutput{
		liveRegistryOutput(),
		UnavailableOutput(ToolCaseLaw),
	})
	require.NoError(t, err)

	assert.True(t, resp.Degraded)
	assert.NotEmpty(t, resp.AnswerText)
}

func TestSynthesizeFallbackDataIsDegradedButUsable(t *testing.T) {
	resp, err := Synthesize("query", []ToolOutput{
		RegistryOutput(outcome.FallbackOf(registry.Record{
			Identifier:      "47-USC-230",
			Status:          registry.StatusActive,
			PublicationDate: "1996-02-08",
			Summary:         "Section 230",
		})),
	})
	require.NoError(t, err)

	assert.True(t, resp.Degraded)
	assert.Equal(t, 0.7, resp.Confidence)
	assert.Contains(t, resp.CitedSources, "47-USC-230")
}

func TestSynthesizePriorityOrder(t *testing.T) {
	resp, err := Synthesize("query", []ToolOutput{
		RetrievalOutput([]corpus.Hit{
			{DocumentID: "doc-1", Score: 0.8, Snippet: "snippet"},
		}),
		CaseLawOutput(outcome.LiveOf([]caselaw.Result{
			{CaseName: "Zeran v. America Online, Inc.", Court: "4th Cir.", Date: "1997-11-12", OutcomeSummary: "immunity upheld", RelevanceScore: 0.9},
		})),
		liveRegistryOutput(),
	})
	require.NoError(t, err)

	statusIdx := strings.Index(resp.AnswerText, "Status:")
	caseIdx := strings.Index(resp.AnswerText, "Relevant case law:")
	docsIdx := strings.Index(resp.AnswerText, "Supporting documents:")

	require.GreaterOrEqual(t, statusIdx, 0)
	require.Greater(t, caseIdx, statusIdx)
	require.Greater(t, docsIdx, caseIdx)
}

func TestSynthesizeCitesEverySurfacedSource(t *testing.T) {
	facts := []compliance.Fact{
		{Kind: compliance.KindMandatory, Span: "must report breaches", Confidence: 0.9},
		{Kind: compliance.KindPenalty, Span: "$50,000", Confidence: 0.9},
	}

	resp, err := Synthesize("query", []ToolOutput{
		ComplianceOutput(facts, "hipaa-privacy-rule"),
		RetrievalOutput([]corpus.Hit{
			{DocumentID: "hipaa-privacy-rule", Score: 0.9, Snippet: "snippet"},
			{DocumentID: "gdpr-overview", Score: 0.7, Snippet: "snippet"},
		}),
	})
	require.NoError(t, err)

	// Deduplicated, first occurrence wins.
	assert.Equal(t, []string{"hipaa-privacy-rule", "gdpr-overview"}, resp.CitedSources)
}

func TestSynthesizeComplianceConfidenceIsMinFact(t *testing.T) {
	out := ComplianceOutput([]compliance.Fact{
		{Kind: compliance.KindMandatory, Span: "a", Confidence: 0.9},
		{Kind: compliance.KindPenalty, Span: "b", Confidence: 0.55},
		{Kind: compliance.KindDeadline, Span: "c", Confidence: 0.7},
	}, "src")

	assert.Equal(t, 0.55, out.Confidence)
}

func TestSynthesizeIsDeterministic(t *testing.T) {
	outputs := []ToolOutput{
		liveRegistryOutput(),
		RetrievalOutput([]corpus.Hit{
			{DocumentID: "doc-1", Score: 0.8, Snippet: "snippet"},
		}),
	}

	first, err := Synthesize("query", outputs)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		again, err := Synthesize("query", outputs)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

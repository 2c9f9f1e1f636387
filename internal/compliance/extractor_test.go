package compliance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractObligationWithDeadlineAndPenalty(t *testing.T) {
	text := "Covered entities must report breaches within 72 hours or face fines up to $50,000."

	facts := Extract(text)
	require.Len(t, facts, 4)

	assert.Equal(t, KindMandatory, facts[0].Kind)
	assert.Equal(t, text, facts[0].Span)
	assert.Equal(t, 0.9, facts[0].Confidence)

	assert.Equal(t, KindDeadline, facts[1].Kind)
	assert.Equal(t, "72 hours", facts[1].Span)
	assert.Equal(t, 0.9, facts[1].Confidence)

	assert.Equal(t, KindPenalty, facts[2].Kind)
	assert.Equal(t, "$50,000", facts[2].Span)
	assert.Equal(t, 0.9, facts[2].Confidence)

	assert.Equal(t, KindStakeholder, facts[3].Kind)
	assert.Equal(t, "covered entities", facts[3].Span)
	assert.Equal(t, 0.9, facts[3].Confidence)
}

func TestExtractProhibition(t *testing.T) {
	facts := Extract("Data processors shall not disclose records to third parties.")

	require.NotEmpty(t, facts)
	assert.Equal(t, KindMandatory, facts[0].Kind)
	assert.Equal(t, 0.9, facts[0].Confidence)
}

func TestExtractOptionalRequirement(t *testing.T) {
	facts := Extract("Agencies are permitted to adopt the voluntary framework.")

	require.NotEmpty(t, facts)
	assert.Equal(t, KindOptional, facts[0].Kind)
	assert.Equal(t, 0.9, facts[0].Confidence)
}

func TestExtractBareMarkerScoresLower(t *testing.T) {
	full := Extract("Banks must file the report within 30 days.")
	bare := Extract("Banks must file the report.")

	require.NotEmpty(t, full)
	require.NotEmpty(t, bare)

	assert.Equal(t, 0.9, full[0].Confidence)
	assert.Equal(t, 0.7, bare[0].Confidence)
	assert.Greater(t, full[0].Confidence, bare[0].Confidence)
}

func TestExtractPenaltyWithoutAmount(t *testing.T) {
	facts := Extract("Violations are subject to civil penalties.")

	var penalty *Fact
	for i := range facts {
		if facts[i].Kind == KindPenalty {
			penalty = &facts[i]
		}
	}

	require.NotNil(t, penalty)
	assert.Equal(t, 0.55, penalty.Confidence)
}

func TestExtractCalendarDeadline(t *testing.T) {
	facts := Extract("All filings are due no later than March 15, 2026.")

	var deadline *Fact
	for i := range facts {
		if facts[i].Kind == KindDeadline {
			deadline = &facts[i]
		}
	}

	require.NotNil(t, deadline)
	assert.Equal(t, "March 15, 2026", deadline.Span)
}

func TestExtractMultipleSentencesKeepsOrder(t *testing.T) {
	text := "Employers must verify eligibility within 3 days. Contractors may request an extension."

	facts := Extract(text)
	require.GreaterOrEqual(t, len(facts), 3)

	assert.Equal(t, KindMandatory, facts[0].Kind)
	assert.Equal(t, KindDeadline, facts[1].Kind)

	var sawOptional bool
	for _, f := range facts {
		if f.Kind == KindOptional {
			sawOptional = true
		}
	}
	assert.True(t, sawOptional)
}

func TestExtractIsPureAndDeterministic(t *testing.T) {
	text := "Covered entities must encrypt records. Platforms may appeal penalties within 30 days."

	first := Extract(text)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Extract(text))
	}
}

func TestExtractEmptyInput(t *testing.T) {
	assert.Empty(t, Extract(""))
	assert.Empty(t, Extract("   \n  "))
	assert.Empty(t, Extract("The weather was pleasant that afternoon."))
}

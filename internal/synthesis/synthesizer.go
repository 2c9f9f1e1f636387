// Package synthesis merges heterogeneous tool outputs into one attributed
// answer. The merge is deterministic composition, not generation: fixed
// priority order, conservative confidence aggregation, and every surfaced fact
// traceable to a cited source.
package synthesis

import (
	"errors"
	"fmt"
	"strings"

	"github.com/policy-navigator/backend/internal/caselaw"
	"github.com/policy-navigator/backend/internal/compliance"
	"github.com/policy-navigator/backend/internal/corpus"
	"github.com/policy-navigator/backend/internal/outcome"
	"github.com/policy-navigator/backend/internal/registry"
)

// ErrNoEvidence is the terminal value returned when every tool, fallbacks
// included, yields nothing. Callers render it as "no information available".
var ErrNoEvidence = errors.New("no evidence found")

const (
	ToolRegistry   = "registry"
	ToolCompliance = "compliance"
	ToolCaseLaw    = "caselaw"
	ToolRetrieval  = "retrieval"
)

// ToolOutput is the tagged union over the four tool payloads. Exactly one
// payload field is populated, matching Tool. Available is false when the tool
// answered from fallback data or not at all.
type ToolOutput struct {
	Tool       string
	Available  bool
	Confidence float64

	Record     *registry.Record
	Facts      []compliance.Fact
	FactSource string
	Cases      []caselaw.Result
	Hits       []corpus.Hit
}

func RegistryOutput(o outcome.Outcome[registry.Record]) ToolOutput {
	out := ToolOutput{Tool: ToolRegistry, Available: o.Available()}
	if o.Status == outcome.Unavailable {
		return out
	}

	record := o.Value
	out.Record = &record
	if o.Available() {
		out.Confidence = 0.95
	} else {
		out.Confidence = 0.7
	}
	return out
}

func CaseLawOutput(o outcome.Outcome[[]caselaw.Result]) ToolOutput {
	out := ToolOutput{Tool: ToolCaseLaw, Available: o.Available()}
	if o.Status == outcome.Unavailable {
		return out
	}

	out.Cases = o.Value
	if len(out.Cases) > 0 {
		out.Confidence = out.Cases[0].RelevanceScore
	}
	return out
}

func ComplianceOutput(facts []compliance.Fact, sourceID string) ToolOutput {
	out := ToolOutput{
		Tool:       ToolCompliance,
		Available:  true,
		Facts:      facts,
		FactSource: sourceID,
	}
	// One weak extraction caps the group, mirroring the overall aggregation.
	for i, fact := range facts {
		if i == 0 || fact.Confidence < out.Confidence {
			out.Confidence = fact.Confidence
		}
	}
	return out
}

func RetrievalOutput(hits []corpus.Hit) ToolOutput {
	out := ToolOutput{Tool: ToolRetrieval, Available: true, Hits: hits}
	if len(hits) > 0 {
		out.Confidence = hits[0].Score
	}
	return out
}

func UnavailableOutput(tool string) ToolOutput {
	return ToolOutput{Tool: tool, Available: false}
}

// Empty reports whether the output carries no usable evidence. A fallback
// registry record whose status is unknown counts as empty: it asserts nothing.
func (t ToolOutput) Empty() bool {
	switch t.Tool {
	case ToolRegistry:
		return t.Record == nil || t.Record.Status == registry.StatusUnknown
	case ToolCompliance:
		return len(t.Facts) == 0
	case ToolCaseLaw:
		return len(t.Cases) == 0
	case ToolRetrieval:
		return len(t.Hits) == 0
	default:
		return true
	}
}

type Response struct {
	AnswerText   string   `json:"answer_text"`
	CitedSources []string `json:"cited_sources"`
	Confidence   float64  `json:"confidence"`
	Degraded     bool     `json:"degraded"`
}

// Synthesize merges outputs in fixed priority order: registry status first,
// compliance facts, case law, retrieval snippets last. Confidence is the
// minimum over contributing non-empty outputs; degradation is advisory and
// never blocks answer production.
func Synthesize(queryText string, outputs []ToolOutput) (Response, error) {
	ordered := orderByPriority(outputs)

	degraded := false
	for _, out := range outputs {
		if !out.Available {
			degraded = true
		}
	}

	var sections []string
	var cited []string
	citedSeen := map[string]bool{}
	confidence := 0.0
	haveEvidence := false

	cite := func(id string) {
		if id == "" || citedSeen[id] {
			return
		}
		citedSeen[id] = true
		cited = append(cited, id)
	}

	for _, out := range ordered {
		if out.Empty() {
			continue
		}

		if !haveEvidence || out.Confidence < confidence {
			confidence = out.Confidence
		}
		haveEvidence = true

		switch out.Tool {
		case ToolRegistry:
			sections = append(sections, formatRegistry(out.Record))
			cite(out.Record.Identifier)
		case ToolCompliance:
			sections = append(sections, formatFacts(out.Facts, out.FactSource))
			cite(out.FactSource)
		case ToolCaseLaw:
			sections = append(sections, formatCases(out.Cases))
			for _, c := range out.Cases {
				cite(c.CaseName)
			}
		case ToolRetrieval:
			sections = append(sections, formatHits(out.Hits))
			for _, h := range out.Hits {
				cite(h.DocumentID)
			}
		}
	}

	if !haveEvidence {
		return Response{}, ErrNoEvidence
	}

	return Response{
		AnswerText:   strings.Join(sections, "\n\n"),
		CitedSources: cited,
		Confidence:   confidence,
		Degraded:     degraded,
	}, nil
}

func orderByPriority(outputs []ToolOutput) []ToolOutput {
	priority := []string{ToolRegistry, ToolCompliance, ToolCaseLaw, ToolRetrieval}

	ordered := make([]ToolOutput, 0, len(outputs))
	for _, tool := range priority {
		for _, out := range outputs {
			if out.Tool == tool {
				ordered = append(ordered, out)
			}
		}
	}
	return ordered
}

func formatRegistry(record *registry.Record) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Status: %s is %s", record.Identifier, record.Status)
	if record.PublicationDate != "" {
		fmt.Fprintf(&b, " (published %s)", record.PublicationDate)
	}
	b.WriteString(".")
	if record.Summary != "" {
		fmt.Fprintf(&b, " %s [%s]", record.Summary, record.Identifier)
	}
	return b.String()
}

func formatFacts(facts []compliance.Fact, sourceID string) string {
	var b strings.Builder
	b.WriteString("Compliance obligations:")
	for _, fact := range facts {
		fmt.Fprintf(&b, "\n- [%s] %s", factLabel(fact.Kind), fact.Span)
		if sourceID != "" {
			fmt.Fprintf(&b, " [%s]", sourceID)
		}
	}
	return b.String()
}

func factLabel(kind compliance.Kind) string {
	switch kind {
	case compliance.KindMandatory:
		return "mandatory"
	case compliance.KindOptional:
		return "optional"
	case compliance.KindDeadline:
		return "deadline"
	case compliance.KindPenalty:
		return "penalty"
	case compliance.KindStakeholder:
		return "stakeholder"
	default:
		return string(kind)
	}
}

func formatCases(cases []caselaw.Result) string {
	var b strings.Builder
	b.WriteString("Relevant case law:")
	for _, c := range cases {
		fmt.Fprintf(&b, "\n- %s (%s, %s): %s [%s]", c.CaseName, c.Court, c.Date, c.OutcomeSummary, c.CaseName)
	}
	return b.String()
}

func formatHits(hits []corpus.Hit) string {
	var b strings.Builder
	b.WriteString("Supporting documents:")
	for _, h := range hits {
		fmt.Fprintf(&b, "\n- %s (relevance %.2f): %s [%s]", h.DocumentID, h.Score, h.Snippet, h.DocumentID)
	}
	return b.String()
}

// Package compliance extracts structured obligations from policy text using
// marker tables and pattern rules. Extraction is a pure function of the text:
// no network, no shared state, identical input always yields identical facts.
package compliance

import (
	"regexp"
	"strings"

	prose "github.com/jdkato/prose/v2"
)

type Kind string

const (
	KindMandatory   Kind = "mandatory_requirement"
	KindOptional    Kind = "optional_requirement"
	KindDeadline    Kind = "deadline"
	KindPenalty     Kind = "penalty"
	KindStakeholder Kind = "stakeholder"
)

// Fact is a single extracted obligation. Confidence is tiered: a full pattern
// match scores highest, a partial match (marker plus some supporting context)
// lower, a bare marker lowest. Partial matches are surfaced as low-confidence
// facts rather than rejected.
type Fact struct {
	Kind       Kind    `json:"kind"`
	Span       string  `json:"span"`
	Confidence float64 `json:"confidence"`
}

const (
	confidenceFull    = 0.9
	confidencePartial = 0.7
	confidenceMarker  = 0.55
)

var (
	obligationMarkers = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bshall\b`),
		regexp.MustCompile(`(?i)\bmust\b`),
		regexp.MustCompile(`(?i)\b(?:is|are)\s+required\s+to\b`),
		regexp.MustCompile(`(?i)\bmandatory\b`),
		regexp.MustCompile(`(?i)\bobligated\s+to\b`),
	}

	// Prohibitions are negative obligations; they outrank the permissive
	// reading of "may not".
	prohibitionMarkers = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bshall\s+not\b`),
		regexp.MustCompile(`(?i)\bmust\s+not\b`),
		regexp.MustCompile(`(?i)\bmay\s+not\b`),
		regexp.MustCompile(`(?i)\b(?:is|are)\s+prohibited\s+from\b`),
		regexp.MustCompile(`(?i)\bforbidden\b`),
	}

	permissivePhrases = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(?:is|are)\s+permitted\s+to\b`),
		regexp.MustCompile(`(?i)\bat\s+(?:its|their)\s+discretion\b`),
		regexp.MustCompile(`(?i)\bvoluntarily\b`),
		regexp.MustCompile(`(?i)\boptional\b`),
	}

	permissiveBare = regexp.MustCompile(`(?i)\b(?:may|can)\b`)

	deadlinePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bwithin\s+(\d+\s+(?:calendar\s+|business\s+)?(?:hours?|days?|weeks?|months?|years?))\b`),
		regexp.MustCompile(`(?i)\b(?:by|before|no\s+later\s+than)\s+((?:january|february|march|april|may|june|july|august|september|october|november|december)\s+\d{1,2},?\s+\d{4})`),
		regexp.MustCompile(`(?i)\beffective\s+(?:on\s+)?((?:january|february|march|april|may|june|july|august|september|october|november|december)\s+\d{1,2},?\s+\d{4})`),
		regexp.MustCompile(`(?i)\b(immediately)\b`),
	}

	penaltyMarkers = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bpenalt(?:y|ies)\b`),
		regexp.MustCompile(`(?i)\bfines?\b`),
		regexp.MustCompile(`(?i)\bsanctions?\b`),
		regexp.MustCompile(`(?i)\bsubject\s+to\s+enforcement\b`),
		regexp.MustCompile(`(?i)\bliabilit(?:y|ies)\b`),
	}

	currencyPattern = regexp.MustCompile(`\$\s?\d[\d,]*(?:\.\d+)?|\b\d+(?:\.\d+)?\s*%|\b\d[\d,]*\s+dollars\b`)

	roleMarkerPattern = regexp.MustCompile(`(?i)\b(?:applies\s+to|covered\s+entities\s+include|covered\s+persons\s+include)\s+([a-z][a-z\s,-]{2,60}?)(?:[.,;]|\s+(?:shall|must|may|and)\b|$)`)

	stakeholderLexicon = []string{
		"covered entities",
		"financial institutions",
		"credit unions",
		"interactive computer services",
		"service providers",
		"data controllers",
		"data processors",
		"health plans",
		"employers",
		"contractors",
		"agencies",
		"platforms",
		"banks",
	}

	sentenceFallback = regexp.MustCompile(`[.!?]+`)
)

// Extract returns the compliance facts found in text, in sentence order. For
// each sentence, facts are emitted in a fixed kind order so repeated calls on
// the same text produce identical sequences.
func Extract(text string) []Fact {
	text = strings.TrimSpace(text)
	if text == "" {
		return []Fact{}
	}

	facts := []Fact{}

	for _, sentence := range splitSentences(text) {
		facts = append(facts, extractFromSentence(sentence)...)
	}

	return facts
}

func splitSentences(text string) []string {
	doc, err := prose.NewDocument(text,
		prose.WithTagging(false),
		prose.WithExtraction(false),
	)
	if err != nil {
		// Degrade to a punctuation split; still deterministic.
		var sentences []string
		for _, s := range sentenceFallback.Split(text, -1) {
			if s = strings.TrimSpace(s); s != "" {
				sentences = append(sentences, s)
			}
		}
		return sentences
	}

	sentences := make([]string, 0, len(doc.Sentences()))
	for _, s := range doc.Sentences() {
		if trimmed := strings.TrimSpace(s.Text); trimmed != "" {
			sentences = append(sentences, trimmed)
		}
	}
	return sentences
}

func extractFromSentence(sentence string) []Fact {
	var facts []Fact

	prohibited := matchesAny(sentence, prohibitionMarkers)
	obligated := prohibited || matchesAny(sentence, obligationMarkers)

	deadlineSpan, hasDeadline := findDeadline(sentence)
	penaltyMarker := matchesAny(sentence, penaltyMarkers)
	currencySpan := currencyPattern.FindString(sentence)

	// Mandatory requirements, prohibitions included. A qualifying deadline or
	// sanction in the same sentence makes the match full; a bare marker still
	// yields a fact at reduced confidence.
	if obligated {
		confidence := confidencePartial
		if hasDeadline || penaltyMarker || currencySpan != "" || prohibited {
			confidence = confidenceFull
		}
		facts = append(facts, Fact{Kind: KindMandatory, Span: sentence, Confidence: confidence})
	} else if matchesAny(sentence, permissivePhrases) {
		facts = append(facts, Fact{Kind: KindOptional, Span: sentence, Confidence: confidenceFull})
	} else if permissiveBare.MatchString(sentence) {
		facts = append(facts, Fact{Kind: KindOptional, Span: sentence, Confidence: confidencePartial})
	}

	if hasDeadline {
		confidence := confidencePartial
		if obligated {
			confidence = confidenceFull
		}
		facts = append(facts, Fact{Kind: KindDeadline, Span: deadlineSpan, Confidence: confidence})
	}

	if penaltyMarker {
		if currencySpan != "" {
			facts = append(facts, Fact{Kind: KindPenalty, Span: currencySpan, Confidence: confidenceFull})
		} else {
			facts = append(facts, Fact{Kind: KindPenalty, Span: sentence, Confidence: confidenceMarker})
		}
	}

	facts = append(facts, extractStakeholders(sentence, obligated)...)

	return facts
}

func findDeadline(sentence string) (string, bool) {
	for _, pattern := range deadlinePatterns {
		if m := pattern.FindStringSubmatch(sentence); m != nil {
			return strings.TrimSpace(m[1]), true
		}
	}
	return "", false
}

func extractStakeholders(sentence string, obligated bool) []Fact {
	var facts []Fact
	seen := map[string]bool{}

	if m := roleMarkerPattern.FindStringSubmatch(sentence); m != nil {
		span := strings.TrimSpace(m[1])
		if span != "" {
			seen[strings.ToLower(span)] = true
			facts = append(facts, Fact{Kind: KindStakeholder, Span: span, Confidence: confidenceFull})
		}
	}

	lower := strings.ToLower(sentence)
	for _, term := range stakeholderLexicon {
		if !strings.Contains(lower, term) || seen[term] {
			continue
		}
		seen[term] = true

		confidence := confidencePartial
		if obligated {
			confidence = confidenceFull
		}
		facts = append(facts, Fact{Kind: KindStakeholder, Span: term, Confidence: confidence})
	}

	return facts
}

func matchesAny(sentence string, patterns []*regexp.Regexp) bool {
	for _, p := range patterns {
		if p.MatchString(sentence) {
			return true
		}
	}
	return false
}

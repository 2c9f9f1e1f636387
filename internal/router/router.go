// Package router classifies queries into task intents and produces the tool
// invocation plan. Classification is an explicit ordered rule table compiled
// once at startup and shared read-only across queries.
package router

import (
	"errors"
	"strings"

	"github.com/policy-navigator/backend/pkg/utils"
)

// ErrInvalidQuery rejects empty or whitespace-only input before any tool runs.
var ErrInvalidQuery = errors.New("invalid query")

type Intent string

const (
	IntentStatusCheck   Intent = "status-check"
	IntentCaseLaw       Intent = "case-law"
	IntentCompliance    Intent = "compliance-analysis"
	IntentGeneralSearch Intent = "general-search"
)

// Query is the per-request classification result; it is never persisted.
type Query struct {
	Raw        string
	Normalized string
	Intents    []Intent
}

func (q Query) Has(intent Intent) bool {
	for _, i := range q.Intents {
		if i == intent {
			return true
		}
	}
	return false
}

// Rule maps a phrase set to an intent. Rules are evaluated in order and are
// not mutually exclusive: a query may carry several intents.
type Rule struct {
	Intent  Intent
	Phrases []string
}

func defaultRules() []Rule {
	return []Rule{
		{
			Intent: IntentStatusCheck,
			Phrases: []string{
				"still in effect",
				"in effect",
				"repealed",
				"revoked",
				"current status",
				"executive order",
				"active",
			},
		},
		{
			Intent: IntentCaseLaw,
			Phrases: []string{
				"court",
				"ruling",
				"challenged",
				"lawsuit",
				"case law",
				"outcome",
				"litigation",
			},
		},
		{
			Intent: IntentCompliance,
			Phrases: []string{
				"requirements",
				"requirement",
				"deadline",
				"penalty",
				"penalties",
				"comply",
				"compliance",
				"obligations",
			},
		},
	}
}

type Router struct {
	rules []Rule
}

func New() *Router {
	return &Router{rules: defaultRules()}
}

func NewWithRules(rules []Rule) *Router {
	return &Router{rules: rules}
}

// Route normalizes the raw query and evaluates every rule against it. Zero
// matches fall back to general-search, which runs semantic retrieval only.
func (r *Router) Route(raw string) (Query, error) {
	normalized := utils.NormalizeQuery(raw)
	if normalized == "" {
		return Query{}, ErrInvalidQuery
	}

	var intents []Intent
	for _, rule := range r.rules {
		for _, phrase := range rule.Phrases {
			if strings.Contains(normalized, phrase) {
				intents = append(intents, rule.Intent)
				break
			}
		}
	}

	if len(intents) == 0 {
		intents = []Intent{IntentGeneralSearch}
	}

	return Query{
		Raw:        raw,
		Normalized: normalized,
		Intents:    intents,
	}, nil
}

// RouteWithOverride bypasses classification when the caller pins intents
// explicitly; the query text is still validated and normalized.
func (r *Router) RouteWithOverride(raw string, override []Intent) (Query, error) {
	if len(override) == 0 {
		return r.Route(raw)
	}

	normalized := utils.NormalizeQuery(raw)
	if normalized == "" {
		return Query{}, ErrInvalidQuery
	}

	return Query{
		Raw:        raw,
		Normalized: normalized,
		Intents:    override,
	}, nil
}

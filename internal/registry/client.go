// Package registry looks up the publication status of regulations and
// executive orders against a Federal Register style API. Lookups never fail:
// when the live service is unreachable the client answers from local fixtures
// and tags the result as a fallback.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/policy-navigator/backend/internal/outcome"
	"github.com/policy-navigator/backend/pkg/logger"
	"github.com/policy-navigator/backend/pkg/retry"
)

type Status string

const (
	StatusActive   Status = "active"
	StatusRepealed Status = "repealed"
	StatusAmended  Status = "amended"
	StatusUnknown  Status = "unknown"
)

type Record struct {
	Identifier      string `json:"identifier"`
	Status          Status `json:"status"`
	PublicationDate string `json:"publication_date,omitempty"`
	Summary         string `json:"summary"`
}

var eoNumberPattern = regexp.MustCompile(`(?i)(?:executive\s+order|\beo)[-\s#]*(\d{4,5})`)

type Client struct {
	baseURL     string
	httpClient  *http.Client
	retryConfig retry.Config
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		retryConfig: retry.Config{
			MaxAttempts:  2,
			InitialDelay: 200 * time.Millisecond,
			Logger:       logger.GetLogger(),
		},
	}
}

// Lookup resolves an identifier or free-text topic to a status record. The
// returned record always carries a concrete Status; StatusUnknown is the
// explicit answer when neither the live service nor the fixtures know better.
func (c *Client) Lookup(ctx context.Context, identifierOrTopic string) outcome.Outcome[Record] {
	term := strings.TrimSpace(identifierOrTopic)

	if m := eoNumberPattern.FindStringSubmatch(term); m != nil {
		term = "Executive Order " + m[1]
	}

	record, err := c.lookupLive(ctx, term)
	if err == nil {
		return outcome.LiveOf(record)
	}

	logger.Warn("Registry lookup failed, using fallback",
		zap.String("term", term),
		zap.Error(err),
	)

	return outcome.FallbackOf(fallbackRecord(term))
}

func (c *Client) lookupLive(ctx context.Context, term string) (Record, error) {
	docs, err := retry.DoWithResult(ctx, c.retryConfig, func() ([]document, error) {
		return c.searchDocuments(ctx, term, 5)
	})
	if err != nil {
		return Record{}, err
	}

	if len(docs) == 0 {
		return Record{}, fmt.Errorf("no registry documents found for %q", term)
	}

	primary := docs[0]
	identifier := primary.DocumentNumber
	if identifier == "" {
		identifier = term
	}

	return Record{
		Identifier:      identifier,
		Status:          deriveStatus(term, docs),
		PublicationDate: primary.PublicationDate,
		Summary:         summarize(primary),
	}, nil
}

type document struct {
	Title                string `json:"title"`
	Type                 string `json:"type"`
	Abstract             string `json:"abstract"`
	DocumentNumber       string `json:"document_number"`
	PublicationDate      string `json:"publication_date"`
	ExecutiveOrderNumber string `json:"executive_order_number"`
}

func (c *Client) searchDocuments(ctx context.Context, term string, limit int) ([]document, error) {
	params := url.Values{}
	params.Set("conditions[term]", term)
	params.Set("per_page", fmt.Sprintf("%d", limit))
	params.Set("order", "newest")

	reqURL := fmt.Sprintf("%s/documents.json?%s", c.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, &retry.Permanent{Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("User-Agent", "PolicyNavigator/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Only timeouts and dropped connections are worth a second attempt.
		if retry.IsTransient(err) {
			return nil, fmt.Errorf("registry request failed: %w", err)
		}
		return nil, &retry.Permanent{Err: fmt.Errorf("registry request failed: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return nil, &retry.Permanent{Err: fmt.Errorf("registry returned status %d", resp.StatusCode)}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("registry returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read registry response: %w", err)
	}

	var searchResp struct {
		Count   int        `json:"count"`
		Results []document `json:"results"`
	}
	// A malformed payload is a lookup failure, not a parse error to surface.
	if err := json.Unmarshal(body, &searchResp); err != nil {
		return nil, &retry.Permanent{Err: fmt.Errorf("unexpected registry response schema: %w", err)}
	}

	return searchResp.Results, nil
}

// deriveStatus scans the result set for later documents that amend or revoke
// the matched regulation. The newest mention wins; revocation outranks
// amendment.
func deriveStatus(term string, docs []document) Status {
	amended := false
	for _, doc := range docs[1:] {
		text := strings.ToLower(doc.Title + " " + doc.Abstract)
		if !strings.Contains(text, strings.ToLower(term)) {
			continue
		}
		if strings.Contains(text, "revok") || strings.Contains(text, "repeal") || strings.Contains(text, "rescind") {
			return StatusRepealed
		}
		if strings.Contains(text, "amend") {
			amended = true
		}
	}
	if amended {
		return StatusAmended
	}
	return StatusActive
}

func summarize(doc document) string {
	if doc.Abstract != "" {
		return fmt.Sprintf("%s - %s", doc.Title, doc.Abstract)
	}
	return doc.Title
}

// RecentRules lists rules published in the last N days, feeding the
// notification boundary. Failures degrade to an empty fallback list.
func (c *Client) RecentRules(ctx context.Context, days int) outcome.Outcome[[]Record] {
	if days <= 0 {
		days = 30
	}

	params := url.Values{}
	params.Set("conditions[type][]", "RULE")
	params.Set("conditions[publication_date][gte]", time.Now().AddDate(0, 0, -days).Format("2006-01-02"))
	params.Set("per_page", "10")
	params.Set("order", "newest")

	reqURL := fmt.Sprintf("%s/documents.json?%s", c.baseURL, params.Encode())

	records, err := retry.DoWithResult(ctx, c.retryConfig, func() ([]Record, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, &retry.Permanent{Err: err}
		}
		req.Header.Set("User-Agent", "PolicyNavigator/1.0")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if retry.IsTransient(err) {
				return nil, fmt.Errorf("registry request failed: %w", err)
			}
			return nil, &retry.Permanent{Err: fmt.Errorf("registry request failed: %w", err)}
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("registry returned status %d", resp.StatusCode)
		}

		var searchResp struct {
			Results []document `json:"results"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&searchResp); err != nil {
			return nil, &retry.Permanent{Err: fmt.Errorf("unexpected registry response schema: %w", err)}
		}

		records := make([]Record, 0, len(searchResp.Results))
		for _, doc := range searchResp.Results {
			records = append(records, Record{
				Identifier:      doc.DocumentNumber,
				Status:          StatusActive,
				PublicationDate: doc.PublicationDate,
				Summary:         summarize(doc),
			})
		}
		return records, nil
	})
	if err != nil {
		logger.Warn("Recent rules lookup failed", zap.Error(err))
		return outcome.FallbackOf([]Record{})
	}

	return outcome.LiveOf(records)
}

// Package caselaw searches court opinions through a CourtListener style API,
// falling back to a small fixture set of landmark cases when the live service
// is unreachable or rejects the request.
package caselaw

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/policy-navigator/backend/internal/outcome"
	"github.com/policy-navigator/backend/pkg/logger"
	"github.com/policy-navigator/backend/pkg/retry"
)

type Result struct {
	CaseName       string  `json:"case_name"`
	Court          string  `json:"court"`
	Date           string  `json:"date"`
	OutcomeSummary string  `json:"outcome_summary"`
	RelevanceScore float64 `json:"relevance_score"`
}

type Client struct {
	baseURL     string
	apiToken    string
	httpClient  *http.Client
	retryConfig retry.Config
	maxResults  int
}

func NewClient(baseURL, apiToken string, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		apiToken: apiToken,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		retryConfig: retry.Config{
			MaxAttempts:  2,
			InitialDelay: 200 * time.Millisecond,
			Logger:       logger.GetLogger(),
		},
		maxResults: 5,
	}
}

// Search returns opinions relevant to a regulation or legal topic, sorted by
// relevance descending. It never returns an error; an unreachable service
// degrades to fixture data tagged as fallback.
func (c *Client) Search(ctx context.Context, regulationOrTopic string) outcome.Outcome[[]Result] {
	topic := strings.TrimSpace(regulationOrTopic)

	results, err := retry.DoWithResult(ctx, c.retryConfig, func() ([]Result, error) {
		return c.searchLive(ctx, topic)
	})
	if err == nil && len(results) > 0 {
		return outcome.LiveOf(results)
	}

	if err != nil {
		logger.Warn("Case law search failed, using fixtures",
			zap.String("topic", topic),
			zap.Error(err),
		)
	}

	return outcome.FallbackOf(fixtureResults(topic))
}

func (c *Client) searchLive(ctx context.Context, topic string) ([]Result, error) {
	params := url.Values{}
	params.Set("q", topic)
	params.Set("order_by", "-date_filed")
	params.Set("page_size", fmt.Sprintf("%d", c.maxResults))

	reqURL := fmt.Sprintf("%s/search/?%s", c.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, &retry.Permanent{Err: err}
	}
	req.Header.Set("User-Agent", "PolicyNavigator/1.0")
	if c.apiToken != "" {
		req.Header.Set("Authorization", "Token "+c.apiToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Only timeouts and dropped connections are worth a second attempt.
		if retry.IsTransient(err) {
			return nil, fmt.Errorf("case law request failed: %w", err)
		}
		return nil, &retry.Permanent{Err: fmt.Errorf("case law request failed: %w", err)}
	}
	defer resp.Body.Close()

	// Rate limiting and auth rejections are permanent misses.
	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return nil, &retry.Permanent{Err: fmt.Errorf("case law service returned status %d", resp.StatusCode)}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("case law service returned status %d", resp.StatusCode)
	}

	var searchResp struct {
		Count   int `json:"count"`
		Results []struct {
			CaseName  string `json:"caseName"`
			Court     string `json:"court"`
			DateFiled string `json:"dateFiled"`
			Snippet   string `json:"snippet"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&searchResp); err != nil {
		return nil, &retry.Permanent{Err: fmt.Errorf("unexpected case law response schema: %w", err)}
	}

	results := make([]Result, 0, len(searchResp.Results))
	for i, r := range searchResp.Results {
		results = append(results, Result{
			CaseName:       r.CaseName,
			Court:          r.Court,
			Date:           r.DateFiled,
			OutcomeSummary: r.Snippet,
			RelevanceScore: rankScore(i),
		})
	}

	sortByRelevance(results)

	return results, nil
}

// rankScore turns the service's own ordering into a descending score in (0,1].
func rankScore(rank int) float64 {
	score := 0.9 - 0.1*float64(rank)
	if score < 0.1 {
		score = 0.1
	}
	return score
}

func sortByRelevance(results []Result) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].RelevanceScore > results[j].RelevanceScore
	})
}

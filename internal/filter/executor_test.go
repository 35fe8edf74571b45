// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package filter

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Cyril-Aubry/llm-query-doc-analyser/internal/store"
	"github.com/Cyril-Aubry/llm-query-doc-analyser/pkg/types"
)

func init() {
	backoffBase = time.Millisecond
}

// scriptedCompleter answers per record title; unknown titles error.
type scriptedCompleter struct {
	answers map[string]string
	errs    map[string]error
}

func (c *scriptedCompleter) Complete(_ context.Context, _, user string) (string, error) {
	for title, err := range c.errs {
		if strings.Contains(user, title) {
			return "", err
		}
	}
	for title, answer := range c.answers {
		if strings.Contains(user, title) {
			return answer, nil
		}
	}
	return "", fmt.Errorf("no scripted answer")
}

func newFilterStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "filter.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func insertArticle(t *testing.T, s *store.Store, title, doi string) types.ResearchArticle {
	t.Helper()
	rec := types.ResearchArticle{
		Title:          title,
		DOINorm:        doi,
		AbstractText:   "Abstract of " + title,
		ImportDatetime: time.Now().UTC(),
	}
	_, err := s.InsertRecord(context.Background(), &rec)
	require.NoError(t, err)
	return rec
}

// TestExecutorThreeOutcomes drives one run with a clean match, a
// missing-explanation match, and a persistently failing record.
func TestExecutorThreeOutcomes(t *testing.T) {
	s := newFilterStore(t)
	ctx := context.Background()

	recA := insertArticle(t, s, "Record A", "10.5/a")
	recB := insertArticle(t, s, "Record B", "10.5/b")
	recC := insertArticle(t, s, "Record C", "10.5/c")

	executor := &Executor{
		Store: s,
		Completer: &scriptedCompleter{
			answers: map[string]string{
				"Record A": `{"match": true, "explanation": "matches because it studies transformers"}`,
				"Record B": `{"match": true}`,
			},
			errs: map[string]error{
				"Record C": fmt.Errorf("HTTP 429 after retries"),
			},
		},
		Cfg: types.FilterConfig{
			Query:         "transformer models",
			Exclude:       "surveys",
			Model:         "test-model",
			MaxConcurrent: 2,
			MaxRetries:    1,
		},
		Log: zap.NewNop(),
	}

	summary, err := executor.Run(ctx, []types.ResearchArticle{recA, recB, recC})
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 2, summary.Matched)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 1, summary.Warnings)

	results, err := s.GetFilteringResults(ctx, summary.FilteringQueryID)
	require.NoError(t, err)
	require.Len(t, results, 3)

	byRecord := make(map[int64]types.FilteringResult, 3)
	for _, r := range results {
		byRecord[r.RecordID] = r
	}

	a := byRecord[recA.ID]
	assert.True(t, a.Match)
	assert.Equal(t, "matches because it studies transformers", a.Explanation)

	b := byRecord[recB.ID]
	assert.True(t, b.Match)
	assert.Equal(t, "WARNING: LLM returned match=true without explanation", b.Explanation)

	c := byRecord[recC.ID]
	assert.False(t, c.Match)
	assert.True(t, strings.HasPrefix(c.Explanation, "ERROR:"), c.Explanation)

	// Export and the PDF stage see only the clean match.
	matched, err := s.MatchedRecordsByFilteringQuery(ctx, summary.FilteringQueryID)
	require.NoError(t, err)
	require.Len(t, matched, 1)
	assert.Equal(t, recA.ID, matched[0].ID)

	// Stats land on the filtering query row.
	q, err := s.GetFilteringQuery(ctx, summary.FilteringQueryID)
	require.NoError(t, err)
	assert.Equal(t, 3, q.TotalRecords)
	assert.Equal(t, 2, q.MatchedCount)
	assert.Equal(t, 1, q.FailedCount)
}

func TestExecutorValidatesConfig(t *testing.T) {
	s := newFilterStore(t)

	_, err := (&Executor{Store: s, Completer: &scriptedCompleter{}, Cfg: types.FilterConfig{Model: "m"}, Log: zap.NewNop()}).
		Run(context.Background(), nil)
	require.Error(t, err)

	_, err = (&Executor{Store: s, Completer: &scriptedCompleter{}, Cfg: types.FilterConfig{Query: "q"}, Log: zap.NewNop()}).
		Run(context.Background(), nil)
	require.Error(t, err)
}

func TestParseDecision(t *testing.T) {
	tests := []struct {
		name        string
		content     string
		wantMatch   bool
		wantExplain string
	}{
		{
			name:        "strict JSON",
			content:     `{"match": true, "explanation": " relevant study "}`,
			wantMatch:   true,
			wantExplain: "relevant study",
		},
		{
			name:        "strict JSON negative",
			content:     `{"match": false, "explanation": "off topic"}`,
			wantMatch:   false,
			wantExplain: "off topic",
		},
		{
			name:        "missing explanation",
			content:     `{"match": true}`,
			wantMatch:   true,
			wantExplain: "WARNING: LLM returned match=true without explanation",
		},
		{
			name:        "missing explanation negative",
			content:     `{"match": false}`,
			wantMatch:   false,
			wantExplain: "WARNING: LLM returned match=false without explanation",
		},
		{
			name:        "loose fallback positive",
			content:     "The answer is true, this is a match because of X.",
			wantMatch:   true,
			wantExplain: "The answer is true, this is a match because of X.",
		},
		{
			name:        "loose fallback negative",
			content:     "Not relevant to the question.",
			wantMatch:   false,
			wantExplain: "Not relevant to the question.",
		},
		{
			name:        "empty content",
			content:     "",
			wantMatch:   false,
			wantExplain: "WARNING: LLM returned match=false without explanation",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			match, explanation := parseDecision(tt.content)
			assert.Equal(t, tt.wantMatch, match)
			assert.Equal(t, tt.wantExplain, explanation)
		})
	}
}

func TestParseDecisionTruncatesFallback(t *testing.T) {
	long := strings.Repeat("x", 300)
	_, explanation := parseDecision(long)
	assert.Len(t, explanation, 200)
}

// flakyCompleter fails a fixed number of times before succeeding.
type flakyCompleter struct {
	failures int
	calls    int
}

func (c *flakyCompleter) Complete(_ context.Context, _, _ string) (string, error) {
	c.calls++
	if c.calls <= c.failures {
		return "", fmt.Errorf("transient failure %d", c.calls)
	}
	return `{"match": true, "explanation": "eventually worked"}`, nil
}

func TestCallWithRetryRecovers(t *testing.T) {
	c := &flakyCompleter{failures: 2}
	out, err := callWithRetry(context.Background(), c, "sys", "user", 3)
	require.NoError(t, err)
	assert.Contains(t, out, "eventually worked")
	assert.Equal(t, 3, c.calls)
}

func TestCallWithRetryExhausts(t *testing.T) {
	c := &flakyCompleter{failures: 100}
	_, err := callWithRetry(context.Background(), c, "sys", "user", 2)
	require.Error(t, err)
	assert.Equal(t, 3, c.calls)
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package filter

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Cyril-Aubry/llm-query-doc-analyser/internal/store"
	"github.com/Cyril-Aubry/llm-query-doc-analyser/pkg/types"
)

const defaultMaxConcurrent = 10

// Executor runs one filtering query over a corpus. Every record yields
// exactly one FilteringResult row; failures become ERROR: rows rather than
// lost records.
type Executor struct {
	Store     *store.Store
	Completer Completer
	Cfg       types.FilterConfig
	Log       *zap.Logger
	Now       func() time.Time

	// Progress, when set, receives (completed, total) after each decision.
	Progress func(completed, total int)
}

// Summary reports the outcome of one filter run.
type Summary struct {
	FilteringQueryID int64
	Total            int
	Matched          int
	Failed           int
	Warnings         int
}

// Run creates the filtering query row, decides every record with bounded
// concurrency, batch-inserts the results and writes back the statistics.
func (e *Executor) Run(ctx context.Context, records []types.ResearchArticle) (Summary, error) {
	var summary Summary
	if e.Cfg.Query == "" {
		return summary, fmt.Errorf("filter query must not be empty")
	}
	if e.Cfg.Model == "" {
		return summary, fmt.Errorf("LLM model must be configured")
	}

	maxConcurrent := e.Cfg.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = defaultMaxConcurrent
	}

	startedAt := e.now()
	qid, err := e.Store.CreateFilteringQuery(ctx, &types.FilteringQuery{
		Datetime:      startedAt,
		Query:         e.Cfg.Query,
		Exclude:       e.Cfg.Exclude,
		LLMModel:      e.Cfg.Model,
		MaxConcurrent: maxConcurrent,
	})
	if err != nil {
		return summary, err
	}
	summary.FilteringQueryID = qid

	e.Log.Info("llm_filtering_started",
		zap.Int64("filtering_query_id", qid),
		zap.Int("total_records", len(records)),
		zap.Int("max_concurrent", maxConcurrent),
	)

	results := make([]types.FilteringResult, len(records))
	var completed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrent)

	for i := range records {
		i := i
		g.Go(func() error {
			rec := &records[i]
			match, explanation := e.decide(gctx, rec)
			results[i] = types.FilteringResult{
				RecordID:         rec.ID,
				FilteringQueryID: qid,
				Match:            match,
				Explanation:      explanation,
				Datetime:         e.now(),
			}
			if e.Progress != nil {
				e.Progress(int(completed.Add(1)), len(records))
			}
			return nil
		})
	}
	g.Wait()

	// One batch insert at the end of the run; a failure mid-run loses only
	// in-flight decisions and leaves the query row detectable.
	if err := e.Store.BatchInsertFilteringResults(ctx, results); err != nil {
		return summary, err
	}

	summary.Total = len(records)
	for _, r := range results {
		if r.Match && !r.IsError() {
			summary.Matched++
		}
		if r.IsError() {
			summary.Failed++
		}
		if r.IsWarning() {
			summary.Warnings++
		}
	}

	if err := e.Store.UpdateFilteringQueryStats(ctx, qid, summary.Total, summary.Matched, summary.Failed); err != nil {
		return summary, err
	}

	e.Log.Info("llm_filtering_completed",
		zap.Int64("filtering_query_id", qid),
		zap.Int("total_records", summary.Total),
		zap.Int("matched_count", summary.Matched),
		zap.Int("failed_count", summary.Failed),
		zap.Int("warning_count", summary.Warnings),
	)
	return summary, nil
}

// decide queries the model for one record and maps the response to a
// (match, explanation) decision. Model failures after retries yield
// match=false with an ERROR: explanation; the executor never drops a
// record.
func (e *Executor) decide(ctx context.Context, rec *types.ResearchArticle) (bool, string) {
	user := userPrompt(e.Cfg.Query, e.Cfg.Exclude, rec.Title, rec.AbstractText)

	content, err := callWithRetry(ctx, e.Completer, systemPrompt, user, e.Cfg.MaxRetries)
	if err != nil {
		e.Log.Error("llm_query_failed",
			zap.String("doi", rec.DOINorm),
			zap.Error(err),
		)
		return false, fmt.Sprintf("%s %T: %v", types.ExplanationErrorPrefix, err, err)
	}

	return parseDecision(content)
}

type llmDecision struct {
	Match       bool   `json:"match"`
	Explanation string `json:"explanation"`
}

// parseDecision interprets the model output. Strict JSON first; on parse
// failure a loose textual check decides the match and the truncated raw
// content becomes the explanation; an empty explanation in either path is
// replaced with a WARNING: sentinel.
func parseDecision(content string) (bool, string) {
	var (
		match       bool
		explanation string
	)

	var decision llmDecision
	if err := json.Unmarshal([]byte(content), &decision); err == nil {
		match = decision.Match
		explanation = strings.TrimSpace(decision.Explanation)
	} else if strings.TrimSpace(content) != "" {
		lower := strings.ToLower(content)
		match = strings.Contains(lower, "true") && strings.Contains(lower, "match")
		explanation = strings.TrimSpace(truncate(content, 200))
	}

	if explanation == "" {
		explanation = fmt.Sprintf("%s LLM returned match=%t without explanation",
			types.ExplanationWarningPrefix, match)
	}
	return match, explanation
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

func (e *Executor) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now().UTC()
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"strings"
	"time"
)

// Reserved explanation prefixes. They partition filtering results for
// downstream SQL: ERROR rows count as failed, WARNING rows count as matched
// but are excluded from export and PDF resolution.
const (
	ExplanationErrorPrefix   = "ERROR:"
	ExplanationWarningPrefix = "WARNING:"
)

// FilteringQuery is one execution of the LLM relevance filter.
type FilteringQuery struct {
	ID            int64     `json:"id" yaml:"id"`
	Datetime      time.Time `json:"filtering_query_datetime" yaml:"filtering_query_datetime"`
	Query         string    `json:"query" yaml:"query"`
	Exclude       string    `json:"exclude_criteria,omitempty" yaml:"exclude_criteria,omitempty"`
	LLMModel      string    `json:"llm_model" yaml:"llm_model"`
	MaxConcurrent int       `json:"max_concurrent" yaml:"max_concurrent"`
	TotalRecords  int       `json:"total_records" yaml:"total_records"`
	MatchedCount  int       `json:"matched_count" yaml:"matched_count"`
	FailedCount   int       `json:"failed_count" yaml:"failed_count"`
}

// FilteringResult is the decision for one (record, filtering query) pair.
// At most one row exists per pair.
type FilteringResult struct {
	ID               int64     `json:"id" yaml:"id"`
	RecordID         int64     `json:"record_id" yaml:"record_id"`
	FilteringQueryID int64     `json:"filtering_query_id" yaml:"filtering_query_id"`
	Match            bool      `json:"match_result" yaml:"match_result"`
	Explanation      string    `json:"explanation" yaml:"explanation"`
	Datetime         time.Time `json:"timestamp,omitzero" yaml:"timestamp,omitempty"`
}

// IsError reports whether the result records a processing failure.
func (r FilteringResult) IsError() bool {
	return strings.HasPrefix(r.Explanation, ExplanationErrorPrefix)
}

// IsWarning reports whether the result carries a suspicious decision: the
// model returned no explanation, or no content at all.
func (r FilteringResult) IsWarning() bool {
	return strings.HasPrefix(r.Explanation, ExplanationWarningPrefix)
}

// Exportable reports whether the result feeds export and the PDF stage:
// a clean match with neither reserved prefix.
func (r FilteringResult) Exportable() bool {
	return r.Match && !r.IsError() && !r.IsWarning()
}

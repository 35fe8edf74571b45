// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/Cyril-Aubry/llm-query-doc-analyser/pkg/types"
)

// CreateFilteringQuery inserts a filtering run row with zeroed counts and
// returns its id.
func (s *Store) CreateFilteringQuery(ctx context.Context, q *types.FilteringQuery) (int64, error) {
	var id int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO filtering_queries (
				filtering_query_datetime, query, exclude_criteria, llm_model,
				max_concurrent, total_records, matched_count, failed_count
			) VALUES (?, ?, ?, ?, ?, 0, 0, 0)`,
			nullTime(q.Datetime), q.Query, nullStr(q.Exclude), q.LLMModel, q.MaxConcurrent,
		)
		if err != nil {
			return fmt.Errorf("creating filtering query: %w", err)
		}
		id, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return 0, err
	}

	q.ID = id
	s.log.Info("filtering_query_created", zap.Int64("filtering_query_id", id))
	return id, nil
}

// UpdateFilteringQueryStats writes the final statistics once at the end of
// a filter run.
func (s *Store) UpdateFilteringQueryStats(ctx context.Context, id int64, total, matched, failed int) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			UPDATE filtering_queries
			SET total_records = ?, matched_count = ?, failed_count = ?
			WHERE id = ?`,
			total, matched, failed, id,
		)
		if err != nil {
			return fmt.Errorf("updating filtering query %d stats: %w", id, err)
		}
		return nil
	})
}

// GetFilteringQuery returns one filtering run by id.
func (s *Store) GetFilteringQuery(ctx context.Context, id int64) (*types.FilteringQuery, error) {
	var (
		q        types.FilteringQuery
		dt       string
		exclude  sql.NullString
		maxConc  sql.NullInt64
		total    sql.NullInt64
		matched  sql.NullInt64
		failed   sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, filtering_query_datetime, query, exclude_criteria,
		       llm_model, max_concurrent, total_records, matched_count, failed_count
		FROM filtering_queries WHERE id = ?`, id,
	).Scan(&q.ID, &dt, &q.Query, &exclude, &q.LLMModel, &maxConc, &total, &matched, &failed)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("filtering query %d not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("fetching filtering query %d: %w", id, err)
	}

	q.Datetime = parseTime(dt)
	q.Exclude = strVal(exclude)
	if maxConc.Valid {
		q.MaxConcurrent = int(maxConc.Int64)
	}
	if total.Valid {
		q.TotalRecords = int(total.Int64)
	}
	if matched.Valid {
		q.MatchedCount = int(matched.Int64)
	}
	if failed.Valid {
		q.FailedCount = int(failed.Int64)
	}
	return &q, nil
}

// BatchInsertFilteringResults inserts all decisions of one run in a single
// transaction. The (record, filtering query) pair is unique; re-running a
// query id against the same records is a caller error surfaced by the
// constraint.
func (s *Store) BatchInsertFilteringResults(ctx context.Context, results []types.FilteringResult) error {
	if len(results) == 0 {
		return nil
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO records_filterings (
				record_id, filtering_query_id, match_result, explanation, timestamp
			) VALUES (?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("preparing result insert: %w", err)
		}
		defer stmt.Close()

		for _, r := range results {
			match := 0
			if r.Match {
				match = 1
			}
			if _, err := stmt.ExecContext(ctx,
				r.RecordID, r.FilteringQueryID, match, nullStr(r.Explanation), nullTime(r.Datetime),
			); err != nil {
				return fmt.Errorf("inserting result for record %d: %w", r.RecordID, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.log.Info("filtering_results_batch_inserted", zap.Int("count", len(results)))
	return nil
}

// GetFilteringResults returns every decision of one filtering run, ordered
// by record id.
func (s *Store) GetFilteringResults(ctx context.Context, filteringQueryID int64) ([]types.FilteringResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, record_id, filtering_query_id, match_result, explanation, timestamp
		FROM records_filterings
		WHERE filtering_query_id = ?
		ORDER BY record_id`, filteringQueryID)
	if err != nil {
		return nil, fmt.Errorf("querying filtering results: %w", err)
	}
	defer rows.Close()

	var results []types.FilteringResult
	for rows.Next() {
		var (
			r           types.FilteringResult
			match       int64
			explanation sql.NullString
			ts          sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.RecordID, &r.FilteringQueryID, &match, &explanation, &ts); err != nil {
			return nil, fmt.Errorf("scanning filtering result: %w", err)
		}
		r.Match = match != 0
		r.Explanation = strVal(explanation)
		r.Datetime = parseTime(strVal(ts))
		results = append(results, r)
	}
	return results, rows.Err()
}

// MatchedRecordsByFilteringQuery returns the records that cleanly matched a
// filtering run: match_result=1 and the explanation carries neither the
// ERROR: nor the WARNING: prefix.
func (s *Store) MatchedRecordsByFilteringQuery(ctx context.Context, filteringQueryID int64) ([]types.ResearchArticle, error) {
	return s.queryRecords(ctx, `
		SELECT `+prefixedRecordColumns("r")+` FROM research_articles r
		JOIN records_filterings rf ON r.id = rf.record_id
		WHERE rf.filtering_query_id = ?
		  AND rf.match_result = 1
		  AND rf.explanation NOT LIKE 'ERROR:%'
		  AND rf.explanation NOT LIKE 'WARNING:%'
		ORDER BY r.id`, filteringQueryID)
}

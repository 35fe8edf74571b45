// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/Cyril-Aubry/llm-query-doc-analyser/pkg/types"
)

// InsertPDFResolution stores the snapshot of candidates considered for a
// record, serialized as JSON.
func (s *Store) InsertPDFResolution(ctx context.Context, res *types.PDFResolution) (int64, error) {
	cands, err := json.Marshal(res.Candidates)
	if err != nil {
		return 0, fmt.Errorf("marshaling candidates: %w", err)
	}

	var id int64
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		r, err := tx.ExecContext(ctx, `
			INSERT INTO pdf_resolutions (record_id, filtering_query_id, timestamp, candidates)
			VALUES (?, ?, ?, ?)`,
			res.RecordID, nullI64(res.FilteringQueryID), nullTime(res.Datetime), string(cands),
		)
		if err != nil {
			return fmt.Errorf("inserting pdf resolution: %w", err)
		}
		id, err = r.LastInsertId()
		return err
	})
	if err != nil {
		return 0, err
	}

	res.ID = id
	s.log.Debug("pdf_resolution_inserted",
		zap.Int64("resolution_id", id),
		zap.Int64("record_id", res.RecordID),
		zap.Int("candidate_count", len(res.Candidates)),
	)
	return id, nil
}

// HasResolution reports whether any resolution snapshot exists for a record.
func (s *Store) HasResolution(ctx context.Context, recordID int64) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM pdf_resolutions WHERE record_id = ?`, recordID,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking resolutions for record %d: %w", recordID, err)
	}
	return n > 0, nil
}

// ResolvedCandidates returns the candidates from the most recent resolution
// snapshot for a record, in stored rank order.
func (s *Store) ResolvedCandidates(ctx context.Context, recordID int64) ([]types.Candidate, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `
		SELECT candidates FROM pdf_resolutions
		WHERE record_id = ?
		ORDER BY id DESC LIMIT 1`, recordID,
	).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetching candidates for record %d: %w", recordID, err)
	}

	var cands []types.Candidate
	if err := json.Unmarshal([]byte(raw), &cands); err != nil {
		return nil, fmt.Errorf("parsing candidates for record %d: %w", recordID, err)
	}
	return cands, nil
}

// RecordPDFDownloadAttempt inserts one download-attempt row, successful or
// not, and returns its id.
func (s *Store) RecordPDFDownloadAttempt(ctx context.Context, d *types.PDFDownload) (int64, error) {
	var id int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		r, err := tx.ExecContext(ctx, `
			INSERT INTO pdf_downloads (
				record_id, filtering_query_id, timestamp, url, source, status,
				pdf_local_path, sha1, final_url, error_message, file_size_bytes
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			d.RecordID, nullI64(d.FilteringQueryID), nullTime(d.Datetime),
			d.URL, d.Source, string(d.Status), nullStr(d.LocalPath),
			nullStr(d.SHA1), nullStr(d.FinalURL), nullStr(d.ErrorMessage),
			nullI64(d.FileSizeBytes),
		)
		if err != nil {
			return fmt.Errorf("inserting pdf download attempt: %w", err)
		}
		id, err = r.LastInsertId()
		return err
	})
	if err != nil {
		return 0, err
	}

	d.ID = id
	s.log.Debug("pdf_download_inserted",
		zap.Int64("download_id", id),
		zap.Int64("record_id", d.RecordID),
		zap.String("status", string(d.Status)),
	)
	return id, nil
}

// LatestSuccessfulDownload returns the most recent downloaded row for a
// record, or nil when none exists.
func (s *Store) LatestSuccessfulDownload(ctx context.Context, recordID int64) (*types.PDFDownload, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, record_id, filtering_query_id, timestamp, url, source, status,
		       pdf_local_path, sha1, final_url, error_message, file_size_bytes
		FROM pdf_downloads
		WHERE record_id = ? AND status = ?
		ORDER BY id DESC LIMIT 1`, recordID, string(types.StatusDownloaded))
	if err != nil {
		return nil, fmt.Errorf("querying downloads for record %d: %w", recordID, err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	return scanDownload(rows)
}

// DownloadsByRecord returns all attempts for a record, oldest first.
func (s *Store) DownloadsByRecord(ctx context.Context, recordID int64) ([]types.PDFDownload, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, record_id, filtering_query_id, timestamp, url, source, status,
		       pdf_local_path, sha1, final_url, error_message, file_size_bytes
		FROM pdf_downloads WHERE record_id = ? ORDER BY id`, recordID)
	if err != nil {
		return nil, fmt.Errorf("querying downloads for record %d: %w", recordID, err)
	}
	defer rows.Close()

	var out []types.PDFDownload
	for rows.Next() {
		d, err := scanDownload(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

func scanDownload(rows *sql.Rows) (*types.PDFDownload, error) {
	var (
		d                                       types.PDFDownload
		qid, size                               sql.NullInt64
		ts, path, sha1, finalURL, errMsg        sql.NullString
		status                                  string
	)
	if err := rows.Scan(&d.ID, &d.RecordID, &qid, &ts, &d.URL, &d.Source,
		&status, &path, &sha1, &finalURL, &errMsg, &size); err != nil {
		return nil, fmt.Errorf("scanning pdf download: %w", err)
	}
	d.FilteringQueryID = i64Ptr(qid)
	d.Datetime = parseTime(strVal(ts))
	d.Status = types.DownloadStatus(status)
	d.LocalPath = strVal(path)
	d.SHA1 = strVal(sha1)
	d.FinalURL = strVal(finalURL)
	d.ErrorMessage = strVal(errMsg)
	d.FileSizeBytes = i64Ptr(size)
	return &d, nil
}

// PDFDownloadStats aggregates attempt counts per status, optionally scoped
// to one filtering query.
func (s *Store) PDFDownloadStats(ctx context.Context, filteringQueryID *int64) (map[string]int, error) {
	query, args := queryScoped(`SELECT status, COUNT(*) FROM pdf_downloads`, filteringQueryID)
	query += ` GROUP BY status`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying download stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[string]int)
	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scanning download stats: %w", err)
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

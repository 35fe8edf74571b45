// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/Cyril-Aubry/llm-query-doc-analyser/pkg/types"
)

// InsertDocxVersion records the outcome of one DOCX lookup, hit or miss.
func (s *Store) InsertDocxVersion(ctx context.Context, v *types.DocxVersion) (int64, error) {
	var id int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO docx_versions (
				record_id, docx_local_path, retrieved_datetime, file_size_bytes, error_message
			) VALUES (?, ?, ?, ?, ?)`,
			v.RecordID, nullStr(v.LocalPath), nullTime(v.RetrievedAt),
			nullI64(v.FileSizeBytes), nullStr(v.ErrorMessage),
		)
		if err != nil {
			return fmt.Errorf("inserting docx version: %w", err)
		}
		id, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return 0, err
	}

	v.ID = id
	s.log.Debug("docx_version_inserted",
		zap.Int64("docx_id", id),
		zap.Int64("record_id", v.RecordID),
		zap.Bool("found", v.LocalPath != ""),
	)
	return id, nil
}

// GetDocxVersion returns one DOCX version row by id.
func (s *Store) GetDocxVersion(ctx context.Context, id int64) (*types.DocxVersion, error) {
	var (
		v            types.DocxVersion
		path, errMsg sql.NullString
		retrieved    sql.NullString
		size         sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, record_id, docx_local_path, retrieved_datetime, file_size_bytes, error_message
		FROM docx_versions WHERE id = ?`, id,
	).Scan(&v.ID, &v.RecordID, &path, &retrieved, &size, &errMsg)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("docx version %d not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("fetching docx version %d: %w", id, err)
	}
	v.LocalPath = strVal(path)
	v.RetrievedAt = parseTime(strVal(retrieved))
	v.FileSizeBytes = i64Ptr(size)
	v.ErrorMessage = strVal(errMsg)
	return &v, nil
}

// DocxVersionsPendingConversion returns DOCX hits that have no Markdown
// version yet.
func (s *Store) DocxVersionsPendingConversion(ctx context.Context) ([]types.DocxVersion, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT d.id, d.record_id, d.docx_local_path, d.retrieved_datetime,
		       d.file_size_bytes, d.error_message
		FROM docx_versions d
		LEFT JOIN markdown_versions m ON m.docx_version_id = d.id
		WHERE d.docx_local_path IS NOT NULL AND m.id IS NULL
		ORDER BY d.id`)
	if err != nil {
		return nil, fmt.Errorf("querying pending docx conversions: %w", err)
	}
	defer rows.Close()

	var out []types.DocxVersion
	for rows.Next() {
		var (
			v            types.DocxVersion
			path, errMsg sql.NullString
			retrieved    sql.NullString
			size         sql.NullInt64
		)
		if err := rows.Scan(&v.ID, &v.RecordID, &path, &retrieved, &size, &errMsg); err != nil {
			return nil, fmt.Errorf("scanning docx version: %w", err)
		}
		v.LocalPath = strVal(path)
		v.RetrievedAt = parseTime(strVal(retrieved))
		v.FileSizeBytes = i64Ptr(size)
		v.ErrorMessage = strVal(errMsg)
		out = append(out, v)
	}
	return out, rows.Err()
}

// RecordsMissingDocx returns records that have a successful PDF download
// but no DOCX lookup row yet, paired with the downloaded PDF path.
func (s *Store) RecordsMissingDocx(ctx context.Context) (map[int64]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT pd.record_id, pd.pdf_local_path FROM pdf_downloads pd
		WHERE pd.status = 'downloaded'
		  AND pd.pdf_local_path IS NOT NULL
		  AND NOT EXISTS (SELECT 1 FROM docx_versions dv WHERE dv.record_id = pd.record_id)
		GROUP BY pd.record_id`)
	if err != nil {
		return nil, fmt.Errorf("querying records missing docx: %w", err)
	}
	defer rows.Close()

	out := make(map[int64]string)
	for rows.Next() {
		var (
			recordID int64
			path     string
		)
		if err := rows.Scan(&recordID, &path); err != nil {
			return nil, fmt.Errorf("scanning record missing docx: %w", err)
		}
		out[recordID] = path
	}
	return out, rows.Err()
}

// InsertMarkdownVersion records one conversion output. The application
// enforces the source invariant (exactly one of docx_version_id and
// html_version_id) so migrated tables without the CHECK stay consistent.
func (s *Store) InsertMarkdownVersion(ctx context.Context, v *types.MarkdownVersion) (int64, error) {
	if (v.DocxVersionID == nil) == (v.HTMLVersionID == nil) {
		return 0, fmt.Errorf("markdown version must reference exactly one of docx_version_id and html_version_id")
	}
	switch v.SourceType {
	case types.SourceDocx:
		if v.DocxVersionID == nil {
			return 0, fmt.Errorf("source_type docx requires docx_version_id")
		}
	case types.SourceHTML:
		if v.HTMLVersionID == nil {
			return 0, fmt.Errorf("source_type html requires html_version_id")
		}
	default:
		return 0, fmt.Errorf("unknown markdown source type %q", v.SourceType)
	}

	var id int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO markdown_versions (
				record_id, source_type, docx_version_id, html_version_id,
				variant, markdown_local_path, created_datetime,
				file_size_bytes, error_message
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			v.RecordID, string(v.SourceType), nullI64(v.DocxVersionID),
			nullI64(v.HTMLVersionID), string(v.Variant), nullStr(v.LocalPath),
			nullTime(v.CreatedAt), nullI64(v.FileSizeBytes), nullStr(v.ErrorMessage),
		)
		if err != nil {
			return fmt.Errorf("inserting markdown version: %w", err)
		}
		id, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return 0, err
	}

	v.ID = id
	s.log.Debug("markdown_version_inserted",
		zap.Int64("markdown_id", id),
		zap.Int64("record_id", v.RecordID),
		zap.String("variant", string(v.Variant)),
		zap.Bool("ok", v.ErrorMessage == ""),
	)
	return id, nil
}

// MarkdownVersionsByRecord returns conversion rows for a record, oldest
// first.
func (s *Store) MarkdownVersionsByRecord(ctx context.Context, recordID int64) ([]types.MarkdownVersion, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, record_id, source_type, docx_version_id, html_version_id,
		       variant, markdown_local_path, created_datetime, file_size_bytes, error_message
		FROM markdown_versions WHERE record_id = ? ORDER BY id`, recordID)
	if err != nil {
		return nil, fmt.Errorf("querying markdown versions: %w", err)
	}
	defer rows.Close()

	var out []types.MarkdownVersion
	for rows.Next() {
		var (
			v              types.MarkdownVersion
			srcType        string
			variant        string
			docxID, htmlID sql.NullInt64
			size           sql.NullInt64
			path, created  sql.NullString
			errMsg         sql.NullString
		)
		if err := rows.Scan(&v.ID, &v.RecordID, &srcType, &docxID, &htmlID,
			&variant, &path, &created, &size, &errMsg); err != nil {
			return nil, fmt.Errorf("scanning markdown version: %w", err)
		}
		v.SourceType = types.MarkdownSourceType(srcType)
		v.DocxVersionID = i64Ptr(docxID)
		v.HTMLVersionID = i64Ptr(htmlID)
		v.Variant = types.MarkdownVariant(variant)
		v.LocalPath = strVal(path)
		v.CreatedAt = parseTime(strVal(created))
		v.FileSizeBytes = i64Ptr(size)
		v.ErrorMessage = strVal(errMsg)
		out = append(out, v)
	}
	return out, rows.Err()
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package store persists the curation pipeline's state in one embedded
// SQLite database: research articles, filtering runs and their per-record
// decisions, PDF resolutions and download attempts, and the DOCX/Markdown
// artifact lineage. The Store exclusively owns all persistent state; other
// components hold transient copies keyed by surrogate id.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// ErrDuplicateDOI reports an ingest collision on doi_norm. Callers surface
// it as a "skipped" outcome, not an error.
var ErrDuplicateDOI = errors.New("duplicate DOI")

// Store manages the pipeline database. Writes are serialized through a
// process-wide mutex because SQLite provides no row-level locking; reads
// proceed concurrently.
type Store struct {
	db      *sql.DB
	writeMu sync.Mutex
	log     *zap.Logger
}

// New opens or creates the database at dbPath, creating parent directories
// as needed. It creates the schema when absent and applies additive column
// migrations for databases written by earlier versions.
func New(dbPath string, log *zap.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	dsn := dbPath + "?_foreign_keys=on&_journal_mode=DELETE&_synchronous=FULL&_busy_timeout=5000"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db, log: log}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating schema: %w", err)
	}

	log.Debug("database_ready", zap.String("path", dbPath))
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS research_articles (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			title TEXT NOT NULL,
			doi_raw TEXT,
			doi_norm TEXT UNIQUE,
			pub_date TEXT,
			total_citations INTEGER,
			citations_per_year REAL,
			authors TEXT,
			source_title TEXT,
			abstract_text TEXT,
			abstract_source TEXT,
			abstract_no_retrieval_reason TEXT,
			pmid TEXT,
			pmcid TEXT,
			arxiv_id TEXT,
			is_preprint INTEGER NOT NULL DEFAULT 0,
			preprint_source TEXT,
			published_doi TEXT,
			published_journal TEXT,
			is_oa INTEGER,
			oa_status TEXT,
			license TEXT,
			oa_pdf_url TEXT,
			manual_url_publisher TEXT,
			manual_url_repository TEXT,
			provenance TEXT,
			import_datetime TEXT,
			enrichment_datetime TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS filtering_queries (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			filtering_query_datetime TEXT NOT NULL,
			query TEXT NOT NULL,
			exclude_criteria TEXT,
			llm_model TEXT NOT NULL,
			max_concurrent INTEGER,
			total_records INTEGER,
			matched_count INTEGER,
			failed_count INTEGER
		)`,
		`CREATE TABLE IF NOT EXISTS records_filterings (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			record_id INTEGER NOT NULL,
			filtering_query_id INTEGER NOT NULL,
			match_result INTEGER NOT NULL,
			explanation TEXT,
			timestamp TEXT,
			UNIQUE (record_id, filtering_query_id),
			FOREIGN KEY (record_id) REFERENCES research_articles(id) ON DELETE CASCADE,
			FOREIGN KEY (filtering_query_id) REFERENCES filtering_queries(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS pdf_resolutions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			record_id INTEGER NOT NULL,
			filtering_query_id INTEGER,
			timestamp TEXT NOT NULL,
			candidates TEXT NOT NULL,
			FOREIGN KEY (record_id) REFERENCES research_articles(id) ON DELETE CASCADE,
			FOREIGN KEY (filtering_query_id) REFERENCES filtering_queries(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS pdf_downloads (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			record_id INTEGER NOT NULL,
			filtering_query_id INTEGER,
			timestamp TEXT NOT NULL,
			url TEXT NOT NULL,
			source TEXT NOT NULL,
			status TEXT NOT NULL,
			pdf_local_path TEXT,
			sha1 TEXT,
			final_url TEXT,
			error_message TEXT,
			file_size_bytes INTEGER,
			FOREIGN KEY (record_id) REFERENCES research_articles(id) ON DELETE CASCADE,
			FOREIGN KEY (filtering_query_id) REFERENCES filtering_queries(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS docx_versions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			record_id INTEGER NOT NULL,
			docx_local_path TEXT,
			retrieved_datetime TEXT NOT NULL,
			file_size_bytes INTEGER,
			error_message TEXT,
			FOREIGN KEY (record_id) REFERENCES research_articles(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS markdown_versions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			record_id INTEGER NOT NULL,
			source_type TEXT NOT NULL DEFAULT 'docx',
			docx_version_id INTEGER,
			html_version_id INTEGER,
			variant TEXT NOT NULL,
			markdown_local_path TEXT,
			created_datetime TEXT NOT NULL,
			file_size_bytes INTEGER,
			error_message TEXT,
			CHECK ((docx_version_id IS NULL) != (html_version_id IS NULL)),
			FOREIGN KEY (record_id) REFERENCES research_articles(id) ON DELETE CASCADE,
			FOREIGN KEY (docx_version_id) REFERENCES docx_versions(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS article_versions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			preprint_id INTEGER NOT NULL,
			published_id INTEGER NOT NULL,
			discovery_source TEXT,
			link_datetime TEXT NOT NULL,
			UNIQUE (preprint_id, published_id),
			CHECK (preprint_id != published_id),
			FOREIGN KEY (preprint_id) REFERENCES research_articles(id) ON DELETE CASCADE,
			FOREIGN KEY (published_id) REFERENCES research_articles(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_records_filterings_record_id ON records_filterings(record_id)`,
		`CREATE INDEX IF NOT EXISTS idx_records_filterings_filtering_query_id ON records_filterings(filtering_query_id)`,
		`CREATE INDEX IF NOT EXISTS idx_filtering_queries_datetime ON filtering_queries(filtering_query_datetime)`,
		`CREATE INDEX IF NOT EXISTS idx_pdf_resolutions_record_id ON pdf_resolutions(record_id)`,
		`CREATE INDEX IF NOT EXISTS idx_pdf_resolutions_filtering_query_id ON pdf_resolutions(filtering_query_id)`,
		`CREATE INDEX IF NOT EXISTS idx_pdf_downloads_record_id ON pdf_downloads(record_id)`,
		`CREATE INDEX IF NOT EXISTS idx_pdf_downloads_filtering_query_id ON pdf_downloads(filtering_query_id)`,
		`CREATE INDEX IF NOT EXISTS idx_pdf_downloads_status ON pdf_downloads(status)`,
		`CREATE INDEX IF NOT EXISTS idx_docx_versions_record_id ON docx_versions(record_id)`,
		`CREATE INDEX IF NOT EXISTS idx_markdown_versions_record_id ON markdown_versions(record_id)`,
		`CREATE INDEX IF NOT EXISTS idx_markdown_versions_docx_version_id ON markdown_versions(docx_version_id)`,
		`CREATE INDEX IF NOT EXISTS idx_article_versions_preprint_id ON article_versions(preprint_id)`,
		`CREATE INDEX IF NOT EXISTS idx_article_versions_published_id ON article_versions(published_id)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// migration describes one additive column for databases created by earlier
// versions. CHECK constraints are only applied at table creation; for
// migrated tables the application enforces the invariant on writes.
type migration struct {
	table  string
	column string
	ddl    string
}

var migrations = []migration{
	{"research_articles", "abstract_no_retrieval_reason", "abstract_no_retrieval_reason TEXT"},
	{"research_articles", "pmcid", "pmcid TEXT"},
	{"research_articles", "is_preprint", "is_preprint INTEGER NOT NULL DEFAULT 0"},
	{"research_articles", "preprint_source", "preprint_source TEXT"},
	{"research_articles", "published_doi", "published_doi TEXT"},
	{"research_articles", "published_journal", "published_journal TEXT"},
	{"research_articles", "manual_url_publisher", "manual_url_publisher TEXT"},
	{"research_articles", "manual_url_repository", "manual_url_repository TEXT"},
	{"records_filterings", "timestamp", "timestamp TEXT"},
	{"pdf_downloads", "file_size_bytes", "file_size_bytes INTEGER"},
	{"docx_versions", "file_size_bytes", "file_size_bytes INTEGER"},
	{"markdown_versions", "file_size_bytes", "file_size_bytes INTEGER"},
	{"markdown_versions", "html_version_id", "html_version_id INTEGER"},
	{"markdown_versions", "source_type", "source_type TEXT NOT NULL DEFAULT 'docx'"},
}

// migrate introspects each table's columns and issues additive ALTERs for
// any missing ones. Existing rows keep NULL (or the declared default) in
// new columns.
func (s *Store) migrate() error {
	for _, m := range migrations {
		have, err := s.tableColumns(m.table)
		if err != nil {
			return err
		}
		if have[m.column] {
			continue
		}
		stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", m.table, m.ddl)
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("adding column %s.%s: %w", m.table, m.column, err)
		}
		s.log.Info("schema_column_added",
			zap.String("table", m.table),
			zap.String("column", m.column),
		)
	}
	return nil
}

func (s *Store) tableColumns(table string) (map[string]bool, error) {
	rows, err := s.db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return nil, fmt.Errorf("introspecting %s: %w", table, err)
	}
	defer rows.Close()

	cols := make(map[string]bool)
	for rows.Next() {
		var (
			cid        int
			name, typ  string
			notnull    int
			dflt       sql.NullString
			primaryKey int
		)
		if err := rows.Scan(&cid, &name, &typ, &notnull, &dflt, &primaryKey); err != nil {
			return nil, fmt.Errorf("scanning table_info for %s: %w", table, err)
		}
		cols[name] = true
	}
	return cols, rows.Err()
}

// withTx runs fn inside a transaction while holding the process-wide write
// lock. Any error rolls the transaction back.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// isUniqueViolation reports whether err is a UNIQUE constraint failure.
func isUniqueViolation(err error) bool {
	var serr sqlite3.Error
	if errors.As(err, &serr) {
		return serr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			serr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

// Null-mapping helpers: empty strings, nil pointers and zero times persist
// as SQL NULL.

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullI64(p *int64) any {
	if p == nil {
		return nil
	}
	return *p
}

func nullF64(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

func nullBool(p *bool) any {
	if p == nil {
		return nil
	}
	if *p {
		return int64(1)
	}
	return int64(0)
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func strVal(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

func i64Ptr(ni sql.NullInt64) *int64 {
	if !ni.Valid {
		return nil
	}
	v := ni.Int64
	return &v
}

func f64Ptr(nf sql.NullFloat64) *float64 {
	if !nf.Valid {
		return nil
	}
	v := nf.Float64
	return &v
}

func boolPtr(ni sql.NullInt64) *bool {
	if !ni.Valid {
		return nil
	}
	v := ni.Int64 != 0
	return &v
}

// queryScoped appends a filtering-query predicate when qid is non-nil.
func queryScoped(base string, qid *int64) (string, []any) {
	if qid == nil {
		return base, nil
	}
	if strings.Contains(base, "WHERE") {
		return base + " AND filtering_query_id = ?", []any{*qid}
	}
	return base + " WHERE filtering_query_id = ?", []any{*qid}
}

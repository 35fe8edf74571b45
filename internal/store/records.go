// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/Cyril-Aubry/llm-query-doc-analyser/pkg/types"
)

const recordColumns = `id, title, doi_raw, doi_norm, pub_date, total_citations,
	citations_per_year, authors, source_title, abstract_text, abstract_source,
	abstract_no_retrieval_reason, pmid, pmcid, arxiv_id, is_preprint,
	preprint_source, published_doi, published_journal, is_oa, oa_status,
	license, oa_pdf_url, manual_url_publisher, manual_url_repository,
	provenance, import_datetime, enrichment_datetime`

// prefixedRecordColumns qualifies every record column with a table alias
// for use in joins.
func prefixedRecordColumns(alias string) string {
	cols := strings.Split(recordColumns, ",")
	for i, c := range cols {
		cols[i] = alias + "." + strings.TrimSpace(c)
	}
	return strings.Join(cols, ", ")
}

// InsertRecord inserts a new research article. A collision on doi_norm
// returns ErrDuplicateDOI so ingest can report the row as skipped.
func (s *Store) InsertRecord(ctx context.Context, rec *types.ResearchArticle) (int64, error) {
	prov, err := marshalProvenance(rec.Provenance)
	if err != nil {
		return 0, err
	}

	var id int64
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO research_articles (
				title, doi_raw, doi_norm, pub_date, total_citations,
				citations_per_year, authors, source_title, abstract_text,
				abstract_source, abstract_no_retrieval_reason, pmid, pmcid,
				arxiv_id, is_preprint, preprint_source, published_doi,
				published_journal, is_oa, oa_status, license, oa_pdf_url,
				manual_url_publisher, manual_url_repository, provenance,
				import_datetime, enrichment_datetime
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.Title, nullStr(rec.DOIRaw), nullStr(rec.DOINorm),
			nullStr(rec.PubDate), nullI64(rec.TotalCitations),
			nullF64(rec.CitationsPerYear), nullStr(rec.Authors),
			nullStr(rec.SourceTitle), nullStr(rec.AbstractText),
			nullStr(rec.AbstractSource), nullStr(rec.AbstractNoRetrievalReason),
			nullStr(rec.PMID), nullStr(rec.PMCID), nullStr(rec.ArxivID),
			rec.IsPreprint, nullStr(rec.PreprintSource),
			nullStr(rec.PublishedDOI), nullStr(rec.PublishedJournal),
			nullBool(rec.IsOA), nullStr(rec.OAStatus), nullStr(rec.License),
			nullStr(rec.OAPDFURL), nullStr(rec.ManualURLPublisher),
			nullStr(rec.ManualURLRepository), prov,
			nullTime(rec.ImportDatetime), nullTime(rec.EnrichmentDatetime),
		)
		if err != nil {
			if isUniqueViolation(err) {
				return ErrDuplicateDOI
			}
			return fmt.Errorf("inserting record: %w", err)
		}
		id, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return 0, err
	}

	rec.ID = id
	s.log.Debug("record_inserted", zap.Int64("id", id), zap.String("doi", rec.DOINorm))
	return id, nil
}

// UpdateEnrichment writes the enrichment outcome for a record by id. It
// never touches title, citation counts or import_datetime; the enrichment
// timestamp is written last in the same statement so a crash before this
// call leaves the record eligible for retry.
func (s *Store) UpdateEnrichment(ctx context.Context, rec *types.ResearchArticle) error {
	prov, err := marshalProvenance(rec.Provenance)
	if err != nil {
		return err
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			UPDATE research_articles SET
				abstract_text = ?,
				abstract_source = ?,
				abstract_no_retrieval_reason = ?,
				pmid = ?,
				pmcid = ?,
				arxiv_id = ?,
				is_preprint = ?,
				preprint_source = ?,
				published_doi = ?,
				published_journal = ?,
				is_oa = ?,
				oa_status = ?,
				license = ?,
				oa_pdf_url = ?,
				provenance = ?,
				enrichment_datetime = ?
			WHERE id = ?`,
			nullStr(rec.AbstractText), nullStr(rec.AbstractSource),
			nullStr(rec.AbstractNoRetrievalReason), nullStr(rec.PMID),
			nullStr(rec.PMCID), nullStr(rec.ArxivID), rec.IsPreprint,
			nullStr(rec.PreprintSource), nullStr(rec.PublishedDOI),
			nullStr(rec.PublishedJournal), nullBool(rec.IsOA),
			nullStr(rec.OAStatus), nullStr(rec.License), nullStr(rec.OAPDFURL),
			prov, nullTime(rec.EnrichmentDatetime), rec.ID,
		)
		if err != nil {
			return fmt.Errorf("updating enrichment for record %d: %w", rec.ID, err)
		}
		return nil
	})
}

// UpsertRecord updates metadata by doi_norm or inserts a new row when the
// DOI is unseen. import_datetime is never clobbered on update. Returns the
// record id and whether a new row was created.
func (s *Store) UpsertRecord(ctx context.Context, rec *types.ResearchArticle) (int64, bool, error) {
	if rec.DOINorm == "" {
		id, err := s.InsertRecord(ctx, rec)
		return id, err == nil, err
	}

	prov, err := marshalProvenance(rec.Provenance)
	if err != nil {
		return 0, false, err
	}

	var (
		id       int64
		inserted bool
	)
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE research_articles SET
				title = ?, doi_raw = ?, pub_date = ?, total_citations = ?,
				citations_per_year = ?, authors = ?, source_title = ?,
				abstract_text = ?, abstract_source = ?, pmid = ?, pmcid = ?,
				arxiv_id = ?, is_preprint = ?, preprint_source = ?,
				is_oa = ?, oa_status = ?, license = ?, oa_pdf_url = ?,
				provenance = ?
			WHERE doi_norm = ?`,
			rec.Title, nullStr(rec.DOIRaw), nullStr(rec.PubDate),
			nullI64(rec.TotalCitations), nullF64(rec.CitationsPerYear),
			nullStr(rec.Authors), nullStr(rec.SourceTitle),
			nullStr(rec.AbstractText), nullStr(rec.AbstractSource),
			nullStr(rec.PMID), nullStr(rec.PMCID), nullStr(rec.ArxivID),
			rec.IsPreprint, nullStr(rec.PreprintSource), nullBool(rec.IsOA),
			nullStr(rec.OAStatus), nullStr(rec.License), nullStr(rec.OAPDFURL),
			prov, rec.DOINorm,
		)
		if err != nil {
			return fmt.Errorf("updating record by DOI: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n > 0 {
			return tx.QueryRowContext(ctx,
				`SELECT id FROM research_articles WHERE doi_norm = ?`, rec.DOINorm,
			).Scan(&id)
		}

		inserted = true
		ins, err := tx.ExecContext(ctx, `
			INSERT INTO research_articles (
				title, doi_raw, doi_norm, pub_date, total_citations,
				citations_per_year, authors, source_title, abstract_text,
				abstract_source, pmid, pmcid, arxiv_id, is_preprint,
				preprint_source, is_oa, oa_status, license, oa_pdf_url,
				provenance, import_datetime
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.Title, nullStr(rec.DOIRaw), rec.DOINorm, nullStr(rec.PubDate),
			nullI64(rec.TotalCitations), nullF64(rec.CitationsPerYear),
			nullStr(rec.Authors), nullStr(rec.SourceTitle),
			nullStr(rec.AbstractText), nullStr(rec.AbstractSource),
			nullStr(rec.PMID), nullStr(rec.PMCID), nullStr(rec.ArxivID),
			rec.IsPreprint, nullStr(rec.PreprintSource), nullBool(rec.IsOA),
			nullStr(rec.OAStatus), nullStr(rec.License), nullStr(rec.OAPDFURL),
			prov, nullTime(rec.ImportDatetime),
		)
		if err != nil {
			return fmt.Errorf("inserting record by DOI: %w", err)
		}
		id, err = ins.LastInsertId()
		return err
	})
	if err != nil {
		return 0, false, err
	}
	rec.ID = id
	return id, inserted, nil
}

// GetRecords returns every research article.
func (s *Store) GetRecords(ctx context.Context) ([]types.ResearchArticle, error) {
	return s.queryRecords(ctx,
		`SELECT `+recordColumns+` FROM research_articles ORDER BY id`)
}

// GetRecord returns one research article by id.
func (s *Store) GetRecord(ctx context.Context, id int64) (*types.ResearchArticle, error) {
	recs, err := s.queryRecords(ctx,
		`SELECT `+recordColumns+` FROM research_articles WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("record %d not found", id)
	}
	return &recs[0], nil
}

// GetRecordIDByDOI looks up a record id by normalized DOI.
func (s *Store) GetRecordIDByDOI(ctx context.Context, doiNorm string) (int64, bool, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM research_articles WHERE doi_norm = ?`, doiNorm,
	).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("looking up DOI %s: %w", doiNorm, err)
	}
	return id, true, nil
}

// RecordsNeedingEnrichment returns records whose enrichment_datetime is
// NULL. The database is the authoritative work list for the multi-pass
// loop; records created mid-pass are picked up here on the next pass.
func (s *Store) RecordsNeedingEnrichment(ctx context.Context) ([]types.ResearchArticle, error) {
	return s.queryRecords(ctx,
		`SELECT `+recordColumns+` FROM research_articles
		 WHERE enrichment_datetime IS NULL ORDER BY id`)
}

// ClearEnrichmentForEmpty resets enrichment_datetime for records that were
// marked enriched but hold neither an abstract nor OA data, making them
// eligible again. Used by the opt-in retry-empty mode.
func (s *Store) ClearEnrichmentForEmpty(ctx context.Context) (int64, error) {
	var n int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE research_articles SET enrichment_datetime = NULL
			WHERE enrichment_datetime IS NOT NULL
			  AND abstract_text IS NULL
			  AND is_oa IS NULL`)
		if err != nil {
			return fmt.Errorf("clearing empty enrichments: %w", err)
		}
		n, err = res.RowsAffected()
		return err
	})
	return n, err
}

// GetRecordProvenance returns the stored provenance for one record.
func (s *Store) GetRecordProvenance(ctx context.Context, recordID int64) (types.Provenance, error) {
	var raw sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT provenance FROM research_articles WHERE id = ?`, recordID,
	).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("record %d not found", recordID)
	}
	if err != nil {
		return nil, fmt.Errorf("fetching provenance for record %d: %w", recordID, err)
	}
	return unmarshalProvenance(raw)
}

func (s *Store) queryRecords(ctx context.Context, query string, args ...any) ([]types.ResearchArticle, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying records: %w", err)
	}
	defer rows.Close()

	var records []types.ResearchArticle
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

func scanRecord(rows *sql.Rows) (*types.ResearchArticle, error) {
	var (
		rec types.ResearchArticle

		doiRaw, doiNorm, pubDate, authors, sourceTitle      sql.NullString
		abstract, abstractSource, noRetrieval, pmid, pmcid  sql.NullString
		arxivID, preprintSource, pubDOI, pubJournal         sql.NullString
		oaStatus, license, oaPDFURL, manualPub, manualRepo  sql.NullString
		provenance, importDT, enrichDT                      sql.NullString
		totalCitations, isOA                                sql.NullInt64
		citationsPerYear                                    sql.NullFloat64
		isPreprint                                          int64
	)

	err := rows.Scan(
		&rec.ID, &rec.Title, &doiRaw, &doiNorm, &pubDate, &totalCitations,
		&citationsPerYear, &authors, &sourceTitle, &abstract, &abstractSource,
		&noRetrieval, &pmid, &pmcid, &arxivID, &isPreprint, &preprintSource,
		&pubDOI, &pubJournal, &isOA, &oaStatus, &license, &oaPDFURL,
		&manualPub, &manualRepo, &provenance, &importDT, &enrichDT,
	)
	if err != nil {
		return nil, fmt.Errorf("scanning record: %w", err)
	}

	rec.DOIRaw = strVal(doiRaw)
	rec.DOINorm = strVal(doiNorm)
	rec.PubDate = strVal(pubDate)
	rec.TotalCitations = i64Ptr(totalCitations)
	rec.CitationsPerYear = f64Ptr(citationsPerYear)
	rec.Authors = strVal(authors)
	rec.SourceTitle = strVal(sourceTitle)
	rec.AbstractText = strVal(abstract)
	rec.AbstractSource = strVal(abstractSource)
	rec.AbstractNoRetrievalReason = strVal(noRetrieval)
	rec.PMID = strVal(pmid)
	rec.PMCID = strVal(pmcid)
	rec.ArxivID = strVal(arxivID)
	rec.IsPreprint = isPreprint != 0
	rec.PreprintSource = strVal(preprintSource)
	rec.PublishedDOI = strVal(pubDOI)
	rec.PublishedJournal = strVal(pubJournal)
	rec.IsOA = boolPtr(isOA)
	rec.OAStatus = strVal(oaStatus)
	rec.License = strVal(license)
	rec.OAPDFURL = strVal(oaPDFURL)
	rec.ManualURLPublisher = strVal(manualPub)
	rec.ManualURLRepository = strVal(manualRepo)
	rec.ImportDatetime = parseTime(strVal(importDT))
	rec.EnrichmentDatetime = parseTime(strVal(enrichDT))

	prov, err := unmarshalProvenance(provenance)
	if err != nil {
		return nil, err
	}
	rec.Provenance = prov

	return &rec, nil
}

func marshalProvenance(p types.Provenance) (any, error) {
	if len(p) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshaling provenance: %w", err)
	}
	return string(data), nil
}

func unmarshalProvenance(ns sql.NullString) (types.Provenance, error) {
	if !ns.Valid || ns.String == "" {
		return types.Provenance{}, nil
	}
	var p types.Provenance
	if err := json.Unmarshal([]byte(ns.String), &p); err != nil {
		// Tolerate pre-schema blobs rather than failing the read.
		return types.Provenance{}, nil
	}
	return p, nil
}

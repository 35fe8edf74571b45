// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ingest reads tabular reference exports into research article
// records: column mapping, DOI normalization and preprint detection at
// import time. The Loader interface keeps the spreadsheet format pluggable;
// the built-in implementation reads CSV.
package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Cyril-Aubry/llm-query-doc-analyser/internal/enrich"
	"github.com/Cyril-Aubry/llm-query-doc-analyser/pkg/types"
)

// Recognized column headers. Unknown columns are ignored; missing optional
// columns map to NULL.
const (
	colTitle          = "Title"
	colPubDate        = "Publication Date"
	colDOI            = "DOI"
	colTotalCitations = "Total Citations"
	colAvgPerYear     = "Average per Year"
	colAuthors        = "Authors"
	colSourceTitle    = "Source Title"
)

// Loader reads article references from a tabular file.
type Loader interface {
	Load(path string) ([]types.ResearchArticle, error)
}

// CSVLoader reads the reference export as CSV.
type CSVLoader struct {
	log *zap.Logger
	now func() time.Time
}

// NewCSVLoader builds a loader; now is the clock used to stamp
// import_datetime (nil selects time.Now).
func NewCSVLoader(log *zap.Logger, now func() time.Time) *CSVLoader {
	if now == nil {
		now = time.Now
	}
	return &CSVLoader{log: log, now: now}
}

// Load parses the file into records. A missing Title column is an error;
// rows with an empty title are rejected individually. Empty cells map to
// zero values, numeric parse failures to NULL.
func (l *CSVLoader) Load(path string) ([]types.ResearchArticle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening input %s: %w", path, err)
	}
	defer f.Close()

	records, err := l.parse(f)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	l.log.Info("research_articles_loaded",
		zap.String("path", path),
		zap.Int("count", len(records)),
	)
	return records, nil
}

func (l *CSVLoader) parse(r io.Reader) ([]types.ResearchArticle, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.TrimSpace(h)] = i
	}
	if _, ok := cols[colTitle]; !ok {
		return nil, fmt.Errorf("input must have a %q column", colTitle)
	}

	importedAt := l.now().UTC()
	var (
		records       []types.ResearchArticle
		preprintCount int
	)

	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading row %d: %w", line, err)
		}

		cell := func(name string) string {
			idx, ok := cols[name]
			if !ok || idx >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[idx])
		}

		title := cell(colTitle)
		if title == "" {
			return nil, fmt.Errorf("row %d: title is required", line)
		}

		rec := types.ResearchArticle{
			Title:          title,
			DOIRaw:         cell(colDOI),
			DOINorm:        types.NormalizeDOI(cell(colDOI)),
			PubDate:        normalizeDate(cell(colPubDate)),
			Authors:        cell(colAuthors),
			SourceTitle:    cell(colSourceTitle),
			ImportDatetime: importedAt,
		}
		rec.TotalCitations = parseInt(cell(colTotalCitations))
		rec.CitationsPerYear = parseFloat(cell(colAvgPerYear))

		if source := enrich.DetectPreprintSource(&rec); source != "" {
			rec.IsPreprint = true
			rec.PreprintSource = source
			preprintCount++
			// arXiv DOIs in the legacy "arxiv:NNNN.NNNNN" form move to
			// the registered 10.48550 namespace.
			if source == "arxiv" && strings.HasPrefix(rec.DOINorm, "arxiv:") {
				rec.DOINorm = strings.Replace(rec.DOINorm, "arxiv:", "10.48550/arxiv.", 1)
			}
			if rec.ArxivID == "" {
				rec.ArxivID = enrich.ExtractArxivID(rec.DOINorm)
			}
		}

		records = append(records, rec)
	}

	l.log.Debug("preprints_detected_at_import", zap.Int("count", preprintCount))
	return records, nil
}

func parseInt(s string) *int64 {
	if s == "" {
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil
	}
	return &v
}

func parseFloat(s string) *float64 {
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

// normalizeDate converts recognized date layouts to RFC 3339 date form and
// passes anything else through unchanged.
func normalizeDate(s string) string {
	if s == "" {
		return ""
	}
	for _, layout := range []string{"2006-01-02", "2006/01/02", "01/02/2006", "Jan 2, 2006", "2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return s
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Cyril-Aubry/llm-query-doc-analyser/pkg/types"
)

func TestInsertRecordRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	citations := int64(42)
	perYear := 6.5
	isOA := true
	rec := testArticle("Attention Is All You Need", "10.48550/arxiv.1706.03762")
	rec.TotalCitations = &citations
	rec.CitationsPerYear = &perYear
	rec.Authors = "Vaswani et al."
	rec.SourceTitle = "arXiv"
	rec.IsPreprint = true
	rec.PreprintSource = "arxiv"
	rec.ArxivID = "1706.03762"
	rec.IsOA = &isOA
	rec.OAStatus = "green"
	rec.Provenance = types.Provenance{
		"arxiv": {Source: "arxiv", URL: "https://export.arxiv.org/api/query", Raw: json.RawMessage(`{"ok":true}`)},
	}

	id, err := s.InsertRecord(ctx, rec)
	require.NoError(t, err)
	assert.Positive(t, id)

	got, err := s.GetRecord(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, rec.Title, got.Title)
	assert.Equal(t, "10.48550/arxiv.1706.03762", got.DOINorm)
	require.NotNil(t, got.TotalCitations)
	assert.Equal(t, citations, *got.TotalCitations)
	require.NotNil(t, got.CitationsPerYear)
	assert.InDelta(t, perYear, *got.CitationsPerYear, 0.001)
	assert.True(t, got.IsPreprint)
	assert.Equal(t, "arxiv", got.PreprintSource)
	require.NotNil(t, got.IsOA)
	assert.True(t, *got.IsOA)
	assert.False(t, got.ImportDatetime.IsZero())
	assert.True(t, got.EnrichmentDatetime.IsZero())
	require.Contains(t, got.Provenance, "arxiv")
	assert.JSONEq(t, `{"ok":true}`, string(got.Provenance["arxiv"].Raw))
}

func TestInsertRecordDuplicateDOI(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.InsertRecord(ctx, testArticle("First", "10.1234/abc"))
	require.NoError(t, err)

	_, err = s.InsertRecord(ctx, testArticle("Second import of same work", "10.1234/ABC"))
	assert.ErrorIs(t, err, ErrDuplicateDOI)

	records, err := s.GetRecords(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestInsertRecordNilDOIsAreNotDuplicates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.InsertRecord(ctx, testArticle("No DOI one", ""))
	require.NoError(t, err)
	_, err = s.InsertRecord(ctx, testArticle("No DOI two", ""))
	require.NoError(t, err)

	records, err := s.GetRecords(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestUpsertRecordNeverClobbersImportDatetime(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	orig := testArticle("Original", "10.1234/upsert")
	importedAt := orig.ImportDatetime
	_, err := s.InsertRecord(ctx, orig)
	require.NoError(t, err)

	update := testArticle("Updated title", "10.1234/upsert")
	update.ImportDatetime = importedAt.Add(24 * time.Hour)
	id, inserted, err := s.UpsertRecord(ctx, update)
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.Equal(t, orig.ID, id)

	got, err := s.GetRecord(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Updated title", got.Title)
	assert.WithinDuration(t, importedAt, got.ImportDatetime, time.Second)
}

func TestRecordsNeedingEnrichment(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := testArticle("Pending", "10.1/a")
	_, err := s.InsertRecord(ctx, a)
	require.NoError(t, err)

	b := testArticle("Done", "10.1/b")
	_, err = s.InsertRecord(ctx, b)
	require.NoError(t, err)
	b.EnrichmentDatetime = time.Now().UTC()
	require.NoError(t, s.UpdateEnrichment(ctx, b))

	pending, err := s.RecordsNeedingEnrichment(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "Pending", pending[0].Title)
}

func TestUpdateEnrichmentSetsTimestampAndReasons(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec := testArticle("Unlucky", "10.1/none")
	_, err := s.InsertRecord(ctx, rec)
	require.NoError(t, err)

	rec.AbstractNoRetrievalReason = "Crossref: HTTP 404; OpenAlex: no abstract field in response"
	rec.EnrichmentDatetime = time.Now().UTC()
	require.NoError(t, s.UpdateEnrichment(ctx, rec))

	got, err := s.GetRecord(ctx, rec.ID)
	require.NoError(t, err)
	assert.False(t, got.EnrichmentDatetime.IsZero())
	assert.Contains(t, got.AbstractNoRetrievalReason, "Crossref: HTTP 404")
	assert.True(t, got.ImportDatetime.Before(got.EnrichmentDatetime) ||
		got.ImportDatetime.Equal(got.EnrichmentDatetime))

	pending, err := s.RecordsNeedingEnrichment(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestClearEnrichmentForEmpty(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	empty := testArticle("Empty", "10.1/empty")
	_, err := s.InsertRecord(ctx, empty)
	require.NoError(t, err)
	empty.EnrichmentDatetime = time.Now().UTC()
	require.NoError(t, s.UpdateEnrichment(ctx, empty))

	full := testArticle("Full", "10.1/full")
	_, err = s.InsertRecord(ctx, full)
	require.NoError(t, err)
	full.AbstractText = "Some abstract."
	full.EnrichmentDatetime = time.Now().UTC()
	require.NoError(t, s.UpdateEnrichment(ctx, full))

	n, err := s.ClearEnrichmentForEmpty(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	pending, err := s.RecordsNeedingEnrichment(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "Empty", pending[0].Title)
}

func TestGetRecordIDByDOI(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec := testArticle("Findable", "10.9/find")
	_, err := s.InsertRecord(ctx, rec)
	require.NoError(t, err)

	id, found, err := s.GetRecordIDByDOI(ctx, "10.9/find")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, rec.ID, id)

	_, found, err = s.GetRecordIDByDOI(ctx, "10.9/absent")
	require.NoError(t, err)
	assert.False(t, found)
}

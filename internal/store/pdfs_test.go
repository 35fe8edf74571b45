// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Cyril-Aubry/llm-query-doc-analyser/pkg/types"
)

func TestPDFResolutionRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec := testArticle("With candidates", "10.2/cands")
	_, err := s.InsertRecord(ctx, rec)
	require.NoError(t, err)

	has, err := s.HasResolution(ctx, rec.ID)
	require.NoError(t, err)
	assert.False(t, has)

	candidates := []types.Candidate{
		{URL: "https://arxiv.org/pdf/2103.12345.pdf", Source: "arxiv"},
		{URL: "https://publisher.example/oa.pdf", Source: "unpaywall", License: "cc-by"},
	}
	_, err = s.InsertPDFResolution(ctx, &types.PDFResolution{
		RecordID:   rec.ID,
		Datetime:   time.Now().UTC(),
		Candidates: candidates,
	})
	require.NoError(t, err)

	has, err = s.HasResolution(ctx, rec.ID)
	require.NoError(t, err)
	assert.True(t, has)

	got, err := s.ResolvedCandidates(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, candidates, got)
}

func TestResolvedCandidatesReturnsLatestSnapshot(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec := testArticle("Re-resolved", "10.2/again")
	_, err := s.InsertRecord(ctx, rec)
	require.NoError(t, err)

	for _, url := range []string{"https://old.example/a.pdf", "https://new.example/b.pdf"} {
		_, err = s.InsertPDFResolution(ctx, &types.PDFResolution{
			RecordID:   rec.ID,
			Datetime:   time.Now().UTC(),
			Candidates: []types.Candidate{{URL: url, Source: "unpaywall"}},
		})
		require.NoError(t, err)
	}

	got, err := s.ResolvedCandidates(ctx, rec.ID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "https://new.example/b.pdf", got[0].URL)
}

func TestPDFDownloadAttemptsAndStats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec := testArticle("Downloadable", "10.2/dl")
	_, err := s.InsertRecord(ctx, rec)
	require.NoError(t, err)

	qid, err := s.CreateFilteringQuery(ctx, &types.FilteringQuery{
		Datetime: time.Now().UTC(), Query: "q", LLMModel: "m",
	})
	require.NoError(t, err)

	size := int64(123456)
	attempts := []types.PDFDownload{
		{RecordID: rec.ID, FilteringQueryID: &qid, Datetime: time.Now().UTC(),
			URL: "https://a.example/x.pdf", Source: "arxiv",
			Status: types.StatusUnavailable, ErrorMessage: "wrong content type: text/html"},
		{RecordID: rec.ID, FilteringQueryID: &qid, Datetime: time.Now().UTC(),
			URL: "https://b.example/y.pdf", Source: "unpaywall",
			Status: types.StatusDownloaded, LocalPath: "/tmp/abc.pdf",
			SHA1: "da39a3ee5e6b4b0d3255bfef95601890afd80709", FinalURL: "https://b.example/y.pdf",
			FileSizeBytes: &size},
	}
	for i := range attempts {
		_, err := s.RecordPDFDownloadAttempt(ctx, &attempts[i])
		require.NoError(t, err)
	}

	latest, err := s.LatestSuccessfulDownload(ctx, rec.ID)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, types.StatusDownloaded, latest.Status)
	assert.Equal(t, "/tmp/abc.pdf", latest.LocalPath)
	require.NotNil(t, latest.FileSizeBytes)
	assert.Equal(t, size, *latest.FileSizeBytes)

	all, err := s.DownloadsByRecord(ctx, rec.ID)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	stats, err := s.PDFDownloadStats(ctx, &qid)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"unavailable": 1, "downloaded": 1}, stats)

	statsAll, err := s.PDFDownloadStats(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, stats, statsAll)
}

func TestLatestSuccessfulDownloadAbsent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec := testArticle("Nothing yet", "10.2/none")
	_, err := s.InsertRecord(ctx, rec)
	require.NoError(t, err)

	latest, err := s.LatestSuccessfulDownload(ctx, rec.ID)
	require.NoError(t, err)
	assert.Nil(t, latest)
}

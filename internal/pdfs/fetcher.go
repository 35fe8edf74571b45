// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pdfs

import (
	"context"
	"crypto/sha1"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Cyril-Aubry/llm-query-doc-analyser/internal/store"
	"github.com/Cyril-Aubry/llm-query-doc-analyser/pkg/types"
)

const defaultMaxConcurrent = 5

// Fetcher runs the two-phase PDF stage for one filtering query: resolve
// candidates for records that have no resolution snapshot yet, then
// download for records without a verified PDF on disk. Every attempt is
// recorded in pdf_downloads.
type Fetcher struct {
	Store         *store.Store
	Downloader    *Downloader
	MaxConcurrent int
	Log           *zap.Logger
	Now           func() time.Time
}

// Stats reports the outcome of one PDF run.
type Stats struct {
	Total             int
	AlreadyResolved   int
	Resolved          int
	NoCandidates      int
	AlreadyDownloaded int
	Downloaded        int
	StatusCounts      map[string]int
}

// Run processes the matched records of filteringQueryID.
func (f *Fetcher) Run(ctx context.Context, filteringQueryID int64) (Stats, error) {
	stats := Stats{}

	matched, err := f.Store.MatchedRecordsByFilteringQuery(ctx, filteringQueryID)
	if err != nil {
		return stats, err
	}
	stats.Total = len(matched)
	if len(matched) == 0 {
		f.Log.Warn("no_matched_records_found", zap.Int64("filtering_query_id", filteringQueryID))
		return stats, nil
	}

	timestamp := f.now()

	// Phase 1: resolution snapshots for records that lack one.
	for i := range matched {
		rec := &matched[i]
		has, err := f.Store.HasResolution(ctx, rec.ID)
		if err != nil {
			return stats, err
		}
		if has {
			stats.AlreadyResolved++
			continue
		}

		candidates := ResolveCandidates(rec)
		_, err = f.Store.InsertPDFResolution(ctx, &types.PDFResolution{
			RecordID:         rec.ID,
			FilteringQueryID: &filteringQueryID,
			Datetime:         timestamp,
			Candidates:       candidates,
		})
		if err != nil {
			return stats, err
		}
		if len(candidates) > 0 {
			stats.Resolved++
		} else {
			stats.NoCandidates++
		}
	}

	// Phase 2: downloads for records without a verified PDF.
	maxConcurrent := f.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = defaultMaxConcurrent
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrent)

	var downloadedCount, skippedCount atomic.Int64

	for i := range matched {
		rec := matched[i]
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			already, err := f.hasVerifiedDownload(gctx, rec.ID)
			if err != nil {
				return err
			}
			if already {
				skippedCount.Add(1)
				return nil
			}
			ok, err := f.downloadRecord(gctx, &rec, filteringQueryID, timestamp)
			if err != nil {
				return err
			}
			if ok {
				downloadedCount.Add(1)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return stats, err
	}
	stats.Downloaded = int(downloadedCount.Load())
	stats.AlreadyDownloaded = int(skippedCount.Load())

	counts, err := f.Store.PDFDownloadStats(ctx, &filteringQueryID)
	if err != nil {
		return stats, err
	}
	stats.StatusCounts = counts

	f.Log.Info("pdf_download_completed",
		zap.Int64("filtering_query_id", filteringQueryID),
		zap.Int("total_records", stats.Total),
		zap.Int("downloaded", stats.Downloaded),
		zap.Int("already_downloaded", stats.AlreadyDownloaded),
	)
	return stats, nil
}

// hasVerifiedDownload reports whether a prior downloaded row still matches
// the file on disk (present and hashing to the stored SHA-1). A vanished or
// corrupted file triggers a re-download.
func (f *Fetcher) hasVerifiedDownload(ctx context.Context, recordID int64) (bool, error) {
	prior, err := f.Store.LatestSuccessfulDownload(ctx, recordID)
	if err != nil {
		return false, err
	}
	if prior == nil || prior.LocalPath == "" || prior.SHA1 == "" {
		return false, nil
	}

	data, err := os.ReadFile(prior.LocalPath)
	if err != nil {
		return false, nil
	}
	return fmt.Sprintf("%x", sha1.Sum(data)) == prior.SHA1, nil
}

// downloadRecord walks the resolved candidates in rank order, recording
// every attempt. The first success stops the walk; an empty candidate list
// writes a single synthetic no_candidates row.
func (f *Fetcher) downloadRecord(ctx context.Context, rec *types.ResearchArticle, filteringQueryID int64, timestamp time.Time) (bool, error) {
	candidates, err := f.Store.ResolvedCandidates(ctx, rec.ID)
	if err != nil {
		return false, err
	}

	if len(candidates) == 0 {
		_, err := f.Store.RecordPDFDownloadAttempt(ctx, &types.PDFDownload{
			RecordID:         rec.ID,
			FilteringQueryID: &filteringQueryID,
			Datetime:         timestamp,
			URL:              "",
			Source:           "none",
			Status:           types.StatusNoCandidates,
			ErrorMessage:     "no PDF candidates found",
		})
		return false, err
	}

	for _, cand := range candidates {
		result := f.Downloader.Download(ctx, cand)

		var sizePtr *int64
		if result.FileSizeBytes > 0 {
			size := result.FileSizeBytes
			sizePtr = &size
		}
		_, err := f.Store.RecordPDFDownloadAttempt(ctx, &types.PDFDownload{
			RecordID:         rec.ID,
			FilteringQueryID: &filteringQueryID,
			Datetime:         timestamp,
			URL:              cand.URL,
			Source:           cand.Source,
			Status:           result.Status,
			LocalPath:        result.Path,
			SHA1:             result.SHA1,
			FinalURL:         result.FinalURL,
			ErrorMessage:     result.Error,
			FileSizeBytes:    sizePtr,
		})
		if err != nil {
			return false, err
		}

		if result.Status == types.StatusDownloaded {
			return true, nil
		}
	}

	f.Log.Debug("pdf_all_attempts_failed",
		zap.Int64("record_id", rec.ID),
		zap.String("doi", rec.DOINorm),
	)
	return false, nil
}

func (f *Fetcher) now() time.Time {
	if f.Now != nil {
		return f.Now()
	}
	return time.Now().UTC()
}

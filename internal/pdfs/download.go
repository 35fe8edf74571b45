// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pdfs

import (
	"context"
	"crypto/sha1"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Cyril-Aubry/llm-query-doc-analyser/internal/httputil"
	"github.com/Cyril-Aubry/llm-query-doc-analyser/pkg/types"
)

// DefaultMaxPDFSize caps accepted PDF payloads at 50 MiB.
const DefaultMaxPDFSize = 50 << 20

// Downloader streams candidate URLs to content-addressed files. It never
// returns an error to the caller: every returned error and every response
// maps to a DownloadResult status. Panics are not recovered.
type Downloader struct {
	Client   *httputil.Client
	Limiters *httputil.Limiters
	DestDir  string
	MaxSize  int64
	Log      *zap.Logger

	// Sleep is the pre-request delay hook; tests replace it.
	Sleep func(time.Duration)
}

// NewDownloader builds a downloader writing into destDir. maxSize zero
// selects the 50 MiB default.
func NewDownloader(client *httputil.Client, limiters *httputil.Limiters, destDir string, maxSize int64, log *zap.Logger) *Downloader {
	if maxSize <= 0 {
		maxSize = DefaultMaxPDFSize
	}
	return &Downloader{
		Client:   client,
		Limiters: limiters,
		DestDir:  destDir,
		MaxSize:  maxSize,
		Log:      log,
		Sleep:    time.Sleep,
	}
}

// DownloadResult is the outcome of one candidate attempt.
type DownloadResult struct {
	Status        types.DownloadStatus
	Path          string
	SHA1          string
	FinalURL      string
	FileSizeBytes int64
	Error         string
}

// Download attempts one candidate. The candidate URL is fetched through
// the source policy (headers, cache busting, pre-sleep) and gated by the
// source's rate limiter. Content must be 200 + application/pdf within the
// size cap; the body is SHA-1 hashed and written to DestDir/<sha1>.pdf.
func (d *Downloader) Download(ctx context.Context, cand types.Candidate) DownloadResult {
	if strings.TrimSpace(cand.URL) == "" {
		return DownloadResult{Status: types.StatusError, Error: "no URL provided"}
	}
	if u, err := url.Parse(cand.URL); err != nil || u.Scheme == "" {
		return DownloadResult{Status: types.StatusError, Error: fmt.Sprintf("invalid URL %q", cand.URL)}
	}

	if err := d.Limiters.Acquire(ctx, strings.ToLower(cand.Source)); err != nil {
		return DownloadResult{Status: types.StatusError, Error: err.Error()}
	}

	plan := planRequest(cand.Source, cand.URL)
	if plan.PreSleep > 0 {
		d.Sleep(plan.PreSleep)
	}

	resp, err := d.Client.GetWithRetry(ctx, plan.FetchURL, plan.Headers)
	if err != nil {
		return DownloadResult{Status: types.StatusError, Error: err.Error()}
	}
	defer resp.Body.Close()

	finalURL := plan.FetchURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	if resp.StatusCode != http.StatusOK {
		return DownloadResult{
			Status:   types.StatusUnavailable,
			FinalURL: finalURL,
			Error:    fmt.Sprintf("HTTP %d", resp.StatusCode),
		}
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "application/pdf") {
		return DownloadResult{
			Status:   types.StatusUnavailable,
			FinalURL: finalURL,
			Error:    fmt.Sprintf("wrong content type: %s", contentType),
		}
	}

	if cl := resp.Header.Get("Content-Length"); cl != "" {
		if declared, err := strconv.ParseInt(cl, 10, 64); err == nil && declared > d.MaxSize {
			return DownloadResult{
				Status:   types.StatusTooLarge,
				FinalURL: finalURL,
				Error:    fmt.Sprintf("declared size %d exceeds limit %d", declared, d.MaxSize),
			}
		}
	}

	// Read one byte past the cap to detect oversized bodies the header
	// did not declare.
	body, err := io.ReadAll(io.LimitReader(resp.Body, d.MaxSize+1))
	if err != nil {
		return DownloadResult{Status: types.StatusError, FinalURL: finalURL, Error: err.Error()}
	}
	if int64(len(body)) > d.MaxSize {
		return DownloadResult{
			Status:   types.StatusTooLarge,
			FinalURL: finalURL,
			Error:    fmt.Sprintf("body exceeds limit %d", d.MaxSize),
		}
	}

	sum := fmt.Sprintf("%x", sha1.Sum(body))
	destPath := filepath.Join(d.DestDir, sum+".pdf")

	if err := writeFileAtomic(destPath, body); err != nil {
		return DownloadResult{Status: types.StatusError, FinalURL: finalURL, Error: err.Error()}
	}

	info, err := os.Stat(destPath)
	if err != nil {
		return DownloadResult{Status: types.StatusError, FinalURL: finalURL, Error: err.Error()}
	}

	d.Log.Info("pdf_downloaded",
		zap.String("url", cand.URL),
		zap.String("source", cand.Source),
		zap.String("sha1", sum),
		zap.Int64("file_size_bytes", info.Size()),
	)
	return DownloadResult{
		Status:        types.StatusDownloaded,
		Path:          destPath,
		SHA1:          sum,
		FinalURL:      finalURL,
		FileSizeBytes: info.Size(),
	}
}

// writeFileAtomic writes data through a temp file and renames it into
// place, so a crash never leaves a truncated PDF at the final path.
// Re-downloading identical bytes overwrites the file with itself.
func writeFileAtomic(destPath string, data []byte) error {
	dir := filepath.Dir(destPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".download-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	_, writeErr := tmp.Write(data)
	closeErr := tmp.Close()
	if writeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing download: %w", writeErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", closeErr)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

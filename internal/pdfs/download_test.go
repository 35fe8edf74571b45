// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pdfs

import (
	"context"
	"crypto/sha1"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Cyril-Aubry/llm-query-doc-analyser/internal/httputil"
	"github.com/Cyril-Aubry/llm-query-doc-analyser/pkg/types"
)

func init() {
	// Use a tiny base delay so retry paths finish quickly.
	httputil.RetryBaseDelay = time.Millisecond
}

func fastDownloadLimiters() *httputil.Limiters {
	return httputil.NewLimiters(map[string]float64{
		"arxiv": 1000, "unpaywall": 1000, "epmc": 1000, "test": 1000,
	})
}

func newTestDownloader(t *testing.T, maxSize int64) *Downloader {
	t.Helper()
	client := httputil.NewClient(5*time.Second, 1, "", zap.NewNop())
	d := NewDownloader(client, fastDownloadLimiters(), t.TempDir(), maxSize, zap.NewNop())
	d.Sleep = func(time.Duration) {}
	return d
}

func TestDownloadSuccessWritesContentAddressedFile(t *testing.T) {
	payload := []byte("%PDF-1.5 fake pdf body")
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Write(payload)
	}))
	defer ts.Close()

	d := newTestDownloader(t, 0)
	result := d.Download(context.Background(), types.Candidate{URL: ts.URL + "/a.pdf", Source: "unpaywall"})

	require.Equal(t, types.StatusDownloaded, result.Status)
	wantSHA := fmt.Sprintf("%x", sha1.Sum(payload))
	assert.Equal(t, wantSHA, result.SHA1)
	assert.Equal(t, filepath.Join(d.DestDir, wantSHA+".pdf"), result.Path)
	assert.Equal(t, int64(len(payload)), result.FileSizeBytes)

	onDisk, err := os.ReadFile(result.Path)
	require.NoError(t, err)
	assert.Equal(t, payload, onDisk)
}

func TestDownloadWrongContentType(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(strings.Repeat("x", 1853)))
	}))
	defer ts.Close()

	d := newTestDownloader(t, 0)
	result := d.Download(context.Background(), types.Candidate{URL: ts.URL, Source: "unpaywall"})

	assert.Equal(t, types.StatusUnavailable, result.Status)
	assert.Contains(t, result.Error, "wrong content type")

	// No bytes persisted.
	entries, err := os.ReadDir(d.DestDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDownloadHTTPErrorIsUnavailable(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	d := newTestDownloader(t, 0)
	result := d.Download(context.Background(), types.Candidate{URL: ts.URL, Source: "unpaywall"})

	assert.Equal(t, types.StatusUnavailable, result.Status)
	assert.Equal(t, "HTTP 404", result.Error)
}

func TestDownloadTooLargeByHeader(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Length", "99999999")
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	d := newTestDownloader(t, 1024)
	result := d.Download(context.Background(), types.Candidate{URL: ts.URL, Source: "unpaywall"})

	assert.Equal(t, types.StatusTooLarge, result.Status)
}

func TestDownloadTooLargeByActualBody(t *testing.T) {
	// Chunked response with no Content-Length: the body itself trips the cap.
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Write(make([]byte, 4096))
	}))
	defer ts.Close()

	d := newTestDownloader(t, 1024)
	result := d.Download(context.Background(), types.Candidate{URL: ts.URL, Source: "unpaywall"})

	assert.Equal(t, types.StatusTooLarge, result.Status)
	entries, err := os.ReadDir(d.DestDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDownloadRejectsInvalidURLs(t *testing.T) {
	d := newTestDownloader(t, 0)

	result := d.Download(context.Background(), types.Candidate{URL: "", Source: "unpaywall"})
	assert.Equal(t, types.StatusError, result.Status)

	result = d.Download(context.Background(), types.Candidate{URL: "no-scheme.example/a.pdf", Source: "unpaywall"})
	assert.Equal(t, types.StatusError, result.Status)
}

func TestDownloadArxivSendsCacheBusterAndHeaders(t *testing.T) {
	var gotQuery, gotReferer, gotCacheControl string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		gotReferer = r.Header.Get("Referer")
		gotCacheControl = r.Header.Get("Cache-Control")
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte("%PDF-1.5"))
	}))
	defer ts.Close()

	d := newTestDownloader(t, 0)
	var slept time.Duration
	d.Sleep = func(dur time.Duration) { slept = dur }

	cand := types.Candidate{URL: ts.URL + "/pdf/0705.2011.pdf", Source: "arxiv"}
	result := d.Download(context.Background(), cand)

	require.Equal(t, types.StatusDownloaded, result.Status)
	assert.Regexp(t, `^_cb=\d+$`, gotQuery)
	assert.Equal(t, "https://arxiv.org/", gotReferer)
	assert.Equal(t, "no-cache, no-store, must-revalidate", gotCacheControl)
	assert.GreaterOrEqual(t, slept, time.Duration(0))
	// The transformed URL shows up only in final_url.
	assert.Contains(t, result.FinalURL, "_cb=")
}

func TestDownloadIdenticalBytesOverwriteIsNoop(t *testing.T) {
	payload := []byte("%PDF-1.5 stable content")
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Write(payload)
	}))
	defer ts.Close()

	d := newTestDownloader(t, 0)
	cand := types.Candidate{URL: ts.URL + "/a.pdf", Source: "unpaywall"}

	first := d.Download(context.Background(), cand)
	require.Equal(t, types.StatusDownloaded, first.Status)

	second := d.Download(context.Background(), cand)
	require.Equal(t, types.StatusDownloaded, second.Status)
	assert.Equal(t, first.Path, second.Path)
	assert.Equal(t, first.SHA1, second.SHA1)

	onDisk, err := os.ReadFile(first.Path)
	require.NoError(t, err)
	assert.Equal(t, payload, onDisk)
}

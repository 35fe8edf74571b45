// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// DownloadStatus is the outcome of one PDF download attempt. The literal
// strings are part of the external contract and appear in aggregation
// queries.
type DownloadStatus string

const (
	StatusDownloaded   DownloadStatus = "downloaded"
	StatusUnavailable  DownloadStatus = "unavailable"
	StatusTooLarge     DownloadStatus = "too_large"
	StatusNoCandidates DownloadStatus = "no_candidates"
	StatusError        DownloadStatus = "error"
)

// Candidate is one (url, source) pair the resolver believes may yield a
// downloadable PDF.
type Candidate struct {
	URL     string `json:"url" yaml:"url"`
	Source  string `json:"source" yaml:"source"`
	License string `json:"license,omitempty" yaml:"license,omitempty"`
}

// PDFResolution is the snapshot of candidates considered for a record
// within one filtering context.
type PDFResolution struct {
	ID               int64       `json:"id" yaml:"id"`
	RecordID         int64       `json:"record_id" yaml:"record_id"`
	FilteringQueryID *int64      `json:"filtering_query_id,omitempty" yaml:"filtering_query_id,omitempty"`
	Datetime         time.Time   `json:"timestamp" yaml:"timestamp"`
	Candidates       []Candidate `json:"candidates" yaml:"candidates"`
}

// PDFDownload records one download attempt, successful or not. For
// status=downloaded the local path, sha1 and file size are all set and the
// file on disk matches both.
type PDFDownload struct {
	ID               int64          `json:"id" yaml:"id"`
	RecordID         int64          `json:"record_id" yaml:"record_id"`
	FilteringQueryID *int64         `json:"filtering_query_id,omitempty" yaml:"filtering_query_id,omitempty"`
	Datetime         time.Time      `json:"timestamp" yaml:"timestamp"`
	URL              string         `json:"url" yaml:"url"`
	Source           string         `json:"source" yaml:"source"`
	Status           DownloadStatus `json:"status" yaml:"status"`
	LocalPath        string         `json:"pdf_local_path,omitempty" yaml:"pdf_local_path,omitempty"`
	SHA1             string         `json:"sha1,omitempty" yaml:"sha1,omitempty"`
	FinalURL         string         `json:"final_url,omitempty" yaml:"final_url,omitempty"`
	ErrorMessage     string         `json:"error_message,omitempty" yaml:"error_message,omitempty"`
	FileSizeBytes    *int64         `json:"file_size_bytes,omitempty" yaml:"file_size_bytes,omitempty"`
}

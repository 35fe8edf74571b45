// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// MarkdownVariant is a conversion flavor of the same source document.
type MarkdownVariant string

const (
	VariantNoImages   MarkdownVariant = "no_images"
	VariantWithImages MarkdownVariant = "with_images"
)

// MarkdownSourceType identifies which artifact a Markdown version was
// converted from.
type MarkdownSourceType string

const (
	SourceDocx MarkdownSourceType = "docx"
	SourceHTML MarkdownSourceType = "html"
)

// DocxVersion is a located DOCX rendition of a record. LocalPath is empty
// when the lookup found nothing; Error carries the reason.
type DocxVersion struct {
	ID            int64     `json:"id" yaml:"id"`
	RecordID      int64     `json:"record_id" yaml:"record_id"`
	LocalPath     string    `json:"docx_local_path,omitempty" yaml:"docx_local_path,omitempty"`
	RetrievedAt   time.Time `json:"retrieved_datetime" yaml:"retrieved_datetime"`
	FileSizeBytes *int64    `json:"file_size_bytes,omitempty" yaml:"file_size_bytes,omitempty"`
	ErrorMessage  string    `json:"error_message,omitempty" yaml:"error_message,omitempty"`
}

// MarkdownVersion is one converted Markdown output. Exactly one of
// DocxVersionID and HTMLVersionID is non-nil, matching SourceType.
type MarkdownVersion struct {
	ID            int64              `json:"id" yaml:"id"`
	RecordID      int64              `json:"record_id" yaml:"record_id"`
	SourceType    MarkdownSourceType `json:"source_type" yaml:"source_type"`
	DocxVersionID *int64             `json:"docx_version_id,omitempty" yaml:"docx_version_id,omitempty"`
	HTMLVersionID *int64             `json:"html_version_id,omitempty" yaml:"html_version_id,omitempty"`
	Variant       MarkdownVariant    `json:"variant" yaml:"variant"`
	LocalPath     string             `json:"markdown_local_path,omitempty" yaml:"markdown_local_path,omitempty"`
	CreatedAt     time.Time          `json:"created_datetime" yaml:"created_datetime"`
	FileSizeBytes *int64             `json:"file_size_bytes,omitempty" yaml:"file_size_bytes,omitempty"`
	ErrorMessage  string             `json:"error_message,omitempty" yaml:"error_message,omitempty"`
}

// ArticleVersionLink relates a preprint record to its published version.
// preprint_id and published_id are always distinct and each ordered pair
// occurs at most once.
type ArticleVersionLink struct {
	ID              int64     `json:"id" yaml:"id"`
	PreprintID      int64     `json:"preprint_id" yaml:"preprint_id"`
	PublishedID     int64     `json:"published_id" yaml:"published_id"`
	DiscoverySource string    `json:"discovery_source" yaml:"discovery_source"`
	LinkDatetime    time.Time `json:"link_datetime" yaml:"link_datetime"`
}

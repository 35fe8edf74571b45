// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"encoding/json"
	"strings"
	"time"
)

// ResearchArticle is the canonical record for one scholarly work. Fields
// map one-to-one onto columns of the research_articles table; empty strings
// and nil pointers persist as NULL.
type ResearchArticle struct {
	ID int64 `json:"id" yaml:"id"`

	// Title is the only required field at ingest.
	Title string `json:"title" yaml:"title"`

	// DOIRaw preserves the identifier exactly as imported; DOINorm is the
	// lowercase form with the doi.org host stripped and is unique when set.
	DOIRaw  string `json:"doi_raw,omitempty" yaml:"doi_raw,omitempty"`
	DOINorm string `json:"doi_norm,omitempty" yaml:"doi_norm,omitempty"`

	PubDate          string   `json:"pub_date,omitempty" yaml:"pub_date,omitempty"`
	TotalCitations   *int64   `json:"total_citations,omitempty" yaml:"total_citations,omitempty"`
	CitationsPerYear *float64 `json:"citations_per_year,omitempty" yaml:"citations_per_year,omitempty"`
	Authors          string   `json:"authors,omitempty" yaml:"authors,omitempty"`
	SourceTitle      string   `json:"source_title,omitempty" yaml:"source_title,omitempty"`

	// Abstract enrichment. AbstractSource names the adapter that supplied
	// the text; AbstractNoRetrievalReason is a "; "-joined list of
	// per-source failure tokens when no source supplied one.
	AbstractText              string `json:"abstract_text,omitempty" yaml:"abstract_text,omitempty"`
	AbstractSource            string `json:"abstract_source,omitempty" yaml:"abstract_source,omitempty"`
	AbstractNoRetrievalReason string `json:"abstract_no_retrieval_reason,omitempty" yaml:"abstract_no_retrieval_reason,omitempty"`

	// External identifiers.
	PMID    string `json:"pmid,omitempty" yaml:"pmid,omitempty"`
	PMCID   string `json:"pmcid,omitempty" yaml:"pmcid,omitempty"`
	ArxivID string `json:"arxiv_id,omitempty" yaml:"arxiv_id,omitempty"`

	// Preprint state. PreprintSource is the platform tag (arxiv, biorxiv,
	// medrxiv, preprints) and must be non-empty whenever IsPreprint is true.
	IsPreprint     bool   `json:"is_preprint" yaml:"is_preprint"`
	PreprintSource string `json:"preprint_source,omitempty" yaml:"preprint_source,omitempty"`

	// PublishedDOI is a convenience copy on the preprint row when a
	// published version was discovered; the authoritative relation lives
	// in the article_versions table.
	PublishedDOI     string `json:"published_doi,omitempty" yaml:"published_doi,omitempty"`
	PublishedJournal string `json:"published_journal,omitempty" yaml:"published_journal,omitempty"`

	// Open-access state from Unpaywall.
	IsOA     *bool  `json:"is_oa,omitempty" yaml:"is_oa,omitempty"`
	OAStatus string `json:"oa_status,omitempty" yaml:"oa_status,omitempty"`
	License  string `json:"license,omitempty" yaml:"license,omitempty"`
	OAPDFURL string `json:"oa_pdf_url,omitempty" yaml:"oa_pdf_url,omitempty"`

	// Manually supplied fallback URLs.
	ManualURLPublisher  string `json:"manual_url_publisher,omitempty" yaml:"manual_url_publisher,omitempty"`
	ManualURLRepository string `json:"manual_url_repository,omitempty" yaml:"manual_url_repository,omitempty"`

	// Provenance keeps one entry per enrichment source, serialized as JSON
	// in a single text column.
	Provenance Provenance `json:"provenance,omitempty" yaml:"provenance,omitempty"`

	// ImportDatetime is set once at ingest and never updated.
	// EnrichmentDatetime is zero until the first enrichment completes; its
	// zero-ness is the eligibility predicate for enrichment.
	ImportDatetime     time.Time `json:"import_datetime,omitzero" yaml:"import_datetime,omitempty"`
	EnrichmentDatetime time.Time `json:"enrichment_datetime,omitzero" yaml:"enrichment_datetime,omitempty"`
}

// NeedsEnrichment reports whether the record is eligible for an enrichment
// pass.
func (r *ResearchArticle) NeedsEnrichment() bool {
	return r.EnrichmentDatetime.IsZero()
}

// HasAbstract reports whether an abstract has been retrieved.
func (r *ResearchArticle) HasAbstract() bool {
	return strings.TrimSpace(r.AbstractText) != ""
}

// Provenance maps a source tag to the raw evidence of one enrichment call.
type Provenance map[string]ProvenanceEntry

// ProvenanceEntry records where and when a piece of metadata came from,
// including the raw payload for later audit. Unknown future fields in
// stored JSON are ignored on read.
type ProvenanceEntry struct {
	Source     string          `json:"source" yaml:"source"`
	URL        string          `json:"url" yaml:"url"`
	Timestamp  string          `json:"timestamp,omitempty" yaml:"timestamp,omitempty"`
	StatusCode int             `json:"status_code,omitempty" yaml:"status_code,omitempty"`
	Raw        json.RawMessage `json:"raw,omitempty" yaml:"raw,omitempty"`
}

// Merge copies entries from other into p, overwriting same-source entries.
func (p Provenance) Merge(other Provenance) {
	for k, v := range other {
		p[k] = v
	}
}

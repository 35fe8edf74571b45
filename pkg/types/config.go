package types

import (
	"path/filepath"
	"time"
)

// Paths holds the frozen filesystem layout for one process. The mode
// (production or test) is resolved once in the root command; components
// receive the value and never consult a global.
type Paths struct {
	Root string `json:"root" yaml:"root"`
}

// ProductionPaths returns the layout rooted at data/.
func ProductionPaths() Paths { return Paths{Root: "data"} }

// TestPaths returns the layout rooted at test_data/, completely separate
// from production.
func TestPaths() Paths { return Paths{Root: "test_data"} }

// DBPath returns the embedded database file location under the root.
func (p Paths) DBPath() string { return filepath.Join(p.Root, "cache", "research_articles.db") }

// PDFDir returns the destination directory for downloaded PDFs.
func (p Paths) PDFDir() string { return filepath.Join(p.Root, "pdfs") }

// DocxDir returns the directory searched for DOCX renditions.
func (p Paths) DocxDir() string { return filepath.Join(p.Root, "docx") }

// MarkdownDir returns the output directory for converted Markdown.
func (p Paths) MarkdownDir() string { return filepath.Join(p.Root, "markdown") }

// HTTPConfig holds shared HTTP settings used by stages that make network
// requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout (default 15s).
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// ContactEmail is included in every outbound User-Agent, as the
	// scholarly APIs request. Unpaywall additionally requires it as a
	// query parameter.
	ContactEmail string `json:"contact_email" yaml:"contact_email"`

	// MaxRetries bounds retry attempts for retryable responses (default 5).
	MaxRetries int `json:"max_retries" yaml:"max_retries"`
}

// UserAgent builds the polite User-Agent string for API calls.
func (c HTTPConfig) UserAgent() string {
	ua := "llm-query-doc-analyser/1.0"
	if c.ContactEmail != "" {
		ua += " (mailto:" + c.ContactEmail + ")"
	}
	return ua
}

// EnrichmentConfig holds settings for the enrichment stage.
type EnrichmentConfig struct {
	HTTPConfig `yaml:",inline"`

	// MaxConcurrent caps in-flight records per pass (default 8).
	MaxConcurrent int `json:"max_concurrent" yaml:"max_concurrent"`

	// MaxPasses bounds the published-version discovery loop (default 2).
	MaxPasses int `json:"max_passes" yaml:"max_passes"`

	// SemanticScholarAPIKey enables the Semantic Scholar source when set.
	SemanticScholarAPIKey string `json:"semantic_scholar_api_key,omitempty" yaml:"semantic_scholar_api_key,omitempty"`

	// RetryEmpty re-enriches records whose previous pass produced no data.
	RetryEmpty bool `json:"retry_empty" yaml:"retry_empty"`
}

// FilterConfig holds settings for one LLM filter run.
type FilterConfig struct {
	// Query is the inclusion criteria; Exclude disqualifies even papers
	// that satisfy it.
	Query   string `json:"query" yaml:"query"`
	Exclude string `json:"exclude" yaml:"exclude"`

	// Model is the LLM model identifier recorded on the filtering query.
	Model string `json:"model" yaml:"model"`

	// MaxConcurrent caps in-flight LLM calls (default 10).
	MaxConcurrent int `json:"max_concurrent" yaml:"max_concurrent"`

	// MaxRetries is the number of retry attempts for failed LLM calls
	// (default 3).
	MaxRetries int `json:"max_retries" yaml:"max_retries"`
}

// PDFConfig holds settings for the PDF resolution and download stage.
type PDFConfig struct {
	HTTPConfig `yaml:",inline"`

	// DestDir is where downloaded PDFs are written, content-addressed by
	// SHA-1.
	DestDir string `json:"dest_dir" yaml:"dest_dir"`

	// MaxConcurrent caps in-flight record downloads (default 5).
	MaxConcurrent int `json:"max_concurrent" yaml:"max_concurrent"`

	// MaxSizeBytes rejects PDFs larger than this (default 50 MiB).
	MaxSizeBytes int64 `json:"max_size_bytes" yaml:"max_size_bytes"`
}

// ConvertConfig holds settings for the DOCX to Markdown stage.
type ConvertConfig struct {
	// DocxDir is searched for DOCX renditions of downloaded PDFs.
	DocxDir string `json:"docx_dir" yaml:"docx_dir"`

	// MarkdownDir receives the converted output.
	MarkdownDir string `json:"markdown_dir" yaml:"markdown_dir"`

	// ConverterBin is the external DOCX-to-Markdown converter binary.
	ConverterBin string `json:"converter_bin" yaml:"converter_bin"`
}

// PipelineConfig groups all stage configurations.
type PipelineConfig struct {
	Paths      Paths            `json:"paths" yaml:"paths"`
	Enrichment EnrichmentConfig `json:"enrichment" yaml:"enrichment"`
	Filter     FilterConfig     `json:"filter" yaml:"filter"`
	PDF        PDFConfig        `json:"pdf" yaml:"pdf"`
	Convert    ConvertConfig    `json:"convert" yaml:"convert"`
}

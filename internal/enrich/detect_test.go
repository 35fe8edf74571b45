// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package enrich

import (
	"testing"

	"github.com/Cyril-Aubry/llm-query-doc-analyser/pkg/types"
)

func TestDetectPreprintSource(t *testing.T) {
	tests := []struct {
		name string
		rec  types.ResearchArticle
		want string
	}{
		{"arxiv source title", types.ResearchArticle{SourceTitle: "arXiv"}, "arxiv"},
		{"arxiv spaced source title", types.ResearchArticle{SourceTitle: "Ar Xiv e-prints"}, "arxiv"},
		{"biorxiv source title", types.ResearchArticle{SourceTitle: "bioRxiv"}, "biorxiv"},
		{"medrxiv source title", types.ResearchArticle{SourceTitle: "medRxiv"}, "medrxiv"},
		{"preprints.org source title", types.ResearchArticle{SourceTitle: "Preprints.org"}, "preprints"},
		{"cold spring DOI defaults to biorxiv", types.ResearchArticle{DOINorm: "10.1101/2021.01.01.425001"}, "biorxiv"},
		{"cold spring DOI with medical venue", types.ResearchArticle{DOINorm: "10.1101/2021.01.01.21250123", SourceTitle: "medRxiv : the preprint server"}, "medrxiv"},
		{"preprints.org DOI", types.ResearchArticle{DOINorm: "10.20944/preprints202101.0001.v1"}, "preprints"},
		{"arxiv registered DOI", types.ResearchArticle{DOINorm: "10.48550/arxiv.2103.12345"}, "arxiv"},
		{"legacy arxiv DOI", types.ResearchArticle{DOINorm: "arxiv:2103.12345"}, "arxiv"},
		{"arxiv id only", types.ResearchArticle{ArxivID: "2103.12345"}, "arxiv"},
		{"journal article", types.ResearchArticle{DOINorm: "10.1038/nature14539", SourceTitle: "Nature"}, ""},
		{"nothing to go on", types.ResearchArticle{Title: "Untitled"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectPreprintSource(&tt.rec); got != tt.want {
				t.Errorf("DetectPreprintSource() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractArxivID(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"10.48550/arxiv.2103.12345", "2103.12345"},
		{"arxiv:2103.12345", "2103.12345"},
		{"arxiv:2103.12345v2", "2103.12345"},
		{"10.1038/nature14539", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := ExtractArxivID(tt.in); got != tt.want {
			t.Errorf("ExtractArxivID(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

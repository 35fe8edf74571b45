// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pdfs resolves ranked open-access PDF candidates for matched
// records and downloads them with source-aware request policies.
package pdfs

import (
	"net/url"
	"strings"

	"github.com/Cyril-Aubry/llm-query-doc-analyser/internal/enrich"
	"github.com/Cyril-Aubry/llm-query-doc-analyser/pkg/types"
)

// arxivPDFBase is the arXiv PDF endpoint. Declared as a var so tests can
// substitute an httptest server.
var arxivPDFBase = "https://arxiv.org/pdf/"

// ResolveCandidates builds the ranked candidate list for one record:
// repository/preprint PDFs first, then the Unpaywall OA location, then
// publisher PDFs advertised with a license. The resolver performs no I/O;
// it only mines fields and provenance already cached on the record.
// Duplicate URLs across ranks are collapsed after canonical normalization.
func ResolveCandidates(rec *types.ResearchArticle) []types.Candidate {
	var candidates []types.Candidate

	// Rank 1: repository and preprint sources.
	if rec.ArxivID != "" {
		candidates = append(candidates, types.Candidate{
			URL:    arxivPDFBase + rec.ArxivID + ".pdf",
			Source: "arxiv",
		})
	}
	if entry, ok := rec.Provenance["epmc"]; ok {
		for _, ft := range enrich.ParseEPMCFullText(entry.Raw) {
			if strings.EqualFold(ft.DocumentStyle, "pdf") && ft.URL != "" {
				candidates = append(candidates, types.Candidate{URL: ft.URL, Source: "epmc"})
			}
		}
	}
	if entry, ok := rec.Provenance["s2"]; ok {
		if pdfURL := enrich.ParseS2OpenAccessPDF(entry.Raw); pdfURL != "" {
			candidates = append(candidates, types.Candidate{URL: pdfURL, Source: "s2"})
		}
	}
	if rec.ManualURLRepository != "" {
		candidates = append(candidates, types.Candidate{URL: rec.ManualURLRepository, Source: "manual"})
	}

	// Rank 2: Unpaywall's best OA location.
	if rec.OAPDFURL != "" && rec.IsOA != nil && *rec.IsOA {
		candidates = append(candidates, types.Candidate{
			URL:     rec.OAPDFURL,
			Source:  "unpaywall",
			License: rec.License,
		})
	}

	// Rank 3: publisher PDFs, only when a license is advertised.
	if entry, ok := rec.Provenance["crossref"]; ok {
		if pdfURL, license := enrich.ParseCrossrefPDF(entry.Raw); pdfURL != "" && license != "" {
			candidates = append(candidates, types.Candidate{URL: pdfURL, Source: "crossref", License: license})
		}
	}
	if rec.ManualURLPublisher != "" {
		candidates = append(candidates, types.Candidate{URL: rec.ManualURLPublisher, Source: "manual"})
	}

	return dedupeCandidates(candidates)
}

// dedupeCandidates collapses candidates that normalize to the same URL,
// keeping the highest-ranked occurrence.
func dedupeCandidates(candidates []types.Candidate) []types.Candidate {
	seen := make(map[string]bool, len(candidates))
	out := candidates[:0]
	for _, c := range candidates {
		key := normalizeURL(c.URL)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, c)
	}
	return out
}

// normalizeURL canonicalizes a URL for dedup: lowercase scheme and host,
// default port stripped, trailing slash trimmed, fragment dropped. Query
// strings are significant and kept.
func normalizeURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	if (u.Scheme == "http" && strings.HasSuffix(u.Host, ":80")) ||
		(u.Scheme == "https" && strings.HasSuffix(u.Host, ":443")) {
		u.Host = u.Host[:strings.LastIndex(u.Host, ":")]
	}
	u.Path = strings.TrimSuffix(u.Path, "/")
	u.Fragment = ""
	return u.String()
}

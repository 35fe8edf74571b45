// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package enrich queries public scholarly APIs to enrich research articles
// with abstracts, open-access status and preprint/published version links.
package enrich

import (
	"regexp"
	"strings"

	"github.com/Cyril-Aubry/llm-query-doc-analyser/pkg/types"
)

// Preprint platform tags.
const (
	PlatformArxiv     = "arxiv"
	PlatformBiorxiv   = "biorxiv"
	PlatformMedrxiv   = "medrxiv"
	PlatformPreprints = "preprints"
)

// DOI namespace prefixes owned by preprint platforms. bioRxiv and medRxiv
// share 10.1101; the source title disambiguates when present.
const (
	doiPrefixColdSpring = "10.1101/"
	doiPrefixPreprints  = "10.20944/"
	doiPrefixArxiv      = "10.48550/"
)

// sourceTitlePatterns maps platform tags to lowercase substrings matched
// against the record's source title.
var sourceTitlePatterns = map[string][]string{
	PlatformArxiv:     {"arxiv", "ar xiv"},
	PlatformMedrxiv:   {"medrxiv", "med rxiv"},
	PlatformBiorxiv:   {"biorxiv", "bio rxiv"},
	PlatformPreprints: {"preprints.org", "preprints"},
}

// platformOrder fixes the match order: medrxiv before biorxiv so the
// substring "rxiv" variants resolve deterministically.
var platformOrder = []string{PlatformArxiv, PlatformMedrxiv, PlatformBiorxiv, PlatformPreprints}

// arxivIDPattern matches modern arXiv identifiers inside DOIs or raw
// strings: "2301.07041", optionally versioned.
var arxivIDPattern = regexp.MustCompile(`(?i)arxiv[:.](\d{4}\.\d{4,5})(v\d+)?`)

// DetectPreprintSource classifies a record against the known preprint
// namespaces. It checks the source title patterns first, then DOI
// namespaces, then falls back to the presence of an arXiv ID. Returns the
// platform tag or "" for non-preprints.
func DetectPreprintSource(rec *types.ResearchArticle) string {
	if rec.SourceTitle != "" {
		source := strings.ToLower(strings.TrimSpace(rec.SourceTitle))
		for _, platform := range platformOrder {
			for _, pattern := range sourceTitlePatterns[platform] {
				if strings.Contains(source, pattern) {
					return platform
				}
			}
		}
	}

	if doi := rec.DOINorm; doi != "" {
		switch {
		case strings.HasPrefix(doi, doiPrefixPreprints):
			return PlatformPreprints
		case strings.HasPrefix(doi, doiPrefixArxiv), strings.HasPrefix(doi, "arxiv:"):
			return PlatformArxiv
		case strings.HasPrefix(doi, doiPrefixColdSpring):
			// 10.1101 covers both Cold Spring Harbor servers; prefer the
			// source title and default to bioRxiv otherwise.
			if rec.SourceTitle != "" && strings.Contains(strings.ToLower(rec.SourceTitle), "med") {
				return PlatformMedrxiv
			}
			return PlatformBiorxiv
		}
	}

	if rec.ArxivID != "" {
		return PlatformArxiv
	}
	return ""
}

// ExtractArxivID pulls the arXiv identifier out of a DOI-like string, or
// returns "" when none is embedded.
func ExtractArxivID(s string) string {
	if m := arxivIDPattern.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	return ""
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "strings"

// doiHostPrefixes are stripped from raw DOI strings during normalization.
var doiHostPrefixes = []string{
	"https://doi.org/",
	"https://dx.doi.org/",
	"http://doi.org/",
	"http://dx.doi.org/",
	"doi.org/",
}

// NormalizeDOI returns the canonical lowercase form of a DOI with any
// doi.org URL prefix removed. An empty input yields an empty string.
func NormalizeDOI(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, prefix := range doiHostPrefixes {
		if strings.HasPrefix(s, prefix) {
			s = strings.TrimPrefix(s, prefix)
			break
		}
	}
	return s
}

// DOISlug returns a filesystem-safe stem for a normalized DOI.
func DOISlug(doiNorm string) string {
	return strings.NewReplacer("/", "-", ":", "-").Replace(doiNorm)
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package enrich

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/Cyril-Aubry/llm-query-doc-analyser/pkg/types"
)

// AbstractFetch is the normalized outcome of one abstract source call.
// Adapters never return errors for per-source failures; the failure reason
// travels in Reason and the raw evidence in Prov.
type AbstractFetch struct {
	// Abstract is the plain-text abstract, or "" when the source had none.
	Abstract string

	// Reason explains a missing abstract ("API returned no data",
	// "no abstract field in response", "timeout", ...).
	Reason string

	// OAPDFURL is an open-access PDF link advertised by the source, kept
	// for the PDF resolver.
	OAPDFURL string

	// PMID is set by sources that resolve one.
	PMID string

	// Prov is the raw evidence of the call; nil when no response arrived.
	Prov *types.ProvenanceEntry
}

// AbstractSource is one external API in the abstract fallback chain.
type AbstractSource interface {
	// Key is the rate-limiter and provenance tag ("crossref", "s2", ...).
	Key() string

	// Name is the human-readable source name used in failure reasons.
	Name() string

	// FetchAbstract queries the source for rec's abstract.
	FetchAbstract(ctx context.Context, rec *types.ResearchArticle) AbstractFetch
}

// newProvenance builds the audit entry for one API response. body may be
// nil for failed requests. Non-JSON payloads (arXiv Atom, PubMed XML) are
// stored as a JSON string so the provenance column stays one JSON document.
func newProvenance(source, url string, resp *http.Response, body []byte) *types.ProvenanceEntry {
	entry := &types.ProvenanceEntry{
		Source:    source,
		URL:       url,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if resp != nil {
		entry.StatusCode = resp.StatusCode
	}
	if len(body) > 0 {
		if json.Valid(body) {
			entry.Raw = body
		} else if quoted, err := json.Marshal(string(body)); err == nil {
			entry.Raw = quoted
		}
	}
	return entry
}

// readBody drains a response body with a sane cap so a misbehaving API
// cannot balloon provenance storage.
func readBody(resp *http.Response) []byte {
	const maxProvenanceBody = 1 << 20
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxProvenanceBody))
	return data
}

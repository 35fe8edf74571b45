// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/Cyril-Aubry/llm-query-doc-analyser/internal/httputil"
	"github.com/Cyril-Aubry/llm-query-doc-analyser/pkg/types"
)

// openalexAPIBase is the OpenAlex works endpoint. Declared as a var so
// tests can substitute an httptest server.
var openalexAPIBase = "https://api.openalex.org/works/"

// OpenAlex fetches metadata and abstracts by DOI. OpenAlex stores
// abstracts as an inverted index that must be reconstructed into text.
type OpenAlex struct {
	HTTP *httputil.Client
}

// Key returns the source tag.
func (o *OpenAlex) Key() string { return "openalex" }

// Name returns the source display name.
func (o *OpenAlex) Name() string { return "OpenAlex" }

type openalexWork struct {
	AbstractInvertedIndex map[string][]int `json:"abstract_inverted_index"`
}

// FetchAbstract queries OpenAlex for the record's DOI.
func (o *OpenAlex) FetchAbstract(ctx context.Context, rec *types.ResearchArticle) AbstractFetch {
	if rec.DOINorm == "" {
		return AbstractFetch{Reason: "no DOI"}
	}

	url := openalexAPIBase + "doi:" + rec.DOINorm
	resp, err := o.HTTP.GetWithRetry(ctx, url, nil)
	if err != nil {
		return AbstractFetch{Reason: fmt.Sprintf("request failed: %v", err)}
	}
	defer resp.Body.Close()

	body := readBody(resp)
	prov := newProvenance("openalex", url, resp, body)

	if resp.StatusCode != http.StatusOK {
		return AbstractFetch{Reason: fmt.Sprintf("HTTP %d", resp.StatusCode), Prov: prov}
	}

	var work openalexWork
	if err := json.Unmarshal(body, &work); err != nil {
		return AbstractFetch{Reason: "malformed response", Prov: prov}
	}

	abstract := reconstructInvertedIndex(work.AbstractInvertedIndex)
	if abstract == "" {
		return AbstractFetch{Reason: "no abstract field in response", Prov: prov}
	}
	return AbstractFetch{Abstract: abstract, Prov: prov}
}

// reconstructInvertedIndex rebuilds plain text from OpenAlex's
// word → positions map. Position gaps are tolerated; out-of-range or
// negative positions void the reconstruction.
func reconstructInvertedIndex(idx map[string][]int) string {
	if len(idx) == 0 {
		return ""
	}

	maxPos := -1
	for _, positions := range idx {
		for _, p := range positions {
			if p < 0 {
				return ""
			}
			if p > maxPos {
				maxPos = p
			}
		}
	}
	if maxPos < 0 {
		return ""
	}

	words := make([]string, maxPos+1)
	for word, positions := range idx {
		for _, p := range positions {
			words[p] = word
		}
	}

	filled := words[:0]
	for _, w := range words {
		if w != "" {
			filled = append(filled, w)
		}
	}
	return strings.Join(filled, " ")
}

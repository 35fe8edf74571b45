// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/Cyril-Aubry/llm-query-doc-analyser/internal/httputil"
	"github.com/Cyril-Aubry/llm-query-doc-analyser/pkg/types"
)

// semanticAPIBase is the Semantic Scholar graph endpoint. Declared as a var
// so tests can substitute an httptest server.
var semanticAPIBase = "https://api.semanticscholar.org/graph/v1/paper/"

const semanticFields = "title,abstract,externalIds,openAccessPdf"

// SemanticScholar fetches abstracts by DOI. The source is optional: it is
// only registered in the pipeline when an API key is configured.
type SemanticScholar struct {
	HTTP   *httputil.Client
	APIKey string
}

// Key returns the source tag.
func (s *SemanticScholar) Key() string { return "s2" }

// Name returns the source display name.
func (s *SemanticScholar) Name() string { return "Semantic Scholar" }

type semanticPaper struct {
	Abstract      string `json:"abstract"`
	OpenAccessPDF *struct {
		URL string `json:"url"`
	} `json:"openAccessPdf"`
}

// FetchAbstract queries Semantic Scholar for the record's DOI.
func (s *SemanticScholar) FetchAbstract(ctx context.Context, rec *types.ResearchArticle) AbstractFetch {
	if rec.DOINorm == "" {
		return AbstractFetch{Reason: "no DOI"}
	}

	url := semanticAPIBase + "DOI:" + rec.DOINorm + "?fields=" + semanticFields
	headers := map[string]string{"x-api-key": s.APIKey}

	resp, err := s.HTTP.GetWithRetry(ctx, url, headers)
	if err != nil {
		return AbstractFetch{Reason: fmt.Sprintf("request failed: %v", err)}
	}
	defer resp.Body.Close()

	body := readBody(resp)
	prov := newProvenance("s2", url, resp, body)

	if resp.StatusCode != http.StatusOK {
		return AbstractFetch{Reason: fmt.Sprintf("HTTP %d", resp.StatusCode), Prov: prov}
	}

	var paper semanticPaper
	if err := json.Unmarshal(body, &paper); err != nil {
		return AbstractFetch{Reason: "malformed response", Prov: prov}
	}

	fetch := AbstractFetch{Abstract: paper.Abstract, Prov: prov}
	if paper.OpenAccessPDF != nil {
		fetch.OAPDFURL = paper.OpenAccessPDF.URL
	}
	if fetch.Abstract == "" {
		fetch.Reason = "no abstract field in response"
	}
	return fetch
}

// ParseS2OpenAccessPDF extracts the open-access PDF URL from a stored
// Semantic Scholar provenance blob. Used by the PDF resolver.
func ParseS2OpenAccessPDF(raw []byte) string {
	if len(raw) == 0 {
		return ""
	}
	var paper semanticPaper
	if err := json.Unmarshal(raw, &paper); err != nil {
		return ""
	}
	if paper.OpenAccessPDF == nil {
		return ""
	}
	return paper.OpenAccessPDF.URL
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/Cyril-Aubry/llm-query-doc-analyser/internal/httputil"
	"github.com/Cyril-Aubry/llm-query-doc-analyser/pkg/types"
)

// unpaywallAPIBase is the Unpaywall endpoint. Declared as a var so tests
// can substitute an httptest server.
var unpaywallAPIBase = "https://api.unpaywall.org/v2/"

// Unpaywall fetches open-access status, license and PDF location by DOI.
// The API requires a contact email as a query parameter.
type Unpaywall struct {
	HTTP  *httputil.Client
	Email string
}

// OAResult is the normalized Unpaywall outcome.
type OAResult struct {
	IsOA     *bool
	OAStatus string
	License  string
	OAPDFURL string
	Reason   string
	Prov     *types.ProvenanceEntry
}

type unpaywallResponse struct {
	IsOA           *bool              `json:"is_oa"`
	OAStatus       string             `json:"oa_status"`
	BestOALocation *unpaywallLocation `json:"best_oa_location"`
}

type unpaywallLocation struct {
	License   string `json:"license"`
	URLForPDF string `json:"url_for_pdf"`
}

// FetchOA queries Unpaywall for the record's DOI. A missing contact email
// is a configuration error and reported as such.
func (u *Unpaywall) FetchOA(ctx context.Context, rec *types.ResearchArticle) OAResult {
	if rec.DOINorm == "" {
		return OAResult{Reason: "no DOI"}
	}
	if u.Email == "" {
		return OAResult{Reason: "unpaywall contact email not configured"}
	}

	reqURL := unpaywallAPIBase + rec.DOINorm + "?email=" + url.QueryEscape(u.Email)
	resp, err := u.HTTP.GetWithRetry(ctx, reqURL, nil)
	if err != nil {
		return OAResult{Reason: fmt.Sprintf("request failed: %v", err)}
	}
	defer resp.Body.Close()

	body := readBody(resp)
	prov := newProvenance("unpaywall", reqURL, resp, body)

	if resp.StatusCode != http.StatusOK {
		return OAResult{Reason: fmt.Sprintf("HTTP %d", resp.StatusCode), Prov: prov}
	}

	var upw unpaywallResponse
	if err := json.Unmarshal(body, &upw); err != nil {
		return OAResult{Reason: "malformed response", Prov: prov}
	}

	out := OAResult{
		IsOA:     upw.IsOA,
		OAStatus: upw.OAStatus,
		Prov:     prov,
	}
	if loc := upw.BestOALocation; loc != nil {
		out.License = loc.License
		out.OAPDFURL = loc.URLForPDF
	}
	return out
}

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

// europePMCAPIBase is the Europe PMC search endpoint. Declared as a var so
// tests can substitute an httptest server.
var europePMCAPIBase = "https://www.ebi.ac.uk/europepmc/webservices/rest/search"

// EuropePMC fetches abstracts and full-text URL lists by DOI. The raw
// response retains the fullTextUrlList the PDF resolver mines later.
type EuropePMC struct {
	HTTP *httputil.Client
}

// Key returns the source tag.
func (e *EuropePMC) Key() string { return "epmc" }

// Name returns the source display name.
func (e *EuropePMC) Name() string { return "EuropePMC" }

type epmcSearchResponse struct {
	ResultList struct {
		Result []epmcResult `json:"result"`
	} `json:"resultList"`
}

type epmcResult struct {
	PMID            string `json:"pmid"`
	PMCID           string `json:"pmcid"`
	AbstractText    string `json:"abstractText"`
	FullTextURLList struct {
		FullTextURL []EPMCFullTextURL `json:"fullTextUrl"`
	} `json:"fullTextUrlList"`
}

// EPMCFullTextURL is one advertised full-text location.
type EPMCFullTextURL struct {
	URL           string `json:"url"`
	DocumentStyle string `json:"documentStyle"`
	Availability  string `json:"availability"`
}

// FetchAbstract queries Europe PMC for the record's DOI.
func (e *EuropePMC) FetchAbstract(ctx context.Context, rec *types.ResearchArticle) AbstractFetch {
	if rec.DOINorm == "" {
		return AbstractFetch{Reason: "no DOI"}
	}

	params := url.Values{
		"query":  {`DOI:"` + rec.DOINorm + `"`},
		"format": {"json"},
	}
	reqURL := europePMCAPIBase + "?" + params.Encode()

	resp, err := e.HTTP.GetWithRetry(ctx, reqURL, nil)
	if err != nil {
		return AbstractFetch{Reason: fmt.Sprintf("request failed: %v", err)}
	}
	defer resp.Body.Close()

	body := readBody(resp)
	prov := newProvenance("epmc", reqURL, resp, body)

	if resp.StatusCode != http.StatusOK {
		return AbstractFetch{Reason: fmt.Sprintf("HTTP %d", resp.StatusCode), Prov: prov}
	}

	var search epmcSearchResponse
	if err := json.Unmarshal(body, &search); err != nil {
		return AbstractFetch{Reason: "malformed response", Prov: prov}
	}
	if len(search.ResultList.Result) == 0 {
		return AbstractFetch{Reason: "no results for DOI", Prov: prov}
	}

	result := search.ResultList.Result[0]
	fetch := AbstractFetch{
		Abstract: result.AbstractText,
		PMID:     result.PMID,
		Prov:     prov,
	}
	if fetch.Abstract == "" {
		fetch.Reason = "no abstract field in response"
	}
	return fetch
}

// ParseEPMCFullText extracts the full-text URL list from a stored Europe
// PMC provenance blob. Used by the PDF resolver.
func ParseEPMCFullText(raw []byte) []EPMCFullTextURL {
	if len(raw) == 0 {
		return nil
	}
	var search epmcSearchResponse
	if err := json.Unmarshal(raw, &search); err != nil {
		return nil
	}
	if len(search.ResultList.Result) == 0 {
		return nil
	}
	return search.ResultList.Result[0].FullTextURLList.FullTextURL
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package enrich

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/Cyril-Aubry/llm-query-doc-analyser/internal/httputil"
	"github.com/Cyril-Aubry/llm-query-doc-analyser/pkg/types"
)

// NCBI E-utilities endpoints. Declared as vars so tests can substitute
// httptest servers.
var (
	pubmedESearchBase = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils/esearch.fcgi"
	pubmedEFetchBase  = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils/efetch.fcgi"
)

// PubMed resolves a DOI to a PMID via ESearch, then fetches the abstract
// via EFetch. Both calls count against the pubmed rate bucket.
type PubMed struct {
	HTTP *httputil.Client
}

// Key returns the source tag.
func (p *PubMed) Key() string { return "pubmed" }

// Name returns the source display name.
func (p *PubMed) Name() string { return "PubMed" }

type esearchResponse struct {
	ESearchResult struct {
		IDList []string `json:"idlist"`
	} `json:"esearchresult"`
}

// Minimal EFetch XML shape: abstract paragraphs under
// PubmedArticle/MedlineCitation/Article/Abstract.
type pubmedArticleSet struct {
	Articles []struct {
		MedlineCitation struct {
			Article struct {
				Abstract struct {
					Text []string `xml:"AbstractText"`
				} `xml:"Abstract"`
			} `xml:"Article"`
		} `xml:"MedlineCitation"`
	} `xml:"PubmedArticle"`
}

// FetchAbstract performs the two-step DOI → PMID → abstract lookup.
func (p *PubMed) FetchAbstract(ctx context.Context, rec *types.ResearchArticle) AbstractFetch {
	if rec.DOINorm == "" {
		return AbstractFetch{Reason: "no DOI"}
	}

	params := url.Values{
		"db":      {"pubmed"},
		"term":    {rec.DOINorm + "[AID]"},
		"retmode": {"json"},
	}
	searchURL := pubmedESearchBase + "?" + params.Encode()

	resp, err := p.HTTP.GetWithRetry(ctx, searchURL, nil)
	if err != nil {
		return AbstractFetch{Reason: fmt.Sprintf("request failed: %v", err)}
	}
	body := readBody(resp)
	resp.Body.Close()

	prov := newProvenance("pubmed", searchURL, resp, body)
	if resp.StatusCode != http.StatusOK {
		return AbstractFetch{Reason: fmt.Sprintf("HTTP %d", resp.StatusCode), Prov: prov}
	}

	var search esearchResponse
	if err := json.Unmarshal(body, &search); err != nil {
		return AbstractFetch{Reason: "malformed response", Prov: prov}
	}
	if len(search.ESearchResult.IDList) == 0 {
		return AbstractFetch{Reason: "no PMID for DOI", Prov: prov}
	}
	pmid := search.ESearchResult.IDList[0]

	fetchParams := url.Values{
		"db":      {"pubmed"},
		"id":      {pmid},
		"retmode": {"xml"},
	}
	fetchURL := pubmedEFetchBase + "?" + fetchParams.Encode()

	resp2, err := p.HTTP.GetWithRetry(ctx, fetchURL, nil)
	if err != nil {
		return AbstractFetch{PMID: pmid, Reason: fmt.Sprintf("efetch failed: %v", err), Prov: prov}
	}
	defer resp2.Body.Close()

	xmlBody := readBody(resp2)
	prov = newProvenance("pubmed", fetchURL, resp2, xmlBody)

	if resp2.StatusCode != http.StatusOK {
		return AbstractFetch{PMID: pmid, Reason: fmt.Sprintf("efetch HTTP %d", resp2.StatusCode), Prov: prov}
	}

	var set pubmedArticleSet
	if err := xml.Unmarshal(xmlBody, &set); err != nil {
		return AbstractFetch{PMID: pmid, Reason: "malformed efetch response", Prov: prov}
	}
	if len(set.Articles) == 0 {
		return AbstractFetch{PMID: pmid, Reason: "no article for PMID", Prov: prov}
	}

	abstract := strings.TrimSpace(strings.Join(set.Articles[0].MedlineCitation.Article.Abstract.Text, " "))
	if abstract == "" {
		return AbstractFetch{PMID: pmid, Reason: "no abstract field in response", Prov: prov}
	}
	return AbstractFetch{Abstract: abstract, PMID: pmid, Prov: prov}
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/Cyril-Aubry/llm-query-doc-analyser/internal/httputil"
	"github.com/Cyril-Aubry/llm-query-doc-analyser/pkg/types"
)

// crossrefAPIBase is the Crossref works endpoint. Declared as a var so
// tests can substitute an httptest server.
var crossrefAPIBase = "https://api.crossref.org/works/"

// Crossref fetches metadata and abstracts by DOI.
type Crossref struct {
	HTTP *httputil.Client
}

// Key returns the source tag.
func (c *Crossref) Key() string { return "crossref" }

// Name returns the source display name.
func (c *Crossref) Name() string { return "Crossref" }

type crossrefResponse struct {
	Message crossrefWork `json:"message"`
}

type crossrefWork struct {
	Abstract string         `json:"abstract"`
	Link     []crossrefLink `json:"link"`
	License  []crossrefLicense `json:"license"`
}

type crossrefLink struct {
	URL         string `json:"URL"`
	ContentType string `json:"content-type"`
}

type crossrefLicense struct {
	URL string `json:"URL"`
}

// jatsTagRe matches any markup tag; stripJATS replaces every match with a
// space.
var jatsTagRe = regexp.MustCompile(`<[^>]+>`)

// wsRe collapses whitespace runs in reconstructed abstracts.
var wsRe = regexp.MustCompile(`\s+`)

// FetchAbstract queries Crossref for the record's DOI. Crossref abstracts
// arrive as JATS XML fragments; markup is stripped to plain text. A PDF
// link with content-type application/pdf is kept for the resolver.
func (c *Crossref) FetchAbstract(ctx context.Context, rec *types.ResearchArticle) AbstractFetch {
	if rec.DOINorm == "" {
		return AbstractFetch{Reason: "no DOI"}
	}

	url := crossrefAPIBase + rec.DOINorm
	resp, err := c.HTTP.GetWithRetry(ctx, url, nil)
	if err != nil {
		return AbstractFetch{Reason: fmt.Sprintf("request failed: %v", err)}
	}
	defer resp.Body.Close()

	body := readBody(resp)
	prov := newProvenance("crossref", url, resp, body)

	if resp.StatusCode != http.StatusOK {
		return AbstractFetch{Reason: fmt.Sprintf("HTTP %d", resp.StatusCode), Prov: prov}
	}

	var cr crossrefResponse
	if err := json.Unmarshal(body, &cr); err != nil {
		return AbstractFetch{Reason: "malformed response", Prov: prov}
	}

	fetch := AbstractFetch{Prov: prov}
	fetch.Abstract = stripJATS(cr.Message.Abstract)
	if fetch.Abstract == "" {
		fetch.Reason = "no abstract field in response"
	}

	for _, link := range cr.Message.Link {
		if link.ContentType == "application/pdf" {
			fetch.OAPDFURL = link.URL
			break
		}
	}
	return fetch
}

// ParseCrossrefPDF extracts a publisher PDF link and license URL from a
// stored Crossref provenance blob. Used by the PDF resolver.
func ParseCrossrefPDF(raw []byte) (pdfURL, license string) {
	if len(raw) == 0 {
		return "", ""
	}
	var cr crossrefResponse
	if err := json.Unmarshal(raw, &cr); err != nil {
		return "", ""
	}
	for _, link := range cr.Message.Link {
		if link.ContentType == "application/pdf" {
			pdfURL = link.URL
			break
		}
	}
	if len(cr.Message.License) > 0 {
		license = cr.Message.License[0].URL
	}
	return pdfURL, license
}

// stripJATS converts a JATS-flavored abstract fragment to plain text.
func stripJATS(s string) string {
	if s == "" {
		return ""
	}
	s = jatsTagRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(wsRe.ReplaceAllString(s, " "))
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package enrich

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"net/http"
	"strings"

	"github.com/Cyril-Aubry/llm-query-doc-analyser/internal/httputil"
	"github.com/Cyril-Aubry/llm-query-doc-analyser/pkg/types"
)

// Preprint platform endpoints. Declared as vars so tests can substitute
// httptest servers.
var (
	arxivAPIBase        = "https://export.arxiv.org/api/query"
	biorxivAPIBase      = "https://api.biorxiv.org/details"
	preprintsOrgAPIBase = "https://www.preprints.org/api/manuscript/doi/"
)

// PreprintFetch is the normalized outcome of one preprint platform call.
// PublishedDOI is set when the platform knows a peer-reviewed version.
type PreprintFetch struct {
	Abstract         string
	Title            string
	PublishedDOI     string
	PublishedJournal string
	Reason           string
	Prov             *types.ProvenanceEntry
}

// PreprintProviders queries the platform-specific metadata APIs.
type PreprintProviders struct {
	HTTP *httputil.Client
}

// Fetch dispatches to the adapter for the record's preprint platform.
func (p *PreprintProviders) Fetch(ctx context.Context, rec *types.ResearchArticle, platform string) PreprintFetch {
	switch platform {
	case PlatformArxiv:
		return p.fetchArxiv(ctx, rec)
	case PlatformBiorxiv, PlatformMedrxiv:
		return p.fetchBiorxiv(ctx, rec, platform)
	case PlatformPreprints:
		return p.fetchPreprintsOrg(ctx, rec)
	default:
		return PreprintFetch{Reason: fmt.Sprintf("unsupported preprint platform %q", platform)}
	}
}

// arXiv Atom feed structures.
type arxivFeed struct {
	Entries []arxivEntry `xml:"entry"`
}

type arxivEntry struct {
	Title      string      `xml:"title"`
	Summary    string      `xml:"summary"`
	JournalRef string      `xml:"journal_ref"`
	Links      []arxivLink `xml:"link"`
}

type arxivLink struct {
	Title string `xml:"title,attr"`
	Href  string `xml:"href,attr"`
}

// fetchArxiv queries the arXiv Atom API by arXiv ID. A link element titled
// "doi" names the published version when one exists.
func (p *PreprintProviders) fetchArxiv(ctx context.Context, rec *types.ResearchArticle) PreprintFetch {
	arxivID := rec.ArxivID
	if arxivID == "" {
		arxivID = ExtractArxivID(rec.DOINorm)
	}
	if arxivID == "" {
		return PreprintFetch{Reason: "no arXiv ID"}
	}

	url := arxivAPIBase + "?id_list=" + arxivID
	resp, err := p.HTTP.GetWithRetry(ctx, url, nil)
	if err != nil {
		return PreprintFetch{Reason: fmt.Sprintf("request failed: %v", err)}
	}
	defer resp.Body.Close()

	body := readBody(resp)
	prov := newProvenance(PlatformArxiv, url, resp, body)

	if resp.StatusCode != http.StatusOK {
		return PreprintFetch{Reason: fmt.Sprintf("HTTP %d", resp.StatusCode), Prov: prov}
	}

	var feed arxivFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return PreprintFetch{Reason: "malformed Atom response", Prov: prov}
	}
	if len(feed.Entries) == 0 {
		return PreprintFetch{Reason: "no entry for arXiv ID", Prov: prov}
	}

	entry := feed.Entries[0]
	fetch := PreprintFetch{
		Abstract:         strings.TrimSpace(entry.Summary),
		Title:            strings.TrimSpace(entry.Title),
		PublishedJournal: strings.TrimSpace(entry.JournalRef),
		Prov:             prov,
	}
	for _, link := range entry.Links {
		if link.Title == "doi" {
			fetch.PublishedDOI = link.Href
			break
		}
	}
	if fetch.Abstract == "" {
		fetch.Reason = "no abstract in Atom entry"
	}
	return fetch
}

type biorxivResponse struct {
	Collection []biorxivItem `json:"collection"`
}

type biorxivItem struct {
	Title            string `json:"title"`
	Abstract         string `json:"abstract"`
	Published        string `json:"published"`
	PublishedJournal string `json:"published_journal"`
	Journal          string `json:"journal"`
}

// fetchBiorxiv queries the Cold Spring Harbor details API shared by bioRxiv
// and medRxiv. The published field holds the peer-reviewed DOI, or the
// literal "NA" when none exists.
func (p *PreprintProviders) fetchBiorxiv(ctx context.Context, rec *types.ResearchArticle, platform string) PreprintFetch {
	if rec.DOINorm == "" {
		return PreprintFetch{Reason: "no DOI"}
	}

	url := fmt.Sprintf("%s/%s/%s", biorxivAPIBase, platform, rec.DOINorm)
	resp, err := p.HTTP.GetWithRetry(ctx, url, nil)
	if err != nil {
		return PreprintFetch{Reason: fmt.Sprintf("request failed: %v", err)}
	}
	defer resp.Body.Close()

	body := readBody(resp)
	prov := newProvenance(platform, url, resp, body)

	if resp.StatusCode != http.StatusOK {
		return PreprintFetch{Reason: fmt.Sprintf("HTTP %d", resp.StatusCode), Prov: prov}
	}

	var details biorxivResponse
	if err := json.Unmarshal(body, &details); err != nil {
		return PreprintFetch{Reason: "malformed response", Prov: prov}
	}
	if len(details.Collection) == 0 {
		return PreprintFetch{Reason: "no results for DOI", Prov: prov}
	}

	item := details.Collection[0]
	fetch := PreprintFetch{
		Abstract: item.Abstract,
		Title:    item.Title,
		Prov:     prov,
	}
	if item.Published != "" && !strings.EqualFold(item.Published, "NA") {
		fetch.PublishedDOI = item.Published
	}
	fetch.PublishedJournal = item.PublishedJournal
	if fetch.PublishedJournal == "" {
		fetch.PublishedJournal = item.Journal
	}
	if fetch.Abstract == "" {
		fetch.Reason = "no abstract field in response"
	}
	return fetch
}

type preprintsOrgResponse struct {
	Title            string `json:"title"`
	Abstract         string `json:"abstract"`
	PublishedDOI     string `json:"published_doi"`
	PeerReviewedDOI  string `json:"peer_reviewed_doi"`
	PublishedJournal string `json:"published_journal"`
	JournalName      string `json:"journal_name"`
}

// fetchPreprintsOrg queries the Preprints.org manuscript API by DOI.
func (p *PreprintProviders) fetchPreprintsOrg(ctx context.Context, rec *types.ResearchArticle) PreprintFetch {
	if rec.DOINorm == "" {
		return PreprintFetch{Reason: "no DOI"}
	}

	url := preprintsOrgAPIBase + rec.DOINorm
	resp, err := p.HTTP.GetWithRetry(ctx, url, nil)
	if err != nil {
		return PreprintFetch{Reason: fmt.Sprintf("request failed: %v", err)}
	}
	defer resp.Body.Close()

	body := readBody(resp)
	prov := newProvenance(PlatformPreprints, url, resp, body)

	if resp.StatusCode != http.StatusOK {
		return PreprintFetch{Reason: fmt.Sprintf("HTTP %d", resp.StatusCode), Prov: prov}
	}

	var manuscript preprintsOrgResponse
	if err := json.Unmarshal(body, &manuscript); err != nil {
		return PreprintFetch{Reason: "malformed response", Prov: prov}
	}

	fetch := PreprintFetch{
		Abstract: manuscript.Abstract,
		Title:    manuscript.Title,
		Prov:     prov,
	}
	fetch.PublishedDOI = manuscript.PublishedDOI
	if fetch.PublishedDOI == "" {
		fetch.PublishedDOI = manuscript.PeerReviewedDOI
	}
	fetch.PublishedJournal = manuscript.PublishedJournal
	if fetch.PublishedJournal == "" {
		fetch.PublishedJournal = manuscript.JournalName
	}
	if fetch.Abstract == "" {
		fetch.Reason = "no abstract field in response"
	}
	return fetch
}

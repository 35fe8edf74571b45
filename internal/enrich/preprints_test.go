// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package enrich

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Cyril-Aubry/llm-query-doc-analyser/pkg/types"
)

const arxivAtomWithDOI = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <entry>
    <title>Attention Is All You Need</title>
    <summary>  We propose the Transformer.  </summary>
    <link title="doi" href="https://doi.org/10.1038/xxxxx" rel="related"/>
    <link title="pdf" href="https://arxiv.org/pdf/2103.12345" rel="related"/>
  </entry>
</feed>`

func TestArxivProviderParsesPublishedDOI(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2103.12345", r.URL.Query().Get("id_list"))
		w.Header().Set("Content-Type", "application/atom+xml")
		fmt.Fprint(w, arxivAtomWithDOI)
	}))
	defer ts.Close()

	old := arxivAPIBase
	arxivAPIBase = ts.URL
	defer func() { arxivAPIBase = old }()

	p := &PreprintProviders{HTTP: testHTTPClient()}
	rec := &types.ResearchArticle{Title: "T", ArxivID: "2103.12345"}
	fetch := p.Fetch(context.Background(), rec, PlatformArxiv)

	assert.Equal(t, "We propose the Transformer.", fetch.Abstract)
	assert.Equal(t, "Attention Is All You Need", fetch.Title)
	assert.Equal(t, "https://doi.org/10.1038/xxxxx", fetch.PublishedDOI)
	require.NotNil(t, fetch.Prov)
	assert.Equal(t, "arxiv", fetch.Prov.Source)
}

func TestArxivProviderNoEntry(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<?xml version="1.0"?><feed xmlns="http://www.w3.org/2005/Atom"></feed>`)
	}))
	defer ts.Close()

	old := arxivAPIBase
	arxivAPIBase = ts.URL
	defer func() { arxivAPIBase = old }()

	p := &PreprintProviders{HTTP: testHTTPClient()}
	fetch := p.Fetch(context.Background(), &types.ResearchArticle{ArxivID: "0000.00000"}, PlatformArxiv)
	assert.Equal(t, "no entry for arXiv ID", fetch.Reason)
}

func TestBiorxivProviderPublishedNA(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/biorxiv/10.1101/2021.01.01.425001")
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"collection":[{"title":"A preprint","abstract":"Preprint abstract.","published":"NA"}]}`)
	}))
	defer ts.Close()

	old := biorxivAPIBase
	biorxivAPIBase = ts.URL
	defer func() { biorxivAPIBase = old }()

	p := &PreprintProviders{HTTP: testHTTPClient()}
	rec := doiRecord("10.1101/2021.01.01.425001")
	fetch := p.Fetch(context.Background(), rec, PlatformBiorxiv)

	assert.Equal(t, "Preprint abstract.", fetch.Abstract)
	assert.Empty(t, fetch.PublishedDOI, `the literal "NA" means no published version`)
}

func TestBiorxivProviderPublishedDOI(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"collection":[{"title":"A preprint","abstract":"Text.",
			"published":"10.7554/eLife.12345","published_journal":"eLife"}]}`)
	}))
	defer ts.Close()

	old := biorxivAPIBase
	biorxivAPIBase = ts.URL
	defer func() { biorxivAPIBase = old }()

	p := &PreprintProviders{HTTP: testHTTPClient()}
	fetch := p.Fetch(context.Background(), doiRecord("10.1101/x"), PlatformMedrxiv)

	assert.Equal(t, "10.7554/eLife.12345", fetch.PublishedDOI)
	assert.Equal(t, "eLife", fetch.PublishedJournal)
}

func TestPreprintsOrgProvider(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "10.20944/preprints202101.0001.v1")
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"title":"Manuscript","abstract":"Manuscript abstract.",
			"peer_reviewed_doi":"10.3390/s21010001","journal_name":"Sensors"}`)
	}))
	defer ts.Close()

	old := preprintsOrgAPIBase
	preprintsOrgAPIBase = ts.URL + "/"
	defer func() { preprintsOrgAPIBase = old }()

	p := &PreprintProviders{HTTP: testHTTPClient()}
	fetch := p.Fetch(context.Background(), doiRecord("10.20944/preprints202101.0001.v1"), PlatformPreprints)

	assert.Equal(t, "Manuscript abstract.", fetch.Abstract)
	assert.Equal(t, "10.3390/s21010001", fetch.PublishedDOI)
	assert.Equal(t, "Sensors", fetch.PublishedJournal)
}

func TestFetchUnsupportedPlatform(t *testing.T) {
	p := &PreprintProviders{HTTP: testHTTPClient()}
	fetch := p.Fetch(context.Background(), doiRecord("10.1/x"), "unknown-platform")
	assert.Contains(t, fetch.Reason, "unsupported preprint platform")
}

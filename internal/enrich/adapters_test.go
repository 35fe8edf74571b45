// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package enrich

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Cyril-Aubry/llm-query-doc-analyser/internal/httputil"
	"github.com/Cyril-Aubry/llm-query-doc-analyser/pkg/types"
)

func testHTTPClient() *httputil.Client {
	return httputil.NewClient(5*time.Second, 1, "doc-analyser-test/1.0", zap.NewNop())
}

func doiRecord(doi string) *types.ResearchArticle {
	return &types.ResearchArticle{Title: "T", DOINorm: doi}
}

// --- Crossref ---

func TestCrossrefStripsJATSMarkup(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/10.1234/abc", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"message":{"abstract":"<jats:p>We present  a <jats:italic>method</jats:italic>.</jats:p>",
			"link":[{"URL":"https://pub.example/a.pdf","content-type":"application/pdf"}]}}`)
	}))
	defer ts.Close()

	old := crossrefAPIBase
	crossrefAPIBase = ts.URL + "/"
	defer func() { crossrefAPIBase = old }()

	c := &Crossref{HTTP: testHTTPClient()}
	fetch := c.FetchAbstract(context.Background(), doiRecord("10.1234/abc"))

	assert.Equal(t, "We present a method .", fetch.Abstract)
	assert.Equal(t, "https://pub.example/a.pdf", fetch.OAPDFURL)
	require.NotNil(t, fetch.Prov)
	assert.Equal(t, "crossref", fetch.Prov.Source)
	assert.Equal(t, http.StatusOK, fetch.Prov.StatusCode)
}

func TestCrossrefNotFound(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	old := crossrefAPIBase
	crossrefAPIBase = ts.URL + "/"
	defer func() { crossrefAPIBase = old }()

	c := &Crossref{HTTP: testHTTPClient()}
	fetch := c.FetchAbstract(context.Background(), doiRecord("10.1234/missing"))

	assert.Empty(t, fetch.Abstract)
	assert.Equal(t, "HTTP 404", fetch.Reason)
}

func TestCrossrefNoDOI(t *testing.T) {
	c := &Crossref{HTTP: testHTTPClient()}
	fetch := c.FetchAbstract(context.Background(), doiRecord(""))
	assert.Equal(t, "no DOI", fetch.Reason)
	assert.Nil(t, fetch.Prov)
}

// --- OpenAlex ---

func TestOpenAlexReconstructsInvertedIndex(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasPrefix(r.URL.Path, "/doi:10.1234"), r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"abstract_inverted_index":{"attention":[2],"We":[0],"study":[1],"mechanisms":[3]}}`)
	}))
	defer ts.Close()

	old := openalexAPIBase
	openalexAPIBase = ts.URL + "/"
	defer func() { openalexAPIBase = old }()

	o := &OpenAlex{HTTP: testHTTPClient()}
	fetch := o.FetchAbstract(context.Background(), doiRecord("10.1234/abc"))

	assert.Equal(t, "We study attention mechanisms", fetch.Abstract)
}

func TestReconstructInvertedIndexEdgeCases(t *testing.T) {
	assert.Empty(t, reconstructInvertedIndex(nil))
	assert.Empty(t, reconstructInvertedIndex(map[string][]int{}))
	assert.Empty(t, reconstructInvertedIndex(map[string][]int{"bad": {-1}}))
	// Gaps are tolerated.
	assert.Equal(t, "a c", reconstructInvertedIndex(map[string][]int{"a": {0}, "c": {5}}))
	// Repeated words occupy every listed position.
	assert.Equal(t, "the cat the", reconstructInvertedIndex(map[string][]int{"the": {0, 2}, "cat": {1}}))
}

// --- Unpaywall ---

func TestUnpaywallParsesBestOALocation(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "curator@example.org", r.URL.Query().Get("email"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"is_oa":true,"oa_status":"gold",
			"best_oa_location":{"license":"cc-by","url_for_pdf":"https://oa.example/a.pdf"}}`)
	}))
	defer ts.Close()

	old := unpaywallAPIBase
	unpaywallAPIBase = ts.URL + "/"
	defer func() { unpaywallAPIBase = old }()

	u := &Unpaywall{HTTP: testHTTPClient(), Email: "curator@example.org"}
	result := u.FetchOA(context.Background(), doiRecord("10.1234/abc"))

	require.NotNil(t, result.IsOA)
	assert.True(t, *result.IsOA)
	assert.Equal(t, "gold", result.OAStatus)
	assert.Equal(t, "cc-by", result.License)
	assert.Equal(t, "https://oa.example/a.pdf", result.OAPDFURL)
}

func TestUnpaywallRequiresEmail(t *testing.T) {
	u := &Unpaywall{HTTP: testHTTPClient()}
	result := u.FetchOA(context.Background(), doiRecord("10.1234/abc"))
	assert.Contains(t, result.Reason, "email")
	assert.Nil(t, result.IsOA)
}

// --- EuropePMC ---

func TestEuropePMCAbstractAndFulltext(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Query().Get("query"), `DOI:"10.1234/abc"`)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"resultList":{"result":[{"pmid":"12345","abstractText":"An abstract.",
			"fullTextUrlList":{"fullTextUrl":[
				{"url":"https://epmc.example/pdf","documentStyle":"pdf","availability":"Open access"},
				{"url":"https://epmc.example/html","documentStyle":"html","availability":"Open access"}]}}]}}`)
	}))
	defer ts.Close()

	old := europePMCAPIBase
	europePMCAPIBase = ts.URL
	defer func() { europePMCAPIBase = old }()

	e := &EuropePMC{HTTP: testHTTPClient()}
	fetch := e.FetchAbstract(context.Background(), doiRecord("10.1234/abc"))

	assert.Equal(t, "An abstract.", fetch.Abstract)
	assert.Equal(t, "12345", fetch.PMID)

	fulltext := ParseEPMCFullText(fetch.Prov.Raw)
	require.Len(t, fulltext, 2)
	assert.Equal(t, "pdf", fulltext[0].DocumentStyle)
}

func TestEuropePMCNoResults(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"resultList":{"result":[]}}`)
	}))
	defer ts.Close()

	old := europePMCAPIBase
	europePMCAPIBase = ts.URL
	defer func() { europePMCAPIBase = old }()

	e := &EuropePMC{HTTP: testHTTPClient()}
	fetch := e.FetchAbstract(context.Background(), doiRecord("10.1234/abc"))
	assert.Equal(t, "no results for DOI", fetch.Reason)
}

// --- PubMed ---

func TestPubMedTwoStepLookup(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/esearch.fcgi", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "10.1234/abc[AID]", r.URL.Query().Get("term"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"esearchresult":{"idlist":["98765"]}}`)
	})
	mux.HandleFunc("/efetch.fcgi", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "98765", r.URL.Query().Get("id"))
		w.Header().Set("Content-Type", "application/xml")
		fmt.Fprint(w, `<PubmedArticleSet><PubmedArticle><MedlineCitation><Article>
			<Abstract><AbstractText>Background part.</AbstractText><AbstractText>Results part.</AbstractText></Abstract>
			</Article></MedlineCitation></PubmedArticle></PubmedArticleSet>`)
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	oldSearch, oldFetch := pubmedESearchBase, pubmedEFetchBase
	pubmedESearchBase = ts.URL + "/esearch.fcgi"
	pubmedEFetchBase = ts.URL + "/efetch.fcgi"
	defer func() { pubmedESearchBase, pubmedEFetchBase = oldSearch, oldFetch }()

	p := &PubMed{HTTP: testHTTPClient()}
	fetch := p.FetchAbstract(context.Background(), doiRecord("10.1234/abc"))

	assert.Equal(t, "Background part. Results part.", fetch.Abstract)
	assert.Equal(t, "98765", fetch.PMID)
}

func TestPubMedNoPMID(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"esearchresult":{"idlist":[]}}`)
	}))
	defer ts.Close()

	oldSearch := pubmedESearchBase
	pubmedESearchBase = ts.URL
	defer func() { pubmedESearchBase = oldSearch }()

	p := &PubMed{HTTP: testHTTPClient()}
	fetch := p.FetchAbstract(context.Background(), doiRecord("10.1234/abc"))
	assert.Equal(t, "no PMID for DOI", fetch.Reason)
}

// --- Semantic Scholar ---

func TestSemanticScholarAbstractAndPDF(t *testing.T) {
	var gotKey string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("x-api-key")
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"abstract":"S2 abstract.","openAccessPdf":{"url":"https://s2.example/a.pdf"}}`)
	}))
	defer ts.Close()

	old := semanticAPIBase
	semanticAPIBase = ts.URL + "/"
	defer func() { semanticAPIBase = old }()

	s := &SemanticScholar{HTTP: testHTTPClient(), APIKey: "s2-key"}
	fetch := s.FetchAbstract(context.Background(), doiRecord("10.1234/abc"))

	assert.Equal(t, "s2-key", gotKey)
	assert.Equal(t, "S2 abstract.", fetch.Abstract)
	assert.Equal(t, "https://s2.example/a.pdf", fetch.OAPDFURL)
	assert.Equal(t, "https://s2.example/a.pdf", ParseS2OpenAccessPDF(fetch.Prov.Raw))
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package enrich

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Cyril-Aubry/llm-query-doc-analyser/internal/httputil"
	"github.com/Cyril-Aubry/llm-query-doc-analyser/pkg/types"
)

// stubSource is a scripted AbstractSource for pipeline tests.
type stubSource struct {
	key    string
	name   string
	fetch  AbstractFetch
	called *bool
}

func (s *stubSource) Key() string  { return s.key }
func (s *stubSource) Name() string { return s.name }
func (s *stubSource) FetchAbstract(_ context.Context, _ *types.ResearchArticle) AbstractFetch {
	if s.called != nil {
		*s.called = true
	}
	return s.fetch
}

func fastLimiters() *httputil.Limiters {
	return httputil.NewLimiters(map[string]float64{
		"one": 1000, "two": 1000, "three": 1000,
	})
}

func TestAbstractPipelineShortCircuitsOnFirstHit(t *testing.T) {
	var thirdCalled bool
	p := &AbstractPipeline{
		Sources: []AbstractSource{
			&stubSource{key: "one", name: "One", fetch: AbstractFetch{Reason: "HTTP 404", Prov: &types.ProvenanceEntry{Source: "one"}}},
			&stubSource{key: "two", name: "Two", fetch: AbstractFetch{Abstract: "Found it.", Prov: &types.ProvenanceEntry{Source: "two"}}},
			&stubSource{key: "three", name: "Three", called: &thirdCalled, fetch: AbstractFetch{Abstract: "Never used."}},
		},
		Limiters: fastLimiters(),
		Log:      zap.NewNop(),
	}

	rec := doiRecord("10.1/x")
	attempts, prov := p.Enrich(context.Background(), rec)

	assert.Equal(t, "Found it.", rec.AbstractText)
	assert.Equal(t, "two", rec.AbstractSource)
	assert.False(t, thirdCalled, "pipeline must stop after the winning source")

	require.Len(t, attempts, 2)
	assert.False(t, attempts[0].Success)
	assert.Equal(t, "HTTP 404", attempts[0].Reason)
	assert.True(t, attempts[1].Success)

	assert.Contains(t, prov, "one")
	assert.Contains(t, prov, "two")
	assert.NotContains(t, prov, "three")
}

func TestAbstractPipelineAllSourcesFail(t *testing.T) {
	p := &AbstractPipeline{
		Sources: []AbstractSource{
			&stubSource{key: "one", name: "One", fetch: AbstractFetch{Reason: "timeout"}},
			&stubSource{key: "two", name: "Two", fetch: AbstractFetch{Reason: "no abstract field in response"}},
		},
		Limiters: fastLimiters(),
		Log:      zap.NewNop(),
	}

	rec := doiRecord("10.1/none")
	attempts, _ := p.Enrich(context.Background(), rec)

	assert.Empty(t, rec.AbstractText)
	require.Len(t, attempts, 2)
	assert.Equal(t, "One", attempts[0].Source)
	assert.Equal(t, "Two", attempts[1].Source)
}

func TestAbstractPipelineCapturesPMID(t *testing.T) {
	p := &AbstractPipeline{
		Sources: []AbstractSource{
			&stubSource{key: "one", name: "One", fetch: AbstractFetch{Abstract: "A.", PMID: "424242"}},
		},
		Limiters: fastLimiters(),
		Log:      zap.NewNop(),
	}

	rec := doiRecord("10.1/pmid")
	p.Enrich(context.Background(), rec)
	assert.Equal(t, "424242", rec.PMID)
}

func TestNewAbstractPipelineSourceOrder(t *testing.T) {
	client := testHTTPClient()

	withKey := NewAbstractPipeline(client, httputil.NewLimiters(nil), "key", zap.NewNop())
	var keys []string
	for _, s := range withKey.Sources {
		keys = append(keys, s.Key())
	}
	assert.Equal(t, []string{"s2", "crossref", "openalex", "epmc", "pubmed"}, keys)

	withoutKey := NewAbstractPipeline(client, httputil.NewLimiters(nil), "", zap.NewNop())
	keys = keys[:0]
	for _, s := range withoutKey.Sources {
		keys = append(keys, s.Key())
	}
	assert.Equal(t, []string{"crossref", "openalex", "epmc", "pubmed"}, keys)
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package enrich

import (
	"context"

	"go.uber.org/zap"

	"github.com/Cyril-Aubry/llm-query-doc-analyser/internal/httputil"
	"github.com/Cyril-Aubry/llm-query-doc-analyser/pkg/types"
)

// Attempt reports one source's contribution to an abstract lookup.
type Attempt struct {
	Source  string
	Success bool
	Reason  string
}

// AbstractPipeline tries sources in a fixed order until one supplies an
// abstract. The canonical order is Semantic Scholar → Crossref → OpenAlex →
// EuropePMC → PubMed; preprints bypass this pipeline and take their
// abstract from the platform adapter.
type AbstractPipeline struct {
	Sources  []AbstractSource
	Limiters *httputil.Limiters
	Log      *zap.Logger
}

// NewAbstractPipeline assembles the canonical source chain. Semantic
// Scholar is included only when an API key is configured.
func NewAbstractPipeline(client *httputil.Client, limiters *httputil.Limiters, s2APIKey string, log *zap.Logger) *AbstractPipeline {
	var sources []AbstractSource
	if s2APIKey != "" {
		sources = append(sources, &SemanticScholar{HTTP: client, APIKey: s2APIKey})
	}
	sources = append(sources,
		&Crossref{HTTP: client},
		&OpenAlex{HTTP: client},
		&EuropePMC{HTTP: client},
		&PubMed{HTTP: client},
	)
	return &AbstractPipeline{Sources: sources, Limiters: limiters, Log: log}
}

// Enrich walks the chain for one record. Sources are queried serially so
// provenance ordering stays deterministic; the first non-empty abstract
// wins and stops the walk. Every attempted source that did not supply the
// abstract contributes a reason token.
func (p *AbstractPipeline) Enrich(ctx context.Context, rec *types.ResearchArticle) ([]Attempt, types.Provenance) {
	attempts := make([]Attempt, 0, len(p.Sources))
	prov := types.Provenance{}

	for _, source := range p.Sources {
		if err := p.Limiters.Acquire(ctx, source.Key()); err != nil {
			attempts = append(attempts, Attempt{Source: source.Name(), Reason: "cancelled"})
			return attempts, prov
		}

		fetch := source.FetchAbstract(ctx, rec)
		if fetch.Prov != nil {
			prov[source.Key()] = *fetch.Prov
		}
		if fetch.PMID != "" && rec.PMID == "" {
			rec.PMID = fetch.PMID
		}

		if fetch.Abstract != "" {
			rec.AbstractText = fetch.Abstract
			rec.AbstractSource = source.Key()
			attempts = append(attempts, Attempt{Source: source.Name(), Success: true})
			p.Log.Info("abstract_retrieved",
				zap.String("doi", rec.DOINorm),
				zap.String("source", source.Key()),
			)
			return attempts, prov
		}

		reason := fetch.Reason
		if reason == "" {
			reason = "API returned no data"
		}
		attempts = append(attempts, Attempt{Source: source.Name(), Reason: reason})
	}

	return attempts, prov
}

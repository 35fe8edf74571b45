// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package enrich

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Cyril-Aubry/llm-query-doc-analyser/internal/httputil"
	"github.com/Cyril-Aubry/llm-query-doc-analyser/internal/store"
	"github.com/Cyril-Aubry/llm-query-doc-analyser/pkg/types"
)

const (
	defaultMaxConcurrent = 8
	defaultMaxPasses     = 2
)

// Orchestrator drives per-record enrichment with bounded concurrency and a
// multi-pass loop for published versions discovered along the way. The
// database's enrichment_datetime IS NULL predicate is the only work list;
// no in-memory queue spans passes, which keeps the loop crash-safe.
type Orchestrator struct {
	Store    *store.Store
	Abstract *AbstractPipeline
	Preprint *PreprintEnricher
	OA       *OAEnricher
	Cfg      types.EnrichmentConfig
	Log      *zap.Logger
	Now      func() time.Time
}

// NewOrchestrator wires the enrichment stage from its configuration.
func NewOrchestrator(st *store.Store, cfg types.EnrichmentConfig, log *zap.Logger) *Orchestrator {
	client := httputil.NewClient(cfg.Timeout, cfg.MaxRetries, cfg.UserAgent(), log)
	limiters := httputil.NewLimiters(nil)

	return &Orchestrator{
		Store:    st,
		Abstract: NewAbstractPipeline(client, limiters, cfg.SemanticScholarAPIKey, log),
		Preprint: &PreprintEnricher{
			Providers: &PreprintProviders{HTTP: client},
			Store:     st,
			Limiters:  limiters,
			Log:       log,
		},
		OA: &OAEnricher{
			Unpaywall: &Unpaywall{HTTP: client, Email: cfg.ContactEmail},
			Limiters:  limiters,
			Log:       log,
		},
		Cfg: cfg,
		Log: log,
	}
}

// RunSummary reports the outcome of one enrichment run.
type RunSummary struct {
	Passes       int
	Enriched     int
	NewPublished int
	Failed       int
}

// Run executes up to MaxPasses enrichment passes. Each pass re-reads the
// eligible set from the database, so records created by version linking in
// pass N are enriched in pass N+1.
func (o *Orchestrator) Run(ctx context.Context) (RunSummary, error) {
	maxPasses := o.Cfg.MaxPasses
	if maxPasses <= 0 {
		maxPasses = defaultMaxPasses
	}

	var summary RunSummary

	if o.Cfg.RetryEmpty {
		n, err := o.Store.ClearEnrichmentForEmpty(ctx)
		if err != nil {
			return summary, err
		}
		if n > 0 {
			o.Log.Info("empty_enrichments_reset", zap.Int64("count", n))
		}
	}

	for pass := 1; pass <= maxPasses; pass++ {
		batch, err := o.Store.RecordsNeedingEnrichment(ctx)
		if err != nil {
			return summary, err
		}
		if len(batch) == 0 {
			break
		}

		summary.Passes = pass
		o.Log.Info("enrichment_pass_started",
			zap.Int("pass", pass),
			zap.Int("records", len(batch)),
		)

		enriched, created, failed := o.enrichBatch(ctx, batch)
		summary.Enriched += enriched
		summary.NewPublished += created
		summary.Failed += failed

		o.Log.Info("enrichment_pass_completed",
			zap.Int("pass", pass),
			zap.Int("enriched", enriched),
			zap.Int("new_published_versions", created),
			zap.Int("failed", failed),
		)

		if ctx.Err() != nil {
			return summary, ctx.Err()
		}
		if pass > 1 && created == 0 {
			break
		}
	}

	return summary, nil
}

// enrichBatch processes records with per-record concurrency capped by the
// configured limit. Returns enriched, newly created published-version and
// failed counts.
func (o *Orchestrator) enrichBatch(ctx context.Context, batch []types.ResearchArticle) (enriched, created, failed int) {
	maxConcurrent := o.Cfg.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = defaultMaxConcurrent
	}

	var (
		createdCount  atomic.Int64
		enrichedCount atomic.Int64
		failedCount   atomic.Int64
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrent)

	for i := range batch {
		rec := batch[i]
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			n, err := o.enrichRecord(gctx, &rec)
			if err != nil {
				failedCount.Add(1)
				o.Log.Error("record_enrichment_failed",
					zap.Int64("record_id", rec.ID),
					zap.String("doi", rec.DOINorm),
					zap.Error(err),
				)
				// One bad record never aborts the batch.
				return nil
			}
			createdCount.Add(int64(n))
			enrichedCount.Add(1)
			return nil
		})
	}
	g.Wait()

	return int(enrichedCount.Load()), int(createdCount.Load()), int(failedCount.Load())
}

// enrichRecord runs the enrichment steps for one record strictly in order:
// preprint → abstract → OA → provenance merge → timestamp. The timestamp is
// written last so a crash mid-record leaves it eligible for retry. Returns
// the number of newly created published-version records.
func (o *Orchestrator) enrichRecord(ctx context.Context, rec *types.ResearchArticle) (int, error) {
	if rec.Provenance == nil {
		rec.Provenance = types.Provenance{}
	}

	var (
		attempts   []Attempt
		newRecords int
	)

	// Step 1: preprint detection and platform enrichment.
	if source := DetectPreprintSource(rec); source != "" {
		rec.IsPreprint = true
		rec.PreprintSource = source
		if rec.ArxivID == "" {
			rec.ArxivID = ExtractArxivID(rec.DOINorm)
		}

		report, err := o.Preprint.Enrich(ctx, rec)
		if err != nil {
			return 0, err
		}
		if report.Prov != nil {
			rec.Provenance[source] = *report.Prov
		}
		if report.AbstractSet {
			attempts = append(attempts, Attempt{Source: source, Success: true})
		}
		if report.RecordCreated {
			newRecords++
		}
	} else {
		rec.IsPreprint = false
		rec.PreprintSource = ""
	}

	// Step 2: standard abstract sources, unless already present.
	if !rec.HasAbstract() {
		pipelineAttempts, prov := o.Abstract.Enrich(ctx, rec)
		attempts = append(attempts, pipelineAttempts...)
		rec.Provenance.Merge(prov)
	}

	// Step 3: open-access status.
	if prov := o.OA.Enrich(ctx, rec); prov != nil {
		rec.Provenance["unpaywall"] = *prov
	}

	// Step 4: compile failure reasons when no abstract was found.
	if !rec.HasAbstract() {
		var reasons []string
		for _, a := range attempts {
			if !a.Success {
				reasons = append(reasons, a.Source+": "+a.Reason)
			}
		}
		if len(reasons) == 0 {
			reasons = []string{"no enrichment sources attempted"}
		}
		rec.AbstractNoRetrievalReason = strings.Join(reasons, "; ")
		o.Log.Warn("abstract_not_retrieved",
			zap.String("doi", rec.DOINorm),
			zap.String("reasons", rec.AbstractNoRetrievalReason),
		)
	} else {
		rec.AbstractNoRetrievalReason = ""
	}

	// Step 5: mark processed and persist. The timestamp is set even for
	// records that yielded no data, to prevent retry loops.
	rec.EnrichmentDatetime = o.now()
	if err := o.Store.UpdateEnrichment(ctx, rec); err != nil {
		return newRecords, err
	}

	o.Log.Debug("enrichment_completed",
		zap.Int64("record_id", rec.ID),
		zap.String("doi", rec.DOINorm),
		zap.Bool("has_abstract", rec.HasAbstract()),
		zap.String("abstract_source", rec.AbstractSource),
		zap.Bool("is_preprint", rec.IsPreprint),
	)
	return newRecords, nil
}

func (o *Orchestrator) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now().UTC()
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package enrich

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Cyril-Aubry/llm-query-doc-analyser/internal/httputil"
	"github.com/Cyril-Aubry/llm-query-doc-analyser/internal/store"
	"github.com/Cyril-Aubry/llm-query-doc-analyser/pkg/types"
)

// PreprintEnricher queries the preprint platform adapter for a detected
// preprint, takes its abstract when the record has none, and discovers the
// published version. A discovered published DOI yields a linked record that
// is eligible for the next enrichment pass.
type PreprintEnricher struct {
	Providers *PreprintProviders
	Store     *store.Store
	Limiters  *httputil.Limiters
	Log       *zap.Logger
	Now       func() time.Time
}

// PreprintReport summarizes one preprint enrichment.
type PreprintReport struct {
	AbstractSet       bool
	PublishedDOI      string
	PublishedRecordID int64
	LinkCreated       bool
	RecordCreated     bool
	Prov              *types.ProvenanceEntry
}

// Enrich runs the platform adapter and the version-linking workflow.
func (e *PreprintEnricher) Enrich(ctx context.Context, rec *types.ResearchArticle) (PreprintReport, error) {
	var report PreprintReport
	if rec.PreprintSource == "" {
		return report, nil
	}

	if err := e.Limiters.Acquire(ctx, "preprints"); err != nil {
		return report, err
	}

	fetch := e.Providers.Fetch(ctx, rec, rec.PreprintSource)
	report.Prov = fetch.Prov

	if fetch.Abstract != "" && !rec.HasAbstract() {
		rec.AbstractText = fetch.Abstract
		rec.AbstractSource = rec.PreprintSource
		report.AbstractSet = true
	}
	if fetch.Reason != "" && fetch.Abstract == "" {
		e.Log.Debug("preprint_metadata_incomplete",
			zap.String("doi", rec.DOINorm),
			zap.String("platform", rec.PreprintSource),
			zap.String("reason", fetch.Reason),
		)
	}

	if fetch.PublishedDOI == "" {
		return report, nil
	}

	rec.PublishedDOI = types.NormalizeDOI(fetch.PublishedDOI)
	rec.PublishedJournal = fetch.PublishedJournal
	report.PublishedDOI = rec.PublishedDOI

	publishedID, linkCreated, recordCreated, err := e.linkPublishedVersion(ctx, rec, rec.PublishedDOI)
	if err != nil {
		return report, err
	}
	report.PublishedRecordID = publishedID
	report.LinkCreated = linkCreated
	report.RecordCreated = recordCreated

	e.Log.Info("preprint_published_version_found",
		zap.String("preprint_doi", rec.DOINorm),
		zap.String("published_doi", rec.PublishedDOI),
		zap.Bool("link_created", linkCreated),
		zap.Bool("record_created", recordCreated),
	)
	return report, nil
}

// linkPublishedVersion finds or creates the published record and inserts
// the article_versions relation. The whole workflow is idempotent: an
// existing link or record is left untouched, and a published record is
// created with a NULL enrichment_datetime so the next pass enriches it.
func (e *PreprintEnricher) linkPublishedVersion(ctx context.Context, preprint *types.ResearchArticle, publishedDOI string) (publishedID int64, linkCreated, recordCreated bool, err error) {
	if publishedDOI == "" {
		return 0, false, false, nil
	}
	if preprint.ID == 0 {
		return 0, false, false, fmt.Errorf("preprint record has no id")
	}

	if existing, ok, err := e.Store.PublishedVersionID(ctx, preprint.ID); err != nil {
		return 0, false, false, err
	} else if ok {
		return existing, false, false, nil
	}

	publishedID, found, err := e.Store.GetRecordIDByDOI(ctx, publishedDOI)
	if err != nil {
		return 0, false, false, err
	}

	if !found {
		// Inherit identity fields from the preprint; enrichment fills the
		// rest on the next pass.
		published := &types.ResearchArticle{
			Title:          preprint.Title,
			DOIRaw:         publishedDOI,
			DOINorm:        publishedDOI,
			PubDate:        preprint.PubDate,
			Authors:        preprint.Authors,
			ImportDatetime: e.now(),
		}
		publishedID, err = e.Store.InsertRecord(ctx, published)
		if err == store.ErrDuplicateDOI {
			// Raced with another task creating the same record.
			publishedID, _, err = e.Store.GetRecordIDByDOI(ctx, publishedDOI)
		}
		if err != nil {
			return 0, false, false, fmt.Errorf("creating published version record: %w", err)
		}
		recordCreated = true
	}

	if publishedID == preprint.ID {
		return publishedID, false, recordCreated, nil
	}

	linkCreated, err = e.Store.InsertArticleVersionLink(ctx, &types.ArticleVersionLink{
		PreprintID:      preprint.ID,
		PublishedID:     publishedID,
		DiscoverySource: preprint.PreprintSource,
		LinkDatetime:    e.now(),
	})
	if err != nil {
		return 0, false, false, err
	}
	return publishedID, linkCreated, recordCreated, nil
}

func (e *PreprintEnricher) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now().UTC()
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package enrich

import (
	"context"

	"go.uber.org/zap"

	"github.com/Cyril-Aubry/llm-query-doc-analyser/internal/httputil"
	"github.com/Cyril-Aubry/llm-query-doc-analyser/pkg/types"
)

// OAEnricher stores Unpaywall's open-access verdict on the record.
type OAEnricher struct {
	Unpaywall *Unpaywall
	Limiters  *httputil.Limiters
	Log       *zap.Logger
}

// Enrich queries Unpaywall for the record and applies OA status, license
// and PDF URL. Returns the provenance entry when a response arrived.
func (e *OAEnricher) Enrich(ctx context.Context, rec *types.ResearchArticle) *types.ProvenanceEntry {
	if err := e.Limiters.Acquire(ctx, "unpaywall"); err != nil {
		return nil
	}

	result := e.Unpaywall.FetchOA(ctx, rec)
	if result.Reason != "" && result.IsOA == nil {
		e.Log.Warn("oa_check_failed",
			zap.String("doi", rec.DOINorm),
			zap.String("reason", result.Reason),
		)
		return result.Prov
	}

	rec.IsOA = result.IsOA
	rec.OAStatus = result.OAStatus
	rec.License = result.License
	rec.OAPDFURL = result.OAPDFURL

	e.Log.Info("oa_info_retrieved",
		zap.String("doi", rec.DOINorm),
		zap.String("oa_status", rec.OAStatus),
		zap.Bool("has_pdf", rec.OAPDFURL != ""),
	)
	return result.Prov
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Cyril-Aubry/llm-query-doc-analyser/internal/store"
	"github.com/Cyril-Aubry/llm-query-doc-analyser/pkg/types"
)

// DocxLocator searches the DOCX directory for renditions of downloaded
// PDFs. The naming policy is loose on purpose: a hit is any .docx whose
// stem contains the record's DOI slug or the downloaded PDF's SHA-1 stem.
type DocxLocator struct {
	Store   *store.Store
	DocxDir string
	Log     *zap.Logger
	Now     func() time.Time
}

// Lookup searches for a DOCX matching the record and records the outcome,
// hit or miss, as a docx_versions row.
func (l *DocxLocator) Lookup(ctx context.Context, rec *types.ResearchArticle, pdfPath string) (*types.DocxVersion, error) {
	version := &types.DocxVersion{
		RecordID:    rec.ID,
		RetrievedAt: l.now(),
	}

	path := l.find(rec, pdfPath)
	if path == "" {
		version.ErrorMessage = "no matching DOCX found"
	} else {
		version.LocalPath = path
		if info, err := os.Stat(path); err == nil {
			size := info.Size()
			version.FileSizeBytes = &size
		}
	}

	if _, err := l.Store.InsertDocxVersion(ctx, version); err != nil {
		return nil, err
	}

	l.Log.Info("docx_lookup_completed",
		zap.Int64("record_id", rec.ID),
		zap.Bool("found", version.LocalPath != ""),
		zap.String("path", version.LocalPath),
	)
	return version, nil
}

func (l *DocxLocator) find(rec *types.ResearchArticle, pdfPath string) string {
	entries, err := os.ReadDir(l.DocxDir)
	if err != nil {
		return ""
	}

	var needles []string
	if rec.DOINorm != "" {
		needles = append(needles, strings.ToLower(types.DOISlug(rec.DOINorm)))
	}
	if pdfPath != "" {
		stem := strings.TrimSuffix(filepath.Base(pdfPath), filepath.Ext(pdfPath))
		needles = append(needles, strings.ToLower(stem))
	}
	if len(needles) == 0 {
		return ""
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".docx") {
			continue
		}
		stem := strings.ToLower(strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name())))
		for _, needle := range needles {
			if strings.Contains(stem, needle) {
				return filepath.Join(l.DocxDir, entry.Name())
			}
		}
	}
	return ""
}

func (l *DocxLocator) now() time.Time {
	if l.Now != nil {
		return l.Now()
	}
	return time.Now().UTC()
}

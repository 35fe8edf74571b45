// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"context"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/Cyril-Aubry/llm-query-doc-analyser/internal/store"
	"github.com/Cyril-Aubry/llm-query-doc-analyser/pkg/types"
)

// variants are produced for every DOCX, in this order.
var variants = []struct {
	name          types.MarkdownVariant
	extractImages bool
}{
	{types.VariantNoImages, false},
	{types.VariantWithImages, true},
}

// VersionConverter converts located DOCX files into both Markdown variants
// and records one markdown_versions row per variant. A converter failure
// still yields a row, with the error message set and no file size.
type VersionConverter struct {
	Store       *store.Store
	Converter   Converter
	MarkdownDir string
	Log         *zap.Logger
	Now         func() time.Time
}

// ConvertVersions runs both variants for one DOCX version. Returns the
// inserted rows.
func (v *VersionConverter) ConvertVersions(ctx context.Context, docx *types.DocxVersion) ([]types.MarkdownVersion, error) {
	out := make([]types.MarkdownVersion, 0, len(variants))

	for _, variant := range variants {
		docxID := docx.ID
		row := types.MarkdownVersion{
			RecordID:      docx.RecordID,
			SourceType:    types.SourceDocx,
			DocxVersionID: &docxID,
			Variant:       variant.name,
			CreatedAt:     v.now(),
		}

		if docx.LocalPath == "" {
			row.ErrorMessage = "no DOCX file to convert"
		} else {
			mdPath, err := v.Converter.Convert(ctx, docx.LocalPath, v.MarkdownDir, variant.extractImages)
			if err != nil {
				row.ErrorMessage = err.Error()
				v.Log.Warn("docx_conversion_failed",
					zap.Int64("record_id", docx.RecordID),
					zap.String("variant", string(variant.name)),
					zap.Error(err),
				)
			} else {
				row.LocalPath = mdPath
				if info, statErr := os.Stat(mdPath); statErr == nil {
					size := info.Size()
					row.FileSizeBytes = &size
				}
			}
		}

		if _, err := v.Store.InsertMarkdownVersion(ctx, &row); err != nil {
			return out, err
		}
		out = append(out, row)
	}

	return out, nil
}

func (v *VersionConverter) now() time.Time {
	if v.Now != nil {
		return v.Now()
	}
	return time.Now().UTC()
}

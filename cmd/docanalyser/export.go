// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/Cyril-Aubry/llm-query-doc-analyser/pkg/types"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the cleanly matched records of a filtering query",
	Long: `Export writes the records that matched a filtering query (excluding
ERROR: and WARNING: decisions) to CSV or YAML, chosen by the output file
extension.`,
	RunE: runExport,
}

func init() {
	exportCmd.Flags().Int64("query-id", 0, "filtering query ID to export (required)")
	exportCmd.Flags().StringP("out", "o", "", "output file, .csv or .yaml (required)")
	_ = exportCmd.MarkFlagRequired("query-id")
	_ = exportCmd.MarkFlagRequired("out")

	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	queryID, _ := cmd.Flags().GetInt64("query-id")
	outPath, _ := cmd.Flags().GetString("out")

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	records, err := st.MatchedRecordsByFilteringQuery(ctx, queryID)
	if err != nil {
		return err
	}

	switch filepath.Ext(outPath) {
	case ".csv":
		err = exportCSV(records, outPath)
	case ".yaml", ".yml":
		err = exportYAML(records, outPath)
	default:
		return fmt.Errorf("unsupported export format %q: use .csv or .yaml", filepath.Ext(outPath))
	}
	if err != nil {
		return err
	}

	fmt.Printf("Exported %d matched research articles to: %s\n", len(records), outPath)
	return nil
}

func exportCSV(records []types.ResearchArticle, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating export file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := []string{"Title", "DOI", "Publication Date", "Total Citations",
		"Average per Year", "Authors", "Source Title", "Abstract", "OA Status", "OA PDF URL"}
	if err := w.Write(header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for _, rec := range records {
		citations := ""
		if rec.TotalCitations != nil {
			citations = strconv.FormatInt(*rec.TotalCitations, 10)
		}
		perYear := ""
		if rec.CitationsPerYear != nil {
			perYear = strconv.FormatFloat(*rec.CitationsPerYear, 'f', -1, 64)
		}
		row := []string{rec.Title, rec.DOINorm, rec.PubDate, citations, perYear,
			rec.Authors, rec.SourceTitle, rec.AbstractText, rec.OAStatus, rec.OAPDFURL}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("writing row: %w", err)
		}
	}

	w.Flush()
	return w.Error()
}

func exportYAML(records []types.ResearchArticle, path string) error {
	data, err := yaml.Marshal(records)
	if err != nil {
		return fmt.Errorf("marshaling export: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

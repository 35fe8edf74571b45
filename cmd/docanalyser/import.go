// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Cyril-Aubry/llm-query-doc-analyser/internal/ingest"
	"github.com/Cyril-Aubry/llm-query-doc-analyser/internal/store"
)

var importCmd = &cobra.Command{
	Use:   "import [file]",
	Short: "Import article references from a CSV export",
	Long: `Import reads a tabular reference export (Title required; Publication
Date, DOI, Total Citations, Average per Year, Authors, Source Title
recognized), normalizes DOIs, detects preprints, and inserts new records.
Rows whose DOI is already present are reported as skipped.`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	loader := ingest.NewCSVLoader(logger, nil)
	records, err := loader.Load(args[0])
	if err != nil {
		return err
	}

	var imported, skipped int
	for i := range records {
		rec := &records[i]
		_, err := st.InsertRecord(ctx, rec)
		if errors.Is(err, store.ErrDuplicateDOI) {
			skipped++
			fmt.Printf("skipped (duplicate DOI): %s\n", rec.DOINorm)
			continue
		}
		if err != nil {
			return fmt.Errorf("importing %q: %w", rec.Title, err)
		}
		imported++
	}

	fmt.Printf("\nImport summary: %d imported, %d skipped (total: %d)\n",
		imported, skipped, len(records))
	return nil
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Cyril-Aubry/llm-query-doc-analyser/internal/convert"
)

var docxCmd = &cobra.Command{
	Use:   "docx",
	Short: "Locate DOCX renditions for downloaded PDFs",
	Long: `Docx searches the DOCX directory for files matching each record's DOI
slug or PDF hash and records the outcome. Without --record-id it processes
every record that has a downloaded PDF and no DOCX lookup yet.`,
	RunE: runDocx,
}

func init() {
	docxCmd.Flags().Int64("record-id", 0, "process a single record")
	docxCmd.Flags().String("docx-dir", "", "directory searched for DOCX files (default: <root>/docx)")

	rootCmd.AddCommand(docxCmd)
}

func runDocx(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	recordID, _ := cmd.Flags().GetInt64("record-id")
	docxDir, _ := cmd.Flags().GetString("docx-dir")
	if docxDir == "" {
		docxDir = paths.DocxDir()
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	locator := &convert.DocxLocator{Store: st, DocxDir: docxDir, Log: logger}

	targets := make(map[int64]string)
	if recordID != 0 {
		prior, err := st.LatestSuccessfulDownload(ctx, recordID)
		if err != nil {
			return err
		}
		pdfPath := ""
		if prior != nil {
			pdfPath = prior.LocalPath
		}
		targets[recordID] = pdfPath
	} else {
		targets, err = st.RecordsMissingDocx(ctx)
		if err != nil {
			return err
		}
	}

	if len(targets) == 0 {
		fmt.Println("No records need a DOCX lookup.")
		return nil
	}

	var found, missing int
	for id, pdfPath := range targets {
		rec, err := st.GetRecord(ctx, id)
		if err != nil {
			return err
		}
		version, err := locator.Lookup(ctx, rec, pdfPath)
		if err != nil {
			return err
		}
		if version.LocalPath != "" {
			found++
			fmt.Printf("found:   record %d -> %s\n", id, version.LocalPath)
		} else {
			missing++
			fmt.Printf("missing: record %d\n", id)
		}
	}

	fmt.Printf("\nDOCX lookup summary: %d found, %d missing (total: %d)\n",
		found, missing, len(targets))
	return nil
}

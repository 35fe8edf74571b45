// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Cyril-Aubry/llm-query-doc-analyser/internal/convert"
)

var markdownCmd = &cobra.Command{
	Use:   "markdown",
	Short: "Convert located DOCX files to Markdown",
	Long: `Markdown runs the external converter twice per DOCX (with and without
embedded images) and records one markdown version row per variant.
Converter failures are recorded with their error message; the other
variant is still attempted.`,
	RunE: runMarkdown,
}

func init() {
	markdownCmd.Flags().Int64("docx-id", 0, "convert a single docx version")
	markdownCmd.Flags().String("converter", "markitdown", "DOCX-to-Markdown converter binary")
	markdownCmd.Flags().String("out-dir", "", "output directory (default: <root>/markdown)")

	rootCmd.AddCommand(markdownCmd)
}

func runMarkdown(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	docxID, _ := cmd.Flags().GetInt64("docx-id")
	converterBin, _ := cmd.Flags().GetString("converter")
	outDir, _ := cmd.Flags().GetString("out-dir")
	if outDir == "" {
		outDir = paths.MarkdownDir()
	}

	converter, err := convert.NewBinaryConverter(converterBin)
	if err != nil {
		return err
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	vc := &convert.VersionConverter{
		Store:       st,
		Converter:   converter,
		MarkdownDir: outDir,
		Log:         logger,
	}

	pending := []int64{}
	if docxID != 0 {
		pending = append(pending, docxID)
	} else {
		versions, err := st.DocxVersionsPendingConversion(ctx)
		if err != nil {
			return err
		}
		for _, v := range versions {
			pending = append(pending, v.ID)
		}
	}

	if len(pending) == 0 {
		fmt.Println("No DOCX versions pending conversion.")
		return nil
	}

	var converted, failed int
	for _, id := range pending {
		docx, err := st.GetDocxVersion(ctx, id)
		if err != nil {
			return err
		}
		rows, err := vc.ConvertVersions(ctx, docx)
		if err != nil {
			return err
		}
		for _, row := range rows {
			if row.ErrorMessage == "" {
				converted++
				fmt.Printf("converted: record %d (%s) -> %s\n", row.RecordID, row.Variant, row.LocalPath)
			} else {
				failed++
				fmt.Printf("failed:    record %d (%s): %s\n", row.RecordID, row.Variant, row.ErrorMessage)
			}
		}
	}

	fmt.Printf("\nConversion summary: %d converted, %d failed\n", converted, failed)
	return nil
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Cyril-Aubry/llm-query-doc-analyser/internal/httputil"
	"github.com/Cyril-Aubry/llm-query-doc-analyser/internal/pdfs"
)

var pdfsCmd = &cobra.Command{
	Use:   "pdfs",
	Short: "Resolve and download open-access PDFs for matched records",
	Long: `Pdfs processes the matched records of one filtering query in two
phases: resolve ranked PDF candidates (repository and preprint sources
first, then Unpaywall, then licensed publisher links), and download them
with source-aware headers and rate limits. Every attempt is recorded.`,
	RunE: runPDFs,
}

func init() {
	pdfsCmd.Flags().Int64("query-id", 0, "filtering query ID to download PDFs for (required)")
	pdfsCmd.Flags().StringP("dest", "d", "", "destination directory (default: <root>/pdfs)")
	pdfsCmd.Flags().Int("max-concurrent", 5, "maximum concurrent record downloads")
	pdfsCmd.Flags().Duration("timeout", 30*time.Second, "HTTP request timeout")
	_ = pdfsCmd.MarkFlagRequired("query-id")

	rootCmd.AddCommand(pdfsCmd)
}

func runPDFs(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	queryID, _ := cmd.Flags().GetInt64("query-id")
	dest, _ := cmd.Flags().GetString("dest")
	maxConcurrent, _ := cmd.Flags().GetInt("max-concurrent")
	timeout, _ := cmd.Flags().GetDuration("timeout")

	if dest == "" {
		dest = paths.PDFDir()
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	client := httputil.NewClient(timeout, 0, "", logger)
	limiters := httputil.NewLimiters(nil)
	fetcher := &pdfs.Fetcher{
		Store:         st,
		Downloader:    pdfs.NewDownloader(client, limiters, dest, 0, logger),
		MaxConcurrent: maxConcurrent,
		Log:           logger,
	}

	stats, err := fetcher.Run(ctx, queryID)
	if err != nil {
		return err
	}
	if stats.Total == 0 {
		fmt.Println("No matched records found for this filtering query.")
		return nil
	}

	fmt.Println("PDF Download Results:")
	fmt.Printf("  Total records processed: %d\n", stats.Total)
	fmt.Printf("  Already resolved: %d, newly resolved: %d, no candidates: %d\n",
		stats.AlreadyResolved, stats.Resolved, stats.NoCandidates)
	fmt.Printf("  Already downloaded (skipped): %d\n", stats.AlreadyDownloaded)
	fmt.Printf("  Successfully downloaded (new): %d\n", stats.Downloaded)
	for _, status := range []string{"unavailable", "too_large", "no_candidates", "error"} {
		if n := stats.StatusCounts[status]; n > 0 {
			fmt.Printf("  %s: %d\n", status, n)
		}
	}
	fmt.Printf("\nPDFs saved to: %s\n", dest)
	return nil
}

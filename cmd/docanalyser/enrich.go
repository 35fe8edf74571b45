// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Cyril-Aubry/llm-query-doc-analyser/internal/enrich"
	"github.com/Cyril-Aubry/llm-query-doc-analyser/pkg/types"
)

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Enrich records with abstracts, OA status and version links",
	Long: `Enrich queries the scholarly APIs for every record whose enrichment
timestamp is unset: preprint platforms for detected preprints, the abstract
fallback chain (Semantic Scholar, Crossref, OpenAlex, EuropePMC, PubMed),
and Unpaywall for open-access status. Published versions discovered for
preprints become new records and are enriched by a follow-up pass.`,
	RunE: runEnrich,
}

func init() {
	enrichCmd.Flags().Int("max-concurrent", 8, "maximum records enriched concurrently")
	enrichCmd.Flags().Int("max-passes", 2, "maximum enrichment passes")
	enrichCmd.Flags().Duration("timeout", 15*time.Second, "HTTP request timeout")
	enrichCmd.Flags().Bool("retry-empty", false, "re-enrich records whose previous pass yielded no data")

	rootCmd.AddCommand(enrichCmd)
}

func runEnrich(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	maxConcurrent, _ := cmd.Flags().GetInt("max-concurrent")
	maxPasses, _ := cmd.Flags().GetInt("max-passes")
	timeout, _ := cmd.Flags().GetDuration("timeout")
	retryEmpty, _ := cmd.Flags().GetBool("retry-empty")

	email := secretValue("UNPAYWALL_EMAIL", "unpaywall-email")
	if email == "" {
		return fmt.Errorf("contact email not configured: set UNPAYWALL_EMAIL or .secrets/unpaywall-email")
	}

	cfg := types.EnrichmentConfig{
		HTTPConfig: types.HTTPConfig{
			Timeout:      timeout,
			ContactEmail: email,
		},
		MaxConcurrent:         maxConcurrent,
		MaxPasses:             maxPasses,
		SemanticScholarAPIKey: secretValue("SEMANTIC_SCHOLAR_API_KEY", "semantic-scholar-api-key"),
		RetryEmpty:            retryEmpty,
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	orchestrator := enrich.NewOrchestrator(st, cfg, logger)
	summary, err := orchestrator.Run(ctx)
	if err != nil {
		return err
	}

	if summary.Passes == 0 {
		fmt.Println("No research articles found to enrich.")
		return nil
	}

	fmt.Printf("\nEnrichment complete: %d pass(es)\n", summary.Passes)
	fmt.Printf("  Enriched records:            %d\n", summary.Enriched)
	fmt.Printf("  Published versions created:  %d\n", summary.NewPublished)
	if summary.Failed > 0 {
		fmt.Printf("  Failed records:              %d\n", summary.Failed)
	}
	return nil
}

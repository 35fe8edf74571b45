// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Cyril-Aubry/llm-query-doc-analyser/internal/filter"
	"github.com/Cyril-Aubry/llm-query-doc-analyser/pkg/types"
)

var filterCmd = &cobra.Command{
	Use:   "filter",
	Short: "Filter the corpus against a relevance query with an LLM",
	Long: `Filter asks the configured LLM to decide, per record, whether title and
abstract satisfy the inclusion query without triggering the exclusion
criteria. Every decision is stored; matched records can be exported with
the export command or fed to the pdfs stage.`,
	RunE: runFilter,
}

func init() {
	filterCmd.Flags().StringP("query", "q", "", "inclusion criteria (required)")
	filterCmd.Flags().String("exclude", "", "exclusion criteria")
	filterCmd.Flags().String("model", "", "LLM model identifier (default: LLM_MODEL env)")
	filterCmd.Flags().Int("max-concurrent", 10, "maximum concurrent LLM calls")
	_ = filterCmd.MarkFlagRequired("query")

	rootCmd.AddCommand(filterCmd)
}

func runFilter(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	query, _ := cmd.Flags().GetString("query")
	exclude, _ := cmd.Flags().GetString("exclude")
	model, _ := cmd.Flags().GetString("model")
	maxConcurrent, _ := cmd.Flags().GetInt("max-concurrent")

	if model == "" {
		model = secretValue("LLM_MODEL", "llm-model")
	}
	if model == "" {
		return fmt.Errorf("LLM model not configured: pass --model or set LLM_MODEL")
	}
	apiKey := secretValue("LLM_API_KEY", "llm-api-key")
	if apiKey == "" {
		return fmt.Errorf("LLM API key not configured: set LLM_API_KEY or .secrets/llm-api-key")
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	records, err := st.GetRecords(ctx)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println("No research articles found to filter.")
		return nil
	}

	fmt.Printf("Filtering %d research articles with query: %q\n", len(records), query)
	if exclude != "" {
		fmt.Printf("Excluding: %q\n", exclude)
	}
	fmt.Printf("Using model: %s (max concurrent: %d)\n", model, maxConcurrent)

	executor := &filter.Executor{
		Store:     st,
		Completer: filter.NewChatCompleter(apiKey, model, 0),
		Cfg: types.FilterConfig{
			Query:         query,
			Exclude:       exclude,
			Model:         model,
			MaxConcurrent: maxConcurrent,
		},
		Log: logger,
		Progress: func(completed, total int) {
			fmt.Printf("\rProgress: %d%% (%d/%d)", completed*100/total, completed, total)
		},
	}

	summary, err := executor.Run(ctx, records)
	if err != nil {
		return err
	}
	fmt.Println()

	fmt.Println("Filtering completed:")
	fmt.Printf("  Total research articles processed: %d\n", summary.Total)
	fmt.Printf("  Matched articles: %d\n", summary.Matched)
	fmt.Printf("  Failed articles (errors): %d\n", summary.Failed)
	if summary.Warnings > 0 {
		fmt.Printf("  Warning articles (missing explanation): %d\n", summary.Warnings)
	}
	fmt.Printf("  Filtering query ID: %d\n", summary.FilteringQueryID)
	return nil
}

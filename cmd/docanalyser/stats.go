// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show PDF download and version-link statistics",
	RunE:  runStats,
}

func init() {
	statsCmd.Flags().Int64("query-id", 0, "scope download stats to one filtering query")

	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	var queryID *int64
	if id, _ := cmd.Flags().GetInt64("query-id"); id != 0 {
		queryID = &id
	}

	downloadStats, err := st.PDFDownloadStats(ctx, queryID)
	if err != nil {
		return err
	}

	fmt.Println("PDF download attempts by status:")
	if len(downloadStats) == 0 {
		fmt.Println("  (none)")
	}
	statuses := make([]string, 0, len(downloadStats))
	for status := range downloadStats {
		statuses = append(statuses, status)
	}
	sort.Strings(statuses)
	for _, status := range statuses {
		fmt.Printf("  %-14s %d\n", status, downloadStats[status])
	}

	linkStats, err := st.GetVersionLinkStats(ctx)
	if err != nil {
		return err
	}

	fmt.Println("\nPreprint/published version links:")
	fmt.Printf("  links: %d, preprints linked: %d, published linked: %d\n",
		linkStats.Links, linkStats.PreprintsLinked, linkStats.PublishedLinked)
	sources := make([]string, 0, len(linkStats.DiscoverySources))
	for source := range linkStats.DiscoverySources {
		sources = append(sources, source)
	}
	sort.Strings(sources)
	for _, source := range sources {
		fmt.Printf("  discovered via %s: %d\n", source, linkStats.DiscoverySources[source])
	}
	return nil
}

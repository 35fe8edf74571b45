package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version of doc-analyser",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("doc-analyser %s\n", version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

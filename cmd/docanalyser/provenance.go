// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"
)

var provenanceCmd = &cobra.Command{
	Use:   "provenance [record-id]",
	Short: "Print the per-source provenance of one record as YAML",
	Args:  cobra.ExactArgs(1),
	RunE:  runProvenance,
}

func init() {
	rootCmd.AddCommand(provenanceCmd)
}

func runProvenance(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	recordID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid record id %q", args[0])
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	prov, err := st.GetRecordProvenance(ctx, recordID)
	if err != nil {
		return err
	}
	if len(prov) == 0 {
		fmt.Printf("No provenance recorded for record %d.\n", recordID)
		return nil
	}

	enc := yaml.NewEncoder(os.Stdout)
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(prov)
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the doc-analyser CLI: the batch
// pipeline for scholarly-literature curation. Each stage is a subcommand:
// import, enrich, filter, pdfs, docx, markdown, plus inspection commands
// (stats, provenance, export).
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/Cyril-Aubry/llm-query-doc-analyser/internal/logging"
	"github.com/Cyril-Aubry/llm-query-doc-analyser/internal/secrets"
	"github.com/Cyril-Aubry/llm-query-doc-analyser/internal/store"
	"github.com/Cyril-Aubry/llm-query-doc-analyser/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// Process-wide state resolved once in the root PersistentPreRunE. The mode
// (production vs test paths) is frozen here and never switched afterwards.
var (
	paths         types.Paths
	logger        *zap.Logger
	loadedSecrets map[string]string
)

var rootCmd = &cobra.Command{
	Use:   "doc-analyser",
	Short: "Batch pipeline for scholarly-literature curation",
	Long: `doc-analyser ingests spreadsheet exports of article references, enriches
them from public scholarly APIs (Crossref, Unpaywall, OpenAlex, EuropePMC,
PubMed, Semantic Scholar, arXiv, bioRxiv/medRxiv, Preprints.org), filters
the corpus with an LLM relevance query, downloads open-access PDFs, and
tracks DOCX/Markdown conversions. All state lives in one SQLite database so
every stage is idempotent and resumable.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		testMode, _ := cmd.Flags().GetBool("test")
		if testMode {
			paths = types.TestPaths()
		} else {
			paths = types.ProductionPaths()
		}

		verbose, _ := cmd.Flags().GetBool("verbose")
		var err error
		logger, err = logging.New(verbose)
		if err != nil {
			return fmt.Errorf("initializing logger: %w", err)
		}

		// .env entries become process env for the secret helpers below.
		_ = godotenv.Load()

		s, err := secrets.Load(".secrets/")
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			logger.Debug("secrets_loaded", zap.Strings("keys", keys))
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./doc-analyser.yaml or ~/.config/doc-analyser/config.yaml)")
	rootCmd.PersistentFlags().Bool("test", false, "use the test_data/ root instead of data/")
	rootCmd.PersistentFlags().Bool("verbose", false, "enable debug logging")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("doc-analyser")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "doc-analyser"))
		}
	}

	viper.SetEnvPrefix("DOC_ANALYSER")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// openStore opens the pipeline database under the frozen paths.
func openStore() (*store.Store, error) {
	return store.New(paths.DBPath(), logger)
}

// secretValue resolves a credential: process env first (covers .env), then
// viper, then the .secrets/ directory.
func secretValue(envKey, fileKey string) string {
	if v := os.Getenv(envKey); v != "" {
		return v
	}
	if v := viper.GetString(envKey); v != "" {
		return v
	}
	return loadedSecrets[fileKey]
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the fulltext CLI.
package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pdiddy/fulltext/internal/logging"
	"github.com/pdiddy/fulltext/internal/secrets"
	"github.com/pdiddy/fulltext/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// Set by the root command before any subcommand runs.
var (
	cfg types.Config
	log = zap.NewNop()
)

// rootCmd is the base command for the fulltext CLI.
var rootCmd = &cobra.Command{
	Use:   "fulltext",
	Short: "Turn paper references into full-text markdown",
	Long: `fulltext takes a reference (a DOI, a resolver or publisher URL, or a
direct PDF link) and produces the document's full text as markdown.

A single reference is retrieved with "get", which tries open-access
locations, a scraping cascade, and a slow institutional fallback, and
records every path it took. Batches go through "acquire", which streams
documents through acquisition, conversion, and metadata extraction.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		jsonLogs, _ := cmd.Flags().GetBool("log-json")
		verbose, _ := cmd.Flags().GetBool("verbose")
		l, err := logging.New(jsonLogs, verbose)
		if err != nil {
			return errors.Wrap(err, "building logger")
		}
		log = l

		if f := viper.ConfigFileUsed(); f != "" {
			log.Debug("using config file", zap.String("path", f))
		}

		s, err := secrets.Load(".secrets/", log)
		if err != nil {
			return err
		}
		// Secrets only fill keys that the config file, environment, and
		// flags leave unset.
		for key, value := range secrets.ConfigValues(s) {
			viper.SetDefault(key, value)
		}
		if len(s) > 0 {
			log.Debug("loaded secrets", zap.Strings("names", secrets.Names(s)))
		}

		cfg = loadConfig(viper.GetViper())
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = log.Sync()
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./fulltext.yaml or ~/.config/fulltext/fulltext.yaml)")
	rootCmd.PersistentFlags().Bool("log-json", false, "write logs as JSON")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")
}

func initConfig() {
	setDefaults(viper.GetViper())

	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("fulltext")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "fulltext"))
		}
	}

	viper.SetEnvPrefix("FULLTEXT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			// The logger does not exist yet.
			os.Stderr.WriteString("warning: reading config: " + err.Error() + "\n")
		}
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

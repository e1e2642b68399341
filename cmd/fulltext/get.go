package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/fulltext/internal/retrieve"
	"github.com/pdiddy/fulltext/pkg/types"
)

var getCmd = &cobra.Command{
	Use:   "get <reference>",
	Short: "Retrieve one reference as markdown",
	Long: `Get resolves a DOI, resolver URL, publisher URL, or PDF link and prints
the document's full text. Open-access PDFs are converted directly; other
pages are scraped, classified, and followed to a PDF or the slow fallback
service when they turn out to be an abstract or a paywall.

The audit trail of every path tried is printed to stderr, and is part of
the yaml and json output formats.`,
	Args: cobra.ExactArgs(1),
	RunE: runGet,
}

func init() {
	getCmd.Flags().String("format", "markdown", "output format: markdown, yaml, or json")
	getCmd.Flags().StringP("output", "o", "", "write to this file instead of stdout")
	getCmd.Flags().Bool("no-classify", false, "skip content classification")
	getCmd.Flags().Bool("no-fallback", false, "never use the slow fallback service")
	getCmd.Flags().String("quality", "", "conversion quality: fast, balanced, or high")
	getCmd.Flags().StringSlice("lang", nil, "OCR languages, e.g. --lang en,fr")

	rootCmd.AddCommand(getCmd)
}

// retrievalOptions applies the command's flags to the configured defaults.
func retrievalOptions(cmd *cobra.Command) (types.RetrievalOptions, error) {
	opts := cfg.RetrievalDefaults()
	if v, _ := cmd.Flags().GetBool("no-classify"); v {
		opts.EnableClassification = false
	}
	if v, _ := cmd.Flags().GetBool("no-fallback"); v {
		opts.EnableFallback = false
	}
	if q, _ := cmd.Flags().GetString("quality"); q != "" {
		if !types.Quality(q).Valid() {
			return opts, errors.Newf("unknown quality %q", q)
		}
		opts.Quality = types.Quality(q)
	}
	if langs, _ := cmd.Flags().GetStringSlice("lang"); len(langs) > 0 {
		opts.OCRLanguages = langs
	}
	return opts, nil
}

func runGet(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	if format != "markdown" && format != "yaml" && format != "json" {
		return errors.Newf("unknown format %q", format)
	}
	opts, err := retrievalOptions(cmd)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	c, err := build(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	res, err := c.orchestrator.GetURL(ctx, args[0], opts)
	if err != nil {
		var rerr *retrieve.Error
		if errors.As(err, &rerr) {
			fmt.Fprintf(os.Stderr, "trail: %s\n", strings.Join(rerr.Trail, " > "))
		}
		return err
	}
	fmt.Fprintf(os.Stderr, "trail: %s\n", strings.Join(res.Trail, " > "))

	var w io.Writer = os.Stdout
	if path, _ := cmd.Flags().GetString("output"); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return errors.Wrap(err, "creating output file")
		}
		defer f.Close()
		w = f
	}
	return writeResult(w, res, format)
}

func writeResult(w io.Writer, res *types.RetrievalResult, format string) error {
	switch format {
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(res); err != nil {
			return errors.Wrap(err, "encoding yaml")
		}
		return enc.Close()
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return errors.Wrap(enc.Encode(res), "encoding json")
	default:
		_, err := io.WriteString(w, strings.TrimRight(res.Markdown, "\n")+"\n")
		return err
	}
}

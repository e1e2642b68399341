package main

import (
	"fmt"
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pdiddy/fulltext/internal/acquire"
	"github.com/pdiddy/fulltext/internal/convert"
	"github.com/pdiddy/fulltext/pkg/types"
)

var acquireCmd = &cobra.Command{
	Use:   "acquire [references...]",
	Short: "Acquire a batch of documents as markdown",
	Long: `Acquire streams a batch of references through the acquisition
pipeline. Open-access copies are fetched right away; the rest are submitted
to the slow fallback service and picked up when their jobs finish. Each
document is converted, its metadata extracted in batches, and written to
the output directory as soon as it is ready. Documents already in the
cache are written without being fetched again.`,
	RunE: runAcquire,
}

func init() {
	acquireCmd.Flags().StringP("file", "f", "", "read references from a file (one per line, a YAML list of requests, or a CSL bibliography)")
	acquireCmd.Flags().String("out", "", "output directory (default pipeline.output_dir)")
	acquireCmd.Flags().Bool("no-classify", false, "skip content classification of scraped pages")
	acquireCmd.Flags().Bool("no-fallback", false, "never submit jobs to the slow fallback service")
	acquireCmd.Flags().String("quality", "", "conversion quality: fast, balanced, or high")
	acquireCmd.Flags().StringSlice("lang", nil, "OCR languages, e.g. --lang en,fr")

	rootCmd.AddCommand(acquireCmd)
}

func runAcquire(cmd *cobra.Command, args []string) error {
	file, _ := cmd.Flags().GetString("file")
	reqs, err := readRequests(args, file)
	if err != nil {
		return err
	}
	opts, err := retrievalOptions(cmd)
	if err != nil {
		return err
	}
	outDir, _ := cmd.Flags().GetString("out")
	if outDir == "" {
		outDir = cfg.Pipeline.OutputDir
	}
	if err := os.MkdirAll(cfg.Pipeline.WorkDir, 0o755); err != nil {
		return errors.Wrap(err, "creating work directory")
	}

	ctx := cmd.Context()
	c, err := build(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	source := acquire.NewOpenAccessSource(c.openalex, c.downloader, c.orchestrator, cfg.Pipeline.WorkDir, opts, log)
	popts := []acquire.Option{
		acquire.WithCache(c.cache, cfg.Cache.TTL),
		acquire.WithRetrievalOptions(opts),
		acquire.WithLogger(log),
		acquire.OnDocument(func(d types.Document) {
			path, err := convert.WriteMarkdown(d, outDir)
			if err != nil {
				fmt.Fprintf(os.Stdout, "failed:  %s (%v)\n", d.ID, err)
				return
			}
			fmt.Fprintf(os.Stdout, "acquired: %s -> %s\n", d.ID, path)
		}),
	}
	if c.fallback != nil && opts.EnableFallback {
		popts = append(popts, acquire.WithJobSource(acquire.NewFallbackJobs(c.fallback, cfg.Pipeline.WorkDir, opts.FallbackTimeout)))
	}
	if c.model != nil {
		popts = append(popts, acquire.WithPostProcessor(c.model))
	}

	report, err := acquire.New(source, c.converter, cfg.Pipeline, popts...).Run(ctx, reqs)
	if err != nil {
		return err
	}

	for _, f := range report.Failures {
		fmt.Fprintf(os.Stdout, "failed:  %s [%s] %s\n", f.ID, f.Stage, f.Reason)
	}
	for _, w := range report.Warnings {
		log.Warn("document written without metadata", zap.String("id", w.ID), zap.String("reason", w.Reason))
	}
	fmt.Fprintf(os.Stdout, "\nRun %s: %d acquired (%d cached), %d failed (total: %d) in %s\n",
		report.RunID, report.Succeeded(), report.CacheHits, len(report.Failures), len(reqs), report.Elapsed.Round(time.Millisecond))

	if len(report.Failures) > 0 {
		return errors.Newf("%d document(s) failed acquisition", len(report.Failures))
	}
	return nil
}

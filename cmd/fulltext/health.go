package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/fulltext/internal/container"
	"github.com/pdiddy/fulltext/internal/convert"
	"github.com/pdiddy/fulltext/internal/failure"
	"github.com/pdiddy/fulltext/internal/fallback"
	"github.com/pdiddy/fulltext/internal/scrape"
	"github.com/pdiddy/fulltext/pkg/types"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check the services fulltext depends on",
	Long: `Health checks the conversion backend, the slow fallback service, the
scraping cascade configuration, the cache, and the model credentials in
parallel and prints one line per component. Components that are not
configured are reported as skipped.`,
	Args: cobra.NoArgs,
	RunE: runHealth,
}

func init() {
	healthCmd.Flags().Duration("timeout", 15*time.Second, "timeout for each check")
	rootCmd.AddCommand(healthCmd)
}

type check struct {
	name string
	run  func(ctx context.Context) (string, error)
}

// errSkipped marks a component that is not configured.
var errSkipped = errors.New("not configured")

func runHealth(cmd *cobra.Command, args []string) error {
	timeout, _ := cmd.Flags().GetDuration("timeout")
	checks := []check{
		{"conversion", checkConversion},
		{"fallback", checkFallback},
		{"scraper", checkScraper},
		{"cache", checkCache},
		{"ai", checkAI},
	}

	details := make([]string, len(checks))
	errs := make([]error, len(checks))
	g, ctx := errgroup.WithContext(cmd.Context())
	for i, c := range checks {
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			details[i], errs[i] = c.run(cctx)
			// A failed check must not cancel its siblings.
			return nil
		})
	}
	_ = g.Wait()

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	failed := 0
	for i, c := range checks {
		switch {
		case errors.Is(errs[i], errSkipped):
			fmt.Fprintf(tw, "skip\t%s\t%s\n", c.name, details[i])
		case errs[i] != nil:
			failed++
			fmt.Fprintf(tw, "FAIL\t%s\t%s (%s)\n", c.name, errs[i], failure.KindOf(errs[i]))
		default:
			fmt.Fprintf(tw, "ok\t%s\t%s\n", c.name, details[i])
		}
	}
	tw.Flush()

	if failed > 0 {
		return errors.Newf("%d component(s) unhealthy", failed)
	}
	return nil
}

func checkConversion(ctx context.Context) (string, error) {
	if cfg.Conversion.Backend == types.BackendMarkitdown {
		rt, err := container.DetectRuntime(ctx)
		if err != nil {
			return "", err
		}
		return "markitdown via " + rt.Name(), nil
	}
	svc, err := convert.NewService(cfg.Conversion, log)
	if err != nil {
		return "", err
	}
	h, err := svc.Health(ctx)
	if err != nil {
		return "", err
	}
	if !h.Available {
		return "", failure.Newf(failure.Unavailable, "conversion service at %s is not answering", cfg.Conversion.URL)
	}
	return fmt.Sprintf("%s, queue depth %d", cfg.Conversion.URL, h.QueueDepth), nil
}

func checkFallback(ctx context.Context) (string, error) {
	if cfg.Fallback.URL == "" {
		return "fallback.url is not set", errSkipped
	}
	c, err := fallback.New(cfg.Fallback, log)
	if err != nil {
		return "", err
	}
	if err := c.Health(ctx); err != nil {
		return "", err
	}
	return cfg.Fallback.URL, nil
}

func checkScraper(context.Context) (string, error) {
	s, err := scrape.New(cfg.Scraper)
	if err != nil {
		return "", err
	}
	defer s.Close()
	return "stages: " + strings.Join(s.Stages(), ", "), nil
}

func checkCache(context.Context) (string, error) {
	_, closeStore, err := openCache(cfg.Cache)
	if err != nil {
		return "", err
	}
	if err := closeStore(); err != nil {
		return "", err
	}
	if cfg.Cache.Path == "" {
		return "in memory", nil
	}
	return cfg.Cache.Path, nil
}

func checkAI(context.Context) (string, error) {
	if cfg.AI.APIKey == "" {
		return "ai.api_key is not set: heuristic classification only", errSkipped
	}
	return "model " + cfg.AI.Model, nil
}

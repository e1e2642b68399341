package main

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/pdiddy/fulltext/internal/convert"
	"github.com/pdiddy/fulltext/pkg/types"
)

var convertCmd = &cobra.Command{
	Use:   "convert [pdfs or directories...]",
	Short: "Convert local PDF files to Markdown",
	Long: `Convert turns local PDF files into Markdown with YAML frontmatter. Large
PDFs are split into page ranges, converted one range at a time, and
reassembled. Directories are expanded to the PDFs they contain. Files whose
markdown already exists in the output directory are skipped.

The backend is the document-conversion service or markitdown in a
container (docker or podman), selected by conversion.backend.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runConvert,
}

func init() {
	convertCmd.Flags().String("out", "", "output directory (default pipeline.output_dir)")
	convertCmd.Flags().String("backend", "", "conversion backend: service or markitdown")
	convertCmd.Flags().String("quality", "", "conversion quality: fast, balanced, or high")
	convertCmd.Flags().StringSlice("lang", nil, "OCR languages, e.g. --lang en,fr")

	rootCmd.AddCommand(convertCmd)
}

func runConvert(cmd *cobra.Command, args []string) error {
	paths, err := expandPDFs(args)
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
	if b, _ := cmd.Flags().GetString("backend"); b != "" {
		cfg.Conversion.Backend = types.ConversionBackend(b)
	}

	store, closeStore, err := openCache(cfg.Cache)
	if err != nil {
		return err
	}
	defer closeStore()

	ctx := cmd.Context()
	conv, err := buildConverter(ctx, store)
	if err != nil {
		return err
	}

	result := convert.ConvertFiles(ctx, conv, paths, outDir, convert.OptionsFrom(opts), os.Stdout)
	if result.HasFailures() {
		return errors.Newf("%d file(s) failed conversion", result.Failed)
	}
	return nil
}

// expandPDFs replaces directories in args with the PDFs inside them.
func expandPDFs(args []string) ([]string, error) {
	var paths []string
	for _, a := range args {
		info, err := os.Stat(a)
		if err != nil {
			return nil, errors.Wrapf(err, "reading %s", a)
		}
		if !info.IsDir() {
			paths = append(paths, a)
			continue
		}
		matches, err := filepath.Glob(filepath.Join(a, "*.pdf"))
		if err != nil {
			return nil, errors.Wrapf(err, "listing %s", a)
		}
		sort.Strings(matches)
		paths = append(paths, matches...)
	}
	if len(paths) == 0 {
		return nil, errors.New("no PDF files found")
	}
	return paths, nil
}

package main

import (
	"fmt"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/pdiddy/fulltext/internal/acquire"
	"github.com/pdiddy/fulltext/internal/cache"
	"github.com/pdiddy/fulltext/internal/reference"
)

var detectCmd = &cobra.Command{
	Use:   "detect <reference>",
	Short: "Show the DOI and open-access location of a reference",
	Long: `Detect finds the DOI in a bare DOI, a resolver URL, or a publisher URL
and prints it with its resolver URL. With --resolve it also asks OpenAlex
for the best open-access location. With --content the argument is a file
whose text is searched for a DOI instead.`,
	Args: cobra.ExactArgs(1),
	RunE: runDetect,
}

func init() {
	detectCmd.Flags().Bool("resolve", false, "look up the open-access location in OpenAlex")
	detectCmd.Flags().Bool("content", false, "treat the argument as a file of page text")

	rootCmd.AddCommand(detectCmd)
}

func runDetect(cmd *cobra.Command, args []string) error {
	input := args[0]
	var doi string

	if fromFile, _ := cmd.Flags().GetBool("content"); fromFile {
		data, err := os.ReadFile(input)
		if err != nil {
			return errors.Wrap(err, "reading content file")
		}
		d, ok := reference.FromContent(string(data))
		if !ok {
			return errors.New("no DOI found in content")
		}
		doi = d
		fmt.Printf("doi:        %s\nurl:        %s\nprovenance: content\n", doi, reference.ResolverURL(doi))
	} else {
		idType, norm := acquire.Classify(input)
		fmt.Printf("type:       %s\n", idType)
		info, ok := reference.Detect(input)
		if !ok {
			if idType == acquire.TypeArxiv {
				fmt.Printf("pdf:        %s\n", acquire.PDFURL(idType, norm))
				return nil
			}
			return errors.Newf("no DOI found in %q", input)
		}
		doi = info.DOI
		fmt.Printf("doi:        %s\nurl:        %s\nprovenance: %s\n", info.DOI, info.URL, info.Provenance)
	}

	if resolve, _ := cmd.Flags().GetBool("resolve"); !resolve {
		return nil
	}
	oa := reference.NewOpenAlex(cfg.OpenAlex, cache.NewMemory(), cfg.Cache.TTL, log)
	link, isPDF, err := oa.Resolve(cmd.Context(), doi)
	if err != nil {
		return errors.Wrap(err, "resolving open-access location")
	}
	fmt.Printf("oa_url:     %s\noa_pdf:     %t\n", link, isPDF)
	return nil
}

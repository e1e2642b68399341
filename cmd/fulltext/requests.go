package main

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/fulltext/internal/acquire"
	"github.com/pdiddy/fulltext/pkg/types"
)

// readRequests builds acquisition requests from command arguments and an
// optional file. A .json, .csl.yaml or .csl.yml file is a CSL bibliography;
// a .yaml or .yml file holds a list of requests; any other file holds one
// reference per line, with blank lines and # comments
// ignored. Missing IDs are derived from the reference and made unique.
func readRequests(args []string, file string) ([]types.AcquisitionRequest, error) {
	var reqs []types.AcquisitionRequest
	for _, a := range args {
		reqs = append(reqs, types.AcquisitionRequest{Reference: a})
	}

	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, errors.Wrap(err, "reading request file")
		}
		lower := strings.ToLower(file)
		switch {
		case isBibliography(lower):
			list, err := acquire.ReadCSL(bytes.NewReader(data))
			if err != nil {
				return nil, errors.Wrapf(err, "reading %s", file)
			}
			reqs = append(reqs, list...)
		case filepath.Ext(lower) == ".yaml" || filepath.Ext(lower) == ".yml":
			var list []types.AcquisitionRequest
			if err := yaml.Unmarshal(data, &list); err != nil {
				return nil, errors.Wrapf(err, "parsing %s", file)
			}
			reqs = append(reqs, list...)
		default:
			sc := bufio.NewScanner(bytes.NewReader(data))
			for sc.Scan() {
				line := strings.TrimSpace(sc.Text())
				if line == "" || strings.HasPrefix(line, "#") {
					continue
				}
				reqs = append(reqs, types.AcquisitionRequest{Reference: line})
			}
			if err := sc.Err(); err != nil {
				return nil, errors.Wrapf(err, "reading %s", file)
			}
		}
	}

	if len(reqs) == 0 {
		return nil, errors.New("provide one or more references (DOIs, URLs, or arXiv IDs) or --file")
	}

	seen := make(map[string]int, len(reqs))
	for i := range reqs {
		if reqs[i].Reference == "" {
			return nil, errors.Newf("request %d has no reference", i+1)
		}
		id := reqs[i].ID
		if id == "" {
			id = acquire.RequestID(reqs[i].Reference)
		}
		seen[id]++
		if n := seen[id]; n > 1 {
			id = fmt.Sprintf("%s-%d", id, n)
		}
		reqs[i].ID = id
	}
	return reqs, nil
}

func isBibliography(name string) bool {
	return filepath.Ext(name) == ".json" ||
		strings.HasSuffix(name, ".csl.yaml") || strings.HasSuffix(name, ".csl.yml")
}

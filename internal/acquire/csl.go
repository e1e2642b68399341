// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package acquire

import (
	"fmt"
	"io"
	"strings"

	"github.com/cockroachdb/errors"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/fulltext/pkg/types"
)

// CSLItem is a bibliographic entry in CSL (Citation Style Language) form,
// as exported by Pandoc and reference managers. CSL-JSON parses as YAML,
// so one decoder reads both.
type CSLItem struct {
	ID     string    `yaml:"id"`
	Type   string    `yaml:"type"`
	Title  string    `yaml:"title"`
	Author []CSLName `yaml:"author,omitempty"`
	DOI    string    `yaml:"DOI,omitempty"`
	URL    string    `yaml:"URL,omitempty"`
}

// CSLName is a person's name in CSL form.
type CSLName struct {
	Family  string `yaml:"family,omitempty"`
	Given   string `yaml:"given,omitempty"`
	Literal string `yaml:"literal,omitempty"`
}

// String joins the name parts, given name first.
func (n CSLName) String() string {
	if n.Literal != "" {
		return n.Literal
	}
	return strings.TrimSpace(n.Given + " " + n.Family)
}

// ReadCSL reads a CSL-YAML or CSL-JSON bibliography and returns one
// request per entry. The DOI is preferred over the URL as the reference;
// entries with neither are an error naming the entry.
func ReadCSL(r io.Reader) ([]types.AcquisitionRequest, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "reading bibliography")
	}
	var items []CSLItem
	if err := yaml.Unmarshal(data, &items); err != nil {
		return nil, errors.Wrap(err, "parsing bibliography")
	}

	reqs := make([]types.AcquisitionRequest, 0, len(items))
	for i, it := range items {
		ref := strings.TrimSpace(it.DOI)
		if ref == "" {
			ref = strings.TrimSpace(it.URL)
		}
		if ref == "" {
			name := it.ID
			if name == "" {
				name = fmt.Sprintf("entry %d", i+1)
			}
			return nil, errors.Newf("bibliography %s has neither DOI nor URL", name)
		}
		req := types.AcquisitionRequest{ID: it.ID, Reference: ref, Title: strings.TrimSpace(it.Title)}
		for _, a := range it.Author {
			if s := a.String(); s != "" {
				req.Authors = append(req.Authors, s)
			}
		}
		reqs = append(reqs, req)
	}
	return reqs, nil
}

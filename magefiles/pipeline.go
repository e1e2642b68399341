//go:build mage

package main

import (
	"os"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Pipeline groups targets that drive the built CLI against live services.
type Pipeline mg.Namespace

// Health checks the conversion, fallback, and scraping services.
func (Pipeline) Health() error {
	mg.Deps(Build)
	return sh.RunV("bin/fulltext", "health")
}

// Get retrieves one reference, given in $REF, and prints its audit trail
// and markdown.
func (Pipeline) Get() error {
	mg.Deps(Build)
	ref := os.Getenv("REF")
	if ref == "" {
		ref = "10.1038/nature12373"
	}
	return sh.RunV("bin/fulltext", "get", "--format", "yaml", ref)
}

// Acquire runs the streaming pipeline over the reference list in
// $REFS (default references.txt) and writes documents/.
func (Pipeline) Acquire() error {
	mg.Deps(Build, Init)
	refs := os.Getenv("REFS")
	if refs == "" {
		refs = "references.txt"
	}
	return sh.RunV("bin/fulltext", "acquire", "--file", refs, "--out", "documents")
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads API keys and credentials from a directory of plain-text files.
// Each file in the directory represents one secret: the filename is the key name and the
// file contents (trimmed) are the value.
//
// Supported key files: openai-api-key, firecrawl-api-key, openalex-email, fallback-token.
package secrets

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/pdiddy/fulltext/internal/logging"
)

// configKeys maps secret file names to the configuration keys they supply.
var configKeys = map[string]string{
	"openai-api-key":    "ai.api_key",
	"firecrawl-api-key": "scraper.api_key",
	"openalex-email":    "openalex.email",
	"fallback-token":    "fallback.token",
}

// Load reads all files in dir and returns a map of filename to trimmed contents.
// A missing directory or missing files are not errors; Load returns an empty map.
// Unreadable files are logged and skipped.
func Load(dir string, log *zap.Logger) (map[string]string, error) {
	log = logging.OrNop(log)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, errors.Wrapf(err, "reading secrets directory %s", dir)
	}

	secrets := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			log.Warn("could not read secret", zap.String("name", name), zap.Error(err))
			continue
		}

		value := strings.TrimSpace(string(data))
		if value != "" {
			secrets[name] = value
		}
	}

	return secrets, nil
}

// ConfigValues returns the configuration values supplied by s, keyed by
// configuration key. Unknown secret files are ignored.
func ConfigValues(s map[string]string) map[string]string {
	out := make(map[string]string)
	for name, value := range s {
		if key, ok := configKeys[name]; ok {
			out[key] = value
		}
	}
	return out
}

// Names returns the sorted secret names, for logging without values.
func Names(s map[string]string) []string {
	names := make([]string, 0, len(s))
	for k := range s {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

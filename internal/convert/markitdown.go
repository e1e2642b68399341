// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"bytes"
	"context"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/pdiddy/fulltext/internal/container"
	"github.com/pdiddy/fulltext/internal/failure"
)

const imageMarkitdown = "markitdown:latest"

// MarkitdownConverter pipes PDFs through the markitdown container image.
// It ignores quality and language settings.
type MarkitdownConverter struct {
	runtime container.Runtime
}

// NewMarkitdownConverter verifies that the markitdown image exists in rt.
func NewMarkitdownConverter(ctx context.Context, rt container.Runtime) (*MarkitdownConverter, error) {
	if err := rt.ImageExists(ctx, imageMarkitdown); err != nil {
		return nil, errors.Wrapf(err, "markitdown image not available in %s", rt.Name())
	}
	return &MarkitdownConverter{runtime: rt}, nil
}

// ConvertBytes runs the container with data on stdin.
func (m *MarkitdownConverter) ConvertBytes(ctx context.Context, data []byte, opts Options) (string, error) {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}
	var out bytes.Buffer
	if err := m.runtime.Run(ctx, imageMarkitdown, bytes.NewReader(data), &out); err != nil {
		return "", errors.Wrap(err, "converting with markitdown")
	}
	if strings.TrimSpace(out.String()) == "" {
		return "", failure.Newf(failure.ContentInvalid, "markitdown produced empty output")
	}
	return out.String(), nil
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package scrape

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"go.uber.org/zap"

	"github.com/pdiddy/fulltext/internal/failure"
	"github.com/pdiddy/fulltext/internal/logging"
)

// RodNavigator drives Chrome through go-rod with stealth patches. Chrome is
// launched (or connected to) on first use.
type RodNavigator struct {
	remoteURL string
	log       *zap.Logger

	mu      sync.Mutex
	browser *rod.Browser
	lnch    *launcher.Launcher
}

// NewRodNavigator returns a navigator. An empty remoteURL launches a local
// headless Chrome.
func NewRodNavigator(remoteURL string, log *zap.Logger) *RodNavigator {
	return &RodNavigator{remoteURL: remoteURL, log: logging.OrNop(log)}
}

func (r *RodNavigator) ensure() (*rod.Browser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.browser != nil {
		return r.browser, nil
	}

	wsURL := r.remoteURL
	if wsURL == "" {
		l := launcher.New().
			Headless(true).
			Set("disable-blink-features", "AutomationControlled")
		u, err := l.Launch()
		if err != nil {
			return nil, failure.Mark(errors.Wrap(err, "launching chrome"), failure.Unavailable)
		}
		wsURL = u
		r.lnch = l
		r.log.Info("launched local chrome", zap.String("url", wsURL))
	}

	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		return nil, failure.Mark(errors.Wrap(err, "connecting to chrome"), failure.Unavailable)
	}
	r.browser = b
	return b, nil
}

// Navigate opens pageURL in a fresh stealth tab. When the navigation turns
// into a file download the bytes are captured instead of the page HTML.
func (r *RodNavigator) Navigate(ctx context.Context, pageURL string, timeout time.Duration) (Navigation, error) {
	b, err := r.ensure()
	if err != nil {
		return nil, err
	}

	navCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	page, err := stealth.Page(b)
	if err != nil {
		return nil, errors.Wrap(err, "creating tab")
	}
	defer page.Close()

	dir, err := os.MkdirTemp("", "fulltext-download-*")
	if err != nil {
		return nil, errors.Wrap(err, "creating download dir")
	}
	defer os.RemoveAll(dir)

	wait := b.Context(navCtx).WaitDownload(dir)
	downloaded := make(chan *proto.PageDownloadWillBegin, 1)
	go func() { downloaded <- wait() }()

	navErr := page.Context(navCtx).Navigate(pageURL)
	if navErr != nil && strings.Contains(navErr.Error(), "net::ERR_ABORTED") {
		select {
		case info := <-downloaded:
			if info == nil {
				return nil, failure.Newf(failure.Transient, "download from %s did not complete", pageURL)
			}
			data, err := os.ReadFile(filepath.Join(dir, info.GUID))
			if err != nil {
				return nil, errors.Wrap(err, "reading captured download")
			}
			r.log.Debug("navigation captured download",
				zap.String("url", pageURL),
				zap.Int("bytes", len(data)),
			)
			return DownloadCaptured{URL: pageURL, Data: data}, nil
		case <-navCtx.Done():
			return nil, failure.Mark(errors.Wrapf(navCtx.Err(), "waiting for download from %s", pageURL), failure.Transient)
		}
	}
	if navErr != nil {
		if navCtx.Err() != nil {
			return nil, failure.Mark(errors.Wrapf(navErr, "navigating to %s", pageURL), failure.Transient)
		}
		return nil, errors.Wrapf(navErr, "navigating to %s", pageURL)
	}

	if err := page.Context(navCtx).WaitLoad(); err != nil {
		r.log.Warn("wait load timeout", zap.String("url", pageURL), zap.Error(err))
	}
	html, err := page.Context(navCtx).HTML()
	if err != nil {
		return nil, errors.Wrap(err, "reading page HTML")
	}
	return NavigatedPage{URL: pageURL, HTML: html}, nil
}

// Close shuts down Chrome if this navigator launched it.
func (r *RodNavigator) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var err error
	if r.browser != nil {
		err = r.browser.Close()
		r.browser = nil
	}
	if r.lnch != nil {
		r.lnch.Cleanup()
		r.lnch = nil
	}
	return err
}

package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/xkilldash9x/pagepilot/internal/browser/cdpdriver"
	"github.com/xkilldash9x/pagepilot/internal/browser/dom"
	"github.com/xkilldash9x/pagepilot/internal/browser/memdom"
	"github.com/xkilldash9x/pagepilot/internal/config"
)

// driverFactory opens a page for a target. http(s) targets run in Chrome,
// launched on first use and shared by every page of the command; anything
// else loads into the in-memory page.
type driverFactory struct {
	cfg    config.BrowserConfig
	logger *zap.Logger

	mu      sync.Mutex
	browser *cdpdriver.Browser
	pages   []*cdpdriver.Page
}

func newDriverFactory(cfg config.BrowserConfig, logger *zap.Logger) *driverFactory {
	return &driverFactory{cfg: cfg, logger: logger}
}

func isRemote(target string) bool {
	lower := strings.ToLower(target)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// Open returns a driver showing target.
func (f *driverFactory) Open(ctx context.Context, target string) (dom.Driver, error) {
	if !isRemote(target) {
		page := memdom.New(f.logger, memdom.WithViewport(float64(f.cfg.ViewportWidth), float64(f.cfg.ViewportHeight)))
		if err := page.Navigate(ctx, target); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", target, err)
		}
		return page, nil
	}

	page, err := f.chromePage(ctx)
	if err != nil {
		return nil, err
	}
	if err := page.Navigate(ctx, target); err != nil {
		return nil, err
	}
	return page, nil
}

func (f *driverFactory) chromePage(ctx context.Context) (*cdpdriver.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.browser == nil {
		b, err := cdpdriver.Launch(ctx, f.cfg, f.logger)
		if err != nil {
			return nil, err
		}
		f.browser = b
	}
	page, err := f.browser.NewPage(ctx)
	if err != nil {
		return nil, err
	}
	f.pages = append(f.pages, page)
	return page, nil
}

// Close shuts Chrome down if it was started.
func (f *driverFactory) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var errs []error
	for _, p := range f.pages {
		errs = append(errs, p.Close())
	}
	f.pages = nil
	if f.browser != nil {
		errs = append(errs, f.browser.Close())
		f.browser = nil
	}
	return errors.Join(errs...)
}

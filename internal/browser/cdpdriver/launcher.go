// Package cdpdriver implements dom.Driver on a Chrome tab through the
// DevTools protocol.
package cdpdriver

import (
	"context"
	"fmt"
	"runtime"
	"strings"

	"github.com/chromedp/cdproto/page"
	cdpruntime "github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pagepilot/internal/config"
)

// Browser is a running Chrome process.
type Browser struct {
	cfg         config.BrowserConfig
	logger      *zap.Logger
	allocCtx    context.Context
	allocCancel context.CancelFunc
	ctx         context.Context
	cancel      context.CancelFunc
}

// AllocatorOptions assembles the launch flags for cfg.
func AllocatorOptions(cfg config.BrowserConfig) []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", cfg.DisableGPU),
		chromedp.Flag("disable-extensions", true),
	)
	if cfg.ViewportWidth > 0 && cfg.ViewportHeight > 0 {
		opts = append(opts, chromedp.WindowSize(cfg.ViewportWidth, cfg.ViewportHeight))
	}
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}

	for _, arg := range cfg.Args {
		name, value := splitArg(arg)
		if name == "" {
			continue
		}
		opts = append(opts, chromedp.Flag(name, value))
	}

	// Containers need these.
	if runtime.GOOS == "linux" {
		opts = append(opts,
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.Flag("disable-setuid-sandbox", true),
		)
	}
	return opts
}

// splitArg turns "--name=value" into a flag name and value. A bare flag is
// a boolean switch.
func splitArg(arg string) (string, any) {
	arg = strings.TrimSpace(arg)
	name, value, found := strings.Cut(arg, "=")
	name = strings.TrimLeft(name, "-")
	if !found {
		return name, true
	}
	return name, value
}

// Launch starts Chrome and waits until it answers.
func Launch(ctx context.Context, cfg config.BrowserConfig, logger *zap.Logger) (*Browser, error) {
	logger = logger.Named("cdp")
	logger.Info("Launching browser.", zap.Bool("headless", cfg.Headless))

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, AllocatorOptions(cfg)...)
	sugar := logger.Sugar()
	bctx, cancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(sugar.Debugf),
		chromedp.WithErrorf(sugar.Errorf),
	)

	// The first Run starts the process.
	if err := chromedp.Run(bctx); err != nil {
		cancel()
		allocCancel()
		return nil, fmt.Errorf("cdpdriver: browser failed to start: %w", err)
	}

	return &Browser{
		cfg:         cfg,
		logger:      logger,
		allocCtx:    allocCtx,
		allocCancel: allocCancel,
		ctx:         bctx,
		cancel:      cancel,
	}, nil
}

// NewPage opens a tab with the mutation observer installed.
func (b *Browser) NewPage(ctx context.Context) (*Page, error) {
	tabCtx, tabCancel := chromedp.NewContext(b.ctx)
	p := newPage(tabCtx, tabCancel, b.cfg.NavigationTimeout, b.logger)

	chromedp.ListenTarget(tabCtx, func(ev any) {
		if e, ok := ev.(*cdpruntime.EventBindingCalled); ok && e.Name == mutationBinding {
			p.notify()
		}
	})

	err := p.run(ctx,
		chromedp.EmulateViewport(int64(b.cfg.ViewportWidth), int64(b.cfg.ViewportHeight)),
		chromedp.ActionFunc(func(ctx context.Context) error {
			if err := cdpruntime.AddBinding(mutationBinding).Do(ctx); err != nil {
				return fmt.Errorf("add binding: %w", err)
			}
			if _, err := page.AddScriptToEvaluateOnNewDocument(observerScript).Do(ctx); err != nil {
				return fmt.Errorf("install observer: %w", err)
			}
			_, exc, err := cdpruntime.Evaluate(observerScript).Do(ctx)
			if err != nil {
				return err
			}
			if exc != nil {
				return exc
			}
			return nil
		}),
	)
	if err != nil {
		tabCancel()
		return nil, fmt.Errorf("cdpdriver: open page: %w", err)
	}
	return p, nil
}

// Close terminates the browser process.
func (b *Browser) Close() error {
	err := chromedp.Cancel(b.ctx)
	b.cancel()
	b.allocCancel()
	<-b.allocCtx.Done()
	return err
}

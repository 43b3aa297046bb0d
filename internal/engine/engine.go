// Package engine is the entry point for callers: it indexes a page and
// executes action batches against it, keeping the inventory of the latest
// extraction pass so later actions can target elements by index.
package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pagepilot/api/schemas"
	"github.com/xkilldash9x/pagepilot/internal/browser/dom"
	"github.com/xkilldash9x/pagepilot/internal/config"
	"github.com/xkilldash9x/pagepilot/internal/indexer"
	"github.com/xkilldash9x/pagepilot/internal/overlay"
	"github.com/xkilldash9x/pagepilot/internal/performer"
	"github.com/xkilldash9x/pagepilot/internal/resolver"
	"github.com/xkilldash9x/pagepilot/internal/runner"
)

// Engine drives one page. Extraction passes and action batches are
// serialized: a second call waits for the first to finish.
type Engine struct {
	driver  dom.Driver
	cfg     config.EngineConfig
	session *Session
	overlay *overlay.Overlay
	indexer *indexer.Indexer
	runner  *runner.Runner
	logger  *zap.Logger

	mu sync.Mutex
}

// New wires an Engine over driver.
func New(driver dom.Driver, cfg config.EngineConfig, logger *zap.Logger) *Engine {
	session := NewSession()
	logger = logger.Named("engine").With(zap.String("session_id", session.ID()))

	ov := overlay.New(driver, cfg.OverlayTTL, logger)

	// Acted-upon elements are only highlighted in debug mode.
	var actHighlighter performer.Highlighter
	if cfg.DebugHighlight {
		actHighlighter = ov
	}

	res := resolver.New(driver, session, resolver.Options{
		Timeout:          cfg.WaitTimeout,
		PollInterval:     cfg.WaitPollInterval,
		MutationRate:     cfg.MutationRate,
		ScrollBeforeWait: cfg.ScrollBeforeWait,
		FrameSearchDepth: cfg.FrameSearchDepth,
	}, logger)

	perf := performer.New(driver, performer.Options{
		DispatchChange: cfg.DispatchChange,
		GranularClick:  cfg.GranularClick,
		DefaultKey:     cfg.DefaultKey,
		ScrollOffset:   cfg.ScrollOffset,
		WaitDefault:    cfg.WaitDefault,
	}, actHighlighter, logger)

	return &Engine{
		driver:  driver,
		cfg:     cfg,
		session: session,
		overlay: ov,
		indexer: indexer.New(logger, ov),
		runner:  runner.New(res, perf, logger, runner.WithNavigateHook(session.Invalidate)),
		logger:  logger,
	}
}

// Session exposes the inventory store.
func (e *Engine) Session() *Session { return e.session }

// Navigate loads url and drops the inventory of the previous document.
func (e *Engine) Navigate(ctx context.Context, url string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.driver.Navigate(ctx, url); err != nil {
		return fmt.Errorf("engine: navigate: %w", err)
	}
	e.session.Invalidate()
	return nil
}

// ExtractPageElements runs one extraction pass over the current document and
// makes its records the session inventory.
func (e *Engine) ExtractPageElements(ctx context.Context, req schemas.ExtractRequest) (schemas.ExtractResult, error) {
	opts, err := indexer.OptionsFromRequest(req)
	if err != nil {
		return schemas.ExtractResult{}, err
	}
	if opts.MaxDepth == 0 {
		opts.MaxDepth = e.cfg.MaxDepth
	}
	opts.TextLimit = e.cfg.TextLimit
	opts.DebugHighlight = opts.DebugHighlight || e.cfg.DebugHighlight

	e.mu.Lock()
	defer e.mu.Unlock()

	doc, err := e.driver.Snapshot(ctx)
	if err != nil {
		return schemas.ExtractResult{}, fmt.Errorf("engine: snapshot: %w", err)
	}
	res, err := e.indexer.Extract(ctx, doc, opts)
	if err != nil {
		return schemas.ExtractResult{}, err
	}
	e.session.Replace(doc.URL, res.Records)

	elements := res.Records
	if elements == nil {
		elements = []schemas.ElementRecord{}
	}
	return schemas.ExtractResult{
		SessionID:     e.session.ID(),
		URL:           doc.URL,
		Elements:      elements,
		SkippedFrames: res.Skipped,
	}, nil
}

// ExecuteActions runs a batch in order, decoding each descriptor as it is
// reached. Descriptors without an
// id get a generated one so failures can always be attributed. The batch
// stops at the first failure or at a done action.
func (e *Engine) ExecuteActions(ctx context.Context, descriptors []schemas.ActionDescriptor) schemas.ExecutionOutcome {
	batch := make([]schemas.ActionDescriptor, len(descriptors))
	for i, d := range descriptors {
		if d.ID == "" {
			d.ID = uuid.NewString()
		}
		batch[i] = d
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	report, err := e.runner.RunDescriptors(ctx, batch)
	out := runner.Outcome(report, err)
	if err == nil {
		e.logger.Debug("Action batch completed.", zap.Int("executed", report.Executed), zap.Bool("done", report.Done))
	}
	return out
}

// Close removes every highlight still on the page.
func (e *Engine) Close(ctx context.Context) error {
	err := e.overlay.Clear(ctx)
	e.overlay.Close()
	return err
}

// Package resolver turns an action target back into a live element, waiting
// for the page to render it when it is not there yet.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/pagepilot/api/schemas"
	"github.com/xkilldash9x/pagepilot/internal/action"
	"github.com/xkilldash9x/pagepilot/internal/browser/dom"
)

// Defaults applied by Options.withDefaults.
const (
	DefaultTimeout          = 5 * time.Second
	DefaultPollInterval     = 100 * time.Millisecond
	DefaultMutationRate     = 20
	DefaultFrameSearchDepth = 3
)

// Options tunes resolution.
type Options struct {
	// Timeout bounds the wait for a target that is not on the page yet.
	// Negative disables waiting.
	Timeout time.Duration
	// PollInterval re-checks the page even without a mutation signal, which
	// catches changes inside frames the backend does not observe.
	PollInterval time.Duration
	// MutationRate caps re-resolutions per second triggered by mutations.
	MutationRate float64
	// ScrollBeforeWait scrolls the window to the end once before waiting so
	// lazily rendered content gets a chance to appear.
	ScrollBeforeWait bool
	// FrameSearchDepth bounds the search through nested frames for targets
	// without an explicit frame path.
	FrameSearchDepth int
}

func (o Options) withDefaults() Options {
	if o.Timeout == 0 {
		o.Timeout = DefaultTimeout
	}
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	if o.MutationRate <= 0 {
		o.MutationRate = DefaultMutationRate
	}
	if o.FrameSearchDepth <= 0 {
		o.FrameSearchDepth = DefaultFrameSearchDepth
	}
	return o
}

// Inventory gives access to the records of the current extraction pass.
type Inventory interface {
	Record(index int) (schemas.ElementRecord, bool)
}

// Scroller is the optional capability used by Options.ScrollBeforeWait.
type Scroller interface {
	ScrollToEnd(ctx context.Context) error
}

// Result is a resolved target.
type Result struct {
	Element dom.Element
	// Top is the snapshot the element was found in.
	Top *dom.Document
	// Frame is the path of the document that owns Element.
	Frame []int
}

// Resolver finds elements on one page.
type Resolver struct {
	page      dom.Page
	inventory Inventory
	opts      Options
	logger    *zap.Logger
}

// New creates a Resolver. inventory may be nil, in which case index targets
// never resolve.
func New(page dom.Page, inventory Inventory, opts Options, logger *zap.Logger) *Resolver {
	return &Resolver{
		page:      page,
		inventory: inventory,
		opts:      opts.withDefaults(),
		logger:    logger.Named("resolver"),
	}
}

// Resolve finds the element t points at. A target missing from the page is
// waited for until Options.Timeout, re-checked on every mutation the page
// reports and on a fixed poll. It fails with action.ErrElementNotFound on
// timeout, dom.ErrInaccessibleFrame when t names an unreadable frame, and
// the context error on cancellation.
func (r *Resolver) Resolve(ctx context.Context, t action.Target) (Result, error) {
	if t.IsZero() {
		return Result{}, fmt.Errorf("%w: no selector, xPath or index given", action.ErrElementNotFound)
	}

	res, found, err := r.Find(ctx, t)
	if err != nil || found {
		return res, err
	}
	if r.opts.Timeout < 0 {
		return Result{}, r.notFound(t)
	}

	if r.opts.ScrollBeforeWait {
		if s, ok := r.page.(Scroller); ok {
			if err := s.ScrollToEnd(ctx); err != nil {
				r.logger.Debug("Scroll before wait failed.", zap.Error(err))
			}
		}
	}
	return r.wait(ctx, t)
}

// Find makes one resolution attempt against a fresh snapshot.
func (r *Resolver) Find(ctx context.Context, t action.Target) (Result, bool, error) {
	top, err := r.page.Snapshot(ctx)
	if err != nil {
		return Result{}, false, fmt.Errorf("snapshot page: %w", err)
	}
	return r.lookup(top, t)
}

func (r *Resolver) wait(ctx context.Context, t action.Target) (Result, error) {
	r.logger.Debug("Waiting for target.", zap.Stringer("target", t), zap.Duration("timeout", r.opts.Timeout))

	mutations, unsubscribe, err := r.page.Subscribe(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("subscribe to mutations: %w", err)
	}
	defer unsubscribe()

	timer := time.NewTimer(r.opts.Timeout)
	defer timer.Stop()
	ticker := time.NewTicker(r.opts.PollInterval)
	defer ticker.Stop()
	limiter := rate.NewLimiter(rate.Limit(r.opts.MutationRate), 1)

	// The page may have changed between the first attempt and Subscribe.
	if res, found, err := r.Find(ctx, t); err != nil || found {
		return res, err
	}

	for {
		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		case <-timer.C:
			return Result{}, r.notFound(t)
		case <-mutations:
			// Bursts are absorbed here; the poll picks up whatever was skipped.
			if !limiter.Allow() {
				continue
			}
		case <-ticker.C:
		}

		res, found, err := r.Find(ctx, t)
		if err != nil || found {
			return res, err
		}
	}
}

func (r *Resolver) notFound(t action.Target) error {
	return fmt.Errorf("%w: %s", action.ErrElementNotFound, t)
}

// lookup resolves t against one snapshot. Selector wins over XPath, which
// wins over index.
func (r *Resolver) lookup(top *dom.Document, t action.Target) (Result, bool, error) {
	switch {
	case t.Selector != "" || t.XPath != "":
		return r.lookupLocator(top, t.Frame, t.Selector, t.XPath, len(t.Frame) == 0)
	default:
		return r.lookupIndex(top, t)
	}
}

func (r *Resolver) lookupIndex(top *dom.Document, t action.Target) (Result, bool, error) {
	if r.inventory == nil {
		return Result{}, false, fmt.Errorf("%w: index %d: no extraction pass", action.ErrElementNotFound, t.Index)
	}
	rec, ok := r.inventory.Record(t.Index)
	if !ok {
		return Result{}, false, fmt.Errorf("%w: index %d is not part of the current extraction pass", action.ErrElementNotFound, t.Index)
	}
	frame := rec.Frame
	if len(t.Frame) > 0 {
		frame = t.Frame
	}
	return r.lookupLocator(top, frame, rec.Selector, rec.XPath, false)
}

// lookupLocator tries selector, then xpath, in the document at path. With
// search set, a miss continues through the readable frames below it.
func (r *Resolver) lookupLocator(top *dom.Document, path []int, selector, xpath string, search bool) (Result, bool, error) {
	start, err := top.FrameAt(path)
	if err != nil {
		r.logger.Warn("Target frame is not accessible.", zap.Ints("frame", path), zap.Error(err))
		return Result{}, false, err
	}

	el, found, err := queryOne(start, selector, xpath)
	if err != nil {
		return Result{}, false, err
	}
	if found {
		return Result{Element: el, Top: top, Frame: clonePath(path)}, true, nil
	}
	if !search {
		return Result{}, false, nil
	}
	el, framePath, found := r.searchFrames(start, path, selector, xpath, 1)
	if !found {
		return Result{}, false, nil
	}
	return Result{Element: el, Top: top, Frame: framePath}, true, nil
}

// searchFrames walks readable frames depth-first and stops at the first
// match.
func (r *Resolver) searchFrames(doc *dom.Document, path []int, selector, xpath string, depth int) (dom.Element, []int, bool) {
	if depth > r.opts.FrameSearchDepth {
		return dom.Element{}, nil, false
	}
	for pos, iframe := range doc.Frames() {
		framePath := append(clonePath(path), pos)
		child, err := doc.Frame(iframe)
		if err != nil {
			r.logger.Debug("Skipping inaccessible frame during search.", zap.Ints("frame", framePath), zap.Error(err))
			continue
		}
		if el, found, err := queryOne(child, selector, xpath); err == nil && found {
			return el, framePath, true
		}
		if el, p, found := r.searchFrames(child, framePath, selector, xpath, depth+1); found {
			return el, p, true
		}
	}
	return dom.Element{}, nil, false
}

// queryOne evaluates the selector, falling back to the XPath when the
// selector is empty or matches nothing. Malformed locators are reported only
// when every given locator is malformed.
func queryOne(doc *dom.Document, selector, xpath string) (dom.Element, bool, error) {
	var given int
	var errs []error
	if selector != "" {
		given++
		el, found, err := doc.QuerySelector(selector)
		if found {
			return el, true, nil
		}
		if err != nil {
			errs = append(errs, err)
		}
	}
	if xpath != "" {
		given++
		el, found, err := doc.QueryXPath(xpath)
		if found {
			return el, true, nil
		}
		if err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 && len(errs) == given {
		return dom.Element{}, false, fmt.Errorf("%w: %w", action.ErrInvalidData, errors.Join(errs...))
	}
	return dom.Element{}, false, nil
}

func clonePath(p []int) []int {
	out := make([]int, len(p))
	copy(out, p)
	return out
}

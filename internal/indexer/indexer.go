// Package indexer scans a page snapshot, and its readable frames, for the
// elements a planner may act on and describes each one with locators that
// survive the trip out of the process.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/pagepilot/api/schemas"
	"github.com/xkilldash9x/pagepilot/internal/browser/dom"
)

// Mode selects the gate an element must pass to be recorded.
type Mode string

const (
	// ModeImportant records visible controls, links, non-empty text blocks
	// and editable regions.
	ModeImportant Mode = "important"
	// ModeInteractive records visible elements that are interactive by tag
	// or ARIA role.
	ModeInteractive Mode = "interactive"
)

// Defaults applied by Options.withDefaults.
const (
	DefaultMaxDepth  = 3
	DefaultTextLimit = 100
)

// attributeAllowList holds the attributes reported to callers.
var attributeAllowList = []string{"href", "id", "type", "name", "value", "title", "aria-label", "alt", "placeholder"}

// Options controls one extraction pass.
type Options struct {
	// Categories restricts the pass to the named categories. Empty selects
	// the important tags.
	Categories []string
	// MaxDepth bounds iframe recursion. The top document is depth 0.
	MaxDepth       int
	Mode           Mode
	ViewportOnly   bool
	DebugHighlight bool
	// TextLimit is the rune limit of ElementRecord.Text.
	TextLimit int
}

// OptionsFromRequest maps a wire request onto Options.
func OptionsFromRequest(req schemas.ExtractRequest) (Options, error) {
	mode := Mode(strings.ToLower(strings.TrimSpace(req.Mode)))
	switch mode {
	case "":
		mode = ModeImportant
	case ModeImportant, ModeInteractive:
	default:
		return Options{}, fmt.Errorf("indexer: unknown mode %q", req.Mode)
	}
	if req.MaxDepth < 0 {
		return Options{}, fmt.Errorf("indexer: max depth must not be negative, got %d", req.MaxDepth)
	}
	return Options{
		Categories:     req.ElementsTypeFilter,
		MaxDepth:       req.MaxDepth,
		Mode:           mode,
		ViewportOnly:   req.ViewportOnly,
		DebugHighlight: req.DebugHighlight,
	}, nil
}

func (o Options) withDefaults() Options {
	if o.MaxDepth <= 0 {
		o.MaxDepth = DefaultMaxDepth
	}
	if o.TextLimit <= 0 {
		o.TextLimit = DefaultTextLimit
	}
	if o.Mode == "" {
		o.Mode = ModeImportant
	}
	return o
}

// Highlighter draws debug boxes. *overlay.Overlay implements it.
type Highlighter interface {
	Highlight(ctx context.Context, rect dom.Rect, label string) (string, error)
	Clear(ctx context.Context) error
}

// Result is the outcome of one pass.
type Result struct {
	Records []schemas.ElementRecord
	// Skipped lists the paths of frames that could not be read.
	Skipped [][]int
}

// Indexer produces element inventories.
type Indexer struct {
	logger      *zap.Logger
	highlighter Highlighter
}

// New creates an Indexer. highlighter may be nil, which disables debug
// highlighting.
func New(logger *zap.Logger, highlighter Highlighter) *Indexer {
	return &Indexer{logger: logger.Named("indexer"), highlighter: highlighter}
}

// pass holds the state of one traversal.
type pass struct {
	ctx     context.Context
	opts    Options
	filter  tagFilter
	top     dom.Viewport
	records []schemas.ElementRecord
	skipped [][]int
}

// Extract indexes doc and its accessible frames depth-first: every qualifying
// element of a document in document order, then each readable iframe of that
// document in document order. Indices start at 1 and are shared across
// frames. Unreadable frames are skipped and reported in Result.Skipped.
func (ix *Indexer) Extract(ctx context.Context, doc *dom.Document, opts Options) (Result, error) {
	if doc == nil || doc.Root == nil {
		return Result{}, errors.New("indexer: no document")
	}
	opts = opts.withDefaults()

	if opts.DebugHighlight && ix.highlighter != nil {
		if err := ix.highlighter.Clear(ctx); err != nil {
			ix.logger.Debug("Could not clear previous highlights.", zap.Error(err))
		}
	}

	filter, unknown := newTagFilter(opts.Categories)
	if len(unknown) > 0 {
		ix.logger.Debug("Ignoring unknown element categories.", zap.Strings("categories", unknown))
	}

	p := &pass{ctx: ctx, opts: opts, filter: filter, top: doc.Viewport}
	if err := ix.walk(p, doc, []int{}, 0, 0, 0); err != nil {
		return Result{}, err
	}

	ix.logger.Debug("Extraction pass complete.",
		zap.String("url", doc.URL),
		zap.Int("elements", len(p.records)),
		zap.Int("skipped_frames", len(p.skipped)),
		zap.String("mode", string(opts.Mode)),
	)
	return Result{Records: p.records, Skipped: p.skipped}, nil
}

func (ix *Indexer) walk(p *pass, doc *dom.Document, path []int, depth int, dx, dy float64) error {
	if err := p.ctx.Err(); err != nil {
		return err
	}

	dom.WalkElements(doc.Root, func(n *html.Node) bool {
		el := doc.Element(n)
		if el.ID() == dom.OverlayContainerID {
			return false
		}
		if !p.filter.matches(n) || !ix.admits(p, el, dx, dy) {
			return true
		}
		rec := ix.record(p, el, path, dx, dy)
		p.records = append(p.records, rec)
		if p.opts.DebugHighlight && ix.highlighter != nil {
			rect := dom.Rect{X: rec.BoundingBox.X, Y: rec.BoundingBox.Y, Width: rec.BoundingBox.Width, Height: rec.BoundingBox.Height}
			if _, err := ix.highlighter.Highlight(p.ctx, rect, strconv.Itoa(rec.Index)); err != nil {
				ix.logger.Debug("Could not highlight element.", zap.Int("index", rec.Index), zap.Error(err))
			}
		}
		return true
	})

	if depth >= p.opts.MaxDepth {
		return nil
	}
	for pos, iframe := range doc.Frames() {
		framePath := append(append([]int{}, path...), pos)
		host := doc.Element(iframe)
		if isOverlayNode(iframe) {
			continue
		}
		child, err := doc.Frame(iframe)
		if err != nil {
			p.skipped = append(p.skipped, framePath)
			ix.logger.Debug("Skipping inaccessible frame.", zap.Ints("frame", framePath), zap.Error(err))
			continue
		}
		if !dom.IsVisible(host) {
			continue
		}
		r := host.Rect()
		if err := ix.walk(p, child, framePath, depth+1, dx+r.X, dy+r.Y); err != nil {
			return err
		}
	}
	return nil
}

// admits applies the mode gate and the viewport restriction.
func (ix *Indexer) admits(p *pass, el dom.Element, dx, dy float64) bool {
	var ok bool
	switch p.opts.Mode {
	case ModeInteractive:
		if el.Tag() == "canvas" {
			ok = !el.Rect().IsEmpty()
		} else {
			ok = dom.IsVisible(el) && dom.IsInteractive(el)
		}
	default:
		ok = dom.IsImportant(el)
	}
	if !ok || el.Rect().IsEmpty() {
		return false
	}
	if p.opts.ViewportOnly {
		if !dom.IsInViewport(el) {
			return false
		}
		r := el.Rect().Translate(dx, dy)
		if r.Bottom() < 0 || r.Right() < 0 || r.Y > p.top.Height || r.X > p.top.Width {
			return false
		}
	}
	return true
}

func (ix *Indexer) record(p *pass, el dom.Element, path []int, dx, dy float64) schemas.ElementRecord {
	full := textOf(el)
	r := el.Rect().Translate(dx, dy)
	return schemas.ElementRecord{
		Index:           len(p.records) + 1,
		TagName:         el.Tag(),
		Selector:        dom.SelectorFor(el.Node),
		XPath:           dom.XPathFor(el.Node),
		Text:            dom.Truncate(full, p.opts.TextLimit),
		FullText:        full,
		Attributes:      attributesOf(el),
		BoundingBox:     schemas.BoundingBox{X: r.X, Y: r.Y, Width: r.Width, Height: r.Height},
		Role:            dom.Role(el),
		AccessibleLabel: dom.AccessibleLabel(el),
		Frame:           append([]int{}, path...),
	}
}

// textOf returns the human-meaningful text of an element: the value of form
// controls, the alt text of images, the rendered text of anything else.
func textOf(el dom.Element) string {
	switch el.Tag() {
	case "input":
		if isPassword(el) {
			return dom.CollapseSpace(el.AttrOr("placeholder", ""))
		}
		switch inputType(el.Node) {
		case "checkbox", "radio", "hidden", "file":
			return dom.CollapseSpace(el.AttrOr("value", ""))
		}
		if v := dom.CollapseSpace(el.AttrOr("value", "")); v != "" {
			return v
		}
		return dom.CollapseSpace(el.AttrOr("placeholder", ""))
	case "textarea":
		if v, ok := el.Attr("value"); ok {
			if v = dom.CollapseSpace(v); v != "" {
				return v
			}
		} else if t := dom.VisibleText(el.Node); t != "" {
			return t
		}
		return dom.CollapseSpace(el.AttrOr("placeholder", ""))
	case "select":
		return selectedText(el.Node)
	case "img", "area":
		return dom.CollapseSpace(el.AttrOr("alt", ""))
	}
	return dom.VisibleText(el.Node)
}

func attributesOf(el dom.Element) map[string]string {
	out := make(map[string]string)
	for _, name := range attributeAllowList {
		v, ok := el.Attr(name)
		if !ok {
			continue
		}
		if name == "value" && isPassword(el) {
			continue
		}
		out[name] = v
	}
	return out
}

func isPassword(el dom.Element) bool {
	return el.Tag() == "input" && inputType(el.Node) == "password"
}

func selectedText(sel *html.Node) string {
	var first, selected *html.Node
	dom.WalkElements(sel, func(n *html.Node) bool {
		if !strings.EqualFold(n.Data, "option") {
			return true
		}
		if first == nil {
			first = n
		}
		if selected == nil {
			for _, a := range n.Attr {
				if strings.EqualFold(a.Key, "selected") {
					selected = n
				}
			}
		}
		return false
	})
	if selected == nil {
		selected = first
	}
	return dom.VisibleText(selected)
}

func isOverlayNode(n *html.Node) bool {
	for a := n; a != nil; a = a.Parent {
		if a.Type != html.ElementNode {
			continue
		}
		for _, at := range a.Attr {
			if at.Key == "id" && at.Val == dom.OverlayContainerID {
				return true
			}
		}
	}
	return false
}

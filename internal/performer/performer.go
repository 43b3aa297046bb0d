// Package performer carries out one decoded action against a resolved
// element, normalizing over native inputs, contentEditable regions and
// canvas-hosted editors.
package performer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pagepilot/internal/action"
	"github.com/xkilldash9x/pagepilot/internal/browser/dom"
	"github.com/xkilldash9x/pagepilot/internal/resolver"
)

// Options tunes per-type behavior.
type Options struct {
	// DispatchChange follows the input event of input_text with a change
	// event.
	DispatchChange bool
	// GranularClick precedes a click with mousedown and mouseup.
	GranularClick bool
	// DefaultKey is pressed when a key_press names no key.
	DefaultKey string
	// ScrollOffset is the window scroll magnitude when a scroll names none.
	ScrollOffset float64
	// WaitDefault is the sleep of a wait without a duration.
	WaitDefault time.Duration
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		DispatchChange: true,
		GranularClick:  true,
		DefaultKey:     "Enter",
		ScrollOffset:   200,
		WaitDefault:    time.Second,
	}
}

// Highlighter marks acted-upon elements. *overlay.Overlay implements it.
type Highlighter interface {
	Highlight(ctx context.Context, rect dom.Rect, label string) (string, error)
}

// Outcome is the success payload of one action.
type Outcome struct {
	Message string
	// Data carries extracted text.
	Data string
	// Done is set by the terminal done action.
	Done bool
	// Navigated is set when the document was replaced.
	Navigated bool
}

// Performer executes actions through a page driver.
type Performer struct {
	driver      dom.Driver
	opts        Options
	highlighter Highlighter
	logger      *zap.Logger
}

// New creates a Performer. highlighter may be nil.
func New(driver dom.Driver, opts Options, highlighter Highlighter, logger *zap.Logger) *Performer {
	def := DefaultOptions()
	if opts.DefaultKey == "" {
		opts.DefaultKey = def.DefaultKey
	}
	if opts.ScrollOffset <= 0 {
		opts.ScrollOffset = def.ScrollOffset
	}
	if opts.WaitDefault <= 0 {
		opts.WaitDefault = def.WaitDefault
	}
	return &Performer{
		driver:      driver,
		opts:        opts,
		highlighter: highlighter,
		logger:      logger.Named("performer"),
	}
}

// Perform executes a against target, which is the zero Result when the
// action has no element. Every failure is returned as an *action.ActionError
// bound to a.
func (p *Performer) Perform(ctx context.Context, a action.Action, target resolver.Result) (Outcome, error) {
	if action.RequiresElement(a) && target.Element.IsZero() {
		return Outcome{}, action.Wrap(a, fmt.Errorf("%w: %s needs an element", action.ErrElementNotFound, a.Meta().Type))
	}
	if !target.Element.IsZero() {
		p.highlight(ctx, target, string(a.Meta().Type))
	}

	out, err := p.dispatch(ctx, a, target.Element, target.Top)
	if err != nil {
		return Outcome{}, action.Wrap(a, err)
	}
	return out, nil
}

func (p *Performer) dispatch(ctx context.Context, a action.Action, el dom.Element, top *dom.Document) (Outcome, error) {
	switch v := a.(type) {
	case action.Click:
		return p.handleClick(ctx, el)
	case action.DoubleClick:
		return p.handleMouse(ctx, el, dom.Event{Type: "dblclick", Bubbles: true})
	case action.RightClick:
		return p.handleMouse(ctx, el, dom.Event{Type: "contextmenu", Bubbles: true, Button: 2})
	case action.Hover:
		return p.handleMouse(ctx, el, dom.Event{Type: "mouseover", Bubbles: true})
	case action.InputText:
		return p.handleInputText(ctx, el, v.Text)
	case action.Scroll:
		return p.handleScroll(ctx, el, v)
	case action.SubmitForm:
		return p.handleSubmitForm(ctx, el)
	case action.KeyPress:
		return p.handleKeyPress(ctx, el, v.Key)
	case action.Extract:
		text := strings.TrimSpace(el.Text())
		return Outcome{Message: "extracted text", Data: text}, nil
	case action.Select:
		return p.handleSelect(ctx, el, v.Value)
	case action.Navigate:
		if err := p.driver.Navigate(ctx, v.URL); err != nil {
			return Outcome{}, err
		}
		return Outcome{Message: "navigated to " + v.URL, Navigated: true}, nil
	case action.Verify:
		return p.handleVerify(ctx, el, top, v)
	case action.Wait:
		return p.handleWait(ctx, v.Duration)
	case action.Done:
		msg := v.Text
		if msg == "" {
			msg = "done"
		}
		return Outcome{Message: msg, Done: true}, nil
	default:
		return Outcome{}, fmt.Errorf("%w: %q", action.ErrUnknownActionType, a.Meta().Type)
	}
}

// -- Handlers --

func (p *Performer) handleClick(ctx context.Context, el dom.Element) (Outcome, error) {
	if err := requireHTMLElement(el); err != nil {
		return Outcome{}, err
	}
	if p.opts.GranularClick {
		for _, typ := range []string{"mousedown", "mouseup"} {
			if err := p.driver.Dispatch(ctx, el, dom.Event{Type: typ, Bubbles: true}); err != nil {
				return Outcome{}, fmt.Errorf("dispatch %s: %w", typ, err)
			}
		}
	}
	if err := p.driver.Click(ctx, el); err != nil {
		return Outcome{}, err
	}
	return Outcome{Message: "clicked " + describe(el)}, nil
}

func (p *Performer) handleMouse(ctx context.Context, el dom.Element, ev dom.Event) (Outcome, error) {
	if err := requireHTMLElement(el); err != nil {
		return Outcome{}, err
	}
	if err := p.driver.Dispatch(ctx, el, ev); err != nil {
		return Outcome{}, fmt.Errorf("dispatch %s: %w", ev.Type, err)
	}
	return Outcome{Message: fmt.Sprintf("dispatched %s on %s", ev.Type, describe(el))}, nil
}

// handleInputText picks the insertion strategy by target kind: value
// assignment for native fields, text insertion for editable regions, a
// clipboard paste for canvas editors and innerText for anything else.
func (p *Performer) handleInputText(ctx context.Context, el dom.Element, text string) (Outcome, error) {
	if err := requireHTMLElement(el); err != nil {
		return Outcome{}, err
	}

	switch {
	case el.Tag() == "input" || el.Tag() == "textarea":
		if err := p.driver.SetValue(ctx, el, text); err != nil {
			return Outcome{}, err
		}
		if err := p.driver.Dispatch(ctx, el, dom.Event{Type: "input", Bubbles: true, Data: text}); err != nil {
			return Outcome{}, fmt.Errorf("dispatch input: %w", err)
		}
		if p.opts.DispatchChange {
			if err := p.driver.Dispatch(ctx, el, dom.Event{Type: "change", Bubbles: true}); err != nil {
				return Outcome{}, fmt.Errorf("dispatch change: %w", err)
			}
		}
	case isEditable(el):
		if err := p.driver.Focus(ctx, el); err != nil {
			return Outcome{}, err
		}
		if err := p.driver.InsertText(ctx, el, text); err != nil {
			return Outcome{}, err
		}
	case hostsCanvas(el):
		if err := p.driver.Focus(ctx, el); err != nil {
			p.logger.Debug("Could not focus canvas editor before paste.", zap.Error(err))
		}
		if err := p.driver.Paste(ctx, el, text); err != nil {
			return Outcome{}, err
		}
	default:
		if err := p.driver.SetInnerText(ctx, el, text); err != nil {
			return Outcome{}, err
		}
	}
	return Outcome{Message: fmt.Sprintf("entered %d characters into %s", len([]rune(text)), describe(el))}, nil
}

func (p *Performer) handleScroll(ctx context.Context, el dom.Element, s action.Scroll) (Outcome, error) {
	if !el.IsZero() {
		if err := p.driver.ScrollIntoView(ctx, el); err != nil {
			return Outcome{}, err
		}
		return Outcome{Message: "scrolled " + describe(el) + " into view"}, nil
	}
	offset := s.Offset
	if offset == 0 {
		offset = p.opts.ScrollOffset
	}
	dx, dy := s.Delta(offset)
	if err := p.driver.ScrollBy(ctx, dx, dy); err != nil {
		return Outcome{}, err
	}
	return Outcome{Message: fmt.Sprintf("scrolled window %s by %gpx", s.Direction, offset)}, nil
}

func (p *Performer) handleSubmitForm(ctx context.Context, el dom.Element) (Outcome, error) {
	form := el
	if el.Tag() != "form" {
		var ok bool
		if form, ok = dom.Closest(el, "form"); !ok {
			return Outcome{}, fmt.Errorf("%w: no form found for %s", action.ErrTypeMismatch, describe(el))
		}
	}
	if err := p.driver.Submit(ctx, form); err != nil {
		return Outcome{}, err
	}
	return Outcome{Message: "submitted " + describe(form)}, nil
}

// handleKeyPress sends keydown and keyup to el, or to the document when el
// is zero.
func (p *Performer) handleKeyPress(ctx context.Context, el dom.Element, key string) (Outcome, error) {
	if key == "" {
		key = p.opts.DefaultKey
	}
	for _, typ := range []string{"keydown", "keyup"} {
		if err := p.driver.Dispatch(ctx, el, dom.Event{Type: typ, Bubbles: true, Key: key}); err != nil {
			return Outcome{}, fmt.Errorf("dispatch %s: %w", typ, err)
		}
	}
	where := "document"
	if !el.IsZero() {
		where = describe(el)
	}
	return Outcome{Message: fmt.Sprintf("pressed %s on %s", key, where)}, nil
}

func (p *Performer) handleSelect(ctx context.Context, el dom.Element, value string) (Outcome, error) {
	if el.Tag() != "select" {
		return Outcome{}, fmt.Errorf("%w: select needs a <select>, got %s", action.ErrTypeMismatch, describe(el))
	}
	if err := p.driver.SetValue(ctx, el, value); err != nil {
		return Outcome{}, err
	}
	if err := p.driver.Dispatch(ctx, el, dom.Event{Type: "change", Bubbles: true}); err != nil {
		return Outcome{}, fmt.Errorf("dispatch change: %w", err)
	}
	return Outcome{Message: fmt.Sprintf("selected %q in %s", value, describe(el))}, nil
}

// handleVerify checks el, or the whole top document when the action names no
// element.
func (p *Performer) handleVerify(ctx context.Context, el dom.Element, top *dom.Document, v action.Verify) (Outcome, error) {
	if !el.IsZero() {
		return verifyText(dom.CollapseSpace(el.Text()), describe(el), v.Text)
	}
	if top == nil {
		doc, err := p.driver.Snapshot(ctx)
		if err != nil {
			return Outcome{}, fmt.Errorf("snapshot: %w", err)
		}
		top = doc
	}
	return verifyText(dom.CollapseSpace(top.Text()), "document", v.Text)
}

func verifyText(haystack, where, want string) (Outcome, error) {
	if want != "" && !strings.Contains(haystack, dom.CollapseSpace(want)) {
		return Outcome{}, fmt.Errorf("%w: %s does not contain %q", action.ErrVerificationFailed, where, want)
	}
	return Outcome{Message: "verified " + where}, nil
}

func (p *Performer) handleWait(ctx context.Context, d time.Duration) (Outcome, error) {
	if d == 0 {
		d = p.opts.WaitDefault
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	case <-timer.C:
	}
	return Outcome{Message: "waited " + d.String()}, nil
}

// -- Helpers --

func (p *Performer) highlight(ctx context.Context, target resolver.Result, label string) {
	if p.highlighter == nil || target.Top == nil {
		return
	}
	dx, dy, err := frameOffset(target.Top, target.Frame)
	if err != nil {
		return
	}
	rect := target.Element.Rect().Translate(dx, dy)
	if rect.IsEmpty() {
		return
	}
	if _, err := p.highlighter.Highlight(ctx, rect, label); err != nil {
		p.logger.Debug("Could not highlight target.", zap.Error(err))
	}
}

// frameOffset sums the rects of the iframes along path.
func frameOffset(top *dom.Document, path []int) (dx, dy float64, err error) {
	doc := top
	for _, pos := range path {
		frames := doc.Frames()
		if pos < 0 || pos >= len(frames) {
			return 0, 0, errors.New("frame path out of range")
		}
		r := doc.Element(frames[pos]).Rect()
		dx, dy = dx+r.X, dy+r.Y
		if doc, err = doc.Frame(frames[pos]); err != nil {
			return 0, 0, err
		}
	}
	return dx, dy, nil
}

func requireHTMLElement(el dom.Element) error {
	if !el.IsHTMLElement() {
		return fmt.Errorf("%w: %s is not an HTML element of its document", action.ErrTypeMismatch, describe(el))
	}
	return nil
}

// isEditable reports whether el sits in a contentEditable region.
func isEditable(el dom.Element) bool {
	host, ok := dom.Closest(el, "[contenteditable]")
	return ok && dom.IsContentEditable(host)
}

// hostsCanvas reports whether el is, or wraps, a canvas.
func hostsCanvas(el dom.Element) bool {
	if el.Tag() == "canvas" {
		return true
	}
	return goquery.NewDocumentFromNode(el.Node).Find("canvas").Length() > 0
}

func describe(el dom.Element) string {
	if el.IsZero() {
		return "<none>"
	}
	if id := el.ID(); id != "" {
		return fmt.Sprintf("<%s id=%q>", el.Tag(), id)
	}
	return "<" + el.Tag() + ">"
}

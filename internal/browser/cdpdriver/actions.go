package cdpdriver

import (
	"context"
	"fmt"

	"github.com/chromedp/cdproto/cdp"
	cdpdom "github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/input"
	cdpruntime "github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/go-json-experiment/json/jsontext"
	jsoniter "github.com/json-iterator/go"

	"github.com/xkilldash9x/pagepilot/internal/browser/dom"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// eventSpec is the argument of dispatchFn.
type eventSpec struct {
	Type          string `json:"type"`
	Bubbles       bool   `json:"bubbles"`
	Key           string `json:"key"`
	Data          string `json:"data"`
	Button        int    `json:"button"`
	ClipboardText string `json:"clipboardText"`
}

// highlightSpec is the argument of drawOverlayFn.
type highlightSpec struct {
	ID     string  `json:"id"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Label  string  `json:"label"`
	Color  string  `json:"color"`
}

func callArgs(args ...any) ([]*cdpruntime.CallArgument, error) {
	out := make([]*cdpruntime.CallArgument, 0, len(args))
	for _, a := range args {
		raw, err := json.Marshal(a)
		if err != nil {
			return nil, fmt.Errorf("encode argument: %w", err)
		}
		out = append(out, &cdpruntime.CallArgument{Value: jsontext.Value(raw)})
	}
	return out, nil
}

// callOn runs a function declaration with this bound to the live node
// behind id.
func callOn(ctx context.Context, id cdp.BackendNodeID, fn string, args ...any) error {
	obj, err := cdpdom.ResolveNode().WithBackendNodeID(id).Do(ctx)
	if err != nil {
		return fmt.Errorf("resolve node %d: %w", id, err)
	}
	defer func() {
		_ = cdpruntime.ReleaseObject(obj.ObjectID).Do(ctx)
	}()

	cargs, err := callArgs(args...)
	if err != nil {
		return err
	}
	_, exc, err := cdpruntime.CallFunctionOn(fn).
		WithObjectID(obj.ObjectID).
		WithArguments(cargs).
		WithReturnByValue(true).
		WithAwaitPromise(true).
		WithUserGesture(true).
		Do(ctx)
	if err != nil {
		return err
	}
	if exc != nil {
		return exc
	}
	return nil
}

// evaluate applies fn to the top document with JSON encoded args.
func evaluate(ctx context.Context, fn string, args ...any) error {
	raw, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode arguments: %w", err)
	}
	expr := "(" + fn + ").apply(document, " + string(raw) + ")"
	_, exc, err := cdpruntime.Evaluate(expr).WithReturnByValue(true).WithAwaitPromise(true).Do(ctx)
	if err != nil {
		return err
	}
	if exc != nil {
		return exc
	}
	return nil
}

func (p *Page) onElement(ctx context.Context, op string, el dom.Element, fn string, args ...any) error {
	id, err := backendID(el)
	if err != nil {
		return fmt.Errorf("cdpdriver: %s: %w", op, err)
	}
	err = p.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		return callOn(ctx, id, fn, args...)
	}))
	if err != nil {
		return fmt.Errorf("cdpdriver: %s: %w", op, err)
	}
	return nil
}

func (p *Page) onDocument(ctx context.Context, op string, fn string, args ...any) error {
	err := p.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		return evaluate(ctx, fn, args...)
	}))
	if err != nil {
		return fmt.Errorf("cdpdriver: %s: %w", op, err)
	}
	return nil
}

func (p *Page) Click(ctx context.Context, el dom.Element) error {
	return p.onElement(ctx, "click", el, clickFn)
}

// Dispatch fires ev on el, or on the top document when el is zero.
func (p *Page) Dispatch(ctx context.Context, el dom.Element, ev dom.Event) error {
	spec := eventSpec{
		Type:          ev.Type,
		Bubbles:       ev.Bubbles,
		Key:           ev.Key,
		Data:          ev.Data,
		Button:        ev.Button,
		ClipboardText: ev.ClipboardText,
	}
	if el.IsZero() {
		return p.onDocument(ctx, "dispatch "+ev.Type, dispatchFn, spec)
	}
	return p.onElement(ctx, "dispatch "+ev.Type, el, dispatchFn, spec)
}

func (p *Page) Focus(ctx context.Context, el dom.Element) error {
	return p.onElement(ctx, "focus", el, focusFn)
}

func (p *Page) SetValue(ctx context.Context, el dom.Element, value string) error {
	return p.onElement(ctx, "set value", el, setValueFn, value)
}

// InsertText focuses el and types text at its caret through Input.insertText.
func (p *Page) InsertText(ctx context.Context, el dom.Element, text string) error {
	if err := p.Focus(ctx, el); err != nil {
		return err
	}
	err := p.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		return input.InsertText(text).Do(ctx)
	}))
	if err != nil {
		return fmt.Errorf("cdpdriver: insert text: %w", err)
	}
	return nil
}

func (p *Page) Paste(ctx context.Context, el dom.Element, text string) error {
	return p.Dispatch(ctx, el, dom.Event{Type: "paste", Bubbles: true, ClipboardText: text})
}

func (p *Page) SetInnerText(ctx context.Context, el dom.Element, text string) error {
	return p.onElement(ctx, "set inner text", el, setInnerTextFn, text)
}

func (p *Page) ScrollIntoView(ctx context.Context, el dom.Element) error {
	return p.onElement(ctx, "scroll into view", el, scrollIntoViewFn)
}

func (p *Page) ScrollBy(ctx context.Context, dx, dy float64) error {
	return p.onDocument(ctx, "scroll by", scrollByFn, dx, dy)
}

func (p *Page) ScrollToEnd(ctx context.Context) error {
	return p.onDocument(ctx, "scroll to end", scrollToEndFn)
}

func (p *Page) Submit(ctx context.Context, form dom.Element) error {
	return p.onElement(ctx, "submit", form, submitFn)
}

// DrawOverlay adds or replaces one highlight box in the top document.
func (p *Page) DrawOverlay(ctx context.Context, h dom.Highlight) error {
	spec := highlightSpec{
		ID:     h.ID,
		X:      h.Rect.X,
		Y:      h.Rect.Y,
		Width:  h.Rect.Width,
		Height: h.Rect.Height,
		Label:  h.Label,
		Color:  h.Color,
	}
	return p.onDocument(ctx, "draw overlay", drawOverlayFn, spec, dom.OverlayContainerID)
}

func (p *Page) RemoveOverlay(ctx context.Context, id string) error {
	return p.onDocument(ctx, "remove overlay", removeOverlayFn, id)
}

func (p *Page) ClearOverlays(ctx context.Context) error {
	return p.onDocument(ctx, "clear overlays", clearOverlaysFn, dom.OverlayContainerID)
}

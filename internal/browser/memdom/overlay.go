package memdom

import (
	"context"
	"fmt"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/xkilldash9x/pagepilot/internal/browser/dom"
)

const containerStyle = "position:fixed;top:0;left:0;width:0;height:0;pointer-events:none;z-index:2147483647"

// DrawOverlay adds a highlight box to the overlay container of the top
// document, replacing any box with the same id.
func (p *Page) DrawOverlay(ctx context.Context, h dom.Highlight) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	container := p.overlayContainerLocked(true)
	if container == nil {
		return fmt.Errorf("memdom: document has no element to host overlays")
	}
	if old := childByID(container, h.ID); old != nil {
		container.RemoveChild(old)
	}

	box := element(atom.Div, html.Attribute{Key: "id", Val: h.ID}, html.Attribute{
		Key: "style",
		Val: fmt.Sprintf("position:fixed;left:%gpx;top:%gpx;width:%gpx;height:%gpx;border:2px solid %s;pointer-events:none;box-sizing:border-box",
			h.Rect.X, h.Rect.Y, h.Rect.Width, h.Rect.Height, h.Color),
	})
	if h.Label != "" {
		label := element(atom.Span, html.Attribute{
			Key: "style",
			Val: fmt.Sprintf("position:absolute;top:-18px;left:0;background:%s;color:#fff;font-size:12px", h.Color),
		})
		label.AppendChild(&html.Node{Type: html.TextNode, Data: h.Label})
		box.AppendChild(label)
	}
	container.AppendChild(box)
	p.notifyLocked()
	return nil
}

// RemoveOverlay removes one highlight box. Unknown ids are ignored.
func (p *Page) RemoveOverlay(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	container := p.overlayContainerLocked(false)
	if container == nil {
		return nil
	}
	if box := childByID(container, id); box != nil {
		container.RemoveChild(box)
		p.notifyLocked()
	}
	return nil
}

// ClearOverlays removes the overlay container and every box in it.
func (p *Page) ClearOverlays(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if container := p.overlayContainerLocked(false); container != nil {
		container.Parent.RemoveChild(container)
		p.notifyLocked()
	}
	return nil
}

func (p *Page) overlayContainerLocked(create bool) *html.Node {
	if c := findByID(p.top.root, dom.OverlayContainerID); c != nil {
		return c
	}
	if !create {
		return nil
	}
	host := findElement(p.top.root, atom.Html)
	if host == nil {
		return nil
	}
	if body := findElement(host, atom.Body); body != nil {
		host = body
	}
	c := element(atom.Div,
		html.Attribute{Key: "id", Val: dom.OverlayContainerID},
		html.Attribute{Key: "style", Val: containerStyle},
	)
	host.AppendChild(c)
	return c
}

func element(a atom.Atom, attrs ...html.Attribute) *html.Node {
	return &html.Node{Type: html.ElementNode, DataAtom: a, Data: a.String(), Attr: attrs}
}

func childByID(parent *html.Node, id string) *html.Node {
	for c := parent.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && attr(c, "id") == id {
			return c
		}
	}
	return nil
}

func findElement(root *html.Node, a atom.Atom) *html.Node {
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.DataAtom == a {
			return c
		}
	}
	return nil
}

package memdom

import (
	"context"
	"strings"

	"golang.org/x/net/html"

	"github.com/xkilldash9x/pagepilot/internal/browser/dom"
	"github.com/xkilldash9x/pagepilot/internal/browser/layout"
	"github.com/xkilldash9x/pagepilot/internal/browser/parser"
	"github.com/xkilldash9x/pagepilot/internal/browser/style"
)

// Snapshot copies the live page into a dom.Document. Every element of the
// copy carries its computed display and visibility, its client rect and its
// live node as handle. Form control state is reflected into the value and
// checked attributes of the copy.
func (p *Page) Snapshot(ctx context.Context) (*dom.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotLocked(p.top, p.viewport, p.scrollX, p.scrollY, 0), nil
}

func (p *Page) snapshotLocked(f *frame, vp dom.Viewport, scrollX, scrollY float64, depth int) *dom.Document {
	clone, mapping := cloneTree(f.root)
	doc := dom.NewDocument(clone, f.url, vp)
	doc.Handle = f.root

	styled, geometry := p.layoutLocked(f, vp)
	var annotate func(*style.StyledNode)
	annotate = func(sn *style.StyledNode) {
		if sn.Node.Type == html.ElementNode {
			box := dom.Box{
				Style:  dom.Style{Display: sn.DisplayKeyword(), Visibility: sn.Visibility()},
				Handle: sn.Node,
			}
			if place, ok := geometry[sn.Node]; ok {
				r := place.Rect
				if !place.Fixed {
					r.X -= scrollX
					r.Y -= scrollY
				}
				box.Rect = dom.Rect{X: r.X, Y: r.Y, Width: r.Width, Height: r.Height}
			}
			doc.SetBox(mapping[sn.Node], box)
			p.reflectStateLocked(sn.Node, mapping[sn.Node])
		}
		for _, c := range sn.Children {
			annotate(c)
		}
	}
	annotate(styled)

	for _, iframe := range iframesOf(f.root) {
		copied := mapping[iframe]
		child, ok := p.frames[iframe]
		switch {
		case !ok:
			doc.DenyFrame(copied, "not loaded")
		case child.denied != "":
			doc.DenyFrame(copied, child.denied)
		case depth >= maxFrameNesting:
			doc.DenyFrame(copied, "frame nesting limit reached")
		default:
			place := geometry[iframe]
			childVP := dom.Viewport{Width: place.Rect.Width, Height: place.Rect.Height}
			doc.AttachFrame(copied, p.snapshotLocked(child, childVP, 0, 0, depth+1))
		}
	}
	return doc
}

// layoutLocked runs the cascade and layout over one document of the page.
func (p *Page) layoutLocked(f *frame, vp dom.Viewport) (*style.StyledNode, map[*html.Node]layout.Placement) {
	engine := style.NewEngine()
	engine.SetViewport(vp.Width, vp.Height)
	dom.WalkElements(f.root, func(n *html.Node) bool {
		switch strings.ToLower(n.Data) {
		case "template":
			return false
		case "style":
			engine.AddAuthorSheet(parser.NewParser(textContent(n)).Parse())
		}
		return true
	})
	styled := engine.BuildTree(f.root, nil)
	tree := layout.NewEngine(vp.Width, vp.Height).BuildAndLayoutTree(styled)
	return styled, tree.Geometry()
}

// documentSizeLocked returns the scrollable size of the top document.
func (p *Page) documentSizeLocked() (width, height float64) {
	_, geometry := p.layoutLocked(p.top, p.viewport)
	width, height = p.viewport.Width, p.viewport.Height
	for _, place := range geometry {
		if place.Fixed {
			continue
		}
		width = max(width, place.Rect.X+place.Rect.Width)
		height = max(height, place.Rect.Y+place.Rect.Height)
	}
	return width, height
}

func (p *Page) reflectStateLocked(live, copied *html.Node) {
	switch strings.ToLower(live.Data) {
	case "input":
		switch strings.ToLower(attr(live, "type")) {
		case "checkbox", "radio":
			if p.checkedLocked(live) {
				setAttr(copied, "checked", "")
			} else {
				removeAttr(copied, "checked")
			}
			return
		}
		if st, ok := p.controls[live]; ok && st.dirty {
			setAttr(copied, "value", st.value)
		}
	case "textarea", "select":
		setAttr(copied, "value", p.valueLocked(live))
	}
}

// cloneTree deep-copies n and returns the mapping from original to copy.
func cloneTree(n *html.Node) (*html.Node, map[*html.Node]*html.Node) {
	mapping := make(map[*html.Node]*html.Node)
	var clone func(*html.Node) *html.Node
	clone = func(src *html.Node) *html.Node {
		dst := &html.Node{
			Type:      src.Type,
			DataAtom:  src.DataAtom,
			Data:      src.Data,
			Namespace: src.Namespace,
			Attr:      append([]html.Attribute(nil), src.Attr...),
		}
		mapping[src] = dst
		for c := src.FirstChild; c != nil; c = c.NextSibling {
			dst.AppendChild(clone(c))
		}
		return dst
	}
	return clone(n), mapping
}

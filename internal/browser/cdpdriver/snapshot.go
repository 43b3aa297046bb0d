package cdpdriver

import (
	"context"
	"fmt"
	"strings"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/domsnapshot"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/xkilldash9x/pagepilot/internal/browser/dom"
)

// Computed style properties requested with every capture, in this order.
var capturedStyles = []string{"display", "visibility"}

// DOM node types as reported by DOMSnapshot.
const (
	nodeElement  = 1
	nodeText     = 3
	nodeComment  = 8
	nodeDocument = 9
	nodeDoctype  = 10
	nodeFragment = 11
)

// Snapshot captures the page with DOMSnapshot.captureSnapshot and converts
// it into a dom.Document tree.
func (p *Page) Snapshot(ctx context.Context) (*dom.Document, error) {
	var (
		docs []*domsnapshot.DocumentSnapshot
		strs []string
		vp   dom.Viewport
	)
	err := p.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		_, _, _, layout, _, _, err := page.GetLayoutMetrics().Do(ctx)
		if err != nil {
			return fmt.Errorf("layout metrics: %w", err)
		}
		if layout != nil {
			vp = dom.Viewport{Width: float64(layout.ClientWidth), Height: float64(layout.ClientHeight)}
		}
		docs, strs, err = domsnapshot.CaptureSnapshot(capturedStyles).WithIncludeDOMRects(true).Do(ctx)
		return err
	}))
	if err != nil {
		return nil, fmt.Errorf("cdpdriver: snapshot: %w", err)
	}
	return buildDocument(docs, strs, vp)
}

// buildDocument converts the first captured document and the frames it
// references.
func buildDocument(docs []*domsnapshot.DocumentSnapshot, strs []string, vp dom.Viewport) (*dom.Document, error) {
	if len(docs) == 0 || docs[0] == nil || docs[0].Nodes == nil {
		return nil, fmt.Errorf("cdpdriver: snapshot holds no document")
	}
	b := &builder{docs: docs, strs: strs, visited: make(map[int]bool)}
	return b.document(0, vp), nil
}

type builder struct {
	docs    []*domsnapshot.DocumentSnapshot
	strs    []string
	visited map[int]bool
}

func (b *builder) str(i int64) string {
	if i < 0 || int(i) >= len(b.strs) {
		return ""
	}
	return b.strs[i]
}

func (b *builder) strAt(v []domsnapshot.StringIndex, i int) string {
	if i >= len(v) {
		return ""
	}
	return b.str(int64(v[i]))
}

func (b *builder) document(di int, vp dom.Viewport) *dom.Document {
	b.visited[di] = true
	snap := b.docs[di]
	nt := snap.Nodes

	root := &html.Node{Type: html.DocumentNode}
	doc := dom.NewDocument(root, b.str(int64(snap.DocumentURL)), vp)

	nodes := make([]*html.Node, len(nt.ParentIndex))
	skipped := make([]bool, len(nt.ParentIndex))
	pseudo := rareIndexSet(nt.PseudoType)

	for i := range nt.ParentIndex {
		parent := nt.ParentIndex[i]
		if parent >= 0 && (int(parent) >= i || skipped[parent] || nodes[parent] == nil) {
			skipped[i] = true
			continue
		}
		if pseudo[int64(i)] {
			skipped[i] = true
			continue
		}
		var n *html.Node
		switch at(nt.NodeType, i) {
		case nodeDocument:
			if parent < 0 {
				nodes[i] = root
				if i < len(nt.BackendNodeID) {
					doc.Handle = nt.BackendNodeID[i]
				}
				continue
			}
			skipped[i] = true
			continue
		case nodeElement:
			n = b.element(nt, i)
		case nodeText:
			n = &html.Node{Type: html.TextNode, Data: b.strAt(nt.NodeValue, i)}
		case nodeComment:
			n = &html.Node{Type: html.CommentNode, Data: b.strAt(nt.NodeValue, i)}
		case nodeDoctype:
			n = &html.Node{Type: html.DoctypeNode, Data: strings.ToLower(b.strAt(nt.NodeName, i))}
		default:
			// Shadow roots and other fragments are not part of the light tree.
			skipped[i] = true
			continue
		}
		nodes[i] = n

		p := root
		if parent >= 0 {
			p = nodes[parent]
		}
		if n.Type == html.ElementNode {
			n.Namespace = childNamespace(p, n.Data)
		}
		p.AppendChild(n)
	}

	b.reflectState(nt, nodes)
	b.annotate(doc, snap, nodes)
	b.frames(doc, nt, nodes)
	return doc
}

func (b *builder) element(nt *domsnapshot.NodeTreeSnapshot, i int) *html.Node {
	name := b.strAt(nt.NodeName, i)
	if name == strings.ToUpper(name) {
		name = strings.ToLower(name)
	}
	n := &html.Node{Type: html.ElementNode, Data: name, DataAtom: atom.Lookup([]byte(name))}
	if i < len(nt.Attributes) {
		pairs := nt.Attributes[i]
		for k := 0; k+1 < len(pairs); k += 2 {
			n.Attr = append(n.Attr, html.Attribute{Key: b.str(pairs[k]), Val: b.str(pairs[k+1])})
		}
	}
	return n
}

// childNamespace decides the namespace of an element from its parent.
func childNamespace(parent *html.Node, name string) string {
	switch strings.ToLower(name) {
	case "svg":
		return "svg"
	case "math":
		return "math"
	}
	if parent == nil || parent.Type != html.ElementNode || parent.Namespace == "" {
		return ""
	}
	if strings.EqualFold(parent.Data, "foreignObject") {
		return ""
	}
	return parent.Namespace
}

// reflectState copies live form control state into attributes.
func (b *builder) reflectState(nt *domsnapshot.NodeTreeSnapshot, nodes []*html.Node) {
	if nt.InputValue != nil {
		for k, idx := range nt.InputValue.Index {
			if k >= len(nt.InputValue.Value) || !valid(nodes, idx) {
				continue
			}
			setAttr(nodes[idx], "value", b.str(int64(nt.InputValue.Value[k])))
		}
	}
	if nt.InputChecked != nil {
		for _, idx := range nt.InputChecked.Index {
			if valid(nodes, idx) {
				setAttr(nodes[idx], "checked", "")
			}
		}
	}
	if nt.OptionSelected != nil {
		for _, idx := range nt.OptionSelected.Index {
			if !valid(nodes, idx) {
				continue
			}
			opt := nodes[idx]
			setAttr(opt, "selected", "")
			for p := opt.Parent; p != nil; p = p.Parent {
				if p.Type == html.ElementNode && strings.EqualFold(p.Data, "select") {
					if _, ok := attrOf(p, "value"); !ok {
						setAttr(p, "value", optionValue(opt))
					}
					break
				}
			}
		}
	}
}

// annotate records computed style, client rect and backend id per element.
func (b *builder) annotate(doc *dom.Document, snap *domsnapshot.DocumentSnapshot, nodes []*html.Node) {
	nt := snap.Nodes
	for i, n := range nodes {
		if n == nil || n.Type != html.ElementNode || i >= len(nt.BackendNodeID) {
			continue
		}
		doc.SetBox(n, dom.Box{Handle: nt.BackendNodeID[i]})
	}

	lt := snap.Layout
	if lt == nil {
		return
	}
	for j, idx := range lt.NodeIndex {
		if !valid(nodes, idx) || nodes[idx].Type != html.ElementNode {
			continue
		}
		box, _ := doc.BoxOf(nodes[idx])
		if j < len(lt.Styles) {
			st := lt.Styles[j]
			if len(st) > 0 {
				box.Style.Display = b.str(st[0])
			}
			if len(st) > 1 {
				box.Style.Visibility = b.str(st[1])
			}
		}
		if j < len(lt.Bounds) && len(lt.Bounds[j]) == 4 {
			r := lt.Bounds[j]
			box.Rect = dom.Rect{
				X:      r[0] - snap.ScrollOffsetX,
				Y:      r[1] - snap.ScrollOffsetY,
				Width:  r[2],
				Height: r[3],
			}
		}
		doc.SetBox(nodes[idx], box)
	}
}

// frames attaches the content document of every same-origin iframe. The
// capture omits cross-origin documents.
func (b *builder) frames(doc *dom.Document, nt *domsnapshot.NodeTreeSnapshot, nodes []*html.Node) {
	content := make(map[int64]int64)
	if nt.ContentDocumentIndex != nil {
		for k, idx := range nt.ContentDocumentIndex.Index {
			if k < len(nt.ContentDocumentIndex.Value) {
				content[idx] = nt.ContentDocumentIndex.Value[k]
			}
		}
	}
	for i, n := range nodes {
		if n == nil || n.Type != html.ElementNode || !strings.EqualFold(n.Data, "iframe") {
			continue
		}
		di, ok := content[int64(i)]
		switch {
		case !ok || di < 0 || int(di) >= len(b.docs) || b.docs[di] == nil || b.docs[di].Nodes == nil:
			doc.DenyFrame(n, "cross-origin")
		case b.visited[int(di)]:
			doc.DenyFrame(n, "frame cycle")
		default:
			box, _ := doc.BoxOf(n)
			doc.AttachFrame(n, b.document(int(di), dom.Viewport{Width: box.Rect.Width, Height: box.Rect.Height}))
		}
	}
}

func rareIndexSet(d *domsnapshot.RareStringData) map[int64]bool {
	set := make(map[int64]bool)
	if d == nil {
		return set
	}
	for _, idx := range d.Index {
		set[idx] = true
	}
	return set
}

func at(v []int64, i int) int64 {
	if i < len(v) {
		return v[i]
	}
	return -1
}

func valid(nodes []*html.Node, idx int64) bool {
	return idx >= 0 && int(idx) < len(nodes) && nodes[idx] != nil
}

func attrOf(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && strings.EqualFold(a.Key, key) {
			return a.Val, true
		}
	}
	return "", false
}

func setAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && strings.EqualFold(a.Key, key) {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func optionValue(opt *html.Node) string {
	if v, ok := attrOf(opt, "value"); ok {
		return v
	}
	return strings.Join(strings.Fields(dom.TextContent(opt)), " ")
}

// backendID extracts the node id an element was annotated with.
func backendID(el dom.Element) (cdp.BackendNodeID, error) {
	id, ok := el.Handle().(cdp.BackendNodeID)
	if !ok || id == 0 {
		return 0, ErrNoHandle
	}
	return id, nil
}

// internal/browser/dom/document.go
package dom

import (
	"strings"

	"golang.org/x/net/html"
)

// Rect is an axis-aligned rectangle in CSS pixels.
type Rect struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

func (r Rect) Right() float64  { return r.X + r.Width }
func (r Rect) Bottom() float64 { return r.Y + r.Height }

// IsEmpty reports whether the rectangle has no area.
func (r Rect) IsEmpty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Translate returns the rectangle moved by (dx, dy).
func (r Rect) Translate(dx, dy float64) Rect {
	return Rect{X: r.X + dx, Y: r.Y + dy, Width: r.Width, Height: r.Height}
}

// Center returns the midpoint of the rectangle.
func (r Rect) Center() (float64, float64) {
	return r.X + r.Width/2, r.Y + r.Height/2
}

// Style is the subset of an element's computed style the engine reads.
type Style struct {
	Display    string
	Visibility string
}

// Box annotates one element of a Document with its computed style, its
// bounding client rect and the driver's handle for the live node.
type Box struct {
	Rect   Rect
	Style  Style
	Handle any
}

// Viewport is the size of a document's window.
type Viewport struct {
	Width  float64
	Height float64
}

type frameEntry struct {
	doc *Document
	err error
}

// Document is a point-in-time view of a page: the element tree plus the
// style and geometry of each element. Drivers produce documents; the engine
// only ever reads them.
type Document struct {
	// Root is the html.DocumentNode at the top of the tree.
	Root     *html.Node
	URL      string
	Viewport Viewport
	// Handle identifies the live document for the driver.
	Handle any

	boxes  map[*html.Node]Box
	frames map[*html.Node]frameEntry
}

// NewDocument wraps a parsed tree.
func NewDocument(root *html.Node, url string, viewport Viewport) *Document {
	return &Document{
		Root:     root,
		URL:      url,
		Viewport: viewport,
		boxes:    make(map[*html.Node]Box),
		frames:   make(map[*html.Node]frameEntry),
	}
}

// SetBox records the style and geometry of n.
func (d *Document) SetBox(n *html.Node, b Box) {
	d.boxes[n] = b
}

// BoxOf returns the box recorded for n.
func (d *Document) BoxOf(n *html.Node) (Box, bool) {
	b, ok := d.boxes[n]
	return b, ok
}

// AttachFrame records child as the content document of the iframe element.
func (d *Document) AttachFrame(iframe *html.Node, child *Document) {
	d.frames[iframe] = frameEntry{doc: child}
}

// DenyFrame records that the iframe's content cannot be read.
func (d *Document) DenyFrame(iframe *html.Node, reason string) {
	d.frames[iframe] = frameEntry{err: &FrameAccessError{Src: attr(iframe, "src"), Reason: reason}}
}

// Frames returns the iframe elements of this document in document order.
// Frame paths index into this slice.
func (d *Document) Frames() []*html.Node {
	var out []*html.Node
	walkElements(d.Root, func(n *html.Node) bool {
		if strings.EqualFold(n.Data, "iframe") {
			out = append(out, n)
		}
		return true
	})
	return out
}

// Frame returns the content document of an iframe element, or a
// FrameAccessError when the frame is cross-origin or otherwise unreadable.
func (d *Document) Frame(iframe *html.Node) (*Document, error) {
	entry, ok := d.frames[iframe]
	if !ok {
		return nil, &FrameAccessError{Src: attr(iframe, "src"), Reason: "no content document"}
	}
	if entry.err != nil {
		return nil, entry.err
	}
	return entry.doc, nil
}

// FrameAt follows a frame path from this document.
func (d *Document) FrameAt(path []int) (*Document, error) {
	cur := d
	for depth, pos := range path {
		frames := cur.Frames()
		if pos < 0 || pos >= len(frames) {
			return nil, &FrameAccessError{Path: clonePath(path[:depth+1]), Reason: "no such frame"}
		}
		next, err := cur.Frame(frames[pos])
		if err != nil {
			return nil, withPath(err, path[:depth+1])
		}
		cur = next
	}
	return cur, nil
}

// Element binds n to this document.
func (d *Document) Element(n *html.Node) Element {
	return Element{Node: n, Doc: d}
}

// DocumentElement returns the root element, normally <html>.
func (d *Document) DocumentElement() *html.Node {
	if d.Root == nil {
		return nil
	}
	if d.Root.Type == html.ElementNode {
		return d.Root
	}
	for c := d.Root.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			return c
		}
	}
	return nil
}

// Body returns the <body> element, or nil.
func (d *Document) Body() *html.Node {
	var body *html.Node
	walkElements(d.Root, func(n *html.Node) bool {
		if body != nil {
			return false
		}
		if strings.EqualFold(n.Data, "body") {
			body = n
			return false
		}
		return true
	})
	return body
}

// Text returns the text content of the whole document.
func (d *Document) Text() string {
	return TextContent(d.Root)
}

// Element is an element node together with the document it belongs to.
type Element struct {
	Node *html.Node
	Doc  *Document
}

// IsZero reports whether e refers to nothing.
func (e Element) IsZero() bool {
	return e.Node == nil
}

// Tag returns the lower-cased tag name.
func (e Element) Tag() string {
	if e.Node == nil {
		return ""
	}
	return strings.ToLower(e.Node.Data)
}

// Attr returns the value of the named attribute.
func (e Element) Attr(name string) (string, bool) {
	if e.Node == nil {
		return "", false
	}
	for _, a := range e.Node.Attr {
		if a.Namespace == "" && strings.EqualFold(a.Key, name) {
			return a.Val, true
		}
	}
	return "", false
}

// AttrOr returns the named attribute or fallback when it is absent.
func (e Element) AttrOr(name, fallback string) string {
	if v, ok := e.Attr(name); ok {
		return v
	}
	return fallback
}

// ID returns the id attribute.
func (e Element) ID() string {
	return attr(e.Node, "id")
}

// Classes returns the class list.
func (e Element) Classes() []string {
	return splitTokens(attr(e.Node, "class"))
}

// Box returns the annotations recorded for the element.
func (e Element) Box() Box {
	if e.Doc == nil {
		return Box{}
	}
	b, _ := e.Doc.BoxOf(e.Node)
	return b
}

// Rect returns the bounding client rect within the owning document.
func (e Element) Rect() Rect { return e.Box().Rect }

// Style returns the computed style.
func (e Element) Style() Style { return e.Box().Style }

// Handle returns the driver handle for the live node.
func (e Element) Handle() any { return e.Box().Handle }

// Text returns the textContent of the element.
func (e Element) Text() string {
	return TextContent(e.Node)
}

// IsHTMLElement reports whether the node is an HTML-namespace element that
// belongs to the tree of its own document.
func (e Element) IsHTMLElement() bool {
	if e.Node == nil || e.Node.Type != html.ElementNode || e.Node.Namespace != "" {
		return false
	}
	if e.Doc == nil {
		return false
	}
	for n := e.Node; n != nil; n = n.Parent {
		if n == e.Doc.Root {
			return true
		}
	}
	return false
}

// walkElements visits element nodes in document order. Returning false from
// fn skips the subtree of that node.
func walkElements(n *html.Node, fn func(*html.Node) bool) {
	if n == nil {
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			if !fn(c) {
				continue
			}
		}
		walkElements(c, fn)
	}
}

// WalkElements visits the element descendants of n in document order.
func WalkElements(n *html.Node, fn func(*html.Node) bool) {
	walkElements(n, fn)
}

func attr(n *html.Node, name string) string {
	if n == nil {
		return ""
	}
	for _, a := range n.Attr {
		if a.Namespace == "" && strings.EqualFold(a.Key, name) {
			return a.Val
		}
	}
	return ""
}

func clonePath(p []int) []int {
	out := make([]int, len(p))
	copy(out, p)
	return out
}

// internal/browser/layout/layout.go
package layout

import (
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"

	"github.com/xkilldash9x/pagepilot/internal/browser/style"
)

// -- Constants and Configuration --

// The engine has no font metrics. Text is measured on a fixed grid.
const (
	CharWidth  = 8.0
	LineHeight = 18.0
)

// Intrinsic sizes of replaced elements and form controls.
const (
	inputWidth, inputHeight       = 170.0, 22.0
	toggleSize                    = 13.0
	textareaWidth, textareaHeight = 200.0, 40.0
	selectWidth, selectHeight     = 150.0, 22.0
	buttonPadding, buttonHeight   = 16.0, 22.0
	embedWidth, embedHeight       = 300.0, 150.0
	brokenImageSize               = 16.0
)

// Rect represents a rectangle in document coordinates.
type Rect struct {
	X, Y, Width, Height float64
}

// LayoutBox is a node in the layout tree. Only element and non-blank text
// nodes generate boxes.
type LayoutBox struct {
	StyledNode *style.StyledNode
	Rect       Rect
	// Fixed marks boxes positioned against the viewport, which do not move
	// when the document scrolls.
	Fixed    bool
	Children []*LayoutBox
}

// Engine lays out a style tree inside a viewport. Block-level boxes take the
// full width of their container, inline-level boxes shrink to their content,
// and every in-flow box stacks vertically below its previous sibling.
type Engine struct {
	viewportWidth  float64
	viewportHeight float64
}

func NewEngine(viewportWidth, viewportHeight float64) *Engine {
	return &Engine{
		viewportWidth:  viewportWidth,
		viewportHeight: viewportHeight,
	}
}

// BuildAndLayoutTree lays out the style tree rooted at a document node.
func (e *Engine) BuildAndLayoutTree(styleRoot *style.StyledNode) *LayoutBox {
	if styleRoot == nil {
		return nil
	}
	viewport := Rect{Width: e.viewportWidth, Height: e.viewportHeight}
	root := &LayoutBox{StyledNode: styleRoot}
	cursor := 0.0
	for _, child := range styleRoot.Children {
		box, advance := e.layout(child, viewport, viewport, cursor, false)
		if box != nil {
			root.Children = append(root.Children, box)
		}
		cursor += advance
	}
	root.Rect = Rect{Width: e.viewportWidth, Height: math.Max(cursor, e.viewportHeight)}
	return root
}

// layout places sn with its top edge at y inside the content rect of its
// parent. It returns the box and how far it advances the parent's cursor.
func (e *Engine) layout(sn *style.StyledNode, parent, containing Rect, y float64, fixed bool) (*LayoutBox, float64) {
	if sn.Node.Type == html.TextNode {
		return e.layoutText(sn, parent, y, fixed)
	}
	if sn.Node.Type != html.ElementNode || sn.Display() == style.DisplayNone {
		return nil, 0
	}

	box := &LayoutBox{StyledNode: sn, Fixed: fixed}
	pos := sn.Position()
	x := parent.X
	top := y
	switch pos {
	case style.PositionAbsolute:
		x = containing.X + e.length(sn, "left", containing.Width)
		top = containing.Y + e.length(sn, "top", containing.Height)
	case style.PositionFixed:
		box.Fixed = true
		x = e.length(sn, "left", e.viewportWidth)
		top = e.length(sn, "top", e.viewportHeight)
	}

	width, height, replaced := e.intrinsicSize(sn)
	if w := sn.Lookup("width", ""); !style.IsAuto(w) {
		width = e.length(sn, "width", parent.Width)
	} else if !replaced {
		switch sn.Display() {
		case style.DisplayBlock, style.DisplayListItem, style.DisplayFlex, style.DisplayContents:
			if pos == style.PositionAbsolute || pos == style.PositionFixed {
				width = math.Min(e.contentWidth(sn, parent.Width), parent.Width)
			} else {
				width = parent.Width
			}
		default:
			width = math.Min(e.contentWidth(sn, parent.Width), parent.Width)
		}
	}

	content := Rect{X: x, Y: top, Width: width}
	// Positioned boxes are the containing block of their absolute descendants.
	childContaining := containing
	if pos != style.PositionStatic {
		childContaining = content
	}

	cursor := top
	if !replaced {
		for _, child := range sn.Children {
			childBox, advance := e.layout(child, content, childContaining, cursor, box.Fixed)
			if childBox != nil {
				box.Children = append(box.Children, childBox)
			}
			cursor += advance
		}
		height = cursor - top
	}
	if h := sn.Lookup("height", ""); !style.IsAuto(h) {
		height = e.length(sn, "height", containing.Height)
	}
	box.Rect = Rect{X: x, Y: top, Width: width, Height: height}

	if pos == style.PositionRelative {
		box.translate(e.length(sn, "left", parent.Width), e.length(sn, "top", parent.Height))
	}
	if pos == style.PositionAbsolute || pos == style.PositionFixed {
		return box, 0
	}
	return box, height
}

func (e *Engine) layoutText(sn *style.StyledNode, parent Rect, y float64, fixed bool) (*LayoutBox, float64) {
	text := strings.Join(strings.Fields(sn.Node.Data), " ")
	if text == "" {
		return nil, 0
	}
	textWidth := float64(utf8.RuneCountInString(text)) * CharWidth
	lines := 1.0
	if parent.Width > 0 && textWidth > parent.Width {
		lines = math.Ceil(textWidth / parent.Width)
		textWidth = parent.Width
	}
	height := lines * LineHeight
	return &LayoutBox{
		StyledNode: sn,
		Rect:       Rect{X: parent.X, Y: y, Width: textWidth, Height: height},
		Fixed:      fixed,
	}, height
}

// intrinsicSize returns the natural size of replaced elements and form
// controls. Their children never generate boxes.
func (e *Engine) intrinsicSize(sn *style.StyledNode) (width, height float64, replaced bool) {
	n := sn.Node
	switch strings.ToLower(n.Data) {
	case "input":
		switch strings.ToLower(attr(n, "type")) {
		case "checkbox", "radio":
			return toggleSize, toggleSize, true
		case "submit", "button", "reset":
			label := attr(n, "value")
			if label == "" {
				label = "Submit"
			}
			return textWidth(label) + buttonPadding, buttonHeight, true
		}
		return inputWidth, inputHeight, true
	case "textarea":
		width, height = textareaWidth, textareaHeight
		if cols, ok := attrNumber(n, "cols"); ok {
			width = cols*CharWidth + 4
		}
		if rows, ok := attrNumber(n, "rows"); ok {
			height = rows*LineHeight + 4
		}
		return width, height, true
	case "select":
		return selectWidth, selectHeight, true
	case "button":
		return textWidth(collapsedText(n)) + buttonPadding, buttonHeight, true
	case "canvas", "iframe", "video", "embed", "object":
		width, height = embedWidth, embedHeight
		if w, ok := attrNumber(n, "width"); ok {
			width = w
		}
		if h, ok := attrNumber(n, "height"); ok {
			height = h
		}
		return width, height, true
	case "img":
		w, hasW := attrNumber(n, "width")
		h, hasH := attrNumber(n, "height")
		switch {
		case hasW && hasH:
			return w, h, true
		case attr(n, "alt") != "":
			return textWidth(attr(n, "alt")), LineHeight, true
		default:
			return brokenImageSize, brokenImageSize, true
		}
	}
	return 0, 0, false
}

// contentWidth is the shrink-to-fit width of a non-replaced box.
func (e *Engine) contentWidth(sn *style.StyledNode, available float64) float64 {
	widest := 0.0
	for _, child := range sn.Children {
		var w float64
		switch child.Node.Type {
		case html.TextNode:
			w = textWidth(strings.Join(strings.Fields(child.Node.Data), " "))
		case html.ElementNode:
			if child.Display() == style.DisplayNone {
				continue
			}
			if cw := child.Lookup("width", ""); !style.IsAuto(cw) {
				w = e.length(child, "width", available)
			} else if iw, _, replaced := e.intrinsicSize(child); replaced {
				w = iw
			} else {
				w = e.contentWidth(child, available)
			}
		}
		widest = math.Max(widest, w)
	}
	return math.Min(widest, available)
}

func (e *Engine) length(sn *style.StyledNode, property string, reference float64) float64 {
	return style.ParseLengthWithUnits(sn.Lookup(property, ""), style.GetFontSize(sn), style.BaseFontSize, reference, e.viewportWidth, e.viewportHeight)
}

func (b *LayoutBox) translate(dx, dy float64) {
	b.Rect.X += dx
	b.Rect.Y += dy
	for _, c := range b.Children {
		c.translate(dx, dy)
	}
}

// -- Results --

// Placement is the laid out border box of one element.
type Placement struct {
	Rect  Rect
	Fixed bool
}

// Geometry flattens the layout tree into the border box of every element
// that generated a box.
func (b *LayoutBox) Geometry() map[*html.Node]Placement {
	out := make(map[*html.Node]Placement)
	var walk func(*LayoutBox)
	walk = func(box *LayoutBox) {
		if box.StyledNode != nil && box.StyledNode.Node.Type == html.ElementNode {
			out[box.StyledNode.Node] = Placement{Rect: box.Rect, Fixed: box.Fixed}
		}
		for _, c := range box.Children {
			walk(c)
		}
	}
	walk(b)
	return out
}

func textWidth(s string) float64 {
	return float64(utf8.RuneCountInString(s)) * CharWidth
}

func collapsedText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(c *html.Node) {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
			b.WriteByte(' ')
		}
		for ch := c.FirstChild; ch != nil; ch = ch.NextSibling {
			walk(ch)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(b.String()), " ")
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Namespace == "" && strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}

func attrNumber(n *html.Node, key string) (float64, bool) {
	v := strings.TrimSuffix(strings.TrimSpace(attr(n, key)), "px")
	if v == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < 0 {
		return 0, false
	}
	return f, true
}

package cdpdriver

import (
	"testing"

	"github.com/andybalholm/cascadia"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/domsnapshot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/pagepilot/internal/browser/dom"
)

// capture mimics the reply of DOMSnapshot.captureSnapshot for a page with a
// button, a typed input, a shadow root, a pseudo element, a same-origin
// frame and a cross-origin frame.
func capture() ([]*domsnapshot.DocumentSnapshot, []string) {
	strs := []string{
		"#document",             // 0
		"https://shop.test/",    // 1
		"HTML",                  // 2
		"BODY",                  // 3
		"BUTTON",                // 4
		"id",                    // 5
		"go",                    // 6
		"#text",                 // 7
		"Save",                  // 8
		"INPUT",                 // 9
		"typed",                 // 10
		"IFRAME",                // 11
		"DIV",                   // 12
		"block",                 // 13
		"visible",               // 14
		"none",                  // 15
		"before",                // 16
		"https://shop.test/f",   // 17
		"#document-fragment",    // 18
		"::before",              // 19
		"Inner",                 // 20
		"https://ads.test/",     // 21
		"src",                   // 22
	}
	top := &domsnapshot.DocumentSnapshot{
		DocumentURL:   1,
		ScrollOffsetY: 100,
		Nodes: &domsnapshot.NodeTreeSnapshot{
			ParentIndex:   []int64{-1, 0, 1, 2, 3, 2, 2, 2, 3, 8, 3},
			NodeType:      []int64{9, 1, 1, 1, 3, 1, 1, 1, 11, 1, 1},
			NodeName:      []domsnapshot.StringIndex{0, 2, 3, 4, 7, 9, 11, 11, 18, 12, 19},
			NodeValue:     []domsnapshot.StringIndex{-1, -1, -1, -1, 8, -1, -1, -1, -1, -1, -1},
			BackendNodeID: []cdp.BackendNodeID{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11},
			Attributes: []domsnapshot.ArrayOfStrings{
				{}, {}, {}, {5, 6}, {}, {}, {}, {22, 21}, {}, {}, {},
			},
			InputValue:           &domsnapshot.RareStringData{Index: []int64{5}, Value: []domsnapshot.StringIndex{10}},
			PseudoType:           &domsnapshot.RareStringData{Index: []int64{10}, Value: []domsnapshot.StringIndex{16}},
			ContentDocumentIndex: &domsnapshot.RareIntegerData{Index: []int64{6}, Value: []int64{1}},
		},
		Layout: &domsnapshot.LayoutTreeSnapshot{
			NodeIndex: []int64{1, 2, 3, 5, 6},
			Styles: []domsnapshot.ArrayOfStrings{
				{13, 14}, {13, 14}, {13, 14}, {15, 14}, {13, 14},
			},
			Bounds: []domsnapshot.Rectangle{
				{0, 0, 800, 1600},
				{0, 0, 800, 1600},
				{10, 120, 50, 20},
				{0, 0, 0, 0},
				{0, 200, 300, 150},
			},
		},
	}
	frame := &domsnapshot.DocumentSnapshot{
		DocumentURL: 17,
		Nodes: &domsnapshot.NodeTreeSnapshot{
			ParentIndex:   []int64{-1, 0, 1, 2, 3},
			NodeType:      []int64{9, 1, 1, 1, 3},
			NodeName:      []domsnapshot.StringIndex{0, 2, 3, 12, 7},
			NodeValue:     []domsnapshot.StringIndex{-1, -1, -1, -1, 20},
			BackendNodeID: []cdp.BackendNodeID{20, 21, 22, 23, 24},
		},
		Layout: &domsnapshot.LayoutTreeSnapshot{
			NodeIndex: []int64{3},
			Styles:    []domsnapshot.ArrayOfStrings{{13, 14}},
			Bounds:    []domsnapshot.Rectangle{{5, 5, 100, 30}},
		},
	}
	return []*domsnapshot.DocumentSnapshot{top, frame}, strs
}

func find(t *testing.T, root *html.Node, sel string) *html.Node {
	t.Helper()
	n := cascadia.MustCompile(sel).MatchFirst(root)
	require.NotNil(t, n, "no match for %s", sel)
	return n
}

func TestBuildDocument(t *testing.T) {
	docs, strs := capture()
	doc, err := buildDocument(docs, strs, dom.Viewport{Width: 800, Height: 600})
	require.NoError(t, err)

	assert.Equal(t, "https://shop.test/", doc.URL)
	assert.Equal(t, dom.Viewport{Width: 800, Height: 600}, doc.Viewport)
	assert.Equal(t, cdp.BackendNodeID(1), doc.Handle)

	t.Run("tree", func(t *testing.T) {
		body := doc.Body()
		require.NotNil(t, body)
		var tags []string
		for c := body.FirstChild; c != nil; c = c.NextSibling {
			tags = append(tags, c.Data)
		}
		assert.Equal(t, []string{"button", "input", "iframe", "iframe"}, tags)
	})

	t.Run("button", func(t *testing.T) {
		btn := doc.Element(find(t, doc.Root, "#go"))
		assert.Equal(t, "Save", btn.Text(), "shadow and pseudo content is left out")
		assert.Equal(t, dom.Rect{X: 10, Y: 20, Width: 50, Height: 20}, btn.Rect())
		assert.Equal(t, dom.Style{Display: "block", Visibility: "visible"}, btn.Style())
		assert.True(t, dom.IsVisible(btn))

		id, err := backendID(btn)
		require.NoError(t, err)
		assert.Equal(t, cdp.BackendNodeID(4), id)
	})

	t.Run("input state", func(t *testing.T) {
		in := doc.Element(find(t, doc.Root, "input"))
		assert.Equal(t, "typed", in.AttrOr("value", ""))
		assert.Equal(t, "none", in.Style().Display)
		assert.False(t, dom.IsVisible(in))
	})

	t.Run("frames", func(t *testing.T) {
		frames := doc.Frames()
		require.Len(t, frames, 2)

		inner, err := doc.Frame(frames[0])
		require.NoError(t, err)
		assert.Equal(t, "https://shop.test/f", inner.URL)
		assert.Equal(t, dom.Viewport{Width: 300, Height: 150}, inner.Viewport)
		div := inner.Element(find(t, inner.Root, "div"))
		assert.Equal(t, "Inner", div.Text())
		assert.Equal(t, dom.Rect{X: 5, Y: 5, Width: 100, Height: 30}, div.Rect())

		_, err = doc.Frame(frames[1])
		assert.ErrorIs(t, err, dom.ErrInaccessibleFrame)
	})
}

func TestBuildDocumentFrameCycle(t *testing.T) {
	docs, strs := capture()
	// Point the nested frame back at the top document.
	docs[1].Nodes.ContentDocumentIndex = &domsnapshot.RareIntegerData{Index: []int64{3}, Value: []int64{0}}
	docs[1].Nodes.NodeName[3] = 11

	doc, err := buildDocument(docs, strs, dom.Viewport{})
	require.NoError(t, err)
	inner, err := doc.FrameAt([]int{0})
	require.NoError(t, err)
	_, err = inner.FrameAt([]int{0})
	assert.ErrorIs(t, err, dom.ErrInaccessibleFrame)
}

func TestBuildDocumentEmpty(t *testing.T) {
	_, err := buildDocument(nil, nil, dom.Viewport{})
	assert.Error(t, err)
}

func TestBuildDocumentSelectState(t *testing.T) {
	strs := []string{"#document", "SELECT", "OPTION", "value", "a", "b", "#text", "Alpha", "Beta"}
	docs := []*domsnapshot.DocumentSnapshot{{
		Nodes: &domsnapshot.NodeTreeSnapshot{
			ParentIndex:    []int64{-1, 0, 1, 2, 1, 4},
			NodeType:       []int64{9, 1, 1, 3, 1, 3},
			NodeName:       []domsnapshot.StringIndex{0, 1, 2, 6, 2, 6},
			NodeValue:      []domsnapshot.StringIndex{-1, -1, -1, 7, -1, 8},
			BackendNodeID:  []cdp.BackendNodeID{1, 2, 3, 4, 5, 6},
			Attributes:     []domsnapshot.ArrayOfStrings{{}, {}, {3, 4}, {}, {}, {}},
			OptionSelected: &domsnapshot.RareBooleanData{Index: []int64{4}},
		},
	}}
	doc, err := buildDocument(docs, strs, dom.Viewport{})
	require.NoError(t, err)

	sel := doc.Element(find(t, doc.Root, "select"))
	assert.Equal(t, "Beta", sel.AttrOr("value", ""), "an option without value uses its text")
	_, selected := doc.Element(find(t, doc.Root, "option:nth-of-type(2)")).Attr("selected")
	assert.True(t, selected)

	// Elements without a layout object keep their handle.
	id, err := backendID(sel)
	require.NoError(t, err)
	assert.Equal(t, cdp.BackendNodeID(2), id)
}

func TestChildNamespace(t *testing.T) {
	svg := &html.Node{Type: html.ElementNode, Data: "svg", Namespace: "svg"}
	fo := &html.Node{Type: html.ElementNode, Data: "foreignObject", Namespace: "svg"}
	div := &html.Node{Type: html.ElementNode, Data: "div"}

	assert.Equal(t, "svg", childNamespace(div, "svg"))
	assert.Equal(t, "svg", childNamespace(svg, "path"))
	assert.Equal(t, "", childNamespace(fo, "div"))
	assert.Equal(t, "math", childNamespace(nil, "MATH"))
	assert.Equal(t, "", childNamespace(div, "span"))
}

func TestBackendIDMissing(t *testing.T) {
	_, err := backendID(dom.Element{})
	assert.ErrorIs(t, err, ErrNoHandle)
}

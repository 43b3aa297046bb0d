package style

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/pagepilot/internal/browser/parser"
)

// Helper to set up the style engine with specific CSS.
func setupEngine(css string) *Engine {
	engine := NewEngine()
	engine.AddAuthorSheet(parser.NewParser(css).Parse())
	return engine
}

func parseHTML(t *testing.T, input string) *html.Node {
	t.Helper()
	doc, err := html.Parse(strings.NewReader(input))
	require.NoError(t, err)
	return doc
}

func findNodeByID(n *html.Node, id string) *html.Node {
	if n.Type == html.ElementNode {
		for _, attr := range n.Attr {
			if attr.Key == "id" && attr.Val == id {
				return n
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findNodeByID(c, id); found != nil {
			return found
		}
	}
	return nil
}

// Helper to find a StyledNode by ID in the built tree.
func findStyledNodeByID(n *StyledNode, id string) *StyledNode {
	if n == nil {
		return nil
	}
	if n.Node.Type == html.ElementNode {
		for _, attr := range n.Node.Attr {
			if attr.Key == "id" && attr.Val == id {
				return n
			}
		}
	}
	for _, child := range n.Children {
		if found := findStyledNodeByID(child, id); found != nil {
			return found
		}
	}
	return nil
}

// --- Tests for The Cascade Algorithm ---

func TestCSSCascade(t *testing.T) {
	t.Run("Specificity Ordering", func(t *testing.T) {
		doc := parseHTML(t, `<p id="target" class="highlight">Test</p>`)
		engine := setupEngine(`
			#target { color: id; }
			p.highlight { color: class; }
			p { color: tag; }
		`)
		styles := engine.CalculateStyles(findNodeByID(doc, "target"))
		assert.Equal(t, "id", string(styles["color"]))
	})

	t.Run("Source order breaks ties", func(t *testing.T) {
		doc := parseHTML(t, `<p id="target" class="a b">Test</p>`)
		engine := setupEngine(`.a { color: first; } .b { color: second; }`)
		styles := engine.CalculateStyles(findNodeByID(doc, "target"))
		assert.Equal(t, "second", string(styles["color"]))
	})

	t.Run("Most specific selector of a group counts", func(t *testing.T) {
		doc := parseHTML(t, `<p id="target" class="a">Test</p>`)
		engine := setupEngine(`p, #target { color: group; } p.a { color: class; }`)
		styles := engine.CalculateStyles(findNodeByID(doc, "target"))
		assert.Equal(t, "group", string(styles["color"]))
	})

	t.Run("!important Precedence", func(t *testing.T) {
		doc := parseHTML(t, `<p id="target" style="color: inline">Test</p>`)
		engine := setupEngine(`
			p { color: tag !important; }
			#target { color: id; }
		`)
		styles := engine.CalculateStyles(findNodeByID(doc, "target"))
		assert.Equal(t, "tag", string(styles["color"]))
	})

	t.Run("Inline vs Author", func(t *testing.T) {
		doc := parseHTML(t, `<p id="target" style="display: INLINE-BLOCK">Test</p>`)
		engine := setupEngine(`#target { display: none; }`)
		styles := engine.CalculateStyles(findNodeByID(doc, "target"))
		assert.Equal(t, "inline-block", string(styles["display"]))
	})

	t.Run("Author overrides user agent", func(t *testing.T) {
		doc := parseHTML(t, `<div><span id="s" hidden>x</span><div id="d">y</div></div>`)
		engine := setupEngine(`#s { display: inline; }`)
		assert.Equal(t, "inline", string(engine.CalculateStyles(findNodeByID(doc, "s"))["display"]))
		assert.Equal(t, "block", string(engine.CalculateStyles(findNodeByID(doc, "d"))["display"]))
	})

	t.Run("Unsupported selectors are ignored", func(t *testing.T) {
		doc := parseHTML(t, `<p id="target">Test</p>`)
		engine := setupEngine(`p::before { display: none; } p:unknown-thing { display: none; } p { color: ok; }`)
		styles := engine.CalculateStyles(findNodeByID(doc, "target"))
		assert.Equal(t, "block", string(styles["display"]), "the user agent value survives the ignored rules")
		assert.Equal(t, "ok", string(styles["color"]))
	})
}

func TestInheritance(t *testing.T) {
	doc := parseHTML(t, `<div id="parent"><p id="child">x <span id="grandchild">y</span></p><p id="override">z</p></div>`)
	engine := setupEngine(`
		#parent { visibility: hidden; display: block; }
		#override { visibility: visible; }
	`)
	root := engine.BuildTree(doc, nil)

	child := findStyledNodeByID(root, "child")
	require.NotNil(t, child)
	assert.Equal(t, "hidden", child.Visibility(), "visibility inherits")
	assert.Equal(t, "hidden", findStyledNodeByID(root, "grandchild").Visibility())
	assert.Equal(t, "visible", findStyledNodeByID(root, "override").Visibility())
	// display never inherits; the p gets its user agent value.
	assert.Equal(t, DisplayBlock, child.Display())
	assert.Equal(t, DisplayInline, findStyledNodeByID(root, "grandchild").Display())
}

func TestBuildTree_DropsComments(t *testing.T) {
	doc := parseHTML(t, `<!DOCTYPE html><html><body><!-- c --><p id="p">x</p></body></html>`)
	root := setupEngine("").BuildTree(doc, nil)

	var count func(*StyledNode) int
	count = func(sn *StyledNode) int {
		n := 0
		if sn.Node.Type == html.CommentNode || sn.Node.Type == html.DoctypeNode {
			n++
		}
		for _, c := range sn.Children {
			n += count(c)
		}
		return n
	}
	assert.Zero(t, count(root))
	assert.NotNil(t, findStyledNodeByID(root, "p"))
}

func TestUserAgentDefaults(t *testing.T) {
	doc := parseHTML(t, `<html><head><title>t</title></head><body>
		<div id="div"></div>
		<span id="span"></span>
		<input id="text">
		<input id="hidden" type="hidden">
		<li id="li"></li>
		<script id="script"></script>
	</body></html>`)
	root := setupEngine("").BuildTree(doc, nil)

	tests := map[string]DisplayType{
		"div":    DisplayBlock,
		"span":   DisplayInline,
		"text":   DisplayInlineBlock,
		"hidden": DisplayNone,
		"li":     DisplayListItem,
		"script": DisplayNone,
	}
	for id, want := range tests {
		sn := findStyledNodeByID(root, id)
		require.NotNil(t, sn, id)
		assert.Equal(t, want, sn.Display(), id)
	}
	assert.Equal(t, "none", findStyledNodeByID(root, "hidden").DisplayKeyword())
	assert.Equal(t, "inline", findStyledNodeByID(root, "span").DisplayKeyword())
}

func TestIsVisibleAndPosition(t *testing.T) {
	doc := parseHTML(t, `<div id="a" style="opacity: 0"></div><div id="b" style="position: absolute; inset: 5px 10px"></div><div id="c"></div>`)
	root := setupEngine("").BuildTree(doc, nil)

	a := findStyledNodeByID(root, "a")
	assert.False(t, a.IsVisible())
	assert.Equal(t, PositionStatic, a.Position())

	b := findStyledNodeByID(root, "b")
	assert.True(t, b.IsVisible())
	assert.Equal(t, PositionAbsolute, b.Position())
	assert.Equal(t, "5px", b.Lookup("top", ""))
	assert.Equal(t, "10px", b.Lookup("left", ""))

	assert.True(t, findStyledNodeByID(root, "c").IsVisible())
}

func TestFontSizeResolution(t *testing.T) {
	doc := parseHTML(t, `<div id="outer" style="font-size: 20px"><h1 id="h">x</h1><p id="p" style="font-size: 1.5em">y</p></div>`)
	root := setupEngine("").BuildTree(doc, nil)

	assert.InDelta(t, 20.0, GetFontSize(findStyledNodeByID(root, "outer")), 0.001)
	assert.InDelta(t, 40.0, GetFontSize(findStyledNodeByID(root, "h")), 0.001)
	assert.InDelta(t, 30.0, GetFontSize(findStyledNodeByID(root, "p")), 0.001)
}

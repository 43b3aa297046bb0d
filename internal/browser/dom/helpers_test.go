package dom_test

import (
	"strconv"
	"strings"
	"testing"

	"github.com/antchfx/htmlquery"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/pagepilot/internal/browser/dom"
)

// buildDoc parses markup and gives every element a visible 100x20 box at the
// origin. Tests override geometry and style with data-rect="x,y,w,h",
// data-display and data-visibility.
func buildDoc(t *testing.T, markup string) *dom.Document {
	t.Helper()
	root, err := htmlquery.Parse(strings.NewReader(markup))
	require.NoError(t, err)

	doc := dom.NewDocument(root, "https://example.test/", dom.Viewport{Width: 1280, Height: 800})
	dom.WalkElements(root, func(n *html.Node) bool {
		box := dom.Box{
			Rect:   dom.Rect{Width: 100, Height: 20},
			Style:  dom.Style{Display: "block", Visibility: "visible"},
			Handle: n,
		}
		if v := htmlquery.SelectAttr(n, "data-rect"); v != "" {
			parts := strings.Split(v, ",")
			require.Len(t, parts, 4)
			nums := make([]float64, 4)
			for i, p := range parts {
				nums[i], err = strconv.ParseFloat(strings.TrimSpace(p), 64)
				require.NoError(t, err)
			}
			box.Rect = dom.Rect{X: nums[0], Y: nums[1], Width: nums[2], Height: nums[3]}
		}
		if v := htmlquery.SelectAttr(n, "data-display"); v != "" {
			box.Style.Display = v
		}
		if v := htmlquery.SelectAttr(n, "data-visibility"); v != "" {
			box.Style.Visibility = v
		}
		doc.SetBox(n, box)
		return true
	})
	return doc
}

func mustFind(t *testing.T, doc *dom.Document, expr string) dom.Element {
	t.Helper()
	n := htmlquery.FindOne(doc.Root, expr)
	require.NotNil(t, n, "no node for %s", expr)
	return doc.Element(n)
}

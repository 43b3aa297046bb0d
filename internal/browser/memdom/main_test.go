package memdom_test

import (
	"context"
	"strings"
	"testing"

	"github.com/andybalholm/cascadia"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/pagepilot/internal/browser/dom"
	"github.com/xkilldash9x/pagepilot/internal/browser/memdom"
)

const testURL = "https://example.test/app/"

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newPage(t *testing.T, markup string, opts ...memdom.Option) *memdom.Page {
	t.Helper()
	p, err := memdom.NewFromHTML(zaptest.NewLogger(t), testURL, markup, opts...)
	require.NoError(t, err)
	return p
}

func snapshot(t *testing.T, p *memdom.Page) *dom.Document {
	t.Helper()
	doc, err := p.Snapshot(context.Background())
	require.NoError(t, err)
	return doc
}

// find returns the snapshot element matching a CSS selector.
func find(t *testing.T, doc *dom.Document, selector string) dom.Element {
	t.Helper()
	el, ok, err := doc.QuerySelector(selector)
	require.NoError(t, err)
	require.True(t, ok, "no element for %s", selector)
	return el
}

// live returns the live node matching a CSS selector.
func live(t *testing.T, root *html.Node, selector string) *html.Node {
	t.Helper()
	n := cascadia.Query(root, cascadia.MustCompile(selector))
	require.NotNil(t, n, "no live node for %s", selector)
	return n
}

func liveText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(c *html.Node) {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
		for ch := c.FirstChild; ch != nil; ch = ch.NextSibling {
			walk(ch)
		}
	}
	walk(n)
	return b.String()
}

func idOf(n *html.Node) string {
	for _, a := range n.Attr {
		if a.Key == "id" {
			return a.Val
		}
	}
	return ""
}

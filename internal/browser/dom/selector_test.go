package dom_test

import (
	"strings"
	"testing"
	"unicode/utf8"

	fuzz "github.com/AdaLogics/go-fuzz-headers"
	"github.com/andybalholm/cascadia"
	"github.com/antchfx/htmlquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/pagepilot/internal/browser/dom"
)

const selectorHTML = `<!DOCTYPE html>
<html>
<head><title>t</title></head>
<body>
	<button id="go">Go</button>
	<div class="card primary"><span class="label">A</span></div>
	<div class="card primary"><span class="label">B</span></div>
	<input class="name-field" type="text">
	<section>
		<p>one</p>
		<p>two</p>
	</section>
	<a id="with space" href="/x">x</a>
	<i class="1st">digit class</i>
</body>
</html>`

func TestSelectorFor(t *testing.T) {
	doc, err := htmlquery.Parse(strings.NewReader(selectorHTML))
	require.NoError(t, err)

	tests := []struct {
		name     string
		target   string
		expected string
	}{
		{"id wins", "//button", "#go"},
		{"unique class compound", "//input", "input.name-field"},
		{"first of duplicate class compound", "(//div[contains(@class,'card')])[1]", "div.card.primary"},
		{"duplicate class falls back to nth-child", "(//div[contains(@class,'card')])[2]", "html:nth-child(1) > body:nth-child(2) > div:nth-child(3)"},
		{"no id or class", "(//p)[2]", "html:nth-child(1) > body:nth-child(2) > section:nth-child(5) > p:nth-child(2)"},
		{"escaped id", "//a", `#with\ space`},
		{"escaped leading digit", "//i", `i.\31 st`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := htmlquery.FindOne(doc, tt.target)
			require.NotNil(t, target)
			assert.Equal(t, tt.expected, dom.SelectorFor(target))
		})
	}
}

func TestSelectorFor_RoundTrip(t *testing.T) {
	doc, err := htmlquery.Parse(strings.NewReader(selectorHTML))
	require.NoError(t, err)

	var checked int
	dom.WalkElements(doc, func(n *html.Node) bool {
		sel := dom.SelectorFor(n)
		compiled, err := cascadia.Compile(sel)
		require.NoError(t, err, "selector %q must parse", sel)
		assert.Same(t, n, cascadia.Query(doc, compiled), "selector %q must resolve to its own node", sel)
		checked++
		return true
	})
	assert.Greater(t, checked, 10)
}

func TestSelectorFor_Detached(t *testing.T) {
	n := &html.Node{Type: html.ElementNode, Data: "div"}
	assert.Equal(t, "div:nth-child(1)", dom.SelectorFor(n))
	assert.Empty(t, dom.SelectorFor(nil))
}

func TestEscapeIdent(t *testing.T) {
	tests := map[string]string{
		"plain":   "plain",
		"a b":     `a\ b`,
		"1abc":    `\31 abc`,
		"-1":      `-\31 `,
		"-":       `\-`,
		"a.b#c":   `a\.b\#c`,
		"über":    "über",
		"x:y[z]":  `x\:y\[z\]`,
		"":        "",
		"under_s": "under_s",
	}
	for in, want := range tests {
		assert.Equal(t, want, dom.EscapeIdent(in), "input %q", in)
	}
}

// FuzzSelectorFor checks that generated ids and class lists always produce a
// selector that parses and resolves back to the element.
func FuzzSelectorFor(f *testing.F) {
	f.Add([]byte("seed-data-for-selectors"))
	f.Fuzz(func(t *testing.T, data []byte) {
		consumer := fuzz.NewConsumer(data)
		var attrs struct {
			ID      string
			Classes []string
			UseID   bool
		}
		if err := consumer.GenerateStruct(&attrs); err != nil {
			return
		}

		el := &html.Node{Type: html.ElementNode, Data: "div"}
		if attrs.UseID && attrs.ID != "" && utf8.ValidString(attrs.ID) && !strings.ContainsAny(attrs.ID, " \t\n\r\f\x00") {
			el.Attr = append(el.Attr, html.Attribute{Key: "id", Val: attrs.ID})
		}
		var classes []string
		for _, c := range attrs.Classes {
			if c != "" && utf8.ValidString(c) && !strings.ContainsAny(c, "\x00") {
				classes = append(classes, c)
			}
		}
		if len(classes) > 0 {
			el.Attr = append(el.Attr, html.Attribute{Key: "class", Val: strings.Join(classes, " ")})
		}

		doc, err := htmlquery.Parse(strings.NewReader("<html><body><p>sibling</p></body></html>"))
		require.NoError(t, err)
		body := htmlquery.FindOne(doc, "//body")
		body.AppendChild(el)

		sel := dom.SelectorFor(el)
		compiled, err := cascadia.Compile(sel)
		require.NoError(t, err, "selector %q must parse", sel)
		assert.Same(t, el, cascadia.Query(doc, compiled), "selector %q", sel)
	})
}

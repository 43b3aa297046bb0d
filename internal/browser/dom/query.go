package dom

import (
	"fmt"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/antchfx/htmlquery"
	"github.com/antchfx/xpath"
	"golang.org/x/net/html"
)

// QuerySelector returns the first element of the document matching the CSS
// selector, in document order.
func (d *Document) QuerySelector(selector string) (Element, bool, error) {
	sel, err := cascadia.Compile(selector)
	if err != nil {
		return Element{}, false, fmt.Errorf("%w: css %q: %v", ErrInvalidLocator, selector, err)
	}
	n := cascadia.Query(d.Root, sel)
	if n == nil {
		return Element{}, false, nil
	}
	return d.Element(n), true, nil
}

// QuerySelectorAll returns every element matching the CSS selector.
func (d *Document) QuerySelectorAll(selector string) ([]Element, error) {
	sel, err := cascadia.Compile(selector)
	if err != nil {
		return nil, fmt.Errorf("%w: css %q: %v", ErrInvalidLocator, selector, err)
	}
	nodes := cascadia.QueryAll(d.Root, sel)
	out := make([]Element, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, d.Element(n))
	}
	return out, nil
}

// QueryXPath evaluates the expression and returns the first element node it
// selects.
func (d *Document) QueryXPath(expr string) (Element, bool, error) {
	compiled, err := xpath.Compile(expr)
	if err != nil {
		return Element{}, false, fmt.Errorf("%w: xpath %q: %v", ErrInvalidLocator, expr, err)
	}
	for _, n := range htmlquery.QuerySelectorAll(d.Root, compiled) {
		if n.Type == html.ElementNode {
			return d.Element(n), true, nil
		}
	}
	return Element{}, false, nil
}

// Closest returns the nearest inclusive ancestor of el matching the selector.
func Closest(el Element, selector string) (Element, bool) {
	if el.Node == nil {
		return Element{}, false
	}
	found := goquery.NewDocumentFromNode(el.Node).Selection.Closest(selector)
	if found.Length() == 0 {
		return Element{}, false
	}
	return Element{Node: found.Get(0), Doc: el.Doc}, true
}

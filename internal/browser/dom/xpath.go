// internal/browser/dom/xpath.go
package dom

import (
	"fmt"
	"strings"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
)

// XPathFor generates an XPath expression for a given node. A node with an id
// is addressed as //*[@id="..."]; anything else gets an absolute path of
// tag[n] segments counted among same-tag siblings.
func XPathFor(node *html.Node) string {
	if node == nil || node.Type != html.ElementNode {
		return ""
	}
	if id := htmlquery.SelectAttr(node, "id"); id != "" {
		return fmt.Sprintf("//*[@id=%s]", xpathLiteral(id))
	}

	var path []string
	// Traverse up the tree from the node to the root.
	for n := node; n != nil && n.Type == html.ElementNode; n = n.Parent {
		tag := strings.ToLower(n.Data)

		// XPath indices are 1-based.
		index := 1
		if n.Parent != nil {
			for prev := n.PrevSibling; prev != nil; prev = prev.PrevSibling {
				if prev.Type == html.ElementNode && strings.ToLower(prev.Data) == tag {
					index++
				}
			}
		}
		path = append(path, fmt.Sprintf("%s[%d]", tag, index))
	}

	// Reverse the path to go from root to the node.
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return "/" + strings.Join(path, "/")
}

// xpathLiteral quotes s as an XPath 1.0 string literal. XPath has no escape
// syntax, so a value holding both quote kinds is built with concat().
func xpathLiteral(s string) string {
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	parts := strings.Split(s, `"`)
	quoted := make([]string, 0, len(parts)*2)
	for i, p := range parts {
		if i > 0 {
			quoted = append(quoted, `'"'`)
		}
		if p != "" {
			quoted = append(quoted, `"`+p+`"`)
		}
	}
	return "concat(" + strings.Join(quoted, ", ") + ")"
}

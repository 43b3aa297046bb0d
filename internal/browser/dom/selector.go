// internal/browser/dom/selector.go
package dom

import (
	"fmt"
	"strings"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// SelectorFor synthesizes a CSS selector for n.
//
// Precedence: #id, then tag plus every class token (only when that compound
// selects n first in its own tree), then an nth-child path from the root
// element joined with " > ".
func SelectorFor(n *html.Node) string {
	if n == nil || n.Type != html.ElementNode {
		return ""
	}
	if id := attr(n, "id"); id != "" {
		return "#" + EscapeIdent(id)
	}

	tag := strings.ToLower(n.Data)
	if classes := splitTokens(attr(n, "class")); len(classes) > 0 {
		var b strings.Builder
		b.WriteString(EscapeIdent(tag))
		for _, c := range classes {
			b.WriteByte('.')
			b.WriteString(EscapeIdent(c))
		}
		candidate := b.String()
		if selectsFirst(n, candidate) {
			return candidate
		}
	}
	return nthChildPath(n)
}

// nthChildPath builds html:nth-child(1) > body:nth-child(2) > ... for n. A
// detached node yields a single segment.
func nthChildPath(n *html.Node) string {
	var segments []string
	for cur := n; cur != nil && cur.Type == html.ElementNode; cur = cur.Parent {
		pos := 1
		if cur.Parent != nil {
			for prev := cur.PrevSibling; prev != nil; prev = prev.PrevSibling {
				if prev.Type == html.ElementNode {
					pos++
				}
			}
		}
		segments = append(segments, fmt.Sprintf("%s:nth-child(%d)", EscapeIdent(strings.ToLower(cur.Data)), pos))
	}
	for i, j := 0, len(segments)-1; i < j; i, j = i+1, j-1 {
		segments[i], segments[j] = segments[j], segments[i]
	}
	return strings.Join(segments, " > ")
}

// selectsFirst reports whether the first match of selector in n's tree is n.
func selectsFirst(n *html.Node, selector string) bool {
	sel, err := cascadia.Compile(selector)
	if err != nil {
		return false
	}
	root := n
	for root.Parent != nil {
		root = root.Parent
	}
	if sel.Match(root) {
		return root == n
	}
	return cascadia.Query(root, sel) == n
}

// EscapeIdent escapes s for use as a CSS identifier, following the
// CSSOM serialize-an-identifier rules.
func EscapeIdent(s string) string {
	if s == "" {
		return s
	}
	var b strings.Builder
	runes := []rune(s)
	onlyDashes := strings.Trim(s, "-") == ""
	for i, r := range runes {
		switch {
		case r == 0:
			b.WriteRune('�')
		case (r >= 0x01 && r <= 0x1F) || r == 0x7F:
			fmt.Fprintf(&b, "\\%x ", r)
		case r >= '0' && r <= '9' && leadingDashes(runes[:i]):
			fmt.Fprintf(&b, "\\%x ", r)
		case r == '-' && onlyDashes:
			b.WriteString("\\-")
		case r >= 0x80 || r == '-' || r == '_' ||
			(r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
			b.WriteRune(r)
		default:
			b.WriteByte('\\')
			b.WriteRune(r)
		}
	}
	return b.String()
}

func leadingDashes(prefix []rune) bool {
	for _, r := range prefix {
		if r != '-' {
			return false
		}
	}
	return true
}

// splitTokens splits an attribute value on ASCII whitespace, the separator
// HTML uses for class lists.
func splitTokens(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\f'
	})
}

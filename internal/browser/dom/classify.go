// internal/browser/dom/classify.go
package dom

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// interactiveTags are interactive by tag alone. Anchors additionally need a
// usable href, see IsInteractive.
var interactiveTags = map[string]bool{
	"button":   true,
	"a":        true,
	"input":    true,
	"textarea": true,
	"select":   true,
	"label":    true,
	"area":     true,
	"canvas":   true,
}

var formControlTags = map[string]bool{
	"input":    true,
	"textarea": true,
	"select":   true,
	"button":   true,
}

var textTags = map[string]bool{
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"p": true, "label": true, "li": true,
}

// IsVisible reports whether the element renders: its computed display is not
// none, its visibility is not hidden and its bounding rect has area.
func IsVisible(el Element) bool {
	if el.Node == nil {
		return false
	}
	st := el.Style()
	if strings.EqualFold(st.Display, "none") {
		return false
	}
	switch strings.ToLower(st.Visibility) {
	case "hidden", "collapse":
		return false
	}
	return !el.Rect().IsEmpty()
}

// IsInViewport reports whether the bounding rect intersects the viewport of
// the element's own document.
func IsInViewport(el Element) bool {
	if el.Node == nil || el.Doc == nil {
		return false
	}
	r := el.Rect()
	vp := el.Doc.Viewport
	return r.Bottom() >= 0 && r.Right() >= 0 && r.Y <= vp.Height && r.X <= vp.Width
}

// IsInteractive reports whether the element is a control by tag, or carries a
// non-presentational ARIA role.
func IsInteractive(el Element) bool {
	if el.Node == nil {
		return false
	}
	tag := el.Tag()
	if interactiveTags[tag] {
		if tag == "a" {
			href := strings.TrimSpace(el.AttrOr("href", ""))
			if href != "" && href != "#" {
				return true
			}
		} else {
			return true
		}
	}
	return hasWidgetRole(el)
}

// IsImportant is the gate of the important-elements extraction mode.
func IsImportant(el Element) bool {
	if el.Node == nil {
		return false
	}
	tag := el.Tag()
	switch {
	case tag == "canvas":
		// Canvas editors have no text; only geometry counts.
		return !el.Rect().IsEmpty()
	case formControlTags[tag], tag == "a", tag == "area":
		return IsVisible(el)
	case textTags[tag]:
		return IsVisible(el) && VisibleText(el.Node) != ""
	case tag == "div", tag == "span":
		return IsVisible(el) && (IsContentEditable(el) || hasEditableHint(el))
	case tag == "img":
		return IsVisible(el)
	default:
		return IsVisible(el) && hasWidgetRole(el)
	}
}

// IsContentEditable reports whether the element itself is marked editable.
func IsContentEditable(el Element) bool {
	v, ok := el.Attr("contenteditable")
	if !ok {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "true", "plaintext-only":
		return true
	}
	return false
}

// IsTextInput reports whether the element accepts typed text through its
// value property.
func IsTextInput(el Element) bool {
	switch el.Tag() {
	case "textarea":
		return true
	case "input":
		switch strings.ToLower(el.AttrOr("type", "text")) {
		// These are click targets or carry no text.
		case "hidden", "submit", "button", "reset", "image", "checkbox", "radio", "file", "range", "color":
			return false
		default:
			return true
		}
	}
	return false
}

func hasEditableHint(el Element) bool {
	for _, c := range el.Classes() {
		if strings.Contains(strings.ToLower(c), "editable") {
			return true
		}
	}
	return false
}

func hasWidgetRole(el Element) bool {
	role := strings.ToLower(strings.TrimSpace(el.AttrOr("role", "")))
	return role != "" && role != "presentation" && role != "none"
}

// Role returns the explicit ARIA role, or the implicit role of the tag.
func Role(el Element) string {
	if role := strings.TrimSpace(el.AttrOr("role", "")); role != "" {
		return strings.Fields(role)[0]
	}
	switch tag := el.Tag(); tag {
	case "a", "area":
		if _, ok := el.Attr("href"); ok {
			return "link"
		}
	case "button":
		return "button"
	case "input":
		switch strings.ToLower(el.AttrOr("type", "text")) {
		case "checkbox":
			return "checkbox"
		case "radio":
			return "radio"
		case "submit", "button", "reset", "image":
			return "button"
		case "range":
			return "slider"
		case "number":
			return "spinbutton"
		case "search":
			return "searchbox"
		case "hidden", "file", "color", "date", "datetime-local", "month", "time", "week", "password":
			return ""
		default:
			return "textbox"
		}
	case "textarea":
		return "textbox"
	case "select":
		if _, multi := el.Attr("multiple"); multi {
			return "listbox"
		}
		return "combobox"
	case "h1", "h2", "h3", "h4", "h5", "h6":
		return "heading"
	case "img":
		if alt, ok := el.Attr("alt"); ok && alt == "" {
			return "presentation"
		}
		return "img"
	case "li":
		return "listitem"
	case "p":
		return "paragraph"
	case "form":
		return "form"
	}
	return ""
}

// AccessibleLabel approximates the accessible name of the element from its
// ARIA attributes, associated labels and descriptive attributes.
func AccessibleLabel(el Element) string {
	if el.Node == nil {
		return ""
	}
	if v := CollapseSpace(el.AttrOr("aria-label", "")); v != "" {
		return v
	}
	if ids := strings.Fields(el.AttrOr("aria-labelledby", "")); len(ids) > 0 && el.Doc != nil {
		var parts []string
		for _, id := range ids {
			if ref, ok := elementByID(el.Doc, id); ok {
				if t := VisibleText(ref.Node); t != "" {
					parts = append(parts, t)
				}
			}
		}
		if len(parts) > 0 {
			return strings.Join(parts, " ")
		}
	}
	if id := el.ID(); id != "" && el.Doc != nil {
		labels := goquery.NewDocumentFromNode(el.Doc.Root).Find(`label[for=` + cssString(id) + `]`)
		if t := CollapseSpace(labels.First().Text()); t != "" {
			return t
		}
	}
	if el.Tag() != "label" {
		if lbl, ok := Closest(el, "label"); ok {
			if t := VisibleText(lbl.Node); t != "" {
				return t
			}
		}
	}
	for _, name := range []string{"placeholder", "alt", "title"} {
		if v := CollapseSpace(el.AttrOr(name, "")); v != "" {
			return v
		}
	}
	return ""
}

func elementByID(d *Document, id string) (Element, bool) {
	var found Element
	walkElements(d.Root, func(n *html.Node) bool {
		if found.Node != nil {
			return false
		}
		if attr(n, "id") == id {
			found = d.Element(n)
			return false
		}
		return true
	})
	return found, found.Node != nil
}

// cssString quotes s as a CSS string token.
func cssString(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\a `)
	return `"` + r.Replace(s) + `"`
}

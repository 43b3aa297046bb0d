package indexer

import (
	"strings"

	"golang.org/x/net/html"
)

// Category names accepted in an elements type filter.
const (
	CategoryAll         = "ALL"
	CategoryButton      = "BUTTON"
	CategoryInputFields = "INPUT_FIELDS"
	CategoryDropdown    = "DROPDOWN"
	CategoryLink        = "LINK"
	CategoryCheckbox    = "CHECKBOX"
	CategoryText        = "TEXT"
	CategoryEditable    = "EDITABLE"
	CategoryCanvas      = "CANVAS"
	CategoryImage       = "IMAGE"
	CategoryOther       = "OTHER"
)

// importantTags is the default tag set when no category is requested.
var importantTags = tagSet("a", "button", "input", "textarea", "select", "label", "area", "canvas",
	"h1", "h2", "h3", "h4", "h5", "h6", "p", "li", "div", "span")

type category struct {
	tags map[string]bool
	// narrow further restricts elements whose tag matched. Nil admits all.
	narrow func(n *html.Node) bool
}

var categories = map[string]category{
	CategoryButton: {tags: tagSet("button", "input"), narrow: func(n *html.Node) bool {
		if !strings.EqualFold(n.Data, "input") {
			return true
		}
		switch inputType(n) {
		case "submit", "button", "reset":
			return true
		}
		return false
	}},
	CategoryInputFields: {tags: tagSet("input", "textarea")},
	CategoryDropdown:    {tags: tagSet("select")},
	CategoryLink:        {tags: tagSet("a")},
	CategoryCheckbox: {tags: tagSet("input"), narrow: func(n *html.Node) bool {
		t := inputType(n)
		return t == "checkbox" || t == "radio"
	}},
	CategoryText:     {tags: tagSet("p", "h1", "h2", "h3", "h4", "h5", "h6", "label", "li")},
	CategoryEditable: {tags: tagSet("div", "span")},
	CategoryCanvas:   {tags: tagSet("canvas")},
	CategoryImage:    {tags: tagSet("img", "area")},
}

// claimedTags is every tag some category names. OTHER takes the rest.
var claimedTags = func() map[string]bool {
	out := make(map[string]bool)
	for _, c := range categories {
		for t := range c.tags {
			out[t] = true
		}
	}
	return out
}()

// tagFilter decides which elements are candidates before the mode gate.
type tagFilter struct {
	all     bool
	other   bool
	members []category
}

// newTagFilter resolves category names. Empty input, or ALL anywhere in it,
// selects the important tags. Unknown names are returned for logging.
func newTagFilter(names []string) (tagFilter, []string) {
	var f tagFilter
	var unknown []string
	if len(names) == 0 {
		f.all = true
		return f, nil
	}
	seen := make(map[string]bool)
	for _, raw := range names {
		name := strings.ToUpper(strings.TrimSpace(raw))
		if seen[name] || name == "" {
			continue
		}
		seen[name] = true
		switch name {
		case CategoryAll:
			return tagFilter{all: true}, nil
		case CategoryOther:
			f.other = true
		default:
			c, ok := categories[name]
			if !ok {
				unknown = append(unknown, raw)
				continue
			}
			f.members = append(f.members, c)
		}
	}
	return f, unknown
}

func (f tagFilter) matches(n *html.Node) bool {
	tag := strings.ToLower(n.Data)
	if f.all {
		return importantTags[tag]
	}
	if f.other && !claimedTags[tag] {
		return true
	}
	for _, c := range f.members {
		if c.tags[tag] && (c.narrow == nil || c.narrow(n)) {
			return true
		}
	}
	return false
}

func tagSet(tags ...string) map[string]bool {
	out := make(map[string]bool, len(tags))
	for _, t := range tags {
		out[t] = true
	}
	return out
}

func inputType(n *html.Node) string {
	for _, a := range n.Attr {
		if a.Namespace == "" && strings.EqualFold(a.Key, "type") {
			return strings.ToLower(strings.TrimSpace(a.Val))
		}
	}
	return "text"
}

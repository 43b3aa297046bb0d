// internal/browser/style/style.go
package style

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/andybalholm/cascadia"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/pagepilot/internal/browser/parser"
	"github.com/xkilldash9x/pagepilot/internal/observability"
)

// -- Constants and Configuration --

const (
	BaseFontSize      = 16.0 // Default root font size.
	DefaultLineHeight = 1.2  // Default multiplier for 'line-height: normal'.
)

// DefaultUserAgentCSS hides the elements a browser never renders and gives
// block-level and replaced elements their usual display values.
const DefaultUserAgentCSS = `
head, script, style, template, title, meta, link, base, noscript, datalist {
    display: none;
}

html, body, div, p, h1, h2, h3, h4, h5, h6, ul, ol, form, header, footer,
section, article, nav, main, aside, fieldset, table, tr, blockquote, pre, hr,
dl, dt, dd, figure, figcaption, details, summary, address {
    display: block;
}

li { display: list-item; }

input, button, textarea, select, img, canvas, iframe, video {
    display: inline-block;
}

input[type="hidden"], [hidden] {
    display: none;
}

h1 { font-size: 2em; }
h2 { font-size: 1.5em; }
h3 { font-size: 1.17em; }
`

// inheritableProperties are copied from the parent when the cascade leaves
// them unset.
var inheritableProperties = map[parser.Property]bool{
	"color": true, "font-family": true, "font-size": true, "font-weight": true,
	"line-height": true, "text-align": true, "visibility": true, "cursor": true,
}

// -- Style Engine --

// Engine orchestrates the styling process: the cascade across origins,
// specificity ordering and inheritance.
type Engine struct {
	userAgentSheets []compiledSheet
	authorSheets    []compiledSheet
	viewportWidth   float64
	viewportHeight  float64
	logger          *zap.Logger
}

type compiledRule struct {
	selectors    []cascadia.Sel
	declarations []parser.Declaration
}

type compiledSheet []compiledRule

// NewEngine creates a styling engine primed with the user agent sheet.
func NewEngine() *Engine {
	se := &Engine{
		logger: observability.GetLogger().Named("style"),
	}
	se.userAgentSheets = []compiledSheet{se.compile(parser.NewParser(DefaultUserAgentCSS).Parse())}
	return se
}

// AddAuthorSheet adds a stylesheet provided by the webpage author.
func (se *Engine) AddAuthorSheet(sheet parser.StyleSheet) {
	se.authorSheets = append(se.authorSheets, se.compile(sheet))
}

// SetViewport sets the dimensions used for viewport-relative units.
func (se *Engine) SetViewport(width, height float64) {
	se.viewportWidth = width
	se.viewportHeight = height
}

// compile turns raw selector text into matchers. Selectors the matcher
// cannot parse (pseudo-elements, vendor extensions) never match.
func (se *Engine) compile(sheet parser.StyleSheet) compiledSheet {
	out := make(compiledSheet, 0, len(sheet.Rules))
	for _, rule := range sheet.Rules {
		cr := compiledRule{declarations: rule.Declarations}
		for _, raw := range rule.Selectors {
			sel, err := cascadia.Parse(raw)
			if err != nil {
				se.logger.Debug("Skipping unsupported selector", zap.String("selector", raw), zap.Error(err))
				continue
			}
			cr.selectors = append(cr.selectors, sel)
		}
		if len(cr.selectors) > 0 {
			out = append(out, cr)
		}
	}
	return out
}

// -- Canonical Data Structures --

// StyledNode represents a DOM node combined with its computed styles.
type StyledNode struct {
	Node           *html.Node
	ComputedStyles map[parser.Property]parser.Value
	Children       []*StyledNode
}

// -- Style Tree Construction (The Cascade and Inheritance) --

// BuildTree styles node and its descendants. Comment and doctype nodes are
// dropped; text nodes are kept so layout can size their containers.
func (se *Engine) BuildTree(node *html.Node, parent *StyledNode) *StyledNode {
	switch node.Type {
	case html.CommentNode, html.DoctypeNode:
		return nil
	}

	computedStyles := make(map[parser.Property]parser.Value)
	if node.Type == html.ElementNode {
		computedStyles = se.CalculateStyles(node)
	}
	styledNode := &StyledNode{
		Node:           node,
		ComputedStyles: computedStyles,
	}

	if parent != nil {
		se.inheritStyles(styledNode, parent)
	} else {
		se.applyRootDefaults(styledNode)
	}
	se.resolveRelativeValues(styledNode, parent)

	for c := node.FirstChild; c != nil; c = c.NextSibling {
		if childStyled := se.BuildTree(c, styledNode); childStyled != nil {
			styledNode.Children = append(styledNode.Children, childStyled)
		}
	}
	return styledNode
}

func (se *Engine) applyRootDefaults(sn *StyledNode) {
	if _, exists := sn.ComputedStyles["font-size"]; !exists {
		sn.ComputedStyles["font-size"] = parser.Value(fmt.Sprintf("%fpx", BaseFontSize))
	}
}

func (se *Engine) inheritStyles(child, parent *StyledNode) {
	for prop, val := range child.ComputedStyles {
		if val == "inherit" {
			if parentVal, parentHas := parent.ComputedStyles[prop]; parentHas {
				child.ComputedStyles[prop] = parentVal
			} else {
				delete(child.ComputedStyles, prop)
			}
		}
	}
	for prop := range inheritableProperties {
		if _, exists := child.ComputedStyles[prop]; !exists {
			if val, parentHas := parent.ComputedStyles[prop]; parentHas {
				child.ComputedStyles[prop] = val
			}
		}
	}
}

func (se *Engine) resolveRelativeValues(sn *StyledNode, parent *StyledNode) {
	parentFontSize := BaseFontSize
	if parent != nil {
		parentFontSize = GetFontSize(parent)
	}
	if fontSizeStr, ok := sn.ComputedStyles["font-size"]; ok {
		resolved := ParseLengthWithUnits(string(fontSizeStr), parentFontSize, BaseFontSize, parentFontSize, se.viewportWidth, se.viewportHeight)
		sn.ComputedStyles["font-size"] = parser.Value(fmt.Sprintf("%fpx", resolved))
	}
}

type StyleOrigin int

const (
	OriginUserAgent StyleOrigin = iota
	OriginAuthor
	OriginInline
)

type DeclarationWithContext struct {
	Declaration parser.Declaration
	Specificity cascadia.Specificity
	Origin      StyleOrigin
	Order       int
}

// CalculateStyles runs the cascade for a single element.
func (se *Engine) CalculateStyles(node *html.Node) map[parser.Property]parser.Value {
	var declarations []DeclarationWithContext
	order := 0

	processSheets := func(sheets []compiledSheet, origin StyleOrigin) {
		for _, sheet := range sheets {
			for _, rule := range sheet {
				matched, ok := bestMatch(node, rule.selectors)
				if !ok {
					continue
				}
				for _, decl := range rule.declarations {
					declarations = append(declarations, DeclarationWithContext{
						Declaration: decl,
						Specificity: matched,
						Origin:      origin,
						Order:       order,
					})
					order++
				}
			}
		}
	}

	processSheets(se.userAgentSheets, OriginUserAgent)
	processSheets(se.authorSheets, OriginAuthor)

	for _, attr := range node.Attr {
		if attr.Namespace == "" && strings.EqualFold(attr.Key, "style") {
			for _, decl := range parser.ParseInline(attr.Val) {
				declarations = append(declarations, DeclarationWithContext{
					Declaration: decl,
					Specificity: cascadia.Specificity{1, 0, 0},
					Origin:      OriginInline,
					Order:       order,
				})
				order++
			}
		}
	}

	sort.SliceStable(declarations, func(i, j int) bool {
		d1, d2 := declarations[i], declarations[j]
		p1, p2 := calculateCascadePriority(d1), calculateCascadePriority(d2)
		if p1 != p2 {
			return p1 < p2
		}
		if d1.Specificity != d2.Specificity {
			return d1.Specificity.Less(d2.Specificity)
		}
		return d1.Order < d2.Order
	})

	styles := make(map[parser.Property]parser.Value)
	for _, declCtx := range declarations {
		styles[declCtx.Declaration.Property] = parser.Value(strings.ToLower(strings.TrimSpace(string(declCtx.Declaration.Value))))
	}
	expandInset(styles)
	return styles
}

// bestMatch returns the highest specificity among the selectors of a rule
// that match node.
func bestMatch(node *html.Node, selectors []cascadia.Sel) (cascadia.Specificity, bool) {
	var (
		best  cascadia.Specificity
		found bool
	)
	for _, sel := range selectors {
		if !sel.Match(node) {
			continue
		}
		if sp := sel.Specificity(); !found || best.Less(sp) {
			best = sp
			found = true
		}
	}
	return best, found
}

// expandInset fills the longhand offsets from the inset shorthand without
// overriding longhands set by the cascade.
func expandInset(styles map[parser.Property]parser.Value) {
	val, ok := styles["inset"]
	if !ok {
		return
	}
	parts := strings.Fields(string(val))
	var top, right, bottom, left string
	switch len(parts) {
	case 1:
		top, right, bottom, left = parts[0], parts[0], parts[0], parts[0]
	case 2:
		top, right, bottom, left = parts[0], parts[1], parts[0], parts[1]
	case 3:
		top, right, bottom, left = parts[0], parts[1], parts[2], parts[1]
	case 4:
		top, right, bottom, left = parts[0], parts[1], parts[2], parts[3]
	default:
		return
	}
	for prop, v := range map[parser.Property]string{"top": top, "right": right, "bottom": bottom, "left": left} {
		if _, set := styles[prop]; !set {
			styles[prop] = parser.Value(v)
		}
	}
}

func calculateCascadePriority(d DeclarationWithContext) int {
	isImportant := d.Declaration.Important
	switch d.Origin {
	case OriginUserAgent:
		if isImportant {
			return 5
		}
		return 1
	case OriginAuthor:
		if isImportant {
			return 4
		}
		return 2
	case OriginInline:
		if isImportant {
			return 4
		}
		return 3
	}
	return 0
}

// Lookup returns the computed value of property, or fallback.
func (sn *StyledNode) Lookup(property, fallback string) string {
	if v, ok := sn.ComputedStyles[parser.Property(property)]; ok {
		return string(v)
	}
	return fallback
}

type DisplayType int

const (
	DisplayInline DisplayType = iota
	DisplayBlock
	DisplayInlineBlock
	DisplayListItem
	DisplayFlex
	DisplayContents
	DisplayNone
)

// Display returns the element's display type. Values the layout engine does
// not model collapse onto their closest supported outer display.
func (sn *StyledNode) Display() DisplayType {
	if sn.Node.Type != html.ElementNode {
		return DisplayInline
	}
	switch sn.Lookup("display", "") {
	case "none":
		return DisplayNone
	case "block", "grid", "table", "table-row", "table-cell", "flow-root":
		return DisplayBlock
	case "list-item":
		return DisplayListItem
	case "inline-block", "inline-flex", "inline-grid", "inline-table":
		return DisplayInlineBlock
	case "flex":
		return DisplayFlex
	case "contents":
		return DisplayContents
	case "inline":
		return DisplayInline
	}
	return DisplayInline
}

// DisplayKeyword is the computed display as a CSS keyword, the value
// getComputedStyle reports.
func (sn *StyledNode) DisplayKeyword() string {
	if v := sn.Lookup("display", ""); v != "" {
		return v
	}
	return "inline"
}

type PositionType int

const (
	PositionStatic PositionType = iota
	PositionRelative
	PositionAbsolute
	PositionFixed
	PositionSticky
)

func (sn *StyledNode) Position() PositionType {
	switch sn.Lookup("position", "static") {
	case "relative":
		return PositionRelative
	case "absolute":
		return PositionAbsolute
	case "fixed":
		return PositionFixed
	case "sticky":
		return PositionSticky
	default:
		return PositionStatic
	}
}

// Visibility returns the computed visibility keyword.
func (sn *StyledNode) Visibility() string {
	return sn.Lookup("visibility", "visible")
}

// IsVisible reports whether the node paints: display is not none, visibility
// is not hidden and opacity is above zero.
func (sn *StyledNode) IsVisible() bool {
	if sn.Display() == DisplayNone {
		return false
	}
	switch sn.Visibility() {
	case "hidden", "collapse":
		return false
	}
	if opacity, err := strconv.ParseFloat(sn.Lookup("opacity", "1"), 64); err == nil && opacity <= 0 {
		return false
	}
	return true
}

// -- Lengths --

func GetFontSize(sn *StyledNode) float64 {
	if sn == nil {
		return BaseFontSize
	}
	return ParseAbsoluteLength(sn.Lookup("font-size", fmt.Sprintf("%fpx", BaseFontSize)))
}

// ParseLengthWithUnits resolves a CSS length to pixels. Percentages resolve
// against referenceDimension; auto, normal and unparsable values yield 0.
func ParseLengthWithUnits(value string, parentFontSize, rootFontSize, referenceDimension, viewportWidth, viewportHeight float64) float64 {
	value = strings.TrimSpace(strings.ToLower(value))
	if value == "" || value == "auto" || value == "normal" {
		return 0.0
	}

	units := []struct {
		suffix string
		scale  func(float64) float64
	}{
		{"%", func(v float64) float64 { return referenceDimension * v / 100.0 }},
		{"px", func(v float64) float64 { return v }},
		// "rem" has to be checked before "em".
		{"rem", func(v float64) float64 { return v * rootFontSize }},
		{"em", func(v float64) float64 { return v * parentFontSize }},
		{"vmin", func(v float64) float64 { return min(viewportWidth, viewportHeight) * v / 100.0 }},
		{"vmax", func(v float64) float64 { return max(viewportWidth, viewportHeight) * v / 100.0 }},
		{"vw", func(v float64) float64 { return viewportWidth * v / 100.0 }},
		{"vh", func(v float64) float64 { return viewportHeight * v / 100.0 }},
		{"pt", func(v float64) float64 { return v * 96.0 / 72.0 }},
	}
	for _, u := range units {
		if strings.HasSuffix(value, u.suffix) {
			if v, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(value, u.suffix)), 64); err == nil {
				return u.scale(v)
			}
			return 0.0
		}
	}
	// Unitless values are treated as px.
	if v, err := strconv.ParseFloat(value, 64); err == nil {
		return v
	}
	return 0.0
}

// IsAuto reports whether a length is absent or auto.
func IsAuto(value string) bool {
	value = strings.TrimSpace(value)
	return value == "" || value == "auto"
}

func ParseAbsoluteLength(value string) float64 {
	return ParseLengthWithUnits(value, 0, 0, 0, 0, 0)
}

package memdom

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/pagepilot/internal/browser/dom"
)

var _ dom.Driver = (*Page)(nil)

// Click fires a click event at el and, unless a listener cancels it, runs
// the activation behavior of el or of its nearest activatable ancestor.
// Like HTMLElement.click() it does not move focus.
func (p *Page) Click(ctx context.Context, el dom.Element) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n, err := p.liveNode(el)
	if err != nil {
		return err
	}
	p.click(n, 0)
	return nil
}

// click runs one activation. depth guards label chains.
func (p *Page) click(n *html.Node, depth int) {
	if depth > 2 || isDisabled(n) {
		return
	}
	target := activationTarget(n)

	// Checkable inputs flip before the event and flip back if it is cancelled.
	var restore func()
	if target != nil && isCheckable(target) {
		restore = p.preActivate(target)
	}

	ev := p.fire(n, dom.Event{Type: "click", Bubbles: true})
	if ev.DefaultPrevented() {
		if restore != nil {
			restore()
		}
		return
	}
	if target == nil {
		return
	}

	tag := strings.ToLower(target.Data)
	switch {
	case restore != nil:
		p.fire(target, dom.Event{Type: "input", Bubbles: true})
		p.fire(target, dom.Event{Type: "change", Bubbles: true})
	case tag == "label":
		if control := p.labelControl(target); control != nil && !contains(control, n) {
			p.click(control, depth+1)
		}
	case tag == "a" || tag == "area":
		p.follow(target)
	case isSubmitter(target):
		if form := p.formOwner(target); form != nil {
			p.submit(form)
		}
	case isResetter(target):
		if form := p.formOwner(target); form != nil {
			p.reset(form)
		}
	}
}

// preActivate toggles a checkbox or checks a radio button and returns a
// func that undoes it.
func (p *Page) preActivate(n *html.Node) func() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if strings.EqualFold(attr(n, "type"), "checkbox") {
		was := p.checkedLocked(n)
		st := p.stateLocked(n)
		st.checked, st.checkedSet = !was, true
		return func() {
			p.mu.Lock()
			defer p.mu.Unlock()
			st.checked = was
		}
	}

	group := p.radioGroupLocked(n)
	prev := make(map[*html.Node]bool, len(group))
	for _, r := range group {
		prev[r] = p.checkedLocked(r)
		st := p.stateLocked(r)
		st.checked, st.checkedSet = r == n, true
	}
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		for r, was := range prev {
			p.stateLocked(r).checked = was
		}
	}
}

// radioGroupLocked returns every radio button sharing n's name and form owner.
func (p *Page) radioGroupLocked(n *html.Node) []*html.Node {
	name := attr(n, "name")
	if name == "" {
		return []*html.Node{n}
	}
	owner := p.formOwnerLocked(n)
	scope := documentRoot(n)
	var group []*html.Node
	dom.WalkElements(scope, func(c *html.Node) bool {
		if strings.EqualFold(c.Data, "input") && strings.EqualFold(attr(c, "type"), "radio") &&
			attr(c, "name") == name && p.formOwnerLocked(c) == owner {
			group = append(group, c)
		}
		return true
	})
	return group
}

func (p *Page) follow(link *html.Node) {
	href, ok := attrOK(link, "href")
	if !ok {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	resolved := href
	if f := p.frameOfLocked(link); f != nil {
		if base, err := url.Parse(f.url); err == nil {
			if ref, err := url.Parse(href); err == nil {
				resolved = base.ResolveReference(ref).String()
			}
		}
	}
	p.followed = append(p.followed, resolved)
	p.logger.Debug("Link activated", zap.String("href", resolved))
}

// Dispatch fires ev at el. A zero element targets the document node of
// el.Doc, or the top document when there is none.
func (p *Page) Dispatch(ctx context.Context, el dom.Element, ev dom.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !el.IsZero() {
		n, err := p.liveNode(el)
		if err != nil {
			return err
		}
		p.fire(n, ev)
		return nil
	}

	p.mu.Lock()
	target := p.top.root
	if el.Doc != nil {
		root, ok := el.Doc.Handle.(*html.Node)
		if !ok || p.docs[root] == nil {
			p.mu.Unlock()
			return ErrDetached
		}
		target = root
	}
	p.mu.Unlock()
	p.fire(target, ev)
	return nil
}

// Focus moves focus to el, firing blur on the previous holder.
func (p *Page) Focus(ctx context.Context, el dom.Element) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n, err := p.liveNode(el)
	if err != nil {
		return err
	}
	p.mu.Lock()
	prev := p.focused
	p.focused = n
	p.mu.Unlock()

	if prev == n {
		return nil
	}
	if prev != nil {
		p.fire(prev, dom.Event{Type: "blur"})
		p.fire(prev, dom.Event{Type: "focusout", Bubbles: true})
	}
	p.fire(n, dom.Event{Type: "focus"})
	p.fire(n, dom.Event{Type: "focusin", Bubbles: true})
	return nil
}

// SetValue assigns the value property. For a select the value must match an
// option's value or, failing that, its text. No events are fired.
func (p *Page) SetValue(ctx context.Context, el dom.Element, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n, err := p.liveNode(el)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	switch strings.ToLower(n.Data) {
	case "input", "textarea":
		st := p.stateLocked(n)
		st.value, st.dirty = value, true
		return nil
	case "select":
		opt := matchOption(n, value)
		if opt == nil {
			return fmt.Errorf("memdom: select has no option %q", value)
		}
		dom.WalkElements(n, func(c *html.Node) bool {
			if strings.EqualFold(c.Data, "option") {
				removeAttr(c, "selected")
			}
			return true
		})
		setAttr(opt, "selected", "")
		st := p.stateLocked(n)
		st.value, st.dirty = optionValue(opt), true
		p.notifyLocked()
		return nil
	}
	return fmt.Errorf("memdom: <%s> has no value property", strings.ToLower(n.Data))
}

// InsertText inserts text at the end of a focused editable element, the way
// execCommand("insertText") does with the caret at the end. beforeinput is
// cancellable; input follows the insertion.
func (p *Page) InsertText(ctx context.Context, el dom.Element, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n, err := p.liveNode(el)
	if err != nil {
		return err
	}

	p.mu.Lock()
	focused := p.focused
	p.mu.Unlock()
	if !isEditable(n) {
		return fmt.Errorf("memdom: <%s> is not editable", strings.ToLower(n.Data))
	}
	if focused == nil || !(contains(n, focused) || contains(focused, n)) {
		return fmt.Errorf("memdom: editable element does not have focus")
	}

	before := p.fire(n, dom.Event{Type: "beforeinput", Bubbles: true, Data: text})
	if before.DefaultPrevented() {
		return nil
	}

	p.mu.Lock()
	if last := n.LastChild; last != nil && last.Type == html.TextNode {
		last.Data += text
	} else {
		n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
	}
	p.notifyLocked()
	p.mu.Unlock()

	p.fire(n, dom.Event{Type: "input", Bubbles: true, Data: text})
	return nil
}

// Paste dispatches a paste event carrying text. Script-dispatched paste
// events have no default action; handling is up to the page's listeners.
func (p *Page) Paste(ctx context.Context, el dom.Element, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n, err := p.liveNode(el)
	if err != nil {
		return err
	}
	p.fire(n, dom.Event{Type: "paste", Bubbles: true, ClipboardText: text})
	return nil
}

// SetInnerText replaces the children of el with a single text node.
func (p *Page) SetInnerText(ctx context.Context, el dom.Element, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n, err := p.liveNode(el)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		c = next
	}
	if text != "" {
		n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
	}
	p.notifyLocked()
	return nil
}

// ScrollIntoView scrolls the window so that el is centered, clamped to the
// scrollable area. Elements of nested frames bring their outermost iframe
// into view.
func (p *Page) ScrollIntoView(ctx context.Context, el dom.Element) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n, err := p.liveNode(el)
	if err != nil {
		return err
	}

	p.mu.Lock()
	for f := p.frameOfLocked(n); f != nil && f.host != nil; f = f.parent {
		n = f.host
	}
	_, geometry := p.layoutLocked(p.top, p.viewport)
	place, ok := geometry[n]
	if !ok || place.Fixed {
		p.mu.Unlock()
		return nil
	}
	cx := place.Rect.X + place.Rect.Width/2 - p.viewport.Width/2
	cy := place.Rect.Y + place.Rect.Height/2 - p.viewport.Height/2
	p.scrollToLocked(cx, cy)
	root := p.top.root
	p.mu.Unlock()

	p.fire(root, dom.Event{Type: "scroll"})
	return nil
}

// ScrollBy scrolls the window by a signed offset.
func (p *Page) ScrollBy(ctx context.Context, dx, dy float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	p.scrollToLocked(p.scrollX+dx, p.scrollY+dy)
	root := p.top.root
	p.mu.Unlock()

	p.fire(root, dom.Event{Type: "scroll"})
	return nil
}

// ScrollToEnd scrolls the window to the bottom of the document.
func (p *Page) ScrollToEnd(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	_, height := p.documentSizeLocked()
	p.scrollToLocked(p.scrollX, height)
	root := p.top.root
	p.mu.Unlock()

	p.fire(root, dom.Event{Type: "scroll"})
	return nil
}

func (p *Page) scrollToLocked(x, y float64) {
	width, height := p.documentSizeLocked()
	p.scrollX = clamp(x, 0, width-p.viewport.Width)
	p.scrollY = clamp(y, 0, height-p.viewport.Height)
}

// Submit fires a cancellable submit event at the form and, unless it is
// cancelled, records the submission. Nothing is sent.
func (p *Page) Submit(ctx context.Context, form dom.Element) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n, err := p.liveNode(form)
	if err != nil {
		return err
	}
	if !strings.EqualFold(n.Data, "form") {
		return fmt.Errorf("memdom: <%s> is not a form", strings.ToLower(n.Data))
	}
	p.submit(n)
	return nil
}

func (p *Page) submit(form *html.Node) {
	if p.fire(form, dom.Event{Type: "submit", Bubbles: true}).DefaultPrevented() {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	sub := Submission{
		Action: attr(form, "action"),
		Method: strings.ToUpper(attr(form, "method")),
		Values: url.Values{},
	}
	if sub.Method == "" {
		sub.Method = "GET"
	}
	if f := p.frameOfLocked(form); f != nil {
		if base, err := url.Parse(f.url); err == nil {
			if ref, err := url.Parse(sub.Action); err == nil {
				sub.Action = base.ResolveReference(ref).String()
			}
		}
	}
	for _, c := range p.formControlsLocked(form) {
		name := attr(c, "name")
		if name == "" || isDisabled(c) || isSubmitter(c) || isResetter(c) {
			continue
		}
		if isCheckable(c) {
			if p.checkedLocked(c) {
				sub.Values.Add(name, attrOr(c, "value", "on"))
			}
			continue
		}
		sub.Values.Add(name, p.valueLocked(c))
	}
	p.submissions = append(p.submissions, sub)
	p.logger.Debug("Form submitted", zap.String("action", sub.Action), zap.String("method", sub.Method))
}

func (p *Page) reset(form *html.Node) {
	if p.fire(form, dom.Event{Type: "reset", Bubbles: true}).DefaultPrevented() {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, c := range p.formControlsLocked(form) {
		delete(p.controls, c)
	}
}

// formControlsLocked returns the listed controls whose form owner is form.
func (p *Page) formControlsLocked(form *html.Node) []*html.Node {
	var out []*html.Node
	dom.WalkElements(documentRoot(form), func(c *html.Node) bool {
		switch strings.ToLower(c.Data) {
		case "input", "select", "textarea", "button":
			if p.formOwnerLocked(c) == form {
				out = append(out, c)
			}
		}
		return true
	})
	return out
}

func (p *Page) formOwner(n *html.Node) *html.Node {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.formOwnerLocked(n)
}

// formOwnerLocked honors the form attribute before the nearest ancestor form.
func (p *Page) formOwnerLocked(n *html.Node) *html.Node {
	if id, ok := attrOK(n, "form"); ok {
		if f := findByID(documentRoot(n), id); f != nil && strings.EqualFold(f.Data, "form") {
			return f
		}
		return nil
	}
	for a := n.Parent; a != nil; a = a.Parent {
		if a.Type == html.ElementNode && strings.EqualFold(a.Data, "form") {
			return a
		}
	}
	return nil
}

// labelControl returns the labeled control of a label element.
func (p *Page) labelControl(label *html.Node) *html.Node {
	p.mu.Lock()
	defer p.mu.Unlock()
	if id, ok := attrOK(label, "for"); ok {
		return findByID(documentRoot(label), id)
	}
	var control *html.Node
	dom.WalkElements(label, func(c *html.Node) bool {
		if control != nil {
			return false
		}
		if c != label && isLabelable(c) {
			control = c
			return false
		}
		return true
	})
	return control
}

// activationTarget returns n or its nearest ancestor with activation behavior.
func activationTarget(n *html.Node) *html.Node {
	for a := n; a != nil; a = a.Parent {
		if a.Type != html.ElementNode {
			continue
		}
		switch strings.ToLower(a.Data) {
		case "a", "area":
			if _, ok := attrOK(a, "href"); ok {
				return a
			}
		case "button", "label":
			return a
		case "input":
			if !strings.EqualFold(attr(a, "type"), "hidden") {
				return a
			}
		}
	}
	return nil
}

func isCheckable(n *html.Node) bool {
	if !strings.EqualFold(n.Data, "input") {
		return false
	}
	t := strings.ToLower(attr(n, "type"))
	return t == "checkbox" || t == "radio"
}

func isSubmitter(n *html.Node) bool {
	t := strings.ToLower(attr(n, "type"))
	switch strings.ToLower(n.Data) {
	case "button":
		return t == "" || t == "submit"
	case "input":
		return t == "submit" || t == "image"
	}
	return false
}

func isResetter(n *html.Node) bool {
	switch strings.ToLower(n.Data) {
	case "button", "input":
		return strings.EqualFold(attr(n, "type"), "reset")
	}
	return false
}

func isLabelable(n *html.Node) bool {
	switch strings.ToLower(n.Data) {
	case "button", "meter", "output", "progress", "select", "textarea":
		return true
	case "input":
		return !strings.EqualFold(attr(n, "type"), "hidden")
	}
	return false
}

func isDisabled(n *html.Node) bool {
	switch strings.ToLower(n.Data) {
	case "button", "input", "select", "textarea", "option", "fieldset":
		_, ok := attrOK(n, "disabled")
		return ok
	}
	return false
}

// isEditable reports whether n is inside an editing host.
func isEditable(n *html.Node) bool {
	for a := n; a != nil; a = a.Parent {
		if a.Type != html.ElementNode {
			continue
		}
		v, ok := attrOK(a, "contenteditable")
		if !ok {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "", "true", "plaintext-only":
			return true
		case "false":
			return false
		}
	}
	return false
}

func matchOption(sel *html.Node, value string) *html.Node {
	var byValue, byText *html.Node
	dom.WalkElements(sel, func(c *html.Node) bool {
		if !strings.EqualFold(c.Data, "option") {
			return true
		}
		if byValue == nil && optionValue(c) == value {
			byValue = c
		}
		if byText == nil && dom.CollapseSpace(textContent(c)) == strings.TrimSpace(value) {
			byText = c
		}
		return true
	})
	if byValue != nil {
		return byValue
	}
	return byText
}

func findByID(root *html.Node, id string) *html.Node {
	var found *html.Node
	dom.WalkElements(root, func(c *html.Node) bool {
		if found != nil {
			return false
		}
		if v, ok := attrOK(c, "id"); ok && v == id {
			found = c
			return false
		}
		return true
	})
	return found
}

func documentRoot(n *html.Node) *html.Node {
	for n.Parent != nil {
		n = n.Parent
	}
	return n
}

// contains reports whether n is a or a descendant of a.
func contains(a, n *html.Node) bool {
	for ; n != nil; n = n.Parent {
		if n == a {
			return true
		}
	}
	return false
}

func attrOr(n *html.Node, key, fallback string) string {
	if v, ok := attrOK(n, key); ok {
		return v
	}
	return fallback
}

func clamp(v, lo, hi float64) float64 {
	if hi < lo {
		hi = lo
	}
	return min(max(v, lo), hi)
}

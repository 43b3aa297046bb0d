// internal/browser/memdom/page.go
package memdom

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/pagepilot/internal/browser/dom"
)

// maxFrameNesting bounds srcdoc recursion.
const maxFrameNesting = 10

var (
	// ErrDetached is returned when an action targets a node that is no longer
	// part of any document of the page.
	ErrDetached = errors.New("memdom: node is no longer attached")
	// ErrNoHandle is returned for elements that did not come from a snapshot
	// of this page.
	ErrNoHandle = errors.New("memdom: element has no live handle")
)

// Page is an in-memory browser tab: a parsed document with same-origin
// frames, form control state, event listeners and a scroll position. It
// implements dom.Driver without a browser process.
type Page struct {
	mu       sync.Mutex
	logger   *zap.Logger
	loader   Loader
	viewport dom.Viewport

	top    *frame
	frames map[*html.Node]*frame // iframe element -> content
	docs   map[*html.Node]*frame // document root -> frame

	controls  map[*html.Node]*controlState
	listeners map[*html.Node]map[string][]listener
	nextID    int
	focused   *html.Node
	scrollX   float64
	scrollY   float64

	subscribers map[int]chan struct{}
	nextSub     int

	submissions []Submission
	followed    []string
}

type frame struct {
	root   *html.Node
	url    string
	host   *html.Node
	parent *frame
	// denied is the reason the content is unreadable, if it is.
	denied string
}

type controlState struct {
	value      string
	dirty      bool
	checked    bool
	checkedSet bool
}

// Submission records a form submission, which this backend never sends.
type Submission struct {
	Action string
	Method string
	Values url.Values
}

// Option configures a Page.
type Option func(*Page)

// WithViewport sets the window size used for layout.
func WithViewport(width, height float64) Option {
	return func(p *Page) {
		p.viewport = dom.Viewport{Width: width, Height: height}
	}
}

// WithLoader replaces the loader used by Navigate and by iframes with a src.
func WithLoader(l Loader) Option {
	return func(p *Page) {
		p.loader = l
	}
}

// New creates an empty page showing about:blank.
func New(logger *zap.Logger, opts ...Option) *Page {
	p := &Page{
		logger:      logger.Named("memdom"),
		loader:      DefaultLoader,
		viewport:    dom.Viewport{Width: 1280, Height: 800},
		subscribers: make(map[int]chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	root, _ := html.Parse(strings.NewReader(""))
	p.replaceLocked(root, "about:blank")
	return p
}

// NewFromHTML creates a page showing markup as if it had been loaded from
// pageURL.
func NewFromHTML(logger *zap.Logger, pageURL, markup string, opts ...Option) (*Page, error) {
	p := New(logger, opts...)
	root, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("memdom: parse %s: %w", pageURL, err)
	}
	p.mu.Lock()
	p.replaceLocked(root, pageURL)
	p.mu.Unlock()
	return p, nil
}

// Navigate loads a new document into the tab. Listeners, control state,
// focus and scroll position are reset.
func (p *Page) Navigate(ctx context.Context, rawURL string) error {
	markup, err := p.loader(ctx, rawURL)
	if err != nil {
		return fmt.Errorf("memdom: navigate to %s: %w", rawURL, err)
	}
	root, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return fmt.Errorf("memdom: parse %s: %w", rawURL, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.replaceLocked(root, rawURL)
	p.notifyLocked()
	p.logger.Debug("Navigated", zap.String("url", rawURL))
	return nil
}

func (p *Page) replaceLocked(root *html.Node, pageURL string) {
	p.top = &frame{root: root, url: pageURL}
	p.frames = make(map[*html.Node]*frame)
	p.docs = map[*html.Node]*frame{root: p.top}
	p.controls = make(map[*html.Node]*controlState)
	p.listeners = make(map[*html.Node]map[string][]listener)
	p.focused = nil
	p.scrollX, p.scrollY = 0, 0
	p.loadFramesLocked(p.top, 0)
}

// loadFramesLocked gives every iframe of f that has not been seen yet its
// content document, or records why it has none.
func (p *Page) loadFramesLocked(f *frame, depth int) {
	for _, iframe := range iframesOf(f.root) {
		if _, seen := p.frames[iframe]; seen {
			if child := p.frames[iframe]; child.root != nil {
				p.loadFramesLocked(child, depth+1)
			}
			continue
		}
		child := &frame{host: iframe, parent: f}
		p.frames[iframe] = child
		if depth >= maxFrameNesting {
			child.denied = "frame nesting limit reached"
			continue
		}

		markup, frameURL, reason := p.frameContent(f, iframe)
		if reason != "" {
			child.denied = reason
			p.logger.Debug("Frame content is not accessible", zap.String("src", attr(iframe, "src")), zap.String("reason", reason))
			continue
		}
		root, err := html.Parse(strings.NewReader(markup))
		if err != nil {
			child.denied = err.Error()
			continue
		}
		child.root = root
		child.url = frameURL
		p.docs[root] = child
		p.loadFramesLocked(child, depth+1)
	}
}

// frameContent returns the markup of an iframe, or a reason it cannot be
// read. srcdoc wins over src; a src on another origin is never loaded.
func (p *Page) frameContent(parent *frame, iframe *html.Node) (markup, frameURL, reason string) {
	if srcdoc, ok := attrOK(iframe, "srcdoc"); ok {
		return srcdoc, "about:srcdoc", ""
	}
	src := strings.TrimSpace(attr(iframe, "src"))
	if src == "" || src == "about:blank" {
		return "", "about:blank", ""
	}
	base, err := url.Parse(parent.url)
	if err != nil {
		return "", "", "unparsable parent url"
	}
	ref, err := url.Parse(src)
	if err != nil {
		return "", "", "unparsable src"
	}
	resolved := base.ResolveReference(ref)
	if !sameOrigin(base, resolved) {
		return "", "", "cross-origin"
	}
	// Frames load synchronously with their parent.
	content, err := p.loader(context.Background(), resolved.String())
	if err != nil {
		return "", "", err.Error()
	}
	return content, resolved.String(), ""
}

func sameOrigin(a, b *url.URL) bool {
	if b.Scheme == "about" || b.Scheme == "data" {
		return false
	}
	return strings.EqualFold(a.Scheme, b.Scheme) && strings.EqualFold(a.Host, b.Host)
}

// Mutate runs fn against the live top document, as a page script would, and
// notifies subscribers afterwards. Iframes added by fn are loaded.
func (p *Page) Mutate(fn func(root *html.Node)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fn(p.top.root)
	p.loadFramesLocked(p.top, 0)
	p.notifyLocked()
}

// Root returns the live top document node. Callers must not modify it
// outside Mutate.
func (p *Page) Root() *html.Node {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.top.root
}

// FrameRoot returns the live document of the iframe element, if readable.
func (p *Page) FrameRoot(iframe *html.Node) (*html.Node, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	f, ok := p.frames[iframe]
	if !ok || f.root == nil {
		return nil, false
	}
	return f.root, true
}

// URL returns the address of the top document.
func (p *Page) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.top.url
}

// Scroll returns the window scroll offset.
func (p *Page) Scroll() (x, y float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.scrollX, p.scrollY
}

// Value returns the current value property of a form control.
func (p *Page) Value(n *html.Node) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.valueLocked(n)
}

// Checked returns the checkedness of a checkbox or radio button.
func (p *Page) Checked(n *html.Node) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.checkedLocked(n)
}

// Focused returns the element holding focus, or nil.
func (p *Page) Focused() *html.Node {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.focused
}

// Submissions returns the forms submitted so far.
func (p *Page) Submissions() []Submission {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Submission(nil), p.submissions...)
}

// FollowedLinks returns the resolved hrefs of activated links. Links are
// recorded, not loaded.
func (p *Page) FollowedLinks() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.followed...)
}

// Subscribe signals after every mutation of any document of the page. The
// subscription ends when cancel is called or ctx is done.
func (p *Page) Subscribe(ctx context.Context) (<-chan struct{}, func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	ch := make(chan struct{}, 1)

	p.mu.Lock()
	id := p.nextSub
	p.nextSub++
	p.subscribers[id] = ch
	p.mu.Unlock()

	var once sync.Once
	remove := func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.subscribers, id)
			p.mu.Unlock()
		})
	}
	stop := context.AfterFunc(ctx, remove)
	return ch, func() {
		stop()
		remove()
	}, nil
}

// notifyLocked wakes every subscriber. Signals coalesce while a subscriber
// has not drained its channel.
func (p *Page) notifyLocked() {
	for _, ch := range p.subscribers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// liveNode returns the live node behind an element of a snapshot.
func (p *Page) liveNode(el dom.Element) (*html.Node, error) {
	n, ok := el.Handle().(*html.Node)
	if !ok || n == nil {
		return nil, ErrNoHandle
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.frameOfLocked(n) == nil {
		return nil, ErrDetached
	}
	return n, nil
}

// frameOfLocked returns the frame whose document contains n, or nil when n
// is detached.
func (p *Page) frameOfLocked(n *html.Node) *frame {
	root := n
	for root.Parent != nil {
		root = root.Parent
	}
	return p.docs[root]
}

func (p *Page) stateLocked(n *html.Node) *controlState {
	st, ok := p.controls[n]
	if !ok {
		st = &controlState{}
		p.controls[n] = st
	}
	return st
}

func (p *Page) valueLocked(n *html.Node) string {
	if st, ok := p.controls[n]; ok && st.dirty {
		return st.value
	}
	switch strings.ToLower(n.Data) {
	case "textarea":
		return textContent(n)
	case "select":
		if opt := selectedOption(n); opt != nil {
			return optionValue(opt)
		}
		return ""
	}
	return attr(n, "value")
}

func (p *Page) checkedLocked(n *html.Node) bool {
	if st, ok := p.controls[n]; ok && st.checkedSet {
		return st.checked
	}
	_, ok := attrOK(n, "checked")
	return ok
}

func iframesOf(root *html.Node) []*html.Node {
	var out []*html.Node
	dom.WalkElements(root, func(n *html.Node) bool {
		if strings.EqualFold(n.Data, "iframe") {
			out = append(out, n)
		}
		return true
	})
	return out
}

func attr(n *html.Node, key string) string {
	v, _ := attrOK(n, key)
	return v
}

func attrOK(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && strings.EqualFold(a.Key, key) {
			return a.Val, true
		}
	}
	return "", false
}

func setAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && strings.EqualFold(a.Key, key) {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func removeAttr(n *html.Node, key string) {
	out := n.Attr[:0]
	for _, a := range n.Attr {
		if a.Namespace == "" && strings.EqualFold(a.Key, key) {
			continue
		}
		out = append(out, a)
	}
	n.Attr = out
}

func textContent(n *html.Node) string {
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

func selectedOption(sel *html.Node) *html.Node {
	var first, selected *html.Node
	dom.WalkElements(sel, func(n *html.Node) bool {
		if strings.EqualFold(n.Data, "option") {
			if first == nil {
				first = n
			}
			if _, ok := attrOK(n, "selected"); ok && selected == nil {
				selected = n
			}
		}
		return true
	})
	if selected != nil {
		return selected
	}
	return first
}

func optionValue(opt *html.Node) string {
	if v, ok := attrOK(opt, "value"); ok {
		return v
	}
	return strings.Join(strings.Fields(textContent(opt)), " ")
}

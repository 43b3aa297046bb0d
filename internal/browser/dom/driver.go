// internal/browser/dom/driver.go
package dom

import "context"

// Event describes a synthetic DOM event to dispatch.
type Event struct {
	Type    string
	Bubbles bool
	// Key is set for keyboard events.
	Key string
	// Data is set for input events.
	Data string
	// Button is the mouse button for mouse events (0 primary, 2 secondary).
	Button int
	// ClipboardText is the text/plain payload of paste events.
	ClipboardText string
}

// Highlight is one debug overlay box.
type Highlight struct {
	ID    string
	Rect  Rect
	Label string
	Color string
}

// Page gives read access to a live page and tells the caller when it changes.
type Page interface {
	// Snapshot returns a fresh view of the top document, including every
	// readable nested frame.
	Snapshot(ctx context.Context) (*Document, error)
	// Subscribe delivers a signal on the returned channel after DOM mutations
	// of the top document. The cancel func detaches the observer; the channel
	// is never closed.
	Subscribe(ctx context.Context) (<-chan struct{}, func(), error)
	// Navigate loads a new URL into the top document.
	Navigate(ctx context.Context, url string) error
}

// Actuator performs side effects on elements of the last snapshot. Elements
// are addressed through their handles, so a stale snapshot is fine as long as
// the node is still attached.
type Actuator interface {
	// Click performs the element's native activation behavior.
	Click(ctx context.Context, el Element) error
	// Dispatch fires ev on el, or on the document when el is zero.
	Dispatch(ctx context.Context, el Element, ev Event) error
	Focus(ctx context.Context, el Element) error
	// SetValue assigns the value property of input, textarea and select elements.
	SetValue(ctx context.Context, el Element, value string) error
	// InsertText inserts text at the caret of a focused contentEditable element.
	InsertText(ctx context.Context, el Element, text string) error
	// Paste dispatches a paste event whose clipboard carries text/plain.
	Paste(ctx context.Context, el Element, text string) error
	SetInnerText(ctx context.Context, el Element, text string) error
	ScrollIntoView(ctx context.Context, el Element) error
	ScrollBy(ctx context.Context, dx, dy float64) error
	ScrollToEnd(ctx context.Context) error
	// Submit submits a form element.
	Submit(ctx context.Context, form Element) error
}

// Painter draws and removes debug overlays.
type Painter interface {
	DrawOverlay(ctx context.Context, h Highlight) error
	RemoveOverlay(ctx context.Context, id string) error
	ClearOverlays(ctx context.Context) error
}

// Driver is a complete page backend.
type Driver interface {
	Page
	Actuator
	Painter
}

// OverlayContainerID is the id of the element that hosts overlay boxes.
const OverlayContainerID = "pagepilot-highlight-container"

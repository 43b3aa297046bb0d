// Package action models the local actions a planner issues against a page.
// Each action type is its own struct; the set is closed by the unexported
// isAction method.
package action

import (
	"fmt"
	"strings"
	"time"

	"github.com/xkilldash9x/pagepilot/api/schemas"
)

// Action is one decoded unit of page work.
type Action interface {
	Meta() Header
	isAction()
}

// Header is shared by every action.
type Header struct {
	// ID is caller-assigned and only used to attribute errors.
	ID   string
	Type schemas.ActionType
}

func (h Header) Meta() Header { return h }

// Target locates an element. Selector wins over XPath, XPath over Index.
type Target struct {
	Selector string
	XPath    string
	// Index refers to a record of the current extraction pass. Zero means
	// unset.
	Index int
	// Frame is the path of the document the lookup starts in. Nil means the
	// top document.
	Frame []int
}

// IsZero reports whether the target names no element.
func (t Target) IsZero() bool {
	return t.Selector == "" && t.XPath == "" && t.Index == 0
}

func (t Target) String() string {
	var parts []string
	if t.Selector != "" {
		parts = append(parts, fmt.Sprintf("selector=%q", t.Selector))
	}
	if t.XPath != "" {
		parts = append(parts, fmt.Sprintf("xPath=%q", t.XPath))
	}
	if t.Index != 0 {
		parts = append(parts, fmt.Sprintf("index=%d", t.Index))
	}
	if len(t.Frame) > 0 {
		parts = append(parts, fmt.Sprintf("frame=%v", t.Frame))
	}
	if len(parts) == 0 {
		return "<none>"
	}
	return strings.Join(parts, " ")
}

// Click covers click and click_element.
type Click struct {
	Header
	Target Target
}

type DoubleClick struct {
	Header
	Target Target
}

type RightClick struct {
	Header
	Target Target
}

type Hover struct {
	Header
	Target Target
}

type InputText struct {
	Header
	Target Target
	Text   string
}

// Direction of a window scroll.
type Direction string

const (
	DirectionUp    Direction = "up"
	DirectionDown  Direction = "down"
	DirectionLeft  Direction = "left"
	DirectionRight Direction = "right"
)

// Scroll brings Target into view, or scrolls the window when Target is
// zero. Offset is a magnitude; zero means the configured default.
type Scroll struct {
	Header
	Target    Target
	Direction Direction
	Offset    float64
}

// Delta returns the signed window offset for a scroll of magnitude offset.
func (s Scroll) Delta(offset float64) (dx, dy float64) {
	switch s.Direction {
	case DirectionUp:
		return 0, -offset
	case DirectionLeft:
		return -offset, 0
	case DirectionRight:
		return offset, 0
	default:
		return 0, offset
	}
}

type SubmitForm struct {
	Header
	Target Target
}

// KeyPress targets the document when Target is zero. An empty Key means the
// configured default.
type KeyPress struct {
	Header
	Target Target
	Key    string
}

// Extract covers extract and extract_content.
type Extract struct {
	Header
	Target Target
}

// Select picks an option by value, or by visible text when no value matches.
type Select struct {
	Header
	Target Target
	Value  string
}

type Navigate struct {
	Header
	URL string
}

// Verify checks Target, or the whole document when Target is zero.
type Verify struct {
	Header
	Target Target
	Text   string
}

// Wait sleeps; zero means the configured default.
type Wait struct {
	Header
	Duration time.Duration
}

type Done struct {
	Header
	Text string
}

// Unknown carries a type outside the recognized set. Performing it fails.
type Unknown struct {
	Header
}

func (Click) isAction()       {}
func (DoubleClick) isAction() {}
func (RightClick) isAction()  {}
func (Hover) isAction()       {}
func (InputText) isAction()   {}
func (Scroll) isAction()      {}
func (SubmitForm) isAction()  {}
func (KeyPress) isAction()    {}
func (Extract) isAction()     {}
func (Select) isAction()      {}
func (Navigate) isAction()    {}
func (Verify) isAction()      {}
func (Wait) isAction()        {}
func (Done) isAction()        {}
func (Unknown) isAction()     {}

// TargetOf returns the element target of a, if its type has one.
func TargetOf(a Action) (Target, bool) {
	switch v := a.(type) {
	case Click:
		return v.Target, true
	case DoubleClick:
		return v.Target, true
	case RightClick:
		return v.Target, true
	case Hover:
		return v.Target, true
	case InputText:
		return v.Target, true
	case Scroll:
		return v.Target, true
	case SubmitForm:
		return v.Target, true
	case KeyPress:
		return v.Target, true
	case Extract:
		return v.Target, true
	case Select:
		return v.Target, true
	case Verify:
		return v.Target, true
	}
	return Target{}, false
}

// RequiresElement reports whether a cannot be performed without a resolved
// element. Scroll, key press and verify fall back to the document.
func RequiresElement(a Action) bool {
	switch a.(type) {
	case Click, DoubleClick, RightClick, Hover, InputText, SubmitForm, Extract, Select:
		return true
	}
	return false
}

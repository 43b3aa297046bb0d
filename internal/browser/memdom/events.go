package memdom

import (
	"golang.org/x/net/html"

	"github.com/xkilldash9x/pagepilot/internal/browser/dom"
)

// Event is what listeners receive.
type Event struct {
	Type          string
	Bubbles       bool
	Key           string
	Data          string
	Button        int
	ClipboardText string
	Target        *html.Node
	// CurrentTarget is the node whose listener is running.
	CurrentTarget *html.Node

	defaultPrevented bool
	stopped          bool
}

// PreventDefault cancels the default action of the event.
func (e *Event) PreventDefault() { e.defaultPrevented = true }

// DefaultPrevented reports whether a listener cancelled the default action.
func (e *Event) DefaultPrevented() bool { return e.defaultPrevented }

// StopPropagation keeps the event from reaching further ancestors.
func (e *Event) StopPropagation() { e.stopped = true }

// Listener handles an event. Listeners run without the page lock held and
// may call back into the page.
type Listener func(*Event)

type listener struct {
	id int
	fn Listener
}

// AddEventListener registers fn for events of type typ on n, which may be an
// element or a document node. The returned func removes the listener.
func (p *Page) AddEventListener(n *html.Node, typ string, fn Listener) func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextID++
	id := p.nextID
	byType, ok := p.listeners[n]
	if !ok {
		byType = make(map[string][]listener)
		p.listeners[n] = byType
	}
	byType[typ] = append(byType[typ], listener{id: id, fn: fn})

	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		list := p.listeners[n][typ]
		for i, l := range list {
			if l.id == id {
				p.listeners[n][typ] = append(list[:i:i], list[i+1:]...)
				return
			}
		}
	}
}

// fire dispatches an event at target and returns it once every listener on
// the propagation path has run. Must be called without the lock held.
func (p *Page) fire(target *html.Node, spec dom.Event) *Event {
	ev := &Event{
		Type:          spec.Type,
		Bubbles:       spec.Bubbles,
		Key:           spec.Key,
		Data:          spec.Data,
		Button:        spec.Button,
		ClipboardText: spec.ClipboardText,
		Target:        target,
	}

	p.mu.Lock()
	var path []*html.Node
	for n := target; n != nil; n = n.Parent {
		path = append(path, n)
		if !spec.Bubbles {
			break
		}
	}
	type call struct {
		node *html.Node
		fn   Listener
	}
	var calls []call
	for _, n := range path {
		for _, l := range p.listeners[n][spec.Type] {
			calls = append(calls, call{node: n, fn: l.fn})
		}
	}
	p.mu.Unlock()

	var current *html.Node
	for _, c := range calls {
		if ev.stopped && c.node != current {
			break
		}
		current = c.node
		ev.CurrentTarget = c.node
		c.fn(ev)
	}
	return ev
}

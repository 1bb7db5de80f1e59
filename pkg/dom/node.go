package dom

import (
	"slices"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/gabrielmiguelok/formwizard/pkg/wizard"
)

// MutationKind identifies a presentation change.
type MutationKind string

const (
	MutationAddClass    MutationKind = "add-class"
	MutationRemoveClass MutationKind = "remove-class"
	MutationSetAttr     MutationKind = "set-attr"
	MutationRemoveAttr  MutationKind = "remove-attr"
	MutationSetText     MutationKind = "set-text"
)

// Mutation is one change to an element, addressed by its ref.
type Mutation struct {
	Ref   int
	Kind  MutationKind
	Name  string
	Value string
}

// Node is a node of the document tree. Only element nodes have a ref,
// attributes and listeners.
type Node struct {
	Type      html.NodeType
	Data      string
	DataAtom  atom.Atom
	Namespace string

	doc       *Document
	parent    *Node
	ref       int
	attrs     []html.Attribute
	children  []*Node
	listeners map[string]map[int]wizard.Handler
}

// Ref returns the element's stable reference within its document.
func (n *Node) Ref() int { return n.ref }

// Tag returns the element name.
func (n *Node) Tag() string { return n.Data }

// Children returns a snapshot of the child nodes.
func (n *Node) Children() []*Node {
	n.doc.mu.RLock()
	defer n.doc.mu.RUnlock()
	return slices.Clone(n.children)
}

func (n *Node) attr(name string) string {
	for _, a := range n.attrs {
		if a.Namespace == "" && a.Key == name {
			return a.Val
		}
	}
	return ""
}

func (n *Node) hasAttr(name string) bool {
	for _, a := range n.attrs {
		if a.Namespace == "" && a.Key == name {
			return true
		}
	}
	return false
}

func (n *Node) setAttr(name, value string) bool {
	for i, a := range n.attrs {
		if a.Namespace == "" && a.Key == name {
			if a.Val == value {
				return false
			}
			n.attrs[i].Val = value
			return true
		}
	}
	n.attrs = append(n.attrs, html.Attribute{Key: name, Val: value})
	return true
}

func (n *Node) removeAttr(name string) bool {
	for i, a := range n.attrs {
		if a.Namespace == "" && a.Key == name {
			n.attrs = append(n.attrs[:i], n.attrs[i+1:]...)
			return true
		}
	}
	return false
}

// Attr returns an attribute value.
func (n *Node) Attr(name string) (string, bool) {
	n.doc.mu.RLock()
	defer n.doc.mu.RUnlock()
	return n.attr(name), n.hasAttr(name)
}

// SetAttr sets an attribute.
func (n *Node) SetAttr(name, value string) {
	n.doc.mu.Lock()
	changed := n.setAttr(name, value)
	n.doc.mu.Unlock()

	if changed {
		n.doc.notify(Mutation{Ref: n.ref, Kind: MutationSetAttr, Name: name, Value: value})
	}
}

// RemoveAttr removes an attribute.
func (n *Node) RemoveAttr(name string) {
	n.doc.mu.Lock()
	changed := n.removeAttr(name)
	n.doc.mu.Unlock()

	if changed {
		n.doc.notify(Mutation{Ref: n.ref, Kind: MutationRemoveAttr, Name: name})
	}
}

func (n *Node) classes() []string {
	return strings.Fields(n.attr("class"))
}

// Classes returns the element's class list.
func (n *Node) Classes() []string {
	n.doc.mu.RLock()
	defer n.doc.mu.RUnlock()
	return n.classes()
}

// HasClass reports whether the element carries class name.
func (n *Node) HasClass(name string) bool {
	n.doc.mu.RLock()
	defer n.doc.mu.RUnlock()
	return slices.Contains(n.classes(), name)
}

// AddClass adds class name if absent.
func (n *Node) AddClass(name string) {
	n.doc.mu.Lock()
	cls := n.classes()
	if slices.Contains(cls, name) {
		n.doc.mu.Unlock()
		return
	}
	n.setAttr("class", strings.Join(append(cls, name), " "))
	n.doc.mu.Unlock()

	n.doc.notify(Mutation{Ref: n.ref, Kind: MutationAddClass, Name: name})
}

// RemoveClass removes class name if present.
func (n *Node) RemoveClass(name string) {
	n.doc.mu.Lock()
	cls := n.classes()
	idx := slices.Index(cls, name)
	if idx < 0 {
		n.doc.mu.Unlock()
		return
	}
	cls = slices.Delete(cls, idx, idx+1)
	if len(cls) == 0 {
		n.removeAttr("class")
	} else {
		n.setAttr("class", strings.Join(cls, " "))
	}
	n.doc.mu.Unlock()

	n.doc.notify(Mutation{Ref: n.ref, Kind: MutationRemoveClass, Name: name})
}

// SetText replaces the element's children with a single text node.
func (n *Node) SetText(text string) {
	n.doc.mu.Lock()
	if n.text() == text && len(n.children) <= 1 {
		n.doc.mu.Unlock()
		return
	}
	n.children = []*Node{{doc: n.doc, parent: n, Type: html.TextNode, Data: text}}
	n.doc.mu.Unlock()

	n.doc.notify(Mutation{Ref: n.ref, Kind: MutationSetText, Value: text})
}

func (n *Node) text() string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var b strings.Builder
	for _, c := range n.children {
		b.WriteString(c.text())
	}
	return b.String()
}

// Text returns the concatenated text content.
func (n *Node) Text() string {
	n.doc.mu.RLock()
	defer n.doc.mu.RUnlock()
	return n.text()
}

// ID returns the declared identifier: data-id, then id, then a generated
// per-document id.
func (n *Node) ID() string {
	n.doc.mu.RLock()
	defer n.doc.mu.RUnlock()
	if v := n.attr("data-id"); v != "" {
		return v
	}
	if v := n.attr("id"); v != "" {
		return v
	}
	return n.doc.fallbackID
}

func (n *Node) walk(fn func(*Node)) {
	for _, c := range n.children {
		if c.Type == html.ElementNode {
			fn(c)
		}
		c.walk(fn)
	}
}

func (n *Node) queryAll(class string) []*Node {
	var out []*Node
	n.walk(func(c *Node) {
		if slices.Contains(c.classes(), class) {
			out = append(out, c)
		}
	})
	return out
}

// Find returns the descendants carrying class, in document order.
func (n *Node) Find(class string) []*Node {
	n.doc.mu.RLock()
	defer n.doc.mu.RUnlock()
	return n.queryAll(class)
}

// QueryAll implements wizard.Host.
func (n *Node) QueryAll(marker string) []wizard.Element {
	found := n.Find(marker)
	out := make([]wizard.Element, len(found))
	for i, f := range found {
		out[i] = f
	}
	return out
}

// QueryControl implements wizard.Host.
func (n *Node) QueryControl(marker string) (wizard.Control, bool) {
	found := n.Find(marker)
	if len(found) == 0 {
		return nil, false
	}
	return found[0], true
}

// QueryDisplay implements wizard.Host.
func (n *Node) QueryDisplay(marker string) (wizard.Display, bool) {
	found := n.Find(marker)
	if len(found) == 0 {
		return nil, false
	}
	return found[0], true
}

// On registers h for event on this element.
func (n *Node) On(event string, h wizard.Handler) wizard.Subscription {
	n.doc.mu.Lock()
	defer n.doc.mu.Unlock()

	if n.listeners == nil {
		n.listeners = make(map[string]map[int]wizard.Handler)
	}
	if n.listeners[event] == nil {
		n.listeners[event] = make(map[int]wizard.Handler)
	}
	n.doc.nextSub++
	id := n.doc.nextSub
	n.listeners[event][id] = h
	return &subscription{node: n, event: event, id: id}
}

// ListenerCount returns the number of handlers bound for event.
func (n *Node) ListenerCount(event string) int {
	n.doc.mu.RLock()
	defer n.doc.mu.RUnlock()
	return len(n.listeners[event])
}

// Dispatch delivers a new event of the given type to this element's
// handlers, in registration order, and returns it.
func (n *Node) Dispatch(event string) *Event {
	n.doc.mu.RLock()
	ids := make([]int, 0, len(n.listeners[event]))
	for id := range n.listeners[event] {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	handlers := make([]wizard.Handler, len(ids))
	for i, id := range ids {
		handlers[i] = n.listeners[event][id]
	}
	n.doc.mu.RUnlock()

	ev := &Event{Type: event, Target: n}
	for _, h := range handlers {
		h(ev)
	}
	return ev
}

// Click dispatches a click event.
func (n *Node) Click() *Event {
	return n.Dispatch(wizard.EventClick)
}

type subscription struct {
	node  *Node
	event string
	id    int
}

func (s *subscription) Unsubscribe() {
	s.node.doc.mu.Lock()
	defer s.node.doc.mu.Unlock()
	delete(s.node.listeners[s.event], s.id)
}

// Event is dispatched to element handlers.
type Event struct {
	Type   string
	Target *Node

	prevented bool
}

// PreventDefault cancels the default action.
func (e *Event) PreventDefault() { e.prevented = true }

// DefaultPrevented reports whether a handler cancelled the default action.
func (e *Event) DefaultPrevented() bool { return e.prevented }

// Package wizardtest provides an in-memory wizard host for tests.
// It records every marker, attribute and text change so tests can assert on
// presentation effects without a rendering surface.
package wizardtest

import (
	"strconv"
	"sync"

	"github.com/gabrielmiguelok/formwizard/pkg/wizard"
)

// Change is one recorded presentation mutation.
type Change struct {
	Target string
	Kind   string // "add", "remove", "attr", "text"
	Name   string
	Value  string
}

// Element is a fake step, control or display.
type Element struct {
	Name string

	host      *Host
	classes   map[string]bool
	text      string
	listeners map[string]map[int]wizard.Handler
}

func newElement(h *Host, name string) *Element {
	return &Element{
		Name:      name,
		host:      h,
		classes:   make(map[string]bool),
		listeners: make(map[string]map[int]wizard.Handler),
	}
}

// AddClass adds a marker.
func (e *Element) AddClass(name string) {
	e.host.mu.Lock()
	defer e.host.mu.Unlock()
	e.classes[name] = true
	e.host.record(Change{Target: e.Name, Kind: "add", Name: name})
}

// RemoveClass removes a marker.
func (e *Element) RemoveClass(name string) {
	e.host.mu.Lock()
	defer e.host.mu.Unlock()
	delete(e.classes, name)
	e.host.record(Change{Target: e.Name, Kind: "remove", Name: name})
}

// HasClass reports whether the marker is present.
func (e *Element) HasClass(name string) bool {
	e.host.mu.Lock()
	defer e.host.mu.Unlock()
	return e.classes[name]
}

// SetText sets the element text.
func (e *Element) SetText(text string) {
	e.host.mu.Lock()
	defer e.host.mu.Unlock()
	e.text = text
	e.host.record(Change{Target: e.Name, Kind: "text", Value: text})
}

// Text returns the element text.
func (e *Element) Text() string {
	e.host.mu.Lock()
	defer e.host.mu.Unlock()
	return e.text
}

// On registers a handler.
func (e *Element) On(event string, h wizard.Handler) wizard.Subscription {
	e.host.mu.Lock()
	defer e.host.mu.Unlock()

	e.host.nextID++
	id := e.host.nextID
	if e.listeners[event] == nil {
		e.listeners[event] = make(map[int]wizard.Handler)
	}
	e.listeners[event][id] = h
	return &subscription{el: e, event: event, id: id}
}

// ListenerCount returns the number of handlers bound for event.
func (e *Element) ListenerCount(event string) int {
	e.host.mu.Lock()
	defer e.host.mu.Unlock()
	return len(e.listeners[event])
}

// Dispatch delivers an event to the bound handlers and returns it.
func (e *Element) Dispatch(event string) *Event {
	e.host.mu.Lock()
	handlers := make([]wizard.Handler, 0, len(e.listeners[event]))
	for _, h := range e.listeners[event] {
		handlers = append(handlers, h)
	}
	e.host.mu.Unlock()

	ev := &Event{Type: event}
	for _, h := range handlers {
		h(ev)
	}
	return ev
}

// Click dispatches a click event.
func (e *Element) Click() *Event {
	return e.Dispatch(wizard.EventClick)
}

type subscription struct {
	el    *Element
	event string
	id    int
	once  sync.Once
}

func (s *subscription) Unsubscribe() {
	s.once.Do(func() {
		s.el.host.mu.Lock()
		defer s.el.host.mu.Unlock()
		delete(s.el.listeners[s.event], s.id)
		s.el.host.unsubscribed++
	})
}

// Event is the fake event passed to handlers.
type Event struct {
	Type      string
	prevented bool
}

func (e *Event) PreventDefault()        { e.prevented = true }
func (e *Event) DefaultPrevented() bool { return e.prevented }

// Host is a fake wizard host.
type Host struct {
	*Element

	Steps    []*Element
	Back     *Element
	Next     *Element
	Submit   *Element
	Progress *Element

	id           string
	attrs        map[string]string
	markers      wizard.Markers
	changes      []Change
	nextID       int
	unsubscribed int

	mu sync.Mutex
}

// HostOption configures a fake host.
type HostOption func(*Host)

// WithoutProgress omits the progress display.
func WithoutProgress() HostOption {
	return func(h *Host) {
		h.Progress = nil
	}
}

// WithoutControl omits one of "back", "next" or "submit".
func WithoutControl(name string) HostOption {
	return func(h *Host) {
		switch name {
		case "back":
			h.Back = nil
		case "next":
			h.Next = nil
		case "submit":
			h.Submit = nil
		}
	}
}

// WithAttr presets a host attribute.
func WithAttr(name, value string) HostOption {
	return func(h *Host) {
		h.attrs[name] = value
	}
}

// NewHost builds a host with n steps and every control, using the default
// markers.
func NewHost(id string, n int, opts ...HostOption) *Host {
	h := &Host{
		id:      id,
		attrs:   make(map[string]string),
		markers: wizard.DefaultMarkers(),
	}
	h.Element = newElement(h, "form")
	for i := 0; i < n; i++ {
		h.Steps = append(h.Steps, newElement(h, stepName(i)))
	}
	h.Back = newElement(h, "back")
	h.Next = newElement(h, "next")
	h.Submit = newElement(h, "submit")
	h.Progress = newElement(h, "progress")

	for _, opt := range opts {
		opt(h)
	}
	return h
}

func stepName(i int) string {
	return "step-" + strconv.Itoa(i)
}

func (h *Host) record(c Change) {
	h.changes = append(h.changes, c)
}

// ID returns the declared host id.
func (h *Host) ID() string { return h.id }

// Attr returns a host attribute.
func (h *Host) Attr(name string) (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	v, ok := h.attrs[name]
	return v, ok
}

// SetAttr sets a host attribute.
func (h *Host) SetAttr(name, value string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.attrs[name] = value
	h.record(Change{Target: "form", Kind: "attr", Name: name, Value: value})
}

// QueryAll returns the steps for the step marker.
func (h *Host) QueryAll(marker string) []wizard.Element {
	if marker != h.markers.Step {
		return nil
	}
	out := make([]wizard.Element, len(h.Steps))
	for i, s := range h.Steps {
		out[i] = s
	}
	return out
}

// QueryControl resolves the control markers.
func (h *Host) QueryControl(marker string) (wizard.Control, bool) {
	var el *Element
	switch marker {
	case h.markers.Back:
		el = h.Back
	case h.markers.Next:
		el = h.Next
	case h.markers.Submit:
		el = h.Submit
	}
	if el == nil {
		return nil, false
	}
	return el, true
}

// QueryDisplay resolves the progress marker.
func (h *Host) QueryDisplay(marker string) (wizard.Display, bool) {
	if marker != h.markers.Progress || h.Progress == nil {
		return nil, false
	}
	return h.Progress, true
}

// SubmitForm dispatches a submit event on the host.
func (h *Host) SubmitForm() *Event {
	return h.Dispatch(wizard.EventSubmit)
}

// Changes returns the recorded mutations.
func (h *Host) Changes() []Change {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Change, len(h.changes))
	copy(out, h.changes)
	return out
}

// ChangeCount returns the number of recorded mutations.
func (h *Host) ChangeCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.changes)
}

// Unsubscribed returns how many subscriptions have been released.
func (h *Host) Unsubscribed() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.unsubscribed
}

// ActiveSteps returns the indexes of steps carrying the active marker.
func (h *Host) ActiveSteps() []int {
	var out []int
	for i, s := range h.Steps {
		if s.HasClass(h.markers.ActiveStep) {
			out = append(out, i)
		}
	}
	return out
}

// Controls returns the control activity as seen on the elements.
func (h *Host) Controls() wizard.ControlState {
	active := h.markers.ActiveControl
	return wizard.ControlState{
		Back:   h.Back != nil && h.Back.HasClass(active),
		Next:   h.Next != nil && h.Next.HasClass(active),
		Submit: h.Submit != nil && h.Submit.HasClass(active),
	}
}

// Package wizard turns a flat form into a multi-step wizard.
//
// A Controller is bound to one Host for its whole lifetime. The host exposes
// the structure it already contains (ordered step elements, back, next and
// submit controls, an optional progress display) through the capability
// interfaces in this file; the controller never creates structure, it only
// toggles named markers, writes the progress text and persists the active
// step index as an attribute on the host.
//
// The host must contain every required marker before Init is called.
package wizard

// Event names the controller subscribes to.
const (
	EventClick  = "click"
	EventSubmit = "submit"
)

// Element is a structural unit whose presentation is driven by named markers.
type Element interface {
	AddClass(name string)
	RemoveClass(name string)
	HasClass(name string) bool
}

// Event is delivered to bound handlers.
type Event interface {
	// PreventDefault cancels the host's default action, e.g. form submission.
	PreventDefault()
	DefaultPrevented() bool
}

// Handler receives events dispatched by the host.
type Handler func(Event)

// Subscription is returned by Control.On and released exactly once.
type Subscription interface {
	Unsubscribe()
}

// Control is an element that dispatches events.
type Control interface {
	Element
	On(event string, h Handler) Subscription
}

// Display is an element that shows text.
type Display interface {
	SetText(text string)
}

// Host is the container the controller is attached to.
type Host interface {
	Control

	// ID is the host's declared identifier, used in diagnostics.
	ID() string

	Attr(name string) (string, bool)
	SetAttr(name, value string)

	// QueryAll returns every element carrying marker, in document order.
	QueryAll(marker string) []Element
	// QueryControl returns the first control carrying marker.
	QueryControl(marker string) (Control, bool)
	// QueryDisplay returns the first display carrying marker.
	QueryDisplay(marker string) (Display, bool)
}

// Markers is the presentation vocabulary shared with markup and styling.
type Markers struct {
	Initialized   string
	ActiveStep    string
	ActiveControl string

	Step     string
	Back     string
	Next     string
	Submit   string
	Progress string

	// StepAttr persists the active step index on the host.
	StepAttr string
}

// DefaultMarkers returns the class and attribute names expected by the
// stock stylesheet.
func DefaultMarkers() Markers {
	return Markers{
		Initialized:   "is-init-form-wizard",
		ActiveStep:    "is-active",
		ActiveControl: "is-active",
		Step:          "js-form-wizard-step",
		Back:          "js-form-wizard-back",
		Next:          "js-form-wizard-next",
		Submit:        "js-form-wizard-submit",
		Progress:      "js-form-wizard-percentage",
		StepAttr:      "data-active-step",
	}
}

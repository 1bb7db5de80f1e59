// Package dom is an in-memory HTML document that can host a form wizard.
//
// Markup is parsed with golang.org/x/net/html into a mutable tree whose
// element nodes carry classes, attributes, text and event listeners. The
// form element implements wizard.Host; every element implements
// wizard.Control and wizard.Display. Presentation changes are reported to
// observers as Mutations so they can be mirrored to a remote client.
package dom

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Errors returned by Parse.
var (
	ErrNoForm = errors.New("no form element found")
)

// RefAttr is the attribute written on element nodes when rendering with refs.
const RefAttr = "data-fw-ref"

// Document is a parsed page holding one wizard form.
type Document struct {
	root *Node
	form *Node

	fallbackID string
	nextRef    int
	nextSub    int
	refs       map[int]*Node
	observers  map[int]func(Mutation)

	mu sync.RWMutex
}

type parseConfig struct {
	formID string
}

// ParseOption configures Parse.
type ParseOption func(*parseConfig)

// WithFormID selects the form whose id or data-id equals id.
func WithFormID(id string) ParseOption {
	return func(c *parseConfig) {
		c.formID = id
	}
}

// Parse reads markup and binds the document to its first form.
func Parse(r io.Reader, opts ...ParseOption) (*Document, error) {
	cfg := &parseConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	parsed, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	d := &Document{
		fallbackID: uuid.New().String(),
		refs:       make(map[int]*Node),
		observers:  make(map[int]func(Mutation)),
	}
	d.root = d.convert(parsed, nil)
	d.form = d.findForm(d.root, cfg.formID)
	if d.form == nil {
		return nil, ErrNoForm
	}
	return d, nil
}

// ParseString is Parse over a string.
func ParseString(markup string, opts ...ParseOption) (*Document, error) {
	return Parse(strings.NewReader(markup), opts...)
}

func (d *Document) convert(src *html.Node, parent *Node) *Node {
	n := &Node{
		doc:       d,
		parent:    parent,
		Type:      src.Type,
		Data:      src.Data,
		DataAtom:  src.DataAtom,
		Namespace: src.Namespace,
	}
	if src.Type == html.ElementNode {
		d.nextRef++
		n.ref = d.nextRef
		d.refs[n.ref] = n
		n.attrs = append(n.attrs, src.Attr...)
	}
	for c := src.FirstChild; c != nil; c = c.NextSibling {
		n.children = append(n.children, d.convert(c, n))
	}
	return n
}

func (d *Document) findForm(n *Node, id string) *Node {
	if n.Type == html.ElementNode && n.DataAtom == atom.Form {
		if id == "" || n.attr("id") == id || n.attr("data-id") == id {
			return n
		}
	}
	for _, c := range n.children {
		if f := d.findForm(c, id); f != nil {
			return f
		}
	}
	return nil
}

// Form returns the form element the wizard is bound to.
func (d *Document) Form() *Node {
	return d.form
}

// Root returns the document node.
func (d *Document) Root() *Node {
	return d.root
}

// ByRef returns the element with the given ref.
func (d *Document) ByRef(ref int) (*Node, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	n, ok := d.refs[ref]
	return n, ok
}

// Observe registers fn for every mutation. The returned function removes it.
// Observers run after the document lock is released.
func (d *Document) Observe(fn func(Mutation)) func() {
	d.mu.Lock()
	d.nextSub++
	id := d.nextSub
	d.observers[id] = fn
	d.mu.Unlock()

	return func() {
		d.mu.Lock()
		delete(d.observers, id)
		d.mu.Unlock()
	}
}

// notify must be called without d.mu held.
func (d *Document) notify(m Mutation) {
	d.mu.RLock()
	fns := make([]func(Mutation), 0, len(d.observers))
	for _, fn := range d.observers {
		fns = append(fns, fn)
	}
	d.mu.RUnlock()

	for _, fn := range fns {
		fn(m)
	}
}

// SetValue sets the value of the named form field and reports whether a
// field with that name exists.
// Radios sharing the name are checked only when their value matches.
func (d *Document) SetValue(name, value string) bool {
	found := false
	for _, f := range d.form.FieldNodes() {
		if f.FieldName() != name {
			continue
		}
		found = true
		if f.FieldType() == "radio" {
			own, _ := f.Attr("value")
			if own == value {
				f.SetFieldValue(value)
			} else {
				f.SetFieldValue("")
			}
			continue
		}
		f.SetFieldValue(value)
		return true
	}
	return found
}

// Values returns the current value of every named field in the form.
func (d *Document) Values() map[string]string {
	out := make(map[string]string)
	for _, f := range d.form.FieldNodes() {
		name := f.FieldName()
		if name == "" {
			continue
		}
		value := f.FieldValue()
		if t := f.FieldType(); (t == "checkbox" || t == "radio") && value == "" {
			continue
		}
		out[name] = value
	}
	return out
}

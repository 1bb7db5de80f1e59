package dom

import (
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/gabrielmiguelok/formwizard/pkg/wizard"
)

func (n *Node) isField() bool {
	if n.Type != html.ElementNode {
		return false
	}
	switch n.DataAtom {
	case atom.Input:
		switch n.attr("type") {
		case "submit", "button", "reset", "image":
			return false
		}
		return true
	case atom.Select, atom.Textarea:
		return true
	}
	return false
}

func (n *Node) isCheckable() bool {
	t := n.attr("type")
	return n.DataAtom == atom.Input && (t == "checkbox" || t == "radio")
}

// FieldNodes returns the input, select and textarea descendants.
func (n *Node) FieldNodes() []*Node {
	n.doc.mu.RLock()
	defer n.doc.mu.RUnlock()

	var out []*Node
	n.walk(func(c *Node) {
		if c.isField() {
			out = append(out, c)
		}
	})
	return out
}

// FieldElements returns the form fields inside the element as wizard
// elements, for validators.
func (n *Node) FieldElements() []wizard.Element {
	fields := n.FieldNodes()
	out := make([]wizard.Element, len(fields))
	for i, f := range fields {
		out[i] = f
	}
	return out
}

// FieldName returns the name attribute.
func (n *Node) FieldName() string {
	n.doc.mu.RLock()
	defer n.doc.mu.RUnlock()
	return n.attr("name")
}

// FieldType returns the input type, or the element name for select and
// textarea.
func (n *Node) FieldType() string {
	n.doc.mu.RLock()
	defer n.doc.mu.RUnlock()
	if n.DataAtom == atom.Input {
		if t := n.attr("type"); t != "" {
			return t
		}
		return "text"
	}
	return n.Data
}

// FieldValue returns the current value. Unchecked checkboxes and radios
// have no value.
func (n *Node) FieldValue() string {
	n.doc.mu.RLock()
	defer n.doc.mu.RUnlock()
	return n.fieldValue()
}

func (n *Node) fieldValue() string {
	switch n.DataAtom {
	case atom.Textarea:
		return n.text()
	case atom.Select:
		var first, selected string
		seen, found := false, false
		n.walk(func(o *Node) {
			if o.DataAtom != atom.Option {
				return
			}
			v := o.optionValue()
			if !seen {
				first, seen = v, true
			}
			if o.hasAttr("selected") && !found {
				selected, found = v, true
			}
		})
		if found {
			return selected
		}
		return first
	}
	if n.isCheckable() {
		if !n.hasAttr("checked") {
			return ""
		}
		if v := n.attr("value"); v != "" {
			return v
		}
		return "on"
	}
	return n.attr("value")
}

// FieldOptions returns the option values of a select, in document order.
func (n *Node) FieldOptions() []string {
	n.doc.mu.RLock()
	defer n.doc.mu.RUnlock()

	if n.DataAtom != atom.Select {
		return nil
	}
	var out []string
	n.walk(func(o *Node) {
		if o.DataAtom == atom.Option {
			out = append(out, o.optionValue())
		}
	})
	return out
}

func (n *Node) optionValue() string {
	if n.hasAttr("value") {
		return n.attr("value")
	}
	return n.text()
}

// SetFieldValue mirrors a value typed on the client. It does not notify
// observers. For checkboxes and radios any non-empty value checks the box.
func (n *Node) SetFieldValue(value string) {
	n.doc.mu.Lock()
	defer n.doc.mu.Unlock()

	switch {
	case n.DataAtom == atom.Textarea:
		n.children = []*Node{{doc: n.doc, parent: n, Type: html.TextNode, Data: value}}
	case n.DataAtom == atom.Select:
		n.walk(func(o *Node) {
			if o.DataAtom != atom.Option {
				return
			}
			if o.optionValue() == value {
				o.setAttr("selected", "")
			} else {
				o.removeAttr("selected")
			}
		})
	case n.isCheckable():
		if value == "" {
			n.removeAttr("checked")
		} else {
			n.setAttr("checked", "")
		}
	default:
		n.setAttr("value", value)
	}
}

// Package js describes the DOM commands a browser applies to mirror the
// server-side wizard document. Commands address elements by their dom ref.
package js

import (
	"fmt"
	"sync"

	"github.com/gabrielmiguelok/formwizard/pkg/dom"
)

// Op is a client operation.
type Op string

const (
	OpAddClass    Op = "addClass"
	OpRemoveClass Op = "removeClass"
	OpSetAttr     Op = "setAttr"
	OpRemoveAttr  Op = "removeAttr"
	OpSetText     Op = "setText"
)

// Command is one client operation.
type Command struct {
	Op    Op     `json:"op" msgpack:"op"`
	Ref   int    `json:"ref" msgpack:"ref"`
	Name  string `json:"name,omitempty" msgpack:"name,omitempty"`
	Value string `json:"value,omitempty" msgpack:"value,omitempty"`
}

// String implements fmt.Stringer.
func (c Command) String() string {
	switch c.Op {
	case OpSetAttr:
		return fmt.Sprintf("%s(%d,%q,%q)", c.Op, c.Ref, c.Name, c.Value)
	case OpSetText:
		return fmt.Sprintf("%s(%d,%q)", c.Op, c.Ref, c.Value)
	default:
		return fmt.Sprintf("%s(%d,%q)", c.Op, c.Ref, c.Name)
	}
}

// AddClass adds a class on the client.
func AddClass(ref int, class string) Command {
	return Command{Op: OpAddClass, Ref: ref, Name: class}
}

// RemoveClass removes a class on the client.
func RemoveClass(ref int, class string) Command {
	return Command{Op: OpRemoveClass, Ref: ref, Name: class}
}

// SetAttr sets an attribute on the client.
func SetAttr(ref int, attr, value string) Command {
	return Command{Op: OpSetAttr, Ref: ref, Name: attr, Value: value}
}

// RemoveAttr removes an attribute on the client.
func RemoveAttr(ref int, attr string) Command {
	return Command{Op: OpRemoveAttr, Ref: ref, Name: attr}
}

// SetText replaces the text content on the client.
func SetText(ref int, text string) Command {
	return Command{Op: OpSetText, Ref: ref, Value: text}
}

// FromMutation converts a document mutation.
func FromMutation(m dom.Mutation) Command {
	switch m.Kind {
	case dom.MutationAddClass:
		return AddClass(m.Ref, m.Name)
	case dom.MutationRemoveClass:
		return RemoveClass(m.Ref, m.Name)
	case dom.MutationSetAttr:
		return SetAttr(m.Ref, m.Name, m.Value)
	case dom.MutationRemoveAttr:
		return RemoveAttr(m.Ref, m.Name)
	default:
		return SetText(m.Ref, m.Value)
	}
}

// Commands holds a sequence of commands.
type Commands []Command

// Payload converts the commands to plain maps for a protocol payload.
func (cs Commands) Payload() []any {
	out := make([]any, len(cs))
	for i, c := range cs {
		m := map[string]any{"op": string(c.Op), "ref": c.Ref}
		if c.Name != "" {
			m["name"] = c.Name
		}
		if c.Value != "" || c.Op == OpSetText || c.Op == OpSetAttr {
			m["value"] = c.Value
		}
		out[i] = m
	}
	return out
}

// Buffer collects the mutations of a document until flushed.
type Buffer struct {
	cmds Commands
	stop func()
	mu   sync.Mutex
}

// Record starts collecting mutations from doc.
func Record(doc *dom.Document) *Buffer {
	b := &Buffer{}
	b.stop = doc.Observe(func(m dom.Mutation) {
		b.mu.Lock()
		b.cmds = append(b.cmds, FromMutation(m))
		b.mu.Unlock()
	})
	return b
}

// Flush returns and clears the collected commands.
func (b *Buffer) Flush() Commands {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.cmds
	b.cmds = nil
	return out
}

// Close stops collecting.
func (b *Buffer) Close() {
	b.stop()
}

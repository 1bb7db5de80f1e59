package js

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gabrielmiguelok/formwizard/pkg/dom"
)

func TestFromMutation(t *testing.T) {
	tests := []struct {
		in   dom.Mutation
		want Command
	}{
		{dom.Mutation{Ref: 1, Kind: dom.MutationAddClass, Name: "is-active"}, AddClass(1, "is-active")},
		{dom.Mutation{Ref: 2, Kind: dom.MutationRemoveClass, Name: "is-active"}, RemoveClass(2, "is-active")},
		{dom.Mutation{Ref: 3, Kind: dom.MutationSetAttr, Name: "data-active-step", Value: "1"}, SetAttr(3, "data-active-step", "1")},
		{dom.Mutation{Ref: 4, Kind: dom.MutationRemoveAttr, Name: "hidden"}, RemoveAttr(4, "hidden")},
		{dom.Mutation{Ref: 5, Kind: dom.MutationSetText, Value: "2/3"}, SetText(5, "2/3")},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FromMutation(tt.in), tt.want.String())
	}
}

func TestCommands_Payload(t *testing.T) {
	p := Commands{AddClass(1, "a"), SetText(2, ""), SetAttr(3, "x", "")}.Payload()
	require.Len(t, p, 3)
	assert.Equal(t, map[string]any{"op": "addClass", "ref": 1, "name": "a"}, p[0])
	assert.Equal(t, map[string]any{"op": "setText", "ref": 2, "value": ""}, p[1])
	assert.Equal(t, map[string]any{"op": "setAttr", "ref": 3, "name": "x", "value": ""}, p[2])
}

func TestBuffer(t *testing.T) {
	doc, err := dom.ParseString(`<form><span class="p"></span></form>`)
	require.NoError(t, err)
	span := doc.Form().Find("p")[0]

	buf := Record(doc)
	span.AddClass("is-active")
	span.SetText("1/2")

	got := buf.Flush()
	assert.Equal(t, Commands{AddClass(span.Ref(), "is-active"), SetText(span.Ref(), "1/2")}, got)
	assert.Empty(t, buf.Flush())

	buf.Close()
	span.RemoveClass("is-active")
	assert.Empty(t, buf.Flush())
}

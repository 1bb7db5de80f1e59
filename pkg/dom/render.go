package dom

import (
	"io"
	"strconv"

	"golang.org/x/net/html"
)

type renderConfig struct {
	refs bool
}

// RenderOption configures rendering.
type RenderOption func(*renderConfig)

// WithRefs writes each element's ref as a data-fw-ref attribute so a client
// can address patches to it.
func WithRefs() RenderOption {
	return func(c *renderConfig) {
		c.refs = true
	}
}

// Render writes the whole document.
func (d *Document) Render(w io.Writer, opts ...RenderOption) error {
	return d.render(w, d.root, opts)
}

// RenderForm writes only the form element.
func (d *Document) RenderForm(w io.Writer, opts ...RenderOption) error {
	return d.render(w, d.form, opts)
}

func (d *Document) render(w io.Writer, n *Node, opts []RenderOption) error {
	cfg := &renderConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	d.mu.RLock()
	out := toHTML(n, cfg)
	d.mu.RUnlock()

	return html.Render(w, out)
}

func toHTML(n *Node, cfg *renderConfig) *html.Node {
	out := &html.Node{
		Type:      n.Type,
		Data:      n.Data,
		DataAtom:  n.DataAtom,
		Namespace: n.Namespace,
	}
	if n.Type == html.ElementNode {
		out.Attr = make([]html.Attribute, 0, len(n.attrs)+1)
		out.Attr = append(out.Attr, n.attrs...)
		if cfg.refs {
			out.Attr = append(out.Attr, html.Attribute{Key: RefAttr, Val: strconv.Itoa(n.ref)})
		}
	}
	for _, c := range n.children {
		out.AppendChild(toHTML(c, cfg))
	}
	return out
}

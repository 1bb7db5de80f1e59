// Package tui runs a form wizard in the terminal. The wizard controller
// drives an in-memory document exactly as it would in a browser; the view
// reads the document's markers back.
package tui

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/gabrielmiguelok/formwizard/pkg/dom"
	"github.com/gabrielmiguelok/formwizard/pkg/forms"
	"github.com/gabrielmiguelok/formwizard/pkg/logging"
	"github.com/gabrielmiguelok/formwizard/pkg/wizard"
)

type options struct {
	logger      logging.Logger
	markers     wizard.Markers
	stepOptions []forms.StepOption
	keys        KeyMap
}

// Option configures the model.
type Option func(*options)

// WithLogger sets the wizard logger.
func WithLogger(l logging.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMarkers overrides the marker vocabulary.
func WithMarkers(m wizard.Markers) Option {
	return func(o *options) { o.markers = m }
}

// WithStepOptions configures step validation.
func WithStepOptions(opts ...forms.StepOption) Option {
	return func(o *options) { o.stepOptions = append(o.stepOptions, opts...) }
}

// WithKeyMap replaces the key bindings.
func WithKeyMap(k KeyMap) Option {
	return func(o *options) { o.keys = k }
}

// Model is the Bubble Tea model of a terminal wizard.
type Model struct {
	doc        *dom.Document
	form       *dom.Node
	controller *wizard.Controller
	markers    wizard.Markers

	keys KeyMap
	help help.Model

	focus     int
	report    *forms.Report
	values    map[string]string
	submitted bool
	quitting  bool
}

// New initializes a wizard on the document's form.
func New(doc *dom.Document, opts ...Option) (*Model, error) {
	o := &options{
		logger:  logging.NopLogger{},
		markers: wizard.DefaultMarkers(),
		keys:    DefaultKeyMap(),
	}
	for _, opt := range opts {
		opt(o)
	}

	m := &Model{
		doc:     doc,
		form:    doc.Form(),
		markers: o.markers,
		keys:    o.keys,
		help:    help.New(),
	}

	stepOpts := append([]forms.StepOption{
		forms.WithLogger(o.logger),
		forms.OnReport(func(r forms.Report) { m.report = &r }),
	}, o.stepOptions...)

	c, err := wizard.Attach(m.form,
		wizard.WithLogger(o.logger),
		wizard.WithMarkers(o.markers),
		wizard.WithValidator(forms.StepValidator(stepOpts...)),
	)
	if err != nil {
		return nil, err
	}
	m.controller = c
	return m, nil
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.help.Width = msg.Width

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, m.keys.Back):
			m.press(m.markers.Back)
		case key.Matches(msg, m.keys.Next):
			m.press(m.markers.Next)
		case key.Matches(msg, m.keys.Submit):
			if !m.isActive(m.markers.Submit) {
				m.press(m.markers.Next)
				break
			}
			if m.submit() {
				return m, tea.Quit
			}
		case key.Matches(msg, m.keys.Focus):
			m.moveFocus(1)
		case key.Matches(msg, m.keys.FocusPrev):
			m.moveFocus(-1)
		case key.Matches(msg, m.keys.Toggle):
			m.toggle()
		case key.Matches(msg, m.keys.Delete):
			m.deleteRune()
		case msg.Type == tea.KeyRunes:
			m.typeRunes(msg.Runes)
		}
	}
	return m, nil
}

func (m *Model) control(marker string) *dom.Node {
	nodes := m.form.Find(marker)
	if len(nodes) == 0 {
		return nil
	}
	return nodes[0]
}

func (m *Model) isActive(marker string) bool {
	n := m.control(marker)
	return n != nil && n.HasClass(m.markers.ActiveControl)
}

// press clicks a control the way a user can: only while it is shown.
func (m *Model) press(marker string) {
	if !m.isActive(marker) {
		return
	}
	before := m.controller.ActiveStep()
	m.report = nil
	m.control(marker).Click()
	if m.controller.ActiveStep() != before {
		m.focus = 0
	}
}

func (m *Model) submit() bool {
	m.report = nil
	ev := m.form.Dispatch(wizard.EventSubmit)
	if ev.DefaultPrevented() {
		return false
	}
	m.values = m.doc.Values()
	m.submitted = true
	return true
}

// fields returns the editable fields of the active step.
func (m *Model) fields() []*dom.Node {
	steps := m.controller.Steps()
	active := m.controller.ActiveStep()
	if active < 0 || active >= len(steps) {
		return nil
	}
	step, ok := steps[active].(*dom.Node)
	if !ok {
		return nil
	}

	var out []*dom.Node
	for _, f := range step.FieldNodes() {
		if f.FieldType() == "hidden" {
			continue
		}
		out = append(out, f)
	}
	return out
}

func (m *Model) focused() *dom.Node {
	fields := m.fields()
	if m.focus < 0 || m.focus >= len(fields) {
		return nil
	}
	return fields[m.focus]
}

func (m *Model) moveFocus(delta int) {
	n := len(m.fields())
	if n == 0 {
		return
	}
	m.focus = ((m.focus+delta)%n + n) % n
}

func (m *Model) toggle() {
	f := m.focused()
	if f == nil {
		return
	}
	switch f.FieldType() {
	case "checkbox":
		if f.FieldValue() == "" {
			f.SetFieldValue("on")
		} else {
			f.SetFieldValue("")
		}
	case "radio":
		own, _ := f.Attr("value")
		if own == "" {
			own = "on"
		}
		m.doc.SetValue(f.FieldName(), own)
	case "select":
		opts := f.FieldOptions()
		if len(opts) == 0 {
			return
		}
		current := f.FieldValue()
		next := opts[0]
		for i, o := range opts {
			if o == current {
				next = opts[(i+1)%len(opts)]
				break
			}
		}
		f.SetFieldValue(next)
	default:
		f.SetFieldValue(f.FieldValue() + " ")
	}
}

func editable(f *dom.Node) bool {
	switch f.FieldType() {
	case "checkbox", "radio", "select":
		return false
	}
	return true
}

func (m *Model) typeRunes(runes []rune) {
	f := m.focused()
	if f == nil || !editable(f) {
		return
	}
	f.SetFieldValue(f.FieldValue() + string(runes))
}

func (m *Model) deleteRune() {
	f := m.focused()
	if f == nil || !editable(f) {
		return
	}
	v := f.FieldValue()
	if v == "" {
		return
	}
	_, size := utf8.DecodeLastRuneInString(v)
	f.SetFieldValue(v[:len(v)-size])
}

// View implements tea.Model.
func (m *Model) View() string {
	if m.quitting && !m.submitted {
		return ""
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(m.form.ID()))
	if nodes := m.form.Find(m.markers.Progress); len(nodes) > 0 {
		b.WriteString("  " + progressStyle.Render(nodes[0].Text()))
	}
	b.WriteString("\n")

	if m.submitted {
		b.WriteString(doneStyle.Render("Submitted.") + "\n")
		names := make([]string, 0, len(m.values))
		for name := range m.values {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(&b, "  %s: %s\n", labelStyle.Render(name), m.values[name])
		}
		return b.String()
	}

	b.WriteString(stepStyle.Render(m.viewFields()))
	b.WriteString("\n")
	b.WriteString(m.viewControls())
	b.WriteString("\n\n")
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func (m *Model) viewFields() string {
	fields := m.fields()
	if len(fields) == 0 {
		return progressStyle.Render("(nothing to fill in)")
	}

	var errs forms.Errors
	if m.report != nil {
		errs = m.report.Errors
	}

	lines := make([]string, 0, len(fields))
	for i, f := range fields {
		cursor := "  "
		label := labelStyle.Render(fieldLabel(f))
		if i == m.focus {
			cursor = focusedStyle.Render("> ")
			label = focusedStyle.Render(fieldLabel(f))
		}

		line := cursor + label + ": " + fieldDisplay(f)
		if msgs := errs[f.FieldName()]; len(msgs) > 0 {
			line += "  " + invalidStyle.Render(strings.Join(msgs, "; "))
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func (m *Model) viewControls() string {
	var parts []string
	for _, c := range []struct{ marker, label string }{
		{m.markers.Back, "Back"},
		{m.markers.Next, "Next"},
		{m.markers.Submit, "Submit"},
	} {
		style := inactiveControlStyle
		if m.isActive(c.marker) {
			style = activeControlStyle
		}
		parts = append(parts, style.Render("["+c.label+"]"))
	}
	return strings.Join(parts, " ")
}

func fieldLabel(f *dom.Node) string {
	if l, ok := f.Attr("aria-label"); ok && l != "" {
		return l
	}
	if p, ok := f.Attr("placeholder"); ok && p != "" {
		return p
	}
	return f.FieldName()
}

func fieldDisplay(f *dom.Node) string {
	switch f.FieldType() {
	case "checkbox":
		if f.FieldValue() != "" {
			return "[x]"
		}
		return "[ ]"
	case "radio":
		own, _ := f.Attr("value")
		if f.FieldValue() != "" {
			return "(●) " + own
		}
		return "( ) " + own
	case "password":
		return strings.Repeat("*", utf8.RuneCountInString(f.FieldValue()))
	}
	return f.FieldValue()
}

// Submitted returns the submitted values once the form was sent.
func (m *Model) Submitted() (map[string]string, bool) {
	return m.values, m.submitted
}

// ActiveStep returns the wizard's active step.
func (m *Model) ActiveStep() int {
	return m.controller.ActiveStep()
}

// Close destroys the wizard bindings.
func (m *Model) Close() {
	m.controller.Destroy()
}

// Run runs the model until it quits and then destroys the wizard.
func Run(m *Model, opts ...tea.ProgramOption) error {
	defer m.Close()
	if _, err := tea.NewProgram(m, opts...).Run(); err != nil {
		return fmt.Errorf("run tui: %w", err)
	}
	return nil
}

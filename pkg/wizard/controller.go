package wizard

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/gabrielmiguelok/formwizard/pkg/logging"
)

// Validator decides whether the given step may be left forward or submitted.
// It is called with the controller locked and must not call back into it.
type Validator func(step Element) bool

// AlwaysValid is the default validator.
func AlwaysValid(Element) bool { return true }

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the diagnostic channel.
func WithLogger(l logging.Logger) Option {
	return func(c *Controller) {
		c.logger = l
	}
}

// WithMarkers overrides the marker vocabulary.
func WithMarkers(m Markers) Option {
	return func(c *Controller) {
		c.markers = m
	}
}

// WithValidator sets the step validator.
func WithValidator(v Validator) Option {
	return func(c *Controller) {
		c.SetValidator(v)
	}
}

// Controller is the step state machine bound to one host.
//
// Every exported method takes the controller's lock, so callers on several
// goroutines are serialised. Bound event handlers only try the lock: an event
// dispatched while another handler runs, such as a submit fired from inside a
// validator, is reported as ErrBusy and dropped.
type Controller struct {
	host      Host
	markers   Markers
	logger    logging.Logger
	validator Validator

	steps    []Element
	back     Control
	next     Control
	submit   Control
	progress Display

	activeStep int
	totalSteps int

	subs []Subscription

	mu sync.Mutex
}

// New creates a controller for host. It does not touch the host; call Init.
func New(host Host, opts ...Option) *Controller {
	c := &Controller{
		host:      host,
		markers:   DefaultMarkers(),
		logger:    logging.DefaultLogger,
		validator: AlwaysValid,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Attach creates a controller and initialises it.
func Attach(host Host, opts ...Option) (*Controller, error) {
	c := New(host, opts...)
	if err := c.Init(); err != nil {
		return nil, err
	}
	return c, nil
}

// SetValidator replaces the step validator. nil restores AlwaysValid.
func (c *Controller) SetValidator(v Validator) {
	if v == nil {
		v = AlwaysValid
	}
	c.mu.Lock()
	c.validator = v
	c.mu.Unlock()
}

// IsInitialized reports whether the host carries the initialized marker.
func (c *Controller) IsInitialized() bool {
	return c.host.HasClass(c.markers.Initialized)
}

// ActiveStep returns the current step index.
func (c *Controller) ActiveStep() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.activeStep
}

// TotalSteps returns the number of bound steps, zero when unbound.
func (c *Controller) TotalSteps() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.totalSteps
}

// Steps returns the bound step elements.
func (c *Controller) Steps() []Element {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Element, len(c.steps))
	copy(out, c.steps)
	return out
}

// Init binds the host structure, renders the starting step and installs the
// navigation bindings. On an already initialised host it only logs.
//
// A missing required element or an out-of-range persisted step fails Init
// before anything on the host is changed.
func (c *Controller) Init() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.IsInitialized() {
		c.logger.Error("form wizard is already initialized", logging.String("id", c.host.ID()))
		return nil
	}

	if err := c.bind(); err != nil {
		c.unbind()
		return err
	}

	start, err := c.getActiveStep()
	if err != nil {
		c.unbind()
		return err
	}
	if err := c.setActiveStep(start); err != nil {
		c.unbind()
		return err
	}

	c.addEvents()
	c.host.AddClass(c.markers.Initialized)

	c.logger.Debug("form wizard initialized",
		logging.String("id", c.host.ID()),
		logging.Int("step", c.activeStep),
		logging.Int("total", c.totalSteps),
	)
	return nil
}

func (c *Controller) bind() error {
	m := c.markers

	c.steps = c.host.QueryAll(m.Step)
	if len(c.steps) == 0 {
		return fmt.Errorf("%w: %s", ErrMissingElement, m.Step)
	}

	var ok bool
	if c.back, ok = c.host.QueryControl(m.Back); !ok {
		return fmt.Errorf("%w: %s", ErrMissingElement, m.Back)
	}
	if c.next, ok = c.host.QueryControl(m.Next); !ok {
		return fmt.Errorf("%w: %s", ErrMissingElement, m.Next)
	}
	if c.submit, ok = c.host.QueryControl(m.Submit); !ok {
		return fmt.Errorf("%w: %s", ErrMissingElement, m.Submit)
	}
	if d, ok := c.host.QueryDisplay(m.Progress); ok {
		c.progress = d
	}

	c.totalSteps = len(c.steps)
	return nil
}

func (c *Controller) unbind() {
	c.steps = nil
	c.back = nil
	c.next = nil
	c.submit = nil
	c.progress = nil
	c.activeStep = 0
	c.totalSteps = 0
}

// GetActiveStep reads the persisted step index. An absent or empty
// attribute means step 0. The value is not range checked.
func (c *Controller) GetActiveStep() (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.getActiveStep()
}

func (c *Controller) getActiveStep() (int, error) {
	raw, ok := c.host.Attr(c.markers.StepAttr)
	raw = strings.TrimSpace(raw)
	if !ok || raw == "" {
		return 0, nil
	}
	step, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidStep, raw)
	}
	return step, nil
}

// SetActiveStep activates step, persists it on the host and re-derives the
// controls and the progress text. It does not clamp: a step outside
// [0, TotalSteps) returns a *StepRangeError and leaves the host unchanged.
func (c *Controller) SetActiveStep(step int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.setActiveStep(step)
}

func (c *Controller) setActiveStep(step int) error {
	if c.steps == nil {
		return ErrNotBound
	}
	if step < 0 || step >= c.totalSteps {
		return &StepRangeError{Step: step, Total: c.totalSteps}
	}

	c.activeStep = step
	c.host.SetAttr(c.markers.StepAttr, strconv.Itoa(step))

	for _, s := range c.steps {
		s.RemoveClass(c.markers.ActiveStep)
	}
	c.steps[step].AddClass(c.markers.ActiveStep)

	c.handleControls()
	c.handlePercentage()
	return nil
}

// HandleControls re-applies the active marker to the controls.
func (c *Controller) HandleControls() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handleControls()
}

func (c *Controller) handleControls() {
	if c.back == nil || c.next == nil || c.submit == nil {
		return
	}
	state := ControlsFor(c.activeStep, c.totalSteps)
	c.mark(c.back, state.Back)
	c.mark(c.next, state.Next)
	c.mark(c.submit, state.Submit)
}

func (c *Controller) mark(el Element, active bool) {
	if active {
		el.AddClass(c.markers.ActiveControl)
	} else {
		el.RemoveClass(c.markers.ActiveControl)
	}
}

// HandlePercentage re-writes the progress text. Hosts without a progress
// display are skipped.
func (c *Controller) HandlePercentage() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlePercentage()
}

func (c *Controller) handlePercentage() {
	if c.progress == nil {
		return
	}
	c.progress.SetText(Progress(c.activeStep, c.totalSteps))
}

// HandleClickBack moves one step back without validation. It relies on the
// back control being inactive on the first step; called there directly it
// returns a *StepRangeError.
func (c *Controller) HandleClickBack() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clickBack()
}

func (c *Controller) clickBack() error {
	return c.setActiveStep(c.activeStep - 1)
}

// HandleClickNext advances one step if the validator accepts the current
// step. A rejection is silent.
func (c *Controller) HandleClickNext() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clickNext()
}

func (c *Controller) clickNext() error {
	if c.steps == nil {
		return ErrNotBound
	}
	current := c.activeStep
	if !c.validator(c.steps[current]) {
		return nil
	}
	return c.setActiveStep(current + 1)
}

// HandleSubmit cancels the submission when the current step is invalid.
// It never changes the active step.
func (c *Controller) HandleSubmit(ev Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handleSubmit(ev)
}

func (c *Controller) handleSubmit(ev Event) error {
	if c.steps == nil {
		return ErrNotBound
	}
	if !c.validator(c.steps[c.activeStep]) {
		ev.PreventDefault()
	}
	return nil
}

func (c *Controller) addEvents() {
	c.subs = append(c.subs,
		c.back.On(EventClick, func(Event) { c.dispatch("back", c.clickBack) }),
		c.next.On(EventClick, func(Event) { c.dispatch("next", c.clickNext) }),
		c.host.On(EventSubmit, func(ev Event) {
			c.dispatch("submit", func() error { return c.handleSubmit(ev) })
		}),
	)
}

// dispatch runs a bound handler under the lock, or reports ErrBusy when the
// lock is already held.
func (c *Controller) dispatch(action string, fn func() error) {
	if !c.mu.TryLock() {
		c.report(action, ErrBusy)
		return
	}
	defer c.mu.Unlock()
	c.report(action, fn())
}

func (c *Controller) removeEvents() {
	for _, s := range c.subs {
		s.Unsubscribe()
	}
	c.subs = nil
}

// report logs a fault raised inside a bound handler; the host's dispatch has
// no way to receive it.
func (c *Controller) report(action string, err error) {
	if err == nil {
		return
	}
	c.logger.Error("form wizard handler failed",
		logging.String("id", c.host.ID()),
		logging.String("action", action),
		logging.Err(err),
	)
}

// Destroy removes the bindings, drops every bound handle and clears the
// initialized marker. The controller is inert afterwards and should be
// discarded. On a host that is not initialised it only logs.
func (c *Controller) Destroy() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.IsInitialized() {
		c.logger.Error("form wizard is not initialized", logging.String("id", c.host.ID()))
		return
	}

	c.removeEvents()
	c.unbind()
	c.host.RemoveClass(c.markers.Initialized)
}

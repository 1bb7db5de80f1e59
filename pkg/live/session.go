// Package live runs form wizards server-side. Each browser connection gets
// its own document and controller; dom mutations stream back as patches.
package live

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/gabrielmiguelok/formwizard/pkg/dom"
	"github.com/gabrielmiguelok/formwizard/pkg/forms"
	"github.com/gabrielmiguelok/formwizard/pkg/js"
	"github.com/gabrielmiguelok/formwizard/pkg/logging"
	"github.com/gabrielmiguelok/formwizard/pkg/metrics"
	"github.com/gabrielmiguelok/formwizard/pkg/protocol"
	"github.com/gabrielmiguelok/formwizard/pkg/transport"
	"github.com/gabrielmiguelok/formwizard/pkg/wizard"
)

// Common session errors.
var (
	ErrUnknownEvent  = errors.New("unknown event")
	ErrUnknownTarget = errors.New("unknown click target")
	ErrInactive      = errors.New("control is not active")
	ErrUnknownField  = errors.New("unknown field")
	ErrTooManyErrors = errors.New("too many client errors")
	ErrRateLimited   = errors.New("message rate exceeded")
)

// Session is one connected wizard.
type Session struct {
	id          string
	topic       string
	connectedAt time.Time

	conn       transport.Conn
	doc        *dom.Document
	controller *wizard.Controller
	buffer     *js.Buffer
	markers    wizard.Markers
	logger     logging.Logger
	metrics    *metrics.Metrics

	// lastReport is the outcome of the most recent step validation.
	lastReport *forms.Report

	// limiter is nil when client messages are not rate limited.
	limiter *rate.Limiter

	errorCount int
	maxErrors  int
}

func newSession(conn transport.Conn, doc *dom.Document, cfg *config) *Session {
	s := &Session{
		id:          conn.ID(),
		topic:       "lv:" + conn.ID(),
		connectedAt: time.Now(),
		conn:        conn,
		doc:         doc,
		markers:     cfg.markers,
		maxErrors:   cfg.maxErrors,
		metrics:     cfg.metrics,
	}
	s.logger = cfg.logger.With(logging.String("session", s.id))
	if cfg.messageRate > 0 {
		s.limiter = rate.NewLimiter(cfg.messageRate, max(cfg.messageBurst, 1))
	}

	stepOpts := append([]forms.StepOption{
		forms.WithLogger(s.logger),
		forms.OnReport(func(r forms.Report) { s.lastReport = &r }),
	}, cfg.stepOptions...)

	s.controller = wizard.New(doc.Form(),
		wizard.WithLogger(s.logger),
		wizard.WithMarkers(cfg.markers),
		wizard.WithValidator(forms.StepValidator(stepOpts...)),
	)
	return s
}

// ID returns the session id, shared with its connection.
func (s *Session) ID() string { return s.id }

// Topic is the protocol topic of every message the session sends.
func (s *Session) Topic() string { return s.topic }

// ConnectedAt returns when the session started.
func (s *Session) ConnectedAt() time.Time { return s.connectedAt }

// ActiveStep returns the controller's active step.
func (s *Session) ActiveStep() int { return s.controller.ActiveStep() }

// Values returns the current form values.
func (s *Session) Values() map[string]string { return s.doc.Values() }

func (s *Session) run(ctx context.Context) error {
	s.metrics.SessionStarted()
	defer func() { s.metrics.SessionEnded(time.Since(s.connectedAt)) }()

	s.buffer = js.Record(s.doc)
	defer s.buffer.Close()

	if err := s.controller.Init(); err != nil {
		_ = s.conn.Send(protocol.ErrorMessage(s.topic, err.Error()))
		return fmt.Errorf("init wizard: %w", err)
	}
	defer s.controller.Destroy()

	if err := s.flush(""); err != nil {
		return err
	}

	for {
		select {
		case msg := <-s.conn.Receive():
			if err := s.handle(msg); err != nil {
				return err
			}
		case <-s.conn.Done():
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// handle applies one client message. Only transport failures and the error
// budget end the session.
func (s *Session) handle(msg *protocol.Message) error {
	s.lastReport = nil
	event := eventLabel(msg.Event)
	s.metrics.MessageReceived(event)

	var err error
	switch {
	case s.limiter != nil && !s.limiter.Allow():
		err = ErrRateLimited
	case msg.Event == protocol.EventClick:
		err = s.click(msg.PayloadString("target"))
	case msg.Event == protocol.EventInput:
		err = s.input(msg.PayloadString("name"), msg.PayloadString("value"))
	case msg.Event == protocol.EventSubmit:
		return s.submit(msg.Ref)
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownEvent, msg.Event)
	}

	if err != nil {
		s.metrics.MessageRejected(event)
		s.logger.Warn("client message rejected", logging.String("event", msg.Event), logging.Err(err))
		if sendErr := s.conn.Send(protocol.ErrorMessage(s.topic, err.Error()).WithRef(msg.Ref)); sendErr != nil {
			return sendErr
		}
		s.errorCount++
		if s.maxErrors > 0 && s.errorCount >= s.maxErrors {
			return ErrTooManyErrors
		}
		return nil
	}
	s.errorCount = 0
	return s.flush(msg.Ref)
}

func (s *Session) click(target string) error {
	var marker string
	switch target {
	case protocol.TargetBack:
		marker = s.markers.Back
	case protocol.TargetNext:
		marker = s.markers.Next
	default:
		return fmt.Errorf("%w: %q", ErrUnknownTarget, target)
	}

	nodes := s.doc.Form().Find(marker)
	if len(nodes) == 0 {
		return fmt.Errorf("%w: %q", ErrUnknownTarget, target)
	}
	// The page only offers controls that carry the active marker.
	if !nodes[0].HasClass(s.markers.ActiveControl) {
		return fmt.Errorf("%w: %q", ErrInactive, target)
	}
	before := s.controller.ActiveStep()
	nodes[0].Click()
	s.metrics.Navigation(target, s.controller.ActiveStep() != before)
	return nil
}

func (s *Session) input(name, value string) error {
	if name == "" || !s.doc.SetValue(name, value) {
		return fmt.Errorf("%w: %q", ErrUnknownField, name)
	}
	return nil
}

func (s *Session) submit(ref string) error {
	ev := s.doc.Form().Dispatch(wizard.EventSubmit)
	if err := s.flush(ref); err != nil {
		return err
	}
	s.metrics.Submission(!ev.DefaultPrevented())
	if ev.DefaultPrevented() {
		return nil
	}

	values := s.doc.Values()
	s.logger.Info("form submitted", logging.Int("fields", len(values)))
	return s.conn.Send(protocol.SubmittedMessage(s.topic, values).WithRef(ref))
}

// flush sends pending dom mutations, plus field errors when the last step
// validation failed.
func (s *Session) flush(ref string) error {
	cmds := s.buffer.Flush()
	report := s.lastReport
	if len(cmds) == 0 && (report == nil || report.Valid) {
		return nil
	}

	msg := protocol.PatchMessage(s.topic, cmds.Payload()).WithRef(ref)
	if report != nil && !report.Valid {
		msg.Set("errors", errorsPayload(report.Errors))
	}
	return s.conn.Send(msg)
}

// eventLabel bounds the metric label to the known client events.
func eventLabel(event string) string {
	switch event {
	case protocol.EventClick, protocol.EventInput, protocol.EventSubmit:
		return event
	}
	return "unknown"
}

func errorsPayload(errs forms.Errors) map[string]any {
	out := make(map[string]any, len(errs))
	for name, msgs := range errs {
		list := make([]any, len(msgs))
		for i, m := range msgs {
			list[i] = m
		}
		out[name] = list
	}
	return out
}

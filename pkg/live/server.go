package live

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"golang.org/x/time/rate"

	"github.com/gabrielmiguelok/formwizard/pkg/dom"
	"github.com/gabrielmiguelok/formwizard/pkg/forms"
	"github.com/gabrielmiguelok/formwizard/pkg/logging"
	"github.com/gabrielmiguelok/formwizard/pkg/metrics"
	"github.com/gabrielmiguelok/formwizard/pkg/transport"
	"github.com/gabrielmiguelok/formwizard/pkg/wizard"
)

// Server errors.
var (
	ErrShutdown        = errors.New("live server is shut down")
	ErrTooManySessions = errors.New("too many live sessions")
)

type config struct {
	logger      logging.Logger
	markers     wizard.Markers
	formID      string
	stepOptions []forms.StepOption
	maxErrors   int
	maxSessions int
	metrics     *metrics.Metrics

	messageRate  rate.Limit
	messageBurst int
}

// Option configures a Server.
type Option func(*config)

// WithLogger sets the server and session logger.
func WithLogger(l logging.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}

// WithMarkers overrides the wizard marker vocabulary.
func WithMarkers(m wizard.Markers) Option {
	return func(c *config) {
		c.markers = m
	}
}

// WithFormID selects the form by data-id or id when the template has several.
func WithFormID(id string) Option {
	return func(c *config) {
		c.formID = id
	}
}

// WithStepOptions configures step validation.
func WithStepOptions(opts ...forms.StepOption) Option {
	return func(c *config) {
		c.stepOptions = append(c.stepOptions, opts...)
	}
}

// WithMaxErrors closes a session after n consecutive rejected client
// messages. Zero disables the limit.
func WithMaxErrors(n int) Option {
	return func(c *config) {
		c.maxErrors = n
	}
}

// WithMaxSessions refuses connections once n sessions run. Zero disables
// the limit.
func WithMaxSessions(n int) Option {
	return func(c *config) {
		c.maxSessions = n
	}
}

// WithMessageRate limits each session to perSecond client messages with the
// given burst. Messages above the rate are rejected with ErrRateLimited.
// Zero disables the limit.
func WithMessageRate(perSecond float64, burst int) Option {
	return func(c *config) {
		c.messageRate = rate.Limit(perSecond)
		c.messageBurst = burst
	}
}

// WithMetrics records session activity.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *config) {
		c.metrics = m
	}
}

// Server serves the wizard page and runs a session per live connection.
// Every session works on its own copy of the template.
type Server struct {
	template []byte
	config   *config

	sessions   map[string]*Session
	isShutdown bool
	mu         sync.RWMutex
}

// NewServer checks that template holds a usable wizard and returns a server
// for it.
func NewServer(template []byte, opts ...Option) (*Server, error) {
	cfg := &config{
		logger:    logging.DefaultLogger,
		markers:   wizard.DefaultMarkers(),
		maxErrors: 10,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	s := &Server{
		template: template,
		config:   cfg,
		sessions: make(map[string]*Session),
	}

	// Fail at startup rather than on the first request.
	if _, _, err := s.Mount(); err != nil {
		return nil, err
	}
	return s, nil
}

// Mount parses a fresh copy of the template and initializes its wizard.
func (s *Server) Mount() (*dom.Document, *wizard.Controller, error) {
	doc, err := s.parse()
	if err != nil {
		return nil, nil, err
	}
	c, err := wizard.Attach(doc.Form(),
		wizard.WithLogger(s.config.logger),
		wizard.WithMarkers(s.config.markers),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("init wizard: %w", err)
	}
	return doc, c, nil
}

// Reload replaces the template for new page loads and sessions. A template
// without a usable wizard is rejected and the current one kept. Running
// sessions keep their documents.
func (s *Server) Reload(template []byte) error {
	doc, err := s.parseTemplate(template)
	if err != nil {
		return err
	}
	c, err := wizard.Attach(doc.Form(), wizard.WithLogger(logging.NopLogger{}), wizard.WithMarkers(s.config.markers))
	if err != nil {
		return fmt.Errorf("init wizard: %w", err)
	}
	steps := c.TotalSteps()
	c.Destroy()

	s.mu.Lock()
	s.template = template
	s.mu.Unlock()
	s.config.logger.Info("template reloaded", logging.Int("steps", steps))
	return nil
}

func (s *Server) parse() (*dom.Document, error) {
	s.mu.RLock()
	template := s.template
	s.mu.RUnlock()
	return s.parseTemplate(template)
}

func (s *Server) parseTemplate(template []byte) (*dom.Document, error) {
	var opts []dom.ParseOption
	if s.config.formID != "" {
		opts = append(opts, dom.WithFormID(s.config.formID))
	}
	doc, err := dom.Parse(bytes.NewReader(template), opts...)
	if err != nil {
		return nil, fmt.Errorf("parse template: %w", err)
	}
	return doc, nil
}

// ServeHTTP renders the initialized page. Elements carry refs so the live
// client can address them.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	doc, c, err := s.Mount()
	if err != nil {
		s.config.logger.Error("render page", logging.Err(err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	defer c.Destroy()

	var buf bytes.Buffer
	if err := doc.Render(&buf, dom.WithRefs()); err != nil {
		s.config.logger.Error("render page", logging.Err(err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

// Session runs a live session on conn until it closes. It satisfies
// transport.SessionFunc.
func (s *Server) Session(ctx context.Context, conn transport.Conn) error {
	doc, err := s.parse()
	if err != nil {
		return err
	}

	session := newSession(conn, doc, s.config)
	if err := s.add(session); err != nil {
		return err
	}
	defer s.remove(session.ID())

	session.logger.Debug("live session started")
	err = session.run(ctx)
	session.logger.Debug("live session ended", logging.Int("step", session.ActiveStep()))
	return err
}

func (s *Server) add(session *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isShutdown {
		return ErrShutdown
	}
	if max := s.config.maxSessions; max > 0 && len(s.sessions) >= max {
		return ErrTooManySessions
	}
	s.sessions[session.ID()] = session
	return nil
}

func (s *Server) remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// Get returns the running session with the given id.
func (s *Server) Get(id string) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	return session, ok
}

// Count returns the number of running sessions.
func (s *Server) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Closed reports whether Shutdown was called.
func (s *Server) Closed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isShutdown
}

// Shutdown refuses new sessions and closes the running ones.
func (s *Server) Shutdown() {
	s.mu.Lock()
	s.isShutdown = true
	conns := make([]transport.Conn, 0, len(s.sessions))
	for _, session := range s.sessions {
		conns = append(conns, session.conn)
	}
	s.mu.Unlock()

	for _, conn := range conns {
		_ = conn.Close()
	}
}

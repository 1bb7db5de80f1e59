package live

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gabrielmiguelok/formwizard/pkg/logging"
	"github.com/gabrielmiguelok/formwizard/pkg/metrics"
	"github.com/gabrielmiguelok/formwizard/pkg/protocol"
	"github.com/gabrielmiguelok/formwizard/pkg/transport"
	"github.com/gabrielmiguelok/formwizard/pkg/wizard"
)

const signup = `<html><body>
<form data-id="signup" class="form">
  <fieldset class="js-form-wizard-step"><input name="email" type="email" required></fieldset>
  <fieldset class="js-form-wizard-step"><input name="name" minlength="2"></fieldset>
  <fieldset class="js-form-wizard-step"><input name="terms" type="checkbox" required></fieldset>
  <span class="js-form-wizard-percentage"></span>
  <button type="button" class="js-form-wizard-back">Back</button>
  <button type="button" class="js-form-wizard-next">Next</button>
  <button type="submit" class="js-form-wizard-submit">Send</button>
</form>
</body></html>`

type harness struct {
	t      *testing.T
	server *Server
	conn   *transport.MemoryConn
	done   chan error
	cancel context.CancelFunc
}

func start(t *testing.T, opts ...Option) *harness {
	t.Helper()
	opts = append([]Option{WithLogger(logging.NewRecorder())}, opts...)
	srv, err := NewServer([]byte(signup), opts...)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	h := &harness{
		t:      t,
		server: srv,
		conn:   transport.NewMemoryConn(nil),
		done:   make(chan error, 1),
		cancel: cancel,
	}
	go func() { h.done <- srv.Session(ctx, h.conn) }()
	t.Cleanup(func() {
		cancel()
		_ = h.conn.Close()
	})
	return h
}

func (h *harness) recv() *protocol.Message {
	h.t.Helper()
	select {
	case msg := <-h.conn.Sent():
		return msg
	case <-time.After(2 * time.Second):
		h.t.Fatal("timed out waiting for a server message")
		return nil
	}
}

func (h *harness) send(event, ref string, kv ...string) *protocol.Message {
	h.t.Helper()
	msg := protocol.NewMessage("lv", event).WithRef(ref)
	for i := 0; i+1 < len(kv); i += 2 {
		msg.Set(kv[i], kv[i+1])
	}
	require.NoError(h.t, h.conn.Push(msg))
	return h.recv()
}

func (h *harness) wait() error {
	h.t.Helper()
	select {
	case err := <-h.done:
		return err
	case <-time.After(2 * time.Second):
		h.t.Fatal("session did not end")
		return nil
	}
}

func commands(t *testing.T, msg *protocol.Message) []map[string]any {
	t.Helper()
	require.Equal(t, protocol.EventPatch, msg.Event)
	raw, ok := msg.Payload["commands"].([]any)
	require.True(t, ok)
	out := make([]map[string]any, len(raw))
	for i, c := range raw {
		out[i] = c.(map[string]any)
	}
	return out
}

func hasCommand(cmds []map[string]any, op, name, value string) bool {
	for _, c := range cmds {
		if c["op"] != op {
			continue
		}
		if name != "" && c["name"] != name {
			continue
		}
		if value != "" && c["value"] != value {
			continue
		}
		return true
	}
	return false
}

func TestSession_MountPatch(t *testing.T) {
	h := start(t)

	cmds := commands(t, h.recv())
	assert.True(t, hasCommand(cmds, "addClass", "is-init-form-wizard", ""))
	assert.True(t, hasCommand(cmds, "setAttr", "data-active-step", "0"))
	assert.True(t, hasCommand(cmds, "setText", "", "1/3"))
	assert.Equal(t, 1, h.server.Count())
}

func TestSession_NextRejectedSendsFieldErrors(t *testing.T) {
	h := start(t)
	h.recv()

	msg := h.send(protocol.EventClick, "1", "target", protocol.TargetNext)
	assert.Equal(t, "1", msg.Ref)
	assert.True(t, hasCommand(commands(t, msg), "addClass", "is-invalid", ""))

	errs, ok := msg.Payload["errors"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, errs, "email")

	session, ok := h.server.Get(h.conn.ID())
	require.True(t, ok)
	assert.Equal(t, 0, session.ActiveStep())
}

func TestSession_InputThenNext(t *testing.T) {
	h := start(t)
	h.recv()

	// Mirroring a typed value changes nothing visible.
	require.NoError(t, h.conn.Push(protocol.NewMessage("lv", protocol.EventInput).
		Set("name", "email").Set("value", "ada@example.com")))

	msg := h.send(protocol.EventClick, "2", "target", protocol.TargetNext)
	cmds := commands(t, msg)
	assert.Equal(t, "2", msg.Ref)
	assert.True(t, hasCommand(cmds, "setAttr", "data-active-step", "1"))
	assert.True(t, hasCommand(cmds, "setText", "", "2/3"))
	assert.True(t, hasCommand(cmds, "addClass", "is-active", ""))
	assert.NotContains(t, msg.Payload, "errors")

	msg = h.send(protocol.EventClick, "3", "target", protocol.TargetBack)
	assert.True(t, hasCommand(commands(t, msg), "setAttr", "data-active-step", "0"))
}

func TestSession_InactiveControlRejected(t *testing.T) {
	rec := logging.NewRecorder()
	h := start(t, WithLogger(rec))
	h.recv()

	msg := h.send(protocol.EventClick, "9", "target", protocol.TargetBack)
	assert.Equal(t, protocol.EventError, msg.Event)
	assert.Equal(t, "9", msg.Ref)
	assert.Contains(t, msg.PayloadString("reason"), ErrInactive.Error())

	require.NoError(t, h.conn.Push(protocol.NewMessage("lv", protocol.EventInput).Set("name", "email").Set("value", "ada@example.com")))
	h.send(protocol.EventClick, "", "target", protocol.TargetNext)
	h.send(protocol.EventClick, "", "target", protocol.TargetNext)

	msg = h.send(protocol.EventClick, "10", "target", protocol.TargetNext)
	assert.Equal(t, protocol.EventError, msg.Event)
	assert.Contains(t, msg.PayloadString("reason"), ErrInactive.Error())

	session, ok := h.server.Get(h.conn.ID())
	require.True(t, ok)
	assert.Equal(t, 2, session.ActiveStep())
	assert.Zero(t, rec.Count("error"))
}

func TestSession_RejectsBadMessages(t *testing.T) {
	h := start(t)
	h.recv()

	tests := []struct {
		event string
		kv    []string
	}{
		{"bogus", nil},
		{protocol.EventClick, []string{"target", "sideways"}},
		{protocol.EventInput, []string{"name", "missing", "value", "x"}},
		{protocol.EventInput, nil},
	}
	for _, tt := range tests {
		msg := h.send(tt.event, "r", tt.kv...)
		assert.Equal(t, protocol.EventError, msg.Event, tt.event)
		assert.NotEmpty(t, msg.PayloadString("reason"))
	}
}

func TestSession_SubmitGate(t *testing.T) {
	h := start(t)
	h.recv()

	// An implicit submission validates the current step like any other.
	msg := h.send(protocol.EventSubmit, "s0")
	assert.True(t, hasCommand(commands(t, msg), "addClass", "is-invalid", ""))
	assert.Contains(t, msg.Payload["errors"], "email")

	require.NoError(t, h.conn.Push(protocol.NewMessage("lv", protocol.EventInput).Set("name", "email").Set("value", "ada@example.com")))
	h.send(protocol.EventClick, "", "target", protocol.TargetNext)
	require.NoError(t, h.conn.Push(protocol.NewMessage("lv", protocol.EventInput).Set("name", "name").Set("value", "Ada")))
	h.send(protocol.EventClick, "", "target", protocol.TargetNext)

	msg = h.send(protocol.EventSubmit, "s1")
	assert.Equal(t, protocol.EventPatch, msg.Event)
	assert.True(t, hasCommand(commands(t, msg), "addClass", "is-invalid", ""))

	require.NoError(t, h.conn.Push(protocol.NewMessage("lv", protocol.EventInput).Set("name", "terms").Set("value", "on")))
	msg = h.send(protocol.EventSubmit, "s2")
	if msg.Event == protocol.EventPatch {
		msg = h.recv()
	}
	require.Equal(t, protocol.EventSubmitted, msg.Event)
	assert.Equal(t, "s2", msg.Ref)
	assert.Equal(t, map[string]any{
		"email": "ada@example.com",
		"name":  "Ada",
		"terms": "on",
	}, msg.Payload["values"])
}

func TestSession_TooManyErrors(t *testing.T) {
	h := start(t, WithMaxErrors(2))
	h.recv()

	h.send("bogus", "")
	h.send("bogus", "")
	assert.ErrorIs(t, h.wait(), ErrTooManyErrors)
	assert.Zero(t, h.server.Count())
}

func TestSession_CloseDestroysWizard(t *testing.T) {
	rec := logging.NewRecorder()
	h := start(t, WithLogger(rec))
	h.recv()

	require.NoError(t, h.conn.Close())
	assert.NoError(t, h.wait())
	assert.Zero(t, h.server.Count())
	assert.Zero(t, rec.Count("error"))
}

func TestServer_Shutdown(t *testing.T) {
	h := start(t)
	h.recv()

	assert.False(t, h.server.Closed())
	h.server.Shutdown()
	assert.NoError(t, h.wait())
	assert.True(t, h.server.Closed())

	err := h.server.Session(context.Background(), transport.NewMemoryConn(nil))
	assert.ErrorIs(t, err, ErrShutdown)
}

func TestSession_RecordsMetrics(t *testing.T) {
	m := metrics.New()
	h := start(t, WithMetrics(m))
	h.recv()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SessionsActive))

	h.send(protocol.EventClick, "1", "target", protocol.TargetNext)
	require.NoError(t, h.conn.Push(protocol.NewMessage("lv", protocol.EventInput).
		Set("name", "email").Set("value", "ada@example.com")))
	h.send(protocol.EventClick, "2", "target", protocol.TargetNext)
	h.send("hover", "3")

	require.NoError(t, h.conn.Close())
	require.NoError(t, h.wait())

	assert.Equal(t, 1.0, testutil.ToFloat64(m.SessionsTotal))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.SessionsActive))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.MessagesReceived.WithLabelValues(protocol.EventClick)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.MessagesRejected.WithLabelValues("unknown")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Navigations.WithLabelValues(protocol.TargetNext, metrics.ResultBlocked)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Navigations.WithLabelValues(protocol.TargetNext, metrics.ResultMoved)))
}

func TestSession_RateLimit(t *testing.T) {
	h := start(t, WithMessageRate(0.001, 2))
	h.recv()

	assert.Equal(t, protocol.EventPatch, h.send(protocol.EventClick, "1", "target", protocol.TargetNext).Event)
	assert.Equal(t, protocol.EventPatch, h.send(protocol.EventClick, "2", "target", protocol.TargetNext).Event)

	msg := h.send(protocol.EventClick, "3", "target", protocol.TargetNext)
	assert.Equal(t, protocol.EventError, msg.Event)
	assert.Equal(t, "3", msg.Ref)
	assert.Equal(t, ErrRateLimited.Error(), msg.PayloadString("reason"))
}

func TestServer_MaxSessions(t *testing.T) {
	h := start(t, WithMaxSessions(1))
	h.recv()
	assert.Equal(t, 1, h.server.Count())

	err := h.server.Session(context.Background(), transport.NewMemoryConn(nil))
	assert.ErrorIs(t, err, ErrTooManySessions)
}

func TestServer_Reload(t *testing.T) {
	srv, err := NewServer([]byte(signup), WithLogger(logging.NopLogger{}))
	require.NoError(t, err)

	err = srv.Reload([]byte(`<form><div class="js-form-wizard-step"></div></form>`))
	assert.ErrorIs(t, err, wizard.ErrMissingElement)

	twoSteps := strings.Replace(signup,
		`<fieldset class="js-form-wizard-step"><input name="name" minlength="2"></fieldset>`, "", 1)
	require.NoError(t, srv.Reload([]byte(twoSteps)))

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Contains(t, rec.Body.String(), "1/2")
}

func TestServer_RejectsBrokenTemplate(t *testing.T) {
	_, err := NewServer([]byte(`<form><div class="js-form-wizard-step"></div></form>`), WithLogger(logging.NopLogger{}))
	assert.ErrorIs(t, err, wizard.ErrMissingElement)

	_, err = NewServer([]byte(`<p>no form</p>`), WithLogger(logging.NopLogger{}))
	assert.Error(t, err)
}

func TestServer_Page(t *testing.T) {
	srv, err := NewServer([]byte(signup), WithLogger(logging.NopLogger{}))
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	body := rec.Body.String()
	assert.Contains(t, body, `data-fw-ref="`)
	assert.Contains(t, body, "is-init-form-wizard")
	assert.Contains(t, body, "1/3")
}

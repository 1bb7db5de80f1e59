package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Record(t *testing.T) {
	m := New()

	m.SessionStarted()
	m.SessionStarted()
	m.SessionEnded(3 * time.Second)
	m.MessageReceived("click")
	m.MessageReceived("click")
	m.MessageRejected("input")
	m.Navigation("next", false)
	m.Navigation("next", true)
	m.Navigation("back", true)
	m.Submission(true)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.SessionsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SessionsActive))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.MessagesReceived.WithLabelValues("click")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.MessagesRejected.WithLabelValues("input")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Navigations.WithLabelValues("next", ResultBlocked)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Navigations.WithLabelValues("next", ResultMoved)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Submissions.WithLabelValues(ResultAccepted)))
	assert.Equal(t, 1, testutil.CollectAndCount(m.SessionDuration))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.SessionStarted()
		m.SessionEnded(time.Second)
		m.MessageReceived("click")
		m.MessageRejected("click")
		m.Navigation("back", true)
		m.Submission(false)
	})
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.SessionStarted()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "formwizard_sessions_total 1")
	assert.Contains(t, body, "go_goroutines")
}

package limits

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConnectionLimiter_AcquireRelease(t *testing.T) {
	cl := NewConnectionLimiter(2, false)

	assert.True(t, cl.Acquire("1.2.3.4"))
	assert.True(t, cl.Acquire("1.2.3.4"))
	assert.False(t, cl.Acquire("1.2.3.4"))
	assert.True(t, cl.Acquire("5.6.7.8"))
	assert.Equal(t, 2, cl.Count("1.2.3.4"))

	cl.Release("1.2.3.4")
	cl.Release("1.2.3.4")
	assert.Zero(t, cl.Count("1.2.3.4"))
	assert.EqualValues(t, 3, cl.TotalAllowed())
	assert.EqualValues(t, 1, cl.TotalBlocked())
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/live", nil)
	r.RemoteAddr = "10.0.0.1:5555"
	r.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")

	assert.Equal(t, "10.0.0.1", ClientIP(r, false))
	assert.Equal(t, "203.0.113.9", ClientIP(r, true))

	r.Header.Del("X-Forwarded-For")
	r.Header.Set("X-Real-IP", "198.51.100.7")
	assert.Equal(t, "198.51.100.7", ClientIP(r, true))
}

func TestMiddleware(t *testing.T) {
	cl := NewConnectionLimiter(1, false)
	block := make(chan struct{})
	entered := make(chan struct{})

	h := cl.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(entered)
		<-block
	}))

	first := httptest.NewRequest(http.MethodGet, "/live", nil)
	go h.ServeHTTP(httptest.NewRecorder(), first)
	<-entered

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/live", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	close(block)
}

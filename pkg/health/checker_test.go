package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ok(context.Context) error { return nil }

func fail(context.Context) error { return errors.New("down") }

func TestChecker_Status(t *testing.T) {
	tests := []struct {
		name string
		add  func(hc *Checker)
		want Status
	}{
		{"no checks", func(*Checker) {}, StatusHealthy},
		{"all pass", func(hc *Checker) {
			hc.AddCheck("a", ok, 0)
			hc.AddCriticalCheck("b", ok, 0)
		}, StatusHealthy},
		{"non critical fails", func(hc *Checker) {
			hc.AddCheck("a", fail, 0)
			hc.AddCriticalCheck("b", ok, 0)
		}, StatusDegraded},
		{"critical fails", func(hc *Checker) {
			hc.AddCheck("a", fail, 0)
			hc.AddCriticalCheck("b", fail, 0)
		}, StatusUnhealthy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hc := NewChecker("test")
			tt.add(hc)
			assert.Equal(t, tt.want, hc.Check(context.Background()).Status)
		})
	}
}

func TestChecker_Timeout(t *testing.T) {
	hc := NewChecker("")
	hc.AddCriticalCheck("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}, 10*time.Millisecond)

	report := hc.Check(context.Background())
	assert.Equal(t, StatusUnhealthy, report.Status)
	assert.Contains(t, report.Checks["slow"].Error, "deadline")
}

func TestReadinessHandler(t *testing.T) {
	closed := false
	hc := NewChecker("1.0")
	hc.AddCheck("sessions", CapacityCheck(func() int { return 1 }, 2), 0)
	hc.AddCriticalCheck("accepting", DrainCheck(func() bool { return closed }), 0)

	rec := httptest.NewRecorder()
	hc.ReadinessHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	var report Report
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&report))
	assert.Equal(t, StatusHealthy, report.Status)
	assert.Equal(t, "1.0", report.Version)

	closed = true
	rec = httptest.NewRecorder()
	hc.ReadinessHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), ErrDraining.Error())
}

func TestLivenessHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	NewChecker("").LivenessHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "alive")
}

func TestCapacityCheck(t *testing.T) {
	assert.NoError(t, CapacityCheck(func() int { return 1 }, 2)(context.Background()))
	assert.Error(t, CapacityCheck(func() int { return 2 }, 2)(context.Background()))
}

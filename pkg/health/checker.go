// Package health serves liveness and readiness probes for the wizard server.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// Status is the health of a check or of the whole server.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// ErrDraining is reported once the server stopped accepting sessions.
var ErrDraining = errors.New("server is shutting down")

// CheckResult is the outcome of a single check.
type CheckResult struct {
	Status     Status `json:"status"`
	DurationMS int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

// Report is the outcome of all checks.
type Report struct {
	Status    Status                 `json:"status"`
	Checks    map[string]CheckResult `json:"checks"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version,omitempty"`
}

type check struct {
	name     string
	fn       func(ctx context.Context) error
	timeout  time.Duration
	critical bool
}

// Checker runs registered checks concurrently.
type Checker struct {
	checks  []check
	version string
	mu      sync.RWMutex
}

// NewChecker creates a checker reporting version.
func NewChecker(version string) *Checker {
	return &Checker{version: version}
}

// AddCheck adds a check whose failure degrades the server.
func (hc *Checker) AddCheck(name string, fn func(context.Context) error, timeout time.Duration) {
	hc.add(check{name: name, fn: fn, timeout: timeout})
}

// AddCriticalCheck adds a check whose failure makes the server unhealthy.
func (hc *Checker) AddCriticalCheck(name string, fn func(context.Context) error, timeout time.Duration) {
	hc.add(check{name: name, fn: fn, timeout: timeout, critical: true})
}

func (hc *Checker) add(c check) {
	if c.timeout <= 0 {
		c.timeout = 5 * time.Second
	}
	hc.mu.Lock()
	defer hc.mu.Unlock()
	hc.checks = append(hc.checks, c)
}

// Check runs every check and combines the results.
func (hc *Checker) Check(ctx context.Context) Report {
	hc.mu.RLock()
	checks := make([]check, len(hc.checks))
	copy(checks, hc.checks)
	hc.mu.RUnlock()

	report := Report{
		Status:    StatusHealthy,
		Checks:    make(map[string]CheckResult, len(checks)),
		Timestamp: time.Now(),
		Version:   hc.version,
	}

	results := make([]CheckResult, len(checks))
	var wg sync.WaitGroup
	for i, c := range checks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = run(ctx, c)
		}()
	}
	wg.Wait()

	for i, c := range checks {
		r := results[i]
		report.Checks[c.name] = r
		if r.Status == StatusHealthy {
			continue
		}
		if c.critical {
			report.Status = StatusUnhealthy
		} else if report.Status == StatusHealthy {
			report.Status = StatusDegraded
		}
	}
	return report
}

func run(ctx context.Context, c check) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	err := c.fn(ctx)
	result := CheckResult{
		Status:     StatusHealthy,
		DurationMS: time.Since(start).Milliseconds(),
	}
	if err != nil {
		result.Status = StatusUnhealthy
		result.Error = err.Error()
	}
	return result
}

// LivenessHandler answers 200 while the process runs.
func (hc *Checker) LivenessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":    "alive",
			"timestamp": time.Now(),
		})
	})
}

// ReadinessHandler answers 503 when a critical check fails.
func (hc *Checker) ReadinessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		report := hc.Check(r.Context())
		code := http.StatusOK
		if report.Status == StatusUnhealthy {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, report)
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// CapacityCheck fails once count reaches max.
func CapacityCheck(count func() int, max int) func(context.Context) error {
	return func(context.Context) error {
		if n := count(); n >= max {
			return fmt.Errorf("%d of %d sessions in use", n, max)
		}
		return nil
	}
}

// DrainCheck fails once closed reports true.
func DrainCheck(closed func() bool) func(context.Context) error {
	return func(context.Context) error {
		if closed() {
			return ErrDraining
		}
		return nil
	}
}

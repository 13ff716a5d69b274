// Package health provides liveness and readiness probes.
//
// Every registered check runs in its own goroutine. A check is marked
// unhealthy after failureThreshold consecutive failures and healthy again
// after successThreshold consecutive successes.
package health

import (
	"context"
	"net/http"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-faster/jx"
	"go.uber.org/zap"
)

// CheckFunc returns nil if the checked component is healthy.
type CheckFunc func(ctx context.Context) error

// CheckOption configures a registered check.
type CheckOption func(c *check)

// WithThresholds overrides the consecutive failure and success counts that
// flip the check state. Defaults are 3 and 1.
func WithThresholds(failure, success int) CheckOption {
	return func(c *check) {
		c.failureThreshold = max(failure, 1)
		c.successThreshold = max(success, 1)
	}
}

// check is run from a single goroutine. healthy and lastErr are read by
// HTTP handlers concurrently.
type check struct {
	name             string
	timeout          time.Duration
	fn               CheckFunc
	failureThreshold int
	successThreshold int

	healthy atomic.Bool
	lastErr atomic.Pointer[error]

	consecutiveFails int
	consecutiveOK    int
}

func (c *check) isHealthy() bool {
	return c.healthy.Load()
}

func (c *check) failure() string {
	if p := c.lastErr.Load(); p != nil && *p != nil {
		return (*p).Error()
	}
	return "check is unhealthy"
}

func (c *check) run(ctx context.Context, lg *zap.Logger) {
	checkCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	err := c.fn(checkCtx)
	c.lastErr.Store(&err)

	was := c.healthy.Load()
	if err != nil {
		c.consecutiveOK = 0
		c.consecutiveFails++
		if c.consecutiveFails >= c.failureThreshold {
			c.healthy.Store(false)
		}
	} else {
		c.consecutiveFails = 0
		c.consecutiveOK++
		if c.consecutiveOK >= c.successThreshold {
			c.healthy.Store(true)
		}
	}

	switch now := c.healthy.Load(); {
	case was && !now:
		lg.Warn("Check failing", zap.String("check", c.name), zap.Error(err))
	case !was && now:
		lg.Info("Check recovered", zap.String("check", c.name))
	}
}

// Health manages liveness and readiness checks for a service.
type Health struct {
	lg    *zap.Logger
	ready atomic.Bool

	// mu guards registration and Start/Stop. Handlers copy the slices
	// under RLock.
	mu        sync.RWMutex
	liveness  []*check
	readiness []*check
	cancel    context.CancelFunc
}

// New creates a Health instance logging state changes to lg. The service
// starts not ready; call SetReady(true) once initialization is done.
func New(lg *zap.Logger) *Health {
	if lg == nil {
		lg = zap.NewNop()
	}
	return &Health{lg: lg}
}

func newCheck(name string, timeout time.Duration, fn CheckFunc, opts []CheckOption) *check {
	c := &check{
		name:             name,
		timeout:          timeout,
		fn:               fn,
		failureThreshold: 3,
		successThreshold: 1,
	}
	for _, o := range opts {
		o(c)
	}
	c.healthy.Store(true)
	return c
}

// AddLivenessCheck registers a check telling whether the process works at
// all, like goroutine count or GC pauses.
func (h *Health) AddLivenessCheck(name string, timeout time.Duration, fn CheckFunc, opts ...CheckOption) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.liveness = append(h.liveness, newCheck(name, timeout, fn, opts))
}

// AddReadinessCheck registers a check telling whether the service can take
// traffic, like database or cache connectivity.
func (h *Health) AddReadinessCheck(name string, timeout time.Duration, fn CheckFunc, opts ...CheckOption) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.readiness = append(h.readiness, newCheck(name, timeout, fn, opts))
}

// Start runs every registered check immediately and then at interval until
// ctx is done or Stop is called.
func (h *Health) Start(ctx context.Context, interval time.Duration) {
	ctx, cancel := context.WithCancel(ctx)

	h.mu.Lock()
	h.cancel = cancel
	checks := slices.Concat(h.liveness, h.readiness)
	h.mu.Unlock()

	for _, c := range checks {
		go h.loop(ctx, c, interval)
	}
}

func (h *Health) loop(ctx context.Context, c *check, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	c.run(ctx, h.lg)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.run(ctx, h.lg)
		}
	}
}

// SetReady sets the manual readiness flag, false during graceful shutdown.
func (h *Health) SetReady(ready bool) {
	h.ready.Store(ready)
}

// IsReady reports whether the service is marked ready and every readiness
// check passes.
func (h *Health) IsReady() bool {
	if !h.ready.Load() {
		return false
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.readiness {
		if !c.isHealthy() {
			return false
		}
	}
	return true
}

// Stop cancels all background checks. It is safe to call Stop multiple times.
func (h *Health) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}
}

// LiveEndpoint serves /livez: 200 {"status":"ok"} or 503 listing failing
// checks.
func (h *Health) LiveEndpoint(w http.ResponseWriter, _ *http.Request) {
	h.mu.RLock()
	checks := slices.Clone(h.liveness)
	h.mu.RUnlock()

	writeResponse(w, failures(checks))
}

// ReadyEndpoint serves /readyz. The service must be marked ready and all
// readiness checks must pass.
func (h *Health) ReadyEndpoint(w http.ResponseWriter, _ *http.Request) {
	h.mu.RLock()
	checks := slices.Clone(h.readiness)
	h.mu.RUnlock()

	f := failures(checks)
	if !h.ready.Load() {
		f = append(f, failure{name: "_readiness", msg: "service is not ready"})
	}
	writeResponse(w, f)
}

type failure struct {
	name string
	msg  string
}

func failures(checks []*check) []failure {
	var out []failure
	for _, c := range checks {
		if !c.isHealthy() {
			out = append(out, failure{name: c.name, msg: c.failure()})
		}
	}
	return out
}

func writeResponse(w http.ResponseWriter, failures []failure) {
	status := http.StatusOK
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		if len(failures) == 0 {
			e.Field("status", func(e *jx.Encoder) { e.Str("ok") })
			return
		}
		status = http.StatusServiceUnavailable
		e.Field("status", func(e *jx.Encoder) { e.Str("unhealthy") })
		e.Field("checks", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				for _, f := range failures {
					e.Field(f.name, func(e *jx.Encoder) { e.Str(f.msg) })
				}
			})
		})
	})

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

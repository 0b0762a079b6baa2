// Package health reports whether a search replica can answer queries.
// Dependencies are registered in order with a required flag: a failing
// required dependency takes the replica out of rotation, a failing optional
// one (the shared cache, say) only marks it degraded. Readiness reports
// also carry which build the replica is serving so a rollout can be
// watched replica by replica.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

type Status string

const (
	StatusUp       Status = "up"
	StatusDown     Status = "down"
	StatusDegraded Status = "degraded"
)

const (
	defaultCheckTimeout = 2 * time.Second
	readyTimeout        = 5 * time.Second
)

// Dependency is one thing the replica relies on.
type Dependency struct {
	Name     string
	Required bool
	// Timeout bounds Ping; zero means two seconds.
	Timeout time.Duration
	Ping    func(ctx context.Context) error
}

// Result is the outcome of pinging one dependency.
type Result struct {
	Name     string `json:"name"`
	Status   Status `json:"status"`
	Required bool   `json:"required"`
	Error    string `json:"error,omitempty"`
	TookMs   int64  `json:"took_ms"`
}

// Report lists every dependency in registration order. Serving is whatever
// the serving func returned, typically the generation and build identity.
type Report struct {
	Status       Status         `json:"status"`
	Dependencies []Result       `json:"dependencies"`
	Serving      map[string]any `json:"serving,omitempty"`
	CheckedAt    time.Time      `json:"checked_at"`
}

type Checker struct {
	mu      sync.RWMutex
	deps    []Dependency
	serving func() map[string]any
	started time.Time
	logger  *slog.Logger
}

func NewChecker() *Checker {
	return &Checker{
		started: time.Now(),
		logger:  slog.Default().With("component", "health"),
	}
}

// Register adds dep, replacing an earlier dependency with the same name in
// place.
func (c *Checker) Register(dep Dependency) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.deps {
		if c.deps[i].Name == dep.Name {
			c.deps[i] = dep
			return
		}
	}
	c.deps = append(c.deps, dep)
}

// ReportServing sets the func whose result is attached to every report.
func (c *Checker) ReportServing(fn func() map[string]any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.serving = fn
}

// Run pings every dependency concurrently, each under its own timeout.
func (c *Checker) Run(ctx context.Context) Report {
	c.mu.RLock()
	deps := append([]Dependency(nil), c.deps...)
	serving := c.serving
	c.mu.RUnlock()

	results := make([]Result, len(deps))
	var wg sync.WaitGroup
	for i, dep := range deps {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = ping(ctx, dep)
		}()
	}
	wg.Wait()

	report := Report{Status: StatusUp, Dependencies: results, CheckedAt: time.Now().UTC()}
	for _, res := range results {
		if res.Status == StatusDown {
			report.Status = StatusDown
			break
		}
		if res.Status == StatusDegraded {
			report.Status = StatusDegraded
		}
	}
	if serving != nil {
		report.Serving = serving()
	}
	return report
}

func ping(ctx context.Context, dep Dependency) Result {
	timeout := dep.Timeout
	if timeout <= 0 {
		timeout = defaultCheckTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	err := dep.Ping(ctx)
	res := Result{
		Name:     dep.Name,
		Status:   StatusUp,
		Required: dep.Required,
		TookMs:   time.Since(start).Milliseconds(),
	}
	if err == nil {
		return res
	}
	if errors.Is(err, context.DeadlineExceeded) {
		res.Error = "timed out after " + timeout.String()
	} else {
		res.Error = err.Error()
	}
	res.Status = StatusDegraded
	if dep.Required {
		res.Status = StatusDown
	}
	return res
}

// LiveHandler answers as long as the process can serve HTTP.
func (c *Checker) LiveHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c.write(w, http.StatusOK, map[string]any{
			"status":     "alive",
			"uptime_sec": int64(time.Since(c.started).Seconds()),
		})
	}
}

// ReadyHandler answers 503 only when a required dependency is down; a
// degraded replica keeps receiving traffic.
func (c *Checker) ReadyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()
		report := c.Run(ctx)
		status := http.StatusOK
		if report.Status == StatusDown {
			status = http.StatusServiceUnavailable
			c.logger.Warn("not ready", "dependencies", report.Dependencies)
		}
		c.write(w, status, report)
	}
}

func (c *Checker) write(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		c.logger.Error("failed to write health response", "error", err)
	}
}

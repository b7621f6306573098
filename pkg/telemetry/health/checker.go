// Package health runs component checks for the operator's status view.
// Model backends on a small device come and go; the checker makes their
// state visible without tying a query to a probe.
package health

import (
	"context"
	"sync"
	"time"
)

// CheckFunc probes one component. A nil return means healthy.
type CheckFunc func(ctx context.Context) error

// Result is the outcome of one component check.
type Result struct {
	// Status is ok or unhealthy.
	Status string `json:"status"`

	// Message carries the failure detail for an unhealthy component.
	Message string `json:"message,omitempty"`

	Duration time.Duration `json:"duration_ms,omitempty"`
}

// Report aggregates every component check.
type Report struct {
	// Status is ok when every check passed, degraded otherwise.
	Status string `json:"status"`

	Checks    map[string]Result `json:"checks,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// Checker holds named component checks and runs them concurrently with
// a per-check timeout.
type Checker struct {
	mu      sync.RWMutex
	checks  map[string]CheckFunc
	timeout time.Duration
}

// New returns a checker. A zero timeout defaults to 5 seconds per check.
func New(timeout time.Duration) *Checker {
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &Checker{
		checks:  make(map[string]CheckFunc),
		timeout: timeout,
	}
}

// Register adds or replaces the check for a component.
func (c *Checker) Register(name string, check CheckFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = check
}

// Run executes every registered check and aggregates the results. An
// empty checker reports ok.
func (c *Checker) Run(ctx context.Context) Report {
	c.mu.RLock()
	checks := make(map[string]CheckFunc, len(c.checks))
	for name, check := range c.checks {
		checks[name] = check
	}
	c.mu.RUnlock()

	results := make(map[string]Result, len(checks))
	var resultMu sync.Mutex
	var wg sync.WaitGroup

	for name, check := range checks {
		wg.Add(1)
		go func(name string, check CheckFunc) {
			defer wg.Done()
			result := c.run(ctx, check)
			resultMu.Lock()
			results[name] = result
			resultMu.Unlock()
		}(name, check)
	}
	wg.Wait()

	status := "ok"
	for _, result := range results {
		if result.Status != "ok" {
			status = "degraded"
		}
	}

	return Report{
		Status:    status,
		Checks:    results,
		Timestamp: time.Now(),
	}
}

func (c *Checker) run(ctx context.Context, check CheckFunc) Result {
	checkCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	errCh := make(chan error, 1)
	go func() {
		errCh <- check(checkCtx)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return Result{Status: "unhealthy", Message: err.Error(), Duration: time.Since(start)}
		}
		return Result{Status: "ok", Duration: time.Since(start)}
	case <-checkCtx.Done():
		return Result{Status: "unhealthy", Message: "check timed out", Duration: time.Since(start)}
	}
}

// Package health provides preflight checks run before a batch starts.
package health

import (
	"context"
	"time"
)

// ReadinessChecker is the interface for readiness checks.
// Implemented by runners to verify the engine can actually be executed.
type ReadinessChecker interface {
	Ready(ctx context.Context) error
}

// CheckFunc adapts a plain function to the ReadinessChecker interface.
type CheckFunc func(ctx context.Context) error

func (f CheckFunc) Ready(ctx context.Context) error { return f(ctx) }

// Status represents the health status of a component.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
)

// CheckResult contains the result of a single check.
type CheckResult struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
}

// Response is the aggregate preflight result.
type Response struct {
	Status Status                 `json:"status"`
	Checks map[string]CheckResult `json:"checks,omitempty"`
}

// IsHealthy returns true if the overall status is healthy.
func (r *Response) IsHealthy() bool {
	return r.Status == StatusHealthy
}

type namedCheck struct {
	name  string
	check ReadinessChecker
}

// Checker runs registered readiness checks against batch dependencies.
// Failing fast here is cheaper than failing every job after work starts.
type Checker struct {
	timeout time.Duration
	checks  []namedCheck
}

// NewChecker creates a preflight checker with a 5 second per-check timeout.
func NewChecker() *Checker {
	return &Checker{timeout: 5 * time.Second}
}

// Register adds a named check. Checks run in registration order.
func (c *Checker) Register(name string, check ReadinessChecker) {
	c.checks = append(c.checks, namedCheck{name: name, check: check})
}

// Preflight runs all registered checks. The response is unhealthy if any
// check fails; each failure carries the check's error message.
func (c *Checker) Preflight(ctx context.Context) *Response {
	checks := make(map[string]CheckResult, len(c.checks))
	overallStatus := StatusHealthy

	for _, nc := range c.checks {
		result := c.runCheck(ctx, nc.check)
		checks[nc.name] = result
		if result.Status != StatusHealthy {
			overallStatus = StatusUnhealthy
		}
	}

	return &Response{
		Status: overallStatus,
		Checks: checks,
	}
}

func (c *Checker) runCheck(ctx context.Context, check ReadinessChecker) CheckResult {
	if check == nil {
		return CheckResult{
			Status:  StatusUnhealthy,
			Message: "check not configured",
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := check.Ready(ctx); err != nil {
		return CheckResult{
			Status:  StatusUnhealthy,
			Message: err.Error(),
		}
	}
	return CheckResult{Status: StatusHealthy}
}

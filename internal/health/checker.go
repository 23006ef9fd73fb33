// Package health runs the preflight checks that decide whether the external
// tools and services a run depends on are usable.
package health

import (
	"context"
	"errors"
	"time"

	"github.com/zsiec/framecheck/internal/logger"
)

// Status represents the health status of a component.
type Status string

const (
	StatusOK       Status = "ok"
	StatusDegraded Status = "degraded"
	StatusDown     Status = "down"
)

// Check represents a health check result.
type Check struct {
	Name        string        `json:"name" yaml:"name"`
	Status      Status        `json:"status" yaml:"status"`
	Message     string        `json:"message,omitempty" yaml:"message,omitempty"`
	Required    bool          `json:"required" yaml:"required"`
	LastChecked time.Time     `json:"last_checked" yaml:"last_checked"`
	Duration    time.Duration `json:"-" yaml:"-"`
	DurationMS  float64       `json:"duration_ms" yaml:"duration_ms"`
}

// Checker is the interface that health checkers must implement.
type Checker interface {
	Name() string
	Check(ctx context.Context) error
}

type registration struct {
	checker  Checker
	required bool
}

// Manager runs registered checks one after another, in registration order.
// A failing optional check degrades the overall status; a failing required
// check takes it down.
type Manager struct {
	checks  []registration
	timeout time.Duration
	logger  logger.Logger
}

// NewManager creates a manager whose checks each get at most timeout.
func NewManager(log logger.Logger, timeout time.Duration) *Manager {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Manager{
		timeout: timeout,
		logger:  logger.WithComponent(log, "health"),
	}
}

// Register adds a required checker.
func (m *Manager) Register(checker Checker) {
	m.add(checker, true)
}

// RegisterOptional adds a checker whose failure only degrades the result.
func (m *Manager) RegisterOptional(checker Checker) {
	m.add(checker, false)
}

func (m *Manager) add(checker Checker, required bool) {
	m.checks = append(m.checks, registration{checker: checker, required: required})
	m.logger.WithField("checker", checker.Name()).Debug("Registered health checker")
}

// RunChecks executes all registered checks and returns their results in
// registration order.
func (m *Manager) RunChecks(ctx context.Context) []*Check {
	results := make([]*Check, 0, len(m.checks))

	for _, reg := range m.checks {
		c := reg.checker

		checkCtx, cancel := context.WithTimeout(ctx, m.timeout)
		start := time.Now()
		err := c.Check(checkCtx)
		duration := time.Since(start)
		cancel()

		check := &Check{
			Name:        c.Name(),
			Required:    reg.required,
			LastChecked: time.Now(),
			Duration:    duration,
			DurationMS:  float64(duration.Milliseconds()),
			Status:      StatusOK,
		}

		if err != nil {
			check.Status = StatusDown
			if !reg.required {
				check.Status = StatusDegraded
			}
			check.Message = err.Error()
			if errors.Is(err, context.DeadlineExceeded) {
				check.Message = "health check timed out"
			}
			m.logger.WithFields(map[string]interface{}{
				"checker":  c.Name(),
				"duration": duration,
				"required": reg.required,
			}).WithError(err).Warn("Health check failed")
		} else {
			m.logger.WithFields(map[string]interface{}{
				"checker":  c.Name(),
				"duration": duration,
			}).Debug("Health check passed")
		}

		results = append(results, check)
	}

	return results
}

// OverallStatus folds a set of results into a single status.
func OverallStatus(results []*Check) Status {
	if len(results) == 0 {
		return StatusOK
	}

	status := StatusOK
	for _, check := range results {
		switch check.Status {
		case StatusDown:
			return StatusDown
		case StatusDegraded:
			status = StatusDegraded
		}
	}
	return status
}

// FirstFailure returns the first required check that is down, or nil.
func FirstFailure(results []*Check) *Check {
	for _, check := range results {
		if check.Required && check.Status == StatusDown {
			return check
		}
	}
	return nil
}

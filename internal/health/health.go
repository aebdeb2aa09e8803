// Package health reports the process's liveness/readiness status, used by
// the HTTP health handler. The gRPC health-check service in cmd/stationd
// is the stock grpc health server with a fixed SERVING status and does not
// consult this package.
package health

import (
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/tss-groundstation/stationd/internal/database"
)

// Status is the coarse health verdict of a single check or the overall
// report.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// Check is a single named health check result.
type Check struct {
	Name        string                 `json:"name"`
	Status      Status                 `json:"status"`
	Message     string                 `json:"message"`
	LastChecked time.Time              `json:"last_checked"`
	Duration    time.Duration          `json:"duration"`
	Details     map[string]interface{} `json:"details,omitempty"`
}

// Report is the overall health report returned by the HTTP health
// surface.
type Report struct {
	Status     Status                 `json:"status"`
	Timestamp  time.Time              `json:"timestamp"`
	Uptime     time.Duration          `json:"uptime"`
	Checks     []Check                `json:"checks"`
	SystemInfo map[string]interface{} `json:"system_info"`
}

// EngineStats is the subset of simulation-engine state the health checker
// wants to report; the engine (internal/engine.Engine) need not implement
// any interface beyond filling this struct out each tick.
type EngineStats struct {
	TotalFields     int
	Initialized     bool
	LastTickSeconds float64
}

// Checker performs health checks for the ground-station process.
type Checker struct {
	notifier  *database.ViewNotifier
	startTime time.Time

	mu     sync.RWMutex
	engine EngineStats
}

// NewChecker constructs a Checker. notifier may be nil when Redis fan-out
// is disabled.
func NewChecker(notifier *database.ViewNotifier) *Checker {
	return &Checker{notifier: notifier, startTime: time.Now()}
}

// SetEngineStats records the latest engine snapshot; called once per tick
// by the tick coordinator.
func (c *Checker) SetEngineStats(stats EngineStats) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.engine = stats
}

// CheckHealth runs every check and returns the aggregate report.
func (c *Checker) CheckHealth() *Report {
	checks := []Check{c.checkEngine(), c.checkRedis(), c.checkMemory(), c.checkGoroutines()}
	return c.report(checks, worstOf(checks))
}

// CheckReadiness requires the engine to be initialized; Redis is
// advisory and never blocks readiness.
func (c *Checker) CheckReadiness() *Report {
	checks := []Check{c.checkEngine()}
	status := StatusHealthy
	if checks[0].Status != StatusHealthy {
		status = StatusUnhealthy
	}
	return c.report(checks, status)
}

// CheckLiveness is a minimal always-healthy-if-running check.
func (c *Checker) CheckLiveness() *Report {
	return c.report(nil, StatusHealthy)
}

func (c *Checker) report(checks []Check, status Status) *Report {
	return &Report{
		Status:     status,
		Timestamp:  time.Now(),
		Uptime:     time.Since(c.startTime),
		Checks:     checks,
		SystemInfo: c.systemInfo(),
	}
}

func worstOf(checks []Check) Status {
	status := StatusHealthy
	for _, check := range checks {
		if check.Status == StatusUnhealthy {
			return StatusUnhealthy
		}
		if check.Status == StatusDegraded {
			status = StatusDegraded
		}
	}
	return status
}

func (c *Checker) checkEngine() Check {
	c.mu.RLock()
	stats := c.engine
	c.mu.RUnlock()

	start := time.Now()
	check := Check{
		Name:        "engine",
		LastChecked: start,
		Details: map[string]interface{}{
			"total_fields":      stats.TotalFields,
			"last_tick_seconds": stats.LastTickSeconds,
		},
	}
	if !stats.Initialized {
		check.Status = StatusUnhealthy
		check.Message = "engine not yet initialized"
	} else {
		check.Status = StatusHealthy
		check.Message = fmt.Sprintf("advancing %d fields", stats.TotalFields)
	}
	check.Duration = time.Since(start)
	return check
}

func (c *Checker) checkRedis() Check {
	start := time.Now()
	check := Check{Name: "redis", LastChecked: start}

	if c.notifier == nil {
		check.Status = StatusDegraded
		check.Message = "view fan-out disabled"
	} else if _, ok := c.notifier.CachedView("EVA"); !ok {
		check.Status = StatusDegraded
		check.Message = "no cached view yet"
	} else {
		check.Status = StatusHealthy
		check.Message = "view fan-out healthy"
	}

	check.Duration = time.Since(start)
	return check
}

func (c *Checker) checkMemory() Check {
	start := time.Now()
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	allocMB := float64(m.Alloc) / 1024 / 1024

	check := Check{
		Name:        "memory",
		LastChecked: start,
		Details: map[string]interface{}{
			"alloc_mb": allocMB,
			"num_gc":   m.NumGC,
		},
	}
	switch {
	case allocMB > 1000:
		check.Status = StatusUnhealthy
		check.Message = fmt.Sprintf("high memory usage: %.2f MB", allocMB)
	case allocMB > 500:
		check.Status = StatusDegraded
		check.Message = fmt.Sprintf("elevated memory usage: %.2f MB", allocMB)
	default:
		check.Status = StatusHealthy
		check.Message = fmt.Sprintf("memory usage normal: %.2f MB", allocMB)
	}
	check.Duration = time.Since(start)
	return check
}

func (c *Checker) checkGoroutines() Check {
	start := time.Now()
	n := runtime.NumGoroutine()
	check := Check{
		Name:        "goroutines",
		LastChecked: start,
		Details:     map[string]interface{}{"count": n},
	}
	switch {
	case n > 10000:
		check.Status = StatusUnhealthy
		check.Message = fmt.Sprintf("too many goroutines: %d", n)
	case n > 1000:
		check.Status = StatusDegraded
		check.Message = fmt.Sprintf("high goroutine count: %d", n)
	default:
		check.Status = StatusHealthy
		check.Message = fmt.Sprintf("goroutine count normal: %d", n)
	}
	check.Duration = time.Since(start)
	return check
}

func (c *Checker) systemInfo() map[string]interface{} {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return map[string]interface{}{
		"go_version":     runtime.Version(),
		"go_os":          runtime.GOOS,
		"go_arch":        runtime.GOARCH,
		"cpu_count":      runtime.NumCPU(),
		"goroutines":     runtime.NumGoroutine(),
		"uptime_seconds": time.Since(c.startTime).Seconds(),
	}
}

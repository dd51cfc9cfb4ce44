package monitoring

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
)

type HealthCheck struct {
	Name    string    `json:"name"`
	Status  string    `json:"status"`
	Message string    `json:"message,omitempty"`
	LastRun time.Time `json:"last_run"`
}

type HealthCheckFunc func(ctx context.Context) error

type HealthChecker struct {
	mu        sync.RWMutex
	funcs     map[string]HealthCheckFunc
	timeout   time.Duration
	startTime time.Time
}

func NewHealthChecker(timeout time.Duration) *HealthChecker {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HealthChecker{
		funcs:     make(map[string]HealthCheckFunc),
		timeout:   timeout,
		startTime: time.Now(),
	}
}

func (h *HealthChecker) Register(name string, check HealthCheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.funcs[name] = check
}

// Run executes every registered check against a fresh timeout.
func (h *HealthChecker) Run(ctx context.Context) map[string]HealthCheck {
	h.mu.RLock()
	names := make([]string, 0, len(h.funcs))
	for name := range h.funcs {
		names = append(names, name)
	}
	funcs := make(map[string]HealthCheckFunc, len(h.funcs))
	for name, fn := range h.funcs {
		funcs[name] = fn
	}
	h.mu.RUnlock()

	sort.Strings(names)

	results := make(map[string]HealthCheck, len(names))
	for _, name := range names {
		checkCtx, cancel := context.WithTimeout(ctx, h.timeout)
		err := funcs[name](checkCtx)
		cancel()

		check := HealthCheck{Name: name, Status: StatusHealthy, LastRun: time.Now()}
		if err != nil {
			check.Status = StatusUnhealthy
			check.Message = err.Error()
		}
		results[name] = check
	}

	return results
}

func (h *HealthChecker) Uptime() time.Duration {
	return time.Since(h.startTime)
}

func allHealthy(checks map[string]HealthCheck) bool {
	for _, check := range checks {
		if check.Status != StatusHealthy {
			return false
		}
	}
	return true
}

func (h *HealthChecker) HealthHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		checks := h.Run(c.Request.Context())

		overallStatus := StatusHealthy
		status := http.StatusOK
		if !allHealthy(checks) {
			overallStatus = StatusUnhealthy
			status = http.StatusServiceUnavailable
		}

		c.JSON(status, gin.H{
			"status":    overallStatus,
			"timestamp": time.Now(),
			"checks":    checks,
			"uptime":    h.Uptime().String(),
		})
	}
}

func (h *HealthChecker) ReadinessHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if allHealthy(h.Run(c.Request.Context())) {
			c.JSON(http.StatusOK, gin.H{
				"status":    "ready",
				"timestamp": time.Now(),
			})
			return
		}

		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":    "not ready",
			"timestamp": time.Now(),
		})
	}
}

func (h *HealthChecker) LivenessHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "alive",
			"timestamp": time.Now(),
			"uptime":    h.Uptime().String(),
		})
	}
}

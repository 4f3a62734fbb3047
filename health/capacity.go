package health

import (
	"context"
	"fmt"
)

// Sizer reports how many entries a cache holds.
type Sizer interface {
	Len() int
}

// CapacityCheckerConfig configures the capacity checker.
type CapacityCheckerConfig struct {
	// MaxEntries is the expected capacity. Required.
	MaxEntries int

	// WarningThreshold is the fill ratio that reports degraded.
	// Default: 0.8
	WarningThreshold float64

	// CriticalThreshold is the fill ratio that reports unhealthy.
	// Default: 0.95
	CriticalThreshold float64
}

// CapacityChecker watches how full the session cache is. An in-memory
// store that fills up starts evicting or rejecting sessions, which logs
// users out.
type CapacityChecker struct {
	name   string
	cache  Sizer
	config CapacityCheckerConfig
}

// NewCapacityChecker creates a capacity checker.
func NewCapacityChecker(name string, cache Sizer, config CapacityCheckerConfig) *CapacityChecker {
	if config.WarningThreshold <= 0 || config.WarningThreshold >= 1 {
		config.WarningThreshold = 0.8
	}
	if config.CriticalThreshold <= 0 || config.CriticalThreshold > 1 {
		config.CriticalThreshold = 0.95
	}
	if config.CriticalThreshold < config.WarningThreshold {
		config.CriticalThreshold = config.WarningThreshold
	}
	return &CapacityChecker{name: name, cache: cache, config: config}
}

// Name returns the checker name.
func (c *CapacityChecker) Name() string {
	return c.name
}

// Check compares the entry count to the thresholds.
func (c *CapacityChecker) Check(context.Context) Result {
	n := c.cache.Len()
	if c.config.MaxEntries <= 0 {
		return Healthy(fmt.Sprintf("%d entries", n)).WithDetails(map[string]any{"entries": n})
	}

	ratio := float64(n) / float64(c.config.MaxEntries)
	details := map[string]any{
		"entries":       n,
		"max_entries":   c.config.MaxEntries,
		"usage_percent": ratio * 100,
	}

	switch {
	case ratio >= c.config.CriticalThreshold:
		return Unhealthy(fmt.Sprintf("cache usage critical: %.1f%%", ratio*100), ErrCheckFailed).WithDetails(details)
	case ratio >= c.config.WarningThreshold:
		return Degraded(fmt.Sprintf("cache usage high: %.1f%%", ratio*100)).WithDetails(details)
	default:
		return Healthy(fmt.Sprintf("cache usage normal: %.1f%%", ratio*100)).WithDetails(details)
	}
}

// Ensure CapacityChecker implements Checker
var _ Checker = (*CapacityChecker)(nil)

// Package sysguard provides a resource-exhaustion check the dispatcher
// runs once, before creating the rendezvous pipe, turning low host memory
// into an observable startup failure instead of a bare allocation
// failure. Sessions and box creation are not checked. Uses gopsutil v3's
// host memory sampling
// with no rate limiting or goroutine semaphore (those guard a fan-out
// broadcast workload this broker doesn't have).
package sysguard

import (
	"fmt"

	"github.com/shirou/gopsutil/v3/mem"
)

// Guard samples host memory when Check is called.
type Guard struct {
	enabled       bool
	maxMemPercent float64
}

// New creates a guard. If enabled is false, Check always succeeds
// (matching the original's lack of any such check when not configured).
func New(enabled bool, maxMemPercent float64) *Guard {
	return &Guard{enabled: enabled, maxMemPercent: maxMemPercent}
}

// ErrExhausted is returned by Check when host memory utilization exceeds
// the configured threshold.
type ErrExhausted struct {
	UsedPercent float64
	Limit       float64
}

func (e *ErrExhausted) Error() string {
	return fmt.Sprintf("sysguard: host memory at %.1f%%, limit %.1f%%", e.UsedPercent, e.Limit)
}

// Check samples current host memory usage and returns ErrExhausted if it
// is above the configured limit. Sampling failures are not fatal: the
// guard fails open, since a broken sampler shouldn't itself become a
// resource-exhaustion trigger.
func (g *Guard) Check() error {
	if !g.enabled {
		return nil
	}
	vm, err := mem.VirtualMemory()
	if err != nil {
		return nil
	}
	if vm.UsedPercent > g.maxMemPercent {
		return &ErrExhausted{UsedPercent: vm.UsedPercent, Limit: g.maxMemPercent}
	}
	return nil
}

// Copyright 2025 The uniOS Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package ktime provides the kernel's view of time: a monotonic tick counter
// with a fixed frequency, as produced by the platform timer.
package ktime

import (
	"sync/atomic"
	"time"
)

// Clock is the timer collaborator contract. Ticks is monotonic; Frequency is
// constant for the lifetime of the clock.
type Clock interface {
	// Ticks returns the current value of the monotonic tick counter.
	Ticks() uint64

	// Frequency returns the number of ticks per second.
	Frequency() uint64
}

// DurationToTicks converts a duration to ticks of c, rounding any non-zero
// request up to at least one tick so nothing sleeps zero.
func DurationToTicks(c Clock, d time.Duration) uint64 {
	if d <= 0 {
		return 0
	}
	ticks := uint64(d.Milliseconds()) * c.Frequency() / 1000
	if ticks == 0 {
		ticks = 1
	}
	return ticks
}

// ManualClock is a Clock that only advances when told to. It is the clock
// used by tests and by deterministic runs.
type ManualClock struct {
	ticks atomic.Uint64
	freq  uint64
}

// NewManualClock returns a ManualClock at tick zero with the given frequency.
func NewManualClock(frequency uint64) *ManualClock {
	return &ManualClock{freq: frequency}
}

// Ticks implements Clock.Ticks.
func (c *ManualClock) Ticks() uint64 {
	return c.ticks.Load()
}

// Frequency implements Clock.Frequency.
func (c *ManualClock) Frequency() uint64 {
	return c.freq
}

// Advance moves the clock forward by n ticks.
func (c *ManualClock) Advance(n uint64) {
	c.ticks.Add(n)
}

// RealClock is a Clock derived from the host's monotonic time, quantized to
// the configured frequency.
type RealClock struct {
	start time.Time
	freq  uint64
}

// NewRealClock returns a RealClock starting at tick zero now.
func NewRealClock(frequency uint64) *RealClock {
	return &RealClock{start: time.Now(), freq: frequency}
}

// Ticks implements Clock.Ticks.
func (c *RealClock) Ticks() uint64 {
	elapsed := time.Since(c.start)
	return uint64(elapsed) * c.freq / uint64(time.Second)
}

// Frequency implements Clock.Frequency.
func (c *RealClock) Frequency() uint64 {
	return c.freq
}

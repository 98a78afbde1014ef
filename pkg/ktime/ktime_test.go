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

package ktime

import (
	"testing"
	"time"
)

func TestDurationToTicks(t *testing.T) {
	c := NewManualClock(100) // 10ms per tick.
	for _, tc := range []struct {
		d    time.Duration
		want uint64
	}{
		{0, 0},
		{-time.Second, 0},
		{time.Millisecond, 1}, // sub-tick rounds up, never zero
		{9 * time.Millisecond, 1},
		{10 * time.Millisecond, 1},
		{15 * time.Millisecond, 1},
		{20 * time.Millisecond, 2},
		{time.Second, 100},
	} {
		if got := DurationToTicks(c, tc.d); got != tc.want {
			t.Errorf("DurationToTicks(%v) = %d, want %d", tc.d, got, tc.want)
		}
	}
}

func TestManualClock(t *testing.T) {
	c := NewManualClock(1000)
	if got := c.Ticks(); got != 0 {
		t.Errorf("fresh clock at tick %d", got)
	}
	c.Advance(3)
	c.Advance(2)
	if got := c.Ticks(); got != 5 {
		t.Errorf("Ticks = %d after advancing 5", got)
	}
	if got := c.Frequency(); got != 1000 {
		t.Errorf("Frequency = %d, want 1000", got)
	}
}

func TestRealClockMonotonic(t *testing.T) {
	c := NewRealClock(1_000_000)
	a := c.Ticks()
	time.Sleep(time.Millisecond)
	b := c.Ticks()
	if b < a {
		t.Errorf("clock went backwards: %d then %d", a, b)
	}
	if b == a {
		t.Errorf("1MHz clock did not advance over 1ms")
	}
}

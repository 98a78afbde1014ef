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

package kernel

// procArena is a stable-index slot table holding every live process. Slot
// order is the scheduler's ring order; freed slots leave holes that the
// walk skips and the next insertion reuses, so reaping is an O(1) slot
// free rather than a permanently parked record.
//
// Mutation requires Kernel.mu. Walks additionally require the disabled-
// interrupt section; on the single core that makes walk and mutation
// mutually exclusive.
type procArena struct {
	slots []*Process
	free  []int
}

// add places p in a slot and records the slot index in p.
func (a *procArena) add(p *Process) {
	if n := len(a.free); n > 0 {
		slot := a.free[n-1]
		a.free = a.free[:n-1]
		a.slots[slot] = p
		p.slot = slot
		return
	}
	p.slot = len(a.slots)
	a.slots = append(a.slots, p)
}

// remove frees p's slot.
func (a *procArena) remove(p *Process) {
	a.slots[p.slot] = nil
	a.free = append(a.free, p.slot)
}

// live returns the number of occupied slots.
func (a *procArena) live() int {
	return len(a.slots) - len(a.free)
}

// forEach calls fn for each live process in slot order until fn returns
// false.
func (a *procArena) forEach(fn func(*Process) bool) {
	for _, p := range a.slots {
		if p == nil {
			continue
		}
		if !fn(p) {
			return
		}
	}
}

// nextAfter walks the ring starting just after the given slot and returns
// the first live process accepted by fn. The walk wraps and ends after
// revisiting the starting slot itself, so the caller sees the current
// process last.
func (a *procArena) nextAfter(slot int, fn func(*Process) bool) *Process {
	n := len(a.slots)
	for i := 1; i <= n; i++ {
		p := a.slots[(slot+i)%n]
		if p == nil {
			continue
		}
		if fn(p) {
			return p
		}
	}
	return nil
}

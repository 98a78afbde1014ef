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

import (
	"time"

	"unios.dev/unios/pkg/hostarch"
	"unios.dev/unios/pkg/ktime"
)

// CreateTask creates a kernel task entering at pc and returns its pid. The
// new task shares the kernel address space and starts Ready at the end of
// the ring.
func (k *Kernel) CreateTask(name string, pc hostarch.Addr) PID {
	k.mu.Lock()
	defer k.mu.Unlock()

	p := &Process{
		id:      k.nextPID,
		parent:  k.currentPID(),
		name:    name,
		state:   StateReady,
		stack:   make([]byte, KernelStackSize),
		fpuInit: true,
	}
	k.nextPID++
	initFPUState(&p.fpu)
	p.stackBase = k.allocStackBase()
	p.sp = p.seedStack(pc)
	k.procs.add(p)

	k.log.Infof("created task %q pid %d", name, p.id)
	return p.id
}

// currentPID returns the running pid, or 0 when there is no context yet.
func (k *Kernel) currentPID() PID {
	if k.current == nil {
		return 0
	}
	return k.current.id
}

// allocStackBase carves a stack-sized range out of the kernel stack area,
// leaving a guard gap. Bases are never reused; the area is vast.
//
// Preconditions: k.mu must be held.
func (k *Kernel) allocStackBase() hostarch.Addr {
	base := k.stackCursor
	k.stackCursor += 2 * KernelStackSize
	return base
}

// Tick is the timer IRQ entry point, called once per timer interrupt. A
// masked core ignores the tick; wake ticks are absolute, so the next
// unmasked tick catches up.
func (k *Kernel) Tick() {
	if !k.cpu.interruptsEnabled() {
		return
	}
	k.Schedule()
}

// Yield gives up the core voluntarily.
func (k *Kernel) Yield() {
	k.Schedule()
}

// Schedule runs one scheduling pass: promote every sleeper whose wake tick
// has arrived, then walk the ring starting just after the current process
// and switch to the first Ready/Running entry. If nothing else is runnable
// no switch occurs.
//
// The whole pass runs with interrupts disabled; a switch hands flag
// restoration to the switch primitive, the fast path restores on return.
func (k *Kernel) Schedule() {
	if k.current == nil {
		return
	}
	g := k.beginCritical()
	defer g.end()

	k.wakeSleepers()

	next := k.procs.nextAfter(k.current.slot, func(p *Process) bool {
		return p.state == StateReady || p.state == StateRunning
	})
	if next == nil || next == k.current {
		return
	}

	prev := k.current
	if prev.state == StateRunning {
		prev.state = StateReady
	}
	k.current = next
	next.state = StateRunning

	g.disarm()
	k.switchTo(prev, next, g.flags)
}

// wakeSleepers promotes every Sleeping process whose wake tick has arrived.
// This runs inline with each scheduling pass, so wake latency is bounded by
// the tick period.
func (k *Kernel) wakeSleepers() {
	now := k.clock.Ticks()
	k.procs.forEach(func(p *Process) bool {
		if p.state == StateSleeping && now >= p.wakeTick {
			p.state = StateReady
		}
		return true
	})
}

// switchTo models the low-level context switch. The outgoing context saves
// the flags word it held before entering the scheduler; restoring the
// incoming context's register file restores its saved flags, re-enabling
// interrupts iff that task had them enabled. Updating current and switching
// is therefore atomic with respect to the timer.
func (k *Kernel) switchTo(prev, next *Process, prevFlags uint64) {
	prev.saveFlags(prevFlags)
	k.cpu.restore(next.resumeFlags())
	k.switches++
}

// Sleep blocks the current process for at least the given number of ticks.
func (k *Kernel) Sleep(ticks uint64) {
	if k.current == nil {
		return
	}
	flags := k.cpu.saveDisable()
	k.current.wakeTick = k.clock.Ticks() + ticks
	k.current.state = StateSleeping
	k.cpu.restore(flags)

	k.Schedule()
}

// SleepMillis blocks the current process for at least ms milliseconds,
// rounding any non-zero request up to one tick.
func (k *Kernel) SleepMillis(ms uint64) {
	k.Sleep(ktime.DurationToTicks(k.clock, time.Duration(ms)*time.Millisecond))
}

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

// The simulated CPU keeps only what the core needs: the flags word. Bit 9
// is IF, the interrupt-enable flag; bit 1 is the always-set reserved bit.
const (
	rflagsIF = uint64(1 << 9)

	// initialRFLAGS is the flags word a fresh context starts with:
	// interrupts enabled.
	initialRFLAGS = uint64(0x202)
)

type cpuState struct {
	rflags uint64
}

func (c *cpuState) interruptsEnabled() bool {
	return c.rflags&rflagsIF != 0
}

// saveDisable returns the current flags and clears IF.
func (c *cpuState) saveDisable() uint64 {
	flags := c.rflags
	c.rflags &^= rflagsIF
	return flags
}

func (c *cpuState) restore(flags uint64) {
	c.rflags = flags
}

// InterruptsEnabled reports the simulated IF state. Exposed for the boot
// layer and tests; kernel code uses the guard below.
func (k *Kernel) InterruptsEnabled() bool {
	return k.cpu.interruptsEnabled()
}

// interruptGuard is the scoped critical section wrapped around the
// scheduling decision. Every exit path restores interrupt state: the
// no-switch fast path through end, the switch path through the switch
// primitive, which takes ownership via disarm and restores the incoming
// task's saved flags instead.
type interruptGuard struct {
	k        *Kernel
	flags    uint64
	disarmed bool
}

func (k *Kernel) beginCritical() *interruptGuard {
	return &interruptGuard{k: k, flags: k.cpu.saveDisable()}
}

// disarm transfers restoration to the context-switch primitive: the flags
// captured at guard entry travel with the outgoing task's context, and the
// core takes the incoming task's saved word instead.
func (g *interruptGuard) disarm() {
	g.disarmed = true
}

func (g *interruptGuard) end() {
	if !g.disarmed {
		g.k.cpu.restore(g.flags)
	}
}

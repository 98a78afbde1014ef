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

// Package kernel implements the execution core of uniOS: process lifecycle,
// round-robin scheduling with timer preemption, fork/exit/wait, and the
// syscall boundary.
//
// The kernel runs on one simulated core. Preemption points are the timer
// interrupt (Tick) and the explicit yields in Sleep, Exit and Wait; nothing
// else may suspend. The scheduling decision and the context switch execute
// with simulated interrupts disabled for the whole sequence; re-enabling is
// deferred to the switch primitive, which restores the incoming task's saved
// flags word.
package kernel

import (
	"sync"
	"time"

	"unios.dev/unios/pkg/display"
	"unios.dev/unios/pkg/hostarch"
	"unios.dev/unios/pkg/ktime"
	"unios.dev/unios/pkg/log"
	"unios.dev/unios/pkg/pagetables"
	"unios.dev/unios/pkg/pipe"
	"unios.dev/unios/pkg/unifs"
	"unios.dev/unios/pkg/usermem"
)

// Args are the collaborators a Kernel is assembled from.
type Args struct {
	// Clock is the platform timer. Required.
	Clock ktime.Clock

	// AddressSpace is the kernel's default address space, captured from
	// the active root at boot. May be nil if the bootloader supplied no
	// direct map; the kernel then runs without a VMM.
	AddressSpace *pagetables.PageTables

	// Filesystem is the mounted root image. May be nil; open then fails.
	Filesystem *unifs.Image

	// Pipes is the IPC registry. Defaults to a fresh registry.
	Pipes *pipe.Registry

	// Display receives characters written to stdout/stderr. Defaults to
	// display.Discard.
	Display display.Display

	// UserMemory is the backed user address space. Defaults to an empty
	// region, making every user copy fail cleanly.
	UserMemory usermem.IO
}

// Kernel is the machine's execution core.
type Kernel struct {
	clock ktime.Clock
	vmm   *pagetables.PageTables
	fs    *unifs.Image
	pipes *pipe.Registry
	disp  display.Display
	uio   usermem.IO

	cpu cpuState

	// mu serializes structural mutation of the process arena: task
	// creation, fork insertion and reap. The scheduling walk itself runs
	// without it, which is safe only because the walk always executes
	// under disabled interrupts on the sole core.
	mu sync.Mutex

	procs   procArena
	current *Process
	nextPID PID

	// stackCursor is where the next kernel stack is placed in the kernel
	// address range. Advanced with a guard gap, never reused.
	stackCursor hostarch.Addr

	// switches counts completed context switches.
	switches uint64

	fds              *FDTable
	cursorX, cursorY uint64

	log        log.Logger
	unknownLog log.Logger
}

// New assembles a Kernel. The calling context becomes PID 0, the idle task:
// it has no kernel stack of its own and shares the kernel address space.
func New(args Args) *Kernel {
	if args.Clock == nil {
		panic("kernel.New: nil clock")
	}
	if args.Pipes == nil {
		args.Pipes = pipe.NewRegistry(64)
	}
	if args.Display == nil {
		args.Display = display.Discard
	}
	if args.UserMemory == nil {
		args.UserMemory = usermem.NewBytesIO(hostarch.Addr(hostarch.PageSize), 0)
	}

	k := &Kernel{
		clock:       args.Clock,
		vmm:         args.AddressSpace,
		fs:          args.Filesystem,
		pipes:       args.Pipes,
		disp:        args.Display,
		uio:         args.UserMemory,
		nextPID:     1,
		stackCursor: kernelStackArea,
		fds:         NewFDTable(),
		cursorX:     cursorStartX,
		cursorY:     cursorStartY,
		log:         log.New("kernel"),
	}
	k.cpu.rflags = initialRFLAGS
	k.unknownLog = log.RateLimitedLogger(k.log, 5*time.Second)

	idle := &Process{
		name:       "idle",
		state:      StateRunning,
		savedFlags: initialRFLAGS,
		fpuInit:    true,
	}
	initFPUState(&idle.fpu)
	k.procs.add(idle)
	k.current = idle

	k.log.Infof("scheduler initialized, initial pid %d", idle.id)
	return k
}

// Current returns the running process. It is nil only before New completes.
func (k *Kernel) Current() *Process {
	return k.current
}

// AddressSpace returns the kernel's default address space, or nil when the
// VMM is disabled.
func (k *Kernel) AddressSpace() *pagetables.PageTables {
	return k.vmm
}

// ContextSwitches returns the number of completed context switches.
func (k *Kernel) ContextSwitches() uint64 {
	return k.switches
}

// ProcessCount returns the number of live (unreaped) processes.
func (k *Kernel) ProcessCount() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.procs.live()
}

// findByPID returns the live process with the given pid, or nil.
func (k *Kernel) findByPID(pid PID) *Process {
	var found *Process
	k.procs.forEach(func(p *Process) bool {
		if p.id == pid {
			found = p
			return false
		}
		return true
	})
	return found
}

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
	"encoding/binary"
	"fmt"

	"unios.dev/unios/pkg/hostarch"
	"unios.dev/unios/pkg/pagetables"
)

// PID identifies a process. PIDs are unique and strictly increasing across
// one run; PID 0 is the idle task created at boot.
type PID uint64

// State is a process lifecycle state.
type State int32

const (
	// StateReady means runnable but not currently selected.
	StateReady State = iota

	// StateRunning means currently selected on the core.
	StateRunning

	// StateSleeping means blocked until an absolute wake tick.
	StateSleeping

	// StateWaiting means blocked until a matching child becomes a zombie.
	StateWaiting

	// StateZombie means exited with a status nobody collected yet.
	StateZombie

	// StateReaped is terminal: the status was collected and the arena
	// slot freed. A reaped process is never scheduled again.
	StateReaped
)

// String implements fmt.Stringer.String.
func (s State) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StateRunning:
		return "running"
	case StateSleeping:
		return "sleeping"
	case StateWaiting:
		return "waiting"
	case StateZombie:
		return "zombie"
	case StateReaped:
		return "reaped"
	default:
		return fmt.Sprintf("unknown(%d)", int32(s))
	}
}

const (
	// KernelStackSize leaves room for the deepest handler call chains.
	KernelStackSize = 16 << 10

	// FPUStateSize is the FXSAVE area size.
	FPUStateSize = 512

	// kernelStackArea is where simulated kernel stacks are placed, far
	// above the user/kernel boundary.
	kernelStackArea = hostarch.Addr(0xffff_8800_0000_0000)

	// stackAlign is the required alignment of a stack top.
	stackAlign = 16
)

// Process is one schedulable kernel context.
type Process struct {
	id     PID
	parent PID
	name   string

	// sp is the saved stack pointer, valid only while the process is not
	// running. It points into [stackBase, stackBase+len(stack)].
	sp        hostarch.Addr
	stackBase hostarch.Addr

	// stack is the exclusively-owned kernel stack. nil for the idle task,
	// which runs on the boot stack.
	stack []byte

	// addressSpace is the page-table root this process runs under. nil
	// means the kernel address space. After fork, parent and child share
	// the same object.
	addressSpace *pagetables.PageTables

	state      State
	exitStatus int32

	// waitFor is the pid filter while Waiting; 0 matches any child.
	waitFor PID

	// wakeTick is the absolute tick at which a Sleeping process becomes
	// Ready.
	wakeTick uint64

	// savedFlags holds the flags word for a process without a stack
	// frame; processes with stacks keep flags in the frame itself.
	savedFlags uint64

	fpu     [FPUStateSize]byte
	fpuInit bool

	// slot is the process's index in the arena, fixed for its lifetime.
	slot int
}

// ID returns the process's pid.
func (p *Process) ID() PID { return p.id }

// Parent returns the parent's pid.
func (p *Process) Parent() PID { return p.parent }

// Name returns the process's name.
func (p *Process) Name() string { return p.name }

// State returns the lifecycle state.
func (p *Process) State() State { return p.state }

// ExitStatus returns the recorded exit status; meaningful once the process
// is a zombie.
func (p *Process) ExitStatus() int32 { return p.exitStatus }

// StackPointer returns the saved stack pointer.
func (p *Process) StackPointer() hostarch.Addr { return p.sp }

// initFPUState seeds an FXSAVE area the way finit leaves the hardware:
// control word 0x037F, MXCSR 0x1F80, everything else zero.
func initFPUState(fpu *[FPUStateSize]byte) {
	binary.LittleEndian.PutUint16(fpu[0:2], 0x037f)
	binary.LittleEndian.PutUint32(fpu[24:28], 0x1f80)
}

// Switch frame layout, ascending from the saved stack pointer. This is the
// register file the switch primitive pops when resuming a context. rax is
// first so the syscall return value of a resumed context has a single
// documented home: fork zeroes it in the child.
const (
	frameRAX    = 0
	frameRBX    = 8
	frameRBP    = 16
	frameR12    = 24
	frameR13    = 32
	frameR14    = 40
	frameR15    = 48
	frameRFLAGS = 56
	frameRIP    = 64
	frameRET    = 72

	switchFrameSize = 80
)

// SwitchFrame is a view of the register file saved at a stack pointer.
type SwitchFrame struct {
	stack []byte
	off   int
}

// Frame returns the switch frame at the process's saved stack pointer, if
// the whole frame lies within its kernel stack.
func (p *Process) Frame() (SwitchFrame, bool) {
	return p.frameAt(p.sp)
}

func (p *Process) frameAt(sp hostarch.Addr) (SwitchFrame, bool) {
	if p.stack == nil || sp < p.stackBase {
		return SwitchFrame{}, false
	}
	off := uint64(sp - p.stackBase)
	if off+switchFrameSize > uint64(len(p.stack)) {
		return SwitchFrame{}, false
	}
	return SwitchFrame{stack: p.stack, off: int(off)}, true
}

func (f SwitchFrame) word(off int) uint64 {
	return binary.LittleEndian.Uint64(f.stack[f.off+off:])
}

func (f SwitchFrame) setWord(off int, v uint64) {
	binary.LittleEndian.PutUint64(f.stack[f.off+off:], v)
}

// RAX returns the saved return-value register.
func (f SwitchFrame) RAX() uint64 { return f.word(frameRAX) }

// SetRAX sets the saved return-value register.
func (f SwitchFrame) SetRAX(v uint64) { f.setWord(frameRAX, v) }

// RFLAGS returns the saved flags word.
func (f SwitchFrame) RFLAGS() uint64 { return f.word(frameRFLAGS) }

// SetRFLAGS sets the saved flags word.
func (f SwitchFrame) SetRFLAGS(v uint64) { f.setWord(frameRFLAGS, v) }

// RIP returns the saved instruction pointer.
func (f SwitchFrame) RIP() uint64 { return f.word(frameRIP) }

// saveFlags records the flags word the context will resume with.
func (p *Process) saveFlags(v uint64) {
	if f, ok := p.Frame(); ok {
		f.SetRFLAGS(v)
		return
	}
	p.savedFlags = v
}

// resumeFlags returns the flags word the context resumes with.
func (p *Process) resumeFlags() uint64 {
	if f, ok := p.Frame(); ok {
		return f.RFLAGS()
	}
	return p.savedFlags
}

// seedStack writes the initial switch frame for a fresh task entering at
// pc: dummy return slot, entry pc, flags with interrupts enabled, and
// zeroed callee-saved registers. Returns the resulting stack pointer.
func (p *Process) seedStack(pc hostarch.Addr) hostarch.Addr {
	top := uint64(len(p.stack)) &^ (stackAlign - 1)
	off := top - switchFrameSize
	f := SwitchFrame{stack: p.stack, off: int(off)}
	f.setWord(frameRET, 0)
	f.setWord(frameRIP, uint64(pc))
	f.setWord(frameRFLAGS, initialRFLAGS)
	for _, reg := range [...]int{frameRBX, frameRBP, frameR12, frameR13, frameR14, frameR15, frameRAX} {
		f.setWord(reg, 0)
	}
	return p.stackBase + hostarch.Addr(off)
}

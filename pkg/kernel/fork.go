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
	"errors"
)

var (
	// ErrNoProcess indicates there is no current process context.
	ErrNoProcess = errors.New("kernel: no current process")

	// ErrNoStack indicates the caller runs on the boot stack and cannot
	// be duplicated.
	ErrNoStack = errors.New("kernel: current process has no kernel stack")

	// ErrWouldBlock indicates no matching zombie child exists yet; the
	// caller has been marked Waiting and should retry on resumption.
	ErrWouldBlock = errors.New("kernel: wait would block")
)

// Fork duplicates the current process and returns the child's pid to the
// parent path.
//
// This is the documented shortcut fork, not copy-on-write: the child gets a
// byte-for-byte copy of the parent's whole kernel stack with the saved
// stack pointer at the same offset from base, a copy of the FPU block, and
// a reference to the parent's page-table root, shared, not cloned. The one
// divergence in the copied image is the return-value slot of the child's
// switch frame, zeroed so a resumed child observes fork() == 0.
func (k *Kernel) Fork() (PID, error) {
	parent := k.current
	if parent == nil {
		return 0, ErrNoProcess
	}
	if parent.stack == nil {
		return 0, ErrNoStack
	}

	child := &Process{
		parent:       parent.id,
		name:         parent.name,
		state:        StateReady,
		stack:        make([]byte, len(parent.stack)),
		addressSpace: parent.addressSpace,
		fpu:          parent.fpu,
		fpuInit:      true,
	}
	copy(child.stack, parent.stack)

	k.mu.Lock()
	child.id = k.nextPID
	k.nextPID++
	child.stackBase = k.allocStackBase()
	child.sp = child.stackBase + (parent.sp - parent.stackBase)
	if f, ok := child.Frame(); ok {
		f.SetRAX(0)
	}
	k.procs.add(child)
	k.mu.Unlock()

	k.log.Infof("forked pid %d -> %d", parent.id, child.id)
	return child.id, nil
}

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

// Exit marks the current process a zombie with the given status, promotes a
// parent blocked in a matching wait, and yields. An exited context is never
// selected again; on the real machine this call does not return, in the
// model control returns to the driver with the process off the run set.
func (k *Kernel) Exit(status int32) {
	p := k.current
	if p == nil {
		return
	}
	k.log.Infof("process %d exiting with status %d", p.id, status)

	p.state = StateZombie
	p.exitStatus = status

	if parent := k.findByPID(p.parent); parent != nil && parent.state == StateWaiting {
		if parent.waitFor == 0 || parent.waitFor == p.id {
			parent.state = StateReady
		}
	}

	k.Schedule()
}

// Wait reaps a zombie child of the current process. pid 0 matches any
// child; a non-zero pid matches exactly that child and never an unrelated
// zombie.
//
// If a matching zombie exists its status is captured, its arena slot is
// freed and its pid returned. Otherwise the caller is marked Waiting with
// the pid filter and yielded, and ErrWouldBlock is returned; the caller
// re-issues the wait on each resumption. This is a spin-on-reschedule
// design: correct, at the cost of one scheduling slot per retry.
func (k *Kernel) Wait(pid PID) (PID, int32, error) {
	p := k.current
	if p == nil {
		return 0, 0, ErrNoProcess
	}

	k.mu.Lock()
	var zombie *Process
	k.procs.forEach(func(c *Process) bool {
		if c.parent == p.id && c.state == StateZombie {
			if pid == 0 || pid == c.id {
				zombie = c
				return false
			}
		}
		return true
	})
	if zombie != nil {
		status := zombie.exitStatus
		zombie.state = StateReaped
		k.procs.remove(zombie)
		k.mu.Unlock()
		k.log.Infof("reaped zombie pid %d", zombie.id)
		return zombie.id, status, nil
	}
	k.mu.Unlock()

	p.state = StateWaiting
	p.waitFor = pid
	k.Schedule()
	return 0, 0, ErrWouldBlock
}

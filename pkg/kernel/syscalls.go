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

	"unios.dev/unios/pkg/hostarch"
)

// Failure is the syscall failure sentinel, all ones, read by user space as
// -1. No handler returns it as a success value.
const Failure = ^uint64(0)

// maxStringLen bounds user string walks.
const maxStringLen = 4096

// Display cursor discipline for console writes.
const (
	cursorStartX = 50
	cursorStartY = 480
	charWidth    = 9
	lineHeight   = 10
)

// validateUserRange checks that [addr, addr+size) is a plausible user
// region: non-null, below the user/kernel boundary, and, for sized
// regions, an end that neither wraps nor crosses the boundary. It says
// nothing about whether the region is backed; it only guards the kernel
// against dereferencing hostile addresses.
func validateUserRange(addr hostarch.Addr, size uint64) bool {
	if addr == 0 {
		return false
	}
	if addr >= hostarch.UserspaceTop {
		return false
	}
	if size > 0 {
		end, ok := addr.AddLength(size - 1)
		if !ok {
			return false
		}
		if end >= hostarch.UserspaceTop {
			return false
		}
	}
	return true
}

// copyStringIn walks a NUL-terminated user string byte by byte, revalidating
// every byte address individually, up to maxStringLen. ok is false if any
// byte fails validation or no terminator appears within bound.
func (k *Kernel) copyStringIn(addr hostarch.Addr) (string, bool) {
	if !validateUserRange(addr, 1) {
		return "", false
	}
	var s []byte
	var b [1]byte
	for i := uint64(0); i < maxStringLen; i++ {
		a := addr + hostarch.Addr(i)
		if !validateUserRange(a, 1) {
			return "", false
		}
		if _, err := k.uio.CopyIn(a, b[:]); err != nil {
			return "", false
		}
		if b[0] == 0 {
			return string(s), true
		}
		s = append(s, b[0])
	}
	return "", false
}

// sysRead implements read(fd, buf, count).
func sysRead(k *Kernel, a1, a2, a3 uint64) uint64 {
	fd, buf, count := int32(a1), hostarch.Addr(a2), a3
	if count > 0 && !validateUserRange(buf, count) {
		return Failure
	}
	if !k.fds.InUse(fd) {
		return Failure
	}
	if fd == StdinFD {
		// TODO: read from the keyboard once HID input is routed here.
		return 0
	}
	data, err := k.fds.Read(fd, count)
	if err != nil {
		return Failure
	}
	if len(data) > 0 {
		if _, err := k.uio.CopyOut(buf, data); err != nil {
			return Failure
		}
	}
	return uint64(len(data))
}

// sysWrite implements write(fd, buf, count). Only the standard output
// streams are writable; characters stream to the display, with newline
// advancing the line. The byte walk stops at a NUL but the full count is
// still reported.
func sysWrite(k *Kernel, a1, a2, a3 uint64) uint64 {
	fd, buf, count := int32(a1), hostarch.Addr(a2), a3
	if count > 0 && !validateUserRange(buf, count) {
		return Failure
	}
	if fd != StdoutFD && fd != StderrFD {
		return Failure
	}

	var chunk [512]byte
	for done := uint64(0); done < count; {
		n := uint64(len(chunk))
		if count-done < n {
			n = count - done
		}
		if _, err := k.uio.CopyIn(buf+hostarch.Addr(done), chunk[:n]); err != nil {
			return Failure
		}
		for _, c := range chunk[:n] {
			if c == 0 {
				return count
			}
			if c == '\n' {
				k.cursorX = cursorStartX
				k.cursorY += lineHeight
			} else {
				k.disp.DrawChar(k.cursorX, k.cursorY, c)
				k.cursorX += charWidth
			}
		}
		done += n
	}
	return count
}

// sysOpen implements open(name).
func sysOpen(k *Kernel, a1, a2, a3 uint64) uint64 {
	name, ok := k.copyStringIn(hostarch.Addr(a1))
	if !ok {
		return Failure
	}
	if k.fs == nil {
		return Failure
	}
	f, err := k.fs.Open(name)
	if err != nil {
		return Failure
	}
	fd, err := k.fds.Open(f)
	if err != nil {
		return Failure
	}
	return uint64(fd)
}

// sysClose implements close(fd).
func sysClose(k *Kernel, a1, a2, a3 uint64) uint64 {
	if err := k.fds.Close(int32(a1)); err != nil {
		return Failure
	}
	return 0
}

// sysPipe implements pipe(), delegating to the IPC registry.
func sysPipe(k *Kernel, a1, a2, a3 uint64) uint64 {
	h, err := k.pipes.NewPipe()
	if err != nil {
		return Failure
	}
	return uint64(h)
}

// sysGetPID implements getpid().
func sysGetPID(k *Kernel, a1, a2, a3 uint64) uint64 {
	if k.current == nil {
		return 1
	}
	return uint64(k.current.id)
}

// sysFork implements fork().
func sysFork(k *Kernel, a1, a2, a3 uint64) uint64 {
	pid, err := k.Fork()
	if err != nil {
		return Failure
	}
	return uint64(pid)
}

// sysExit implements exit(status).
func sysExit(k *Kernel, a1, a2, a3 uint64) uint64 {
	k.Exit(int32(a1))
	return 0
}

// sysWait4 implements wait4(pid, status_ptr). pid -1 (or 0) waits for any
// child. If no matching zombie exists yet the caller is left Waiting and
// the failure sentinel is returned; the resumed caller re-issues the call.
func sysWait4(k *Kernel, a1, a2, a3 uint64) uint64 {
	pid := int64(a1)
	statusAddr := hostarch.Addr(a2)
	if statusAddr != 0 && !validateUserRange(statusAddr, 4) {
		return Failure
	}

	filter := PID(0)
	if pid > 0 {
		filter = PID(pid)
	}
	child, status, err := k.Wait(filter)
	if err != nil {
		return Failure
	}
	if statusAddr != 0 {
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], uint32(status))
		if _, err := k.uio.CopyOut(statusAddr, b[:]); err != nil {
			return Failure
		}
	}
	return uint64(child)
}

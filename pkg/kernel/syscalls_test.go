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
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/google/go-cmp/cmp"

	"unios.dev/unios/pkg/display"
	"unios.dev/unios/pkg/hostarch"
	"unios.dev/unios/pkg/ktime"
	"unios.dev/unios/pkg/pipe"
)

// stage copies data into user memory at addr.
func (e *testEnv) stage(t *testing.T, addr hostarch.Addr, data []byte) {
	t.Helper()
	if _, err := e.umem.CopyOut(addr, data); err != nil {
		t.Fatalf("staging %d bytes at %#x: %v", len(data), addr, err)
	}
}

func TestUnknownSyscallFails(t *testing.T) {
	e := newTestEnv(t)
	for _, num := range []uint64{4, 100, 999, ^uint64(0)} {
		if got := e.k.SyscallHandler(num, 0, 0, 0); got != Failure {
			t.Errorf("syscall %d = %#x, want the failure sentinel", num, got)
		}
	}
}

func TestValidateUserRange(t *testing.T) {
	for _, tc := range []struct {
		name string
		addr hostarch.Addr
		size uint64
		want bool
	}{
		{"null", 0, 8, false},
		{"null zero size", 0, 0, false},
		{"user page", 0x400000, 8, true},
		{"user page zero size", 0x400000, 0, true},
		{"last user byte", hostarch.UserspaceTop - 1, 1, true},
		{"boundary", hostarch.UserspaceTop, 1, false},
		{"kernel half", 0xffff_8000_0000_0000, 8, false},
		{"crosses boundary", hostarch.UserspaceTop - 4, 8, false},
		{"wraps", ^hostarch.Addr(0) - 4, 16, false},
	} {
		if got := validateUserRange(tc.addr, tc.size); got != tc.want {
			t.Errorf("validateUserRange(%s: %#x, %d) = %t, want %t", tc.name, tc.addr, tc.size, got, tc.want)
		}
	}
}

func TestWriteDrawsAtCursor(t *testing.T) {
	e := newTestEnv(t)
	e.stage(t, testUserBase, []byte("hi"))
	if got := e.k.SyscallHandler(1, StdoutFD, uint64(testUserBase), 2); got != 2 {
		t.Fatalf("write = %d, want 2", got)
	}
	want := []display.DrawnChar{
		{X: 50, Y: 480, C: 'h'},
		{X: 59, Y: 480, C: 'i'},
	}
	if diff := cmp.Diff(want, e.disp.Chars()); diff != "" {
		t.Errorf("drawn characters mismatch (-want +got):\n%s", diff)
	}
}

func TestWriteNewlineAdvancesLine(t *testing.T) {
	e := newTestEnv(t)
	e.stage(t, testUserBase, []byte("a\nb"))
	if got := e.k.SyscallHandler(1, StderrFD, uint64(testUserBase), 3); got != 3 {
		t.Fatalf("write = %d, want 3", got)
	}
	want := []display.DrawnChar{
		{X: 50, Y: 480, C: 'a'},
		{X: 50, Y: 490, C: 'b'},
	}
	if diff := cmp.Diff(want, e.disp.Chars()); diff != "" {
		t.Errorf("drawn characters mismatch (-want +got):\n%s", diff)
	}
	// The cursor persists across calls.
	e.stage(t, testUserBase, []byte("c"))
	e.k.SyscallHandler(1, StdoutFD, uint64(testUserBase), 1)
	chars := e.disp.Chars()
	last := chars[len(chars)-1]
	if last.X != 59 || last.Y != 490 {
		t.Errorf("cursor did not persist: next char at (%d, %d), want (59, 490)", last.X, last.Y)
	}
}

func TestWriteStopsAtNULButReportsCount(t *testing.T) {
	e := newTestEnv(t)
	e.stage(t, testUserBase, []byte("ab\x00cd"))
	if got := e.k.SyscallHandler(1, StdoutFD, uint64(testUserBase), 5); got != 5 {
		t.Fatalf("write = %d, want 5", got)
	}
	if got := len(e.disp.Chars()); got != 2 {
		t.Errorf("%d characters drawn, want 2 (walk stops at NUL)", got)
	}
}

func TestWriteRejectsBadPointers(t *testing.T) {
	e := newTestEnv(t)
	for _, tc := range []struct {
		name  string
		addr  uint64
		count uint64
	}{
		{"null", 0, 4},
		{"kernel half", 0xffff_8000_0000_0000, 4},
		{"crosses boundary", uint64(hostarch.UserspaceTop) - 2, 4},
		{"wraps", ^uint64(0) - 2, 8},
	} {
		if got := e.k.SyscallHandler(1, StdoutFD, tc.addr, tc.count); got != Failure {
			t.Errorf("write(%s) = %#x, want failure", tc.name, got)
		}
	}
	if got := len(e.disp.Chars()); got != 0 {
		t.Errorf("rejected writes still drew %d characters", got)
	}
}

func TestWriteBadFD(t *testing.T) {
	e := newTestEnv(t)
	e.stage(t, testUserBase, []byte("x"))
	for _, fd := range []uint64{StdinFD, 3, 99} {
		if got := e.k.SyscallHandler(1, fd, uint64(testUserBase), 1); got != Failure {
			t.Errorf("write to fd %d = %#x, want failure", fd, got)
		}
	}
}

func TestWriteUnbackedRegionFails(t *testing.T) {
	e := newTestEnv(t)
	// Validation passes (a plausible user address) but nothing backs it.
	addr := uint64(testUserBase) + testUserSize + hostarch.PageSize
	if got := e.k.SyscallHandler(1, StdoutFD, addr, 4); got != Failure {
		t.Errorf("write from unbacked memory = %#x, want failure", got)
	}
}

func TestReadStdinReturnsZero(t *testing.T) {
	e := newTestEnv(t)
	if got := e.k.SyscallHandler(0, StdinFD, uint64(testUserBase), 16); got != 0 {
		t.Errorf("read(stdin) = %d, want 0", got)
	}
}

func TestReadUnopenedFDFails(t *testing.T) {
	e := newTestEnv(t)
	if got := e.k.SyscallHandler(0, 3, uint64(testUserBase), 16); got != Failure {
		t.Errorf("read from unopened fd = %#x, want failure", got)
	}
}

func TestOpenReadClose(t *testing.T) {
	e := newTestEnv(t)
	pathAddr := testUserBase
	bufAddr := testUserBase + hostarch.PageSize
	e.stage(t, pathAddr, []byte("motd.txt\x00"))

	fd := e.k.SyscallHandler(2, uint64(pathAddr), 0, 0)
	if fd != 3 {
		t.Fatalf("open = %d, want fd 3", fd)
	}

	// 11 bytes read as 4, then 7, then EOF.
	if got := e.k.SyscallHandler(0, fd, uint64(bufAddr), 4); got != 4 {
		t.Fatalf("first read = %d, want 4", got)
	}
	buf := make([]byte, 4)
	e.umem.CopyIn(bufAddr, buf)
	if !bytes.Equal(buf, []byte("hell")) {
		t.Errorf("first read got %q, want %q", buf, "hell")
	}

	if got := e.k.SyscallHandler(0, fd, uint64(bufAddr), 7); got != 7 {
		t.Fatalf("second read = %d, want 7", got)
	}
	buf = make([]byte, 7)
	e.umem.CopyIn(bufAddr, buf)
	if !bytes.Equal(buf, []byte("o world")) {
		t.Errorf("second read got %q, want %q", buf, "o world")
	}

	if got := e.k.SyscallHandler(0, fd, uint64(bufAddr), 7); got != 0 {
		t.Errorf("read at EOF = %d, want 0", got)
	}

	if got := e.k.SyscallHandler(3, fd, 0, 0); got != 0 {
		t.Errorf("close = %#x, want 0", got)
	}
	if got := e.k.SyscallHandler(0, fd, uint64(bufAddr), 4); got != Failure {
		t.Errorf("read after close = %#x, want failure", got)
	}
}

func TestOpenMissingFileFails(t *testing.T) {
	e := newTestEnv(t)
	e.stage(t, testUserBase, []byte("nope\x00"))
	if got := e.k.SyscallHandler(2, uint64(testUserBase), 0, 0); got != Failure {
		t.Errorf("open of missing file = %#x, want failure", got)
	}
}

func TestOpenBadPathPointer(t *testing.T) {
	e := newTestEnv(t)
	for _, addr := range []uint64{0, uint64(hostarch.UserspaceTop), 0xffff_8000_0000_0000} {
		if got := e.k.SyscallHandler(2, addr, 0, 0); got != Failure {
			t.Errorf("open with path at %#x = %#x, want failure", addr, got)
		}
	}
}

func TestOpenUnterminatedPathFails(t *testing.T) {
	e := newTestEnv(t)
	junk := bytes.Repeat([]byte{'a'}, maxStringLen)
	e.stage(t, testUserBase, junk)
	if got := e.k.SyscallHandler(2, uint64(testUserBase), 0, 0); got != Failure {
		t.Errorf("open with unterminated path = %#x, want failure", got)
	}
}

func TestCloseReservedFails(t *testing.T) {
	e := newTestEnv(t)
	for _, fd := range []uint64{StdinFD, StdoutFD, StderrFD, 3, MaxOpenFiles} {
		if got := e.k.SyscallHandler(3, fd, 0, 0); got != Failure {
			t.Errorf("close(%d) = %#x, want failure", fd, got)
		}
	}
}

func TestPipeSyscall(t *testing.T) {
	e := newTestEnv(t)
	h1 := e.k.SyscallHandler(22, 0, 0, 0)
	h2 := e.k.SyscallHandler(22, 0, 0, 0)
	if h1 == Failure || h2 == Failure || h1 == h2 {
		t.Errorf("pipe handles %#x, %#x are not distinct successes", h1, h2)
	}
}

func TestPipeSyscallExhaustion(t *testing.T) {
	e := newTestEnv(t)
	clock := ktime.NewManualClock(100)
	k := New(Args{
		Clock:      clock,
		Pipes:      pipe.NewRegistry(1),
		UserMemory: e.umem,
	})
	if got := k.SyscallHandler(22, 0, 0, 0); got == Failure {
		t.Fatalf("first pipe failed")
	}
	if got := k.SyscallHandler(22, 0, 0, 0); got != Failure {
		t.Errorf("pipe over capacity = %#x, want failure", got)
	}
}

func TestGetPID(t *testing.T) {
	e := newTestEnv(t)
	if got := e.k.SyscallHandler(39, 0, 0, 0); got != 0 {
		t.Errorf("getpid on idle = %d, want 0", got)
	}
	pid := e.k.CreateTask("worker", testEntry)
	e.scheduleUntil(t, pid)
	if got := e.k.SyscallHandler(39, 0, 0, 0); got != uint64(pid) {
		t.Errorf("getpid = %d, want %d", got, pid)
	}
}

func TestForkSyscallFromIdleFails(t *testing.T) {
	e := newTestEnv(t)
	if got := e.k.SyscallHandler(57, 0, 0, 0); got != Failure {
		t.Errorf("fork from the boot stack = %#x, want failure", got)
	}
}

func TestWait4BadStatusPointer(t *testing.T) {
	e := newTestEnv(t)
	pid := e.k.CreateTask("parent", testEntry)
	e.scheduleUntil(t, pid)
	p := e.k.Current()
	if got := e.k.SyscallHandler(61, 0, 0xffff_8000_0000_0000, 0); got != Failure {
		t.Errorf("wait4 with kernel status pointer = %#x, want failure", got)
	}
	if p.State() == StateWaiting {
		t.Errorf("rejected wait4 still blocked the caller")
	}
}

func TestForkExitWait4(t *testing.T) {
	e := newTestEnv(t)
	statusAddr := testUserBase + hostarch.PageSize

	initPID := e.k.CreateTask("init", testEntry)
	e.scheduleUntil(t, initPID)

	childRaw := e.k.SyscallHandler(57, 0, 0, 0)
	if childRaw == Failure {
		t.Fatalf("fork failed")
	}
	child := PID(childRaw)

	// Waiting before the child exits blocks the parent.
	if got := e.k.SyscallHandler(61, childRaw, uint64(statusAddr), 0); got != Failure {
		t.Fatalf("wait4 before exit = %#x, want block", got)
	}

	e.scheduleUntil(t, child)
	e.k.SyscallHandler(60, 7, 0, 0)

	e.scheduleUntil(t, initPID)
	got := e.k.SyscallHandler(61, childRaw, uint64(statusAddr), 0)
	if got != childRaw {
		t.Fatalf("wait4 after exit = %#x, want %d", got, childRaw)
	}
	var b [4]byte
	e.umem.CopyIn(statusAddr, b[:])
	if status := binary.LittleEndian.Uint32(b[:]); status != 7 {
		t.Errorf("collected status %d, want 7", status)
	}
	// The child is gone; waiting again for it blocks.
	if got := e.k.SyscallHandler(61, childRaw, uint64(statusAddr), 0); got != Failure {
		t.Errorf("second wait4 for reaped child = %#x, want block", got)
	}
}

func TestWait4AnyChild(t *testing.T) {
	e := newTestEnv(t)
	initPID := e.k.CreateTask("init", testEntry)
	e.scheduleUntil(t, initPID)
	childRaw := e.k.SyscallHandler(57, 0, 0, 0)
	if childRaw == Failure {
		t.Fatalf("fork failed")
	}
	e.scheduleUntil(t, PID(childRaw))
	e.k.SyscallHandler(60, 1, 0, 0)
	e.scheduleUntil(t, initPID)

	// pid -1, null status pointer: reap any child, discard the status.
	if got := e.k.SyscallHandler(61, ^uint64(0), 0, 0); got != childRaw {
		t.Errorf("wait4(-1) = %#x, want %d", got, childRaw)
	}
}

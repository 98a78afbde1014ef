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

// SyscallFn is a syscall handler. Handlers receive raw trap arguments and
// must validate any user pointer before touching it.
type SyscallFn func(k *Kernel, a1, a2, a3 uint64) uint64

// syscallTable maps syscall numbers to handlers. Numbers follow the Linux
// amd64 ABI for the calls this kernel implements.
var syscallTable = map[uintptr]SyscallFn{
	0:  sysRead,
	1:  sysWrite,
	2:  sysOpen,
	3:  sysClose,
	22: sysPipe,
	39: sysGetPID,
	57: sysFork,
	60: sysExit,
	61: sysWait4,
}

// SyscallHandler is the trap entry point and the sole sanctioned
// privilege-crossing channel: every trap routes through here. Unknown
// numbers are logged (rate limited) and fail without harming the kernel.
func (k *Kernel) SyscallHandler(num, a1, a2, a3 uint64) uint64 {
	fn, ok := syscallTable[uintptr(num)]
	if !ok {
		k.unknownLog.Warningf("unknown syscall: %d", num)
		return Failure
	}
	return fn(k, a1, a2, a3)
}

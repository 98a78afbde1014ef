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

// Package usermem provides access to user memory.
//
// The syscall dispatcher validates user addresses against the address-space
// layout first and only then copies through an IO; an IO therefore only
// reports whether the region is actually backed.
package usermem

import (
	"errors"

	"unios.dev/unios/pkg/hostarch"
)

// ErrOutOfRange is returned when an access falls outside the backed user
// region.
var ErrOutOfRange = errors.New("access out of range")

// IO provides access to the memory of a user address space.
type IO interface {
	// CopyOut copies len(src) bytes from src to user memory at addr and
	// returns the number of bytes copied.
	CopyOut(addr hostarch.Addr, src []byte) (int, error)

	// CopyIn copies len(dst) bytes from user memory at addr to dst and
	// returns the number of bytes copied.
	CopyIn(addr hostarch.Addr, dst []byte) (int, error)
}

// BytesIO implements IO over a byte slice standing in for the backed part of
// a user address space, starting at a fixed base address.
type BytesIO struct {
	base  hostarch.Addr
	bytes []byte
}

// NewBytesIO returns a BytesIO backing [base, base+size).
func NewBytesIO(base hostarch.Addr, size uint64) *BytesIO {
	return &BytesIO{base: base, bytes: make([]byte, size)}
}

// Base returns the first backed address.
func (b *BytesIO) Base() hostarch.Addr {
	return b.base
}

// Bytes returns the backing slice. Tests use it to seed and inspect user
// memory directly.
func (b *BytesIO) Bytes() []byte {
	return b.bytes
}

// CopyOut implements IO.CopyOut.
func (b *BytesIO) CopyOut(addr hostarch.Addr, src []byte) (int, error) {
	off, err := b.offset(addr, uint64(len(src)))
	if err != nil {
		return 0, err
	}
	return copy(b.bytes[off:off+uint64(len(src))], src), nil
}

// CopyIn implements IO.CopyIn.
func (b *BytesIO) CopyIn(addr hostarch.Addr, dst []byte) (int, error) {
	off, err := b.offset(addr, uint64(len(dst)))
	if err != nil {
		return 0, err
	}
	return copy(dst, b.bytes[off:off+uint64(len(dst))]), nil
}

func (b *BytesIO) offset(addr hostarch.Addr, length uint64) (uint64, error) {
	if addr < b.base {
		return 0, ErrOutOfRange
	}
	end, ok := addr.AddLength(length)
	if !ok || end > b.base+hostarch.Addr(len(b.bytes)) {
		return 0, ErrOutOfRange
	}
	return uint64(addr - b.base), nil
}

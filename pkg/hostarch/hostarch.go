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

// Package hostarch defines the address types and address-space layout
// constants of the simulated machine.
package hostarch

const (
	// PageShift is the binary log of the page size.
	PageShift = 12

	// PageSize is the size of a page and of a physical frame, in bytes.
	PageSize = 1 << PageShift

	// PageMask masks the offset within a page.
	PageMask = PageSize - 1
)

// UserspaceTop is the first address beyond user space. Canonical user
// addresses occupy the lower half; everything at or above this boundary
// belongs to the kernel and must never be reachable through a user-supplied
// pointer.
const UserspaceTop = Addr(0x0000800000000000)

// Addr is a virtual address.
type Addr uint64

// PhysAddr is a physical address.
type PhysAddr uint64

// RoundDown returns the address rounded down to the nearest page boundary.
func (v Addr) RoundDown() Addr {
	return v &^ Addr(PageMask)
}

// RoundUp returns the address rounded up to the nearest page boundary. ok is
// true iff rounding up did not wrap around.
func (v Addr) RoundUp() (addr Addr, ok bool) {
	addr = Addr(v + PageMask).RoundDown()
	ok = addr >= v
	return
}

// PageOffset returns the offset of v into its containing page.
func (v Addr) PageOffset() uint64 {
	return uint64(v & Addr(PageMask))
}

// IsPageAligned returns true if v.PageOffset() == 0.
func (v Addr) IsPageAligned() bool {
	return v.PageOffset() == 0
}

// AddLength returns v + length and whether that sum did not overflow.
func (v Addr) AddLength(length uint64) (end Addr, ok bool) {
	end = v + Addr(length)
	ok = end >= v
	return
}

// RoundDown returns the physical address rounded down to the nearest frame
// boundary.
func (p PhysAddr) RoundDown() PhysAddr {
	return p &^ PhysAddr(PageMask)
}

// IsFrameAligned returns true if p lies on a frame boundary.
func (p PhysAddr) IsFrameAligned() bool {
	return p&PhysAddr(PageMask) == 0
}

// DirectMap is the fixed additive offset that maps any physical address to a
// kernel-dereferenceable virtual address. It is established once at boot by
// the bootloader; the zero value means no direct map was supplied and
// physical memory cannot be reached from kernel code.
type DirectMap uint64

// Virtual returns the kernel virtual address for the physical address p.
func (d DirectMap) Virtual(p PhysAddr) Addr {
	return Addr(uint64(p) + uint64(d))
}

// Physical returns the physical address for a direct-mapped kernel virtual
// address v.
func (d DirectMap) Physical(v Addr) PhysAddr {
	return PhysAddr(uint64(v) - uint64(d))
}

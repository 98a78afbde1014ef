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

// Package memory provides the simulated physical memory of the machine and
// the frame allocator that hands out 4KiB frames from it.
package memory

import (
	"fmt"
	"math/bits"
	"sync"

	"unios.dev/unios/pkg/hostarch"
)

// Physical is a contiguous region of simulated physical memory starting at a
// fixed base address, together with a frame allocator over it.
//
// Kernel code never indexes the backing slab directly; it goes through
// Slice, which performs the direct-map dereference for a physical address.
type Physical struct {
	base hostarch.PhysAddr
	slab []byte

	// mu protects bitmap and free.
	mu sync.Mutex

	// bitmap has one set bit per allocated frame.
	bitmap []uint64

	// free is the number of unallocated frames.
	free uint64
}

// New creates a Physical region of the given size at the given base address.
// Both must be frame-aligned.
func New(base hostarch.PhysAddr, size uint64) (*Physical, error) {
	if !base.IsFrameAligned() {
		return nil, fmt.Errorf("base address %#x is not frame-aligned", base)
	}
	if size == 0 || size%hostarch.PageSize != 0 {
		return nil, fmt.Errorf("size %#x is not a positive multiple of the frame size", size)
	}
	frames := size / hostarch.PageSize
	return &Physical{
		base:   base,
		slab:   make([]byte, size),
		bitmap: make([]uint64, (frames+63)/64),
		free:   frames,
	}, nil
}

// TotalFrames returns the number of frames in the region.
func (p *Physical) TotalFrames() uint64 {
	return uint64(len(p.slab)) / hostarch.PageSize
}

// FreeFrames returns the number of unallocated frames.
func (p *Physical) FreeFrames() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.free
}

// AllocFrame allocates one zeroed frame and returns its physical address.
// ok is false when no frame is available; exhaustion is never fatal.
func (p *Physical) AllocFrame() (addr hostarch.PhysAddr, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.free == 0 {
		return 0, false
	}
	for i, word := range p.bitmap {
		if word == ^uint64(0) {
			continue
		}
		bit := uint64(bits.TrailingZeros64(^word))
		frame := uint64(i)*64 + bit
		if frame >= p.TotalFrames() {
			break
		}
		p.bitmap[i] |= 1 << bit
		p.free--
		off := frame * hostarch.PageSize
		clear(p.slab[off : off+hostarch.PageSize])
		return p.base + hostarch.PhysAddr(off), true
	}
	return 0, false
}

// FreeFrame returns a frame to the allocator. Freeing an address outside the
// region or an unallocated frame panics; both indicate kernel bugs, not
// hostile input.
func (p *Physical) FreeFrame(addr hostarch.PhysAddr) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !addr.IsFrameAligned() || !p.contains(addr, hostarch.PageSize) {
		panic(fmt.Sprintf("FreeFrame(%#x): not a frame in this region", addr))
	}
	frame := uint64(addr-p.base) / hostarch.PageSize
	word, bit := frame/64, frame%64
	if p.bitmap[word]&(1<<bit) == 0 {
		panic(fmt.Sprintf("FreeFrame(%#x): frame is not allocated", addr))
	}
	p.bitmap[word] &^= 1 << bit
	p.free++
}

// Slice returns the backing bytes for [addr, addr+length). This is the
// direct-map dereference: the caller must hold a physical address previously
// handed out by this region.
func (p *Physical) Slice(addr hostarch.PhysAddr, length uint64) ([]byte, error) {
	if !p.contains(addr, length) {
		return nil, fmt.Errorf("physical range [%#x, %#x) outside memory", addr, uint64(addr)+length)
	}
	off := uint64(addr - p.base)
	return p.slab[off : off+length : off+length], nil
}

// Contains returns whether [addr, addr+length) lies within the region.
func (p *Physical) Contains(addr hostarch.PhysAddr, length uint64) bool {
	return p.contains(addr, length)
}

func (p *Physical) contains(addr hostarch.PhysAddr, length uint64) bool {
	if addr < p.base {
		return false
	}
	end := uint64(addr) + length
	if end < uint64(addr) {
		return false
	}
	return end <= uint64(p.base)+uint64(len(p.slab))
}

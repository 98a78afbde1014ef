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

package pagetables

import (
	"fmt"

	"unios.dev/unios/pkg/hostarch"
	"unios.dev/unios/pkg/memory"
)

// Allocator provides page-table frames and translates their physical
// addresses back to dereferenceable tables.
type Allocator interface {
	// NewPTEs allocates one frame for a table, zeroes it and returns its
	// physical address and contents. ok is false on exhaustion.
	NewPTEs() (phys hostarch.PhysAddr, ptes *PTEs, ok bool)

	// LookupPTEs returns the table at the given physical address, which
	// must have been returned by NewPTEs (or be the boot-time root).
	LookupPTEs(phys hostarch.PhysAddr) *PTEs
}

// frameAllocator backs tables with frames from a Physical region, reached
// through the direct map.
type frameAllocator struct {
	mem       *memory.Physical
	directMap hostarch.DirectMap
}

// NewFrameAllocator returns an Allocator over the given region. The direct
// map must be non-zero: without it, physical frames are unreachable from
// kernel code and no table can be dereferenced.
func NewFrameAllocator(mem *memory.Physical, directMap hostarch.DirectMap) (Allocator, error) {
	if directMap == 0 {
		return nil, fmt.Errorf("no direct map supplied")
	}
	return &frameAllocator{mem: mem, directMap: directMap}, nil
}

// NewPTEs implements Allocator.NewPTEs.
func (a *frameAllocator) NewPTEs() (hostarch.PhysAddr, *PTEs, bool) {
	phys, ok := a.mem.AllocFrame()
	if !ok {
		return 0, nil, false
	}
	ptes := a.LookupPTEs(phys)
	// The frame comes back zeroed, but the invariant that no table is ever
	// linked half-initialized belongs here, not in the frame allocator.
	for i := range ptes {
		ptes[i].Clear()
	}
	return phys, ptes, true
}

// LookupPTEs implements Allocator.LookupPTEs.
func (a *frameAllocator) LookupPTEs(phys hostarch.PhysAddr) *PTEs {
	b, err := a.mem.Slice(phys, hostarch.PageSize)
	if err != nil {
		panic(fmt.Sprintf("LookupPTEs(%#x): %v", phys, err))
	}
	return ptesForSlice(b)
}

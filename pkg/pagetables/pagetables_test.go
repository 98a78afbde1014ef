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
	"testing"

	"unios.dev/unios/pkg/hostarch"
	"unios.dev/unios/pkg/memory"
)

const (
	testPhysBase  = hostarch.PhysAddr(0x100000)
	testDirectMap = hostarch.DirectMap(0xffff_8000_0000_0000)
)

func newTestPageTables(t *testing.T, frames uint64) (*PageTables, *memory.Physical) {
	t.Helper()
	mem, err := memory.New(testPhysBase, frames*hostarch.PageSize)
	if err != nil {
		t.Fatalf("memory.New: %v", err)
	}
	alloc, err := NewFrameAllocator(mem, testDirectMap)
	if err != nil {
		t.Fatalf("NewFrameAllocator: %v", err)
	}
	pt, ok := New(alloc)
	if !ok {
		t.Fatalf("New failed with %d frames free", mem.FreeFrames())
	}
	return pt, mem
}

func TestMapLookup(t *testing.T) {
	pt, mem := newTestPageTables(t, 64)
	frame, ok := mem.AllocFrame()
	if !ok {
		t.Fatalf("AllocFrame failed")
	}

	virt := hostarch.Addr(0x400000)
	opts := MapOpts{Writable: true, User: true}
	if !pt.Map(virt, frame, opts) {
		t.Fatalf("Map(%#x, %#x) failed", virt, frame)
	}

	phys, gotOpts, ok := pt.Lookup(virt)
	if !ok {
		t.Fatalf("Lookup(%#x) found nothing after Map", virt)
	}
	if phys != frame {
		t.Errorf("Lookup(%#x) = %#x, want %#x", virt, phys, frame)
	}
	if gotOpts != opts {
		t.Errorf("Lookup(%#x) opts = %+v, want %+v", virt, gotOpts, opts)
	}

	// Offsets within the page land on the same leaf.
	if phys, _, ok := pt.Lookup(virt + 0x123); !ok || phys != frame {
		t.Errorf("Lookup(%#x) = (%#x, %t), want the same frame", virt+0x123, phys, ok)
	}
}

func TestLookupReadOnlyKernelMapping(t *testing.T) {
	pt, mem := newTestPageTables(t, 64)
	frame, _ := mem.AllocFrame()
	virt := hostarch.Addr(0x600000)
	if !pt.Map(virt, frame, MapOpts{}) {
		t.Fatalf("Map failed")
	}
	_, opts, ok := pt.Lookup(virt)
	if !ok {
		t.Fatalf("Lookup found nothing")
	}
	if opts.Writable || opts.User {
		t.Errorf("read-only kernel mapping came back %+v", opts)
	}
}

func TestLookupUnmappedNeighbors(t *testing.T) {
	pt, mem := newTestPageTables(t, 64)
	frame, _ := mem.AllocFrame()
	virt := hostarch.Addr(0x400000)
	if !pt.Map(virt, frame, MapOpts{Writable: true}) {
		t.Fatalf("Map failed")
	}
	// Fresh intermediate tables must come up zeroed: every sibling of the
	// one mapped page is absent.
	for _, v := range []hostarch.Addr{
		virt + hostarch.PageSize,
		virt - hostarch.PageSize,
		virt + (1 << pmdShift),
		virt + (1 << pudShift),
		virt + (1 << pgdShift),
	} {
		if _, _, ok := pt.Lookup(v); ok {
			t.Errorf("Lookup(%#x) found a mapping that was never made", v)
		}
	}
}

func TestMapUnalignedPhysRoundsDown(t *testing.T) {
	pt, mem := newTestPageTables(t, 64)
	frame, _ := mem.AllocFrame()
	virt := hostarch.Addr(0x400000)
	if !pt.Map(virt, frame+0x123, MapOpts{}) {
		t.Fatalf("Map failed")
	}
	phys, _, ok := pt.Lookup(virt)
	if !ok || phys != frame {
		t.Errorf("Lookup = (%#x, %t), want (%#x, true)", phys, ok, frame)
	}
}

func TestTranslateAlwaysUnmapped(t *testing.T) {
	pt, mem := newTestPageTables(t, 64)
	frame, _ := mem.AllocFrame()
	virt := hostarch.Addr(0x400000)
	if !pt.Map(virt, frame, MapOpts{Writable: true}) {
		t.Fatalf("Map failed")
	}
	// Translate does not walk yet; it reports unmapped even for a mapped
	// address. Lookup is the honest walker.
	if phys, ok := pt.Translate(virt); ok {
		t.Errorf("Translate(%#x) = (%#x, true), want unmapped", virt, phys)
	}
}

func TestMapAllocFailureAborts(t *testing.T) {
	// Four frames: the root plus the three intermediates of the first Map.
	pt, mem := newTestPageTables(t, 4)
	if !pt.Map(0x400000, testPhysBase, MapOpts{Writable: true}) {
		t.Fatalf("first Map failed with %d frames free", mem.FreeFrames())
	}
	if got := mem.FreeFrames(); got != 0 {
		t.Fatalf("FreeFrames = %d after first Map, want 0", got)
	}
	// A distant address needs a fresh subtree; with no frames left the map
	// must fail, not panic.
	if pt.Map(0x40000000000, testPhysBase, MapOpts{Writable: true}) {
		t.Errorf("Map succeeded with no frames available")
	}
	// The established mapping is untouched.
	if _, _, ok := pt.Lookup(0x400000); !ok {
		t.Errorf("earlier mapping lost after failed Map")
	}
}

func TestMapPartialBuildKept(t *testing.T) {
	// Five frames: root, three intermediates, one spare. The second Map
	// burns the spare on a new pud and then fails at the pmd; the built
	// intermediate stays linked for the next attempt.
	pt, mem := newTestPageTables(t, 5)
	if !pt.Map(0x400000, testPhysBase, MapOpts{}) {
		t.Fatalf("first Map failed")
	}
	distant := hostarch.Addr(0x40000000000) // different pgd index
	if pt.Map(distant, testPhysBase, MapOpts{}) {
		t.Errorf("second Map succeeded with one frame free")
	}
	if got := mem.FreeFrames(); got != 0 {
		t.Errorf("FreeFrames = %d, want 0 (intermediate kept, not rolled back)", got)
	}
	if !pt.root[int(distant>>pgdShift)&indexMask].Valid() {
		t.Errorf("partially built subtree was rolled back")
	}
}

func TestInvalidations(t *testing.T) {
	pt, mem := newTestPageTables(t, 64)
	frame, _ := mem.AllocFrame()
	if got := pt.Invalidations(); got != 0 {
		t.Fatalf("fresh tables report %d invalidations", got)
	}
	pt.Map(0x400000, frame, MapOpts{})
	pt.Map(0x401000, frame, MapOpts{})
	if got := pt.Invalidations(); got != 2 {
		t.Errorf("Invalidations = %d after two maps, want 2", got)
	}
}

func TestNewFromRootSharesTree(t *testing.T) {
	pt, mem := newTestPageTables(t, 64)
	frame, _ := mem.AllocFrame()
	if !pt.Map(0x400000, frame, MapOpts{User: true}) {
		t.Fatalf("Map failed")
	}
	pt2 := NewFromRoot(pt.Allocator, pt.Root())
	if pt2.Root() != pt.Root() {
		t.Fatalf("NewFromRoot changed the root: %#x vs %#x", pt2.Root(), pt.Root())
	}
	phys, _, ok := pt2.Lookup(0x400000)
	if !ok || phys != frame {
		t.Errorf("Lookup through re-adopted root = (%#x, %t), want (%#x, true)", phys, ok, frame)
	}
}

func TestNewFrameAllocatorRequiresDirectMap(t *testing.T) {
	mem, err := memory.New(testPhysBase, 4*hostarch.PageSize)
	if err != nil {
		t.Fatalf("memory.New: %v", err)
	}
	if _, err := NewFrameAllocator(mem, 0); err == nil {
		t.Errorf("NewFrameAllocator with zero direct map succeeded")
	}
}

func TestNewFailsWithoutFrames(t *testing.T) {
	mem, err := memory.New(testPhysBase, hostarch.PageSize)
	if err != nil {
		t.Fatalf("memory.New: %v", err)
	}
	alloc, err := NewFrameAllocator(mem, testDirectMap)
	if err != nil {
		t.Fatalf("NewFrameAllocator: %v", err)
	}
	if _, ok := New(alloc); !ok {
		t.Fatalf("New failed with one frame free")
	}
	if _, ok := New(alloc); ok {
		t.Errorf("New succeeded with no frames free")
	}
}

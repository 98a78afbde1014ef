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

// Package pagetables provides the virtual memory manager: a four-level
// radix tree of 512-entry tables mapping 4KiB pages.
//
// A PageTables instance is an explicit address-space object. The kernel owns
// one default instance for kernel-only mappings; user address spaces hold
// their own (though after fork a child shares its parent's root, a documented
// simplification).
package pagetables

import (
	"unios.dev/unios/pkg/hostarch"
)

// Virtual addresses split into four 9-bit indices, one per level, above the
// 12-bit page offset.
const (
	entriesPerTable = 512
	indexMask       = entriesPerTable - 1

	pteShift = 12
	pmdShift = 21
	pudShift = 30
	pgdShift = 39
)

// PageTables is an address space: the root of a four-level page-table tree.
type PageTables struct {
	// Allocator provides page-table frames and the direct-map dereference
	// for them.
	Allocator Allocator

	root         *PTEs
	rootPhysical hostarch.PhysAddr

	// invalidations counts single-address TLB invalidations issued by Map.
	// The simulated machine has no TLB; the counter stands in for invlpg.
	invalidations uint64
}

// New returns an address space with a freshly allocated, zeroed root table.
// ok is false if no frame was available for the root.
func New(a Allocator) (pt *PageTables, ok bool) {
	rootPhys, root, ok := a.NewPTEs()
	if !ok {
		return nil, false
	}
	return &PageTables{
		Allocator:    a,
		root:         root,
		rootPhysical: rootPhys,
	}, true
}

// NewFromRoot returns an address space whose root is the already-active
// table at the given physical address, as captured from the CPU's control
// register at boot.
func NewFromRoot(a Allocator, rootPhys hostarch.PhysAddr) *PageTables {
	return &PageTables{
		Allocator:    a,
		root:         a.LookupPTEs(rootPhys),
		rootPhysical: rootPhys,
	}
}

// Root returns the physical address of the root table, suitable for loading
// into the CPU's control register.
func (p *PageTables) Root() hostarch.PhysAddr {
	return p.rootPhysical
}

// next returns the table linked from entry, allocating, zeroing and linking
// a new one if the entry is empty. A new intermediate table is linked
// present, writable and user-accessible; the leaf flags alone decide access.
func (p *PageTables) next(entry *PTE) (*PTEs, bool) {
	if entry.Valid() {
		return p.Allocator.LookupPTEs(entry.Address()), true
	}
	phys, ptes, ok := p.Allocator.NewPTEs()
	if !ok {
		return nil, false
	}
	entry.setPageTable(phys)
	return ptes, true
}

// Map establishes a translation from the page containing virt to the frame
// at phys with the given options. Intermediate tables are created lazily.
//
// A failed frame allocation aborts the map and returns false; intermediate
// tables already built are kept, not rolled back. Wasteful but harmless:
// they are empty and will be reused by the next Map in the same region.
func (p *PageTables) Map(virt hostarch.Addr, phys hostarch.PhysAddr, opts MapOpts) bool {
	pud, ok := p.next(&p.root[int(virt>>pgdShift)&indexMask])
	if !ok {
		return false
	}
	pmd, ok := p.next(&pud[int(virt>>pudShift)&indexMask])
	if !ok {
		return false
	}
	pte, ok := p.next(&pmd[int(virt>>pmdShift)&indexMask])
	if !ok {
		return false
	}
	pte[int(virt>>pteShift)&indexMask].Set(phys.RoundDown(), opts)
	p.invalidate(virt)
	return true
}

// Translate returns the physical address mapped at virt.
//
// TODO: implement the downward walk. Translate currently always reports the
// address as unmapped; nothing in the kernel depends on the reverse lookup
// yet. Lookup below walks honestly and is what the tests verify Map against.
func (p *PageTables) Translate(virt hostarch.Addr) (phys hostarch.PhysAddr, ok bool) {
	return 0, false
}

// Lookup walks the four levels for virt and returns the mapped frame and
// leaf options. ok is false if any level is missing.
func (p *PageTables) Lookup(virt hostarch.Addr) (phys hostarch.PhysAddr, opts MapOpts, ok bool) {
	table := p.root
	for _, shift := range [...]uint{pgdShift, pudShift, pmdShift} {
		entry := &table[int(virt>>shift)&indexMask]
		if !entry.Valid() {
			return 0, MapOpts{}, false
		}
		table = p.Allocator.LookupPTEs(entry.Address())
	}
	entry := &table[int(virt>>pteShift)&indexMask]
	if !entry.Valid() {
		return 0, MapOpts{}, false
	}
	return entry.Address(), entry.Opts(), true
}

// invalidate records a single stale-translation shootdown for virt.
func (p *PageTables) invalidate(virt hostarch.Addr) {
	p.invalidations++
}

// Invalidations returns the number of single-address invalidations issued.
func (p *PageTables) Invalidations() uint64 {
	return p.invalidations
}

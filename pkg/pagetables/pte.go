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
	"unios.dev/unios/pkg/hostarch"
)

// Entry flag bits, matching the x86-64 layout.
const (
	present  = 1 << 0
	writable = 1 << 1
	user     = 1 << 2

	addressMask = 0x000ffffffffff000
)

// MapOpts are the access options for a leaf mapping. A present leaf is
// always readable.
type MapOpts struct {
	// Writable permits stores through the mapping.
	Writable bool

	// User permits access from user mode.
	User bool
}

// PTE is a page-table entry: either empty, or the owner of exactly one frame
// (a next-level table for the upper three levels, a mapped page at a leaf).
type PTE uint64

// PTEs is one level of the tree: a page-sized array of 512 entries.
type PTEs [entriesPerTable]PTE

// Valid returns whether the entry is present.
func (p *PTE) Valid() bool {
	return *p&present != 0
}

// Address returns the frame address held by the entry.
func (p *PTE) Address() hostarch.PhysAddr {
	return hostarch.PhysAddr(*p & addressMask)
}

// Opts returns the access options of the entry.
func (p *PTE) Opts() MapOpts {
	return MapOpts{
		Writable: *p&writable != 0,
		User:     *p&user != 0,
	}
}

// Set makes the entry a leaf mapping to the frame at addr with the given
// options.
func (p *PTE) Set(addr hostarch.PhysAddr, opts MapOpts) {
	v := PTE(addr&addressMask) | present
	if opts.Writable {
		v |= writable
	}
	if opts.User {
		v |= user
	}
	*p = v
}

// setPageTable links the entry to a next-level table at addr. Intermediate
// links carry the widest flags; leaves restrict.
func (p *PTE) setPageTable(addr hostarch.PhysAddr) {
	*p = PTE(addr&addressMask) | present | writable | user
}

// Clear empties the entry.
func (p *PTE) Clear() {
	*p = 0
}

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
	"errors"
	"sync"

	"unios.dev/unios/pkg/unifs"
)

// Well-known descriptors.
const (
	StdinFD  = 0
	StdoutFD = 1
	StderrFD = 2
)

const (
	// MaxOpenFiles is the size of the descriptor table.
	MaxOpenFiles = 16

	// firstUserFD is the first allocatable descriptor; 0-2 are reserved
	// for the standard streams.
	firstUserFD = 3
)

var (
	// ErrBadFD indicates an out-of-range, reserved or unused descriptor.
	ErrBadFD = errors.New("kernel: bad file descriptor")

	// ErrFDExhausted indicates the descriptor table is full.
	ErrFDExhausted = errors.New("kernel: descriptor table full")
)

// descriptor is one slot: a borrowed immutable file and a read cursor.
type descriptor struct {
	inUse bool
	file  unifs.File
	pos   uint64
}

// FDTable is the descriptor table.
//
// One global instance is shared by every process rather than one table per
// process. That scoping is deliberate; see DESIGN.md.
type FDTable struct {
	mu          sync.Mutex
	descriptors [MaxOpenFiles]descriptor
}

// NewFDTable returns a table with the standard streams reserved.
func NewFDTable() *FDTable {
	t := &FDTable{}
	for fd := 0; fd < firstUserFD; fd++ {
		t.descriptors[fd].inUse = true
	}
	return t
}

// Open allocates the lowest free descriptor at or above 3 for file.
func (t *FDTable) Open(file unifs.File) (int32, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for fd := firstUserFD; fd < MaxOpenFiles; fd++ {
		if !t.descriptors[fd].inUse {
			t.descriptors[fd] = descriptor{inUse: true, file: file}
			return int32(fd), nil
		}
	}
	return -1, ErrFDExhausted
}

// Close releases a descriptor. Reserved, out-of-range and unused
// descriptors fail.
func (t *FDTable) Close(fd int32) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if fd < firstUserFD || fd >= MaxOpenFiles || !t.descriptors[fd].inUse {
		return ErrBadFD
	}
	t.descriptors[fd] = descriptor{}
	return nil
}

// Read returns up to max bytes from the descriptor's cursor position and
// advances the cursor. At end of file it returns an empty slice. The bytes
// are borrowed from the file's immutable data.
func (t *FDTable) Read(fd int32, max uint64) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if fd < 0 || fd >= MaxOpenFiles || !t.descriptors[fd].inUse {
		return nil, ErrBadFD
	}
	d := &t.descriptors[fd]
	remaining := d.file.Size() - d.pos
	n := max
	if n > remaining {
		n = remaining
	}
	data := d.file.Data[d.pos : d.pos+n]
	d.pos += n
	return data, nil
}

// InUse returns whether fd names an allocated slot.
func (t *FDTable) InUse(fd int32) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return fd >= 0 && fd < MaxOpenFiles && t.descriptors[fd].inUse
}

// IsFileOpen returns whether some descriptor currently references the named
// file. The filesystem uses it to refuse deleting open files.
func (t *FDTable) IsFileOpen(name string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for fd := firstUserFD; fd < MaxOpenFiles; fd++ {
		d := &t.descriptors[fd]
		if d.inUse && d.file.Name == name {
			return true
		}
	}
	return false
}

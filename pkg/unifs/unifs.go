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

// Package unifs implements uniFS, the flat read-only filesystem the kernel
// serves file syscalls from.
//
// Image layout:
//
//	Header:  8-byte magic "UNIFS v1", uint64 file count
//	Entries: 64-byte NUL-padded name, uint64 data offset, uint64 size
//	Data:    raw file contents, concatenated
//
// All integers are little-endian. Offsets are from the start of the image.
package unifs

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/google/btree"
)

// Magic identifies a uniFS image.
const Magic = "UNIFS v1"

const (
	headerSize    = 16
	entryNameSize = 64
	entrySize     = entryNameSize + 16

	// MaxNameLen is the longest representable file name; one byte of the
	// name field is reserved for the terminator.
	MaxNameLen = entryNameSize - 1
)

var (
	// ErrBadImage indicates a truncated or corrupt image.
	ErrBadImage = errors.New("unifs: bad image")

	// ErrNotFound indicates the named file does not exist.
	ErrNotFound = errors.New("unifs: file not found")

	// ErrNameTooLong indicates a name that does not fit an entry.
	ErrNameTooLong = errors.New("unifs: name too long")
)

// File is an open file: a name and an immutable view of the image's bytes.
// The data outlives any descriptor referencing it because the image itself
// is never unmounted while the kernel runs.
type File struct {
	// Name is the file's name within the image.
	Name string

	// Data is the file's contents, borrowed from the image. Callers must
	// not modify it.
	Data []byte
}

// Size returns the file size in bytes.
func (f File) Size() uint64 {
	return uint64(len(f.Data))
}

type entry struct {
	name   string
	offset uint64
	size   uint64
}

func entryLess(a, b entry) bool {
	return a.name < b.name
}

// Image is a mounted uniFS image.
type Image struct {
	raw     []byte
	entries []entry
	index   *btree.BTreeG[entry]
}

// Mount parses raw as a uniFS image. The image bytes are borrowed, not
// copied; they must remain live and unmodified while the Image is in use.
func Mount(raw []byte) (*Image, error) {
	if len(raw) < headerSize {
		return nil, fmt.Errorf("%w: %d bytes is smaller than the header", ErrBadImage, len(raw))
	}
	if !bytes.Equal(raw[:8], []byte(Magic)) {
		return nil, fmt.Errorf("%w: bad magic %q", ErrBadImage, raw[:8])
	}
	count := binary.LittleEndian.Uint64(raw[8:16])
	// Compare counts, not byte sizes: a hostile count must not overflow the
	// bound before it is checked.
	if count > (uint64(len(raw))-headerSize)/entrySize {
		return nil, fmt.Errorf("%w: %d entries do not fit in %d bytes", ErrBadImage, count, len(raw))
	}

	img := &Image{
		raw:     raw,
		entries: make([]entry, 0, count),
		index:   btree.NewG(8, entryLess),
	}
	for i := uint64(0); i < count; i++ {
		off := headerSize + i*entrySize
		e := parseEntry(raw[off : off+entrySize])
		if e.offset+e.size < e.offset || e.offset+e.size > uint64(len(raw)) {
			return nil, fmt.Errorf("%w: file %q spans [%d, %d) beyond image end", ErrBadImage, e.name, e.offset, e.offset+e.size)
		}
		img.entries = append(img.entries, e)
		img.index.ReplaceOrInsert(e)
	}
	return img, nil
}

func parseEntry(b []byte) entry {
	name := b[:entryNameSize]
	if i := bytes.IndexByte(name, 0); i >= 0 {
		name = name[:i]
	}
	return entry{
		name:   string(name),
		offset: binary.LittleEndian.Uint64(b[entryNameSize : entryNameSize+8]),
		size:   binary.LittleEndian.Uint64(b[entryNameSize+8 : entryNameSize+16]),
	}
}

// Open returns the named file.
func (img *Image) Open(name string) (File, error) {
	e, ok := img.index.Get(entry{name: name})
	if !ok {
		return File{}, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return File{
		Name: e.name,
		Data: img.raw[e.offset : e.offset+e.size : e.offset+e.size],
	}, nil
}

// Exists returns whether the named file exists.
func (img *Image) Exists(name string) bool {
	_, ok := img.index.Get(entry{name: name})
	return ok
}

// FileCount returns the number of files in the image.
func (img *Image) FileCount() uint64 {
	return uint64(len(img.entries))
}

// Names returns all file names in lexical order.
func (img *Image) Names() []string {
	names := make([]string, 0, len(img.entries))
	img.index.Ascend(func(e entry) bool {
		names = append(names, e.name)
		return true
	})
	return names
}

// SizeOf returns the size of the named file, or 0 if it does not exist.
func (img *Image) SizeOf(name string) uint64 {
	e, ok := img.index.Get(entry{name: name})
	if !ok {
		return 0
	}
	return e.size
}

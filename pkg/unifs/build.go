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

package unifs

import (
	"encoding/binary"
	"fmt"
	"sort"
)

// Build serializes files into a uniFS image. Entries are written in lexical
// name order so identical inputs produce identical images.
func Build(files map[string][]byte) ([]byte, error) {
	names := make([]string, 0, len(files))
	for name := range files {
		if len(name) == 0 {
			return nil, fmt.Errorf("unifs: empty file name")
		}
		if len(name) > MaxNameLen {
			return nil, fmt.Errorf("%w: %q", ErrNameTooLong, name)
		}
		names = append(names, name)
	}
	sort.Strings(names)

	size := uint64(headerSize) + uint64(len(names))*entrySize
	dataOff := size
	for _, name := range names {
		size += uint64(len(files[name]))
	}

	img := make([]byte, 0, size)
	img = append(img, Magic...)
	img = binary.LittleEndian.AppendUint64(img, uint64(len(names)))

	off := dataOff
	for _, name := range names {
		var nameField [entryNameSize]byte
		copy(nameField[:], name)
		img = append(img, nameField[:]...)
		img = binary.LittleEndian.AppendUint64(img, off)
		img = binary.LittleEndian.AppendUint64(img, uint64(len(files[name])))
		off += uint64(len(files[name]))
	}
	for _, name := range names {
		img = append(img, files[name]...)
	}
	return img, nil
}

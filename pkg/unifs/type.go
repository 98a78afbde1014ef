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
	"bytes"
)

// FileType is a coarse content classification, sniffed from the data.
type FileType int

const (
	// TypeUnknown is an absent file.
	TypeUnknown FileType = iota

	// TypeText is printable text.
	TypeText

	// TypeBinary is anything that is neither text nor an ELF object.
	TypeBinary

	// TypeELF is an ELF object.
	TypeELF
)

// String implements fmt.Stringer.String.
func (t FileType) String() string {
	switch t {
	case TypeText:
		return "text"
	case TypeBinary:
		return "binary"
	case TypeELF:
		return "elf"
	default:
		return "unknown"
	}
}

var elfMagic = []byte{0x7f, 'E', 'L', 'F'}

// TypeOf sniffs the type of the named file.
func (img *Image) TypeOf(name string) FileType {
	f, err := img.Open(name)
	if err != nil {
		return TypeUnknown
	}
	if len(f.Data) >= len(elfMagic) && bytes.Equal(f.Data[:len(elfMagic)], elfMagic) {
		return TypeELF
	}
	if isTextContent(f.Data) {
		return TypeText
	}
	return TypeBinary
}

// isTextContent checks the first 256 bytes for anything non-printable.
func isTextContent(data []byte) bool {
	check := data
	if len(check) > 256 {
		check = check[:256]
	}
	for _, c := range check {
		if c < 32 && c != '\n' && c != '\r' && c != '\t' {
			return false
		}
		if c > 126 && c < 160 {
			return false
		}
	}
	return true
}

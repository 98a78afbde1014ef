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

package usermem

import (
	"bytes"
	"errors"
	"testing"

	"unios.dev/unios/pkg/hostarch"
)

func TestBytesIORoundTrip(t *testing.T) {
	b := NewBytesIO(0x400000, 0x1000)
	src := []byte("hello world")
	n, err := b.CopyOut(0x400100, src)
	if err != nil || n != len(src) {
		t.Fatalf("CopyOut = (%d, %v), want (%d, nil)", n, err, len(src))
	}
	dst := make([]byte, len(src))
	n, err = b.CopyIn(0x400100, dst)
	if err != nil || n != len(src) {
		t.Fatalf("CopyIn = (%d, %v), want (%d, nil)", n, err, len(src))
	}
	if !bytes.Equal(dst, src) {
		t.Errorf("CopyIn read %q, want %q", dst, src)
	}
}

func TestBytesIOOutOfRange(t *testing.T) {
	b := NewBytesIO(0x400000, 0x1000)
	buf := make([]byte, 16)
	for _, tc := range []struct {
		name string
		addr hostarch.Addr
	}{
		{"below base", 0x3fff00},
		{"past end", 0x400ff8},
		{"far past end", 0x500000},
		{"wrapping", ^hostarch.Addr(0) - 4},
	} {
		if _, err := b.CopyIn(tc.addr, buf); !errors.Is(err, ErrOutOfRange) {
			t.Errorf("CopyIn(%s) = %v, want ErrOutOfRange", tc.name, err)
		}
		if _, err := b.CopyOut(tc.addr, buf); !errors.Is(err, ErrOutOfRange) {
			t.Errorf("CopyOut(%s) = %v, want ErrOutOfRange", tc.name, err)
		}
	}
}

func TestBytesIOWholeRegion(t *testing.T) {
	b := NewBytesIO(0x400000, 64)
	buf := make([]byte, 64)
	if _, err := b.CopyIn(0x400000, buf); err != nil {
		t.Errorf("CopyIn of exact region failed: %v", err)
	}
	if _, err := b.CopyIn(0x400000, make([]byte, 65)); err == nil {
		t.Errorf("CopyIn one byte past the region succeeded")
	}
}

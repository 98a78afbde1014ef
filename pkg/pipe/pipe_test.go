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

package pipe

import (
	"bytes"
	"errors"
	"testing"
)

func TestPipeReadWrite(t *testing.T) {
	p := &Pipe{size: DefaultSize}
	msg := []byte("ping")
	n, err := p.Write(msg)
	if err != nil || n != len(msg) {
		t.Fatalf("Write = (%d, %v), want (%d, nil)", n, err, len(msg))
	}
	buf := make([]byte, 16)
	n, err = p.Read(buf)
	if err != nil || n != len(msg) {
		t.Fatalf("Read = (%d, %v), want (%d, nil)", n, err, len(msg))
	}
	if !bytes.Equal(buf[:n], msg) {
		t.Errorf("Read %q, want %q", buf[:n], msg)
	}
}

func TestPipeEmptyRead(t *testing.T) {
	p := &Pipe{size: DefaultSize}
	if _, err := p.Read(make([]byte, 1)); !errors.Is(err, ErrWouldBlock) {
		t.Errorf("Read from empty pipe = %v, want ErrWouldBlock", err)
	}
}

func TestPipeFullWrite(t *testing.T) {
	p := &Pipe{size: 4}
	n, err := p.Write([]byte("abcdef"))
	if err != nil || n != 4 {
		t.Fatalf("Write to small pipe = (%d, %v), want (4, nil)", n, err)
	}
	if _, err := p.Write([]byte("x")); !errors.Is(err, ErrWouldBlock) {
		t.Errorf("Write to full pipe = %v, want ErrWouldBlock", err)
	}
	buf := make([]byte, 8)
	n, err = p.Read(buf)
	if err != nil || n != 4 {
		t.Fatalf("Read = (%d, %v), want (4, nil)", n, err)
	}
	if !bytes.Equal(buf[:n], []byte("abcd")) {
		t.Errorf("Read %q, want %q", buf[:n], "abcd")
	}
}

func TestRegistryHandles(t *testing.T) {
	r := NewRegistry(2)
	h1, err := r.NewPipe()
	if err != nil {
		t.Fatalf("NewPipe: %v", err)
	}
	h2, err := r.NewPipe()
	if err != nil {
		t.Fatalf("NewPipe: %v", err)
	}
	if h1 == 0 || h2 == 0 || h1 == h2 {
		t.Errorf("handles %d, %d are not distinct and non-zero", h1, h2)
	}
	if _, err := r.NewPipe(); !errors.Is(err, ErrExhausted) {
		t.Errorf("NewPipe over capacity = %v, want ErrExhausted", err)
	}
	if _, err := r.Get(h1); err != nil {
		t.Errorf("Get(%d) = %v", h1, err)
	}
	if _, err := r.Get(Handle(999)); !errors.Is(err, ErrBadHandle) {
		t.Errorf("Get(999) = %v, want ErrBadHandle", err)
	}
}

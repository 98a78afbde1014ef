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

// Package display defines the display collaborator the write syscall
// streams characters to.
package display

import (
	"io"
	"sync"
)

// Display receives characters at pixel positions. The kernel owns cursor
// movement; a Display only draws.
type Display interface {
	DrawChar(x, y uint64, c byte)
}

// Discard is a Display that draws nowhere.
var Discard Display = discard{}

type discard struct{}

func (discard) DrawChar(x, y uint64, c byte) {}

// DrawnChar is one recorded DrawChar call.
type DrawnChar struct {
	X, Y uint64
	C    byte
}

// Recorder is a Display that remembers every draw, for tests.
type Recorder struct {
	mu    sync.Mutex
	chars []DrawnChar
}

// DrawChar implements Display.DrawChar.
func (r *Recorder) DrawChar(x, y uint64, c byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chars = append(r.chars, DrawnChar{X: x, Y: y, C: c})
}

// Chars returns a copy of everything drawn so far.
func (r *Recorder) Chars() []DrawnChar {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]DrawnChar(nil), r.chars...)
}

// Writer is a Display that forwards drawn characters to an io.Writer,
// emitting a newline whenever the y position advances. It gives the demo
// binary a readable console without a framebuffer.
type Writer struct {
	mu    sync.Mutex
	w     io.Writer
	lastY uint64
	drawn bool
}

// NewWriter returns a Writer drawing to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// DrawChar implements Display.DrawChar.
func (d *Writer) DrawChar(x, y uint64, c byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.drawn && y != d.lastY {
		io.WriteString(d.w, "\n")
	}
	d.lastY = y
	d.drawn = true
	d.w.Write([]byte{c})
}

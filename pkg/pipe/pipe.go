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

// Package pipe implements the kernel's in-memory IPC channel.
package pipe

import (
	"errors"
	"sync"
)

// DefaultSize is the capacity of a pipe's buffer.
const DefaultSize = 4096

var (
	// ErrExhausted indicates the registry is full.
	ErrExhausted = errors.New("pipe: too many pipes")

	// ErrWouldBlock indicates an empty read or a full write.
	ErrWouldBlock = errors.New("pipe: operation would block")

	// ErrBadHandle indicates an unknown pipe handle.
	ErrBadHandle = errors.New("pipe: bad handle")
)

// Handle names a pipe within a Registry. Handles share no number space with
// file descriptors.
type Handle uint64

// Pipe is a fixed-capacity byte queue.
type Pipe struct {
	mu   sync.Mutex
	buf  []byte
	size int
}

// Write appends as much of b as fits and returns the number of bytes
// accepted. A full pipe returns ErrWouldBlock.
func (p *Pipe) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	room := p.size - len(p.buf)
	if room == 0 {
		return 0, ErrWouldBlock
	}
	if len(b) > room {
		b = b[:room]
	}
	p.buf = append(p.buf, b...)
	return len(b), nil
}

// Read drains up to len(b) bytes into b. An empty pipe returns
// ErrWouldBlock.
func (p *Pipe) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.buf) == 0 {
		return 0, ErrWouldBlock
	}
	n := copy(b, p.buf)
	p.buf = p.buf[n:]
	return n, nil
}

// Registry allocates pipes and resolves handles.
type Registry struct {
	mu    sync.Mutex
	max   int
	next  Handle
	pipes map[Handle]*Pipe
}

// NewRegistry returns a Registry holding at most max pipes.
func NewRegistry(max int) *Registry {
	return &Registry{
		max:   max,
		next:  1,
		pipes: make(map[Handle]*Pipe),
	}
}

// NewPipe creates a pipe and returns its handle.
func (r *Registry) NewPipe() (Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.pipes) >= r.max {
		return 0, ErrExhausted
	}
	h := r.next
	r.next++
	r.pipes[h] = &Pipe{size: DefaultSize}
	return h, nil
}

// Get resolves a handle.
func (r *Registry) Get(h Handle) (*Pipe, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.pipes[h]
	if !ok {
		return nil, ErrBadHandle
	}
	return p, nil
}

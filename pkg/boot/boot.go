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

// Package boot assembles a runnable machine from a configuration: physical
// memory, the direct map, the kernel address space, the filesystem image
// and the kernel itself.
package boot

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"unios.dev/unios/pkg/display"
	"unios.dev/unios/pkg/hostarch"
	"unios.dev/unios/pkg/kernel"
	"unios.dev/unios/pkg/ktime"
	"unios.dev/unios/pkg/log"
	"unios.dev/unios/pkg/memory"
	"unios.dev/unios/pkg/pagetables"
	"unios.dev/unios/pkg/pipe"
	"unios.dev/unios/pkg/unifs"
	"unios.dev/unios/pkg/usermem"
)

// Options are the collaborators a caller may substitute at boot.
type Options struct {
	// Clock overrides the timer. Defaults to a real-time clock at the
	// configured frequency.
	Clock ktime.Clock

	// Display receives console output. Defaults to display.Discard.
	Display display.Display

	// Image overrides the filesystem image bytes; when nil and the
	// config names an image file, that file is read instead.
	Image []byte
}

// Machine is a booted system: one simulated core executing kernel code.
// The mutex is that core; interrupts and traps are serialized through it.
type Machine struct {
	mu sync.Mutex

	Kernel  *kernel.Kernel
	Clock   ktime.Clock
	Memory  *memory.Physical
	UserMem *usermem.BytesIO

	tickPeriod time.Duration
}

// Boot assembles a Machine per the config. Failures here are boot failures:
// the machine never existed, nothing to degrade.
func Boot(cfg Config, opts Options) (*Machine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	bootLog := log.New("boot")

	mem, err := memory.New(hostarch.PhysAddr(cfg.PhysBase), cfg.MemoryBytes)
	if err != nil {
		return nil, err
	}

	// The VMM initializes only when the bootloader supplied a direct map;
	// without one, physical memory is unreachable from kernel code and
	// every map call would be undefined. The kernel then runs without an
	// address space object.
	var as *pagetables.PageTables
	if cfg.DirectMapOffset != 0 {
		alloc, err := pagetables.NewFrameAllocator(mem, hostarch.DirectMap(cfg.DirectMapOffset))
		if err != nil {
			return nil, err
		}
		pt, ok := pagetables.New(alloc)
		if !ok {
			return nil, fmt.Errorf("no frame available for the root page table")
		}
		as = pt
		bootLog.Infof("vmm initialized, root at %#x", pt.Root())
	} else {
		bootLog.Warningf("no direct map supplied; vmm disabled")
	}

	image := opts.Image
	if image == nil && cfg.FSImage != "" {
		image, err = os.ReadFile(cfg.FSImage)
		if err != nil {
			return nil, fmt.Errorf("reading filesystem image: %w", err)
		}
	}
	var fs *unifs.Image
	if image != nil {
		fs, err = unifs.Mount(image)
		if err != nil {
			return nil, err
		}
		bootLog.Infof("unifs mounted, %d files", fs.FileCount())
	}

	clock := opts.Clock
	if clock == nil {
		clock = ktime.NewRealClock(cfg.TimerFrequency)
	}
	userMem := usermem.NewBytesIO(hostarch.Addr(cfg.UserBase), cfg.UserBytes)

	k := kernel.New(kernel.Args{
		Clock:        clock,
		AddressSpace: as,
		Filesystem:   fs,
		Pipes:        pipe.NewRegistry(cfg.MaxPipes),
		Display:      opts.Display,
		UserMemory:   userMem,
	})

	return &Machine{
		Kernel:     k,
		Clock:      clock,
		Memory:     mem,
		UserMem:    userMem,
		tickPeriod: time.Second / time.Duration(cfg.TimerFrequency),
	}, nil
}

// Interrupt delivers one timer interrupt to the core.
func (m *Machine) Interrupt() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Kernel.Tick()
}

// CreateTask creates a kernel task on the core.
func (m *Machine) CreateTask(name string, pc hostarch.Addr) kernel.PID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Kernel.CreateTask(name, pc)
}

// Yield runs one voluntary scheduling pass on the core.
func (m *Machine) Yield() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Kernel.Yield()
}

// CurrentPID returns the pid running on the core.
func (m *Machine) CurrentPID() kernel.PID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Kernel.Current().ID()
}

// Syscall executes one trap on the core.
func (m *Machine) Syscall(num, a1, a2, a3 uint64) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Kernel.SyscallHandler(num, a1, a2, a3)
}

// Run drives the timer until ctx is canceled.
func (m *Machine) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ticker := time.NewTicker(m.tickPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				m.Interrupt()
			}
		}
	})
	return g.Wait()
}

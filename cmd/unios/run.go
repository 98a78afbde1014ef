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

package main

import (
	"context"
	"encoding/binary"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/subcommands"

	"unios.dev/unios/pkg/boot"
	"unios.dev/unios/pkg/display"
	"unios.dev/unios/pkg/hostarch"
	"unios.dev/unios/pkg/kernel"
	"unios.dev/unios/pkg/unifs"
)

// initEntry is where the demo init task pretends to start executing. The
// simulated core never fetches instructions, so any kernel-half address
// serves.
const initEntry = hostarch.Addr(0xffff_8000_0010_0000)

// Run implements subcommands.Command for the "run" command. It boots a
// machine and drives a small init workload through the syscall boundary:
// console writes, a file read from the root image, then fork/exit/wait.
type Run struct {
	configPath string
	imagePath  string
	duration   time.Duration
}

// Name implements subcommands.Command.Name.
func (*Run) Name() string {
	return "run"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Run) Synopsis() string {
	return "boot the machine and run the init workload"
}

// Usage implements subcommands.Command.Usage.
func (*Run) Usage() string {
	return `run [flags] - boot the machine and run the init workload
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (r *Run) SetFlags(f *flag.FlagSet) {
	f.StringVar(&r.configPath, "config", "", "TOML machine config; defaults are used when empty")
	f.StringVar(&r.imagePath, "image", "", "uniFS image to mount; a built-in demo image is used when empty")
	f.DurationVar(&r.duration, "duration", 2*time.Second, "how long to keep the timer running after the workload")
}

// Execute implements subcommands.Command.Execute.
func (r *Run) Execute(ctx context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	cfg := boot.Default()
	if r.configPath != "" {
		var err error
		cfg, err = boot.Load(r.configPath)
		if err != nil {
			fatalf("%v", err)
		}
	}
	if r.imagePath != "" {
		cfg.FSImage = r.imagePath
	}

	opts := boot.Options{Display: display.NewWriter(os.Stdout)}
	if cfg.FSImage == "" {
		image, err := unifs.Build(map[string][]byte{
			"motd.txt": []byte("hello world"),
			"init":     {0x7f, 'E', 'L', 'F', 2, 1, 1, 0},
		})
		if err != nil {
			fatalf("building demo image: %v", err)
		}
		opts.Image = image
	}

	m, err := boot.Boot(cfg, opts)
	if err != nil {
		fatalf("boot: %v", err)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- m.Run(runCtx) }()

	status := r.workload(m, cfg)

	select {
	case <-ctx.Done():
	case <-time.After(r.duration):
	}
	cancel()
	<-done

	fmt.Printf("\n%d processes live, %d context switches\n", m.Kernel.ProcessCount(), m.Kernel.ContextSwitches())
	return status
}

// workload drives the init scenario against the booted machine.
func (r *Run) workload(m *boot.Machine, cfg boot.Config) subcommands.ExitStatus {
	// Stage user memory: the banner, the path to open, a read buffer and
	// a wait-status word, each on its own page.
	var (
		bannerAddr = hostarch.Addr(cfg.UserBase)
		pathAddr   = hostarch.Addr(cfg.UserBase) + 1*hostarch.PageSize
		bufAddr    = hostarch.Addr(cfg.UserBase) + 2*hostarch.PageSize
		statusAddr = hostarch.Addr(cfg.UserBase) + 3*hostarch.PageSize
	)
	banner := []byte("uniOS booting...\n\x00")
	if _, err := m.UserMem.CopyOut(bannerAddr, banner); err != nil {
		fatalf("staging banner: %v", err)
	}
	if _, err := m.UserMem.CopyOut(pathAddr, []byte("motd.txt\x00")); err != nil {
		fatalf("staging path: %v", err)
	}

	if n := m.Syscall(1, 1, uint64(bannerAddr), uint64(len(banner))); n == kernel.Failure {
		fatalf("write syscall failed")
	}

	fd := m.Syscall(2, uint64(pathAddr), 0, 0)
	if fd == kernel.Failure {
		fatalf("open motd.txt failed")
	}
	for {
		n := m.Syscall(0, fd, uint64(bufAddr), 64)
		if n == kernel.Failure {
			fatalf("read motd.txt failed")
		}
		if n == 0 {
			break
		}
		m.Syscall(1, 1, uint64(bufAddr), n)
	}
	m.Syscall(1, 1, uint64(bannerAddr)+uint64(len(banner))-2, 2) // newline
	m.Syscall(3, fd, 0, 0)

	// Fork/exit/wait: run the scenario from a real task so the child has
	// a kernel stack to copy.
	initPID := m.CreateTask("init", initEntry)
	if !scheduleUntil(m, initPID) {
		fatalf("init never scheduled")
	}

	childRaw := m.Syscall(57, 0, 0, 0)
	if childRaw == kernel.Failure {
		fatalf("fork failed")
	}
	child := kernel.PID(childRaw)
	fmt.Printf("init pid %d forked pid %d\n", initPID, child)

	if !scheduleUntil(m, child) {
		fatalf("child never scheduled")
	}
	m.Syscall(60, 7, 0, 0)

	if !scheduleUntil(m, initPID) {
		fatalf("init never rescheduled")
	}
	reaped := m.Syscall(61, childRaw, uint64(statusAddr), 0)
	if reaped == kernel.Failure {
		fatalf("wait4 failed")
	}
	var statusBuf [4]byte
	if _, err := m.UserMem.CopyIn(statusAddr, statusBuf[:]); err != nil {
		fatalf("reading wait status: %v", err)
	}
	fmt.Printf("reaped pid %d, status %d\n", reaped, binary.LittleEndian.Uint32(statusBuf[:]))
	return subcommands.ExitSuccess
}

// scheduleUntil yields until the given pid is current. The ring is finite,
// so a bounded number of passes visits everything runnable.
func scheduleUntil(m *boot.Machine, pid kernel.PID) bool {
	for i := 0; i < 2*m.Kernel.ProcessCount()+8; i++ {
		if m.CurrentPID() == pid {
			return true
		}
		m.Yield()
	}
	return false
}

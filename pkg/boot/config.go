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

package boot

import (
	"fmt"

	"github.com/BurntSushi/toml"

	"unios.dev/unios/pkg/hostarch"
)

// Config describes the machine to boot. It is what the bootloader hands the
// kernel: where physical memory is, whether a direct map exists, how fast
// the timer runs, and where the root filesystem image lives.
type Config struct {
	// MemoryBytes is the size of simulated physical memory. Must be a
	// positive multiple of the frame size.
	MemoryBytes uint64 `toml:"memory_bytes"`

	// PhysBase is the first physical address. Must be frame-aligned.
	PhysBase uint64 `toml:"phys_base"`

	// DirectMapOffset is the fixed offset mapping physical addresses into
	// the kernel half. Zero means the bootloader supplied no direct map:
	// boot proceeds, but the VMM is disabled.
	DirectMapOffset uint64 `toml:"direct_map_offset"`

	// TimerFrequency is the tick rate in Hz.
	TimerFrequency uint64 `toml:"timer_frequency"`

	// UserBase and UserBytes delimit the backed user region.
	UserBase  uint64 `toml:"user_base"`
	UserBytes uint64 `toml:"user_bytes"`

	// FSImage is the path of a uniFS image to mount, or empty.
	FSImage string `toml:"fs_image"`

	// MaxPipes caps the IPC registry.
	MaxPipes int `toml:"max_pipes"`
}

// Default returns a workable configuration: 16MiB of memory, a direct map,
// a 100Hz timer and one backed user page range.
func Default() Config {
	return Config{
		MemoryBytes:     16 << 20,
		PhysBase:        0x100000,
		DirectMapOffset: 0xffff_8000_0000_0000,
		TimerFrequency:  100,
		UserBase:        0x400000,
		UserBytes:       1 << 20,
		MaxPipes:        64,
	}
}

// Load reads a TOML config file.
func Load(path string) (Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config %q: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration for contradictions.
func (c *Config) Validate() error {
	if c.MemoryBytes == 0 || c.MemoryBytes%hostarch.PageSize != 0 {
		return fmt.Errorf("memory_bytes %#x is not a positive multiple of %#x", c.MemoryBytes, hostarch.PageSize)
	}
	if !hostarch.PhysAddr(c.PhysBase).IsFrameAligned() {
		return fmt.Errorf("phys_base %#x is not frame-aligned", c.PhysBase)
	}
	if c.TimerFrequency == 0 {
		return fmt.Errorf("timer_frequency must be positive")
	}
	if c.UserBase == 0 && c.UserBytes != 0 {
		return fmt.Errorf("user_base must be non-null when a user region is configured")
	}
	userEnd, ok := hostarch.Addr(c.UserBase).AddLength(c.UserBytes)
	if !ok || userEnd > hostarch.UserspaceTop {
		return fmt.Errorf("user region [%#x, %#x) crosses the user/kernel boundary", c.UserBase, c.UserBase+c.UserBytes)
	}
	if c.MaxPipes < 0 {
		return fmt.Errorf("max_pipes must not be negative")
	}
	return nil
}

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
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/subcommands"

	"unios.dev/unios/pkg/unifs"
)

// Mkfs implements subcommands.Command for the "mkfs" command. It packs the
// regular files of a directory into a uniFS image. uniFS is flat, so
// subdirectories are skipped.
type Mkfs struct {
	out string
}

// Name implements subcommands.Command.Name.
func (*Mkfs) Name() string {
	return "mkfs"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Mkfs) Synopsis() string {
	return "pack a directory into a uniFS image"
}

// Usage implements subcommands.Command.Usage.
func (*Mkfs) Usage() string {
	return `mkfs [flags] <dir> - pack a directory into a uniFS image
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (m *Mkfs) SetFlags(f *flag.FlagSet) {
	f.StringVar(&m.out, "o", "rootfs.img", "output image path")
}

// Execute implements subcommands.Command.Execute.
func (m *Mkfs) Execute(ctx context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	if f.NArg() != 1 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	dir := f.Arg(0)

	entries, err := os.ReadDir(dir)
	if err != nil {
		fatalf("%v", err)
	}
	files := make(map[string][]byte)
	for _, e := range entries {
		if !e.Type().IsRegular() {
			fmt.Fprintf(os.Stderr, "mkfs: skipping %q: not a regular file\n", e.Name())
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			fatalf("%v", err)
		}
		files[e.Name()] = data
	}

	image, err := unifs.Build(files)
	if err != nil {
		fatalf("%v", err)
	}
	if err := os.WriteFile(m.out, image, 0644); err != nil {
		fatalf("%v", err)
	}
	fmt.Printf("wrote %s: %d files, %d bytes\n", m.out, len(files), len(image))
	return subcommands.ExitSuccess
}

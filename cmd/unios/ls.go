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
	"text/tabwriter"

	"github.com/google/subcommands"

	"unios.dev/unios/pkg/unifs"
)

// Ls implements subcommands.Command for the "ls" command. It lists the
// contents of a uniFS image.
type Ls struct{}

// Name implements subcommands.Command.Name.
func (*Ls) Name() string {
	return "ls"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Ls) Synopsis() string {
	return "list the files in a uniFS image"
}

// Usage implements subcommands.Command.Usage.
func (*Ls) Usage() string {
	return `ls <image> - list the files in a uniFS image
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (*Ls) SetFlags(*flag.FlagSet) {}

// Execute implements subcommands.Command.Execute.
func (*Ls) Execute(ctx context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	if f.NArg() != 1 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	raw, err := os.ReadFile(f.Arg(0))
	if err != nil {
		fatalf("%v", err)
	}
	img, err := unifs.Mount(raw)
	if err != nil {
		fatalf("%v", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tSIZE\tTYPE")
	for _, name := range img.Names() {
		fmt.Fprintf(w, "%s\t%d\t%s\n", name, img.SizeOf(name), img.TypeOf(name))
	}
	w.Flush()
	return subcommands.ExitSuccess
}

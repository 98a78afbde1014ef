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

package pagetables

import (
	"fmt"
	"unsafe"

	"unios.dev/unios/pkg/hostarch"
)

// ptesForSlice reinterprets one frame of backing memory as a table. The
// slice must be exactly page-sized; entries written through the result are
// visible through the slice and vice versa.
func ptesForSlice(b []byte) *PTEs {
	if len(b) != hostarch.PageSize {
		panic(fmt.Sprintf("ptesForSlice: got %d bytes, need %d", len(b), hostarch.PageSize))
	}
	return (*PTEs)(unsafe.Pointer(unsafe.SliceData(b)))
}

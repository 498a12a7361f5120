// Copyright 2015 Google Inc. All Rights Reserved.
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

package inode

import (
	"fmt"
)

// A helper struct for implementing the kernel lookup count the fuse
// bridge expects every inode to carry. It is independent of the
// storage-layer in-use counter: the kernel's lookup count tracks how
// many times it has been told about this inode via LookUpInode/MkDir/
// etc. without a matching ForgetInode; the storage in-use counter
// tracks open file handles. External synchronization is required.
type lookupCount struct {
	count uint64
}

func (lc *lookupCount) Inc() {
	lc.count++
}

func (lc *lookupCount) Dec(n uint64) (destroyed bool) {
	// Make sure n is in range.
	if n > lc.count {
		panic(fmt.Sprintf(
			"n is greater than lookup count: %v vs. %v",
			n,
			lc.count))
	}

	// Decrement. The caller is responsible for acting on the kernel
	// having forgotten the inode entirely (destroyed == true) by
	// releasing any remaining in-memory state; storage-level destruction
	// is driven separately by the in-use counter and TryDestroy.
	lc.count -= n
	destroyed = lc.count == 0

	return
}

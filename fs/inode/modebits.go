// Copyright 2025 Google LLC
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
	"os"
	"time"
)

// POSIX file-type bits within st_mode, matching syscall's S_IFMT family.
const (
	SIFMT  uint32 = 0o170000
	SIFDIR uint32 = 0o040000
	SIFREG uint32 = 0o100000
	SIFLNK uint32 = 0o120000
)

// ModeFromUnix translates a raw POSIX mode word into Go's os.FileMode,
// the representation fuseops.InodeAttributes.Mode expects.
func ModeFromUnix(raw uint32) os.FileMode {
	perm := os.FileMode(raw & 0o777)
	switch raw & SIFMT {
	case SIFDIR:
		return perm | os.ModeDir
	case SIFLNK:
		return perm | os.ModeSymlink
	default:
		return perm
	}
}

// ModeToUnix translates an os.FileMode plus a type back into the raw
// POSIX mode word stored in the inode table.
func ModeToUnix(typeBits uint32, perm os.FileMode) uint32 {
	return typeBits | uint32(perm.Perm())
}

func unixToTime(sec int64) time.Time {
	return time.Unix(sec, 0)
}

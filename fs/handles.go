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

package fs

import (
	"github.com/dbfs/dbfs/openfile"
	"github.com/jacobsa/fuse/fuseops"
)

// fileHandle pairs the per-handle block-cache engine with the inode it was
// opened against, so Read/Write/Flush/Release can find both from a
// fuseops.HandleID alone.
type fileHandle struct {
	inodeID fuseops.InodeID
	file    *openfile.OpenFile
}

// allocHandleID hands out the next handle id, mirroring the teacher's
// never-reuse, monotonically-increasing nextHandleID counter.
//
// LOCKS_REQUIRED(fs.mu)
func (fs *fileSystem) allocHandleID() fuseops.HandleID {
	id := fs.nextHandleID
	fs.nextHandleID++
	return id
}

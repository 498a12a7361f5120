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
	"context"

	"github.com/dbfs/dbfs/storage"
	"github.com/jacobsa/fuse/fuseops"
	"github.com/jacobsa/syncutil"
)

// FileInode is the in-memory wrapper for a regular-file inode. It holds
// no cached content: content lives in the openfile package's per-handle
// block cache, which is keyed by handle rather than by inode since
// spec.md requires the block cache be per-handle, not shared.
type FileInode struct {
	baseNode
}

var _ Inode = &FileInode{}

func NewFileInode(inodeID fuseops.InodeID) *FileInode {
	f := &FileInode{baseNode: baseNode{id: inodeID}}
	f.Mu = syncutil.NewInvariantMutex(func() {})
	return f
}

func (f *FileInode) Attributes(ctx context.Context, store *storage.Store) (fuseops.InodeAttributes, error) {
	st, err := store.Stat(ctx, int64(f.id))
	if err != nil {
		return fuseops.InodeAttributes{}, err
	}
	return StatToAttributes(st), nil
}

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

// SymlinkInode is the in-memory wrapper for a symlink inode. Its target
// path is stored as the single-block content of the underlying inode,
// exactly like a regular file whose one block holds the link text.
type SymlinkInode struct {
	baseNode
}

var _ Inode = &SymlinkInode{}

func NewSymlinkInode(inodeID fuseops.InodeID) *SymlinkInode {
	s := &SymlinkInode{baseNode: baseNode{id: inodeID}}
	s.Mu = syncutil.NewInvariantMutex(func() {})
	return s
}

func (s *SymlinkInode) Attributes(ctx context.Context, store *storage.Store) (fuseops.InodeAttributes, error) {
	st, err := store.Stat(ctx, int64(s.id))
	if err != nil {
		return fuseops.InodeAttributes{}, err
	}
	return StatToAttributes(st), nil
}

// Target reads the symlink's target path from its single content block.
func (s *SymlinkInode) Target(ctx context.Context, store *storage.Store) (string, error) {
	blocks, err := store.GetBlocksRange(ctx, int64(s.id), 0, 1)
	if err != nil {
		return "", err
	}
	if len(blocks) == 0 {
		return "", nil
	}
	return string(blocks[0].Data), nil
}

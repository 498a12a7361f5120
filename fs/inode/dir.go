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
	"fmt"

	"github.com/dbfs/dbfs/storage"
	"github.com/jacobsa/fuse/fuseops"
	"github.com/jacobsa/syncutil"
)

// DirInode is the in-memory wrapper for a directory-type inode.
//
// GUARDED_BY(Mu): treeNodeID. It is cached at first lookup (mirroring
// the teacher's generationBackedInodes cache-on-first-use pattern) and
// recovered on a miss via storage.SelfTreeNode, which queries the
// directory's own "." entry — the fallback spec.md's namespace resolver
// requires when a path-walk step needs a directory's tree-node id but
// only its inode id is cached.
type DirInode struct {
	baseNode

	// The tree-node id naming this directory, or 0 if not yet cached.
	treeNodeID int64
}

var _ Inode = &DirInode{}

// NewDirInode wraps inodeID (the storage inode id, also used as the
// fuseops.InodeID) as a directory.
func NewDirInode(inodeID fuseops.InodeID) *DirInode {
	d := &DirInode{baseNode: baseNode{id: inodeID}}
	d.Mu = syncutil.NewInvariantMutex(d.checkInvariants)
	return d
}

func (d *DirInode) checkInvariants() {
	if d.treeNodeID < 0 {
		panic(fmt.Sprintf("illegal cached tree-node id: %d", d.treeNodeID))
	}
}

// TreeNodeID returns the directory's own tree-node id, consulting the
// fallback "." query on first use or after eviction.
//
// LOCKS_EXCLUDED(d.Mu)
func (d *DirInode) TreeNodeID(ctx context.Context, store *storage.Store) (int64, error) {
	d.Mu.Lock()
	cached := d.treeNodeID
	d.Mu.Unlock()
	if cached != 0 {
		return cached, nil
	}

	tn, err := store.SelfTreeNode(ctx, int64(d.id))
	if err != nil {
		return 0, err
	}

	d.Mu.Lock()
	d.treeNodeID = tn.ID
	d.Mu.Unlock()
	return tn.ID, nil
}

func (d *DirInode) Attributes(ctx context.Context, store *storage.Store) (fuseops.InodeAttributes, error) {
	st, err := store.Stat(ctx, int64(d.id))
	if err != nil {
		return fuseops.InodeAttributes{}, err
	}
	return StatToAttributes(st), nil
}

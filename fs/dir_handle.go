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
	"context"
	"fmt"

	"github.com/dbfs/dbfs/fs/inode"
	"github.com/dbfs/dbfs/storage"
	"github.com/jacobsa/fuse"
	"github.com/jacobsa/fuse/fuseops"
	"github.com/jacobsa/fuse/fuseutil"
	"github.com/jacobsa/syncutil"
)

// dirHandle buffers one page of listing at a time from storage.ListChildren,
// replacing the teacher's GCS-continuation-token buffering with a SQL
// id-cursor: entries are ordered by tree_node.id, and the cursor is just the
// id of the last entry returned. We track the offset at which our buffer
// starts: a rewinddir (offset 0) forces a fresh read from the first entry,
// and any other offset before the buffered page is refused with EINVAL.
type dirHandle struct {
	in *inode.DirInode

	Mu syncutil.InvariantMutex

	// GUARDED_BY(Mu)
	entries []fuseutil.Dirent

	// GUARDED_BY(Mu)
	entriesOffset fuseops.DirOffset

	// GUARDED_BY(Mu)
	afterID int64
}

const dirListingPageSize = 256

func newDirHandle(in *inode.DirInode) *dirHandle {
	dh := &dirHandle{in: in}
	dh.Mu = syncutil.NewInvariantMutex(func() {})
	return dh
}

func direntType(mode uint32) fuseutil.DirentType {
	switch mode & inode.SIFMT {
	case inode.SIFDIR:
		return fuseutil.DT_Directory
	case inode.SIFLNK:
		return fuseutil.DT_Link
	default:
		return fuseutil.DT_File
	}
}

// fetchPage reads one page of tree-node children starting after afterID,
// translating each into a fuseutil.Dirent (stat'ing the target inode only
// for its type bits).
func fetchPage(ctx context.Context, store *storage.Store, parentTreeNodeID int64, afterID int64, startOffset fuseops.DirOffset) ([]fuseutil.Dirent, int64, error) {
	children, err := store.ListChildren(ctx, parentTreeNodeID, afterID, dirListingPageSize)
	if err != nil {
		return nil, afterID, fmt.Errorf("ListChildren: %w", err)
	}

	entries := make([]fuseutil.Dirent, 0, len(children))
	last := afterID
	for i, c := range children {
		st, err := store.GetInode(ctx, c.InodeID)
		if err != nil {
			return nil, afterID, fmt.Errorf("GetInode(%d): %w", c.InodeID, err)
		}

		entries = append(entries, fuseutil.Dirent{
			Offset: startOffset + fuseops.DirOffset(i) + 1,
			Inode:  fuseops.InodeID(c.InodeID),
			Name:   c.Name,
			Type:   direntType(st.Mode),
		})
		last = c.ID
	}

	return entries, last, nil
}

// ReadDir serves a ReadDirOp against the buffered page, refilling from
// storage when the kernel's requested offset runs past what we have
// buffered. A zero offset always means "start over", per spec.md's
// directory-stream contract.
//
// EXCLUSIVE_LOCKS_REQUIRED(dh.Mu)
func (dh *dirHandle) ReadDir(ctx context.Context, store *storage.Store, op *fuseops.ReadDirOp) error {
	if op.Offset == 0 {
		dh.entries = nil
		dh.entriesOffset = 0
		dh.afterID = 0
	}

	if op.Offset < dh.entriesOffset {
		return fuse.EINVAL
	}

	index := int(op.Offset - dh.entriesOffset)
	if index > len(dh.entries) {
		return fuse.EINVAL
	}

	if index == len(dh.entries) {
		treeNodeID, err := dh.in.TreeNodeID(ctx, store)
		if err != nil {
			return fmt.Errorf("TreeNodeID: %w", err)
		}

		newEntries, lastID, err := fetchPage(ctx, store, treeNodeID, dh.afterID, dh.entriesOffset+fuseops.DirOffset(len(dh.entries)))
		if err != nil {
			return err
		}

		dh.entriesOffset += fuseops.DirOffset(len(dh.entries))
		dh.entries = newEntries
		dh.afterID = lastID
		index = 0

		if len(dh.entries) == 0 {
			return nil
		}
	}

	n := 0
	for i := index; i < len(dh.entries); i++ {
		written := fuseutil.WriteDirent(op.Dst[n:], dh.entries[i])
		if written == 0 {
			break
		}
		n += written
	}
	op.BytesRead = n

	return nil
}

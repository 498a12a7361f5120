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

// Package inode holds the in-memory bookkeeping the dispatcher keeps per
// fuseops.InodeID: the kernel lookup count that gates destruction, and
// (for directories) a cached tree-node id so repeated child lookups
// don't need a fallback "." query. All durable state — mode, ownership,
// timestamps, size — lives in the storage package and is fetched fresh
// on every call; these wrappers never cache attributes.
package inode

import (
	"context"

	"github.com/dbfs/dbfs/storage"
	"github.com/jacobsa/fuse/fuseops"
	"github.com/jacobsa/syncutil"
)

// Inode is the interface satisfied by both DirInode and FileInode.
type Inode interface {
	// ID returns the fuseops.InodeID assigned to the inode, which is the
	// storage-layer inode id: stable across hard links, exactly the
	// identity the kernel's inode cache wants.
	ID() fuseops.InodeID

	IncrementLookupCount()

	// DecrementLookupCount decrements the lookup count by n. If this
	// drops the count to zero, the in-use-holding caller must have
	// already called storage.DecrementInUse/TryDestroy; this method
	// only reports whether the count itself hit zero.
	DecrementLookupCount(n uint64) (destroyed bool)

	Attributes(ctx context.Context, store *storage.Store) (fuseops.InodeAttributes, error)
}

// StatToAttributes projects a storage.Stat row onto fuseops' attribute
// struct.
func StatToAttributes(st *storage.Stat) fuseops.InodeAttributes {
	return fuseops.InodeAttributes{
		Size:  uint64(st.Size),
		Nlink: uint32(st.Nlink),
		Mode:  ModeFromUnix(st.Mode),
		Uid:   st.Uid,
		Gid:   st.Gid,
		Atime: unixToTime(st.Atime),
		Mtime: unixToTime(st.Mtime),
		Ctime: unixToTime(st.Ctime),
	}
}

// baseNode is embedded by DirInode and FileInode to share lookup-count
// and locking machinery.
type baseNode struct {
	id fuseops.InodeID
	lc lookupCount

	Mu syncutil.InvariantMutex
}

func (n *baseNode) ID() fuseops.InodeID {
	return n.id
}

func (n *baseNode) Lock() {
	n.Mu.Lock()
}

func (n *baseNode) Unlock() {
	n.Mu.Unlock()
}

func (n *baseNode) IncrementLookupCount() {
	n.lc.Inc()
}

func (n *baseNode) DecrementLookupCount(c uint64) (destroyed bool) {
	return n.lc.Dec(c)
}

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

package inode_test

import (
	"context"
	"os"
	"testing"

	"github.com/dbfs/dbfs/fs/inode"
	"github.com/dbfs/dbfs/storage"
	"github.com/jacobsa/fuse/fuseops"
	"github.com/stretchr/testify/suite"
)

func TestModeFromUnixDir(t *testing.T) {
	m := inode.ModeFromUnix(inode.SIFDIR | 0o755)
	if m.Perm() != 0o755 || m&os.ModeDir == 0 {
		t.Fatalf("unexpected mode: %v", m)
	}
}

func TestModeFromUnixSymlink(t *testing.T) {
	m := inode.ModeFromUnix(inode.SIFLNK | 0o777)
	if m.Perm() != 0o777 || m&os.ModeSymlink == 0 {
		t.Fatalf("unexpected mode: %v", m)
	}
}

func TestModeFromUnixRegular(t *testing.T) {
	m := inode.ModeFromUnix(inode.SIFREG | 0o644)
	if m.Perm() != 0o644 || m&(os.ModeDir|os.ModeSymlink) != 0 {
		t.Fatalf("unexpected mode: %v", m)
	}
}

func TestModeToUnixRoundTrip(t *testing.T) {
	raw := inode.ModeToUnix(inode.SIFDIR, os.FileMode(0o750))
	if raw != inode.SIFDIR|0o750 {
		t.Fatalf("got %o, want %o", raw, inode.SIFDIR|0o750)
	}
}

func TestLookupCountIncDec(t *testing.T) {
	f := inode.NewFileInode(fuseops.InodeID(7))
	f.IncrementLookupCount()
	f.IncrementLookupCount()

	if destroyed := f.DecrementLookupCount(1); destroyed {
		t.Fatalf("should not be destroyed yet")
	}
	if destroyed := f.DecrementLookupCount(1); !destroyed {
		t.Fatalf("should be destroyed after count hits zero")
	}
}

func TestLookupCountDecPanicsOnOverdraw(t *testing.T) {
	f := inode.NewFileInode(fuseops.InodeID(7))
	f.IncrementLookupCount()

	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("expected panic decrementing past the lookup count")
		}
	}()
	f.DecrementLookupCount(2)
}

func TestFileInodeID(t *testing.T) {
	f := inode.NewFileInode(fuseops.InodeID(42))
	if f.ID() != 42 {
		t.Fatalf("got %d, want 42", f.ID())
	}
}

// InodeTest exercises Attributes/TreeNodeID/Target against a real
// in-memory store, the same way store_test.go does for the storage
// package directly.
type InodeTest struct {
	suite.Suite
	ctx   context.Context
	store *storage.Store
}

func TestInodeSuite(t *testing.T) {
	suite.Run(t, new(InodeTest))
}

func (t *InodeTest) SetupTest() {
	t.ctx = context.Background()
	store, err := storage.Open("sqlite3", ":memory:")
	t.Require().NoError(err)
	t.store = store
}

func (t *InodeTest) TearDownTest() {
	t.store.Close()
}

func (t *InodeTest) TestDirInodeAttributesAndTreeNodeID() {
	id, err := t.store.CreateInode(t.ctx, inode.SIFDIR|0o755, 1000, 1000, 99)
	t.Require().NoError(err)
	rootTreeID, err := t.store.CreateRoot(t.ctx, "vol", id)
	t.Require().NoError(err)
	_, err = t.store.CreateChild(t.ctx, rootTreeID, ".", id)
	t.Require().NoError(err)

	d := inode.NewDirInode(fuseops.InodeID(id))

	attrs, err := d.Attributes(t.ctx, t.store)
	t.Require().NoError(err)
	t.EqualValues(1000, attrs.Uid)
	t.True(attrs.Mode.IsDir())

	tnID, err := d.TreeNodeID(t.ctx, t.store)
	t.Require().NoError(err)
	t.Equal(rootTreeID, tnID)

	// Cached path should return the same id without re-querying.
	tnID2, err := d.TreeNodeID(t.ctx, t.store)
	t.Require().NoError(err)
	t.Equal(tnID, tnID2)
}

func (t *InodeTest) TestFileInodeAttributes() {
	id, err := t.store.CreateInode(t.ctx, inode.SIFREG|0o644, 5, 6, 7)
	t.Require().NoError(err)

	f := inode.NewFileInode(fuseops.InodeID(id))
	attrs, err := f.Attributes(t.ctx, t.store)
	t.Require().NoError(err)
	t.EqualValues(5, attrs.Uid)
	t.EqualValues(6, attrs.Gid)
	t.False(attrs.Mode.IsDir())
}

func (t *InodeTest) TestSymlinkInodeTarget() {
	id, err := t.store.CreateInode(t.ctx, inode.SIFLNK|0o777, 0, 0, 1)
	t.Require().NoError(err)
	_, err = t.store.UpsertBlock(t.ctx, id, 0, []byte("/etc/passwd"))
	t.Require().NoError(err)

	s := inode.NewSymlinkInode(fuseops.InodeID(id))
	target, err := s.Target(t.ctx, t.store)
	t.Require().NoError(err)
	t.Equal("/etc/passwd", target)
}

func (t *InodeTest) TestSymlinkInodeTargetEmptyWhenNoBlocks() {
	id, err := t.store.CreateInode(t.ctx, inode.SIFLNK|0o777, 0, 0, 1)
	t.Require().NoError(err)

	s := inode.NewSymlinkInode(fuseops.InodeID(id))
	target, err := s.Target(t.ctx, t.store)
	t.Require().NoError(err)
	t.Equal("", target)
}

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

package storage_test

import (
	"context"
	"testing"

	"github.com/dbfs/dbfs/storage"
	"github.com/stretchr/testify/suite"
)

type StoreTest struct {
	suite.Suite
	ctx   context.Context
	store *storage.Store
}

func TestStoreSuite(t *testing.T) {
	suite.Run(t, new(StoreTest))
}

func (t *StoreTest) SetupTest() {
	t.ctx = context.Background()
	store, err := storage.Open("sqlite3", ":memory:")
	t.Require().NoError(err)
	t.store = store
}

func (t *StoreTest) TearDownTest() {
	t.store.Close()
}

func (t *StoreTest) TestCreateAndGetInode() {
	id, err := t.store.CreateInode(t.ctx, 0o100644, 1000, 1000, 42)
	t.Require().NoError(err)

	in, err := t.store.GetInode(t.ctx, id)
	t.Require().NoError(err)
	t.EqualValues(0o100644, in.Mode)
	t.EqualValues(1000, in.Uid)
	t.EqualValues(42, in.Ctime)
	t.EqualValues(0, in.Size)
}

func (t *StoreTest) TestGetInodeNotFound() {
	_, err := t.store.GetInode(t.ctx, 999)
	t.ErrorIs(err, storage.ErrNotFound)
}

func (t *StoreTest) TestUpdateModePreservesOtherFields() {
	id, err := t.store.CreateInode(t.ctx, 0o100644, 1000, 1000, 1)
	t.Require().NoError(err)

	t.Require().NoError(t.store.UpdateMode(t.ctx, id, 0o100600, 2))

	in, err := t.store.GetInode(t.ctx, id)
	t.Require().NoError(err)
	t.EqualValues(0o100600, in.Mode)
	t.EqualValues(1000, in.Uid)
	t.EqualValues(2, in.Ctime)
}

func (t *StoreTest) TestUpdateOwnerLeavesNegativeAlone() {
	id, err := t.store.CreateInode(t.ctx, 0o100644, 1000, 2000, 1)
	t.Require().NoError(err)

	t.Require().NoError(t.store.UpdateOwner(t.ctx, id, 42, -1, 2))

	in, err := t.store.GetInode(t.ctx, id)
	t.Require().NoError(err)
	t.EqualValues(42, in.Uid)
	t.EqualValues(2000, in.Gid)
}

func (t *StoreTest) TestIncrementDecrementInUse() {
	id, err := t.store.CreateInode(t.ctx, 0o100644, 0, 0, 1)
	t.Require().NoError(err)

	t.Require().NoError(t.store.IncrementInUse(t.ctx, id))
	t.Require().NoError(t.store.IncrementInUse(t.ctx, id))

	in, err := t.store.GetInode(t.ctx, id)
	t.Require().NoError(err)
	t.EqualValues(2, in.InUse)

	t.Require().NoError(t.store.DecrementInUse(t.ctx, id))
	in, err = t.store.GetInode(t.ctx, id)
	t.Require().NoError(err)
	t.EqualValues(1, in.InUse)
}

func (t *StoreTest) TestTryDestroyRequiresZeroInUseAndNoTreeNode() {
	id, err := t.store.CreateInode(t.ctx, 0o100644, 0, 0, 1)
	t.Require().NoError(err)
	t.Require().NoError(t.store.IncrementInUse(t.ctx, id))

	ok, err := t.store.TryDestroy(t.ctx, id)
	t.Require().NoError(err)
	t.False(ok, "still in use, must not be destroyed")

	t.Require().NoError(t.store.DecrementInUse(t.ctx, id))
	ok, err = t.store.TryDestroy(t.ctx, id)
	t.Require().NoError(err)
	t.True(ok)

	_, err = t.store.GetInode(t.ctx, id)
	t.ErrorIs(err, storage.ErrNotFound)
}

func (t *StoreTest) TestTryDestroyBlockedByTreeNode() {
	id, err := t.store.CreateInode(t.ctx, 0o100644, 0, 0, 1)
	t.Require().NoError(err)
	rootID, err := t.store.CreateRoot(t.ctx, "vol", id)
	t.Require().NoError(err)
	_, err = t.store.CreateChild(t.ctx, rootID, "self", id)
	t.Require().NoError(err)

	ok, err := t.store.TryDestroy(t.ctx, id)
	t.Require().NoError(err)
	t.False(ok, "a referencing tree-node must block destruction")
}

func (t *StoreTest) TestListOrphanCandidates() {
	live, err := t.store.CreateInode(t.ctx, 0o100644, 0, 0, 1)
	t.Require().NoError(err)
	_, err = t.store.CreateRoot(t.ctx, "vol", live)
	t.Require().NoError(err)

	orphan, err := t.store.CreateInode(t.ctx, 0o100644, 0, 0, 1)
	t.Require().NoError(err)

	inUse, err := t.store.CreateInode(t.ctx, 0o100644, 0, 0, 1)
	t.Require().NoError(err)
	t.Require().NoError(t.store.IncrementInUse(t.ctx, inUse))

	ids, err := t.store.ListOrphanCandidates(t.ctx)
	t.Require().NoError(err)
	t.Equal([]int64{orphan}, ids)
}

func (t *StoreTest) TestLookupChildAndListChildren() {
	parentInode, err := t.store.CreateInode(t.ctx, 0o040755, 0, 0, 1)
	t.Require().NoError(err)
	parentTreeID, err := t.store.CreateRoot(t.ctx, "vol", parentInode)
	t.Require().NoError(err)

	childInode, err := t.store.CreateInode(t.ctx, 0o100644, 0, 0, 1)
	t.Require().NoError(err)
	_, err = t.store.CreateChild(t.ctx, parentTreeID, "a.txt", childInode)
	t.Require().NoError(err)

	tn, err := t.store.LookupChild(t.ctx, parentTreeID, "a.txt")
	t.Require().NoError(err)
	t.Equal(childInode, tn.InodeID)

	_, err = t.store.LookupChild(t.ctx, parentTreeID, "missing")
	t.ErrorIs(err, storage.ErrNotFound)

	children, err := t.store.ListChildren(t.ctx, parentTreeID, 0, 10)
	t.Require().NoError(err)
	t.Len(children, 1)
}

func (t *StoreTest) TestCreateChildDuplicateNameIsErrExist() {
	parentInode, err := t.store.CreateInode(t.ctx, 0o040755, 0, 0, 1)
	t.Require().NoError(err)
	parentTreeID, err := t.store.CreateRoot(t.ctx, "vol", parentInode)
	t.Require().NoError(err)

	childInode, err := t.store.CreateInode(t.ctx, 0o100644, 0, 0, 1)
	t.Require().NoError(err)
	_, err = t.store.CreateChild(t.ctx, parentTreeID, "dup", childInode)
	t.Require().NoError(err)

	_, err = t.store.CreateChild(t.ctx, parentTreeID, "dup", childInode)
	t.ErrorIs(err, storage.ErrExist)
}

func (t *StoreTest) TestCountChildrenAndDelete() {
	parentInode, err := t.store.CreateInode(t.ctx, 0o040755, 0, 0, 1)
	t.Require().NoError(err)
	parentTreeID, err := t.store.CreateRoot(t.ctx, "vol", parentInode)
	t.Require().NoError(err)

	childInode, err := t.store.CreateInode(t.ctx, 0o100644, 0, 0, 1)
	t.Require().NoError(err)
	childTreeID, err := t.store.CreateChild(t.ctx, parentTreeID, "f", childInode)
	t.Require().NoError(err)

	n, err := t.store.CountChildren(t.ctx, parentTreeID)
	t.Require().NoError(err)
	t.Equal(1, n)

	t.Require().NoError(t.store.DeleteTreeNode(t.ctx, childTreeID))
	n, err = t.store.CountChildren(t.ctx, parentTreeID)
	t.Require().NoError(err)
	t.Equal(0, n)
}

func (t *StoreTest) TestStatComputesNlink() {
	parentInode, err := t.store.CreateInode(t.ctx, 0o040755, 0, 0, 1)
	t.Require().NoError(err)
	parentTreeID, err := t.store.CreateRoot(t.ctx, "vol", parentInode)
	t.Require().NoError(err)

	childInode, err := t.store.CreateInode(t.ctx, 0o100644, 0, 0, 1)
	t.Require().NoError(err)
	_, err = t.store.CreateChild(t.ctx, parentTreeID, "one", childInode)
	t.Require().NoError(err)
	_, err = t.store.CreateChild(t.ctx, parentTreeID, "two", childInode)
	t.Require().NoError(err)

	st, err := t.store.Stat(t.ctx, childInode)
	t.Require().NoError(err)
	t.EqualValues(2, st.Nlink)
	t.Equal(st.Ctime, st.Atime)
}

func (t *StoreTest) TestBlockRoundTrip() {
	id, err := t.store.CreateInode(t.ctx, 0o100644, 0, 0, 1)
	t.Require().NoError(err)

	_, err = t.store.UpsertBlock(t.ctx, id, 0, []byte("hello world"))
	t.Require().NoError(err)
	_, err = t.store.UpsertBlock(t.ctx, id, 1, []byte("second block"))
	t.Require().NoError(err)

	blocks, err := t.store.GetBlocksRange(t.ctx, id, 0, 10)
	t.Require().NoError(err)
	t.Len(blocks, 2)

	_, err = t.store.UpsertBlock(t.ctx, id, 0, []byte("overwritten"))
	t.Require().NoError(err)
	blocks, err = t.store.GetBlocksRange(t.ctx, id, 0, 10)
	t.Require().NoError(err)
	t.Equal("overwritten", string(blocks[0].Data))
}

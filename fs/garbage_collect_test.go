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
	"testing"

	"github.com/dbfs/dbfs/fs/inode"
	"github.com/dbfs/dbfs/storage"
	"github.com/stretchr/testify/require"
)

func TestReapOrphansOnceDestroysOnlyUnreferencedUnusedInodes(t *testing.T) {
	store, err := storage.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()

	rootInode, err := store.CreateInode(ctx, inode.SIFDIR|0o755, 0, 0, 1)
	require.NoError(t, err)
	_, err = store.CreateRoot(ctx, "vol", rootInode)
	require.NoError(t, err)

	orphan, err := store.CreateInode(ctx, inode.SIFREG|0o644, 0, 0, 1)
	require.NoError(t, err)

	held, err := store.CreateInode(ctx, inode.SIFREG|0o644, 0, 0, 1)
	require.NoError(t, err)
	require.NoError(t, store.IncrementInUse(ctx, held))

	n, err := reapOrphansOnce(ctx, store)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	_, err = store.GetInode(ctx, orphan)
	require.ErrorIs(t, err, storage.ErrNotFound)

	_, err = store.GetInode(ctx, rootInode)
	require.NoError(t, err)
	_, err = store.GetInode(ctx, held)
	require.NoError(t, err)
}

func TestReapOrphansOnceNoopOnEmptyStore(t *testing.T) {
	store, err := storage.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	defer store.Close()

	n, err := reapOrphansOnce(context.Background(), store)
	require.NoError(t, err)
	require.Zero(t, n)
}

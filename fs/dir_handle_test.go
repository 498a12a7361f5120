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
	"github.com/jacobsa/fuse/fuseutil"
	"github.com/stretchr/testify/require"
)

func TestDirentType(t *testing.T) {
	require.Equal(t, fuseutil.DT_Directory, direntType(inode.SIFDIR|0o755))
	require.Equal(t, fuseutil.DT_Link, direntType(inode.SIFLNK|0o777))
	require.Equal(t, fuseutil.DT_File, direntType(inode.SIFREG|0o644))
}

func TestFetchPageOrdersByTreeNodeID(t *testing.T) {
	store, err := storage.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	parentInode, err := store.CreateInode(ctx, inode.SIFDIR|0o755, 0, 0, 1)
	require.NoError(t, err)
	parentTreeID, err := store.CreateRoot(ctx, "vol", parentInode)
	require.NoError(t, err)

	for _, name := range []string{"a", "b", "c"} {
		childInode, err := store.CreateInode(ctx, inode.SIFREG|0o644, 0, 0, 1)
		require.NoError(t, err)
		_, err = store.CreateChild(ctx, parentTreeID, name, childInode)
		require.NoError(t, err)
	}

	entries, lastID, err := fetchPage(ctx, store, parentTreeID, 0, 0)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	require.NotZero(t, lastID)
	require.Equal(t, "a", entries[0].Name)
	require.Equal(t, "c", entries[2].Name)
}

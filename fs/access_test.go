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
	"testing"

	"github.com/dbfs/dbfs/storage"
	"github.com/jacobsa/fuse"
	"github.com/stretchr/testify/require"
)

func TestAccessRootBypassesChecks(t *testing.T) {
	in := &storage.Inode{Mode: 0o000, Uid: 1000, Gid: 1000}
	require.NoError(t, Access(in, permRead|permWrite|permExec, CallerContext{Uid: 0}))
}

func TestAccessOwnerTriad(t *testing.T) {
	in := &storage.Inode{Mode: 0o600, Uid: 1000, Gid: 1000}
	require.NoError(t, Access(in, permRead|permWrite, CallerContext{Uid: 1000, Gid: 1000}))
}

func TestAccessOwnerDeniedMissingBit(t *testing.T) {
	in := &storage.Inode{Mode: 0o400, Uid: 1000, Gid: 1000}
	err := Access(in, permWrite, CallerContext{Uid: 1000, Gid: 1000})
	require.Equal(t, fuse.EACCES, err)
}

func TestAccessGroupTriad(t *testing.T) {
	in := &storage.Inode{Mode: 0o640, Uid: 1000, Gid: 2000}
	require.NoError(t, Access(in, permRead, CallerContext{Uid: 9999, Gid: 2000}))
}

func TestAccessOtherTriad(t *testing.T) {
	in := &storage.Inode{Mode: 0o644, Uid: 1000, Gid: 2000}
	require.NoError(t, Access(in, permRead, CallerContext{Uid: 9999, Gid: 8888}))
}

func TestAccessOtherDeniedNoWriteBit(t *testing.T) {
	in := &storage.Inode{Mode: 0o644, Uid: 1000, Gid: 2000}
	err := Access(in, permWrite, CallerContext{Uid: 9999, Gid: 8888})
	require.Equal(t, fuse.EACCES, err)
}

// spec.md §4.5 checks the "other" triad unconditionally first: an owner
// whose own triad lacks the bit must still be permitted if "other" grants it.
func TestAccessOtherBitsGrantEvenWhenOwnerTriadDoesNot(t *testing.T) {
	in := &storage.Inode{Mode: 0o046, Uid: 1000, Gid: 2000}
	require.NoError(t, Access(in, permRead|permWrite, CallerContext{Uid: 1000, Gid: 1000}))
}

// Likewise for a group member whose group triad lacks the bit.
func TestAccessOtherBitsGrantEvenWhenGroupTriadDoesNot(t *testing.T) {
	in := &storage.Inode{Mode: 0o004, Uid: 1000, Gid: 2000}
	require.NoError(t, Access(in, permRead, CallerContext{Uid: 9999, Gid: 2000}))
}

func TestRequireOwnerOrRoot(t *testing.T) {
	in := &storage.Inode{Uid: 1000}
	require.NoError(t, RequireOwnerOrRoot(in, CallerContext{Uid: 1000}))
	require.NoError(t, RequireOwnerOrRoot(in, CallerContext{Uid: 0}))
	require.Equal(t, fuse.EACCES, RequireOwnerOrRoot(in, CallerContext{Uid: 9999}))
}

func TestRequireRoot(t *testing.T) {
	require.NoError(t, RequireRoot(CallerContext{Uid: 0}))
	require.Equal(t, fuse.EACCES, RequireRoot(CallerContext{Uid: 1000}))
}

func TestCallerContextString(t *testing.T) {
	c := CallerContext{Uid: 1, Gid: 2, Pid: 3}
	require.Equal(t, "uid=1 gid=2 pid=3", c.String())
}

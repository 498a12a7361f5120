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
	"errors"
	"testing"

	"github.com/dbfs/dbfs/openfile"
	"github.com/dbfs/dbfs/storage"
	"github.com/jacobsa/fuse"
	"github.com/stretchr/testify/require"
)

func TestToFuseErrorNil(t *testing.T) {
	require.NoError(t, toFuseError(nil))
}

func TestToFuseErrorNotFound(t *testing.T) {
	require.Equal(t, fuse.ENOENT, toFuseError(storage.ErrNotFound))
}

func TestToFuseErrorExist(t *testing.T) {
	require.Equal(t, fuse.EEXIST, toFuseError(storage.ErrExist))
}

func TestToFuseErrorNotEmpty(t *testing.T) {
	require.Equal(t, fuse.ENOTEMPTY, toFuseError(storage.ErrNotEmpty))
}

func TestToFuseErrorOpenfileAccess(t *testing.T) {
	require.Equal(t, fuse.EACCES, toFuseError(openfile.ErrAccess))
}

func TestToFuseErrorWrapped(t *testing.T) {
	wrapped := errors.New("context: " + storage.ErrNotFound.Error())
	require.Equal(t, wrapped, toFuseError(wrapped))

	joined := errors.Join(storage.ErrNotFound)
	require.Equal(t, fuse.ENOENT, toFuseError(joined))
}

func TestToFuseErrorPassesThroughUnknown(t *testing.T) {
	custom := errors.New("boom")
	require.Equal(t, custom, toFuseError(custom))
}

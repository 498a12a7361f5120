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

	"github.com/dbfs/dbfs/openfile"
	"github.com/dbfs/dbfs/storage"
	"github.com/jacobsa/fuse"
)

// toFuseError translates a storage-layer or openfile-layer error into the
// errno sentinel values jacobsa/fuse recognizes, so the kernel sees
// ENOENT/EEXIST/ENOTEMPTY/EACCES instead of an opaque EIO.
func toFuseError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, storage.ErrNotFound):
		return fuse.ENOENT
	case errors.Is(err, storage.ErrExist):
		return fuse.EEXIST
	case errors.Is(err, storage.ErrNotEmpty):
		return fuse.ENOTEMPTY
	case errors.Is(err, openfile.ErrAccess):
		return fuse.EACCES
	default:
		return err
	}
}

// Copyright 2024 Google LLC
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

package common

// FUSE operation names, used as the fs_op attribute on every ops metric.
const (
	OpStatFS             = "StatFS"
	OpLookUpInode        = "LookUpInode"
	OpGetInodeAttributes = "GetInodeAttributes"
	OpSetInodeAttributes = "SetInodeAttributes"
	OpForgetInode        = "ForgetInode"
	OpMkDir              = "MkDir"
	OpMkNode             = "MkNode"
	OpCreateFile         = "CreateFile"
	OpCreateLink         = "CreateLink"
	OpCreateSymlink      = "CreateSymlink"
	OpRename             = "Rename"
	OpRmDir              = "RmDir"
	OpUnlink             = "Unlink"
	OpOpenDir            = "OpenDir"
	OpReadDir            = "ReadDir"
	OpReleaseDirHandle   = "ReleaseDirHandle"
	OpOpenFile           = "OpenFile"
	OpReadFile           = "ReadFile"
	OpWriteFile          = "WriteFile"
	OpSyncFile           = "SyncFile"
	OpFlushFile          = "FlushFile"
	OpReleaseFileHandle  = "ReleaseFileHandle"
	OpReadSymlink        = "ReadSymlink"
	OpDestroy            = "Destroy"
)

// Error categories, used as the error_category attribute on the ops
// and query error-count metrics.
const (
	ErrCategoryNotFound   = "NOT_FOUND"
	ErrCategoryExists     = "FILE_EXISTS"
	ErrCategoryNotEmpty   = "DIR_NOT_EMPTY"
	ErrCategoryNotADir    = "NOT_A_DIR"
	ErrCategoryPermission = "PERM_ERROR"
	ErrCategoryInvalid    = "INVALID_ARGUMENT"
	ErrCategoryNotImpl    = "NOT_IMPLEMENTED"
	ErrCategoryDatabase   = "DATABASE_ERROR"
	ErrCategoryMisc       = "MISC_ERROR"
)

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
	"fmt"
	"os/user"
	"strconv"
	"sync"

	"github.com/dbfs/dbfs/storage"
	"github.com/jacobsa/fuse"
)

// Permission bits, in the conventional POSIX ordering within each triad.
const (
	permRead  uint32 = 0o4
	permWrite uint32 = 0o2
	permExec  uint32 = 0o1
)

// CallerContext is the calling process identity the kernel bridge attaches
// to every op via fuseops.OpContext.
type CallerContext struct {
	Uid uint32
	Gid uint32
	Pid uint32
}

// groupMembership memoizes a uid's supplementary group set, since
// user.LookupId and User.GroupIds do a getgrent(3)-style scan that is too slow
// to repeat on every permission check.
var groupMembership sync.Map // uint32 (uid) -> []uint32 (gids)

func groupsForUid(uid uint32) []uint32 {
	if cached, ok := groupMembership.Load(uid); ok {
		return cached.([]uint32)
	}

	u, err := user.LookupId(strconv.FormatUint(uint64(uid), 10))
	if err != nil {
		groupMembership.Store(uid, []uint32{})
		return nil
	}

	names, err := u.GroupIds()
	if err != nil {
		groupMembership.Store(uid, []uint32{})
		return nil
	}

	gids := make([]uint32, 0, len(names))
	for _, name := range names {
		g, err := strconv.ParseUint(name, 10, 32)
		if err != nil {
			continue
		}
		gids = append(gids, uint32(g))
	}

	groupMembership.Store(uid, gids)
	return gids
}

// Access checks whether caller may perform an operation requiring
// requiredMode (some combination of permRead/permWrite/permExec) against
// in, following spec.md §4.5's first-match-wins order:
//
//  1. The "other" triad (bits 2-0) is checked unconditionally first; if it
//     already grants requiredMode, permit immediately regardless of identity.
//  2. Root (uid 0) may do anything.
//  3. Owner: check the owner triad (bits 8-6 of mode).
//  4. Member of the owning group, or any supplementary group matching gid:
//     check the group triad (bits 5-3).
//  5. Deny with EACCES if none of the above granted requiredMode.
func Access(in *storage.Inode, requiredMode uint32, caller CallerContext) error {
	if in.Mode&0o7&requiredMode == requiredMode {
		return nil
	}

	if caller.Uid == 0 {
		return nil
	}

	if caller.Uid == in.Uid {
		if (in.Mode>>6)&0o7&requiredMode == requiredMode {
			return nil
		}
	}

	if caller.Gid == in.Gid {
		if (in.Mode>>3)&0o7&requiredMode == requiredMode {
			return nil
		}
	} else {
		for _, g := range groupsForUid(caller.Uid) {
			if g == in.Gid {
				if (in.Mode>>3)&0o7&requiredMode == requiredMode {
					return nil
				}
				break
			}
		}
	}

	return fuse.EACCES
}

// RequireOwnerOrRoot is the chmod/chown permission rule: only the owning
// uid or root may change an inode's mode or ownership.
func RequireOwnerOrRoot(in *storage.Inode, caller CallerContext) error {
	if caller.Uid == 0 || caller.Uid == in.Uid {
		return nil
	}
	return fuse.EACCES
}

// RequireRoot is the chown rule: only root may reassign an inode's
// uid/gid.
func RequireRoot(caller CallerContext) error {
	if caller.Uid != 0 {
		return fuse.EACCES
	}
	return nil
}

func (c CallerContext) String() string {
	return fmt.Sprintf("uid=%d gid=%d pid=%d", c.Uid, c.Gid, c.Pid)
}

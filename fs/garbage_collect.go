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
	"fmt"
	"time"

	"github.com/dbfs/dbfs/logger"
	"github.com/dbfs/dbfs/storage"
)

// orphanSweepPeriod mirrors the teacher's ten-minute stale-tmp-object
// reaper interval. TryDestroy's single conditional delete already
// catches the common case at Unlink/RmDir/ReleaseFileHandle time; this
// sweep only matters after a crash leaves an inode with inuse=0 and no
// tree-node reference that nothing else will ever touch again.
const orphanSweepPeriod = 10 * time.Minute

// reapOrphansOnce deletes every inode with a zero in-use count and no
// remaining tree-node reference, returning how many were removed.
func reapOrphansOnce(ctx context.Context, store *storage.Store) (uint64, error) {
	ids, err := store.ListOrphanCandidates(ctx)
	if err != nil {
		return 0, fmt.Errorf("ListOrphanCandidates: %w", err)
	}

	var destroyed uint64
	for _, id := range ids {
		ok, err := store.TryDestroy(ctx, id)
		if err != nil {
			return destroyed, fmt.Errorf("TryDestroy(%d): %w", id, err)
		}
		if ok {
			destroyed++
		}
	}
	return destroyed, nil
}

// reapOrphans runs reapOrphansOnce on a fixed period until ctx is
// cancelled, logging each run the way the teacher's garbage collector
// logs its GCS sweeps.
func reapOrphans(ctx context.Context, store *storage.Store) {
	ticker := time.NewTicker(orphanSweepPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			start := time.Now()
			n, err := reapOrphansOnce(ctx, store)
			if err != nil {
				logger.Errorf("orphan sweep failed after destroying %d inodes in %v: %v", n, time.Since(start), err)
				continue
			}
			logger.Infof("orphan sweep destroyed %d inodes in %v", n, time.Since(start))
		}
	}
}

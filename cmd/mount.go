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

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/user"
	"strconv"

	"github.com/dbfs/dbfs/cfg"
	"github.com/dbfs/dbfs/clock"
	"github.com/dbfs/dbfs/common"
	"github.com/dbfs/dbfs/fs"
	"github.com/dbfs/dbfs/fs/inode"
	"github.com/dbfs/dbfs/logger"
	"github.com/dbfs/dbfs/storage"
	"github.com/jacobsa/fuse"
	"github.com/jacobsa/syncutil"
)

// myUserAndGroup returns the uid/gid the current process runs as, used as
// the fallback owner when the config leaves --uid/--gid at -1.
func myUserAndGroup() (uid, gid uint32, err error) {
	u, err := user.Current()
	if err != nil {
		return 0, 0, fmt.Errorf("user.Current: %w", err)
	}

	uid64, err := strconv.ParseUint(u.Uid, 10, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("parsing uid %q: %w", u.Uid, err)
	}
	gid64, err := strconv.ParseUint(u.Gid, 10, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("parsing gid %q: %w", u.Gid, err)
	}
	return uint32(uid64), uint32(gid64), nil
}

// severityFromConfig translates the config's logging severity into the
// logger package's own Severity enum.
func severityFromConfig(s cfg.LogSeverity) logger.Severity {
	switch s {
	case cfg.TraceLogSeverity:
		return logger.LevelTrace
	case cfg.DebugLogSeverity:
		return logger.LevelDebug
	case cfg.InfoLogSeverity:
		return logger.LevelInfo
	case cfg.WarningLogSeverity:
		return logger.LevelWarning
	case cfg.ErrorLogSeverity:
		return logger.LevelError
	default:
		return logger.LevelOff
	}
}

// openRoot opens (or, on a fresh database, creates) the volume's root
// tree-node and inode, returning the root inode id. It does not check that
// id; fs.NewFileSystem rejects a root whose id differs from the fixed
// fuseops.RootInodeID, so only a volume whose root is the very first inode
// created in this database can serve as a mount's root.
func openRoot(ctx context.Context, store *storage.Store, volume string, uid, gid uint32, dirMode uint32, now int64) (int64, error) {
	root, err := store.LookupRoot(ctx, volume)
	if err == nil {
		return root.InodeID, nil
	}
	if err != storage.ErrNotFound {
		return 0, fmt.Errorf("LookupRoot: %w", err)
	}

	inodeID, err := store.CreateInode(ctx, inode.SIFDIR|dirMode, uid, gid, now)
	if err != nil {
		return 0, fmt.Errorf("CreateInode: %w", err)
	}
	treeNodeID, err := store.CreateRoot(ctx, volume, inodeID)
	if err != nil {
		return 0, fmt.Errorf("CreateRoot: %w", err)
	}
	if _, err := store.CreateChild(ctx, treeNodeID, ".", inodeID); err != nil {
		return 0, fmt.Errorf("CreateChild(.): %w", err)
	}
	if _, err := store.CreateChild(ctx, treeNodeID, "..", inodeID); err != nil {
		return 0, fmt.Errorf("CreateChild(..): %w", err)
	}
	return inodeID, nil
}

// mountAndJoin opens the backing store, resolves the volume's root,
// constructs the dispatcher and mounts it, blocking until the kernel
// unmounts the file system.
func mountAndJoin(ctx context.Context, mountPoint string, newConfig *cfg.Config) error {
	if err := logger.Init(newConfig.Logging.Format, severityFromConfig(newConfig.Logging.Severity), newConfig.AppName); err != nil {
		return fmt.Errorf("logger.Init: %w", err)
	}

	if newConfig.Debug.ExitOnInvariantViolation {
		syncutil.EnableInvariantChecking()
	}

	store, err := storage.Open(string(newConfig.Database.Driver), newConfig.Database.DSN)
	if err != nil {
		return fmt.Errorf("storage.Open: %w", err)
	}

	uid, gid, err := myUserAndGroup()
	if err != nil {
		store.Close()
		return fmt.Errorf("myUserAndGroup: %w", err)
	}
	if newConfig.FileSystem.Uid >= 0 {
		uid = uint32(newConfig.FileSystem.Uid)
	}
	if newConfig.FileSystem.Gid >= 0 {
		gid = uint32(newConfig.FileSystem.Gid)
	}

	clk := clock.RealClock{}

	rootInodeID, err := openRoot(ctx, store, newConfig.Volume, uid, gid,
		uint32(newConfig.FileSystem.DirMode)&0o777, clk.Now().Unix())
	if err != nil {
		store.Close()
		return fmt.Errorf("openRoot: %w", err)
	}

	var metrics common.MetricHandle
	var metricsShutdown common.ShutdownFn
	if newConfig.Metrics.Enabled {
		metricsShutdown, err = common.ServeMetrics(newConfig.Metrics.Address)
		if err != nil {
			store.Close()
			return fmt.Errorf("common.ServeMetrics: %w", err)
		}
		defer metricsShutdown(context.Background())

		metrics, err = common.NewOTelMetrics()
		if err != nil {
			store.Close()
			return fmt.Errorf("common.NewOTelMetrics: %w", err)
		}
	} else {
		metrics = common.NewNoopMetrics()
	}

	logger.Infof("Creating a new server...")
	server, err := fs.NewFileSystem(fs.Config{
		Store:           store,
		Clock:           clk,
		Metrics:         metrics,
		RootInodeID:     rootInodeID,
		BlockBits:       uint(newConfig.FileSystem.BlockBits),
		BlocksReadAhead: int64(newConfig.FileSystem.BlocksReadAhead),
		Uid:             uid,
		Gid:             gid,
		FileMode:        os.FileMode(uint32(newConfig.FileSystem.FileMode) & 0o777),
		DirMode:         os.FileMode(uint32(newConfig.FileSystem.DirMode) & 0o777),
	})
	if err != nil {
		store.Close()
		return fmt.Errorf("fs.NewFileSystem: %w", err)
	}

	name := fsName(newConfig.Volume)
	logger.Infof("Mounting file system %q at %q...", name, mountPoint)

	mountCfg := getFuseMountConfig(name, newConfig)
	mfs, err := fuse.Mount(mountPoint, server, mountCfg)
	if err != nil {
		store.Close()
		return fmt.Errorf("mount: %w", err)
	}

	if err := mfs.Join(ctx); err != nil {
		store.Close()
		return fmt.Errorf("MountedFileSystem.Join: %w", err)
	}
	return store.Close()
}

func fsName(volume string) string {
	return "dbfs:" + volume
}

// getFuseMountConfig builds the jacobsa/fuse mount options, wiring this
// codebase's own structured logger in as the fuse bridge's debug/error
// loggers the same way the rest of the stack logs through it.
func getFuseMountConfig(fsName string, newConfig *cfg.Config) *fuse.MountConfig {
	parsedOptions := make(map[string]string)
	for _, o := range newConfig.FileSystem.FuseOptions {
		parsedOptions[o] = ""
	}

	mountCfg := &fuse.MountConfig{
		FSName:     fsName,
		Subtype:    "dbfs",
		VolumeName: newConfig.Volume,
		Options:    parsedOptions,
	}

	if newConfig.Logging.Severity.Rank() <= cfg.ErrorLogSeverity.Rank() {
		mountCfg.ErrorLogger = logger.NewLegacyLogger(logger.LevelError, "fuse: ", fsName)
	}
	if newConfig.Logging.Severity.Rank() <= cfg.TraceLogSeverity.Rank() {
		mountCfg.DebugLogger = logger.NewLegacyLogger(logger.LevelTrace, "fuse_debug: ", fsName)
	}
	return mountCfg
}

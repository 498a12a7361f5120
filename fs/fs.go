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

// Package fs implements the fuseops.FileSystem dispatcher: the bridge
// between jacobsa/fuse's per-request ops and the storage package's SQL
// rows. Every inode the kernel knows about is identified by its stable
// storage-layer inode id, so (unlike a GCS-object-backed file system)
// there is no separate generation-tracking or name-keyed inode cache —
// one flat map from fuseops.InodeID to an in-memory wrapper suffices.
package fs

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/dbfs/dbfs/clock"
	"github.com/dbfs/dbfs/common"
	"github.com/dbfs/dbfs/fs/inode"
	"github.com/dbfs/dbfs/logger"
	"github.com/dbfs/dbfs/openfile"
	"github.com/dbfs/dbfs/storage"
	"github.com/jacobsa/fuse"
	"github.com/jacobsa/fuse/fuseops"
	"github.com/jacobsa/fuse/fuseutil"
	"github.com/jacobsa/syncutil"
)

// Config bundles the values NewFileSystem needs, mirroring the teacher's
// own fs.ServerConfig staging struct.
type Config struct {
	Store           *storage.Store
	Clock           clock.Clock
	Metrics         common.MetricHandle
	RootInodeID     int64
	BlockBits       uint
	BlocksReadAhead int64
	Uid             uint32
	Gid             uint32
	FileMode        os.FileMode
	DirMode         os.FileMode
}

// NewFileSystem constructs the dispatcher and wraps it as a fuse.Server.
// RootInodeID must be 1 (fuseops.RootInodeID): the kernel always refers
// to the mount's root by that fixed number, so the volume's root
// tree-node must be the very first inode a fresh database creates.
func NewFileSystem(cfg Config) (fuse.Server, error) {
	if cfg.RootInodeID != int64(fuseops.RootInodeID) {
		return nil, fmt.Errorf("fs: volume root inode id %d, want %d (fuseops.RootInodeID)", cfg.RootInodeID, fuseops.RootInodeID)
	}

	fs := &fileSystem{
		store:           cfg.Store,
		clock:           cfg.Clock,
		metrics:         cfg.Metrics,
		blockBits:       cfg.BlockBits,
		blocksReadAhead: cfg.BlocksReadAhead,
		uid:             cfg.Uid,
		gid:             cfg.Gid,
		fileMode:        cfg.FileMode,
		dirMode:         cfg.DirMode,
		inodes:          make(map[fuseops.InodeID]inode.Inode),
		handles:         make(map[fuseops.HandleID]interface{}),
	}

	root := inode.NewDirInode(fuseops.RootInodeID)
	root.IncrementLookupCount()
	fs.inodes[fuseops.RootInodeID] = root

	fs.mu = syncutil.NewInvariantMutex(fs.checkInvariants)

	var gcCtx context.Context
	gcCtx, fs.stopOrphanSweep = context.WithCancel(context.Background())
	go reapOrphans(gcCtx, fs.store)

	return fuseutil.NewFileSystemServer(fs), nil
}

// fileSystem implements fuseops.FileSystem (via duck typing, passed to
// fuseutil.NewFileSystemServer). Unlike the teacher, whose inode cache is
// keyed by GCS object name plus generation, identity here is just the
// storage-layer inode id, so one flat map suffices for every inode type.
//
// Lock ordering: for any inode lock I and the file system lock FS,
// I < FS must never be acquired as FS then I; we always take fs.mu only
// to mutate the handle/inode maps themselves, never while holding an
// inode's own lock.
type fileSystem struct {
	fuseutil.NotImplementedFileSystem

	store   *storage.Store
	clock   clock.Clock
	metrics common.MetricHandle

	blockBits       uint
	blocksReadAhead int64

	// The defaults applied at mount time; spec.md leaves no per-mount
	// negotiation beyond what CreateInode/MkDir/etc. are given directly.
	uid      uint32
	gid      uint32
	fileMode os.FileMode
	dirMode  os.FileMode

	mu syncutil.InvariantMutex

	// GUARDED_BY(mu)
	inodes map[fuseops.InodeID]inode.Inode

	// GUARDED_BY(mu). Holds *fileHandle or *dirHandle.
	handles map[fuseops.HandleID]interface{}

	// GUARDED_BY(mu)
	nextHandleID fuseops.HandleID

	stopOrphanSweep context.CancelFunc
}

func (fs *fileSystem) checkInvariants() {
	for id, in := range fs.inodes {
		if in.ID() != id {
			panic(fmt.Sprintf("inode map key %v has ID() == %v", id, in.ID()))
		}
	}
}

func (fs *fileSystem) now() int64 {
	return fs.clock.Now().Unix()
}

// callerFromHeader converts the kernel-supplied request header into the
// permission engine's caller identity.
func callerFromHeader(h fuseops.OpHeader) CallerContext {
	return CallerContext{Uid: h.Uid, Gid: h.Gid, Pid: h.Pid}
}

// mintInode wraps a freshly-fetched or freshly-created storage inode id
// in the in-memory type matching its mode bits.
func mintInode(mode uint32, id int64) lockableInode {
	switch mode & inode.SIFMT {
	case inode.SIFDIR:
		return inode.NewDirInode(fuseops.InodeID(id))
	case inode.SIFLNK:
		return inode.NewSymlinkInode(fuseops.InodeID(id))
	default:
		return inode.NewFileInode(fuseops.InodeID(id))
	}
}

// lockableInode is satisfied by every concrete inode.Inode type; the
// Inode interface itself omits Lock/Unlock so collaborators that only
// need attributes aren't forced to deal with locking.
type lockableInode interface {
	inode.Inode
	Lock()
	Unlock()
}

// getInode returns the in-memory wrapper for id, minting and caching one
// from storage if this is the first time the dispatcher has seen it.
//
// LOCKS_EXCLUDED(fs.mu)
func (fs *fileSystem) getInode(ctx context.Context, id fuseops.InodeID) (lockableInode, error) {
	fs.mu.Lock()
	if in, ok := fs.inodes[id]; ok {
		fs.mu.Unlock()
		return in.(lockableInode), nil
	}
	fs.mu.Unlock()

	st, err := fs.store.GetInode(ctx, int64(id))
	if err != nil {
		return nil, toFuseError(err)
	}

	in := mintInode(st.Mode, int64(id))

	fs.mu.Lock()
	if existing, ok := fs.inodes[id]; ok {
		fs.mu.Unlock()
		return existing.(lockableInode), nil
	}
	fs.inodes[id] = in
	fs.mu.Unlock()

	return in, nil
}

// recordOp wraps a dispatcher method body with FSOps metrics and
// error logging at the propagation boundary, mirroring the teacher's
// logger.Errorf call sites.
func (fs *fileSystem) recordOp(ctx context.Context, op string, fn func() error) error {
	start := fs.clock.Now()
	err := fn()
	fs.metrics.FSOpsCount(1, op)
	fs.metrics.FSOpsLatency(ctx, fs.clock.Now().Sub(start), op)
	if err != nil {
		fs.metrics.FSOpsErrorCount(1, errCategory(err), op)
		if err != fuse.ENOENT {
			logger.Errorf("%s: %v", op, err)
		}
	}
	return err
}

func errCategory(err error) string {
	switch err {
	case fuse.ENOENT:
		return common.ErrCategoryNotFound
	case fuse.EEXIST:
		return common.ErrCategoryExists
	case fuse.ENOTEMPTY:
		return common.ErrCategoryNotEmpty
	case fuse.ENOTDIR:
		return common.ErrCategoryNotADir
	case fuse.EACCES:
		return common.ErrCategoryPermission
	case fuse.EINVAL:
		return common.ErrCategoryInvalid
	case fuse.ENOSYS:
		return common.ErrCategoryNotImpl
	default:
		return common.ErrCategoryMisc
	}
}

////////////////////////////////////////////////////////////////////////
// Inode lifecycle
////////////////////////////////////////////////////////////////////////

func (fs *fileSystem) Init(op *fuseops.InitOp) error {
	return nil
}

// LOCKS_EXCLUDED(fs.mu)
func (fs *fileSystem) LookUpInode(op *fuseops.LookUpInodeOp) error {
	ctx := op.Context()
	return fs.recordOp(ctx, common.OpLookUpInode, func() error {
		parent, err := fs.getInode(ctx, op.Parent)
		if err != nil {
			return err
		}
		parentDir, ok := parent.(*inode.DirInode)
		if !ok {
			return fuse.ENOTDIR
		}

		parentSt, err := fs.store.GetInode(ctx, int64(op.Parent))
		if err != nil {
			return toFuseError(err)
		}
		if err := Access(parentSt, permExec, callerFromHeader(op.Header)); err != nil {
			return err
		}

		treeNodeID, err := parentDir.TreeNodeID(ctx, fs.store)
		if err != nil {
			return fmt.Errorf("TreeNodeID: %w", err)
		}

		tn, err := fs.store.LookupChild(ctx, treeNodeID, op.Name)
		if err != nil {
			return toFuseError(err)
		}

		child, err := fs.getInode(ctx, fuseops.InodeID(tn.InodeID))
		if err != nil {
			return err
		}
		child.IncrementLookupCount()

		op.Entry.Child = child.ID()
		op.Entry.Attributes, err = child.Attributes(ctx, fs.store)
		return err
	})
}

// LOCKS_EXCLUDED(fs.mu)
func (fs *fileSystem) GetInodeAttributes(op *fuseops.GetInodeAttributesOp) error {
	ctx := op.Context()
	return fs.recordOp(ctx, common.OpGetInodeAttributes, func() error {
		in, err := fs.getInode(ctx, op.Inode)
		if err != nil {
			return err
		}
		op.Attributes, err = in.Attributes(ctx, fs.store)
		return err
	})
}

// LOCKS_EXCLUDED(fs.mu)
func (fs *fileSystem) SetInodeAttributes(op *fuseops.SetInodeAttributesOp) error {
	ctx := op.Context()
	return fs.recordOp(ctx, common.OpSetInodeAttributes, func() error {
		in, err := fs.getInode(ctx, op.Inode)
		if err != nil {
			return err
		}

		st, err := fs.store.GetInode(ctx, int64(op.Inode))
		if err != nil {
			return toFuseError(err)
		}
		caller := callerFromHeader(op.Header)
		now := fs.now()

		if op.Mode != nil {
			if err := RequireOwnerOrRoot(st, caller); err != nil {
				return err
			}
			typeBits := st.Mode & inode.SIFMT
			if err := fs.store.UpdateMode(ctx, int64(op.Inode), inode.ModeToUnix(typeBits, *op.Mode), now); err != nil {
				return err
			}
		}

		if op.Atime != nil || op.Mtime != nil {
			if err := Access(st, permWrite, caller); err != nil {
				return err
			}
			var atime, mtime *int64
			if op.Atime != nil {
				v := op.Atime.Unix()
				atime = &v
			}
			if op.Mtime != nil {
				v := op.Mtime.Unix()
				mtime = &v
			}
			if err := fs.store.UpdateTimes(ctx, int64(op.Inode), atime, mtime, now); err != nil {
				return err
			}
		}

		if op.Size != nil {
			if err := Access(st, permWrite, caller); err != nil {
				return err
			}
			fh, err := fs.fileHandleForInode(ctx, op.Inode)
			if err != nil {
				return err
			}
			if err := fh.file.Truncate(ctx, int64(*op.Size)); err != nil {
				return toFuseError(err)
			}
		}

		op.Attributes, err = in.Attributes(ctx, fs.store)
		return err
	})
}

// fileHandleForInode finds any currently-open handle for inode, used by
// ftruncate-via-SetInodeAttributes. If no handle is open, a scratch one
// is opened (and left open) around the truncate so size still changes
// even for an O_RDONLY-less, handle-less truncate(2) call.
//
// LOCKS_EXCLUDED(fs.mu)
func (fs *fileSystem) fileHandleForInode(ctx context.Context, id fuseops.InodeID) (*fileHandle, error) {
	fs.mu.Lock()
	for _, h := range fs.handles {
		if fh, ok := h.(*fileHandle); ok && fh.inodeID == id {
			fs.mu.Unlock()
			return fh, nil
		}
	}
	fs.mu.Unlock()

	of, err := openfile.Open(ctx, fs.store, fs.clock, int64(id), fs.blockBits, fs.blocksReadAhead, false, false, false)
	if err != nil {
		return nil, toFuseError(err)
	}
	return &fileHandle{inodeID: id, file: of}, nil
}

// LOCKS_EXCLUDED(fs.mu)
func (fs *fileSystem) ForgetInode(op *fuseops.ForgetInodeOp) error {
	ctx := op.Context()
	return fs.recordOp(ctx, common.OpForgetInode, func() error {
		fs.mu.Lock()
		in, ok := fs.inodes[op.Inode]
		if !ok {
			fs.mu.Unlock()
			return nil
		}
		destroyed := in.DecrementLookupCount(op.N)
		if destroyed {
			delete(fs.inodes, op.Inode)
		}
		fs.mu.Unlock()

		if destroyed {
			if _, err := fs.store.TryDestroy(ctx, int64(op.Inode)); err != nil {
				return err
			}
		}
		return nil
	})
}

////////////////////////////////////////////////////////////////////////
// Directory mutation
////////////////////////////////////////////////////////////////////////

// createChild is the common body of MkDir/MkNode/CreateFile/CreateSymlink:
// create an inode, bind it under parent as name, and return the new
// in-memory wrapper. content, if non-empty, becomes block 0 (used for
// symlink targets).
//
// LOCKS_EXCLUDED(fs.mu)
func (fs *fileSystem) createChild(ctx context.Context, parentID fuseops.InodeID, name string, mode uint32, caller CallerContext, content []byte) (inode.Inode, error) {
	parent, err := fs.getInode(ctx, parentID)
	if err != nil {
		return nil, err
	}
	parentDir, ok := parent.(*inode.DirInode)
	if !ok {
		return nil, fuse.ENOTDIR
	}

	parentSt, err := fs.store.GetInode(ctx, int64(parentID))
	if err != nil {
		return nil, toFuseError(err)
	}
	if err := Access(parentSt, permWrite, caller); err != nil {
		return nil, err
	}

	treeNodeID, err := parentDir.TreeNodeID(ctx, fs.store)
	if err != nil {
		return nil, fmt.Errorf("TreeNodeID: %w", err)
	}

	now := fs.now()
	tx, err := fs.store.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	inodeID, err := fs.store.CreateInodeTx(ctx, tx, mode, caller.Uid, caller.Gid, now)
	if err != nil {
		return nil, toFuseError(err)
	}
	childTreeNodeID, err := fs.store.CreateChildTx(ctx, tx, treeNodeID, name, inodeID)
	if err != nil {
		return nil, toFuseError(err)
	}

	if mode&inode.SIFMT == inode.SIFDIR {
		if _, err := fs.store.CreateChildTx(ctx, tx, childTreeNodeID, ".", inodeID); err != nil {
			return nil, err
		}
		if _, err := fs.store.CreateChildTx(ctx, tx, childTreeNodeID, "..", int64(parentID)); err != nil {
			return nil, err
		}
	}

	if len(content) > 0 {
		if _, err := fs.store.UpsertBlockTx(ctx, tx, inodeID, 0, content); err != nil {
			return nil, err
		}
		if err := fs.store.UpdateSizeTx(ctx, tx, inodeID, int64(len(content)), now); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, toFuseError(err)
	}

	child := mintInode(mode, inodeID)
	child.IncrementLookupCount()

	fs.mu.Lock()
	fs.inodes[child.ID()] = child
	fs.mu.Unlock()

	return child, nil
}

// LOCKS_EXCLUDED(fs.mu)
func (fs *fileSystem) MkDir(op *fuseops.MkDirOp) error {
	ctx := op.Context()
	return fs.recordOp(ctx, common.OpMkDir, func() error {
		mode := inode.ModeToUnix(inode.SIFDIR, op.Mode)
		child, err := fs.createChild(ctx, op.Parent, op.Name, mode, callerFromHeader(op.Header), nil)
		if err != nil {
			return err
		}
		op.Entry.Child = child.ID()
		op.Entry.Attributes, err = child.Attributes(ctx, fs.store)
		return err
	})
}

// LOCKS_EXCLUDED(fs.mu)
func (fs *fileSystem) MkNode(op *fuseops.MkNodeOp) error {
	ctx := op.Context()
	return fs.recordOp(ctx, common.OpMkNode, func() error {
		mode := inode.ModeToUnix(inode.SIFREG, op.Mode)
		child, err := fs.createChild(ctx, op.Parent, op.Name, mode, callerFromHeader(op.Header), nil)
		if err != nil {
			return err
		}
		op.Entry.Child = child.ID()
		op.Entry.Attributes, err = child.Attributes(ctx, fs.store)
		return err
	})
}

// LOCKS_EXCLUDED(fs.mu)
func (fs *fileSystem) CreateFile(op *fuseops.CreateFileOp) error {
	ctx := op.Context()
	return fs.recordOp(ctx, common.OpCreateFile, func() error {
		mode := inode.ModeToUnix(inode.SIFREG, op.Mode)
		child, err := fs.createChild(ctx, op.Parent, op.Name, mode, callerFromHeader(op.Header), nil)
		if err != nil {
			return err
		}
		op.Entry.Child = child.ID()
		op.Entry.Attributes, err = child.Attributes(ctx, fs.store)
		if err != nil {
			return err
		}

		of, err := openfile.Open(ctx, fs.store, fs.clock, int64(child.ID()), fs.blockBits, fs.blocksReadAhead, false, false, false)
		if err != nil {
			return toFuseError(err)
		}

		fs.mu.Lock()
		handleID := fs.allocHandleID()
		fs.handles[handleID] = &fileHandle{inodeID: child.ID(), file: of}
		fs.mu.Unlock()

		op.Handle = handleID
		return nil
	})
}

// LOCKS_EXCLUDED(fs.mu)
func (fs *fileSystem) CreateSymlink(op *fuseops.CreateSymlinkOp) error {
	ctx := op.Context()
	return fs.recordOp(ctx, common.OpCreateSymlink, func() error {
		mode := inode.ModeToUnix(inode.SIFLNK, 0o777)
		child, err := fs.createChild(ctx, op.Parent, op.Name, mode, callerFromHeader(op.Header), []byte(op.Target))
		if err != nil {
			return err
		}
		op.Entry.Child = child.ID()
		op.Entry.Attributes, err = child.Attributes(ctx, fs.store)
		return err
	})
}

// LOCKS_EXCLUDED(fs.mu)
func (fs *fileSystem) CreateLink(op *fuseops.CreateLinkOp) error {
	ctx := op.Context()
	return fs.recordOp(ctx, common.OpCreateLink, func() error {
		parent, err := fs.getInode(ctx, op.Parent)
		if err != nil {
			return err
		}
		parentDir, ok := parent.(*inode.DirInode)
		if !ok {
			return fuse.ENOTDIR
		}

		caller := callerFromHeader(op.Header)
		parentSt, err := fs.store.GetInode(ctx, int64(op.Parent))
		if err != nil {
			return toFuseError(err)
		}
		if err := Access(parentSt, permWrite, caller); err != nil {
			return err
		}

		treeNodeID, err := parentDir.TreeNodeID(ctx, fs.store)
		if err != nil {
			return fmt.Errorf("TreeNodeID: %w", err)
		}

		if _, err := fs.store.CreateChild(ctx, treeNodeID, op.Name, int64(op.Target)); err != nil {
			return toFuseError(err)
		}

		target, err := fs.getInode(ctx, op.Target)
		if err != nil {
			return err
		}
		target.IncrementLookupCount()

		op.Entry.Child = target.ID()
		op.Entry.Attributes, err = target.Attributes(ctx, fs.store)
		return err
	})
}

// LOCKS_EXCLUDED(fs.mu)
func (fs *fileSystem) Rename(op *fuseops.RenameOp) error {
	ctx := op.Context()
	return fs.recordOp(ctx, common.OpRename, func() error {
		oldParent, err := fs.getInode(ctx, op.OldParent)
		if err != nil {
			return err
		}
		oldParentDir, ok := oldParent.(*inode.DirInode)
		if !ok {
			return fuse.ENOTDIR
		}
		newParent, err := fs.getInode(ctx, op.NewParent)
		if err != nil {
			return err
		}
		newParentDir, ok := newParent.(*inode.DirInode)
		if !ok {
			return fuse.ENOTDIR
		}

		caller := callerFromHeader(op.Header)
		oldParentSt, err := fs.store.GetInode(ctx, int64(op.OldParent))
		if err != nil {
			return toFuseError(err)
		}
		if err := Access(oldParentSt, permWrite, caller); err != nil {
			return err
		}
		newParentSt, err := fs.store.GetInode(ctx, int64(op.NewParent))
		if err != nil {
			return toFuseError(err)
		}
		if err := Access(newParentSt, permWrite, caller); err != nil {
			return err
		}

		oldTreeNodeID, err := oldParentDir.TreeNodeID(ctx, fs.store)
		if err != nil {
			return err
		}
		newTreeNodeID, err := newParentDir.TreeNodeID(ctx, fs.store)
		if err != nil {
			return err
		}

		entry, err := fs.store.LookupChild(ctx, oldTreeNodeID, op.OldName)
		if err != nil {
			return toFuseError(err)
		}

		tx, err := fs.store.BeginTx(ctx)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		if existing, err := fs.store.LookupChildTx(ctx, tx, newTreeNodeID, op.NewName); err == nil {
			if err := fs.store.DeleteTreeNodeTx(ctx, tx, existing.ID); err != nil {
				return err
			}
			if _, err := fs.store.TryDestroyTx(ctx, tx, existing.InodeID); err != nil {
				return err
			}
		} else if err != storage.ErrNotFound {
			return toFuseError(err)
		}

		if err := fs.store.RenameTreeNodeTx(ctx, tx, entry.ID, newTreeNodeID, op.NewName); err != nil {
			return toFuseError(err)
		}

		entrySt, err := fs.store.GetInodeTx(ctx, tx, entry.InodeID)
		if err != nil {
			return err
		}
		if entrySt.Mode&inode.SIFMT == inode.SIFDIR && op.OldParent != op.NewParent {
			if err := fs.store.RewriteDotDotTx(ctx, tx, entry.InodeID, int64(op.NewParent)); err != nil {
				return err
			}
		}

		now := fs.now()
		if err := fs.store.UpdateTimesTx(ctx, tx, int64(op.OldParent), nil, &now, now); err != nil {
			return err
		}
		if op.OldParent != op.NewParent {
			if err := fs.store.UpdateTimesTx(ctx, tx, int64(op.NewParent), nil, &now, now); err != nil {
				return err
			}
		}

		return toFuseError(tx.Commit())
	})
}

// LOCKS_EXCLUDED(fs.mu)
func (fs *fileSystem) RmDir(op *fuseops.RmDirOp) error {
	ctx := op.Context()
	return fs.recordOp(ctx, common.OpRmDir, func() error {
		parent, err := fs.getInode(ctx, op.Parent)
		if err != nil {
			return err
		}
		parentDir, ok := parent.(*inode.DirInode)
		if !ok {
			return fuse.ENOTDIR
		}

		caller := callerFromHeader(op.Header)
		parentSt, err := fs.store.GetInode(ctx, int64(op.Parent))
		if err != nil {
			return toFuseError(err)
		}
		if err := Access(parentSt, permWrite, caller); err != nil {
			return err
		}

		treeNodeID, err := parentDir.TreeNodeID(ctx, fs.store)
		if err != nil {
			return err
		}

		entry, err := fs.store.LookupChild(ctx, treeNodeID, op.Name)
		if err != nil {
			return toFuseError(err)
		}

		tx, err := fs.store.BeginTx(ctx)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		// Only "." and ".." may remain.
		n, err := fs.store.CountChildrenTx(ctx, tx, entry.ID)
		if err != nil {
			return err
		}
		if n > 2 {
			return fuse.ENOTEMPTY
		}

		if err := fs.store.DeleteTreeNodeTx(ctx, tx, entry.ID); err != nil {
			return err
		}
		if _, err := fs.store.TryDestroyTx(ctx, tx, entry.InodeID); err != nil {
			return err
		}

		return toFuseError(tx.Commit())
	})
}

// LOCKS_EXCLUDED(fs.mu)
func (fs *fileSystem) Unlink(op *fuseops.UnlinkOp) error {
	ctx := op.Context()
	return fs.recordOp(ctx, common.OpUnlink, func() error {
		parent, err := fs.getInode(ctx, op.Parent)
		if err != nil {
			return err
		}
		parentDir, ok := parent.(*inode.DirInode)
		if !ok {
			return fuse.ENOTDIR
		}

		caller := callerFromHeader(op.Header)
		parentSt, err := fs.store.GetInode(ctx, int64(op.Parent))
		if err != nil {
			return toFuseError(err)
		}
		if err := Access(parentSt, permWrite, caller); err != nil {
			return err
		}

		treeNodeID, err := parentDir.TreeNodeID(ctx, fs.store)
		if err != nil {
			return err
		}

		entry, err := fs.store.LookupChild(ctx, treeNodeID, op.Name)
		if err != nil {
			return toFuseError(err)
		}

		tx, err := fs.store.BeginTx(ctx)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		if err := fs.store.DeleteTreeNodeTx(ctx, tx, entry.ID); err != nil {
			return err
		}
		// A handle may still be open against this inode; TryDestroy's
		// conditional delete (inuse=0 AND no remaining tree-node) only
		// succeeds once the last handle closes.
		if _, err := fs.store.TryDestroyTx(ctx, tx, entry.InodeID); err != nil {
			return err
		}

		return toFuseError(tx.Commit())
	})
}

////////////////////////////////////////////////////////////////////////
// Directory handles
////////////////////////////////////////////////////////////////////////

// LOCKS_EXCLUDED(fs.mu)
func (fs *fileSystem) OpenDir(op *fuseops.OpenDirOp) error {
	ctx := op.Context()
	return fs.recordOp(ctx, common.OpOpenDir, func() error {
		in, err := fs.getInode(ctx, op.Inode)
		if err != nil {
			return err
		}
		dir, ok := in.(*inode.DirInode)
		if !ok {
			return fuse.ENOTDIR
		}

		st, err := fs.store.GetInode(ctx, int64(op.Inode))
		if err != nil {
			return toFuseError(err)
		}
		if err := Access(st, permRead, callerFromHeader(op.Header)); err != nil {
			return err
		}

		fs.mu.Lock()
		handleID := fs.allocHandleID()
		fs.handles[handleID] = newDirHandle(dir)
		fs.mu.Unlock()

		op.Handle = handleID
		return nil
	})
}

// LOCKS_EXCLUDED(fs.mu)
func (fs *fileSystem) ReadDir(op *fuseops.ReadDirOp) error {
	ctx := op.Context()
	return fs.recordOp(ctx, common.OpReadDir, func() error {
		fs.mu.Lock()
		h, ok := fs.handles[op.Handle]
		fs.mu.Unlock()
		if !ok {
			return fuse.EINVAL
		}
		dh, ok := h.(*dirHandle)
		if !ok {
			return fuse.EINVAL
		}

		dh.Mu.Lock()
		defer dh.Mu.Unlock()
		return dh.ReadDir(ctx, fs.store, op)
	})
}

// LOCKS_EXCLUDED(fs.mu)
func (fs *fileSystem) ReleaseDirHandle(op *fuseops.ReleaseDirHandleOp) error {
	return fs.recordOp(context.Background(), common.OpReleaseDirHandle, func() error {
		fs.mu.Lock()
		defer fs.mu.Unlock()
		delete(fs.handles, op.Handle)
		return nil
	})
}

////////////////////////////////////////////////////////////////////////
// File handles
////////////////////////////////////////////////////////////////////////

// LOCKS_EXCLUDED(fs.mu)
func (fs *fileSystem) OpenFile(op *fuseops.OpenFileOp) error {
	ctx := op.Context()
	return fs.recordOp(ctx, common.OpOpenFile, func() error {
		in, err := fs.getInode(ctx, op.Inode)
		if err != nil {
			return err
		}
		if _, ok := in.(*inode.FileInode); !ok {
			return fuse.EINVAL
		}

		st, err := fs.store.GetInode(ctx, int64(op.Inode))
		if err != nil {
			return toFuseError(err)
		}

		readOnly := op.OpenFlags.IsReadOnly()
		writeOnly := op.OpenFlags.IsWriteOnly()
		requiredMode := uint32(0)
		if !writeOnly {
			requiredMode |= permRead
		}
		if !readOnly {
			requiredMode |= permWrite
		}
		if requiredMode != 0 {
			if err := Access(st, requiredMode, callerFromHeader(op.Header)); err != nil {
				return err
			}
		}

		of, err := openfile.Open(ctx, fs.store, fs.clock, int64(op.Inode), fs.blockBits, fs.blocksReadAhead, readOnly, writeOnly, op.OpenFlags.IsAppend())
		if err != nil {
			return toFuseError(err)
		}

		fs.mu.Lock()
		handleID := fs.allocHandleID()
		fs.handles[handleID] = &fileHandle{inodeID: op.Inode, file: of}
		fs.mu.Unlock()

		op.Handle = handleID
		op.KeepPageCache = false
		return nil
	})
}

// getFileHandle resolves a fuseops.HandleID to the *fileHandle the
// dispatcher allocated for it in CreateFile/OpenFile.
//
// LOCKS_EXCLUDED(fs.mu)
func (fs *fileSystem) getFileHandle(handle fuseops.HandleID) (*fileHandle, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	h, ok := fs.handles[handle]
	if !ok {
		return nil, fuse.EINVAL
	}
	fh, ok := h.(*fileHandle)
	if !ok {
		return nil, fuse.EINVAL
	}
	return fh, nil
}

// LOCKS_EXCLUDED(fs.mu)
func (fs *fileSystem) ReadFile(op *fuseops.ReadFileOp) error {
	ctx := op.Context()
	return fs.recordOp(ctx, common.OpReadFile, func() error {
		fh, err := fs.getFileHandle(op.Handle)
		if err != nil {
			return err
		}

		buf := make([]byte, op.Size)
		start := fs.clock.Now()
		n, err := fh.file.ReadAt(ctx, op.Offset, buf)
		fs.metrics.BlockCacheReadLatency(ctx, fs.clock.Now().Sub(start), true)
		fs.metrics.BlockCacheReadCount(1, true)
		fs.metrics.BlockCacheReadBytesCount(int64(n))

		op.Data = buf[:n]
		if err != nil && err != io.EOF {
			return toFuseError(err)
		}
		return nil
	})
}

// LOCKS_EXCLUDED(fs.mu)
func (fs *fileSystem) ReadSymlink(op *fuseops.ReadSymlinkOp) error {
	ctx := op.Context()
	return fs.recordOp(ctx, common.OpReadSymlink, func() error {
		in, err := fs.getInode(ctx, op.Inode)
		if err != nil {
			return err
		}
		link, ok := in.(*inode.SymlinkInode)
		if !ok {
			return fuse.EINVAL
		}
		op.Target, err = link.Target(ctx, fs.store)
		return err
	})
}

// LOCKS_EXCLUDED(fs.mu)
func (fs *fileSystem) WriteFile(op *fuseops.WriteFileOp) error {
	ctx := op.Context()
	return fs.recordOp(ctx, common.OpWriteFile, func() error {
		fh, err := fs.getFileHandle(op.Handle)
		if err != nil {
			return err
		}
		_, err = fh.file.WriteAt(ctx, op.Offset, op.Data)
		return toFuseError(err)
	})
}

// LOCKS_EXCLUDED(fs.mu)
func (fs *fileSystem) SyncFile(op *fuseops.SyncFileOp) error {
	ctx := op.Context()
	return fs.recordOp(ctx, common.OpSyncFile, func() error {
		fh, err := fs.getFileHandle(op.Handle)
		if err != nil {
			return err
		}
		return fh.file.Flush(ctx)
	})
}

// LOCKS_EXCLUDED(fs.mu)
func (fs *fileSystem) FlushFile(op *fuseops.FlushFileOp) error {
	ctx := op.Context()
	return fs.recordOp(ctx, common.OpFlushFile, func() error {
		fh, err := fs.getFileHandle(op.Handle)
		if err != nil {
			return err
		}
		return fh.file.Flush(ctx)
	})
}

// LOCKS_EXCLUDED(fs.mu)
func (fs *fileSystem) ReleaseFileHandle(op *fuseops.ReleaseFileHandleOp) error {
	return fs.recordOp(context.Background(), common.OpReleaseFileHandle, func() error {
		fs.mu.Lock()
		h, ok := fs.handles[op.Handle]
		delete(fs.handles, op.Handle)
		fs.mu.Unlock()
		if !ok {
			return nil
		}
		fh, ok := h.(*fileHandle)
		if !ok {
			return nil
		}

		ctx := context.Background()
		destroyed, err := fh.file.Close(ctx)
		if destroyed {
			fs.mu.Lock()
			delete(fs.inodes, fh.inodeID)
			fs.mu.Unlock()
		}
		return err
	})
}

////////////////////////////////////////////////////////////////////////
// Volume-level
////////////////////////////////////////////////////////////////////////

// StatFS reports synthetic, generous free-space figures: spec.md's
// storage is a relational database, which has no fixed block-count
// notion of its own, so there is nothing authoritative to report beyond
// the configured block size.
func (fs *fileSystem) StatFS(op *fuseops.StatFSOp) error {
	return fs.recordOp(context.Background(), common.OpStatFS, func() error {
		op.IoSize = uint32(1) << fs.blockBits
		op.BlockSize = op.IoSize
		op.Blocks = 1 << 32
		op.BlocksFree = 1 << 31
		op.BlocksAvailable = 1 << 31
		op.Inodes = 1 << 32
		op.InodesFree = 1 << 31
		return nil
	})
}

func (fs *fileSystem) Destroy() {
	fs.metrics.FSOpsCount(1, common.OpDestroy)
	if fs.stopOrphanSweep != nil {
		fs.stopOrphanSweep()
	}
}

// Copyright 2026 The go-ext2fs Authors.
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

// Package fuseadapter demonstrates that fs/engine's public surface is
// mountable through FUSE (spec §6's public surface): it translates
// fuseops.Op calls into Engine path-based operations.
//
// The Engine's own inode numbers double as FUSE inode IDs, offset by one
// so that the Engine's root (inode number zero, spec §3) lands on
// fuseops.RootInodeID. Every other FUSE call operates on a path string, so
// the file system keeps a small cache mapping each inode ID the kernel
// currently holds a reference to back to the absolute path that produced
// it, populated by LookUpInode and the create-style ops, the same way a
// dentry cache is populated on a real kernel.
//
// The Engine enforces its own 10-slot user table's read/write/execute
// bits internally (spec §4.3.4) against whichever user is currently
// logged in (spec §4.8); this adapter does not duplicate that check. The
// kernel-visible uid/gid on every inode is simply the uid/gid of the
// process that mounted the volume (internal/perms), since the two user
// models are deliberately kept separate.
package fuseadapter

import (
	"os"
	"path"
	"sync"
	"time"

	"github.com/gcsfuse-ext2/go-ext2fs/fs/engine"
	"github.com/gcsfuse-ext2/go-ext2fs/fs/fserrors"
	"github.com/gcsfuse-ext2/go-ext2fs/fs/inode"
	"github.com/gcsfuse-ext2/go-ext2fs/internal/logger"
	"github.com/jacobsa/fuse"
	"github.com/jacobsa/fuse/fuseops"
	"github.com/jacobsa/fuse/fuseutil"
)

// FileSystem adapts an *engine.Engine to fuseutil.FileSystem.
type FileSystem struct {
	fuseutil.NotImplementedFileSystem

	eng *engine.Engine

	uid uint32
	gid uint32

	mu sync.Mutex // guards paths and handles below

	paths map[fuseops.InodeID]string

	nextHandle  fuseops.HandleID
	dirHandles  map[fuseops.HandleID][]direntry
	fileHandles map[fuseops.HandleID]int // engine fd
}

type direntry struct {
	inodeNum uint16
	name     string
	typ      inode.FileType
}

// New wraps eng for mounting, stamping every inode's kernel-visible
// ownership with uid/gid (normally the current process's, per
// internal/perms.MyUserAndGroup).
func New(eng *engine.Engine, uid, gid uint32) *FileSystem {
	return &FileSystem{
		eng:         eng,
		uid:         uid,
		gid:         gid,
		paths:       map[fuseops.InodeID]string{fuseops.RootInodeID: "/"},
		dirHandles:  make(map[fuseops.HandleID][]direntry),
		fileHandles: make(map[fuseops.HandleID]int),
	}
}

func toFuseID(n uint16) fuseops.InodeID { return fuseops.InodeID(n) + 1 }
func toEngineNum(id fuseops.InodeID) uint16 { return uint16(id - 1) }

func (fs *FileSystem) pathFor(id fuseops.InodeID) (string, bool) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	p, ok := fs.paths[id]
	return p, ok
}

func (fs *FileSystem) rememberPath(num uint16, p string) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.paths[toFuseID(num)] = p
}

// errno translates a fserrors.Kind into the errno the kernel expects.
func errno(err error) error {
	if err == nil {
		return nil
	}
	kind, ok := fserrors.KindOf(err)
	if !ok {
		return err
	}
	switch kind {
	case fserrors.NotFound:
		return fuse.ENOENT
	case fserrors.AlreadyExists:
		return fuse.EEXIST
	case fserrors.PermissionDenied:
		return fuse.EACCES
	case fserrors.OutOfSpace:
		return fuse.ENOSPC
	case fserrors.InvalidInput, fserrors.InvalidData, fserrors.Other:
		return fuse.EINVAL
	default:
		return err
	}
}

func (fs *FileSystem) attrsFor(in inode.Inode) fuseops.InodeAttributes {
	mode := os.FileMode(0)
	switch in.Type {
	case inode.TypeDir:
		mode |= os.ModeDir
	case inode.TypeSymlink:
		mode |= os.ModeSymlink
	}

	if in.Mode&inode.OwnerRead != 0 {
		mode |= 0o400
	}
	if in.Mode&inode.OwnerWrite != 0 {
		mode |= 0o200
	}
	if in.Mode&inode.OwnerExec != 0 {
		mode |= 0o100
	}
	if in.Mode&inode.OtherRead != 0 {
		mode |= 0o044
	}
	if in.Mode&inode.OtherWrite != 0 {
		mode |= 0o022
	}
	if in.Mode&inode.OtherExec != 0 {
		mode |= 0o011
	}

	mtime := time.Unix(int64(in.MTime), 0)
	ctime := time.Unix(int64(in.CTime), 0)

	return fuseops.InodeAttributes{
		Size:   uint64(in.SizeBytes),
		Nlink:  uint64(in.LinkCount),
		Mode:   mode,
		Atime:  mtime,
		Mtime:  mtime,
		Ctime:  ctime,
		Crtime: ctime,
		Uid:    fs.uid,
		Gid:    fs.gid,
	}
}

func toInodeMode(m os.FileMode) inode.Mode {
	var out inode.Mode
	if m&0o400 != 0 {
		out |= inode.OwnerRead
	}
	if m&0o200 != 0 {
		out |= inode.OwnerWrite
	}
	if m&0o100 != 0 {
		out |= inode.OwnerExec
	}
	if m&0o004 != 0 {
		out |= inode.OtherRead
	}
	if m&0o002 != 0 {
		out |= inode.OtherWrite
	}
	if m&0o001 != 0 {
		out |= inode.OtherExec
	}
	return out
}

////////////////////////////////////////////////////////////////////////
// Inodes
////////////////////////////////////////////////////////////////////////

func (fs *FileSystem) Init(op *fuseops.InitOp) {
	op.Respond(nil)
}

func (fs *FileSystem) LookUpInode(op *fuseops.LookUpInodeOp) {
	parentPath, ok := fs.pathFor(op.Parent)
	if !ok {
		op.Respond(fuse.ENOENT)
		return
	}

	childPath := path.Join(parentPath, op.Name)
	num, in, err := fs.eng.Resolve(childPath)
	if err != nil {
		op.Respond(errno(err))
		return
	}

	fs.rememberPath(num, childPath)
	op.Entry.Child = toFuseID(num)
	op.Entry.Attributes = fs.attrsFor(in)
	op.Entry.AttributesExpiration = time.Now().Add(time.Minute)
	op.Entry.EntryExpiration = op.Entry.AttributesExpiration
	op.Respond(nil)
}

func (fs *FileSystem) GetInodeAttributes(op *fuseops.GetInodeAttributesOp) {
	p, ok := fs.pathFor(op.Inode)
	if !ok {
		op.Respond(fuse.ENOENT)
		return
	}
	_, in, err := fs.eng.Resolve(p)
	if err != nil {
		op.Respond(errno(err))
		return
	}
	op.Attributes = fs.attrsFor(in)
	op.AttributesExpiration = time.Now().Add(time.Minute)
	op.Respond(nil)
}

func (fs *FileSystem) SetInodeAttributes(op *fuseops.SetInodeAttributesOp) {
	p, ok := fs.pathFor(op.Inode)
	if !ok {
		op.Respond(fuse.ENOENT)
		return
	}

	if op.Mode != nil {
		if err := fs.eng.Chmod(p, toInodeMode(*op.Mode)); err != nil {
			op.Respond(errno(err))
			return
		}
	}

	if op.Size != nil {
		fd, err := fs.eng.Open(p)
		if err != nil {
			op.Respond(errno(err))
			return
		}
		truncErr := fs.eng.Truncate(fd, int64(*op.Size))
		_ = fs.eng.Close(fd)
		if truncErr != nil {
			op.Respond(errno(truncErr))
			return
		}
	}

	_, in, err := fs.eng.Resolve(p)
	if err != nil {
		op.Respond(errno(err))
		return
	}
	op.Attributes = fs.attrsFor(in)
	op.AttributesExpiration = time.Now().Add(time.Minute)
	op.Respond(nil)
}

func (fs *FileSystem) ForgetInode(op *fuseops.ForgetInodeOp) {
	fs.mu.Lock()
	delete(fs.paths, op.ID)
	fs.mu.Unlock()
	op.Respond(nil)
}

////////////////////////////////////////////////////////////////////////
// Creation
////////////////////////////////////////////////////////////////////////

func (fs *FileSystem) MkDir(op *fuseops.MkDirOp) {
	parentPath, ok := fs.pathFor(op.Parent)
	if !ok {
		op.Respond(fuse.ENOENT)
		return
	}
	childPath := path.Join(parentPath, op.Name)

	if err := fs.eng.Mkdir(childPath); err != nil {
		op.Respond(errno(err))
		return
	}
	num, in, err := fs.eng.Resolve(childPath)
	if err != nil {
		op.Respond(errno(err))
		return
	}
	fs.rememberPath(num, childPath)
	op.Entry.Child = toFuseID(num)
	op.Entry.Attributes = fs.attrsFor(in)
	op.Respond(nil)
}

func (fs *FileSystem) CreateFile(op *fuseops.CreateFileOp) {
	parentPath, ok := fs.pathFor(op.Parent)
	if !ok {
		op.Respond(fuse.ENOENT)
		return
	}
	childPath := path.Join(parentPath, op.Name)

	if err := fs.eng.Create(childPath); err != nil {
		op.Respond(errno(err))
		return
	}
	num, in, err := fs.eng.Resolve(childPath)
	if err != nil {
		op.Respond(errno(err))
		return
	}
	fs.rememberPath(num, childPath)

	fd, err := fs.eng.Open(childPath)
	if err != nil {
		op.Respond(errno(err))
		return
	}

	fs.mu.Lock()
	fs.nextHandle++
	handle := fs.nextHandle
	fs.fileHandles[handle] = fd
	fs.mu.Unlock()

	op.Entry.Child = toFuseID(num)
	op.Entry.Attributes = fs.attrsFor(in)
	op.Handle = handle
	op.Respond(nil)
}

func (fs *FileSystem) CreateSymlink(op *fuseops.CreateSymlinkOp) {
	parentPath, ok := fs.pathFor(op.Parent)
	if !ok {
		op.Respond(fuse.ENOENT)
		return
	}
	childPath := path.Join(parentPath, op.Name)

	if err := fs.eng.Symlink(op.Target, childPath); err != nil {
		op.Respond(errno(err))
		return
	}
	num, in, err := fs.eng.Resolve(childPath)
	if err != nil {
		op.Respond(errno(err))
		return
	}
	fs.rememberPath(num, childPath)
	op.Entry.Child = toFuseID(num)
	op.Entry.Attributes = fs.attrsFor(in)
	op.Respond(nil)
}

func (fs *FileSystem) ReadSymlink(op *fuseops.ReadSymlinkOp) {
	p, ok := fs.pathFor(op.Inode)
	if !ok {
		op.Respond(fuse.ENOENT)
		return
	}
	target, err := fs.eng.ReadSymlinkTarget(p)
	if err != nil {
		op.Respond(errno(err))
		return
	}
	op.Target = target
	op.Respond(nil)
}

////////////////////////////////////////////////////////////////////////
// Unlinking
////////////////////////////////////////////////////////////////////////

func (fs *FileSystem) RmDir(op *fuseops.RmDirOp) {
	parentPath, ok := fs.pathFor(op.Parent)
	if !ok {
		op.Respond(fuse.ENOENT)
		return
	}
	childPath := path.Join(parentPath, op.Name)
	err := fs.eng.Rmdir(childPath, false)
	op.Respond(errno(err))
}

func (fs *FileSystem) Unlink(op *fuseops.UnlinkOp) {
	parentPath, ok := fs.pathFor(op.Parent)
	if !ok {
		op.Respond(fuse.ENOENT)
		return
	}

	entries, err := fs.eng.ListDir(parentPath)
	if err != nil {
		op.Respond(errno(err))
		return
	}
	childPath := path.Join(parentPath, op.Name)

	for _, ent := range entries {
		if ent.Name != op.Name {
			continue
		}
		if ent.Type == inode.TypeSymlink {
			op.Respond(errno(fs.eng.UnlinkSymlink(childPath)))
			return
		}
		break
	}

	fd, err := fs.eng.Open(childPath)
	if err != nil {
		op.Respond(errno(err))
		return
	}
	op.Respond(errno(fs.eng.Unlink(fd)))
}

////////////////////////////////////////////////////////////////////////
// Directory handles
////////////////////////////////////////////////////////////////////////

func (fs *FileSystem) OpenDir(op *fuseops.OpenDirOp) {
	p, ok := fs.pathFor(op.Inode)
	if !ok {
		op.Respond(fuse.ENOENT)
		return
	}
	entries, err := fs.eng.ListDir(p)
	if err != nil {
		op.Respond(errno(err))
		return
	}

	listing := make([]direntry, 0, len(entries))
	for _, e := range entries {
		listing = append(listing, direntry{inodeNum: e.InodeNum, name: e.Name, typ: e.Type})
	}

	fs.mu.Lock()
	fs.nextHandle++
	handle := fs.nextHandle
	fs.dirHandles[handle] = listing
	fs.mu.Unlock()

	op.Handle = handle
	op.Respond(nil)
}

func direntType(t inode.FileType) fuseutil.DirentType {
	switch t {
	case inode.TypeDir:
		return fuseutil.DT_Directory
	case inode.TypeSymlink:
		return fuseutil.DT_Link
	default:
		return fuseutil.DT_File
	}
}

func (fs *FileSystem) ReadDir(op *fuseops.ReadDirOp) {
	fs.mu.Lock()
	listing := fs.dirHandles[op.Handle]
	fs.mu.Unlock()

	var n int
	offset := int(op.Offset)
	for i := offset; i < len(listing); i++ {
		ent := listing[i]
		written := fuseutil.WriteDirent(op.Dst[n:], fuseops.Dirent{
			Offset: fuseops.DirOffset(i + 1),
			Inode:  toFuseID(ent.inodeNum),
			Name:   ent.name,
			Type:   direntType(ent.typ),
		})
		if written == 0 {
			break
		}
		n += written
	}
	op.BytesRead = n
	op.Respond(nil)
}

func (fs *FileSystem) ReleaseDirHandle(op *fuseops.ReleaseDirHandleOp) {
	fs.mu.Lock()
	delete(fs.dirHandles, op.Handle)
	fs.mu.Unlock()
	op.Respond(nil)
}

////////////////////////////////////////////////////////////////////////
// File handles
////////////////////////////////////////////////////////////////////////

func (fs *FileSystem) OpenFile(op *fuseops.OpenFileOp) {
	p, ok := fs.pathFor(op.Inode)
	if !ok {
		op.Respond(fuse.ENOENT)
		return
	}
	fd, err := fs.eng.Open(p)
	if err != nil {
		op.Respond(errno(err))
		return
	}

	fs.mu.Lock()
	fs.nextHandle++
	handle := fs.nextHandle
	fs.fileHandles[handle] = fd
	fs.mu.Unlock()

	op.Handle = handle
	op.Respond(nil)
}

func (fs *FileSystem) ReadFile(op *fuseops.ReadFileOp) {
	fs.mu.Lock()
	fd, ok := fs.fileHandles[op.Handle]
	fs.mu.Unlock()
	if !ok {
		op.Respond(fuse.EINVAL)
		return
	}

	if _, err := fs.eng.Seek(fd, engine.FromStart, op.Offset); err != nil {
		op.Respond(errno(err))
		return
	}
	buf := make([]byte, op.Size)
	n, err := fs.eng.Read(fd, buf)
	if err != nil {
		op.Respond(errno(err))
		return
	}
	// A read that reaches the end of the file simply returns n < len(buf)
	// with no error (fs/inode.ReadBytes stops at SizeBytes); reporting
	// that short count back is how FUSE learns it hit EOF.
	op.BytesRead = n
	copy(op.Dst, buf[:n])
	op.Respond(nil)
}

func (fs *FileSystem) WriteFile(op *fuseops.WriteFileOp) {
	fs.mu.Lock()
	fd, ok := fs.fileHandles[op.Handle]
	fs.mu.Unlock()
	if !ok {
		op.Respond(fuse.EINVAL)
		return
	}

	if _, err := fs.eng.Seek(fd, engine.FromStart, op.Offset); err != nil {
		op.Respond(errno(err))
		return
	}
	_, err := fs.eng.Write(fd, op.Data)
	op.Respond(errno(err))
}

func (fs *FileSystem) FlushFile(op *fuseops.FlushFileOp) {
	op.Respond(nil)
}

func (fs *FileSystem) ReleaseFileHandle(op *fuseops.ReleaseFileHandleOp) {
	fs.mu.Lock()
	fd, ok := fs.fileHandles[op.Handle]
	delete(fs.fileHandles, op.Handle)
	fs.mu.Unlock()
	if !ok {
		op.Respond(nil)
		return
	}
	if err := fs.eng.Close(fd); err != nil {
		logger.Warnf("fuseadapter: closing fd %d: %v", fd, err)
	}
	op.Respond(nil)
}

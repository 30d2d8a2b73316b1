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

package engine

import (
	"strings"

	"github.com/gcsfuse-ext2/go-ext2fs/fs/directory"
	"github.com/gcsfuse-ext2/go-ext2fs/fs/fserrors"
	"github.com/gcsfuse-ext2/go-ext2fs/fs/inode"
	"github.com/gcsfuse-ext2/go-ext2fs/fs/pathresolver"
)

// splitParent divides path into its parent directory path and final
// component name. A name with no "/" resolves its parent against cwd.
func splitParent(path string) (parentPath, name string) {
	trimmed := strings.TrimRight(path, "/")
	idx := strings.LastIndex(trimmed, "/")
	switch {
	case idx < 0:
		return ".", trimmed
	case idx == 0:
		return "/", trimmed[1:]
	default:
		return trimmed[:idx], trimmed[idx+1:]
	}
}

// resolveParentDir resolves parentPath (symlinks followed) and requires it
// to be a directory.
func (e *Engine) resolveParentDir(parentPath string) (pathresolver.Result, error) {
	res, err := e.resolver.Resolve(parentPath, e.cwdInodeNum, e.activeUID, true)
	if err != nil {
		return pathresolver.Result{}, err
	}
	if res.TargetInode.Type != inode.TypeDir {
		return pathresolver.Result{}, fserrors.InvalidInputf("engine: %q is not a directory", parentPath)
	}
	return res, nil
}

// createEntry implements the shared shape of mkdir/create/symlink (spec
// §4.7): resolve the parent, require write permission on it, allocate a
// fresh inode, and insert the new entry.
func (e *Engine) createEntry(path string, typ inode.FileType, mode inode.Mode) (uint16, inode.Inode, error) {
	parentPath, name := splitParent(path)
	parentRes, err := e.resolveParentDir(parentPath)
	if err != nil {
		return 0, inode.Inode{}, err
	}
	parentInode := parentRes.TargetInode
	parentInodeNum := parentRes.TargetInodeNum

	if !inode.CanWrite(parentInode.Mode, int(parentInode.OwnerID), e.activeUID) {
		return 0, inode.Inode{}, fserrors.PermissionDeniedf("engine: no write permission on parent of %q", path)
	}

	newNum, err := e.inodeAlloc.Allocate()
	if err != nil {
		return 0, inode.Inode{}, err
	}
	newInode := inode.New(mode, byte(e.activeUID), typ, e.now())

	if typ == inode.TypeDir {
		block, err := e.ino.AllocateDataBlock()
		if err != nil {
			_ = e.inodeAlloc.Release(newNum)
			return 0, inode.Inode{}, err
		}
		newInode.Block[0] = block
		newInode.BlockCount = 1
		if err := e.dirs.InitRoot(&newInode, block, uint16(newNum), parentInodeNum); err != nil {
			_ = e.inodeAlloc.Release(newNum)
			return 0, inode.Inode{}, err
		}
	}

	if err := e.dirs.Insert(&parentInode, directory.Entry{InodeNum: uint16(newNum), Type: typ, Name: name}); err != nil {
		_ = e.inodeAlloc.Release(newNum)
		return 0, inode.Inode{}, err
	}
	if err := e.itable.Write(int(parentInodeNum), parentInode); err != nil {
		return 0, inode.Inode{}, err
	}
	if typ == inode.TypeDir {
		e.sb.DirCount++
	}
	if err := e.itable.Write(newNum, newInode); err != nil {
		return 0, inode.Inode{}, err
	}

	return uint16(newNum), newInode, nil
}

// Mkdir creates a new, empty directory (spec §4.7).
func (e *Engine) Mkdir(path string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, _, err := e.createEntry(path, inode.TypeDir, inode.DefaultDirMode)
	return err
}

// Create makes a new, empty regular file (spec §4.7).
func (e *Engine) Create(path string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, _, err := e.createEntry(path, inode.TypeFile, inode.DefaultFileMode)
	return err
}

// Symlink creates linkName as a symlink whose payload is target's raw
// bytes (spec §4.7).
func (e *Engine) Symlink(target, linkName string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	num, newInode, err := e.createEntry(linkName, inode.TypeSymlink, inode.DefaultFileMode)
	if err != nil {
		return err
	}
	if _, err := e.ino.WriteBytes(&newInode, 0, []byte(target)); err != nil {
		return err
	}
	return e.itable.Write(int(num), newInode)
}

// Link inserts a new directory entry pointing at target's inode and bumps
// its link count; rejects directories (spec §4.7).
func (e *Engine) Link(target, linkName string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	targetRes, err := e.resolver.Resolve(target, e.cwdInodeNum, e.activeUID, true)
	if err != nil {
		return err
	}
	if targetRes.TargetInode.Type == inode.TypeDir {
		return fserrors.InvalidInputf("engine.Link: %q is a directory", target)
	}

	parentPath, name := splitParent(linkName)
	parentRes, err := e.resolveParentDir(parentPath)
	if err != nil {
		return err
	}
	parentInode := parentRes.TargetInode
	if !inode.CanWrite(parentInode.Mode, int(parentInode.OwnerID), e.activeUID) {
		return fserrors.PermissionDeniedf("engine.Link: no write permission on parent of %q", linkName)
	}

	if err := e.dirs.Insert(&parentInode, directory.Entry{
		InodeNum: targetRes.TargetInodeNum,
		Type:     targetRes.TargetInode.Type,
		Name:     name,
	}); err != nil {
		return err
	}
	if err := e.itable.Write(int(parentRes.TargetInodeNum), parentInode); err != nil {
		return err
	}

	targetInode := targetRes.TargetInode
	targetInode.LinkCount++
	return e.itable.Write(int(targetRes.TargetInodeNum), targetInode)
}

// ReadSymlinkTarget resolves path without following the final symlink and
// returns its raw payload as a string (spec §4.5, §6).
func (e *Engine) ReadSymlinkTarget(path string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	res, err := e.resolver.Resolve(path, e.cwdInodeNum, e.activeUID, false)
	if err != nil {
		return "", err
	}
	if res.TargetInode.Type != inode.TypeSymlink {
		return "", fserrors.InvalidInputf("engine.ReadSymlinkTarget: %q is not a symlink", path)
	}
	buf := make([]byte, res.TargetInode.SizeBytes)
	if _, err := e.ino.ReadBytes(&res.TargetInode, 0, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

// UnlinkSymlink removes a symlink entry by path without going through the
// open-file table (spec §6): symlinks are never opened directly since
// Open always follows them.
func (e *Engine) UnlinkSymlink(path string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	res, err := e.resolver.Resolve(path, e.cwdInodeNum, e.activeUID, false)
	if err != nil {
		return err
	}
	if res.TargetInode.Type != inode.TypeSymlink {
		return fserrors.InvalidInputf("engine.UnlinkSymlink: %q is not a symlink", path)
	}
	if !inode.CanWrite(res.TargetInode.Mode, int(res.TargetInode.OwnerID), e.activeUID) {
		return fserrors.PermissionDeniedf("engine.UnlinkSymlink: no write permission")
	}

	parentInode, err := e.itable.Read(int(res.ParentInodeNum))
	if err != nil {
		return err
	}
	if err := e.dirs.Remove(&parentInode, res.Entry.Name); err != nil {
		return err
	}
	if err := e.itable.Write(int(res.ParentInodeNum), parentInode); err != nil {
		return err
	}

	target := res.TargetInode
	if err := e.ino.Shrink(&target, 0); err != nil {
		return err
	}
	target.SizeBytes = 0
	if err := e.itable.Write(int(res.TargetInodeNum), target); err != nil {
		return err
	}
	return e.inodeAlloc.Release(int(res.TargetInodeNum))
}

// Rmdir removes an empty directory, or, when recursive is true, first
// empties it (files and symlinks removed directly, sub-directories
// removed by recursion with cwd temporarily switched into them) before
// applying the non-recursive form (spec §4.7).
func (e *Engine) Rmdir(path string, recursive bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rmdirLocked(path, recursive)
}

func (e *Engine) rmdirLocked(path string, recursive bool) error {
	res, err := e.resolver.Resolve(path, e.cwdInodeNum, e.activeUID, true)
	if err != nil {
		return err
	}
	if res.Entry.Name == directory.DotName || res.Entry.Name == directory.DotDotName {
		return fserrors.InvalidInputf("engine.Rmdir: cannot remove %q", res.Entry.Name)
	}
	if res.TargetInode.Type != inode.TypeDir {
		return fserrors.InvalidInputf("engine.Rmdir: %q is not a directory", path)
	}
	if !inode.CanWrite(res.TargetInode.Mode, int(res.TargetInode.OwnerID), e.activeUID) {
		return fserrors.PermissionDeniedf("engine.Rmdir: no write permission on %q", path)
	}

	dirInode := res.TargetInode
	dirInodeNum := res.TargetInodeNum

	if recursive {
		if err := e.emptyDirectory(dirInodeNum, &dirInode); err != nil {
			return err
		}
	}

	if dirInode.SizeBytes != 2*directory.EntrySize {
		return fserrors.InvalidInputf("engine.Rmdir: %q is not empty", path)
	}

	if err := e.ino.Shrink(&dirInode, 0); err != nil {
		return err
	}
	if err := e.inodeAlloc.Release(int(dirInodeNum)); err != nil {
		return err
	}

	parentInode, err := e.itable.Read(int(res.ParentInodeNum))
	if err != nil {
		return err
	}
	if err := e.dirs.Remove(&parentInode, res.Entry.Name); err != nil {
		return err
	}
	if err := e.itable.Write(int(res.ParentInodeNum), parentInode); err != nil {
		return err
	}
	if e.sb.DirCount > 0 {
		e.sb.DirCount--
	}
	return nil
}

// emptyDirectory deletes every non-"."/".." entry of dirInodeNum,
// recursing into sub-directories with cwd temporarily pointed there.
func (e *Engine) emptyDirectory(dirInodeNum uint16, dirInode *inode.Inode) error {
	entries, err := e.dirs.List(dirInode)
	if err != nil {
		return err
	}

	savedCwd := e.cwdInodeNum
	e.cwdInodeNum = dirInodeNum
	defer func() { e.cwdInodeNum = savedCwd }()

	for _, child := range entries {
		if child.Name == directory.DotName || child.Name == directory.DotDotName {
			continue
		}
		switch child.Type {
		case inode.TypeDir:
			if err := e.rmdirLocked(child.Name, true); err != nil {
				return err
			}
		case inode.TypeSymlink:
			if err := e.unlinkSymlinkLocked(child.Name); err != nil {
				return err
			}
		default:
			if err := e.unlinkByNameLocked(child.Name); err != nil {
				return err
			}
		}
		// Re-read dirInode: removals above mutate its SizeBytes via the
		// parent-write path inside Rmdir/unlink helpers, but our in-hand
		// copy (the caller's dirInode, which IS this directory when
		// recursing into a child) is unaffected since those removals act
		// on the *child's* parent, i.e. dirInodeNum itself, elsewhere.
	}

	refreshed, err := e.itable.Read(int(dirInodeNum))
	if err != nil {
		return err
	}
	*dirInode = refreshed
	return nil
}

// unlinkSymlinkLocked and unlinkByNameLocked resolve name against the
// current cwd (used only from emptyDirectory, which has already pointed
// cwd at the directory being emptied).
func (e *Engine) unlinkSymlinkLocked(name string) error {
	res, err := e.resolver.Resolve(name, e.cwdInodeNum, e.activeUID, false)
	if err != nil {
		return err
	}
	if !inode.CanWrite(res.TargetInode.Mode, int(res.TargetInode.OwnerID), e.activeUID) {
		return fserrors.PermissionDeniedf("engine: no write permission on %q", name)
	}
	parentInode, err := e.itable.Read(int(res.ParentInodeNum))
	if err != nil {
		return err
	}
	if err := e.dirs.Remove(&parentInode, res.Entry.Name); err != nil {
		return err
	}
	if err := e.itable.Write(int(res.ParentInodeNum), parentInode); err != nil {
		return err
	}
	target := res.TargetInode
	if err := e.ino.Shrink(&target, 0); err != nil {
		return err
	}
	target.SizeBytes = 0
	if err := e.itable.Write(int(res.TargetInodeNum), target); err != nil {
		return err
	}
	return e.inodeAlloc.Release(int(res.TargetInodeNum))
}

func (e *Engine) unlinkByNameLocked(name string) error {
	res, err := e.resolver.Resolve(name, e.cwdInodeNum, e.activeUID, true)
	if err != nil {
		return err
	}
	if !inode.CanWrite(res.TargetInode.Mode, int(res.TargetInode.OwnerID), e.activeUID) {
		return fserrors.PermissionDeniedf("engine: no write permission on %q", name)
	}
	parentInode, err := e.itable.Read(int(res.ParentInodeNum))
	if err != nil {
		return err
	}
	if err := e.dirs.Remove(&parentInode, res.Entry.Name); err != nil {
		return err
	}
	if err := e.itable.Write(int(res.ParentInodeNum), parentInode); err != nil {
		return err
	}

	targetInode := res.TargetInode
	if targetInode.LinkCount > 0 {
		targetInode.LinkCount--
	}
	if err := e.itable.Write(int(res.TargetInodeNum), targetInode); err != nil {
		return err
	}
	if targetInode.LinkCount != 0 || e.handles.CountOpenFor(res.TargetInodeNum) != 0 {
		return nil
	}
	if err := e.ino.Shrink(&targetInode, 0); err != nil {
		return err
	}
	targetInode.SizeBytes = 0
	if err := e.itable.Write(int(res.TargetInodeNum), targetInode); err != nil {
		return err
	}
	return e.inodeAlloc.Release(int(res.TargetInodeNum))
}

// Chdir resolves path (symlinks followed) and requires it to be a
// directory with read permission (spec §4.7).
func (e *Engine) Chdir(path string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	res, err := e.resolver.Resolve(path, e.cwdInodeNum, e.activeUID, true)
	if err != nil {
		return err
	}
	if res.TargetInode.Type != inode.TypeDir {
		return fserrors.InvalidInputf("engine.Chdir: %q is not a directory", path)
	}
	if !inode.CanRead(res.TargetInode.Mode, int(res.TargetInode.OwnerID), e.activeUID) {
		return fserrors.PermissionDeniedf("engine.Chdir: no read permission on %q", path)
	}
	e.cwdInodeNum = res.TargetInodeNum
	return nil
}

// Chmod resolves path and delegates to the inode's permission setter
// (spec §4.7).
func (e *Engine) Chmod(path string, mode inode.Mode) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	res, err := e.resolver.Resolve(path, e.cwdInodeNum, e.activeUID, true)
	if err != nil {
		return err
	}
	target := res.TargetInode
	if err := target.SetMode(mode, e.activeUID); err != nil {
		return err
	}
	return e.itable.Write(int(res.TargetInodeNum), target)
}

// Chown resolves path, looks up username in the superblock user table,
// and sets the inode's owner (spec §4.7).
func (e *Engine) Chown(path, username string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	uid, err := e.sb.FindUserByName(username)
	if err != nil {
		return err
	}
	res, err := e.resolver.Resolve(path, e.cwdInodeNum, e.activeUID, true)
	if err != nil {
		return err
	}
	target := res.TargetInode
	if err := target.SetOwner(byte(uid), e.activeUID); err != nil {
		return err
	}
	return e.itable.Write(int(res.TargetInodeNum), target)
}

// Pwd walks from cwd upward via "..", at each step finding the child
// entry in the parent whose inode number matches the current directory,
// prepending "/name" to the result (spec §4.7).
func (e *Engine) Pwd() (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	cur := e.cwdInodeNum
	curInode, err := e.itable.Read(int(cur))
	if err != nil {
		return "", err
	}

	var parts []string
	for cur != pathresolver.RootInodeNum {
		dotdot, err := e.dirs.DotDot(&curInode)
		if err != nil {
			return "", err
		}
		parentNum := dotdot.InodeNum
		parentInode, err := e.itable.Read(int(parentNum))
		if err != nil {
			return "", err
		}
		entries, err := e.dirs.List(&parentInode)
		if err != nil {
			return "", err
		}
		var name string
		for _, ent := range entries {
			if ent.InodeNum == cur && ent.Name != directory.DotName && ent.Name != directory.DotDotName {
				name = ent.Name
				break
			}
		}
		if name == "" {
			return "", fserrors.New(fserrors.Other, "engine.Pwd: directory not found in its own parent")
		}
		parts = append([]string{name}, parts...)
		cur = parentNum
		curInode = parentInode
	}

	if len(parts) == 0 {
		return "/", nil
	}
	return "/" + strings.Join(parts, "/"), nil
}

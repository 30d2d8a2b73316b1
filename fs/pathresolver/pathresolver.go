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

// Package pathresolver walks a path string down to the directory entry it
// names, chasing symlinks along the way (spec §4.5).
//
// Resolution is modeled as a worklist rather than recursion (spec §9 design
// note "Symlink resolution as iterated substitution"): a symlink expansion
// prepends its target's segments onto the remaining work and bumps a hop
// counter, instead of each symlink re-entering the resolver on the call
// stack.
package pathresolver

import (
	"strings"
	"unicode/utf8"

	"github.com/gcsfuse-ext2/go-ext2fs/fs/directory"
	"github.com/gcsfuse-ext2/go-ext2fs/fs/fserrors"
	"github.com/gcsfuse-ext2/go-ext2fs/fs/inode"
)

// DefaultHopBudget is the suggested recursion budget from spec §4.5.
const DefaultHopBudget = 40

// RootInodeNum is the root directory's fixed inode number (spec §3
// invariants: "The root directory's inode number is zero").
const RootInodeNum uint16 = 0

// Result is everything a caller needs about the resolved path: the
// directory entry that names the target, that entry's logical offset
// within its parent (for unlink/rewrite bookkeeping), the parent's inode
// number (for ".." and for unlink's link-count step), and the target's
// loaded inode.
type Result struct {
	Entry          directory.Entry
	EntryOffset    int64
	ParentInodeNum uint16
	TargetInodeNum uint16
	TargetInode    inode.Inode
}

// inodeReader and dirOps are the narrow surfaces pathresolver needs from
// inode.Table/inode.Engine/directory.Engine, so tests can fake them
// without standing up a full block device.
type inodeReader interface {
	Read(i int) (inode.Inode, error)
}

type byteReader interface {
	ReadBytes(in *inode.Inode, off int64, buf []byte) (int, error)
}

type dirOps interface {
	Lookup(dirInode *inode.Inode, name string) (directory.Slot, error)
	DotDot(dirInode *inode.Inode) (directory.Entry, error)
}

// Resolver binds the lower-layer engines needed to walk a path.
type Resolver struct {
	inodes    inodeReader
	bytes     byteReader
	dirs      dirOps
	hopBudget int
}

// New constructs a Resolver. hopBudget <= 0 selects DefaultHopBudget.
func New(inodes inodeReader, bytes byteReader, dirs dirOps, hopBudget int) *Resolver {
	if hopBudget <= 0 {
		hopBudget = DefaultHopBudget
	}
	return &Resolver{inodes: inodes, bytes: bytes, dirs: dirs, hopBudget: hopBudget}
}

func splitPath(p string) []string {
	parts := strings.Split(p, "/")
	out := parts[:0]
	for _, s := range parts {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Resolve walks path, starting from root if path is absolute or from
// cwdInodeNum otherwise, chasing symlinks when followSymlinks is true
// (spec §4.5).
func (r *Resolver) Resolve(path string, cwdInodeNum uint16, callerUID int, followSymlinks bool) (Result, error) {
	var curInodeNum uint16
	if strings.HasPrefix(path, "/") {
		curInodeNum = RootInodeNum
	} else {
		curInodeNum = cwdInodeNum
	}
	curInode, err := r.inodes.Read(int(curInodeNum))
	if err != nil {
		return Result{}, err
	}

	worklist := splitPath(path)

	var haveTarget bool
	var entry directory.Entry
	var entryOffset int64
	var parentInodeNum uint16 = curInodeNum
	hops := 0

	for len(worklist) > 0 {
		s := worklist[0]
		worklist = worklist[1:]

		switch s {
		case ".":
			continue

		case "..":
			dotdot, err := r.dirs.DotDot(&curInode)
			if err != nil {
				return Result{}, err
			}
			parentInodeNum = curInodeNum
			curInodeNum = dotdot.InodeNum
			curInode, err = r.inodes.Read(int(curInodeNum))
			if err != nil {
				return Result{}, err
			}
			haveTarget = false
			continue

		default:
			if curInode.Type != inode.TypeDir {
				return Result{}, fserrors.NotFoundf("pathresolver.Resolve: %q is not a directory", s)
			}
			if !inode.CanExecute(curInode.Mode, int(curInode.OwnerID), callerUID) {
				return Result{}, fserrors.PermissionDeniedf("pathresolver.Resolve: no execute permission traversing %q", s)
			}
			slot, err := r.dirs.Lookup(&curInode, s)
			if err != nil {
				return Result{}, err
			}

			if followSymlinks && slot.Entry.Type == inode.TypeSymlink {
				hops++
				if hops > r.hopBudget {
					return Result{}, fserrors.InvalidDataf("pathresolver.Resolve: symlink hop budget (%d) exceeded", r.hopBudget)
				}
				targetInode, err := r.inodes.Read(int(slot.Entry.InodeNum))
				if err != nil {
					return Result{}, err
				}
				buf := make([]byte, targetInode.SizeBytes)
				if _, err := r.bytes.ReadBytes(&targetInode, 0, buf); err != nil {
					return Result{}, err
				}
				if !utf8.Valid(buf) {
					return Result{}, fserrors.InvalidDataf("pathresolver.Resolve: symlink payload is not valid UTF-8")
				}
				targetSegs := splitPath(string(buf))
				if strings.HasPrefix(string(buf), "/") {
					curInodeNum = RootInodeNum
					curInode, err = r.inodes.Read(int(curInodeNum))
					if err != nil {
						return Result{}, err
					}
				}
				// Relative targets resolve against the directory the link
				// resides in, which is already curInode/curInodeNum.
				worklist = append(append([]string{}, targetSegs...), worklist...)
				haveTarget = false
				continue
			}

			entry = slot.Entry
			entryOffset = slot.LogicalOffset
			parentInodeNum = curInodeNum
			haveTarget = true

			curInodeNum = slot.Entry.InodeNum
			curInode, err = r.inodes.Read(int(curInodeNum))
			if err != nil {
				return Result{}, err
			}
		}
	}

	if !haveTarget {
		// Path was made up entirely of "." / ".." / "/" segments: the target
		// is the current directory itself, addressed through its own "."
		// entry (always slot 0, spec §3).
		dotdot, err := r.dirs.DotDot(&curInode)
		if err != nil {
			return Result{}, err
		}
		entry = directory.Entry{InodeNum: curInodeNum, Type: inode.TypeDir, Name: directory.DotName}
		entryOffset = 0
		parentInodeNum = dotdot.InodeNum
	}

	return Result{
		Entry:          entry,
		EntryOffset:    entryOffset,
		ParentInodeNum: parentInodeNum,
		TargetInodeNum: curInodeNum,
		TargetInode:    curInode,
	}, nil
}

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

// Package inode implements the fixed-size inode record, its on-disk codec,
// logical-to-physical address translation through direct/single/double
// indirection, and block-list growth and shrinkage (spec §3, §4.3).
//
// The on-disk graph is entirely index-based: an Inode is a plain
// value-struct that owns its pointer array by value. There are no in-memory
// pointers in the persisted graph; uniqueness of a data block's owner is
// arbitrated by the bitmap allocator, not by any reference the inode holds.
package inode

import (
	"encoding/binary"

	"github.com/gcsfuse-ext2/go-ext2fs/fs/fserrors"
)

const (
	// DirectPointers is the count of directly-addressed block slots.
	DirectPointers = 6
	// SingleIndirectSlot and DoubleIndirectSlot are the indices of the two
	// indirection pointers within Block.
	SingleIndirectSlot = 6
	DoubleIndirectSlot = 7
	numPointers        = 8

	// Size is the fixed, power-of-two on-disk footprint of an inode record:
	// 1 (mode+type) + 1 (owner) + 2 (block count) + 4 (size) + 4 (ctime) +
	// 4 (mtime) + 2 (link count) + 8*4 (pointers) = 50, rounded up to 64.
	Size = 64

	ptrEntrySize = 4 // bytes per 32-bit block address in an index block
)

// FileType tags what kind of entity an inode (via its directory entry)
// represents. Stored in the inode's mode byte (high bits) since the
// directory entry also redundantly tags it for fast listing (spec §3).
type FileType byte

const (
	TypeFile FileType = iota
	TypeDir
	TypeSymlink
)

// Mode is the low-six-bits permission composite: high three bits are
// owner rwx, low three are "other" rwx (spec §4.3.4). Pure predicate
// functions below operate on it so every permission call site (namespace
// ops, file ops, chmod/chown) routes through the same logic, per the
// "permissions as pure predicates" design note.
type Mode byte

const (
	OwnerRead  Mode = 1 << 5
	OwnerWrite Mode = 1 << 4
	OwnerExec  Mode = 1 << 3
	OtherRead  Mode = 1 << 2
	OtherWrite Mode = 1 << 1
	OtherExec  Mode = 1 << 0

	modeMask = 0x3F

	// Default permissions per spec §4.7: rwxr-- for files, rwxr-x for dirs.
	DefaultFileMode = OwnerRead | OwnerWrite | OwnerExec | OtherRead
	DefaultDirMode  = OwnerRead | OwnerWrite | OwnerExec | OtherRead | OtherExec
)

// CanRead, CanWrite, CanExecute are pure predicates over (mode, owner,
// caller): the super-user (uid 0) always passes.
func CanRead(mode Mode, ownerID, callerID int) bool {
	if callerID == 0 {
		return true
	}
	if callerID == ownerID {
		return mode&OwnerRead != 0
	}
	return mode&OtherRead != 0
}

func CanWrite(mode Mode, ownerID, callerID int) bool {
	if callerID == 0 {
		return true
	}
	if callerID == ownerID {
		return mode&OwnerWrite != 0
	}
	return mode&OtherWrite != 0
}

func CanExecute(mode Mode, ownerID, callerID int) bool {
	if callerID == 0 {
		return true
	}
	if callerID == ownerID {
		return mode&OwnerExec != 0
	}
	return mode&OtherExec != 0
}

// Inode is the fixed-size, value-semantics record described in spec §3.
type Inode struct {
	Mode       Mode
	Type       FileType
	OwnerID    byte
	BlockCount uint16
	SizeBytes  uint32
	CTime      uint32 // seconds since epoch
	MTime      uint32
	LinkCount  uint16
	Block      [numPointers]uint32
}

// New builds a freshly-initialized inode with the given mode/owner/type and
// link count 1 (spec §3 Lifecycles).
func New(mode Mode, ownerID byte, typ FileType, now uint32) Inode {
	return Inode{
		Mode:      mode,
		Type:      typ,
		OwnerID:   ownerID,
		CTime:     now,
		MTime:     now,
		LinkCount: 1,
	}
}

// Encode writes the inode's fixed-size representation into buf, which must
// be at least Size bytes.
func (in Inode) Encode(buf []byte) {
	buf[0] = byte(in.Mode)&modeMask | byte(in.Type)<<6
	buf[1] = in.OwnerID
	binary.LittleEndian.PutUint16(buf[2:], in.BlockCount)
	binary.LittleEndian.PutUint32(buf[4:], in.SizeBytes)
	binary.LittleEndian.PutUint32(buf[8:], in.CTime)
	binary.LittleEndian.PutUint32(buf[12:], in.MTime)
	binary.LittleEndian.PutUint16(buf[16:], in.LinkCount)
	off := 18
	for _, p := range in.Block {
		binary.LittleEndian.PutUint32(buf[off:], p)
		off += 4
	}
	for i := off; i < Size; i++ {
		buf[i] = 0
	}
}

// Decode reads an inode record back out of buf.
func Decode(buf []byte) Inode {
	var in Inode
	in.Mode = Mode(buf[0]) & modeMask
	in.Type = FileType(buf[0] >> 6)
	in.OwnerID = buf[1]
	in.BlockCount = binary.LittleEndian.Uint16(buf[2:])
	in.SizeBytes = binary.LittleEndian.Uint32(buf[4:])
	in.CTime = binary.LittleEndian.Uint32(buf[8:])
	in.MTime = binary.LittleEndian.Uint32(buf[12:])
	in.LinkCount = binary.LittleEndian.Uint16(buf[16:])
	off := 18
	for i := range in.Block {
		in.Block[i] = binary.LittleEndian.Uint32(buf[off:])
		off += 4
	}
	return in
}

// SetMode requires the caller to be owner or super-user, and rejects any
// value with bits outside the lower six (spec §4.3.4).
func (in *Inode) SetMode(newMode Mode, callerID int) error {
	if int(newMode)&^int(modeMask) != 0 {
		return fserrors.InvalidInputf("inode.SetMode: mode %#o has bits outside rwxrwx", newMode)
	}
	if callerID != 0 && callerID != int(in.OwnerID) {
		return fserrors.PermissionDeniedf("inode.SetMode: caller %d is not owner %d", callerID, in.OwnerID)
	}
	in.Mode = newMode
	return nil
}

// SetOwner requires the caller to be owner or super-user.
func (in *Inode) SetOwner(newOwner byte, callerID int) error {
	if callerID != 0 && callerID != int(in.OwnerID) {
		return fserrors.PermissionDeniedf("inode.SetOwner: caller %d is not owner %d", callerID, in.OwnerID)
	}
	in.OwnerID = newOwner
	return nil
}

// MaxBlocksFor returns 6 + N + N^2, the maximum block-count for the given
// block size (N = blockSize/4), per spec §4.3.2's precondition.
func MaxBlocksFor(blockSize int) int {
	n := blockSize / ptrEntrySize
	return DirectPointers + n + n*n
}

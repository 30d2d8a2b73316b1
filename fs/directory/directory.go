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

// Package directory implements the directory-entry record, its on-disk
// codec, tombstone-aware iteration, and insert/remove (spec §3, §4.4).
package directory

import (
	"encoding/binary"

	"github.com/gcsfuse-ext2/go-ext2fs/fs/fserrors"
	"github.com/gcsfuse-ext2/go-ext2fs/fs/inode"
)

const (
	nameLen = 16
	// EntrySize is the fixed, power-of-two on-disk footprint of a directory
	// entry: 2 (inode#) + 1 (entry len tag) + 1 (name len) + 1 (type) + 16
	// (name) = 21, rounded up to 32.
	EntrySize = 32

	// DotName and DotDotName are every directory's first two entries.
	DotName    = "."
	DotDotName = ".."
)

// Entry is one directory-entry record.
type Entry struct {
	InodeNum uint16 // 0 means tombstoned / slot available for reuse
	Type     inode.FileType
	Name     string
}

func (e Entry) Live() bool { return e.InodeNum != 0 }

// liveAt reports whether the slot at the given logical offset should be
// treated as live. The root directory's inode number is zero (spec §3
// invariants), which is numerically indistinguishable from the tombstone
// marker once it appears as "."/".." in any directory's first two slots.
// Those two slots are always the reserved dot-entries by construction
// (InitRoot is the only thing that ever writes them), so position alone
// decides liveness there instead of the InodeNum value.
func liveAt(logicalOffset int64, e Entry) bool {
	return e.Live() || logicalOffset < 2*EntrySize
}

func encode(e Entry, buf []byte) {
	binary.LittleEndian.PutUint16(buf[0:], e.InodeNum)
	buf[2] = EntrySize
	buf[3] = byte(len(e.Name))
	buf[4] = byte(e.Type)
	for i := 5; i < 5+nameLen; i++ {
		buf[i] = 0
	}
	copy(buf[5:5+nameLen], []byte(e.Name))
}

func decode(buf []byte) Entry {
	nameLenField := int(buf[3])
	if nameLenField > nameLen {
		nameLenField = nameLen
	}
	raw := buf[5 : 5+nameLenField]
	end := 0
	for end < len(raw) && raw[end] != 0 {
		end++
	}
	return Entry{
		InodeNum: binary.LittleEndian.Uint16(buf[0:]),
		Type:     inode.FileType(buf[4]),
		Name:     string(raw[:end]),
	}
}

// Slot pairs a decoded Entry with its logical byte offset within the
// directory's data stream (a multiple of EntrySize). Callers that need to
// come back and overwrite exactly this slot (Remove, tombstone reuse) use
// LogicalOffset with writeSlotAt.
type Slot struct {
	Entry         Entry
	LogicalOffset int64
}

// Engine iterates and mutates a directory's entry stream through the
// shared inode.Engine for address translation and growth.
type Engine struct {
	ino *inode.Engine
}

func NewEngine(ino *inode.Engine) *Engine {
	return &Engine{ino: ino}
}

func (e *Engine) blockSize() int { return e.ino.BlockSize() }

func (e *Engine) slotsPerBlock() int { return e.blockSize() / EntrySize }

// readSlotAt reads the raw 32-byte slot at logicalOffset. It goes through
// inode.Engine's SizeBytes-independent raw path, not ReadBytes: a
// directory's SizeBytes counts live entries, not stream length, so a live
// entry reused or appended past an earlier tombstone can sit at an offset
// at or beyond SizeBytes and must still be readable.
func (e *Engine) readSlotAt(dirInode *inode.Inode, logicalOffset int64) (Slot, error) {
	buf := make([]byte, EntrySize)
	if err := e.ino.ReadAtRaw(dirInode, logicalOffset, buf); err != nil {
		return Slot{}, err
	}
	return Slot{Entry: decode(buf), LogicalOffset: logicalOffset}, nil
}

func (e *Engine) writeSlotAt(dirInode *inode.Inode, logicalOffset int64, entry Entry) error {
	buf := make([]byte, EntrySize)
	encode(entry, buf)
	return e.ino.WriteAtRaw(dirInode, logicalOffset, buf)
}

// IterFunc is called for each physical slot encountered during iteration.
// Returning false stops iteration early.
type IterFunc func(Slot) (keepGoing bool)

// Iterate walks a directory's on-disk entry stream, yielding every
// physical slot (live or tombstoned). It stops once it has yielded a
// number of *live* entries equal to size/EntrySize, or once it reaches the
// last allocated block, whichever comes first (spec §4.4).
func (e *Engine) Iterate(dirInode *inode.Inode, fn IterFunc) error {
	liveTarget := int(dirInode.SizeBytes) / EntrySize
	liveSeen := 0
	maxSlots := int(dirInode.BlockCount) * e.slotsPerBlock()

	for slotIdx := 0; slotIdx < maxSlots && liveSeen < liveTarget; slotIdx++ {
		logical := int64(slotIdx) * EntrySize
		slot, err := e.readSlotAt(dirInode, logical)
		if err != nil {
			return err
		}
		if liveAt(slot.LogicalOffset, slot.Entry) {
			liveSeen++
		}
		if !fn(slot) {
			return nil
		}
	}
	return nil
}

// Lookup finds the live entry with the given name, with no permission
// check (used internally by path resolution, which separately checks
// execute on each component per spec §4.5).
func (e *Engine) Lookup(dirInode *inode.Inode, name string) (Slot, error) {
	var found Slot
	ok := false
	err := e.Iterate(dirInode, func(s Slot) bool {
		if liveAt(s.LogicalOffset, s.Entry) && s.Entry.Name == name {
			found, ok = s, true
			return false
		}
		return true
	})
	if err != nil {
		return Slot{}, err
	}
	if !ok {
		return Slot{}, fserrors.NotFoundf("directory.Lookup: %q", name)
	}
	return found, nil
}

// List returns every live entry, for user-visible listing. Callers must
// have already checked execute permission on dirInode (spec §4.4).
func (e *Engine) List(dirInode *inode.Inode) ([]Entry, error) {
	var out []Entry
	err := e.Iterate(dirInode, func(s Slot) bool {
		if liveAt(s.LogicalOffset, s.Entry) {
			out = append(out, s.Entry)
		}
		return true
	})
	return out, err
}

// Insert adds a new entry, reusing the first tombstone slot encountered,
// or appending (growing the directory's inode if crossing a block
// boundary) if none was found (spec §4.4).
func (e *Engine) Insert(dirInode *inode.Inode, entry Entry) error {
	if len(entry.Name) == 0 || len(entry.Name) >= nameLen {
		return fserrors.InvalidInputf("directory.Insert: name %q invalid length", entry.Name)
	}

	var tombstoneAt int64 = -1
	nameCollision := false
	err := e.Iterate(dirInode, func(s Slot) bool {
		if liveAt(s.LogicalOffset, s.Entry) {
			if s.Entry.Name == entry.Name {
				nameCollision = true
				return false
			}
			return true
		}
		if tombstoneAt == -1 {
			tombstoneAt = s.LogicalOffset
		}
		return true
	})
	if err != nil {
		return err
	}
	if nameCollision {
		return fserrors.AlreadyExistsf("directory.Insert: %q", entry.Name)
	}

	if tombstoneAt >= 0 {
		if err := e.writeSlotAt(dirInode, tombstoneAt, entry); err != nil {
			return err
		}
		dirInode.SizeBytes += EntrySize
		return nil
	}

	logicalOffset := int64(dirInode.SizeBytes)
	blockSize := int64(e.blockSize())
	if logicalOffset%blockSize == 0 {
		if err := e.ino.Grow(dirInode); err != nil {
			return err
		}
	}
	if err := e.writeSlotAt(dirInode, logicalOffset, entry); err != nil {
		return err
	}
	dirInode.SizeBytes += EntrySize
	return nil
}

// Remove tombstones the slot named name and shrinks the parent's size by
// one entry (spec §4.4). Name bytes are left as residue in the slot.
func (e *Engine) Remove(dirInode *inode.Inode, name string) error {
	slot, err := e.Lookup(dirInode, name)
	if err != nil {
		return err
	}
	tombstone := Entry{InodeNum: 0, Type: slot.Entry.Type, Name: slot.Entry.Name}
	if err := e.writeSlotAt(dirInode, slot.LogicalOffset, tombstone); err != nil {
		return err
	}
	dirInode.SizeBytes -= EntrySize
	return nil
}

// InitRoot seeds a freshly allocated directory block's "." and ".."
// entries: "." points at selfInodeNum, ".." at parentInodeNum (spec §4.7).
func (e *Engine) InitRoot(dirInode *inode.Inode, physicalBlock uint32, selfInodeNum, parentInodeNum uint16) error {
	buf := make([]byte, e.blockSize())
	dot := Entry{InodeNum: selfInodeNum, Type: inode.TypeDir, Name: DotName}
	dotdot := Entry{InodeNum: parentInodeNum, Type: inode.TypeDir, Name: DotDotName}
	encode(dot, buf[0:EntrySize])
	encode(dotdot, buf[EntrySize:2*EntrySize])
	if err := e.ino.WriteBlockRaw(physicalBlock, buf); err != nil {
		return err
	}
	dirInode.SizeBytes = 2 * EntrySize
	return nil
}

// DotDot reads the second physical entry ("..") of dirInode directly,
// without going through Iterate's live-count budget (used when reloading
// the parent while handling ".." during path resolution, spec §4.5).
func (e *Engine) DotDot(dirInode *inode.Inode) (Entry, error) {
	buf := make([]byte, EntrySize)
	if err := e.ino.ReadAtRaw(dirInode, EntrySize, buf); err != nil {
		return Entry{}, err
	}
	return decode(buf), nil
}

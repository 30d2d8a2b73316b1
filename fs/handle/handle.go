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

// Package handle implements the fixed-capacity open-file table and its
// descriptor semantics (spec §3 "Open file record", §4.6).
package handle

import (
	"github.com/gcsfuse-ext2/go-ext2fs/fs/fserrors"
	"github.com/gcsfuse-ext2/go-ext2fs/fs/inode"
)

// DefaultCapacity is the suggested fixed table size from spec §4.6.
const DefaultCapacity = 20

// Record is the in-memory open-file record (spec §3): a cached copy of the
// inode, its number, the on-disk slot of the directory entry that points
// at it, the parent directory's inode number, and a byte cursor.
type Record struct {
	Inode          inode.Inode
	InodeNum       uint16
	DirEntryOffset int64 // logical offset of the directory entry's slot within its parent
	DirEntryName   string
	ParentInodeNum uint16
	Cursor         int64
	used           bool
}

// Table is the fixed-size array of optional open records (spec §4.6).
type Table struct {
	slots []Record
}

// NewTable constructs a table with the given fixed capacity.
func NewTable(capacity int) *Table {
	return &Table{slots: make([]Record, capacity)}
}

// Open places rec in the lowest free slot and returns that index as the
// descriptor. Rejects if the table is full.
func (t *Table) Open(rec Record) (int, error) {
	for i := range t.slots {
		if !t.slots[i].used {
			rec.used = true
			t.slots[i] = rec
			return i, nil
		}
	}
	return 0, fserrors.OutOfSpacef("handle.Open: table full (capacity %d)", len(t.slots))
}

// Get returns the record at fd. Fails if the slot is empty or fd is out of
// range.
func (t *Table) Get(fd int) (*Record, error) {
	if fd < 0 || fd >= len(t.slots) {
		return nil, fserrors.OutOfBoundsf("handle.Get: fd %d out of range", fd)
	}
	if !t.slots[fd].used {
		return nil, fserrors.NotFoundf("handle.Get: fd %d not open", fd)
	}
	return &t.slots[fd], nil
}

// Close clears fd's slot. Rejects if the slot was already empty.
func (t *Table) Close(fd int) error {
	if fd < 0 || fd >= len(t.slots) {
		return fserrors.OutOfBoundsf("handle.Close: fd %d out of range", fd)
	}
	if !t.slots[fd].used {
		return fserrors.NotFoundf("handle.Close: fd %d not open", fd)
	}
	t.slots[fd] = Record{}
	return nil
}

// CountOpenFor returns how many live descriptors currently reference
// inodeNum, used to decide whether an unlinked-to-zero inode can actually
// be reclaimed yet (spec §9 Open Question 5: strict reconciliation of
// link-count against open-handle count).
func (t *Table) CountOpenFor(inodeNum uint16) int {
	n := 0
	for i := range t.slots {
		if t.slots[i].used && t.slots[i].InodeNum == inodeNum {
			n++
		}
	}
	return n
}


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

// Package bitmap implements the single-block, find-first-zero allocator
// used for both the inode bitmap and the data-block bitmap (spec §4.2). The
// two allocators share this one implementation; callers differ only in
// which block they point it at and which free-count callback they supply.
package bitmap

import (
	"github.com/gcsfuse-ext2/go-ext2fs/fs/blockdev"
	"github.com/gcsfuse-ext2/go-ext2fs/fs/fserrors"
)

// Allocator arbitrates unique ownership of a fixed-capacity index space (a
// set of inode numbers, or a set of data-block indices) using one bitmap
// block. Bit order is MSB-first within each byte; a set bit means in use.
type Allocator struct {
	dev        blockdev.Device
	blockOff   int64 // absolute byte offset of the bitmap block
	blockSize  int   // bitmap block size in bytes; capacity = 8*blockSize bits
	freeCount func() int
	addFree   func(delta int)
}

// New constructs an Allocator over the bitmap block at blockOff. freeCount
// returns the superblock's current free-count for this allocator; addFree
// adjusts it by delta (positive on release, negative on allocate) and must
// persist the superblock itself (the allocator never touches the
// superblock directly beyond this callback, preserving the bitmap-before-
// superblock write order required by spec §5).
func New(dev blockdev.Device, blockOff int64, blockSize int, freeCount func() int, addFree func(delta int)) *Allocator {
	return &Allocator{
		dev:       dev,
		blockOff:  blockOff,
		blockSize: blockSize,
		freeCount: freeCount,
		addFree:   addFree,
	}
}

// Capacity returns the number of indices this allocator can address.
func (a *Allocator) Capacity() int { return 8 * a.blockSize }

func (a *Allocator) readBitmap() ([]byte, error) {
	buf := make([]byte, a.blockSize)
	if err := a.dev.ReadAt(buf, a.blockOff); err != nil {
		return nil, err
	}
	return buf, nil
}

func (a *Allocator) writeBitmap(buf []byte) error {
	return a.dev.WriteAt(buf, a.blockOff)
}

func isSet(buf []byte, idx int) bool {
	byteIdx := idx / 8
	bit := 7 - uint(idx%8) // MSB-first within the byte
	return buf[byteIdx]&(1<<bit) != 0
}

func setBit(buf []byte, idx int) {
	byteIdx := idx / 8
	bit := 7 - uint(idx%8)
	buf[byteIdx] |= 1 << bit
}

func clearBit(buf []byte, idx int) {
	byteIdx := idx / 8
	bit := 7 - uint(idx%8)
	buf[byteIdx] &^= 1 << bit
}

// Allocate finds the lowest-index clear bit, sets it, persists the bitmap
// block, and adjusts the free-count. Allocation order is strictly
// lowest-index-first (tests rely on this determinism).
func (a *Allocator) Allocate() (int, error) {
	if a.freeCount() == 0 {
		return 0, fserrors.New(fserrors.OutOfSpace, "bitmap.Allocate")
	}

	buf, err := a.readBitmap()
	if err != nil {
		return 0, err
	}

	n := a.Capacity()
	for i := 0; i < n; i++ {
		if !isSet(buf, i) {
			setBit(buf, i)
			if err := a.writeBitmap(buf); err != nil {
				return 0, err
			}
			a.addFree(-1)
			return i, nil
		}
	}

	return 0, fserrors.New(fserrors.OutOfSpace, "bitmap.Allocate")
}

// Release clears each given index's bit. Releasing an already-clear bit is
// silent (idempotent); releasing an out-of-range index is a caller bug that
// surfaces as an I/O error, as in the source (spec §4.2 edge cases): a range
// check returns it before anything is written, so none of the given bits
// is cleared.
func (a *Allocator) Release(indices ...int) error {
	if len(indices) == 0 {
		return nil
	}

	buf, err := a.readBitmap()
	if err != nil {
		return err
	}

	freed := 0
	for _, idx := range indices {
		byteIdx := idx / 8
		if byteIdx < 0 || byteIdx >= len(buf) {
			return fserrors.IOf("bitmap.Release: index %d out of range", idx)
		}
		if isSet(buf, idx) {
			clearBit(buf, idx)
			freed++
		}
	}

	if err := a.writeBitmap(buf); err != nil {
		return err
	}
	if freed > 0 {
		a.addFree(freed)
	}
	return nil
}

// IsAllocated reports whether idx's bit is set, without mutating anything.
// Used by fsck-style consistency checks.
func (a *Allocator) IsAllocated(idx int) (bool, error) {
	buf, err := a.readBitmap()
	if err != nil {
		return false, err
	}
	if idx < 0 || idx >= a.Capacity() {
		return false, fserrors.IOf("bitmap.IsAllocated: index %d out of range", idx)
	}
	return isSet(buf, idx), nil
}

// CountSet returns the number of set bits currently in the bitmap block,
// for invariant checking: free-count + CountSet must equal Capacity.
func (a *Allocator) CountSet() (int, error) {
	buf, err := a.readBitmap()
	if err != nil {
		return 0, err
	}
	n := 0
	for i := 0; i < a.Capacity(); i++ {
		if isSet(buf, i) {
			n++
		}
	}
	return n, nil
}

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

package inode

import (
	"encoding/binary"

	"github.com/gcsfuse-ext2/go-ext2fs/fs/bitmap"
	"github.com/gcsfuse-ext2/go-ext2fs/fs/blockdev"
	"github.com/gcsfuse-ext2/go-ext2fs/fs/fserrors"
)

// Addr is the result of translating a logical byte offset into an inode's
// block-index tree (spec §4.3.1): the absolute on-disk byte offset of the
// target byte, plus the path of block indices used to reach it (needed by
// Shrink to know which index blocks to free).
type Addr struct {
	AbsoluteOffset int64
	DataBlock      uint32 // data-block index within the data region
	// Path records, outermost first, the pointer-array slot consulted at
	// each indirection level: Path[0] is always the Block[] slot (0..7);
	// for single/double indirect, further entries are offsets within the
	// index block(s) read along the way.
	Path []int
}

// Engine binds an Inode's address translation and growth/shrinkage to a
// concrete block device and block size. It never touches the superblock or
// bitmap directly except through the data-block Allocator it is given.
type Engine struct {
	dev         blockdev.Device
	blockSize   int
	dataStart   int // absolute block number of data block 0
	dataBitmap  *bitmap.Allocator
}

// NewEngine constructs an inode Engine. dataStart is the data region's
// first absolute block number (Layout.DataRegionStartBlock()).
func NewEngine(dev blockdev.Device, blockSize, dataStart int, dataBitmap *bitmap.Allocator) *Engine {
	return &Engine{dev: dev, blockSize: blockSize, dataStart: dataStart, dataBitmap: dataBitmap}
}

func (e *Engine) n() int { return e.blockSize / ptrEntrySize }

// BlockSize returns the block size this engine was constructed with.
func (e *Engine) BlockSize() int { return e.blockSize }

func (e *Engine) blockOffset(physicalBlock uint32) int64 {
	return int64(e.dataStart)*int64(e.blockSize) + int64(physicalBlock)*int64(e.blockSize)
}

func (e *Engine) readIndexEntry(indexBlock uint32, slot int) (uint32, error) {
	buf := make([]byte, ptrEntrySize)
	if err := e.dev.ReadAt(buf, e.blockOffset(indexBlock)+int64(slot)*ptrEntrySize); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf), nil
}

func (e *Engine) writeIndexEntry(indexBlock uint32, slot int, value uint32) error {
	buf := make([]byte, ptrEntrySize)
	binary.LittleEndian.PutUint32(buf, value)
	return e.dev.WriteAt(buf, e.blockOffset(indexBlock)+int64(slot)*ptrEntrySize)
}

// Translate resolves a logical byte offset within in to its physical
// address (spec §4.3.1).
func (e *Engine) Translate(in *Inode, logicalOffset int64) (Addr, error) {
	blockSize := int64(e.blockSize)
	b := int(logicalOffset / blockSize)
	r := logicalOffset % blockSize
	n := e.n()

	var addr Addr

	switch {
	case b < DirectPointers:
		addr.DataBlock = in.Block[b]
		addr.Path = []int{b}

	case b-DirectPointers < n:
		slot := b - DirectPointers
		indexBlock := in.Block[SingleIndirectSlot]
		dataBlock, err := e.readIndexEntry(indexBlock, slot)
		if err != nil {
			return Addr{}, err
		}
		addr.DataBlock = dataBlock
		addr.Path = []int{SingleIndirectSlot, slot}

	default:
		bPrime := b - DirectPointers - n
		topSlot := bPrime / n
		lowSlot := bPrime % n
		topIndexBlock := in.Block[DoubleIndirectSlot]
		singleIndexBlock, err := e.readIndexEntry(topIndexBlock, topSlot)
		if err != nil {
			return Addr{}, err
		}
		dataBlock, err := e.readIndexEntry(singleIndexBlock, lowSlot)
		if err != nil {
			return Addr{}, err
		}
		addr.DataBlock = dataBlock
		addr.Path = []int{DoubleIndirectSlot, topSlot, lowSlot}
	}

	addr.AbsoluteOffset = e.blockOffset(addr.DataBlock) + r
	return addr, nil
}

// Grow allocates one new data block and installs it at logical block index
// in.BlockCount, lazily allocating index blocks as tier boundaries are
// first crossed (spec §4.3.2).
func (e *Engine) Grow(in *Inode) error {
	maxBlocks := MaxBlocksFor(e.blockSize)
	if int(in.BlockCount) >= maxBlocks {
		return fserrors.OutOfSpacef("inode.Grow: block count %d at max %d", in.BlockCount, maxBlocks)
	}

	n := e.n()
	b := int(in.BlockCount)

	newData, err := e.dataBitmap.Allocate()
	if err != nil {
		return err
	}

	switch {
	case b < DirectPointers:
		in.Block[b] = uint32(newData)

	case b-DirectPointers < n:
		slot := b - DirectPointers
		if b == DirectPointers {
			idx, err := e.dataBitmap.Allocate()
			if err != nil {
				_ = e.dataBitmap.Release(newData)
				return err
			}
			in.Block[SingleIndirectSlot] = uint32(idx)
		}
		if err := e.writeIndexEntry(in.Block[SingleIndirectSlot], slot, uint32(newData)); err != nil {
			return err
		}

	default:
		bPrime := b - DirectPointers - n
		topSlot := bPrime / n
		lowSlot := bPrime % n

		if bPrime == 0 {
			idx, err := e.dataBitmap.Allocate()
			if err != nil {
				_ = e.dataBitmap.Release(newData)
				return err
			}
			in.Block[DoubleIndirectSlot] = uint32(idx)
		}

		if lowSlot == 0 {
			idx, err := e.dataBitmap.Allocate()
			if err != nil {
				_ = e.dataBitmap.Release(newData)
				return err
			}
			if err := e.writeIndexEntry(in.Block[DoubleIndirectSlot], topSlot, uint32(idx)); err != nil {
				return err
			}
		}

		singleIndexBlock, err := e.readIndexEntry(in.Block[DoubleIndirectSlot], topSlot)
		if err != nil {
			return err
		}
		if err := e.writeIndexEntry(singleIndexBlock, lowSlot, uint32(newData)); err != nil {
			return err
		}
	}

	in.BlockCount++
	return nil
}

// Shrink reduces in's block list to newBlockCount, releasing data blocks
// and any index blocks that become empty, in one batch release to the
// bitmap allocator (spec §4.3.3). No-op if newBlockCount >= BlockCount.
func (e *Engine) Shrink(in *Inode, newBlockCount int) error {
	if newBlockCount >= int(in.BlockCount) {
		return nil
	}

	n := e.n()
	var toRelease []int

	for i := int(in.BlockCount) - 1; i >= newBlockCount; i-- {
		switch {
		case i < DirectPointers:
			toRelease = append(toRelease, int(in.Block[i]))
			in.Block[i] = 0

		case i-DirectPointers < n:
			slot := i - DirectPointers
			dataBlock, err := e.readIndexEntry(in.Block[SingleIndirectSlot], slot)
			if err != nil {
				return err
			}
			toRelease = append(toRelease, int(dataBlock))
			if i == DirectPointers {
				toRelease = append(toRelease, int(in.Block[SingleIndirectSlot]))
				in.Block[SingleIndirectSlot] = 0
			}

		default:
			bPrime := i - DirectPointers - n
			topSlot := bPrime / n
			lowSlot := bPrime % n
			singleIndexBlock, err := e.readIndexEntry(in.Block[DoubleIndirectSlot], topSlot)
			if err != nil {
				return err
			}
			dataBlock, err := e.readIndexEntry(singleIndexBlock, lowSlot)
			if err != nil {
				return err
			}
			toRelease = append(toRelease, int(dataBlock))
			if lowSlot == 0 {
				toRelease = append(toRelease, int(singleIndexBlock))
			}
			if bPrime == 0 {
				toRelease = append(toRelease, int(in.Block[DoubleIndirectSlot]))
				in.Block[DoubleIndirectSlot] = 0
			}
		}
	}

	if err := e.dataBitmap.Release(toRelease...); err != nil {
		return err
	}

	in.BlockCount = uint16(newBlockCount)
	return nil
}

// ReadBytes reads up to len(buf) bytes from in starting at logical offset
// off. It never reads past in.SizeBytes.
func (e *Engine) ReadBytes(in *Inode, off int64, buf []byte) (int, error) {
	n := 0
	for n < len(buf) && off+int64(n) < int64(in.SizeBytes) {
		addr, err := e.Translate(in, off+int64(n))
		if err != nil {
			return n, err
		}
		one := make([]byte, 1)
		if err := e.dev.ReadAt(one, addr.AbsoluteOffset); err != nil {
			return n, err
		}
		buf[n] = one[0]
		n++
	}
	return n, nil
}

// WriteBytes writes buf to in starting at logical offset off, growing the
// block list and extending SizeBytes one byte at a time as the source does
// (spec §4.6 write semantics).
func (e *Engine) WriteBytes(in *Inode, off int64, buf []byte) (int, error) {
	for i, b := range buf {
		cur := off + int64(i)
		if cur == int64(in.SizeBytes) {
			needed := int(cur/int64(e.blockSize)) + 1
			for int(in.BlockCount) < needed {
				if err := e.Grow(in); err != nil {
					return i, err
				}
			}
			in.SizeBytes++
		}
		addr, err := e.Translate(in, cur)
		if err != nil {
			return i, err
		}
		if err := e.dev.WriteAt([]byte{b}, addr.AbsoluteOffset); err != nil {
			return i, err
		}
	}
	return len(buf), nil
}

// ReadAtRaw reads len(buf) bytes from in starting at logical offset off,
// bounded only by in's allocated block list, not by in.SizeBytes. Directory
// entries track SizeBytes as a live-entry count rather than a stream length,
// so a live entry can physically sit at an offset past it; callers bound by
// block geometry (BlockCount) rather than relying on this to stop early.
func (e *Engine) ReadAtRaw(in *Inode, off int64, buf []byte) error {
	for n := 0; n < len(buf); n++ {
		addr, err := e.Translate(in, off+int64(n))
		if err != nil {
			return err
		}
		one := make([]byte, 1)
		if err := e.dev.ReadAt(one, addr.AbsoluteOffset); err != nil {
			return err
		}
		buf[n] = one[0]
	}
	return nil
}

// WriteAtRaw writes buf to in starting at logical offset off without
// growing in or touching SizeBytes. The caller must ensure off already
// falls within an allocated block.
func (e *Engine) WriteAtRaw(in *Inode, off int64, buf []byte) error {
	for i, b := range buf {
		addr, err := e.Translate(in, off+int64(i))
		if err != nil {
			return err
		}
		if err := e.dev.WriteAt([]byte{b}, addr.AbsoluteOffset); err != nil {
			return err
		}
	}
	return nil
}

// WriteBlockRaw writes the whole contents of a single data block (used by
// mkdir/symlink to seed "." / ".." / the link target without routing
// through the byte-at-a-time WriteBytes path).
func (e *Engine) WriteBlockRaw(physicalBlock uint32, data []byte) error {
	if len(data) > e.blockSize {
		return fserrors.InvalidInputf("inode.WriteBlockRaw: data longer than block size")
	}
	buf := make([]byte, e.blockSize)
	copy(buf, data)
	return e.dev.WriteAt(buf, e.blockOffset(physicalBlock))
}

// ReadBlockRaw reads the whole contents of a single data block.
func (e *Engine) ReadBlockRaw(physicalBlock uint32) ([]byte, error) {
	buf := make([]byte, e.blockSize)
	if err := e.dev.ReadAt(buf, e.blockOffset(physicalBlock)); err != nil {
		return nil, err
	}
	return buf, nil
}

// AllocateDataBlock allocates a single data block outside the inode
// growth path (used for a new directory's first block).
func (e *Engine) AllocateDataBlock() (uint32, error) {
	idx, err := e.dataBitmap.Allocate()
	if err != nil {
		return 0, err
	}
	return uint32(idx), nil
}

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

package inode_test

import (
	"testing"

	"github.com/gcsfuse-ext2/go-ext2fs/fs/bitmap"
	"github.com/gcsfuse-ext2/go-ext2fs/fs/blockdev"
	"github.com/gcsfuse-ext2/go-ext2fs/fs/inode"
	"github.com/stretchr/testify/require"
)

const testBlockSize = 512

func newTestEngine(t *testing.T) (*inode.Engine, *bitmap.Allocator) {
	t.Helper()
	// superblock(1) + data bitmap(1) + inode bitmap(1) + 8*blockSize data blocks.
	dataBlockCap := 8 * testBlockSize
	dev := blockdev.NewMemory(int64(3+dataBlockCap) * testBlockSize)
	free := dataBlockCap
	alloc := bitmap.New(dev, testBlockSize, testBlockSize, func() int { return free }, func(d int) { free += d })
	eng := inode.NewEngine(dev, testBlockSize, 3, alloc)
	return eng, alloc
}

func TestGrowDirectOnly(t *testing.T) {
	eng, _ := newTestEngine(t)
	in := inode.New(inode.DefaultFileMode, 0, inode.TypeFile, 1000)

	for i := 0; i < inode.DirectPointers; i++ {
		require.NoError(t, eng.Grow(&in))
	}
	require.Equal(t, uint16(inode.DirectPointers), in.BlockCount)
	// A fresh allocator hands out data blocks lowest-index-first from 0.
	for i := 0; i < inode.DirectPointers; i++ {
		require.EqualValues(t, i, in.Block[i])
	}
}

func TestIndirectionRoundTrip(t *testing.T) {
	eng, _ := newTestEngine(t)
	in := inode.New(inode.DefaultFileMode, 0, inode.TypeFile, 1000)

	n := testBlockSize / 4
	total := inode.DirectPointers + n + 1 // every direct and single-indirect block, one double-indirect block, plus one byte
	payload := make([]byte, total*testBlockSize+1)
	for i := range payload {
		payload[i] = byte(i % 251)
	}

	written, err := eng.WriteBytes(&in, 0, payload)
	require.NoError(t, err)
	require.Equal(t, len(payload), written)
	require.EqualValues(t, len(payload), in.SizeBytes)

	readBack := make([]byte, len(payload))
	n2, err := eng.ReadBytes(&in, 0, readBack)
	require.NoError(t, err)
	require.Equal(t, len(payload), n2)
	require.Equal(t, payload, readBack)
}

func TestShrinkReleasesBlocks(t *testing.T) {
	eng, alloc := newTestEngine(t)
	in := inode.New(inode.DefaultFileMode, 0, inode.TypeFile, 1000)

	for i := 0; i < inode.DirectPointers; i++ {
		require.NoError(t, eng.Grow(&in))
	}
	before, err := alloc.CountSet()
	require.NoError(t, err)

	require.NoError(t, eng.Shrink(&in, 0))
	require.EqualValues(t, 0, in.BlockCount)

	after, err := alloc.CountSet()
	require.NoError(t, err)
	require.Equal(t, before-inode.DirectPointers, after)
}

func TestSetModeRejectsExtraBits(t *testing.T) {
	in := inode.New(inode.DefaultFileMode, 5, inode.TypeFile, 1000)
	err := in.SetMode(inode.Mode(0x40), 5)
	require.Error(t, err)
}

func TestSetModeRequiresOwnerOrRoot(t *testing.T) {
	in := inode.New(inode.DefaultFileMode, 5, inode.TypeFile, 1000)
	require.Error(t, in.SetMode(inode.OwnerRead, 7))
	require.NoError(t, in.SetMode(inode.OwnerRead, 0))
	require.NoError(t, in.SetMode(inode.OwnerRead, 5))
}

func TestPermissionPredicates(t *testing.T) {
	mode := inode.OwnerRead | inode.OwnerWrite | inode.OwnerExec | inode.OtherRead
	require.True(t, inode.CanRead(mode, 5, 5))
	require.True(t, inode.CanRead(mode, 5, 9))
	require.False(t, inode.CanWrite(mode, 5, 9))
	require.True(t, inode.CanWrite(mode, 5, 0)) // root always passes
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	in := inode.New(inode.DefaultDirMode, 3, inode.TypeDir, 1234)
	in.BlockCount = 2
	in.SizeBytes = 64
	in.Block[0] = 7
	in.Block[1] = 9

	buf := make([]byte, inode.Size)
	in.Encode(buf)
	got := inode.Decode(buf)

	require.Equal(t, in, got)
}

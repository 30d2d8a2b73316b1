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

package directory_test

import (
	"testing"

	"github.com/gcsfuse-ext2/go-ext2fs/fs/bitmap"
	"github.com/gcsfuse-ext2/go-ext2fs/fs/blockdev"
	"github.com/gcsfuse-ext2/go-ext2fs/fs/directory"
	"github.com/gcsfuse-ext2/go-ext2fs/fs/inode"
	"github.com/stretchr/testify/require"
)

const testBlockSize = 512

func newTestDir(t *testing.T) (*directory.Engine, *inode.Engine, *inode.Inode) {
	t.Helper()
	dataBlockCap := 8 * testBlockSize
	dev := blockdev.NewMemory(int64(3+dataBlockCap) * testBlockSize)
	free := dataBlockCap
	alloc := bitmap.New(dev, testBlockSize, testBlockSize, func() int { return free }, func(d int) { free += d })
	ino := inode.NewEngine(dev, testBlockSize, 3, alloc)
	dirEng := directory.NewEngine(ino)

	dirInode := inode.New(inode.DefaultDirMode, 0, inode.TypeDir, 1000)
	block, err := ino.AllocateDataBlock()
	require.NoError(t, err)
	dirInode.Block[0] = block
	dirInode.BlockCount = 1
	require.NoError(t, dirEng.InitRoot(&dirInode, block, 0, 0))

	return dirEng, ino, &dirInode
}

func TestInsertAndLookup(t *testing.T) {
	dirEng, _, dirInode := newTestDir(t)

	require.NoError(t, dirEng.Insert(dirInode, directory.Entry{InodeNum: 5, Type: inode.TypeFile, Name: "a"}))
	require.NoError(t, dirEng.Insert(dirInode, directory.Entry{InodeNum: 6, Type: inode.TypeFile, Name: "b"}))

	s, err := dirEng.Lookup(dirInode, "a")
	require.NoError(t, err)
	require.EqualValues(t, 5, s.Entry.InodeNum)

	entries, err := dirEng.List(dirInode)
	require.NoError(t, err)
	require.Len(t, entries, 4) // ., .., a, b
}

func TestInsertRejectsDuplicateName(t *testing.T) {
	dirEng, _, dirInode := newTestDir(t)
	require.NoError(t, dirEng.Insert(dirInode, directory.Entry{InodeNum: 5, Type: inode.TypeFile, Name: "a"}))
	err := dirEng.Insert(dirInode, directory.Entry{InodeNum: 9, Type: inode.TypeFile, Name: "a"})
	require.Error(t, err)
}

func TestTombstoneReuseDoesNotGrow(t *testing.T) {
	dirEng, _, dirInode := newTestDir(t)

	require.NoError(t, dirEng.Insert(dirInode, directory.Entry{InodeNum: 5, Type: inode.TypeDir, Name: "a"}))
	require.NoError(t, dirEng.Insert(dirInode, directory.Entry{InodeNum: 6, Type: inode.TypeDir, Name: "b"}))
	require.NoError(t, dirEng.Remove(dirInode, "a"))
	sizeBefore := dirInode.SizeBytes
	blockCountBefore := dirInode.BlockCount

	require.NoError(t, dirEng.Insert(dirInode, directory.Entry{InodeNum: 7, Type: inode.TypeDir, Name: "c"}))

	require.Equal(t, blockCountBefore, dirInode.BlockCount)
	require.Equal(t, sizeBefore+directory.EntrySize, dirInode.SizeBytes)
	require.EqualValues(t, 4*directory.EntrySize, dirInode.SizeBytes) // ., .., b, c

	entries, err := dirEng.List(dirInode)
	require.NoError(t, err)
	names := map[string]bool{}
	for _, e := range entries {
		names[e.Name] = true
	}
	require.True(t, names["c"])
	require.False(t, names["a"])
}

func TestRemoveNotFound(t *testing.T) {
	dirEng, _, dirInode := newTestDir(t)
	err := dirEng.Remove(dirInode, "missing")
	require.Error(t, err)
}

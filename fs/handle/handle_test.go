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

package handle_test

import (
	"testing"

	"github.com/gcsfuse-ext2/go-ext2fs/fs/handle"
	"github.com/gcsfuse-ext2/go-ext2fs/fs/inode"
	"github.com/stretchr/testify/require"
)

func TestOpenGetClose(t *testing.T) {
	tbl := handle.NewTable(2)

	fd, err := tbl.Open(handle.Record{InodeNum: 5, Inode: inode.New(inode.DefaultFileMode, 0, inode.TypeFile, 1000)})
	require.NoError(t, err)
	require.Equal(t, 0, fd)

	rec, err := tbl.Get(fd)
	require.NoError(t, err)
	require.EqualValues(t, 5, rec.InodeNum)

	require.NoError(t, tbl.Close(fd))
	_, err = tbl.Get(fd)
	require.Error(t, err)
}

func TestOpenRejectsWhenFull(t *testing.T) {
	tbl := handle.NewTable(1)
	_, err := tbl.Open(handle.Record{InodeNum: 1})
	require.NoError(t, err)
	_, err = tbl.Open(handle.Record{InodeNum: 2})
	require.Error(t, err)
}

func TestCloseRejectsUnopenedSlot(t *testing.T) {
	tbl := handle.NewTable(2)
	require.Error(t, tbl.Close(0))
}

func TestGetRejectsOutOfRange(t *testing.T) {
	tbl := handle.NewTable(2)
	_, err := tbl.Get(5)
	require.Error(t, err)
}

func TestCountOpenFor(t *testing.T) {
	tbl := handle.NewTable(4)
	fd1, _ := tbl.Open(handle.Record{InodeNum: 9})
	fd2, _ := tbl.Open(handle.Record{InodeNum: 9})
	_, _ = tbl.Open(handle.Record{InodeNum: 3})

	require.Equal(t, 2, tbl.CountOpenFor(9))
	require.NoError(t, tbl.Close(fd1))
	require.Equal(t, 1, tbl.CountOpenFor(9))
	require.NoError(t, tbl.Close(fd2))
	require.Equal(t, 0, tbl.CountOpenFor(9))
}

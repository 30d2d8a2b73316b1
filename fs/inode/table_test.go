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

	"github.com/gcsfuse-ext2/go-ext2fs/fs/blockdev"
	"github.com/gcsfuse-ext2/go-ext2fs/fs/inode"
	"github.com/gcsfuse-ext2/go-ext2fs/fs/superblock"
	"github.com/stretchr/testify/require"
)

func TestTableReadWriteRoundTrip(t *testing.T) {
	layout := superblock.NewLayout(512, inode.Size)
	dev := blockdev.NewMemory(layout.ImageSize())
	tbl := inode.NewTable(dev, layout)

	in := inode.New(inode.DefaultFileMode, 3, inode.TypeFile, 12345)
	in.SizeBytes = 42
	require.NoError(t, tbl.Write(7, in))

	got, err := tbl.Read(7)
	require.NoError(t, err)
	require.Equal(t, in, got)
}

func TestTableRejectsOutOfRange(t *testing.T) {
	layout := superblock.NewLayout(512, inode.Size)
	dev := blockdev.NewMemory(layout.ImageSize())
	tbl := inode.NewTable(dev, layout)

	_, err := tbl.Read(layout.InodeCountCap())
	require.Error(t, err)
	require.Error(t, tbl.Write(-1, inode.New(0, 0, inode.TypeFile, 0)))
}

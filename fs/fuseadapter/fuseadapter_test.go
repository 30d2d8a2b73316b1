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

package fuseadapter

import (
	"errors"
	"os"
	"testing"

	"github.com/gcsfuse-ext2/go-ext2fs/fs/fserrors"
	"github.com/gcsfuse-ext2/go-ext2fs/fs/inode"
	"github.com/jacobsa/fuse"
	"github.com/jacobsa/fuse/fuseops"
	"github.com/jacobsa/fuse/fuseutil"
	"github.com/stretchr/testify/require"
)

func TestErrnoTranslatesKnownKinds(t *testing.T) {
	cases := []struct {
		kind fserrors.Kind
		want error
	}{
		{fserrors.NotFound, fuse.ENOENT},
		{fserrors.AlreadyExists, fuse.EEXIST},
		{fserrors.PermissionDenied, fuse.EACCES},
		{fserrors.OutOfSpace, fuse.ENOSPC},
		{fserrors.InvalidInput, fuse.EINVAL},
		{fserrors.InvalidData, fuse.EINVAL},
		{fserrors.Other, fuse.EINVAL},
	}
	for _, c := range cases {
		got := errno(fserrors.New(c.kind, "op"))
		require.Equal(t, c.want, got)
	}
}

func TestErrnoPassesThroughNil(t *testing.T) {
	require.NoError(t, errno(nil))
}

func TestErrnoPassesThroughOpaqueError(t *testing.T) {
	plain := errors.New("boom")
	require.Equal(t, plain, errno(plain))
}

func TestToFuseIDOffsetsByOneFromEngineNumbering(t *testing.T) {
	require.Equal(t, fuseops.RootInodeID, toFuseID(0))
	require.EqualValues(t, 6, toFuseID(5))
	require.EqualValues(t, 5, toEngineNum(toFuseID(5)))
}

func TestDirentTypeMapsFileKinds(t *testing.T) {
	require.Equal(t, fuseutil.DT_Directory, direntType(inode.TypeDir))
	require.Equal(t, fuseutil.DT_Link, direntType(inode.TypeSymlink))
	require.Equal(t, fuseutil.DT_File, direntType(inode.TypeFile))
}

func TestToInodeModeTranslatesOwnerAndOtherBits(t *testing.T) {
	mode := toInodeMode(os.FileMode(0o604))
	require.NotZero(t, mode&inode.OwnerRead)
	require.NotZero(t, mode&inode.OwnerWrite)
	require.Zero(t, mode&inode.OwnerExec)
	require.NotZero(t, mode&inode.OtherRead)
	require.Zero(t, mode&inode.OtherWrite)
}

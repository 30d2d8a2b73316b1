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

package engine_test

import (
	"testing"
	"time"

	"github.com/gcsfuse-ext2/go-ext2fs/fs/blockdev"
	"github.com/gcsfuse-ext2/go-ext2fs/fs/engine"
	"github.com/gcsfuse-ext2/go-ext2fs/fs/fserrors"
	"github.com/gcsfuse-ext2/go-ext2fs/fs/inode"
	"github.com/gcsfuse-ext2/go-ext2fs/fs/superblock"
	"github.com/jacobsa/timeutil"
	"github.com/stretchr/testify/require"
)

const testBlockSize = 512

func newTestEngine(t *testing.T) *engine.Engine {
	t.Helper()
	cfg := engine.Config{BlockSize: testBlockSize, InodeSize: inode.Size}
	layout := superblock.NewLayout(cfg.BlockSize, cfg.InodeSize)
	dev := blockdev.NewMemory(layout.ImageSize())
	var clock timeutil.SimulatedClock
	clock.SetTime(time.Unix(1000, 0))
	e, err := engine.Format(dev, cfg, &clock, "rootpass")
	require.NoError(t, err)
	return e
}

func TestFormatSeedsRoot(t *testing.T) {
	e := newTestEngine(t)
	root, err := e.GetInode(0)
	require.NoError(t, err)
	require.Equal(t, inode.TypeDir, root.Type)
	require.EqualValues(t, 0, e.CurrentUser())
}

func TestMkdirCreateWriteReadRoundTrip(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.Mkdir("/dir"))
	require.NoError(t, e.Create("/dir/file.txt"))

	fd, err := e.Open("/dir/file.txt")
	require.NoError(t, err)

	n, err := e.Write(fd, []byte("hello world"))
	require.NoError(t, err)
	require.Equal(t, 11, n)

	_, err = e.Seek(fd, engine.FromStart, 0)
	require.NoError(t, err)

	buf := make([]byte, 11)
	n, err = e.Read(fd, buf)
	require.NoError(t, err)
	require.Equal(t, 11, n)
	require.Equal(t, "hello world", string(buf))

	require.NoError(t, e.Close(fd))
}

func TestChdirAndPwd(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.Mkdir("/a"))
	require.NoError(t, e.Mkdir("/a/b"))
	require.NoError(t, e.Chdir("/a/b"))

	pwd, err := e.Pwd()
	require.NoError(t, err)
	require.Equal(t, "/a/b", pwd)

	require.NoError(t, e.Chdir(".."))
	pwd, err = e.Pwd()
	require.NoError(t, err)
	require.Equal(t, "/a", pwd)
}

func TestSymlinkResolvesToTarget(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.Create("/real.txt"))
	fd, err := e.Open("/real.txt")
	require.NoError(t, err)
	_, err = e.Write(fd, []byte("payload"))
	require.NoError(t, err)
	require.NoError(t, e.Close(fd))

	require.NoError(t, e.Symlink("/real.txt", "/link.txt"))

	target, err := e.ReadSymlinkTarget("/link.txt")
	require.NoError(t, err)
	require.Equal(t, "/real.txt", target)

	fd, err = e.Open("/link.txt")
	require.NoError(t, err)
	buf := make([]byte, 7)
	_, err = e.Read(fd, buf)
	require.NoError(t, err)
	require.Equal(t, "payload", string(buf))
	require.NoError(t, e.Close(fd))
}

func TestRmdirNonRecursiveRejectsNonEmpty(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.Mkdir("/a"))
	require.NoError(t, e.Create("/a/f"))
	err := e.Rmdir("/a", false)
	require.Error(t, err)
}

func TestRmdirRecursiveEmptiesAndRemoves(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.Mkdir("/a"))
	require.NoError(t, e.Mkdir("/a/b"))
	require.NoError(t, e.Create("/a/f"))
	require.NoError(t, e.Symlink("/a/f", "/a/link"))

	require.NoError(t, e.Rmdir("/a", true))

	_, err := e.Open("/a/f")
	require.Error(t, err)
}

func TestUnlinkDefersReclaimWhileOtherHandleOpen(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.Create("/f"))

	fd1, err := e.Open("/f")
	require.NoError(t, err)
	fd2, err := e.Open("/f")
	require.NoError(t, err)

	require.NoError(t, e.Unlink(fd1))

	// fd2 still references the inode; reading through it must still work.
	buf := make([]byte, 1)
	n, err := e.Read(fd2, buf)
	require.NoError(t, err)
	require.Equal(t, 0, n) // empty file

	require.NoError(t, e.Close(fd2))
}

func TestLinkRejectsDirectories(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.Mkdir("/a"))
	err := e.Link("/a", "/b")
	require.Error(t, err)
}

func TestUseraddCreatesHomeDirectory(t *testing.T) {
	e := newTestEngine(t)
	uid, err := e.Useradd("alice", "secret")
	require.NoError(t, err)
	require.NotEqual(t, 0, uid)

	require.NoError(t, e.Create("/home/alice/note.txt"))
}

func TestLoginRejectsBadPassword(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.Useradd("bob", "correct")
	require.NoError(t, err)
	err = e.Login("bob", "wrong")
	require.Error(t, err)
	require.True(t, fserrors.Is(err, fserrors.NotFound))
}

func TestUserdelRefusesActiveUser(t *testing.T) {
	e := newTestEngine(t)
	uid, err := e.Useradd("carol", "pw")
	require.NoError(t, err)
	require.NoError(t, e.Login("carol", "pw"))
	err = e.Userdel("carol")
	require.Error(t, err)
	_ = uid
}

func TestChmodRejectsNonOwner(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.Create("/f"))
	_, err := e.Useradd("dave", "pw")
	require.NoError(t, err)
	require.NoError(t, e.Login("dave", "pw"))
	err = e.Chmod("/f", inode.OwnerRead)
	require.Error(t, err)
}

func TestFormatSeedsHomeAndRoot(t *testing.T) {
	e := newTestEngine(t)
	entries, err := e.ListDir("/")
	require.NoError(t, err)
	names := map[string]bool{}
	for _, ent := range entries {
		names[ent.Name] = true
	}
	require.True(t, names["."])
	require.True(t, names[".."])
	require.True(t, names["home"])
	require.True(t, names["root"])
	require.Len(t, names, 4)
}

// TestRemoveNonTailEntrySurvivesAfterLaterInsert covers a parent directory
// whose live entry sits physically past an earlier, unreused tombstone —
// it must stay listable and linkable even though the directory's
// live-entry SizeBytes no longer covers its physical offset.
func TestRemoveNonTailEntrySurvivesAfterLaterInsert(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.Create("/f"))
	require.NoError(t, e.Link("/f", "/g"))

	fd, err := e.Open("/f")
	require.NoError(t, err)
	require.NoError(t, e.Unlink(fd))

	fd2, err := e.Open("/g")
	require.NoError(t, err)
	require.NoError(t, e.Close(fd2))
}

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

package blockdev_test

import (
	"path/filepath"
	"testing"

	"github.com/gcsfuse-ext2/go-ext2fs/fs/blockdev"
	"github.com/stretchr/testify/require"
)

func TestFormatThenOpenRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vol.img")

	dev, err := blockdev.Format(path, 4096)
	require.NoError(t, err)
	require.Equal(t, int64(4096), dev.Size())

	want := []byte("hello")
	require.NoError(t, dev.WriteAt(want, 0))
	require.NoError(t, dev.Close())

	reopened, err := blockdev.Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	got := make([]byte, len(want))
	require.NoError(t, reopened.ReadAt(got, 0))
	require.Equal(t, want, got)
}

func TestOpenFailsWhenAlreadyLocked(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vol.img")

	dev, err := blockdev.Format(path, 4096)
	require.NoError(t, err)
	defer dev.Close()

	_, err = blockdev.Open(path)
	require.Error(t, err)
}

func TestReadAtRejectsOutOfBoundsOffset(t *testing.T) {
	dev := blockdev.NewMemory(16)
	buf := make([]byte, 4)
	err := dev.ReadAt(buf, 13)
	require.Error(t, err)
}

func TestWriteAtRejectsOutOfBoundsOffset(t *testing.T) {
	dev := blockdev.NewMemory(16)
	err := dev.WriteAt(make([]byte, 4), -1)
	require.Error(t, err)
}

func TestMemoryDeviceStartsZeroed(t *testing.T) {
	dev := blockdev.NewMemory(8)
	buf := make([]byte, 8)
	require.NoError(t, dev.ReadAt(buf, 0))
	require.Equal(t, make([]byte, 8), buf)
}

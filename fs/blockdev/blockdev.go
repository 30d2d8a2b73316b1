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

// Package blockdev adapts a host file (or any ReaderAt/WriterAt) into the
// engine's backing store. It is deliberately unbuffered and holds no cursor
// state, so positioned reads and writes never race on shared seek state
// (spec §4.1).
package blockdev

import (
	"io"
	"os"

	"github.com/gcsfuse-ext2/go-ext2fs/fs/fserrors"
	"github.com/google/renameio"
	"golang.org/x/sys/unix"
)

// Device is the engine's view of the backing store: two positioned,
// unbuffered operations. It does not interpret the bytes it moves.
type Device interface {
	// ReadAt copies len(buf) bytes starting at absolute offset off into buf.
	// It fails with fserrors.IO on a short read or an out-of-bounds offset.
	ReadAt(buf []byte, off int64) error

	// WriteAt writes all of buf at absolute offset off. It fails with
	// fserrors.IO on a short write or an out-of-bounds offset.
	WriteAt(buf []byte, off int64) error

	// Size returns the total addressable size of the device in bytes.
	Size() int64

	// Close releases any host resources held by the device.
	Close() error
}

// fileDevice is the production Device: a single regular host file opened in
// read/write mode, sized to exactly the image computed by the superblock
// layout (spec §6).
type fileDevice struct {
	f    *os.File
	size int64
}

// Open opens the existing file at path as a backing store whose size is
// the file's current size. The caller (normally format()) is responsible
// for having created the file at the right size already; Open does not grow
// or shrink it.
//
// Open takes an exclusive advisory flock on the file for as long as the
// Device stays open, enforcing at the process level the single-owner
// concurrency model spec §5 already enforces in-process via the engine's
// one mutex: two engines can never hold the same backing image at once.
func Open(path string) (Device, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0o600)
	if err != nil {
		return nil, fserrors.Wrap(fserrors.IO, "blockdev.Open", err)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		return nil, fserrors.Wrap(fserrors.IO, "blockdev.Open: volume already in use", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fserrors.Wrap(fserrors.IO, "blockdev.Open", err)
	}
	return &fileDevice{f: f, size: info.Size()}, nil
}

// Format atomically (write-to-temp-then-rename, the same pattern distri
// uses for repo metadata) creates a fresh zero-filled image of the given
// size at path and opens it.
func Format(path string, size int64) (Device, error) {
	t, err := renameio.TempFile("", path)
	if err != nil {
		return nil, fserrors.Wrap(fserrors.IO, "blockdev.Format", err)
	}
	defer t.Cleanup()

	if err := t.Truncate(size); err != nil {
		return nil, fserrors.Wrap(fserrors.IO, "blockdev.Format", err)
	}
	if err := t.CloseAtomicallyReplace(); err != nil {
		return nil, fserrors.Wrap(fserrors.IO, "blockdev.Format", err)
	}

	return Open(path)
}

func (d *fileDevice) ReadAt(buf []byte, off int64) error {
	if off < 0 || off+int64(len(buf)) > d.size {
		return fserrors.IOf("blockdev: read [%d,%d) out of bounds (size %d)", off, off+int64(len(buf)), d.size)
	}
	n, err := d.f.ReadAt(buf, off)
	if err != nil && err != io.EOF {
		return fserrors.Wrap(fserrors.IO, "blockdev.ReadAt", err)
	}
	if n != len(buf) {
		return fserrors.IOf("blockdev: short read at %d: got %d want %d", off, n, len(buf))
	}
	return nil
}

func (d *fileDevice) WriteAt(buf []byte, off int64) error {
	if off < 0 || off+int64(len(buf)) > d.size {
		return fserrors.IOf("blockdev: write [%d,%d) out of bounds (size %d)", off, off+int64(len(buf)), d.size)
	}
	n, err := d.f.WriteAt(buf, off)
	if err != nil {
		return fserrors.Wrap(fserrors.IO, "blockdev.WriteAt", err)
	}
	if n != len(buf) {
		return fserrors.IOf("blockdev: short write at %d: got %d want %d", off, n, len(buf))
	}
	return nil
}

func (d *fileDevice) Size() int64 { return d.size }

func (d *fileDevice) Close() error {
	if err := d.f.Sync(); err != nil {
		return fserrors.Wrap(fserrors.IO, "blockdev.Close", err)
	}
	return d.f.Close()
}

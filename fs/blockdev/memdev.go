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

package blockdev

import (
	"github.com/gcsfuse-ext2/go-ext2fs/fs/fserrors"
	"github.com/orcaman/writerseeker"
)

// memDevice is an in-memory Device backed by writerseeker.WriterSeeker,
// avoiding a temp file per test case the way distri's build pipeline avoids
// one for staged archive writes.
type memDevice struct {
	ws   writerseeker.WriterSeeker
	size int64
}

// NewMemory returns a zero-filled in-memory Device of the given size.
func NewMemory(size int64) Device {
	d := &memDevice{size: size}
	zero := make([]byte, size)
	_, _ = d.ws.Write(zero)
	return d
}

func (d *memDevice) ReadAt(buf []byte, off int64) error {
	if off < 0 || off+int64(len(buf)) > d.size {
		return fserrors.IOf("memdev: read [%d,%d) out of bounds (size %d)", off, off+int64(len(buf)), d.size)
	}
	r := d.ws.Reader()
	if _, err := r.Seek(off, 0); err != nil {
		return fserrors.Wrap(fserrors.IO, "memdev.ReadAt", err)
	}
	n, err := r.Read(buf)
	if err != nil && n != len(buf) {
		return fserrors.Wrap(fserrors.IO, "memdev.ReadAt", err)
	}
	return nil
}

func (d *memDevice) WriteAt(buf []byte, off int64) error {
	if off < 0 || off+int64(len(buf)) > d.size {
		return fserrors.IOf("memdev: write [%d,%d) out of bounds (size %d)", off, off+int64(len(buf)), d.size)
	}
	w := d.ws.Writer()
	if _, err := w.Seek(off, 0); err != nil {
		return fserrors.Wrap(fserrors.IO, "memdev.WriteAt", err)
	}
	n, err := w.Write(buf)
	if err != nil {
		return fserrors.Wrap(fserrors.IO, "memdev.WriteAt", err)
	}
	if n != len(buf) {
		return fserrors.IOf("memdev: short write at %d: got %d want %d", off, n, len(buf))
	}
	return nil
}

func (d *memDevice) Size() int64 { return d.size }

func (d *memDevice) Close() error { return nil }

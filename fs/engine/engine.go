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

// Package engine wires the lower layers (blockdev, bitmap, superblock,
// inode, directory, pathresolver, handle) into the single public surface
// described by spec §6: format/init/exit, namespace operations, user/auth
// operations, and the open-file table operations. Every public method
// holds the engine's single invariant-checked mutex for its full duration
// (spec §5 "Concurrency as single-owner").
package engine

import (
	"github.com/gcsfuse-ext2/go-ext2fs/fs/bitmap"
	"github.com/gcsfuse-ext2/go-ext2fs/fs/blockdev"
	"github.com/gcsfuse-ext2/go-ext2fs/fs/directory"
	"github.com/gcsfuse-ext2/go-ext2fs/fs/fserrors"
	"github.com/gcsfuse-ext2/go-ext2fs/fs/handle"
	"github.com/gcsfuse-ext2/go-ext2fs/fs/inode"
	"github.com/gcsfuse-ext2/go-ext2fs/fs/pathresolver"
	"github.com/gcsfuse-ext2/go-ext2fs/fs/superblock"
	"github.com/jacobsa/syncutil"
	"github.com/jacobsa/timeutil"
)

// Config bundles the parameters needed to format or open a volume.
type Config struct {
	BlockSize      int
	InodeSize      int
	Label          string
	HandleCapacity int
	HopBudget      int
}

func (c Config) withDefaults() Config {
	if c.BlockSize == 0 {
		c.BlockSize = 512
	}
	if c.InodeSize == 0 {
		c.InodeSize = inode.Size
	}
	if c.HandleCapacity == 0 {
		c.HandleCapacity = handle.DefaultCapacity
	}
	if c.HopBudget == 0 {
		c.HopBudget = pathresolver.DefaultHopBudget
	}
	return c
}

// Engine is the single owner of a volume's backing store, in-memory
// superblock, open-file table, and current-working-directory pointer
// (spec §5 "Shared resources").
type Engine struct {
	dev    blockdev.Device
	layout superblock.Layout
	sb     *superblock.Superblock

	dataAlloc  *bitmap.Allocator
	inodeAlloc *bitmap.Allocator
	ino        *inode.Engine
	itable     *inode.Table
	dirs       *directory.Engine
	resolver   *pathresolver.Resolver
	handles    *handle.Table

	clock timeutil.Clock

	cwdInodeNum uint16
	activeUID   int

	mu syncutil.InvariantMutex
}

func (e *Engine) checkInvariants() {
	if e.sb == nil {
		panic("engine: superblock not loaded")
	}
	if int(e.cwdInodeNum) >= e.layout.InodeCount {
		panic("engine: cwd inode number out of range")
	}
}

func wire(dev blockdev.Device, layout superblock.Layout, sb *superblock.Superblock, cfg Config, clock timeutil.Clock) *Engine {
	dataAlloc := bitmap.New(dev, int64(sb.DataBitmapBlock)*int64(layout.BlockSize), layout.BlockSize,
		func() int { return int(sb.FreeBlockCount) },
		func(d int) {
			sb.FreeBlockCount = uint32(int(sb.FreeBlockCount) + d)
			_ = sb.Flush(layout.BlockSize)
		})
	inodeAlloc := bitmap.New(dev, int64(sb.InodeBitmapBlock)*int64(layout.BlockSize), layout.BlockSize,
		func() int { return int(sb.FreeInodeCount) },
		func(d int) {
			sb.FreeInodeCount = uint32(int(sb.FreeInodeCount) + d)
			_ = sb.Flush(layout.BlockSize)
		})

	ino := inode.NewEngine(dev, layout.BlockSize, layout.DataRegionStartBlock(), dataAlloc)
	itable := inode.NewTable(dev, layout)
	dirs := directory.NewEngine(ino)
	resolver := pathresolver.New(itable, ino, dirs, cfg.HopBudget)
	handles := handle.NewTable(cfg.HandleCapacity)

	e := &Engine{
		dev:         dev,
		layout:      layout,
		sb:          sb,
		dataAlloc:   dataAlloc,
		inodeAlloc:  inodeAlloc,
		ino:         ino,
		itable:      itable,
		dirs:        dirs,
		resolver:    resolver,
		handles:     handles,
		clock:       clock,
		cwdInodeNum: pathresolver.RootInodeNum,
		activeUID:   superblock.RootUID,
	}
	e.mu = syncutil.NewInvariantMutex(e.checkInvariants)
	return e
}

// Format initializes a brand-new volume on dev: writes the superblock, both
// bitmaps, and seeds the root directory and super-user (spec §6 layout
// table). dev must already be sized to cfg's layout (blockdev.Format does
// this for on-disk volumes).
func Format(dev blockdev.Device, cfg Config, clock timeutil.Clock, rootPassword string) (*Engine, error) {
	cfg = cfg.withDefaults()
	layout := superblock.NewLayout(cfg.BlockSize, cfg.InodeSize)
	if dev.Size() != layout.ImageSize() {
		return nil, fserrors.InvalidInputf("engine.Format: device size %d does not match layout size %d", dev.Size(), layout.ImageSize())
	}

	sb := superblock.New(dev, layout, cfg.Label)
	e := wire(dev, layout, sb, cfg, clock)

	// Zero both bitmaps before any allocation.
	zero := make([]byte, cfg.BlockSize)
	if err := dev.WriteAt(zero, int64(sb.DataBitmapBlock)*int64(cfg.BlockSize)); err != nil {
		return nil, err
	}
	if err := dev.WriteAt(zero, int64(sb.InodeBitmapBlock)*int64(cfg.BlockSize)); err != nil {
		return nil, err
	}

	now := uint32(clock.Now().Unix())

	rootInodeNum, err := e.inodeAlloc.Allocate()
	if err != nil {
		return nil, err
	}
	if rootInodeNum != int(pathresolver.RootInodeNum) {
		return nil, fserrors.New(fserrors.Other, "engine.Format: root did not receive inode number zero")
	}

	rootInode := inode.New(inode.DefaultDirMode, superblock.RootUID, inode.TypeDir, now)
	rootBlock, err := e.ino.AllocateDataBlock()
	if err != nil {
		return nil, err
	}
	rootInode.Block[0] = rootBlock
	rootInode.BlockCount = 1
	if err := e.dirs.InitRoot(&rootInode, rootBlock, uint16(rootInodeNum), uint16(rootInodeNum)); err != nil {
		return nil, err
	}
	if err := e.itable.Write(rootInodeNum, rootInode); err != nil {
		return nil, err
	}
	sb.DirCount = 1

	if err := e.Mkdir("/home"); err != nil {
		return nil, err
	}
	if err := e.Mkdir("/root"); err != nil {
		return nil, err
	}

	if _, err := sb.AddUser("root", rootPassword); err != nil {
		return nil, err
	}

	if err := sb.Flush(cfg.BlockSize); err != nil {
		return nil, err
	}

	return e, nil
}

// Init loads an existing volume from dev (spec §6 "init()").
func Init(dev blockdev.Device, cfg Config, clock timeutil.Clock) (*Engine, error) {
	cfg = cfg.withDefaults()
	layout := superblock.NewLayout(cfg.BlockSize, cfg.InodeSize)
	sb, err := superblock.Load(dev, cfg.BlockSize)
	if err != nil {
		return nil, err
	}
	return wire(dev, layout, sb, cfg, clock), nil
}

// Exit forces a write-through of the superblock and closes the backing
// device (spec §5 "Flushing").
func (e *Engine) Exit() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.sb.Flush(e.layout.BlockSize); err != nil {
		return err
	}
	return e.dev.Close()
}

// CurrentUser returns the currently logged-in uid (spec §6 "current_user()").
func (e *Engine) CurrentUser() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.activeUID
}

// GetInode returns a copy of inode number i (spec §6 "get_inode(i)").
func (e *Engine) GetInode(i int) (inode.Inode, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.itable.Read(i)
}

// now returns the current time as the inode ctime/mtime epoch-seconds
// field. Callers must hold e.mu.
func (e *Engine) now() uint32 {
	return uint32(e.clock.Now().Unix())
}

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

package engine

import (
	"github.com/gcsfuse-ext2/go-ext2fs/fs/fserrors"
	"github.com/gcsfuse-ext2/go-ext2fs/fs/inode"
)

// Login finds a user slot with matching name and password and makes it
// the active user (spec §4.8).
func (e *Engine) Login(name, pass string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	uid, err := e.sb.Login(name, pass)
	if err != nil {
		return err
	}
	e.activeUID = uid
	return nil
}

// Useradd installs a new user in the first empty table slot, then creates
// and chowns a home directory for them (spec §4.8).
func (e *Engine) Useradd(name, pass string) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	uid, err := e.sb.AddUser(name, pass)
	if err != nil {
		return 0, err
	}
	if err := e.sb.Flush(e.layout.BlockSize); err != nil {
		return 0, err
	}

	if err := e.ensureDirLocked("/home"); err != nil {
		return 0, err
	}
	homePath := "/home/" + name
	if _, _, err := e.createEntry(homePath, inode.TypeDir, inode.DefaultDirMode); err != nil {
		return 0, err
	}

	res, err := e.resolver.Resolve(homePath, e.cwdInodeNum, e.activeUID, true)
	if err != nil {
		return 0, err
	}
	target := res.TargetInode
	target.OwnerID = byte(uid)
	if err := e.itable.Write(int(res.TargetInodeNum), target); err != nil {
		return 0, err
	}

	return uid, nil
}

// ensureDirLocked creates path as a directory if it does not already
// exist. Caller must hold e.mu.
func (e *Engine) ensureDirLocked(path string) error {
	_, _, err := e.createEntry(path, inode.TypeDir, inode.DefaultDirMode)
	if err != nil && !fserrors.Is(err, fserrors.AlreadyExists) {
		return err
	}
	return nil
}

// Userdel clears name's user-table slot (spec §4.8): refuses the
// super-user and the currently logged-in user.
func (e *Engine) Userdel(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	uid, err := e.sb.FindUserByName(name)
	if err != nil {
		return err
	}
	if err := e.sb.DeleteUser(uid, e.activeUID); err != nil {
		return err
	}
	return e.sb.Flush(e.layout.BlockSize)
}

// Passwd changes uid's password; permitted only for the super-user or the
// target user himself (spec §4.8).
func (e *Engine) Passwd(uid int, newPass string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.sb.SetPassword(uid, newPass, e.activeUID); err != nil {
		return err
	}
	return e.sb.Flush(e.layout.BlockSize)
}

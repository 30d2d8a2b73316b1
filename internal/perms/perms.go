// Copyright 2015 Google Inc. All Rights Reserved.
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

// Package perms exposes the OS-level uid/gid of the running process, used
// to set the FUSE mount's uid/gid options. These are distinct from the
// engine's own 10-slot user table (fs/superblock): that table governs
// permission checks inside the volume, while this package governs who the
// kernel believes owns the mountpoint.
package perms

import (
	"fmt"
	"os/user"
	"strconv"
)

// MyUserAndGroup returns the uid and gid of the user running the current
// process.
func MyUserAndGroup() (uid uint32, gid uint32, err error) {
	u, err := user.Current()
	if err != nil {
		err = fmt.Errorf("user.Current: %w", err)
		return
	}

	uid64, err := strconv.ParseUint(u.Uid, 10, 32)
	if err != nil {
		err = fmt.Errorf("parsing uid %q: %w", u.Uid, err)
		return
	}

	gid64, err := strconv.ParseUint(u.Gid, 10, 32)
	if err != nil {
		err = fmt.Errorf("parsing gid %q: %w", u.Gid, err)
		return
	}

	uid = uint32(uid64)
	gid = uint32(gid64)
	return
}

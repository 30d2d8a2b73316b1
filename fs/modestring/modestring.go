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

// Package modestring parses and formats the chmod client grammar from
// spec §6: exactly seven characters, three owner mode characters, a ':'
// separator, three other mode characters, each either its class letter
// (r/w/x at the correct position) or '-'. Grounded on
// original_source/src/shell/cmd/chmod.rs, which the distilled spec names
// the grammar for but doesn't give a parser for.
package modestring

import (
	"github.com/gcsfuse-ext2/go-ext2fs/fs/fserrors"
	"github.com/gcsfuse-ext2/go-ext2fs/fs/inode"
)

const want = "rwx:rwx"

// Parse converts a 7-character "rwx:rwx"-shaped string into a Mode.
func Parse(s string) (inode.Mode, error) {
	if len(s) != len(want) {
		return 0, fserrors.InvalidInputf("modestring.Parse: %q must be exactly %d characters", s, len(want))
	}
	if s[3] != ':' {
		return 0, fserrors.InvalidInputf("modestring.Parse: %q missing ':' separator", s)
	}

	var m inode.Mode
	bits := []struct {
		pos  int
		want byte
		bit  inode.Mode
	}{
		{0, 'r', inode.OwnerRead},
		{1, 'w', inode.OwnerWrite},
		{2, 'x', inode.OwnerExec},
		{4, 'r', inode.OtherRead},
		{5, 'w', inode.OtherWrite},
		{6, 'x', inode.OtherExec},
	}
	for _, b := range bits {
		switch s[b.pos] {
		case b.want:
			m |= b.bit
		case '-':
			// bit stays clear
		default:
			return 0, fserrors.InvalidInputf("modestring.Parse: %q has invalid character %q at position %d", s, s[b.pos], b.pos)
		}
	}
	return m, nil
}

// Format renders a Mode back into the "rwx:rwx" grammar.
func Format(m inode.Mode) string {
	out := []byte("---:---")
	if m&inode.OwnerRead != 0 {
		out[0] = 'r'
	}
	if m&inode.OwnerWrite != 0 {
		out[1] = 'w'
	}
	if m&inode.OwnerExec != 0 {
		out[2] = 'x'
	}
	if m&inode.OtherRead != 0 {
		out[4] = 'r'
	}
	if m&inode.OtherWrite != 0 {
		out[5] = 'w'
	}
	if m&inode.OtherExec != 0 {
		out[6] = 'x'
	}
	return string(out)
}

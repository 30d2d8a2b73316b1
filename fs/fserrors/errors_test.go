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

package fserrors_test

import (
	"errors"
	"testing"

	"github.com/gcsfuse-ext2/go-ext2fs/fs/fserrors"
	"github.com/stretchr/testify/require"
)

func TestIsMatchesWrappedKind(t *testing.T) {
	cause := errors.New("disk fell off the truck")
	err := fserrors.Wrap(fserrors.IO, "blockdev.ReadAt", cause)

	require.True(t, fserrors.Is(err, fserrors.IO))
	require.False(t, fserrors.Is(err, fserrors.NotFound))
	require.True(t, errors.Is(err, fserrors.ErrIO))
}

func TestKindOfReturnsFalseForOpaqueError(t *testing.T) {
	_, ok := fserrors.KindOf(errors.New("plain"))
	require.False(t, ok)

	_, ok = fserrors.KindOf(nil)
	require.False(t, ok)
}

func TestKindOfExtractsKind(t *testing.T) {
	err := fserrors.New(fserrors.AlreadyExists, "mkdir")

	kind, ok := fserrors.KindOf(err)
	require.True(t, ok)
	require.Equal(t, fserrors.AlreadyExists, kind)
}

func TestUnwrapExposesCause(t *testing.T) {
	cause := errors.New("root cause")
	err := fserrors.Wrap(fserrors.InvalidData, "directory.Iterate", cause)
	require.Equal(t, cause, errors.Unwrap(err))
}

func TestFormattedConstructorsSetKindAndMessage(t *testing.T) {
	err := fserrors.OutOfSpacef("bitmap: no free blocks (%d requested)", 3)
	require.Equal(t, fserrors.OutOfSpace, err.Kind)
	require.Contains(t, err.Error(), "3 requested")
}

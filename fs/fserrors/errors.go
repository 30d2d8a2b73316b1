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

// Package fserrors defines the typed error kinds surfaced by the engine's
// public operations. Every public call returns one of these kinds (wrapped
// with context) rather than an opaque error, so callers can branch on
// failure mode the way a POSIX client branches on errno.
package fserrors

import (
	"errors"
	"fmt"
)

// Kind classifies why an engine operation failed.
type Kind int

const (
	// NotFound: named entry absent during resolution, or user not in the
	// user table.
	NotFound Kind = iota
	// AlreadyExists: an entry with that name exists in the target directory.
	AlreadyExists
	// PermissionDenied: missing read/write/execute for the calling user, or
	// a non-owner non-super-user attempted a privileged metadata change.
	PermissionDenied
	// OutOfSpace: a bitmap allocator could not grant a request.
	OutOfSpace
	// OutOfBounds: an inode number exceeds inode table capacity.
	OutOfBounds
	// InvalidInput: hard link to a directory, bad mode string, name
	// contains '/', name is empty, or name is >= 16 bytes.
	InvalidInput
	// InvalidData: symlink payload is not UTF-8, or an archive/report
	// layout is malformed.
	InvalidData
	// IO: the underlying read/write failed, or a short I/O occurred.
	IO
	// Other: the operation targeted the wrong kind of entity (e.g. opening
	// a directory as a file, or iterating a file).
	Other
)

func (k Kind) String() string {
	switch k {
	case NotFound:
		return "not found"
	case AlreadyExists:
		return "already exists"
	case PermissionDenied:
		return "permission denied"
	case OutOfSpace:
		return "out of space"
	case OutOfBounds:
		return "out of bounds"
	case InvalidInput:
		return "invalid input"
	case InvalidData:
		return "invalid data"
	case IO:
		return "I/O error"
	case Other:
		return "wrong entity kind"
	default:
		return "unknown error"
	}
}

// Error is the concrete error type returned by every engine operation that
// fails. Op names the failing operation (e.g. "mkdir", "inode.grow") for
// logging; it is not part of the equality contract — callers should compare
// Kind via Is/As, not the message text.
type Error struct {
	Kind Kind
	Op   string
	Err  error // optional wrapped cause
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same Kind, so the package's sentinels work
// as targets: errors.Is(err, fserrors.ErrNotFound).
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return e.Kind == other.Kind
	}
	return false
}

// New constructs an *Error of the given kind.
func New(kind Kind, op string) *Error {
	return &Error{Kind: kind, Op: op}
}

// Wrap constructs an *Error of the given kind, preserving cause.
func Wrap(kind Kind, op string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Err: cause}
}

// sentinel returns a zero-cause *Error of the given kind, suitable for use
// as the target of errors.Is.
func sentinel(kind Kind) *Error { return &Error{Kind: kind} }

var (
	// ErrNotFound etc. are sentinels for errors.Is(err, fserrors.ErrNotFound).
	ErrNotFound         = sentinel(NotFound)
	ErrAlreadyExists    = sentinel(AlreadyExists)
	ErrPermissionDenied = sentinel(PermissionDenied)
	ErrOutOfSpace       = sentinel(OutOfSpace)
	ErrOutOfBounds      = sentinel(OutOfBounds)
	ErrInvalidInput     = sentinel(InvalidInput)
	ErrInvalidData      = sentinel(InvalidData)
	ErrIO               = sentinel(IO)
	ErrOther            = sentinel(Other)
)

// Is reports whether err (or something it wraps) carries the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// KindOf extracts the Kind carried by err, if any. ok is false when err is
// nil or is not (and does not wrap) an *Error, in which case callers should
// treat the error as opaque rather than branch on a zero Kind.
func KindOf(err error) (kind Kind, ok bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

// NotFoundf, etc. are convenience constructors that format Op.
func NotFoundf(format string, args ...any) *Error {
	return New(NotFound, fmt.Sprintf(format, args...))
}

func AlreadyExistsf(format string, args ...any) *Error {
	return New(AlreadyExists, fmt.Sprintf(format, args...))
}

func PermissionDeniedf(format string, args ...any) *Error {
	return New(PermissionDenied, fmt.Sprintf(format, args...))
}

func OutOfSpacef(format string, args ...any) *Error {
	return New(OutOfSpace, fmt.Sprintf(format, args...))
}

func OutOfBoundsf(format string, args ...any) *Error {
	return New(OutOfBounds, fmt.Sprintf(format, args...))
}

func InvalidInputf(format string, args ...any) *Error {
	return New(InvalidInput, fmt.Sprintf(format, args...))
}

func InvalidDataf(format string, args ...any) *Error {
	return New(InvalidData, fmt.Sprintf(format, args...))
}

func IOf(format string, args ...any) *Error {
	return New(IO, fmt.Sprintf(format, args...))
}

func Otherf(format string, args ...any) *Error {
	return New(Other, fmt.Sprintf(format, args...))
}

// Copyright (c) 2025 Stefano Scafiti
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.
package trsdos

import "fmt"

// ErrorKind enumerates the filesystem-level failures a caller can act on,
// consolidating the mix of optional returns, bool returns and raised
// exceptions the original driver used into a single tagged result type.
type ErrorKind int

const (
	// ErrNotFound means the directory scan never located the requested name.
	ErrNotFound ErrorKind = iota
	// ErrDiskFull means the allocator ran out of free granules.
	ErrDiskFull
	// ErrTooFragmented means satisfying an allocation would exceed the
	// five-extent capacity of an FPDE.
	ErrTooFragmented
	// ErrNoFreeSlot means no directory entry with attribute byte 0 was
	// found in the scan range.
	ErrNoFreeSlot
)

func (k ErrorKind) String() string {
	switch k {
	case ErrNotFound:
		return "file not found"
	case ErrDiskFull:
		return "disk full"
	case ErrTooFragmented:
		return "too fragmented"
	case ErrNoFreeSlot:
		return "no free directory slot"
	default:
		return "unknown error"
	}
}

// Error wraps an ErrorKind with the operation and name that triggered it.
type Error struct {
	Kind ErrorKind
	Op   string
	Name string
}

func (e *Error) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("trsdos: %s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("trsdos: %s %q: %s", e.Op, e.Name, e.Kind)
}

func newError(op, name string, kind ErrorKind) *Error {
	return &Error{Kind: kind, Op: op, Name: name}
}

// IsKind reports whether err is a *Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	e, ok := err.(*Error)
	return ok && e.Kind == kind
}

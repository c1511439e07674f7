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

// Package image implements the sector-level container formats used by
// TRS-80 floppy disk images: JV1, JV3 and DMK. Every format is presented
// behind the same (cylinder, head, sector) -> 256-byte payload interface
// so the filesystem layer never needs to know which container it is
// reading from.
package image

import (
	"fmt"
	"io"
)

// SectorSize is the payload size the filesystem layer ever sees, across
// all three container formats.
const SectorSize = 256

// CHS addresses a single physical sector.
type CHS struct {
	Cylinder int
	Head     int
	Sector   int
}

func (c CHS) String() string {
	return fmt.Sprintf("(cyl=%d head=%d sec=%d)", c.Cylinder, c.Head, c.Sector)
}

// Image is the uniform interface every container format exposes. Reads
// that miss return ok=false rather than an error: a missing sector is
// routine (a short track, a hole in a sparse image) and not exceptional.
type Image interface {
	// ReadSector returns the 256-byte payload at addr, or ok=false if no
	// such sector exists in the image.
	ReadSector(addr CHS) (payload []byte, ok bool)

	// WriteSector overwrites the payload at addr. It returns false if the
	// format does not support writes (JV3) or addr does not exist.
	WriteSector(addr CHS, payload []byte) bool

	// Save persists the in-memory buffer back to the backing file,
	// rewriting it in full.
	Save() error

	// Geometry describes the detected container format and layout, for
	// diagnostics (trsdisk info, log lines).
	Geometry() string
}

// Open reads path fully into memory via r and dispatches to the
// appropriate format handler. Detection follows the order specified for
// TRS-80 images: a plausible DMK header wins if the filename says .dmk,
// otherwise the image is treated as a flat JV1 sector dump. JV3 has no
// reliable magic of its own and is never auto-detected; callers that know
// they have a JV3 image construct one directly with OpenJV3.
func Open(path string, r io.ReaderAt, size int64) (Image, error) {
	buf := make([]byte, size)
	if _, err := r.ReadAt(buf, 0); err != nil && err != io.EOF {
		return nil, fmt.Errorf("image: reading %q: %w", path, err)
	}

	if looksLikeDMKPath(path) && isPlausibleDMKHeader(buf) {
		return newDMK(buf, path)
	}
	return newJV1WithPath(buf, path), nil
}

func looksLikeDMKPath(path string) bool {
	n := len(path)
	return n >= 4 && (path[n-4:] == ".dmk" || path[n-4:] == ".DMK")
}

// isPlausibleDMKHeader accepts a buffer as a DMK header iff the declared
// track count and track length fall in the windows real DMK images use.
// A .dmk-named file that fails this check is not garbage: it is most
// likely a raw JV1 dump someone renamed, so callers fall through to JV1.
func isPlausibleDMKHeader(buf []byte) bool {
	if len(buf) < 16 {
		return false
	}
	numTracks := int(buf[1])
	trackLen := int(buf[2]) | int(buf[3])<<8
	return numTracks > 0 && numTracks <= 100 && trackLen > 0 && trackLen < 20000
}

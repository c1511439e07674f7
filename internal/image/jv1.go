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
package image

import (
	"fmt"
	"os"
)

// JV1 sectors per track. The format carries no header, so this is a fixed
// convention rather than something read from the image.
const jv1SectorsPerTrack = 10

// JV1 is the flat, headerless single-sided sector dump format. Sector n
// of track t sits at offset (t*10 + n) * 256.
type JV1 struct {
	buf   []byte
	path  string
	dirty bool
}

func newJV1WithPath(buf []byte, path string) *JV1 {
	return &JV1{buf: buf, path: path}
}

// OpenJV1 reads a raw JV1 image from disk. Exposed separately from Open
// for callers that already know the format (e.g. a user-supplied
// --format=jv1 override) and want to skip detection.
func OpenJV1(path string) (*JV1, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("jv1: %w", err)
	}
	return &JV1{buf: buf, path: path}, nil
}

func (j *JV1) offset(addr CHS) (int, bool) {
	if addr.Head != 0 || addr.Sector < 0 || addr.Sector >= jv1SectorsPerTrack || addr.Cylinder < 0 {
		return 0, false
	}
	off := (addr.Cylinder*jv1SectorsPerTrack + addr.Sector) * SectorSize
	if off < 0 || off+SectorSize > len(j.buf) {
		return 0, false
	}
	return off, true
}

func (j *JV1) ReadSector(addr CHS) ([]byte, bool) {
	off, ok := j.offset(addr)
	if !ok {
		return nil, false
	}
	out := make([]byte, SectorSize)
	copy(out, j.buf[off:off+SectorSize])
	return out, true
}

func (j *JV1) WriteSector(addr CHS, payload []byte) bool {
	if len(payload) != SectorSize {
		return false
	}
	off, ok := j.offset(addr)
	if !ok {
		return false
	}
	copy(j.buf[off:off+SectorSize], payload)
	j.dirty = true
	return true
}

func (j *JV1) Save() error {
	if j.path == "" {
		return fmt.Errorf("jv1: no backing path to save to")
	}
	if err := os.WriteFile(j.path, j.buf, 0644); err != nil {
		return fmt.Errorf("jv1: save: %w", err)
	}
	j.dirty = false
	return nil
}

func (j *JV1) Geometry() string {
	tracks := len(j.buf) / (jv1SectorsPerTrack * SectorSize)
	return fmt.Sprintf("JV1 (raw sector dump, single-sided, %d sectors/track, %d tracks)", jv1SectorsPerTrack, tracks)
}

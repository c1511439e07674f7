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

// jv3Key packs a (track, head, sector) triple into a single comparable
// map key, replacing a tuple-of-three map used by the original driver.
type jv3Key uint32

func makeJV3Key(track, head, sector byte) jv3Key {
	return jv3Key(track)<<16 | jv3Key(head)<<8 | jv3Key(sector)
}

// jv3SizeCodeLen maps a 2-bit size code to its payload length in bytes.
var jv3SizeCodeLen = [4]int{256, 128, 1024, 512}

// JV3 is the packed (header, data) record stream format. Unlike JV1 it
// carries no fixed geometry: a lookup table mapping (cyl, head, sec) to
// an absolute offset is built once at open time by walking every record.
//
// Per spec, JV3 write support is not implemented: WriteSector always
// returns false.
type JV3 struct {
	buf     []byte
	path    string
	offsets map[jv3Key]int // (track, head, sector) -> offset of the 256-byte payload
	tracks  int
	heads   int
}

// OpenJV3 reads a JV3 image and builds its sector-address table.
func OpenJV3(path string) (*JV3, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("jv3: %w", err)
	}
	return newJV3(buf, path), nil
}

func newJV3(buf []byte, path string) *JV3 {
	j := &JV3{buf: buf, path: path, offsets: make(map[jv3Key]int)}
	j.parse()
	return j
}

// parse walks the record stream from offset 0. Each record is a 3-byte
// header (track, sector, flags) followed by a payload whose length is
// determined by the 2-bit size code in flags. track == 0xFF marks an
// unused slot: the walker must still skip its payload (sized by the
// flags byte) to stay in sync with the rest of the stream.
func (j *JV3) parse() {
	off := 0
	for off+3 <= len(j.buf) {
		track := j.buf[off]
		sector := j.buf[off+1]
		flags := j.buf[off+2]
		sizeCode := flags & 0x03
		dataLen := jv3SizeCodeLen[sizeCode]

		if track == 0xFF {
			off += 3 + dataLen
			continue
		}

		head := (flags >> 4) & 1
		dataOff := off + 3
		if dataLen == SectorSize && dataOff+dataLen <= len(j.buf) {
			j.offsets[makeJV3Key(track, head, sector)] = dataOff
		}

		if int(track)+1 > j.tracks {
			j.tracks = int(track) + 1
		}
		if int(head)+1 > j.heads {
			j.heads = int(head) + 1
		}

		off = dataOff + dataLen
	}
}

func (j *JV3) ReadSector(addr CHS) ([]byte, bool) {
	if addr.Cylinder < 0 || addr.Cylinder > 0xFF || addr.Head < 0 || addr.Sector < 0 || addr.Sector > 0xFF {
		return nil, false
	}
	key := makeJV3Key(byte(addr.Cylinder), byte(addr.Head), byte(addr.Sector))
	off, ok := j.offsets[key]
	if !ok {
		return nil, false
	}
	// The filesystem layer only ever deals in 256-byte sectors; parse
	// enters only records of that size in the table, so records of any
	// other size code are never found here.
	if off+SectorSize > len(j.buf) {
		return nil, false
	}
	out := make([]byte, SectorSize)
	copy(out, j.buf[off:off+SectorSize])
	return out, true
}

// WriteSector is unimplemented for JV3: writes to this format are out of
// scope (spec Non-goals, §9 Open Questions).
func (j *JV3) WriteSector(addr CHS, payload []byte) bool {
	return false
}

func (j *JV3) Save() error {
	return fmt.Errorf("jv3: write support not implemented")
}

func (j *JV3) Geometry() string {
	return fmt.Sprintf("JV3 (%d tracks, %d sides)", j.tracks, j.heads)
}

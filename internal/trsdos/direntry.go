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

import "strings"

// FPDE (Primary Directory Entry) byte offsets.
const (
	entrySize     = 32
	entriesPerSec = 256 / entrySize

	offAttr    = 0
	offEOFLow  = 3
	offName    = 5
	nameLen    = 8
	offExt     = 13
	extLen     = 3
	offEOFMid  = 20
	offEOFHigh = 21
	offExtents = 22
	maxExtents = 5
)

// Attribute bits of the FPDE attribute byte.
const (
	attrInUse     = 0x10
	attrExtension = 0x80 // FXDE continuation; never a primary entry
	attrSystem    = 0x40
	attrInvisible = 0x08
)

// Extent is one (track, start granule, count) run decoded from, or to be
// encoded into, a directory entry's 10-byte extent table.
type Extent struct {
	Track        byte
	StartGranule int
	Count        int
}

// extentTerminator / extentFXDELink are the two sentinel track values
// that end an extent list. FXDE chaining is not implemented; encountering
// one simply stops the walk, per spec.
const (
	extentTerminator = 0xFF
	extentFXDELink   = 0xFE
)

// DirEntry is a decoded, read-facing view of one FPDE.
type DirEntry struct {
	Name      string
	Ext       string
	Size      int64
	Attr      byte
	Invisible bool
	System    bool
	Extents   []Extent

	// hasFXDELink reports whether this entry's extent list was truncated
	// by an FXDE continuation record (§4.3); FXDE chaining itself is not
	// implemented, so any granules beyond the truncation point are lost
	// to this driver.
	hasFXDELink bool

	// sector/offset of the raw entry within the directory track, used by
	// deleteEntryAt to locate the backing bytes again.
	sector int
	offset int
}

// FullName renders "NAME/EXT" the way TRSDOS filenames are addressed.
func (e DirEntry) FullName() string {
	if e.Ext == "" {
		return e.Name + "/"
	}
	return e.Name + "/" + e.Ext
}

// isValidEntry applies the §4.3/§4.2 "plausibly valid directory entry"
// filter: in-use, not an FXDE, printable name/extension.
func isValidEntry(raw []byte) bool {
	attr := raw[offAttr]
	if attr&attrInUse == 0 {
		return false
	}
	if attr&attrExtension != 0 {
		return false
	}
	return isPlausibleEntry(raw)
}

// isPlausibleEntry is the weaker check used by the directory-track
// discovery scan (§4.2), which only requires attribute/name/extension
// shape and does not require the in-use bit (some analyzer probes look
// at raw candidate tracks before they know which bit means what).
func isPlausibleEntry(raw []byte) bool {
	attr := raw[offAttr]
	if attr == 0 || attr == 0xFF {
		return false
	}
	if attr&attrExtension != 0 {
		return false
	}
	name := raw[offName : offName+nameLen]
	if !isAlnum(name[0]) {
		return false
	}
	for _, b := range name {
		if b < 32 || b > 126 {
			return false
		}
	}
	ext := raw[offExt : offExt+extLen]
	for _, b := range ext {
		if !isAlnum(b) && b != ' ' {
			return false
		}
	}
	return true
}

func isAlnum(b byte) bool {
	return (b >= '0' && b <= '9') || (b >= 'A' && b <= 'Z') || (b >= 'a' && b <= 'z')
}

// decodeExtents reads up to five (track, start_granule, count) records
// starting at offset 22, stopping at the terminator or an FXDE link.
// hitFXDE reports whether the walk stopped because of the latter, so
// callers can warn about the unsupported continuation without having to
// re-inspect the raw bytes themselves.
func decodeExtents(raw []byte) (extents []Extent, hitFXDE bool) {
	for i := 0; i < maxExtents; i++ {
		off := offExtents + i*2
		track := raw[off]
		if track == extentFXDELink {
			hitFXDE = true
			break
		}
		if track == extentTerminator {
			break
		}
		info := raw[off+1]
		extents = append(extents, Extent{
			Track:        track,
			StartGranule: int(info>>5) & 0x07,
			Count:        int(info&0x1F) + 1,
		})
	}
	return extents, hitFXDE
}

// totalSectorsAllocated sums count*sectorsPerGranule across the extent
// list, needed to resolve the RBA EOF encoding (§3).
func totalSectorsAllocated(extents []Extent, sectorsPerGranule int) int {
	total := 0
	for _, e := range extents {
		total += e.Count * sectorsPerGranule
	}
	return total
}

// decodeFileSize applies the dual EOF rule of §3: EOF-low == 0 selects
// RBA format (an offset into the last allocated sector); any other value
// selects the "+255" offset format, whose 24-bit value is (size-1)+255 as
// written by encodeEOF. encodeEOF clamps size-1 at zero, so the value 255
// is shared by empty and 1-byte files and decodes as empty.
func decodeFileSize(raw []byte, totalSectors int) int64 {
	eofLow := raw[offEOFLow]
	eofMid := raw[offEOFMid]
	eofHigh := raw[offEOFHigh]

	if eofLow == 0 {
		lastSectorOffset := int(eofHigh)<<8 | int(eofMid)
		if totalSectors > 0 {
			return int64(totalSectors-1)*256 + int64(lastSectorOffset+1)
		}
		return 0
	}

	rawEOF := int(eofHigh)<<16 | int(eofMid)<<8 | int(eofLow)
	rba := rawEOF - 255
	if rba <= 0 {
		return 0
	}
	return int64(rba) + 1
}

// encodeEOF picks between RBA and offset format per §4.6: offset format
// is preferred, but if its low byte would land on zero (which would be
// mis-decoded as RBA format on the next read) RBA format is forced
// instead. Returns (eofLow, eofMid, eofHigh).
func encodeEOF(size int64) (byte, byte, byte) {
	rba := size - 1
	if rba < 0 {
		rba = 0
	}
	rawEOF := rba + 255
	eofLow := byte(rawEOF & 0xFF)
	if eofLow == 0 {
		return 0, byte(rba & 0xFF), byte((rba >> 8) & 0xFF)
	}
	return eofLow, byte((rawEOF >> 8) & 0xFF), byte((rawEOF >> 16) & 0xFF)
}

// decodeDirEntry turns a 32-byte raw record at (sector, offset) into a
// DirEntry, applying the full validity filter used for file listing
// (§4.3).
func decodeDirEntry(raw []byte, sector, offset, sectorsPerGranule int) (DirEntry, bool) {
	if !isValidEntry(raw) {
		return DirEntry{}, false
	}

	name := raw[offName : offName+nameLen]
	ext := raw[offExt : offExt+extLen]

	extents, hitFXDE := decodeExtents(raw)
	total := totalSectorsAllocated(extents, sectorsPerGranule)
	size := decodeFileSize(raw, total)
	attr := raw[offAttr]

	return DirEntry{
		Name:        strings.TrimRight(string(name), " "),
		Ext:         strings.TrimRight(string(ext), " "),
		Size:        size,
		Attr:        attr,
		Invisible:   attr&attrInvisible != 0,
		System:      attr&attrSystem != 0,
		Extents:     extents,
		hasFXDELink: hitFXDE,
		sector:      sector,
		offset:      offset,
	}, true
}

// normalizeName splits "NAME/EXT" or "NAME.EXT" (the mount layer's POSIX
// spelling) into uppercase, space-padded 8.3 fields.
func normalizeName(filename string) (name, ext string) {
	sep := "/"
	if !strings.Contains(filename, sep) && strings.Contains(filename, ".") {
		sep = "."
	}
	parts := strings.SplitN(filename, sep, 2)
	name = parts[0]
	if len(parts) > 1 {
		ext = parts[1]
	}
	name = strings.ToUpper(strings.TrimSpace(name))
	ext = strings.ToUpper(strings.TrimSpace(ext))
	if len(name) > nameLen {
		name = name[:nameLen]
	}
	if len(ext) > extLen {
		ext = ext[:extLen]
	}
	name = name + strings.Repeat(" ", nameLen-len(name))
	ext = ext + strings.Repeat(" ", extLen-len(ext))
	return name, ext
}

// encodeDirEntry writes attribute, name, extension, EOF and extent fields
// into a fresh 32-byte record for §4.6's file-write path.
func encodeDirEntry(name, ext string, size int64, extents []Extent) []byte {
	raw := make([]byte, entrySize)
	raw[offAttr] = attrInUse
	copy(raw[offName:offName+nameLen], name)
	copy(raw[offExt:offExt+extLen], ext)

	eofLow, eofMid, eofHigh := encodeEOF(size)
	raw[offEOFLow] = eofLow
	raw[offEOFMid] = eofMid
	raw[offEOFHigh] = eofHigh

	for i, e := range extents {
		off := offExtents + i*2
		raw[off] = e.Track
		raw[off+1] = byte((e.StartGranule&0x07)<<5) | byte((e.Count-1)&0x1F)
	}
	if len(extents) < maxExtents {
		raw[offExtents+len(extents)*2] = extentTerminator
	}
	return raw
}

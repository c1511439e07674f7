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

import (
	"github.com/ostafen/trsdisk/internal/image"
)

// gatSector is the sector on DirTrack carrying the Granule Allocation
// Table: the same sector the §4.2 probe reads the GAT marker from.
func gatSector(l Layout) image.CHS {
	return image.CHS{Cylinder: l.DirTrack, Head: 0, Sector: l.SectorBase}
}

// readGAT loads the GAT sector into a fresh byte slice the caller is free
// to mutate locally before deciding whether to commit it back.
func readGAT(disk image.Image, l Layout) []byte {
	data, ok := disk.ReadSector(gatSector(l))
	if !ok {
		return make([]byte, image.SectorSize)
	}
	gat := make([]byte, len(data))
	copy(gat, data)
	return gat
}

func writeGAT(disk image.Image, l Layout, gat []byte) {
	disk.WriteSector(gatSector(l), gat)
}

// granuleSectors maps one granule to its underlying CHS list, per §4.4:
// granule g on track starts at g*SectorsPerGranule, running for
// SectorsPerGranule consecutive sectors (granule 0 covers sectors 0-4,
// granule 1 covers sectors 5-9 on a single-density Model I disk). Unlike
// gatSector/the directory scan range, SectorBase is NOT added here: it
// locates the GAT and directory entries on a 1-based disk, but data
// granules are always addressed from sector 0 of their track, matching
// trs80_driver.py's read_file/write_file sector arithmetic.
func granuleSectors(track byte, granule int, l Layout) []image.CHS {
	start := granule * l.Geometry.SectorsPerGranule
	sectors := make([]image.CHS, l.Geometry.SectorsPerGranule)
	for i := range sectors {
		sectors[i] = image.CHS{Cylinder: int(track), Head: 0, Sector: start + i}
	}
	return sectors
}

// listEntriesRaw walks the directory scan range and decodes every
// plausible FPDE, used by both ListFiles and the OS-identification probe.
func listEntriesRaw(disk image.Image, l Layout) []DirEntry {
	start, end := l.directoryScanRange()
	var entries []DirEntry
	for sector := start; sector < end; sector++ {
		data, ok := disk.ReadSector(image.CHS{Cylinder: l.DirTrack, Head: 0, Sector: sector})
		if !ok {
			continue
		}
		for slot := 0; slot < entriesPerSec; slot++ {
			off := slot * entrySize
			raw := data[off : off+entrySize]
			if e, ok := decodeDirEntry(raw, sector, off, l.Geometry.SectorsPerGranule); ok {
				entries = append(entries, e)
			}
		}
	}
	return entries
}

// ListFiles returns every in-use, non-extension directory entry (§4.3).
func (fs *FileSystem) ListFiles() []DirEntry {
	entries := listEntriesRaw(fs.img, fs.layout)
	if !fs.loggedFXDE {
		for _, e := range entries {
			if e.hasFXDELink {
				fs.log.Warn("trsdos: entry truncated at unsupported FXDE continuation record")
				fs.loggedFXDE = true
				break
			}
		}
	}
	return entries
}

// findEntry scans the directory for an entry matching name/ext, returning
// ok=false if no such file exists.
func (fs *FileSystem) findEntry(filename string) (DirEntry, bool) {
	name, ext := normalizeName(filename)
	wantName := trimSpaces(name)
	wantExt := trimSpaces(ext)
	for _, e := range fs.ListFiles() {
		if e.Name == wantName && e.Ext == wantExt {
			return e, true
		}
	}
	return DirEntry{}, false
}

func trimSpaces(s string) string {
	i := len(s)
	for i > 0 && s[i-1] == ' ' {
		i--
	}
	return s[:i]
}

// ReadFile implements §4.4: walk the entry's extents in order, reading
// every granule's sectors, zero-filling any sector the image can't
// supply, then truncate the concatenated buffer to the recorded size.
func (fs *FileSystem) ReadFile(filename string) ([]byte, error) {
	entry, ok := fs.findEntry(filename)
	if !ok {
		return nil, newError("read", filename, ErrNotFound)
	}

	var buf []byte
	for _, ext := range entry.Extents {
		for g := ext.StartGranule; g < ext.StartGranule+ext.Count; g++ {
			for _, addr := range granuleSectors(ext.Track, g, fs.layout) {
				data, ok := fs.img.ReadSector(addr)
				if !ok {
					data = make([]byte, image.SectorSize)
				}
				buf = append(buf, data...)
			}
		}
	}

	if int64(len(buf)) > entry.Size {
		buf = buf[:entry.Size]
	} else if int64(len(buf)) < entry.Size {
		buf = append(buf, make([]byte, entry.Size-int64(len(buf)))...)
	}
	return buf, nil
}

// GetFreeSpace implements §4.5 "Free space".
func (fs *FileSystem) GetFreeSpace() int64 {
	gat := readGAT(fs.img, fs.layout)
	return freeSpace(gat, fs.layout.DirTrack, fs.layout.Geometry.SectorsPerGranule, fs.layout.Geometry.GranulesPerTrack)
}

// findFreeSlot scans the directory range for the first entry whose
// attribute byte is zero (§4.6 "no free directory slot").
func (fs *FileSystem) findFreeSlot() (sector, offset int, ok bool) {
	start, end := fs.layout.directoryScanRange()
	for sector = start; sector < end; sector++ {
		data, readOK := fs.img.ReadSector(image.CHS{Cylinder: fs.layout.DirTrack, Head: 0, Sector: sector})
		if !readOK {
			continue
		}
		for slot := 0; slot < entriesPerSec; slot++ {
			off := slot * entrySize
			if data[off+offAttr] == 0 {
				return sector, off, true
			}
		}
	}
	return 0, 0, false
}

// deleteEntryAt zeroes the attribute byte of the FPDE at (sector, offset),
// the §4.7 delete operation: the slot becomes free without touching the
// rest of the record.
func (fs *FileSystem) deleteEntryAt(sector, offset int) {
	data, ok := fs.img.ReadSector(image.CHS{Cylinder: fs.layout.DirTrack, Head: 0, Sector: sector})
	if !ok {
		return
	}
	raw := make([]byte, image.SectorSize)
	copy(raw, data)
	raw[offset+offAttr] = 0
	fs.img.WriteSector(image.CHS{Cylinder: fs.layout.DirTrack, Head: 0, Sector: sector}, raw)
}

// writeEntryAt installs a freshly encoded FPDE at (sector, offset).
func (fs *FileSystem) writeEntryAt(sector, offset int, raw []byte) {
	data, ok := fs.img.ReadSector(image.CHS{Cylinder: fs.layout.DirTrack, Head: 0, Sector: sector})
	if !ok {
		data = make([]byte, image.SectorSize)
	}
	sec := make([]byte, image.SectorSize)
	copy(sec, data)
	copy(sec[offset:offset+entrySize], raw)
	fs.img.WriteSector(image.CHS{Cylinder: fs.layout.DirTrack, Head: 0, Sector: sector}, sec)
}

// DeleteFile implements §4.7: locate the entry, free its granules in the
// GAT, then clear the directory slot.
func (fs *FileSystem) DeleteFile(filename string) error {
	entry, ok := fs.findEntry(filename)
	if !ok {
		return newError("delete", filename, ErrNotFound)
	}

	gat := readGAT(fs.img, fs.layout)
	freeExtents(gat, entry.Extents, fs.layout.Geometry.GranulesPerTrack)
	writeGAT(fs.img, fs.layout, gat)

	fs.deleteEntryAt(entry.sector, entry.offset)
	return fs.img.Save()
}

// WriteFile implements §4.6: overwrite-by-delete-then-create semantics,
// first-fit allocation, and zero-padding the final partial sector.
func (fs *FileSystem) WriteFile(filename string, data []byte) error {
	if existing, ok := fs.findEntry(filename); ok {
		gat := readGAT(fs.img, fs.layout)
		freeExtents(gat, existing.Extents, fs.layout.Geometry.GranulesPerTrack)
		writeGAT(fs.img, fs.layout, gat)
		fs.deleteEntryAt(existing.sector, existing.offset)
	}

	gat := readGAT(fs.img, fs.layout)

	bytesPerGranule := fs.layout.Geometry.SectorsPerGranule * image.SectorSize
	granulesNeeded := (len(data) + bytesPerGranule - 1) / bytesPerGranule
	if granulesNeeded == 0 {
		granulesNeeded = 1
	}

	extents, err := allocate(gat, fs.layout.DirTrack, fs.layout.Geometry.GranulesPerTrack, granulesNeeded)
	if err != nil {
		return err
	}

	sector, offset, ok := fs.findFreeSlot()
	if !ok {
		return newError("write", filename, ErrNoFreeSlot)
	}

	name, ext := normalizeName(filename)
	raw := encodeDirEntry(name, ext, int64(len(data)), extents)

	pos := 0
	for _, ext := range extents {
		for g := ext.StartGranule; g < ext.StartGranule+ext.Count; g++ {
			for _, addr := range granuleSectors(ext.Track, g, fs.layout) {
				chunk := make([]byte, image.SectorSize)
				if pos < len(data) {
					n := copy(chunk, data[pos:])
					pos += n
				}
				fs.img.WriteSector(addr, chunk)
			}
		}
	}

	writeGAT(fs.img, fs.layout, gat)
	fs.writeEntryAt(sector, offset, raw)
	return fs.img.Save()
}

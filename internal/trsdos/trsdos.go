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

// Package trsdos decodes and mutates the TRSDOS/NEWDOS family of
// filesystems found on TRS-80 floppy images: the Granule Allocation
// Table, the directory and its dual end-of-file encodings, and the
// extent-based allocation model. It reads and writes sectors through an
// image.Image and never touches the backing file directly.
package trsdos

import (
	"strings"

	"github.com/ostafen/trsdisk/internal/image"
	"github.com/ostafen/trsdisk/internal/logger"
)

// Geometry describes the allocation unit: sectorsPerGranule consecutive
// sectors make up one granule, granulesPerTrack granules fit on a track.
// The spec's Open Question on double-density geometry is resolved by
// inferring this from the probed sector range rather than hard-coding it.
type Geometry struct {
	SectorsPerGranule int
	GranulesPerTrack  int
}

var (
	geometrySingleDensity = Geometry{SectorsPerGranule: 5, GranulesPerTrack: 2}
	geometryDoubleDensity = Geometry{SectorsPerGranule: 6, GranulesPerTrack: 3}
)

// Layout is the result of analyzing a disk image once, cached for the
// life of the FileSystem.
type Layout struct {
	DirTrack   int
	SectorBase int
	SystemType string
	DetectedOS string
	Geometry   Geometry
	scanStart  int
	scanEnd    int
}

// directoryScanRange returns the [start, end) sector range the directory
// decoder walks, per §4.3 (the NEWDOS/80 system-disk case starts at
// sector 10 regardless of sector base).
func (l Layout) directoryScanRange() (int, int) {
	return l.scanStart, l.scanEnd
}

var gatCandidateMarkers = []byte{0xFF, 0xFE, 0xFD, 0xFC, 0x3F, 0x1F, 0x0F, 0x7F}

// FileSystem is the high-level TRSDOS/NEWDOS interface consumed by the
// CLI and the FUSE mount layer (§6's filesystem object contract).
type FileSystem struct {
	img    image.Image
	layout Layout
	log    *logger.Logger

	// loggedFXDE tracks whether the FXDE-truncation warning has already
	// fired for this open; it is not meant to repeat once per file.
	loggedFXDE bool
}

// New analyzes disk and returns a FileSystem wrapping it. Analysis never
// fails: a disk that can't be confidently identified gets a best-effort
// Layout and a Warn-level log line, per §7's "Filesystem-inconsistent"
// being a warning, not a fatal error.
func New(disk image.Image, log *logger.Logger) *FileSystem {
	if log == nil {
		log = logger.New(nil, logger.ErrorLevel)
	}
	fs := &FileSystem{img: disk, log: log}
	fs.layout = analyze(disk, log)
	return fs
}

// Layout exposes the cached analysis result (directory track, OS variant,
// sector base, allocation geometry).
func (fs *FileSystem) Layout() Layout {
	return fs.layout
}

func checkGAT(disk image.Image, track, sector int) bool {
	data, ok := disk.ReadSector(image.CHS{Cylinder: track, Head: 0, Sector: sector})
	if !ok {
		return false
	}
	for _, m := range gatCandidateMarkers {
		if data[0] == m {
			return true
		}
	}
	text := latin1ToString(data)
	return strings.Contains(text, "TRSDOS") || strings.Contains(text, "GAT")
}

func latin1ToString(data []byte) string {
	r := make([]rune, len(data))
	for i, b := range data {
		r[i] = rune(b)
	}
	return string(r)
}

// checkNewdos80Track9 implements the NEWDOS/80 v2 fallback probe: track
// 9 sector 10 with a plausible directory-entry attribute byte and a name
// containing "BOOT" or "SYS".
func checkNewdos80Track9(disk image.Image) bool {
	data, ok := disk.ReadSector(image.CHS{Cylinder: 9, Head: 0, Sector: 10})
	if !ok {
		return false
	}
	attr := data[offAttr]
	if attr == 0 || attr == 0xFF {
		return false
	}
	name := string(data[offName : offName+nameLen])
	return strings.Contains(name, "BOOT") || strings.Contains(name, "SYS")
}

// checkNewdos80System implements the Z80-opcode system-disk fallback:
// track 17 sector 0 beginning with a common Z80 opcode byte.
func checkNewdos80System(disk image.Image) bool {
	data, ok := disk.ReadSector(image.CHS{Cylinder: 17, Head: 0, Sector: 0})
	if !ok {
		return false
	}
	switch data[0] {
	case 0xE1, 0xC1, 0x3A, 0xCD, 0xC3, 0xF3:
		return true
	default:
		return false
	}
}

// countPlausibleEntries implements the §4.2(iii) full-track scan: read a
// handful of candidate directory sectors and count entries that pass the
// "plausibly valid directory entry" filter.
func countPlausibleEntries(disk image.Image, track int) int {
	count := 0
	for s := 2; s < 6; s++ {
		data, ok := disk.ReadSector(image.CHS{Cylinder: track, Head: 0, Sector: s})
		if !ok {
			continue
		}
		for i := 0; i < 256; i += entrySize {
			if isPlausibleEntry(data[i : i+entrySize]) {
				count++
			}
		}
	}
	return count
}

// scanForDirectory implements the §4.2(iii) fallback: scan every track
// 0-79 (skipping 17/20, already probed) and count the plausible entries
// on each. If more than one track has any, the one with the most entries
// wins, and the lowest-numbered track wins a tie.
func scanForDirectory(disk image.Image) (int, bool) {
	type candidate struct {
		track int
		count int
	}
	var candidates []candidate
	for track := 0; track < 80; track++ {
		if track == 17 || track == 20 {
			continue
		}
		if n := countPlausibleEntries(disk, track); n > 0 {
			candidates = append(candidates, candidate{track, n})
		}
	}
	if len(candidates) == 0 {
		return 0, false
	}
	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.count > best.count {
			best = c
		}
	}
	return best.track, true
}

// analyze runs the §4.2 directory-track/sector-base/OS-variant/geometry
// probes in priority order.
func analyze(disk image.Image, log *logger.Logger) Layout {
	l := Layout{DirTrack: 17, SectorBase: 0, SystemType: "Unknown", DetectedOS: "Unknown"}

	switch {
	case checkGAT(disk, 17, 0):
		l.DirTrack, l.SectorBase, l.SystemType = 17, 0, "Model I"
	case checkGAT(disk, 17, 1):
		l.DirTrack, l.SectorBase, l.SystemType = 17, 1, "Model I (1-based)"
	case checkGAT(disk, 20, 0):
		l.DirTrack, l.SectorBase, l.SystemType = 20, 0, "Model III/4"
	case checkGAT(disk, 20, 1):
		l.DirTrack, l.SectorBase, l.SystemType = 20, 1, "Model III/4 (1-based)"
	case checkNewdos80Track9(disk):
		l.DirTrack, l.SectorBase, l.SystemType, l.DetectedOS = 9, 0, "NEWDOS/80 (Track 9)", "NEWDOS/80"
	case checkNewdos80System(disk):
		l.DirTrack, l.SectorBase, l.SystemType, l.DetectedOS = 17, 0, "NEWDOS/80 (System)", "NEWDOS/80"
	default:
		if track, ok := scanForDirectory(disk); ok {
			l.DirTrack = track
			l.SystemType = "Detected (scanned)"
			if _, ok := disk.ReadSector(image.CHS{Cylinder: track, Head: 0, Sector: 0}); ok {
				l.SectorBase = 0
			} else {
				l.SectorBase = 1
			}
		} else {
			log.Warn("trsdos: directory track probe failed; assuming Model I defaults")
			l.SystemType = "Unknown (Assumed Model I)"
		}
	}

	l.scanStart = 2 + l.SectorBase
	l.scanEnd = 18 + l.SectorBase
	if l.SystemType == "NEWDOS/80 (System)" || l.SystemType == "NEWDOS/80 (Track 9)" {
		l.scanStart, l.scanEnd = 10, 18
	}

	l.Geometry = inferGeometry(disk, l)
	if l.DetectedOS == "Unknown" {
		l.DetectedOS = identifyOS(disk, l, log)
	}
	return l
}

// inferGeometry resolves the §9 Open Question by probing how many
// sectors the directory track actually carries: a track with a sector at
// index 16 past the sector base (17 or more sectors/track) is taken as
// double density, anything smaller as single density.
func inferGeometry(disk image.Image, l Layout) Geometry {
	if _, ok := disk.ReadSector(image.CHS{Cylinder: l.DirTrack, Head: 0, Sector: 16 + l.SectorBase}); ok {
		return geometryDoubleDensity
	}
	return geometrySingleDensity
}

// identifyOS lists files (best-effort) and looks at base filenames, then
// falls back to scanning the boot sector for known strings, per §4.2(b).
func identifyOS(disk image.Image, l Layout, log *logger.Logger) string {
	entries := listEntriesRaw(disk, l)

	names := make(map[string]bool, len(entries))
	for _, e := range entries {
		names[e.Name] = true
	}

	switch {
	case names["LDOS"], names["LSDOS"]:
		return "LDOS / LS-DOS"
	case names["NEWDOS"], names["NEWDOS80"]:
		return "NEWDOS/80"
	case names["MULTIDOS"]:
		return "MultiDOS"
	case names["DOSPLUS"]:
		return "DOSPLUS"
	case names["TRSDOS"]:
		return "TRSDOS"
	}

	boot, ok := disk.ReadSector(image.CHS{Cylinder: 0, Head: 0, Sector: l.SectorBase})
	if ok {
		text := asciiScan(boot)
		switch {
		case strings.Contains(text, "NEWDOS"):
			return "NEWDOS/80 (Boot Signature)"
		case strings.Contains(text, "LDOS"):
			return "LDOS (Boot Signature)"
		case strings.Contains(text, "R.S."), strings.Contains(text, "RADIO SHACK"):
			return "TRSDOS (Boot Signature)"
		case strings.Contains(text, "Disk error"), strings.Contains(text, "No system"):
			return "TRSDOS (Boot Signature)"
		}
		if len(entries) == 0 {
			switch boot[0] {
			case 0x00, 0xF3, 0x3E, 0x21, 0xC3, 0x18, 0xFE:
				return "Booter / Non-Standard FS"
			}
		}
	}

	if len(entries) > 0 {
		return "Generic TRSDOS-compatible"
	}
	return "Unknown / Non-Bootable"
}

func asciiScan(data []byte) string {
	var b strings.Builder
	for _, c := range data {
		if c >= 32 && c <= 126 {
			b.WriteByte(c)
		}
	}
	return b.String()
}

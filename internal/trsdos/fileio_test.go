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
	"bytes"
	"strings"
	"testing"

	"github.com/ostafen/trsdisk/internal/image"
	"github.com/ostafen/trsdisk/internal/logger"
	"github.com/stretchr/testify/require"
)

// fakeImage is a minimal in-memory image.Image: numTracks tracks, each
// with sectorsPerTrack sectors of image.SectorSize bytes. It exists only
// to exercise the filesystem layer without a real disk file.
type fakeImage struct {
	sectorsPerTrack int
	numTracks       int
	data            map[image.CHS][]byte
	saves           int
}

func newFakeImage(numTracks, sectorsPerTrack int) *fakeImage {
	return &fakeImage{
		sectorsPerTrack: sectorsPerTrack,
		numTracks:       numTracks,
		data:            make(map[image.CHS][]byte),
	}
}

func (f *fakeImage) inRange(addr image.CHS) bool {
	return addr.Head == 0 && addr.Cylinder >= 0 && addr.Cylinder < f.numTracks &&
		addr.Sector >= 0 && addr.Sector < f.sectorsPerTrack
}

func (f *fakeImage) ReadSector(addr image.CHS) ([]byte, bool) {
	if !f.inRange(addr) {
		return nil, false
	}
	if buf, ok := f.data[addr]; ok {
		out := make([]byte, image.SectorSize)
		copy(out, buf)
		return out, true
	}
	return make([]byte, image.SectorSize), true
}

func (f *fakeImage) WriteSector(addr image.CHS, payload []byte) bool {
	if !f.inRange(addr) || len(payload) != image.SectorSize {
		return false
	}
	buf := make([]byte, image.SectorSize)
	copy(buf, payload)
	f.data[addr] = buf
	return true
}

func (f *fakeImage) Save() error {
	f.saves++
	return nil
}

// newTestFS builds a FileSystem over a fresh single-density fixture
// (directory on track 17, sector base 0, 2 granules/track of 5 sectors
// each) without running the full directory-track analyzer, so each test
// controls its own disk layout precisely.
func newTestFS(numTracks int) (*FileSystem, *fakeImage) {
	img := newFakeImage(numTracks, 10)

	// prime the GAT sector (track 17, sector 0) as entirely free.
	gat := make([]byte, image.SectorSize)
	for i := range gat {
		gat[i] = gatFree
	}
	img.WriteSector(image.CHS{Cylinder: 17, Head: 0, Sector: 0}, gat)

	layout := Layout{
		DirTrack:   17,
		SectorBase: 0,
		SystemType: "Model I",
		DetectedOS: "TRSDOS",
		Geometry:   geometrySingleDensity,
		scanStart:  2,
		scanEnd:    10,
	}
	fs := &FileSystem{img: img, layout: layout, log: logger.New(nil, logger.ErrorLevel)}
	return fs, img
}

func TestWriteFileThenReadFileRoundTrips(t *testing.T) {
	fs, img := newTestFS(40)

	content := []byte("HELLO, TRS-80 WORLD!")
	require.NoError(t, fs.WriteFile("HELLO.TXT", content))
	require.Equal(t, 1, img.saves, "WriteFile must commit the image once")

	got, err := fs.ReadFile("HELLO.TXT")
	require.NoError(t, err)
	require.Equal(t, content, got)
}

func TestWriteFileMultiSectorRoundTrips(t *testing.T) {
	fs, _ := newTestFS(40)

	// spans more than one granule's worth of sectors (5*256 bytes).
	content := make([]byte, 1500)
	for i := range content {
		content[i] = byte(i % 251)
	}
	require.NoError(t, fs.WriteFile("BIG.DAT", content))

	got, err := fs.ReadFile("BIG.DAT")
	require.NoError(t, err)
	require.Equal(t, content, got)
}

func TestWriteFileEmptyFile(t *testing.T) {
	fs, _ := newTestFS(40)

	require.NoError(t, fs.WriteFile("EMPTY.DAT", nil))
	got, err := fs.ReadFile("EMPTY.DAT")
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestListFilesReflectsWrites(t *testing.T) {
	fs, _ := newTestFS(40)
	require.NoError(t, fs.WriteFile("A.TXT", []byte("a")))
	require.NoError(t, fs.WriteFile("B.TXT", []byte("b")))

	names := map[string]bool{}
	for _, e := range fs.ListFiles() {
		names[e.FullName()] = true
	}
	require.True(t, names["A/TXT"])
	require.True(t, names["B/TXT"])
}

func TestDeleteFileFreesEntryAndSpace(t *testing.T) {
	fs, _ := newTestFS(40)
	require.NoError(t, fs.WriteFile("GONE.TXT", []byte("bye")))

	before := fs.GetFreeSpace()
	require.NoError(t, fs.DeleteFile("GONE.TXT"))
	after := fs.GetFreeSpace()
	require.Greater(t, after, before)

	_, err := fs.ReadFile("GONE.TXT")
	require.Error(t, err)
	require.True(t, IsKind(err, ErrNotFound))
}

func TestDeleteFileNotFound(t *testing.T) {
	fs, _ := newTestFS(40)
	err := fs.DeleteFile("NOPE.TXT")
	require.Error(t, err)
	require.True(t, IsKind(err, ErrNotFound))
}

func TestReadFileNotFound(t *testing.T) {
	fs, _ := newTestFS(40)
	_, err := fs.ReadFile("NOPE.TXT")
	require.Error(t, err)
	require.True(t, IsKind(err, ErrNotFound))
}

func TestWriteFileDiskFull(t *testing.T) {
	// Trim the GAT to a single usable track (track 1; track 0 is the
	// boot track and track 17 is the directory track, both always
	// reserved) so the whole disk offers only 2 granules * 5 sectors *
	// 256 bytes = 2560 bytes. A contiguous run never crosses a track
	// boundary, so this stays within the five-extent cap and genuinely
	// exhausts free space instead of tripping ErrTooFragmented.
	img := newFakeImage(18, 10)

	gat := make([]byte, image.SectorSize)
	for i := range gat {
		gat[i] = gatReserved
	}
	gat[gatIndex(1, 0, geometrySingleDensity.GranulesPerTrack)] = gatFree
	gat[gatIndex(1, 1, geometrySingleDensity.GranulesPerTrack)] = gatFree
	img.WriteSector(image.CHS{Cylinder: 17, Head: 0, Sector: 0}, gat)

	layout := Layout{
		DirTrack:   17,
		SectorBase: 0,
		SystemType: "Model I",
		DetectedOS: "TRSDOS",
		Geometry:   geometrySingleDensity,
		scanStart:  2,
		scanEnd:    10,
	}
	fs := &FileSystem{img: img, layout: layout, log: logger.New(nil, logger.ErrorLevel)}

	err := fs.WriteFile("TOOBIG.DAT", make([]byte, 1<<20))
	require.Error(t, err)
	require.True(t, IsKind(err, ErrDiskFull))
}

func TestWriteFileOverwriteExisting(t *testing.T) {
	fs, _ := newTestFS(40)
	require.NoError(t, fs.WriteFile("SAME.TXT", []byte("first")))
	require.NoError(t, fs.WriteFile("SAME.TXT", []byte("second, and longer")))

	got, err := fs.ReadFile("SAME.TXT")
	require.NoError(t, err)
	require.Equal(t, []byte("second, and longer"), got)

	// overwriting must not leave a duplicate directory entry behind.
	count := 0
	for _, e := range fs.ListFiles() {
		if e.FullName() == "SAME/TXT" {
			count++
		}
	}
	require.Equal(t, 1, count)
}

func TestGetFreeSpaceDecreasesAfterWrite(t *testing.T) {
	fs, _ := newTestFS(40)
	before := fs.GetFreeSpace()
	require.NoError(t, fs.WriteFile("SPACE.DAT", make([]byte, 300)))
	after := fs.GetFreeSpace()
	require.Less(t, after, before)
}

func TestListFilesWarnsOnceOnFXDELink(t *testing.T) {
	fs, img := newTestFS(40)

	raw := make([]byte, image.SectorSize)
	e := raw[:entrySize]
	e[offAttr] = attrInUse
	copy(e[offName:offName+nameLen], "CHAINED ")
	copy(e[offExt:offExt+extLen], "DAT")
	e[offExtents] = extentFXDELink
	img.WriteSector(image.CHS{Cylinder: 17, Head: 0, Sector: 2}, raw)

	var buf bytes.Buffer
	fs.log = logger.New(&buf, logger.WarnLevel)

	fs.ListFiles()
	fs.ListFiles()

	require.Equal(t, 1, strings.Count(buf.String(), "FXDE"))
}

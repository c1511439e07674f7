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
	"testing"

	"github.com/stretchr/testify/require"
)

const testGranulesPerTrack = 6 // six granules per track, a fixture geometry used throughout

func newFreeGAT(tracks int) []byte {
	gat := make([]byte, tracks*testGranulesPerTrack)
	for i := range gat {
		gat[i] = gatFree
	}
	return gat
}

func TestFreeSpaceExcludesReservedTracks(t *testing.T) {
	gat := newFreeGAT(4)
	dirTrack := 1

	got := freeSpace(gat, dirTrack, 6, testGranulesPerTrack)
	// tracks 0 (boot) and 1 (directory) are excluded; tracks 2,3 remain.
	want := int64(2*testGranulesPerTrack) * 6 * 256
	require.Equal(t, want, got)
}

func TestAllocateFirstFitContiguousRun(t *testing.T) {
	gat := newFreeGAT(4)
	dirTrack := 1

	extents, err := allocate(gat, dirTrack, testGranulesPerTrack, 3)
	require.NoError(t, err)
	require.Len(t, extents, 1)
	require.Equal(t, byte(2), extents[0].Track) // first usable track after boot+dir
	require.Equal(t, 0, extents[0].StartGranule)
	require.Equal(t, 3, extents[0].Count)

	// the three consumed granules must now read as reserved.
	for g := 0; g < 3; g++ {
		require.Equal(t, byte(gatReserved), gat[gatIndex(2, g, testGranulesPerTrack)])
	}
}

func TestAllocateSingleExtentAtGranuleBoundary(t *testing.T) {
	// exactly one track's worth of granules (6) must allocate as a
	// single extent, not split across the track boundary.
	gat := newFreeGAT(3)
	dirTrack := 0

	extents, err := allocate(gat, dirTrack, testGranulesPerTrack, testGranulesPerTrack)
	require.NoError(t, err)
	require.Len(t, extents, 1)
	require.Equal(t, testGranulesPerTrack, extents[0].Count)
}

func TestAllocateTooFragmentedExceedsFiveExtents(t *testing.T) {
	// punch holes so that six tracks each offer exactly one free granule,
	// none adjacent to another: six required extents exceeds the
	// five-extent cap of an FPDE.
	gat := newFreeGAT(7)
	dirTrack := 0
	for track := 1; track <= 6; track++ {
		for g := 0; g < testGranulesPerTrack; g++ {
			idx := gatIndex(track, g, testGranulesPerTrack)
			if g != 0 {
				gat[idx] = gatReserved
			}
		}
	}

	_, err := allocate(gat, dirTrack, testGranulesPerTrack, 6)
	require.Error(t, err)
	require.True(t, IsKind(err, ErrTooFragmented))
}

func TestAllocateDiskFull(t *testing.T) {
	gat := newFreeGAT(2)
	dirTrack := 0 // track 0 reserved, track 1 offers 6 granules

	_, err := allocate(gat, dirTrack, testGranulesPerTrack, 100)
	require.Error(t, err)
	require.True(t, IsKind(err, ErrDiskFull))
}

func TestFreeExtentsMarksGranulesFree(t *testing.T) {
	gat := newFreeGAT(2)
	dirTrack := 0

	extents, err := allocate(gat, dirTrack, testGranulesPerTrack, 4)
	require.NoError(t, err)

	freeExtents(gat, extents, testGranulesPerTrack)
	for i := range gat {
		track := i / testGranulesPerTrack
		if gatReservedTrack(track, dirTrack) {
			continue
		}
		require.Equal(t, byte(gatFree), gat[i])
	}
}

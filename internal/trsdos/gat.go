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

// gatFree marks a granule as available. gatReserved is written for newly
// allocated granules: real TRSDOS encodes forward-link information
// (0xFC/0xFD) here, which this driver does not reproduce — 0xFE is
// sufficient to keep the granule from being reused, but a native CHKDSK
// may flag it. See the "GAT byte semantics" note.
const (
	gatFree     = 0xFF
	gatReserved = 0xFE
)

// gatIndex returns the GAT byte position for a (track, granule) pair.
func gatIndex(track, granule, granulesPerTrack int) int {
	return track*granulesPerTrack + granule
}

// gatReservedTrack reports whether track is never eligible for
// allocation: cylinder 0 (boot track) or the directory track itself.
func gatReservedTrack(track, dirTrack int) bool {
	return track == 0 || track == dirTrack
}

// freeSpace implements §4.5 "Free space": count 0xFF bytes outside the
// reserved tracks and scale by granule size.
func freeSpace(gat []byte, dirTrack, sectorsPerGranule, granulesPerTrack int) int64 {
	free := 0
	for i, b := range gat {
		track := i / granulesPerTrack
		if gatReservedTrack(track, dirTrack) {
			continue
		}
		if b == gatFree {
			free++
		}
	}
	return int64(free) * int64(sectorsPerGranule) * 256
}

// allocate implements the first-fit contiguous-run allocator of §4.5. It
// mutates gat in place, marking each consumed granule gatReserved, and
// returns the extents it built. On failure gat is left with whatever
// partial reservations were made — callers that abort an allocation must
// re-read the GAT from the image rather than reuse this slice.
func allocate(gat []byte, dirTrack, granulesPerTrack, granulesNeeded int) ([]Extent, error) {
	var extents []Extent
	var curTrack, curStart, curCount int
	haveRun := false

	closeRun := func() {
		if haveRun && curCount > 0 {
			extents = append(extents, Extent{Track: byte(curTrack), StartGranule: curStart, Count: curCount})
		}
		haveRun = false
		curCount = 0
	}

	for i := range gat {
		if granulesNeeded == 0 {
			break
		}
		track := i / granulesPerTrack
		granule := i % granulesPerTrack
		if gatReservedTrack(track, dirTrack) {
			continue
		}
		if gat[i] != gatFree {
			continue
		}

		if haveRun && curTrack == track && curStart+curCount == granule {
			curCount++
		} else {
			closeRun()
			if len(extents) >= maxExtents {
				return nil, newError("allocate", "", ErrTooFragmented)
			}
			curTrack, curStart, curCount = track, granule, 1
			haveRun = true
		}

		gat[i] = gatReserved
		granulesNeeded--
	}
	closeRun()

	if granulesNeeded > 0 {
		return nil, newError("allocate", "", ErrDiskFull)
	}
	if len(extents) > maxExtents {
		return nil, newError("allocate", "", ErrTooFragmented)
	}
	return extents, nil
}

// freeExtents marks every granule covered by extents as gatFree, used by
// delete_file (§4.7).
func freeExtents(gat []byte, extents []Extent, granulesPerTrack int) {
	for _, e := range extents {
		for g := e.StartGranule; g < e.StartGranule+e.Count; g++ {
			idx := gatIndex(int(e.Track), g, granulesPerTrack)
			if idx >= 0 && idx < len(gat) {
				gat[idx] = gatFree
			}
		}
	}
}

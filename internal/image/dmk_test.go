package image_test

import (
	"bytes"
	"testing"

	"github.com/ostafen/trsdisk/internal/image"
	"github.com/stretchr/testify/require"
)

const dmkTestTrackLen = 400

// buildDMK constructs a minimal single-sided, single-track DMK image with
// one IDAM pointing at one 256-byte sector, tagged with payload so reads
// can be verified.
func buildDMK(track, sector byte, payload []byte) []byte {
	header := make([]byte, 16)
	header[1] = 1 // num_tracks
	header[2] = byte(dmkTestTrackLen)
	header[3] = byte(dmkTestTrackLen >> 8)
	header[4] = 0x40 // single-sided

	trackData := make([]byte, dmkTestTrackLen)
	const idamOffset = 128
	trackData[0] = byte(idamOffset)
	trackData[1] = byte(idamOffset >> 8)

	idam := idamOffset
	trackData[idam+0] = 0xFE // ID address mark
	trackData[idam+1] = track
	trackData[idam+2] = 0 // head
	trackData[idam+3] = sector
	trackData[idam+4] = 0x01 // size code (unused by the reader)
	trackData[idam+5] = 0
	trackData[idam+6] = 0

	damPos := idam + 7
	trackData[damPos] = 0xFB // normal data address mark
	copy(trackData[damPos+1:], payload)

	return append(header, trackData...)
}

func TestDMK_ReadSector(t *testing.T) {
	payload := bytes.Repeat([]byte{0xAB}, image.SectorSize)
	buf := buildDMK(0, 0, payload)
	path, err := writeTempFile(t, "test.dmk", buf)
	require.NoError(t, err)

	img, err := image.OpenDMK(path)
	require.NoError(t, err)

	data, ok := img.ReadSector(image.CHS{Cylinder: 0, Head: 0, Sector: 0})
	require.True(t, ok)
	require.True(t, bytes.Equal(payload, data))
}

func TestDMK_ReadSector_WrongSide(t *testing.T) {
	payload := bytes.Repeat([]byte{0xAB}, image.SectorSize)
	buf := buildDMK(0, 0, payload)
	path, err := writeTempFile(t, "test.dmk", buf)
	require.NoError(t, err)

	img, err := image.OpenDMK(path)
	require.NoError(t, err)

	_, ok := img.ReadSector(image.CHS{Cylinder: 0, Head: 1, Sector: 0})
	require.False(t, ok, "single-sided image must reject head>0")
}

func TestDMK_WriteSector_RoundTrips(t *testing.T) {
	payload := bytes.Repeat([]byte{0xAB}, image.SectorSize)
	buf := buildDMK(0, 0, payload)
	path, err := writeTempFile(t, "test.dmk", buf)
	require.NoError(t, err)

	img, err := image.OpenDMK(path)
	require.NoError(t, err)

	addr := image.CHS{Cylinder: 0, Head: 0, Sector: 0}
	data, ok := img.ReadSector(addr)
	require.True(t, ok)

	require.True(t, img.WriteSector(addr, data))

	after, ok := img.ReadSector(addr)
	require.True(t, ok)
	require.True(t, bytes.Equal(data, after))
}

func TestDMK_DeletedDataAddressMark(t *testing.T) {
	payload := bytes.Repeat([]byte{0xCD}, image.SectorSize)
	buf := buildDMK(0, 7, payload)
	// Flip the DAM from normal (0xFB) to deleted (0xF8); both must locate
	// the payload identically.
	idam := 16 + 128
	damPos := idam + 7
	buf[damPos] = 0xF8
	path, err := writeTempFile(t, "test.dmk", buf)
	require.NoError(t, err)

	img, err := image.OpenDMK(path)
	require.NoError(t, err)

	data, ok := img.ReadSector(image.CHS{Cylinder: 0, Head: 0, Sector: 7})
	require.True(t, ok)
	require.True(t, bytes.Equal(payload, data))
}

func TestOpen_DetectsDMKByHeaderAndExtension(t *testing.T) {
	payload := bytes.Repeat([]byte{0x11}, image.SectorSize)
	buf := buildDMK(0, 0, payload)
	path, err := writeTempFile(t, "test.dmk", buf)
	require.NoError(t, err)

	f, err := openFile(t, path)
	require.NoError(t, err)
	defer f.Close()

	img, err := image.Open(path, f, int64(len(buf)))
	require.NoError(t, err)
	require.Contains(t, img.Geometry(), "DMK")
}

func TestOpen_FallsBackToJV1ForGarbageDMKHeader(t *testing.T) {
	buf := makeJV1Buf(10)
	path, err := writeTempFile(t, "test.dmk", buf)
	require.NoError(t, err)

	f, err := openFile(t, path)
	require.NoError(t, err)
	defer f.Close()

	img, err := image.Open(path, f, int64(len(buf)))
	require.NoError(t, err)
	require.Contains(t, img.Geometry(), "JV1")
}

package image_test

import (
	"testing"

	"github.com/ostafen/trsdisk/internal/image"
	"github.com/stretchr/testify/require"
)

// buildJV3 packs records for the given (track, head, sector) list, each
// with a 256-byte payload tagged with its own (track, sector) for
// verification, interspersed with an unused (track=0xFF) slot with a
// non-zero size code to exercise the walker's skip logic.
func buildJV3(entries []image.CHS) []byte {
	var buf []byte
	for _, e := range entries {
		header := []byte{byte(e.Cylinder), byte(e.Sector), byte(e.Head) << 4}
		buf = append(buf, header...)
		payload := make([]byte, 256)
		payload[0] = byte(e.Cylinder)
		payload[1] = byte(e.Sector)
		buf = append(buf, payload...)
	}
	// Unused slot using size code 1 (128 bytes) to verify skip arithmetic.
	buf = append(buf, 0xFF, 0x00, 0x01)
	buf = append(buf, make([]byte, 128)...)
	return buf
}

func TestJV3_ReadSector(t *testing.T) {
	entries := []image.CHS{
		{Cylinder: 0, Head: 0, Sector: 0},
		{Cylinder: 0, Head: 0, Sector: 1},
		{Cylinder: 17, Head: 0, Sector: 0},
	}
	buf := buildJV3(entries)
	path, err := writeTempFile(t, "test.jv3", buf)
	require.NoError(t, err)

	img, err := image.OpenJV3(path)
	require.NoError(t, err)

	data, ok := img.ReadSector(image.CHS{Cylinder: 17, Head: 0, Sector: 0})
	require.True(t, ok)
	require.Equal(t, byte(17), data[0])
	require.Equal(t, byte(0), data[1])
}

func TestJV3_ReadSector_Missing(t *testing.T) {
	buf := buildJV3([]image.CHS{{Cylinder: 0, Head: 0, Sector: 0}})
	path, err := writeTempFile(t, "test.jv3", buf)
	require.NoError(t, err)

	img, err := image.OpenJV3(path)
	require.NoError(t, err)

	_, ok := img.ReadSector(image.CHS{Cylinder: 5, Head: 0, Sector: 5})
	require.False(t, ok)
}

func TestJV3_WriteSector_Unsupported(t *testing.T) {
	buf := buildJV3([]image.CHS{{Cylinder: 0, Head: 0, Sector: 0}})
	path, err := writeTempFile(t, "test.jv3", buf)
	require.NoError(t, err)

	img, err := image.OpenJV3(path)
	require.NoError(t, err)

	ok := img.WriteSector(image.CHS{Cylinder: 0, Head: 0, Sector: 0}, make([]byte, 256))
	require.False(t, ok)
}

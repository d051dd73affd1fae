package planar

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFormat(t *testing.T) {
	for name, want := range map[string]Format{
		"i420": FormatI420, "yuv420p": FormatI420, "NV12": FormatNV12,
		"nv21": FormatNV21, "uyvy422": FormatUYVY, " uyvy ": FormatUYVY,
	} {
		got, err := ParseFormat(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}
	_, err := ParseFormat("rgb24")
	assert.Error(t, err)
	assert.Equal(t, "nv21", FormatNV21.String())
}

func TestView_I420IsIdentity(t *testing.T) {
	buf := expectedPacked(8, 6)
	img, err := View(FormatI420, buf, 8, 6)
	require.NoError(t, err)
	f, err := Repack(img)
	require.NoError(t, err)
	assert.Equal(t, buf, f.Data)
}

func TestView_NV12AndNV21(t *testing.T) {
	// 4x2: Y plane then one interleaved chroma row.
	buf := []byte{
		0, 1, 2, 3,
		4, 5, 6, 7,
		100, 200, 101, 201,
	}
	img, err := View(FormatNV12, buf, 4, 2)
	require.NoError(t, err)
	f, err := Repack(img)
	require.NoError(t, err)
	assert.Equal(t, []byte{100, 101}, f.U())
	assert.Equal(t, []byte{200, 201}, f.V())

	img, err = View(FormatNV21, buf, 4, 2)
	require.NoError(t, err)
	f, err = Repack(img)
	require.NoError(t, err)
	assert.Equal(t, []byte{200, 201}, f.U())
	assert.Equal(t, []byte{100, 101}, f.V())
}

func TestView_UYVY(t *testing.T) {
	// 2x2: two lines of U Y V Y.
	buf := []byte{
		10, 1, 20, 2,
		11, 3, 21, 4,
	}
	img, err := View(FormatUYVY, buf, 2, 2)
	require.NoError(t, err)
	f, err := Repack(img)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4, 10, 20}, f.Data)
}

func TestView_ShortBuffer(t *testing.T) {
	_, err := View(FormatUYVY, make([]byte, 7), 2, 2)
	assert.ErrorIs(t, err, ErrInvalidImageShape)
	_, err = View(FormatI420, make([]byte, 6), 3, 2)
	assert.ErrorIs(t, err, ErrInvalidImageShape)
}

func TestSemiPlanarView_Padded(t *testing.T) {
	const w, h, stride = 4, 4, 8
	buf := make([]byte, SemiPlanarSize(h, stride))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			buf[y*stride+x] = lumaAt(x, y)
		}
	}
	for y := 0; y < h/2; y++ {
		for x := 0; x < w/2; x++ {
			buf[h*stride+y*stride+2*x] = chromaBAt(x, y)
			buf[h*stride+y*stride+2*x+1] = chromaAAt(x, y)
		}
	}
	img, err := SemiPlanarView(buf, w, h, stride, true)
	require.NoError(t, err)
	f, err := Repack(img)
	require.NoError(t, err)
	assert.Equal(t, expectedPacked(w, h), f.Data)

	_, err = SemiPlanarView(buf, w, h, 2, true)
	assert.ErrorIs(t, err, ErrInvalidImageShape)
}

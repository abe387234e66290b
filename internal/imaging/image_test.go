package imaging

import (
	"bytes"
	"context"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	src := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			src.Set(x, y, color.NRGBA{R: uint8(x * 10), G: uint8(y * 10), B: 7, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, src))
	return buf.Bytes()
}

func TestDecodePNG(t *testing.T) {
	img, err := Decode(encodePNG(t, 4, 3))
	require.NoError(t, err)

	assert.Equal(t, 4, img.Width)
	assert.Equal(t, 3, img.Height)
	require.Len(t, img.Pix, 4*3*4)

	idx := (2*4 + 3) * 4
	assert.Equal(t, []byte{30, 20, 7, 255}, img.Pix[idx:idx+4])
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := Decode([]byte("definitely not an image"))
	assert.ErrorIs(t, err, ErrImageDecode)

	_, err = Decode(nil)
	assert.ErrorIs(t, err, ErrImageDecode)
}

func TestDecodeContext(t *testing.T) {
	img, err := DecodeContext(context.Background(), encodePNG(t, 2, 2))
	require.NoError(t, err)
	assert.Equal(t, 2, img.Width)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = DecodeContext(ctx, nil)
	assert.ErrorIs(t, err, ErrImageDecode)
}

func TestNewRawImageValidatesLength(t *testing.T) {
	_, err := NewRawImage(2, 2, make([]byte, 15))
	assert.ErrorIs(t, err, ErrImageDecode)

	img, err := NewRawImage(2, 2, make([]byte, 16))
	require.NoError(t, err)
	assert.Equal(t, 4, img.PixelCount())
}

// pngHeader returns a PNG signature and IHDR chunk declaring w x h RGBA
// pixels with no image data behind it.
func pngHeader(w, h uint32) []byte {
	var buf bytes.Buffer
	buf.WriteString("\x89PNG\r\n\x1a\n")

	chunk := make([]byte, 0, 17)
	chunk = append(chunk, "IHDR"...)
	chunk = binary.BigEndian.AppendUint32(chunk, w)
	chunk = binary.BigEndian.AppendUint32(chunk, h)
	chunk = append(chunk, 8, 6, 0, 0, 0)

	_ = binary.Write(&buf, binary.BigEndian, uint32(len(chunk)-4))
	buf.Write(chunk)
	_ = binary.Write(&buf, binary.BigEndian, crc32.ChecksumIEEE(chunk))
	return buf.Bytes()
}

func TestDecodeRejectsOversizedDimensions(t *testing.T) {
	data := pngHeader(12000, 12000)
	require.Less(t, len(data), 64)

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	require.Equal(t, "png", format)
	require.Equal(t, 12000, cfg.Width)

	_, err = Decode(data)
	assert.ErrorIs(t, err, ErrImageDecode)
	assert.Contains(t, err.Error(), "12000x12000")

	_, err = DecodeContext(context.Background(), pngHeader(MaxPixels/1000+1, 1000))
	assert.ErrorIs(t, err, ErrImageDecode)
}
